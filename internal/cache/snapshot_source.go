package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/andreyvolkau/airtrail/pkg/models"
)

// ConfigRepository is the database surface the snapshot source reads
// channel configuration from.
type ConfigRepository interface {
	GetChannel(ctx context.Context, id string) (*models.Channel, error)
	GetChannelShifts(ctx context.Context, channelID string) ([]models.Shift, error)
	GetChannelRules(ctx context.Context, channelID string) ([]models.TitleMappingRule, error)
}

// SnapshotSource serves channel configuration snapshots, preferring the
// cache and falling through to the database. It implements the pipeline's
// ConfigSource contract.
type SnapshotSource struct {
	cache *Cache
	repo  ConfigRepository
	ttl   time.Duration
}

// NewSnapshotSource creates a snapshot source with the given cache TTL
func NewSnapshotSource(cache *Cache, repo ConfigRepository, ttl time.Duration) *SnapshotSource {
	return &SnapshotSource{cache: cache, repo: repo, ttl: ttl}
}

// Snapshot returns the channel's configuration snapshot, loading and
// caching it when absent.
func (s *SnapshotSource) Snapshot(ctx context.Context, channelID string) (*ChannelSnapshot, error) {
	if s.cache != nil {
		snapshot, err := s.cache.GetChannelSnapshot(ctx, channelID)
		if err == nil && snapshot != nil {
			return snapshot, nil
		}
	}

	channel, err := s.repo.GetChannel(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to load channel: %w", err)
	}

	shifts, err := s.repo.GetChannelShifts(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to load shifts: %w", err)
	}

	rules, err := s.repo.GetChannelRules(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to load title rules: %w", err)
	}

	snapshot := &ChannelSnapshot{
		Channel:  channel,
		Shifts:   shifts,
		Rules:    rules,
		CachedAt: time.Now().UTC(),
	}

	if s.cache != nil {
		// Best effort; a failed cache write only costs the next read
		_ = s.cache.SetChannelSnapshot(ctx, snapshot, s.ttl)
	}

	return snapshot, nil
}

// ChannelShifts returns the channel's active shifts
func (s *SnapshotSource) ChannelShifts(ctx context.Context, channelID string) ([]models.Shift, error) {
	snapshot, err := s.Snapshot(ctx, channelID)
	if err != nil {
		return nil, err
	}
	return snapshot.Shifts, nil
}

// ChannelRules returns the channel's active title mapping rules
func (s *SnapshotSource) ChannelRules(ctx context.Context, channelID string) ([]models.TitleMappingRule, error) {
	snapshot, err := s.Snapshot(ctx, channelID)
	if err != nil {
		return nil, err
	}
	return snapshot.Rules, nil
}
