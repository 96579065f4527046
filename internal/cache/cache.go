package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andreyvolkau/airtrail/internal/metrics"
	"github.com/andreyvolkau/airtrail/pkg/models"
)

// Cache provides caching functionality using Redis
type Cache struct {
	client *redis.Client
}

// ChannelSnapshot is the cached read-only configuration for one channel:
// the channel record plus its active shifts and title rules. Engines take
// the snapshot as an explicit parameter so a run is deterministic even if
// an operator edits configuration mid-run.
type ChannelSnapshot struct {
	Channel  *models.Channel           `json:"channel"`
	Shifts   []models.Shift            `json:"shifts"`
	Rules    []models.TitleMappingRule `json:"rules"`
	CachedAt time.Time                 `json:"cached_at"`
}

// RunMarker records the outcome of a channel's most recent pipeline run
type RunMarker struct {
	ChannelID  string    `json:"channel_id"`
	RunID      string    `json:"run_id"`
	Status     string    `json:"status"`
	Segments   int       `json:"segments"`
	FinishedAt time.Time `json:"finished_at"`
}

// NewCache creates a new cache instance
func NewCache(host string, port int, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// NewCacheWithClient wraps an existing Redis client; used by tests
func NewCacheWithClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping checks cache health
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Channel snapshot operations

// SetChannelSnapshot caches a channel's configuration snapshot
func (c *Cache) SetChannelSnapshot(ctx context.Context, snapshot *ChannelSnapshot, ttl time.Duration) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal channel snapshot: %w", err)
	}

	key := fmt.Sprintf("snapshot:%s", snapshot.Channel.ID)
	return c.client.Set(ctx, key, data, ttl).Err()
}

// GetChannelSnapshot retrieves a channel's configuration snapshot. A cache
// miss returns nil without error.
func (c *Cache) GetChannelSnapshot(ctx context.Context, channelID string) (*ChannelSnapshot, error) {
	key := fmt.Sprintf("snapshot:%s", channelID)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			metrics.CacheMisses.WithLabelValues("snapshot").Inc()
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get channel snapshot from cache: %w", err)
	}

	var snapshot ChannelSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal channel snapshot: %w", err)
	}

	metrics.CacheHits.WithLabelValues("snapshot").Inc()
	return &snapshot, nil
}

// InvalidateChannelSnapshot drops a channel's cached configuration
func (c *Cache) InvalidateChannelSnapshot(ctx context.Context, channelID string) error {
	key := fmt.Sprintf("snapshot:%s", channelID)
	return c.client.Del(ctx, key).Err()
}

// Run marker operations

// SetRunMarker records the outcome of a channel's latest pipeline run
func (c *Cache) SetRunMarker(ctx context.Context, marker *RunMarker) error {
	data, err := json.Marshal(marker)
	if err != nil {
		return fmt.Errorf("failed to marshal run marker: %w", err)
	}

	key := fmt.Sprintf("lastrun:%s", marker.ChannelID)
	return c.client.Set(ctx, key, data, 0).Err()
}

// GetRunMarker retrieves a channel's latest run marker. A cache miss
// returns nil without error.
func (c *Cache) GetRunMarker(ctx context.Context, channelID string) (*RunMarker, error) {
	key := fmt.Sprintf("lastrun:%s", channelID)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run marker from cache: %w", err)
	}

	var marker RunMarker
	if err := json.Unmarshal(data, &marker); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run marker: %w", err)
	}

	return &marker, nil
}

// Run lock operations. The lock only dedups concurrent ticks for the same
// channel across worker instances; pipeline correctness does not depend on
// it.

// AcquireRunLock attempts to take the per-channel run lock
func (c *Cache) AcquireRunLock(ctx context.Context, channelID string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("runlock:%s", channelID)
	return c.client.SetNX(ctx, key, "locked", ttl).Result()
}

// ReleaseRunLock releases the per-channel run lock
func (c *Cache) ReleaseRunLock(ctx context.Context, channelID string) error {
	key := fmt.Sprintf("runlock:%s", channelID)
	return c.client.Del(ctx, key).Err()
}
