package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/andreyvolkau/airtrail/pkg/models"
)

// Repository provides database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Health checks database connectivity
func (r *Repository) Health(ctx context.Context) error {
	return r.db.Health(ctx)
}

// Channels

// GetChannel retrieves a channel by ID
func (r *Repository) GetChannel(ctx context.Context, id string) (*models.Channel, error) {
	var channel models.Channel

	query := `
		SELECT id, name, slug, timezone, stream_url, is_active, created_at, updated_at
		FROM channels
		WHERE id = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&channel.ID, &channel.Name, &channel.Slug, &channel.Timezone,
		&channel.StreamURL, &channel.IsActive, &channel.CreatedAt, &channel.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("channel not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}

	return &channel, nil
}

// GetActiveChannels retrieves all active channels
func (r *Repository) GetActiveChannels(ctx context.Context) ([]*models.Channel, error) {
	query := `
		SELECT id, name, slug, timezone, stream_url, is_active, created_at, updated_at
		FROM channels
		WHERE is_active = true
		ORDER BY name ASC
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	defer rows.Close()

	var channels []*models.Channel
	for rows.Next() {
		var channel models.Channel
		err := rows.Scan(
			&channel.ID, &channel.Name, &channel.Slug, &channel.Timezone,
			&channel.StreamURL, &channel.IsActive, &channel.CreatedAt, &channel.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan channel: %w", err)
		}
		channels = append(channels, &channel)
	}

	return channels, nil
}

// Shifts

// GetChannelShifts retrieves the active shifts for a channel
func (r *Repository) GetChannelShifts(ctx context.Context, channelID string) ([]models.Shift, error) {
	query := `
		SELECT id, channel_id, name, start_time, end_time, days, is_active, created_at, updated_at
		FROM shifts
		WHERE channel_id = $1 AND is_active = true
		ORDER BY start_time ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to query shifts: %w", err)
	}
	defer rows.Close()

	var shifts []models.Shift
	for rows.Next() {
		var shift models.Shift
		var days string
		err := rows.Scan(
			&shift.ID, &shift.ChannelID, &shift.Name, &shift.StartTime, &shift.EndTime,
			&days, &shift.IsActive, &shift.CreatedAt, &shift.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shift: %w", err)
		}

		shift.Days, err = models.ParseWeekdays(days)
		if err != nil {
			return nil, fmt.Errorf("failed to parse shift days: %w", err)
		}

		shifts = append(shifts, shift)
	}

	return shifts, nil
}

// Title mapping rules

// GetChannelRules retrieves the active title mapping rules for a channel
func (r *Repository) GetChannelRules(ctx context.Context, channelID string) ([]models.TitleMappingRule, error) {
	query := `
		SELECT id, channel_id, before_title, after_title, category, skip_transcription,
		       is_active, created_at, updated_at
		FROM title_mapping_rules
		WHERE channel_id = $1 AND is_active = true
		ORDER BY created_at ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to query title rules: %w", err)
	}
	defer rows.Close()

	var rules []models.TitleMappingRule
	for rows.Next() {
		var rule models.TitleMappingRule
		err := rows.Scan(
			&rule.ID, &rule.ChannelID, &rule.BeforeTitle, &rule.AfterTitle, &rule.Category,
			&rule.SkipTranscription, &rule.IsActive, &rule.CreatedAt, &rule.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan title rule: %w", err)
		}
		rules = append(rules, rule)
	}

	return rules, nil
}
