package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/andreyvolkau/airtrail/internal/metrics"
	"github.com/andreyvolkau/airtrail/internal/timeline"
	"github.com/andreyvolkau/airtrail/pkg/models"
)

const segmentColumns = `
	id, channel_id, start_time, end_time, duration_seconds, is_recognized,
	title, title_before, title_after, is_active, is_deleted, source,
	clip_path, requires_analysis, metadata, created_at, updated_at
`

// CreateSegment creates a single segment record
func (r *Repository) CreateSegment(ctx context.Context, segment *models.Segment) error {
	if segment.ID == "" {
		segment.ID = uuid.New().String()
	}

	started := time.Now()

	query := `
		INSERT INTO segments (id, channel_id, start_time, end_time, duration_seconds,
		                      is_recognized, title, title_before, title_after, is_active,
		                      is_deleted, source, clip_path, requires_analysis, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		segment.ID, segment.ChannelID, segment.StartTime, segment.EndTime,
		segment.DurationSeconds, segment.IsRecognized, segment.Title, segment.TitleBefore,
		segment.TitleAfter, segment.IsActive, segment.IsDeleted, segment.Source,
		segment.ClipPath, segment.RequiresAnalysis, segment.Metadata,
	).Scan(&segment.CreatedAt, &segment.UpdatedAt)

	metrics.DatabaseOperationDuration.WithLabelValues("create_segment").Observe(time.Since(started).Seconds())

	if err != nil {
		metrics.DatabaseErrors.WithLabelValues("create_segment").Inc()
		return fmt.Errorf("failed to create segment: %w", err)
	}

	return nil
}

// InsertSegments bulk-inserts a synthesized segment set inside one
// transaction. Insertion is idempotent on the segment's natural identity
// (channel, clip path): rows already present are left untouched, so
// repeated runs over the same window converge instead of duplicating.
// Returns the number of rows actually inserted.
func (r *Repository) InsertSegments(ctx context.Context, segments []*models.Segment) (int, error) {
	if len(segments) == 0 {
		return 0, nil
	}

	started := time.Now()

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO segments (id, channel_id, start_time, end_time, duration_seconds,
		                      is_recognized, title, title_before, title_after, is_active,
		                      is_deleted, source, clip_path, requires_analysis, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (channel_id, clip_path) DO NOTHING
	`

	inserted := 0
	for _, segment := range segments {
		if segment.ID == "" {
			segment.ID = uuid.New().String()
		}

		tag, err := tx.Exec(ctx, query,
			segment.ID, segment.ChannelID, segment.StartTime, segment.EndTime,
			segment.DurationSeconds, segment.IsRecognized, segment.Title, segment.TitleBefore,
			segment.TitleAfter, segment.IsActive, segment.IsDeleted, segment.Source,
			segment.ClipPath, segment.RequiresAnalysis, segment.Metadata,
		)
		if err != nil {
			metrics.DatabaseErrors.WithLabelValues("insert_segments").Inc()
			return 0, fmt.Errorf("failed to insert segment: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit segment insert: %w", err)
	}

	metrics.DatabaseOperationDuration.WithLabelValues("insert_segments").Observe(time.Since(started).Seconds())

	return inserted, nil
}

// GetTimeline retrieves the active, non-deleted segments of a channel
// overlapping [start, end), sorted ascending by start time. Rows
// superseded by a later overlapping write stay out of engine input.
func (r *Repository) GetTimeline(ctx context.Context, channelID string, start, end time.Time) ([]*models.Segment, error) {
	query := `
		SELECT ` + segmentColumns + `
		FROM segments
		WHERE channel_id = $1 AND is_deleted = false AND is_active = true
		  AND start_time < $3 AND end_time > $2
		ORDER BY start_time ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, channelID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query timeline: %w", err)
	}
	defer rows.Close()

	return scanSegments(rows)
}

// GetSegmentsInShiftWindows retrieves the active segments of a channel
// overlapping any of the given UTC windows. The windows are OR-combined
// into a single predicate so the filter runs set-at-a-time.
func (r *Repository) GetSegmentsInShiftWindows(ctx context.Context, channelID string, windows []timeline.Window) ([]*models.Segment, error) {
	if len(windows) == 0 {
		return nil, nil
	}

	query := `
		SELECT ` + segmentColumns + `
		FROM segments
		WHERE channel_id = $1 AND is_deleted = false AND is_active = true
		  AND (`

	args := []interface{}{channelID}
	for i, window := range windows {
		if i > 0 {
			query += " OR "
		}
		query += fmt.Sprintf("(start_time < $%d AND end_time > $%d)", len(args)+2, len(args)+1)
		args = append(args, window.Start, window.End)
	}
	query += `)
		ORDER BY start_time ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query segments in shift windows: %w", err)
	}
	defer rows.Close()

	return scanSegments(rows)
}

// SoftDeleteSegments marks segments as deleted and inactive
func (r *Repository) SoftDeleteSegments(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query := `
		UPDATE segments
		SET is_deleted = true, is_active = false, updated_at = now()
		WHERE id = ANY($1)
	`

	if _, err := r.db.Pool.Exec(ctx, query, ids); err != nil {
		metrics.DatabaseErrors.WithLabelValues("soft_delete_segments").Inc()
		return fmt.Errorf("failed to soft-delete segments: %w", err)
	}

	return nil
}

// DeactivateSegments bulk-clears is_active for the given segments
func (r *Repository) DeactivateSegments(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query := `
		UPDATE segments
		SET is_active = false, updated_at = now()
		WHERE id = ANY($1)
	`

	if _, err := r.db.Pool.Exec(ctx, query, ids); err != nil {
		metrics.DatabaseErrors.WithLabelValues("deactivate_segments").Inc()
		return fmt.Errorf("failed to deactivate segments: %w", err)
	}

	return nil
}

// UpdateRequiresAnalysis bulk-updates the requires_analysis flag
func (r *Repository) UpdateRequiresAnalysis(ctx context.Context, ids []string, requires bool) error {
	if len(ids) == 0 {
		return nil
	}

	query := `
		UPDATE segments
		SET requires_analysis = $2, updated_at = now()
		WHERE id = ANY($1)
	`

	if _, err := r.db.Pool.Exec(ctx, query, ids, requires); err != nil {
		metrics.DatabaseErrors.WithLabelValues("update_requires_analysis").Inc()
		return fmt.Errorf("failed to update requires_analysis: %w", err)
	}

	return nil
}

// UpdateSegmentTitle rewrites a segment's title
func (r *Repository) UpdateSegmentTitle(ctx context.Context, segmentID, title string) error {
	query := `
		UPDATE segments
		SET title = $2, updated_at = now()
		WHERE id = $1
	`

	if _, err := r.db.Pool.Exec(ctx, query, segmentID, title); err != nil {
		metrics.DatabaseErrors.WithLabelValues("update_segment_title").Inc()
		return fmt.Errorf("failed to update segment title: %w", err)
	}

	return nil
}

// DeactivateOverlapping deactivates previously persisted active segments
// that overlap any of the fresh segments within the given tolerance.
// Segments created after createdBefore are exempt, as are the fresh
// segments themselves. Returns the number of rows deactivated.
func (r *Repository) DeactivateOverlapping(
	ctx context.Context,
	channelID string,
	fresh []*models.Segment,
	tolerance time.Duration,
	createdBefore time.Time,
	keepIDs []string,
) (int, error) {
	if len(fresh) == 0 {
		return 0, nil
	}

	started := time.Now()
	deactivated := 0

	query := `
		UPDATE segments
		SET is_active = false, updated_at = now()
		WHERE channel_id = $1 AND is_deleted = false AND is_active = true
		  AND id != ALL($2)
		  AND created_at < $3
		  AND start_time < $5 AND end_time > $4
	`

	for _, seg := range fresh {
		tag, err := r.db.Pool.Exec(ctx, query,
			channelID, keepIDs, createdBefore,
			seg.StartTime.Add(-tolerance), seg.EndTime.Add(tolerance),
		)
		if err != nil {
			metrics.DatabaseErrors.WithLabelValues("deactivate_overlapping").Inc()
			return deactivated, fmt.Errorf("failed to deactivate overlapping segments: %w", err)
		}
		deactivated += int(tag.RowsAffected())
	}

	metrics.DatabaseOperationDuration.WithLabelValues("deactivate_overlapping").Observe(time.Since(started).Seconds())

	return deactivated, nil
}

func scanSegments(rows pgx.Rows) ([]*models.Segment, error) {
	var segments []*models.Segment
	for rows.Next() {
		var segment models.Segment
		err := rows.Scan(
			&segment.ID, &segment.ChannelID, &segment.StartTime, &segment.EndTime,
			&segment.DurationSeconds, &segment.IsRecognized, &segment.Title,
			&segment.TitleBefore, &segment.TitleAfter, &segment.IsActive,
			&segment.IsDeleted, &segment.Source, &segment.ClipPath,
			&segment.RequiresAnalysis, &segment.Metadata, &segment.CreatedAt, &segment.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan segment: %w", err)
		}
		segments = append(segments, &segment)
	}

	return segments, nil
}
