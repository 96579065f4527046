package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/andreyvolkau/airtrail/pkg/models"
)

// Merge audit log. Append-only; the read-before-write check keeps repeated
// merge passes from duplicating entries.

// HasMergeAudit reports whether an entry already exists for the merged
// segment with the identical sorted source-id set.
func (r *Repository) HasMergeAudit(ctx context.Context, mergedSegmentID string, sourceIDs []string) (bool, error) {
	var exists bool

	query := `
		SELECT EXISTS (
			SELECT 1 FROM merge_audit_log
			WHERE merged_segment_id = $1 AND source_segment_ids = $2
		)
	`

	if err := r.db.Pool.QueryRow(ctx, query, mergedSegmentID, sourceIDs).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check merge audit log: %w", err)
	}

	return exists, nil
}

// AppendMergeAudit writes one merge audit entry
func (r *Repository) AppendMergeAudit(ctx context.Context, entry *models.MergeAuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	query := `
		INSERT INTO merge_audit_log (id, merged_segment_id, source_segment_ids)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		entry.ID, entry.MergedSegmentID, entry.SourceSegmentIDs,
	).Scan(&entry.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to append merge audit entry: %w", err)
	}

	return nil
}

// GetMergeAuditForSegment retrieves the audit entries that produced a
// merged segment.
func (r *Repository) GetMergeAuditForSegment(ctx context.Context, mergedSegmentID string) ([]*models.MergeAuditEntry, error) {
	query := `
		SELECT id, merged_segment_id, source_segment_ids, created_at
		FROM merge_audit_log
		WHERE merged_segment_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, mergedSegmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query merge audit log: %w", err)
	}
	defer rows.Close()

	var entries []*models.MergeAuditEntry
	for rows.Next() {
		var entry models.MergeAuditEntry
		err := rows.Scan(&entry.ID, &entry.MergedSegmentID, &entry.SourceSegmentIDs, &entry.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan merge audit entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	return entries, nil
}
