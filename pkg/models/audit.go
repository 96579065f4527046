package models

import "time"

// MergeAuditEntry records one merge operation: the replacement segment and
// the sorted ids of the segments folded into it. The audit log is the only
// place the supersedes relation lives; segments carry no back-pointers.
type MergeAuditEntry struct {
	ID               string    `json:"id" db:"id"`
	MergedSegmentID  string    `json:"merged_segment_id" db:"merged_segment_id"`
	SourceSegmentIDs []string  `json:"source_segment_ids" db:"source_segment_ids"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}
