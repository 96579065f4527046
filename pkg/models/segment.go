package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Segment represents a contiguous, time-bounded unit of channel audio,
// either recognized by the fingerprinting provider or synthesized to fill
// a gap between two recognized neighbors.
type Segment struct {
	ID               string          `json:"id" db:"id"`
	ChannelID        string          `json:"channel_id" db:"channel_id"`
	StartTime        time.Time       `json:"start_time" db:"start_time"`
	EndTime          time.Time       `json:"end_time" db:"end_time"`
	DurationSeconds  float64         `json:"duration_seconds" db:"duration_seconds"`
	IsRecognized     bool            `json:"is_recognized" db:"is_recognized"`
	Title            string          `json:"title,omitempty" db:"title"`
	TitleBefore      string          `json:"title_before,omitempty" db:"title_before"`
	TitleAfter       string          `json:"title_after,omitempty" db:"title_after"`
	IsActive         bool            `json:"is_active" db:"is_active"`
	IsDeleted        bool            `json:"is_deleted" db:"is_deleted"`
	Source           string          `json:"source" db:"source"`
	ClipPath         string          `json:"clip_path,omitempty" db:"clip_path"`
	RequiresAnalysis bool            `json:"requires_analysis" db:"requires_analysis"`
	Metadata         SegmentMetadata `json:"metadata,omitempty" db:"metadata"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// SegmentMetadata holds provider-reported track details for recognized segments
type SegmentMetadata map[string]string

// Value implements driver.Valuer for database storage
func (m SegmentMetadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for database retrieval
func (m *SegmentMetadata) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, m)
}

// Duration returns the segment span as a time.Duration
func (s *Segment) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// Overlaps reports whether the segment's interval overlaps [start, end)
func (s *Segment) Overlaps(start, end time.Time) bool {
	return s.StartTime.Before(end) && s.EndTime.After(start)
}

// SegmentSource constants
const (
	SegmentSourceRecognition = "recognition"
	SegmentSourceMerged      = "merged"
	SegmentSourceUser        = "user"
)
