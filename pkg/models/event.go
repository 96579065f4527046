package models

import (
	"strconv"
	"time"
)

// RecognitionEvent is a provider-reported detection of a known audio asset.
// PlayedDuration arrives as a string from the provider; parse failures are
// handled by the consumer, not here.
type RecognitionEvent struct {
	Timestamp      time.Time         `json:"timestamp"`
	PlayedDuration string            `json:"played_duration"`
	Title          string            `json:"title"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// DurationSeconds parses the played duration, returning ok=false when the
// provider value is malformed.
func (e *RecognitionEvent) DurationSeconds() (float64, bool) {
	seconds, err := strconv.ParseFloat(e.PlayedDuration, 64)
	if err != nil {
		return 0, false
	}
	return seconds, true
}

// RecognitionBatch is one channel-day of recognition events as delivered by
// the capture side over the message queue.
type RecognitionBatch struct {
	ChannelID string             `json:"channel_id"`
	Date      string             `json:"date"`
	Events    []RecognitionEvent `json:"events"`
}

// TranscriptionJob is the message shape handed to the transcription
// collaborator for segments that require analysis. The consumer decides
// independently whether a job already exists for the segment.
type TranscriptionJob struct {
	SegmentID string    `json:"segment_id"`
	ChannelID string    `json:"channel_id"`
	ClipURL   string    `json:"clip_url,omitempty"`
	Priority  int       `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
}

// TranscriptionJob priority constants
const (
	TranscriptionPriorityLow    = 0
	TranscriptionPriorityNormal = 5
	TranscriptionPriorityHigh   = 10
)

// Run priority constants. Batch-driven runs outrank maintenance sweeps.
const (
	RunPriorityMaintenance = 0
	RunPriorityBatch       = 5
)
