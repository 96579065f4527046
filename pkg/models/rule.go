package models

import "time"

// TitleMappingRule describes a title transition that suppresses analysis
// for a bounded interval. When a segment titled BeforeTitle plays, analysis
// is suppressed until the first following occurrence of AfterTitle, capped
// at the configured suppression duration. An empty AfterTitle suppresses
// only the BeforeTitle segment itself.
type TitleMappingRule struct {
	ID                string    `json:"id" db:"id"`
	ChannelID         string    `json:"channel_id" db:"channel_id"`
	BeforeTitle       string    `json:"before_title" db:"before_title"`
	AfterTitle        string    `json:"after_title,omitempty" db:"after_title"`
	Category          string    `json:"category" db:"category"`
	SkipTranscription bool      `json:"skip_transcription" db:"skip_transcription"`
	IsActive          bool      `json:"is_active" db:"is_active"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}
