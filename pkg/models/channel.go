package models

import "time"

// Channel represents a monitored broadcast channel. All temporal computations
// for a channel's segments use the channel's IANA timezone.
type Channel struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Slug      string    `json:"slug" db:"slug"`
	Timezone  string    `json:"timezone" db:"timezone"`
	StreamURL string    `json:"stream_url,omitempty" db:"stream_url"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Location resolves the channel's IANA timezone, falling back to UTC when
// the configured name does not parse.
func (c *Channel) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
