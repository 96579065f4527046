package models

import (
	"fmt"
	"strings"
	"time"
)

// Shift represents a recurring, weekday-scoped, timezone-local time-of-day
// window used to gate analysis eligibility. Start and End are local
// times of day in "HH:MM" form; End before Start means the shift wraps
// past midnight.
type Shift struct {
	ID        string    `json:"id" db:"id"`
	ChannelID string    `json:"channel_id" db:"channel_id"`
	Name      string    `json:"name" db:"name"`
	StartTime string    `json:"start_time" db:"start_time"`
	EndTime   string    `json:"end_time" db:"end_time"`
	Days      Weekdays  `json:"days" db:"days"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Weekdays is a set of weekdays stored as a comma-separated list of
// lowercase day names ("monday,tuesday").
type Weekdays []time.Weekday

var dayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekdays parses a comma-separated list of day names
func ParseWeekdays(s string) (Weekdays, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	var days Weekdays
	for _, part := range strings.Split(s, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		day, ok := dayNames[name]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", part)
		}
		days = append(days, day)
	}

	return days, nil
}

// Contains reports whether the set includes the given weekday
func (w Weekdays) Contains(day time.Weekday) bool {
	for _, d := range w {
		if d == day {
			return true
		}
	}
	return false
}

// String returns the comma-separated lowercase day names
func (w Weekdays) String() string {
	names := make([]string, 0, len(w))
	for _, d := range w {
		names = append(names, strings.ToLower(d.String()))
	}
	return strings.Join(names, ",")
}

// ParseTimeOfDay parses a local "HH:MM" or "HH:MM:SS" time of day into
// hour, minute, and second components.
func ParseTimeOfDay(s string) (hour, minute, second int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, 0, 0, fmt.Errorf("invalid time of day %q", s)
	}

	if _, err := fmt.Sscanf(parts[0], "%d", &hour); err != nil || hour < 0 || hour > 23 {
		return 0, 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	if _, err := fmt.Sscanf(parts[1], "%d", &minute); err != nil || minute < 0 || minute > 59 {
		return 0, 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	if len(parts) == 3 {
		if _, err := fmt.Sscanf(parts[2], "%d", &second); err != nil || second < 0 || second > 59 {
			return 0, 0, 0, fmt.Errorf("invalid second in %q", s)
		}
	}

	return hour, minute, second, nil
}
