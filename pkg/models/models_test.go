package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSegmentMetadataValue(t *testing.T) {
	meta := SegmentMetadata{
		"artist": "Some Artist",
		"album":  "Some Album",
	}

	value, err := meta.Value()
	if err != nil {
		t.Fatalf("Failed to get value: %v", err)
	}

	// Value should be JSON
	var result map[string]string
	if err := json.Unmarshal(value.([]byte), &result); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}

	if result["artist"] != "Some Artist" {
		t.Errorf("Expected artist=Some Artist, got %v", result["artist"])
	}
}

func TestSegmentMetadataScan(t *testing.T) {
	jsonData := []byte(`{"artist":"Some Artist","isrc":"USRC17607839"}`)

	var meta SegmentMetadata
	if err := meta.Scan(jsonData); err != nil {
		t.Fatalf("Failed to scan: %v", err)
	}

	if meta["artist"] != "Some Artist" {
		t.Errorf("Expected artist=Some Artist, got %v", meta["artist"])
	}
	if meta["isrc"] != "USRC17607839" {
		t.Errorf("Expected isrc=USRC17607839, got %v", meta["isrc"])
	}
}

func TestSegmentMetadataScanNil(t *testing.T) {
	var meta SegmentMetadata
	if err := meta.Scan(nil); err != nil {
		t.Fatalf("Failed to scan nil: %v", err)
	}

	if len(meta) != 0 {
		t.Error("Expected empty metadata after scanning nil")
	}
}

func TestSegmentOverlaps(t *testing.T) {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	seg := &Segment{
		StartTime: base,
		EndTime:   base.Add(3 * time.Minute),
	}

	tests := []struct {
		name     string
		start    time.Time
		end      time.Time
		expected bool
	}{
		{"fully inside", base.Add(time.Minute), base.Add(2 * time.Minute), true},
		{"overlapping head", base.Add(-time.Minute), base.Add(time.Minute), true},
		{"overlapping tail", base.Add(2 * time.Minute), base.Add(4 * time.Minute), true},
		{"touching end", seg.EndTime, seg.EndTime.Add(time.Minute), false},
		{"touching start", base.Add(-time.Minute), base, false},
		{"disjoint", base.Add(10 * time.Minute), base.Add(11 * time.Minute), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := seg.Overlaps(tt.start, tt.end); got != tt.expected {
				t.Errorf("Overlaps(%s, %s) = %v, expected %v", tt.start, tt.end, got, tt.expected)
			}
		})
	}
}

func TestSegmentDuration(t *testing.T) {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	seg := &Segment{StartTime: base, EndTime: base.Add(185 * time.Second)}

	if seg.Duration() != 185*time.Second {
		t.Errorf("Expected 185s, got %s", seg.Duration())
	}
}

func TestRecognitionEventDurationSeconds(t *testing.T) {
	tests := []struct {
		name     string
		played   string
		expected float64
		ok       bool
	}{
		{"integer seconds", "185", 185, true},
		{"fractional seconds", "12.5", 12.5, true},
		{"zero", "0", 0, true},
		{"empty", "", 0, false},
		{"garbage", "three minutes", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := &RecognitionEvent{PlayedDuration: tt.played}
			got, ok := event.DurationSeconds()
			if ok != tt.ok {
				t.Fatalf("Expected ok=%v, got %v", tt.ok, ok)
			}
			if ok && got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestParseWeekdays(t *testing.T) {
	days, err := ParseWeekdays("monday, Wednesday,friday")
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	if len(days) != 3 {
		t.Fatalf("Expected 3 days, got %d", len(days))
	}
	if !days.Contains(time.Monday) || !days.Contains(time.Wednesday) || !days.Contains(time.Friday) {
		t.Errorf("Missing expected days in %v", days)
	}
	if days.Contains(time.Sunday) {
		t.Error("Sunday should not be in the set")
	}

	if _, err := ParseWeekdays("monday,someday"); err == nil {
		t.Error("Expected error for unknown weekday")
	}

	empty, err := ParseWeekdays("  ")
	if err != nil || empty != nil {
		t.Errorf("Expected empty set for blank input, got %v, %v", empty, err)
	}
}

func TestWeekdaysString(t *testing.T) {
	days := Weekdays{time.Monday, time.Friday}
	if days.String() != "monday,friday" {
		t.Errorf("Expected monday,friday, got %s", days.String())
	}
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		input   string
		hour    int
		minute  int
		second  int
		wantErr bool
	}{
		{"09:30", 9, 30, 0, false},
		{"23:59:59", 23, 59, 59, false},
		{"00:00", 0, 0, 0, false},
		{"24:00", 0, 0, 0, true},
		{"12:60", 0, 0, 0, true},
		{"noonish", 0, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			h, m, s, err := ParseTimeOfDay(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if h != tt.hour || m != tt.minute || s != tt.second {
				t.Errorf("Expected %d:%d:%d, got %d:%d:%d", tt.hour, tt.minute, tt.second, h, m, s)
			}
		})
	}
}

func TestChannelLocation(t *testing.T) {
	channel := &Channel{Timezone: "Europe/Berlin"}
	loc := channel.Location()
	if loc.String() != "Europe/Berlin" {
		t.Errorf("Expected Europe/Berlin, got %s", loc)
	}

	bad := &Channel{Timezone: "Mars/Olympus"}
	if bad.Location() != time.UTC {
		t.Error("Expected UTC fallback for unknown timezone")
	}
}
