package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreyvolkau/airtrail/pkg/models"
)

func weekdayShift(id, start, end string, days ...time.Weekday) models.Shift {
	return models.Shift{
		ID:        id,
		StartTime: start,
		EndTime:   end,
		Days:      days,
		IsActive:  true,
	}
}

func TestShiftCalendarDropsInactiveShifts(t *testing.T) {
	inactive := weekdayShift("s1", "06:00", "10:00", time.Monday)
	inactive.IsActive = false

	calendar := NewShiftCalendar([]models.Shift{inactive}, time.UTC)
	assert.False(t, calendar.HasActiveShifts())

	start := time.Date(2026, 3, 9, 7, 0, 0, 0, time.UTC) // a Monday
	assert.False(t, calendar.WithinAny(start, start.Add(time.Hour)))
}

func TestShiftCalendarWithinAny(t *testing.T) {
	// Morning show, weekdays only
	calendar := NewShiftCalendar([]models.Shift{
		weekdayShift("s1", "06:00", "10:00",
			time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday),
	}, time.UTC)

	tests := []struct {
		name     string
		start    time.Time
		expected bool
	}{
		{"weekday inside shift", time.Date(2026, 3, 9, 7, 0, 0, 0, time.UTC), true},
		{"weekday before shift", time.Date(2026, 3, 9, 5, 0, 0, 0, time.UTC), false},
		{"weekday after shift", time.Date(2026, 3, 9, 11, 0, 0, 0, time.UTC), false},
		{"saturday inside hours", time.Date(2026, 3, 14, 7, 0, 0, 0, time.UTC), false},
		{"straddling shift start", time.Date(2026, 3, 9, 5, 30, 0, 0, time.UTC), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, calendar.WithinAny(tt.start, tt.start.Add(time.Hour)))
		})
	}
}

func TestShiftCalendarOvernightShift(t *testing.T) {
	// Night show Tuesday 22:00 through Wednesday 06:00
	calendar := NewShiftCalendar([]models.Shift{
		weekdayShift("s1", "22:00", "06:00", time.Tuesday),
	}, time.UTC)

	// March 10 2026 is a Tuesday
	lateNight := time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
	assert.True(t, calendar.WithinAny(lateNight, lateNight.Add(time.Minute)))

	earlyWednesday := time.Date(2026, 3, 11, 3, 0, 0, 0, time.UTC)
	assert.True(t, calendar.WithinAny(earlyWednesday, earlyWednesday.Add(time.Minute)),
		"the wrapped tail belongs to Tuesday's shift")

	wednesdayEvening := time.Date(2026, 3, 11, 23, 0, 0, 0, time.UTC)
	assert.False(t, calendar.WithinAny(wednesdayEvening, wednesdayEvening.Add(time.Minute)),
		"Wednesday has no shift of its own")
}

func TestShiftCalendarOvernightTailAfterMidnight(t *testing.T) {
	calendar := NewShiftCalendar([]models.Shift{
		weekdayShift("s1", "22:00", "06:00", time.Tuesday),
	}, time.UTC)

	// A range that begins inside the wrapped half, after midnight, must
	// still resolve against Tuesday's shift.
	start := time.Date(2026, 3, 11, 2, 0, 0, 0, time.UTC) // Wednesday 02:00

	windows := calendar.Windows(start, start.Add(time.Hour))
	require.NotEmpty(t, windows)
	assert.True(t, calendar.WithinAny(start, start.Add(time.Hour)))
}

func TestShiftCalendarLocalWeekday(t *testing.T) {
	auckland, err := time.LoadLocation("Pacific/Auckland")
	require.NoError(t, err)

	// Monday-only shift evaluated in a timezone far ahead of UTC
	calendar := NewShiftCalendar([]models.Shift{
		weekdayShift("s1", "09:00", "17:00", time.Monday),
	}, auckland)

	// 2026-03-08 22:00 UTC is Monday 2026-03-09 11:00 in Auckland (UTC+13)
	mondayLocal := time.Date(2026, 3, 8, 22, 0, 0, 0, time.UTC)
	assert.True(t, calendar.WithinAny(mondayLocal, mondayLocal.Add(time.Hour)))
}

func TestShiftCalendarWindowsForShift(t *testing.T) {
	calendar := NewShiftCalendar([]models.Shift{
		weekdayShift("s1", "06:00", "10:00", time.Monday),
		weekdayShift("s2", "12:00", "14:00", time.Monday),
	}, time.UTC)

	rangeStart := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	rangeEnd := rangeStart.Add(24 * time.Hour)

	windows := calendar.WindowsForShift("s2", rangeStart, rangeEnd)
	require.Len(t, windows, 1)
	assert.Equal(t, time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC), windows[0].Start)

	assert.Nil(t, calendar.WindowsForShift("missing", rangeStart, rangeEnd))
}
