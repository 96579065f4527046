package timeline

import (
	"time"

	"github.com/andreyvolkau/airtrail/pkg/models"
)

// ShiftCalendar answers shift-membership questions for one channel. It is
// built from a read-only snapshot of the channel's shift configuration so
// engine invocations stay deterministic.
type ShiftCalendar struct {
	shifts []models.Shift
	loc    *time.Location
}

// NewShiftCalendar creates a calendar from the channel's shifts. Inactive
// shifts are dropped at construction time.
func NewShiftCalendar(shifts []models.Shift, loc *time.Location) *ShiftCalendar {
	if loc == nil {
		loc = time.UTC
	}

	active := make([]models.Shift, 0, len(shifts))
	for _, shift := range shifts {
		if shift.IsActive {
			active = append(active, shift)
		}
	}

	return &ShiftCalendar{shifts: active, loc: loc}
}

// HasActiveShifts reports whether any shift survived construction. A
// channel with zero active shifts treats every instant as out-of-shift.
func (c *ShiftCalendar) HasActiveShifts() bool {
	return len(c.shifts) > 0
}

// Windows expands every shift into its UTC windows across all local
// calendar days the given UTC range spans. Days whose local weekday is
// not in a shift's day set contribute nothing for that shift.
func (c *ShiftCalendar) Windows(rangeStart, rangeEnd time.Time) []Window {
	var windows []Window
	for _, shift := range c.shifts {
		windows = append(windows, c.windowsForShift(shift, rangeStart, rangeEnd)...)
	}
	return windows
}

// WindowsForShift expands a single shift over the range; used to build
// OR-combined bulk query predicates.
func (c *ShiftCalendar) WindowsForShift(shiftID string, rangeStart, rangeEnd time.Time) []Window {
	for _, shift := range c.shifts {
		if shift.ID == shiftID {
			return c.windowsForShift(shift, rangeStart, rangeEnd)
		}
	}
	return nil
}

func (c *ShiftCalendar) windowsForShift(shift models.Shift, rangeStart, rangeEnd time.Time) []Window {
	var windows []Window

	localStart := rangeStart.In(c.loc)
	localEnd := rangeEnd.In(c.loc)

	year, month, day := localStart.Date()
	// Start one day early so the post-midnight tail of an overnight
	// shift anchored on the previous weekday is still covered when the
	// range begins after midnight. Windows outside the range are
	// harmless, overlap checks filter them.
	current := time.Date(year, month, day, 0, 0, 0, 0, c.loc).AddDate(0, 0, -1)

	for !current.After(localEnd) {
		if shift.Days.Contains(current.Weekday()) {
			dayWindows, err := LocalDayWindows(shift.StartTime, shift.EndTime, current, c.loc)
			if err == nil {
				windows = append(windows, dayWindows...)
			}
		}
		current = current.AddDate(0, 0, 1)
	}

	return windows
}

// WithinAny reports whether [start, end) overlaps any active shift window.
func (c *ShiftCalendar) WithinAny(start, end time.Time) bool {
	if !c.HasActiveShifts() {
		return false
	}

	for _, window := range c.Windows(start, end) {
		if window.Overlaps(start, end) {
			return true
		}
	}

	return false
}
