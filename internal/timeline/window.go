package timeline

import (
	"fmt"
	"time"

	"github.com/andreyvolkau/airtrail/pkg/models"
)

// Window is a UTC time interval.
type Window struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether [start, end) intersects the window
func (w Window) Overlaps(start, end time.Time) bool {
	return start.Before(w.End) && end.After(w.Start)
}

// LocalDayWindows converts a local time-of-day interval on one local
// calendar day into UTC window(s). When the interval wraps past midnight
// it is split into two windows: the remainder of the day, ending at
// 23:59:59.999999 local, and the head of the next day starting at 00:00.
// Iterating consecutive days and unioning the output reconstructs a
// continuous overnight interval with no double-counted boundary instant.
func LocalDayWindows(startOfDay, endOfDay string, localDate time.Time, loc *time.Location) ([]Window, error) {
	sh, sm, ss, err := models.ParseTimeOfDay(startOfDay)
	if err != nil {
		return nil, fmt.Errorf("failed to parse window start: %w", err)
	}

	eh, em, es, err := models.ParseTimeOfDay(endOfDay)
	if err != nil {
		return nil, fmt.Errorf("failed to parse window end: %w", err)
	}

	year, month, day := localDate.In(loc).Date()
	start := time.Date(year, month, day, sh, sm, ss, 0, loc)

	startSecs := sh*3600 + sm*60 + ss
	endSecs := eh*3600 + em*60 + es

	if startSecs <= endSecs {
		end := time.Date(year, month, day, eh, em, es, 0, loc)
		return []Window{{Start: start.UTC(), End: end.UTC()}}, nil
	}

	// Overnight wrap: close out the current local day one microsecond
	// before midnight and resume at 00:00 the next day.
	endOfCurrentDay := time.Date(year, month, day, 23, 59, 59, 999999000, loc)
	nextDayStart := time.Date(year, month, day+1, 0, 0, 0, 0, loc)
	nextDayEnd := time.Date(year, month, day+1, eh, em, es, 0, loc)

	return []Window{
		{Start: start.UTC(), End: endOfCurrentDay.UTC()},
		{Start: nextDayStart.UTC(), End: nextDayEnd.UTC()},
	}, nil
}
