package timeline

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/andreyvolkau/airtrail/internal/logging"
	"github.com/andreyvolkau/airtrail/pkg/models"
)

// Synthesizer converts sparse, possibly-overlapping recognition events into
// a complete ordered segment timeline with synthesized gap segments. It is
// a pure function of its input: re-running it over the same event list
// yields the same accepted/discarded decisions.
type Synthesizer struct {
	gapThreshold time.Duration
	logger       *logging.Logger
}

// NewSynthesizer creates a synthesizer. gapThreshold is the minimum
// trailing extension a partially overlapping event must contribute beyond
// an already accepted interval to be kept.
func NewSynthesizer(gapThreshold time.Duration, logger *logging.Logger) *Synthesizer {
	return &Synthesizer{
		gapThreshold: gapThreshold,
		logger:       logger,
	}
}

// Synthesize produces the full candidate segment set for one channel:
// accepted recognized segments plus synthesized unrecognized gap segments,
// sorted by start time. Persistence and dedup against previously stored
// segments belong to the caller.
func (s *Synthesizer) Synthesize(channel *models.Channel, events []models.RecognitionEvent) []*models.Segment {
	recognized := s.acceptRecognized(channel, events)

	sort.Slice(recognized, func(i, j int) bool {
		return recognized[i].StartTime.Before(recognized[j].StartTime)
	})

	segments := make([]*models.Segment, 0, 2*len(recognized))
	segments = append(segments, recognized...)

	// Fill every positive gap between adjacent recognized segments.
	// Touching boundaries produce nothing.
	for i := 0; i+1 < len(recognized); i++ {
		current, next := recognized[i], recognized[i+1]
		if next.StartTime.After(current.EndTime) {
			segments = append(segments, s.gapSegment(channel, current, next))
		}
	}

	sort.Slice(segments, func(i, j int) bool {
		return segments[i].StartTime.Before(segments[j].StartTime)
	})

	return segments
}

// acceptRecognized applies the overlap-resolution policy to the raw events
// in arrival order.
func (s *Synthesizer) acceptRecognized(channel *models.Channel, events []models.RecognitionEvent) []*models.Segment {
	var accepted []*models.Segment

	for _, event := range events {
		seconds, ok := event.DurationSeconds()
		if !ok {
			s.logger.LogSegmentSkipped(channel.ID, "malformed_duration", map[string]interface{}{
				"title":    event.Title,
				"duration": event.PlayedDuration,
			})
			continue
		}

		if seconds <= 0 {
			s.logger.LogSegmentSkipped(channel.ID, "zero_duration", map[string]interface{}{
				"title": event.Title,
			})
			continue
		}

		start := event.Timestamp.UTC()
		end := start.Add(time.Duration(seconds * float64(time.Second)))

		if !s.accepts(start, end, accepted) {
			s.logger.WithChannelID(channel.ID).
				Debugf("discarding overlapping recognition %q at %s", event.Title, start.Format(time.RFC3339))
			continue
		}

		accepted = append(accepted, &models.Segment{
			ID:              uuid.New().String(),
			ChannelID:       channel.ID,
			StartTime:       start,
			EndTime:         end,
			DurationSeconds: end.Sub(start).Seconds(),
			IsRecognized:    true,
			Title:           event.Title,
			IsActive:        true,
			Source:          models.SegmentSourceRecognition,
			Metadata:        event.Metadata,
		})
	}

	return accepted
}

// accepts decides whether a candidate interval contributes information not
// already captured by previously accepted intervals:
//   - fully contained in an accepted interval: no
//   - partial overlap extending past the covered end by at least the
//     threshold: yes
//   - partial overlap extending by less than the threshold: no
//   - no overlap at all: yes
func (s *Synthesizer) accepts(start, end time.Time, accepted []*models.Segment) bool {
	overlapped := false
	coveredEnd := time.Time{}

	for _, seg := range accepted {
		if !seg.Overlaps(start, end) {
			continue
		}
		overlapped = true

		if !start.Before(seg.StartTime) && !end.After(seg.EndTime) {
			// Fully contained
			return false
		}

		if seg.EndTime.After(coveredEnd) {
			coveredEnd = seg.EndTime
		}
	}

	if !overlapped {
		return true
	}

	return end.Sub(coveredEnd) >= s.gapThreshold
}

func (s *Synthesizer) gapSegment(channel *models.Channel, before, after *models.Segment) *models.Segment {
	return &models.Segment{
		ID:              uuid.New().String(),
		ChannelID:       channel.ID,
		StartTime:       before.EndTime,
		EndTime:         after.StartTime,
		DurationSeconds: after.StartTime.Sub(before.EndTime).Seconds(),
		IsRecognized:    false,
		TitleBefore:     before.Title,
		TitleAfter:      after.Title,
		IsActive:        true,
		Source:          models.SegmentSourceRecognition,
	}
}
