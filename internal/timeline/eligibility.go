package timeline

import (
	"context"
	"sort"
	"time"

	"github.com/andreyvolkau/airtrail/internal/logging"
	"github.com/andreyvolkau/airtrail/pkg/models"
)

// EligibilityRepository is the persistence surface the eligibility engine
// needs.
type EligibilityRepository interface {
	UpdateSegmentTitle(ctx context.Context, segmentID, title string) error
	UpdateRequiresAnalysis(ctx context.Context, ids []string, requires bool) error
	DeactivateSegments(ctx context.Context, ids []string) error
}

// EligibilityEngine annotates each segment with a requires-analysis
// decision. Every rule only ever suppresses; nothing re-enables a segment
// once a rule has marked it ineligible.
type EligibilityEngine struct {
	repo           EligibilityRepository
	minDuration    time.Duration
	suppressionCap time.Duration
	logger         *logging.Logger
}

// NewEligibilityEngine creates an eligibility engine. minDuration is the
// floor below which unrecognized segments are never analyzed;
// suppressionCap bounds title-rule suppression intervals.
func NewEligibilityEngine(repo EligibilityRepository, minDuration, suppressionCap time.Duration, logger *logging.Logger) *EligibilityEngine {
	return &EligibilityEngine{
		repo:           repo,
		minDuration:    minDuration,
		suppressionCap: suppressionCap,
		logger:         logger,
	}
}

// MarkRequiresAnalysis evaluates the channel's sorted timeline against the
// immediate duration/recognition rules, the title-mapping suppression
// intervals, and shift membership, then persists the decisions:
// requires_analysis on every segment and is_active=false on suppressed
// ones. The input slice is annotated in place and returned.
func (e *EligibilityEngine) MarkRequiresAnalysis(
	ctx context.Context,
	channel *models.Channel,
	segments []*models.Segment,
	rules []models.TitleMappingRule,
	shifts []models.Shift,
) []*models.Segment {
	if len(segments) == 0 {
		return segments
	}

	sort.Slice(segments, func(i, j int) bool {
		return segments[i].StartTime.Before(segments[j].StartTime)
	})

	for _, seg := range segments {
		seg.RequiresAnalysis = e.initialDecision(seg)
	}

	activeRules := filterActiveRules(rules, channel.ID)
	e.applyTitleRules(ctx, segments, activeRules)
	e.applyShiftFilter(channel, segments, shifts)
	e.finalize(ctx, channel, segments)

	return segments
}

// initialDecision applies the immediate rules: recognized segments and
// short unrecognized segments are never analyzed. A segment whose duration
// cannot be determined keeps the eligible default.
func (e *EligibilityEngine) initialDecision(seg *models.Segment) bool {
	if seg.IsRecognized {
		return false
	}

	duration := seg.Duration()
	if duration <= 0 && seg.DurationSeconds > 0 {
		duration = time.Duration(seg.DurationSeconds * float64(time.Second))
	}
	if duration <= 0 {
		// Unknown duration keeps the default rather than failing the batch
		return true
	}

	return duration >= e.minDuration
}

// applyTitleRules builds the suppression intervals for every rule with
// skip-transcription set, merges them, and suppresses overlapping
// segments. Independently of suppression, the rename side-effect rewrites
// the title of the single segment following each before-title occurrence
// when that segment is unrecognized.
func (e *EligibilityEngine) applyTitleRules(ctx context.Context, segments []*models.Segment, rules []models.TitleMappingRule) {
	if len(rules) == 0 {
		return
	}

	titleIndex := buildTitleIndex(segments)

	var intervals []Window
	for _, rule := range rules {
		if rule.SkipTranscription {
			intervals = append(intervals, e.ruleIntervals(segments, titleIndex, rule)...)
		}
		e.renameFollowers(ctx, segments, titleIndex, rule)
	}

	for _, interval := range mergeIntervals(intervals) {
		for _, seg := range segments {
			// Start-inclusive on the interval end so a segment beginning
			// exactly at the boundary is still suppressed
			if !seg.StartTime.After(interval.End) && seg.EndTime.After(interval.Start) {
				seg.RequiresAnalysis = false
			}
		}
	}
}

// ruleIntervals computes the suppression intervals one rule contributes.
// With no after-title, each before-title segment suppresses exactly its
// own span. Otherwise each before-title occurrence opens an interval that
// closes at the first later after-title occurrence or at the cap,
// whichever comes first.
func (e *EligibilityEngine) ruleIntervals(segments []*models.Segment, titleIndex map[string][]int, rule models.TitleMappingRule) []Window {
	var intervals []Window

	if rule.AfterTitle == "" {
		for _, idx := range titleIndex[rule.BeforeTitle] {
			seg := segments[idx]
			intervals = append(intervals, Window{Start: seg.StartTime, End: seg.EndTime})
		}
		return intervals
	}

	afterIndices := titleIndex[rule.AfterTitle]

	for _, before := range titleIndex[rule.BeforeTitle] {
		start := segments[before].StartTime
		end := start.Add(e.suppressionCap)

		// First after-title occurrence in strict timeline order
		for _, after := range afterIndices {
			if after > before {
				if segments[after].StartTime.Before(end) {
					end = segments[after].StartTime
				}
				break
			}
		}

		if end.After(start) {
			intervals = append(intervals, Window{Start: start, End: end})
		}
	}

	return intervals
}

// renameFollowers rewrites the title of the segment immediately after each
// before-title occurrence to the rule's category, when that segment is not
// itself recognized. Only the single next segment is renamed, never a
// chain.
func (e *EligibilityEngine) renameFollowers(ctx context.Context, segments []*models.Segment, titleIndex map[string][]int, rule models.TitleMappingRule) {
	if rule.Category == "" {
		return
	}

	for _, before := range titleIndex[rule.BeforeTitle] {
		next := before + 1
		if next >= len(segments) || segments[next].IsRecognized {
			continue
		}

		seg := segments[next]
		if seg.Title == rule.Category {
			continue
		}

		seg.Title = rule.Category
		if err := e.repo.UpdateSegmentTitle(ctx, seg.ID, rule.Category); err != nil {
			e.logger.WithSegmentID(seg.ID).WithError(err).
				Error("failed to persist renamed segment title")
		}
	}
}

// applyShiftFilter suppresses every segment whose interval does not
// overlap an active shift window. A channel with no active shifts
// suppresses all of its segments.
func (e *EligibilityEngine) applyShiftFilter(channel *models.Channel, segments []*models.Segment, shifts []models.Shift) {
	calendar := NewShiftCalendar(shifts, channel.Location())

	if !calendar.HasActiveShifts() {
		for _, seg := range segments {
			seg.RequiresAnalysis = false
		}
		return
	}

	windows := calendar.Windows(segments[0].StartTime, segments[len(segments)-1].EndTime)

	for _, seg := range segments {
		if !seg.RequiresAnalysis {
			continue
		}

		inShift := false
		for _, window := range windows {
			if window.Overlaps(seg.StartTime, seg.EndTime) {
				inShift = true
				break
			}
		}
		if !inShift {
			seg.RequiresAnalysis = false
		}
	}
}

// finalize persists the decisions: requires_analysis on every segment, and
// bulk deactivation of the suppressed set. Untouched segments keep their
// existing is_active.
func (e *EligibilityEngine) finalize(ctx context.Context, channel *models.Channel, segments []*models.Segment) {
	var eligible, suppressed []string
	for _, seg := range segments {
		if seg.RequiresAnalysis {
			eligible = append(eligible, seg.ID)
		} else {
			suppressed = append(suppressed, seg.ID)
		}
	}

	if len(eligible) > 0 {
		if err := e.repo.UpdateRequiresAnalysis(ctx, eligible, true); err != nil {
			e.logger.WithChannelID(channel.ID).WithError(err).
				Error("failed to persist requires_analysis for eligible segments")
		}
	}

	if len(suppressed) > 0 {
		if err := e.repo.UpdateRequiresAnalysis(ctx, suppressed, false); err != nil {
			e.logger.WithChannelID(channel.ID).WithError(err).
				Error("failed to persist requires_analysis for suppressed segments")
		}
		if err := e.repo.DeactivateSegments(ctx, suppressed); err != nil {
			e.logger.WithChannelID(channel.ID).WithError(err).
				Error("failed to deactivate suppressed segments")
		}
	}
}

func filterActiveRules(rules []models.TitleMappingRule, channelID string) []models.TitleMappingRule {
	active := make([]models.TitleMappingRule, 0, len(rules))
	for _, rule := range rules {
		if rule.IsActive && rule.ChannelID == channelID && rule.BeforeTitle != "" {
			active = append(active, rule)
		}
	}
	return active
}

// buildTitleIndex maps each title to the indices of the segments carrying
// it, in timeline order. The input must already be sorted by start time.
func buildTitleIndex(segments []*models.Segment) map[string][]int {
	index := make(map[string][]int)
	for i, seg := range segments {
		if seg.Title != "" {
			index[seg.Title] = append(index[seg.Title], i)
		}
	}
	return index
}

// mergeIntervals unions a set of possibly-overlapping windows into a
// minimal sorted set.
func mergeIntervals(intervals []Window) []Window {
	if len(intervals) <= 1 {
		return intervals
	}

	sort.Slice(intervals, func(i, j int) bool {
		return intervals[i].Start.Before(intervals[j].Start)
	})

	merged := []Window{intervals[0]}
	for _, interval := range intervals[1:] {
		last := &merged[len(merged)-1]
		if !interval.Start.After(last.End) {
			if interval.End.After(last.End) {
				last.End = interval.End
			}
			continue
		}
		merged = append(merged, interval)
	}

	return merged
}
