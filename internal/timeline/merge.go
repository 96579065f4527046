package timeline

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/andreyvolkau/airtrail/internal/logging"
	"github.com/andreyvolkau/airtrail/pkg/models"
)

// MergeRepository is the persistence surface the merge engine needs.
type MergeRepository interface {
	CreateSegment(ctx context.Context, segment *models.Segment) error
	SoftDeleteSegments(ctx context.Context, ids []string) error
	HasMergeAudit(ctx context.Context, mergedSegmentID string, sourceIDs []string) (bool, error)
	AppendMergeAudit(ctx context.Context, entry *models.MergeAuditEntry) error
}

// MergeEngine collapses short recognized segments into their immediate
// neighbors. One invocation makes a single left-to-right pass; it never
// chain-merges across a candidate already consumed in the same pass, and
// never merges across a real gap.
type MergeEngine struct {
	repo      MergeRepository
	floor     time.Duration
	adjacency time.Duration
	logger    *logging.Logger
}

// NewMergeEngine creates a merge engine. floor is the duration below which
// a recognized segment becomes a merge candidate; adjacency is the maximum
// gap between candidate and neighbor.
func NewMergeEngine(repo MergeRepository, floor, adjacency time.Duration, logger *logging.Logger) *MergeEngine {
	return &MergeEngine{
		repo:      repo,
		floor:     floor,
		adjacency: adjacency,
		logger:    logger,
	}
}

// MergeShortRecognizedSegments runs one merge pass over the channel's
// segments, which must be sorted ascending by start time. It returns the
// surviving segments plus newly created merged segments, re-sorted.
// Deactivated segments are never candidates or neighbors. Persistence
// failures for one merge are logged and skipped; the pass continues with
// the next candidate.
func (e *MergeEngine) MergeShortRecognizedSegments(ctx context.Context, segments []*models.Segment) []*models.Segment {
	consumed := make(map[int]bool, len(segments))
	var created []*models.Segment

	for i, seg := range segments {
		if consumed[i] || !e.isCandidate(seg) {
			continue
		}

		constituents := []int{i}
		if j := i - 1; j >= 0 && e.qualifies(segments, j, consumed) && e.adjacent(segments[j], seg) {
			constituents = append([]int{j}, constituents...)
		}
		if j := i + 1; j < len(segments) && e.qualifies(segments, j, consumed) && e.adjacent(seg, segments[j]) {
			constituents = append(constituents, j)
		}

		if len(constituents) == 1 {
			e.logger.WithChannelID(seg.ChannelID).WithSegmentID(seg.ID).
				Debug("short recognized segment has no adjacent neighbor, leaving unmerged")
			continue
		}

		merged := e.persistMerge(ctx, segments, constituents)
		if merged == nil {
			continue
		}

		for _, idx := range constituents {
			consumed[idx] = true
		}
		created = append(created, merged)
	}

	result := make([]*models.Segment, 0, len(segments)+len(created))
	for _, seg := range segments {
		if !seg.IsDeleted {
			result = append(result, seg)
		}
	}
	result = append(result, created...)

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime.Before(result[j].StartTime)
	})

	return result
}

func (e *MergeEngine) isCandidate(seg *models.Segment) bool {
	if seg.Source == models.SegmentSourceMerged || seg.IsDeleted || !seg.IsActive {
		return false
	}
	return seg.IsRecognized && seg.Duration() < e.floor
}

func (e *MergeEngine) qualifies(segments []*models.Segment, idx int, consumed map[int]bool) bool {
	if consumed[idx] {
		return false
	}
	seg := segments[idx]
	return seg.Source != models.SegmentSourceMerged && !seg.IsDeleted && seg.IsActive
}

// adjacent reports whether the gap between an earlier and a later segment
// is within tolerance. Overlapping segments count as adjacent.
func (e *MergeEngine) adjacent(earlier, later *models.Segment) bool {
	return later.StartTime.Sub(earlier.EndTime) <= e.adjacency
}

// persistMerge builds the merged segment for the given constituent
// indices, soft-deletes the constituents, and writes a deduplicated audit
// entry. Returns nil when the merge is a no-op or persistence fails.
func (e *MergeEngine) persistMerge(ctx context.Context, segments []*models.Segment, constituents []int) *models.Segment {
	parts := make([]*models.Segment, 0, len(constituents))
	for _, idx := range constituents {
		part := segments[idx]
		if part.Source == models.SegmentSourceMerged || part.IsDeleted || !part.IsActive {
			// Someone already folded or superseded this segment;
			// repeating the merge would duplicate the replacement.
			e.logger.WithChannelID(part.ChannelID).WithSegmentID(part.ID).
				Warn("merge constituent no longer live, skipping merge")
			return nil
		}
		parts = append(parts, part)
	}

	merged := e.buildMerged(parts)

	if err := e.repo.CreateSegment(ctx, merged); err != nil {
		e.logger.WithChannelID(merged.ChannelID).WithError(err).
			Error("failed to persist merged segment")
		return nil
	}

	sourceIDs := make([]string, 0, len(parts))
	for _, part := range parts {
		sourceIDs = append(sourceIDs, part.ID)
	}
	sort.Strings(sourceIDs)

	if err := e.repo.SoftDeleteSegments(ctx, sourceIDs); err != nil {
		e.logger.WithChannelID(merged.ChannelID).WithError(err).
			Error("failed to soft-delete merge constituents")
		// Take the replacement back out so the constituents stay the
		// canonical rows and the span does not end up covered twice.
		if delErr := e.repo.SoftDeleteSegments(ctx, []string{merged.ID}); delErr != nil {
			e.logger.WithChannelID(merged.ChannelID).WithSegmentID(merged.ID).WithError(delErr).
				Error("failed to remove orphaned merged segment")
		}
		return nil
	}

	for _, part := range parts {
		part.IsDeleted = true
		part.IsActive = false
	}

	e.writeAudit(ctx, merged.ID, sourceIDs)

	return merged
}

func (e *MergeEngine) buildMerged(parts []*models.Segment) *models.Segment {
	first, last := parts[0], parts[len(parts)-1]

	start, end := first.StartTime, first.EndTime
	allRecognized := true
	longest := first

	for _, part := range parts {
		if part.StartTime.Before(start) {
			start = part.StartTime
		}
		if part.EndTime.After(end) {
			end = part.EndTime
		}
		if !part.IsRecognized {
			allRecognized = false
		}
		if part.Duration() > longest.Duration() {
			longest = part
		}
	}

	merged := &models.Segment{
		ID:              uuid.New().String(),
		ChannelID:       first.ChannelID,
		StartTime:       start,
		EndTime:         end,
		DurationSeconds: end.Sub(start).Seconds(),
		IsActive:        true,
		Source:          models.SegmentSourceMerged,
	}

	if allRecognized {
		merged.IsRecognized = true
		merged.Title = longest.Title
		merged.Metadata = longest.Metadata
	} else {
		merged.IsRecognized = false
		merged.TitleBefore = boundaryTitle(first)
		merged.TitleAfter = boundaryTitleAfter(last)
	}

	return merged
}

// writeAudit records the merge in the audit log unless an identical entry
// already exists for the same merged segment and source set.
func (e *MergeEngine) writeAudit(ctx context.Context, mergedID string, sourceIDs []string) {
	exists, err := e.repo.HasMergeAudit(ctx, mergedID, sourceIDs)
	if err != nil {
		e.logger.WithError(err).Error("failed to check merge audit log")
		return
	}
	if exists {
		return
	}

	entry := &models.MergeAuditEntry{
		ID:               uuid.New().String(),
		MergedSegmentID:  mergedID,
		SourceSegmentIDs: sourceIDs,
		CreatedAt:        time.Now().UTC(),
	}

	if err := e.repo.AppendMergeAudit(ctx, entry); err != nil {
		e.logger.WithError(err).Error("failed to write merge audit entry")
	}
}

func boundaryTitle(seg *models.Segment) string {
	if seg.IsRecognized {
		return seg.Title
	}
	return seg.TitleBefore
}

func boundaryTitleAfter(seg *models.Segment) string {
	if seg.IsRecognized {
		return seg.Title
	}
	return seg.TitleAfter
}
