package timeline

import (
	"context"
	"fmt"
	"time"

	"github.com/andreyvolkau/airtrail/internal/config"
	"github.com/andreyvolkau/airtrail/internal/logging"
	"github.com/andreyvolkau/airtrail/internal/metrics"
	"github.com/andreyvolkau/airtrail/internal/tracing"
	"github.com/andreyvolkau/airtrail/pkg/models"
)

// PipelineRepository is the full persistence surface of one pipeline run.
type PipelineRepository interface {
	MergeRepository
	EligibilityRepository
	InsertSegments(ctx context.Context, segments []*models.Segment) (int, error)
	DeactivateOverlapping(ctx context.Context, channelID string, fresh []*models.Segment, tolerance time.Duration, createdBefore time.Time, keepIDs []string) (int, error)
	GetTimeline(ctx context.Context, channelID string, start, end time.Time) ([]*models.Segment, error)
}

// ConfigSource supplies read-only shift and rule snapshots for a channel.
type ConfigSource interface {
	ChannelShifts(ctx context.Context, channelID string) ([]models.Shift, error)
	ChannelRules(ctx context.Context, channelID string) ([]models.TitleMappingRule, error)
}

// ClipStore locates and presigns audio clips for segments.
type ClipStore interface {
	ClipKey(channelSlug string, start, end time.Time) string
	PresignClip(ctx context.Context, key string) (string, error)
}

// TranscriptionPublisher hands analysis candidates to the transcription
// collaborator. The consumer decides independently whether a job already
// exists for a segment.
type TranscriptionPublisher interface {
	PublishTranscriptionJob(ctx context.Context, job *models.TranscriptionJob) error
}

// Pipeline runs the three sequential stages for one channel: synthesize
// events into a persisted timeline, merge short recognized fragments, and
// decide analysis eligibility. Stages never run concurrently within one
// channel; separate channels run independently.
type Pipeline struct {
	repo        PipelineRepository
	configs     ConfigSource
	clips       ClipStore
	publisher   TranscriptionPublisher
	synthesizer *Synthesizer
	merger      *MergeEngine
	eligibility *EligibilityEngine
	cfg         config.PipelineConfig
	logger      *logging.Logger
}

// NewPipeline wires the three engines over a shared repository.
func NewPipeline(
	repo PipelineRepository,
	configs ConfigSource,
	clips ClipStore,
	publisher TranscriptionPublisher,
	cfg config.PipelineConfig,
	logger *logging.Logger,
) *Pipeline {
	return &Pipeline{
		repo:        repo,
		configs:     configs,
		clips:       clips,
		publisher:   publisher,
		synthesizer: NewSynthesizer(cfg.GapThreshold, logger),
		merger:      NewMergeEngine(repo, cfg.MergeFloor, cfg.MergeAdjacency, logger),
		eligibility: NewEligibilityEngine(repo, cfg.MinAnalysisDuration, cfg.SuppressionCap, logger),
		cfg:         cfg,
		logger:      logger,
	}
}

// Run executes one pipeline run for a channel. An empty event list is a
// valid maintenance run: the merge and eligibility stages still sweep the
// recent persisted timeline.
func (p *Pipeline) Run(ctx context.Context, channel *models.Channel, events []models.RecognitionEvent) error {
	span, ctx := tracing.StartSpan(ctx, "pipeline.run")
	tracing.SetTag(span, "channel_id", channel.ID)
	defer tracing.FinishSpan(span)

	log := p.logger.WithChannelID(channel.ID)
	runStart := time.Now()

	fresh, err := p.synthesizeStage(ctx, channel, events)
	if err != nil {
		metrics.PipelineRunsTotal.WithLabelValues("failed").Inc()
		tracing.LogError(span, err)
		return err
	}

	windowStart, windowEnd := p.runWindow(fresh)
	timeline, err := p.repo.GetTimeline(ctx, channel.ID, windowStart, windowEnd)
	if err != nil {
		metrics.PipelineRunsTotal.WithLabelValues("failed").Inc()
		tracing.LogError(span, err)
		return fmt.Errorf("failed to read timeline: %w", err)
	}

	timeline = p.mergeStage(ctx, channel, timeline)
	timeline = p.eligibilityStage(ctx, channel, timeline)
	p.publishStage(ctx, channel, timeline)

	metrics.PipelineRunsTotal.WithLabelValues("ok").Inc()
	metrics.PipelineRunDuration.Observe(time.Since(runStart).Seconds())
	log.Infof("pipeline run completed in %s over %d segments", time.Since(runStart), len(timeline))

	return nil
}

// synthesizeStage turns events into segments and persists them. Insertion
// is idempotent on the segment's natural clip key; previously persisted
// segments that the fresh set now overlaps are deactivated, except those
// created within the recent-session exemption window.
func (p *Pipeline) synthesizeStage(ctx context.Context, channel *models.Channel, events []models.RecognitionEvent) ([]*models.Segment, error) {
	span, ctx := tracing.StartSpan(ctx, "pipeline.synthesize")
	defer tracing.FinishSpan(span)
	stageStart := time.Now()

	fresh := p.synthesizer.Synthesize(channel, events)
	for _, seg := range fresh {
		seg.ClipPath = p.clips.ClipKey(channel.Slug, seg.StartTime, seg.EndTime)
	}
	metrics.SegmentsSynthesized.Add(float64(len(fresh)))

	if len(fresh) == 0 {
		p.logger.LogPipelineStage(channel.ID, "synthesize", 0, time.Since(stageStart), nil)
		return fresh, nil
	}

	inserted, err := p.repo.InsertSegments(ctx, fresh)
	if err != nil {
		p.logger.LogPipelineStage(channel.ID, "synthesize", len(fresh), time.Since(stageStart), err)
		return nil, fmt.Errorf("failed to insert segments: %w", err)
	}

	keepIDs := make([]string, 0, len(fresh))
	for _, seg := range fresh {
		keepIDs = append(keepIDs, seg.ID)
	}

	exemptionCutoff := time.Now().UTC().Add(-p.cfg.RecentExemption)
	deactivated, err := p.repo.DeactivateOverlapping(ctx, channel.ID, fresh, p.cfg.OverlapTolerance, exemptionCutoff, keepIDs)
	if err != nil {
		// The fresh segments are committed; stale overlaps will be retried
		// by the next run.
		p.logger.WithChannelID(channel.ID).WithError(err).
			Error("failed to deactivate overlapped segments")
	} else if deactivated > 0 {
		p.logger.WithChannelID(channel.ID).
			Infof("deactivated %d previously persisted segments overlapping the new timeline", deactivated)
	}

	p.logger.LogPipelineStage(channel.ID, "synthesize", inserted, time.Since(stageStart), nil)
	metrics.StageDuration.WithLabelValues("synthesize").Observe(time.Since(stageStart).Seconds())

	return fresh, nil
}

func (p *Pipeline) mergeStage(ctx context.Context, channel *models.Channel, timeline []*models.Segment) []*models.Segment {
	span, ctx := tracing.StartSpan(ctx, "pipeline.merge")
	defer tracing.FinishSpan(span)
	stageStart := time.Now()

	before := len(timeline)
	timeline = p.merger.MergeShortRecognizedSegments(ctx, timeline)
	merges := 0
	for _, seg := range timeline {
		if seg.Source == models.SegmentSourceMerged {
			merges++
		}
	}

	metrics.SegmentsMerged.Add(float64(merges))
	p.logger.LogPipelineStage(channel.ID, "merge", before-len(timeline)+merges, time.Since(stageStart), nil)
	metrics.StageDuration.WithLabelValues("merge").Observe(time.Since(stageStart).Seconds())

	return timeline
}

func (p *Pipeline) eligibilityStage(ctx context.Context, channel *models.Channel, timeline []*models.Segment) []*models.Segment {
	span, ctx := tracing.StartSpan(ctx, "pipeline.eligibility")
	defer tracing.FinishSpan(span)
	stageStart := time.Now()

	shifts, err := p.configs.ChannelShifts(ctx, channel.ID)
	if err != nil {
		// Missing shift configuration suppresses everything, which is the
		// safe direction; an error reading it must not.
		p.logger.WithChannelID(channel.ID).WithError(err).
			Error("failed to load shifts, skipping eligibility stage")
		return timeline
	}

	rules, err := p.configs.ChannelRules(ctx, channel.ID)
	if err != nil {
		p.logger.WithChannelID(channel.ID).WithError(err).
			Error("failed to load title rules, skipping eligibility stage")
		return timeline
	}

	timeline = p.eligibility.MarkRequiresAnalysis(ctx, channel, timeline, rules, shifts)

	suppressed := 0
	for _, seg := range timeline {
		if !seg.RequiresAnalysis {
			suppressed++
		}
	}
	metrics.SegmentsSuppressed.Add(float64(suppressed))

	p.logger.LogPipelineStage(channel.ID, "eligibility", len(timeline), time.Since(stageStart), nil)
	metrics.StageDuration.WithLabelValues("eligibility").Observe(time.Since(stageStart).Seconds())

	return timeline
}

// publishStage hands every segment still requiring analysis to the
// transcription collaborator. Failures are per-item; one failed publish
// never aborts the rest of the batch.
func (p *Pipeline) publishStage(ctx context.Context, channel *models.Channel, timeline []*models.Segment) {
	span, ctx := tracing.StartSpan(ctx, "pipeline.publish")
	defer tracing.FinishSpan(span)

	for _, seg := range timeline {
		if !seg.RequiresAnalysis || seg.IsDeleted {
			continue
		}

		clipURL := ""
		if seg.ClipPath != "" {
			url, err := p.clips.PresignClip(ctx, seg.ClipPath)
			if err != nil {
				p.logger.WithSegmentID(seg.ID).WithError(err).
					Warn("failed to presign clip, publishing job without URL")
			} else {
				clipURL = url
			}
		}

		job := &models.TranscriptionJob{
			SegmentID: seg.ID,
			ChannelID: channel.ID,
			ClipURL:   clipURL,
			Priority:  models.TranscriptionPriorityNormal,
			CreatedAt: time.Now().UTC(),
		}

		if err := p.publisher.PublishTranscriptionJob(ctx, job); err != nil {
			p.logger.WithSegmentID(seg.ID).WithError(err).
				Error("failed to publish transcription job")
			continue
		}

		metrics.TranscriptionJobsPublished.Inc()
	}
}

// runWindow picks the timeline slice the merge and eligibility stages
// operate on: the fresh segments' span when events arrived, otherwise the
// trailing day for a maintenance run.
func (p *Pipeline) runWindow(fresh []*models.Segment) (time.Time, time.Time) {
	now := time.Now().UTC()
	if len(fresh) == 0 {
		return now.Add(-24 * time.Hour), now
	}
	return fresh[0].StartTime, fresh[len(fresh)-1].EndTime
}
