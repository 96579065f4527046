package scheduler

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/andreyvolkau/airtrail/internal/logging"
	"github.com/andreyvolkau/airtrail/internal/metrics"
	"github.com/andreyvolkau/airtrail/pkg/models"
)

// Runner executes one pipeline run for a channel
type Runner interface {
	RunChannel(ctx context.Context, channelID string, events []models.RecognitionEvent) error
}

// ChannelProvider lists channels eligible for scheduled maintenance runs
type ChannelProvider interface {
	GetActiveChannels(ctx context.Context) ([]*models.Channel, error)
}

// RunScheduler manages per-channel pipeline runs with priority and a
// concurrency cap. Recognition batches enqueue runs as they arrive; a
// cron tick enqueues maintenance runs for every active channel.
type RunScheduler struct {
	queue         *RunQueue
	mu            sync.RWMutex
	maxConcurrent int
	activeRuns    int
	runner        Runner
	channels      ChannelProvider
	cron          *cron.Cron
	tickSpec      string
	logger        *logging.Logger
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// NewScheduler creates a new run scheduler
func NewScheduler(runner Runner, channels ChannelProvider, tickSpec string, maxConcurrent int, logger *logging.Logger) *RunScheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &RunScheduler{
		queue:         &RunQueue{},
		maxConcurrent: maxConcurrent,
		runner:        runner,
		channels:      channels,
		cron:          cron.New(),
		tickSpec:      tickSpec,
		logger:        logger,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start begins the scheduler loop and the maintenance cron
func (s *RunScheduler) Start() error {
	heap.Init(s.queue)

	if _, err := s.cron.AddFunc(s.tickSpec, s.enqueueMaintenanceRuns); err != nil {
		return fmt.Errorf("failed to register maintenance tick: %w", err)
	}
	s.cron.Start()

	go s.dispatchLoop()

	s.logger.Infof("Run scheduler started (tick: %s, max concurrent: %d)", s.tickSpec, s.maxConcurrent)
	return nil
}

// Stop stops the scheduler and waits for in-flight runs to finish
func (s *RunScheduler) Stop() {
	cronCtx := s.cron.Stop()
	<-cronCtx.Done()
	s.cancel()
	s.wg.Wait()
	s.logger.Info("Run scheduler stopped")
}

// EnqueueRun adds a channel run to the scheduling queue. Runs for the
// same channel already waiting in the queue get their events merged so
// a channel never occupies more than one slot.
func (s *RunScheduler) EnqueueRun(channelID string, events []models.RecognitionEvent, priority int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range *s.queue {
		if item.ChannelID == channelID {
			item.Events = append(item.Events, events...)
			if priority > item.Priority {
				item.Priority = priority
				heap.Fix(s.queue, item.Index)
			}
			return
		}
	}

	heap.Push(s.queue, &RunItem{
		ChannelID: channelID,
		Events:    events,
		Priority:  priority,
		Timestamp: time.Now(),
	})
	metrics.RunQueueDepth.Set(float64(s.queue.Len()))
}

// enqueueMaintenanceRuns schedules an empty-batch run for every active
// channel. Maintenance runs sweep the trailing timeline for segments
// whose eligibility or merge state changed since the last batch.
func (s *RunScheduler) enqueueMaintenanceRuns() {
	channels, err := s.channels.GetActiveChannels(s.ctx)
	if err != nil {
		s.logger.ErrorWithErr("Failed to list channels for maintenance tick", err)
		return
	}

	for _, channel := range channels {
		s.EnqueueRun(channel.ID, nil, models.RunPriorityMaintenance)
	}

	s.logger.Infof("Maintenance tick enqueued %d channel runs", len(channels))
}

// dispatchLoop drains the queue, keeping at most maxConcurrent runs active
func (s *RunScheduler) dispatchLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.dispatch()
		}
	}
}

// dispatch starts queued runs while capacity remains
func (s *RunScheduler) dispatch() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.activeRuns < s.maxConcurrent && s.queue.Len() > 0 {
		item := heap.Pop(s.queue).(*RunItem)
		s.activeRuns++
		metrics.RunsInProgress.Set(float64(s.activeRuns))
		metrics.RunQueueDepth.Set(float64(s.queue.Len()))

		s.wg.Add(1)
		go s.execute(item)
	}
}

// execute runs one channel pipeline and releases its slot
func (s *RunScheduler) execute(item *RunItem) {
	defer s.wg.Done()
	defer s.runCompleted(item.ChannelID)

	log := s.logger.WithChannelID(item.ChannelID)
	log.Debugf("Dispatching run (priority: %d, events: %d)", item.Priority, len(item.Events))

	if err := s.runner.RunChannel(s.ctx, item.ChannelID, item.Events); err != nil {
		log.ErrorWithErr("Channel run failed", err)
	}
}

// runCompleted releases the channel's concurrency slot
func (s *RunScheduler) runCompleted(channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeRuns > 0 {
		s.activeRuns--
	}
	metrics.RunsInProgress.Set(float64(s.activeRuns))

	s.logger.WithChannelID(channelID).Debugf("Run completed (active: %d/%d)", s.activeRuns, s.maxConcurrent)
}

// GetQueueDepth returns the current queue depth
func (s *RunScheduler) GetQueueDepth() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queue.Len()
}

// GetActiveRuns returns the number of runs currently executing
func (s *RunScheduler) GetActiveRuns() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.activeRuns
}

// RunQueue implements a priority queue for channel runs
type RunQueue []*RunItem

// RunItem represents a pending channel run in the queue
type RunItem struct {
	ChannelID string
	Events    []models.RecognitionEvent
	Priority  int
	Timestamp time.Time
	Index     int
}

func (q RunQueue) Len() int { return len(q) }

func (q RunQueue) Less(i, j int) bool {
	// Higher priority first
	if q[i].Priority != q[j].Priority {
		return q[i].Priority > q[j].Priority
	}
	// If same priority, FIFO (earlier timestamp first)
	return q[i].Timestamp.Before(q[j].Timestamp)
}

func (q RunQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].Index = i
	q[j].Index = j
}

func (q *RunQueue) Push(x interface{}) {
	n := len(*q)
	item := x.(*RunItem)
	item.Index = n
	*q = append(*q, item)
}

func (q *RunQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.Index = -1
	*q = old[0 : n-1]
	return item
}
