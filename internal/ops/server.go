package ops

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andreyvolkau/airtrail/internal/cache"
	"github.com/andreyvolkau/airtrail/internal/logging"
	"github.com/andreyvolkau/airtrail/internal/timeline"
	"github.com/andreyvolkau/airtrail/pkg/models"
)

// Repository is the read-only database surface the ops server exposes
type Repository interface {
	Health(ctx context.Context) error
	GetActiveChannels(ctx context.Context) ([]*models.Channel, error)
	GetChannel(ctx context.Context, id string) (*models.Channel, error)
	GetChannelShifts(ctx context.Context, channelID string) ([]models.Shift, error)
	GetTimeline(ctx context.Context, channelID string, start, end time.Time) ([]*models.Segment, error)
	GetSegmentsInShiftWindows(ctx context.Context, channelID string, windows []timeline.Window) ([]*models.Segment, error)
	GetMergeAuditForSegment(ctx context.Context, mergedSegmentID string) ([]*models.MergeAuditEntry, error)
}

// QueueInspector reports queue depths for readiness and status endpoints
type QueueInspector interface {
	GetQueueDepth(name string) (int, error)
	GetDLQDepth() (int, error)
}

// Server is the read-only operational HTTP surface: health, readiness
// and per-channel pipeline status. It never mutates pipeline state.
type Server struct {
	repo      Repository
	cache     *cache.Cache
	inspector QueueInspector
	logger    *logging.Logger
	srv       *http.Server
}

// NewServer creates an ops server listening on the given address
func NewServer(addr string, repo Repository, c *cache.Cache, inspector QueueInspector, logger *logging.Logger) *Server {
	s := &Server{
		repo:      repo,
		cache:     c,
		inspector: inspector,
		logger:    logger,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", s.health)
	router.GET("/ready", s.ready)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/channels", s.listChannels)
		v1.GET("/channels/:id/status", s.channelStatus)
		v1.GET("/channels/:id/timeline", s.channelTimeline)
		v1.GET("/channels/:id/shift-segments", s.channelShiftSegments)
		v1.GET("/segments/:id/audit", s.segmentAudit)
	}

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

// Start runs the server until Shutdown is called
func (s *Server) Start() error {
	s.logger.Infof("Starting ops server on %s", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("ops server failed: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// ready reports whether the database and cache are reachable
func (s *Server) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := s.repo.Health(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}

	if s.cache != nil {
		if err := s.cache.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) listChannels(c *gin.Context) {
	channels, err := s.repo.GetActiveChannels(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"channels": channels})
}

// channelStatus reports the channel's last pipeline run and the current
// recognition and dead-letter queue depths
func (s *Server) channelStatus(c *gin.Context) {
	channelID := c.Param("id")

	channel, err := s.repo.GetChannel(c.Request.Context(), channelID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Channel not found"})
		return
	}

	status := gin.H{
		"channel_id": channel.ID,
		"name":       channel.Name,
		"timezone":   channel.Timezone,
	}

	if s.cache != nil {
		marker, err := s.cache.GetRunMarker(c.Request.Context(), channelID)
		if err == nil && marker != nil {
			status["last_run"] = marker
		}
	}

	if s.inspector != nil {
		if depth, err := s.inspector.GetQueueDepth("recognition_batches"); err == nil {
			status["recognition_queue_depth"] = depth
		}
		if depth, err := s.inspector.GetDLQDepth(); err == nil {
			status["dlq_depth"] = depth
		}
	}

	c.JSON(http.StatusOK, status)
}

// channelTimeline returns the channel's active segments within the
// requested range, defaulting to the trailing 24 hours
func (s *Server) channelTimeline(c *gin.Context) {
	channelID := c.Param("id")

	end := time.Now().UTC()
	start := end.Add(-24 * time.Hour)

	if from := c.Query("from"); from != "" {
		parsed, err := time.Parse(time.RFC3339, from)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'from' timestamp, expected RFC3339"})
			return
		}
		start = parsed
	}
	if to := c.Query("to"); to != "" {
		parsed, err := time.Parse(time.RFC3339, to)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'to' timestamp, expected RFC3339"})
			return
		}
		end = parsed
	}
	if !end.After(start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "'to' must be after 'from'"})
		return
	}

	segments, err := s.repo.GetTimeline(c.Request.Context(), channelID, start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"channel_id": channelID,
		"from":       start,
		"to":         end,
		"segments":   segments,
	})
}

// channelShiftSegments returns the channel's active segments that fall
// inside its shift windows over the trailing 24 hours
func (s *Server) channelShiftSegments(c *gin.Context) {
	channelID := c.Param("id")

	channel, err := s.repo.GetChannel(c.Request.Context(), channelID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Channel not found"})
		return
	}

	shifts, err := s.repo.GetChannelShifts(c.Request.Context(), channelID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	end := time.Now().UTC()
	start := end.Add(-24 * time.Hour)

	calendar := timeline.NewShiftCalendar(shifts, channel.Location())
	windows := calendar.Windows(start, end)
	if len(windows) == 0 {
		c.JSON(http.StatusOK, gin.H{"channel_id": channelID, "segments": []*models.Segment{}})
		return
	}

	segments, err := s.repo.GetSegmentsInShiftWindows(c.Request.Context(), channelID, windows)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"channel_id": channelID,
		"windows":    len(windows),
		"segments":   segments,
	})
}

// segmentAudit returns the merge provenance of a segment
func (s *Server) segmentAudit(c *gin.Context) {
	segmentID := c.Param("id")

	entries, err := s.repo.GetMergeAuditForSegment(c.Request.Context(), segmentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"segment_id": segmentID,
		"entries":    entries,
	})
}
