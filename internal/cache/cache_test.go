package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreyvolkau/airtrail/pkg/models"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	return NewCacheWithClient(client), mr
}

func TestChannelSnapshotRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	snapshot := &ChannelSnapshot{
		Channel: &models.Channel{
			ID:       "channel-1",
			Name:     "Radio One",
			Slug:     "radio-one",
			Timezone: "Europe/Berlin",
			IsActive: true,
		},
		Shifts: []models.Shift{
			{
				ID:        "shift-1",
				ChannelID: "channel-1",
				Name:      "morning",
				StartTime: "06:00",
				EndTime:   "12:00",
				Days:      models.Weekdays{time.Monday, time.Tuesday},
				IsActive:  true,
			},
		},
		Rules: []models.TitleMappingRule{
			{
				ID:                "rule-1",
				ChannelID:         "channel-1",
				BeforeTitle:       "News Intro",
				AfterTitle:        "News Outro",
				Category:          "news",
				SkipTranscription: true,
				IsActive:          true,
			},
		},
		CachedAt: time.Now().UTC(),
	}

	require.NoError(t, c.SetChannelSnapshot(ctx, snapshot, time.Minute))

	got, err := c.GetChannelSnapshot(ctx, "channel-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "radio-one", got.Channel.Slug)
	assert.Len(t, got.Shifts, 1)
	assert.Equal(t, "News Intro", got.Rules[0].BeforeTitle)
	assert.True(t, got.Shifts[0].Days.Contains(time.Monday))
}

func TestChannelSnapshotMiss(t *testing.T) {
	c, _ := newTestCache(t)

	got, err := c.GetChannelSnapshot(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestChannelSnapshotExpiry(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	snapshot := &ChannelSnapshot{
		Channel: &models.Channel{ID: "channel-1"},
	}
	require.NoError(t, c.SetChannelSnapshot(ctx, snapshot, time.Second))

	mr.FastForward(2 * time.Second)

	got, err := c.GetChannelSnapshot(ctx, "channel-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRunMarkerRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	marker := &RunMarker{
		ChannelID:  "channel-1",
		RunID:      "run-1",
		Status:     "ok",
		Segments:   42,
		FinishedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, c.SetRunMarker(ctx, marker))

	got, err := c.GetRunMarker(ctx, "channel-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, 42, got.Segments)
}

func TestRunLock(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	acquired, err := c.AcquireRunLock(ctx, "channel-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)

	// Second acquisition fails while the lock is held
	acquired, err = c.AcquireRunLock(ctx, "channel-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, acquired)

	require.NoError(t, c.ReleaseRunLock(ctx, "channel-1"))

	acquired, err = c.AcquireRunLock(ctx, "channel-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)

	// The lock expires on its own
	mr.FastForward(2 * time.Minute)
	acquired, err = c.AcquireRunLock(ctx, "channel-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}
