package timeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreyvolkau/airtrail/pkg/models"
)

// fakeEligibilityRepo records eligibility persistence calls.
type fakeEligibilityRepo struct {
	renamedTitles  map[string]string
	requiresTrue   []string
	requiresFalse  []string
	deactivatedIDs []string
}

func newFakeEligibilityRepo() *fakeEligibilityRepo {
	return &fakeEligibilityRepo{renamedTitles: make(map[string]string)}
}

func (r *fakeEligibilityRepo) UpdateSegmentTitle(_ context.Context, segmentID, title string) error {
	r.renamedTitles[segmentID] = title
	return nil
}

func (r *fakeEligibilityRepo) UpdateRequiresAnalysis(_ context.Context, ids []string, requires bool) error {
	if requires {
		r.requiresTrue = append(r.requiresTrue, ids...)
	} else {
		r.requiresFalse = append(r.requiresFalse, ids...)
	}
	return nil
}

func (r *fakeEligibilityRepo) DeactivateSegments(_ context.Context, ids []string) error {
	r.deactivatedIDs = append(r.deactivatedIDs, ids...)
	return nil
}

// allDayShift keeps every test instant inside an active shift unless a
// test overrides it.
func allDayShift() models.Shift {
	return models.Shift{
		ID:        "shift-1",
		ChannelID: "ch-1",
		StartTime: "00:00",
		EndTime:   "23:59",
		Days: models.Weekdays{
			time.Sunday, time.Monday, time.Tuesday, time.Wednesday,
			time.Thursday, time.Friday, time.Saturday,
		},
		IsActive: true,
	}
}

func unrecognizedSegment(id string, start time.Time, duration time.Duration) *models.Segment {
	seg := gapTestSegment(id, start, duration, "", "")
	return seg
}

func titledSegment(id string, start time.Time, duration time.Duration, title string, recognized bool) *models.Segment {
	seg := &models.Segment{
		ID:              id,
		ChannelID:       "ch-1",
		StartTime:       start,
		EndTime:         start.Add(duration),
		DurationSeconds: duration.Seconds(),
		IsRecognized:    recognized,
		Title:           title,
		IsActive:        true,
		Source:          models.SegmentSourceRecognition,
	}
	return seg
}

func newTestEligibilityEngine(t *testing.T, repo EligibilityRepository) *EligibilityEngine {
	t.Helper()
	return NewEligibilityEngine(repo, 10*time.Second, 10*time.Minute, testLogger(t))
}

func TestEligibilityImmediateRules(t *testing.T) {
	repo := newFakeEligibilityRepo()
	engine := newTestEligibilityEngine(t, repo)
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	recognized := recognizedSegment("seg-rec", base, 180*time.Second, "Song A")
	short := unrecognizedSegment("seg-short", base.Add(180*time.Second), 8*time.Second)
	long := unrecognizedSegment("seg-long", base.Add(188*time.Second), 120*time.Second)

	result := engine.MarkRequiresAnalysis(context.Background(), testChannel(),
		[]*models.Segment{recognized, short, long},
		nil, []models.Shift{allDayShift()})

	require.Len(t, result, 3)
	assert.False(t, recognized.RequiresAnalysis, "recognized segments are never analyzed")
	assert.False(t, short.RequiresAnalysis, "segments under the duration floor are never analyzed")
	assert.True(t, long.RequiresAnalysis)

	assert.Equal(t, []string{"seg-long"}, repo.requiresTrue)
	assert.ElementsMatch(t, []string{"seg-rec", "seg-short"}, repo.requiresFalse)
	assert.ElementsMatch(t, []string{"seg-rec", "seg-short"}, repo.deactivatedIDs)
}

func TestEligibilityExactDurationFloor(t *testing.T) {
	repo := newFakeEligibilityRepo()
	engine := newTestEligibilityEngine(t, repo)
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	atFloor := unrecognizedSegment("seg-at", base, 10*time.Second)

	engine.MarkRequiresAnalysis(context.Background(), testChannel(),
		[]*models.Segment{atFloor}, nil, []models.Shift{allDayShift()})

	assert.True(t, atFloor.RequiresAnalysis, "a segment exactly at the floor is eligible")
}

func TestEligibilityNoActiveShiftsSuppressesEverything(t *testing.T) {
	repo := newFakeEligibilityRepo()
	engine := newTestEligibilityEngine(t, repo)
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	long := unrecognizedSegment("seg-long", base, 120*time.Second)

	engine.MarkRequiresAnalysis(context.Background(), testChannel(),
		[]*models.Segment{long}, nil, nil)

	assert.False(t, long.RequiresAnalysis)
	assert.Contains(t, repo.deactivatedIDs, "seg-long")
}

func TestEligibilityOutOfShiftSuppressed(t *testing.T) {
	repo := newFakeEligibilityRepo()
	engine := newTestEligibilityEngine(t, repo)

	morning := models.Shift{
		ID:        "shift-1",
		ChannelID: "ch-1",
		StartTime: "06:00",
		EndTime:   "10:00",
		Days:      models.Weekdays{time.Tuesday},
		IsActive:  true,
	}

	// March 10 2026 is a Tuesday
	inShift := unrecognizedSegment("seg-in", time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC), 120*time.Second)
	outOfShift := unrecognizedSegment("seg-out", time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC), 120*time.Second)

	engine.MarkRequiresAnalysis(context.Background(), testChannel(),
		[]*models.Segment{inShift, outOfShift}, nil, []models.Shift{morning})

	assert.True(t, inShift.RequiresAnalysis)
	assert.False(t, outOfShift.RequiresAnalysis)
}

func TestEligibilityTitleRuleSuppressionUntilAfterTitle(t *testing.T) {
	repo := newFakeEligibilityRepo()
	engine := newTestEligibilityEngine(t, repo)
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	opener := titledSegment("seg-open", base, 30*time.Second, "Ad Break Start", true)
	middle := unrecognizedSegment("seg-mid", base.Add(30*time.Second), 120*time.Second)
	closer := titledSegment("seg-close", base.Add(150*time.Second), 30*time.Second, "Ad Break End", true)
	after := unrecognizedSegment("seg-after", base.Add(180*time.Second), 120*time.Second)

	rule := models.TitleMappingRule{
		ID:                "rule-1",
		ChannelID:         "ch-1",
		BeforeTitle:       "Ad Break Start",
		AfterTitle:        "Ad Break End",
		SkipTranscription: true,
		IsActive:          true,
	}

	engine.MarkRequiresAnalysis(context.Background(), testChannel(),
		[]*models.Segment{opener, middle, closer, after},
		[]models.TitleMappingRule{rule}, []models.Shift{allDayShift()})

	assert.False(t, middle.RequiresAnalysis, "segments inside the suppression interval are ineligible")
	assert.True(t, after.RequiresAnalysis, "the interval closes at the after-title occurrence")
}

func TestEligibilityTitleRuleSuppressionCapped(t *testing.T) {
	repo := newFakeEligibilityRepo()
	engine := newTestEligibilityEngine(t, repo)
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	opener := titledSegment("seg-open", base, 30*time.Second, "Ad Break Start", true)
	// The after-title shows up fifteen minutes later, past the ten minute cap
	inside := unrecognizedSegment("seg-inside", base.Add(5*time.Minute), 120*time.Second)
	pastCap := unrecognizedSegment("seg-past", base.Add(11*time.Minute), 120*time.Second)
	closer := titledSegment("seg-close", base.Add(15*time.Minute), 30*time.Second, "Ad Break End", true)

	rule := models.TitleMappingRule{
		ID:                "rule-1",
		ChannelID:         "ch-1",
		BeforeTitle:       "Ad Break Start",
		AfterTitle:        "Ad Break End",
		SkipTranscription: true,
		IsActive:          true,
	}

	engine.MarkRequiresAnalysis(context.Background(), testChannel(),
		[]*models.Segment{opener, inside, pastCap, closer},
		[]models.TitleMappingRule{rule}, []models.Shift{allDayShift()})

	assert.False(t, inside.RequiresAnalysis)
	assert.True(t, pastCap.RequiresAnalysis, "suppression never extends past the cap")
}

func TestEligibilityTitleRuleOwnSpanOnly(t *testing.T) {
	repo := newFakeEligibilityRepo()
	engine := newTestEligibilityEngine(t, repo)
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	jingle := titledSegment("seg-jingle", base, 30*time.Second, "Station ID", true)
	next := unrecognizedSegment("seg-next", base.Add(40*time.Second), 120*time.Second)

	rule := models.TitleMappingRule{
		ID:                "rule-1",
		ChannelID:         "ch-1",
		BeforeTitle:       "Station ID",
		SkipTranscription: true,
		IsActive:          true,
	}

	engine.MarkRequiresAnalysis(context.Background(), testChannel(),
		[]*models.Segment{jingle, next},
		[]models.TitleMappingRule{rule}, []models.Shift{allDayShift()})

	assert.True(t, next.RequiresAnalysis, "a rule without after-title suppresses only the before-title span")
}

func TestEligibilityRenameSideEffect(t *testing.T) {
	repo := newFakeEligibilityRepo()
	engine := newTestEligibilityEngine(t, repo)
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	trigger := titledSegment("seg-trigger", base, 30*time.Second, "News Intro", true)
	follower := unrecognizedSegment("seg-follow", base.Add(30*time.Second), 300*time.Second)
	later := unrecognizedSegment("seg-later", base.Add(330*time.Second), 300*time.Second)

	rule := models.TitleMappingRule{
		ID:          "rule-1",
		ChannelID:   "ch-1",
		BeforeTitle: "News Intro",
		Category:    "News Block",
		IsActive:    true,
	}

	engine.MarkRequiresAnalysis(context.Background(), testChannel(),
		[]*models.Segment{trigger, follower, later},
		[]models.TitleMappingRule{rule}, []models.Shift{allDayShift()})

	assert.Equal(t, "News Block", follower.Title)
	assert.Equal(t, "News Block", repo.renamedTitles["seg-follow"])
	assert.Empty(t, later.Title, "only the single next segment is renamed")

	// A rule without skip-transcription renames but never suppresses
	assert.True(t, follower.RequiresAnalysis)
}

func TestEligibilityRenameSkipsRecognizedFollower(t *testing.T) {
	repo := newFakeEligibilityRepo()
	engine := newTestEligibilityEngine(t, repo)
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	trigger := titledSegment("seg-trigger", base, 30*time.Second, "News Intro", true)
	song := titledSegment("seg-song", base.Add(30*time.Second), 180*time.Second, "Song A", true)

	rule := models.TitleMappingRule{
		ID:          "rule-1",
		ChannelID:   "ch-1",
		BeforeTitle: "News Intro",
		Category:    "News Block",
		IsActive:    true,
	}

	engine.MarkRequiresAnalysis(context.Background(), testChannel(),
		[]*models.Segment{trigger, song},
		[]models.TitleMappingRule{rule}, []models.Shift{allDayShift()})

	assert.Equal(t, "Song A", song.Title, "recognized segments keep their provider title")
	assert.Empty(t, repo.renamedTitles)
}

func TestEligibilityIgnoresForeignAndInactiveRules(t *testing.T) {
	repo := newFakeEligibilityRepo()
	engine := newTestEligibilityEngine(t, repo)
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	trigger := titledSegment("seg-trigger", base, 30*time.Second, "News Intro", true)
	follower := unrecognizedSegment("seg-follow", base.Add(30*time.Second), 300*time.Second)

	rules := []models.TitleMappingRule{
		{ID: "rule-1", ChannelID: "other-channel", BeforeTitle: "News Intro", Category: "News", IsActive: true},
		{ID: "rule-2", ChannelID: "ch-1", BeforeTitle: "News Intro", Category: "News", IsActive: false},
		{ID: "rule-3", ChannelID: "ch-1", BeforeTitle: "", Category: "News", IsActive: true},
	}

	engine.MarkRequiresAnalysis(context.Background(), testChannel(),
		[]*models.Segment{trigger, follower}, rules, []models.Shift{allDayShift()})

	assert.Empty(t, follower.Title)
	assert.Empty(t, repo.renamedTitles)
}

func TestEligibilityEmptyTimeline(t *testing.T) {
	repo := newFakeEligibilityRepo()
	engine := newTestEligibilityEngine(t, repo)

	result := engine.MarkRequiresAnalysis(context.Background(), testChannel(),
		nil, nil, []models.Shift{allDayShift()})

	assert.Empty(t, result)
	assert.Empty(t, repo.requiresTrue)
	assert.Empty(t, repo.requiresFalse)
}
