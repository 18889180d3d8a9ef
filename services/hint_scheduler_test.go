// services/hint_scheduler_test.go
package services

import (
	"testing"
	"time"

	"mindhunt/models"
	"mindhunt/realtime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type hintFixture struct {
	db        *gorm.DB
	hub       *realtime.Hub
	scheduler *HintScheduler
	episode   *models.Episode
	puzzle    *models.Puzzle
	team      *models.Team
}

func newHintFixture(t *testing.T) *hintFixture {
	t.Helper()
	db := openTestDB(t)
	hunt := makeHunt(t, db, 1)
	ep := makeEpisode(t, db, hunt, 1)
	puzzle := makePuzzle(t, db, ep, 1, "ANSWER")
	team := makeTeam(t, db, hunt)

	unlocks := NewUnlockService()
	recompute(t, db, unlocks, team)

	hub := realtime.NewHub()
	scheduler := NewHintScheduler(db, hub)
	t.Cleanup(scheduler.Stop)

	return &hintFixture{
		db:        db,
		hub:       hub,
		scheduler: scheduler,
		episode:   ep,
		puzzle:    puzzle,
		team:      team,
	}
}

func (f *hintFixture) makeHint(t *testing.T, delay, shortDelay time.Duration, numberEurekas int) *models.Hint {
	t.Helper()
	hint := &models.Hint{
		PuzzleID:      f.puzzle.ID,
		Text:          "look closer",
		Delay:         delay,
		ShortDelay:    shortDelay,
		NumberEurekas: numberEurekas,
	}
	require.NoError(t, f.db.Create(hint).Error)
	return hint
}

// backdateUnlock moves the team's puzzle unlock into the past so
// short hint delays are already due.
func (f *hintFixture) backdateUnlock(t *testing.T, ago time.Duration) {
	t.Helper()
	err := f.db.Model(&models.TeamPuzzleLink{}).
		Where("team_id = ? AND puzzle_id = ?", f.team.ID, f.puzzle.ID).
		Update("time", time.Now().Add(-ago)).Error
	require.NoError(t, err)
}

func (f *hintFixture) effectiveStart(t *testing.T) time.Time {
	t.Helper()
	var store ProgressStore
	start, err := store.EffectiveStart(f.db, f.team.ID, f.puzzle)
	require.NoError(t, err)
	return start
}

func TestFireTimeBaseDelay(t *testing.T) {
	f := newHintFixture(t)
	hint := f.makeHint(t, 2*time.Hour, 10*time.Minute, 1)

	fireAt, err := f.scheduler.FireTime(f.db, hint, f.team.ID)
	require.NoError(t, err)
	assert.Equal(t, f.effectiveStart(t).Add(2*time.Hour).Unix(), fireAt.Unix())
}

func TestHintZeroEurekaThresholdPersists(t *testing.T) {
	f := newHintFixture(t)
	hint := f.makeHint(t, 3*time.Hour, time.Minute, 0)

	var reloaded models.Hint
	require.NoError(t, f.db.First(&reloaded, hint.ID).Error)
	assert.Zero(t, reloaded.NumberEurekas)

	// No eureka condition: only the base delay ever applies.
	fireAt, err := f.scheduler.FireTime(f.db, &reloaded, f.team.ID)
	require.NoError(t, err)
	assert.Equal(t, f.effectiveStart(t).Add(3*time.Hour).Unix(), fireAt.Unix())
}

func TestFireTimeShortensAfterEurekaThreshold(t *testing.T) {
	f := newHintFixture(t)
	hint := f.makeHint(t, 6*time.Hour, 10*time.Minute, 2)

	e1 := &models.Eureka{PuzzleID: f.puzzle.ID, Regex: "AA", Answer: "AA"}
	e2 := &models.Eureka{PuzzleID: f.puzzle.ID, Regex: "BB", Answer: "BB"}
	require.NoError(t, f.db.Create(e1).Error)
	require.NoError(t, f.db.Create(e2).Error)
	require.NoError(t, f.db.Model(hint).Association("Eurekas").Append(e1, e2))

	var store ProgressStore
	first := time.Now().Add(-time.Hour)
	second := time.Now().Add(-30 * time.Minute)
	_, err := store.DiscoverEureka(f.db, f.team.ID, e1.ID, first)
	require.NoError(t, err)

	// One discovery of two: still the base delay.
	fireAt, err := f.scheduler.FireTime(f.db, hint, f.team.ID)
	require.NoError(t, err)
	assert.Equal(t, f.effectiveStart(t).Add(6*time.Hour).Unix(), fireAt.Unix())

	_, err = store.DiscoverEureka(f.db, f.team.ID, e2.ID, second)
	require.NoError(t, err)

	// The discovery that met the threshold starts the short clock.
	fireAt, err = f.scheduler.FireTime(f.db, hint, f.team.ID)
	require.NoError(t, err)
	assert.Equal(t, second.Add(10*time.Minute).Unix(), fireAt.Unix())
}

func TestFireTimeKeepsEarlierBaseTarget(t *testing.T) {
	f := newHintFixture(t)
	// The shortened target lands after the base target here; the
	// earlier of the two must win.
	hint := f.makeHint(t, time.Minute, 24*time.Hour, 1)

	e1 := &models.Eureka{PuzzleID: f.puzzle.ID, Regex: "AA", Answer: "AA"}
	require.NoError(t, f.db.Create(e1).Error)
	require.NoError(t, f.db.Model(hint).Association("Eurekas").Append(e1))

	var store ProgressStore
	_, err := store.DiscoverEureka(f.db, f.team.ID, e1.ID, time.Now())
	require.NoError(t, err)

	fireAt, err := f.scheduler.FireTime(f.db, hint, f.team.ID)
	require.NoError(t, err)
	assert.Equal(t, f.effectiveStart(t).Add(time.Minute).Unix(), fireAt.Unix())
}

func TestAlreadyDueHintDeliversImmediately(t *testing.T) {
	f := newHintFixture(t)
	f.makeHint(t, time.Minute, time.Minute, 1)
	f.backdateUnlock(t, 2*time.Hour)

	sub := f.hub.Subscribe(realtime.ChannelKey{PuzzleID: f.puzzle.ID, TeamID: f.team.ID})
	defer f.hub.Unsubscribe(sub)

	require.NoError(t, f.scheduler.ArmTeamPuzzle(f.team.ID, f.puzzle.ID))

	select {
	case event := <-sub.C():
		assert.Equal(t, realtime.EventNewHint, event.Type)
		assert.Equal(t, "look closer", event.Content["hint"])
	case <-time.After(2 * time.Second):
		t.Fatal("hint was not delivered")
	}
}

func TestHintDeliversOnlyOnce(t *testing.T) {
	f := newHintFixture(t)
	f.makeHint(t, time.Minute, time.Minute, 1)
	f.backdateUnlock(t, 2*time.Hour)

	sub := f.hub.Subscribe(realtime.ChannelKey{PuzzleID: f.puzzle.ID, TeamID: f.team.ID})
	defer f.hub.Unsubscribe(sub)

	require.NoError(t, f.scheduler.ArmTeamPuzzle(f.team.ID, f.puzzle.ID))
	require.Eventually(t, func() bool {
		return len(sub.C()) > 0
	}, 2*time.Second, 10*time.Millisecond)

	// Re-arming after delivery must not schedule a second firing.
	require.NoError(t, f.scheduler.ArmTeamPuzzle(f.team.ID, f.puzzle.ID))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, len(sub.C()))
	assert.Zero(t, f.scheduler.Pending())
}

func TestCancelTeamStopsTimers(t *testing.T) {
	f := newHintFixture(t)
	f.makeHint(t, 48*time.Hour, time.Hour, 1)

	require.NoError(t, f.scheduler.ArmTeamPuzzle(f.team.ID, f.puzzle.ID))
	assert.Equal(t, 1, f.scheduler.Pending())

	f.scheduler.CancelTeam(f.team.ID)
	assert.Zero(t, f.scheduler.Pending())
}

func TestRecoverRebuildsTimers(t *testing.T) {
	f := newHintFixture(t)
	f.makeHint(t, 48*time.Hour, time.Hour, 1)

	fresh := NewHintScheduler(f.db, f.hub)
	t.Cleanup(fresh.Stop)
	require.NoError(t, fresh.Recover())
	assert.Equal(t, 1, fresh.Pending())
}
