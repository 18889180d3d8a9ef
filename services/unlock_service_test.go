// services/unlock_service_test.go
package services

import (
	"testing"
	"time"

	"mindhunt/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func recompute(t *testing.T, db *gorm.DB, svc *UnlockService, team *models.Team) *UnlockResult {
	t.Helper()
	var result *UnlockResult
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = svc.Recompute(tx, team, time.Now())
		return err
	})
	require.NoError(t, err)
	return result
}

func solve(t *testing.T, db *gorm.DB, team *models.Team, puzzle *models.Puzzle) {
	t.Helper()
	var store ProgressStore
	_, err := store.SolvePuzzle(db, team.ID, puzzle.ID, 0, 0)
	require.NoError(t, err)
}

func TestRecomputeBootstrapsRootEpisodes(t *testing.T) {
	db := openTestDB(t)
	hunt := makeHunt(t, db, 1)
	ep1 := makeEpisode(t, db, hunt, 1)
	ep2 := makeEpisode(t, db, hunt, 2)
	ep1.UnlocksID = &ep2.ID
	require.NoError(t, db.Save(ep1).Error)

	makePuzzle(t, db, ep1, 1, "ALPHA")
	team := makeTeam(t, db, hunt)

	svc := NewUnlockService()
	result := recompute(t, db, svc, team)

	// Only ep1 is a root; ep2 is ep1's successor.
	require.Len(t, result.EpisodesUnlocked, 1)
	assert.Equal(t, ep1.ID, result.EpisodesUnlocked[0].EpisodeID)

	// The root episode's threshold-free puzzle unlocks immediately.
	require.Len(t, result.PuzzlesUnlocked, 1)
}

func TestRecomputeIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	hunt := makeHunt(t, db, 1)
	ep := makeEpisode(t, db, hunt, 1)
	makePuzzle(t, db, ep, 1, "ALPHA")
	team := makeTeam(t, db, hunt)

	svc := NewUnlockService()
	first := recompute(t, db, svc, team)
	assert.False(t, first.Empty())

	second := recompute(t, db, svc, team)
	assert.True(t, second.Empty())
}

func TestRecomputeUnlockThreshold(t *testing.T) {
	db := openTestDB(t)
	hunt := makeHunt(t, db, 1)
	ep := makeEpisode(t, db, hunt, 1)
	p1 := makePuzzle(t, db, ep, 1, "ONE")
	p2 := makePuzzle(t, db, ep, 2, "TWO")
	p3 := makePuzzle(t, db, ep, 3, "THREE")
	p3.NumRequiredToUnlock = 2
	require.NoError(t, db.Save(p3).Error)
	linkPrereq(t, db, p1, p3)
	linkPrereq(t, db, p2, p3)

	team := makeTeam(t, db, hunt)
	svc := NewUnlockService()
	recompute(t, db, svc, team)

	var count int64
	db.Model(&models.TeamPuzzleLink{}).
		Where("team_id = ? AND puzzle_id = ?", team.ID, p3.ID).
		Count(&count)
	assert.Zero(t, count, "p3 needs two solved prerequisites")

	solve(t, db, team, p1)
	recompute(t, db, svc, team)
	db.Model(&models.TeamPuzzleLink{}).
		Where("team_id = ? AND puzzle_id = ?", team.ID, p3.ID).
		Count(&count)
	assert.Zero(t, count, "one of two prerequisites is not enough")

	solve(t, db, team, p2)
	result := recompute(t, db, svc, team)
	require.Len(t, result.PuzzlesUnlocked, 1)
	assert.Equal(t, p3.ID, result.PuzzlesUnlocked[0].PuzzleID)
}

func TestEpisodeCompletionUnlocksSuccessorWithHeadstart(t *testing.T) {
	db := openTestDB(t)
	hunt := makeHunt(t, db, 1)
	ep1 := makeEpisode(t, db, hunt, 1)
	ep2 := makeEpisode(t, db, hunt, 2)
	ep1.UnlocksID = &ep2.ID
	ep1.Headstarts = models.DurationList{time.Hour, 30 * time.Minute}
	require.NoError(t, db.Save(ep1).Error)

	p1 := makePuzzle(t, db, ep1, 1, "ONE")
	makePuzzle(t, db, ep2, 2, "TWO")

	svc := NewUnlockService()

	teamA := makeTeam(t, db, hunt)
	recompute(t, db, svc, teamA)
	solve(t, db, teamA, p1)
	resultA := recompute(t, db, svc, teamA)

	require.Len(t, resultA.EpisodesSolved, 1)
	require.Len(t, resultA.EpisodesUnlocked, 1)
	assert.Equal(t, ep2.ID, resultA.EpisodesUnlocked[0].EpisodeID)

	var linkA models.TeamEpisodeLink
	require.NoError(t, db.Where("team_id = ? AND episode_id = ?", teamA.ID, ep2.ID).
		First(&linkA).Error)
	assert.Equal(t, time.Hour, linkA.Headstart, "first finisher gets the biggest headstart")

	teamB := makeTeam(t, db, hunt)
	recompute(t, db, svc, teamB)
	solve(t, db, teamB, p1)
	recompute(t, db, svc, teamB)

	var linkB models.TeamEpisodeLink
	require.NoError(t, db.Where("team_id = ? AND episode_id = ?", teamB.ID, ep2.ID).
		First(&linkB).Error)
	assert.Equal(t, 30*time.Minute, linkB.Headstart)

	// A third finisher is beyond the schedule and earns nothing.
	teamC := makeTeam(t, db, hunt)
	recompute(t, db, svc, teamC)
	solve(t, db, teamC, p1)
	recompute(t, db, svc, teamC)

	var linkC models.TeamEpisodeLink
	require.NoError(t, db.Where("team_id = ? AND episode_id = ?", teamC.ID, ep2.ID).
		First(&linkC).Error)
	assert.Zero(t, linkC.Headstart)
}

func TestEmptyEpisodeChainResolvesInOnePass(t *testing.T) {
	db := openTestDB(t)
	hunt := makeHunt(t, db, 1)
	ep1 := makeEpisode(t, db, hunt, 1)
	ep2 := makeEpisode(t, db, hunt, 2)
	ep3 := makeEpisode(t, db, hunt, 3)
	ep1.UnlocksID = &ep2.ID
	ep2.UnlocksID = &ep3.ID
	require.NoError(t, db.Save(ep1).Error)
	require.NoError(t, db.Save(ep2).Error)
	makePuzzle(t, db, ep3, 1, "END")

	team := makeTeam(t, db, hunt)
	svc := NewUnlockService()
	result := recompute(t, db, svc, team)

	// ep1 and ep2 have no puzzles: both count as finished immediately
	// and the chain unlocks through to ep3's puzzle.
	assert.Len(t, result.EpisodesSolved, 2)
	assert.Len(t, result.EpisodesUnlocked, 3)
	require.Len(t, result.PuzzlesUnlocked, 1)
}

func TestManualUnlockCascades(t *testing.T) {
	db := openTestDB(t)
	hunt := makeHunt(t, db, 1)
	ep := makeEpisode(t, db, hunt, 1)
	p1 := makePuzzle(t, db, ep, 1, "ONE")
	p2 := makePuzzle(t, db, ep, 2, "TWO")
	p2.NumRequiredToUnlock = 1
	require.NoError(t, db.Save(p2).Error)
	linkPrereq(t, db, p1, p2)

	team := makeTeam(t, db, hunt)
	svc := NewUnlockService()
	recompute(t, db, svc, team)

	// Force-unlock p2 even though p1 is unsolved.
	err := db.Transaction(func(tx *gorm.DB) error {
		result, err := svc.ManualUnlock(tx, team, p2.ID, time.Now())
		if err != nil {
			return err
		}
		require.Len(t, result.PuzzlesUnlocked, 1)
		return nil
	})
	require.NoError(t, err)

	var count int64
	db.Model(&models.TeamPuzzleLink{}).
		Where("team_id = ? AND puzzle_id = ?", team.ID, p2.ID).
		Count(&count)
	assert.EqualValues(t, 1, count)
}
