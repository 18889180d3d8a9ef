// services/progress_store_test.go
package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectiveStartUsesUnlockTime(t *testing.T) {
	db := openTestDB(t)
	hunt := makeHunt(t, db, 1)
	ep := makeEpisode(t, db, hunt, 1)
	puzzle := makePuzzle(t, db, ep, 1, "ONE")
	team := makeTeam(t, db, hunt)

	var store ProgressStore
	unlockedAt := time.Now().Add(-time.Hour)
	_, err := store.UnlockEpisode(db, team.ID, ep.ID, unlockedAt, 0)
	require.NoError(t, err)
	_, err = store.UnlockPuzzle(db, team.ID, puzzle.ID, unlockedAt)
	require.NoError(t, err)

	// The unlock came after the episode opened, so it is the start.
	start, err := store.EffectiveStart(db, team.ID, puzzle)
	require.NoError(t, err)
	assert.Equal(t, unlockedAt.Unix(), start.Unix())
}

func TestEffectiveStartAppliesHeadstart(t *testing.T) {
	db := openTestDB(t)
	hunt := makeHunt(t, db, 1)
	ep := makeEpisode(t, db, hunt, 1)
	puzzle := makePuzzle(t, db, ep, 1, "ONE")
	team := makeTeam(t, db, hunt)

	// Unlocked before the episode's headstart-adjusted open time: the
	// open time wins.
	var store ProgressStore
	unlockedAt := ep.StartDate.Add(-2 * time.Hour)
	_, err := store.UnlockEpisode(db, team.ID, ep.ID, unlockedAt, time.Hour)
	require.NoError(t, err)
	_, err = store.UnlockPuzzle(db, team.ID, puzzle.ID, unlockedAt)
	require.NoError(t, err)

	start, err := store.EffectiveStart(db, team.ID, puzzle)
	require.NoError(t, err)
	assert.Equal(t, ep.StartDate.Add(-time.Hour).Unix(), start.Unix())
}

func TestEffectiveStartWithoutEpisodeLinkKeepsUnlockTime(t *testing.T) {
	db := openTestDB(t)
	hunt := makeHunt(t, db, 1)
	ep := makeEpisode(t, db, hunt, 1)
	puzzle := makePuzzle(t, db, ep, 1, "ONE")
	team := makeTeam(t, db, hunt)

	// Puzzle link but no episode link: treated as zero headstart, so
	// the later of unlock time and episode start still applies.
	var store ProgressStore
	unlockedAt := time.Now().Add(-time.Hour)
	_, err := store.UnlockPuzzle(db, team.ID, puzzle.ID, unlockedAt)
	require.NoError(t, err)

	start, err := store.EffectiveStart(db, team.ID, puzzle)
	require.NoError(t, err)
	assert.Equal(t, unlockedAt.Unix(), start.Unix())
}

func TestEffectiveStartFallsBackToEpisodeStart(t *testing.T) {
	db := openTestDB(t)
	hunt := makeHunt(t, db, 1)
	ep := makeEpisode(t, db, hunt, 1)
	puzzle := makePuzzle(t, db, ep, 1, "ONE")
	team := makeTeam(t, db, hunt)

	var store ProgressStore
	start, err := store.EffectiveStart(db, team.ID, puzzle)
	require.NoError(t, err)
	assert.Equal(t, ep.StartDate.Unix(), start.Unix())
}
