// services/team_service_test.go
package services

import (
	"testing"
	"time"

	"mindhunt/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTeamBootstrapsUnlocks(t *testing.T) {
	db := openTestDB(t)
	hunt := makeHunt(t, db, 1)
	ep := makeEpisode(t, db, hunt, 1)
	makePuzzle(t, db, ep, 1, "ONE")
	user := makeUser(t, db)

	svc := NewTeamService(db, NewUnlockService(), nil)
	team, err := svc.CreateTeam("Foxes", hunt, user)
	require.NoError(t, err)
	assert.Len(t, team.JoinCode, 5)
	assert.NotEmpty(t, team.Token)

	// The root episode and its free puzzle are linked immediately.
	var epLinks, puzLinks int64
	db.Model(&models.TeamEpisodeLink{}).Where("team_id = ?", team.ID).Count(&epLinks)
	db.Model(&models.TeamPuzzleLink{}).Where("team_id = ?", team.ID).Count(&puzLinks)
	assert.EqualValues(t, 1, epLinks)
	assert.EqualValues(t, 1, puzLinks)

	found, err := svc.TeamForUser(hunt.ID, user.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, team.ID, found.ID)
}

func TestCreateTeamRequiresName(t *testing.T) {
	db := openTestDB(t)
	hunt := makeHunt(t, db, 1)

	svc := NewTeamService(db, NewUnlockService(), nil)
	_, err := svc.CreateTeam("", hunt, nil)
	require.Error(t, err)
}

func TestJoinTeamByCode(t *testing.T) {
	db := openTestDB(t)
	hunt := makeHunt(t, db, 1)
	creator := makeUser(t, db)
	joiner := makeUser(t, db)

	svc := NewTeamService(db, NewUnlockService(), nil)
	team, err := svc.CreateTeam("Foxes", hunt, creator)
	require.NoError(t, err)

	joined, err := svc.JoinTeam(joiner, hunt, team.JoinCode)
	require.NoError(t, err)
	assert.Equal(t, team.ID, joined.ID)

	// A second team is off limits while on the first.
	_, err = svc.JoinTeam(joiner, hunt, team.JoinCode)
	require.Error(t, err)

	_, err = svc.JoinTeam(makeUser(t, db), hunt, "WRONG")
	require.Error(t, err)
}

func TestResetWipesProgress(t *testing.T) {
	db := openTestDB(t)
	hunt := makeHunt(t, db, 1)
	ep := makeEpisode(t, db, hunt, 1)
	puzzle := makePuzzle(t, db, ep, 1, "ONE")
	user := makeUser(t, db)

	unlocks := NewUnlockService()
	svc := NewTeamService(db, unlocks, nil)
	team, err := svc.CreateTeam("Foxes", hunt, user)
	require.NoError(t, err)

	guess := &models.Guess{
		UserID:    user.ID,
		TeamID:    team.ID,
		PuzzleID:  puzzle.ID,
		Text:      "ONE",
		GuessTime: time.Now(),
	}
	require.NoError(t, db.Create(guess).Error)
	solve(t, db, team, puzzle)

	require.NoError(t, svc.Reset(team))

	for _, model := range []any{
		&models.TeamEpisodeLink{},
		&models.TeamPuzzleLink{},
		&models.PuzzleSolve{},
		&models.Guess{},
	} {
		var count int64
		db.Model(model).Where("team_id = ?", team.ID).Count(&count)
		assert.Zero(t, count)
	}
}
