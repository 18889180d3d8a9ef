// services/service_test.go - Shared fixtures for service tests
package services

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"mindhunt/database"
	"mindhunt/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// One named in-memory database per test, shared across the pool's
	// connections.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func makeHunt(t *testing.T, db *gorm.DB, number int) *models.Hunt {
	t.Helper()
	now := time.Now()
	hunt := &models.Hunt{
		Name:           fmt.Sprintf("Hunt %d", number),
		Number:         number,
		StartDate:      now.Add(-24 * time.Hour),
		EndDate:        now.Add(24 * time.Hour),
		IsCurrent:      true,
		EurekaFeedback: "Keep going!",
	}
	require.NoError(t, db.Create(hunt).Error)
	return hunt
}

func makeEpisode(t *testing.T, db *gorm.DB, hunt *models.Hunt, number int) *models.Episode {
	t.Helper()
	episode := &models.Episode{
		Name:      fmt.Sprintf("Episode %d", number),
		Number:    number,
		StartDate: time.Now().Add(-12 * time.Hour),
		HuntID:    hunt.ID,
	}
	require.NoError(t, db.Create(episode).Error)
	return episode
}

var puzzleSeq int

func makePuzzle(t *testing.T, db *gorm.DB, episode *models.Episode, number int, answer string) *models.Puzzle {
	t.Helper()
	puzzleSeq++
	puzzle := &models.Puzzle{
		EpisodeID:           episode.ID,
		Name:                fmt.Sprintf("Puzzle %d", number),
		Number:              number,
		Code:                fmt.Sprintf("PZ%03d", puzzleSeq),
		Answer:              answer,
		NumRequiredToUnlock: 0,
	}
	require.NoError(t, db.Create(puzzle).Error)
	return puzzle
}

var teamSeq int

func makeTeam(t *testing.T, db *gorm.DB, hunt *models.Hunt) *models.Team {
	t.Helper()
	teamSeq++
	team := &models.Team{
		Name:     fmt.Sprintf("Team %d", teamSeq),
		JoinCode: fmt.Sprintf("T%04d", teamSeq),
		HuntID:   hunt.ID,
	}
	require.NoError(t, db.Create(team).Error)
	return team
}

var userSeq int

func makeUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	userSeq++
	user := &models.User{
		Username: fmt.Sprintf("solver%d", userSeq),
		Email:    fmt.Sprintf("solver%d@example.com", userSeq),
		Password: "hashed",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// linkPrereq makes prereq count toward unlocking target.
func linkPrereq(t *testing.T, db *gorm.DB, prereq, target *models.Puzzle) {
	t.Helper()
	require.NoError(t, db.Model(prereq).Association("Unlocks").Append(target))
}
