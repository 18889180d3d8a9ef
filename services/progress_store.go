// services/progress_store.go - Idempotent writes to the per-team progress tables
package services

import (
	"errors"
	"time"

	"mindhunt/models"

	"gorm.io/gorm"
)

// ProgressStore owns every write to the team link tables. All methods
// take the caller's transaction so one guess resolution or unlock
// recomputation commits atomically. Every create re-checks for an
// existing row first, which makes concurrent recomputation safe: a
// lost race produces a no-op, never a duplicate.
type ProgressStore struct{}

// UnlockPuzzle records that a team unlocked a puzzle. Returns whether
// a new row was created.
func (ProgressStore) UnlockPuzzle(tx *gorm.DB, teamID, puzzleID uint, now time.Time) (bool, error) {
	var count int64
	if err := tx.Model(&models.TeamPuzzleLink{}).
		Where("team_id = ? AND puzzle_id = ?", teamID, puzzleID).
		Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	link := &models.TeamPuzzleLink{TeamID: teamID, PuzzleID: puzzleID, Time: now}
	return true, tx.Create(link).Error
}

// SolvePuzzle records a solve linked to the guess that caused it.
func (ProgressStore) SolvePuzzle(tx *gorm.DB, teamID, puzzleID, guessID uint, duration time.Duration) (bool, error) {
	var count int64
	if err := tx.Model(&models.PuzzleSolve{}).
		Where("team_id = ? AND puzzle_id = ?", teamID, puzzleID).
		Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	solve := &models.PuzzleSolve{
		TeamID:   teamID,
		PuzzleID: puzzleID,
		GuessID:  guessID,
		Duration: duration,
	}
	return true, tx.Create(solve).Error
}

// UnlockEpisode records that a team unlocked an episode with the
// given headstart.
func (ProgressStore) UnlockEpisode(tx *gorm.DB, teamID, episodeID uint, now time.Time, headstart time.Duration) (bool, error) {
	var count int64
	if err := tx.Model(&models.TeamEpisodeLink{}).
		Where("team_id = ? AND episode_id = ?", teamID, episodeID).
		Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	link := &models.TeamEpisodeLink{
		TeamID:    teamID,
		EpisodeID: episodeID,
		Time:      now,
		Headstart: headstart,
	}
	return true, tx.Create(link).Error
}

// SolveEpisode records that a team finished an episode.
func (ProgressStore) SolveEpisode(tx *gorm.DB, teamID, episodeID uint, now time.Time) (bool, error) {
	var count int64
	if err := tx.Model(&models.EpisodeSolve{}).
		Where("team_id = ? AND episode_id = ?", teamID, episodeID).
		Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	solve := &models.EpisodeSolve{TeamID: teamID, EpisodeID: episodeID, Time: now}
	return true, tx.Create(solve).Error
}

// DiscoverEureka records that a team triggered a eureka.
func (ProgressStore) DiscoverEureka(tx *gorm.DB, teamID, eurekaID uint, now time.Time) (bool, error) {
	var count int64
	if err := tx.Model(&models.TeamEurekaLink{}).
		Where("team_id = ? AND eureka_id = ?", teamID, eurekaID).
		Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	link := &models.TeamEurekaLink{TeamID: teamID, EurekaID: eurekaID, Time: now}
	return true, tx.Create(link).Error
}

// EffectiveStart returns the per-team start time for a puzzle:
// max(puzzle unlock time, episode start - episode headstart). Teams
// without an unlock or episode link fall back to the bare episode
// start date.
func (ProgressStore) EffectiveStart(tx *gorm.DB, teamID uint, puzzle *models.Puzzle) (time.Time, error) {
	var episode models.Episode
	if err := tx.First(&episode, puzzle.EpisodeID).Error; err != nil {
		return time.Time{}, err
	}

	var puzLink models.TeamPuzzleLink
	err := tx.Where("team_id = ? AND puzzle_id = ?", teamID, puzzle.ID).First(&puzLink).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return episode.StartDate, nil
	}
	if err != nil {
		return time.Time{}, err
	}

	// A puzzle link without an episode link means zero headstart.
	earliestOpen := episode.StartDate
	var epLink models.TeamEpisodeLink
	err = tx.Where("team_id = ? AND episode_id = ?", teamID, episode.ID).First(&epLink).Error
	if err == nil {
		earliestOpen = episode.StartDate.Add(-epLink.Headstart)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, err
	}

	if puzLink.Time.After(earliestOpen) {
		return puzLink.Time, nil
	}
	return earliestOpen, nil
}

// Reset wipes all of a team's progress rows and guesses.
func (ProgressStore) Reset(tx *gorm.DB, teamID uint) error {
	for _, model := range []any{
		&models.TeamPuzzleLink{},
		&models.PuzzleSolve{},
		&models.TeamEpisodeLink{},
		&models.EpisodeSolve{},
		&models.TeamEurekaLink{},
		&models.Guess{},
	} {
		if err := tx.Where("team_id = ?", teamID).Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}
