// services/unlock_service.go - Unlock closure computation
package services

import (
	"log"
	"time"

	"mindhunt/models"

	"gorm.io/gorm"
)

// UnlockResult lists the rows one recomputation created. Callers use
// it to publish realtime events and re-arm hint timers after commit.
type UnlockResult struct {
	PuzzlesUnlocked  []models.TeamPuzzleLink
	EpisodesUnlocked []models.TeamEpisodeLink
	EpisodesSolved   []models.EpisodeSolve
}

// Empty reports whether the recomputation was a no-op.
func (r *UnlockResult) Empty() bool {
	return len(r.PuzzlesUnlocked) == 0 &&
		len(r.EpisodesUnlocked) == 0 &&
		len(r.EpisodesSolved) == 0
}

// UnlockService computes, per team, the closure of reachable puzzles
// and episodes from the current solve state. It runs after every
// solve, after every team-episode link creation (bootstrap, manual
// staff unlock) and is idempotent: rerunning on unchanged state
// creates nothing.
type UnlockService struct {
	store ProgressStore
}

func NewUnlockService() *UnlockService {
	return &UnlockService{}
}

// Recompute runs the closure inside the caller's transaction. A team
// that finishes an episode unlocks the successor immediately, and the
// successor is processed in the same call, so chains of empty or
// pre-satisfied episodes unlock in one pass.
func (s *UnlockService) Recompute(tx *gorm.DB, team *models.Team, now time.Time) (*UnlockResult, error) {
	result := &UnlockResult{}

	if err := s.bootstrapRoots(tx, team, now, result); err != nil {
		return nil, err
	}

	for {
		changed, err := s.pass(tx, team, now, result)
		if err != nil {
			return nil, err
		}
		if !changed {
			return result, nil
		}
	}
}

// bootstrapRoots unlocks every root episode (an episode no other
// episode points at) for a team with no episode links yet.
func (s *UnlockService) bootstrapRoots(tx *gorm.DB, team *models.Team, now time.Time, result *UnlockResult) error {
	var count int64
	if err := tx.Model(&models.TeamEpisodeLink{}).
		Where("team_id = ?", team.ID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	var roots []models.Episode
	if err := tx.
		Where("hunt_id = ?", team.HuntID).
		Where("id NOT IN (SELECT unlocks_id FROM episodes WHERE unlocks_id IS NOT NULL)").
		Order("number").
		Find(&roots).Error; err != nil {
		return err
	}

	for _, ep := range roots {
		created, err := s.store.UnlockEpisode(tx, team.ID, ep.ID, now, 0)
		if err != nil {
			return err
		}
		if created {
			result.EpisodesUnlocked = append(result.EpisodesUnlocked, models.TeamEpisodeLink{
				TeamID:    team.ID,
				EpisodeID: ep.ID,
				Time:      now,
			})
		}
	}
	return nil
}

// pass walks every unlocked, unsolved episode once. It returns true
// when a new episode link was created, which requires another pass to
// process the successor episode.
func (s *UnlockService) pass(tx *gorm.DB, team *models.Team, now time.Time, result *UnlockResult) (bool, error) {
	var epLinks []models.TeamEpisodeLink
	if err := tx.Where("team_id = ?", team.ID).Find(&epLinks).Error; err != nil {
		return false, err
	}

	solvedEpisodes := make(map[uint]bool)
	var epSolves []models.EpisodeSolve
	if err := tx.Where("team_id = ?", team.ID).Find(&epSolves).Error; err != nil {
		return false, err
	}
	for _, solve := range epSolves {
		solvedEpisodes[solve.EpisodeID] = true
	}

	chained := false
	for _, link := range epLinks {
		if solvedEpisodes[link.EpisodeID] {
			continue
		}

		var episode models.Episode
		if err := tx.First(&episode, link.EpisodeID).Error; err != nil {
			return false, err
		}

		var puzzles []models.Puzzle
		if err := tx.Preload("Unlocks").
			Where("episode_id = ?", episode.ID).
			Order("number").
			Find(&puzzles).Error; err != nil {
			return false, err
		}

		// Per-puzzle-number count of solved prerequisites, plus the
		// solved total to detect episode completion.
		satisfied := make(map[int]int)
		solvedIDs := make(map[uint]bool)
		var solves []models.PuzzleSolve
		if err := tx.Joins("JOIN puzzles ON puzzles.id = puzzle_solves.puzzle_id").
			Where("puzzle_solves.team_id = ? AND puzzles.episode_id = ?", team.ID, episode.ID).
			Find(&solves).Error; err != nil {
			return false, err
		}
		for _, solve := range solves {
			solvedIDs[solve.PuzzleID] = true
		}
		for _, puz := range puzzles {
			if !solvedIDs[puz.ID] {
				continue
			}
			for _, target := range puz.Unlocks {
				satisfied[target.Number]++
			}
		}

		if len(solvedIDs) == len(puzzles) {
			// Episode finished. Rank by the number of teams that got
			// here first; the rank decides the successor headstart.
			var finishers int64
			if err := tx.Model(&models.EpisodeSolve{}).
				Where("episode_id = ?", episode.ID).
				Count(&finishers).Error; err != nil {
				return false, err
			}

			created, err := s.store.SolveEpisode(tx, team.ID, episode.ID, now)
			if err != nil {
				return false, err
			}
			if created {
				log.Printf("Team %s finished episode %d", team.Name, episode.Number)
				result.EpisodesSolved = append(result.EpisodesSolved, models.EpisodeSolve{
					TeamID:    team.ID,
					EpisodeID: episode.ID,
					Time:      now,
				})
			}

			if episode.UnlocksID != nil {
				headstart := episode.HeadstartFor(int(finishers))
				created, err := s.store.UnlockEpisode(tx, team.ID, *episode.UnlocksID, now, headstart)
				if err != nil {
					return false, err
				}
				if created {
					result.EpisodesUnlocked = append(result.EpisodesUnlocked, models.TeamEpisodeLink{
						TeamID:    team.ID,
						EpisodeID: *episode.UnlocksID,
						Time:      now,
						Headstart: headstart,
					})
					chained = true
				}
			}
			continue
		}

		// Unlock every puzzle whose threshold is met. No ordering
		// dependency between the unlocks of a single pass.
		unlockedNumbers := make(map[int]bool)
		var puzLinks []models.TeamPuzzleLink
		if err := tx.Joins("JOIN puzzles ON puzzles.id = team_puzzle_links.puzzle_id").
			Where("team_puzzle_links.team_id = ? AND puzzles.episode_id = ?", team.ID, episode.ID).
			Find(&puzLinks).Error; err != nil {
			return false, err
		}
		linkedIDs := make(map[uint]bool)
		for _, pl := range puzLinks {
			linkedIDs[pl.PuzzleID] = true
		}
		for _, puz := range puzzles {
			if linkedIDs[puz.ID] {
				unlockedNumbers[puz.Number] = true
			}
		}

		for _, puz := range puzzles {
			if unlockedNumbers[puz.Number] {
				continue
			}
			if puz.NumRequiredToUnlock > satisfied[puz.Number] {
				continue
			}
			created, err := s.store.UnlockPuzzle(tx, team.ID, puz.ID, now)
			if err != nil {
				return false, err
			}
			if created {
				log.Printf("Team %s unlocked puzzle %s", team.Name, puz.Code)
				result.PuzzlesUnlocked = append(result.PuzzlesUnlocked, models.TeamPuzzleLink{
					TeamID:   team.ID,
					PuzzleID: puz.ID,
					Time:     now,
				})
			}
		}
	}

	return chained, nil
}

// ManualUnlock creates a single puzzle unlock for a team (staff
// action) and recomputes the closure afterwards.
func (s *UnlockService) ManualUnlock(tx *gorm.DB, team *models.Team, puzzleID uint, now time.Time) (*UnlockResult, error) {
	result := &UnlockResult{}
	created, err := s.store.UnlockPuzzle(tx, team.ID, puzzleID, now)
	if err != nil {
		return nil, err
	}
	if created {
		result.PuzzlesUnlocked = append(result.PuzzlesUnlocked, models.TeamPuzzleLink{
			TeamID:   team.ID,
			PuzzleID: puzzleID,
			Time:     now,
		})
	}

	more, err := s.Recompute(tx, team, now)
	if err != nil {
		return nil, err
	}
	result.PuzzlesUnlocked = append(result.PuzzlesUnlocked, more.PuzzlesUnlocked...)
	result.EpisodesUnlocked = append(result.EpisodesUnlocked, more.EpisodesUnlocked...)
	result.EpisodesSolved = append(result.EpisodesSolved, more.EpisodesSolved...)
	return result, nil
}
