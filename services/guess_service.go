// services/guess_service.go - Automated guess response engine
package services

import (
	"errors"
	"log"
	"time"

	"mindhunt/models"
	"mindhunt/realtime"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GuessStatus string

const (
	StatusCorrect GuessStatus = "correct"
	StatusEureka  GuessStatus = "eureka"
	StatusWrong   GuessStatus = "wrong"
)

const wrongAnswerMessage = "Wrong Answer"

// ErrGuessRejected is the hard rejection for guesses that must not
// even reach the audit trail: no team, cross-hunt team, finished hunt.
var ErrGuessRejected = errors.New("guess rejected")

// GuessResult is the evaluator's verdict plus the persisted guess.
type GuessResult struct {
	Status  GuessStatus `json:"status"`
	Message string      `json:"message"`
	Guess   *models.Guess
	Unlocks *UnlockResult
}

// GuessService classifies submitted guesses and applies the resulting
// state changes. One Evaluate call is one transaction with the team
// row locked, so concurrent guesses from the same team serialize
// while other teams proceed independently.
type GuessService struct {
	db      *gorm.DB
	store   ProgressStore
	unlocks *UnlockService
	hints   *HintScheduler
	hub     realtime.Publisher
}

func NewGuessService(db *gorm.DB, unlocks *UnlockService, hints *HintScheduler, hub realtime.Publisher) *GuessService {
	return &GuessService{db: db, unlocks: unlocks, hints: hints, hub: hub}
}

// Evaluate processes one answer submission for a puzzle. The guess is
// persisted unconditionally before classification; only hard
// rejections skip persistence entirely.
func (s *GuessService) Evaluate(user *models.User, team *models.Team, puzzle *models.Puzzle, text string, now time.Time) (*GuessResult, error) {
	var episode models.Episode
	if err := s.db.Preload("Hunt").First(&episode, puzzle.EpisodeID).Error; err != nil {
		return nil, err
	}
	hunt := episode.Hunt

	if team == nil || hunt == nil || hunt.IsFinished(now) || team.HuntID != hunt.ID {
		return nil, ErrGuessRejected
	}

	result := &GuessResult{}
	var discovered *models.Eureka

	err := s.db.Transaction(func(tx *gorm.DB) error {
		// Serialize guesses from the same team. SQLite has no row
		// locks; its single-writer transactions serialize anyway.
		query := tx
		if tx.Dialector.Name() == "postgres" {
			query = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var locked models.Team
		if err := query.First(&locked, team.ID).Error; err != nil {
			return err
		}

		guess := &models.Guess{
			UserID:     user.ID,
			TeamID:     team.ID,
			PuzzleID:   puzzle.ID,
			Text:       text,
			GuessTime:  now,
			ModifiedAt: now,
		}
		if err := tx.Create(guess).Error; err != nil {
			return err
		}
		result.Guess = guess

		if guess.IsCorrect(puzzle) {
			result.Status = StatusCorrect
			result.Message = "Correct!"
			return s.applySolve(tx, team, puzzle, guess, now, result)
		}

		normalized := models.Normalize(text)
		var eurekas []models.Eureka
		if err := tx.Where("puzzle_id = ?", puzzle.ID).
			Order("id").
			Find(&eurekas).Error; err != nil {
			return err
		}
		for i := range eurekas {
			eureka := &eurekas[i]
			if !eureka.Matches(normalized) {
				continue
			}
			created, err := s.store.DiscoverEureka(tx, team.ID, eureka.ID, now)
			if err != nil {
				return err
			}
			if created {
				discovered = eureka
			}
			if eureka.AdminOnly {
				// Recorded for staff but never surfaced to the team.
				result.Status = StatusWrong
				result.Message = wrongAnswerMessage
			} else {
				result.Status = StatusEureka
				result.Message = eureka.FeedbackFor(hunt)
			}
			return nil
		}

		result.Status = StatusWrong
		result.Message = wrongAnswerMessage
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(team, puzzle, user, result, discovered)
	return result, nil
}

// applySolve creates the solve row and recomputes the unlock closure.
// A duplicate correct guess is still answered "correct" but mutates
// nothing.
func (s *GuessService) applySolve(tx *gorm.DB, team *models.Team, puzzle *models.Puzzle, guess *models.Guess, now time.Time, result *GuessResult) error {
	var count int64
	if err := tx.Model(&models.PuzzleSolve{}).
		Where("team_id = ? AND puzzle_id = ?", team.ID, puzzle.ID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	start, err := s.store.EffectiveStart(tx, team.ID, puzzle)
	if err != nil {
		return err
	}
	duration := now.Sub(start)
	if duration < 0 {
		duration = 0
	}

	if _, err := s.store.SolvePuzzle(tx, team.ID, puzzle.ID, guess.ID, duration); err != nil {
		return err
	}
	log.Printf("Team %s correctly solved puzzle %s", team.Name, puzzle.Code)

	unlocks, err := s.unlocks.Recompute(tx, team, now)
	if err != nil {
		return err
	}
	result.Unlocks = unlocks
	return nil
}

// notify publishes the realtime events for a committed evaluation and
// re-arms hint timers where discoveries or unlocks changed the
// schedule. Ordering mirrors the commit: guess, solve, unlocks.
func (s *GuessService) notify(team *models.Team, puzzle *models.Puzzle, user *models.User, result *GuessResult, discovered *models.Eureka) {
	key := realtime.ChannelKey{PuzzleID: puzzle.ID, TeamID: team.ID}

	s.hub.Publish(key, realtime.Event{
		Type: realtime.EventNewGuess,
		Content: map[string]any{
			"guess_uid": result.Guess.ID,
			"guess":     result.Guess.Text,
			"timestamp": result.Guess.GuessTime,
			"by":        user.Username,
			"correct":   result.Status == StatusCorrect,
		},
	})

	if discovered != nil {
		if !discovered.AdminOnly {
			s.hub.Publish(key, realtime.Event{
				Type: realtime.EventNewEureka,
				Content: map[string]any{
					"eureka_uid": discovered.ID,
					"eureka":     discovered.Answer,
					"feedback":   result.Message,
				},
			})
		}
		if s.hints != nil {
			s.hints.Rearm(team.ID, puzzle.ID)
		}
	}

	if result.Unlocks == nil {
		return
	}
	s.hub.Publish(key, realtime.Event{
		Type: realtime.EventNewSolve,
		Content: map[string]any{
			"puzzle_id": puzzle.ID,
			"code":      puzzle.Code,
			"timestamp": result.Guess.GuessTime,
		},
	})
	for _, unlock := range result.Unlocks.PuzzlesUnlocked {
		s.hub.Publish(realtime.ChannelKey{PuzzleID: unlock.PuzzleID, TeamID: team.ID}, realtime.Event{
			Type: realtime.EventNewUnlock,
			Content: map[string]any{
				"puzzle_id": unlock.PuzzleID,
				"timestamp": unlock.Time,
			},
		})
		if s.hints != nil {
			if err := s.hints.ArmTeamPuzzle(team.ID, unlock.PuzzleID); err != nil {
				log.Printf("failed to arm hints for team %d puzzle %d: %v", team.ID, unlock.PuzzleID, err)
			}
		}
	}
}
