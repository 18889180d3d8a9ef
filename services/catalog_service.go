// services/catalog_service.go - Staff-side writes to the puzzle graph
package services

import (
	"errors"
	"fmt"

	"mindhunt/models"

	"gorm.io/gorm"
)

// ErrNeedsConfirmation is returned together with a non-empty warning
// list when a write is suspicious but allowed. Staff resubmit with
// confirmation to proceed.
var ErrNeedsConfirmation = errors.New("configuration warnings need confirmation")

// CatalogService persists the shared, read-mostly puzzle graph: hunts,
// episodes, puzzles, eurekas and hints. Validation runs at write time
// so the evaluator never sees a malformed answer or regex.
type CatalogService struct {
	db *gorm.DB
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{db: db}
}

// SaveHunt creates or updates a hunt, keeping exactly one hunt
// current. Marking a hunt current clears the flag everywhere else in
// the same transaction; unmarking the current hunt is rejected.
func (s *CatalogService) SaveHunt(hunt *models.Hunt) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if !hunt.IsCurrent && hunt.ID != 0 {
			var old models.Hunt
			if err := tx.First(&old, hunt.ID).Error; err == nil && old.IsCurrent {
				return errors.New("is_current: there must always be one current hunt")
			}
		}
		if hunt.IsCurrent {
			if err := tx.Model(&models.Hunt{}).
				Where("is_current = ?", true).
				Update("is_current", false).Error; err != nil {
				return err
			}
		}
		return tx.Save(hunt).Error
	})
}

// CurrentHunt returns the single current hunt.
func (s *CatalogService) CurrentHunt() (*models.Hunt, error) {
	var hunt models.Hunt
	if err := s.db.Where("is_current = ?", true).First(&hunt).Error; err != nil {
		return nil, err
	}
	return &hunt, nil
}

// SaveEpisode creates or updates an episode.
func (s *CatalogService) SaveEpisode(episode *models.Episode) error {
	if episode.UnlocksID != nil && episode.ID != 0 && *episode.UnlocksID == episode.ID {
		return errors.New("unlocks: an episode cannot be its own successor")
	}
	return s.db.Save(episode).Error
}

// SavePuzzle validates and persists a puzzle, renumbering siblings to
// keep each episode a contiguous 1..N sequence. Soft warnings block
// the write until confirmed; validation errors always block.
func (s *CatalogService) SavePuzzle(puzzle *models.Puzzle, confirmed bool) ([]string, error) {
	if err := puzzle.Validate(); err != nil {
		return nil, err
	}

	var old *models.Puzzle
	if puzzle.ID != 0 {
		var existing models.Puzzle
		if err := s.db.First(&existing, puzzle.ID).Error; err != nil {
			return nil, err
		}
		old = &existing
	}

	var numPrereqs int64
	if puzzle.ID != 0 {
		if err := s.db.Table("puzzle_unlocks").
			Where("target_id = ?", puzzle.ID).
			Count(&numPrereqs).Error; err != nil {
			return nil, err
		}
	}
	warnings := puzzle.Warnings(int(numPrereqs))
	if len(warnings) > 0 && !confirmed {
		return warnings, ErrNeedsConfirmation
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(puzzle).Error; err != nil {
			return err
		}
		return s.reorder(tx, puzzle, old)
	})
	return warnings, err
}

// reorder shifts sibling numbers after a puzzle was created, moved or
// renumbered. A cross-episode move first closes the gap in the old
// episode, then treats the puzzle as appended to the new one.
func (s *CatalogService) reorder(tx *gorm.DB, puzzle *models.Puzzle, old *models.Puzzle) error {
	var numPuzzles int64
	if err := tx.Model(&models.Puzzle{}).
		Where("episode_id = ?", puzzle.EpisodeID).
		Count(&numPuzzles).Error; err != nil {
		return err
	}

	isNew := old == nil
	epChanged := !isNew && old.EpisodeID != puzzle.EpisodeID

	// Clip the requested number into the valid range.
	number := puzzle.Number
	if number > int(numPuzzles) {
		number = int(numPuzzles)
	}
	if number < 1 {
		number = 1
	}
	if number != puzzle.Number {
		puzzle.Number = number
		if err := tx.Model(puzzle).Update("number", number).Error; err != nil {
			return err
		}
	}

	oldNumber := int(numPuzzles) // appended at the end for new rows and moves
	if !isNew && !epChanged {
		oldNumber = old.Number
	}
	if epChanged {
		if err := tx.Model(&models.Puzzle{}).
			Where("episode_id = ? AND number > ?", old.EpisodeID, old.Number).
			Update("number", gorm.Expr("number - 1")).Error; err != nil {
			return err
		}
	}

	if number < oldNumber {
		return tx.Model(&models.Puzzle{}).
			Where("episode_id = ? AND number >= ? AND number < ? AND id <> ?",
				puzzle.EpisodeID, number, oldNumber, puzzle.ID).
			Update("number", gorm.Expr("number + 1")).Error
	}
	if number > oldNumber {
		return tx.Model(&models.Puzzle{}).
			Where("episode_id = ? AND number <= ? AND number > ? AND id <> ?",
				puzzle.EpisodeID, number, oldNumber, puzzle.ID).
			Update("number", gorm.Expr("number - 1")).Error
	}
	return nil
}

// DeletePuzzle removes a puzzle and closes the numbering gap it
// leaves behind.
func (s *CatalogService) DeletePuzzle(puzzleID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var puzzle models.Puzzle
		if err := tx.First(&puzzle, puzzleID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&puzzle).Error; err != nil {
			return err
		}
		return tx.Model(&models.Puzzle{}).
			Where("episode_id = ? AND number > ?", puzzle.EpisodeID, puzzle.Number).
			Update("number", gorm.Expr("number - 1")).Error
	})
}

// SetPrerequisites links the puzzles whose solves count toward
// unlocking target.
func (s *CatalogService) SetPrerequisites(target *models.Puzzle, prereqs []*models.Puzzle) error {
	for _, p := range prereqs {
		if p.ID == target.ID {
			return fmt.Errorf("unlocks: puzzle %s cannot be its own prerequisite", target.Code)
		}
		if p.EpisodeID != target.EpisodeID {
			return fmt.Errorf("unlocks: prerequisite %s is in a different episode", p.Code)
		}
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, p := range prereqs {
			if err := tx.Model(p).Association("Unlocks").Append(target); err != nil {
				return err
			}
		}
		return nil
	})
}

// PuzzleByCode resolves a puzzle by its external identifier.
func (s *CatalogService) PuzzleByCode(code string) (*models.Puzzle, error) {
	var puzzle models.Puzzle
	if err := s.db.Where("code = ?", code).First(&puzzle).Error; err != nil {
		return nil, err
	}
	return &puzzle, nil
}
