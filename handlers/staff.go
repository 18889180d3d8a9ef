// handlers/staff.go - Staff progression controls and catalog writes
package handlers

import (
	"errors"
	"log"
	"time"

	"mindhunt/database"
	"mindhunt/models"
	"mindhunt/realtime"
	"mindhunt/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// ManualUnlock force-unlocks a puzzle for one team and recomputes the
// unlock closure the new link may enable.
// POST /api/staff/unlock
func ManualUnlock(c *fiber.Ctx) error {
	var req struct {
		TeamID   uint `json:"team_id"`
		PuzzleID uint `json:"puzzle_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.TeamID == 0 || req.PuzzleID == 0 {
		return c.Status(400).JSON(fiber.Map{
			"success": false,
			"error":   "team_id and puzzle_id are required",
		})
	}

	team, err := teamService.TeamByID(req.TeamID)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"success": false, "error": "Team not found"})
	}

	result, err := unlockTeamPuzzle(team, req.PuzzleID)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"success":          true,
		"puzzles_unlocked": len(result.PuzzlesUnlocked),
	})
}

// UnlockAll force-unlocks a puzzle for every team of its hunt.
// POST /api/staff/unlock-all
func UnlockAll(c *fiber.Ctx) error {
	var req struct {
		PuzzleID uint `json:"puzzle_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.PuzzleID == 0 {
		return c.Status(400).JSON(fiber.Map{"success": false, "error": "puzzle_id is required"})
	}

	db := database.GetDB()
	var puzzle models.Puzzle
	if err := db.Preload("Episode").First(&puzzle, req.PuzzleID).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{"success": false, "error": "Puzzle not found"})
	}

	teams, err := teamService.TeamsForHunt(puzzle.Episode.HuntID)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "error": "Database error"})
	}

	count := 0
	for i := range teams {
		result, err := unlockTeamPuzzle(&teams[i], puzzle.ID)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"success": false, "error": err.Error()})
		}
		count += len(result.PuzzlesUnlocked)
	}

	log.Printf("🔓 Staff unlocked puzzle %s for %d teams", puzzle.Code, len(teams))
	return c.JSON(fiber.Map{
		"success":          true,
		"teams":            len(teams),
		"puzzles_unlocked": count,
	})
}

func unlockTeamPuzzle(team *models.Team, puzzleID uint) (*services.UnlockResult, error) {
	now := time.Now()
	var result *services.UnlockResult
	err := database.GetDB().Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = unlockService.ManualUnlock(tx, team, puzzleID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	notifyUnlocks(team, result)
	return result, nil
}

// notifyUnlocks publishes unlock events and arms hint timers for
// every puzzle a staff action opened.
func notifyUnlocks(team *models.Team, result *services.UnlockResult) {
	for _, unlock := range result.PuzzlesUnlocked {
		hub.Publish(realtime.ChannelKey{PuzzleID: unlock.PuzzleID, TeamID: team.ID}, realtime.Event{
			Type: realtime.EventNewUnlock,
			Content: map[string]any{
				"puzzle_id": unlock.PuzzleID,
				"timestamp": unlock.Time,
			},
		})
		if hintScheduler != nil {
			if err := hintScheduler.ArmTeamPuzzle(team.ID, unlock.PuzzleID); err != nil {
				log.Printf("failed to arm hints for team %d puzzle %d: %v", team.ID, unlock.PuzzleID, err)
			}
		}
	}
}

// RecomputeAll reruns the unlock engine for every team of the current
// hunt. Useful after staff edit the puzzle graph mid-hunt.
// POST /api/staff/recompute
func RecomputeAll(c *fiber.Ctx) error {
	hunt, err := catalogService.CurrentHunt()
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"success": false, "error": "No current hunt"})
	}

	teams, err := teamService.TeamsForHunt(hunt.ID)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "error": "Database error"})
	}

	db := database.GetDB()
	now := time.Now()
	unlocked := 0
	for i := range teams {
		team := &teams[i]
		var result *services.UnlockResult
		err := db.Transaction(func(tx *gorm.DB) error {
			var err error
			result, err = unlockService.Recompute(tx, team, now)
			return err
		})
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"success": false, "error": err.Error()})
		}

		notifyUnlocks(team, result)
		unlocked += len(result.PuzzlesUnlocked)
	}

	log.Printf("🔄 Unlock engine recomputed for %d teams, %d new unlocks", len(teams), unlocked)
	return c.JSON(fiber.Map{
		"success":          true,
		"teams":            len(teams),
		"puzzles_unlocked": unlocked,
	})
}

// ResetTeam wipes a team's progress, guesses and hint timers.
// POST /api/staff/teams/:id/reset
func ResetTeam(c *fiber.Ctx) error {
	teamID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "error": "Invalid team ID"})
	}

	team, err := teamService.TeamByID(uint(teamID))
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"success": false, "error": "Team not found"})
	}

	if err := teamService.Reset(team); err != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "error": "Reset failed"})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Team progress reset",
	})
}

// GetTeams lists every team of the current hunt for the staff
// dashboard.
// GET /api/staff/teams
func GetTeams(c *fiber.Ctx) error {
	hunt, err := catalogService.CurrentHunt()
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"success": false, "error": "No current hunt"})
	}

	teams, err := teamService.TeamsForHunt(hunt.ID)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "error": "Database error"})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"teams":   teams,
	})
}

// SaveHunt creates or updates a hunt.
// POST /api/staff/hunts
func SaveHunt(c *fiber.Ctx) error {
	var hunt models.Hunt
	if err := c.BodyParser(&hunt); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "error": "Invalid request body"})
	}

	if err := catalogService.SaveHunt(&hunt); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "error": err.Error()})
	}
	return c.JSON(fiber.Map{"success": true, "hunt": hunt})
}

// SaveEpisode creates or updates an episode.
// POST /api/staff/episodes
func SaveEpisode(c *fiber.Ctx) error {
	var episode models.Episode
	if err := c.BodyParser(&episode); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "error": "Invalid request body"})
	}

	if err := catalogService.SaveEpisode(&episode); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "error": err.Error()})
	}
	return c.JSON(fiber.Map{"success": true, "episode": episode})
}

// SavePuzzle validates and persists a puzzle. Soft warnings come back
// with 409 until the client resubmits with confirmed=true.
// POST /api/staff/puzzles
func SavePuzzle(c *fiber.Ctx) error {
	var req struct {
		models.Puzzle
		Confirmed bool `json:"confirmed"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "error": "Invalid request body"})
	}

	warnings, err := catalogService.SavePuzzle(&req.Puzzle, req.Confirmed)
	if errors.Is(err, services.ErrNeedsConfirmation) {
		return c.Status(409).JSON(fiber.Map{
			"success":  false,
			"warnings": warnings,
			"error":    "Confirmation required",
		})
	}
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"puzzle":   req.Puzzle,
		"warnings": warnings,
	})
}

// DeletePuzzle removes a puzzle and renumbers its episode.
// DELETE /api/staff/puzzles/:id
func DeletePuzzle(c *fiber.Ctx) error {
	puzzleID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "error": "Invalid puzzle ID"})
	}

	if err := catalogService.DeletePuzzle(uint(puzzleID)); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "error": err.Error()})
	}
	return c.JSON(fiber.Map{"success": true})
}
