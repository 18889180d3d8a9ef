// handlers/guess.go - Answer submission
package handlers

import (
	"errors"
	"time"

	"mindhunt/database"
	"mindhunt/models"
	"mindhunt/services"

	"github.com/gofiber/fiber/v2"
)

// Clients disable the guess form for this long after each submission.
const guessTimeoutMillis = 5000

// SubmitGuess evaluates one answer for an unlocked puzzle.
// POST /api/puzzles/:code/guess
func SubmitGuess(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "error": "Unauthorized"})
	}

	var req struct {
		Guess string `json:"guess"`
	}
	if err := c.BodyParser(&req); err != nil || req.Guess == "" {
		return c.Status(400).JSON(fiber.Map{"success": false, "error": "guess is required"})
	}
	if len(req.Guess) > 100 {
		return c.Status(400).JSON(fiber.Map{"success": false, "error": "guess too long"})
	}

	puzzle, err := catalogService.PuzzleByCode(c.Params("code"))
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"success": false, "error": "Puzzle not found"})
	}

	db := database.GetDB()
	var episode models.Episode
	if err := db.First(&episode, puzzle.EpisodeID).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "error": "Database error"})
	}

	team, err := teamService.TeamForUser(episode.HuntID, user.ID)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "error": "Database error"})
	}
	if team == nil {
		return c.Status(403).JSON(fiber.Map{"success": false, "error": "Not on a team"})
	}

	var unlocked int64
	if err := db.Model(&models.TeamPuzzleLink{}).
		Where("team_id = ? AND puzzle_id = ?", team.ID, puzzle.ID).
		Count(&unlocked).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "error": "Database error"})
	}
	if unlocked == 0 {
		return c.Status(403).JSON(fiber.Map{"success": false, "error": "Puzzle is locked"})
	}

	result, err := guessService.Evaluate(user, team, puzzle, req.Guess, time.Now())
	if errors.Is(err, services.ErrGuessRejected) {
		return c.Status(403).JSON(fiber.Map{"success": false, "error": "Guess rejected"})
	}
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "error": "Evaluation failed"})
	}

	return c.JSON(fiber.Map{
		"success":        true,
		"status":         result.Status,
		"message":        result.Message,
		"guess":          result.Guess.Text,
		"timeout_length": guessTimeoutMillis,
	})
}
