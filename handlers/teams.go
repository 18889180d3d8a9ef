// handlers/teams.go - Team registration and membership
package handlers

import (
	"mindhunt/database"
	"mindhunt/middleware"
	"mindhunt/models"

	"github.com/gofiber/fiber/v2"
)

func currentUser(c *fiber.Ctx) (*models.User, error) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := database.GetDB().First(&user, userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateTeam registers a team for the current hunt with the caller as
// first member.
// POST /api/teams
func CreateTeam(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "error": "Unauthorized"})
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "error": "Invalid request body"})
	}

	hunt, err := catalogService.CurrentHunt()
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"success": false, "error": "No current hunt"})
	}

	if existing, _ := teamService.TeamForUser(hunt.ID, user.ID); existing != nil {
		return c.Status(409).JSON(fiber.Map{
			"success": false,
			"error":   "Already on a team for this hunt",
		})
	}

	team, err := teamService.CreateTeam(req.Name, hunt, user)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "error": err.Error()})
	}

	return c.Status(201).JSON(fiber.Map{
		"success": true,
		"team":    team,
	})
}

// JoinTeam adds the caller to the team matching a join code.
// POST /api/teams/join
func JoinTeam(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "error": "Unauthorized"})
	}

	var req struct {
		JoinCode string `json:"join_code"`
	}
	if err := c.BodyParser(&req); err != nil || req.JoinCode == "" {
		return c.Status(400).JSON(fiber.Map{"success": false, "error": "join_code is required"})
	}

	hunt, err := catalogService.CurrentHunt()
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"success": false, "error": "No current hunt"})
	}

	team, err := teamService.JoinTeam(user, hunt, req.JoinCode)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"team":    team,
	})
}

// GetMyTeam returns the caller's team for the current hunt, including
// members.
// GET /api/teams/mine
func GetMyTeam(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "error": "Unauthorized"})
	}

	hunt, err := catalogService.CurrentHunt()
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"success": false, "error": "No current hunt"})
	}

	team, err := teamService.TeamForUser(hunt.ID, user.ID)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "error": "Database error"})
	}
	if team == nil {
		return c.Status(404).JSON(fiber.Map{"success": false, "error": "Not on a team"})
	}

	if err := database.GetDB().Preload("Members").First(team, team.ID).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "error": "Database error"})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"team":    team,
	})
}
