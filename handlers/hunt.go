// handlers/hunt.go - Player-facing hunt views
package handlers

import (
	"sort"
	"time"

	"mindhunt/database"
	"mindhunt/models"

	"github.com/gofiber/fiber/v2"
)

// GetCurrentHunt returns the current hunt and whether it is open for
// the caller right now.
// GET /api/hunt
func GetCurrentHunt(c *fiber.Ctx) error {
	hunt, err := catalogService.CurrentHunt()
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"success": false, "error": "No current hunt"})
	}

	now := time.Now()
	return c.JSON(fiber.Map{
		"success":  true,
		"hunt":     hunt,
		"locked":   hunt.IsLocked(now),
		"open":     hunt.IsOpen(now),
		"finished": hunt.IsFinished(now),
	})
}

// GetEpisodes returns the caller's team view of the current hunt:
// every unlocked-and-open episode with its unlocked puzzles and solve
// state. Locked content is filtered out entirely, not greyed out.
// GET /api/hunt/episodes
func GetEpisodes(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "error": "Unauthorized"})
	}

	hunt, err := catalogService.CurrentHunt()
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"success": false, "error": "No current hunt"})
	}

	team, err := teamService.TeamForUser(hunt.ID, user.ID)
	if err != nil || team == nil {
		return c.Status(403).JSON(fiber.Map{"success": false, "error": "Not on a team"})
	}

	db := database.GetDB()
	now := time.Now()

	var epLinks []models.TeamEpisodeLink
	if err := db.Preload("Episode").
		Where("team_id = ?", team.ID).
		Find(&epLinks).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "error": "Database error"})
	}

	var puzLinks []models.TeamPuzzleLink
	if err := db.Where("team_id = ?", team.ID).Find(&puzLinks).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "error": "Database error"})
	}
	unlockedPuzzles := make(map[uint]time.Time)
	for _, link := range puzLinks {
		unlockedPuzzles[link.PuzzleID] = link.Time
	}

	var solves []models.PuzzleSolve
	if err := db.Where("team_id = ?", team.ID).Find(&solves).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "error": "Database error"})
	}
	solved := make(map[uint]models.PuzzleSolve)
	for _, s := range solves {
		solved[s.PuzzleID] = s
	}

	episodes := make([]fiber.Map, 0, len(epLinks))
	for _, link := range epLinks {
		episode := link.Episode
		if episode == nil || episode.HuntID != hunt.ID {
			continue
		}
		// The headstart moves the episode open time forward for this
		// team only.
		opensAt := episode.StartDate.Add(-link.Headstart)
		if now.Before(opensAt) {
			continue
		}

		var puzzles []models.Puzzle
		if err := db.Where("episode_id = ?", episode.ID).
			Order("number").
			Find(&puzzles).Error; err != nil {
			return c.Status(500).JSON(fiber.Map{"success": false, "error": "Database error"})
		}

		puzzleViews := make([]fiber.Map, 0, len(puzzles))
		for _, puz := range puzzles {
			unlockTime, ok := unlockedPuzzles[puz.ID]
			if !ok {
				continue
			}
			view := fiber.Map{
				"code":        puz.Code,
				"name":        puz.Name,
				"number":      puz.Number,
				"unlocked_at": unlockTime,
				"solved":      false,
			}
			if solve, ok := solved[puz.ID]; ok {
				view["solved"] = true
				view["duration"] = solve.Duration.String()
			}
			puzzleViews = append(puzzleViews, view)
		}

		episodes = append(episodes, fiber.Map{
			"id":      episode.ID,
			"name":    episode.Name,
			"number":  episode.Number,
			"opened":  opensAt,
			"puzzles": puzzleViews,
		})
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"episodes": episodes,
	})
}

// GetEpisodeRank returns the caller's finishing rank for an episode:
// how many teams had already finished it when they did.
// GET /api/hunt/episodes/:id/rank
func GetEpisodeRank(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "error": "Unauthorized"})
	}

	episodeID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "error": "Invalid episode ID"})
	}

	hunt, err := catalogService.CurrentHunt()
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"success": false, "error": "No current hunt"})
	}
	team, err := teamService.TeamForUser(hunt.ID, user.ID)
	if err != nil || team == nil {
		return c.Status(403).JSON(fiber.Map{"success": false, "error": "Not on a team"})
	}

	db := database.GetDB()
	var solve models.EpisodeSolve
	if err := db.Where("team_id = ? AND episode_id = ?", team.ID, episodeID).
		First(&solve).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{"success": false, "error": "Episode not finished"})
	}

	var earlier int64
	if err := db.Model(&models.EpisodeSolve{}).
		Where("episode_id = ? AND time < ?", episodeID, solve.Time).
		Count(&earlier).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "error": "Database error"})
	}

	return c.JSON(fiber.Map{
		"success":     true,
		"rank":        earlier + 1,
		"finished_at": solve.Time,
	})
}

// GetLeaderboard ranks every team of the current hunt by solved
// puzzles, ties broken by total solve duration.
// GET /api/hunt/leaderboard
func GetLeaderboard(c *fiber.Ctx) error {
	hunt, err := catalogService.CurrentHunt()
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"success": false, "error": "No current hunt"})
	}

	teams, err := teamService.TeamsForHunt(hunt.ID)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"success": false, "error": "Database error"})
	}

	db := database.GetDB()
	type row struct {
		TeamID    uint
		Name      string
		Solves    int
		Duration  time.Duration
		LastSolve time.Time
	}

	rows := make([]row, 0, len(teams))
	for _, team := range teams {
		var solves []models.PuzzleSolve
		if err := db.Preload("Guess").
			Where("team_id = ?", team.ID).
			Find(&solves).Error; err != nil {
			return c.Status(500).JSON(fiber.Map{"success": false, "error": "Database error"})
		}
		var total time.Duration
		var last time.Time
		for _, s := range solves {
			total += s.Duration
			if s.Guess != nil && s.Guess.GuessTime.After(last) {
				last = s.Guess.GuessTime
			}
		}
		rows = append(rows, row{
			TeamID:    team.ID,
			Name:      team.Name,
			Solves:    len(solves),
			Duration:  total,
			LastSolve: last,
		})
	}

	// Most solves first; ties go to whoever got there sooner.
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Solves != rows[j].Solves {
			return rows[i].Solves > rows[j].Solves
		}
		return rows[i].LastSolve.Before(rows[j].LastSolve)
	})

	entries := make([]fiber.Map, 0, len(rows))
	for i, r := range rows {
		entry := fiber.Map{
			"rank":           i + 1,
			"team_id":        r.TeamID,
			"name":           r.Name,
			"solves":         r.Solves,
			"total_duration": r.Duration.String(),
		}
		if !r.LastSolve.IsZero() {
			entry["last_solve"] = r.LastSolve
		}
		entries = append(entries, entry)
	}

	return c.JSON(fiber.Map{
		"success":     true,
		"leaderboard": entries,
	})
}
