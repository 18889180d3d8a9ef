// handlers/ws.go - Per-puzzle progress websocket
package handlers

import (
	"log"
	"strconv"
	"sync"
	"time"

	"mindhunt/database"
	"mindhunt/models"
	"mindhunt/realtime"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebSocketUpgrade gates the upgrade; auth middleware has already run
// and stored the claims in Locals, which the websocket handler reads.
func WebSocketUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// socketWriter serializes writes: hub events and replay responses
// arrive from different goroutines.
type socketWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *socketWriter) send(event realtime.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteJSON(event)
}

// PuzzleSocket streams progress events for one puzzle to one team.
// Staff connect with ?team_id=N to watch a specific team, or without
// it to watch the merged staff channel for the puzzle.
// GET /ws/puzzle/:code
var PuzzleSocket = websocket.New(func(conn *websocket.Conn) {
	defer conn.Close()
	writer := &socketWriter{conn: conn}

	userIDRaw := conn.Locals("userId")
	var userID uint
	switch v := userIDRaw.(type) {
	case float64:
		userID = uint(v)
	case uint:
		userID = v
	default:
		writer.send(realtime.Event{
			Type:    realtime.EventError,
			Content: map[string]any{"error": "unauthenticated"},
		})
		return
	}
	isStaff, _ := conn.Locals("isStaff").(bool)

	db := database.GetDB()
	var puzzle models.Puzzle
	if err := db.Preload("Episode").
		Where("code = ?", conn.Params("code")).
		First(&puzzle).Error; err != nil {
		writer.send(realtime.Event{
			Type:    realtime.EventError,
			Content: map[string]any{"error": "puzzle not found"},
		})
		return
	}

	var teamID uint
	if isStaff {
		if raw := conn.Query("team_id"); raw != "" {
			parsed, err := strconv.ParseUint(raw, 10, 32)
			if err != nil {
				writer.send(realtime.Event{
					Type:    realtime.EventError,
					Content: map[string]any{"error": "invalid team_id"},
				})
				return
			}
			teamID = uint(parsed)
		}
		// teamID 0 is the merged staff channel.
	} else {
		team, err := teamService.TeamForUser(puzzle.Episode.HuntID, userID)
		if err != nil || team == nil {
			writer.send(realtime.Event{
				Type:    realtime.EventError,
				Content: map[string]any{"error": "not on a team"},
			})
			return
		}
		teamID = team.ID

		var unlocked int64
		db.Model(&models.TeamPuzzleLink{}).
			Where("team_id = ? AND puzzle_id = ?", teamID, puzzle.ID).
			Count(&unlocked)
		if unlocked == 0 {
			writer.send(realtime.Event{
				Type:    realtime.EventError,
				Content: map[string]any{"error": "puzzle is locked"},
			})
			return
		}
	}

	sub := hub.Subscribe(realtime.ChannelKey{PuzzleID: puzzle.ID, TeamID: teamID})
	defer hub.Unsubscribe(sub)

	go func() {
		for event := range sub.C() {
			if err := writer.send(event); err != nil {
				return
			}
		}
	}()

	// Read loop: replay requests until the client disconnects.
	for {
		var msg struct {
			Type string `json:"type"`
			From string `json:"from"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		since, ok := parseSince(msg.From)
		if !ok {
			writer.send(realtime.Event{
				Type:    realtime.EventError,
				Content: map[string]any{"error": "invalid from value"},
			})
			continue
		}

		var err error
		switch msg.Type {
		case "guesses-plz":
			err = replayGuesses(writer, &puzzle, teamID, since)
		case "unlocks-plz":
			err = replayUnlocks(writer, &puzzle, teamID, since)
		case "eurekas-plz":
			err = replayEurekas(writer, &puzzle, teamID, since)
		case "hints-plz":
			err = replayHints(writer, &puzzle, teamID)
		default:
			writer.send(realtime.Event{
				Type:    realtime.EventError,
				Content: map[string]any{"error": "unknown request " + msg.Type},
			})
		}
		if err != nil {
			log.Printf("replay failed for puzzle %s team %d: %v", puzzle.Code, teamID, err)
			return
		}
	}
})

// parseSince interprets the from field: "all" replays everything,
// otherwise milliseconds since the Unix epoch.
func parseSince(from string) (time.Time, bool) {
	if from == "" || from == "all" {
		return time.Time{}, true
	}
	millis, err := strconv.ParseInt(from, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(millis), true
}

func replayGuesses(writer *socketWriter, puzzle *models.Puzzle, teamID uint, since time.Time) error {
	db := database.GetDB()
	query := db.Preload("User").
		Where("puzzle_id = ? AND guess_time > ?", puzzle.ID, since).
		Order("guess_time")
	if teamID != 0 {
		query = query.Where("team_id = ?", teamID)
	}

	var guesses []models.Guess
	if err := query.Find(&guesses).Error; err != nil {
		return err
	}

	for _, guess := range guesses {
		username := ""
		if guess.User != nil {
			username = guess.User.Username
		}
		if err := writer.send(realtime.Event{
			Type: realtime.EventOldGuess,
			Content: map[string]any{
				"guess_uid": guess.ID,
				"guess":     guess.Text,
				"timestamp": guess.GuessTime,
				"by":        username,
				"correct":   guess.IsCorrect(puzzle),
			},
		}); err != nil {
			return err
		}
	}
	return nil
}

func replayUnlocks(writer *socketWriter, puzzle *models.Puzzle, teamID uint, since time.Time) error {
	db := database.GetDB()
	query := db.Where("puzzle_id = ? AND time > ?", puzzle.ID, since).Order("time")
	if teamID != 0 {
		query = query.Where("team_id = ?", teamID)
	}

	var links []models.TeamPuzzleLink
	if err := query.Find(&links).Error; err != nil {
		return err
	}

	for _, link := range links {
		if err := writer.send(realtime.Event{
			Type: realtime.EventOldUnlock,
			Content: map[string]any{
				"puzzle_id": link.PuzzleID,
				"team_id":   link.TeamID,
				"timestamp": link.Time,
			},
		}); err != nil {
			return err
		}
	}
	return nil
}

// replayEurekas resends the team's non-admin eureka discoveries for
// the puzzle.
func replayEurekas(writer *socketWriter, puzzle *models.Puzzle, teamID uint, since time.Time) error {
	db := database.GetDB()
	query := db.Preload("Eureka").
		Joins("JOIN eurekas ON eurekas.id = team_eureka_links.eureka_id").
		Where("eurekas.puzzle_id = ? AND eurekas.admin_only = ? AND team_eureka_links.time > ?",
			puzzle.ID, false, since).
		Order("team_eureka_links.time")
	if teamID != 0 {
		query = query.Where("team_eureka_links.team_id = ?", teamID)
	}

	var links []models.TeamEurekaLink
	if err := query.Find(&links).Error; err != nil {
		return err
	}

	var hunt models.Hunt
	if err := db.First(&hunt, puzzle.Episode.HuntID).Error; err != nil {
		return err
	}

	for _, link := range links {
		if link.Eureka == nil {
			continue
		}
		if err := writer.send(realtime.Event{
			Type: realtime.EventOldEureka,
			Content: map[string]any{
				"eureka_uid": link.EurekaID,
				"eureka":     link.Eureka.Answer,
				"feedback":   link.Eureka.FeedbackFor(&hunt),
				"timestamp":  link.Time,
			},
		}); err != nil {
			return err
		}
	}
	return nil
}

// replayHints resends every hint already due for the team, so a
// reconnecting client recovers hints its timers delivered while it was
// away. The staff channel has no single team to compute due times for.
func replayHints(writer *socketWriter, puzzle *models.Puzzle, teamID uint) error {
	if teamID == 0 {
		return nil
	}

	db := database.GetDB()
	var hints []models.Hint
	if err := db.Where("puzzle_id = ?", puzzle.ID).Find(&hints).Error; err != nil {
		return err
	}

	now := time.Now()
	for i := range hints {
		hint := &hints[i]
		fireAt, err := hintScheduler.FireTime(db, hint, teamID)
		if err != nil {
			return err
		}
		if now.Before(fireAt) {
			continue
		}
		if err := writer.send(realtime.Event{
			Type: realtime.EventNewHint,
			Content: map[string]any{
				"hint_uid": hint.ID,
				"hint":     hint.Text,
				"time":     hint.Delay.String(),
			},
		}); err != nil {
			return err
		}
	}
	return nil
}
