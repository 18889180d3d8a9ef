// services/hint_scheduler.go - Cancellable deferred hint delivery
package services

import (
	"log"
	"sort"
	"sync"
	"time"

	"mindhunt/models"
	"mindhunt/realtime"

	"gorm.io/gorm"
)

type hintKey struct {
	teamID   uint
	puzzleID uint
	hintID   uint
}

// HintScheduler arms one cancellable timer per (team, puzzle, hint).
// The in-memory timer table is a derived cache only: the firing
// callback re-reads the persisted discovery rows before delivering,
// and Recover rebuilds every pending timer from the store after a
// restart.
type HintScheduler struct {
	db    *gorm.DB
	store ProgressStore
	hub   realtime.Publisher

	mu        sync.Mutex
	timers    map[hintKey]*time.Timer
	delivered map[hintKey]bool
}

func NewHintScheduler(db *gorm.DB, hub realtime.Publisher) *HintScheduler {
	return &HintScheduler{
		db:        db,
		hub:       hub,
		timers:    make(map[hintKey]*time.Timer),
		delivered: make(map[hintKey]bool),
	}
}

// FireTime computes when a hint becomes due for a team. The base
// target is effective start + delay. Once the team has discovered the
// hint's eureka threshold, the target may shorten to the discovery
// that met the threshold plus the short delay; the earlier of the two
// wins. Before the threshold is met only the base delay applies.
func (s *HintScheduler) FireTime(tx *gorm.DB, hint *models.Hint, teamID uint) (time.Time, error) {
	var puzzle models.Puzzle
	if err := tx.First(&puzzle, hint.PuzzleID).Error; err != nil {
		return time.Time{}, err
	}
	start, err := s.store.EffectiveStart(tx, teamID, &puzzle)
	if err != nil {
		return time.Time{}, err
	}
	fireAt := start.Add(hint.Delay)

	var eurekas []models.Eureka
	if err := tx.Model(hint).Association("Eurekas").Find(&eurekas); err != nil {
		return time.Time{}, err
	}
	if len(eurekas) == 0 || hint.NumberEurekas <= 0 {
		return fireAt, nil
	}

	eurekaIDs := make([]uint, 0, len(eurekas))
	for _, e := range eurekas {
		eurekaIDs = append(eurekaIDs, e.ID)
	}
	var discoveries []models.TeamEurekaLink
	if err := tx.Where("team_id = ? AND eureka_id IN ?", teamID, eurekaIDs).
		Find(&discoveries).Error; err != nil {
		return time.Time{}, err
	}
	if len(discoveries) < hint.NumberEurekas {
		return fireAt, nil
	}

	times := make([]time.Time, 0, len(discoveries))
	for _, d := range discoveries {
		times = append(times, d.Time)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	// The discovery that met the threshold starts the short clock.
	short := times[hint.NumberEurekas-1].Add(hint.ShortDelay)
	if short.Before(fireAt) {
		return short, nil
	}
	return fireAt, nil
}

// ArmTeamPuzzle schedules every hint of a puzzle for a team. Called
// when the puzzle unlocks and from Recover after a restart.
func (s *HintScheduler) ArmTeamPuzzle(teamID, puzzleID uint) error {
	var hints []models.Hint
	if err := s.db.Where("puzzle_id = ?", puzzleID).Find(&hints).Error; err != nil {
		return err
	}
	for i := range hints {
		s.arm(teamID, &hints[i])
	}
	return nil
}

// Rearm recomputes every hint timer for a (team, puzzle) pair after a
// new eureka discovery may have shortened a delay.
func (s *HintScheduler) Rearm(teamID, puzzleID uint) {
	if err := s.ArmTeamPuzzle(teamID, puzzleID); err != nil {
		log.Printf("hint rearm failed for team %d puzzle %d: %v", teamID, puzzleID, err)
	}
}

// arm replaces any pending timer for the hint with one for the
// freshly computed target. Already-due hints deliver immediately
// instead of waiting on a negative duration.
func (s *HintScheduler) arm(teamID uint, hint *models.Hint) {
	key := hintKey{teamID: teamID, puzzleID: hint.PuzzleID, hintID: hint.ID}

	fireAt, err := s.FireTime(s.db, hint, teamID)
	if err != nil {
		log.Printf("hint schedule failed for team %d hint %d: %v", teamID, hint.ID, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.delivered[key] {
		return
	}
	if timer, ok := s.timers[key]; ok {
		timer.Stop()
	}

	delay := time.Until(fireAt)
	if delay < 0 {
		delay = 0
	}
	s.timers[key] = time.AfterFunc(delay, func() {
		s.fire(key)
	})
}

// fire runs on the timer goroutine. State may have changed since
// scheduling, so the due time is recomputed from the store; a timer
// that went stale re-arms itself instead of delivering early.
func (s *HintScheduler) fire(key hintKey) {
	var hint models.Hint
	if err := s.db.First(&hint, key.hintID).Error; err != nil {
		log.Printf("hint %d vanished before delivery: %v", key.hintID, err)
		s.drop(key)
		return
	}

	fireAt, err := s.FireTime(s.db, &hint, key.teamID)
	if err != nil {
		log.Printf("hint delivery recheck failed for team %d hint %d: %v", key.teamID, key.hintID, err)
		s.drop(key)
		return
	}

	now := time.Now()
	if now.Before(fireAt) {
		s.mu.Lock()
		if !s.delivered[key] {
			s.timers[key] = time.AfterFunc(fireAt.Sub(now), func() {
				s.fire(key)
			})
		}
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	if s.delivered[key] {
		s.mu.Unlock()
		return
	}
	s.delivered[key] = true
	delete(s.timers, key)
	s.mu.Unlock()

	s.hub.Publish(realtime.ChannelKey{PuzzleID: key.puzzleID, TeamID: key.teamID}, realtime.Event{
		Type: realtime.EventNewHint,
		Content: map[string]any{
			"hint_uid": hint.ID,
			"hint":     hint.Text,
			"time":     hint.Delay.String(),
		},
	})
}

func (s *HintScheduler) drop(key hintKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.timers, key)
}

// CancelTeam stops every pending timer for a team, e.g. on a staff
// progress reset. Delivery state is cleared so a re-unlocked puzzle
// can hint again.
func (s *HintScheduler) CancelTeam(teamID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, timer := range s.timers {
		if key.teamID != teamID {
			continue
		}
		timer.Stop()
		delete(s.timers, key)
	}
	for key := range s.delivered {
		if key.teamID == teamID {
			delete(s.delivered, key)
		}
	}
}

// Stop cancels every timer. Pending hints are rebuilt from the store
// on the next Recover, never from in-memory state.
func (s *HintScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, timer := range s.timers {
		timer.Stop()
		delete(s.timers, key)
	}
}

// Recover rebuilds the timer table from persisted unlocks after a
// process restart.
func (s *HintScheduler) Recover() error {
	var links []models.TeamPuzzleLink
	if err := s.db.
		Joins("JOIN hints ON hints.puzzle_id = team_puzzle_links.puzzle_id").
		Group("team_puzzle_links.id").
		Find(&links).Error; err != nil {
		return err
	}

	for _, link := range links {
		if err := s.ArmTeamPuzzle(link.TeamID, link.PuzzleID); err != nil {
			return err
		}
	}
	log.Printf("🔄 Hint scheduler recovered %d unlocked puzzles", len(links))
	return nil
}

// Pending returns the number of armed timers. Used by staff
// dashboards and tests.
func (s *HintScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
