// models/hunt.go - Hunt and Episode catalog models
package models

import "time"

// Hunt is the top level container for a puzzlehunt event.
// Exactly one hunt is the current hunt at any time; SaveHunt in the
// catalog service enforces that transactionally.
type Hunt struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	Name             string    `json:"name" gorm:"not null;size:200"`
	Number           int       `json:"number" gorm:"uniqueIndex;not null"`
	TeamSize         int       `json:"team_size" gorm:"default:4"`
	StartDate        time.Time `json:"start_date" gorm:"not null"`
	EndDate          time.Time `json:"end_date" gorm:"not null"`
	DisplayStartDate time.Time `json:"display_start_date"`
	DisplayEndDate   time.Time `json:"display_end_date"`
	IsCurrent        bool      `json:"is_current" gorm:"default:false;index"`
	IsDemo           bool      `json:"is_demo" gorm:"default:false"`
	EurekaFeedback   string    `json:"eureka_feedback" gorm:"size:255"`
	Episodes         []Episode `json:"episodes,omitempty" gorm:"foreignKey:HuntID"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (Hunt) TableName() string {
	return "hunts"
}

// IsLocked reports whether the hunt has not started yet.
func (h *Hunt) IsLocked(now time.Time) bool {
	return now.Before(h.StartDate)
}

// IsOpen reports whether the hunt is running for registered teams.
func (h *Hunt) IsOpen(now time.Time) bool {
	return !now.Before(h.StartDate) && now.Before(h.EndDate)
}

// IsFinished reports whether the hunt window has closed.
func (h *Hunt) IsFinished(now time.Time) bool {
	return !now.Before(h.EndDate)
}

// DurationList is a headstart schedule persisted as a JSON column.
// Index k holds the headstart granted to the k-th (0-indexed) team
// that finished the episode.
type DurationList []time.Duration

// Episode is an ordered chapter of puzzles within a hunt. UnlocksID
// points at the episode this one is a prerequisite for, forming a
// chain. Episodes nobody points at are the roots the unlock engine
// opens for fresh teams.
type Episode struct {
	ID         uint         `json:"id" gorm:"primaryKey"`
	Name       string       `json:"name" gorm:"not null;size:200"`
	Number     int          `json:"number" gorm:"uniqueIndex;not null"`
	StartDate  time.Time    `json:"start_date" gorm:"not null"`
	HuntID     uint         `json:"hunt_id" gorm:"not null;index"`
	Hunt       *Hunt        `json:"hunt,omitempty" gorm:"foreignKey:HuntID"`
	UnlocksID  *uint        `json:"unlocks_id" gorm:"index"`
	Unlocks    *Episode     `json:"-" gorm:"foreignKey:UnlocksID"`
	Headstarts DurationList `json:"headstarts" gorm:"serializer:json"`
	Puzzles    []Puzzle     `json:"puzzles,omitempty" gorm:"foreignKey:EpisodeID"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

func (Episode) TableName() string {
	return "episodes"
}

// IsOpen reports whether the episode start date has passed, ignoring
// per-team headstarts.
func (e *Episode) IsOpen(now time.Time) bool {
	return !now.Before(e.StartDate)
}

// HeadstartFor returns the headstart owed to the team finishing the
// previous episode at the given 0-indexed rank. Ranks beyond the
// configured schedule earn nothing.
func (e *Episode) HeadstartFor(rank int) time.Duration {
	if rank < 0 || rank >= len(e.Headstarts) {
		return 0
	}
	return e.Headstarts[rank]
}
