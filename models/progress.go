// models/progress.go - Per-team progress rows and the guess audit trail
package models

import "time"

// Guess is the immutable record of one answer submission. Correctness
// is never stored; it is recomputed from the text and the puzzle's
// answer so that it stays a pure function of what was submitted.
type Guess struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	UserID       uint      `json:"user_id" gorm:"not null;index"`
	User         *User     `json:"user,omitempty" gorm:"foreignKey:UserID"`
	TeamID       uint      `json:"team_id" gorm:"not null;index"`
	Team         *Team     `json:"team,omitempty" gorm:"foreignKey:TeamID"`
	PuzzleID     uint      `json:"puzzle_id" gorm:"not null;index"`
	Puzzle       *Puzzle   `json:"puzzle,omitempty" gorm:"foreignKey:PuzzleID"`
	Text         string    `json:"text" gorm:"not null;size:100"`
	ResponseText string    `json:"response_text" gorm:"size:400"`
	GuessTime    time.Time `json:"guess_time" gorm:"not null;index"`
	ModifiedAt   time.Time `json:"modified_at"`
}

func (Guess) TableName() string {
	return "guesses"
}

// IsCorrect recomputes correctness against the puzzle at hand.
func (g *Guess) IsCorrect(puzzle *Puzzle) bool {
	return puzzle.CheckAnswer(g.Text)
}

// TeamPuzzleLink marks a puzzle as unlocked for a team.
type TeamPuzzleLink struct {
	ID       uint      `json:"id" gorm:"primaryKey"`
	TeamID   uint      `json:"team_id" gorm:"not null;uniqueIndex:idx_team_puzzle_unlock"`
	Team     *Team     `json:"team,omitempty" gorm:"foreignKey:TeamID"`
	PuzzleID uint      `json:"puzzle_id" gorm:"not null;uniqueIndex:idx_team_puzzle_unlock"`
	Puzzle   *Puzzle   `json:"puzzle,omitempty" gorm:"foreignKey:PuzzleID"`
	Time     time.Time `json:"time" gorm:"not null"`
}

func (TeamPuzzleLink) TableName() string {
	return "team_puzzle_links"
}

// PuzzleSolve marks a puzzle as solved by a team, linked to the guess
// that solved it. Duration is solve time minus the team's effective
// start time for the puzzle.
type PuzzleSolve struct {
	ID       uint          `json:"id" gorm:"primaryKey"`
	TeamID   uint          `json:"team_id" gorm:"not null;uniqueIndex:idx_team_puzzle_solve"`
	Team     *Team         `json:"team,omitempty" gorm:"foreignKey:TeamID"`
	PuzzleID uint          `json:"puzzle_id" gorm:"not null;uniqueIndex:idx_team_puzzle_solve"`
	Puzzle   *Puzzle       `json:"puzzle,omitempty" gorm:"foreignKey:PuzzleID"`
	GuessID  uint          `json:"guess_id" gorm:"not null"`
	Guess    *Guess        `json:"guess,omitempty" gorm:"foreignKey:GuessID"`
	Duration time.Duration `json:"duration"`
}

func (PuzzleSolve) TableName() string {
	return "puzzle_solves"
}

// TeamEpisodeLink marks an episode as unlocked for a team. The
// episode opens for the team once now >= start date - headstart.
type TeamEpisodeLink struct {
	ID        uint          `json:"id" gorm:"primaryKey"`
	TeamID    uint          `json:"team_id" gorm:"not null;uniqueIndex:idx_team_episode_unlock"`
	Team      *Team         `json:"team,omitempty" gorm:"foreignKey:TeamID"`
	EpisodeID uint          `json:"episode_id" gorm:"not null;uniqueIndex:idx_team_episode_unlock"`
	Episode   *Episode      `json:"episode,omitempty" gorm:"foreignKey:EpisodeID"`
	Time      time.Time     `json:"time" gorm:"not null"`
	Headstart time.Duration `json:"headstart"`
}

func (TeamEpisodeLink) TableName() string {
	return "team_episode_links"
}

// EpisodeSolve marks an episode as finished by a team. The count of
// earlier rows for the same episode decides headstart ranks.
type EpisodeSolve struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	TeamID    uint      `json:"team_id" gorm:"not null;uniqueIndex:idx_team_episode_solve"`
	Team      *Team     `json:"team,omitempty" gorm:"foreignKey:TeamID"`
	EpisodeID uint      `json:"episode_id" gorm:"not null;uniqueIndex:idx_team_episode_solve"`
	Episode   *Episode  `json:"episode,omitempty" gorm:"foreignKey:EpisodeID"`
	Time      time.Time `json:"time" gorm:"not null"`
}

func (EpisodeSolve) TableName() string {
	return "episode_solves"
}

// TeamEurekaLink marks a eureka as discovered by a team. Discovery
// timestamps feed the hint scheduler's shortened delays.
type TeamEurekaLink struct {
	ID       uint      `json:"id" gorm:"primaryKey"`
	TeamID   uint      `json:"team_id" gorm:"not null;uniqueIndex:idx_team_eureka"`
	Team     *Team     `json:"team,omitempty" gorm:"foreignKey:TeamID"`
	EurekaID uint      `json:"eureka_id" gorm:"not null;uniqueIndex:idx_team_eureka"`
	Eureka   *Eureka   `json:"eureka,omitempty" gorm:"foreignKey:EurekaID"`
	Time     time.Time `json:"time" gorm:"not null"`
}

func (TeamEurekaLink) TableName() string {
	return "team_eureka_links"
}
