// models/team.go
package models

import "time"

// Team is a group of users playing one hunt. Progress lives in the
// link tables (TeamPuzzleLink, PuzzleSolve, TeamEpisodeLink,
// EpisodeSolve, TeamEurekaLink), never on the team row itself.
type Team struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"not null;size:200"`
	JoinCode  string    `json:"join_code" gorm:"not null;size:5"`
	Token     string    `json:"token" gorm:"size:36"`
	HuntID    uint      `json:"hunt_id" gorm:"not null;index"`
	Hunt      *Hunt     `json:"hunt,omitempty" gorm:"foreignKey:HuntID"`
	Members   []User    `json:"members,omitempty" gorm:"many2many:team_members"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Team) TableName() string {
	return "teams"
}
