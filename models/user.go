// models/user.go
package models

import "time"

type User struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	Username     string     `json:"username" gorm:"uniqueIndex;not null;size:50"`
	Email        string     `json:"email" gorm:"uniqueIndex;size:255"`
	Password     string     `json:"-" gorm:"not null"`
	IsStaff      bool       `json:"is_staff" gorm:"default:false"`
	CreatedAt    time.Time  `json:"created_at"`
	LastActivity *time.Time `json:"last_activity"`
}

func (User) TableName() string {
	return "users"
}
