// models/user.go
package models

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// User is a player account with lifetime game counters.
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Username     string     `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Email        string     `gorm:"size:100;uniqueIndex;not null" json:"email"`
	PasswordHash string     `gorm:"size:255;not null" json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`

	// Stats
	TotalGames int `gorm:"not null;default:0" json:"total_games"`
	GamesWon   int `gorm:"not null;default:0" json:"games_won"`

	// Relationships
	GameParticipations []GameParticipant `gorm:"foreignKey:UserID" json:"game_participations,omitempty"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeSave(tx *gorm.DB) error {
	if strings.TrimSpace(u.Username) == "" {
		return fmt.Errorf("%w: username is empty", ErrInvalidValue)
	}
	if strings.TrimSpace(u.Email) == "" {
		return fmt.Errorf("%w: email is empty", ErrInvalidValue)
	}
	if u.TotalGames < 0 || u.GamesWon < 0 {
		return fmt.Errorf("%w: game counters must be non-negative", ErrInvalidValue)
	}
	return nil
}

func (u *User) String() string {
	return fmt.Sprintf("<User %s>", u.Username)
}

// UserFields describes the writable columns of User.
var UserFields = Descriptor[User]{
	New: func() *User { return &User{} },
	Fields: map[string]Setter[User]{
		"username":      field(func(u *User) *string { return &u.Username }, toString),
		"email":         field(func(u *User) *string { return &u.Email }, toString),
		"password_hash": field(func(u *User) *string { return &u.PasswordHash }, toString),
		"last_login":    field(func(u *User) **time.Time { return &u.LastLogin }, optional(toTime)),
		"total_games":   field(func(u *User) *int { return &u.TotalGames }, toInt),
		"games_won":     field(func(u *User) *int { return &u.GamesWon }, toInt),
	},
}
