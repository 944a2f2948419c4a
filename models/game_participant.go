// models/game_participant.go
package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// GameParticipant is a user's seat in a room. IsActive tracks disconnections.
type GameParticipant struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	GameRoomID uint      `gorm:"not null" json:"game_room_id"`
	GameRoom   *GameRoom `gorm:"foreignKey:GameRoomID" json:"game_room,omitempty"`
	UserID     uint      `gorm:"not null" json:"user_id"`
	User       *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	JoinedAt   time.Time `json:"joined_at"`
	IsActive   bool      `gorm:"not null" json:"is_active"`
	Score      int       `gorm:"not null;default:0" json:"score"`
	Rank       *int      `json:"rank,omitempty"` // final rank in the room

	Answers []PlayerAnswer `gorm:"foreignKey:ParticipantID" json:"answers,omitempty"`
}

func (GameParticipant) TableName() string {
	return "game_participants"
}

func (p *GameParticipant) BeforeSave(tx *gorm.DB) error {
	if p.Rank != nil && *p.Rank <= 0 {
		return fmt.Errorf("%w: rank must be positive, got %d", ErrInvalidValue, *p.Rank)
	}
	return nil
}

func (p *GameParticipant) String() string {
	return fmt.Sprintf("<GameParticipant: %d in room %d>", p.UserID, p.GameRoomID)
}

var GameParticipantFields = Descriptor[GameParticipant]{
	New: func() *GameParticipant {
		return &GameParticipant{JoinedAt: time.Now().UTC(), IsActive: true}
	},
	Fields: map[string]Setter[GameParticipant]{
		"game_room_id": field(func(p *GameParticipant) *uint { return &p.GameRoomID }, toUint),
		"user_id":      field(func(p *GameParticipant) *uint { return &p.UserID }, toUint),
		"joined_at":    field(func(p *GameParticipant) *time.Time { return &p.JoinedAt }, toTime),
		"is_active":    field(func(p *GameParticipant) *bool { return &p.IsActive }, toBool),
		"score":        field(func(p *GameParticipant) *int { return &p.Score }, toInt),
		"rank":         field(func(p *GameParticipant) **int { return &p.Rank }, optional(toInt)),
	},
}
