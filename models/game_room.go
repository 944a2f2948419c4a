// models/game_room.go - Game rooms and their lifecycle status
package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// RoomStatus moves forward only: waiting -> in_progress -> completed.
type RoomStatus string

const (
	RoomWaiting    RoomStatus = "waiting"
	RoomInProgress RoomStatus = "in_progress"
	RoomCompleted  RoomStatus = "completed"
)

const (
	DefaultGameMode   = "standard"
	DefaultMaxPlayers = 8
)

func (s RoomStatus) order() int {
	switch s {
	case RoomWaiting:
		return 0
	case RoomInProgress:
		return 1
	case RoomCompleted:
		return 2
	}
	return -1
}

func (s RoomStatus) Valid() bool {
	return s.order() >= 0
}

// CanTransition reports whether a room may move from s to next.
// Staying in the same status is allowed.
func (s RoomStatus) CanTransition(next RoomStatus) bool {
	return s.Valid() && next.Valid() && next.order() >= s.order()
}

type GameRoom struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	RoomCode     string     `gorm:"size:10;uniqueIndex;not null" json:"room_code"`
	Name         string     `gorm:"size:100;not null" json:"name"`
	CreatorID    *uint      `json:"creator_id,omitempty"`
	Creator      *User      `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	GameMode     string     `gorm:"size:50;not null" json:"game_mode"`
	MaxPlayers   int        `gorm:"not null" json:"max_players"`
	IsPrivate    bool       `gorm:"not null" json:"is_private"`
	PasswordHash *string    `gorm:"size:255" json:"-"`
	Status       RoomStatus `gorm:"size:20;not null" json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`

	Participants []GameParticipant `gorm:"foreignKey:GameRoomID" json:"participants,omitempty"`
	Questions    []GameQuestion    `gorm:"foreignKey:GameRoomID" json:"questions,omitempty"`
}

func (GameRoom) TableName() string {
	return "game_rooms"
}

func (r *GameRoom) BeforeSave(tx *gorm.DB) error {
	if !r.Status.Valid() {
		return fmt.Errorf("%w: room status %q", ErrInvalidValue, r.Status)
	}
	if r.MaxPlayers <= 0 {
		return fmt.Errorf("%w: max_players must be positive, got %d", ErrInvalidValue, r.MaxPlayers)
	}
	return nil
}

func (r *GameRoom) String() string {
	return fmt.Sprintf("<GameRoom %s: %s>", r.RoomCode, r.Name)
}

// Duration returns how long the game ran, zero until it has both started and ended.
func (r *GameRoom) Duration() time.Duration {
	if r.StartedAt == nil || r.EndedAt == nil {
		return 0
	}
	return r.EndedAt.Sub(*r.StartedAt)
}

// setStatus refuses backward transitions.
func setStatus(r *GameRoom, value any) error {
	var next RoomStatus
	switch v := value.(type) {
	case RoomStatus:
		next = v
	case string:
		next = RoomStatus(v)
	default:
		return typeError("room status", value)
	}
	if !r.Status.CanTransition(next) {
		return fmt.Errorf("%w: room status cannot move from %q to %q", ErrInvalidValue, r.Status, next)
	}
	r.Status = next
	return nil
}

var GameRoomFields = Descriptor[GameRoom]{
	New: func() *GameRoom {
		return &GameRoom{
			GameMode:   DefaultGameMode,
			MaxPlayers: DefaultMaxPlayers,
			Status:     RoomWaiting,
		}
	},
	Fields: map[string]Setter[GameRoom]{
		"room_code":     field(func(r *GameRoom) *string { return &r.RoomCode }, toString),
		"name":          field(func(r *GameRoom) *string { return &r.Name }, toString),
		"creator_id":    field(func(r *GameRoom) **uint { return &r.CreatorID }, optional(toUint)),
		"game_mode":     field(func(r *GameRoom) *string { return &r.GameMode }, toString),
		"max_players":   field(func(r *GameRoom) *int { return &r.MaxPlayers }, toInt),
		"is_private":    field(func(r *GameRoom) *bool { return &r.IsPrivate }, toBool),
		"password_hash": field(func(r *GameRoom) **string { return &r.PasswordHash }, optional(toString)),
		"status":        setStatus,
		"started_at":    field(func(r *GameRoom) **time.Time { return &r.StartedAt }, optional(toTime)),
		"ended_at":      field(func(r *GameRoom) **time.Time { return &r.EndedAt }, optional(toTime)),
	},
}
