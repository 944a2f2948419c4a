// services/services.go - Shared service plumbing
package services

import (
	"context"
	"errors"
	"time"

	"trivia/database"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidToken        = errors.New("invalid or expired token")
	ErrInvalidRoomPassword = errors.New("incorrect room password")
	ErrRoomNotFound        = errors.New("room not found")
	ErrRoomFull            = errors.New("room is full")
	ErrRoomNotJoinable     = errors.New("room is no longer accepting players")
	ErrInvalidTransition   = errors.New("invalid room status transition")
	ErrNotRoomCreator      = errors.New("only the room creator can do this")
	ErrNotParticipant      = errors.New("user is not in this room")
	ErrNoActiveQuestion    = errors.New("no question is open in this room")
	ErrQuestionClosed      = errors.New("answer window has closed")
	ErrAlreadyAnswered     = errors.New("question already answered")
	ErrNoQuestions         = errors.New("no unused questions match")
)

// Sessions runs units of work in a store transaction. *database.Store implements it.
type Sessions interface {
	WithSession(ctx context.Context, fn database.SessionFunc) error
}

// Event is a room notification fanned out to connected clients.
type Event struct {
	Type     string    `json:"type"`
	RoomCode string    `json:"room_code"`
	Payload  any       `json:"payload,omitempty"`
	At       time.Time `json:"at"`
}

// Publisher delivers room events. Implementations must not block.
type Publisher interface {
	Publish(roomCode string, ev Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, Event) {}
