// models/game_question.go
package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// GameQuestion is a question presented in a room; SequenceNumber orders it within the room.
type GameQuestion struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	GameRoomID     uint       `gorm:"not null" json:"game_room_id"`
	GameRoom       *GameRoom  `gorm:"foreignKey:GameRoomID" json:"game_room,omitempty"`
	QuestionID     uint       `gorm:"not null" json:"question_id"`
	Question       *Question  `gorm:"foreignKey:QuestionID" json:"question,omitempty"`
	SequenceNumber int        `gorm:"not null" json:"sequence_number"`
	StartTime      *time.Time `json:"start_time,omitempty"`
	EndTime        *time.Time `json:"end_time,omitempty"`

	PlayerAnswers []PlayerAnswer `gorm:"foreignKey:GameQuestionID" json:"player_answers,omitempty"`
}

func (GameQuestion) TableName() string {
	return "game_questions"
}

func (q *GameQuestion) BeforeSave(tx *gorm.DB) error {
	if q.SequenceNumber <= 0 {
		return fmt.Errorf("%w: sequence_number must be positive, got %d", ErrInvalidValue, q.SequenceNumber)
	}
	if q.StartTime != nil && q.EndTime != nil && q.EndTime.Before(*q.StartTime) {
		return fmt.Errorf("%w: end_time before start_time", ErrInvalidValue)
	}
	return nil
}

func (q *GameQuestion) String() string {
	return fmt.Sprintf("<GameQuestion %d: seq=%d>", q.ID, q.SequenceNumber)
}

// Open reports whether answers are still accepted at t.
func (q *GameQuestion) Open(t time.Time) bool {
	if q.StartTime == nil || t.Before(*q.StartTime) {
		return false
	}
	return q.EndTime == nil || !t.After(*q.EndTime)
}

var GameQuestionFields = Descriptor[GameQuestion]{
	New: func() *GameQuestion { return &GameQuestion{} },
	Fields: map[string]Setter[GameQuestion]{
		"game_room_id":    field(func(q *GameQuestion) *uint { return &q.GameRoomID }, toUint),
		"question_id":     field(func(q *GameQuestion) *uint { return &q.QuestionID }, toUint),
		"sequence_number": field(func(q *GameQuestion) *int { return &q.SequenceNumber }, toInt),
		"start_time":      field(func(q *GameQuestion) **time.Time { return &q.StartTime }, optional(toTime)),
		"end_time":        field(func(q *GameQuestion) **time.Time { return &q.EndTime }, optional(toTime)),
	},
}
