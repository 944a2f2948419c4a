// models/player_answer.go
package models

import (
	"fmt"

	"gorm.io/gorm"
)

type PlayerAnswer struct {
	ID             uint             `gorm:"primaryKey" json:"id"`
	GameQuestionID uint             `gorm:"not null" json:"game_question_id"`
	GameQuestion   *GameQuestion    `gorm:"foreignKey:GameQuestionID" json:"game_question,omitempty"`
	ParticipantID  uint             `gorm:"not null" json:"participant_id"`
	Participant    *GameParticipant `gorm:"foreignKey:ParticipantID" json:"participant,omitempty"`
	AnswerText     string           `gorm:"type:text;not null" json:"answer_text"`
	IsCorrect      bool             `gorm:"not null" json:"is_correct"`
	AnswerTimeMS   int              `gorm:"column:answer_time_ms;not null" json:"answer_time_ms"`
	PointsEarned   int              `gorm:"not null;default:0" json:"points_earned"`
}

func (PlayerAnswer) TableName() string {
	return "player_answers"
}

func (a *PlayerAnswer) BeforeSave(tx *gorm.DB) error {
	if a.AnswerTimeMS < 0 {
		return fmt.Errorf("%w: answer_time_ms must be non-negative, got %d", ErrInvalidValue, a.AnswerTimeMS)
	}
	if a.PointsEarned < 0 {
		return fmt.Errorf("%w: points_earned must be non-negative, got %d", ErrInvalidValue, a.PointsEarned)
	}
	return nil
}

func (a *PlayerAnswer) String() string {
	return fmt.Sprintf("<PlayerAnswer %d: correct=%t, points=%d>", a.ID, a.IsCorrect, a.PointsEarned)
}

var PlayerAnswerFields = Descriptor[PlayerAnswer]{
	New: func() *PlayerAnswer { return &PlayerAnswer{} },
	Fields: map[string]Setter[PlayerAnswer]{
		"game_question_id": field(func(a *PlayerAnswer) *uint { return &a.GameQuestionID }, toUint),
		"participant_id":   field(func(a *PlayerAnswer) *uint { return &a.ParticipantID }, toUint),
		"answer_text":      field(func(a *PlayerAnswer) *string { return &a.AnswerText }, toString),
		"is_correct":       field(func(a *PlayerAnswer) *bool { return &a.IsCorrect }, toBool),
		"answer_time_ms":   field(func(a *PlayerAnswer) *int { return &a.AnswerTimeMS }, toInt),
		"points_earned":    field(func(a *PlayerAnswer) *int { return &a.PointsEarned }, toInt),
	},
}
