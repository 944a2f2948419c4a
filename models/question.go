// models/question.go - Cached questions from the external question source
package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Difficulty is one of easy, medium, hard.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is one of the enumerated difficulties.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// ParseDifficulty accepts a string or Difficulty and rejects anything outside the enumeration.
func ParseDifficulty(value any) (Difficulty, error) {
	var d Difficulty
	switch v := value.(type) {
	case Difficulty:
		d = v
	case string:
		d = Difficulty(v)
	default:
		return "", typeError("difficulty", value)
	}
	if !d.Valid() {
		return "", fmt.Errorf("%w: difficulty %q is not one of easy, medium, hard", ErrInvalidValue, d)
	}
	return d, nil
}

type Question struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	ExternalID       *string    `gorm:"size:100;uniqueIndex" json:"external_id,omitempty"`
	CategoryID       *uint      `json:"category_id,omitempty"`
	Category         *Category  `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Difficulty       Difficulty `gorm:"size:20;not null" json:"difficulty"`
	QuestionText     string     `gorm:"type:text;not null" json:"question_text"`
	CorrectAnswer    string     `gorm:"type:text;not null" json:"correct_answer"`
	IncorrectAnswers []string   `gorm:"type:json;serializer:json;not null" json:"incorrect_answers"` // ordered
	CreatedAt        time.Time  `json:"created_at"`
	TimesUsed        int        `gorm:"not null;default:0" json:"times_used"`

	GameQuestions []GameQuestion `gorm:"foreignKey:QuestionID" json:"game_questions,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}

func (q *Question) BeforeSave(tx *gorm.DB) error {
	if !q.Difficulty.Valid() {
		return fmt.Errorf("%w: difficulty %q is not one of easy, medium, hard", ErrInvalidValue, q.Difficulty)
	}
	if q.IncorrectAnswers == nil {
		q.IncorrectAnswers = []string{}
	}
	if q.TimesUsed < 0 {
		return fmt.Errorf("%w: times_used must be non-negative", ErrInvalidValue)
	}
	return nil
}

func (q *Question) String() string {
	text := []rune(q.QuestionText)
	if len(text) > 30 {
		text = text[:30]
	}
	return fmt.Sprintf("<Question %d: %s...>", q.ID, string(text))
}

// Options returns the correct answer followed by the incorrect ones.
// Callers shuffle before presenting.
func (q *Question) Options() []string {
	opts := make([]string, 0, len(q.IncorrectAnswers)+1)
	opts = append(opts, q.CorrectAnswer)
	return append(opts, q.IncorrectAnswers...)
}

var QuestionFields = Descriptor[Question]{
	New: func() *Question { return &Question{IncorrectAnswers: []string{}} },
	Fields: map[string]Setter[Question]{
		"external_id":       field(func(q *Question) **string { return &q.ExternalID }, optional(toString)),
		"category_id":       field(func(q *Question) **uint { return &q.CategoryID }, optional(toUint)),
		"difficulty":        field(func(q *Question) *Difficulty { return &q.Difficulty }, ParseDifficulty),
		"question_text":     field(func(q *Question) *string { return &q.QuestionText }, toString),
		"correct_answer":    field(func(q *Question) *string { return &q.CorrectAnswer }, toString),
		"incorrect_answers": field(func(q *Question) *[]string { return &q.IncorrectAnswers }, toStrings),
		"times_used":        field(func(q *Question) *int { return &q.TimesUsed }, toInt),
	},
}
