// models/leaderboard.go - Global per-user answer statistics
package models

import (
	"fmt"
	"math"

	"gorm.io/gorm"
)

type Leaderboard struct {
	ID              uint  `gorm:"primaryKey" json:"id"`
	UserID          uint  `gorm:"uniqueIndex;not null" json:"user_id"`
	User            *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	TotalPoints     int   `gorm:"not null;default:0" json:"total_points"`
	CorrectAnswers  int   `gorm:"not null;default:0" json:"correct_answers"`
	TotalAnswers    int   `gorm:"not null;default:0" json:"total_answers"`
	FastestAnswerMS *int  `gorm:"column:fastest_answer_ms" json:"fastest_answer_ms,omitempty"` // fastest correct answer
	AverageTimeMS   *int  `gorm:"column:average_time_ms" json:"average_time_ms,omitempty"`
}

func (Leaderboard) TableName() string {
	return "leaderboard"
}

func (l *Leaderboard) BeforeSave(tx *gorm.DB) error {
	if l.TotalPoints < 0 || l.CorrectAnswers < 0 || l.TotalAnswers < 0 {
		return fmt.Errorf("%w: leaderboard counters must be non-negative", ErrInvalidValue)
	}
	if l.TotalAnswers < l.CorrectAnswers {
		return fmt.Errorf("%w: total_answers %d < correct_answers %d", ErrInvalidValue, l.TotalAnswers, l.CorrectAnswers)
	}
	return nil
}

func (l *Leaderboard) String() string {
	return fmt.Sprintf("<Leaderboard entry for user %d: points=%d>", l.UserID, l.TotalPoints)
}

// Accuracy returns the percentage of correct answers.
func (l *Leaderboard) Accuracy() float64 {
	if l.TotalAnswers == 0 {
		return 0
	}
	return float64(l.CorrectAnswers) / float64(l.TotalAnswers) * 100
}

// Record folds one answer into the counters and the fastest correct time.
// The average is not kept incrementally; callers set it with SetAverage
// from the stored answers.
func (l *Leaderboard) Record(correct bool, points, answerTimeMS int) {
	l.TotalAnswers++
	l.TotalPoints += points
	if correct {
		l.CorrectAnswers++
		if l.FastestAnswerMS == nil || answerTimeMS < *l.FastestAnswerMS {
			fastest := answerTimeMS
			l.FastestAnswerMS = &fastest
		}
	}
}

// SetAverage stores mean rounded to the nearest millisecond.
func (l *Leaderboard) SetAverage(mean float64) {
	avg := int(math.Round(mean))
	l.AverageTimeMS = &avg
}

var LeaderboardFields = Descriptor[Leaderboard]{
	New: func() *Leaderboard { return &Leaderboard{} },
	Fields: map[string]Setter[Leaderboard]{
		"user_id":           field(func(l *Leaderboard) *uint { return &l.UserID }, toUint),
		"total_points":      field(func(l *Leaderboard) *int { return &l.TotalPoints }, toInt),
		"correct_answers":   field(func(l *Leaderboard) *int { return &l.CorrectAnswers }, toInt),
		"total_answers":     field(func(l *Leaderboard) *int { return &l.TotalAnswers }, toInt),
		"fastest_answer_ms": field(func(l *Leaderboard) **int { return &l.FastestAnswerMS }, optional(toInt)),
		"average_time_ms":   field(func(l *Leaderboard) **int { return &l.AverageTimeMS }, optional(toInt)),
	},
}
