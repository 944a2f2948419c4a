// services/leaderboard.go - Global ranking
package services

import (
	"context"
	"log/slog"

	"gorm.io/gorm"

	"trivia/models"
	"trivia/repository"
)

const maxLeaderboardPage = 100

// LeaderboardEntry is one ranked row of the global leaderboard.
type LeaderboardEntry struct {
	Rank            int     `json:"rank"`
	UserID          uint    `json:"user_id"`
	Username        string  `json:"username"`
	TotalPoints     int     `json:"total_points"`
	CorrectAnswers  int     `json:"correct_answers"`
	TotalAnswers    int     `json:"total_answers"`
	Accuracy        float64 `json:"accuracy"`
	FastestAnswerMS *int    `json:"fastest_answer_ms,omitempty"`
	AverageTimeMS   *int    `json:"average_time_ms,omitempty"`
}

type LeaderboardService struct {
	store  Sessions
	logger *slog.Logger
}

func NewLeaderboardService(store Sessions, logger *slog.Logger) *LeaderboardService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LeaderboardService{store: store, logger: logger}
}

// Top returns a page of the leaderboard ordered by points, then correct
// answers, then earliest entry.
func (s *LeaderboardService) Top(ctx context.Context, skip, limit int) ([]LeaderboardEntry, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 || limit > maxLeaderboardPage {
		limit = maxLeaderboardPage
	}

	var rows []models.Leaderboard
	err := s.store.WithSession(ctx, func(tx *gorm.DB) error {
		return tx.Preload("User").
			Order("total_points DESC").
			Order("correct_answers DESC").
			Order("id ASC").
			Offset(skip).
			Limit(limit).
			Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}

	out := make([]LeaderboardEntry, 0, len(rows))
	for i := range rows {
		out = append(out, entryFor(&rows[i], skip+i+1))
	}
	return out, nil
}

// ForUser returns the user's totals, or nil when they have not answered yet.
// Rank is left zero.
func (s *LeaderboardService) ForUser(ctx context.Context, userID uint) (*LeaderboardEntry, error) {
	var row *models.Leaderboard
	err := s.store.WithSession(ctx, func(tx *gorm.DB) error {
		var err error
		if row, err = repository.Leaderboards.GetByField(tx, "user_id", userID); err != nil || row == nil {
			return err
		}
		row.User, err = repository.Users.GetByID(tx, userID)
		return err
	})
	if err != nil || row == nil {
		return nil, err
	}
	entry := entryFor(row, 0)
	return &entry, nil
}

func entryFor(l *models.Leaderboard, rank int) LeaderboardEntry {
	e := LeaderboardEntry{
		Rank:            rank,
		UserID:          l.UserID,
		TotalPoints:     l.TotalPoints,
		CorrectAnswers:  l.CorrectAnswers,
		TotalAnswers:    l.TotalAnswers,
		Accuracy:        l.Accuracy(),
		FastestAnswerMS: l.FastestAnswerMS,
		AverageTimeMS:   l.AverageTimeMS,
	}
	if l.User != nil {
		e.Username = l.User.Username
	}
	return e
}
