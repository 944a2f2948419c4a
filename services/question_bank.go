// services/question_bank.go - Imports categories and questions from the question source
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/gorm"

	"trivia/models"
	"trivia/repository"
	"trivia/trivia"
)

// QuestionSource is the external question API. *trivia.Client implements it.
type QuestionSource interface {
	Categories(ctx context.Context) ([]trivia.Category, error)
	Questions(ctx context.Context, q trivia.Query) ([]trivia.Question, error)
}

// QuestionCache holds source responses for QUESTION_CACHE_TTL.
// *cache.QuestionCache implements it.
type QuestionCache interface {
	Categories(ctx context.Context) ([]trivia.Category, bool, error)
	SetCategories(ctx context.Context, cats []trivia.Category) error
	Questions(ctx context.Context, q trivia.Query) ([]trivia.Question, bool, error)
	SetQuestions(ctx context.Context, q trivia.Query, qs []trivia.Question) error
}

type ImportResult struct {
	Fetched int `json:"fetched"`
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

type QuestionBank struct {
	store  Sessions
	source QuestionSource
	cache  QuestionCache
	logger *slog.Logger
}

// NewQuestionBank wires the bank. cache may be nil.
func NewQuestionBank(store Sessions, source QuestionSource, cache QuestionCache, logger *slog.Logger) *QuestionBank {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuestionBank{store: store, source: source, cache: cache, logger: logger}
}

func (b *QuestionBank) fetchCategories(ctx context.Context) ([]trivia.Category, error) {
	if b.cache != nil {
		cats, ok, err := b.cache.Categories(ctx)
		if err != nil {
			b.logger.Warn("question_cache_read_failed", slog.Any("error", err))
		} else if ok {
			return cats, nil
		}
	}
	cats, err := b.source.Categories(ctx)
	if err != nil {
		return nil, err
	}
	if b.cache != nil {
		if err := b.cache.SetCategories(ctx, cats); err != nil {
			b.logger.Warn("question_cache_write_failed", slog.Any("error", err))
		}
	}
	return cats, nil
}

func (b *QuestionBank) fetchQuestions(ctx context.Context, q trivia.Query) ([]trivia.Question, error) {
	if b.cache != nil {
		qs, ok, err := b.cache.Questions(ctx, q)
		if err != nil {
			b.logger.Warn("question_cache_read_failed", slog.Any("error", err))
		} else if ok {
			b.logger.Debug("question_cache_hit", slog.Int("count", len(qs)))
			return qs, nil
		}
	}
	qs, err := b.source.Questions(ctx, q)
	if err != nil {
		return nil, err
	}
	if b.cache != nil {
		if err := b.cache.SetQuestions(ctx, q, qs); err != nil {
			b.logger.Warn("question_cache_write_failed", slog.Any("error", err))
		}
	}
	return qs, nil
}

// ImportCategories stores every source category not yet known by name and
// fills in missing source ids.
func (b *QuestionBank) ImportCategories(ctx context.Context) (*ImportResult, error) {
	cats, err := b.fetchCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch categories: %w", err)
	}

	res := &ImportResult{Fetched: len(cats)}
	err = b.store.WithSession(ctx, func(tx *gorm.DB) error {
		for _, c := range cats {
			created, err := upsertCategory(tx, c.Name, c.ID)
			if err != nil {
				return err
			}
			if created {
				res.Created++
			} else {
				res.Skipped++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	b.logger.Info("categories_imported", slog.Int("fetched", res.Fetched), slog.Int("created", res.Created))
	return res, nil
}

// ImportQuestions fetches one batch and stores the questions not seen before.
// Importing the same batch twice creates nothing the second time.
func (b *QuestionBank) ImportQuestions(ctx context.Context, q trivia.Query) (*ImportResult, error) {
	batch, err := b.fetchQuestions(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("fetch questions: %w", err)
	}

	res := &ImportResult{Fetched: len(batch)}
	err = b.store.WithSession(ctx, func(tx *gorm.DB) error {
		categoryIDs := map[string]uint{}
		for _, item := range batch {
			difficulty, err := models.ParseDifficulty(strings.ToLower(item.Difficulty))
			if err != nil {
				b.logger.Warn("question_skipped", slog.String("difficulty", item.Difficulty))
				res.Skipped++
				continue
			}

			externalID := trivia.ExternalID(item)
			existing, err := repository.Questions.GetByField(tx, "external_id", externalID)
			if err != nil {
				return err
			}
			if existing != nil {
				res.Skipped++
				continue
			}

			fields := map[string]any{
				"external_id":       externalID,
				"difficulty":        difficulty,
				"question_text":     item.Question,
				"correct_answer":    item.CorrectAnswer,
				"incorrect_answers": item.IncorrectAnswers,
			}
			if item.Category != "" {
				id, ok := categoryIDs[item.Category]
				if !ok {
					if _, err := upsertCategory(tx, item.Category, q.CategoryID); err != nil {
						return err
					}
					cat, err := repository.Categories.GetByField(tx, "name", item.Category)
					if err != nil {
						return err
					}
					id = cat.ID
					categoryIDs[item.Category] = id
				}
				fields["category_id"] = id
			}

			if _, err := repository.Questions.Create(tx, fields); err != nil {
				return err
			}
			res.Created++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	b.logger.Info("questions_imported",
		slog.Int("fetched", res.Fetched),
		slog.Int("created", res.Created),
		slog.Int("skipped", res.Skipped),
	)
	return res, nil
}

// Categories lists stored categories in identity order.
func (b *QuestionBank) Categories(ctx context.Context, skip, limit int) ([]models.Category, error) {
	var out []models.Category
	err := b.store.WithSession(ctx, func(tx *gorm.DB) error {
		var err error
		out, err = repository.Categories.ListPage(tx, skip, limit)
		return err
	})
	return out, err
}

// upsertCategory creates the category unless one with the same name exists.
// A known category without a source id gets apiID.
func upsertCategory(tx *gorm.DB, name string, apiID int) (bool, error) {
	existing, err := repository.Categories.GetByField(tx, "name", name)
	if err != nil {
		return false, err
	}
	if existing != nil {
		if existing.APIID == nil && apiID > 0 {
			_, err = repository.Categories.Update(tx, existing, map[string]any{"api_id": apiID})
		}
		return false, err
	}

	fields := map[string]any{"name": name}
	if apiID > 0 {
		fields["api_id"] = apiID
	}
	_, err = repository.Categories.Create(tx, fields)
	return err == nil, err
}
