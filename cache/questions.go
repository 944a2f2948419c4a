// cache/questions.go - TTL cache for fetched question batches
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"trivia/trivia"
)

const (
	questionsKeyPrefix = "trivia:questions"
	categoriesKey      = "trivia:categories"
)

// QuestionCache keeps question batches and the category list from the
// question source for QUESTION_CACHE_TTL.
type QuestionCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewQuestionCache(rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *QuestionCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuestionCache{rdb: rdb, ttl: ttl, logger: logger}
}

// QuestionsKey is the cache key of one query.
func QuestionsKey(q trivia.Query) string {
	difficulty := q.Difficulty
	if difficulty == "" {
		difficulty = "any"
	}
	return fmt.Sprintf("%s:%d:%s:%d", questionsKeyPrefix, q.CategoryID, difficulty, q.Amount)
}

// Questions returns the cached batch for q. ok is false on a miss.
func (c *QuestionCache) Questions(ctx context.Context, q trivia.Query) (qs []trivia.Question, ok bool, err error) {
	ok, err = c.get(ctx, QuestionsKey(q), &qs)
	return qs, ok, err
}

func (c *QuestionCache) SetQuestions(ctx context.Context, q trivia.Query, qs []trivia.Question) error {
	return c.set(ctx, QuestionsKey(q), qs)
}

// Categories returns the cached category list. ok is false on a miss.
func (c *QuestionCache) Categories(ctx context.Context) (cats []trivia.Category, ok bool, err error) {
	ok, err = c.get(ctx, categoriesKey, &cats)
	return cats, ok, err
}

func (c *QuestionCache) SetCategories(ctx context.Context, cats []trivia.Category) error {
	return c.set(ctx, categoriesKey, cats)
}

func (c *QuestionCache) get(ctx context.Context, key string, out any) (bool, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		// corrupt entry; drop it and treat as a miss
		c.logger.Warn("cache_entry_corrupt", slog.String("key", key), slog.Any("error", err))
		_ = c.rdb.Del(ctx, key).Err()
		return false, nil
	}
	return true, nil
}

func (c *QuestionCache) set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}
