// database/retry.go - Connect retry with exponential backoff
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
)

type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   2 * time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// OpenFunc makes one connection attempt.
type OpenFunc func(ctx context.Context) (*gorm.DB, error)

// OpenWithRetry calls openFn until it succeeds, MaxAttempts is reached or ctx is done.
// Delays double from BaseDelay up to MaxDelay. Only the startup path retries;
// sessions never do.
func OpenWithRetry(ctx context.Context, openFn OpenFunc, cfg RetryConfig, log *slog.Logger) (*gorm.DB, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 2 * time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		db, err := openFn(ctx)
		if err == nil {
			if attempt > 0 && log != nil {
				log.Info("db_connect_success_after_retry", slog.Int("attempts", attempt+1))
			}
			return db, nil
		}
		lastErr = err

		if attempt >= cfg.MaxAttempts-1 {
			break
		}

		delay := cfg.BaseDelay * time.Duration(1<<uint(attempt))
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
		if log != nil {
			log.Warn("db_connect_retry",
				slog.Int("attempt", attempt+1),
				slog.Int("max_attempts", cfg.MaxAttempts),
				slog.Duration("delay", delay),
				slog.Any("error", err),
			)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("db connect cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("db connect failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}
