// database/session.go - Scoped sessions with commit/rollback/release
package database

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"
)

// SessionFunc is the unit of work run inside one transaction.
// The tx handle must not be retained after the function returns.
type SessionFunc func(tx *gorm.DB) error

// WithSession is the only sanctioned way to touch the store.
//
// It checks a pooled connection is alive, begins a transaction bound to ctx,
// runs fn, and commits when fn returns nil. Any error, a panic (re-raised
// after rollback) or a cancelled ctx rolls the transaction back. The
// connection goes back to the pool in every case. The returned error is
// passed through Classify.
func (s *Store) WithSession(ctx context.Context, fn SessionFunc) error {
	if err := s.Ping(ctx); err != nil {
		s.logger.Error("db_session_ping_failed", slog.Any("error", err))
		return err
	}

	start := time.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := fn(tx); err != nil {
			return err
		}
		// a cancelled caller must not commit
		return ctx.Err()
	})
	if err != nil {
		err = Classify(err)
		level := slog.LevelWarn
		if !errors.Is(err, ErrConstraintViolation) && !errors.Is(err, context.Canceled) {
			level = slog.LevelError
		}
		s.logger.Log(ctx, level, "db_session_rolled_back",
			slog.Duration("elapsed", time.Since(start)),
			slog.Any("error", err),
		)
		return err
	}

	s.logger.Debug("db_session_committed", slog.Duration("elapsed", time.Since(start)))
	return nil
}
