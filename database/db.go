// database/db.go - Database connection (PostgreSQL or SQLite)
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"trivia/config"
)

// Store owns the pooled engine. It is safe for concurrent use.
type Store struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	logger *slog.Logger
}

// PoolConfig sizes the connection pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Dialector picks the gorm driver for a DATABASE_URL.
// postgres:// and postgresql:// URLs and key=value DSNs go to PostgreSQL;
// sqlite:///path, sqlite:// (in-memory) and file: DSNs go to SQLite with foreign keys on.
func Dialector(databaseURL string) (gorm.Dialector, error) {
	dsn := strings.TrimSpace(databaseURL)
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return postgres.Open(dsn), nil
	case strings.HasPrefix(dsn, "sqlite://"):
		path := strings.TrimPrefix(strings.TrimPrefix(dsn, "sqlite://"), "/")
		if path == "" || path == ":memory:" {
			path = ":memory:"
		}
		return sqlite.Open(withForeignKeys(path)), nil
	case strings.HasPrefix(dsn, "file:"):
		return sqlite.Open(withForeignKeys(dsn)), nil
	case strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname="):
		return postgres.Open(dsn), nil
	}
	return nil, fmt.Errorf("unsupported DATABASE_URL scheme: %q", redact(dsn))
}

func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)"
}

// redact drops everything after the scheme so credentials never reach logs.
func redact(dsn string) string {
	if i := strings.Index(dsn, "://"); i >= 0 {
		return dsn[:i+3] + "..."
	}
	return "..."
}

// Open connects using the settings, retrying with backoff while the store comes up.
func Open(ctx context.Context, cfg *config.Settings, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	dialector, err := Dialector(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	level := logger.Warn
	if cfg.Debug {
		// echo SQL
		level = logger.Info
	}

	pool := PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	}
	if dialector.Name() == "sqlite" {
		// one writer; :memory: databases are per connection
		pool.MaxOpenConns = 1
		pool.MaxIdleConns = 1
	}

	db, err := OpenWithRetry(ctx, func(ctx context.Context) (*gorm.DB, error) {
		return openGorm(ctx, dialector, level, log)
	}, DefaultRetryConfig(), log)
	if err != nil {
		return nil, err
	}

	return New(db, pool, log)
}

func openGorm(ctx context.Context, dialector gorm.Dialector, level logger.LogLevel, log *slog.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(slogWriter{log}, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialector.Name(), err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get database instance: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s: %w", dialector.Name(), err)
	}
	return db, nil
}

// New wraps an open gorm handle and applies the pool configuration.
func New(db *gorm.DB, pool PoolConfig, log *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	if log == nil {
		log = slog.Default()
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get database instance: %w", err)
	}
	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	log.Info("database_connected",
		slog.String("driver", db.Dialector.Name()),
		slog.Int("max_open_conns", pool.MaxOpenConns),
	)
	return &Store{db: db, sqlDB: sqlDB, logger: log}, nil
}

// DB returns the underlying handle. Writes should go through WithSession.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Ping checks that a pooled connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.sqlDB.PingContext(ctx); err != nil {
		return &DatabaseError{Operation: "ping", Err: fmt.Errorf("%w: %w", ErrStoreUnavailable, err)}
	}
	return nil
}

// Close closes the pool.
func (s *Store) Close() error {
	if err := s.sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	s.logger.Info("database_closed")
	return nil
}

// slogWriter lets gorm's logger print through slog.
type slogWriter struct {
	log *slog.Logger
}

func (w slogWriter) Printf(format string, args ...any) {
	w.log.Info(strings.TrimSpace(fmt.Sprintf(format, args...)), slog.String("component", "gorm"))
}
