// Package dbtest opens throwaway in-memory stores for tests.
package dbtest

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"trivia/database"
	"trivia/logging"
)

// NewStore returns a migrated store backed by a private in-memory SQLite
// database with foreign keys enforced. It is closed when the test ends.
func NewStore(t testing.TB) *database.Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?_pragma=foreign_keys(1)"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	store, err := database.New(db, database.PoolConfig{MaxOpenConns: 1, MaxIdleConns: 1}, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.InitSchema(context.Background()))
	return store
}
