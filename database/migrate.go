// database/migrate.go - Schema creation and introspection
package database

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"gorm.io/gorm"

	"trivia/models"
)

// InitSchema creates every table of the schema that does not exist yet.
// Running it against an up-to-date schema is a no-op.
func (s *Store) InitSchema(ctx context.Context) error {
	s.logger.Info("db_schema_init_started")
	err := s.WithSession(ctx, func(tx *gorm.DB) error {
		return tx.AutoMigrate(models.All()...)
	})
	if err != nil {
		s.logger.Error("db_schema_init_failed", slog.Any("error", err))
		return &DatabaseError{Operation: "init_schema", Err: err}
	}
	s.logger.Info("db_schema_init_completed", slog.Int("tables", len(models.All())))
	return nil
}

// TableNames lists the tables present in the store, sorted. Diagnostic use only.
func (s *Store) TableNames(ctx context.Context) ([]string, error) {
	var names []string
	err := s.WithSession(ctx, func(tx *gorm.DB) error {
		var err error
		names, err = ListTableNames(tx)
		return err
	})
	return names, err
}

// ListTableNames introspects the schema visible to tx.
func ListTableNames(tx *gorm.DB) ([]string, error) {
	tables, err := tx.Migrator().GetTables()
	if err != nil {
		return nil, &DatabaseError{Operation: "get_tables", Err: fmt.Errorf("list tables: %w", err)}
	}
	out := tables[:0]
	for _, name := range tables {
		// sqlite bookkeeping such as sqlite_sequence
		if strings.HasPrefix(name, "sqlite_") {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}
