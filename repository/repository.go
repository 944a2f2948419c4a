// repository/repository.go - Generic record accessor
package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"trivia/database"
	"trivia/models"
)

var (
	// ErrInvalidField is returned when a field name is not a column of the entity.
	ErrInvalidField = errors.New("invalid field")
	// ErrNotFound is returned when a write targets a record that no longer exists.
	ErrNotFound = errors.New("record not found")
)

// Repository performs CRUD for one entity kind. Every method takes the
// transaction handle of an open session; it never opens one itself.
//
// Lookups that find nothing return (nil, nil).
type Repository[E any] struct {
	desc models.Descriptor[E]
}

// New builds a Repository from the entity's field descriptor.
func New[E any](desc models.Descriptor[E]) *Repository[E] {
	return &Repository[E]{desc: desc}
}

func (r *Repository[E]) column(name string) (string, error) {
	if name == "id" || r.desc.Has(name) {
		return name, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidField, name)
}

// Create builds a new record from fields and inserts it. Unknown keys are an error.
func (r *Repository[E]) Create(tx *gorm.DB, fields map[string]any) (*E, error) {
	e := r.desc.New()
	for name, value := range fields {
		set, ok := r.desc.Fields[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidField, name)
		}
		if err := set(e, value); err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
	}
	if err := tx.Create(e).Error; err != nil {
		return nil, database.Classify(err)
	}
	return e, nil
}

// Insert persists an already built value.
func (r *Repository[E]) Insert(tx *gorm.DB, e *E) error {
	return database.Classify(tx.Create(e).Error)
}

// Save writes every column of an already loaded value. It never inserts:
// a value whose row is gone fails with ErrNotFound.
func (r *Repository[E]) Save(tx *gorm.DB, e *E) error {
	return updateRow(tx, e)
}

func updateRow[E any](tx *gorm.DB, e *E) error {
	res := tx.Model(e).Select("*").Omit(clause.Associations).Updates(e)
	if res.Error != nil {
		return database.Classify(res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	// MySQL counts changed rows, not matched ones.
	current := *e
	err := tx.Take(&current).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// GetByID loads the record with the given identity.
func (r *Repository[E]) GetByID(tx *gorm.DB, id uint) (*E, error) {
	e := new(E)
	err := tx.First(e, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetByField returns the first record, by identity, whose column equals value.
func (r *Repository[E]) GetByField(tx *gorm.DB, name string, value any) (*E, error) {
	col, err := r.column(name)
	if err != nil {
		return nil, err
	}
	e := new(E)
	err = tx.Where(clause.Eq{Column: clause.Column{Name: col}, Value: value}).First(e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListPage returns up to limit records after skipping skip, in identity order.
// A negative skip counts as zero; a non-positive limit yields an empty page.
func (r *Repository[E]) ListPage(tx *gorm.DB, skip, limit int) ([]E, error) {
	out := []E{}
	if limit <= 0 {
		return out, nil
	}
	if skip < 0 {
		skip = 0
	}
	err := tx.Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}}).
		Offset(skip).
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Where lists every record whose column equals value, in identity order.
func (r *Repository[E]) Where(tx *gorm.DB, name string, value any) ([]E, error) {
	col, err := r.column(name)
	if err != nil {
		return nil, err
	}
	out := []E{}
	err = tx.Where(clause.Eq{Column: clause.Column{Name: col}, Value: value}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}}).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update applies the known keys of fields to existing, saves it and reloads it.
// Keys that are not writable columns are skipped. A value of the wrong type
// for a known column fails with models.ErrInvalidValue and leaves existing untouched.
// A record deleted in the meantime fails with ErrNotFound and is not recreated.
func (r *Repository[E]) Update(tx *gorm.DB, existing *E, fields map[string]any) (*E, error) {
	next := *existing
	for name, value := range fields {
		set, ok := r.desc.Fields[name]
		if !ok {
			continue
		}
		if err := set(&next, value); err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
	}
	if err := updateRow(tx, &next); err != nil {
		return nil, err
	}
	if err := tx.First(&next).Error; err != nil {
		return nil, err
	}
	*existing = next
	return existing, nil
}

// Delete removes existing and hands it back detached.
func (r *Repository[E]) Delete(tx *gorm.DB, existing *E) (*E, error) {
	if err := tx.Delete(existing).Error; err != nil {
		return nil, database.Classify(err)
	}
	return existing, nil
}

// Count returns the number of stored records.
func (r *Repository[E]) Count(tx *gorm.DB) (int64, error) {
	var n int64
	if err := tx.Model(new(E)).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// ListTableNames returns every table in the store. Diagnostic use only.
func ListTableNames(tx *gorm.DB) ([]string, error) {
	return database.ListTableNames(tx)
}

var (
	Users            = New(models.UserFields)
	Categories       = New(models.CategoryFields)
	Questions        = New(models.QuestionFields)
	GameRooms        = New(models.GameRoomFields)
	GameParticipants = New(models.GameParticipantFields)
	GameQuestions    = New(models.GameQuestionFields)
	PlayerAnswers    = New(models.PlayerAnswerFields)
	Leaderboards     = New(models.LeaderboardFields)
)
