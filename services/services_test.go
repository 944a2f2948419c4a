package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"trivia/database"
	"trivia/database/dbtest"
	"trivia/logging"
	"trivia/models"
	"trivia/repository"
)

type recordedEvents struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordedEvents) Publish(_ string, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordedEvents) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func createUser(t *testing.T, store *database.Store, name string) *models.User {
	t.Helper()
	var u *models.User
	require.NoError(t, store.WithSession(context.Background(), func(tx *gorm.DB) error {
		var err error
		u, err = repository.Users.Create(tx, map[string]any{
			"username":      name,
			"email":         name + "@example.com",
			"password_hash": "x",
		})
		return err
	}))
	return u
}

func createQuestions(t *testing.T, store *database.Store, n int) []*models.Question {
	t.Helper()
	out := make([]*models.Question, 0, n)
	require.NoError(t, store.WithSession(context.Background(), func(tx *gorm.DB) error {
		for i := 0; i < n; i++ {
			q, err := repository.Questions.Create(tx, map[string]any{
				"difficulty":        "easy",
				"question_text":     fmt.Sprintf("Question %d?", i),
				"correct_answer":    fmt.Sprintf("right %d", i),
				"incorrect_answers": []string{"wrong a", "wrong b", "wrong c"},
			})
			if err != nil {
				return err
			}
			out = append(out, q)
		}
		return nil
	}))
	return out
}

type roomFixture struct {
	store  *database.Store
	rooms  *RoomService
	events *recordedEvents
	clock  time.Time
}

func newRoomFixture(t *testing.T, maxPlayers int) *roomFixture {
	store := dbtest.NewStore(t)
	events := &recordedEvents{}
	f := &roomFixture{
		store:  store,
		events: events,
		clock:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.rooms = NewRoomService(store, RoomConfig{MaxPlayers: maxPlayers, QuestionTime: 10 * time.Second}, events, logging.Discard())
	f.rooms.now = func() time.Time { return f.clock }
	return f
}

func (f *roomFixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}
