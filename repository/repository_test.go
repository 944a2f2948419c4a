package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"trivia/database"
	"trivia/database/dbtest"
	"trivia/models"
)

func newTestStore(t *testing.T) *database.Store {
	return dbtest.NewStore(t)
}

func userFields(name string) map[string]any {
	return map[string]any{
		"username":      name,
		"email":         name + "@example.com",
		"password_hash": "hash",
	}
}

func mustCreateUser(t *testing.T, store *database.Store, name string) *models.User {
	t.Helper()
	var u *models.User
	require.NoError(t, store.WithSession(context.Background(), func(tx *gorm.DB) error {
		var err error
		u, err = Users.Create(tx, userFields(name))
		return err
	}))
	return u
}

func countUsers(t *testing.T, store *database.Store) int64 {
	t.Helper()
	var n int64
	require.NoError(t, store.WithSession(context.Background(), func(tx *gorm.DB) error {
		var err error
		n, err = Users.Count(tx)
		return err
	}))
	return n
}

func TestCreateThenGetByID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created := mustCreateUser(t, store, "alice")
	require.NotZero(t, created.ID)
	assert.Equal(t, 0, created.TotalGames)

	require.NoError(t, store.WithSession(ctx, func(tx *gorm.DB) error {
		got, err := Users.GetByID(tx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "alice", got.Username)
		assert.Equal(t, "alice@example.com", got.Email)
		assert.Equal(t, "hash", got.PasswordHash)
		assert.Nil(t, got.LastLogin)
		return nil
	}))
}

func TestCreateDefaults(t *testing.T) {
	store := newTestStore(t)
	creator := mustCreateUser(t, store, "host")

	require.NoError(t, store.WithSession(context.Background(), func(tx *gorm.DB) error {
		room, err := GameRooms.Create(tx, map[string]any{
			"room_code":  "ABC123",
			"name":       "friday quiz",
			"creator_id": creator.ID,
		})
		require.NoError(t, err)

		got, err := GameRooms.GetByID(tx, room.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RoomWaiting, got.Status)
		assert.Equal(t, models.DefaultMaxPlayers, got.MaxPlayers)
		assert.Equal(t, models.DefaultGameMode, got.GameMode)
		assert.False(t, got.IsPrivate)

		p, err := GameParticipants.Create(tx, map[string]any{"game_room_id": room.ID, "user_id": creator.ID})
		require.NoError(t, err)
		got2, err := GameParticipants.GetByID(tx, p.ID)
		require.NoError(t, err)
		assert.True(t, got2.IsActive)
		assert.Equal(t, 0, got2.Score)
		assert.Nil(t, got2.Rank)
		return nil
	}))
}

func TestCreateRejectsUnknownField(t *testing.T) {
	store := newTestStore(t)

	err := store.WithSession(context.Background(), func(tx *gorm.DB) error {
		fields := userFields("bob")
		fields["nickname"] = "bobby"
		_, err := Users.Create(tx, fields)
		return err
	})
	require.ErrorIs(t, err, ErrInvalidField)
	assert.Equal(t, int64(0), countUsers(t, store))
}

func TestCreateRejectsInvalidDifficulty(t *testing.T) {
	store := newTestStore(t)

	err := store.WithSession(context.Background(), func(tx *gorm.DB) error {
		_, err := Questions.Create(tx, map[string]any{
			"difficulty":     "extreme",
			"question_text":  "2+2?",
			"correct_answer": "4",
		})
		return err
	})
	require.ErrorIs(t, err, models.ErrInvalidValue)
}

func TestQuestionIncorrectAnswersRoundTrip(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.WithSession(context.Background(), func(tx *gorm.DB) error {
		cat, err := Categories.Create(tx, map[string]any{"name": "Science", "api_id": 17})
		require.NoError(t, err)

		q, err := Questions.Create(tx, map[string]any{
			"external_id":       "ext-1",
			"category_id":       cat.ID,
			"difficulty":        "medium",
			"question_text":     "Which planet is largest?",
			"correct_answer":    "Jupiter",
			"incorrect_answers": []string{"Mars", "Venus", "Earth"},
		})
		require.NoError(t, err)

		got, err := Questions.GetByField(tx, "external_id", "ext-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, q.ID, got.ID)
		assert.Equal(t, []string{"Mars", "Venus", "Earth"}, got.IncorrectAnswers)
		assert.Equal(t, models.DifficultyMedium, got.Difficulty)
		return nil
	}))
}

func TestGetByField(t *testing.T) {
	store := newTestStore(t)
	alice := mustCreateUser(t, store, "alice")
	mustCreateUser(t, store, "bob")

	require.NoError(t, store.WithSession(context.Background(), func(tx *gorm.DB) error {
		got, err := Users.GetByField(tx, "username", "alice")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, alice.ID, got.ID)

		missing, err := Users.GetByField(tx, "username", "carol")
		require.NoError(t, err)
		assert.Nil(t, missing)

		_, err = Users.GetByField(tx, "nickname", "alice")
		assert.ErrorIs(t, err, ErrInvalidField)

		_, err = Users.GetByField(tx, "username; DROP TABLE users", "x")
		assert.ErrorIs(t, err, ErrInvalidField)
		return nil
	}))
}

func TestUpdateIgnoresUnknownKeys(t *testing.T) {
	store := newTestStore(t)
	u := mustCreateUser(t, store, "alice")

	require.NoError(t, store.WithSession(context.Background(), func(tx *gorm.DB) error {
		updated, err := Users.Update(tx, u, map[string]any{"total_games": 3, "favourite_colour": "green"})
		require.NoError(t, err)
		assert.Equal(t, 3, updated.TotalGames)
		assert.Equal(t, "alice", updated.Username)
		assert.Equal(t, "alice@example.com", updated.Email)
		return nil
	}))

	require.NoError(t, store.WithSession(context.Background(), func(tx *gorm.DB) error {
		got, err := Users.GetByID(tx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, got.TotalGames)
		assert.Equal(t, 0, got.GamesWon)
		return nil
	}))
}

func TestUpdateWrongTypeLeavesEntity(t *testing.T) {
	store := newTestStore(t)
	u := mustCreateUser(t, store, "alice")

	err := store.WithSession(context.Background(), func(tx *gorm.DB) error {
		_, err := Users.Update(tx, u, map[string]any{"total_games": "many"})
		return err
	})
	require.ErrorIs(t, err, models.ErrInvalidValue)
	assert.Equal(t, 0, u.TotalGames)
}

func TestUpdateRoomStatusForwardOnly(t *testing.T) {
	store := newTestStore(t)

	var room *models.GameRoom
	require.NoError(t, store.WithSession(context.Background(), func(tx *gorm.DB) error {
		var err error
		room, err = GameRooms.Create(tx, map[string]any{"room_code": "R1", "name": "r", "status": "in_progress"})
		return err
	}))

	err := store.WithSession(context.Background(), func(tx *gorm.DB) error {
		_, err := GameRooms.Update(tx, room, map[string]any{"status": "waiting"})
		return err
	})
	require.ErrorIs(t, err, models.ErrInvalidValue)
	assert.Equal(t, models.RoomInProgress, room.Status)
}

func TestDeleteThenGetByIDIsAbsent(t *testing.T) {
	store := newTestStore(t)
	u := mustCreateUser(t, store, "alice")

	require.NoError(t, store.WithSession(context.Background(), func(tx *gorm.DB) error {
		deleted, err := Users.Delete(tx, u)
		require.NoError(t, err)
		assert.Equal(t, "alice", deleted.Username)
		return nil
	}))

	require.NoError(t, store.WithSession(context.Background(), func(tx *gorm.DB) error {
		got, err := Users.GetByID(tx, u.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
		return nil
	}))
}

func TestUpdateAfterDeleteDoesNotRecreate(t *testing.T) {
	store := newTestStore(t)
	u := mustCreateUser(t, store, "alice")
	stale := *u

	require.NoError(t, store.WithSession(context.Background(), func(tx *gorm.DB) error {
		_, err := Users.Delete(tx, u)
		return err
	}))

	err := store.WithSession(context.Background(), func(tx *gorm.DB) error {
		_, err := Users.Update(tx, &stale, map[string]any{"total_games": 4})
		return err
	})
	require.ErrorIs(t, err, ErrNotFound)

	err = store.WithSession(context.Background(), func(tx *gorm.DB) error {
		return Users.Save(tx, &stale)
	})
	require.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, int64(0), countUsers(t, store))
	assert.Equal(t, 0, stale.TotalGames)
}

func TestSaveWritesLoadedValue(t *testing.T) {
	store := newTestStore(t)
	u := mustCreateUser(t, store, "alice")

	require.NoError(t, store.WithSession(context.Background(), func(tx *gorm.DB) error {
		u.GamesWon = 2
		return Users.Save(tx, u)
	}))
	require.NoError(t, store.WithSession(context.Background(), func(tx *gorm.DB) error {
		got, err := Users.GetByID(tx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.GamesWon)
		assert.Equal(t, "alice", got.Username)
		return nil
	}))
	assert.Equal(t, int64(1), countUsers(t, store))
}

func TestDeleteReferencedRecordFails(t *testing.T) {
	store := newTestStore(t)
	u := mustCreateUser(t, store, "alice")

	require.NoError(t, store.WithSession(context.Background(), func(tx *gorm.DB) error {
		_, err := Leaderboards.Create(tx, map[string]any{"user_id": u.ID})
		return err
	}))

	err := store.WithSession(context.Background(), func(tx *gorm.DB) error {
		_, err := Users.Delete(tx, u)
		return err
	})
	require.ErrorIs(t, err, database.ErrConstraintViolation)
	assert.Equal(t, int64(1), countUsers(t, store))
}

func TestListPageDoesNotRepeat(t *testing.T) {
	store := newTestStore(t)
	for i := 0; i < 7; i++ {
		mustCreateUser(t, store, fmt.Sprintf("user%d", i))
	}

	require.NoError(t, store.WithSession(context.Background(), func(tx *gorm.DB) error {
		first, err := Users.ListPage(tx, 0, 3)
		require.NoError(t, err)
		require.Len(t, first, 3)

		second, err := Users.ListPage(tx, 3, 3)
		require.NoError(t, err)
		require.Len(t, second, 3)

		last, err := Users.ListPage(tx, 6, 3)
		require.NoError(t, err)
		require.Len(t, last, 1)

		seen := map[uint]bool{}
		for _, page := range [][]models.User{first, second, last} {
			for _, u := range page {
				assert.False(t, seen[u.ID], "user %d repeated", u.ID)
				seen[u.ID] = true
			}
		}
		assert.Len(t, seen, 7)
		assert.Equal(t, "user0", first[0].Username)

		empty, err := Users.ListPage(tx, 0, 0)
		require.NoError(t, err)
		assert.Empty(t, empty)

		clamped, err := Users.ListPage(tx, -5, 2)
		require.NoError(t, err)
		assert.Equal(t, first[:2], clamped)
		return nil
	}))
}

func TestDuplicateUsernameLeavesStoreUnchanged(t *testing.T) {
	store := newTestStore(t)
	mustCreateUser(t, store, "alice")
	before := countUsers(t, store)

	err := store.WithSession(context.Background(), func(tx *gorm.DB) error {
		fields := userFields("alice")
		fields["email"] = "other@example.com"
		_, err := Users.Create(tx, fields)
		return err
	})
	require.ErrorIs(t, err, database.ErrConstraintViolation)
	assert.Equal(t, before, countUsers(t, store))
}

func TestFailedMultiStepWriteRollsBack(t *testing.T) {
	store := newTestStore(t)
	u := mustCreateUser(t, store, "alice")
	forced := errors.New("forced")

	err := store.WithSession(context.Background(), func(tx *gorm.DB) error {
		if _, err := Users.Update(tx, u, map[string]any{"games_won": 5, "total_games": 9}); err != nil {
			return err
		}
		if _, err := Users.Create(tx, userFields("bob")); err != nil {
			return err
		}
		return forced
	})
	require.ErrorIs(t, err, forced)

	require.NoError(t, store.WithSession(context.Background(), func(tx *gorm.DB) error {
		got, err := Users.GetByID(tx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, got.GamesWon)
		assert.Equal(t, 0, got.TotalGames)

		bob, err := Users.GetByField(tx, "username", "bob")
		require.NoError(t, err)
		assert.Nil(t, bob)
		return nil
	}))
}

func TestWhere(t *testing.T) {
	store := newTestStore(t)
	u := mustCreateUser(t, store, "host")

	require.NoError(t, store.WithSession(context.Background(), func(tx *gorm.DB) error {
		room, err := GameRooms.Create(tx, map[string]any{"room_code": "W1", "name": "w"})
		require.NoError(t, err)
		_, err = GameParticipants.Create(tx, map[string]any{"game_room_id": room.ID, "user_id": u.ID})
		require.NoError(t, err)

		seats, err := GameParticipants.Where(tx, "game_room_id", room.ID)
		require.NoError(t, err)
		assert.Len(t, seats, 1)

		none, err := GameParticipants.Where(tx, "game_room_id", room.ID+1)
		require.NoError(t, err)
		assert.Empty(t, none)
		return nil
	}))
}

func TestListTableNames(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.WithSession(context.Background(), func(tx *gorm.DB) error {
		names, err := ListTableNames(tx)
		require.NoError(t, err)
		assert.ElementsMatch(t, models.TableNames(), names)
		return nil
	}))
}
