package services

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"trivia/models"
	"trivia/repository"
)

func TestCreateRoom(t *testing.T) {
	f := newRoomFixture(t, 4)
	host := createUser(t, f.store, "host")
	ctx := context.Background()

	room, err := f.rooms.Create(ctx, host.ID, CreateRoomInput{Name: "Friday"})
	require.NoError(t, err)
	assert.Len(t, room.RoomCode, roomCodeLength)
	assert.Equal(t, models.RoomWaiting, room.Status)
	assert.Equal(t, 4, room.MaxPlayers)
	assert.Equal(t, models.DefaultGameMode, room.GameMode)

	got, err := f.rooms.Get(ctx, room.RoomCode, 0)
	require.NoError(t, err)
	require.Len(t, got.Participants, 1)
	assert.Equal(t, host.ID, got.Participants[0].UserID)

	_, err = f.rooms.Get(ctx, "NOPE00", 0)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestCreateRoomValidation(t *testing.T) {
	f := newRoomFixture(t, 4)
	host := createUser(t, f.store, "host")
	ctx := context.Background()

	_, err := f.rooms.Create(ctx, host.ID, CreateRoomInput{Name: ""})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.rooms.Create(ctx, host.ID, CreateRoomInput{Name: "big", MaxPlayers: 5})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.rooms.Create(ctx, host.ID, CreateRoomInput{Name: "secret", IsPrivate: true})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.rooms.Create(ctx, host.ID+100, CreateRoomInput{Name: "ghost"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestJoinRoomFull(t *testing.T) {
	f := newRoomFixture(t, 2)
	host := createUser(t, f.store, "host")
	p2 := createUser(t, f.store, "p2")
	p3 := createUser(t, f.store, "p3")
	ctx := context.Background()

	room, err := f.rooms.Create(ctx, host.ID, CreateRoomInput{Name: "duel"})
	require.NoError(t, err)

	seat, err := f.rooms.Join(ctx, room.RoomCode, p2.ID, "")
	require.NoError(t, err)
	assert.True(t, seat.IsActive)

	again, err := f.rooms.Join(ctx, room.RoomCode, p2.ID, "")
	require.NoError(t, err)
	assert.Equal(t, seat.ID, again.ID)

	_, err = f.rooms.Join(ctx, room.RoomCode, p3.ID, "")
	assert.ErrorIs(t, err, ErrRoomFull)

	require.NoError(t, f.rooms.Leave(ctx, room.RoomCode, p2.ID))
	_, err = f.rooms.Join(ctx, room.RoomCode, p3.ID, "")
	require.NoError(t, err)

	assert.Contains(t, f.events.types(), EventPlayerJoined)
}

func TestJoinPrivateRoom(t *testing.T) {
	f := newRoomFixture(t, 4)
	host := createUser(t, f.store, "host")
	guest := createUser(t, f.store, "guest")
	ctx := context.Background()

	room, err := f.rooms.Create(ctx, host.ID, CreateRoomInput{Name: "vip", IsPrivate: true, Password: "open sesame"})
	require.NoError(t, err)

	_, err = f.rooms.Join(ctx, room.RoomCode, guest.ID, "guess")
	assert.ErrorIs(t, err, ErrInvalidRoomPassword)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.rooms.Join(ctx, room.RoomCode, guest.ID, "open sesame")
	require.NoError(t, err)
}

func TestPrivateRoomVisibility(t *testing.T) {
	f := newRoomFixture(t, 4)
	host := createUser(t, f.store, "host")
	guest := createUser(t, f.store, "guest")
	stranger := createUser(t, f.store, "stranger")
	ctx := context.Background()

	room, err := f.rooms.Create(ctx, host.ID, CreateRoomInput{Name: "vip", IsPrivate: true, Password: "open sesame"})
	require.NoError(t, err)
	code := room.RoomCode
	_, err = f.rooms.Join(ctx, code, guest.ID, "open sesame")
	require.NoError(t, err)

	for _, viewer := range []uint{0, stranger.ID} {
		got, err := f.rooms.Get(ctx, code, viewer)
		require.NoError(t, err)
		assert.Equal(t, code, got.RoomCode)
		assert.Empty(t, got.Participants)
	}
	got, err := f.rooms.Get(ctx, code, guest.ID)
	require.NoError(t, err)
	assert.Len(t, got.Participants, 2)

	assert.NoError(t, f.rooms.CanWatch(ctx, code, host.ID))
	assert.NoError(t, f.rooms.CanWatch(ctx, code, guest.ID))
	assert.ErrorIs(t, f.rooms.CanWatch(ctx, code, stranger.ID), ErrNotParticipant)
	assert.ErrorIs(t, f.rooms.CanWatch(ctx, "NOPE00", guest.ID), ErrRoomNotFound)

	// leaving gives up access
	require.NoError(t, f.rooms.Leave(ctx, code, guest.ID))
	assert.ErrorIs(t, f.rooms.CanWatch(ctx, code, guest.ID), ErrNotParticipant)
	got, err = f.rooms.Get(ctx, code, guest.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Participants)

	open, err := f.rooms.Create(ctx, host.ID, CreateRoomInput{Name: "lobby"})
	require.NoError(t, err)
	assert.NoError(t, f.rooms.CanWatch(ctx, open.RoomCode, stranger.ID))
}

func TestLeftPlayerCannotAnswer(t *testing.T) {
	f := newRoomFixture(t, 4)
	host := createUser(t, f.store, "host")
	quitter := createUser(t, f.store, "quitter")
	createQuestions(t, f.store, 1)
	ctx := context.Background()

	room, err := f.rooms.Create(ctx, host.ID, CreateRoomInput{Name: "exit"})
	require.NoError(t, err)
	code := room.RoomCode
	_, err = f.rooms.Join(ctx, code, quitter.ID, "")
	require.NoError(t, err)
	_, err = f.rooms.Start(ctx, code, host.ID)
	require.NoError(t, err)
	_, err = f.rooms.NextQuestion(ctx, code, host.ID, NextQuestionInput{})
	require.NoError(t, err)

	require.NoError(t, f.rooms.Leave(ctx, code, quitter.ID))
	f.advance(time.Second)
	_, err = f.rooms.SubmitAnswer(ctx, code, quitter.ID, "right 0")
	assert.ErrorIs(t, err, ErrNotParticipant)
	assert.ErrorIs(t, f.rooms.Leave(ctx, code, quitter.ID), ErrNotParticipant)

	require.NoError(t, f.store.WithSession(ctx, func(tx *gorm.DB) error {
		n, err := repository.PlayerAnswers.Count(tx)
		require.NoError(t, err)
		assert.Zero(t, n)
		return nil
	}))
}

func TestFinishRequiresStartedRoom(t *testing.T) {
	f := newRoomFixture(t, 4)
	host := createUser(t, f.store, "host")
	ctx := context.Background()

	room, err := f.rooms.Create(ctx, host.ID, CreateRoomInput{Name: "early"})
	require.NoError(t, err)

	_, err = f.rooms.Finish(ctx, room.RoomCode, host.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, f.store.WithSession(ctx, func(tx *gorm.DB) error {
		got, err := repository.GameRooms.GetByID(tx, room.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RoomWaiting, got.Status)
		assert.Nil(t, got.EndedAt)

		u, err := repository.Users.GetByID(tx, host.ID)
		require.NoError(t, err)
		assert.Zero(t, u.TotalGames)
		return nil
	}))
	assert.NotContains(t, f.events.types(), EventGameFinished)
}

func TestRoomLifecycle(t *testing.T) {
	f := newRoomFixture(t, 4)
	host := createUser(t, f.store, "host")
	alice := createUser(t, f.store, "alice")
	bob := createUser(t, f.store, "bob")
	carol := createUser(t, f.store, "carol")
	questions := createQuestions(t, f.store, 2)
	ctx := context.Background()

	room, err := f.rooms.Create(ctx, host.ID, CreateRoomInput{Name: "lifecycle"})
	require.NoError(t, err)
	code := room.RoomCode
	for _, u := range []*models.User{alice, bob, carol} {
		_, err := f.rooms.Join(ctx, code, u.ID, "")
		require.NoError(t, err)
	}

	_, err = f.rooms.NextQuestion(ctx, code, host.ID, NextQuestionInput{})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.rooms.Start(ctx, code, alice.ID)
	assert.ErrorIs(t, err, ErrNotRoomCreator)

	started, err := f.rooms.Start(ctx, code, host.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomInProgress, started.Status)
	require.NotNil(t, started.StartedAt)

	_, err = f.rooms.Start(ctx, code, host.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.rooms.Join(ctx, code, createUser(t, f.store, "late").ID, "")
	assert.ErrorIs(t, err, ErrRoomNotJoinable)

	_, err = f.rooms.SubmitAnswer(ctx, code, alice.ID, "anything")
	assert.ErrorIs(t, err, ErrNoActiveQuestion)

	// round 1
	round, err := f.rooms.NextQuestion(ctx, code, host.ID, NextQuestionInput{})
	require.NoError(t, err)
	assert.Equal(t, 1, round.SequenceNumber)
	assert.Len(t, round.Options, 4)
	assert.Equal(t, f.clock.Add(10*time.Second), round.EndTime)
	q1 := questions[0]
	assert.Equal(t, q1.QuestionText, round.Question)

	f.advance(2 * time.Second)
	res, err := f.rooms.SubmitAnswer(ctx, code, alice.ID, "  RIGHT 0 ")
	require.NoError(t, err)
	assert.True(t, res.Correct)
	assert.Equal(t, 2000, res.AnswerTimeMS)
	assert.Equal(t, 180, res.PointsEarned)

	_, err = f.rooms.SubmitAnswer(ctx, code, alice.ID, "right 0")
	assert.ErrorIs(t, err, ErrAlreadyAnswered)

	res, err = f.rooms.SubmitAnswer(ctx, code, bob.ID, "wrong a")
	require.NoError(t, err)
	assert.False(t, res.Correct)
	assert.Equal(t, 0, res.PointsEarned)
	assert.Equal(t, q1.CorrectAnswer, res.CorrectAnswer)

	f.advance(9 * time.Second)
	_, err = f.rooms.SubmitAnswer(ctx, code, carol.ID, "right 0")
	assert.ErrorIs(t, err, ErrQuestionClosed)

	_, err = f.rooms.SubmitAnswer(ctx, code, createUser(t, f.store, "outsider").ID, "right 0")
	assert.ErrorIs(t, err, ErrNotParticipant)

	// round 2 uses the other question
	round, err = f.rooms.NextQuestion(ctx, code, host.ID, NextQuestionInput{})
	require.NoError(t, err)
	assert.Equal(t, 2, round.SequenceNumber)
	assert.Equal(t, questions[1].QuestionText, round.Question)

	f.advance(5 * time.Second)
	res, err = f.rooms.SubmitAnswer(ctx, code, bob.ID, "right 1")
	require.NoError(t, err)
	assert.Equal(t, 150, res.PointsEarned)

	_, err = f.rooms.NextQuestion(ctx, code, host.ID, NextQuestionInput{})
	assert.ErrorIs(t, err, ErrNoQuestions)

	standings, err := f.rooms.Finish(ctx, code, host.ID)
	require.NoError(t, err)
	require.Len(t, standings, 4)
	assert.Equal(t, alice.ID, standings[0].UserID)
	assert.Equal(t, 1, standings[0].Rank)
	assert.Equal(t, 180, standings[0].Score)
	assert.Equal(t, bob.ID, standings[1].UserID)
	assert.Equal(t, 2, standings[1].Rank)
	// host and carol tie on zero
	assert.Equal(t, 3, standings[2].Rank)
	assert.Equal(t, 3, standings[3].Rank)

	_, err = f.rooms.Finish(ctx, code, host.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, f.store.WithSession(ctx, func(tx *gorm.DB) error {
		got, err := repository.GameRooms.GetByField(tx, "room_code", code)
		require.NoError(t, err)
		assert.Equal(t, models.RoomCompleted, got.Status)
		assert.NotNil(t, got.EndedAt)

		a, err := repository.Users.GetByID(tx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, a.TotalGames)
		assert.Equal(t, 1, a.GamesWon)

		b, err := repository.Users.GetByID(tx, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, b.TotalGames)
		assert.Equal(t, 0, b.GamesWon)

		lb, err := repository.Leaderboards.GetByField(tx, "user_id", bob.ID)
		require.NoError(t, err)
		require.NotNil(t, lb)
		assert.Equal(t, 2, lb.TotalAnswers)
		assert.Equal(t, 1, lb.CorrectAnswers)
		assert.Equal(t, 150, lb.TotalPoints)
		require.NotNil(t, lb.FastestAnswerMS)
		assert.Equal(t, 5000, *lb.FastestAnswerMS)
		require.NotNil(t, lb.AverageTimeMS)
		assert.Equal(t, 3500, *lb.AverageTimeMS)

		q, err := repository.Questions.GetByID(tx, q1.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, q.TimesUsed)
		return nil
	}))

	assert.Equal(t, []string{
		EventPlayerJoined, EventPlayerJoined, EventPlayerJoined,
		EventGameStarted,
		EventQuestion, EventAnswerReceived, EventAnswerReceived,
		EventQuestion, EventAnswerReceived,
		EventGameFinished,
	}, f.events.types())
}

func TestLeaderboardAverageMatchesMean(t *testing.T) {
	f := newRoomFixture(t, 4)
	host := createUser(t, f.store, "host")
	player := createUser(t, f.store, "player")
	times := []int{1234, 2001, 3333, 4567, 999}
	createQuestions(t, f.store, len(times))
	ctx := context.Background()

	room, err := f.rooms.Create(ctx, host.ID, CreateRoomInput{Name: "timing"})
	require.NoError(t, err)
	_, err = f.rooms.Join(ctx, room.RoomCode, player.ID, "")
	require.NoError(t, err)
	_, err = f.rooms.Start(ctx, room.RoomCode, host.ID)
	require.NoError(t, err)

	sum := 0
	for _, ms := range times {
		_, err := f.rooms.NextQuestion(ctx, room.RoomCode, host.ID, NextQuestionInput{})
		require.NoError(t, err)
		f.advance(time.Duration(ms) * time.Millisecond)
		_, err = f.rooms.SubmitAnswer(ctx, room.RoomCode, player.ID, "nope")
		require.NoError(t, err)
		sum += ms
	}
	// 12134 / 5 = 2426.8
	want := int(math.Round(float64(sum) / float64(len(times))))
	require.Equal(t, 2427, want)

	require.NoError(t, f.store.WithSession(ctx, func(tx *gorm.DB) error {
		lb, err := repository.Leaderboards.GetByField(tx, "user_id", player.ID)
		require.NoError(t, err)
		require.NotNil(t, lb)
		assert.Equal(t, len(times), lb.TotalAnswers)
		require.NotNil(t, lb.AverageTimeMS)
		assert.Equal(t, want, *lb.AverageTimeMS)
		assert.Nil(t, lb.FastestAnswerMS)
		return nil
	}))
}

func TestNextQuestionFilters(t *testing.T) {
	f := newRoomFixture(t, 4)
	host := createUser(t, f.store, "host")
	createQuestions(t, f.store, 1)
	ctx := context.Background()

	room, err := f.rooms.Create(ctx, host.ID, CreateRoomInput{Name: "filters"})
	require.NoError(t, err)
	_, err = f.rooms.Start(ctx, room.RoomCode, host.ID)
	require.NoError(t, err)

	_, err = f.rooms.NextQuestion(ctx, room.RoomCode, host.ID, NextQuestionInput{Difficulty: models.DifficultyHard})
	assert.ErrorIs(t, err, ErrNoQuestions)

	_, err = f.rooms.NextQuestion(ctx, room.RoomCode, host.ID, NextQuestionInput{Difficulty: "brutal"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	round, err := f.rooms.NextQuestion(ctx, room.RoomCode, host.ID, NextQuestionInput{Difficulty: models.DifficultyEasy})
	require.NoError(t, err)
	assert.Equal(t, models.DifficultyEasy, round.Difficulty)
}

func TestScore(t *testing.T) {
	window := 10 * time.Second
	assert.Equal(t, 0, Score(false, time.Second, window))
	assert.Equal(t, 200, Score(true, 0, window))
	assert.Equal(t, 150, Score(true, 5*time.Second, window))
	assert.Equal(t, 100, Score(true, window, window))
	assert.Equal(t, 100, Score(true, time.Second, 0))
}

func TestRank(t *testing.T) {
	seats := []models.GameParticipant{
		{ID: 1, Score: 50},
		{ID: 2, Score: 300},
		{ID: 3, Score: 50},
		{ID: 4, Score: 10},
	}
	assert.Equal(t, map[uint]int{2: 1, 1: 2, 3: 2, 4: 4}, Rank(seats))
	assert.Empty(t, Rank(nil))
}

func TestGenerateRoomCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code := generateRoomCode()
		assert.Len(t, code, roomCodeLength)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 40)
}
