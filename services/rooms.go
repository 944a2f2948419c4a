// services/rooms.go - Game room lifecycle: create, join, rounds, answers, results
package services

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	mathrand "math/rand/v2"
	"sort"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"trivia/database"
	"trivia/models"
	"trivia/repository"
)

const (
	roomCodeLength   = 6
	roomCodeAttempts = 5

	basePoints     = 100
	maxSpeedBonus  = 100
	maxRoomNameLen = 100
)

// Event types published by RoomService.
const (
	EventPlayerJoined   = "player_joined"
	EventGameStarted    = "game_started"
	EventQuestion       = "question"
	EventAnswerReceived = "answer_submitted"
	EventGameFinished   = "game_finished"
)

type RoomConfig struct {
	MaxPlayers   int           // MAX_PLAYERS_PER_ROOM
	QuestionTime time.Duration // DEFAULT_QUESTION_TIME
}

type RoomService struct {
	store  Sessions
	cfg    RoomConfig
	events Publisher
	logger *slog.Logger
	now    func() time.Time
}

func NewRoomService(store Sessions, cfg RoomConfig, events Publisher, logger *slog.Logger) *RoomService {
	if events == nil {
		events = nopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxPlayers <= 0 {
		cfg.MaxPlayers = models.DefaultMaxPlayers
	}
	if cfg.QuestionTime <= 0 {
		cfg.QuestionTime = 15 * time.Second
	}
	return &RoomService{store: store, cfg: cfg, events: events, logger: logger, now: time.Now}
}

func (s *RoomService) publish(code, typ string, payload any) {
	s.events.Publish(code, Event{Type: typ, RoomCode: code, Payload: payload, At: s.now().UTC()})
}

type CreateRoomInput struct {
	Name       string `json:"name"`
	GameMode   string `json:"game_mode"`
	MaxPlayers int    `json:"max_players"`
	IsPrivate  bool   `json:"is_private"`
	Password   string `json:"password"`
}

// Create opens a waiting room owned by creatorID and seats the creator.
func (s *RoomService) Create(ctx context.Context, creatorID uint, in CreateRoomInput) (*models.GameRoom, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || len(name) > maxRoomNameLen {
		return nil, fmt.Errorf("%w: room name must be 1-%d characters", ErrInvalidInput, maxRoomNameLen)
	}
	maxPlayers := in.MaxPlayers
	if maxPlayers == 0 {
		maxPlayers = s.cfg.MaxPlayers
	}
	if maxPlayers < 1 || maxPlayers > s.cfg.MaxPlayers {
		return nil, fmt.Errorf("%w: max_players must be between 1 and %d", ErrInvalidInput, s.cfg.MaxPlayers)
	}
	if in.IsPrivate && in.Password == "" {
		return nil, fmt.Errorf("%w: private rooms need a password", ErrInvalidInput)
	}

	fields := map[string]any{
		"name":        name,
		"creator_id":  creatorID,
		"max_players": maxPlayers,
		"is_private":  in.IsPrivate,
	}
	if in.GameMode != "" {
		fields["game_mode"] = in.GameMode
	}
	if in.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash room password: %w", err)
		}
		fields["password_hash"] = string(hash)
	}

	var room *models.GameRoom
	err := s.store.WithSession(ctx, func(tx *gorm.DB) error {
		creator, err := repository.Users.GetByID(tx, creatorID)
		if err != nil {
			return err
		}
		if creator == nil {
			return fmt.Errorf("%w: unknown creator %d", ErrInvalidInput, creatorID)
		}

		for attempt := 0; attempt < roomCodeAttempts; attempt++ {
			fields["room_code"] = generateRoomCode()
			// savepoint, so a code collision does not abort the outer transaction
			err = tx.Transaction(func(sp *gorm.DB) error {
				room, err = repository.GameRooms.Create(sp, fields)
				return err
			})
			if err == nil || !errors.Is(err, database.ErrConstraintViolation) {
				break
			}
			s.logger.Debug("room_code_collision", slog.Int("attempt", attempt+1))
		}
		if err != nil {
			return err
		}

		_, err = repository.GameParticipants.Create(tx, map[string]any{
			"game_room_id": room.ID,
			"user_id":      creatorID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("room_created",
		slog.String("room_code", room.RoomCode),
		slog.Uint64("creator_id", uint64(creatorID)),
		slog.Int("max_players", room.MaxPlayers),
	)
	return room, nil
}

// Get returns the room, or ErrRoomNotFound. Participants are listed for
// public rooms, and for private rooms only when viewerID holds an active seat
// or created the room. A zero viewerID is anonymous.
func (s *RoomService) Get(ctx context.Context, code string, viewerID uint) (*models.GameRoom, error) {
	var room *models.GameRoom
	err := s.store.WithSession(ctx, func(tx *gorm.DB) error {
		var err error
		if room, err = findRoom(tx, code); err != nil {
			return err
		}
		seats, err := repository.GameParticipants.Where(tx, "game_room_id", room.ID)
		if err != nil {
			return err
		}
		if canSee(room, seats, viewerID) {
			room.Participants = seats
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return room, nil
}

// CanWatch returns nil when userID may follow the room's live events.
// Private rooms are limited to the creator and active participants.
func (s *RoomService) CanWatch(ctx context.Context, code string, userID uint) error {
	return s.store.WithSession(ctx, func(tx *gorm.DB) error {
		room, err := findRoom(tx, code)
		if err != nil {
			return err
		}
		if !room.IsPrivate {
			return nil
		}
		seats, err := repository.GameParticipants.Where(tx, "game_room_id", room.ID)
		if err != nil {
			return err
		}
		if !canSee(room, seats, userID) {
			return ErrNotParticipant
		}
		return nil
	})
}

func canSee(room *models.GameRoom, seats []models.GameParticipant, userID uint) bool {
	if !room.IsPrivate {
		return true
	}
	if userID == 0 {
		return false
	}
	if room.CreatorID != nil && *room.CreatorID == userID {
		return true
	}
	for _, seat := range seats {
		if seat.UserID == userID && seat.IsActive {
			return true
		}
	}
	return false
}

// Join seats userID in a waiting room. Rejoining reactivates the existing seat.
func (s *RoomService) Join(ctx context.Context, code string, userID uint, password string) (*models.GameParticipant, error) {
	var seat *models.GameParticipant
	err := s.store.WithSession(ctx, func(tx *gorm.DB) error {
		room, err := findRoom(tx, code)
		if err != nil {
			return err
		}
		if room.Status != models.RoomWaiting {
			return ErrRoomNotJoinable
		}
		if room.IsPrivate && room.PasswordHash != nil {
			if bcrypt.CompareHashAndPassword([]byte(*room.PasswordHash), []byte(password)) != nil {
				return ErrInvalidRoomPassword
			}
		}

		seats, err := repository.GameParticipants.Where(tx, "game_room_id", room.ID)
		if err != nil {
			return err
		}
		active := 0
		for i := range seats {
			if seats[i].UserID == userID {
				seat = &seats[i]
				if seat.IsActive {
					return nil
				}
				seat, err = repository.GameParticipants.Update(tx, seat, map[string]any{"is_active": true})
				return err
			}
			if seats[i].IsActive {
				active++
			}
		}
		if active >= room.MaxPlayers {
			return ErrRoomFull
		}

		seat, err = repository.GameParticipants.Create(tx, map[string]any{
			"game_room_id": room.ID,
			"user_id":      userID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("player_joined", slog.String("room_code", code), slog.Uint64("user_id", uint64(userID)))
	s.publish(code, EventPlayerJoined, map[string]any{"user_id": userID, "participant_id": seat.ID})
	return seat, nil
}

// Leave marks the user's seat inactive. The seat and its answers are kept.
func (s *RoomService) Leave(ctx context.Context, code string, userID uint) error {
	return s.store.WithSession(ctx, func(tx *gorm.DB) error {
		room, err := findRoom(tx, code)
		if err != nil {
			return err
		}
		seat, err := findSeat(tx, room.ID, userID)
		if err != nil {
			return err
		}
		_, err = repository.GameParticipants.Update(tx, seat, map[string]any{"is_active": false})
		return err
	})
}

// Start moves a waiting room to in_progress. Creator only.
func (s *RoomService) Start(ctx context.Context, code string, userID uint) (*models.GameRoom, error) {
	var room *models.GameRoom
	err := s.store.WithSession(ctx, func(tx *gorm.DB) error {
		var err error
		if room, err = findOwnedRoom(tx, code, userID); err != nil {
			return err
		}
		if room.Status != models.RoomWaiting {
			return fmt.Errorf("%w: room is %s", ErrInvalidTransition, room.Status)
		}
		room, err = repository.GameRooms.Update(tx, room, map[string]any{
			"status":     models.RoomInProgress,
			"started_at": s.now().UTC(),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("game_started", slog.String("room_code", code))
	s.publish(code, EventGameStarted, map[string]any{"started_at": room.StartedAt})
	return room, nil
}

type NextQuestionInput struct {
	CategoryID *uint             `json:"category_id"`
	Difficulty models.Difficulty `json:"difficulty"`
}

// Round is a question as shown to players. It never carries the answer.
type Round struct {
	GameQuestionID uint              `json:"game_question_id"`
	SequenceNumber int               `json:"sequence_number"`
	Question       string            `json:"question"`
	Difficulty     models.Difficulty `json:"difficulty"`
	CategoryID     *uint             `json:"category_id,omitempty"`
	Options        []string          `json:"options"`
	StartTime      time.Time         `json:"start_time"`
	EndTime        time.Time         `json:"end_time"`
}

// NextQuestion presents a question not yet used in the room, preferring the
// least used ones, and opens its answer window. Creator only.
func (s *RoomService) NextQuestion(ctx context.Context, code string, userID uint, in NextQuestionInput) (*Round, error) {
	if in.Difficulty != "" && !in.Difficulty.Valid() {
		return nil, fmt.Errorf("%w: difficulty %q", ErrInvalidInput, in.Difficulty)
	}

	var round *Round
	err := s.store.WithSession(ctx, func(tx *gorm.DB) error {
		room, err := findOwnedRoom(tx, code, userID)
		if err != nil {
			return err
		}
		if room.Status != models.RoomInProgress {
			return fmt.Errorf("%w: room is %s", ErrInvalidTransition, room.Status)
		}

		asked, err := repository.GameQuestions.Where(tx, "game_room_id", room.ID)
		if err != nil {
			return err
		}
		used := make([]uint, 0, len(asked))
		for _, gq := range asked {
			used = append(used, gq.QuestionID)
		}

		q, err := pickQuestion(tx, used, in)
		if err != nil {
			return err
		}

		start := s.now().UTC()
		end := start.Add(s.cfg.QuestionTime)
		gq, err := repository.GameQuestions.Create(tx, map[string]any{
			"game_room_id":    room.ID,
			"question_id":     q.ID,
			"sequence_number": len(asked) + 1,
			"start_time":      start,
			"end_time":        end,
		})
		if err != nil {
			return err
		}
		if _, err := repository.Questions.Update(tx, q, map[string]any{"times_used": q.TimesUsed + 1}); err != nil {
			return err
		}

		options := q.Options()
		mathrand.Shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })
		round = &Round{
			GameQuestionID: gq.ID,
			SequenceNumber: gq.SequenceNumber,
			Question:       q.QuestionText,
			Difficulty:     q.Difficulty,
			CategoryID:     q.CategoryID,
			Options:        options,
			StartTime:      start,
			EndTime:        end,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("question_opened", slog.String("room_code", code), slog.Int("sequence", round.SequenceNumber))
	s.publish(code, EventQuestion, round)
	return round, nil
}

func pickQuestion(tx *gorm.DB, used []uint, in NextQuestionInput) (*models.Question, error) {
	query := tx.Model(&models.Question{})
	if len(used) > 0 {
		query = query.Where("id NOT IN ?", used)
	}
	if in.CategoryID != nil {
		query = query.Where("category_id = ?", *in.CategoryID)
	}
	if in.Difficulty != "" {
		query = query.Where("difficulty = ?", in.Difficulty)
	}

	var q models.Question
	err := query.Order("times_used ASC").Order("id ASC").First(&q).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoQuestions
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

type AnswerResult struct {
	Correct       bool   `json:"correct"`
	CorrectAnswer string `json:"correct_answer"`
	AnswerTimeMS  int    `json:"answer_time_ms"`
	PointsEarned  int    `json:"points_earned"`
	Score         int    `json:"score"`
}

// SubmitAnswer records userID's answer to the room's current question,
// scores it and folds it into the global leaderboard.
func (s *RoomService) SubmitAnswer(ctx context.Context, code string, userID uint, answer string) (*AnswerResult, error) {
	now := s.now().UTC()

	var result *AnswerResult
	err := s.store.WithSession(ctx, func(tx *gorm.DB) error {
		room, err := findRoom(tx, code)
		if err != nil {
			return err
		}
		if room.Status != models.RoomInProgress {
			return fmt.Errorf("%w: room is %s", ErrInvalidTransition, room.Status)
		}
		seat, err := findSeat(tx, room.ID, userID)
		if err != nil {
			return err
		}

		gq, err := currentQuestion(tx, room.ID)
		if err != nil {
			return err
		}
		if !gq.Open(now) {
			return ErrQuestionClosed
		}

		previous, err := repository.PlayerAnswers.Where(tx, "game_question_id", gq.ID)
		if err != nil {
			return err
		}
		for _, a := range previous {
			if a.ParticipantID == seat.ID {
				return ErrAlreadyAnswered
			}
		}

		q, err := repository.Questions.GetByID(tx, gq.QuestionID)
		if err != nil {
			return err
		}
		if q == nil {
			return fmt.Errorf("question %d is gone", gq.QuestionID)
		}

		correct := strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(q.CorrectAnswer))
		elapsed := now.Sub(*gq.StartTime)
		window := s.cfg.QuestionTime
		if gq.EndTime != nil {
			window = gq.EndTime.Sub(*gq.StartTime)
		}
		points := Score(correct, elapsed, window)
		elapsedMS := int(elapsed.Milliseconds())

		if _, err := repository.PlayerAnswers.Create(tx, map[string]any{
			"game_question_id": gq.ID,
			"participant_id":   seat.ID,
			"answer_text":      answer,
			"is_correct":       correct,
			"answer_time_ms":   elapsedMS,
			"points_earned":    points,
		}); err != nil {
			return err
		}

		seat, err = repository.GameParticipants.Update(tx, seat, map[string]any{"score": seat.Score + points})
		if err != nil {
			return err
		}

		if err := recordLeaderboard(tx, userID, correct, points, elapsedMS); err != nil {
			return err
		}

		result = &AnswerResult{
			Correct:       correct,
			CorrectAnswer: q.CorrectAnswer,
			AnswerTimeMS:  elapsedMS,
			PointsEarned:  points,
			Score:         seat.Score,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(code, EventAnswerReceived, map[string]any{
		"user_id": userID,
		"correct": result.Correct,
		"points":  result.PointsEarned,
		"score":   result.Score,
	})
	return result, nil
}

// Score awards basePoints for a correct answer plus a bonus that shrinks
// linearly from maxSpeedBonus to zero over the answer window.
func Score(correct bool, elapsed, window time.Duration) int {
	if !correct {
		return 0
	}
	if window <= 0 || elapsed >= window {
		return basePoints
	}
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := window - elapsed
	return basePoints + int(int64(maxSpeedBonus)*int64(remaining)/int64(window))
}

func recordLeaderboard(tx *gorm.DB, userID uint, correct bool, points, answerTimeMS int) error {
	entry, err := repository.Leaderboards.GetByField(tx, "user_id", userID)
	if err != nil {
		return err
	}
	isNew := entry == nil
	if isNew {
		entry = &models.Leaderboard{UserID: userID}
	}
	entry.Record(correct, points, answerTimeMS)

	mean, err := averageAnswerTime(tx, userID)
	if err != nil {
		return err
	}
	entry.SetAverage(mean)

	if isNew {
		return repository.Leaderboards.Insert(tx, entry)
	}
	return repository.Leaderboards.Save(tx, entry)
}

// averageAnswerTime is the mean answer time over every stored answer of the
// user, including the one written earlier in the same transaction.
func averageAnswerTime(tx *gorm.DB, userID uint) (float64, error) {
	var mean sql.NullFloat64
	err := tx.Model(&models.PlayerAnswer{}).
		Select("AVG(player_answers.answer_time_ms)").
		Joins("JOIN game_participants ON game_participants.id = player_answers.participant_id").
		Where("game_participants.user_id = ?", userID).
		Row().
		Scan(&mean)
	if err != nil {
		return 0, fmt.Errorf("average answer time: %w", err)
	}
	return mean.Float64, nil
}

// Standing is a participant's final position in a room.
type Standing struct {
	ParticipantID uint   `json:"participant_id"`
	UserID        uint   `json:"user_id"`
	Username      string `json:"username"`
	Score         int    `json:"score"`
	Rank          int    `json:"rank"`
}

// Finish completes an in-progress room, ranks participants by score and updates the
// users' game counters. Equal scores share a rank. Creator only.
func (s *RoomService) Finish(ctx context.Context, code string, userID uint) ([]Standing, error) {
	var (
		standings []Standing
		played    time.Duration
	)
	err := s.store.WithSession(ctx, func(tx *gorm.DB) error {
		room, err := findOwnedRoom(tx, code, userID)
		if err != nil {
			return err
		}
		if room.Status != models.RoomInProgress {
			return fmt.Errorf("%w: room is %s", ErrInvalidTransition, room.Status)
		}

		seats, err := repository.GameParticipants.Where(tx, "game_room_id", room.ID)
		if err != nil {
			return err
		}
		ranks := Rank(seats)

		standings = make([]Standing, 0, len(seats))
		for i := range seats {
			seat := &seats[i]
			rank := ranks[seat.ID]
			if _, err := repository.GameParticipants.Update(tx, seat, map[string]any{"rank": rank}); err != nil {
				return err
			}

			user, err := repository.Users.GetByID(tx, seat.UserID)
			if err != nil {
				return err
			}
			if user == nil {
				continue
			}
			counters := map[string]any{"total_games": user.TotalGames + 1}
			if rank == 1 {
				counters["games_won"] = user.GamesWon + 1
			}
			if _, err := repository.Users.Update(tx, user, counters); err != nil {
				return err
			}

			standings = append(standings, Standing{
				ParticipantID: seat.ID,
				UserID:        seat.UserID,
				Username:      user.Username,
				Score:         seat.Score,
				Rank:          rank,
			})
		}
		sort.SliceStable(standings, func(i, j int) bool { return standings[i].Rank < standings[j].Rank })

		room, err = repository.GameRooms.Update(tx, room, map[string]any{
			"status":   models.RoomCompleted,
			"ended_at": s.now().UTC(),
		})
		if err != nil {
			return err
		}
		played = room.Duration()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("game_finished",
		slog.String("room_code", code),
		slog.Int("players", len(standings)),
		slog.Duration("duration", played),
	)
	s.publish(code, EventGameFinished, standings)
	return standings, nil
}

// Rank orders seats by score, highest first, and returns competition ranks
// (1, 1, 3, ...) keyed by participant id.
func Rank(seats []models.GameParticipant) map[uint]int {
	ordered := make([]models.GameParticipant, len(seats))
	copy(ordered, seats)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Score != ordered[j].Score {
			return ordered[i].Score > ordered[j].Score
		}
		return ordered[i].ID < ordered[j].ID
	})

	ranks := make(map[uint]int, len(ordered))
	for i, p := range ordered {
		if i > 0 && p.Score == ordered[i-1].Score {
			ranks[p.ID] = ranks[ordered[i-1].ID]
			continue
		}
		ranks[p.ID] = i + 1
	}
	return ranks
}

func findRoom(tx *gorm.DB, code string) (*models.GameRoom, error) {
	room, err := repository.GameRooms.GetByField(tx, "room_code", strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

func findOwnedRoom(tx *gorm.DB, code string, userID uint) (*models.GameRoom, error) {
	room, err := findRoom(tx, code)
	if err != nil {
		return nil, err
	}
	if room.CreatorID == nil || *room.CreatorID != userID {
		return nil, ErrNotRoomCreator
	}
	return room, nil
}

// findSeat returns userID's active seat. A seat given up with Leave does not count.
func findSeat(tx *gorm.DB, roomID, userID uint) (*models.GameParticipant, error) {
	seats, err := repository.GameParticipants.Where(tx, "game_room_id", roomID)
	if err != nil {
		return nil, err
	}
	for i := range seats {
		if seats[i].UserID == userID && seats[i].IsActive {
			return &seats[i], nil
		}
	}
	return nil, ErrNotParticipant
}

func currentQuestion(tx *gorm.DB, roomID uint) (*models.GameQuestion, error) {
	var gq models.GameQuestion
	err := tx.Where("game_room_id = ?", roomID).Order("sequence_number DESC").First(&gq).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoActiveQuestion
	}
	if err != nil {
		return nil, err
	}
	return &gq, nil
}

func generateRoomCode() string {
	const chars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	b := make([]byte, roomCodeLength)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	for i := range b {
		b[i] = chars[int(b[i])%len(chars)]
	}
	return string(b)
}
