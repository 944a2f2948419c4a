// services/users.go - Accounts: registration and login
package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"trivia/models"
	"trivia/repository"
)

const minPasswordLength = 6

type UserService struct {
	store  Sessions
	logger *slog.Logger
	now    func() time.Time
}

func NewUserService(store Sessions, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{store: store, logger: logger, now: time.Now}
}

type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in *RegisterInput) validate() error {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	switch {
	case in.Username == "" || len(in.Username) > 50:
		return fmt.Errorf("%w: username must be 1-50 characters", ErrInvalidInput)
	case len(in.Email) > 100:
		return fmt.Errorf("%w: email is too long", ErrInvalidInput)
	case len(in.Password) < minPasswordLength:
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return fmt.Errorf("%w: email address is malformed", ErrInvalidInput)
	}
	return nil
}

// Register creates an account. A taken username or email fails with
// database.ErrConstraintViolation.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var user *models.User
	err = s.store.WithSession(ctx, func(tx *gorm.DB) error {
		user, err = repository.Users.Create(tx, map[string]any{
			"username":      in.Username,
			"email":         in.Email,
			"password_hash": string(hash),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user_registered", slog.Uint64("user_id", uint64(user.ID)), slog.String("username", user.Username))
	return user, nil
}

// Authenticate checks a username/password pair and stamps last_login.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	var user *models.User
	err := s.store.WithSession(ctx, func(tx *gorm.DB) error {
		found, err := repository.Users.GetByField(tx, "username", username)
		if err != nil {
			return err
		}
		if found == nil {
			return ErrInvalidCredentials
		}
		if err := bcrypt.CompareHashAndPassword([]byte(found.PasswordHash), []byte(password)); err != nil {
			return ErrInvalidCredentials
		}
		user, err = repository.Users.Update(tx, found, map[string]any{"last_login": s.now().UTC()})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user_logged_in", slog.Uint64("user_id", uint64(user.ID)))
	return user, nil
}

// Get returns the user with id, or nil.
func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	var user *models.User
	err := s.store.WithSession(ctx, func(tx *gorm.DB) error {
		var err error
		user, err = repository.Users.GetByID(tx, id)
		return err
	})
	return user, err
}
