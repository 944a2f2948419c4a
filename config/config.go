// config/config.go - Application settings loaded from the environment
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Error reports a required value that is missing or a value that cannot be parsed.
type Error struct {
	Key    string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("config error %s: %s", e.Key, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Settings is the process-wide configuration snapshot. It is never mutated after Load returns.
type Settings struct {
	// API endpoints
	TriviaAPI         string
	TriviaTokenAPI    string
	TriviaCategoryAPI string

	// Server
	ServerHost  string
	ServerPort  int
	Debug       bool
	CORSOrigins string

	// Database
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	// WebSocket (seconds)
	WebSocketPingInterval int
	WebSocketPingTimeout  int

	// Game
	DefaultQuestionTime int
	MaxPlayersPerRoom   int
	QuestionCacheTTL    int

	// Security
	SecretKey                string
	AccessTokenExpireMinutes int
	AuthRateLimitMax         int
	AuthRateLimitWindow      time.Duration

	// Optional infrastructure
	RedisURL string
	Log      LogConfig
}

// LogConfig controls the optional rotating log file.
type LogConfig struct {
	Dir        string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Addr returns host:port for the HTTP listener.
func (s *Settings) Addr() string {
	return net.JoinHostPort(s.ServerHost, strconv.Itoa(s.ServerPort))
}

func (s *Settings) PingInterval() time.Duration {
	return time.Duration(s.WebSocketPingInterval) * time.Second
}

func (s *Settings) PingTimeout() time.Duration {
	return time.Duration(s.WebSocketPingTimeout) * time.Second
}

func (s *Settings) QuestionTime() time.Duration {
	return time.Duration(s.DefaultQuestionTime) * time.Second
}

func (s *Settings) CacheTTL() time.Duration {
	return time.Duration(s.QuestionCacheTTL) * time.Second
}

func (s *Settings) TokenTTL() time.Duration {
	return time.Duration(s.AccessTokenExpireMinutes) * time.Minute
}

// Load reads every setting from the process environment.
// A missing required key or a malformed value returns *Error.
func Load() (*Settings, error) {
	var err error
	s := &Settings{}

	if s.TriviaAPI, err = requiredString("TRIVIA_API"); err != nil {
		return nil, err
	}
	if s.TriviaTokenAPI, err = requiredString("TRIVIA_TOKEN_API"); err != nil {
		return nil, err
	}
	if s.TriviaCategoryAPI, err = requiredString("TRIVIA_CATEGORY_API"); err != nil {
		return nil, err
	}
	if s.DatabaseURL, err = requiredString("DATABASE_URL"); err != nil {
		return nil, err
	}
	if s.SecretKey, err = requiredString("SECRET_KEY"); err != nil {
		return nil, err
	}

	s.ServerHost = stringOr("SERVER_HOST", "0.0.0.0")
	if s.ServerPort, err = positiveIntOr("SERVER_PORT", 8000); err != nil {
		return nil, err
	}
	if s.ServerPort > 65535 {
		return nil, &Error{Key: "SERVER_PORT", Reason: "out of range: " + strconv.Itoa(s.ServerPort)}
	}
	if s.Debug, err = boolOr("DEBUG", false); err != nil {
		return nil, err
	}
	s.CORSOrigins = stringOr("CORS_ORIGINS", "*")

	if s.DBMaxOpenConns, err = positiveIntOr("DB_MAX_OPEN_CONNS", 25); err != nil {
		return nil, err
	}
	if s.DBMaxIdleConns, err = positiveIntOr("DB_MAX_IDLE_CONNS", 5); err != nil {
		return nil, err
	}
	lifetime, err := positiveIntOr("DB_CONN_MAX_LIFETIME", 300)
	if err != nil {
		return nil, err
	}
	s.DBConnMaxLifetime = time.Duration(lifetime) * time.Second

	if s.WebSocketPingInterval, err = positiveIntOr("WEBSOCKET_PING_INTERVAL", 25); err != nil {
		return nil, err
	}
	if s.WebSocketPingTimeout, err = positiveIntOr("WEBSOCKET_PING_TIMEOUT", 120); err != nil {
		return nil, err
	}
	if s.DefaultQuestionTime, err = positiveIntOr("DEFAULT_QUESTION_TIME", 15); err != nil {
		return nil, err
	}
	if s.MaxPlayersPerRoom, err = positiveIntOr("MAX_PLAYERS_PER_ROOM", 8); err != nil {
		return nil, err
	}
	if s.QuestionCacheTTL, err = positiveIntOr("QUESTION_CACHE_TTL", 86400); err != nil {
		return nil, err
	}
	if s.AccessTokenExpireMinutes, err = positiveIntOr("ACCESS_TOKEN_EXPIRE_MINUTES", 30); err != nil {
		return nil, err
	}
	if s.AuthRateLimitMax, err = positiveIntOr("AUTH_RATE_LIMIT_MAX", 5); err != nil {
		return nil, err
	}
	window, err := positiveIntOr("AUTH_RATE_LIMIT_WINDOW", 300)
	if err != nil {
		return nil, err
	}
	s.AuthRateLimitWindow = time.Duration(window) * time.Second

	s.RedisURL = stringOr("REDIS_URL", "")
	s.Log.Dir = stringOr("LOG_DIR", "")
	if s.Log.MaxSizeMB, err = positiveIntOr("LOG_MAX_SIZE_MB", 50); err != nil {
		return nil, err
	}
	if s.Log.MaxBackups, err = positiveIntOr("LOG_MAX_BACKUPS", 5); err != nil {
		return nil, err
	}
	if s.Log.MaxAgeDays, err = positiveIntOr("LOG_MAX_AGE_DAYS", 14); err != nil {
		return nil, err
	}

	return s, nil
}

// LoadDotenv loads .env files that exist; missing files are skipped.
func LoadDotenv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("stat dotenv file %s: %w", path, err)
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load dotenv file %s: %w", path, err)
		}
	}
	return nil
}

var (
	settings *Settings
	initErr  error
	initOnce sync.Once
)

// Init loads .env and the environment exactly once for the process.
// Later calls return the result of the first call.
func Init() (*Settings, error) {
	initOnce.Do(func() {
		if err := LoadDotenv(); err != nil {
			initErr = err
			return
		}
		settings, initErr = Load()
	})
	return settings, initErr
}

// Get returns the snapshot produced by Init. It panics if Init has not succeeded.
func Get() *Settings {
	if settings == nil {
		panic("config: Get called before a successful Init")
	}
	return settings
}
