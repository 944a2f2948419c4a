package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"trivia/cache"
	"trivia/config"
	"trivia/database"
	"trivia/handlers"
	"trivia/logging"
	"trivia/middleware"
	"trivia/services"
	"trivia/trivia"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "trivia:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Init()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg, "trivia.log")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := database.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer store.Close()

	if err := store.InitSchema(ctx); err != nil {
		return err
	}

	var questionCache services.QuestionCache
	if cfg.RedisURL != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisURL, logger)
		if err != nil {
			return err
		}
		defer rdb.Close()
		questionCache = cache.NewQuestionCache(rdb, cfg.CacheTTL(), logger)
	} else {
		logger.Info("question_cache_disabled")
	}

	source := trivia.NewClient(cfg, &http.Client{Timeout: 15 * time.Second}, logger)
	hub := handlers.NewHub(logger)
	authLimiter := middleware.NewRateLimiter(cfg.AuthRateLimitMax, cfg.AuthRateLimitWindow)

	h := &handlers.Handlers{
		Store:  store,
		Users:  services.NewUserService(store, logger),
		Tokens: services.NewTokenService(cfg.SecretKey, cfg.TokenTTL()),
		Rooms: services.NewRoomService(store, services.RoomConfig{
			MaxPlayers:   cfg.MaxPlayersPerRoom,
			QuestionTime: cfg.QuestionTime(),
		}, hub, logger),
		Leaderboard:  services.NewLeaderboardService(store, logger),
		Questions:    services.NewQuestionBank(store, source, questionCache, logger),
		Hub:          hub,
		AuthLimiter:  authLimiter,
		PingInterval: cfg.PingInterval(),
		PingTimeout:  cfg.PingTimeout(),
		Logger:       logger,
	}

	app := handlers.NewApp(h, handlers.AppOptions{
		CORSOrigins: cfg.CORSOrigins,
		Debug:       cfg.Debug,
		AccessLog:   true,
		Logger:      logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		authLimiter.RunCleanup(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info("server_starting", slog.String("addr", cfg.Addr()), slog.Bool("debug", cfg.Debug))
		if err := app.Listen(cfg.Addr()); err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("server_stopping")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("server_stopped")
	return nil
}
