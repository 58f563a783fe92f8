package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/myerscreative/doloop-sub000/internal/aigen"
	"github.com/myerscreative/doloop-sub000/internal/api"
	"github.com/myerscreative/doloop-sub000/internal/appstate"
	"github.com/myerscreative/doloop-sub000/internal/config"
	"github.com/myerscreative/doloop-sub000/internal/health"
	"github.com/myerscreative/doloop-sub000/internal/metrics"
	"github.com/myerscreative/doloop-sub000/internal/store"
	"github.com/myerscreative/doloop-sub000/internal/streak"
	"github.com/myerscreative/doloop-sub000/internal/templates"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Logger = logger

	// Load config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Str("listen_addr", cfg.ListenAddr).
		Str("db_path", cfg.DBPath).
		Bool("ai_enabled", cfg.AIEnabled()).
		Msg("starting doloop service")

	// Context with graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Storage
	st, err := store.New(cfg.DBPath, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.Close()

	// Health checker
	checker := health.NewChecker(logger)
	checker.Register("store", func(ctx context.Context) health.Status {
		if err := st.DB().PingContext(ctx); err != nil {
			return health.StatusDown
		}
		return health.StatusOK
	})

	// Metrics
	m := metrics.New()

	// Domain services
	streakSvc := streak.NewService(st, logger)
	templateSvc := templates.NewService(st, logger)
	sessions := appstate.NewManager(st, logger)

	// AI generation (optional — the catalog works without it)
	var generator *aigen.Service
	if cfg.AIEnabled() {
		rules := aigen.NewPromptRules()
		if cfg.AIBlocklistPath != "" {
			if err := rules.LoadBlocklist(cfg.AIBlocklistPath); err != nil {
				logger.Warn().Err(err).Str("path", cfg.AIBlocklistPath).Msg("failed to load blocklist (non-fatal)")
			}
		}
		provider := aigen.NewAnthropicProvider(cfg.AIAPIKey, logger,
			aigen.WithModel(cfg.AIModel),
			aigen.WithMaxTokens(cfg.AIMaxTokens),
		)
		generator = aigen.NewService(st, provider, rules, aigen.Limits{
			Hourly:  cfg.AIHourlyLimit,
			Daily:   cfg.AIDailyLimit,
			Monthly: cfg.AIMonthlyLimit,
		}, logger)
		logger.Info().Str("model", cfg.AIModel).Msg("AI generation enabled")
	} else {
		logger.Info().Msg("AI generation not configured — skipping")
	}

	var wg sync.WaitGroup

	// Background reset sweep for overdue daily/weekly loops
	sweepInterval, err := time.ParseDuration(cfg.SweepInterval)
	if err != nil {
		logger.Warn().Err(err).Str("interval", cfg.SweepInterval).Msg("invalid sweep interval, using 5m")
		sweepInterval = 5 * time.Minute
	}
	sweeper := streak.NewSweeper(streakSvc, sweepInterval, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()

	// API server
	handlers := api.NewHandlers(st, streakSvc, templateSvc, generator, sessions, checker, m, logger)
	server := api.NewServer(api.ServerConfig{
		ListenAddr: cfg.ListenAddr,
		AuthConfig: api.AuthConfig{
			Mode:   cfg.AuthMode,
			Secret: cfg.JWTSecret,
		},
		RateLimit: api.RateLimitConfig{
			RPS:   cfg.RateLimitRPS,
			Burst: cfg.RateLimitBurst,
		},
		CORSOrigins: cfg.CORSOrigins,
	}, handlers, m, logger)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("api server error")
		}
	}()

	// Wait for shutdown signal
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutting down")

	cancel()
	if err := server.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("api server shutdown error")
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn().Msg("shutdown timed out")
	}

	logger.Info().Msg("doloop service stopped")
}
