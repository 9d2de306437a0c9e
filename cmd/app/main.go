// File: cmd/app/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-story-bot/internal/config"
	"telegram-story-bot/internal/domain/ports/adapter"
	"telegram-story-bot/internal/domain/ports/repository"
	"telegram-story-bot/internal/infra/adapters/llm"
	tele "telegram-story-bot/internal/infra/adapters/telegram"
	pg "telegram-story-bot/internal/infra/db/postgres"
	"telegram-story-bot/internal/infra/i18n"
	"telegram-story-bot/internal/infra/logging"
	"telegram-story-bot/internal/infra/memory"
	"telegram-story-bot/internal/infra/metrics"
	red "telegram-story-bot/internal/infra/redis"
	"telegram-story-bot/internal/infra/web"
	"telegram-story-bot/internal/infra/worker"
	"telegram-story-bot/internal/usecase"
)

// Set at build time with -ldflags.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger, logCloser, err := logging.New(cfg.Log, cfg.Runtime.Dev)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	defer logCloser.Close()
	if cfg.Runtime.Dev {
		logger.Warn().Msg("dev mode enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	if cfg.Database.Migrate {
		if err := pg.RunMigrations(cfg.Database.URL); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		logger.Info().Msg("migrations applied")
	}
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	go reportPoolStats(ctx, pool)

	userRepo := pg.NewUserRepo(pool)
	ledger := pg.NewLedger(pool)
	historyRepo := pg.NewHistoryRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Sessions: Redis when configured, process memory otherwise ----
	var (
		phases      repository.PhaseRepository
		locker      repository.Locker
		rateLimiter tele.RateLimiter
	)
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer redisClient.Close()
		phases = red.NewPhaseRepo(redisClient, cfg.Redis.TTL)
		locker = red.NewLocker(redisClient)
		rateLimiter = red.NewRateLimiter(redisClient)
	} else {
		logger.Warn().Msg("redis.url is empty; sessions are kept in memory and rate limiting is off")
		phases = memory.NewPhaseStore()
		locker = memory.NewLocker()
	}

	// ---- LLM ----
	gateway, err := newGateway(ctx, cfg.LLM)
	if err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	gateway = llm.NewLimitedGateway(llm.NewObservedGateway(gateway, cfg.LLM.Provider), cfg.LLM.ConcurrentLimit)
	logger.Info().Str("provider", cfg.LLM.Provider).Str("model", cfg.LLM.Model).Msg("llm gateway ready")

	tr, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Story.Language)
	if err != nil {
		return fmt.Errorf("i18n: %w", err)
	}

	// ---- Telegram ----
	bot, err := tele.NewRealTelegramBotAdapter(cfg.Bot, tr, rateLimiter, logger)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	if err := bot.SetMenuCommands(ctx); err != nil {
		logger.Warn().Err(err).Msg("set menu commands failed")
	}

	story := usecase.NewStoryMachine(userRepo, ledger, historyRepo, txManager, phases, locker, gateway, bot, tr, usecase.StoryOptions{
		TokensLimitByUser: cfg.Story.TokensLimitByUser,
		RequestMaxTokens:  cfg.Story.RequestMaxTokens,
		MaxMessageLen:     cfg.Bot.MaxMessageLen,
		LockTTL:           cfg.Story.LockTTL,
		DebugUserID:       cfg.Bot.DebugUserID,
		WarnLogPath:       cfg.Log.WarnFile,
	}, logger)

	workers := worker.NewPool(cfg.Bot.Workers, cfg.Bot.QueueDepth, logger)
	workers.Start(ctx)

	// ---- Admin HTTP ----
	var auth *web.AuthManager
	if cfg.Admin.JWTSecret != "" {
		auth = web.NewAuthManager(cfg.Admin.JWTSecret, 24*time.Hour)
	} else {
		logger.Warn().Msg("admin.jwt_secret is empty; /api/v1 is disabled")
	}
	statsUC := usecase.NewStatsUseCase(userRepo, historyRepo, cfg.Story.TokensLimitByUser, logger)
	server := web.NewServer(statsUC, auth, cfg.Log.WarnFile, logger)
	go func() {
		if err := server.Start(cfg.Admin.Port); err != nil {
			logger.Error().Err(err).Msg("admin server stopped")
		}
	}()

	go func() {
		if err := bot.StartPolling(ctx, story, workers); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("telegram polling stopped")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigc:
		logger.Info().Str("signal", sig.String()).Msg("shutdown requested")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("admin server shutdown")
	}
	workers.Stop()
	logger.Info().Msg("bye")
	return nil
}

func newGateway(ctx context.Context, cfg config.LLMConfig) (adapter.LLMGateway, error) {
	switch cfg.Provider {
	case config.ProviderYandex:
		return llm.NewYandexGateway(llm.YandexConfig{
			APIKey:      cfg.APIKey,
			FolderID:    cfg.FolderID,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
		})
	case config.ProviderOpenAI:
		return llm.NewOpenAIGateway(llm.OpenAIConfig{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
		})
	case config.ProviderGemini:
		return llm.NewGeminiGateway(ctx, llm.GeminiConfig{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
		})
	case config.ProviderNoop:
		return llm.NewNoopGateway(200 * time.Millisecond), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// reportPoolStats feeds the pgx pool gauges until ctx is done.
func reportPoolStats(ctx context.Context, pool *pgxpool.Pool) {
	t := time.NewTicker(15 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s := pool.Stat()
			metrics.SetDBPoolStats(s.TotalConns(), s.IdleConns(), s.AcquiredConns())
		}
	}
}
