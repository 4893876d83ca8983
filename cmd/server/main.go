package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/proctor-backend/internal/config"
	"github.com/stemsi/proctor-backend/internal/content"
	"github.com/stemsi/proctor-backend/internal/database"
	"github.com/stemsi/proctor-backend/internal/handler"
	"github.com/stemsi/proctor-backend/internal/logger"
	"github.com/stemsi/proctor-backend/internal/repository"
	"github.com/stemsi/proctor-backend/internal/router"
	"github.com/stemsi/proctor-backend/internal/service"
	"github.com/stemsi/proctor-backend/internal/validator"
	"github.com/stemsi/proctor-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Str("content_base_url", cfg.ContentBaseURL).
		Msg("Starting Proctor Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	outcomeRepo := repository.NewOutcomeRepository(pool)
	violationRepo := repository.NewViolationRepository(pool)
	liveRepo := repository.NewLiveRepository(rdb)

	// ─── Initialize Services ──────────────────────────────────────────
	// The fetch is bounded by the session's own lifetime, not a client timeout.
	contentClient := content.NewClient(cfg.ContentBaseURL, &http.Client{}, log)
	recorder := service.NewAuditRecorder(liveRepo, log)

	authService := service.NewAuthService(cfg)
	quizService := service.NewQuizService(contentClient, liveRepo, recorder,
		service.QuizOptions{LockTTL: cfg.ActiveSessionTTL}, log)
	monitorService := service.NewMonitorService(outcomeRepo, violationRepo, liveRepo)

	// ─── Initialize Handlers ──────────────────────────────────────────
	wsHandler := handler.NewWSHandler(quizService, liveRepo, cfg.ActiveSessionTTL, log, cfg.AllowedOrigins)
	handlers := &router.Handlers{
		WS:        wsHandler,
		QuizAdmin: handler.NewQuizAdminHandler(monitorService, log),
		Monitor:   handler.NewMonitorHandler(liveRepo, monitorService, log),
		System: handler.NewSystemHandler(liveRepo, wsHandler.ActiveStreams, map[string]handler.Pinger{
			"postgres": pool.Ping,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		}, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	violationWorker := worker.NewViolationWorker(violationRepo, liveRepo, log)
	outcomeWorker := worker.NewOutcomeWorker(outcomeRepo, liveRepo, log)

	workers.Add(2)
	go func() { defer workers.Done(); violationWorker.Start(workerCtx) }()
	go func() { defer workers.Done(); outcomeWorker.Start(workerCtx) }()

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(ctx, authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(wsHandler.CloseAll)

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new requests and drop live quiz streams.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Let aborted sessions hand their outcomes to Redis.
	waitForStreams(shutdownCtx, wsHandler)

	// 3. Stop background workers; each flushes its buffer before returning.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

func waitForStreams(ctx context.Context, h *handler.WSHandler) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for h.ActiveStreams() > 0 {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
