package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/classquiz/classquiz-backend/internal/cache"
	"github.com/classquiz/classquiz-backend/internal/config"
	"github.com/classquiz/classquiz-backend/internal/database"
	"github.com/classquiz/classquiz-backend/internal/handler"
	"github.com/classquiz/classquiz-backend/internal/logger"
	"github.com/classquiz/classquiz-backend/internal/repository"
	"github.com/classquiz/classquiz-backend/internal/router"
	"github.com/classquiz/classquiz-backend/internal/service"
	"github.com/classquiz/classquiz-backend/internal/validator"
	"github.com/classquiz/classquiz-backend/internal/worker"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
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
		Msg("Starting ClassQuiz Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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
	teacherRepo := repository.NewTeacherRepository(pool)
	groupRepo := repository.NewGroupRepository(pool)
	studentRepo := repository.NewStudentRepository(pool)
	quizRepo := repository.NewQuizRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	eventRepo := repository.NewEventRepository(pool)
	dashboardRepo := repository.NewDashboardRepository(pool)

	// ─── Initialize Caches ─────────────────────────────────────────────
	quizCache := cache.NewQuizCache(rdb, cfg.PaperCacheTTL)
	eventQueue := cache.NewEventQueue(rdb)
	imageCache := cache.NewImageCache(rdb)
	joinLimiter := cache.NewRateLimiter(rdb, cfg.JoinRateLimit, cfg.JoinRateWindow)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb, teacherRepo, log)
	groupService := service.NewGroupService(groupRepo)
	studentService := service.NewStudentService(studentRepo, groupService, log)
	quizService := service.NewQuizService(quizRepo, questionRepo, attemptRepo, groupService, quizCache, log)
	questionService := service.NewQuestionService(questionRepo, quizService)
	attemptService := service.NewAttemptService(quizRepo, studentRepo, attemptRepo, quizService, authService, eventQueue, log)
	rankingService := service.NewRankingService(attemptRepo, quizRepo, quizService, attemptService, imageCache, cfg.LeaderboardImageRows, log)
	monitorService := service.NewMonitorService(quizService, attemptRepo, eventRepo, eventQueue)
	dashboardService := service.NewDashboardService(dashboardRepo)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:      handler.NewAuthHandler(authService),
		Group:     handler.NewGroupHandler(groupService),
		Student:   handler.NewStudentHandler(studentService),
		Quiz:      handler.NewQuizHandler(quizService),
		Question:  handler.NewQuestionHandler(questionService),
		Play:      handler.NewPlayHandler(attemptService),
		WS:        handler.NewWSHandler(attemptService, log, cfg.AllowedOrigins),
		Result:    handler.NewResultHandler(rankingService, attemptService),
		Monitor:   handler.NewMonitorHandler(monitorService, log),
		Dashboard: handler.NewDashboardHandler(dashboardService),
		System:    handler.NewSystemHandler(pool, rdb, eventQueue, log),
	}

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load all published quizzes into Redis BEFORE accepting traffic so a
	// class joining at once does not stampede PostgreSQL.
	if err := quizService.PrewarmAll(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, joinLimiter, handlers, cfg, log)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Run Server and Background Workers ────────────────────────────
	// Workers get their own context so they keep draining while the HTTP
	// server finishes in-flight requests.
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	eventWorker := worker.NewEventWorker(eventRepo, rdb, log)
	deadlineWorker := worker.NewDeadlineWorker(attemptService, rankingService, cfg.SweepInterval, log)

	var workers errgroup.Group
	workers.Go(func() error {
		eventWorker.Start(workerCtx)
		return nil
	})
	workers.Go(func() error {
		deadlineWorker.Start(workerCtx)
		return nil
	})

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down gracefully...")
	case err := <-serverErr:
		log.Error().Err(err).Msg("Server error")
	}

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for the event buffer to flush.
	workerCancel()
	_ = workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
