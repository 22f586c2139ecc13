package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"tle_zone_contest/internal/api"
	"tle_zone_contest/internal/app/service"
	"tle_zone_contest/internal/app/worker"
	"tle_zone_contest/internal/common/security"
	"tle_zone_contest/internal/domain/rating"
	"tle_zone_contest/internal/domain/repository"
	"tle_zone_contest/internal/platform/clock"
	"tle_zone_contest/internal/platform/config"
	"tle_zone_contest/internal/platform/database"
	"tle_zone_contest/internal/platform/lock"
	"tle_zone_contest/internal/platform/metrics"
	"tle_zone_contest/internal/platform/queue"
)

// stores bundles the repositories of one storage driver.
type stores struct {
	contests      repository.ContestRepository
	registrations repository.RegistrationRepository
	ratings       repository.RatingRepository
	results       repository.ResultRepository
	users         repository.UserRepository
	locker        lock.Locker
	queue         queue.FinalizationQueue
	health        func(ctx context.Context) error
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// 1. Configuration
	if err := config.Load(); err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	cfg := config.AppConfig

	// 2. JWT
	security.InitJWT()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Storage, locks and queue
	st, cleanup, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialise storage", "driver", cfg.StorageDriver, "error", err)
		os.Exit(1)
	}
	defer cleanup()

	// 4. Services
	m := metrics.New()
	clk := clock.System()
	params := rating.Params{
		Reference: cfg.DefaultRating,
		MaxChange: cfg.MaxRatingChange,
		KFactor:   cfg.RatingKFactor,
	}

	authService := service.NewAuthService(st.users, security.TokenAuth, cfg.JWTExp, logger)
	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		admin := service.SignupRequest{Username: cfg.AdminUsername, Email: cfg.AdminEmail, Password: cfg.AdminPassword}
		if err := authService.EnsureAdmin(ctx, admin); err != nil {
			logger.Error("failed to bootstrap admin account", "error", err)
			os.Exit(1)
		}
	}
	registrationService := service.NewRegistrationService(st.contests, st.registrations, clk, m, logger)
	contestService := service.NewContestService(st.contests, registrationService, clk, cfg.ReadyWindow(), logger)
	ratingService, err := service.NewRatingService(st.ratings, st.locker, clk, params, m, logger)
	if err != nil {
		logger.Error("invalid rating parameters", "error", err)
		os.Exit(1)
	}
	reportService := service.NewReportService(st.contests, st.registrations, st.results, st.users, ratingService, clk, m, logger)
	finalizationService := service.NewFinalizationService(st.contests, st.queue, clk, m, logger)
	webhookService := service.NewWebhookService(st.contests, st.registrations, st.results, clk, m, logger)

	// 5. Finalization worker
	finalizationWorker := worker.NewFinalizationWorker(st.queue, reportService, st.locker, cfg.FinalizationAttempts, m, logger.With("component", "finalization_worker"))
	workerCtx, workerCancel := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		finalizationWorker.Start(workerCtx)
	}()

	// 6. Router and HTTP server
	router := api.NewRouter(api.Dependencies{
		TokenAuth:     security.TokenAuth,
		Metrics:       m,
		Logger:        logger,
		WebhookSecret: cfg.WebhookSecret,
		HealthCheck:   st.health,
		Auth:          authService,
		Contests:      contestService,
		Registrations: registrationService,
		Ratings:       ratingService,
		Reports:       reportService,
		Finalization:  finalizationService,
		Webhook:       webhookService,
	})

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 70 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.APIPort, "storage", cfg.StorageDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	// 7. Graceful shutdown
	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	workerCancel()
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		logger.Warn("finalization worker did not stop in time")
	}
	logger.Info("server and worker stopped")
}

func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, func(), error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		mem := repository.NewMemoryStore()
		logger.Warn("using in-memory storage; data is lost on restart")
		return &stores{
			contests:      mem,
			registrations: mem,
			ratings:       mem,
			results:       mem,
			users:         mem,
			locker:        lock.NewLocalLocker(),
			queue:         queue.NewChannelFinalizationQueue(256),
		}, func() {}, nil
	}

	if err := database.Connect(ctx); err != nil {
		return nil, nil, err
	}
	if err := database.EnsureSchema(ctx, database.DB); err != nil {
		database.Close()
		return nil, nil, err
	}
	if err := queue.ConnectRedis(ctx); err != nil {
		database.Close()
		return nil, nil, err
	}

	db := database.DB
	cleanup := func() {
		queue.CloseRedis()
		database.Close()
	}
	return &stores{
		contests:      repository.NewPgContestRepository(db),
		registrations: repository.NewPgRegistrationRepository(db),
		ratings:       repository.NewPgRatingRepository(db),
		results:       repository.NewPgResultRepository(db),
		users:         repository.NewPgUserRepository(db),
		locker:        lock.NewRedisLocker(queue.RDB, cfg.LockKeyPrefix, cfg.LockTTL(), cfg.LockWait(), logger),
		queue:         queue.NewRedisFinalizationQueue(queue.RDB, cfg.FinalizationQueueName),
		health:        pingAll(db),
	}, cleanup, nil
}

func pingAll(db *sql.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		return queue.RDB.Ping(ctx).Err()
	}
}
