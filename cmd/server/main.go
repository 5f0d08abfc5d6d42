package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loyaltyclub/backend/internal/ambassador"
	"github.com/loyaltyclub/backend/internal/config"
	"github.com/loyaltyclub/backend/internal/database"
	"github.com/loyaltyclub/backend/internal/handlers"
	"github.com/loyaltyclub/backend/internal/jobs"
	"github.com/loyaltyclub/backend/internal/logger"
	"github.com/loyaltyclub/backend/internal/middleware"
	"github.com/loyaltyclub/backend/internal/payout"
	"github.com/loyaltyclub/backend/internal/queue"
	"github.com/loyaltyclub/backend/internal/referral"
	"github.com/loyaltyclub/backend/internal/routes"
	"github.com/loyaltyclub/backend/internal/store"
)

func main() {
	// Initialize configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := logger.Init(cfg.Logger)
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	db, err := database.InitDB(cfg.Database)
	if err != nil {
		log.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	st := store.New(db)

	// Initialize Redis client and queue
	ctx := context.Background()
	redisClient, err := queue.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	redisQueue := queue.NewRedisQueue(redisClient, log)

	// Initialize services
	referralService := referral.NewService(st, cfg.Referral, log)
	ambassadorService := ambassador.NewService(st, cfg.Ambassador, log)
	payoutService := payout.NewService(st, log)
	payoutService.SetPointCrediter(referralService)

	// Register job handlers
	referralJobs := jobs.NewReferralJobs(referralService, redisQueue, log)
	referralJobs.SetMaxRetries(cfg.Queue.MaxRetries)
	jobProcessor := queue.NewJobProcessor(redisQueue, cfg.Queue.Workers, log)
	referralJobs.RegisterHandlers(jobProcessor)

	// Schedule recurring jobs
	interval := time.Duration(cfg.Scheduler.PayoutSummaryMinutes) * time.Minute
	summaryJob := jobs.NewPayoutSummaryJob(payoutService, st, redisClient, interval, log)
	scheduler, err := jobs.NewScheduler(summaryJob, log)
	if err != nil {
		log.Error("failed to create scheduler", "error", err)
		os.Exit(1)
	}

	// Initialize handlers and router
	rateLimiter := middleware.NewRateLimiter(cfg.Server.RequestsPerSecond, cfg.Server.Burst, log)
	router := routes.SetupRouter(cfg, routes.Handlers{
		Referral:   handlers.NewReferralHandler(referralService, referralJobs),
		Rewards:    handlers.NewAdminRewardHandler(payoutService, summaryJob),
		Ambassador: handlers.NewAdminAmbassadorHandler(ambassadorService),
		Health: handlers.NewHealthHandler(map[string]handlers.Pinger{
			"database": st,
			"redis": handlers.PingFunc(func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			}),
		}),
	}, rateLimiter, log)

	jobProcessor.Start()
	scheduler.Start()
	srv := startServer(router, cfg.Server, log)

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	scheduler.Stop()
	jobProcessor.Stop()
	rateLimiter.Stop()

	if err := redisClient.Close(); err != nil {
		log.Warn("failed to close redis client", "error", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	log.Info("server exiting")
}

// startServer starts the HTTP server
func startServer(router *gin.Engine, cfg config.ServerConfig, log *slog.Logger) *http.Server {
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server started", "port", cfg.Port)
	return srv
}
