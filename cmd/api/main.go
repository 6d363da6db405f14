package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/voluntree/engage-api/internal/config"
	"github.com/voluntree/engage-api/internal/email"
	"github.com/voluntree/engage-api/internal/handler/health"
	notificationHandler "github.com/voluntree/engage-api/internal/handler/notification"
	ratingHandler "github.com/voluntree/engage-api/internal/handler/rating"
	schedulerHandler "github.com/voluntree/engage-api/internal/handler/scheduler"
	"github.com/voluntree/engage-api/internal/middleware"
	"github.com/voluntree/engage-api/internal/repository/postgres"
	"github.com/voluntree/engage-api/internal/router"
	archivalService "github.com/voluntree/engage-api/internal/service/archival"
	notificationService "github.com/voluntree/engage-api/internal/service/notification"
	ratingService "github.com/voluntree/engage-api/internal/service/rating"
	templateService "github.com/voluntree/engage-api/internal/service/template"
	"github.com/voluntree/engage-api/pkg/logger"
	"github.com/voluntree/engage-api/pkg/messaging/redis"
	"github.com/voluntree/engage-api/pkg/metrics"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)
	appMetrics := metrics.New("engage")

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &appLogger.ZL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	// Repositories
	eventRepo := postgres.NewEventRepository(db)
	appRepo := postgres.NewApplicationRepository(db)
	ratingRepo := postgres.NewRatingRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)
	templateRepo := postgres.NewTemplateRepository(db)
	prefsRepo := postgres.NewPreferencesRepository(db)
	userRepo := postgres.NewUserRepository(db)

	// Channels
	emailSvc := email.NewService(email.Config{
		Host:     cfg.Email.Host,
		Port:     cfg.Email.Port,
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
		From:     cfg.Email.From,
	})
	channels := []notificationService.Channel{
		notificationService.NewInAppChannel(broker, "notifications"),
		notificationService.NewEmailChannel(emailSvc),
		notificationService.NewPushChannel(appLogger),
		notificationService.NewSMSChannel(appLogger),
	}

	// Services
	templateSvc := templateService.NewService(templateRepo)
	notificationSvc := notificationService.NewService(
		notificationRepo, prefsRepo, userRepo, templateSvc, channels, appLogger, appMetrics)
	ratingNotifier := notificationService.NewRatingNotifier(notificationSvc, userRepo)
	ratingSvc := ratingService.NewService(
		eventRepo, appRepo, ratingRepo, userRepo, ratingNotifier, appLogger, appMetrics)
	archivalSvc := archivalService.NewService(
		eventRepo, appRepo, notificationSvc, appLogger, appMetrics)

	var rateLimit rate.Limit
	if cfg.RateLimit.Enabled {
		rateLimit = rate.Limit(cfg.RateLimit.RequestsPerSecond)
	}

	// HTTP layer
	r := router.NewRouter(
		health.NewHandler(db),
		ratingHandler.NewHandler(ratingSvc),
		notificationHandler.NewHandler(notificationSvc),
		schedulerHandler.NewHandler(archivalSvc, notificationSvc),
		router.Config{
			RateLimit:     rateLimit,
			RateBurst:     cfg.RateLimit.Burst,
			CORSConfig:    corsConfig(cfg.CORS),
			MetricsPrefix: "engage_http",
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        r.Engine(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		appLogger.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	appLogger.Info("server exited properly")
}

func corsConfig(cfg config.CORSConfig) middleware.CORSConfig {
	out := middleware.DefaultCORSConfig()
	if len(cfg.AllowedOrigins) > 0 {
		out.AllowOrigins = cfg.AllowedOrigins
	}
	if len(cfg.AllowedMethods) > 0 {
		out.AllowMethods = cfg.AllowedMethods
	}
	if len(cfg.AllowedHeaders) > 0 {
		out.AllowHeaders = cfg.AllowedHeaders
	}
	return out
}
