package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"

	"github.com/voluntree/engage-api/internal/config"
	"github.com/voluntree/engage-api/internal/email"
	"github.com/voluntree/engage-api/internal/repository/postgres"
	archivalService "github.com/voluntree/engage-api/internal/service/archival"
	notificationService "github.com/voluntree/engage-api/internal/service/notification"
	templateService "github.com/voluntree/engage-api/internal/service/template"
	"github.com/voluntree/engage-api/internal/worker"
	"github.com/voluntree/engage-api/pkg/logger"
	"github.com/voluntree/engage-api/pkg/messaging/redis"
	"github.com/voluntree/engage-api/pkg/metrics"
)

// workerEnv overrides the cron schedules from the environment, which
// is how deployments stagger jobs across instances.
type workerEnv struct {
	ArchivalSchedule string `envconfig:"ARCHIVAL_SCHEDULE"`
	ReminderSchedule string `envconfig:"REMINDER_SCHEDULE"`
	CleanupSchedule  string `envconfig:"CLEANUP_SCHEDULE"`
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	var env workerEnv
	if err := envconfig.Process("engage_worker", &env); err != nil {
		log.Fatal().Err(err).Msg("failed to read worker environment")
	}
	if env.ArchivalSchedule != "" {
		cfg.Scheduler.ArchivalSchedule = env.ArchivalSchedule
	}
	if env.ReminderSchedule != "" {
		cfg.Scheduler.ReminderSchedule = env.ReminderSchedule
	}
	if env.CleanupSchedule != "" {
		cfg.Scheduler.CleanupSchedule = env.CleanupSchedule
	}

	appLogger := logger.NewLogger(nil)
	appMetrics := metrics.New("engage_worker")

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

	eventRepo := postgres.NewEventRepository(db)
	appRepo := postgres.NewApplicationRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)
	templateRepo := postgres.NewTemplateRepository(db)
	prefsRepo := postgres.NewPreferencesRepository(db)
	userRepo := postgres.NewUserRepository(db)

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

	templateSvc := templateService.NewService(templateRepo)
	notificationSvc := notificationService.NewService(
		notificationRepo, prefsRepo, userRepo, templateSvc, channels, appLogger, appMetrics)
	archivalSvc := archivalService.NewService(
		eventRepo, appRepo, notificationSvc, appLogger, appMetrics)

	scheduler := worker.NewScheduler(archivalSvc, notificationSvc, appLogger)
	if err := scheduler.Start(
		cfg.Scheduler.ArchivalSchedule,
		cfg.Scheduler.ReminderSchedule,
		cfg.Scheduler.CleanupSchedule,
	); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	scheduler.Stop()
	appLogger.Info("worker exited properly")
}
