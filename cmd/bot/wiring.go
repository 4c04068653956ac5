package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"care_reminder_bot/internal/app"
	"care_reminder_bot/internal/domain/notification"
	"care_reminder_bot/internal/infra/cache"
	"care_reminder_bot/internal/infra/config"
	idb "care_reminder_bot/internal/infra/database"
	"care_reminder_bot/internal/infra/logger"
)

// components is the wired application, shared by every subcommand.
type components struct {
	cfg    *config.AppConfig
	db     *idb.DB
	owners *idb.OwnerRepository

	sink     *app.Sink
	sweep    *app.SweepService
	events   *app.EventNotifier
	subjects *app.SubjectService
	care     *app.CareService
	inbox    *app.InboxService
	admin    *app.AdminService
}

// loadConfig loads configuration and initializes the global logger.
func loadConfig() (*config.AppConfig, *logrus.Entry, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("could not load application configuration: %w", err)
	}
	logger.Init(cfg)
	mainLogger := logger.Component("main")
	mainLogger.WithFields(logrus.Fields{
		"log_level":   cfg.LogLevel,
		"environment": cfg.Environment,
		"storage":     cfg.StorageDriver,
		"timezone":    cfg.Location.String(),
	}).Info("Configuration loaded")
	return cfg, mainLogger, nil
}

// openDatabase connects and applies the embedded schema.
func openDatabase(ctx context.Context, cfg *config.AppConfig) (*idb.DB, error) {
	db, err := idb.Open(cfg.StorageDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func wire(ctx context.Context, cfg *config.AppConfig) (*components, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}

	ownerRepo := idb.NewOwnerRepository(db)
	careRepo := idb.NewCareRepository(db)
	notificationRepo := idb.NewNotificationRepository(db)

	inboxCache := cache.New(cfg.CacheTTL)
	sink := app.NewSink(notificationRepo, inboxCache, cfg.InsertBatchSize, logger.Component("sink"))

	sweepService := app.NewSweepService(
		careRepo,
		notification.NewCalendarDayGuard(notificationRepo, cfg.Location),
		sink,
		cfg.Location,
		logger.Component("sweep"),
	)

	return &components{
		cfg:      cfg,
		db:       db,
		owners:   ownerRepo,
		sink:     sink,
		sweep:    sweepService,
		events:   app.NewEventNotifier(notification.NewSlidingWindowGuard(notificationRepo, cfg.DedupWindow), sink, logger.Component("events")),
		subjects: app.NewSubjectService(ownerRepo, careRepo, logger.Component("subjects")),
		care:     app.NewCareService(careRepo, logger.Component("care")),
		inbox:    app.NewInboxService(notificationRepo, inboxCache, logger.Component("inbox")),
		admin:    app.NewAdminService(ownerRepo, sink, sweepService, cfg.AdminTelegramID, logger.Component("admin")),
	}, nil
}

func (c *components) close() {
	if err := c.db.Close(); err != nil {
		logger.Component("main").WithError(err).Warn("Failed to close database")
	}
}
