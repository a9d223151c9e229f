package main

import (
	"context"
	"database/sql"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"reading_program_bot/internal/app"
	"reading_program_bot/internal/domain/document"
	"reading_program_bot/internal/domain/program"
	"reading_program_bot/internal/domain/teacher"
	"reading_program_bot/internal/infra/config"
	idb "reading_program_bot/internal/infra/database"
	"reading_program_bot/internal/infra/logger"
	"reading_program_bot/internal/infra/memstore"
	"reading_program_bot/internal/infra/redisstore"
	"reading_program_bot/internal/infra/scheduler"
	"reading_program_bot/internal/infra/telegram"
)

const redisKeyPrefix = "reading:"

func main() {
	fmt.Println("Reading Program Bot starting...")

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	mainLogger := logger.Entry().WithField("component", "main")

	mainLogger.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"backend":     cfg.StoreBackend,
		"admin_id":    cfg.AdminTelegramID,
	}).Info("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres backs the roster whenever it is configured.
	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = idb.NewPostgresConnection(cfg.DatabaseURL)
		if err != nil {
			mainLogger.Fatalf("Could not connect to database: %v", err)
		}
		defer db.Close()
		mainLogger.Info("Database connection established successfully.")
	}

	store, closeStore, err := openStore(ctx, cfg, db)
	if err != nil {
		mainLogger.Fatalf("Could not open document store: %v", err)
	}
	defer closeStore()

	var teacherRepo teacher.Repository
	if db != nil {
		teacherRepo = idb.NewPostgresTeacherRepository(db)
	} else {
		mainLogger.Warn("DATABASE_URL is not set, the teacher roster is kept in memory.")
		teacherRepo = memstore.NewTeacherRepository()
	}

	calendar, err := program.NewCalendar(cfg.PhaseStarts, time.Local, time.Now)
	if err != nil {
		mainLogger.Fatalf("Invalid phase calendar: %v", err)
	}
	var phases program.PhaseSource = calendar
	if cfg.PhaseOverride != program.PhaseNone {
		phases = program.Override{Source: calendar, Year: calendar.CurrentYear(), Phase: cfg.PhaseOverride}
		mainLogger.WithField("phase", cfg.PhaseOverride).Warn("Phase override active for the current year")
	}

	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) { // Global error handler
			entry := logger.Entry().WithError(err)
			if c != nil && c.Sender() != nil && c.Chat() != nil {
				entry = entry.WithFields(logrus.Fields{"text": c.Text(), "sender_id": c.Sender().ID, "chat_id": c.Chat().ID})
			}
			entry.Error("Telebot error")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		mainLogger.Fatalf("Could not create Telegram bot: %v", err)
	}

	baseLogger := logger.Entry()
	notifier := telegram.NewNotifier(telegram.NewTelebotAdapter(bot), teacherRepo, baseLogger)

	services := &telegram.Services{
		Admin:         app.NewAdminService(teacherRepo, store, cfg.AdminTelegramID, baseLogger),
		Configuration: app.NewConfigurationService(store, phases, cfg.DefaultBookCeiling, baseLogger),
		Release:       app.NewReleaseService(store, phases, notifier, baseLogger),
		Submission:    app.NewSubmissionService(store, phases, notifier, baseLogger),
		Catalog:       app.NewCatalogService(store, baseLogger),
		Phases:        phases,
		Clock:         calendar,
	}
	rollover := app.NewRolloverService(store, phases, teacherRepo, cfg.DefaultBookCeiling, baseLogger)

	rolloverScheduler := scheduler.NewRolloverScheduler(rollover, calendar, baseLogger, cfg.CronSpecRollover)
	if err := rolloverScheduler.Start(); err != nil {
		mainLogger.Fatalf("Could not start scheduler: %v", err)
	}
	// Catch up immediately in case the process was down when the year turned.
	if err := rolloverScheduler.RunOnce(ctx); err != nil {
		mainLogger.WithError(err).Error("Initial rollover check failed")
	}

	telegram.RegisterBotCommands(ctx, bot, services, baseLogger)
	telegram.RegisterAdminHandlers(ctx, bot, services, baseLogger)
	telegram.RegisterTeacherHandlers(ctx, bot, services, baseLogger)
	mainLogger.Info("Command handlers registered.")

	// Start bot in a goroutine so it doesn't block graceful shutdown handling
	go bot.Start()
	mainLogger.Info("Application setup complete. Bot and Scheduler are running.")

	<-ctx.Done() // Block until a signal is received

	mainLogger.Info("Shutting down application...")
	bot.Stop()
	rolloverScheduler.Stop()
	mainLogger.Info("Application shut down gracefully.")
}

func openStore(ctx context.Context, cfg *config.AppConfig, db *sql.DB) (document.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		return idb.NewPostgresDocumentStore(db), func() {}, nil
	case config.BackendRedis:
		rs, err := redisstore.Connect(ctx, cfg.RedisURL, redisKeyPrefix)
		if err != nil {
			return nil, nil, err
		}
		return rs, func() { _ = rs.Close() }, nil
	case config.BackendMemory:
		return memstore.New(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
