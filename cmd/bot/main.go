package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"birthday_notification_bot/internal/app"
	"birthday_notification_bot/internal/domain/calendar"
	"birthday_notification_bot/internal/domain/chat"
	"birthday_notification_bot/internal/domain/generator"
	"birthday_notification_bot/internal/domain/message"
	"birthday_notification_bot/internal/domain/prompt"
	"birthday_notification_bot/internal/infra/config"
	idb "birthday_notification_bot/internal/infra/database"
	"birthday_notification_bot/internal/infra/httpapi"
	"birthday_notification_bot/internal/infra/icsfeed"
	"birthday_notification_bot/internal/infra/ldapdir"
	"birthday_notification_bot/internal/infra/logger"
	"birthday_notification_bot/internal/infra/openai"
	"birthday_notification_bot/internal/infra/scheduler"
	"birthday_notification_bot/internal/infra/slack"
	"birthday_notification_bot/internal/infra/telegram"

	"gopkg.in/telebot.v3"
)

func main() {
	fmt.Println("Birthday Notification Bot starting...")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Could not load application configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg)
	log := logger.Get()
	log.Infof("Configuration loaded. LogLevel: %s, Environment: %s, Window: %d days", cfg.LogLevel, cfg.Environment, cfg.WindowDays)

	// Stores: Postgres when DATABASE_URL is set, in-memory otherwise.
	var (
		messages message.Repository
		facts    message.FactHistory
		ledger   message.SentLedger
		prompts  prompt.Repository
	)
	if cfg.DatabaseURL != "" {
		db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("FATAL: Could not connect to database: %v", err)
		}
		defer db.Close()
		log.Info("Database connection established successfully.")
		messages = idb.NewPostgresMessageRepository(db)
		facts = idb.NewPostgresFactHistory(db)
		ledger = idb.NewPostgresSentLedger(db)
		prompts = idb.NewPostgresPromptRepository(db)
	} else {
		log.Warn("DATABASE_URL not set. Using in-memory stores; state is lost on restart.")
		messages = idb.NewMemoryMessageRepository()
		facts = idb.NewMemoryFactHistory()
		ledger = idb.NewMemorySentLedger()
		prompts = idb.NewMemoryPromptRepository()
	}

	// Collaborators.
	calendarSource := calendar.NewCachingSource(icsfeed.NewSource(cfg.ICSURL))
	validator := ldapdir.NewValidator(cfg.LDAPServer, cfg.LDAPSearchBase)

	var gen generator.Generator
	if cfg.OpenAIAPIKey != "" {
		gen = openai.NewClient(cfg.OpenAIAPIKey)
		log.Info("OpenAI message generator initialized.")
	} else {
		log.Warn("No OpenAI API key provided, using fallback messages only.")
	}

	var chatClient chat.Client
	if cfg.WebhookURL != "" {
		chatClient = slack.NewWebhookClient(cfg.WebhookURL, cfg.SlackEnabled, log)
		log.Info("Slack webhook delivery transport initialized.")
	} else {
		bot, err := telebot.NewBot(telebot.Settings{Token: cfg.TelegramToken})
		if err != nil {
			log.Fatalf("FATAL: Could not create Telegram bot: %v", err)
		}
		chatClient = telegram.NewChannelAdapter(bot, cfg.TelegramChatID)
		log.Info("Telegram delivery transport initialized.")
	}

	svc := app.NewBirthdayService(
		calendarSource, validator, gen, chatClient,
		messages, facts, ledger, prompts,
		log,
		app.Options{
			WindowDays:        cfg.WindowDays,
			FactLookbackYears: cfg.FactLookbackYears,
			Location:          cfg.Location,
		},
	)

	ctx := context.Background()
	if err := svc.EnsureDefaultPrompt(ctx); err != nil {
		log.Fatalf("FATAL: Could not seed prompt store: %v", err)
	}

	sched := scheduler.NewBirthdayScheduler(svc, log, cfg.Location, cfg.RefreshInterval, cfg.DeliveryHour, cfg.DeliveryMinute)
	sched.Start()

	api := httpapi.NewServer(svc, sched, log)
	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: api.Router()}
	go func() {
		log.Infof("Dashboard API listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("FATAL: HTTP server failed: %v", err)
		}
	}()

	log.Info("Application setup complete. Scheduler and API are running.")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit // Block until a signal is received

	log.Info("Shutting down application...")
	sched.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP server shutdown error: %v", err)
	}
	log.Info("Application shut down gracefully.")
}
