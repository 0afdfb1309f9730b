package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	ICSURL         string
	WebhookURL     string
	TelegramToken  string
	TelegramChatID int64
	LDAPServer     string
	LDAPSearchBase string
	OpenAIAPIKey   string
	DatabaseURL    string // empty means in-memory stores

	WindowDays        int
	RefreshInterval   time.Duration
	DeliveryHour      int
	DeliveryMinute    int
	Location          *time.Location
	FactLookbackYears int

	ListenAddr   string
	LogLevel     string
	Environment  string
	SlackEnabled bool
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}

	cfg.ICSURL = os.Getenv("ICS_URL")
	if cfg.ICSURL == "" {
		return nil, fmt.Errorf("ICS_URL is not set")
	}

	cfg.LDAPServer = os.Getenv("LDAP_SERVER")
	if cfg.LDAPServer == "" {
		return nil, fmt.Errorf("LDAP_SERVER is not set")
	}

	cfg.LDAPSearchBase = os.Getenv("LDAP_SEARCH_BASE")
	if cfg.LDAPSearchBase == "" {
		return nil, fmt.Errorf("LDAP_SEARCH_BASE is not set")
	}

	cfg.WebhookURL = os.Getenv("WEBHOOK_URL")
	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if chatIDStr := os.Getenv("TELEGRAM_CHAT_ID"); chatIDStr != "" {
		chatID, err := strconv.ParseInt(chatIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = chatID
	}
	if cfg.WebhookURL == "" && (cfg.TelegramToken == "" || cfg.TelegramChatID == 0) {
		return nil, fmt.Errorf("no delivery transport configured: set WEBHOOK_URL or TELEGRAM_TOKEN and TELEGRAM_CHAT_ID")
	}

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	var err error
	cfg.WindowDays, err = intEnv("BIRTHDAY_WINDOW_DAYS", 21)
	if err != nil {
		return nil, err
	}
	if cfg.WindowDays < 1 {
		return nil, fmt.Errorf("BIRTHDAY_WINDOW_DAYS must be at least 1")
	}

	refreshStr := os.Getenv("REFRESH_INTERVAL")
	if refreshStr == "" {
		refreshStr = "6h"
	}
	cfg.RefreshInterval, err = time.ParseDuration(refreshStr)
	if err != nil {
		return nil, fmt.Errorf("invalid REFRESH_INTERVAL: %w", err)
	}

	deliveryStr := os.Getenv("DELIVERY_TIME")
	if deliveryStr == "" {
		deliveryStr = "07:00"
	}
	cfg.DeliveryHour, cfg.DeliveryMinute, err = parseClock(deliveryStr)
	if err != nil {
		return nil, fmt.Errorf("invalid DELIVERY_TIME: %w", err)
	}

	tzName := os.Getenv("TIMEZONE")
	if tzName == "" {
		tzName = "Europe/Berlin"
	}
	cfg.Location, err = time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tzName, err)
	}

	cfg.FactLookbackYears, err = intEnv("FACT_LOOKBACK_YEARS", 5)
	if err != nil {
		return nil, err
	}
	if cfg.FactLookbackYears < 1 {
		return nil, fmt.Errorf("FACT_LOOKBACK_YEARS must be at least 1")
	}

	cfg.ListenAddr = os.Getenv("LISTEN_ADDR")
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	cfg.SlackEnabled = strings.ToLower(os.Getenv("SLACK_NOTIFICATIONS_ENABLED")) == "true"

	return cfg, nil
}

func intEnv(name string, def int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return v, nil
}

// parseClock parses "HH:MM" into hour and minute.
func parseClock(s string) (int, int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("bad hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("bad minute in %q", s)
	}
	return hour, minute, nil
}
