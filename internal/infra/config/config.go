package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization

	"github.com/joho/godotenv"

	"reading_program_bot/internal/domain/program"
)

// Store backends
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken      string
	AdminTelegramID    int64
	StoreBackend       string
	DatabaseURL        string
	RedisURL           string
	LogLevel           string
	Environment        string
	DefaultBookCeiling int
	PhaseStarts        [4]program.MonthDay // in the order of program.Phases
	PhaseOverride      program.ProgramPhase
	CronSpecRollover   string
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
	}

	adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID")
	if adminIDStr == "" {
		return nil, fmt.Errorf("ADMIN_TELEGRAM_ID is not set")
	}
	cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
	}

	cfg.StoreBackend = strings.ToLower(getenv("STORE_BACKEND", BackendPostgres))
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.RedisURL = os.Getenv("REDIS_URL")
	switch cfg.StoreBackend {
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is not set")
		}
	case BackendRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is not set")
		}
	case BackendMemory:
	default:
		return nil, fmt.Errorf("invalid STORE_BACKEND %q", cfg.StoreBackend)
	}

	cfg.LogLevel = strings.ToLower(getenv("LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(getenv("ENVIRONMENT", "development"))

	cfg.DefaultBookCeiling, err = strconv.Atoi(getenv("DEFAULT_BOOK_CEILING", "20"))
	if err != nil || cfg.DefaultBookCeiling < 1 {
		return nil, fmt.Errorf("invalid DEFAULT_BOOK_CEILING %q", os.Getenv("DEFAULT_BOOK_CEILING"))
	}

	phaseVars := [4]struct{ name, def string }{
		{"PHASE_TEACHER_SELECTION_START", "06-01"},
		{"PHASE_ACTIVE_START", "09-01"},
		{"PHASE_VOTING_START", "03-01"},
		{"PHASE_RESULTS_START", "04-15"},
	}
	for i, v := range phaseVars {
		cfg.PhaseStarts[i], err = program.ParseMonthDay(getenv(v.name, v.def))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", v.name, err)
		}
	}
	// Rejects starts that are not strictly ordered.
	if _, err := program.NewCalendar(cfg.PhaseStarts, nil, nil); err != nil {
		return nil, fmt.Errorf("invalid phase calendar: %w", err)
	}

	if s := os.Getenv("PHASE_OVERRIDE"); s != "" {
		cfg.PhaseOverride, err = program.ParsePhase(s)
		if err != nil {
			return nil, fmt.Errorf("invalid PHASE_OVERRIDE: %w", err)
		}
	}

	cfg.CronSpecRollover = getenv("CRON_SPEC_ROLLOVER", "0 6 * * *") // Default: 6:00 AM daily

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
