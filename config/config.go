// Package config loads server settings from command-line flags, falling
// back to environment variables and then to built-in defaults.
//
// Precedence: flag > environment > default.
//
//	LEAVE_PORT               -port               8080
//	LEAVE_DB_DRIVER          -db-driver          sqlite (memory|sqlite|postgres)
//	LEAVE_DB                 -db                 leave.db
//	DATABASE_URL             -database-url       (required for postgres)
//	LEAVE_POLICY_FILE        -policy             (embedded default policy)
//	LEAVE_ANALYSIS_INTERVAL  -analysis-interval  0 (scheduler off)
//	LEAVE_AS_OF              -as-of              (today)
//	LOG_LEVEL                -log-level          info
//	LOG_FORMAT               -log-format         text
//	CORS_ALLOWED_ORIGINS     -cors-origins       http://localhost:5173,http://localhost:8080
package config

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/warp/leave-engine/calendar"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Port             int
	DBDriver         string
	DBPath           string
	DatabaseURL      string
	PolicyFile       string
	AnalysisInterval time.Duration
	AsOf             string
	LogLevel         string
	LogFormat        string
	AllowedOrigins   []string
	ShutdownTimeout  time.Duration
}

// Load parses args (without the program name) on top of the environment.
func Load(args []string) (Config, error) {
	var (
		cfg     Config
		origins string
	)

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", getEnvInt("LEAVE_PORT", 8080), "HTTP server port")
	fs.StringVar(&cfg.DBDriver, "db-driver", getEnv("LEAVE_DB_DRIVER", DriverSQLite), "storage driver: memory, sqlite or postgres")
	fs.StringVar(&cfg.DBPath, "db", getEnv("LEAVE_DB", "leave.db"), "SQLite database path (\":memory:\" for in-memory)")
	fs.StringVar(&cfg.DatabaseURL, "database-url", getEnv("DATABASE_URL", ""), "PostgreSQL connection string")
	fs.StringVar(&cfg.PolicyFile, "policy", getEnv("LEAVE_POLICY_FILE", ""), "policy JSON file (empty for the built-in policy)")
	fs.DurationVar(&cfg.AnalysisInterval, "analysis-interval", getEnvDuration("LEAVE_ANALYSIS_INTERVAL", 0), "batch analysis interval (0 disables the scheduler)")
	fs.StringVar(&cfg.AsOf, "as-of", getEnv("LEAVE_AS_OF", ""), "evaluate as of this date, YYYY-MM-DD (empty for today)")
	fs.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "log format: text or json")
	fs.StringVar(&origins, "cors-origins", getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:8080"), "comma-separated allowed CORS origins")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", getEnvDuration("LEAVE_SHUTDOWN_TIMEOUT", 30*time.Second), "graceful shutdown timeout")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.AllowedOrigins = splitList(origins)
	return cfg, nil
}

// Validate checks that the settings are usable together.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	switch c.DBDriver {
	case DriverMemory:
	case DriverSQLite:
		if strings.TrimSpace(c.DBPath) == "" {
			return fmt.Errorf("db path is required for the sqlite driver")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown db driver %q", c.DBDriver)
	}
	if c.AnalysisInterval < 0 {
		return fmt.Errorf("analysis interval must not be negative")
	}
	if c.AsOf != "" {
		if _, err := calendar.Parse(c.AsOf); err != nil {
			return fmt.Errorf("as-of: %w", err)
		}
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

// Addr is the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// EvaluationDate returns the pinned as-of date, or the zero Date for today.
func (c Config) EvaluationDate() calendar.Date {
	if c.AsOf == "" {
		return calendar.Date{}
	}
	d, err := calendar.Parse(c.AsOf)
	if err != nil {
		return calendar.Date{}
	}
	return d
}

// NewLogger builds the process logger described by LogLevel and LogFormat.
func (c Config) NewLogger() *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// =============================================================================
// ENVIRONMENT HELPERS
// =============================================================================

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
