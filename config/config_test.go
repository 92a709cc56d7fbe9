package config

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LEAVE_PORT", "")
	t.Setenv("LEAVE_DB_DRIVER", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")

	cfg, err := Load(nil)

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, "leave.db", cfg.DBPath)
	assert.Equal(t, time.Duration(0), cfg.AnalysisInterval)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:8080"}, cfg.AllowedOrigins)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, ":8080", cfg.Addr())
	assert.True(t, cfg.EvaluationDate().IsZero())
}

func TestLoad_EnvironmentThenFlags(t *testing.T) {
	// GIVEN: environment settings
	t.Setenv("LEAVE_PORT", "9090")
	t.Setenv("LEAVE_DB_DRIVER", "memory")
	t.Setenv("LEAVE_ANALYSIS_INTERVAL", "15m")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://hr.example.com , ")

	// WHEN: a flag overrides one of them
	cfg, err := Load([]string{"-port", "7070", "-as-of", "2024-06-01"})

	// THEN
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, DriverMemory, cfg.DBDriver)
	assert.Equal(t, 15*time.Minute, cfg.AnalysisInterval)
	assert.Equal(t, []string{"https://hr.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, "2024-06-01", cfg.EvaluationDate().String())
}

func TestLoad_BadEnvironmentValueFallsBack(t *testing.T) {
	t.Setenv("LEAVE_PORT", "not-a-number")

	cfg, err := Load(nil)

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
}

func TestLoad_UnknownFlag(t *testing.T) {
	_, err := Load([]string{"-nope"})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := Config{Port: 8080, DBDriver: DriverSQLite, DBPath: "leave.db", LogLevel: "info", LogFormat: "text"}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"port", func(c *Config) { c.Port = 0 }, "port"},
		{"driver", func(c *Config) { c.DBDriver = "mysql" }, "unknown db driver"},
		{"sqlite path", func(c *Config) { c.DBPath = " " }, "db path"},
		{"postgres url", func(c *Config) { c.DBDriver = DriverPostgres }, "DATABASE_URL"},
		{"postgres ok", func(c *Config) { c.DBDriver = DriverPostgres; c.DatabaseURL = "postgres://localhost/leave" }, ""},
		{"interval", func(c *Config) { c.AnalysisInterval = -time.Second }, "interval"},
		{"as-of", func(c *Config) { c.AsOf = "01/06/2024" }, "as-of"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log level"},
		{"log format", func(c *Config) { c.LogFormat = "xml" }, "log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewLogger_Level(t *testing.T) {
	cfg := Config{LogLevel: "warn", LogFormat: "json"}
	logger := cfg.NewLogger()
	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelWarn))
}
