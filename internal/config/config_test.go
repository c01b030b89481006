package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "MONGO_DB", "JWT_SECRET", "JWT_EXPIRY", "MQTT_BROKER", "SWEEP_INTERVAL", "SWEEP_WORKERS", "RULE_CATALOG"} {
		t.Setenv(key, "")
	}

	cfg := Load(filepath.Join(t.TempDir(), "missing.env"))

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "fleet_maintenance", cfg.MongoDB)
	assert.Empty(t, cfg.JWTSecret)
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiry)
	assert.Empty(t, cfg.MQTTBroker)
	assert.Equal(t, 24*time.Hour, cfg.SweepInterval)
	assert.Equal(t, 4, cfg.SweepWorkers)
	assert.Equal(t, "rules/catalog.yaml", cfg.RuleCatalog)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_EXPIRY", "2h")
	t.Setenv("SWEEP_INTERVAL", "15m")
	t.Setenv("SWEEP_WORKERS", "16")
	t.Setenv("MQTT_BROKER", "tcp://localhost:1883")

	cfg := Load(filepath.Join(t.TempDir(), "missing.env"))

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, 2*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, 15*time.Minute, cfg.SweepInterval)
	assert.Equal(t, 16, cfg.SweepWorkers)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTTBroker)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("SWEEP_INTERVAL", "daily")
	t.Setenv("SWEEP_WORKERS", "-2")
	t.Setenv("JWT_EXPIRY", "0s")

	cfg := Load(filepath.Join(t.TempDir(), "missing.env"))

	assert.Equal(t, 24*time.Hour, cfg.SweepInterval)
	assert.Equal(t, 4, cfg.SweepWorkers)
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiry)
}

func TestLoad_DotEnvFile(t *testing.T) {
	// godotenv never overrides a variable that is already set
	t.Setenv("MONGO_DB", "")
	require.NoError(t, os.Unsetenv("MONGO_DB"))
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("MONGO_DB=garage\n"), 0o600))

	cfg := Load(path)

	assert.Equal(t, "garage", cfg.MongoDB)
}

func TestNewLogger(t *testing.T) {
	logger := Config{LogLevel: "debug", LogFormat: "json"}.NewLogger()
	assert.Equal(t, log.DebugLevel, logger.GetLevel())
	assert.IsType(t, &log.JSONFormatter{}, logger.Formatter)

	logger = Config{LogLevel: "chatty"}.NewLogger()
	assert.Equal(t, log.InfoLevel, logger.GetLevel())
	assert.IsType(t, &log.TextFormatter{}, logger.Formatter)
}
