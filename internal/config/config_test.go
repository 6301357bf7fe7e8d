package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_BOT_TOKEN", "test_token")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_USER", "test_user")
	t.Setenv("DB_PASSWORD", "test_password")
	t.Setenv("DB_NAME", "test_db")
}

func TestLoadConfig(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ADMIN_ID", "")
	t.Setenv("SCHEDULER_INTERVAL", "")
	t.Setenv("REDIS_ENABLED", "")

	cfg, err := Load()

	assert.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, "test_token", cfg.Telegram.BotToken)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "test_user", cfg.Database.User)
	assert.Equal(t, "test_password", cfg.Database.Password)
	assert.Equal(t, "test_db", cfg.Database.Name)

	// Значения по умолчанию
	assert.Equal(t, int64(5908252094), cfg.Admin.ID)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, 10, cfg.Database.MaxConns)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 10*time.Second, cfg.Scheduler.FirstRun)
	assert.Equal(t, 7*24*time.Hour, cfg.Scheduler.Interval)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, 8080, cfg.App.MetricsPort)
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ADMIN_ID", "42")
	t.Setenv("SCHEDULER_INTERVAL", "1h")
	t.Setenv("SCHEDULER_FIRST_RUN", "0s")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_ADDR", "redis:6379")

	cfg, err := Load()

	assert.NoError(t, err)
	assert.Equal(t, int64(42), cfg.Admin.ID)
	assert.Equal(t, time.Hour, cfg.Scheduler.Interval)
	assert.Equal(t, time.Duration(0), cfg.Scheduler.FirstRun)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
}

func TestEnvHelpersFallback(t *testing.T) {
	t.Setenv("BROKEN_INT", "abc")
	t.Setenv("BROKEN_DURATION", "week")

	assert.Equal(t, 7, getEnvIntDefault("BROKEN_INT", 7))
	assert.Equal(t, int64(7), getEnvInt64Default("BROKEN_INT", 7))
	assert.Equal(t, time.Minute, getEnvDurationDefault("BROKEN_DURATION", time.Minute))
	assert.True(t, getEnvBoolDefault("BROKEN_INT", true))
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "test_user",
		Password: "test_password",
		Name:     "test_db",
		SSLMode:  "disable",
	}

	dsn := cfg.GetDSN()
	expected := "host=localhost port=5432 user=test_user password=test_password dbname=test_db sslmode=disable"
	assert.Equal(t, expected, dsn)
}

func TestAppConfigMethods(t *testing.T) {
	cfg := &AppConfig{
		Env:      "development",
		LogLevel: "debug",
	}

	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, zap.DebugLevel, cfg.GetLogLevel().Level())

	cfg.Env = "production"
	cfg.LogLevel = "unknown"
	assert.False(t, cfg.IsDevelopment())
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, zap.InfoLevel, cfg.GetLogLevel().Level())
}

func TestValidateConfig(t *testing.T) {
	// Пустые обязательные поля
	cfg := &Config{}
	err := validateConfig(cfg)
	assert.Error(t, err)

	valid := func() *Config {
		return &Config{
			Telegram: TelegramConfig{BotToken: "test_token"},
			Admin:    AdminConfig{ID: 1},
			Database: DatabaseConfig{
				Host:     "localhost",
				User:     "test_user",
				Password: "test_password",
				Name:     "test_db",
				MaxConns: 5,
			},
			Scheduler: SchedulerConfig{Interval: time.Hour},
		}
	}

	assert.NoError(t, validateConfig(valid()))

	cfg = valid()
	cfg.Admin.ID = 0
	assert.Error(t, validateConfig(cfg))

	cfg = valid()
	cfg.Redis = RedisConfig{Enabled: true}
	assert.Error(t, validateConfig(cfg))

	cfg = valid()
	cfg.Scheduler.Interval = 0
	assert.Error(t, validateConfig(cfg))
}
