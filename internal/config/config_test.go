package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setEnv sets an environment variable for the duration of a test.
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old, existed := os.LookupEnv(key)
	require.NoError(t, os.Setenv(key, value))
	t.Cleanup(func() {
		if existed {
			os.Setenv(key, old)
		} else {
			os.Unsetenv(key)
		}
	})
}

// clearEnv clears an environment variable for the duration of a test.
func clearEnv(t *testing.T, key string) {
	t.Helper()
	old, existed := os.LookupEnv(key)
	os.Unsetenv(key)
	t.Cleanup(func() {
		if existed {
			os.Setenv(key, old)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	// Clear all relevant env vars to test defaults
	envVars := []string{
		"SERVER_HOST", "SERVER_PORT", "SERVER_READ_TIMEOUT",
		"SERVER_WRITE_TIMEOUT", "SERVER_SHUTDOWN_TIMEOUT",
		"APP_ENV", "LOG_LEVEL",
		"CONTACT_MAX_ATTEMPTS", "CONTACT_WINDOW",
		"JOB_APPLICATION_MAX_ATTEMPTS", "JOB_APPLICATION_WINDOW",
		"SIMULATOR_TOTAL_DURATION", "SIMULATOR_TICK_INTERVAL",
		"RATE_LIMIT_ENABLED", "REDIS_HOST",
	}
	for _, v := range envVars {
		clearEnv(t, v)
	}

	cfg, err := Load()
	require.NoError(t, err)

	// Server defaults
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "*", cfg.Server.AllowedOrigin)

	// Form limit defaults
	assert.Equal(t, FormLimit{Key: "newsletter", MaxAttempts: 3, Window: time.Minute}, cfg.Forms.Newsletter)
	assert.Equal(t, FormLimit{Key: "contact_form", MaxAttempts: 3, Window: time.Minute}, cfg.Forms.Contact)
	assert.Equal(t, FormLimit{Key: "job_application", MaxAttempts: 2, Window: 2 * time.Minute}, cfg.Forms.JobApplication)
	assert.Equal(t, FormLimit{Key: "feature_request", MaxAttempts: 5, Window: time.Minute}, cfg.Forms.FeatureRequest)

	// Simulator defaults
	assert.Equal(t, 18*time.Second, cfg.Simulator.TotalDuration)
	assert.Equal(t, 100*time.Millisecond, cfg.Simulator.TickInterval)
	assert.Equal(t, "withaibuild.com", cfg.Simulator.BaseDomain)

	// Guard defaults
	assert.True(t, cfg.Rate.Enabled)
	assert.False(t, cfg.RedisEnabled())

	// App defaults
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "info", cfg.App.LogLevel)
}

func TestLoad_ServerConfig(t *testing.T) {
	setEnv(t, "SERVER_HOST", "127.0.0.1")
	setEnv(t, "SERVER_PORT", "3000")
	setEnv(t, "SERVER_READ_TIMEOUT", "10s")
	setEnv(t, "SERVER_WRITE_TIMEOUT", "20s")
	setEnv(t, "SERVER_SHUTDOWN_TIMEOUT", "60s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 20*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.ShutdownTimeout)
}

func TestLoad_AppConfig(t *testing.T) {
	setEnv(t, "APP_ENV", "production")
	setEnv(t, "LOG_LEVEL", "error")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.App.Env)
	assert.Equal(t, "error", cfg.App.LogLevel)
}

func TestLoad_InvalidPort(t *testing.T) {
	setEnv(t, "SERVER_PORT", "not-a-number")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "SERVER_PORT")
}

func TestLoad_InvalidTimeout(t *testing.T) {
	setEnv(t, "SERVER_READ_TIMEOUT", "invalid")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "SERVER_READ_TIMEOUT")
}

func TestConfig_Address(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
	}

	assert.Equal(t, "localhost:8080", cfg.Server.Address())
}

func TestConfig_IsDevelopment(t *testing.T) {
	tests := []struct {
		name     string
		env      string
		expected bool
	}{
		{"development", "development", true},
		{"dev", "dev", true},
		{"production", "production", false},
		{"staging", "staging", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{App: AppConfig{Env: tt.env}}
			assert.Equal(t, tt.expected, cfg.App.IsDevelopment())
		})
	}
}

func TestConfig_IsProduction(t *testing.T) {
	tests := []struct {
		name     string
		env      string
		expected bool
	}{
		{"production", "production", true},
		{"prod", "prod", true},
		{"development", "development", false},
		{"staging", "staging", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{App: AppConfig{Env: tt.env}}
			assert.Equal(t, tt.expected, cfg.App.IsProduction())
		})
	}
}

func TestLoad_FormLimitOverrides(t *testing.T) {
	setEnv(t, "CONTACT_MAX_ATTEMPTS", "10")
	setEnv(t, "CONTACT_WINDOW", "5m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "contact_form", cfg.Forms.Contact.Key)
	assert.Equal(t, 10, cfg.Forms.Contact.MaxAttempts)
	assert.Equal(t, 5*time.Minute, cfg.Forms.Contact.Window)
}

func TestLoad_InvalidFormLimit(t *testing.T) {
	t.Run("non-numeric attempts", func(t *testing.T) {
		setEnv(t, "JOB_APPLICATION_MAX_ATTEMPTS", "many")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "JOB_APPLICATION_MAX_ATTEMPTS")
	})

	t.Run("zero attempts rejected", func(t *testing.T) {
		setEnv(t, "JOB_APPLICATION_MAX_ATTEMPTS", "0")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "job_application")
	})
}

func TestLoad_RecordTTL(t *testing.T) {
	t.Run("shorter than a window rejected", func(t *testing.T) {
		setEnv(t, "FORMS_RECORD_TTL", "30s")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "job_application")
	})

	t.Run("checked against overridden windows", func(t *testing.T) {
		setEnv(t, "FORMS_RECORD_TTL", "10m")
		setEnv(t, "NEWSLETTER_WINDOW", "1h")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "newsletter")
	})

	t.Run("equal to the longest window accepted", func(t *testing.T) {
		setEnv(t, "FORMS_RECORD_TTL", "2m")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 2*time.Minute, cfg.Forms.RecordTTL)
	})

	t.Run("zero keeps records forever", func(t *testing.T) {
		setEnv(t, "FORMS_RECORD_TTL", "0s")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Zero(t, cfg.Forms.RecordTTL)
	})

	t.Run("negative rejected", func(t *testing.T) {
		setEnv(t, "FORMS_RECORD_TTL", "-1m")

		_, err := Load()
		require.Error(t, err)
	})
}

func TestLoad_InvalidSimulatorTiming(t *testing.T) {
	setEnv(t, "SIMULATOR_TOTAL_DURATION", "50ms")
	setEnv(t, "SIMULATOR_TICK_INTERVAL", "100ms")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "simulator")
}

func TestLoad_InvalidBool(t *testing.T) {
	setEnv(t, "RATE_LIMIT_ENABLED", "sometimes")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RATE_LIMIT_ENABLED")
}

func TestConfig_TelegramEnabled(t *testing.T) {
	cfg := &Config{}
	assert.False(t, cfg.TelegramEnabled())

	cfg.Notify.TelegramToken = "token"
	assert.False(t, cfg.TelegramEnabled())

	cfg.Notify.TelegramChatID = "42"
	assert.True(t, cfg.TelegramEnabled())
}
