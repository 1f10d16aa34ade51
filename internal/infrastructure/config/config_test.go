package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// saveEnv snapshots the given variables and restores them when the test ends
func saveEnv(t *testing.T, keys ...string) func() {
	t.Helper()
	original := make(map[string]string, len(keys))
	for _, k := range keys {
		original[k] = os.Getenv(k)
	}
	t.Cleanup(func() {
		for k, v := range original {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	})
	return func() {
		for _, k := range keys {
			os.Unsetenv(k)
		}
	}
}

func TestLoad(t *testing.T) {
	clearEnv := saveEnv(t,
		"MKT_APP_NAME",
		"MKT_APP_ENV",
		"MKT_APP_PORT",
		"MKT_DATABASE_HOST",
		"MKT_DATABASE_PORT",
		"MKT_DATABASE_USER",
		"MKT_DATABASE_PASSWORD",
		"MKT_DATABASE_DBNAME",
		"MKT_DATABASE_SSLMODE",
		"MKT_DATABASE_MAX_OPEN_CONNS",
		"MKT_DATABASE_MAX_IDLE_CONNS",
		"MKT_REMOTE_API_VERSION",
		"MKT_REMOTE_SCHEME",
		"MKT_REMOTE_TIMEOUT",
		"MKT_REMOTE_MAX_RETRIES",
		"MKT_REMOTE_RATE_PER_SECOND",
		"MKT_REMOTE_DEFAULT_SHOP_DOMAIN",
		"MKT_WEBHOOK_MAX_BODY_BYTES",
		"MKT_WEBHOOK_DEDUPE_TTL",
		"MKT_SECRET_ENCRYPTION_KEY",
		"MKT_SECRET_CREDENTIAL_CACHE_TTL",
		"MKT_BACKLOG_ENABLED",
		"MKT_BACKLOG_INTERVAL",
		"MKT_BACKLOG_RETRY_ATTEMPTS",
	)

	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv()

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "marketplace-backend", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "marketplace", cfg.Database.DBName)
		assert.Equal(t, "disable", cfg.Database.SSLMode)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)

		assert.Equal(t, "https", cfg.Remote.Scheme)
		assert.Equal(t, 15*time.Second, cfg.Remote.Timeout)
		assert.Equal(t, 3, cfg.Remote.MaxRetries)
		assert.Equal(t, 6, cfg.Remote.OptionPollAttempts)
		assert.Equal(t, 500*time.Millisecond, cfg.Remote.OptionPollInterval)
		assert.Equal(t, 1, cfg.Remote.InitialQuantity)
		assert.Equal(t, float64(2), cfg.Remote.RatePerSecond)
		assert.Equal(t, 4, cfg.Remote.RateBurst)
		assert.Equal(t, 200, cfg.Remote.BulkBatchLimit)
		assert.Equal(t, int64(64<<10), cfg.Webhook.MaxBodyBytes)
		assert.Equal(t, 48*time.Hour, cfg.Webhook.DedupeTTL)
		assert.Equal(t, time.Minute, cfg.Secret.CredentialCacheTTL)
		assert.Equal(t, 200*time.Millisecond, cfg.Telemetry.DBSlowQueryThreshold)
		assert.False(t, cfg.Telemetry.DBTracing)
		assert.False(t, cfg.Backlog.Enabled)
		assert.Equal(t, 15*time.Minute, cfg.Backlog.Interval)
		assert.Equal(t, 50, cfg.Backlog.OwnerLimit)
		assert.Equal(t, 2, cfg.Backlog.Workers)
		assert.Equal(t, 2, cfg.Backlog.RetryAttempts)
		assert.False(t, cfg.IsProduction())
	})

	t.Run("loads values from environment variables with MKT prefix", func(t *testing.T) {
		clearEnv()
		os.Setenv("MKT_APP_NAME", "test-app")
		os.Setenv("MKT_APP_ENV", "testing")
		os.Setenv("MKT_APP_PORT", "9000")
		os.Setenv("MKT_DATABASE_HOST", "testdb.local")
		os.Setenv("MKT_DATABASE_PORT", "5433")
		os.Setenv("MKT_DATABASE_PASSWORD", "testpass")
		os.Setenv("MKT_DATABASE_SSLMODE", "require")
		os.Setenv("MKT_REMOTE_API_VERSION", "2024-10")
		os.Setenv("MKT_REMOTE_SCHEME", "http")
		os.Setenv("MKT_REMOTE_TIMEOUT", "3s")
		os.Setenv("MKT_REMOTE_RATE_PER_SECOND", "0.5")
		os.Setenv("MKT_REMOTE_DEFAULT_SHOP_DOMAIN", "shop.example.com")
		os.Setenv("MKT_WEBHOOK_MAX_BODY_BYTES", "1024")
		os.Setenv("MKT_WEBHOOK_DEDUPE_TTL", "1h")
		os.Setenv("MKT_SECRET_CREDENTIAL_CACHE_TTL", "-1s")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "testing", cfg.App.Env)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, "testpass", cfg.Database.Password)
		assert.Equal(t, "require", cfg.Database.SSLMode)
		assert.Equal(t, "2024-10", cfg.Remote.APIVersion)
		assert.Equal(t, "http", cfg.Remote.Scheme)
		assert.Equal(t, 3*time.Second, cfg.Remote.Timeout)
		assert.Equal(t, 0.5, cfg.Remote.RatePerSecond)
		assert.Equal(t, "shop.example.com", cfg.Remote.DefaultShopDomain)
		assert.Equal(t, int64(1024), cfg.Webhook.MaxBodyBytes)
		assert.Equal(t, time.Hour, cfg.Webhook.DedupeTTL)
		assert.Equal(t, -time.Second, cfg.Secret.CredentialCacheTTL)
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		clearEnv()
		os.Setenv("MKT_DATABASE_MAX_OPEN_CONNS", "10")
		os.Setenv("MKT_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_idle_conns")
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("validates MaxIdleConns cannot be negative", func(t *testing.T) {
		clearEnv()
		os.Setenv("MKT_DATABASE_MAX_IDLE_CONNS", "-1")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_idle_conns cannot be negative")
	})

	t.Run("rejects unknown remote scheme", func(t *testing.T) {
		clearEnv()
		os.Setenv("MKT_REMOTE_SCHEME", "ftp")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "remote.scheme")
	})

	t.Run("rejects negative retry count", func(t *testing.T) {
		clearEnv()
		os.Setenv("MKT_REMOTE_MAX_RETRIES", "-2")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "remote.max_retries cannot be negative")
	})

	t.Run("loads backlog sweep settings", func(t *testing.T) {
		clearEnv()
		os.Setenv("MKT_BACKLOG_ENABLED", "true")
		os.Setenv("MKT_BACKLOG_INTERVAL", "5m")
		os.Setenv("MKT_BACKLOG_RETRY_ATTEMPTS", "-1")

		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, cfg.Backlog.Enabled)
		assert.Equal(t, 5*time.Minute, cfg.Backlog.Interval)
		assert.Equal(t, -1, cfg.Backlog.RetryAttempts)
	})

	t.Run("rejects a backlog interval under a minute", func(t *testing.T) {
		clearEnv()
		os.Setenv("MKT_BACKLOG_ENABLED", "true")
		os.Setenv("MKT_BACKLOG_INTERVAL", "10s")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "backlog.interval")
	})

	t.Run("rejects short encryption key", func(t *testing.T) {
		clearEnv()
		os.Setenv("MKT_SECRET_ENCRYPTION_KEY", "too-short")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least 32 characters")
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	clearEnv := saveEnv(t,
		"MKT_APP_ENV",
		"MKT_SECRET_ENCRYPTION_KEY",
		"MKT_DATABASE_PASSWORD",
		"MKT_DATABASE_SSLMODE",
		"MKT_REMOTE_SCHEME",
		"MKT_HTTP_ADMIN_TOKEN",
		"MKT_TELEMETRY_DB_LOG_FULL_SQL",
	)

	setValidProductionBase := func() {
		os.Setenv("MKT_APP_ENV", "production")
		os.Setenv("MKT_SECRET_ENCRYPTION_KEY", "this-is-a-very-secure-encryption-key-32")
		os.Setenv("MKT_DATABASE_PASSWORD", "secure-password")
		os.Setenv("MKT_DATABASE_SSLMODE", "require")
		os.Setenv("MKT_HTTP_ADMIN_TOKEN", "admin-token-with-enough-entropy")
	}

	t.Run("requires secret.encryption_key in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Unsetenv("MKT_SECRET_ENCRYPTION_KEY")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "secret.encryption_key is required in production")
	})

	t.Run("requires database.password in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Unsetenv("MKT_DATABASE_PASSWORD")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required in production")
	})

	t.Run("requires SSL enabled in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Setenv("MKT_DATABASE_SSLMODE", "disable")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.sslmode cannot be 'disable' in production")
	})

	t.Run("requires https storefront calls in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Setenv("MKT_REMOTE_SCHEME", "http")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "remote.scheme must be https in production")
	})

	t.Run("requires an admin token in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Setenv("MKT_HTTP_ADMIN_TOKEN", "short")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "http.admin_token")
	})

	t.Run("rejects full SQL in query spans in production", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()
		os.Setenv("MKT_TELEMETRY_DB_LOG_FULL_SQL", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "telemetry.db_log_full_sql")
	})

	t.Run("passes validation with valid production config", func(t *testing.T) {
		clearEnv()
		setValidProductionBase()

		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, cfg.IsProduction())
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost:5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		assert.Contains(t, cfg.DSN(), "pass%40word%23123")
	})
}

func TestRedisConfig_Addr(t *testing.T) {
	cfg := RedisConfig{Host: "cache.local", Port: 6380}
	assert.Equal(t, "cache.local:6380", cfg.Addr())
}
