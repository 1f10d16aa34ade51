package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Remote    RemoteConfig
	Webhook   WebhookConfig
	Secret    SecretConfig
	Backlog   BacklogConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	MaxBodySize    int64
	TrustedProxies []string
	// AdminToken guards the catalog and credential endpoints. Webhooks
	// authenticate by signature instead.
	AdminToken string
}

// RemoteConfig holds storefront admin API settings
type RemoteConfig struct {
	APIVersion string
	// Scheme is https except for local storefront emulators
	Scheme               string
	Timeout              time.Duration // per request
	MaxRetries           int           // transient failures only
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	MaxResponseBytes     int64

	OptionPollAttempts int
	OptionPollInterval time.Duration
	InitialQuantity    int

	// RatePerSecond and RateBurst bound admin API requests per store
	RatePerSecond  float64
	RateBurst      int
	BulkBatchLimit int

	// Process-wide default credential for single-store deployments
	DefaultShopDomain  string
	DefaultAccessToken string
	DefaultAPISecret   string
}

// WebhookConfig holds inbound webhook settings
type WebhookConfig struct {
	MaxBodyBytes  int64
	DedupeEnabled bool
	DedupeTTL     time.Duration
}

// SecretConfig holds the key used to encrypt tenant credentials at rest
type SecretConfig struct {
	EncryptionKey string
	// CredentialCacheTTL bounds how long resolved credentials are reused.
	// Negative disables the cache.
	CredentialCacheTTL time.Duration
}

// BacklogConfig holds the periodic sweep that syncs products never
// published to the storefront
type BacklogConfig struct {
	Enabled       bool
	Interval      time.Duration
	OwnerLimit    int // owners submitted per sweep
	Workers       int
	JobTimeout    time.Duration
	RetryAttempts int // negative disables retries
	RetryDelay    time.Duration
	TenantDomain  string // empty selects the base tenant
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces and metrics
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	MetricsInterval   time.Duration

	ExportLogs           bool          // Send application logs to the collector too
	Profiling            bool          // Continuous profiling via Pyroscope
	ProfilingServer      string        // Pyroscope server address
	ProfileTypes         []string      // e.g. cpu, alloc_space, goroutines
	DBTracing            bool          // Record a span per repository query
	DBLogFullSQL         bool          // Keep bound variables in query spans
	DBSlowQueryThreshold time.Duration // Queries slower than this are flagged on their span
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with MKT_ prefix (e.g., MKT_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("MKT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			MaxBodySize:    v.GetInt64("http.max_body_size"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
			AdminToken:     v.GetString("http.admin_token"),
		},
		Remote: RemoteConfig{
			APIVersion:           v.GetString("remote.api_version"),
			Scheme:               v.GetString("remote.scheme"),
			Timeout:              v.GetDuration("remote.timeout"),
			MaxRetries:           v.GetInt("remote.max_retries"),
			RetryInitialInterval: v.GetDuration("remote.retry_initial_interval"),
			RetryMaxInterval:     v.GetDuration("remote.retry_max_interval"),
			MaxResponseBytes:     v.GetInt64("remote.max_response_bytes"),
			OptionPollAttempts:   v.GetInt("remote.option_poll_attempts"),
			OptionPollInterval:   v.GetDuration("remote.option_poll_interval"),
			InitialQuantity:      v.GetInt("remote.initial_quantity"),
			RatePerSecond:        v.GetFloat64("remote.rate_per_second"),
			RateBurst:            v.GetInt("remote.rate_burst"),
			BulkBatchLimit:       v.GetInt("remote.bulk_batch_limit"),
			DefaultShopDomain:    v.GetString("remote.default_shop_domain"),
			DefaultAccessToken:   v.GetString("remote.default_access_token"),
			DefaultAPISecret:     v.GetString("remote.default_api_secret"),
		},
		Webhook: WebhookConfig{
			MaxBodyBytes:  v.GetInt64("webhook.max_body_bytes"),
			DedupeEnabled: v.GetBool("webhook.dedupe_enabled"),
			DedupeTTL:     v.GetDuration("webhook.dedupe_ttl"),
		},
		Secret: SecretConfig{
			EncryptionKey:      v.GetString("secret.encryption_key"),
			CredentialCacheTTL: v.GetDuration("secret.credential_cache_ttl"),
		},
		Backlog: BacklogConfig{
			Enabled:       v.GetBool("backlog.enabled"),
			Interval:      v.GetDuration("backlog.interval"),
			OwnerLimit:    v.GetInt("backlog.owner_limit"),
			Workers:       v.GetInt("backlog.workers"),
			JobTimeout:    v.GetDuration("backlog.job_timeout"),
			RetryAttempts: v.GetInt("backlog.retry_attempts"),
			RetryDelay:    v.GetDuration("backlog.retry_delay"),
			TenantDomain:  v.GetString("backlog.tenant_domain"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),

			ExportLogs:           v.GetBool("telemetry.export_logs"),
			Profiling:            v.GetBool("telemetry.profiling"),
			ProfilingServer:      v.GetString("telemetry.profiling_server"),
			ProfileTypes:         v.GetStringSlice("telemetry.profile_types"),
			DBTracing:            v.GetBool("telemetry.db_tracing"),
			DBLogFullSQL:         v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThreshold: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "marketplace-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "marketplace"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		// Long enough for a full product sync behind one request
		cfg.HTTP.WriteTimeout = 2 * time.Minute
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}

	if cfg.Secret.CredentialCacheTTL == 0 {
		cfg.Secret.CredentialCacheTTL = time.Minute
	}

	if cfg.Remote.APIVersion == "" {
		cfg.Remote.APIVersion = "2025-01"
	}
	if cfg.Remote.Scheme == "" {
		cfg.Remote.Scheme = "https"
	}
	if cfg.Remote.Timeout == 0 {
		cfg.Remote.Timeout = 15 * time.Second
	}
	if cfg.Remote.MaxRetries == 0 {
		cfg.Remote.MaxRetries = 3
	}
	if cfg.Remote.RetryInitialInterval == 0 {
		cfg.Remote.RetryInitialInterval = 500 * time.Millisecond
	}
	if cfg.Remote.RetryMaxInterval == 0 {
		cfg.Remote.RetryMaxInterval = 5 * time.Second
	}
	if cfg.Remote.MaxResponseBytes == 0 {
		cfg.Remote.MaxResponseBytes = 4 << 20 // 4MB
	}
	if cfg.Remote.OptionPollAttempts == 0 {
		cfg.Remote.OptionPollAttempts = 6
	}
	if cfg.Remote.OptionPollInterval == 0 {
		cfg.Remote.OptionPollInterval = 500 * time.Millisecond
	}
	if cfg.Remote.InitialQuantity == 0 {
		cfg.Remote.InitialQuantity = 1
	}
	if cfg.Remote.RatePerSecond == 0 {
		cfg.Remote.RatePerSecond = 2
	}
	if cfg.Remote.RateBurst == 0 {
		cfg.Remote.RateBurst = 4
	}
	if cfg.Remote.BulkBatchLimit == 0 {
		cfg.Remote.BulkBatchLimit = 200
	}

	if cfg.Webhook.MaxBodyBytes == 0 {
		cfg.Webhook.MaxBodyBytes = 64 << 10 // 64KB
	}
	if cfg.Webhook.DedupeTTL == 0 {
		cfg.Webhook.DedupeTTL = 48 * time.Hour
	}

	if cfg.Backlog.Interval == 0 {
		cfg.Backlog.Interval = 15 * time.Minute
	}
	if cfg.Backlog.OwnerLimit == 0 {
		cfg.Backlog.OwnerLimit = 50
	}
	if cfg.Backlog.Workers == 0 {
		cfg.Backlog.Workers = 2
	}
	if cfg.Backlog.JobTimeout == 0 {
		cfg.Backlog.JobTimeout = 10 * time.Minute
	}
	if cfg.Backlog.RetryAttempts == 0 {
		cfg.Backlog.RetryAttempts = 2
	}
	if cfg.Backlog.RetryDelay == 0 {
		cfg.Backlog.RetryDelay = time.Minute
	}

	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "marketplace-backend"
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 15 * time.Second
	}
	if cfg.Telemetry.DBSlowQueryThreshold == 0 {
		cfg.Telemetry.DBSlowQueryThreshold = 200 * time.Millisecond
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Remote.MaxRetries < 0 {
		return fmt.Errorf("remote.max_retries cannot be negative")
	}
	if c.Remote.Scheme != "https" && c.Remote.Scheme != "http" {
		return fmt.Errorf("remote.scheme must be http or https, got %q", c.Remote.Scheme)
	}
	if c.Remote.RatePerSecond < 0 {
		return fmt.Errorf("remote.rate_per_second cannot be negative")
	}
	if c.Webhook.MaxBodyBytes < 0 {
		return fmt.Errorf("webhook.max_body_bytes cannot be negative")
	}
	if c.Backlog.Enabled && c.Backlog.Interval < time.Minute {
		return fmt.Errorf("backlog.interval must be at least 1m, got %s", c.Backlog.Interval)
	}
	if c.Secret.EncryptionKey != "" && len(c.Secret.EncryptionKey) < 32 {
		return fmt.Errorf("secret.encryption_key must be at least 32 characters")
	}

	if c.App.Env == "production" {
		if c.Secret.EncryptionKey == "" {
			return fmt.Errorf("secret.encryption_key is required in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Remote.Scheme != "https" {
			return fmt.Errorf("remote.scheme must be https in production")
		}
		if len(c.HTTP.AdminToken) < 24 {
			return fmt.Errorf("http.admin_token of at least 24 characters is required in production")
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql cannot be enabled in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// IsProduction reports whether the app runs with production settings
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis host:port address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
