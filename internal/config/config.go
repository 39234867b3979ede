package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Session  SessionConfig  `mapstructure:"session"`
	List     ListConfig     `mapstructure:"list"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Database DatabaseConfig `mapstructure:"database"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Log      LogConfig      `mapstructure:"log"`
	Security SecurityConfig `mapstructure:"security"`
	Worker   WorkerConfig   `mapstructure:"worker"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Env             string        `mapstructure:"env"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// UpstreamConfig points at the patient REST API the dashboard fronts.
type UpstreamConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	Timeout          time.Duration `mapstructure:"timeout"`
	BreakerFailures  uint32        `mapstructure:"breaker_failures"`
	BreakerOpenTime  time.Duration `mapstructure:"breaker_open_time"`
	BreakerHalfOpens uint32        `mapstructure:"breaker_half_open_requests"`
}

type AuthConfig struct {
	// Provider is "remote" (upstream /auth endpoints) or "local".
	Provider   string      `mapstructure:"provider"`
	BcryptCost int         `mapstructure:"bcrypt_cost"`
	Users      []LocalUser `mapstructure:"users"`
}

type LocalUser struct {
	ID           string `mapstructure:"id"`
	Username     string `mapstructure:"username"`
	Email        string `mapstructure:"email"`
	PasswordHash string `mapstructure:"password_hash"`
	Role         string `mapstructure:"role"`
	FirstName    string `mapstructure:"first_name"`
	LastName     string `mapstructure:"last_name"`
	Phone        string `mapstructure:"phone"`
	Active       bool   `mapstructure:"active"`
}

type SessionConfig struct {
	// Store is "memory" or "redis".
	Store         string        `mapstructure:"store"`
	Secret        string        `mapstructure:"secret"`
	EncryptionKey string        `mapstructure:"encryption_key"`
	Issuer        string        `mapstructure:"issuer"`
	TTL           time.Duration `mapstructure:"ttl"`
	CookieName    string        `mapstructure:"cookie_name"`
	CookieSecure  bool          `mapstructure:"cookie_secure"`
}

type ListConfig struct {
	PageSize     int           `mapstructure:"page_size"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	IdleTTL      time.Duration `mapstructure:"idle_ttl"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type AuditConfig struct {
	Channel         string        `mapstructure:"channel"`
	RetentionDays   int           `mapstructure:"retention_days"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// WorkerConfig tunes cmd/worker, which persists audit events.
type WorkerConfig struct {
	HealthPort    int           `mapstructure:"health_port"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type SecurityConfig struct {
	AllowedOrigins    []string `mapstructure:"allowed_origins"`
	RequestsPerSecond float64  `mapstructure:"requests_per_second"`
	Burst             int      `mapstructure:"burst"`
}

// envOverrides lists the settings deployments override through MEDITRACK_*
// variables. Zero values leave the file/default value in place.
type envOverrides struct {
	Port            int      `envconfig:"PORT"`
	Env             string   `envconfig:"ENV"`
	UpstreamURL     string   `envconfig:"UPSTREAM_URL"`
	AuthProvider    string   `envconfig:"AUTH_PROVIDER"`
	SessionStore    string   `envconfig:"SESSION_STORE"`
	SessionSecret   string   `envconfig:"SESSION_SECRET"`
	EncryptionKey   string   `envconfig:"SESSION_ENCRYPTION_KEY"`
	RedisURL        string   `envconfig:"REDIS_URL"`
	DBHost          string   `envconfig:"DB_HOST"`
	DBPort          int      `envconfig:"DB_PORT"`
	DBUser          string   `envconfig:"DB_USER"`
	DBPassword      string   `envconfig:"DB_PASSWORD"`
	DBName          string   `envconfig:"DB_NAME"`
	LogLevel        string   `envconfig:"LOG_LEVEL"`
	AllowedOrigins  []string `envconfig:"ALLOWED_ORIGINS"`
	RetentionDays   int      `envconfig:"AUDIT_RETENTION_DAYS"`
	ListPageSize    int      `envconfig:"LIST_PAGE_SIZE"`
	UpstreamTimeout string   `envconfig:"UPSTREAM_TIMEOUT"`
}

const envPrefix = "MEDITRACK"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.env", "development")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("upstream.base_url", "http://localhost:8000/api/v1")
	v.SetDefault("upstream.timeout", 10*time.Second)
	v.SetDefault("upstream.breaker_failures", 5)
	v.SetDefault("upstream.breaker_open_time", 30*time.Second)
	v.SetDefault("upstream.breaker_half_open_requests", 1)

	v.SetDefault("auth.provider", "remote")
	v.SetDefault("auth.bcrypt_cost", 12)

	v.SetDefault("session.store", "memory")
	v.SetDefault("session.issuer", "meditrack")
	v.SetDefault("session.ttl", 30*time.Minute)
	v.SetDefault("session.cookie_name", "meditrack_session")

	v.SetDefault("list.page_size", 10)
	v.SetDefault("list.fetch_timeout", 10*time.Second)
	v.SetDefault("list.idle_ttl", 30*time.Minute)

	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "meditrack")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("audit.channel", "meditrack.audit")
	v.SetDefault("audit.retention_days", 365)
	v.SetDefault("audit.cleanup_interval", 24*time.Hour)

	v.SetDefault("worker.health_port", 8081)
	v.SetDefault("worker.retry_attempts", 3)
	v.SetDefault("worker.retry_delay", time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("security.allowed_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("security.requests_per_second", 50)
	v.SetDefault("security.burst", 100)
}

// LoadConfig reads config.yml from the usual locations (or the file named by
// configFile), applies MEDITRACK_* environment overrides and validates the
// result. A missing config file is not an error.
func LoadConfig(configFile string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yml")
		v.AddConfigPath(".")           // current directory
		v.AddConfigPath("./config")    // config subdirectory
		v.AddConfigPath("/app")        // container root directory
		v.AddConfigPath("/app/config") // container config directory
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return fmt.Errorf("failed to process environment: %w", err)
	}

	setInt(&cfg.Server.Port, env.Port)
	setString(&cfg.Server.Env, env.Env)
	setString(&cfg.Upstream.BaseURL, env.UpstreamURL)
	setString(&cfg.Auth.Provider, env.AuthProvider)
	setString(&cfg.Session.Store, env.SessionStore)
	setString(&cfg.Session.Secret, env.SessionSecret)
	setString(&cfg.Session.EncryptionKey, env.EncryptionKey)
	setString(&cfg.Redis.URL, env.RedisURL)
	setString(&cfg.Database.Host, env.DBHost)
	setInt(&cfg.Database.Port, env.DBPort)
	setString(&cfg.Database.User, env.DBUser)
	setString(&cfg.Database.Password, env.DBPassword)
	setString(&cfg.Database.Name, env.DBName)
	setString(&cfg.Log.Level, env.LogLevel)
	setInt(&cfg.Audit.RetentionDays, env.RetentionDays)
	setInt(&cfg.List.PageSize, env.ListPageSize)
	if len(env.AllowedOrigins) > 0 {
		cfg.Security.AllowedOrigins = env.AllowedOrigins
	}
	if env.UpstreamTimeout != "" {
		d, err := time.ParseDuration(env.UpstreamTimeout)
		if err != nil {
			return fmt.Errorf("invalid %s_UPSTREAM_TIMEOUT: %w", envPrefix, err)
		}
		cfg.Upstream.Timeout = d
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

// Validate checks settings that would otherwise fail at first use.
func (c *Config) Validate() error {
	var problems []string

	if c.Upstream.BaseURL == "" {
		problems = append(problems, "upstream.base_url is required")
	}
	switch c.Auth.Provider {
	case "remote":
	case "local":
		if len(c.Auth.Users) == 0 {
			problems = append(problems, "auth.users is required for the local provider")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown auth.provider %q", c.Auth.Provider))
	}
	switch c.Session.Store {
	case "memory":
	case "redis":
		if c.Redis.URL == "" {
			problems = append(problems, "redis.url is required for the redis session store")
		}
		if c.Session.EncryptionKey == "" {
			problems = append(problems, "session.encryption_key is required for the redis session store")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown session.store %q", c.Session.Store))
	}
	if c.Session.Secret == "" && !c.IsDev() {
		problems = append(problems, "session.secret is required outside development")
	}
	if c.List.PageSize <= 0 {
		problems = append(problems, "list.page_size must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) IsDev() bool {
	return c.Server.Env == "development"
}

// DSN returns the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}
