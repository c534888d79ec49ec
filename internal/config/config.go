package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all configuration shared by the library services, the gateway
// and the background workers. Every command reads only the groups it needs.
type Config struct {
	Server    ServerConfig    `mapstructure:",squash"`
	Database  DatabaseConfig  `mapstructure:",squash"`
	Redis     RedisConfig     `mapstructure:",squash"`
	Logging   LoggingConfig   `mapstructure:",squash"`
	Services  ServicesConfig  `mapstructure:",squash"`
	Breaker   BreakerConfig   `mapstructure:",squash"`
	RateLimit RateLimitConfig `mapstructure:",squash"`
	Gateway   GatewayConfig   `mapstructure:",squash"`
	Events    EventsConfig    `mapstructure:",squash"`
	Scheduler SchedulerConfig `mapstructure:",squash"`
	Members   MembersConfig   `mapstructure:",squash"`
	Health    HealthConfig    `mapstructure:",squash"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"SERVER_PORT"`
	Host         string        `mapstructure:"SERVER_HOST"`
	Env          string        `mapstructure:"ENV"`
	ServiceName  string        `mapstructure:"SERVICE_NAME"`
	ReadTimeout  time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"DATABASE_URL"`
	Host            string        `mapstructure:"DATABASE_HOST"`
	Port            string        `mapstructure:"DATABASE_PORT"`
	Name            string        `mapstructure:"DATABASE_NAME"`
	User            string        `mapstructure:"DATABASE_USER"`
	Password        string        `mapstructure:"DATABASE_PASSWORD"`
	SSLMode         string        `mapstructure:"DATABASE_SSLMODE"`
	MaxOpenConns    int           `mapstructure:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `mapstructure:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `mapstructure:"DATABASE_CONN_MAX_LIFETIME"`
}

type RedisConfig struct {
	Host     string `mapstructure:"REDIS_HOST"`
	Port     string `mapstructure:"REDIS_PORT"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"LOG_LEVEL"`
	Format string `mapstructure:"LOG_FORMAT"`
}

// ServicesConfig holds the base URLs of the peer services.
type ServicesConfig struct {
	BooksURL   string `mapstructure:"BOOKS_SERVICE_URL"`
	MembersURL string `mapstructure:"MEMBERS_SERVICE_URL"`
	LoansURL   string `mapstructure:"LOANS_SERVICE_URL"`
}

type BreakerConfig struct {
	FailureRateThreshold string        `mapstructure:"BREAKER_FAILURE_RATE_THRESHOLD"`
	WindowSize           int           `mapstructure:"BREAKER_WINDOW_SIZE"`
	MinimumCalls         int           `mapstructure:"BREAKER_MINIMUM_CALLS"`
	OpenTimeout          time.Duration `mapstructure:"BREAKER_OPEN_TIMEOUT"`
	HalfOpenCalls        int           `mapstructure:"BREAKER_HALF_OPEN_CALLS"`
	CallTimeout          time.Duration `mapstructure:"BREAKER_CALL_TIMEOUT"`
}

type RateLimitConfig struct {
	ReplenishRate   float64 `mapstructure:"RATE_LIMIT_REPLENISH_RATE"`
	BurstCapacity   int     `mapstructure:"RATE_LIMIT_BURST_CAPACITY"`
	RequestedTokens int     `mapstructure:"RATE_LIMIT_REQUESTED_TOKENS"`
	KeyHeader       string  `mapstructure:"RATE_LIMIT_KEY_HEADER"`
	Backend         string  `mapstructure:"RATE_LIMIT_BACKEND"`
}

type GatewayConfig struct {
	RoutesFile string `mapstructure:"GATEWAY_ROUTES_FILE"`
}

type EventsConfig struct {
	StreamMaxLen  int64         `mapstructure:"EVENTS_STREAM_MAXLEN"`
	BufferSize    int           `mapstructure:"EVENTS_BUFFER_SIZE"`
	ConsumerGroup string        `mapstructure:"EVENTS_CONSUMER_GROUP"`
	ConsumerName  string        `mapstructure:"EVENTS_CONSUMER_NAME"`
	BlockTime     time.Duration `mapstructure:"EVENTS_BLOCK_TIME"`
}

type SchedulerConfig struct {
	ReminderSpec string `mapstructure:"SCHEDULER_REMINDER_SPEC"`
	Timezone     string `mapstructure:"SCHEDULER_TIMEZONE"`
}

type MembersConfig struct {
	CardNumberMaxAttempts int `mapstructure:"CARD_NUMBER_MAX_ATTEMPTS"`
}

type HealthConfig struct {
	Timeout string `mapstructure:"HEALTH_CHECK_TIMEOUT"`
}

// Load reads configuration from environment variables and an optional .env file
func Load() (*Config, error) {
	// Don't fail if .env file doesn't exist
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("ENV", "development")
	v.SetDefault("SERVICE_NAME", "jaryqlibrary")
	v.SetDefault("SERVER_READ_TIMEOUT", "15s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "15s")

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", "5432")
	v.SetDefault("DATABASE_NAME", "jaryqlibrary")
	v.SetDefault("DATABASE_USER", "postgres")
	v.SetDefault("DATABASE_PASSWORD", "postgres")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 25)
	v.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", "5m")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("BOOKS_SERVICE_URL", "http://localhost:8081")
	v.SetDefault("MEMBERS_SERVICE_URL", "http://localhost:8082")
	v.SetDefault("LOANS_SERVICE_URL", "http://localhost:8083")

	v.SetDefault("BREAKER_FAILURE_RATE_THRESHOLD", "0.5")
	v.SetDefault("BREAKER_WINDOW_SIZE", 10)
	v.SetDefault("BREAKER_MINIMUM_CALLS", 5)
	v.SetDefault("BREAKER_OPEN_TIMEOUT", "10s")
	v.SetDefault("BREAKER_HALF_OPEN_CALLS", 2)
	v.SetDefault("BREAKER_CALL_TIMEOUT", "2s")

	v.SetDefault("RATE_LIMIT_REPLENISH_RATE", 1)
	v.SetDefault("RATE_LIMIT_BURST_CAPACITY", 1)
	v.SetDefault("RATE_LIMIT_REQUESTED_TOKENS", 1)
	v.SetDefault("RATE_LIMIT_KEY_HEADER", "user")
	v.SetDefault("RATE_LIMIT_BACKEND", "redis")

	v.SetDefault("GATEWAY_ROUTES_FILE", "")

	v.SetDefault("EVENTS_STREAM_MAXLEN", 10000)
	v.SetDefault("EVENTS_BUFFER_SIZE", 256)
	v.SetDefault("EVENTS_CONSUMER_GROUP", "jaryqlibrary")
	v.SetDefault("EVENTS_CONSUMER_NAME", "worker-1")
	v.SetDefault("EVENTS_BLOCK_TIME", "5s")

	v.SetDefault("SCHEDULER_REMINDER_SPEC", "0 0 9 * * *")
	v.SetDefault("SCHEDULER_TIMEZONE", "Asia/Almaty")

	v.SetDefault("CARD_NUMBER_MAX_ATTEMPTS", 10)

	v.SetDefault("HEALTH_CHECK_TIMEOUT", "5s")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	if c.Database.URL == "" && c.Database.Host == "" {
		return fmt.Errorf("DATABASE_URL or DATABASE_HOST is required")
	}

	// Validate breaker threshold
	rate, err := decimal.NewFromString(c.Breaker.FailureRateThreshold)
	if err != nil {
		return fmt.Errorf("BREAKER_FAILURE_RATE_THRESHOLD must be a valid decimal: %w", err)
	}
	if rate.LessThanOrEqual(decimal.Zero) || rate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("BREAKER_FAILURE_RATE_THRESHOLD must be in (0, 1]")
	}

	if c.Breaker.WindowSize <= 0 {
		return fmt.Errorf("BREAKER_WINDOW_SIZE must be greater than 0")
	}

	if c.Breaker.MinimumCalls <= 0 || c.Breaker.MinimumCalls > c.Breaker.WindowSize {
		return fmt.Errorf("BREAKER_MINIMUM_CALLS must be between 1 and BREAKER_WINDOW_SIZE")
	}

	if c.Breaker.HalfOpenCalls <= 0 {
		return fmt.Errorf("BREAKER_HALF_OPEN_CALLS must be greater than 0")
	}

	if c.RateLimit.ReplenishRate <= 0 {
		return fmt.Errorf("RATE_LIMIT_REPLENISH_RATE must be greater than 0")
	}

	if c.RateLimit.BurstCapacity <= 0 || c.RateLimit.RequestedTokens <= 0 {
		return fmt.Errorf("RATE_LIMIT_BURST_CAPACITY and RATE_LIMIT_REQUESTED_TOKENS must be greater than 0")
	}

	if c.RateLimit.Backend != "redis" && c.RateLimit.Backend != "memory" {
		return fmt.Errorf("RATE_LIMIT_BACKEND must be redis or memory")
	}

	if c.Events.BufferSize <= 0 {
		return fmt.Errorf("EVENTS_BUFFER_SIZE must be greater than 0")
	}

	if c.Members.CardNumberMaxAttempts <= 0 {
		return fmt.Errorf("CARD_NUMBER_MAX_ATTEMPTS must be greater than 0")
	}

	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("SCHEDULER_TIMEZONE must be a valid location: %w", err)
	}

	// Validate health check timeout
	if _, err := time.ParseDuration(c.Health.Timeout); err != nil {
		return fmt.Errorf("HEALTH_CHECK_TIMEOUT must be a valid duration: %w", err)
	}

	return nil
}

// DSN returns the Postgres connection string, preferring DATABASE_URL when set
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + d.Port,
		Path:     d.Name,
		RawQuery: "sslmode=" + d.SSLMode,
	}
	return u.String()
}

// Addr returns the host:port pair of the Redis server
func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development" || c.Server.Env == "dev"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production" || c.Server.Env == "prod"
}

// GetFailureRateThreshold returns the breaker failure-rate threshold as a fraction
func (c *Config) GetFailureRateThreshold() float64 {
	rate, _ := decimal.NewFromString(c.Breaker.FailureRateThreshold)
	f, _ := rate.Float64()
	return f
}

// GetSchedulerLocation returns the location used to decide what "today" is
func (c *Config) GetSchedulerLocation() *time.Location {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GetHealthTimeout returns the health check timeout as duration
func (c *Config) GetHealthTimeout() time.Duration {
	timeout, _ := time.ParseDuration(c.Health.Timeout)
	return timeout
}
