package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	DB        DatabaseConfig
	App       AppConfig
	Auth      AuthConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Logger    LoggerConfig
}

// DatabaseConfig holds configuration for the database and its connection pool
type DatabaseConfig struct {
	URL             string `mapstructure:"DATABASE_URL" validate:"required"`
	MaxOpenConns    int    `mapstructure:"DB_MAX_OPEN_CONNS" validate:"gt=0"`
	MaxIdleConns    int    `mapstructure:"DB_MAX_IDLE_CONNS" validate:"gte=0"`
	ConnMaxLifetime int    `mapstructure:"DB_CONN_MAX_LIFETIME" validate:"gte=0"`  // seconds
	ConnMaxIdleTime int    `mapstructure:"DB_CONN_MAX_IDLE_TIME" validate:"gte=0"` // seconds
	ConnectTimeout  int    `mapstructure:"DB_CONNECT_TIMEOUT" validate:"gt=0"`     // seconds
	QueryTimeout    int    `mapstructure:"DB_QUERY_TIMEOUT" validate:"gt=0"`       // seconds
	MigrateOnStart  bool   `mapstructure:"DB_MIGRATE_ON_START"`
}

// AppConfig holds configuration for the HTTP server
type AppConfig struct {
	Port                   string `mapstructure:"PORT" validate:"required,numeric"`
	Env                    string `mapstructure:"APP_ENV" validate:"oneof=development production test"`
	ShutdownTimeoutSeconds int    `mapstructure:"SHUTDOWN_TIMEOUT_SECONDS" validate:"gt=0"`
}

// AuthConfig holds configuration for session authentication
type AuthConfig struct {
	Secret             string   `mapstructure:"AUTH_SECRET" validate:"required,min=32"`
	URL                string   `mapstructure:"AUTH_URL" validate:"required,url"`
	TrustedOrigins     []string `mapstructure:"AUTH_TRUSTED_ORIGINS" validate:"min=1,dive,url"`
	CookiePrefix       string   `mapstructure:"AUTH_COOKIE_PREFIX" validate:"required,alphanum"`
	CookieCacheEnabled bool     `mapstructure:"AUTH_COOKIE_CACHE_ENABLED"`
	CookieCacheMaxAge  int      `mapstructure:"AUTH_COOKIE_CACHE_MAX_AGE" validate:"gt=0"` // seconds
	SessionExpiresIn   int      `mapstructure:"AUTH_SESSION_EXPIRES_IN" validate:"gt=0"`   // seconds
	SessionUpdateAge   int      `mapstructure:"AUTH_SESSION_UPDATE_AGE" validate:"gt=0"`   // seconds
}

// RedisConfig holds configuration for the optional Redis cache
type RedisConfig struct {
	Enabled     bool   `mapstructure:"REDIS_ENABLED"`
	Host        string `mapstructure:"REDIS_HOST"`
	Port        string `mapstructure:"REDIS_PORT"`
	Password    string `mapstructure:"REDIS_PASSWORD"`
	DB          int    `mapstructure:"REDIS_DB"`
	MaxRetries  int    `mapstructure:"REDIS_MAX_RETRIES"`
	PoolSize    int    `mapstructure:"REDIS_POOL_SIZE"`
	MinIdleConn int    `mapstructure:"REDIS_MIN_IDLE_CONN"`
	CacheTTL    int    `mapstructure:"REDIS_CACHE_TTL"` // seconds
}

// RateLimitConfig holds configuration for the auth route rate limiter
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"RATE_LIMIT_ENABLED"`
	RequestsPerSecond float64 `mapstructure:"RATE_LIMIT_REQUESTS_PER_SECOND" validate:"gt=0"`
	BurstCapacity     int     `mapstructure:"RATE_LIMIT_BURST_CAPACITY" validate:"gt=0"`
}

// LoggerConfig holds configuration for the logger
type LoggerConfig struct {
	Level            string  `mapstructure:"LOG_LEVEL"`
	Format           string  `mapstructure:"LOG_FORMAT" validate:"oneof=json console"`
	OutputPath       string  `mapstructure:"LOG_OUTPUT_PATH"`
	SlowQuerySeconds float64 `mapstructure:"LOG_SLOW_QUERY_SECONDS"`
	EnableSampling   bool    `mapstructure:"LOG_ENABLE_SAMPLING"`
	ServiceName      string  `mapstructure:"SERVICE_NAME"`
	ServiceVersion   string  `mapstructure:"SERVICE_VERSION"`
}

// LoadConfig reads configuration from path/app.env, path/.env and the environment.
// Environment variables win over both files.
func LoadConfig(path string) (*Config, error) {
	// .env only fills variables that are not already set
	if err := godotenv.Load(filepath.Join(path, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	v.AddConfigPath(path)
	v.SetConfigName("app") // Look for app.env
	v.SetConfigType("env")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config

	config.DB.URL = v.GetString("DATABASE_URL")
	config.DB.MaxOpenConns = v.GetInt("DB_MAX_OPEN_CONNS")
	config.DB.MaxIdleConns = v.GetInt("DB_MAX_IDLE_CONNS")
	config.DB.ConnMaxLifetime = v.GetInt("DB_CONN_MAX_LIFETIME")
	config.DB.ConnMaxIdleTime = v.GetInt("DB_CONN_MAX_IDLE_TIME")
	config.DB.ConnectTimeout = v.GetInt("DB_CONNECT_TIMEOUT")
	config.DB.QueryTimeout = v.GetInt("DB_QUERY_TIMEOUT")
	config.DB.MigrateOnStart = v.GetBool("DB_MIGRATE_ON_START")

	config.App.Port = v.GetString("PORT")
	config.App.Env = v.GetString("APP_ENV")
	config.App.ShutdownTimeoutSeconds = v.GetInt("SHUTDOWN_TIMEOUT_SECONDS")

	config.Auth.Secret = v.GetString("AUTH_SECRET")
	config.Auth.URL = v.GetString("AUTH_URL")
	config.Auth.TrustedOrigins = splitList(v.GetString("AUTH_TRUSTED_ORIGINS"))
	if len(config.Auth.TrustedOrigins) == 0 {
		config.Auth.TrustedOrigins = []string{config.Auth.URL}
	}
	config.Auth.CookiePrefix = v.GetString("AUTH_COOKIE_PREFIX")
	config.Auth.CookieCacheEnabled = v.GetBool("AUTH_COOKIE_CACHE_ENABLED")
	config.Auth.CookieCacheMaxAge = v.GetInt("AUTH_COOKIE_CACHE_MAX_AGE")
	config.Auth.SessionExpiresIn = v.GetInt("AUTH_SESSION_EXPIRES_IN")
	config.Auth.SessionUpdateAge = v.GetInt("AUTH_SESSION_UPDATE_AGE")

	config.Redis.Enabled = v.GetBool("REDIS_ENABLED")
	config.Redis.Host = v.GetString("REDIS_HOST")
	config.Redis.Port = v.GetString("REDIS_PORT")
	config.Redis.Password = v.GetString("REDIS_PASSWORD")
	config.Redis.DB = v.GetInt("REDIS_DB")
	config.Redis.MaxRetries = v.GetInt("REDIS_MAX_RETRIES")
	config.Redis.PoolSize = v.GetInt("REDIS_POOL_SIZE")
	config.Redis.MinIdleConn = v.GetInt("REDIS_MIN_IDLE_CONN")
	config.Redis.CacheTTL = v.GetInt("REDIS_CACHE_TTL")

	config.RateLimit.Enabled = v.GetBool("RATE_LIMIT_ENABLED")
	config.RateLimit.RequestsPerSecond = v.GetFloat64("RATE_LIMIT_REQUESTS_PER_SECOND")
	config.RateLimit.BurstCapacity = v.GetInt("RATE_LIMIT_BURST_CAPACITY")

	config.Logger.Level = v.GetString("LOG_LEVEL")
	config.Logger.Format = v.GetString("LOG_FORMAT")
	config.Logger.OutputPath = v.GetString("LOG_OUTPUT_PATH")
	config.Logger.SlowQuerySeconds = v.GetFloat64("LOG_SLOW_QUERY_SECONDS")
	config.Logger.EnableSampling = v.GetBool("LOG_ENABLE_SAMPLING")
	config.Logger.ServiceName = v.GetString("SERVICE_NAME")
	config.Logger.ServiceVersion = v.GetString("SERVICE_VERSION")

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_CONN_MAX_LIFETIME", 1800)
	v.SetDefault("DB_CONN_MAX_IDLE_TIME", 30)
	v.SetDefault("DB_CONNECT_TIMEOUT", 2)
	v.SetDefault("DB_QUERY_TIMEOUT", 10)
	v.SetDefault("DB_MIGRATE_ON_START", false)

	v.SetDefault("PORT", "3003")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("SHUTDOWN_TIMEOUT_SECONDS", 15)

	v.SetDefault("AUTH_URL", "http://localhost:3003")
	v.SetDefault("AUTH_COOKIE_PREFIX", "myapp")
	v.SetDefault("AUTH_COOKIE_CACHE_ENABLED", true)
	v.SetDefault("AUTH_COOKIE_CACHE_MAX_AGE", 5*60)
	v.SetDefault("AUTH_SESSION_EXPIRES_IN", 7*24*60*60)
	v.SetDefault("AUTH_SESSION_UPDATE_AGE", 24*60*60)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_MAX_RETRIES", 3)
	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("REDIS_MIN_IDLE_CONN", 2)
	v.SetDefault("REDIS_CACHE_TTL", 300)

	v.SetDefault("RATE_LIMIT_ENABLED", false)
	v.SetDefault("RATE_LIMIT_REQUESTS_PER_SECOND", 10.0)
	v.SetDefault("RATE_LIMIT_BURST_CAPACITY", 100)

	// Logger defaults
	if strings.EqualFold(v.GetString("APP_ENV"), "production") {
		v.SetDefault("LOG_LEVEL", "info")
		v.SetDefault("LOG_FORMAT", "json")
		v.SetDefault("LOG_ENABLE_SAMPLING", true)
	} else {
		v.SetDefault("LOG_LEVEL", "debug")
		v.SetDefault("LOG_FORMAT", "console")
		v.SetDefault("LOG_ENABLE_SAMPLING", false)
	}
	v.SetDefault("LOG_OUTPUT_PATH", "stdout")
	v.SetDefault("LOG_SLOW_QUERY_SECONDS", 0.2)
	v.SetDefault("SERVICE_NAME", "user-auth-service")
	v.SetDefault("SERVICE_VERSION", "1.0.0")
}

// Validate checks the loaded configuration
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Redis.Enabled && c.Redis.CacheTTL <= 0 {
		return errors.New("invalid configuration: REDIS_CACHE_TTL must be positive when Redis is enabled")
	}
	if c.RateLimit.Enabled && !c.Redis.Enabled {
		return errors.New("invalid configuration: RATE_LIMIT_ENABLED requires REDIS_ENABLED")
	}
	return nil
}

// IsProduction reports whether the service runs in production mode
func (c *AppConfig) IsProduction() bool {
	return c.Env == "production"
}

// IsDevelopment reports whether detailed errors and request logs are enabled
func (c *AppConfig) IsDevelopment() bool {
	return c.Env == "development"
}

// Address returns the HTTP listen address
func (c *AppConfig) Address() string {
	return ":" + c.Port
}

// QueryTimeoutDuration returns the per-query timeout
func (c *DatabaseConfig) QueryTimeoutDuration() time.Duration {
	return time.Duration(c.QueryTimeout) * time.Second
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
