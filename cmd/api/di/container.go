package di

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"user-auth-service/cmd/api/infrastructure"
	"user-auth-service/internal/adapter/cache"
	"user-auth-service/internal/adapter/db/postgres"
	ginhandler "user-auth-service/internal/adapter/gin/handler"
	"user-auth-service/internal/adapter/gin/middleware"
	"user-auth-service/internal/adapter/gin/router"
	"user-auth-service/internal/adapter/repository/cached"
	"user-auth-service/internal/auth"
	"user-auth-service/internal/config"
	"user-auth-service/internal/usecase/user"
	redisclient "user-auth-service/pkg/redis"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *zap.Logger
	DB          *gorm.DB
	RedisClient *redisclient.Client
	Auth        *auth.Service
	UserUC      user.Usecase
	RateLimiter *middleware.RateLimiter
	Router      *gin.Engine
}

// NewContainer creates and initializes all application dependencies.
// A database that cannot be reached is an error.
func NewContainer(ctx context.Context, cfg *config.Config, l *zap.Logger) (*Container, error) {
	// Validate configuration before initializing any dependencies
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	db, err := infrastructure.NewDatabase(ctx, cfg, l)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	c := &Container{Config: cfg, Logger: l, DB: db}

	rdb, err := infrastructure.NewRedisClient(ctx, cfg, l)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}
	c.RedisClient = rdb

	if err := c.wire(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// wire builds the object graph on top of the opened connections.
func (c *Container) wire() error {
	cfg, l := c.Config, c.Logger
	queryTimeout := cfg.DB.QueryTimeoutDuration()

	pgRepo := postgres.NewUserRepoPG(c.DB, queryTimeout, l)
	var repo user.Repository = pgRepo
	if c.RedisClient != nil {
		userCache := cache.NewRedisUserCache(
			c.RedisClient.Client,
			time.Duration(cfg.Redis.CacheTTL)*time.Second,
			l,
		)
		repo = cached.NewUserRepository(pgRepo, userCache, l)

		c.RateLimiter = middleware.NewRateLimiter(
			c.RedisClient.Client,
			middleware.RateLimiterConfig{
				RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
				BurstCapacity:     cfg.RateLimit.BurstCapacity,
				Enabled:           cfg.RateLimit.Enabled,
			},
			l,
		)
	}

	authSvc, err := auth.New(AuthConfig(cfg), postgres.NewAuthStorePG(c.DB, queryTimeout, l), l)
	if err != nil {
		return fmt.Errorf("failed to initialize auth: %w", err)
	}
	c.Auth = authSvc

	c.UserUC = user.New(repo, l)

	checks := map[string]ginhandler.Pinger{"database": pgRepo}
	if c.RedisClient != nil {
		checks["redis"] = c.RedisClient
	}

	r, err := router.SetupRouter(router.Dependencies{
		Auth:        authSvc,
		Users:       ginhandler.NewUserHandler(c.UserUC, authSvc, l, !cfg.App.IsProduction()),
		Health:      ginhandler.NewHealthHandler(checks, l),
		RateLimiter: c.RateLimiter,
		Logger:      l,
		Options: router.Options{
			TrustedOrigins: cfg.Auth.TrustedOrigins,
			ExposeErrors:   !cfg.App.IsProduction(),
			RequestLogging: cfg.App.IsDevelopment(),
			Title:          cfg.Logger.ServiceName,
			Version:        cfg.Logger.ServiceVersion,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}
	c.Router = r
	return nil
}

// AuthConfig maps the loaded configuration onto the auth service settings.
// Cookies are marked Secure in production or when the public URL is https.
func AuthConfig(cfg *config.Config) auth.Config {
	return auth.Config{
		Secret:             cfg.Auth.Secret,
		BaseURL:            cfg.Auth.URL,
		TrustedOrigins:     cfg.Auth.TrustedOrigins,
		CookiePrefix:       cfg.Auth.CookiePrefix,
		SecureCookies:      cfg.App.IsProduction() || strings.HasPrefix(cfg.Auth.URL, "https://"),
		CookieCacheEnabled: cfg.Auth.CookieCacheEnabled,
		CookieCacheMaxAge:  time.Duration(cfg.Auth.CookieCacheMaxAge) * time.Second,
		SessionExpiresIn:   time.Duration(cfg.Auth.SessionExpiresIn) * time.Second,
		SessionUpdateAge:   time.Duration(cfg.Auth.SessionUpdateAge) * time.Second,
	}
}

// Close closes all resources held by the container
func (c *Container) Close() error {
	var errs []error

	// Close Redis connection
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Redis: %w", err))
		}
	}

	// Close database connection
	if c.DB != nil {
		if err := infrastructure.CloseDatabase(c.DB); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("container close errors: %v", errs)
	}

	return nil
}
