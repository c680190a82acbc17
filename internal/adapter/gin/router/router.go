package router

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"user-auth-service/internal/adapter/gin/docs"
	"user-auth-service/internal/adapter/gin/handler"
	"user-auth-service/internal/adapter/gin/middleware"
	"user-auth-service/internal/adapter/gin/response"
	"user-auth-service/internal/auth"
	"user-auth-service/internal/domain/session"
	pkglogger "user-auth-service/pkg/logger"
)

// AuthPrefix is where the auth handler is mounted.
const AuthPrefix = "/auth"

// AuthService is the part of the auth service the router depends on.
type AuthService interface {
	Handler() http.Handler
	GetSession(ctx context.Context, h http.Header) (*session.Identity, error)
	OpenAPISchema() *auth.OpenAPISchema
}

// Options controls environment specific router behaviour.
type Options struct {
	// TrustedOrigins may call the API cross-origin with credentials.
	TrustedOrigins []string
	// ExposeErrors includes internal error detail in 500 responses.
	ExposeErrors bool
	// RequestLogging logs one line per request.
	RequestLogging bool
	Title          string
	Version        string
}

// Dependencies holds everything SetupRouter wires together.
// RateLimiter is optional.
type Dependencies struct {
	Auth        AuthService
	Users       *handler.UserHandler
	Health      *handler.HealthHandler
	RateLimiter *middleware.RateLimiter
	Logger      *zap.Logger
	Options     Options
}

// SetupRouter configures and returns a Gin router with all routes and middleware
func SetupRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.Auth == nil || deps.Users == nil || deps.Health == nil {
		return nil, errors.New("router: auth, users and health handlers are required")
	}
	if len(deps.Options.TrustedOrigins) == 0 {
		return nil, errors.New("router: at least one trusted origin is required")
	}

	router := gin.New()
	router.HandleMethodNotAllowed = false

	// Global middleware
	router.Use(pkglogger.RequestID())
	router.Use(middleware.Recovery(deps.Logger, deps.Options.ExposeErrors))
	router.Use(cors.New(corsConfig(deps.Options.TrustedOrigins)))
	if deps.Options.RequestLogging {
		router.Use(middleware.RequestLogger(deps.Logger))
	}

	router.GET("/health", deps.Health.Health)
	router.GET("/health/ready", deps.Health.Ready)

	authHandlers := []gin.HandlerFunc{}
	if deps.RateLimiter != nil {
		authHandlers = append(authHandlers, deps.RateLimiter.Middleware())
	}
	authHandlers = append(authHandlers, gin.WrapH(http.StripPrefix(AuthPrefix, deps.Auth.Handler())))
	router.Any(AuthPrefix+"/*path", authHandlers...)

	users := router.Group("/users", middleware.AuthGuard(deps.Auth, deps.Logger))
	{
		users.GET("", deps.Users.ListUsers)
		users.GET("/me", deps.Users.GetMe)
		users.PATCH("/me", deps.Users.UpdateMe)
		users.DELETE("/:id", deps.Users.DeleteUser)
	}

	authSchema := deps.Auth.OpenAPISchema()
	doc := docs.Build(docs.Options{
		Title:           deps.Options.Title,
		Version:         deps.Options.Version,
		Description:     "User management with cookie session authentication",
		AuthPrefix:      AuthPrefix + auth.BasePath,
		AuthPaths:       authSchema.Paths,
		AuthDefinitions: authSchema.Definitions,
	})
	if err := docs.Register(router, doc); err != nil {
		return nil, err
	}

	router.NoRoute(func(c *gin.Context) {
		response.Fail(c, http.StatusNotFound, response.Failure{Error: response.ErrRouteNotFound})
	})

	return router, nil
}

func corsConfig(origins []string) cors.Config {
	return cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		ExposeHeaders:    []string{pkglogger.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
}
