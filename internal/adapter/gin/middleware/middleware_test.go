package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"user-auth-service/internal/domain/session"
	"user-auth-service/internal/domain/user"
	"user-auth-service/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type resolverFunc func(ctx context.Context, h http.Header) (*session.Identity, error)

func (f resolverFunc) GetSession(ctx context.Context, h http.Header) (*session.Identity, error) {
	return f(ctx, h)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestAuthGuard(t *testing.T) {
	ident := &session.Identity{User: user.User{ID: "u1"}, Session: session.Session{Token: "tok"}}

	newRouter := func(r SessionResolver) *gin.Engine {
		e := gin.New()
		e.GET("/me", AuthGuard(r, zaptest.NewLogger(t)), func(c *gin.Context) {
			got, ok := IdentityFrom(c)
			require.True(t, ok)
			c.JSON(http.StatusOK, gin.H{"id": got.User.ID, "ctx_user": logger.GetUserID(c.Request.Context())})
		})
		return e
	}

	t.Run("authenticated", func(t *testing.T) {
		w := httptest.NewRecorder()
		newRouter(resolverFunc(func(context.Context, http.Header) (*session.Identity, error) {
			return ident, nil
		})).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "u1", body["id"])
		assert.Equal(t, "u1", body["ctx_user"])
	})

	t.Run("anonymous", func(t *testing.T) {
		w := httptest.NewRecorder()
		newRouter(resolverFunc(func(context.Context, http.Header) (*session.Identity, error) {
			return nil, nil
		})).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		body := decode(t, w)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "Unauthorized", body["error"])
		assert.Equal(t, "Authentication required", body["message"])
	})

	t.Run("resolver failure", func(t *testing.T) {
		w := httptest.NewRecorder()
		newRouter(resolverFunc(func(context.Context, http.Header) (*session.Identity, error) {
			return nil, errors.New("db down")
		})).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "db down")
	})
}

func TestIdentityFrom_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := IdentityFrom(c)
	assert.False(t, ok)
}

func TestRecovery(t *testing.T) {
	tests := []struct {
		name          string
		exposeDetails bool
		wantMessage   any
	}{
		{name: "development shows detail", exposeDetails: true, wantMessage: "kaboom"},
		{name: "production hides detail", exposeDetails: false, wantMessage: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.ErrorLevel)
			e := gin.New()
			e.Use(Recovery(zap.New(core), tt.exposeDetails))
			e.GET("/panic", func(*gin.Context) { panic("kaboom") })

			w := httptest.NewRecorder()
			e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

			assert.Equal(t, http.StatusInternalServerError, w.Code)
			body := decode(t, w)
			assert.Equal(t, "Internal server error", body["error"])
			assert.Equal(t, tt.wantMessage, body["message"])
			assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
		})
	}
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	e := gin.New()
	e.Use(RequestLogger(zap.New(core)))
	e.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	e.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, zapcore.InfoLevel, logs.All()[0].Level)
	assert.Equal(t, int64(http.StatusOK), logs.All()[0].ContextMap()["status"])
	assert.Equal(t, zapcore.WarnLevel, logs.All()[1].Level)
}

func setupRateLimiter(t *testing.T, cfg RateLimiterConfig) (*gin.Engine, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	rl := NewRateLimiter(client, cfg, zaptest.NewLogger(t))
	e := gin.New()
	e.Use(rl.Middleware())
	e.POST("/auth/sign-in", func(c *gin.Context) { c.Status(http.StatusOK) })
	return e, mr
}

func post(e *gin.Engine, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/auth/sign-in", nil)
	req.RemoteAddr = remote
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_BurstThenDeny(t *testing.T) {
	e, mr := setupRateLimiter(t, RateLimiterConfig{RequestsPerSecond: 0.01, BurstCapacity: 2, Enabled: true})
	mr.SetTime(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, http.StatusOK, post(e, "10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusOK, post(e, "10.0.0.1:1000").Code)

	w := post(e, "10.0.0.1:1000")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "Too many requests", decode(t, w)["error"])

	assert.Equal(t, http.StatusOK, post(e, "10.0.0.2:1000").Code, "buckets are per client")
}

func TestRateLimiter_Refill(t *testing.T) {
	e, mr := setupRateLimiter(t, RateLimiterConfig{RequestsPerSecond: 1, BurstCapacity: 1, Enabled: true})
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mr.SetTime(start)

	assert.Equal(t, http.StatusOK, post(e, "10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusTooManyRequests, post(e, "10.0.0.1:1000").Code)

	mr.SetTime(start.Add(2 * time.Second))
	assert.Equal(t, http.StatusOK, post(e, "10.0.0.1:1000").Code)
}

func TestRateLimiter_Disabled(t *testing.T) {
	e, _ := setupRateLimiter(t, RateLimiterConfig{RequestsPerSecond: 0.01, BurstCapacity: 1, Enabled: false})

	for range 5 {
		assert.Equal(t, http.StatusOK, post(e, "10.0.0.1:1000").Code)
	}
}

func TestRateLimiter_FailOpen(t *testing.T) {
	e, mr := setupRateLimiter(t, RateLimiterConfig{RequestsPerSecond: 0.01, BurstCapacity: 1, Enabled: true})
	mr.Close()

	assert.Equal(t, http.StatusOK, post(e, "10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusOK, post(e, "10.0.0.1:1000").Code)
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 1, retryAfterSeconds(10))
	assert.Equal(t, 2, retryAfterSeconds(0.5))
	assert.Equal(t, bucketTTLSeconds, retryAfterSeconds(0))
}
