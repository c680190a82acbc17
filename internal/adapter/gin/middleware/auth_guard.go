package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"user-auth-service/internal/adapter/gin/response"
	"user-auth-service/internal/domain/session"
	"user-auth-service/pkg/logger"
)

const identityKey = "auth.identity"

// SessionResolver resolves request headers to the caller's identity.
// It returns nil, nil when the request is anonymous.
type SessionResolver interface {
	GetSession(ctx context.Context, h http.Header) (*session.Identity, error)
}

// AuthGuard rejects requests without a valid session and stores the
// resolved identity on the context for handlers.
func AuthGuard(resolver SessionResolver, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, err := resolver.GetSession(c.Request.Context(), c.Request.Header)
		if err != nil {
			logger.WithContext(c.Request.Context(), log).Error("failed to resolve session", zap.Error(err))
			response.Abort(c, http.StatusInternalServerError, response.Failure{Error: response.ErrInternal})
			return
		}
		if ident == nil {
			response.Unauthorized(c)
			return
		}

		c.Set(identityKey, ident)
		c.Request = c.Request.WithContext(logger.WithUserID(c.Request.Context(), ident.User.ID))
		c.Next()
	}
}

// IdentityFrom returns the identity stored by AuthGuard.
func IdentityFrom(c *gin.Context) (*session.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	ident, ok := v.(*session.Identity)
	return ident, ok && ident != nil
}
