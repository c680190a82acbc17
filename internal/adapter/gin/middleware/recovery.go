package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"user-auth-service/internal/adapter/gin/response"
	"user-auth-service/pkg/logger"
)

// Recovery turns panics into a 500 failure envelope. The panic value is
// only echoed back when exposeDetails is set.
func Recovery(log *zap.Logger, exposeDetails bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			logger.WithContext(c.Request.Context(), log).Error("panic recovered",
				zap.Any("panic", rec),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Stack("stack"),
			)

			body := response.Failure{Error: response.ErrInternal}
			if exposeDetails {
				body.Message = fmt.Sprint(rec)
			}
			response.Abort(c, http.StatusInternalServerError, body)
		}()
		c.Next()
	}
}
