// Package response holds the JSON envelopes shared by handlers and middleware.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Common error labels
const (
	ErrUnauthorized     = "Unauthorized"
	ErrForbidden        = "Forbidden"
	ErrValidation       = "Validation failed"
	ErrRouteNotFound    = "Route not found"
	ErrInternal         = "Internal server error"
	ErrTooManyRequests  = "Too many requests"
	ErrServiceUnhealthy = "Service unavailable"
	MsgAuthRequired     = "Authentication required"
)

// Success is the body of every successful user route.
type Success struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// Failure is the body of every failed request.
type Failure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

// OK writes 200 with data wrapped in the success envelope.
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Success{Success: true, Data: data})
}

// Fail writes status with the failure envelope.
func Fail(c *gin.Context, status int, body Failure) {
	body.Success = false
	c.JSON(status, body)
}

// Abort writes the failure envelope and stops the handler chain.
func Abort(c *gin.Context, status int, body Failure) {
	body.Success = false
	c.AbortWithStatusJSON(status, body)
}

// Unauthorized aborts with 401.
func Unauthorized(c *gin.Context) {
	Abort(c, http.StatusUnauthorized, Failure{Error: ErrUnauthorized, Message: MsgAuthRequired})
}
