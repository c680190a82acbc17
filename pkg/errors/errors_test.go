package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: NewValidationError("email", "must be a valid email"), want: http.StatusBadRequest},
		{name: "unauthenticated", err: ErrUnauthenticated, want: http.StatusUnauthorized},
		{name: "forbidden", err: NewForbiddenError("nope"), want: http.StatusForbidden},
		{name: "not found", err: NewNotFoundError("user", ""), want: http.StatusNotFound},
		{name: "already exists", err: NewAlreadyExistsError("user", ""), want: http.StatusUnprocessableEntity},
		{name: "internal", err: NewInternalError("boom", errors.New("db down")), want: http.StatusInternalServerError},
		{name: "wrapped", err: fmt.Errorf("handler: %w", NewNotFoundError("user", "user not found")), want: http.StatusNotFound},
		{name: "plain error", err: errors.New("unexpected"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "validation failed: name - too short", NewValidationError("name", "too short").Error())
	assert.Equal(t, "validation failed: bad body", NewValidationError("", "bad body").Error())
	assert.Equal(t, "user not found", NewNotFoundError("user", "").Error())
	assert.Equal(t, "user already exists", NewAlreadyExistsError("user", "").Error())

	inner := errors.New("connection refused")
	internal := NewInternalError("failed to load user", inner)
	assert.Equal(t, "failed to load user: connection refused", internal.Error())
	assert.ErrorIs(t, internal, inner)
}
