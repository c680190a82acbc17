package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"user-auth-service/internal/adapter/gin/middleware"
	"user-auth-service/internal/domain/session"
	domain "user-auth-service/internal/domain/user"
	usecase "user-auth-service/internal/usecase/user"
	pkgerrors "user-auth-service/pkg/errors"
)

// MockUserUsecase is a mock implementation of user.Usecase
type MockUserUsecase struct {
	mock.Mock
}

func (m *MockUserUsecase) GetMe(ctx context.Context, req usecase.GetMeRequest) (*domain.User, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserUsecase) ListUsers(ctx context.Context, req usecase.ListUsersRequest) (*usecase.ListUsersResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.ListUsersResponse), args.Error(1)
}

func (m *MockUserUsecase) UpdateMe(ctx context.Context, req usecase.UpdateMeRequest) (*domain.User, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserUsecase) DeleteUser(ctx context.Context, req usecase.DeleteUserRequest) (*domain.User, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

type staticResolver struct {
	ident *session.Identity
}

func (s staticResolver) GetSession(context.Context, http.Header) (*session.Identity, error) {
	return s.ident, nil
}

type cookieSpy struct {
	cleared int
}

func (s *cookieSpy) ClearSessionCookies(w http.ResponseWriter) {
	s.cleared++
	http.SetCookie(w, &http.Cookie{Name: "app.session_token", MaxAge: -1})
}

var alice = domain.User{
	ID:        "u1",
	Email:     "alice@example.com",
	Name:      strPtr("Alice"),
	CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	UpdatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
}

func strPtr(s string) *string { return &s }

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Details []FieldError    `json:"details"`
}

func setupTest(t *testing.T, exposeDetails bool) (*gin.Engine, *MockUserUsecase, *cookieSpy) {
	gin.SetMode(gin.TestMode)
	mockUsecase := new(MockUserUsecase)
	cookies := &cookieSpy{}
	logger := zaptest.NewLogger(t)
	h := NewUserHandler(mockUsecase, cookies, logger, exposeDetails)

	r := gin.New()
	users := r.Group("/users", middleware.AuthGuard(staticResolver{ident: &session.Identity{User: alice}}, logger))
	users.GET("/me", h.GetMe)
	users.GET("", h.ListUsers)
	users.PATCH("/me", h.UpdateMe)
	users.DELETE("/:id", h.DeleteUser)
	return r, mockUsecase, cookies
}

func do(t *testing.T, r http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func TestGetMe(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		r, mockUsecase, _ := setupTest(t, false)
		mockUsecase.On("GetMe", mock.Anything, usecase.GetMeRequest{CallerID: "u1"}).Return(&alice, nil)

		w, env := do(t, r, http.MethodGet, "/users/me", "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, env.Success)
		var got domain.User
		require.NoError(t, json.Unmarshal(env.Data, &got))
		assert.Equal(t, "u1", got.ID)
		assert.Equal(t, "alice@example.com", got.Email)
		mockUsecase.AssertExpectations(t)
	})

	t.Run("Record Gone", func(t *testing.T) {
		r, mockUsecase, _ := setupTest(t, false)
		mockUsecase.On("GetMe", mock.Anything, mock.Anything).
			Return(nil, pkgerrors.NewUnauthenticatedError("Authentication required"))

		w, env := do(t, r, http.MethodGet, "/users/me", "")

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, env.Success)
		assert.Equal(t, "Unauthorized", env.Error)
		assert.Equal(t, "Authentication required", env.Message)
	})
}

func TestListUsers(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		r, mockUsecase, _ := setupTest(t, false)
		mockUsecase.On("ListUsers", mock.Anything, usecase.ListUsersRequest{}).
			Return(&usecase.ListUsersResponse{Users: []domain.User{alice}}, nil)

		w, env := do(t, r, http.MethodGet, "/users", "")

		assert.Equal(t, http.StatusOK, w.Code)
		var got []domain.User
		require.NoError(t, json.Unmarshal(env.Data, &got))
		assert.Len(t, got, 1)
	})

	t.Run("Empty List Is Array", func(t *testing.T) {
		r, mockUsecase, _ := setupTest(t, false)
		mockUsecase.On("ListUsers", mock.Anything, mock.Anything).
			Return(&usecase.ListUsersResponse{Users: []domain.User{}}, nil)

		w, env := do(t, r, http.MethodGet, "/users", "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, string(env.Data))
	})

	t.Run("Query Parameters", func(t *testing.T) {
		r, mockUsecase, _ := setupTest(t, false)
		mockUsecase.On("ListUsers", mock.Anything, usecase.ListUsersRequest{Query: "ali", Limit: 10, Offset: 5}).
			Return(&usecase.ListUsersResponse{Users: []domain.User{}}, nil)

		w, _ := do(t, r, http.MethodGet, "/users?q=ali&limit=10&offset=5", "")

		assert.Equal(t, http.StatusOK, w.Code)
		mockUsecase.AssertExpectations(t)
	})

	t.Run("Invalid Limit", func(t *testing.T) {
		r, mockUsecase, _ := setupTest(t, false)

		w, env := do(t, r, http.MethodGet, "/users?limit=1000", "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Validation failed", env.Error)
		require.Len(t, env.Details, 1)
		assert.Equal(t, "limit", env.Details[0].Field)
		mockUsecase.AssertNotCalled(t, "ListUsers", mock.Anything, mock.Anything)
	})

	t.Run("Internal Error Hides Detail In Production", func(t *testing.T) {
		r, mockUsecase, _ := setupTest(t, false)
		mockUsecase.On("ListUsers", mock.Anything, mock.Anything).
			Return(nil, pkgerrors.NewInternalError("failed to list users", errors.New("connection refused")))

		w, env := do(t, r, http.MethodGet, "/users", "")

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Internal server error", env.Error)
		assert.Empty(t, env.Message)
	})

	t.Run("Internal Error Shows Detail In Development", func(t *testing.T) {
		r, mockUsecase, _ := setupTest(t, true)
		mockUsecase.On("ListUsers", mock.Anything, mock.Anything).
			Return(nil, pkgerrors.NewInternalError("failed to list users", errors.New("connection refused")))

		w, env := do(t, r, http.MethodGet, "/users", "")

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, env.Message, "connection refused")
	})
}

func TestUpdateMe(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		r, mockUsecase, _ := setupTest(t, false)
		updated := alice
		updated.Name = strPtr("Alicia")
		mockUsecase.On("UpdateMe", mock.Anything, mock.MatchedBy(func(req usecase.UpdateMeRequest) bool {
			return req.CallerID == "u1" && req.Name != nil && *req.Name == "Alicia" && req.Email == nil
		})).Return(&updated, nil)

		w, env := do(t, r, http.MethodPatch, "/users/me", `{"name":"Alicia"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		var got domain.User
		require.NoError(t, json.Unmarshal(env.Data, &got))
		assert.Equal(t, "Alicia", *got.Name)
		mockUsecase.AssertExpectations(t)
	})

	t.Run("Invalid Request Body", func(t *testing.T) {
		r, _, _ := setupTest(t, false)

		w, env := do(t, r, http.MethodPatch, "/users/me", "invalid json")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Validation failed", env.Error)
	})

	t.Run("Invalid Email", func(t *testing.T) {
		r, mockUsecase, _ := setupTest(t, false)

		w, env := do(t, r, http.MethodPatch, "/users/me", `{"email":"not-an-email"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Validation failed", env.Error)
		require.Len(t, env.Details, 1)
		assert.Equal(t, "email", env.Details[0].Field)
		assert.Equal(t, "email must be a valid email", env.Details[0].Message)
		mockUsecase.AssertNotCalled(t, "UpdateMe", mock.Anything, mock.Anything)
	})

	t.Run("Empty Name", func(t *testing.T) {
		r, _, _ := setupTest(t, false)

		w, env := do(t, r, http.MethodPatch, "/users/me", `{"name":""}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		require.Len(t, env.Details, 1)
		assert.Equal(t, "name", env.Details[0].Field)
	})

	t.Run("Email In Use", func(t *testing.T) {
		r, mockUsecase, _ := setupTest(t, false)
		mockUsecase.On("UpdateMe", mock.Anything, mock.Anything).
			Return(nil, pkgerrors.NewValidationError("email", "email already in use"))

		w, env := do(t, r, http.MethodPatch, "/users/me", `{"email":"bob@example.com"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Validation failed", env.Error)
		assert.Equal(t, "email already in use", env.Message)
	})

	t.Run("Not Found", func(t *testing.T) {
		r, mockUsecase, _ := setupTest(t, false)
		mockUsecase.On("UpdateMe", mock.Anything, mock.Anything).
			Return(nil, pkgerrors.NewNotFoundError("user", "User not found"))

		w, env := do(t, r, http.MethodPatch, "/users/me", `{"name":"x"}`)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "User not found", env.Error)
	})

	t.Run("Store Failure Reports Update Failed", func(t *testing.T) {
		r, mockUsecase, _ := setupTest(t, false)
		mockUsecase.On("UpdateMe", mock.Anything, mock.Anything).
			Return(nil, pkgerrors.NewInternalError("failed to update user", errors.New("disk full")))

		w, env := do(t, r, http.MethodPatch, "/users/me", `{"name":"x"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Update failed", env.Error)
		assert.Empty(t, env.Message)
	})

	t.Run("Store Failure Detail In Development", func(t *testing.T) {
		r, mockUsecase, _ := setupTest(t, true)
		mockUsecase.On("UpdateMe", mock.Anything, mock.Anything).
			Return(nil, pkgerrors.NewInternalError("failed to update user", errors.New("disk full")))

		w, env := do(t, r, http.MethodPatch, "/users/me", `{"name":"x"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, env.Message, "disk full")
	})
}

func TestDeleteUser(t *testing.T) {
	t.Run("Success Clears Cookies", func(t *testing.T) {
		r, mockUsecase, cookies := setupTest(t, false)
		mockUsecase.On("DeleteUser", mock.Anything, usecase.DeleteUserRequest{CallerID: "u1", TargetID: "u1"}).
			Return(&alice, nil)

		w, env := do(t, r, http.MethodDelete, "/users/u1", "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, env.Success)
		var got domain.User
		require.NoError(t, json.Unmarshal(env.Data, &got))
		assert.Equal(t, "u1", got.ID)
		assert.Equal(t, 1, cookies.cleared)
		assert.Contains(t, w.Header().Get("Set-Cookie"), "app.session_token=")
	})

	t.Run("Forbidden", func(t *testing.T) {
		r, mockUsecase, cookies := setupTest(t, false)
		mockUsecase.On("DeleteUser", mock.Anything, usecase.DeleteUserRequest{CallerID: "u1", TargetID: "u2"}).
			Return(nil, pkgerrors.NewForbiddenError("You can only delete your own account"))

		w, env := do(t, r, http.MethodDelete, "/users/u2", "")

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "Forbidden", env.Error)
		assert.Equal(t, "You can only delete your own account", env.Message)
		assert.Zero(t, cookies.cleared)
	})

	t.Run("Not Found", func(t *testing.T) {
		r, mockUsecase, cookies := setupTest(t, false)
		mockUsecase.On("DeleteUser", mock.Anything, mock.Anything).
			Return(nil, pkgerrors.NewNotFoundError("user", "User not found"))

		w, env := do(t, r, http.MethodDelete, "/users/u1", "")

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "User not found", env.Error)
		assert.Zero(t, cookies.cleared)
	})
}
