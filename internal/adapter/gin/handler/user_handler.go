package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"user-auth-service/internal/adapter/gin/middleware"
	"user-auth-service/internal/adapter/gin/response"
	"user-auth-service/internal/usecase/user"
	apperrors "user-auth-service/pkg/errors"
	"user-auth-service/pkg/logger"
)

const errUpdateFailed = "Update failed"

// CookieClearer expires the caller's session cookies.
type CookieClearer interface {
	ClearSessionCookies(w http.ResponseWriter)
}

// UserHandler handles HTTP requests for user operations
type UserHandler struct {
	uc            user.Usecase
	cookies       CookieClearer
	log           *zap.Logger
	exposeDetails bool
}

// NewUserHandler creates a new UserHandler instance. Internal error detail
// is included in responses only when exposeDetails is set.
func NewUserHandler(uc user.Usecase, cookies CookieClearer, log *zap.Logger, exposeDetails bool) *UserHandler {
	return &UserHandler{
		uc:            uc,
		cookies:       cookies,
		log:           log,
		exposeDetails: exposeDetails,
	}
}

// UpdateMeRequest represents the HTTP request body for PATCH /users/me
type UpdateMeRequest struct {
	Name  *string `json:"name" binding:"omitnil,min=1"`
	Email *string `json:"email" binding:"omitnil,email"`
}

// ListUsersQuery represents the query string of GET /users
type ListUsersQuery struct {
	Query  string `form:"q" binding:"max=100"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Offset int    `form:"offset" binding:"omitempty,min=0"`
}

// FieldError describes one invalid input field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// GetMe handles GET /users/me
func (h *UserHandler) GetMe(c *gin.Context) {
	ident, ok := middleware.IdentityFrom(c)
	if !ok {
		response.Unauthorized(c)
		return
	}

	u, err := h.uc.GetMe(c.Request.Context(), user.GetMeRequest{CallerID: ident.User.ID})
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, u)
}

// ListUsers handles GET /users
func (h *UserHandler) ListUsers(c *gin.Context) {
	var q ListUsersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.bindError(c, err)
		return
	}

	resp, err := h.uc.ListUsers(c.Request.Context(), user.ListUsersRequest{
		Query:  q.Query,
		Limit:  q.Limit,
		Offset: q.Offset,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, resp.Users)
}

// UpdateMe handles PATCH /users/me
func (h *UserHandler) UpdateMe(c *gin.Context) {
	ident, ok := middleware.IdentityFrom(c)
	if !ok {
		response.Unauthorized(c)
		return
	}

	var req UpdateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}

	u, err := h.uc.UpdateMe(c.Request.Context(), user.UpdateMeRequest{
		CallerID: ident.User.ID,
		Name:     req.Name,
		Email:    req.Email,
	})
	if err != nil {
		var internal *apperrors.InternalError
		if errors.As(err, &internal) {
			logger.WithContext(c.Request.Context(), h.log).Error("update failed", zap.Error(err))
			body := response.Failure{Error: errUpdateFailed}
			if h.exposeDetails {
				body.Message = err.Error()
			}
			response.Fail(c, http.StatusBadRequest, body)
			return
		}
		h.handleError(c, err)
		return
	}
	response.OK(c, u)
}

// DeleteUser handles DELETE /users/:id
func (h *UserHandler) DeleteUser(c *gin.Context) {
	ident, ok := middleware.IdentityFrom(c)
	if !ok {
		response.Unauthorized(c)
		return
	}

	u, err := h.uc.DeleteUser(c.Request.Context(), user.DeleteUserRequest{
		CallerID: ident.User.ID,
		TargetID: c.Param("id"),
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	if h.cookies != nil {
		h.cookies.ClearSessionCookies(c.Writer)
	}
	response.OK(c, u)
}

// bindError reports a request that failed binding or validation.
func (h *UserHandler) bindError(c *gin.Context, err error) {
	logger.WithContext(c.Request.Context(), h.log).Warn("invalid request", zap.Error(err))

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]FieldError, len(verrs))
		for i, fe := range verrs {
			details[i] = FieldError{Field: jsonFieldName(fe), Message: fieldMessage(fe)}
		}
		response.Fail(c, http.StatusBadRequest, response.Failure{Error: response.ErrValidation, Details: details})
		return
	}

	response.Fail(c, http.StatusBadRequest, response.Failure{Error: response.ErrValidation, Message: err.Error()})
}

// handleError maps use case errors onto HTTP responses.
func (h *UserHandler) handleError(c *gin.Context, err error) {
	log := logger.WithContext(c.Request.Context(), h.log)
	status := apperrors.HTTPStatus(err)

	switch status {
	case http.StatusBadRequest:
		body := response.Failure{Error: response.ErrValidation}
		var verr *apperrors.ValidationError
		if errors.As(err, &verr) {
			body.Message = verr.Message
			if verr.Field != "" {
				body.Details = []FieldError{{Field: verr.Field, Message: verr.Message}}
			}
		}
		response.Fail(c, status, body)
	case http.StatusUnauthorized:
		response.Unauthorized(c)
	case http.StatusForbidden:
		response.Fail(c, status, response.Failure{Error: response.ErrForbidden, Message: err.Error()})
	case http.StatusNotFound:
		response.Fail(c, status, response.Failure{Error: err.Error()})
	default:
		log.Error("request failed", zap.Error(err))
		body := response.Failure{Error: response.ErrInternal}
		if h.exposeDetails {
			body.Message = err.Error()
		}
		response.Fail(c, http.StatusInternalServerError, body)
	}
}

func jsonFieldName(fe validator.FieldError) string {
	switch fe.Field() {
	case "Query":
		return "q"
	default:
		return strings.ToLower(fe.Field())
	}
}

func fieldMessage(fe validator.FieldError) string {
	field := jsonFieldName(fe)
	switch fe.Tag() {
	case "email":
		return field + " must be a valid email"
	case "min":
		return field + " must be at least " + fe.Param()
	case "max":
		return field + " must be at most " + fe.Param()
	case "required":
		return field + " is required"
	default:
		return field + " is invalid"
	}
}
