package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	domain "user-auth-service/internal/domain/user"
	apperrors "user-auth-service/pkg/errors"
	"user-auth-service/pkg/logger"
	"user-auth-service/pkg/security"
)

const (
	msgUserNotFound      = "User not found"
	msgDeleteOwnAccount  = "You can only delete your own account"
	msgAuthRequired      = "Authentication required"
	msgEmailAlreadyInUse = "email already in use"
)

// Repository defines the interface for user data access operations.
// Absent records are reported as nil, nil.
type Repository interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindAll(ctx context.Context, opts domain.ListOptions) ([]domain.User, error)
	UpdateByID(ctx context.Context, id string, upd domain.UserUpdate) (*domain.User, error)
	DeleteByID(ctx context.Context, id string) (*domain.User, error)
}

// Service implements the business logic for user management operations.
type Service struct {
	repo     Repository          // Repository for data access
	log      *zap.Logger         // Logger for structured logging
	validate *validator.Validate // Validator for request validation
}

// New creates a new instance of Service with the provided repository and logger.
func New(r Repository, log *zap.Logger) *Service {
	return &Service{repo: r, log: log, validate: validator.New()}
}

// formatValidationError converts validator.ValidationErrors into a ValidationError.
func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return apperrors.NewValidationError("", err.Error())
	}

	var (
		fields   []string
		messages []string
	)
	for _, e := range validationErrors {
		field := strings.ToLower(e.Field())
		fields = append(fields, field)
		switch e.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", field))
		case "email":
			messages = append(messages, fmt.Sprintf("%s must be a valid email", field))
		case "min":
			messages = append(messages, fmt.Sprintf("%s must be at least %s characters", field, e.Param()))
		case "max":
			messages = append(messages, fmt.Sprintf("%s must be at most %s characters", field, e.Param()))
		default:
			messages = append(messages, fmt.Sprintf("%s is invalid", field))
		}
	}
	return apperrors.NewValidationError(strings.Join(fields, ","), strings.Join(messages, ", "))
}

// GetMe returns the caller's own record. A caller whose record is gone is
// treated as unauthenticated.
func (uc *Service) GetMe(ctx context.Context, in GetMeRequest) (*domain.User, error) {
	log := logger.WithContext(ctx, uc.log)

	if err := uc.validate.Struct(in); err != nil {
		return nil, apperrors.NewUnauthenticatedError(msgAuthRequired)
	}

	u, err := uc.repo.FindByID(ctx, in.CallerID)
	if err != nil {
		log.Error("failed to get current user", zap.Error(err))
		return nil, apperrors.NewInternalError("failed to get user", err)
	}
	if u == nil {
		log.Warn("session user no longer exists")
		return nil, apperrors.NewUnauthenticatedError(msgAuthRequired)
	}
	return u, nil
}

// ListUsers returns users in store order, optionally filtered and paginated.
func (uc *Service) ListUsers(ctx context.Context, in ListUsersRequest) (*ListUsersResponse, error) {
	log := logger.WithContext(ctx, uc.log)

	if err := uc.validate.Struct(in); err != nil {
		log.Warn("validate failed", zap.Error(err))
		return nil, formatValidationError(err)
	}

	log.Debug("listing users", zap.String("query", in.Query), zap.Int("limit", in.Limit), zap.Int("offset", in.Offset))

	users, err := uc.repo.FindAll(ctx, domain.ListOptions{Query: in.Query, Limit: in.Limit, Offset: in.Offset})
	if err != nil {
		if errors.Is(err, security.ErrQueryInvalidChars) || errors.Is(err, security.ErrQueryTooLong) {
			log.Warn("invalid search query", zap.String("query", in.Query), zap.Error(err))
			return nil, apperrors.NewValidationError("q", err.Error())
		}
		log.Error("failed to list users", zap.Error(err))
		return nil, apperrors.NewInternalError("failed to list users", err)
	}
	if users == nil {
		users = []domain.User{}
	}

	return &ListUsersResponse{Users: users}, nil
}

// UpdateMe applies a partial update to the caller's own record.
func (uc *Service) UpdateMe(ctx context.Context, in UpdateMeRequest) (*domain.User, error) {
	log := logger.WithContext(ctx, uc.log)

	if in.Email != nil {
		normalized := strings.ToLower(strings.TrimSpace(*in.Email))
		in.Email = &normalized
	}

	if err := uc.validate.Struct(in); err != nil {
		log.Warn("validate failed", zap.Error(err))
		return nil, formatValidationError(err)
	}

	log.Info("updating user")

	u, err := uc.repo.UpdateByID(ctx, in.CallerID, domain.UserUpdate{Name: in.Name, Email: in.Email})
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			log.Warn("email already exists")
			return nil, apperrors.NewValidationError("email", msgEmailAlreadyInUse)
		}
		log.Error("failed to update user", zap.Error(err))
		return nil, apperrors.NewInternalError("failed to update user", err)
	}
	if u == nil {
		return nil, apperrors.NewNotFoundError("user", msgUserNotFound)
	}
	return u, nil
}

// DeleteUser deletes the target user. Only the caller's own account may be deleted.
func (uc *Service) DeleteUser(ctx context.Context, in DeleteUserRequest) (*domain.User, error) {
	log := logger.WithContext(ctx, uc.log)

	if err := uc.validate.Struct(in); err != nil {
		log.Warn("validate failed", zap.Error(err))
		return nil, formatValidationError(err)
	}

	if in.CallerID != in.TargetID {
		log.Warn("refused to delete another user", zap.String("target_id", in.TargetID))
		return nil, apperrors.NewForbiddenError(msgDeleteOwnAccount)
	}

	u, err := uc.repo.DeleteByID(ctx, in.TargetID)
	if err != nil {
		log.Error("failed to delete user", zap.Error(err))
		return nil, apperrors.NewInternalError("failed to delete user", err)
	}
	if u == nil {
		return nil, apperrors.NewNotFoundError("user", msgUserNotFound)
	}

	log.Info("user deleted")
	return u, nil
}
