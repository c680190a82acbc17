package user

import (
	"context"

	domain "user-auth-service/internal/domain/user"
)

// Usecase defines the interface for user business logic operations.
type Usecase interface {
	GetMe(ctx context.Context, in GetMeRequest) (*domain.User, error)
	ListUsers(ctx context.Context, in ListUsersRequest) (*ListUsersResponse, error)
	UpdateMe(ctx context.Context, in UpdateMeRequest) (*domain.User, error)
	DeleteUser(ctx context.Context, in DeleteUserRequest) (*domain.User, error)
}

var _ Usecase = (*Service)(nil)
