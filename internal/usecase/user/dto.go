package user

import domain "user-auth-service/internal/domain/user"

// GetMeRequest identifies the authenticated caller.
type GetMeRequest struct {
	CallerID string `validate:"required"`
}

// ListUsersRequest represents the request payload for listing users.
// The zero value lists every user.
type ListUsersRequest struct {
	Query  string `validate:"max=100"`
	Limit  int    `validate:"gte=0,lte=100"`
	Offset int    `validate:"gte=0"`
}

// ListUsersResponse represents the response payload for user listing.
type ListUsersResponse struct {
	Users []domain.User
}

// UpdateMeRequest is a partial update of the caller's own record.
type UpdateMeRequest struct {
	CallerID string  `validate:"required"`
	Name     *string `validate:"omitnil,min=1"`
	Email    *string `validate:"omitnil,email"`
}

// DeleteUserRequest represents the request payload for deleting a user.
type DeleteUserRequest struct {
	CallerID string `validate:"required"`
	TargetID string `validate:"required"`
}
