package user

import (
	"errors"
	"time"
)

// ErrEmailTaken is returned by the store when an update collides with another user's email.
var ErrEmailTaken = errors.New("email already in use")

// User represents a user entity in the system.
type User struct {
	ID            string    `json:"id"`            // ID is the opaque, immutable identifier
	Email         string    `json:"email"`         // Email is the unique email address of the user
	Name          *string   `json:"name"`          // Name is the optional display name
	EmailVerified bool      `json:"emailVerified"` // EmailVerified reports whether the email was confirmed
	Image         *string   `json:"image"`         // Image is the optional avatar reference
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// UserUpdate is a partial update; nil fields are left unchanged.
// The zero value only refreshes updated_at.
type UserUpdate struct {
	Name  *string
	Email *string
}

// ListOptions narrows FindAll. The zero value returns every user.
type ListOptions struct {
	Query  string // Query filters by name or email, case-insensitive
	Limit  int    // Limit caps the result size; 0 means unbounded
	Offset int
}
