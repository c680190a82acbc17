package session

import (
	"time"

	"user-auth-service/internal/domain/user"
)

// CredentialProvider is the provider id of email/password accounts.
const CredentialProvider = "credential"

// Session is an authenticated login, addressed by its opaque token.
type Session struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
	IPAddress string    `json:"ipAddress,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Expired reports whether the session is no longer valid at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Account links a user to an authentication provider.
type Account struct {
	ID         string
	AccountID  string
	ProviderID string
	UserID     string
	Password   string // Password holds the hash for credential accounts
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Identity is what a valid session resolves to.
type Identity struct {
	User    user.User `json:"user"`
	Session Session   `json:"session"`
}
