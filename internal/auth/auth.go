// Package auth implements email/password authentication with opaque,
// server-side sessions carried in signed cookies.
package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"user-auth-service/internal/domain/session"
	"user-auth-service/internal/domain/user"
	"user-auth-service/pkg/logger"
)

// dontRememberExpiresIn is the lifetime of sessions created with rememberMe=false.
const dontRememberExpiresIn = 24 * time.Hour

// Config configures the auth service.
type Config struct {
	Secret             string
	BaseURL            string
	TrustedOrigins     []string
	CookiePrefix       string
	SecureCookies      bool
	CookieCacheEnabled bool
	CookieCacheMaxAge  time.Duration
	SessionExpiresIn   time.Duration
	SessionUpdateAge   time.Duration
}

// Store persists users, credential accounts and sessions.
type Store interface {
	CreateUser(ctx context.Context, u *user.User, acct *session.Account) error
	FindUserByEmail(ctx context.Context, email string) (*user.User, error)
	FindCredentialAccount(ctx context.Context, userID string) (*session.Account, error)
	CreateSession(ctx context.Context, s *session.Session) error
	FindSession(ctx context.Context, token string) (*session.Identity, error)
	UpdateSessionExpiry(ctx context.Context, token string, expiresAt, updatedAt time.Time) error
	DeleteSession(ctx context.Context, token string) error
}

// Service issues, resolves and revokes sessions.
type Service struct {
	cfg      Config
	store    Store
	log      *zap.Logger
	validate *validator.Validate
	secret   []byte
	cookies  cookieNames
	origins  map[string]struct{}
	now      func() time.Time

	schemaOnce sync.Once
	schema     *OpenAPISchema
}

// New creates the auth service.
func New(cfg Config, store Store, log *zap.Logger) (*Service, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("auth secret must be at least 32 characters")
	}
	if cfg.CookiePrefix == "" {
		return nil, errors.New("auth cookie prefix is required")
	}
	if cfg.SessionExpiresIn <= 0 {
		return nil, errors.New("session lifetime must be positive")
	}

	origins := make(map[string]struct{}, len(cfg.TrustedOrigins)+1)
	for _, o := range append([]string{cfg.BaseURL}, cfg.TrustedOrigins...) {
		if o = normalizeOrigin(o); o != "" {
			origins[o] = struct{}{}
		}
	}

	return &Service{
		cfg:      cfg,
		store:    store,
		log:      log.Named("auth"),
		validate: validator.New(),
		secret:   []byte(cfg.Secret),
		cookies:  newCookieNames(cfg.CookiePrefix, cfg.SecureCookies),
		origins:  origins,
		now:      time.Now,
	}, nil
}

// RequestMeta describes the client that opened a session.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// SignUpInput is the payload of an email sign-up.
type SignUpInput struct {
	Email      string
	Password   string
	Name       *string
	Image      *string
	RememberMe bool
}

// SignInInput is the payload of an email sign-in.
type SignInInput struct {
	Email      string
	Password   string
	RememberMe bool
}

// SignUp creates a credential user and opens a session for it.
func (s *Service) SignUp(ctx context.Context, in SignUpInput, meta RequestMeta) (*session.Identity, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, ErrInvalidEmail
	}
	if err := checkPasswordLength(in.Password); err != nil {
		return nil, err
	}

	existing, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserAlreadyExists
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	u := &user.User{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      in.Name,
		Image:     in.Image,
		CreatedAt: now,
		UpdatedAt: now,
	}
	acct := &session.Account{
		ID:         uuid.NewString(),
		AccountID:  u.ID,
		ProviderID: session.CredentialProvider,
		UserID:     u.ID,
		Password:   hash,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateUser(ctx, u, acct); err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			return nil, ErrUserAlreadyExists
		}
		s.log.Error("failed to create user", zap.Error(err))
		return nil, ErrFailedToCreateUser
	}

	s.log.Info("user signed up", zap.String("user_id", u.ID))
	return s.openSession(ctx, u, meta, in.RememberMe)
}

// SignIn verifies credentials and opens a session.
func (s *Service) SignIn(ctx context.Context, in SignInInput, meta RequestMeta) (*session.Identity, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, ErrInvalidEmail
	}

	u, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		// equalize timing with the wrong-password path
		_, _ = HashPassword(in.Password)
		return nil, ErrInvalidEmailOrPassword
	}

	acct, err := s.store.FindCredentialAccount(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	if acct == nil || acct.Password == "" {
		return nil, ErrInvalidEmailOrPassword
	}

	ok, err := VerifyPassword(acct.Password, in.Password)
	if err != nil {
		s.log.Error("stored password hash is unreadable", zap.String("user_id", u.ID), zap.Error(err))
		return nil, ErrInvalidEmailOrPassword
	}
	if !ok {
		return nil, ErrInvalidEmailOrPassword
	}

	logger.WithContext(logger.WithUserID(ctx, u.ID), s.log).Info("user signed in")
	return s.openSession(ctx, u, meta, in.RememberMe)
}

// SignOut revokes the session carried by the request headers, if any.
func (s *Service) SignOut(ctx context.Context, h http.Header) error {
	token, ok := s.sessionToken(h)
	if !ok {
		return nil
	}
	return s.store.DeleteSession(ctx, token)
}

// GetSession resolves request headers to the caller's identity.
// It returns nil, nil when the request carries no valid session.
func (s *Service) GetSession(ctx context.Context, h http.Header) (*session.Identity, error) {
	ident, _, err := s.resolve(ctx, h)
	return ident, err
}

// resolve looks the session up, first in the cookie cache and then in the
// store, and slides the expiry forward once the session is older than the
// update age. refreshed reports that the expiry moved.
func (s *Service) resolve(ctx context.Context, h http.Header) (ident *session.Identity, refreshed bool, err error) {
	token, ok := s.sessionToken(h)
	if !ok {
		return nil, false, nil
	}
	now := s.now()

	if s.cfg.CookieCacheEnabled {
		if raw, ok := readCookie(h, s.cookies.data); ok {
			cached, err := decodeSessionData(raw, now, s.secret)
			if err == nil && cached.Session.Token == token && !cached.Session.Expired(now) {
				return cached, false, nil
			}
		}
	}

	ident, err = s.store.FindSession(ctx, token)
	if err != nil {
		return nil, false, fmt.Errorf("find session: %w", err)
	}
	if ident == nil {
		return nil, false, nil
	}

	if ident.Session.Expired(now) {
		if err := s.store.DeleteSession(ctx, token); err != nil {
			s.log.Warn("failed to delete expired session", zap.Error(err))
		}
		return nil, false, nil
	}

	if s.cfg.SessionUpdateAge > 0 && !s.dontRemember(h) {
		dueAt := ident.Session.ExpiresAt.Add(-s.cfg.SessionExpiresIn).Add(s.cfg.SessionUpdateAge)
		if !now.Before(dueAt) {
			expiresAt := now.Add(s.cfg.SessionExpiresIn)
			if err := s.store.UpdateSessionExpiry(ctx, token, expiresAt, now); err != nil {
				return nil, false, fmt.Errorf("refresh session: %w", err)
			}
			ident.Session.ExpiresAt = expiresAt
			ident.Session.UpdatedAt = now
			refreshed = true
		}
	}

	return ident, refreshed, nil
}

func (s *Service) openSession(ctx context.Context, u *user.User, meta RequestMeta, rememberMe bool) (*session.Identity, error) {
	now := s.now()
	expiresIn := s.cfg.SessionExpiresIn
	if !rememberMe {
		expiresIn = dontRememberExpiresIn
	}

	sess := session.Session{
		ID:        uuid.NewString(),
		Token:     rand.Text(),
		UserID:    u.ID,
		ExpiresAt: now.Add(expiresIn),
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateSession(ctx, &sess); err != nil {
		s.log.Error("failed to create session", zap.String("user_id", u.ID), zap.Error(err))
		return nil, ErrFailedToCreateSession
	}
	return &session.Identity{User: *u, Session: sess}, nil
}

func checkPasswordLength(password string) error {
	switch n := len(password); {
	case n < MinPasswordLength:
		return ErrPasswordTooShort
	case n > MaxPasswordLength:
		return ErrPasswordTooLong
	}
	return nil
}

// TrustedOrigin reports whether origin may issue state-changing requests.
func (s *Service) TrustedOrigin(origin string) bool {
	_, ok := s.origins[normalizeOrigin(origin)]
	return ok
}

func normalizeOrigin(o string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(o)), "/")
}
