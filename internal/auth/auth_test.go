package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"user-auth-service/internal/domain/session"
	"user-auth-service/internal/domain/user"
)

// memStore is an in-memory Store.
type memStore struct {
	mu       sync.Mutex
	users    map[string]user.User
	accounts map[string]session.Account
	sessions map[string]session.Session
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[string]user.User{},
		accounts: map[string]session.Account{},
		sessions: map[string]session.Session{},
	}
}

func (m *memStore) CreateUser(_ context.Context, u *user.User, acct *session.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return user.ErrEmailTaken
		}
	}
	m.users[u.ID] = *u
	m.accounts[acct.UserID] = *acct
	return nil
}

func (m *memStore) FindUserByEmail(_ context.Context, email string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

func (m *memStore) FindCredentialAccount(_ context.Context, userID string) (*session.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[userID]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *memStore) CreateSession(_ context.Context, s *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.Token] = *s
	return nil
}

func (m *memStore) FindSession(_ context.Context, token string) (*session.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	if !ok {
		return nil, nil
	}
	u, ok := m.users[s.UserID]
	if !ok {
		return nil, nil
	}
	return &session.Identity{User: u, Session: s}, nil
}

func (m *memStore) UpdateSessionExpiry(_ context.Context, token string, expiresAt, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[token]
	s.ExpiresAt = expiresAt
	s.UpdatedAt = updatedAt
	m.sessions[token] = s
	return nil
}

func (m *memStore) DeleteSession(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

func (m *memStore) deleteUser(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
}

func (m *memStore) session(token string) (session.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	return s, ok
}

func testConfig() Config {
	return Config{
		Secret:            string(testSecret),
		BaseURL:           "http://localhost:3003",
		TrustedOrigins:    []string{"http://localhost:5173"},
		CookiePrefix:      "myapp",
		CookieCacheMaxAge: 5 * time.Minute,
		SessionExpiresIn:  7 * 24 * time.Hour,
		SessionUpdateAge:  24 * time.Hour,
	}
}

func newTestService(t *testing.T, cfg Config) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	svc, err := New(cfg, store, zaptest.NewLogger(t))
	require.NoError(t, err)
	return svc, store
}

// cookieHeader builds a request header carrying the cookies set on w.
func cookieHeader(w *httptest.ResponseRecorder) http.Header {
	h := http.Header{}
	for _, c := range w.Result().Cookies() {
		if c.MaxAge < 0 {
			continue
		}
		h.Add("Cookie", c.Name+"="+c.Value)
	}
	return h
}

func TestNew_Validation(t *testing.T) {
	cfg := testConfig()
	cfg.Secret = "short"
	_, err := New(cfg, newMemStore(), zaptest.NewLogger(t))
	assert.Error(t, err)

	cfg = testConfig()
	cfg.CookiePrefix = ""
	_, err = New(cfg, newMemStore(), zaptest.NewLogger(t))
	assert.Error(t, err)

	cfg = testConfig()
	cfg.SessionExpiresIn = 0
	_, err = New(cfg, newMemStore(), zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestSignUp(t *testing.T) {
	svc, _ := newTestService(t, testConfig())
	ctx := context.Background()
	name := "Ann"

	ident, err := svc.SignUp(ctx, SignUpInput{Email: " Ann@Example.com ", Password: "password123", Name: &name, RememberMe: true}, RequestMeta{UserAgent: "test"})
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", ident.User.Email)
	assert.Equal(t, "Ann", *ident.User.Name)
	assert.NotEmpty(t, ident.User.ID)
	assert.NotEmpty(t, ident.Session.Token)
	assert.Equal(t, ident.User.ID, ident.Session.UserID)
	assert.Equal(t, "test", ident.Session.UserAgent)

	tests := []struct {
		name string
		in   SignUpInput
		want error
	}{
		{name: "duplicate email", in: SignUpInput{Email: "ann@example.com", Password: "password123"}, want: ErrUserAlreadyExists},
		{name: "invalid email", in: SignUpInput{Email: "not-an-email", Password: "password123"}, want: ErrInvalidEmail},
		{name: "short password", in: SignUpInput{Email: "bob@example.com", Password: "short"}, want: ErrPasswordTooShort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SignUp(ctx, tt.in, RequestMeta{})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSignIn(t *testing.T) {
	svc, _ := newTestService(t, testConfig())
	ctx := context.Background()

	_, err := svc.SignUp(ctx, SignUpInput{Email: "ann@example.com", Password: "password123", RememberMe: true}, RequestMeta{})
	require.NoError(t, err)

	ident, err := svc.SignIn(ctx, SignInInput{Email: "ANN@example.com", Password: "password123", RememberMe: true}, RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", ident.User.Email)

	_, err = svc.SignIn(ctx, SignInInput{Email: "ann@example.com", Password: "wrong-password"}, RequestMeta{})
	assert.ErrorIs(t, err, ErrInvalidEmailOrPassword)

	_, err = svc.SignIn(ctx, SignInInput{Email: "ghost@example.com", Password: "password123"}, RequestMeta{})
	assert.ErrorIs(t, err, ErrInvalidEmailOrPassword)
}

func TestSignIn_DontRememberShortensSession(t *testing.T) {
	svc, _ := newTestService(t, testConfig())
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	ident, err := svc.SignUp(context.Background(), SignUpInput{Email: "ann@example.com", Password: "password123"}, RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, now.Add(dontRememberExpiresIn), ident.Session.ExpiresAt)
}

func TestGetSession(t *testing.T) {
	svc, store := newTestService(t, testConfig())
	ctx := context.Background()

	ident, err := svc.SignUp(ctx, SignUpInput{Email: "ann@example.com", Password: "password123", RememberMe: true}, RequestMeta{})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	require.NoError(t, svc.setSessionCookies(w, ident, false))
	h := cookieHeader(w)

	t.Run("valid cookie", func(t *testing.T) {
		got, err := svc.GetSession(ctx, h)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, ident.User.ID, got.User.ID)
	})

	t.Run("no cookie", func(t *testing.T) {
		got, err := svc.GetSession(ctx, http.Header{})
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("unsigned token", func(t *testing.T) {
		bad := http.Header{}
		bad.Add("Cookie", "myapp.session_token="+ident.Session.Token)
		got, err := svc.GetSession(ctx, bad)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("deleted user", func(t *testing.T) {
		store.deleteUser(ident.User.ID)
		got, err := svc.GetSession(ctx, h)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestGetSession_ExpiredSessionIsRemoved(t *testing.T) {
	svc, store := newTestService(t, testConfig())
	ctx := context.Background()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	ident, err := svc.SignUp(ctx, SignUpInput{Email: "ann@example.com", Password: "password123", RememberMe: true}, RequestMeta{})
	require.NoError(t, err)
	w := httptest.NewRecorder()
	require.NoError(t, svc.setSessionCookies(w, ident, false))

	svc.now = func() time.Time { return start.Add(8 * 24 * time.Hour) }
	got, err := svc.GetSession(ctx, cookieHeader(w))
	require.NoError(t, err)
	assert.Nil(t, got)

	_, ok := store.session(ident.Session.Token)
	assert.False(t, ok)
}

func TestGetSession_SlidingRefresh(t *testing.T) {
	svc, store := newTestService(t, testConfig())
	ctx := context.Background()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	ident, err := svc.SignUp(ctx, SignUpInput{Email: "ann@example.com", Password: "password123", RememberMe: true}, RequestMeta{})
	require.NoError(t, err)
	w := httptest.NewRecorder()
	require.NoError(t, svc.setSessionCookies(w, ident, false))
	h := cookieHeader(w)

	svc.now = func() time.Time { return start.Add(time.Hour) }
	_, refreshed, err := svc.resolve(ctx, h)
	require.NoError(t, err)
	assert.False(t, refreshed, "younger than update age")

	later := start.Add(2 * 24 * time.Hour)
	svc.now = func() time.Time { return later }
	got, refreshed, err := svc.resolve(ctx, h)
	require.NoError(t, err)
	assert.True(t, refreshed)
	assert.Equal(t, later.Add(7*24*time.Hour), got.Session.ExpiresAt)

	stored, ok := store.session(ident.Session.Token)
	require.True(t, ok)
	assert.Equal(t, later.Add(7*24*time.Hour), stored.ExpiresAt)
}

func TestGetSession_CookieCache(t *testing.T) {
	cfg := testConfig()
	cfg.CookieCacheEnabled = true
	svc, store := newTestService(t, cfg)
	ctx := context.Background()

	ident, err := svc.SignUp(ctx, SignUpInput{Email: "ann@example.com", Password: "password123", RememberMe: true}, RequestMeta{})
	require.NoError(t, err)
	w := httptest.NewRecorder()
	require.NoError(t, svc.setSessionCookies(w, ident, false))
	h := cookieHeader(w)

	require.NoError(t, store.DeleteSession(ctx, ident.Session.Token))

	got, err := svc.GetSession(ctx, h)
	require.NoError(t, err)
	require.NotNil(t, got, "cached identity is served without the store")
	assert.Equal(t, ident.User.ID, got.User.ID)
}

func TestSignOut(t *testing.T) {
	svc, store := newTestService(t, testConfig())
	ctx := context.Background()

	ident, err := svc.SignUp(ctx, SignUpInput{Email: "ann@example.com", Password: "password123", RememberMe: true}, RequestMeta{})
	require.NoError(t, err)
	w := httptest.NewRecorder()
	require.NoError(t, svc.setSessionCookies(w, ident, false))

	require.NoError(t, svc.SignOut(ctx, cookieHeader(w)))
	_, ok := store.session(ident.Session.Token)
	assert.False(t, ok)

	assert.NoError(t, svc.SignOut(ctx, http.Header{}))
}

func TestTrustedOrigin(t *testing.T) {
	svc, _ := newTestService(t, testConfig())

	assert.True(t, svc.TrustedOrigin("http://localhost:3003"))
	assert.True(t, svc.TrustedOrigin("http://localhost:5173/"))
	assert.False(t, svc.TrustedOrigin("https://evil.example.com"))
}
