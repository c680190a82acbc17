package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"user-auth-service/internal/domain/session"
	"user-auth-service/internal/domain/user"
)

func newCredentialUser(id, email string, now time.Time) (*user.User, *session.Account) {
	u := &user.User{ID: id, Email: email, CreatedAt: now, UpdatedAt: now}
	acct := &session.Account{
		ID:         "acct-" + id,
		AccountID:  id,
		ProviderID: session.CredentialProvider,
		UserID:     id,
		Password:   "salt:hash",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return u, acct
}

func TestAuthStorePG_CreateUser(t *testing.T) {
	store := NewAuthStorePG(setupTestDB(t), time.Second, zaptest.NewLogger(t))
	ctx := context.Background()
	now := time.Now().UTC()

	u, acct := newCredentialUser("u1", "ann@example.com", now)
	require.NoError(t, store.CreateUser(ctx, u, acct))

	found, err := store.FindUserByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "u1", found.ID)

	account, err := store.FindCredentialAccount(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, "salt:hash", account.Password)
	assert.Equal(t, session.CredentialProvider, account.ProviderID)

	t.Run("duplicate email", func(t *testing.T) {
		dup, dupAcct := newCredentialUser("u2", "ann@example.com", now)
		err := store.CreateUser(ctx, dup, dupAcct)
		assert.ErrorIs(t, err, user.ErrEmailTaken)

		orphan, err := store.FindCredentialAccount(ctx, "u2")
		require.NoError(t, err)
		assert.Nil(t, orphan)
	})

	t.Run("missing lookups", func(t *testing.T) {
		missing, err := store.FindUserByEmail(ctx, "nobody@example.com")
		require.NoError(t, err)
		assert.Nil(t, missing)

		noAcct, err := store.FindCredentialAccount(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, noAcct)
	})

	t.Run("nil arguments", func(t *testing.T) {
		assert.Error(t, store.CreateUser(ctx, nil, nil))
	})
}

func TestAuthStorePG_SessionLifecycle(t *testing.T) {
	store := NewAuthStorePG(setupTestDB(t), time.Second, zaptest.NewLogger(t))
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	u, acct := newCredentialUser("u1", "ann@example.com", now)
	require.NoError(t, store.CreateUser(ctx, u, acct))

	sess := &session.Session{
		ID:        "s1",
		Token:     "tok-1",
		UserID:    "u1",
		ExpiresAt: now.Add(time.Hour),
		UserAgent: "go-test",
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.CreateSession(ctx, sess))

	ident, err := store.FindSession(ctx, "tok-1")
	require.NoError(t, err)
	require.NotNil(t, ident)
	assert.Equal(t, "u1", ident.User.ID)
	assert.Equal(t, "ann@example.com", ident.User.Email)
	assert.Equal(t, "s1", ident.Session.ID)
	assert.Equal(t, "go-test", ident.Session.UserAgent)
	assert.Empty(t, ident.Session.IPAddress)
	assert.True(t, sess.ExpiresAt.Equal(ident.Session.ExpiresAt))

	later := now.Add(24 * time.Hour)
	require.NoError(t, store.UpdateSessionExpiry(ctx, "tok-1", later, now.Add(time.Minute)))
	ident, err = store.FindSession(ctx, "tok-1")
	require.NoError(t, err)
	assert.True(t, later.Equal(ident.Session.ExpiresAt))

	require.NoError(t, store.DeleteSession(ctx, "tok-1"))
	ident, err = store.FindSession(ctx, "tok-1")
	require.NoError(t, err)
	assert.Nil(t, ident)

	assert.NoError(t, store.DeleteSession(ctx, "tok-1"))
}

func TestAuthStorePG_FindSession_OrphanedSession(t *testing.T) {
	db := setupTestDB(t)
	store := NewAuthStorePG(db, time.Second, zaptest.NewLogger(t))
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.CreateSession(ctx, &session.Session{
		ID: "s1", Token: "tok-orphan", UserID: "deleted-user", ExpiresAt: now.Add(time.Hour), CreatedAt: now, UpdatedAt: now,
	}))

	ident, err := store.FindSession(ctx, "tok-orphan")
	require.NoError(t, err)
	assert.Nil(t, ident)
}
