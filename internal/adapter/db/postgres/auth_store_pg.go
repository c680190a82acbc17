package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"user-auth-service/internal/domain/session"
	"user-auth-service/internal/domain/user"
)

// AuthStorePG persists users, credential accounts and sessions for the auth service.
type AuthStorePG struct {
	db           *gorm.DB
	log          *zap.Logger
	queryTimeout time.Duration
}

// NewAuthStorePG creates a new instance of AuthStorePG.
func NewAuthStorePG(db *gorm.DB, queryTimeout time.Duration, log *zap.Logger) *AuthStorePG {
	return &AuthStorePG{db: db, log: log, queryTimeout: queryTimeout}
}

// SessionSchema represents the database schema for the sessions table.
type SessionSchema struct {
	ID        string    `gorm:"primaryKey;type:text"`
	Token     string    `gorm:"type:text;not null;uniqueIndex:sessions_token_key"`
	UserID    string    `gorm:"type:text;not null;index:sessions_user_id_idx"`
	ExpiresAt time.Time `gorm:"not null"`
	IPAddress *string   `gorm:"type:text"`
	UserAgent *string   `gorm:"type:text"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName specifies the table name for the SessionSchema model.
func (SessionSchema) TableName() string {
	return "sessions"
}

// AccountSchema represents the database schema for the accounts table.
type AccountSchema struct {
	ID         string    `gorm:"primaryKey;type:text"`
	AccountID  string    `gorm:"type:text;not null"`
	ProviderID string    `gorm:"type:text;not null"`
	UserID     string    `gorm:"type:text;not null;index:accounts_user_id_idx"`
	Password   *string   `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName specifies the table name for the AccountSchema model.
func (AccountSchema) TableName() string {
	return "accounts"
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (m SessionSchema) toDomain() session.Session {
	return session.Session{
		ID:        m.ID,
		Token:     m.Token,
		UserID:    m.UserID,
		ExpiresAt: m.ExpiresAt,
		IPAddress: deref(m.IPAddress),
		UserAgent: deref(m.UserAgent),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// CreateUser inserts a user and its credential account atomically.
// A taken email yields user.ErrEmailTaken.
func (s *AuthStorePG) CreateUser(ctx context.Context, u *user.User, acct *session.Account) error {
	if u == nil || acct == nil {
		return errors.New("user and account are required")
	}

	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		um := userSchemaFrom(u)
		if err := tx.Create(&um).Error; err != nil {
			return err
		}
		am := AccountSchema{
			ID:         acct.ID,
			AccountID:  acct.AccountID,
			ProviderID: acct.ProviderID,
			UserID:     acct.UserID,
			Password:   optional(acct.Password),
			CreatedAt:  acct.CreatedAt,
			UpdatedAt:  acct.UpdatedAt,
		}
		return tx.Create(&am).Error
	})
	if err != nil {
		if isDuplicateKey(err) {
			return user.ErrEmailTaken
		}
		s.log.Error("failed to create user in db", zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}

	s.log.Info("user created in db", zap.String("id", u.ID))
	return nil
}

// FindUserByEmail retrieves a user by exact email. A missing user yields nil, nil.
func (s *AuthStorePG) FindUserByEmail(ctx context.Context, email string) (*user.User, error) {
	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	var model UserSchema
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		s.log.Error("failed to get user by email from db", zap.Error(err))
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return model.toDomain(), nil
}

// FindCredentialAccount returns the email/password account of a user, or nil, nil.
func (s *AuthStorePG) FindCredentialAccount(ctx context.Context, userID string) (*session.Account, error) {
	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	var model AccountSchema
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND provider_id = ?", userID, session.CredentialProvider).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		s.log.Error("failed to get account from db", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &session.Account{
		ID:         model.ID,
		AccountID:  model.AccountID,
		ProviderID: model.ProviderID,
		UserID:     model.UserID,
		Password:   deref(model.Password),
		CreatedAt:  model.CreatedAt,
		UpdatedAt:  model.UpdatedAt,
	}, nil
}

// CreateSession stores a new session.
func (s *AuthStorePG) CreateSession(ctx context.Context, sess *session.Session) error {
	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	model := SessionSchema{
		ID:        sess.ID,
		Token:     sess.Token,
		UserID:    sess.UserID,
		ExpiresAt: sess.ExpiresAt,
		IPAddress: optional(sess.IPAddress),
		UserAgent: optional(sess.UserAgent),
		CreatedAt: sess.CreatedAt,
		UpdatedAt: sess.UpdatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		s.log.Error("failed to create session in db", zap.Error(err), zap.String("user_id", sess.UserID))
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindSession resolves a token to its session and user. A missing session
// or a session whose user no longer exists yields nil, nil.
func (s *AuthStorePG) FindSession(ctx context.Context, token string) (*session.Identity, error) {
	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	db := s.db.WithContext(ctx)

	var sm SessionSchema
	if err := db.Where("token = ?", token).First(&sm).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		s.log.Error("failed to get session from db", zap.Error(err))
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var um UserSchema
	if err := db.Where("id = ?", sm.UserID).First(&um).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		s.log.Error("failed to get session user from db", zap.Error(err), zap.String("user_id", sm.UserID))
		return nil, fmt.Errorf("failed to get session user: %w", err)
	}

	return &session.Identity{User: *um.toDomain(), Session: sm.toDomain()}, nil
}

// UpdateSessionExpiry moves the expiry of a session forward.
func (s *AuthStorePG) UpdateSessionExpiry(ctx context.Context, token string, expiresAt, updatedAt time.Time) error {
	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	err := s.db.WithContext(ctx).Model(&SessionSchema{}).
		Where("token = ?", token).
		Updates(map[string]any{"expires_at": expiresAt, "updated_at": updatedAt}).Error
	if err != nil {
		s.log.Error("failed to refresh session in db", zap.Error(err))
		return fmt.Errorf("failed to refresh session: %w", err)
	}
	return nil
}

// DeleteSession removes a session. Deleting an unknown token is not an error.
func (s *AuthStorePG) DeleteSession(ctx context.Context, token string) error {
	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	if err := s.db.WithContext(ctx).Where("token = ?", token).Delete(&SessionSchema{}).Error; err != nil {
		s.log.Error("failed to delete session in db", zap.Error(err))
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// AutoMigrate creates the tables from the schema models. Production uses
// the goose migrations; this is for in-memory test databases.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&UserSchema{}, &SessionSchema{}, &AccountSchema{})
}
