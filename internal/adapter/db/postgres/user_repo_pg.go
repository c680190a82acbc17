package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"user-auth-service/internal/domain/user"
	"user-auth-service/pkg/security"
)

// UserRepoPG implements the user Repository interface using PostgreSQL and GORM.
type UserRepoPG struct {
	db           *gorm.DB         // GORM database connection
	log          *zap.Logger      // Structured logger for database operations
	queryTimeout time.Duration    // Upper bound for a single repository call
	now          func() time.Time // Clock used for updated_at
}

// NewUserRepoPG creates a new instance of UserRepoPG.
func NewUserRepoPG(db *gorm.DB, queryTimeout time.Duration, log *zap.Logger) *UserRepoPG {
	return &UserRepoPG{db: db, log: log, queryTimeout: queryTimeout, now: time.Now}
}

// UserSchema represents the database schema for the users table.
type UserSchema struct {
	ID            string    `gorm:"primaryKey;type:text"`
	Email         string    `gorm:"type:text;not null;uniqueIndex:users_email_key"`
	Name          *string   `gorm:"type:text"`
	EmailVerified bool      `gorm:"not null;default:false"`
	Image         *string   `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

// TableName specifies the table name for the UserSchema model.
func (UserSchema) TableName() string {
	return "users"
}

func (m UserSchema) toDomain() *user.User {
	return &user.User{
		ID:            m.ID,
		Email:         m.Email,
		Name:          m.Name,
		EmailVerified: m.EmailVerified,
		Image:         m.Image,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func userSchemaFrom(u *user.User) UserSchema {
	return UserSchema{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		EmailVerified: u.EmailVerified,
		Image:         u.Image,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

// FindByID retrieves a user by id. A missing user yields nil, nil.
func (r *UserRepoPG) FindByID(ctx context.Context, id string) (*user.User, error) {
	ctx, cancel := withTimeout(ctx, r.queryTimeout)
	defer cancel()

	var model UserSchema
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.log.Debug("user not found", zap.String("id", id))
			return nil, nil
		}
		r.log.Error("failed to get user from db", zap.Error(err), zap.String("id", id))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return model.toDomain(), nil
}

// FindAll lists users in creation order, optionally filtered and paginated.
func (r *UserRepoPG) FindAll(ctx context.Context, opts user.ListOptions) ([]user.User, error) {
	ctx, cancel := withTimeout(ctx, r.queryTimeout)
	defer cancel()

	q := r.db.WithContext(ctx).Model(&UserSchema{})

	if opts.Query != "" {
		validated, err := security.ValidateSearchQuery(opts.Query)
		if err != nil {
			r.log.Warn("invalid search query", zap.Error(err))
			return nil, fmt.Errorf("invalid search query: %w", err)
		}
		if validated != "" {
			pattern := "%" + strings.ToLower(security.EscapeLike(validated)) + "%"
			q = q.Where(`LOWER(COALESCE(name, '')) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\'`, pattern, pattern)
		}
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	var models []UserSchema
	if err := q.Order("created_at ASC").Order("id ASC").Find(&models).Error; err != nil {
		r.log.Error("failed to list users from db", zap.Error(err), zap.Int("limit", opts.Limit), zap.Int("offset", opts.Offset))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]user.User, len(models))
	for i, model := range models {
		users[i] = *model.toDomain()
	}
	return users, nil
}

// UpdateByID applies a partial update and returns the stored record.
// A missing user yields nil, nil; an email collision yields user.ErrEmailTaken.
func (r *UserRepoPG) UpdateByID(ctx context.Context, id string, upd user.UserUpdate) (*user.User, error) {
	ctx, cancel := withTimeout(ctx, r.queryTimeout)
	defer cancel()

	var updated *user.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model UserSchema
		if err := tx.Where("id = ?", id).First(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		now := r.now()
		changes := map[string]any{"updated_at": now}
		if upd.Name != nil {
			changes["name"] = *upd.Name
			model.Name = upd.Name
		}
		if upd.Email != nil {
			changes["email"] = *upd.Email
			model.Email = *upd.Email
		}
		model.UpdatedAt = now

		if err := tx.Model(&UserSchema{}).Where("id = ?", id).Updates(changes).Error; err != nil {
			return err
		}
		updated = model.toDomain()
		return nil
	})
	if err != nil {
		if isDuplicateKey(err) {
			r.log.Warn("email already in use", zap.String("id", id))
			return nil, user.ErrEmailTaken
		}
		r.log.Error("failed to update user in db", zap.Error(err), zap.String("id", id))
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	if updated != nil {
		r.log.Info("user updated in db", zap.String("id", id))
	}
	return updated, nil
}

// DeleteByID removes a user together with its sessions and accounts and
// returns the record as it was before deletion. A missing user yields nil, nil.
func (r *UserRepoPG) DeleteByID(ctx context.Context, id string) (*user.User, error) {
	ctx, cancel := withTimeout(ctx, r.queryTimeout)
	defer cancel()

	var deleted *user.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model UserSchema
		if err := tx.Where("id = ?", id).First(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		if err := tx.Where("user_id = ?", id).Delete(&SessionSchema{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&AccountSchema{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id = ?", id).Delete(&UserSchema{}).Error; err != nil {
			return err
		}
		deleted = model.toDomain()
		return nil
	})
	if err != nil {
		r.log.Error("failed to delete user in db", zap.Error(err), zap.String("id", id))
		return nil, fmt.Errorf("failed to delete user: %w", err)
	}

	if deleted != nil {
		r.log.Info("user deleted in db", zap.String("id", id))
	}
	return deleted, nil
}

// EnsureUser inserts u unless a user with the same email exists.
// It reports whether a row was written.
func (r *UserRepoPG) EnsureUser(ctx context.Context, u *user.User) (bool, error) {
	if u == nil {
		return false, errors.New("user cannot be nil")
	}

	ctx, cancel := withTimeout(ctx, r.queryTimeout)
	defer cancel()

	model := userSchemaFrom(u)
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).
		Create(&model)
	if res.Error != nil {
		r.log.Error("failed to seed user", zap.Error(res.Error), zap.String("email", u.Email))
		return false, fmt.Errorf("failed to seed user: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Ping checks database connectivity.
func (r *UserRepoPG) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
