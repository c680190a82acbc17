package cached

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"user-auth-service/internal/adapter/cache"
	domain "user-auth-service/internal/domain/user"
	"user-auth-service/internal/usecase/user"
)

// UserRepository implements user.Repository with caching support.
// It wraps a persistent repository (DB) and a cache implementation.
type UserRepository struct {
	dbRepo user.Repository
	cache  cache.UserCache
	log    *zap.Logger
	group  singleflight.Group
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(dbRepo user.Repository, cache cache.UserCache, log *zap.Logger) *UserRepository {
	return &UserRepository{
		dbRepo: dbRepo,
		cache:  cache,
		log:    log,
	}
}

// FindByID retrieves a user by ID using Cache-Aside pattern.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	if cachedUser, err := r.cache.Get(ctx, id); err != nil {
		r.log.Warn("cache get error, falling back to database", zap.String("id", id), zap.Error(err))
	} else if cachedUser != nil {
		return cachedUser, nil
	}

	// Concurrent misses for one id share a single database read
	result, err, _ := r.group.Do(cache.Key(id), func() (any, error) {
		if cachedUser, err := r.cache.Get(ctx, id); err == nil && cachedUser != nil {
			return cachedUser, nil
		}

		u, err := r.dbRepo.FindByID(ctx, id)
		if err != nil || u == nil {
			return u, err
		}

		if err := r.cache.Set(ctx, u); err != nil {
			r.log.Warn("failed to cache user", zap.String("id", id), zap.Error(err))
		}
		return u, nil
	})
	if err != nil {
		return nil, err
	}

	u, _ := result.(*domain.User)
	return u, nil
}

// FindAll delegates to the DB repository.
func (r *UserRepository) FindAll(ctx context.Context, opts domain.ListOptions) ([]domain.User, error) {
	return r.dbRepo.FindAll(ctx, opts)
}

// UpdateByID updates the user in DB and invalidates the cache.
func (r *UserRepository) UpdateByID(ctx context.Context, id string, upd domain.UserUpdate) (*domain.User, error) {
	u, err := r.dbRepo.UpdateByID(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	r.invalidate(ctx, id, "update")
	return u, nil
}

// DeleteByID deletes the user from DB and invalidates the cache.
func (r *UserRepository) DeleteByID(ctx context.Context, id string) (*domain.User, error) {
	u, err := r.dbRepo.DeleteByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.invalidate(ctx, id, "delete")
	return u, nil
}

func (r *UserRepository) invalidate(ctx context.Context, id, op string) {
	if err := r.cache.Delete(ctx, id); err != nil {
		r.log.Warn("failed to invalidate cache", zap.String("op", op), zap.String("id", id), zap.Error(err))
	}
}
