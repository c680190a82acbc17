// Command migrate applies the database migrations and optionally seeds an admin user.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"user-auth-service/cmd/api/infrastructure"
	"user-auth-service/internal/adapter/db/postgres"
	"user-auth-service/internal/config"
	"user-auth-service/internal/domain/user"
	"user-auth-service/pkg/logger"
)

const (
	seedEmail = "admin@example.com"
	seedName  = "Admin"
)

func main() {
	withSeed := flag.Bool("seed", false, "insert "+seedEmail+" if it does not exist")
	flag.Parse()

	if err := run(*withSeed); err != nil {
		log.Fatalf("migrate: %v", err)
	}
}

func run(withSeed bool) error {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "."
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	l, err := logger.NewWithConfig(logger.Config{
		Level:          cfg.Logger.Level,
		Format:         cfg.Logger.Format,
		OutputPath:     "stderr",
		ServiceName:    "user-auth-service-migrate",
		ServiceVersion: cfg.Logger.ServiceVersion,
		Environment:    cfg.App.Env,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cfg.DB.MigrateOnStart = true
	db, err := infrastructure.NewDatabase(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer func() { _ = infrastructure.CloseDatabase(db) }()

	if !withSeed {
		return nil
	}

	created, err := seed(ctx, postgres.NewUserRepoPG(db, cfg.DB.QueryTimeoutDuration(), l), time.Now())
	if err != nil {
		return err
	}
	l.Info("seed complete", zap.String("email", seedEmail), zap.Bool("created", created))
	return nil
}

type seeder interface {
	EnsureUser(ctx context.Context, u *user.User) (bool, error)
}

// seed inserts the admin user unless its email is already taken.
func seed(ctx context.Context, s seeder, now time.Time) (bool, error) {
	name := seedName
	return s.EnsureUser(ctx, &user.User{
		ID:            uuid.NewString(),
		Email:         seedEmail,
		Name:          &name,
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
}
