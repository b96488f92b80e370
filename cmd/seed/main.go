package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/oksasatya/ailens-auth/config"
	"github.com/oksasatya/ailens-auth/internal/application"
	"github.com/oksasatya/ailens-auth/internal/domain/apperr"
	pginfra "github.com/oksasatya/ailens-auth/internal/infrastructure/postgres"
	"github.com/oksasatya/ailens-auth/pkg/helpers"
)

// Seeds a demo account with verified email and phone.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-seed", cfg.Env)
	ctx := context.Background()

	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), pginfra.PoolOptions{MaxConns: 2})
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	if err := pginfra.Migrate(cfg.PostgresDSN(), cfg.MigrationsDir, logger); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	hasher, err := helpers.NewPasswordHasher(cfg.BcryptCost)
	if err != nil {
		log.Fatalf("invalid bcrypt cost: %v", err)
	}
	store := application.NewCredentialStore(pginfra.NewAccountRepository(pool), hasher)

	email := getenv("SEED_EMAIL", "demo@ailens.local")
	password := getenv("SEED_PASSWORD", "password123")
	a, err := store.Create(ctx, application.NewAccount{
		FirstName:     "Demo",
		LastName:      "User",
		Email:         email,
		Phone:         getenv("SEED_PHONE", "+620000000000"),
		Password:      password,
		EmailVerified: true,
		PhoneVerified: true,
	})
	if apperr.IsKind(err, apperr.KindDuplicate) {
		fmt.Printf("seed account already exists: email=%s\n", email)
		return
	}
	if err != nil {
		log.Fatalf("failed to seed account: %v", err)
	}
	fmt.Printf("seeded account: id=%s email=%s password=%s\n", a.ID, a.Identity.Email, password)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
