package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/nerrad567/hydroponics-core/internal/infrastructure/config"
)

// seedPasswordBytes is the number of random bytes for a generated seed password.
const seedPasswordBytes = 16

// SeedUser creates the configured first account when the users table is empty.
//
// If cfg.Username is empty nothing happens. If cfg.Password is empty a random
// password is generated and logged once; it must be changed immediately.
// Returns the password used (empty if seeding was skipped).
func SeedUser(ctx context.Context, userRepo UserRepository, cfg config.SeedUserConfig, logger *slog.Logger) (string, error) {
	if cfg.Username == "" {
		return "", nil
	}

	count, err := userRepo.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("checking user count: %w", err)
	}
	if count > 0 {
		logger.Info("users exist, skipping seed user")
		return "", nil
	}

	password := cfg.Password
	generated := password == ""
	if generated {
		passwordBytes := make([]byte, seedPasswordBytes)
		if _, err := rand.Read(passwordBytes); err != nil { //nolint:govet // shadow: err re-declared in nested scope
			return "", fmt.Errorf("generating seed password: %w", err)
		}
		password = hex.EncodeToString(passwordBytes)
	}
	if err := ValidatePassword(password); err != nil {
		return "", fmt.Errorf("seed user: %w", err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing seed password: %w", err)
	}

	user := &User{
		Username:     cfg.Username,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := userRepo.Create(ctx, user); err != nil {
		return "", fmt.Errorf("creating seed user: %w", err)
	}

	if generated {
		logger.Warn("seed user created with generated password",
			"username", user.Username,
			"password", password,
			"action_required", "change this password immediately",
		)
	} else {
		logger.Info("seed user created", "username", user.Username, "id", user.ID)
	}
	return password, nil
}
