package auth

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nerrad567/hydroponics-core/internal/infrastructure/database"
	_ "github.com/nerrad567/hydroponics-core/migrations"
)

const testSecret = "test-secret-key-for-jwt-signing-32b"

// testDB opens a migrated database in the test's temp dir.
func testDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "auth.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	return db
}

// seedTestUser inserts an active user with password "test-password".
func seedTestUser(t *testing.T, db *database.DB, username string) *User {
	t.Helper()

	user, err := CreateUser(context.Background(), NewUserRepository(db.DB), username, "test-password")
	if err != nil {
		t.Fatalf("creating test user %s: %v", username, err)
	}
	return user
}
