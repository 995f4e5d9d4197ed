package auth

import (
	"context"
	"errors"
	"testing"
)

func TestUserRepository_CreateAndGet(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db.DB)
	ctx := context.Background()

	user := &User{Username: "grower", PasswordHash: "$argon2id$stub", IsActive: true}
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(user.ID) != len("usr-")+8 {
		t.Errorf("ID = %q, want usr- prefix and 8 chars", user.ID)
	}
	if user.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	byID, err := repo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	byName, err := repo.GetByUsername(ctx, "grower")
	if err != nil {
		t.Fatalf("GetByUsername() error = %v", err)
	}
	for _, got := range []*User{byID, byName} {
		if got.ID != user.ID || got.Username != "grower" || !got.IsActive || got.PasswordHash != "$argon2id$stub" {
			t.Errorf("got %+v", got)
		}
	}

	if _, err := repo.GetByUsername(ctx, "nobody"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetByUsername(nobody) error = %v, want ErrUserNotFound", err)
	}
}

func TestUserRepository_CreateRejects(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db.DB)
	ctx := context.Background()

	if err := repo.Create(ctx, &User{Username: "grower", PasswordHash: "h"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Create(ctx, &User{Username: "grower", PasswordHash: "h"}); !errors.Is(err, ErrUsernameExists) {
		t.Errorf("duplicate Create() error = %v, want ErrUsernameExists", err)
	}
	for _, name := range []string{"", "has space", "slash/y", "plus+", "hash#"} {
		if err := repo.Create(ctx, &User{Username: name, PasswordHash: "h"}); !errors.Is(err, ErrInvalidUsername) {
			t.Errorf("Create(%q) error = %v, want ErrInvalidUsername", name, err)
		}
	}
}

func TestUserRepository_ListAndCount(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db.DB)
	ctx := context.Background()

	if n, err := repo.Count(ctx); err != nil || n != 0 {
		t.Fatalf("Count() = %d, %v; want 0", n, err)
	}
	users, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if users == nil || len(users) != 0 {
		t.Errorf("List() on empty db = %v, want empty slice", users)
	}

	seedTestUser(t, db, "bea")
	seedTestUser(t, db, "al")

	if n, err := repo.Count(ctx); err != nil || n != 2 {
		t.Errorf("Count() = %d, %v; want 2", n, err)
	}
	users, err = repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(users) != 2 {
		t.Errorf("len(List()) = %d, want 2", len(users))
	}
}

func TestUserRepository_SetActiveAndPassword(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db.DB)
	ctx := context.Background()
	user := seedTestUser(t, db, "grower")

	if err := repo.SetActive(ctx, user.ID, false); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}
	if err := repo.UpdatePassword(ctx, user.ID, "new-hash"); err != nil {
		t.Fatalf("UpdatePassword() error = %v", err)
	}
	got, err := repo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.IsActive {
		t.Error("IsActive = true after SetActive(false)")
	}
	if got.PasswordHash != "new-hash" {
		t.Errorf("PasswordHash = %q, want new-hash", got.PasswordHash)
	}

	if err := repo.SetActive(ctx, "usr-missing", true); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("SetActive(missing) error = %v, want ErrUserNotFound", err)
	}
	if err := repo.UpdatePassword(ctx, "usr-missing", "x"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("UpdatePassword(missing) error = %v, want ErrUserNotFound", err)
	}
}
