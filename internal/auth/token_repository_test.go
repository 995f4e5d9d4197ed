package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTokenRepository_CreateAndGetByHash(t *testing.T) {
	db := testDB(t)
	user := seedTestUser(t, db, "tokenuser")
	repo := NewTokenRepository(db.DB)
	ctx := context.Background()

	token := &RefreshToken{
		UserID:     user.ID,
		TokenHash:  HashToken("raw-refresh-token"),
		DeviceInfo: "sensor-gateway",
		ExpiresAt:  time.Now().Add(24 * time.Hour),
	}
	if err := repo.Create(ctx, token); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if token.ID == "" || token.FamilyID == "" {
		t.Fatal("Create() should generate ID and FamilyID")
	}

	got, err := repo.GetByTokenHash(ctx, HashToken("raw-refresh-token"))
	if err != nil {
		t.Fatalf("GetByTokenHash() error = %v", err)
	}
	if got.ID != token.ID || got.UserID != user.ID || got.DeviceInfo != "sensor-gateway" || got.Revoked {
		t.Errorf("got %+v", got)
	}

	if _, err := repo.GetByTokenHash(ctx, HashToken("unknown")); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("GetByTokenHash(unknown) error = %v, want ErrTokenInvalid", err)
	}
}

func TestTokenRepository_Rotate(t *testing.T) {
	db := testDB(t)
	user := seedTestUser(t, db, "rotator")
	repo := NewTokenRepository(db.DB)
	ctx := context.Background()

	old := &RefreshToken{UserID: user.ID, TokenHash: HashToken("old"), ExpiresAt: time.Now().Add(time.Hour)}
	if err := repo.Create(ctx, old); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	next := &RefreshToken{UserID: user.ID, FamilyID: old.FamilyID, TokenHash: HashToken("new"), ExpiresAt: time.Now().Add(time.Hour)}
	if err := repo.RotateRefreshToken(ctx, old.ID, next); err != nil {
		t.Fatalf("RotateRefreshToken() error = %v", err)
	}

	gotOld, err := repo.GetByTokenHash(ctx, HashToken("old"))
	if err != nil {
		t.Fatalf("GetByTokenHash(old) error = %v", err)
	}
	if !gotOld.Revoked {
		t.Error("old token should be revoked after rotation")
	}
	gotNew, err := repo.GetByTokenHash(ctx, HashToken("new"))
	if err != nil {
		t.Fatalf("GetByTokenHash(new) error = %v", err)
	}
	if gotNew.FamilyID != old.FamilyID {
		t.Errorf("FamilyID = %q, want %q", gotNew.FamilyID, old.FamilyID)
	}

	again := &RefreshToken{UserID: user.ID, TokenHash: HashToken("again"), ExpiresAt: time.Now().Add(time.Hour)}
	if err := repo.RotateRefreshToken(ctx, old.ID, again); !errors.Is(err, ErrTokenReuse) {
		t.Errorf("second rotation error = %v, want ErrTokenReuse", err)
	}
	if _, err := repo.GetByTokenHash(ctx, HashToken("again")); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("failed rotation left a token behind: %v", err)
	}
}

func TestTokenRepository_RevokeFamilyAndUser(t *testing.T) {
	db := testDB(t)
	user := seedTestUser(t, db, "family")
	repo := NewTokenRepository(db.DB)
	ctx := context.Background()

	a := &RefreshToken{UserID: user.ID, TokenHash: HashToken("a"), ExpiresAt: time.Now().Add(time.Hour)}
	b := &RefreshToken{UserID: user.ID, TokenHash: HashToken("b"), ExpiresAt: time.Now().Add(time.Hour)}
	for _, tok := range []*RefreshToken{a, b} {
		if err := repo.Create(ctx, tok); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	if err := repo.RevokeFamily(ctx, a.FamilyID); err != nil {
		t.Fatalf("RevokeFamily() error = %v", err)
	}
	gotA, _ := repo.GetByTokenHash(ctx, HashToken("a")) //nolint:errcheck // checked via field
	gotB, _ := repo.GetByTokenHash(ctx, HashToken("b")) //nolint:errcheck // checked via field
	if !gotA.Revoked || gotB.Revoked {
		t.Errorf("after RevokeFamily(a): a revoked=%v b revoked=%v, want true false", gotA.Revoked, gotB.Revoked)
	}

	if err := repo.RevokeAllForUser(ctx, user.ID); err != nil {
		t.Fatalf("RevokeAllForUser() error = %v", err)
	}
	gotB, _ = repo.GetByTokenHash(ctx, HashToken("b")) //nolint:errcheck // checked via field
	if !gotB.Revoked {
		t.Error("b should be revoked after RevokeAllForUser")
	}
}

func TestTokenRepository_DeleteExpired(t *testing.T) {
	db := testDB(t)
	user := seedTestUser(t, db, "expiry")
	repo := NewTokenRepository(db.DB)
	ctx := context.Background()

	for raw, exp := range map[string]time.Time{
		"expired": time.Now().Add(-time.Hour),
		"live":    time.Now().Add(time.Hour),
	} {
		if err := repo.Create(ctx, &RefreshToken{UserID: user.ID, TokenHash: HashToken(raw), ExpiresAt: exp}); err != nil {
			t.Fatalf("Create(%s) error = %v", raw, err)
		}
	}

	n, err := repo.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("DeleteExpired() error = %v", err)
	}
	if n != 1 {
		t.Errorf("DeleteExpired() = %d, want 1", n)
	}
	if _, err := repo.GetByTokenHash(ctx, HashToken("live")); err != nil {
		t.Errorf("live token gone: %v", err)
	}
}
