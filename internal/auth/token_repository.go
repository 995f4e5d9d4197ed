package auth

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TokenRepository defines the interface for refresh token persistence.
type TokenRepository interface {
	Create(ctx context.Context, token *RefreshToken) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*RefreshToken, error)
	RevokeFamily(ctx context.Context, familyID string) error
	RevokeAllForUser(ctx context.Context, userID string) error
	RotateRefreshToken(ctx context.Context, oldID string, newToken *RefreshToken) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// SQLiteTokenRepository implements TokenRepository using SQLite.
type SQLiteTokenRepository struct {
	db *sql.DB
}

// NewTokenRepository creates a new SQLite-backed token repository.
func NewTokenRepository(db *sql.DB) *SQLiteTokenRepository {
	return &SQLiteTokenRepository{db: db}
}

// HashToken computes the SHA-256 hash of a raw token string for storage.
// Raw tokens are never stored, only their hashes.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Create inserts a new refresh token. ID and FamilyID are generated if empty.
func (r *SQLiteTokenRepository) Create(ctx context.Context, token *RefreshToken) error {
	if err := insertToken(ctx, r.db, token); err != nil {
		return fmt.Errorf("creating refresh token: %w", err)
	}
	return nil
}

// GetByTokenHash retrieves a refresh token by its SHA-256 hash.
func (r *SQLiteTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*RefreshToken, error) {
	var t RefreshToken
	var deviceInfo sql.NullString
	var revoked int
	var expiresAt, createdAt string

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, family_id, token_hash, device_info, expires_at, revoked, created_at
		 FROM refresh_tokens WHERE token_hash = ?`, tokenHash,
	).Scan(&t.ID, &t.UserID, &t.FamilyID, &t.TokenHash, &deviceInfo,
		&expiresAt, &revoked, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("getting refresh token by hash: %w", err)
	}

	t.Revoked = revoked != 0
	t.DeviceInfo = deviceInfo.String
	t.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt) //nolint:errcheck // format is controlled
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	return &t, nil
}

// RevokeFamily marks all tokens in a family as revoked.
// Called when a revoked token is presented again.
func (r *SQLiteTokenRepository) RevokeFamily(ctx context.Context, familyID string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked = 1 WHERE family_id = ?", familyID)
	if err != nil {
		return fmt.Errorf("revoking token family: %w", err)
	}
	return nil
}

// RevokeAllForUser marks all refresh tokens for a user as revoked.
// Used when a password changes or an account is disabled.
func (r *SQLiteTokenRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked = 1 WHERE user_id = ?", userID)
	if err != nil {
		return fmt.Errorf("revoking all tokens for user: %w", err)
	}
	return nil
}

// RotateRefreshToken revokes the old token and inserts its successor in one
// transaction. If the old token was already revoked by a concurrent rotation
// nothing is written and ErrTokenReuse is returned.
func (r *SQLiteTokenRepository) RotateRefreshToken(ctx context.Context, oldID string, newToken *RefreshToken) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning rotation transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	res, err := tx.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked = 1 WHERE id = ? AND revoked = 0", oldID)
	if err != nil {
		return fmt.Errorf("revoking old token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck // always succeeds on SQLite
		return ErrTokenReuse
	}

	if err := insertToken(ctx, tx, newToken); err != nil {
		return fmt.Errorf("creating new token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing rotation: %w", err)
	}
	return nil
}

// DeleteExpired removes tokens that have expired, freeing storage.
// Returns the number of deleted rows.
func (r *SQLiteTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE expires_at <= ?", now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired tokens: %w", err)
	}

	count, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return count, nil
}

func insertToken(ctx context.Context, db execer, token *RefreshToken) error {
	if token.ID == "" {
		token.ID = "rt-" + uuid.NewString()[:16]
	}
	if token.FamilyID == "" {
		token.FamilyID = uuid.NewString()
	}

	now := time.Now().UTC().Format(time.RFC3339)
	token.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	_, err := db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (id, user_id, family_id, token_hash, device_info, expires_at, revoked, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		token.ID, token.UserID, token.FamilyID, token.TokenHash,
		nullString(token.DeviceInfo),
		token.ExpiresAt.UTC().Format(time.RFC3339),
		boolToInt(token.Revoked), now,
	)
	return err
}
