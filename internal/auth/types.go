package auth

import (
	"errors"
	"regexp"
	"time"

	"github.com/nerrad567/hydroponics-core/internal/hydro"
)

// usernamePattern defines the valid format for usernames:
// alphanumeric, dots, hyphens, underscores, 1-64 characters.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// maxUsernameLength is the maximum allowed username length.
const maxUsernameLength = 64

// MinPasswordLength is enforced when accounts are created or passwords changed.
const MinPasswordLength = 8

// IsValidUsername checks if a username meets format requirements.
// Usernames also appear in MQTT topics, so '/', '+' and '#' are excluded.
func IsValidUsername(username string) bool {
	return len(username) <= maxUsernameLength && usernamePattern.MatchString(username)
}

// User is an account that owns hydroponic systems.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // never serialised
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Principal returns the identity the resource service acts on behalf of.
func (u *User) Principal() hydro.Principal {
	return hydro.Principal{UserID: u.ID, Username: u.Username}
}

// RefreshToken represents a stored refresh token for session management.
type RefreshToken struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	FamilyID   string    `json:"family_id"`
	TokenHash  string    `json:"-"` // never serialised
	DeviceInfo string    `json:"device_info,omitempty"`
	ExpiresAt  time.Time `json:"expires_at"`
	Revoked    bool      `json:"revoked"`
	CreatedAt  time.Time `json:"created_at"`
}

// TokenPair is what a successful login or refresh hands back.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Sentinel errors for auth operations.
var (
	ErrNoCredentials      = errors.New("authentication credentials were not provided")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidUsername    = errors.New("username must be 1-64 characters of letters, digits, '.', '_' or '-'")
	ErrPasswordTooShort   = errors.New("password is too short")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserInactive       = errors.New("user account is inactive")
	ErrUsernameExists     = errors.New("username already exists")
	ErrTokenExpired       = errors.New("token has expired")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrTokenReuse         = errors.New("refresh token reuse detected")
)
