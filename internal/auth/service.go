package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Service issues and rotates token pairs.
type Service struct {
	users      UserRepository
	tokens     TokenRepository
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// NewService creates a token service signing with secret.
func NewService(users UserRepository, tokens TokenRepository, secret string, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		users:      users,
		tokens:     tokens,
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		logger:     slog.New(slog.DiscardHandler),
		now:        time.Now,
	}
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// Login checks a username and password and starts a new token family.
// Unknown users, wrong passwords and inactive accounts are all reported
// as ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, username, password, deviceInfo string) (*TokenPair, *User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, nil, fmt.Errorf("verifying password: %w", err)
	}
	if !ok || !user.IsActive {
		s.logger.Info("login rejected", "username", username, "active", user.IsActive)
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.issue(ctx, user, func(rt *RefreshToken) error {
		rt.DeviceInfo = deviceInfo
		return s.tokens.Create(ctx, rt)
	})
	if err != nil {
		return nil, nil, err
	}
	return pair, user, nil
}

// Refresh exchanges a refresh token for a new pair in the same family.
//
// A revoked token being presented means the family has leaked: every token
// in it is revoked and ErrTokenReuse is returned.
func (s *Service) Refresh(ctx context.Context, raw string) (*TokenPair, *User, error) {
	stored, err := s.tokens.GetByTokenHash(ctx, HashToken(raw))
	if err != nil {
		return nil, nil, err
	}

	if stored.Revoked {
		s.logger.Warn("refresh token reuse, revoking family",
			"user_id", stored.UserID,
			"family_id", stored.FamilyID,
		)
		if err := s.tokens.RevokeFamily(ctx, stored.FamilyID); err != nil {
			return nil, nil, err
		}
		return nil, nil, ErrTokenReuse
	}
	if !s.now().Before(stored.ExpiresAt) {
		return nil, nil, ErrTokenExpired
	}

	user, err := s.users.GetByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil, ErrTokenInvalid
		}
		return nil, nil, err
	}
	if !user.IsActive {
		return nil, nil, ErrUserInactive
	}

	pair, err := s.issue(ctx, user, func(rt *RefreshToken) error {
		rt.FamilyID = stored.FamilyID
		rt.DeviceInfo = stored.DeviceInfo
		return s.tokens.RotateRefreshToken(ctx, stored.ID, rt)
	})
	if err != nil {
		if errors.Is(err, ErrTokenReuse) {
			// Lost a race with another rotation of the same token.
			if rerr := s.tokens.RevokeFamily(ctx, stored.FamilyID); rerr != nil {
				return nil, nil, rerr
			}
		}
		return nil, nil, err
	}
	return pair, user, nil
}

// issue mints an access token and a refresh token, handing the refresh
// record to store before returning the pair.
func (s *Service) issue(ctx context.Context, user *User, store func(*RefreshToken) error) (*TokenPair, error) {
	access, err := GenerateAccessToken(user, s.secret, s.accessTTL)
	if err != nil {
		return nil, err
	}
	raw, err := GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	rt := &RefreshToken{
		UserID:    user.ID,
		TokenHash: HashToken(raw),
		ExpiresAt: s.now().Add(s.refreshTTL),
	}
	if err := store(rt); err != nil {
		return nil, fmt.Errorf("storing refresh token: %w", err)
	}
	s.logger.DebugContext(ctx, "token pair issued", "user_id", user.ID, "family_id", rt.FamilyID)
	return &TokenPair{Access: access, Refresh: raw}, nil
}

// CreateUser validates and stores a new active account.
func CreateUser(ctx context.Context, users UserRepository, username, password string) (*User, error) {
	if !IsValidUsername(username) {
		return nil, ErrInvalidUsername
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &User{Username: username, PasswordHash: hash, IsActive: true}
	if err := users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
