package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/nerrad567/hydroponics-core/internal/hydro"
)

// Authenticator resolves the principal behind a request's bearer token.
type Authenticator struct {
	users  UserRepository
	secret []byte
}

// NewAuthenticator creates an authenticator verifying tokens signed with secret.
func NewAuthenticator(users UserRepository, secret string) *Authenticator {
	return &Authenticator{users: users, secret: []byte(secret)}
}

// Resolve reads "Authorization: Bearer <token>".
//
// A missing header is ErrNoCredentials. Anything else that does not end in an
// active account (wrong scheme, bad signature, expired, unknown or disabled
// user) is ErrTokenInvalid.
func (a *Authenticator) Resolve(r *http.Request) (hydro.Principal, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return hydro.Principal{}, ErrNoCredentials
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return hydro.Principal{}, ErrTokenInvalid
	}
	return a.ResolveToken(r.Context(), strings.TrimSpace(token))
}

// ResolveToken validates a raw access token.
func (a *Authenticator) ResolveToken(ctx context.Context, token string) (hydro.Principal, error) {
	claims, err := ParseToken(token, a.secret)
	if err != nil {
		return hydro.Principal{}, err
	}
	user, err := a.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return hydro.Principal{}, ErrTokenInvalid
		}
		return hydro.Principal{}, err
	}
	if !user.IsActive {
		return hydro.Principal{}, ErrTokenInvalid
	}
	return user.Principal(), nil
}
