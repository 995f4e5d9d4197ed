// Package auth authenticates API callers for Hydroponics Core.
//
// It provides:
//   - Argon2id password hashing (OWASP 2025 recommendation)
//   - HS256 JWT access tokens carrying the user ID and username
//   - Refresh token rotation with family-based theft detection
//   - An Authenticator that turns a request's bearer token into a hydro.Principal
//
// Access tokens are validated by signature, then the user row is checked so
// a deactivated account stops working before its token expires.
package auth
