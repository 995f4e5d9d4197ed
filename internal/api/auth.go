package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/hydroponics-core/internal/audit"
	"github.com/nerrad567/hydroponics-core/internal/hydro"
)

// ticketTTL is how long a WebSocket ticket is valid.
const ticketTTL = 60 * time.Second

// tokenRequest is the request body for POST /token.
type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// refreshRequest is the request body for POST /token/refresh.
type refreshRequest struct {
	Refresh string `json:"refresh"`
}

// handleToken exchanges credentials for an access/refresh token pair.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		field := "password"
		if req.Username == "" {
			field = "username"
		}
		writeJSON(w, http.StatusBadRequest, Error{
			Status:  http.StatusBadRequest,
			Code:    ErrCodeValidation,
			Message: "This field is required.",
			Field:   field,
		})
		return
	}

	pair, user, err := s.auth.Login(r.Context(), req.Username, req.Password, r.UserAgent())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if s.recorder != nil {
		s.recorder.Record(&audit.AuditLog{
			Action:     "login",
			EntityType: "session",
			UserID:     user.ID,
			Source:     audit.SourceAPI,
			Details:    map[string]any{"username": user.Username},
		})
	}

	writeJSON(w, http.StatusOK, pair)
}

// handleTokenRefresh rotates a refresh token. Presenting a token that was
// already rotated revokes every token of its family.
func (s *Server) handleTokenRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Refresh == "" {
		writeJSON(w, http.StatusBadRequest, Error{
			Status:  http.StatusBadRequest,
			Code:    ErrCodeValidation,
			Message: "This field is required.",
			Field:   "refresh",
		})
		return
	}

	pair, _, err := s.auth.Refresh(r.Context(), req.Refresh)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// ticketStore holds pending WebSocket authentication tickets.
// Tickets are single-use, expire after ttl and carry the principal that
// requested them.
type ticketStore struct {
	tickets map[string]ticketEntry
	ttl     time.Duration
	mu      sync.Mutex
}

type ticketEntry struct {
	principal hydro.Principal
	expiresAt time.Time
}

func newTicketStore() *ticketStore {
	return &ticketStore{
		tickets: make(map[string]ticketEntry),
		ttl:     ticketTTL,
	}
}

// issue creates a ticket for p.
func (ts *ticketStore) issue(p hydro.Principal) string {
	ticket := generateTicket()
	ts.mu.Lock()
	ts.tickets[ticket] = ticketEntry{principal: p, expiresAt: time.Now().Add(ts.ttl)}
	ts.mu.Unlock()
	return ticket
}

// redeem checks if a ticket is valid and consumes it (single-use).
func (ts *ticketStore) redeem(ticket string) (hydro.Principal, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	entry, ok := ts.tickets[ticket]
	if !ok {
		return hydro.Principal{}, false
	}
	delete(ts.tickets, ticket)

	if !time.Now().Before(entry.expiresAt) {
		return hydro.Principal{}, false
	}
	return entry.principal, true
}

// cleanExpired removes expired tickets from the store.
func (ts *ticketStore) cleanExpired() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	now := time.Now()
	for ticket, entry := range ts.tickets {
		if now.After(entry.expiresAt) {
			delete(ts.tickets, ticket)
		}
	}
}

// ticketBytes is the number of random bytes used for WebSocket tickets.
const ticketBytes = 32

// generateTicket creates a cryptographically random ticket string.
func generateTicket() string {
	b := make([]byte, ticketBytes)
	//nolint:errcheck // crypto/rand.Read always returns len(b) on supported platforms
	rand.Read(b)
	return hex.EncodeToString(b)
}

// handleWSTicket generates a single-use WebSocket authentication ticket
// bound to the caller. The client uses it to open the WebSocket without
// exposing the access token in the URL.
func (s *Server) handleWSTicket(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, msgNoCredentials)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":     s.tickets.issue(p),
		"expires_in": int(s.tickets.ttl.Seconds()),
	})
}

// cleanTicketsLoop runs cleanExpired periodically until the context is cancelled.
func (s *Server) cleanTicketsLoop(ctx context.Context) {
	ticker := time.NewTicker(ticketTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tickets.cleanExpired()
		}
	}
}
