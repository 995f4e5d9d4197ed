package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/nerrad567/hydroponics-core/internal/auth"
	"github.com/nerrad567/hydroponics-core/internal/hydro"
)

// Error represents a structured error response. Field is set for payload
// validation failures; Value, Min and Max additionally for range failures.
type Error struct {
	Status  int      `json:"status"`
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Field   string   `json:"field,omitempty"`
	Value   *float64 `json:"value,omitempty"`
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
}

// Common error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeUnauthorized   = "unauthorised"
	ErrCodeForbidden      = "forbidden"
	ErrCodeConflict       = "conflict"
	ErrCodeInternal       = "internal_error"
	ErrCodeValidation     = "validation_error"
	ErrCodeMethodNotAllow = "method_not_allowed"
)

// Client-facing authentication messages.
const (
	msgNoCredentials      = "Authentication credentials were not provided."
	msgTokenNotValid      = "Given token not valid for any token type"
	msgInvalidCredentials = "No active account found with the given credentials"
	msgRefreshInvalid     = "Token is invalid or expired"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response with a bearer challenge.
func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeServiceError maps an error from the hydro or auth packages onto a
// response. Anything unrecognised is logged and reported as 500 without
// detail.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var rangeErr *hydro.RangeError
	var fieldErr *hydro.FieldError

	switch {
	case errors.As(err, &rangeErr):
		writeJSON(w, http.StatusBadRequest, Error{
			Status:  http.StatusBadRequest,
			Code:    ErrCodeValidation,
			Message: rangeErr.Error(),
			Field:   rangeErr.Field,
			Value:   &rangeErr.Value,
			Min:     &rangeErr.Min,
			Max:     &rangeErr.Max,
		})
	case errors.As(err, &fieldErr):
		writeJSON(w, http.StatusBadRequest, Error{
			Status:  http.StatusBadRequest,
			Code:    ErrCodeValidation,
			Message: fieldErr.Message,
			Field:   fieldErr.Field,
		})
	case errors.Is(err, hydro.ErrValidation):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, hydro.ErrBadRequest):
		writeBadRequest(w, detail(err, hydro.ErrBadRequest, "Bad request."))
	case errors.Is(err, hydro.ErrNotFound):
		writeNotFound(w, detail(err, hydro.ErrNotFound, "Not found."))
	case errors.Is(err, hydro.ErrForbidden):
		writeError(w, http.StatusForbidden, ErrCodeForbidden, err.Error())
	case errors.Is(err, auth.ErrNoCredentials):
		writeUnauthorized(w, msgNoCredentials)
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeUnauthorized(w, msgInvalidCredentials)
	case errors.Is(err, auth.ErrTokenReuse), errors.Is(err, auth.ErrUserInactive):
		writeUnauthorized(w, msgRefreshInvalid)
	case errors.Is(err, auth.ErrTokenInvalid), errors.Is(err, auth.ErrTokenExpired):
		writeUnauthorized(w, msgTokenNotValid)
	default:
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", r.Context().Value(ctxKeyRequestID),
			"error", err,
		)
		writeInternalError(w, "internal server error")
	}
}

// detail strips the sentinel prefix from a wrapped error so only the
// specific message reaches the client. A bare sentinel yields fallback.
func detail(err, sentinel error, fallback string) string {
	msg := strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
	if msg == sentinel.Error() || msg == "" {
		return fallback
	}
	return msg
}
