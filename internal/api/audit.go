package api

import (
	"net/http"

	"github.com/nerrad567/hydroponics-core/internal/audit"
)

// handleListAudit returns the caller's own audit trail, newest first.
// Entries of other users are never visible.
//
// Query parameters:
//   - action: filter by action type (create, update, delete, login)
//   - entity_type: filter by entity type (system, measurement, session)
//   - entity_id: filter by specific entity ID
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeNotFound(w, "Not found.")
		return
	}

	p, _ := principalFromContext(r.Context())
	q := r.URL.Query()
	filter := audit.Filter{
		UserID:     p.UserID,
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
	}

	var err error
	if filter.Limit, err = intParam(q, "limit"); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if filter.Offset, err = intParam(q, "offset"); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit logs", "error", err)
		writeInternalError(w, "failed to list audit logs")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
