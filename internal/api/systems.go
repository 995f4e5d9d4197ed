package api

import (
	"net/http"

	"github.com/nerrad567/hydroponics-core/internal/hydro"
)

// handleListSystems lists the caller's systems ordered by name, then id.
func (s *Server) handleListSystems(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())
	q := r.URL.Query()

	filter, err := systemFilter(q)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	req, err := pageRequest(q)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	page, err := s.service.ListSystems(r.Context(), p, filter, req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(r, page))
}

// handleCreateSystem creates a system owned by the caller. Any owner field
// in the body is ignored.
func (s *Server) handleCreateSystem(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())

	var draft hydro.SystemDraft
	if !decodeJSON(w, r, &draft) {
		return
	}

	sys, err := s.service.CreateSystem(r.Context(), p, draft)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sys)
}

func (s *Server) handleGetSystem(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeNotFound(w, "Not found.")
		return
	}

	sys, err := s.service.GetSystem(r.Context(), p, id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sys)
}

// handleReplaceSystem is PUT: fields missing from the body are cleared.
func (s *Server) handleReplaceSystem(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeNotFound(w, "Not found.")
		return
	}

	var draft hydro.SystemDraft
	if !decodeJSON(w, r, &draft) {
		return
	}

	sys, err := s.service.ReplaceSystem(r.Context(), p, id, draft)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sys)
}

// handlePatchSystem is PATCH: only fields present in the body change.
func (s *Server) handlePatchSystem(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeNotFound(w, "Not found.")
		return
	}

	var patch hydro.SystemPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	sys, err := s.service.PatchSystem(r.Context(), p, id, patch)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sys)
}

// handleDeleteSystem deletes a system and, with it, all its measurements.
func (s *Server) handleDeleteSystem(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeNotFound(w, "Not found.")
		return
	}

	if err := s.service.DeleteSystem(r.Context(), p, id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
