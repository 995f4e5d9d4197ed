package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/hydroponics-core/internal/hydro"
)

func (s *Server) handleListMeasurements(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())
	q := r.URL.Query()

	filter, err := measurementFilter(q)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	order, err := hydro.ParseOrdering(q.Get("ordering"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	req, err := pageRequest(q)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	page, err := s.service.ListMeasurements(r.Context(), p, filter, order, req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(r, page))
}

// handleCreateMeasurement records a measurement on one of the caller's
// systems. Naming someone else's system is 403.
func (s *Server) handleCreateMeasurement(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())

	var draft hydro.MeasurementDraft
	if !decodeJSON(w, r, &draft) {
		return
	}

	m, err := s.service.CreateMeasurement(r.Context(), p, draft)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleGetMeasurement(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeNotFound(w, "Not found.")
		return
	}

	m, err := s.service.GetMeasurement(r.Context(), p, id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleReplaceMeasurement(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeNotFound(w, "Not found.")
		return
	}

	var draft hydro.MeasurementDraft
	if !decodeJSON(w, r, &draft) {
		return
	}

	m, err := s.service.ReplaceMeasurement(r.Context(), p, id, draft)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handlePatchMeasurement(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeNotFound(w, "Not found.")
		return
	}

	var patch hydro.MeasurementPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	m, err := s.service.PatchMeasurement(r.Context(), p, id, patch)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleDeleteMeasurement(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeNotFound(w, "Not found.")
		return
	}

	if err := s.service.DeleteMeasurement(r.Context(), p, id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleLastMeasurements returns the newest num_measurements (default 10)
// measurements of the caller's system named system_name, as a plain array.
func (s *Server) handleLastMeasurements(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())
	q := r.URL.Query()

	n := hydro.DefaultLastMeasurements
	if raw := q.Get("num_measurements"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeBadRequest(w, "num_measurements must be an integer.")
			return
		}
		n = v
	}

	ms, err := s.service.LastMeasurements(r.Context(), p, q.Get("system_name"), n)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if ms == nil {
		ms = []hydro.Measurement{}
	}
	writeJSON(w, http.StatusOK, ms)
}
