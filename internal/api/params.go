package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/hydroponics-core/internal/hydro"
)

// dateLayout is the calendar-day form accepted by date filters.
const dateLayout = "2006-01-02"

// listResponse is the paginated envelope of every list endpoint.
type listResponse[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// newListResponse renders page cursors as absolute URLs built from r.
func newListResponse[T any](r *http.Request, page *hydro.Page[T]) listResponse[T] {
	return listResponse[T]{
		Count:    page.Count,
		Next:     pageURL(r, page.Next),
		Previous: pageURL(r, page.Previous),
		Results:  page.Results,
	}
}

// pageURL returns the absolute URL of the request with its page parameter
// replaced. Other parameters are preserved. Page 1 drops the parameter.
func pageURL(r *http.Request, page *int) *string {
	if page == nil {
		return nil
	}

	q := r.URL.Query()
	if *page <= 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(*page))
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}

	u := url.URL{
		Scheme:   scheme,
		Host:     r.Host,
		Path:     r.URL.Path,
		RawQuery: q.Encode(),
	}
	s := u.String()
	return &s
}

// pathID parses the {id} URL parameter. A malformed id can never name a
// resource, so callers answer 404 when ok is false.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

// decodeJSON decodes the request body into dst, writing a 400 and
// returning false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.As(err, &maxErr):
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "request body too large")
		case errors.As(err, &typeErr):
			writeJSON(w, http.StatusBadRequest, Error{
				Status:  http.StatusBadRequest,
				Code:    ErrCodeValidation,
				Message: fmt.Sprintf("expected %s", typeErr.Type),
				Field:   typeErr.Field,
			})
		default:
			writeBadRequest(w, "invalid JSON body")
		}
		return false
	}
	return true
}

// pageRequest reads page and page_size. Absent values are left zero so the
// service applies its defaults.
func pageRequest(q url.Values) (hydro.PageRequest, error) {
	var req hydro.PageRequest
	var err error
	if req.Page, err = intParam(q, "page"); err != nil {
		return req, err
	}
	if req.Size, err = intParam(q, "page_size"); err != nil {
		return req, err
	}
	return req, nil
}

// systemFilter reads the search and timestamp filters of the system list.
func systemFilter(q url.Values) (hydro.SystemFilter, error) {
	f := hydro.SystemFilter{Search: q.Get("search")}
	var err error
	if f.CreatedAfter, err = timeParam(q, "created_at_after", false); err != nil {
		return f, err
	}
	if f.CreatedBefore, err = timeParam(q, "created_at_before", true); err != nil {
		return f, err
	}
	if f.UpdatedAfter, err = timeParam(q, "updated_at_after", false); err != nil {
		return f, err
	}
	if f.UpdatedBefore, err = timeParam(q, "updated_at_before", true); err != nil {
		return f, err
	}
	return f, nil
}

// measurementFilter reads the system and reading-range filters of the
// measurement list.
func measurementFilter(q url.Values) (hydro.MeasurementFilter, error) {
	var f hydro.MeasurementFilter

	if raw := q.Get("system"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return f, fmt.Errorf("%w: system must be an integer", hydro.ErrBadRequest)
		}
		f.SystemID = &id
	}

	ranges := []struct {
		name string
		dst  *hydro.FloatRange
	}{
		{"ph", &f.PH},
		{"temperature", &f.Temperature},
		{"tds", &f.TDS},
	}
	for _, rg := range ranges {
		var err error
		if rg.dst.Min, err = floatParam(q, rg.name+"_min"); err != nil {
			return f, err
		}
		if rg.dst.Max, err = floatParam(q, rg.name+"_max"); err != nil {
			return f, err
		}
	}
	return f, nil
}

func intParam(q url.Values, name string) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", hydro.ErrBadRequest, name)
	}
	return v, nil
}

func floatParam(q url.Values, name string) (*float64, error) {
	raw := q.Get(name)
	if raw == "" {
		return nil, nil //nolint:nilnil // absent filter
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a number", hydro.ErrBadRequest, name)
	}
	return &v, nil
}

// timeParam accepts RFC 3339 or a calendar day (UTC). As an upper bound a
// calendar day covers the whole day.
func timeParam(q url.Values, name string, upper bool) (*time.Time, error) {
	raw := q.Get(name)
	if raw == "" {
		return nil, nil //nolint:nilnil // absent filter
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a date (YYYY-MM-DD) or an RFC 3339 timestamp", hydro.ErrBadRequest, name)
	}
	if upper {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
