package hydro

import (
	"math"
	"strings"
	"time"
)

// SystemFilter narrows a system listing. Zero values impose no constraint.
// Time bounds are inclusive.
type SystemFilter struct {
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	UpdatedAfter  *time.Time
	UpdatedBefore *time.Time

	// Search is split on whitespace; every term must appear in the name or
	// the description, case-insensitively.
	Search string
}

// searchTerms returns the non-empty terms of Search. Case folding happens
// in SQL so both sides go through the same fold.
func (f SystemFilter) searchTerms() []string {
	return strings.Fields(f.Search)
}

// FloatRange is an inclusive range with optional bounds.
type FloatRange struct {
	Min *float64
	Max *float64
}

// MeasurementFilter narrows a measurement listing. A row whose reading is
// null never satisfies a bound on that reading.
type MeasurementFilter struct {
	SystemID    *int64
	PH          FloatRange
	Temperature FloatRange
	TDS         FloatRange
}

// OrderField is one key of a measurement ordering.
type OrderField struct {
	Field string
	Desc  bool
}

// orderableColumns maps client ordering names to measurement columns.
var orderableColumns = map[string]string{
	"ph":          "m.ph",
	"temperature": "m.temperature",
	"tds":         "m.tds",
	"timestamp":   "m.timestamp",
}

// ParseOrdering parses a comma-separated ordering such as "-timestamp,ph".
// An empty string yields the default ordering (id ascending).
func ParseOrdering(raw string) ([]OrderField, error) {
	var fields []OrderField
	seen := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		of := OrderField{Field: part}
		if strings.HasPrefix(part, "-") {
			of = OrderField{Field: part[1:], Desc: true}
		}
		if _, ok := orderableColumns[of.Field]; !ok {
			return nil, badRequest("cannot order by %q; allowed fields are ph, temperature, tds, timestamp", of.Field)
		}
		if seen[of.Field] {
			continue
		}
		seen[of.Field] = true
		fields = append(fields, of)
	}
	return fields, nil
}

// orderClause renders the ORDER BY for measurements; id ascending is
// always the final key so pages are stable.
func orderClause(fields []OrderField) string {
	parts := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		dir := "ASC"
		if f.Desc {
			dir = "DESC"
		}
		parts = append(parts, orderableColumns[f.Field]+" "+dir)
	}
	parts = append(parts, "m.id ASC")
	return strings.Join(parts, ", ")
}

// PageRequest selects a page. Zero Size means the configured default.
type PageRequest struct {
	Page int
	Size int
}

// PageLimits bounds page sizes.
type PageLimits struct {
	Default int
	Max     int
}

// normalize fills defaults and rejects nonsensical values.
// Sizes above the maximum are capped rather than rejected.
func (l PageLimits) normalize(req PageRequest) (PageRequest, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.Page < 1 {
		return req, badRequest("page must be a positive integer")
	}
	switch {
	case req.Size == 0:
		req.Size = l.Default
	case req.Size < 0:
		return req, badRequest("page_size must be a positive integer")
	case l.Max > 0 && req.Size > l.Max:
		req.Size = l.Max
	}
	if req.Size < 1 {
		req.Size = 1
	}
	return req, nil
}

// offset saturates at math.MaxInt, which is past the end of any table.
func (r PageRequest) offset() int {
	if r.Page-1 > math.MaxInt/r.Size {
		return math.MaxInt
	}
	return (r.Page - 1) * r.Size
}

// Page is one page of a listing. Next and Previous are page numbers, nil
// at the last and first page respectively.
type Page[T any] struct {
	Count    int
	Page     int
	Size     int
	Next     *int
	Previous *int
	Results  []T
}

// newPage computes cursors. A page beyond the end has no results and points
// back at the last page that has any.
func newPage[T any](req PageRequest, count int, results []T) *Page[T] {
	if results == nil {
		results = []T{}
	}
	p := &Page[T]{Count: count, Page: req.Page, Size: req.Size, Results: results}

	lastPage := (count + req.Size - 1) / req.Size
	if lastPage < 1 {
		lastPage = 1
	}
	if req.Page < lastPage {
		next := req.Page + 1
		p.Next = &next
	}
	if req.Page > 1 {
		prev := min(req.Page-1, lastPage)
		p.Previous = &prev
	}
	return p
}
