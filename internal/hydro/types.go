package hydro

import (
	"bytes"
	"encoding/json"
	"time"
)

// Principal is the authenticated identity a call is made on behalf of.
// It is always passed explicitly; nothing in this package reads it from
// ambient request state.
type Principal struct {
	UserID   string
	Username string
}

// System is a hydroponic system owned by exactly one principal.
type System struct {
	ID          int64     `json:"id"`
	OwnerID     string    `json:"-"`
	Owner       string    `json:"owner"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Measurement is one set of readings taken from a system.
// OwnerID is the owner of the parent system, resolved by the store.
type Measurement struct {
	ID          int64     `json:"id"`
	SystemID    int64     `json:"system"`
	OwnerID     string    `json:"-"`
	PH          *float64  `json:"ph"`
	Temperature *float64  `json:"temperature"`
	TDS         *float64  `json:"tds"`
	Timestamp   time.Time `json:"timestamp"`
}

// SystemDraft is the payload for creating or fully replacing a system.
// Any owner field a client sends is not part of the draft and is ignored.
type SystemDraft struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// SystemPatch is the payload for a partial system update.
type SystemPatch struct {
	Name        *string          `json:"name"`
	Description Optional[string] `json:"description"`
}

// MeasurementDraft is the payload for creating or fully replacing a measurement.
type MeasurementDraft struct {
	System      *int64   `json:"system"`
	PH          *float64 `json:"ph"`
	Temperature *float64 `json:"temperature"`
	TDS         *float64 `json:"tds"`
}

// MeasurementPatch is the payload for a partial measurement update.
type MeasurementPatch struct {
	System      *int64            `json:"system"`
	PH          Optional[float64] `json:"ph"`
	Temperature Optional[float64] `json:"temperature"`
	TDS         Optional[float64] `json:"tds"`
}

// Optional is a nullable value that also records whether it was supplied.
// In a JSON object, an absent key leaves Set false, an explicit null gives
// Set true with a nil Value.
type Optional[T any] struct {
	Set   bool
	Value *T
}

// Some returns a supplied, non-null Optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

// Null returns a supplied Optional holding null.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// apply returns the patched value: the new value when supplied, else current.
func (o Optional[T]) apply(current *T) *T {
	if !o.Set {
		return current
	}
	return o.Value
}
