package models

import (
	"encoding/json"
	"math"
)

// Unavailable is rendered in place of any metric whose source could not be read.
const Unavailable = "Data unavailable"

// Field holds a metric value that may be unavailable. An unavailable field
// marshals to the Unavailable marker, never to a zero value.
type Field[T any] struct {
	Value T
	Valid bool
}

// Available wraps a value that was read successfully.
func Available[T any](v T) Field[T] {
	return Field[T]{Value: v, Valid: true}
}

// Missing returns an unavailable field.
func Missing[T any]() Field[T] {
	return Field[T]{}
}

// Float wraps f, treating NaN and infinities as unavailable.
func Float(f float64) Field[float64] {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Missing[float64]()
	}
	return Available(f)
}

// MarshalJSON implements json.Marshaler.
func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return json.Marshal(Unavailable)
	}
	return json.Marshal(f.Value)
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	var marker string
	if json.Unmarshal(data, &marker) == nil && marker == Unavailable {
		*f = Missing[T]()
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Available(v)
	return nil
}
