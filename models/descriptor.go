// models/descriptor.go - Explicit per-entity field descriptors
package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidValue is returned when a value has the wrong type for its column
// or breaks an entity invariant (enumerations, non-negative counters, ...).
var ErrInvalidValue = errors.New("invalid value")

// Setter assigns a caller-supplied value to one column of E.
type Setter[E any] func(e *E, value any) error

// Descriptor lists the writable columns of E and how to build a fresh value.
// Keys are database column names.
type Descriptor[E any] struct {
	New    func() *E
	Fields map[string]Setter[E]
}

// Has reports whether column is a writable column of E.
func (d Descriptor[E]) Has(column string) bool {
	_, ok := d.Fields[column]
	return ok
}

// field builds a Setter from a pointer accessor and a value converter.
func field[E, T any](ref func(*E) *T, conv func(any) (T, error)) Setter[E] {
	return func(e *E, value any) error {
		v, err := conv(value)
		if err != nil {
			return err
		}
		*ref(e) = v
		return nil
	}
}

// optional wraps conv so that nil clears the column.
func optional[T any](conv func(any) (T, error)) func(any) (*T, error) {
	return func(value any) (*T, error) {
		if value == nil {
			return nil, nil
		}
		if p, ok := value.(*T); ok {
			if p == nil {
				return nil, nil
			}
			v := *p
			return &v, nil
		}
		v, err := conv(value)
		if err != nil {
			return nil, err
		}
		return &v, nil
	}
}

func typeError(want string, value any) error {
	return fmt.Errorf("%w: want %s, got %T", ErrInvalidValue, want, value)
}

func toString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case *string:
		if v != nil {
			return *v, nil
		}
	}
	return "", typeError("string", value)
}

func toBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case *bool:
		if v != nil {
			return *v, nil
		}
	}
	return false, typeError("bool", value)
}

func toInt(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int8:
		return int(v), nil
	case int16:
		return int(v), nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case uint:
		return int(v), nil
	case uint8:
		return int(v), nil
	case uint16:
		return int(v), nil
	case uint32:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float64:
		// decoded JSON numbers
		if v == math.Trunc(v) {
			return int(v), nil
		}
	case *int:
		if v != nil {
			return *v, nil
		}
	}
	return 0, typeError("integer", value)
}

func toUint(value any) (uint, error) {
	if p, ok := value.(*uint); ok && p != nil {
		return *p, nil
	}
	if u, ok := value.(uint); ok {
		return u, nil
	}
	n, err := toInt(value)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: identifier must be non-negative, got %d", ErrInvalidValue, n)
	}
	return uint(n), nil
}

func toTime(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case *time.Time:
		if v != nil {
			return *v, nil
		}
	}
	return time.Time{}, typeError("time", value)
}

func toStrings(value any) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return append([]string(nil), v...), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, typeError("[]string", value)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, typeError("[]string", value)
}
