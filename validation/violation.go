// Package validation is a small fail-fast validation engine: a schema is an
// ordered list of fields, each with its own check, evaluated over a decoded
// JSON object. The first failing field stops evaluation.
package validation

import (
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindSchema     Kind = "SchemaViolation"
	KindMembership Kind = "MembershipViolation"
	KindRange      Kind = "RangeViolation"
	KindRequired   Kind = "RequiredFieldMissing"
)

var (
	ErrSchema     = errors.New("schema violation")
	ErrMembership = errors.New("membership violation")
	ErrRange      = errors.New("range violation")
	ErrRequired   = errors.New("required field missing")
)

// Violation describes the first constraint a request broke.
type Violation struct {
	Kind     Kind     `json:"kind"`
	Field    string   `json:"field"`
	Value    any      `json:"value,omitempty"`
	Accepted []string `json:"accepted,omitempty"`
	Min      *int64   `json:"min,omitempty"`
	Max      *int64   `json:"max,omitempty"`
	Message  string   `json:"message"`
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

func (v *Violation) Unwrap() error {
	switch v.Kind {
	case KindSchema:
		return ErrSchema
	case KindMembership:
		return ErrMembership
	case KindRange:
		return ErrRange
	case KindRequired:
		return ErrRequired
	}
	return nil
}

// Details flattens the violation for an error envelope.
func (v *Violation) Details() map[string]any {
	d := map[string]any{
		"kind":  string(v.Kind),
		"field": v.Field,
	}
	if v.Value != nil {
		d["value"] = v.Value
	}
	if len(v.Accepted) > 0 {
		d["accepted"] = append([]string(nil), v.Accepted...)
	}
	if v.Min != nil {
		d["min"] = *v.Min
	}
	if v.Max != nil {
		d["max"] = *v.Max
	}
	return d
}

// AsViolation reports whether err carries a *Violation.
func AsViolation(err error) (*Violation, bool) {
	var v *Violation
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}

// Nested prefixes the field path of a violation raised inside a sub-object.
func Nested(prefix string, err error) error {
	v, ok := AsViolation(err)
	if !ok {
		return err
	}
	out := *v
	out.Field = prefix + "." + v.Field
	return &out
}

func Missing(field string) *Violation {
	return &Violation{
		Kind:    KindRequired,
		Field:   field,
		Message: "field required",
	}
}

func Undeclared(field string, value any) *Violation {
	return &Violation{
		Kind:    KindSchema,
		Field:   field,
		Value:   value,
		Message: "extra fields not permitted",
	}
}

func WrongType(field string, value any, expected string) *Violation {
	return &Violation{
		Kind:    KindSchema,
		Field:   field,
		Value:   value,
		Message: "expected " + expected,
	}
}

// Malformed reports a string of the right type in the wrong format.
func Malformed(field string, value any, format string) *Violation {
	return &Violation{
		Kind:    KindSchema,
		Field:   field,
		Value:   value,
		Message: "invalid format, expected " + format,
	}
}

func NotMember(field string, value any, accepted []string) *Violation {
	return &Violation{
		Kind:     KindMembership,
		Field:    field,
		Value:    value,
		Accepted: append([]string(nil), accepted...),
		Message:  fmt.Sprintf("invalid %s. Must be one of: %s", field, strings.Join(accepted, ", ")),
	}
}

func OutOfRange(field string, value any, lo, hi *int64) *Violation {
	var msg string
	switch {
	case lo != nil && hi != nil:
		msg = fmt.Sprintf("must be between %d and %d", *lo, *hi)
	case lo != nil:
		msg = fmt.Sprintf("must be greater than or equal to %d", *lo)
	case hi != nil:
		msg = fmt.Sprintf("must be less than or equal to %d", *hi)
	default:
		msg = "out of range"
	}
	return &Violation{
		Kind:    KindRange,
		Field:   field,
		Value:   value,
		Min:     lo,
		Max:     hi,
		Message: msg,
	}
}

// Bound is a helper for building range limits inline.
func Bound(n int64) *int64 {
	return &n
}
