package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Azure Linux VM names: at most 64 characters, no leading or trailing hyphen.
// Lowercase only, since Azure compares names case-insensitively.
var resourceNamePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,62}[a-z0-9])?$`)

const resourceNameFormat = "lowercase letters, digits and inner hyphens, at most 64 characters"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("resource_name", func(fl validator.FieldLevel) bool {
		return resourceNamePattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// String requires a JSON string.
func String(field string, raw any) (string, error) {
	s, ok := raw.(string)
	if !ok {
		return "", WrongType(field, raw, "string")
	}
	return s, nil
}

// NonEmptyString treats blank strings as missing.
func NonEmptyString(field string, raw any) (string, error) {
	s, err := String(field, raw)
	if err != nil {
		return "", err
	}
	if validate.Var(strings.TrimSpace(s), "required") != nil {
		return "", Missing(field)
	}
	return s, nil
}

// ResourceName checks a name that ends up in cloud resource names and object
// keys. Blank names are missing; anything else outside the format is a
// schema violation.
func ResourceName(field string, raw any) (string, error) {
	s, err := NonEmptyString(field, raw)
	if err != nil {
		return "", err
	}
	if validate.Var(s, "resource_name") != nil {
		return "", Malformed(field, s, resourceNameFormat)
	}
	return s, nil
}

// Bool requires a JSON boolean.
func Bool(field string, raw any) (bool, error) {
	b, ok := raw.(bool)
	if !ok {
		return false, WrongType(field, raw, "boolean")
	}
	return b, nil
}

// Int accepts whole JSON numbers only. Whole numbers beyond int64 are a range
// violation carrying the literal as sent.
func Int(field string, raw any) (int64, error) {
	switch n := raw.(type) {
	case json.Number:
		i, err := n.Int64()
		if err == nil {
			return i, nil
		}
		if errors.Is(err, strconv.ErrRange) {
			return 0, outsideInt64(field, raw)
		}
		f, err := n.Float64()
		if err != nil {
			return 0, WrongType(field, raw, "integer")
		}
		return wholeFloat(field, raw, f)
	case float64:
		return wholeFloat(field, raw, n)
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	}
	return 0, WrongType(field, raw, "integer")
}

// 2^63 is exact in float64; float64(math.MaxInt64) rounds up to it.
const twoTo63 = float64(1 << 63)

func wholeFloat(field string, raw any, f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, WrongType(field, raw, "integer")
	}
	if f >= twoTo63 || f < -twoTo63 {
		return 0, outsideInt64(field, raw)
	}
	return int64(f), nil
}

func outsideInt64(field string, raw any) *Violation {
	return OutOfRange(field, raw, Bound(math.MinInt64), Bound(math.MaxInt64))
}

// IntRange checks an integer against inclusive bounds; a nil bound is open.
// Values beyond int64 are reported against the same bounds.
func IntRange(field string, raw any, lo, hi *int64) (int64, error) {
	n, err := Int(field, raw)
	if err != nil {
		if v, ok := AsViolation(err); ok && v.Kind == KindRange && (lo != nil || hi != nil) {
			return 0, OutOfRange(field, v.Value, lo, hi)
		}
		return 0, err
	}

	var rules []string
	if lo != nil {
		rules = append(rules, fmt.Sprintf("gte=%d", *lo))
	}
	if hi != nil {
		rules = append(rules, fmt.Sprintf("lte=%d", *hi))
	}
	if len(rules) == 0 {
		return n, nil
	}
	if err := validate.Var(n, strings.Join(rules, ",")); err != nil {
		return 0, OutOfRange(field, n, lo, hi)
	}
	return n, nil
}

// Object requires a JSON object and returns it without copying.
func Object(field string, raw any) (map[string]any, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, WrongType(field, raw, "object")
	}
	return m, nil
}

// StringMap copies a JSON object whose values must all be strings.
func StringMap(field string, raw any) (map[string]string, error) {
	m, err := Object(field, raw)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(m))
	for _, k := range sortedKeys(m) {
		s, ok := m[k].(string)
		if !ok {
			return nil, WrongType(field+"."+k, m[k], "string")
		}
		out[k] = s
	}
	return out, nil
}

// AnyMap copies a JSON object without inspecting its values.
func AnyMap(field string, raw any) (map[string]any, error) {
	m, err := Object(field, raw)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out, nil
}

// OneOf checks that value is a string equal to one of accepted.
func OneOf(field string, raw any, accepted []string) (string, error) {
	s, err := String(field, raw)
	if err != nil {
		return "", err
	}
	for _, a := range accepted {
		if s == a {
			return s, nil
		}
	}
	return "", NotMember(field, s, accepted)
}
