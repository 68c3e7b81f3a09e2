package validation

import "sort"

// Field is one entry of a schema. Apply receives the raw JSON value and writes
// the checked, normalized value into dst. Default runs when the field is
// absent or null and must build fresh values on every call.
type Field[T any] struct {
	Name     string
	Required bool
	Default  func(dst *T)
	Apply    func(raw any, dst *T) error
}

// Schema evaluates its fields in declaration order and stops at the first
// failure. A strict schema rejects undeclared keys before any value check.
type Schema[T any] struct {
	Name   string
	Strict bool
	Fields []Field[T]
}

func (s *Schema[T]) Validate(raw map[string]any) (*T, error) {
	if s.Strict {
		if err := s.rejectUndeclared(raw); err != nil {
			return nil, err
		}
	}

	out := new(T)
	for _, f := range s.Fields {
		v, present := raw[f.Name]
		if !present || v == nil {
			if f.Required {
				return nil, Missing(f.Name)
			}
			if f.Default != nil {
				f.Default(out)
			}
			continue
		}
		if f.Apply == nil {
			continue
		}
		if err := f.Apply(v, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// FieldNames lists declared fields in evaluation order.
func (s *Schema[T]) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	return names
}

func (s *Schema[T]) rejectUndeclared(raw map[string]any) error {
	declared := make(map[string]struct{}, len(s.Fields))
	for _, f := range s.Fields {
		declared[f.Name] = struct{}{}
	}

	var extra []string
	for k := range raw {
		if _, ok := declared[k]; !ok {
			extra = append(extra, k)
		}
	}
	if len(extra) == 0 {
		return nil
	}
	sort.Strings(extra)
	return Undeclared(extra[0], raw[extra[0]])
}
