package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// ErrorKind tags a single field violation.
type ErrorKind string

const (
	ErrMissingRequired ErrorKind = "missing_required_field"
	ErrTypeMismatch    ErrorKind = "type_mismatch"
	ErrInvalidJSON     ErrorKind = "invalid_json"
	ErrEnumViolation   ErrorKind = "enum_violation"
	ErrRangeViolation  ErrorKind = "range_violation"
)

// FieldError is one violation found while validating a payload field.
type FieldError struct {
	Field   string    `json:"field"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Allowed []any     `json:"allowed,omitempty"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError carries every violation found in a single validation pass.
type ValidationError struct {
	Errors []FieldError `json:"errors"`
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fe.Error()
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
}

// Validate checks a raw payload against the schema and returns the coerced
// arguments. All fields are checked in declaration order and every violation
// is collected; the coerced payload is returned only when no violation was
// found. Unknown payload fields are dropped: the output contains exactly the
// schema's fields, nothing more.
func (s *Schema) Validate(payload map[string]any) (map[string]any, error) {
	if s == nil {
		return map[string]any{}, nil
	}

	out := make(map[string]any, len(s.order))
	var violations []FieldError

	for _, name := range s.order {
		spec := s.fields[name]

		raw, present := payload[name]
		if !present {
			if spec.Default != nil {
				out[name] = spec.Default
			} else if spec.Required {
				violations = append(violations, FieldError{
					Field:   name,
					Kind:    ErrMissingRequired,
					Message: "required field is missing",
				})
			}
			continue
		}

		value, ferr := coerceValue(name, spec.Type, raw)
		if ferr != nil {
			violations = append(violations, *ferr)
			continue
		}

		if ferr := checkConstraints(name, spec, value); ferr != nil {
			violations = append(violations, *ferr)
			continue
		}

		out[name] = value
	}

	if len(violations) > 0 {
		return nil, &ValidationError{Errors: violations}
	}
	return out, nil
}

// coerceValue converts a raw payload value into the field's declared type.
func coerceValue(field string, typ FieldType, raw any) (any, *FieldError) {
	switch typ {
	case TypeString:
		if s, ok := raw.(string); ok {
			return s, nil
		}
		return nil, mismatch(field, typ, raw)

	case TypeNumber:
		if n, ok := toNumber(raw); ok {
			return n, nil
		}
		return nil, mismatch(field, typ, raw)

	case TypeBoolean:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			// Only the canonical pair, no string-to-bool guessing.
			if v == "true" {
				return true, nil
			}
			if v == "false" {
				return false, nil
			}
		}
		return nil, mismatch(field, typ, raw)

	case TypeArray:
		if a, ok := raw.([]any); ok {
			return a, nil
		}
		return nil, mismatch(field, typ, raw)

	case TypeObject:
		if o, ok := raw.(map[string]any); ok {
			return o, nil
		}
		return nil, mismatch(field, typ, raw)

	case TypeJSONBlob:
		switch v := raw.(type) {
		case string:
			var parsed any
			if err := json.Unmarshal([]byte(v), &parsed); err != nil {
				return nil, &FieldError{
					Field:   field,
					Kind:    ErrInvalidJSON,
					Message: "value is not valid JSON",
				}
			}
			// Scalars are valid JSON but not structured data.
			switch parsed.(type) {
			case map[string]any, []any:
				return parsed, nil
			}
			return nil, &FieldError{
				Field:   field,
				Kind:    ErrTypeMismatch,
				Message: "value must parse to a JSON object or array",
			}
		case map[string]any, []any:
			return v, nil
		}
		return nil, mismatch(field, typ, raw)
	}

	return nil, mismatch(field, typ, raw)
}

// checkConstraints applies enum membership and numeric bounds to an already
// coerced value.
func checkConstraints(field string, spec FieldSpec, value any) *FieldError {
	if len(spec.Enum) > 0 {
		found := false
		for _, allowed := range spec.Enum {
			if equal(spec.Type, allowed, value) {
				found = true
				break
			}
		}
		if !found {
			return &FieldError{
				Field:   field,
				Kind:    ErrEnumViolation,
				Message: fmt.Sprintf("value %v is not one of the allowed values", value),
				Allowed: spec.Enum,
			}
		}
	}

	if spec.Type.Numeric() {
		n, _ := value.(float64)
		if spec.Minimum != nil && n < *spec.Minimum {
			return &FieldError{
				Field:   field,
				Kind:    ErrRangeViolation,
				Message: fmt.Sprintf("value %v is below minimum %v", n, *spec.Minimum),
			}
		}
		if spec.Maximum != nil && n > *spec.Maximum {
			return &FieldError{
				Field:   field,
				Kind:    ErrRangeViolation,
				Message: fmt.Sprintf("value %v is above maximum %v", n, *spec.Maximum),
			}
		}
	}

	return nil
}

func toNumber(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		n, err := v.Float64()
		return n, err == nil
	case string:
		n, err := strconv.ParseFloat(v, 64)
		return n, err == nil
	}
	return 0, false
}

// equal compares an enum literal against a coerced value. Numeric tolerance
// ("2" == 2.0) applies only to numeric fields; everywhere else membership is
// exact, so a string field with enum ["1","2"] does not admit "01" or "1.0".
func equal(typ FieldType, a, b any) bool {
	if typ.Numeric() {
		an, aok := toNumber(a)
		bn, bok := toNumber(b)
		return aok && bok && an == bn
	}
	return reflect.DeepEqual(a, b)
}

func mismatch(field string, expected FieldType, raw any) *FieldError {
	return &FieldError{
		Field:   field,
		Kind:    ErrTypeMismatch,
		Message: fmt.Sprintf("expected %s, got %s", expected, typeName(raw)),
	}
}

func typeName(raw any) string {
	switch raw.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int32, int64, uint, uint32, uint64, json.Number:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", raw)
	}
}
