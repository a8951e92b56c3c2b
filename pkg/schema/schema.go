package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
)

// FieldType is the declared semantic type of an input field.
type FieldType string

const (
	TypeString   FieldType = "string"
	TypeNumber   FieldType = "number"
	TypeBoolean  FieldType = "boolean"
	TypeArray    FieldType = "array"
	TypeObject   FieldType = "object"
	TypeJSONBlob FieldType = "json-blob"
)

// ParseFieldType parses a declared type string. "integer" is accepted as an
// alias for number since manifest authors commonly declare it.
func ParseFieldType(s string) (FieldType, error) {
	switch s {
	case "string":
		return TypeString, nil
	case "number", "integer":
		return TypeNumber, nil
	case "boolean":
		return TypeBoolean, nil
	case "array":
		return TypeArray, nil
	case "object":
		return TypeObject, nil
	case "json-blob":
		return TypeJSONBlob, nil
	default:
		return "", fmt.Errorf("unknown field type: %q", s)
	}
}

// Numeric reports whether minimum/maximum bounds apply to the type.
func (t FieldType) Numeric() bool {
	return t == TypeNumber
}

// FieldSpec describes a single declared input field.
type FieldSpec struct {
	Type        FieldType `json:"type"`
	Required    bool      `json:"required"`
	Default     any       `json:"default,omitempty"`
	Enum        []any     `json:"enum,omitempty"`
	Minimum     *float64  `json:"minimum,omitempty"`
	Maximum     *float64  `json:"maximum,omitempty"`
	Description string    `json:"description,omitempty"`
}

// FieldDef is a named FieldSpec. Schemas are built from an ordered slice of
// these so that declaration order survives into presentation.
type FieldDef struct {
	Name string
	Spec FieldSpec
}

// DefinitionError reports a malformed schema definition at build time.
type DefinitionError struct {
	Field  string
	Reason string
}

func (e *DefinitionError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("schema definition error: %s", e.Reason)
	}
	return fmt.Sprintf("schema definition error: field %q: %s", e.Field, e.Reason)
}

// Schema is an immutable description of a tool's accepted inputs. Field order
// is the declaration order and drives presentation.
type Schema struct {
	fields   map[string]FieldSpec
	order    []string
	required []string
}

// New builds a Schema from ordered field definitions and the list of required
// field names. Construction fails with a *DefinitionError when the definition
// itself is malformed; bounds on non-numeric fields are a warning only and
// are dropped from the resulting schema.
func New(defs []FieldDef, required []string) (*Schema, error) {
	fields := make(map[string]FieldSpec, len(defs))
	order := make([]string, 0, len(defs))

	for _, def := range defs {
		if def.Name == "" {
			return nil, &DefinitionError{Reason: "field name cannot be empty"}
		}
		if _, dup := fields[def.Name]; dup {
			return nil, &DefinitionError{Field: def.Name, Reason: "duplicate field name"}
		}

		spec, err := normalizeSpec(def.Name, def.Spec)
		if err != nil {
			return nil, err
		}

		fields[def.Name] = spec
		order = append(order, def.Name)
	}

	seen := make(map[string]bool, len(required))
	for _, name := range required {
		if _, ok := fields[name]; !ok {
			return nil, &DefinitionError{Field: name, Reason: "required field is not declared"}
		}
		if !seen[name] {
			seen[name] = true
			spec := fields[name]
			spec.Required = true
			fields[name] = spec
		}
	}

	// Fields can also be marked required inline on the spec.
	ordered := make([]string, 0, len(required))
	for _, name := range order {
		if fields[name].Required {
			ordered = append(ordered, name)
		}
	}

	return &Schema{fields: fields, order: order, required: ordered}, nil
}

func normalizeSpec(name string, spec FieldSpec) (FieldSpec, error) {
	typ, err := ParseFieldType(string(spec.Type))
	if err != nil {
		return spec, &DefinitionError{Field: name, Reason: err.Error()}
	}
	spec.Type = typ

	if spec.Enum != nil && len(spec.Enum) == 0 {
		return spec, &DefinitionError{Field: name, Reason: "enum cannot be empty"}
	}

	if len(spec.Enum) > 0 {
		coerced := make([]any, len(spec.Enum))
		for i, literal := range spec.Enum {
			value, ferr := coerceValue(name, spec.Type, literal)
			if ferr != nil {
				return spec, &DefinitionError{
					Field:  name,
					Reason: fmt.Sprintf("enum value %v does not match declared type %s", literal, spec.Type),
				}
			}
			coerced[i] = value
		}
		spec.Enum = coerced
	}

	if (spec.Minimum != nil || spec.Maximum != nil) && !spec.Type.Numeric() {
		log.Warn().
			Str("field", name).
			Str("type", string(spec.Type)).
			Msg("minimum/maximum ignored on non-numeric field")
		spec.Minimum = nil
		spec.Maximum = nil
	}

	if spec.Default != nil {
		value, ferr := coerceValue(name, spec.Type, spec.Default)
		if ferr != nil {
			return spec, &DefinitionError{
				Field:  name,
				Reason: fmt.Sprintf("default value does not match declared type %s", spec.Type),
			}
		}
		if ferr := checkConstraints(name, spec, value); ferr != nil {
			return spec, &DefinitionError{
				Field:  name,
				Reason: fmt.Sprintf("default value violates field constraints: %s", ferr.Message),
			}
		}
		spec.Default = value
	}

	return spec, nil
}

// Len returns the number of declared fields.
func (s *Schema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Fields returns the declared fields in declaration order.
func (s *Schema) Fields() []FieldDef {
	if s == nil {
		return nil
	}
	defs := make([]FieldDef, 0, len(s.order))
	for _, name := range s.order {
		defs = append(defs, FieldDef{Name: name, Spec: s.fields[name]})
	}
	return defs
}

// Spec looks up a single field by name.
func (s *Schema) Spec(name string) (FieldSpec, bool) {
	if s == nil {
		return FieldSpec{}, false
	}
	spec, ok := s.fields[name]
	return spec, ok
}

// Required returns the required field names in declaration order.
func (s *Schema) Required() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.required...)
}

// MarshalJSON renders the schema as an ordered field list so consumers see
// fields in declaration order regardless of map iteration.
func (s *Schema) MarshalJSON() ([]byte, error) {
	type fieldJSON struct {
		Name string `json:"name"`
		FieldSpec
	}

	out := struct {
		Fields   []fieldJSON `json:"fields"`
		Required []string    `json:"required,omitempty"`
	}{
		Fields:   make([]fieldJSON, 0, s.Len()),
		Required: s.Required(),
	}
	for _, def := range s.Fields() {
		out.Fields = append(out.Fields, fieldJSON{Name: def.Name, FieldSpec: def.Spec})
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
