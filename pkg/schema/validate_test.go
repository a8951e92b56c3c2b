package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustSchema(t *testing.T, defs []FieldDef, required []string) *Schema {
	t.Helper()
	s, err := New(defs, required)
	require.NoError(t, err)
	return s
}

func kinds(err error) map[string]ErrorKind {
	ve, ok := err.(*ValidationError)
	if !ok {
		return nil
	}
	out := make(map[string]ErrorKind, len(ve.Errors))
	for _, fe := range ve.Errors {
		out[fe.Field] = fe.Kind
	}
	return out
}

func TestValidate_CollectsAllMissingRequired(t *testing.T) {
	s := mustSchema(t, []FieldDef{
		{Name: "a", Spec: FieldSpec{Type: TypeNumber}},
		{Name: "b", Spec: FieldSpec{Type: TypeString}},
	}, []string{"a", "b"})

	out, err := s.Validate(map[string]any{})
	require.Error(t, err)
	assert.Nil(t, out)

	got := kinds(err)
	assert.Equal(t, ErrMissingRequired, got["a"])
	assert.Equal(t, ErrMissingRequired, got["b"])
}

func TestValidate_DefaultsSubstituted(t *testing.T) {
	s := mustSchema(t, []FieldDef{
		{Name: "length", Spec: FieldSpec{
			Type:    TypeNumber,
			Minimum: floatPtr(8),
			Maximum: floatPtr(64),
			Default: 12,
		}},
	}, nil)

	out, err := s.Validate(map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"length": float64(12)}, out)
}

func TestValidate_RangeViolation(t *testing.T) {
	s := mustSchema(t, []FieldDef{
		{Name: "length", Spec: FieldSpec{
			Type:    TypeNumber,
			Minimum: floatPtr(8),
			Maximum: floatPtr(64),
			Default: 12,
		}},
	}, nil)

	_, err := s.Validate(map[string]any{"length": 5})
	require.Error(t, err)
	assert.Equal(t, ErrRangeViolation, kinds(err)["length"])

	_, err = s.Validate(map[string]any{"length": 65})
	require.Error(t, err)
	assert.Equal(t, ErrRangeViolation, kinds(err)["length"])
}

func TestValidate_Enum(t *testing.T) {
	s := mustSchema(t, []FieldDef{
		{Name: "complexity", Spec: FieldSpec{
			Type:    TypeString,
			Enum:    []any{"simple", "medium", "complex"},
			Default: "medium",
		}},
	}, nil)

	out, err := s.Validate(map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "medium", out["complexity"])

	_, err = s.Validate(map[string]any{"complexity": "extreme"})
	require.Error(t, err)
	assert.Equal(t, ErrEnumViolation, kinds(err)["complexity"])

	ve := err.(*ValidationError)
	require.Len(t, ve.Errors, 1)
	assert.Equal(t, []any{"simple", "medium", "complex"}, ve.Errors[0].Allowed)
}

func TestValidate_EnumStringMembershipIsExact(t *testing.T) {
	s := mustSchema(t, []FieldDef{
		{Name: "version", Spec: FieldSpec{
			Type: TypeString,
			Enum: []any{"1", "2"},
		}},
	}, nil)

	out, err := s.Validate(map[string]any{"version": "1"})
	require.NoError(t, err)
	assert.Equal(t, "1", out["version"])

	// Numerically equivalent spellings are not members of a string enum.
	for _, raw := range []string{"01", "1.0", "2e0"} {
		_, err := s.Validate(map[string]any{"version": raw})
		require.Error(t, err, "raw=%q", raw)
		assert.Equal(t, ErrEnumViolation, kinds(err)["version"], "raw=%q", raw)
	}
}

func TestValidate_EnumNumberToleratesSpelling(t *testing.T) {
	s := mustSchema(t, []FieldDef{
		{Name: "level", Spec: FieldSpec{
			Type: TypeNumber,
			Enum: []any{1, 2},
		}},
	}, nil)

	for _, raw := range []any{2, 2.0, "2", "2.0"} {
		out, err := s.Validate(map[string]any{"level": raw})
		require.NoError(t, err, "raw=%v", raw)
		assert.Equal(t, float64(2), out["level"], "raw=%v", raw)
	}

	_, err := s.Validate(map[string]any{"level": 3})
	require.Error(t, err)
	assert.Equal(t, ErrEnumViolation, kinds(err)["level"])
}

func TestValidate_JSONBlob(t *testing.T) {
	s := mustSchema(t, []FieldDef{
		{Name: "config", Spec: FieldSpec{Type: TypeJSONBlob}},
	}, nil)

	_, err := s.Validate(map[string]any{"config": "{bad json"})
	require.Error(t, err)
	assert.Equal(t, ErrInvalidJSON, kinds(err)["config"])

	out, err := s.Validate(map[string]any{"config": `{"x":1}`})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": float64(1)}, out["config"])

	// Already-structured values pass through untouched.
	out, err = s.Validate(map[string]any{"config": map[string]any{"y": true}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"y": true}, out["config"])

	out, err = s.Validate(map[string]any{"config": `[1,2]`})
	require.NoError(t, err)
	assert.Equal(t, []any{float64(1), float64(2)}, out["config"])

	// Valid JSON that parses to a scalar is not structured data.
	for _, raw := range []string{`5`, `"hi"`, `true`, `null`} {
		_, err := s.Validate(map[string]any{"config": raw})
		require.Error(t, err, "raw=%s", raw)
		assert.Equal(t, ErrTypeMismatch, kinds(err)["config"], "raw=%s", raw)
	}

	_, err = s.Validate(map[string]any{"config": 42})
	require.Error(t, err)
	assert.Equal(t, ErrTypeMismatch, kinds(err)["config"])
}

func TestValidate_NumberCoercion(t *testing.T) {
	s := mustSchema(t, []FieldDef{
		{Name: "n", Spec: FieldSpec{Type: TypeNumber}},
	}, nil)

	tests := []struct {
		name string
		raw  any
		want float64
		ok   bool
	}{
		{"float64", 3.5, 3.5, true},
		{"int", 7, 7, true},
		{"numeric string", "42", 42, true},
		{"non-numeric string", "forty-two", 0, false},
		{"bool", true, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := s.Validate(map[string]any{"n": tt.raw})
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, tt.want, out["n"])
			} else {
				require.Error(t, err)
				assert.Equal(t, ErrTypeMismatch, kinds(err)["n"])
			}
		})
	}
}

func TestValidate_BooleanCanonicalOnly(t *testing.T) {
	s := mustSchema(t, []FieldDef{
		{Name: "flag", Spec: FieldSpec{Type: TypeBoolean}},
	}, nil)

	out, err := s.Validate(map[string]any{"flag": true})
	require.NoError(t, err)
	assert.Equal(t, true, out["flag"])

	out, err = s.Validate(map[string]any{"flag": "false"})
	require.NoError(t, err)
	assert.Equal(t, false, out["flag"])

	for _, raw := range []any{"yes", "1", 1, "True"} {
		_, err := s.Validate(map[string]any{"flag": raw})
		require.Error(t, err, "raw=%v", raw)
		assert.Equal(t, ErrTypeMismatch, kinds(err)["flag"])
	}
}

func TestValidate_UnknownFieldsDropped(t *testing.T) {
	s := mustSchema(t, []FieldDef{
		{Name: "keep", Spec: FieldSpec{Type: TypeString}},
	}, nil)

	out, err := s.Validate(map[string]any{"keep": "yes", "extra": "dropped"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"keep": "yes"}, out)
}

func TestValidate_OptionalWithoutDefaultOmitted(t *testing.T) {
	s := mustSchema(t, []FieldDef{
		{Name: "maybe", Spec: FieldSpec{Type: TypeString}},
	}, nil)

	out, err := s.Validate(map[string]any{})
	require.NoError(t, err)
	_, present := out["maybe"]
	assert.False(t, present)
}

func TestValidate_MixedViolationsCollected(t *testing.T) {
	s := mustSchema(t, []FieldDef{
		{Name: "name", Spec: FieldSpec{Type: TypeString}},
		{Name: "count", Spec: FieldSpec{Type: TypeNumber, Minimum: floatPtr(1)}},
		{Name: "mode", Spec: FieldSpec{Type: TypeString, Enum: []any{"fast", "slow"}}},
	}, []string{"name"})

	_, err := s.Validate(map[string]any{
		"count": 0,
		"mode":  "warp",
	})
	require.Error(t, err)

	got := kinds(err)
	assert.Equal(t, ErrMissingRequired, got["name"])
	assert.Equal(t, ErrRangeViolation, got["count"])
	assert.Equal(t, ErrEnumViolation, got["mode"])
}

func TestValidate_NilSchemaYieldsEmptyPayload(t *testing.T) {
	var s *Schema
	out, err := s.Validate(map[string]any{"anything": 1})
	require.NoError(t, err)
	assert.Empty(t, out)
}
