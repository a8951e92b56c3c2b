package tools

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"

	"github.com/uzlow/webtools/pkg/registry"
	"github.com/uzlow/webtools/pkg/schema"
)

const (
	upperChars   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerChars   = "abcdefghijklmnopqrstuvwxyz"
	digitChars   = "0123456789"
	specialChars = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
)

func passwordCandidate() registry.Candidate {
	return registry.StaticCandidate{
		Name:        "password_generator",
		Description: "Generate secure passwords with customizable parameters",
		Handler:     generatePassword,
		Fields: []schema.FieldDef{
			{Name: "length", Spec: schema.FieldSpec{
				Type:        schema.TypeNumber,
				Description: "Length of the password",
				Default:     12,
				Minimum:     floatPtr(8),
				Maximum:     floatPtr(128),
			}},
			{Name: "include_uppercase", Spec: schema.FieldSpec{
				Type:        schema.TypeBoolean,
				Description: "Include uppercase letters",
				Default:     true,
			}},
			{Name: "include_lowercase", Spec: schema.FieldSpec{
				Type:        schema.TypeBoolean,
				Description: "Include lowercase letters",
				Default:     true,
			}},
			{Name: "include_numbers", Spec: schema.FieldSpec{
				Type:        schema.TypeBoolean,
				Description: "Include numbers",
				Default:     true,
			}},
			{Name: "include_special", Spec: schema.FieldSpec{
				Type:        schema.TypeBoolean,
				Description: "Include special characters",
				Default:     true,
			}},
		},
		Functions: map[string]registry.FunctionInfo{
			"generate_password": {
				Name:       "generate_password",
				Doc:        "Generate a password from the selected character classes using a cryptographic random source.",
				Parameters: []string{"params"},
				Module:     "tools/passwordgen",
			},
		},
	}
}

func generatePassword(_ context.Context, args map[string]any) (any, error) {
	length := intArg(args, "length", 12)

	var chars strings.Builder
	if boolArg(args, "include_uppercase", true) {
		chars.WriteString(upperChars)
	}
	if boolArg(args, "include_lowercase", true) {
		chars.WriteString(lowerChars)
	}
	if boolArg(args, "include_numbers", true) {
		chars.WriteString(digitChars)
	}
	if boolArg(args, "include_special", true) {
		chars.WriteString(specialChars)
	}
	if chars.Len() == 0 {
		return nil, errors.New("at least one character type must be selected")
	}

	charset := chars.String()
	password := make([]byte, length)
	for i := range password {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return nil, err
		}
		password[i] = charset[n.Int64()]
	}

	result := string(password)
	return map[string]any{
		"password":           result,
		"length":             len(result),
		"contains_uppercase": strings.ContainsAny(result, upperChars),
		"contains_lowercase": strings.ContainsAny(result, lowerChars),
		"contains_numbers":   strings.ContainsAny(result, digitChars),
		"contains_special":   strings.ContainsAny(result, specialChars),
	}, nil
}

func floatPtr(f float64) *float64 { return &f }

// intArg reads a coerced numeric argument. The validator guarantees typed
// values for declared fields; the fallback covers rebound entrypoints whose
// manifests omit the field.
func intArg(args map[string]any, name string, fallback int) int {
	if v, ok := args[name].(float64); ok {
		return int(v)
	}
	return fallback
}

func boolArg(args map[string]any, name string, fallback bool) bool {
	if v, ok := args[name].(bool); ok {
		return v
	}
	return fallback
}

func stringArg(args map[string]any, name, fallback string) string {
	if v, ok := args[name].(string); ok && v != "" {
		return v
	}
	return fallback
}
