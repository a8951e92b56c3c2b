package tools

import (
	"context"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/uzlow/webtools/pkg/registry"
	"github.com/uzlow/webtools/pkg/schema"
)

func tokenCandidate() registry.Candidate {
	return registry.StaticCandidate{
		Name:        "token_generator",
		Description: "Generate URL-safe random identifiers",
		Handler:     generateTokens,
		Fields: []schema.FieldDef{
			{Name: "length", Spec: schema.FieldSpec{
				Type:        schema.TypeNumber,
				Description: "Length of each token",
				Default:     21,
				Minimum:     floatPtr(4),
				Maximum:     floatPtr(128),
			}},
			{Name: "count", Spec: schema.FieldSpec{
				Type:        schema.TypeNumber,
				Description: "Number of tokens to generate",
				Default:     1,
				Minimum:     floatPtr(1),
				Maximum:     floatPtr(100),
			}},
			{Name: "alphabet", Spec: schema.FieldSpec{
				Type:        schema.TypeString,
				Description: "Custom alphabet; defaults to the URL-safe set",
			}},
		},
		Functions: map[string]registry.FunctionInfo{
			"generate_tokens": {
				Name:       "generate_tokens",
				Doc:        "Generate one or more nanoid tokens with an optional custom alphabet.",
				Parameters: []string{"params"},
				Module:     "tools/token",
			},
		},
	}
}

func generateTokens(_ context.Context, args map[string]any) (any, error) {
	length := intArg(args, "length", 21)
	count := intArg(args, "count", 1)
	alphabet := stringArg(args, "alphabet", "")

	tokens := make([]string, 0, count)
	for i := 0; i < count; i++ {
		var token string
		var err error
		if alphabet != "" {
			token, err = gonanoid.Generate(alphabet, length)
		} else {
			token, err = gonanoid.New(length)
		}
		if err != nil {
			return nil, fmt.Errorf("token generation failed: %w", err)
		}
		tokens = append(tokens, token)
	}

	return map[string]any{
		"tokens": tokens,
		"length": length,
		"count":  len(tokens),
	}, nil
}
