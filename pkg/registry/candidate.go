package registry

import (
	"context"
	"fmt"

	"github.com/uzlow/webtools/pkg/schema"
)

// Candidate is the shape any discovery mechanism must produce. The registry
// depends only on this interface, never on how candidates are located: a
// directory scan, an embedded table, and a fetched manifest all register the
// same way.
type Candidate interface {
	// ToolName is the proposed registry key.
	ToolName() string
	// Describe returns the display description.
	Describe() string
	// ResolveEntrypoint resolves the candidate's entrypoint into the
	// canonical handler shape. Failure rejects the candidate.
	ResolveEntrypoint() (Handler, error)
	// BuildSchema constructs the declared input schema, or returns a nil
	// schema when the tool declares no inputs.
	BuildSchema() (*schema.Schema, error)
	// FunctionDocs returns display-only callable metadata.
	FunctionDocs() map[string]FunctionInfo
	// Origin identifies where the candidate came from, for diagnostics.
	Origin() string
}

// Source supplies candidates to Registry.Load.
type Source interface {
	Discover(ctx context.Context) ([]Candidate, error)
}

// MultiSource concatenates candidates from several sources in order. A source
// that fails discovery fails the whole pass; partial registries would be
// indistinguishable from successful small ones.
type MultiSource []Source

func (m MultiSource) Discover(ctx context.Context) ([]Candidate, error) {
	var all []Candidate
	for _, src := range m {
		candidates, err := src.Discover(ctx)
		if err != nil {
			return nil, err
		}
		all = append(all, candidates...)
	}
	return all, nil
}

// StaticCandidate is a candidate defined directly in Go, used for built-in
// tools and fixtures. Exactly one of Handler or NoArg must be set.
type StaticCandidate struct {
	Name        string
	Description string
	Handler     Handler
	NoArg       NoArgHandler
	Fields      []schema.FieldDef
	Required    []string
	Functions   map[string]FunctionInfo
}

func (c StaticCandidate) ToolName() string { return c.Name }

func (c StaticCandidate) Describe() string { return c.Description }

func (c StaticCandidate) ResolveEntrypoint() (Handler, error) {
	switch {
	case c.Handler != nil && c.NoArg != nil:
		return nil, fmt.Errorf("both payload and no-arg entrypoints declared")
	case c.Handler != nil:
		return c.Handler, nil
	case c.NoArg != nil:
		return Adapt(c.NoArg), nil
	default:
		return nil, fmt.Errorf("no entrypoint declared")
	}
}

func (c StaticCandidate) BuildSchema() (*schema.Schema, error) {
	if c.Fields == nil {
		return nil, nil
	}
	return schema.New(c.Fields, c.Required)
}

func (c StaticCandidate) FunctionDocs() map[string]FunctionInfo { return c.Functions }

func (c StaticCandidate) Origin() string { return "builtin" }

// StaticSource is an embedded table of candidates.
type StaticSource []Candidate

func (s StaticSource) Discover(context.Context) ([]Candidate, error) {
	return append([]Candidate(nil), s...), nil
}
