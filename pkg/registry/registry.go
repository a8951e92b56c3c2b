package registry

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/uzlow/webtools/pkg/schema"
)

// Handler is the canonical call shape every registered tool is normalized to
// at registration time. Tools that declare no inputs are wrapped so their
// handler ignores the coerced payload.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// NoArgHandler is the shape of a tool that declares no inputs.
type NoArgHandler func(ctx context.Context) (any, error)

// Adapt wraps a no-arg handler into the canonical call shape.
func Adapt(h NoArgHandler) Handler {
	return func(ctx context.Context, _ map[string]any) (any, error) {
		return h(ctx)
	}
}

// FunctionInfo is descriptive metadata about a callable a tool exposes. It is
// used only for display, never for execution.
type FunctionInfo struct {
	Name       string   `json:"name"`
	Doc        string   `json:"doc"`
	Parameters []string `json:"parameters"`
	Module     string   `json:"module"`
}

// Definition is a successfully registered tool.
type Definition struct {
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	Handler     Handler                 `json:"-"`
	Schema      *schema.Schema          `json:"schema,omitempty"`
	Functions   map[string]FunctionInfo `json:"functions,omitempty"`
	Source      string                  `json:"source,omitempty"`
}

// DuplicateError reports a candidate whose name is already registered. The
// first-registered definition wins and is never replaced.
type DuplicateError struct {
	Tool string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("tool %q is already registered", e.Tool)
}

// EntrypointError reports a candidate whose entrypoint could not be resolved
// to a callable.
type EntrypointError struct {
	Tool string
	Err  error
}

func (e *EntrypointError) Error() string {
	return fmt.Sprintf("tool %q: unresolved entrypoint: %v", e.Tool, e.Err)
}

func (e *EntrypointError) Unwrap() error { return e.Err }

// Rejection records why a candidate was excluded from the registry. Kept for
// diagnostics; a rejection never aborts the build for other candidates.
type Rejection struct {
	Tool   string `json:"tool"`
	Source string `json:"source,omitempty"`
	Reason string `json:"reason"`
	err    error
}

// Cause returns the underlying rejection error.
func (r Rejection) Cause() error { return r.err }

// snapshot is one immutable generation of the registry. Lookups read whichever
// snapshot was current when they started; a reload swaps in a fresh one and
// in-flight executions keep the definitions they resolved.
type snapshot struct {
	byName     map[string]*Definition
	order      []string
	rejections []Rejection
	builtAt    time.Time
}

func emptySnapshot() *snapshot {
	return &snapshot{byName: map[string]*Definition{}, builtAt: time.Now()}
}

// Registry is the process-wide tool collection. It is built from a Source,
// read-mostly, and reloaded by atomic snapshot swap.
type Registry struct {
	source Source
	logger zerolog.Logger
	snap   atomic.Pointer[snapshot]
}

// New creates an empty registry backed by the given source.
func New(source Source, logger zerolog.Logger) *Registry {
	r := &Registry{
		source: source,
		logger: logger.With().Str("component", "registry").Logger(),
	}
	r.snap.Store(emptySnapshot())
	return r
}

// Load runs discovery and atomically swaps in the resulting snapshot. Invalid
// candidates are excluded with their rejection reason retained; they never
// fail the build for valid tools. Load is also the reload path.
func (r *Registry) Load(ctx context.Context) error {
	candidates, err := r.source.Discover(ctx)
	if err != nil {
		return fmt.Errorf("tool discovery failed: %w", err)
	}

	next := emptySnapshot()
	for _, candidate := range candidates {
		var rerr error
		var def *Definition

		if _, dup := next.byName[candidate.ToolName()]; dup && candidate.ToolName() != "" {
			rerr = &DuplicateError{Tool: candidate.ToolName()}
		} else {
			def, rerr = r.build(candidate)
		}
		if rerr != nil {
			next.rejections = append(next.rejections, Rejection{
				Tool:   candidate.ToolName(),
				Source: candidate.Origin(),
				Reason: rerr.Error(),
				err:    rerr,
			})
			r.logger.Warn().
				Str("tool", candidate.ToolName()).
				Str("source", candidate.Origin()).
				Err(rerr).
				Msg("Tool candidate rejected")
			continue
		}

		next.byName[def.Name] = def
		next.order = append(next.order, def.Name)
		r.logger.Info().
			Str("tool", def.Name).
			Int("fields", def.Schema.Len()).
			Msg("Tool registered")
	}

	r.snap.Store(next)
	r.logger.Info().
		Int("tools", len(next.order)).
		Int("rejected", len(next.rejections)).
		Msg("Registry loaded")
	return nil
}

// build validates a single candidate into a Definition.
func (r *Registry) build(candidate Candidate) (*Definition, error) {
	name := candidate.ToolName()
	if name == "" {
		return nil, fmt.Errorf("tool name cannot be empty")
	}

	handler, err := candidate.ResolveEntrypoint()
	if err != nil {
		return nil, &EntrypointError{Tool: name, Err: err}
	}
	if handler == nil {
		return nil, &EntrypointError{Tool: name, Err: fmt.Errorf("entrypoint is nil")}
	}

	toolSchema, err := candidate.BuildSchema()
	if err != nil {
		return nil, fmt.Errorf("tool %q: %w", name, err)
	}

	return &Definition{
		Name:        name,
		Description: candidate.Describe(),
		Handler:     handler,
		Schema:      toolSchema,
		Functions:   candidate.FunctionDocs(),
		Source:      candidate.Origin(),
	}, nil
}

// Lookup returns the definition for name from the current snapshot. Absence
// is not an error; callers decide whether it is.
func (r *Registry) Lookup(name string) (*Definition, bool) {
	def, ok := r.snap.Load().byName[name]
	return def, ok
}

// Definitions returns all registered tools in discovery order.
func (r *Registry) Definitions() []*Definition {
	snap := r.snap.Load()
	defs := make([]*Definition, 0, len(snap.order))
	for _, name := range snap.order {
		defs = append(defs, snap.byName[name])
	}
	return defs
}

// Rejections returns the diagnostics for candidates excluded from the current
// snapshot.
func (r *Registry) Rejections() []Rejection {
	return append([]Rejection(nil), r.snap.Load().rejections...)
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.snap.Load().order)
}

// BuiltAt returns when the current snapshot was assembled.
func (r *Registry) BuiltAt() time.Time {
	return r.snap.Load().builtAt
}
