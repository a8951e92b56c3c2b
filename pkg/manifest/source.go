package manifest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/uzlow/webtools/pkg/registry"
)

// HandlerTable maps entrypoint names to compiled handlers. Manifests are
// declarative; the callables they bind to live here.
type HandlerTable struct {
	mu       sync.RWMutex
	handlers map[string]registry.Handler
}

// NewHandlerTable creates an empty handler table.
func NewHandlerTable() *HandlerTable {
	return &HandlerTable{handlers: make(map[string]registry.Handler)}
}

// Register binds an entrypoint name to a handler. Rebinding an existing name
// is an error; entrypoints are identities, not slots.
func (t *HandlerTable) Register(name string, h registry.Handler) error {
	if name == "" {
		return fmt.Errorf("entrypoint name cannot be empty")
	}
	if h == nil {
		return fmt.Errorf("entrypoint %q: handler cannot be nil", name)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.handlers[name]; exists {
		return fmt.Errorf("entrypoint %q is already registered", name)
	}
	t.handlers[name] = h
	return nil
}

// RegisterNoArg binds a no-arg entrypoint, adapting it to the canonical
// call shape.
func (t *HandlerTable) RegisterNoArg(name string, h registry.NoArgHandler) error {
	if h == nil {
		return fmt.Errorf("entrypoint %q: handler cannot be nil", name)
	}
	return t.Register(name, registry.Adapt(h))
}

// Resolve returns the handler bound to name.
func (t *HandlerTable) Resolve(name string) (registry.Handler, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.handlers[name]
	if !ok {
		return nil, fmt.Errorf("no handler registered for entrypoint %q", name)
	}
	return h, nil
}

// Dir is a registry.Source that scans a directory of *.json manifest files.
// Files that fail to load still surface as candidates so the registry keeps
// their rejection reason.
type Dir struct {
	path   string
	table  *HandlerTable
	loader *Loader
	logger zerolog.Logger
}

// NewDir creates a manifest directory source.
func NewDir(path string, table *HandlerTable, logger zerolog.Logger) *Dir {
	return &Dir{
		path:   path,
		table:  table,
		loader: NewLoader(logger),
		logger: logger.With().Str("component", "manifest-dir").Str("dir", path).Logger(),
	}
}

// Discover scans the directory. A missing directory yields no candidates;
// hosts may run with built-ins only.
func (d *Dir) Discover(ctx context.Context) ([]registry.Candidate, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			d.logger.Debug().Msg("Manifest directory does not exist, skipping")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read manifest directory %s: %w", d.path, err)
	}

	var candidates []registry.Candidate
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		path := filepath.Join(d.path, entry.Name())
		m, err := d.loader.Load(path)
		if err != nil {
			d.logger.Warn().Err(err).Str("file", entry.Name()).Msg("Manifest failed to load")
			candidates = append(candidates, failedCandidate{
				name: strings.TrimSuffix(entry.Name(), ".json"),
				path: path,
				err:  err,
			})
			continue
		}

		candidates = append(candidates, candidate{manifest: m, table: d.table, path: path})
	}

	d.logger.Debug().Int("count", len(candidates)).Msg("Manifest discovery completed")
	return candidates, nil
}
