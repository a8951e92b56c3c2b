package registry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uzlow/webtools/pkg/schema"
)

func echoHandler(value any) Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		return value, nil
	}
}

func loadRegistry(t *testing.T, candidates ...Candidate) *Registry {
	t.Helper()
	r := New(StaticSource(candidates), zerolog.Nop())
	require.NoError(t, r.Load(context.Background()))
	return r
}

func TestRegistry_LoadAndLookup(t *testing.T) {
	r := loadRegistry(t, StaticCandidate{
		Name:        "echo",
		Description: "Echo a value",
		Handler:     echoHandler("hi"),
		Fields: []schema.FieldDef{
			{Name: "value", Spec: schema.FieldSpec{Type: schema.TypeString}},
		},
	})

	def, ok := r.Lookup("echo")
	require.True(t, ok)
	assert.Equal(t, "echo", def.Name)
	assert.Equal(t, 1, def.Schema.Len())

	_, ok = r.Lookup("missing")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_DuplicateFirstWins(t *testing.T) {
	r := loadRegistry(t,
		StaticCandidate{Name: "tool", Description: "first", Handler: echoHandler("first")},
		StaticCandidate{Name: "tool", Description: "second", Handler: echoHandler("second")},
	)

	def, ok := r.Lookup("tool")
	require.True(t, ok)
	assert.Equal(t, "first", def.Description)

	out, err := def.Handler(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "first", out)

	rejections := r.Rejections()
	require.Len(t, rejections, 1)
	var dup *DuplicateError
	assert.ErrorAs(t, rejections[0].Cause(), &dup)
	assert.Equal(t, "tool", dup.Tool)
}

func TestRegistry_RejectionsDoNotAbortBuild(t *testing.T) {
	r := loadRegistry(t,
		StaticCandidate{Name: "", Description: "nameless", Handler: echoHandler(nil)},
		StaticCandidate{Name: "no-entry", Description: "no entrypoint"},
		StaticCandidate{
			Name:        "bad-schema",
			Description: "broken schema",
			Handler:     echoHandler(nil),
			Fields: []schema.FieldDef{
				{Name: "x", Spec: schema.FieldSpec{Type: "mystery"}},
			},
		},
		StaticCandidate{Name: "good", Description: "fine", Handler: echoHandler("ok")},
	)

	assert.Equal(t, 1, r.Len())
	_, ok := r.Lookup("good")
	assert.True(t, ok)

	rejections := r.Rejections()
	require.Len(t, rejections, 3)

	var entryErr *EntrypointError
	assert.ErrorAs(t, rejections[1].Cause(), &entryErr)

	var defErr *schema.DefinitionError
	assert.ErrorAs(t, rejections[2].Cause(), &defErr)
}

func TestRegistry_NoArgAdapter(t *testing.T) {
	r := loadRegistry(t, StaticCandidate{
		Name:        "clock",
		Description: "no inputs",
		NoArg: func(ctx context.Context) (any, error) {
			return "tick", nil
		},
	})

	def, ok := r.Lookup("clock")
	require.True(t, ok)
	assert.Nil(t, def.Schema)

	out, err := def.Handler(context.Background(), map[string]any{"ignored": true})
	require.NoError(t, err)
	assert.Equal(t, "tick", out)
}

func TestRegistry_ReloadSwapsSnapshot(t *testing.T) {
	var mu sync.Mutex
	candidates := []Candidate{
		StaticCandidate{Name: "old", Description: "generation one", Handler: echoHandler(1)},
	}

	source := sourceFunc(func(ctx context.Context) ([]Candidate, error) {
		mu.Lock()
		defer mu.Unlock()
		return append([]Candidate(nil), candidates...), nil
	})

	r := New(source, zerolog.Nop())
	require.NoError(t, r.Load(context.Background()))

	held, ok := r.Lookup("old")
	require.True(t, ok)

	mu.Lock()
	candidates = []Candidate{
		StaticCandidate{Name: "new", Description: "generation two", Handler: echoHandler(2)},
	}
	mu.Unlock()
	require.NoError(t, r.Load(context.Background()))

	_, ok = r.Lookup("old")
	assert.False(t, ok)
	_, ok = r.Lookup("new")
	assert.True(t, ok)

	// The definition resolved before the reload stays usable.
	out, err := held.Handler(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, out)
}

func TestRegistry_ConcurrentLookupDuringReload(t *testing.T) {
	source := sourceFunc(func(ctx context.Context) ([]Candidate, error) {
		return []Candidate{
			StaticCandidate{Name: "steady", Description: "always here", Handler: echoHandler("v")},
		}, nil
	})

	r := New(source, zerolog.Nop())
	require.NoError(t, r.Load(context.Background()))

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				_ = r.Load(context.Background())
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			def, ok := r.Lookup("steady")
			assert.True(t, ok)
			assert.NotNil(t, def.Handler)
		}
		close(done)
	}()

	wg.Wait()
}

func TestMultiSource_Order(t *testing.T) {
	first := StaticSource{StaticCandidate{Name: "a", Description: "a", Handler: echoHandler("a")}}
	second := StaticSource{StaticCandidate{Name: "b", Description: "b", Handler: echoHandler("b")}}

	r := New(MultiSource{first, second}, zerolog.Nop())
	require.NoError(t, r.Load(context.Background()))

	defs := r.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "a", defs[0].Name)
	assert.Equal(t, "b", defs[1].Name)
}

func TestMultiSource_DiscoveryFailureFailsLoad(t *testing.T) {
	boom := sourceFunc(func(ctx context.Context) ([]Candidate, error) {
		return nil, errors.New("disk on fire")
	})

	r := New(MultiSource{boom}, zerolog.Nop())
	err := r.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discovery failed")
}

type sourceFunc func(ctx context.Context) ([]Candidate, error)

func (f sourceFunc) Discover(ctx context.Context) ([]Candidate, error) { return f(ctx) }
