package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uzlow/webtools/pkg/registry"
	"github.com/uzlow/webtools/pkg/schema"
)

func floatPtr(f float64) *float64 { return &f }

func newDispatcher(t *testing.T, opts Options, candidates ...registry.Candidate) *Dispatcher {
	t.Helper()
	reg := registry.New(registry.StaticSource(candidates), zerolog.Nop())
	require.NoError(t, reg.Load(context.Background()))
	return New(reg, zerolog.Nop(), opts)
}

func TestExecute_Success(t *testing.T) {
	d := newDispatcher(t, Options{}, registry.StaticCandidate{
		Name:        "double",
		Description: "Double a number",
		Fields: []schema.FieldDef{
			{Name: "n", Spec: schema.FieldSpec{Type: schema.TypeNumber}},
		},
		Required: []string{"n"},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return args["n"].(float64) * 2, nil
		},
	})

	result := d.Execute(context.Background(), "double", map[string]any{"n": 21})
	require.True(t, result.Success)
	assert.Nil(t, result.Failure)
	assert.Equal(t, float64(42), result.Value)
}

func TestExecute_ToolNotFound(t *testing.T) {
	d := newDispatcher(t, Options{})

	result := d.Execute(context.Background(), "ghost", nil)
	require.False(t, result.Success)
	assert.Equal(t, KindToolNotFound, result.Failure.Kind)
	assert.Nil(t, result.Value)
}

func TestExecute_ValidationFailureCarriesDetails(t *testing.T) {
	d := newDispatcher(t, Options{}, registry.StaticCandidate{
		Name:        "strict",
		Description: "strict inputs",
		Fields: []schema.FieldDef{
			{Name: "name", Spec: schema.FieldSpec{Type: schema.TypeString}},
			{Name: "count", Spec: schema.FieldSpec{Type: schema.TypeNumber, Minimum: floatPtr(1)}},
		},
		Required: []string{"name", "count"},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			t.Fatal("handler must not run on validation failure")
			return nil, nil
		},
	})

	result := d.Execute(context.Background(), "strict", map[string]any{"count": 0})
	require.False(t, result.Success)
	assert.Equal(t, KindValidation, result.Failure.Kind)
	require.Len(t, result.Failure.Details, 2)

	byField := map[string]schema.ErrorKind{}
	for _, fe := range result.Failure.Details {
		byField[fe.Field] = fe.Kind
	}
	assert.Equal(t, schema.ErrMissingRequired, byField["name"])
	assert.Equal(t, schema.ErrRangeViolation, byField["count"])
}

func TestExecute_HandlerErrorBecomesExecutionFailure(t *testing.T) {
	d := newDispatcher(t, Options{}, registry.StaticCandidate{
		Name:        "broken",
		Description: "always fails",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return nil, errors.New("wires crossed")
		},
	})

	result := d.Execute(context.Background(), "broken", nil)
	require.False(t, result.Success)
	assert.Equal(t, KindExecution, result.Failure.Kind)
	assert.Contains(t, result.Failure.Message, "wires crossed")
}

func TestExecute_HandlerPanicIsContained(t *testing.T) {
	d := newDispatcher(t, Options{}, registry.StaticCandidate{
		Name:        "volatile",
		Description: "panics",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			panic("kaboom")
		},
	})

	result := d.Execute(context.Background(), "volatile", nil)
	require.False(t, result.Success)
	assert.Equal(t, KindExecution, result.Failure.Kind)
	assert.Contains(t, result.Failure.Message, "kaboom")
}

func TestExecute_PanicDoesNotAffectConcurrentRequest(t *testing.T) {
	d := newDispatcher(t, Options{},
		registry.StaticCandidate{
			Name:        "volatile",
			Description: "panics",
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				panic("kaboom")
			},
		},
		registry.StaticCandidate{
			Name:        "steady",
			Description: "works",
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return "fine", nil
			},
		},
	)

	var wg sync.WaitGroup
	results := make([]Result, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		results[0] = d.Execute(context.Background(), "volatile", nil)
	}()
	go func() {
		defer wg.Done()
		results[1] = d.Execute(context.Background(), "steady", nil)
	}()
	wg.Wait()

	assert.False(t, results[0].Success)
	require.True(t, results[1].Success)
	assert.Equal(t, "fine", results[1].Value)
}

func TestExecute_Timeout(t *testing.T) {
	d := newDispatcher(t, Options{Timeout: 20 * time.Millisecond}, registry.StaticCandidate{
		Name:        "sleepy",
		Description: "never returns in time",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
			}
			return "late", nil
		},
	})

	result := d.Execute(context.Background(), "sleepy", nil)
	require.False(t, result.Success)
	assert.Equal(t, KindExecution, result.Failure.Kind)
	assert.Equal(t, "timed out", result.Failure.Message)
}

func TestExecute_NoSchemaSkipsValidation(t *testing.T) {
	d := newDispatcher(t, Options{}, registry.StaticCandidate{
		Name:        "freeform",
		Description: "no declared inputs",
		NoArg: func(ctx context.Context) (any, error) {
			return "ran", nil
		},
	})

	result := d.Execute(context.Background(), "freeform", map[string]any{"whatever": 1})
	require.True(t, result.Success)
	assert.Equal(t, "ran", result.Value)
}

type countingObserver struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *countingObserver) ObserveExecution(tool, status string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counts == nil {
		o.counts = map[string]int{}
	}
	o.counts[tool+"/"+status]++
}

func TestExecute_ObserverSeesStatuses(t *testing.T) {
	obs := &countingObserver{}
	d := newDispatcher(t, Options{Observer: obs}, registry.StaticCandidate{
		Name:        "ok",
		Description: "works",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return nil, nil
		},
	})

	d.Execute(context.Background(), "ok", nil)
	d.Execute(context.Background(), "missing", nil)

	assert.Equal(t, 1, obs.counts["ok/success"])
	assert.Equal(t, 1, obs.counts["missing/not_found"])
}
