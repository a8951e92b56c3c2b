package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/uzlow/webtools/pkg/registry"
	"github.com/uzlow/webtools/pkg/schema"
)

// Kind tags the failure class of an execution. The classes are disjoint:
// lookup, validation, and handler failures are never conflated.
type Kind string

const (
	KindToolNotFound Kind = "tool_not_found"
	KindValidation   Kind = "validation_failure"
	KindExecution    Kind = "execution_error"
)

// Failure describes a failed execution.
type Failure struct {
	Kind    Kind                `json:"kind"`
	Message string              `json:"message"`
	Details []schema.FieldError `json:"details,omitempty"`
}

// Result is the tagged outcome of one execution: either a success value or a
// failure, never both.
type Result struct {
	Success bool
	Value   any
	Failure *Failure
}

func success(value any) Result {
	return Result{Success: true, Value: value}
}

func failure(kind Kind, message string, details []schema.FieldError) Result {
	return Result{Failure: &Failure{Kind: kind, Message: message, Details: details}}
}

// Observer receives per-execution measurements.
type Observer interface {
	ObserveExecution(tool, status string, elapsed time.Duration)
}

// Options configures a Dispatcher.
type Options struct {
	// Timeout bounds a single handler invocation. Zero means no bound. On
	// expiry the dispatcher reports an execution failure without guaranteeing
	// the underlying call was cancelled; handlers are opaque units.
	Timeout time.Duration
	// Observer is notified after every execution. Optional.
	Observer Observer
}

// Dispatcher ties lookup, validation, and invocation together. It holds no
// mutable state between calls; concurrent executions share only the
// read-only registry snapshot they resolved against.
type Dispatcher struct {
	registry *registry.Registry
	logger   zerolog.Logger
	opts     Options
}

// New creates a Dispatcher over the given registry.
func New(reg *registry.Registry, logger zerolog.Logger, opts Options) *Dispatcher {
	return &Dispatcher{
		registry: reg,
		logger:   logger.With().Str("component", "dispatch").Logger(),
		opts:     opts,
	}
}

// Execute runs one tool invocation: lookup, schema validation, handler call.
// Handler errors and panics are contained here and reported as execution
// failures; they never propagate to the caller. A single invocation attempt
// is made per call.
func (d *Dispatcher) Execute(ctx context.Context, toolName string, payload map[string]any) Result {
	execID, _ := gonanoid.New()
	start := time.Now()
	logger := d.logger.With().Str("tool", toolName).Str("exec_id", execID).Logger()

	def, ok := d.registry.Lookup(toolName)
	if !ok {
		logger.Warn().Msg("Tool not found")
		d.observe(toolName, "not_found", start)
		return failure(KindToolNotFound, fmt.Sprintf("tool not found: %s", toolName), nil)
	}

	var args map[string]any
	if def.Schema != nil {
		coerced, err := def.Schema.Validate(payload)
		if err != nil {
			var verr *schema.ValidationError
			if errors.As(err, &verr) {
				logger.Warn().Int("violations", len(verr.Errors)).Msg("Payload validation failed")
				d.observe(toolName, "invalid", start)
				return failure(KindValidation, verr.Error(), verr.Errors)
			}
			logger.Error().Err(err).Msg("Payload validation failed")
			d.observe(toolName, "invalid", start)
			return failure(KindValidation, err.Error(), nil)
		}
		args = coerced
	}

	result := d.invoke(ctx, logger, def, args)
	if result.Success {
		d.observe(toolName, "success", start)
	} else {
		d.observe(toolName, "error", start)
	}
	return result
}

// invoke runs the handler with panic isolation and the optional deadline.
func (d *Dispatcher) invoke(ctx context.Context, logger zerolog.Logger, def *registry.Definition, args map[string]any) Result {
	invokeCtx := ctx
	if d.opts.Timeout > 0 {
		var cancel context.CancelFunc
		invokeCtx, cancel = context.WithTimeout(ctx, d.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	resultChan := make(chan any, 1)
	errChan := make(chan error, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				errChan <- fmt.Errorf("tool panicked: %v", r)
			}
		}()
		value, err := def.Handler(invokeCtx, args)
		if err != nil {
			errChan <- err
		} else {
			resultChan <- value
		}
	}()

	select {
	case value := <-resultChan:
		logger.Debug().Dur("duration", time.Since(start)).Msg("Tool execution completed")
		return success(value)

	case err := <-errChan:
		logger.Error().Dur("duration", time.Since(start)).Err(err).Msg("Tool execution failed")
		return failure(KindExecution, err.Error(), nil)

	case <-invokeCtx.Done():
		logger.Error().Dur("duration", time.Since(start)).Msg("Tool execution timed out")
		return failure(KindExecution, "timed out", nil)
	}
}

func (d *Dispatcher) observe(tool, status string, start time.Time) {
	if d.opts.Observer != nil {
		d.opts.Observer.ObserveExecution(tool, status, time.Since(start))
	}
}
