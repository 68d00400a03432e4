package interp

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"appstub/exitcode"
	"appstub/traceback"
)

// Runtime is the embedded interpreter as seen by the launcher.
type Runtime interface {
	// Initialize brings the runtime to a state where it can run code. A
	// failure is final; the runtime is finalized and never retried.
	Initialize(ctx context.Context, cfg *Config) error
	// RunMain executes the entry module as the main program and returns the
	// raw record of how it ended.
	RunMain(ctx context.Context) (*Record, error)
	// Finalize releases everything the runtime acquired. It is called once.
	Finalize() error
}

type InitError struct {
	Err error
}

func (e *InitError) Error() string { return "runtime initialization failed: " + e.Err.Error() }
func (e *InitError) Unwrap() error { return e.Err }

type state int

const (
	stateReady state = iota + 1
	stateInvoked
	stateFinalized
)

// Handle owns an initialized runtime. Finalize must be deferred right after
// Start succeeds; it is safe to call more than once.
type Handle struct {
	rt Runtime

	mu    sync.Mutex
	state state

	finalizeOnce sync.Once
	finalizeErr  error
}

// Start consumes cfg and initializes rt with it.
func Start(ctx context.Context, rt Runtime, cfg *Config) (*Handle, error) {
	if err := cfg.consume(); err != nil {
		return nil, &InitError{Err: err}
	}
	if err := rt.Initialize(ctx, cfg); err != nil {
		if ferr := rt.Finalize(); ferr != nil {
			err = errors.Join(err, fmt.Errorf("finalize: %w", ferr))
		}
		return nil, &InitError{Err: err}
	}
	return &Handle{rt: rt, state: stateReady}, nil
}

// Invoke runs the entry module once. Panics raised while driving the runtime
// are turned into an UnhandledError outcome.
func (h *Handle) Invoke(ctx context.Context) (o Outcome) {
	h.mu.Lock()
	if h.state != stateReady {
		h.mu.Unlock()
		return extractionFailure("invoke the entry module", "runtime is not ready")
	}
	h.state = stateInvoked
	h.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			o = Outcome{
				Kind: UnhandledError,
				Code: exitcode.Unhandled,
				Failure: &traceback.Failure{
					Exception: traceback.Exception{Type: "launcher panic", Value: fmt.Sprint(r)},
					Detail:    string(debug.Stack()),
				},
			}
		}
	}()
	return Classify(h.rt.RunMain(ctx))
}

func (h *Handle) Finalize() error {
	h.finalizeOnce.Do(func() {
		h.mu.Lock()
		h.state = stateFinalized
		h.mu.Unlock()
		h.finalizeErr = h.rt.Finalize()
	})
	return h.finalizeErr
}
