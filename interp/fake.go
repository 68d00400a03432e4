package interp

import (
	"context"
	"sync"
)

// Fake is a scripted Runtime for tests.
type Fake struct {
	InitErr     error
	Record      *Record
	RunErr      error
	FinalizeErr error
	// Panic makes RunMain panic with this value.
	Panic any

	mu     sync.Mutex
	Config *Config
	Calls  []string
}

func (f *Fake) Initialize(_ context.Context, cfg *Config) error {
	f.record("initialize")
	f.mu.Lock()
	f.Config = cfg
	f.mu.Unlock()
	return f.InitErr
}

func (f *Fake) RunMain(context.Context) (*Record, error) {
	f.record("run_main")
	if f.Panic != nil {
		panic(f.Panic)
	}
	return f.Record, f.RunErr
}

func (f *Fake) Finalize() error {
	f.record("finalize")
	return f.FinalizeErr
}

func (f *Fake) CallLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Calls...)
}

func (f *Fake) record(call string) {
	f.mu.Lock()
	f.Calls = append(f.Calls, call)
	f.mu.Unlock()
}
