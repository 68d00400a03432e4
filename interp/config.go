package interp

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"sync/atomic"

	"appstub/bundle"
)

var ErrConfigConsumed = errors.New("runtime configuration already consumed")

type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return "runtime configuration: " + e.Err.Error() }
func (e *ConfigError) Unwrap() error { return e.Err }

// Config is the isolated configuration handed to the runtime. It is built
// once and consumed exactly once by Start.
type Config struct {
	// Home must exist. It is not passed to the interpreter, which derives
	// its prefix from its own location under Home.
	Home        string
	Interpreter string
	// SearchPath keeps the order stdlib, lib-dynload, third-party packages,
	// app code. The runtime receives it verbatim.
	SearchPath     []string
	Argv           []string
	Entry          string
	RedirectHelper string
	Isolated       bool
	Optimize       int
	Unbuffered     bool

	consumed atomic.Bool
}

type Options struct {
	Interpreter string // overrides the bundled interpreter
	Optimize    int
	Unbuffered  bool
}

// BuildConfig assembles the runtime configuration from the resolved layout,
// the bundle metadata and the raw process arguments.
func BuildConfig(l bundle.Layout, m bundle.Metadata, argv []string, opts Options) (*Config, error) {
	if m.MainModule == "" {
		return nil, &ConfigError{Err: errors.New("bundle metadata does not name an entry module (MainModule)")}
	}
	if opts.Optimize < 0 || opts.Optimize > 2 {
		return nil, &ConfigError{Err: fmt.Errorf("optimize level %d out of range 0..2", opts.Optimize)}
	}

	path := []string{l.Stdlib}
	if dirExists(l.DynLoad) {
		path = append(path, l.DynLoad)
	}
	path = append(path, l.Packages, l.App)

	interpreter := l.Interpreter
	if opts.Interpreter != "" {
		interpreter = opts.Interpreter
	}

	return &Config{
		Home:           l.Home,
		Interpreter:    interpreter,
		SearchPath:     path,
		Argv:           slices.Clone(argv),
		Entry:          m.MainModule,
		RedirectHelper: m.RedirectHelperPath(l),
		Isolated:       true,
		Optimize:       opts.Optimize,
		Unbuffered:     opts.Unbuffered,
	}, nil
}

func (c *Config) consume() error {
	if !c.consumed.CompareAndSwap(false, true) {
		return ErrConfigConsumed
	}
	return nil
}

func dirExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
