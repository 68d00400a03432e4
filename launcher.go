package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"

	"appstub/bundle"
	"appstub/config"
	"appstub/dialog"
	"appstub/exitcode"
	"appstub/interp"
	"appstub/log"
	"appstub/traceback"
)

// launcher drives one launch from bundle resolution to teardown. Zero-valued
// hooks fall back to the real runtime and presenters.
type launcher struct {
	executable string
	argv       []string
	signals    <-chan os.Signal

	stdin  *os.File
	stdout *os.File
	stderr *os.File

	// runtime replaces the bundled interpreter.
	runtime interp.Runtime
	// presenter shows crash and init alerts.
	presenter dialog.Presenter
	// console reports errors that happen before the runtime exists.
	console dialog.Presenter
}

func (l *launcher) launch(ctx context.Context) int {
	if l.console == nil {
		l.console = dialog.Console{Out: l.stderr}
	}

	exe, err := bundle.Executable(l.executable)
	if err != nil {
		l.fatal("Unable to start application", "The application bundle is damaged or incomplete.", err)
		return exitcode.Layout
	}

	settings, err := config.Load(bundle.ResourcesFor(exe))
	if err != nil {
		l.fatal("Unable to start application", "The launcher settings are invalid.", err)
		return exitcode.Config
	}

	layout, err := bundle.Resolve(exe, settings.Resources)
	if err != nil {
		l.fatal("Unable to start application", "The application bundle is damaged or incomplete.", err)
		return exitcode.Layout
	}

	l.startLogging(settings, layout)
	defer log.Close()

	meta, err := bundle.LoadMetadata(layout)
	if err != nil {
		log.Errorf("metadata: %v", err)
		l.fatal("Unable to start "+layout.Name(), "The application metadata could not be read.", &interp.ConfigError{Err: err})
		return exitcode.Config
	}
	name := meta.DisplayName(layout)
	log.Launch(name, meta.Version, meta.MainModule, len(l.argv))

	cfg, err := interp.BuildConfig(layout, meta, l.argv, interp.Options{
		Interpreter: settings.Interpreter,
		Optimize:    settings.Optimize,
		Unbuffered:  settings.Unbuffered,
	})
	if err != nil {
		log.Errorf("%v", err)
		l.fatal("Unable to start "+name, "The application is not configured correctly.", err)
		return exitcode.Config
	}

	if l.presenter == nil {
		l.presenter = newPresenter(meta.AppID(layout), settings)
	}

	rt := l.runtime
	if rt == nil {
		py, closeOutput := l.python()
		defer closeOutput()
		rt = py
	}

	h, err := interp.Start(ctx, rt, cfg)
	if err != nil {
		log.Errorf("%v", err)
		var ierr *interp.InitError
		if !errors.As(err, &ierr) {
			ierr = &interp.InitError{Err: err}
		}
		l.alert(dialog.Alert{
			Title:   "Unable to start " + name,
			Summary: "The application runtime could not be initialized.",
			Detail:  ierr.Error(),
		})
		return exitcode.Init
	}
	defer func() {
		if err := h.Finalize(); err != nil {
			log.Warnf("finalize runtime: %v", err)
		}
	}()

	started := time.Now()
	o := h.Invoke(ctx)
	log.Outcome(o.Kind.String(), o.Code, time.Since(started))

	switch o.Kind {
	case interp.RequestedExit:
		if o.Payload != "" {
			log.Warnf("exit payload %s is not an integer, using %d", o.Payload, o.Code)
		}
	case interp.UnhandledError:
		rep := traceback.Build(o.Failure, traceback.Options{
			Drop:    settings.DropFrames,
			Rewrite: traceback.RewritePaths,
		})
		if err := log.CrashReport(dialog.CrashTitle, rep.Text); err != nil {
			log.Warnf("crash log: %v", err)
		}
		l.alert(dialog.Crash(rep.Text))
	}
	return o.Code
}

func (l *launcher) startLogging(s config.Settings, layout bundle.Layout) {
	dir, err := log.ResolveDir(s.LogPath, layout.Name())
	if err != nil {
		fmt.Fprintf(l.stderr, "Warning: failed to resolve log directory: %v\n", err)
		return
	}
	log.SetDir(dir)
	if err := log.Init(); err != nil {
		fmt.Fprintf(l.stderr, "Warning: could not init logging: %v\n", err)
		return
	}
	initCrashLog()
	log.Info("appstub " + version)
	if s.File != "" {
		log.Info("settings from " + s.File)
	}
}

// python builds the process-backed runtime. When stdout is not a terminal
// the runtime's output is also copied into the launcher log.
func (l *launcher) python() (*interp.Python, func()) {
	py := &interp.Python{
		Stdin:   l.stdin,
		Stdout:  l.stdout,
		Stderr:  l.stderr,
		Env:     os.Environ(),
		Signals: l.signals,
	}
	if isTerminal(l.stdin) {
		// The terminal already delivers ^C to the whole foreground group.
		py.Forward = func(sig os.Signal) bool { return sig != os.Interrupt }
	}
	if isTerminal(l.stdout) {
		return py, func() {}
	}
	outLog, errLog := log.Writer("stdout"), log.Writer("stderr")
	py.Stdout = io.MultiWriter(l.stdout, outLog)
	py.Stderr = io.MultiWriter(l.stderr, errLog)
	return py, func() {
		outLog.Close()
		errLog.Close()
	}
}

func (l *launcher) fatal(title, summary string, err error) {
	if perr := l.console.Present(dialog.Alert{Title: title, Summary: summary, Detail: err.Error()}); perr != nil {
		fmt.Fprintf(l.stderr, "%s: %v\n", title, err)
	}
}

func (l *launcher) alert(a dialog.Alert) {
	if err := l.presenter.Present(a); err != nil {
		log.Errorf("present alert: %v", err)
		l.console.Present(a)
	}
}

func isTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}
