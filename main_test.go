package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"appstub/bundle"
	"appstub/dialog"
	"appstub/exitcode"
	"appstub/internal/bundletest"
	"appstub/interp"
	"appstub/traceback"
)

type harness struct {
	l       *launcher
	rt      *interp.Fake
	alerts  *dialog.Recorder
	console *dialog.Recorder
	layout  bundle.Layout
	logDir  string
}

func newHarness(t *testing.T, opts bundletest.Options, rt *interp.Fake) *harness {
	t.Helper()
	for _, k := range []string{"RESOURCES", "INTERPRETER", "OPTIMIZE", "UNBUFFERED", "DROP_FRAMES", "HEADLESS"} {
		t.Setenv("APPSTUB_"+k, "")
	}
	logDir := t.TempDir()
	t.Setenv("APPSTUB_LOG_PATH", logDir)

	exe, layout := bundletest.Make(t, opts)
	stderr, err := os.Create(filepath.Join(t.TempDir(), "stderr"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { stderr.Close() })

	h := &harness{rt: rt, alerts: &dialog.Recorder{}, console: &dialog.Recorder{}, layout: layout, logDir: logDir}
	h.l = &launcher{
		executable: exe,
		argv:       []string{exe, "--verbose"},
		stderr:     stderr,
		runtime:    rt,
		presenter:  h.alerts,
		console:    h.console,
	}
	return h
}

func (h *harness) launch() int {
	return h.l.launch(context.Background())
}

func appFrames(l bundle.Layout) []traceback.Frame {
	return []traceback.Frame{
		{File: "<frozen runpy>", Line: 198, Name: "_run_module_as_main", Text: "return _run_code(code, main_globals, None,"},
		{File: "<frozen runpy>", Line: 88, Name: "_run_code", Text: "exec(code, run_globals)"},
		{File: filepath.Join(l.App, "myapp", "__main__.py"), Line: 3, Name: "<module>", Text: "main()"},
		{File: filepath.Join(l.App, "myapp", "app.py"), Line: 7, Name: "main", Text: "toolkit.run()"},
		{File: filepath.Join(l.Packages, "toolkit", "loop.py"), Line: 21, Name: "run", Text: `raise ValueError("boom")`},
	}
}

func TestLaunchSuccess(t *testing.T) {
	h := newHarness(t, bundletest.Options{MainModule: "myapp"}, &interp.Fake{Record: &interp.Record{Kind: interp.RecordSuccess}})

	if code := h.launch(); code != exitcode.OK {
		t.Fatalf("exit %d", code)
	}
	if len(h.alerts.Alerts()) != 0 || len(h.console.Alerts()) != 0 {
		t.Errorf("unexpected alerts: %+v %+v", h.alerts.Alerts(), h.console.Alerts())
	}
	want := []string{"initialize", "run_main", "finalize"}
	if got := h.rt.CallLog(); !slices.Equal(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}

	cfg := h.rt.Config
	if cfg.Entry != "myapp" || !slices.Equal(cfg.Argv, h.l.argv) || !cfg.Isolated {
		t.Errorf("config = %+v", cfg)
	}
	resolved, err := bundle.Resolve(h.l.executable, "")
	if err != nil {
		t.Fatal(err)
	}
	wantPath := []string{resolved.Stdlib, resolved.DynLoad, resolved.Packages, resolved.App}
	if !slices.Equal(cfg.SearchPath, wantPath) {
		t.Errorf("search path = %v, want %v", cfg.SearchPath, wantPath)
	}

	logText := readFile(t, filepath.Join(h.logDir, "launcher_log.txt"))
	for _, want := range []string{"launch", "entry=myapp", "outcome", "kind=success"} {
		if !strings.Contains(logText, want) {
			t.Errorf("launcher log missing %q:\n%s", want, logText)
		}
	}
}

func TestLaunchRequestedExit(t *testing.T) {
	h := newHarness(t, bundletest.Options{MainModule: "myapp"}, &interp.Fake{
		Record: &interp.Record{Kind: interp.RecordExit, Code: json.RawMessage("7")},
	})
	if code := h.launch(); code != 7 {
		t.Fatalf("exit %d, want 7", code)
	}
	if len(h.alerts.Alerts()) != 0 {
		t.Errorf("requested exit must not show a dialog: %+v", h.alerts.Alerts())
	}
}

func TestLaunchNonNumericExit(t *testing.T) {
	h := newHarness(t, bundletest.Options{MainModule: "myapp"}, &interp.Fake{
		Record: &interp.Record{Kind: interp.RecordExit, Code: json.RawMessage(`"'bye'"`)},
	})
	if code := h.launch(); code != exitcode.NonNumericExit {
		t.Fatalf("exit %d", code)
	}
}

func TestLaunchUnhandledError(t *testing.T) {
	rt := &interp.Fake{}
	h := newHarness(t, bundletest.Options{MainModule: "myapp"}, rt)
	rt.Record = &interp.Record{Kind: interp.RecordError, Type: "ValueError", Value: "boom", Traceback: appFrames(h.layout)}

	if code := h.launch(); code != exitcode.Unhandled {
		t.Fatalf("exit %d", code)
	}
	alerts := h.alerts.Alerts()
	if len(alerts) != 1 {
		t.Fatalf("alerts = %+v", alerts)
	}
	g := goldie.New(t)
	g.Assert(t, "crash_dialog", []byte(dialog.Format(alerts[0])))

	if got := rt.CallLog(); got[len(got)-1] != "finalize" {
		t.Errorf("runtime not finalized: %v", got)
	}
	crashLog := readFile(t, filepath.Join(h.logDir, "crash_log.txt"))
	if !strings.Contains(crashLog, alerts[0].Detail) {
		t.Errorf("crash log missing report:\n%s", crashLog)
	}
}

func TestLaunchDropFramesSetting(t *testing.T) {
	rt := &interp.Fake{}
	h := newHarness(t, bundletest.Options{MainModule: "myapp"}, rt)
	t.Setenv("APPSTUB_DROP_FRAMES", "0")
	rt.Record = &interp.Record{Kind: interp.RecordError, Type: "ValueError", Value: "boom", Traceback: appFrames(h.layout)}

	h.launch()
	if detail := h.alerts.Alerts()[0].Detail; !strings.Contains(detail, "_run_module_as_main") {
		t.Errorf("runpy frames dropped:\n%s", detail)
	}
}

func TestLaunchImportError(t *testing.T) {
	h := newHarness(t, bundletest.Options{MainModule: "myapp"}, &interp.Fake{
		Record: &interp.Record{Kind: interp.RecordImport, Type: "ModuleNotFoundError", Value: "No module named 'myapp'"},
	})
	if code := h.launch(); code != exitcode.Import {
		t.Fatalf("exit %d", code)
	}
	alerts := h.alerts.Alerts()
	if len(alerts) != 1 || alerts[0].Detail != "ModuleNotFoundError: No module named 'myapp'\n" {
		t.Errorf("alerts = %+v", alerts)
	}
}

func TestLaunchFormatFailure(t *testing.T) {
	h := newHarness(t, bundletest.Options{MainModule: "myapp"}, &interp.Fake{
		Record: &interp.Record{Kind: interp.RecordError, Type: "ValueError", Value: "boom", FormatError: "RecursionError: too deep"},
	})
	if code := h.launch(); code != exitcode.Diagnostic {
		t.Fatalf("exit %d", code)
	}
	detail := h.alerts.Alerts()[0].Detail
	if !strings.HasPrefix(detail, "Unable to format the traceback.") || !strings.Contains(detail, "RecursionError") {
		t.Errorf("detail = %q", detail)
	}
}

func TestLaunchLostErrorState(t *testing.T) {
	h := newHarness(t, bundletest.Options{MainModule: "myapp"}, &interp.Fake{RunErr: errors.New("signal: killed")})
	if code := h.launch(); code != exitcode.Diagnostic {
		t.Fatalf("exit %d", code)
	}
	if detail := h.alerts.Alerts()[0].Detail; !strings.HasPrefix(detail, "Unable to retrieve the error state from the runtime.") {
		t.Errorf("detail = %q", detail)
	}
}

func TestLaunchInitFailure(t *testing.T) {
	h := newHarness(t, bundletest.Options{MainModule: "myapp"}, &interp.Fake{InitErr: errors.New("stdlib missing")})

	if code := h.launch(); code != exitcode.Init {
		t.Fatalf("exit %d", code)
	}
	want := []string{"initialize", "finalize"}
	if got := h.rt.CallLog(); !slices.Equal(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
	alerts := h.alerts.Alerts()
	if len(alerts) != 1 || !strings.Contains(alerts[0].Detail, "stdlib missing") || alerts[0].Title != "Unable to start MyApp" {
		t.Errorf("alerts = %+v", alerts)
	}
}

func TestLaunchMissingMainModule(t *testing.T) {
	h := newHarness(t, bundletest.Options{}, &interp.Fake{})
	if code := h.launch(); code != exitcode.Config {
		t.Fatalf("exit %d", code)
	}
	if len(h.rt.CallLog()) != 0 {
		t.Errorf("runtime touched: %v", h.rt.CallLog())
	}
	if c := h.console.Alerts(); len(c) != 1 || !strings.Contains(c[0].Detail, "MainModule") {
		t.Errorf("console = %+v", c)
	}
}

func TestLaunchMissingInfoPlist(t *testing.T) {
	h := newHarness(t, bundletest.Options{NoInfoPlist: true}, &interp.Fake{})
	if code := h.launch(); code != exitcode.Config {
		t.Fatalf("exit %d", code)
	}
}

func TestLaunchLayoutError(t *testing.T) {
	h := newHarness(t, bundletest.Options{MainModule: "myapp"}, &interp.Fake{})
	exe := filepath.Join(t.TempDir(), "Broken.app", "Contents", "MacOS", "Broken")
	bundletest.WriteFile(t, exe, "#!/bin/sh\n", 0755)
	h.l.executable = exe

	if code := h.launch(); code != exitcode.Layout {
		t.Fatalf("exit %d", code)
	}
	if len(h.rt.CallLog()) != 0 || len(h.alerts.Alerts()) != 0 {
		t.Errorf("runtime or dialog used for a layout error")
	}
	if c := h.console.Alerts(); len(c) != 1 || !strings.Contains(c[0].Detail, "Resources") {
		t.Errorf("console = %+v", c)
	}
}

func TestLaunchThroughSymlinkReadsBundleSettings(t *testing.T) {
	h := newHarness(t, bundletest.Options{MainModule: "myapp"}, &interp.Fake{Record: &interp.Record{Kind: interp.RecordSuccess}})
	bundletest.WriteFile(t, filepath.Join(h.layout.Resources, "launcher.toml"), "optimize = 2\n", 0644)
	link := filepath.Join(t.TempDir(), "myapp")
	if err := os.Symlink(h.l.executable, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	h.l.executable = link

	if code := h.launch(); code != exitcode.OK {
		t.Fatalf("exit %d", code)
	}
	if h.rt.Config.Optimize != 2 {
		t.Errorf("optimize = %d, want 2 from the bundle settings file", h.rt.Config.Optimize)
	}
}

func TestLaunchInvalidSettings(t *testing.T) {
	h := newHarness(t, bundletest.Options{MainModule: "myapp"}, &interp.Fake{})
	t.Setenv("APPSTUB_OPTIMIZE", "7")
	if code := h.launch(); code != exitcode.Config {
		t.Fatalf("exit %d", code)
	}
}

func TestLaunchPresenterFailureFallsBackToConsole(t *testing.T) {
	rt := &interp.Fake{}
	h := newHarness(t, bundletest.Options{MainModule: "myapp"}, rt)
	rt.Record = &interp.Record{Kind: interp.RecordError, Type: "ValueError", Value: "boom"}
	h.alerts.Err = errors.New("no display")

	if code := h.launch(); code != exitcode.Unhandled {
		t.Fatalf("exit %d", code)
	}
	if len(h.console.Alerts()) != 1 {
		t.Errorf("console = %+v", h.console.Alerts())
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}
