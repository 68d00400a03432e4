package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"appstub/bundle"
	"appstub/shutdown"
)

var (
	passStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("34"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

type Options struct {
	// Bundle is the path of the .app directory.
	Bundle string
	// Interpreter overrides the bundled interpreter.
	Interpreter string
	Timeout     time.Duration
}

type state struct {
	opts   Options
	out    io.Writer
	layout bundle.Layout
	meta   bundle.Metadata
}

type check struct {
	title string
	run   func(*state) (string, error)
	// needs lists the checks that must pass first, by index.
	needs []int
}

var checks = []check{
	{title: "Bundle layout", run: checkLayout},
	{title: "Bundle metadata", run: checkMetadata, needs: []int{0}},
	{title: "Interpreter", run: checkInterpreter, needs: []int{0}},
	{title: "Entry module", run: checkEntry, needs: []int{0, 1}},
}

// Run checks a bundle and returns an exit code (0=all pass, 1=any fail).
func Run(out io.Writer, opts Options) int {
	setupInterruptHandler()
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	fmt.Fprintln(out, "appstub doctor - bundle diagnostics")
	fmt.Fprintln(out, "===================================")

	s := &state{opts: opts, out: out}
	passed := make([]bool, len(checks))
	for i, c := range checks {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "[%d/%d] %s\n", i+1, len(checks), c.title)
		if skipped := unmet(c.needs, passed); skipped >= 0 {
			fmt.Fprintf(out, "  %s skipped, %s failed\n", failStyle.Render("FAIL:"), strings.ToLower(checks[skipped].title))
			continue
		}
		msg, err := c.run(s)
		if err != nil {
			fmt.Fprintf(out, "  %s %v\n", failStyle.Render("FAIL:"), err)
			continue
		}
		passed[i] = true
		fmt.Fprintf(out, "  %s %s\n", passStyle.Render("PASS:"), msg)
	}

	fmt.Fprintln(out)
	for _, ok := range passed {
		if !ok {
			fmt.Fprintln(out, "Some checks failed. See details above.")
			return 1
		}
	}
	fmt.Fprintln(out, "All checks passed!")
	return 0
}

func unmet(needs []int, passed []bool) int {
	for _, n := range needs {
		if !passed[n] {
			return n
		}
	}
	return -1
}

func checkLayout(s *state) (string, error) {
	root, err := filepath.Abs(s.opts.Bundle)
	if err != nil {
		return "", err
	}
	l, err := bundle.FromResources(filepath.Join(root, "Contents", "Resources"))
	if err != nil {
		return "", err
	}
	dirs := []struct{ name, path string }{
		{"runtime home", l.Home},
		{"stdlib", l.Stdlib},
		{"third-party packages", l.Packages},
		{"app code", l.App},
	}
	var missing []string
	for _, d := range dirs {
		if info, err := os.Stat(d.path); err != nil || !info.IsDir() {
			missing = append(missing, d.name+" ("+d.path+")")
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("missing %s", strings.Join(missing, ", "))
	}
	s.layout = l
	msg := "resources at " + l.Resources
	if info, err := os.Stat(l.DynLoad); err != nil || !info.IsDir() {
		msg += " (no lib-dynload)"
	}
	return msg, nil
}

func checkMetadata(s *state) (string, error) {
	m, err := bundle.LoadMetadata(s.layout)
	if err != nil {
		return "", err
	}
	if m.MainModule == "" {
		return "", errors.New("Info.plist does not set MainModule")
	}
	s.meta = m
	version := m.Version
	if version == "" {
		version = "unversioned"
	}
	msg := fmt.Sprintf("%s %s (%s), entry module %s", m.DisplayName(s.layout), version, m.AppID(s.layout), m.MainModule)
	if m.RedirectHelper != "" && m.RedirectHelperPath(s.layout) == "" {
		msg += "; redirect helper " + m.RedirectHelper + " not found"
	}
	return msg, nil
}

func checkInterpreter(s *state) (string, error) {
	interpreter := s.layout.Interpreter
	if s.opts.Interpreter != "" {
		interpreter = s.opts.Interpreter
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.Timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, interpreter, "-I", "-c", "import sys; print(sys.version.split()[0])").Output()
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%s did not answer within %s", interpreter, s.opts.Timeout)
		}
		return "", fmt.Errorf("%s: %w", interpreter, err)
	}
	version := strings.TrimSpace(string(out))
	if version == "" {
		return "", fmt.Errorf("%s printed no version", interpreter)
	}
	return "Python " + version, nil
}

func checkEntry(s *state) (string, error) {
	dirs := []string{s.layout.App, s.layout.Packages, s.layout.Stdlib}
	if path := FindModule(s.meta.MainModule, dirs); path != "" {
		return s.meta.MainModule + " found at " + path, nil
	}
	return "", fmt.Errorf("module %s not found in %s", s.meta.MainModule, strings.Join(dirs, ", "))
}

// FindModule looks for a module by dotted name in dirs and returns the file
// that would be run as __main__, or "" when there is none.
func FindModule(name string, dirs []string) string {
	rel := filepath.Join(strings.Split(name, ".")...)
	for _, dir := range dirs {
		base := filepath.Join(dir, rel)
		candidates := []string{
			base + ".py",
			base + ".pyc",
			filepath.Join(base, "__main__.py"),
			filepath.Join(base, "__main__.pyc"),
		}
		for _, c := range candidates {
			if info, err := os.Stat(c); err == nil && info.Mode().IsRegular() {
				return c
			}
		}
	}
	return ""
}

func setupInterruptHandler() {
	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		<-sigChan
		println("\nInterrupted")
		os.Exit(1)
	}()
}
