//go:build integration

package test_test

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"appstub/exitcode"
)

var (
	testBinary string
	hostPython string
	hostStdlib string
)

func TestMain(m *testing.M) {
	testBinary = os.Getenv("APPSTUB_TEST_BIN")
	if testBinary == "" {
		fmt.Fprintln(os.Stderr, "APPSTUB_TEST_BIN not set; build the launcher and point it at the binary")
		os.Exit(1)
	}

	py, err := exec.LookPath("python3")
	if err != nil {
		fmt.Fprintln(os.Stderr, "python3 not found; integration tests need a host interpreter")
		os.Exit(1)
	}
	if hostPython, err = filepath.EvalSymlinks(py); err != nil {
		fmt.Fprintf(os.Stderr, "resolve python3: %v\n", err)
		os.Exit(1)
	}
	out, err := exec.Command(hostPython, "-I", "-c", "import sysconfig; print(sysconfig.get_paths()['stdlib'])").Output()
	if err != nil {
		fmt.Fprintf(os.Stderr, "locate stdlib: %v\n", err)
		os.Exit(1)
	}
	hostStdlib = strings.TrimSpace(string(out))

	os.Exit(m.Run())
}

// makeBundle lays out MyApp.app around a copy of the launcher, borrowing the
// host interpreter and stdlib.
func makeBundle(t *testing.T, entry string, files map[string]string) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "MyApp.app")
	resources := filepath.Join(root, "Contents", "Resources")
	for _, d := range []string{
		filepath.Join(root, "Contents", "MacOS"),
		filepath.Join(resources, "support", "python", "bin"),
		filepath.Join(resources, "app_packages"),
		filepath.Join(resources, "app"),
	} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Symlink(hostPython, filepath.Join(resources, "support", "python", "bin", "python3")); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(hostStdlib, filepath.Join(resources, "support", "python-stdlib")); err != nil {
		t.Fatal(err)
	}

	exe := filepath.Join(root, "Contents", "MacOS", "MyApp")
	copyFile(t, testBinary, exe)

	plist := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<plist version="1.0">
<dict>
	<key>CFBundleName</key>
	<string>MyApp</string>
	<key>CFBundleIdentifier</key>
	<string>com.example.myapp</string>
	<key>MainModule</key>
	<string>%s</string>
</dict>
</plist>
`, entry)
	writeFile(t, filepath.Join(root, "Contents", "Info.plist"), plist)
	for name, src := range files {
		writeFile(t, filepath.Join(resources, "app", name), src)
	}
	return exe
}

func copyFile(t *testing.T, src, dst string) {
	t.Helper()
	in, err := os.Open(src)
	if err != nil {
		t.Fatal(err)
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		t.Fatal(err)
	}
	if err := out.Close(); err != nil {
		t.Fatal(err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

type result struct {
	code   int
	output string
	logDir string
}

func runApp(t *testing.T, exe string, args ...string) result {
	t.Helper()
	logDir := t.TempDir()
	cmd := exec.Command(exe, args...)
	cmd.Env = append(os.Environ(), "APPSTUB_LOG_PATH="+logDir, "APPSTUB_HEADLESS=1")

	out, err := cmd.CombinedOutput()
	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			t.Fatalf("launcher did not run: %v\noutput: %s", err, out)
		}
		code = exitErr.ExitCode()
	}
	return result{code: code, output: string(out), logDir: logDir}
}

// posix maps a launcher exit code to what the shell sees.
func posix(code int) int {
	return int(uint8(code))
}

func readLog(t *testing.T, logDir, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(logDir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatalf("failed to read %s: %v", filename, err)
	}
	return string(data)
}

func TestCleanExit(t *testing.T) {
	exe := makeBundle(t, "hello", map[string]string{
		"hello.py": "import sys\nprint('hello from', __name__, sys.argv[1:])\n",
	})
	r := runApp(t, exe, "one", "two")
	if r.code != 0 {
		t.Fatalf("exit %d\n%s", r.code, r.output)
	}
	if !strings.Contains(r.output, "hello from __main__ ['one', 'two']") {
		t.Errorf("output = %q", r.output)
	}
	if diag := readLog(t, r.logDir, "launcher_log.txt"); !strings.Contains(diag, "hello from __main__") {
		t.Errorf("runtime output not copied into the launcher log:\n%s", diag)
	}
}

func TestRequestedExit(t *testing.T) {
	exe := makeBundle(t, "quits", map[string]string{"quits.py": "import sys\nsys.exit(7)\n"})
	if r := runApp(t, exe); r.code != 7 {
		t.Fatalf("exit %d\n%s", r.code, r.output)
	}
}

func TestUnhandledException(t *testing.T) {
	exe := makeBundle(t, "myapp", map[string]string{
		"myapp/__init__.py": "",
		"myapp/__main__.py": "from myapp.app import main\n\nmain()\n",
		"myapp/app.py":      "def main():\n    raise ValueError('boom')\n",
	})
	r := runApp(t, exe)
	if r.code != posix(exitcode.Unhandled) {
		t.Fatalf("exit %d\n%s", r.code, r.output)
	}
	for _, want := range []string{
		"Application has crashed",
		`File "MyApp.app/Contents/Resources/app/myapp/__main__.py", line 3, in <module>`,
		`File "MyApp.app/Contents/Resources/app/myapp/app.py", line 2, in main`,
		"ValueError: boom",
	} {
		if !strings.Contains(r.output, want) {
			t.Errorf("output missing %q:\n%s", want, r.output)
		}
	}
	if strings.Contains(r.output, "runpy") {
		t.Errorf("bootstrap frames leaked:\n%s", r.output)
	}
	if crash := readLog(t, r.logDir, "crash_log.txt"); !strings.Contains(crash, "ValueError: boom") {
		t.Errorf("crash_log.txt missing report:\n%s", crash)
	}
}

func TestMissingEntryModule(t *testing.T) {
	exe := makeBundle(t, "nothere", nil)
	r := runApp(t, exe)
	if r.code != posix(exitcode.Import) {
		t.Fatalf("exit %d\n%s", r.code, r.output)
	}
	if !strings.Contains(r.output, "No module named 'nothere'") {
		t.Errorf("output = %q", r.output)
	}
}

func TestBrokenBundle(t *testing.T) {
	exe := filepath.Join(t.TempDir(), "Broken.app", "Contents", "MacOS", "Broken")
	if err := os.MkdirAll(filepath.Dir(exe), 0755); err != nil {
		t.Fatal(err)
	}
	copyFile(t, testBinary, exe)

	r := runApp(t, exe)
	if r.code != posix(exitcode.Layout) {
		t.Fatalf("exit %d\n%s", r.code, r.output)
	}
	if !strings.Contains(r.output, "Unable to start application") {
		t.Errorf("output = %q", r.output)
	}
}
