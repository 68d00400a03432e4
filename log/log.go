package log

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	launcherLogName = "launcher_log.txt"
	crashLogName    = "crash_log.txt"
)

var (
	diagLog  zerolog.Logger
	diagFile *os.File
	logMu    sync.Mutex
	logReady bool
	pid      int
	dir      string
)

// ResolveDir picks the log directory: an explicit setting first (relative
// paths are taken from the working directory), then the OS default for app.
func ResolveDir(setting, app string) (string, error) {
	if setting != "" {
		if !filepath.IsAbs(setting) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, setting), nil
		}
		return setting, nil
	}
	if app == "" {
		app = "appstub"
	}
	return getDefaultDir(app)
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error
	diagFile, err = os.OpenFile(filepath.Join(dir, launcherLogName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func Launch(bundle, version, entry string, argc int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("bundle", bundle).
		Str("version", version).
		Str("entry", entry).
		Int("argc", argc).
		Msg("launch")
}

func RuntimeStarted(interpreter string, childPID int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("interpreter", interpreter).
		Int("child_pid", childPID).
		Msg("runtime_started")
}

func RuntimeReady(elapsed time.Duration) {
	if !logReady {
		return
	}
	diagLog.Info().
		Float64("startup_ms", float64(elapsed.Microseconds())/1000).
		Msg("runtime_ready")
}

func SignalForwarded(sig string) {
	if !logReady {
		return
	}
	diagLog.Info().Str("signal", sig).Msg("signal_forwarded")
}

func Outcome(kind string, code int, elapsed time.Duration) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("kind", kind).
		Int("code", code).
		Float64("run_s", elapsed.Seconds()).
		Msg("outcome")
}

// CrashReport appends a rendered report to crash_log.txt. It works without
// Init so that reports are kept even when the launcher log could not be
// opened.
func CrashReport(title, report string) error {
	logMu.Lock()
	defer logMu.Unlock()
	if dir == "" {
		return fmt.Errorf("log directory not set")
	}
	f, err := os.OpenFile(filepath.Join(dir, crashLogName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "\n=== %s %s [pid=%d] ===\n%s\n", title, time.Now().Format("2006-01-02 15:04:05"), os.Getpid(), bytes.TrimRight([]byte(report), "\n"))
	return err
}

// CrashFile opens crash_log.txt for the Go runtime's own fatal output and
// writes a session header.
func CrashFile() (*os.File, error) {
	f, err := os.OpenFile(filepath.Join(dir, crashLogName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(f, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	return f, nil
}

// Writer returns a writer that logs every line written to it as an info
// event tagged with stream. Close flushes a trailing partial line.
func Writer(stream string) io.WriteCloser {
	pr, pw := io.Pipe()
	w := &lineWriter{pw: pw, done: make(chan struct{})}
	go func() {
		defer close(w.done)
		sc := bufio.NewScanner(pr)
		sc.Buffer(make([]byte, 4096), 1024*1024)
		for sc.Scan() {
			if logReady {
				diagLog.Info().Str("stream", stream).Msg(sc.Text())
			}
		}
		// Keep draining so writers never block on an oversized line.
		io.Copy(io.Discard, pr)
	}()
	return w
}

type lineWriter struct {
	pw   *io.PipeWriter
	done chan struct{}
}

func (w *lineWriter) Write(p []byte) (int, error) { return w.pw.Write(p) }

func (w *lineWriter) Close() error {
	err := w.pw.Close()
	<-w.done
	return err
}
