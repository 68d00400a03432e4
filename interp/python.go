package interp

import (
	"bufio"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"appstub/log"
)

//go:embed bootstrap.py
var bootstrap string

const (
	defaultReadyTimeout = 30 * time.Second
	defaultGracePeriod  = 5 * time.Second
)

var errNoRecord = errors.New("runtime ended without reporting an outcome")

// Python runs the bundled interpreter as a child process. The bootstrap
// program receives its configuration on fd 3 and reports records on fd 4;
// the standard streams are shared with the launcher.
type Python struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Env    []string

	// Signals received here are forwarded to the runtime while the entry
	// module runs.
	Signals <-chan os.Signal
	// Forward filters Signals; nil forwards everything.
	Forward func(os.Signal) bool

	ReadyTimeout time.Duration
	GracePeriod  time.Duration

	cmd     *exec.Cmd
	control *os.File
	records chan *Record
	// decodeErr is set by the reader goroutine before records is closed.
	decodeErr error
	exited    chan struct{}
	waitErr   error
	cleanup   []func() error
	mu        sync.Mutex
}

// Args returns the interpreter arguments for cfg.
func Args(cfg *Config) []string {
	var args []string
	if cfg.Isolated {
		args = append(args, "-I")
	}
	switch cfg.Optimize {
	case 1:
		args = append(args, "-O")
	case 2:
		args = append(args, "-OO")
	}
	if cfg.Unbuffered {
		args = append(args, "-u")
	}
	return append(args, "-c", bootstrap)
}

type wireConfig struct {
	Path     []string `json:"path"`
	Argv     []string `json:"argv"`
	Entry    string   `json:"entry"`
	Redirect string   `json:"redirect,omitempty"`
}

func (p *Python) Initialize(ctx context.Context, cfg *Config) error {
	if runtime.GOOS == "windows" {
		return errors.New("runtime pipes are not supported on windows")
	}
	if err := checkConfig(cfg); err != nil {
		return err
	}

	controlR, controlW, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("control pipe: %w", err)
	}
	p.onFinalize(controlW.Close)
	reportR, reportW, err := os.Pipe()
	if err != nil {
		controlR.Close()
		return fmt.Errorf("report pipe: %w", err)
	}
	p.onFinalize(reportR.Close)

	cmd := exec.Command(cfg.Interpreter, Args(cfg)...)
	cmd.Stdin = p.Stdin
	cmd.Stdout = p.Stdout
	cmd.Stderr = p.Stderr
	cmd.Env = p.Env
	cmd.ExtraFiles = []*os.File{controlR, reportW}

	started := time.Now()
	err = cmd.Start()
	// The child holds its own copies now.
	controlR.Close()
	reportW.Close()
	if err != nil {
		return fmt.Errorf("start %s: %w", cfg.Interpreter, err)
	}
	p.cmd = cmd
	p.control = controlW
	p.records = make(chan *Record, 4)
	p.exited = make(chan struct{})
	log.RuntimeStarted(cfg.Interpreter, cmd.Process.Pid)

	go p.read(reportR)
	go func() {
		p.waitErr = cmd.Wait()
		close(p.exited)
	}()

	line, err := json.Marshal(wireConfig{
		Path:     cfg.SearchPath,
		Argv:     cfg.Argv,
		Entry:    cfg.Entry,
		Redirect: cfg.RedirectHelper,
	})
	if err != nil {
		return err
	}
	if _, err := controlW.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("send configuration: %w", p.exitCause(err))
	}

	timeout := p.ReadyTimeout
	if timeout <= 0 {
		timeout = defaultReadyTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case rec, ok := <-p.records:
		if !ok {
			return fmt.Errorf("runtime exited before it was ready: %w", p.exitCause(p.decodeErr))
		}
		if rec.Kind != RecordReady {
			return fmt.Errorf("runtime sent %q before it was ready", rec.Kind)
		}
		log.RuntimeReady(time.Since(started))
	case <-timer.C:
		return fmt.Errorf("runtime not ready after %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (p *Python) RunMain(ctx context.Context) (*Record, error) {
	if p.cmd == nil {
		return nil, errors.New("runtime not initialized")
	}
	if _, err := io.WriteString(p.control, "run\n"); err != nil {
		return nil, fmt.Errorf("start entry module: %w", p.exitCause(err))
	}

	var last *Record
	records := p.records
	for {
		select {
		case rec, ok := <-records:
			if !ok {
				records = nil
				continue
			}
			last = rec
		case sig := <-p.Signals:
			if p.Forward != nil && !p.Forward(sig) {
				continue
			}
			log.SignalForwarded(sig.String())
			if err := p.cmd.Process.Signal(sig); err != nil {
				log.Warnf("forward %s: %v", sig, err)
			}
		case <-ctx.Done():
			p.cmd.Process.Signal(os.Interrupt)
			ctx = context.Background()
		case <-p.exited:
			// Drain whatever the reader still holds.
			for rec := range p.records {
				last = rec
			}
			if last != nil {
				return last, nil
			}
			return statusRecord(p.waitErr, p.decodeErr)
		}
	}
}

// statusRecord stands in for a missing record using the process status.
func statusRecord(waitErr, decodeErr error) (*Record, error) {
	if decodeErr != nil {
		return nil, fmt.Errorf("decode runtime report: %w", decodeErr)
	}
	if waitErr == nil {
		return &Record{Kind: RecordSuccess}, nil
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) && exitErr.Exited() {
		code, _ := json.Marshal(exitErr.ExitCode())
		return &Record{Kind: RecordExit, Code: code}, nil
	}
	return nil, fmt.Errorf("%w: %v", errNoRecord, waitErr)
}

func (p *Python) Finalize() error {
	var errs []error
	if p.cmd != nil {
		if p.control != nil {
			p.control.Close()
		}
		grace := p.GracePeriod
		if grace <= 0 {
			grace = defaultGracePeriod
		}
		select {
		case <-p.exited:
		case <-time.After(grace):
			log.Warnf("runtime still running after %s, killing pid %d", grace, p.cmd.Process.Pid)
			if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				errs = append(errs, err)
			}
			<-p.exited
		}
		for range p.records {
		}
		p.cmd = nil
	}

	p.mu.Lock()
	cleanup := p.cleanup
	p.cleanup = nil
	p.mu.Unlock()
	for i := len(cleanup) - 1; i >= 0; i-- {
		if err := cleanup[i](); err != nil && !errors.Is(err, os.ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Python) onFinalize(fn func() error) {
	p.mu.Lock()
	p.cleanup = append(p.cleanup, fn)
	p.mu.Unlock()
}

func (p *Python) read(r io.Reader) {
	defer close(p.records)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		rec := new(Record)
		if err := json.Unmarshal(sc.Bytes(), rec); err != nil {
			p.decodeErr = err
			continue
		}
		p.records <- rec
	}
	if err := sc.Err(); err != nil && p.decodeErr == nil {
		p.decodeErr = err
	}
}

// exitCause prefers the process status over a pipe error once the runtime
// has gone away.
func (p *Python) exitCause(err error) error {
	select {
	case <-p.exited:
		if p.waitErr != nil {
			return p.waitErr
		}
		return errors.New("runtime exited")
	case <-time.After(100 * time.Millisecond):
		if err == nil {
			return errors.New("report channel closed")
		}
		return err
	}
}

func checkConfig(cfg *Config) error {
	info, err := os.Stat(cfg.Home)
	if err != nil {
		return fmt.Errorf("runtime home: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("runtime home %s is not a directory", cfg.Home)
	}

	info, err = os.Stat(cfg.Interpreter)
	if err != nil {
		return fmt.Errorf("interpreter: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("interpreter %s is not a regular file", cfg.Interpreter)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("interpreter %s is not executable", cfg.Interpreter)
	}

	for _, dir := range cfg.SearchPath {
		f, err := os.Open(dir)
		if err != nil {
			return fmt.Errorf("search path: %w", err)
		}
		info, err := f.Stat()
		f.Close()
		if err != nil {
			return fmt.Errorf("search path: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("search path entry %s is not a directory", dir)
		}
	}
	return nil
}
