// Package dialog shows alerts to the user: crash reports and fatal launch
// errors. Presenters block until the user dismisses the alert.
package dialog

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	CrashTitle   = "Application has crashed"
	CrashSummary = "An unexpected error occurred. Please see the traceback below for more information."
)

type Alert struct {
	Title   string
	Summary string
	Detail  string
}

// Crash returns the crash alert for a rendered report.
func Crash(report string) Alert {
	return Alert{Title: CrashTitle, Summary: CrashSummary, Detail: report}
}

type Presenter interface {
	Present(Alert) error
}

// Console writes the alert as plain text.
type Console struct {
	Out io.Writer
}

func (c Console) Present(a Alert) error {
	out := c.Out
	if out == nil {
		out = os.Stderr
	}
	_, err := io.WriteString(out, Format(a))
	return err
}

// Format renders an alert as plain text.
func Format(a Alert) string {
	var b strings.Builder
	if a.Title != "" {
		fmt.Fprintf(&b, "%s\n\n", a.Title)
	}
	if a.Summary != "" {
		fmt.Fprintf(&b, "%s\n\n", a.Summary)
	}
	if d := strings.TrimRight(a.Detail, "\n"); d != "" {
		fmt.Fprintf(&b, "%s\n", d)
	}
	return b.String()
}

// ForTerminal returns a pager when both f and stdin are interactive
// terminals, otherwise plain console output to f.
func ForTerminal(f *os.File) Presenter {
	if term.IsTerminal(int(f.Fd())) && term.IsTerminal(int(os.Stdin.Fd())) {
		return &Pager{In: os.Stdin, Out: f}
	}
	return Console{Out: f}
}
