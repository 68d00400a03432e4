// Package traceback turns the runtime's raw error state into the text shown
// in the crash dialog.
package traceback

// DefaultDrop is the number of leading frames contributed by the launcher's
// own invocation (runpy._run_module_as_main and runpy._run_code).
const DefaultDrop = 2

// Frame is one entry of a traceback, oldest call first.
type Frame struct {
	File string `json:"file"`
	Line int    `json:"line"`
	Name string `json:"name"`
	Text string `json:"text,omitempty"`
}

// Relation describes how a chained exception relates to the one raised after it.
type Relation string

const (
	Cause   Relation = "cause"   // raise ... from ...
	Context Relation = "context" // raised while handling another exception
)

type Exception struct {
	Type     string   `json:"type"`
	Value    string   `json:"value"`
	Frames   []Frame  `json:"traceback"`
	Relation Relation `json:"relation,omitempty"`
}

// Failure is the normalized error state of an unhandled termination.
type Failure struct {
	Exception

	// Chain holds earlier exceptions, nearest first: Chain[0] is the cause or
	// context of the outermost exception, Chain[1] that of Chain[0], ...
	Chain []Exception

	// Detail is free-form text appended after the exception line.
	Detail string

	// Degraded names the diagnostic step that failed, e.g. "retrieve the
	// error state from the runtime". Empty when extraction succeeded.
	Degraded string
}

type Report struct {
	Text     string
	Degraded bool
}

// Prune drops the first n frames. Chains shorter than n are returned
// unchanged.
func Prune(frames []Frame, n int) []Frame {
	if n <= 0 || len(frames) < n {
		return frames
	}
	return frames[n:]
}

type Options struct {
	Drop    int
	Rewrite func(string) string
}

func DefaultOptions() Options {
	return Options{Drop: DefaultDrop, Rewrite: RewritePaths}
}

// Build produces the diagnostic report for f. It never fails: a nil or
// degraded failure still yields a non-empty report.
func Build(f *Failure, opts Options) Report {
	if f == nil {
		return Report{Text: degradedText("retrieve the error state from the runtime", ""), Degraded: true}
	}
	rewrite := opts.Rewrite
	if rewrite == nil {
		rewrite = func(s string) string { return s }
	}
	if f.Degraded != "" {
		return Report{Text: rewrite(degradedText(f.Degraded, renderDegradedDetail(f))), Degraded: true}
	}

	outer := f.Exception
	outer.Frames = Prune(outer.Frames, opts.Drop)
	return Report{Text: rewrite(Render(outer, f.Chain, f.Detail))}
}

func degradedText(step, detail string) string {
	text := "Unable to " + step + "."
	if detail != "" {
		text += "\n\n" + detail
	}
	return text
}
