package traceback

import (
	"fmt"
	"strings"
)

const (
	causeSeparator   = "\nThe above exception was the direct cause of the following exception:\n\n"
	contextSeparator = "\nDuring handling of the above exception, another exception occurred:\n\n"
)

// Render formats an exception and its chain the way the runtime prints
// tracebacks: oldest exception first, frames oldest call first.
func Render(outer Exception, chain []Exception, detail string) string {
	var b strings.Builder
	for i := len(chain) - 1; i >= 0; i-- {
		writeException(&b, chain[i])
		// Relation describes chain[i] relative to the exception raised after it.
		if chain[i].Relation == Context {
			b.WriteString(contextSeparator)
		} else {
			b.WriteString(causeSeparator)
		}
	}
	writeException(&b, outer)
	if detail != "" {
		b.WriteString("\n")
		b.WriteString(strings.TrimRight(detail, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}

func writeException(b *strings.Builder, e Exception) {
	if len(e.Frames) > 0 {
		b.WriteString("Traceback (most recent call last):\n")
		for _, f := range e.Frames {
			fmt.Fprintf(b, "  File \"%s\", line %d, in %s\n", f.File, f.Line, f.Name)
			if text := strings.TrimSpace(f.Text); text != "" {
				fmt.Fprintf(b, "    %s\n", text)
			}
		}
	}
	b.WriteString(exceptionLine(e))
	b.WriteString("\n")
}

func exceptionLine(e Exception) string {
	typ := e.Type
	if typ == "" {
		typ = "<unknown exception>"
	}
	if e.Value == "" {
		return typ
	}
	return typ + ": " + e.Value
}

func renderDegradedDetail(f *Failure) string {
	var parts []string
	if f.Type != "" || f.Value != "" {
		parts = append(parts, exceptionLine(f.Exception))
	}
	if f.Detail != "" {
		parts = append(parts, strings.TrimRight(f.Detail, "\n"))
	}
	return strings.Join(parts, "\n")
}
