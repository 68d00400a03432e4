package traceback

import (
	"regexp"
)

// Rewriter replaces absolute paths into a bundle with bundle-relative ones
// on every traceback "File" line.
type Rewriter struct {
	re   *regexp.Regexp
	repl string
}

// NewRewriter matches lines whose path runs through a directory ending in ext
// followed by prefix, e.g. ".app" and "Contents/Resources/".
func NewRewriter(ext, prefix string) *Rewriter {
	tail := regexp.QuoteMeta(ext) + "/" + regexp.QuoteMeta(prefix)
	return &Rewriter{
		re:   regexp.MustCompile(`(?m)^  File "/.*/(.*?)` + tail),
		repl: `  File "${1}` + ext + "/" + prefix,
	}
}

func (r *Rewriter) Rewrite(text string) string {
	return r.re.ReplaceAllString(text, r.repl)
}

var defaultRewriter = NewRewriter(".app", "Contents/Resources/")

// RewritePaths turns
//
//	File "/Users/x/Dev/MyApp.app/Contents/Resources/app/foo.py"
//
// into
//
//	File "MyApp.app/Contents/Resources/app/foo.py"
//
// Rewritten lines no longer start with an absolute path, so applying it twice
// is a no-op.
func RewritePaths(text string) string {
	return defaultRewriter.Rewrite(text)
}
