// Package diag carries the diagnostic context shared by the lexer, parser
// and compiler. Each stage reports user-facing source errors through
// Context.Error; the caller decides when to drain and render them.
package diag

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"mica/token"
)

// Diagnostic is a single user-visible error located at a span in the
// source.
type Diagnostic struct {
	Span    token.Span
	Message string
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("error: %s at %s", d.Message, d.Span)
}

// Context collects diagnostics emitted by any stage of the pipeline. It
// carries the source string so rendering can compute line numbers and
// underline positions. Reporting an error never aborts; stages that cannot
// recover stop on their own after reporting.
type Context struct {
	source      string
	diagnostics []Diagnostic
}

// NewContext creates a diagnostic context for the given source string. The
// source must outlive the context.
func NewContext(source string) *Context {
	return &Context{source: source}
}

// Source returns the source string this context was created for.
func (c *Context) Source() string {
	return c.source
}

// Error records a diagnostic locating span in the source.
func (c *Context) Error(span token.Span, message string) {
	c.diagnostics = append(c.diagnostics, Diagnostic{Span: span, Message: message})
}

// HasErrors reports whether any diagnostic has been recorded.
func (c *Context) HasErrors() bool {
	return len(c.diagnostics) > 0
}

// Diagnostics returns every diagnostic recorded so far, in report order.
func (c *Context) Diagnostics() []Diagnostic {
	return c.diagnostics
}

var (
	errColor  = color.New(color.FgYellow)
	lineColor = color.New(color.FgYellow)
)

// Render writes every recorded diagnostic to w in the compiler's error
// format: the message, the source line it points at, and a caret under the
// offending column.
func (c *Context) Render(w io.Writer) {
	for _, d := range c.diagnostics {
		c.renderOne(w, d)
	}
}

func (c *Context) renderOne(w io.Writer, d Diagnostic) {
	errColor.Fprintf(w, "error: %s\n", d.Message)
	if d.Span.Dummy {
		return
	}

	// Count the newlines before the span to find its line, and remember
	// where that line starts so the caret lands on the right column.
	line := 0
	lineStart := 0
	for i := 0; i < d.Span.Start && i < len(c.source); i++ {
		if c.source[i] == '\n' {
			line++
			lineStart = i + 1
		}
	}

	text := c.source[lineStart:]
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}

	prefix := fmt.Sprintf("    %d | ", line+1)
	lineColor.Fprint(w, prefix)
	fmt.Fprintln(w, text)
	fmt.Fprintf(w, "%s^\n", strings.Repeat(" ", len(prefix)+d.Span.Start-lineStart))
}
