package token

import "fmt"

// Span marks a half-open byte range [Start, End) within the source string.
// Spans are how the rest of the toolchain gets back at source text: the
// parser stores spans instead of lexemes, and the compiler slices the source
// with them to recover identifier and literal text. Diagnostics use spans to
// point at the offending position.
type Span struct {
	Start int
	End   int

	// Dummy marks a span that does not correspond to any source position,
	// such as the span of the EOF token.
	Dummy bool
}

// NewSpan creates a span covering [start, end).
func NewSpan(start, end int) Span {
	return Span{Start: start, End: end}
}

// DummySpan creates a placeholder span with no source position.
func DummySpan() Span {
	return Span{Dummy: true}
}

// Text slices the literal text this span covers out of the source string.
// A dummy span yields the empty string.
func (s Span) Text(source string) string {
	if s.Dummy {
		return ""
	}
	return source[s.Start:s.End]
}

func (s Span) String() string {
	if s.Dummy {
		return "(dummy)"
	}
	return fmt.Sprintf("(%d, %d)", s.Start, s.End)
}
