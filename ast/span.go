package ast

import "mica/token"

// SpanOf recovers the source span an expression covers. Calls span only
// their callee name; dummies have no position at all.
func SpanOf(expr Expression) token.Span {
	switch e := expr.(type) {
	case Literal:
		return e.Span
	case Ident:
		return e.Span
	case Binary:
		return e.Span
	case Unary:
		return e.Span
	case Call:
		return e.Name
	}
	return token.DummySpan()
}
