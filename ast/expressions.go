// expressions.go contains all the expression AST nodes. An expression node
// always evaluates to a value.

package ast

import (
	"fmt"

	"mica/token"
)

// LiteralKind tags which kind of literal a Literal node holds.
type LiteralKind string

const (
	IntLiteral    LiteralKind = "int"
	FloatLiteral  LiteralKind = "float"
	StringLiteral LiteralKind = "string"
)

// LiteralKindOf converts a literal token kind to the matching AST literal
// kind. It panics on any other token kind.
func LiteralKindOf(kind token.Kind) LiteralKind {
	switch kind {
	case token.INT_LIT:
		return IntLiteral
	case token.FLOAT_LIT:
		return FloatLiteral
	case token.STRING_LIT:
		return StringLiteral
	}
	panic(fmt.Sprintf("not a literal token: %s", kind))
}

// Op identifies a binary or unary operator.
type Op string

const (
	OpStar  Op = "*"
	OpSlash Op = "/"
	OpPlus  Op = "+"
	OpMinus Op = "-"
	OpMod   Op = "%"
	OpEq    Op = "=="
	OpNotEq Op = "!="
	OpLtEq  Op = "<="
	OpGtEq  Op = ">="
	OpLt    Op = "<"
	OpGt    Op = ">"
	OpNot   Op = "!"
)

// OpOf converts an operator token kind to the matching Op. It panics if
// the token kind is not an operator.
func OpOf(kind token.Kind) Op {
	switch kind {
	case token.STAR:
		return OpStar
	case token.SLASH:
		return OpSlash
	case token.PLUS:
		return OpPlus
	case token.MINUS:
		return OpMinus
	case token.PERCENT:
		return OpMod
	case token.EQ_EQUAL:
		return OpEq
	case token.NOT_EQUAL:
		return OpNotEq
	case token.LT_EQUAL:
		return OpLtEq
	case token.GT_EQUAL:
		return OpGtEq
	case token.LT:
		return OpLt
	case token.GT:
		return OpGt
	case token.NOT:
		return OpNot
	}
	panic(fmt.Sprintf("not an operator: %s", kind))
}

// Literal represents an integer, float or string literal. The span covers
// the literal's spelling in the source; for strings it includes both
// quotes.
type Literal struct {
	Span token.Span
	Kind LiteralKind
}

func (literal Literal) Accept(v ExpressionVisitor) any {
	return v.VisitLiteral(literal)
}

// Ident represents a variable reference. The span covers the identifier.
type Ident struct {
	Span token.Span
}

func (ident Ident) Accept(v ExpressionVisitor) any {
	return v.VisitIdent(ident)
}

// Binary represents a binary operation (e.g., "a + b"). The span covers
// the whole form, which is where type mismatch diagnostics point.
type Binary struct {
	Left  Expression
	Op    Op
	Right Expression
	Span  token.Span
}

func (binary Binary) Accept(v ExpressionVisitor) any {
	return v.VisitBinary(binary)
}

// Unary represents a prefix operation ("-a" or "!a"). The span covers the
// operator and its operand.
type Unary struct {
	Op      Op
	Operand Expression
	Span    token.Span
}

func (unary Unary) Accept(v ExpressionVisitor) any {
	return v.VisitUnary(unary)
}

// Call represents a function call. Name spans the callee identifier; Args
// are the argument expressions in source order.
type Call struct {
	Name token.Span
	Args []Expression
}

func (call Call) Accept(v ExpressionVisitor) any {
	return v.VisitCall(call)
}

// DummyExpression is the placeholder the parser produces where an
// expression could not be parsed. Compiling a block that contains one is a
// fatal error.
type DummyExpression struct{}

func (dummy DummyExpression) Accept(v ExpressionVisitor) any {
	return v.VisitDummyExpression(dummy)
}
