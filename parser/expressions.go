package parser

import (
	"mica/ast"
	"mica/token"
)

// Expression parsing is precedence climbing: each level parses its higher
// precedence level first and then folds operators at its own level,
// left-associatively.
//
//	equality       == !=
//	comparison     <  >  <=  >=
//	addition       +  -
//	multiplication *  /  %
//	unary          -  !
//	primary        literal, identifier, call, parenthesised

// parseExpression parses one expression starting at the lowest precedence
// level.
func (parser *Parser) parseExpression() ast.Expression {
	return parser.equality()
}

// binarySpan covers a whole binary form, from the first byte of the left
// operand to the last byte of the right one.
func binarySpan(lhs, rhs ast.Expression) token.Span {
	left := ast.SpanOf(lhs)
	right := ast.SpanOf(rhs)
	if left.Dummy || right.Dummy {
		return token.DummySpan()
	}
	return token.NewSpan(left.Start, right.End)
}

func (parser *Parser) equality() ast.Expression {
	expr := parser.comparison()
	for {
		op := parser.lexer.Until(token.EQ_EQUAL, token.NOT_EQUAL)
		if op == nil {
			return expr
		}
		rhs := parser.comparison()
		expr = ast.Binary{Left: expr, Op: ast.OpOf(op.Kind), Right: rhs, Span: binarySpan(expr, rhs)}
	}
}

func (parser *Parser) comparison() ast.Expression {
	expr := parser.addition()
	for {
		op := parser.lexer.Until(token.LT, token.GT, token.LT_EQUAL, token.GT_EQUAL)
		if op == nil {
			return expr
		}
		rhs := parser.addition()
		expr = ast.Binary{Left: expr, Op: ast.OpOf(op.Kind), Right: rhs, Span: binarySpan(expr, rhs)}
	}
}

func (parser *Parser) addition() ast.Expression {
	expr := parser.multiplication()
	for {
		op := parser.lexer.Until(token.PLUS, token.MINUS)
		if op == nil {
			return expr
		}
		rhs := parser.multiplication()
		expr = ast.Binary{Left: expr, Op: ast.OpOf(op.Kind), Right: rhs, Span: binarySpan(expr, rhs)}
	}
}

func (parser *Parser) multiplication() ast.Expression {
	expr := parser.unary()
	for {
		op := parser.lexer.Until(token.STAR, token.SLASH, token.PERCENT)
		if op == nil {
			return expr
		}
		rhs := parser.unary()
		expr = ast.Binary{Left: expr, Op: ast.OpOf(op.Kind), Right: rhs, Span: binarySpan(expr, rhs)}
	}
}

// unary parses the prefix operators - and !, recursing so that forms like
// !!a and --a nest.
func (parser *Parser) unary() ast.Expression {
	op := parser.lexer.Until(token.MINUS, token.NOT)
	if op == nil {
		return parser.primary()
	}
	operand := parser.unary()
	span := token.NewSpan(op.Span.Start, op.Span.End)
	if operandSpan := ast.SpanOf(operand); !operandSpan.Dummy {
		span.End = operandSpan.End
	}
	return ast.Unary{Op: ast.OpOf(op.Kind), Operand: operand, Span: span}
}

func (parser *Parser) primary() ast.Expression {
	next := parser.lexer.Peek(0)
	switch next.Kind {
	case token.INT_LIT, token.FLOAT_LIT, token.STRING_LIT:
		parser.lexer.Next()
		return ast.Literal{Span: next.Span, Kind: ast.LiteralKindOf(next.Kind)}

	case token.IDENTIFIER:
		if parser.lexer.Peek(1).Kind == token.OPEN_PAREN {
			return parser.parseFunctionCall()
		}
		parser.lexer.Next()
		return ast.Ident{Span: next.Span}

	case token.OPEN_PAREN:
		parser.lexer.Next()
		expr := parser.parseExpression()
		parser.lexer.Expect(token.CLOSE_PAREN, "Expected close paren")
		return expr
	}

	parser.lexer.Next()
	parser.context.Error(next.Span, "Expected a value")
	return ast.DummyExpression{}
}

// parseFunctionCall parses `name(...)` with a possibly empty comma
// separated argument list.
func (parser *Parser) parseFunctionCall() ast.Expression {
	name := parser.lexer.Next()
	paren := parser.lexer.Next()
	if paren.Kind != token.OPEN_PAREN {
		parser.context.Error(paren.Span, "Missing parentheses in function call")
		return ast.DummyExpression{}
	}

	if parser.lexer.Peek(0).Kind == token.CLOSE_PAREN {
		parser.lexer.Next()
		return ast.Call{Name: name.Span}
	}

	var args []ast.Expression
	for {
		args = append(args, parser.parseExpression())

		next := parser.lexer.Next()
		switch next.Kind {
		case token.CLOSE_PAREN:
			return ast.Call{Name: name.Span, Args: args}
		case token.COMMA:
			continue
		default:
			parser.context.Error(next.Span, "Expected close paren or comma")
			return ast.Call{Name: name.Span, Args: args}
		}
	}
}
