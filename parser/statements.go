package parser

import (
	"mica/ast"
	"mica/token"
)

// parseStatement parses one statement, dispatching on the first token. It
// returns nil when the upcoming token cannot start a statement, which
// signals the enclosing block is done.
func (parser *Parser) parseStatement() ast.Statement {
	next := parser.lexer.Peek(0)
	switch next.Kind {
	case token.LET:
		parser.lexer.Next() // let keyword
		ident := parser.lexer.Expect(token.IDENTIFIER, "Expected identifier")
		equal := parser.lexer.Expect(token.EQUAL, "Expected equal sign")
		expr := parser.parseExpression()
		if ident == nil || equal == nil {
			return ast.DummyStmt{}
		}
		return ast.Assign{Name: ident.Span, Value: expr}

	case token.RETURN:
		keyword := parser.lexer.Next()
		expr := parser.parseExpression()
		return ast.Return{Value: expr, Span: keyword.Span}

	case token.FN:
		return parser.parseFunctionDecl()

	case token.IF:
		return parser.parseIfStatement()

	case token.LOOP:
		parser.lexer.Next() // loop keyword
		if parser.lexer.Expect(token.OPEN_BRACE, "Expected open brace") == nil {
			return ast.DummyStmt{}
		}
		return ast.Loop{Block: parser.parseBlock()}

	case token.BREAK:
		parser.lexer.Next()
		return ast.Break{}

	case token.IDENTIFIER:
		if parser.lexer.Peek(1).Kind == token.EQUAL {
			variable := parser.lexer.Next()
			parser.lexer.Next() // = token
			expr := parser.parseExpression()
			return ast.Mutate{Name: variable.Span, Value: expr}
		}
		return ast.ExpressionStmt{Expression: parser.parseExpression()}

	case token.INT_LIT, token.FLOAT_LIT, token.STRING_LIT:
		return ast.ExpressionStmt{Expression: parser.parseExpression()}
	}
	return nil
}

// parseFunctionDecl parses a function declaration:
//
//	fn name(a: i32, b: f32) -> i32 { ... }
//
// The return type annotation is optional and defaults to void.
func (parser *Parser) parseFunctionDecl() ast.Statement {
	parser.lexer.Next() // fn keyword
	ident := parser.lexer.Expect(token.IDENTIFIER, "Expected identifier")
	if ident == nil {
		return ast.DummyStmt{}
	}
	if parser.lexer.Expect(token.OPEN_PAREN, "Expected open paren") == nil {
		return ast.DummyStmt{}
	}

	var args []ast.Param
	for parser.lexer.Peek(0).Kind == token.IDENTIFIER {
		name := parser.lexer.Next()
		if parser.lexer.Expect(token.COLON, "Expected colon after parameter name") == nil {
			return ast.DummyStmt{}
		}
		paramType, ok := parser.parseType()
		if !ok {
			return ast.DummyStmt{}
		}
		args = append(args, ast.Param{Name: name.Span, Type: paramType})

		if parser.lexer.Peek(0).Kind != token.COMMA {
			break
		}
		parser.lexer.Next() // comma
	}

	if parser.lexer.Expect(token.CLOSE_PAREN, "Expected close paren") == nil {
		return ast.DummyStmt{}
	}

	returnType := ast.TypeVoid
	if parser.lexer.Until(token.ARROW) != nil {
		parsed, ok := parser.parseType()
		if !ok {
			return ast.DummyStmt{}
		}
		returnType = parsed
	}

	if parser.lexer.Expect(token.OPEN_BRACE, "Expected open brace") == nil {
		return ast.DummyStmt{}
	}

	return ast.FnDecl{
		Name:       ident.Span,
		ReturnType: returnType,
		Args:       args,
		Block:      parser.parseBlock(),
	}
}

// parseType parses a type annotation keyword. On anything else it reports
// an error and returns ok=false.
func (parser *Parser) parseType() (ast.Type, bool) {
	next := parser.lexer.Peek(0)
	switch next.Kind {
	case token.I32:
		parser.lexer.Next()
		return ast.TypeInt, true
	case token.F32:
		parser.lexer.Next()
		return ast.TypeFloat, true
	}
	parser.context.Error(next.Span, "Expected type")
	return ast.TypeVoid, false
}

// parseIfStatement parses an if statement and any chained else / else if
// arm. A chained `else if` is parsed by recursing, so the Else slot holds
// either an Else node or another If node.
func (parser *Parser) parseIfStatement() ast.Statement {
	parser.lexer.Next() // if keyword
	expr := parser.parseExpression()
	if parser.lexer.Expect(token.OPEN_BRACE, "Expected open brace") == nil {
		return ast.DummyStmt{}
	}
	block := parser.parseBlock()

	var elseArm ast.Statement
	if parser.lexer.Peek(0).Kind == token.ELSE {
		parser.lexer.Next() // else keyword
		if parser.lexer.Peek(0).Kind == token.IF {
			elseArm = parser.parseIfStatement()
		} else {
			if parser.lexer.Expect(token.OPEN_BRACE, "Expected open brace") == nil {
				return ast.DummyStmt{}
			}
			elseArm = ast.Else{Block: parser.parseBlock()}
		}
	}
	return ast.If{Cond: expr, Then: block, Else: elseArm}
}
