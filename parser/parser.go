// Recursive descent parser
// https://en.wikipedia.org/wiki/Recursive_descent_parser
//
// A recursive descent parser is a top-down parser: it starts from the top
// grammar rule and works its way down into the nested sub-expressions
// before reaching the leaves of the syntax tree (terminal rules).
package parser

import (
	"fmt"

	"mica/ast"
	"mica/diag"
	"mica/lexer"
	"mica/token"
)

// Parser turns the token stream of a single source string into an AST in
// one pass. Parse errors are reported to the diagnostic context; the
// parser recovers by emitting dummy nodes and keeps going, so one run can
// surface several errors.
type Parser struct {
	context *diag.Context
	lexer   *lexer.Lexer
}

// New creates a parser reading tokens from the context's source string.
func New(context *diag.Context) *Parser {
	return &Parser{
		context: context,
		lexer:   lexer.New(context),
	}
}

// Parse parses the whole input as a module body and returns it.
func (parser *Parser) Parse() ast.Block {
	return parser.parseBlock()
}

// parseBlock parses statements until none can be started, then consumes
// the closing brace or EOF that ends the block. Any other stop token is
// reported.
func (parser *Parser) parseBlock() ast.Block {
	var body []ast.Statement
	for {
		stmt := parser.parseStatement()
		if stmt == nil {
			break
		}
		body = append(body, stmt)
	}

	next := parser.lexer.Peek(0)
	switch next.Kind {
	case token.CLOSE_BRACE, token.EOF:
		parser.lexer.Next()
	default:
		message := fmt.Sprintf("Expected closing brace or EOF, found %s", next.Kind)
		parser.context.Error(next.Span, message)
	}
	return ast.Block{Body: body}
}
