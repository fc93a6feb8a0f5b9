package parser

import (
	"encoding/json"
	"fmt"
	"os"

	"mica/ast"
)

// astPrinter implements the visitor interfaces and builds a JSON-friendly
// representation of the AST using maps and slices. Each Visit method
// returns an object that can be marshaled to JSON. It carries the source
// string so spans can be rendered as the text they cover.
type astPrinter struct {
	source string
}

func (p astPrinter) block(block ast.Block) any {
	stmts := make([]any, 0, len(block.Body))
	for _, stmt := range block.Body {
		stmts = append(stmts, stmt.Accept(p))
	}
	return stmts
}

func (p astPrinter) VisitExpressionStmt(stmt ast.ExpressionStmt) any {
	return map[string]any{
		"type":       "ExpressionStmt",
		"expression": stmt.Expression.Accept(p),
	}
}

func (p astPrinter) VisitAssign(stmt ast.Assign) any {
	return map[string]any{
		"type":  "Assign",
		"name":  stmt.Name.Text(p.source),
		"value": stmt.Value.Accept(p),
	}
}

func (p astPrinter) VisitMutate(stmt ast.Mutate) any {
	return map[string]any{
		"type":  "Mutate",
		"name":  stmt.Name.Text(p.source),
		"value": stmt.Value.Accept(p),
	}
}

func (p astPrinter) VisitFnDecl(stmt ast.FnDecl) any {
	args := make([]any, 0, len(stmt.Args))
	for _, arg := range stmt.Args {
		args = append(args, map[string]any{
			"name": arg.Name.Text(p.source),
			"type": string(arg.Type),
		})
	}
	return map[string]any{
		"type":       "FnDecl",
		"name":       stmt.Name.Text(p.source),
		"returnType": string(stmt.ReturnType),
		"args":       args,
		"block":      p.block(stmt.Block),
	}
}

func (p astPrinter) VisitReturn(stmt ast.Return) any {
	return map[string]any{
		"type":  "Return",
		"value": stmt.Value.Accept(p),
	}
}

func (p astPrinter) VisitIf(stmt ast.If) any {
	var elseVal any
	if stmt.Else != nil {
		elseVal = stmt.Else.Accept(p)
	}
	return map[string]any{
		"type":      "If",
		"condition": stmt.Cond.Accept(p),
		"then":      p.block(stmt.Then),
		"else":      elseVal,
	}
}

func (p astPrinter) VisitElse(stmt ast.Else) any {
	return map[string]any{
		"type":  "Else",
		"block": p.block(stmt.Block),
	}
}

func (p astPrinter) VisitLoop(stmt ast.Loop) any {
	return map[string]any{
		"type":  "Loop",
		"block": p.block(stmt.Block),
	}
}

func (p astPrinter) VisitBreak(stmt ast.Break) any {
	return map[string]any{"type": "Break"}
}

func (p astPrinter) VisitDummyStmt(stmt ast.DummyStmt) any {
	return map[string]any{"type": "Dummy"}
}

func (p astPrinter) VisitBinary(b ast.Binary) any {
	return map[string]any{
		"type":     "Binary",
		"operator": string(b.Op),
		"left":     b.Left.Accept(p),
		"right":    b.Right.Accept(p),
	}
}

func (p astPrinter) VisitUnary(u ast.Unary) any {
	return map[string]any{
		"type":     "Unary",
		"operator": string(u.Op),
		"operand":  u.Operand.Accept(p),
	}
}

func (p astPrinter) VisitLiteral(l ast.Literal) any {
	return map[string]any{
		"type":    "Literal",
		"kind":    string(l.Kind),
		"spelling": l.Span.Text(p.source),
	}
}

func (p astPrinter) VisitIdent(ident ast.Ident) any {
	return map[string]any{
		"type": "Ident",
		"name": ident.Span.Text(p.source),
	}
}

func (p astPrinter) VisitCall(call ast.Call) any {
	args := make([]any, 0, len(call.Args))
	for _, arg := range call.Args {
		args = append(args, arg.Accept(p))
	}
	return map[string]any{
		"type": "Call",
		"name": call.Name.Text(p.source),
		"args": args,
	}
}

func (p astPrinter) VisitDummyExpression(dummy ast.DummyExpression) any {
	return map[string]any{"type": "Dummy"}
}

// ASTJSON converts a parsed block into a prettified JSON string.
func ASTJSON(source string, block ast.Block) (string, error) {
	printer := astPrinter{source: source}
	bytes, err := json.MarshalIndent(printer.block(block), "", "  ")
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// WriteASTJSONToFile writes the prettified AST JSON to the given file path.
func WriteASTJSONToFile(source string, block ast.Block, path string) error {
	s, err := ASTJSON(source, block)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(s), 0o644); err != nil {
		return fmt.Errorf("error writing AST to file: %s", err.Error())
	}
	return nil
}
