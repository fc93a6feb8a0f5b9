package main

import (
	"fmt"
	"os"

	"mica/compiler"
	"mica/diag"
	"mica/parser"
	"mica/vm"
)

// compileSource runs the front half of the pipeline over source text:
// parse, drain parse diagnostics, generate bytecode. On any error the
// diagnostics are rendered to stderr and ok is false.
func compileSource(source string) (*vm.Module, bool) {
	ctx := diag.NewContext(source)
	block := parser.New(ctx).Parse()
	if ctx.HasErrors() {
		ctx.Render(os.Stderr)
		return nil, false
	}

	module, err := compiler.New(ctx).Generate(block)
	if err != nil {
		ctx.Render(os.Stderr)
		fmt.Fprintln(os.Stderr, err)
		return nil, false
	}
	return module, true
}

// compileFile is compileSource over the contents of a file.
func compileFile(filename string) (*vm.Module, bool) {
	data, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 Failed to read file: %v\n", err)
		return nil, false
	}
	return compileSource(string(data))
}
