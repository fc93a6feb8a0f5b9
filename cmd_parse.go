package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"mica/diag"
	"mica/parser"
)

// parseCmd dumps the AST of a source file as JSON.
type parseCmd struct {
	outFile string
}

func (*parseCmd) Name() string     { return "parse" }
func (*parseCmd) Synopsis() string { return "Dump the AST of a Mica source file as JSON" }
func (*parseCmd) Usage() string {
	return `parse <file>:
  Parse the file and print the AST as prettified JSON.
`
}

func (p *parseCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.outFile, "o", "", "write the AST JSON to this file instead of stdout")
}

func (p *parseCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "💥 File not provided\n")
		return subcommands.ExitUsageError
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 Failed to read file: %v\n", err)
		return subcommands.ExitFailure
	}

	source := string(data)
	diagCtx := diag.NewContext(source)
	block := parser.New(diagCtx).Parse()
	if diagCtx.HasErrors() {
		diagCtx.Render(os.Stderr)
		return subcommands.ExitFailure
	}

	if p.outFile != "" {
		if err := parser.WriteASTJSONToFile(source, block, p.outFile); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}

	s, err := parser.ASTJSON(source, block)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Println(s)
	return subcommands.ExitSuccess
}
