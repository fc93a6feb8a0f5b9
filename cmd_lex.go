package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"mica/diag"
	"mica/lexer"
	"mica/token"
)

// lexCmd dumps the token stream of a source file.
type lexCmd struct{}

func (*lexCmd) Name() string     { return "lex" }
func (*lexCmd) Synopsis() string { return "Dump the token stream of a Mica source file" }
func (*lexCmd) Usage() string {
	return `lex <file>:
  Tokenize the file and print one token per line.
`
}
func (*lexCmd) SetFlags(f *flag.FlagSet) {}

func (l *lexCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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
	lex := lexer.New(diag.NewContext(source))
	for {
		tok := lex.Next()
		if tok.Kind == token.EOF {
			break
		}
		fmt.Printf("%-12s %s %q\n", tok.Kind, tok.Span, tok.Text(source))
	}
	return subcommands.ExitSuccess
}
