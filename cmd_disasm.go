package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

// disasmCmd compiles a source file and prints the module disassembly.
type disasmCmd struct{}

func (*disasmCmd) Name() string     { return "disasm" }
func (*disasmCmd) Synopsis() string { return "Print the compiled bytecode of a Mica source file" }
func (*disasmCmd) Usage() string {
	return `disasm <file>:
  Compile the file and print the constant pool and every function's
  bytecode listing.
`
}
func (*disasmCmd) SetFlags(f *flag.FlagSet) {}

func (d *disasmCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "💥 File not provided\n")
		return subcommands.ExitUsageError
	}

	module, ok := compileFile(args[0])
	if !ok {
		return subcommands.ExitFailure
	}

	listing, err := module.Disassemble()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Print(listing)
	return subcommands.ExitSuccess
}
