package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"

	"mica/vm"
)

// emitCmd compiles a source file to an object file.
type emitCmd struct {
	disassemble bool
}

func (*emitCmd) Name() string     { return "emit" }
func (*emitCmd) Synopsis() string { return "Compile a Mica source file to an object file" }
func (*emitCmd) Usage() string {
	return `emit <file>:
  Compile the file and write a .mco object file next to it.
`
}

func (e *emitCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&e.disassemble, "disassemble", false, "also write a human readable .mcd listing")
}

func (e *emitCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "💥 File not provided\n")
		return subcommands.ExitUsageError
	}
	micaFile := args[0]

	module, ok := compileFile(micaFile)
	if !ok {
		return subcommands.ExitFailure
	}

	base := strings.TrimSuffix(micaFile, ".mica")
	if err := vm.NewObjBuilder(module).WriteFile(base + ".mco"); err != nil {
		fmt.Fprintf(os.Stderr, "💥 Failed to write object file: %v\n", err)
		return subcommands.ExitFailure
	}

	if e.disassemble {
		listing, err := module.Disassemble()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		if err := os.WriteFile(base+".mcd", []byte(listing), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "💥 Failed to write listing: %v\n", err)
			return subcommands.ExitFailure
		}
	}
	return subcommands.ExitSuccess
}
