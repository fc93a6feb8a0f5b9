package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

// runCmd compiles a source file and executes its main function.
type runCmd struct{}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "Compile and execute a Mica source file" }
func (*runCmd) Usage() string {
	return `run <file>:
  Compile the file and execute its main function.
`
}
func (*runCmd) SetFlags(f *flag.FlagSet) {}

func (r *runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "💥 File not provided\n")
		return subcommands.ExitUsageError
	}

	module, ok := compileFile(args[0])
	if !ok {
		return subcommands.ExitFailure
	}

	if _, err := module.RunMain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
