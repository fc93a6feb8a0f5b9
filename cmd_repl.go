package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/subcommands"
)

// replCmd starts an interactive session. Each line is compiled and run as
// a whole program: a line that declares functions runs as-is, anything
// else is wrapped into a main function first.
type replCmd struct{}

func (*replCmd) Name() string     { return "repl" }
func (*replCmd) Synopsis() string { return "Start an interactive Mica session" }
func (*replCmd) Usage() string {
	return `repl:
  Start an interactive session. Type 'exit' to leave.
`
}
func (*replCmd) SetFlags(f *flag.FlagSet) {}

func (r *replCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	fmt.Println("Welcome to Mica!")

	rl, err := readline.New(">>> ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 Failed to start readline: %v\n", err)
		return subcommands.ExitFailure
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return subcommands.ExitSuccess
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" {
			return subcommands.ExitSuccess
		}

		source := line
		if !strings.HasPrefix(line, "fn") {
			source = fmt.Sprintf("fn main() {\n%s\n}", line)
		}

		module, ok := compileSource(source)
		if !ok {
			continue
		}
		if _, err := module.RunMain(); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}
