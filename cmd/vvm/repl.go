package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"vvm"
)

// startREPL drives an interactive session (spec §1 "With no file, enter
// REPL"; spec §3 Lifecycles "Typed IR from a REPL turn is retained as
// history"). Line editing (linenoise-style) is explicitly out of scope
// (spec §1 Non-goals); this reads bare lines from stdin the way the
// teacher's own REPL does.
func startREPL() {
	fmt.Println("vvm | Ctrl-D to exit")
	session := vvm.NewSession()
	session.Argv = nil // spec §6: "in REPL it is the empty string vector"

	history := openHistory()
	if history != nil {
		defer history.Close()
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(">>> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		if history != nil {
			fmt.Fprintln(history, line)
		}

		out, err := session.Evaluate(line, vvm.ModeInteractive)
		if err != nil {
			if ec, ok := asExitCode(err); ok {
				os.Exit(ec.Code)
			}
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		if out != "" {
			fmt.Println(out)
		}
	}
}

// openHistory appends REPL input to $HOME/.vvm_history (spec §6
// Environment: "HOME used by the driver for REPL history").
func openHistory() *os.File {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(home, ".vvm_history"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil
	}
	return f
}
