// cmd/vvm is the CLI driver (spec §6 "CLI surface ... specified only
// because the analyzer consumes argv"): it is the one concrete producer of
// argv and of the "--dump-*" trace output, plus the REPL and Markdown
// regression harness spec §1 treats as external collaborators.
//
// Grounded on sentra/cmd/sentra/main.go's dispatch shape, generalised from
// its hand-rolled arg loop to github.com/urfave/cli/v3's flag/positional
// model (SPEC_FULL.md AMBIENT STACK "Configuration"), closer to this
// spec's flat flag/positional shape than a subcommand tree would be.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v3"

	"vvm"
	"vvm/internal/langerrors"
)

var (
	buildVersion = "0.1.0"
	buildDate    = "unknown"
)

func main() {
	cmd := &cli.Command{
		Name:    "vvm",
		Usage:   "Vector VM: a columnar Dataframe language and bytecode interpreter",
		Version: fmt.Sprintf("%s (%s)", buildVersion, buildDate),
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "dump-ast", Usage: "print the parsed syntax tree instead of running"},
			&cli.BoolFlag{Name: "dump-hir", Usage: "print the typed IR instead of running"},
			&cli.BoolFlag{Name: "dump-vvm", Usage: "print the generated bytecode instead of running"},
			&cli.BoolFlag{Name: "test-mode", Usage: "exit 0/1 without printing results, for scripted test runners"},
			&cli.StringFlag{Name: "verify-markdown", Usage: "run every fenced script/expected-output pair in `FILE` and report mismatches"},
		},
		Action: run,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		if ec, ok := asExitCode(err); ok {
			os.Exit(ec.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// asExitCode recovers a user exit(n) from the error chain internal/vvm
// returns it as (spec §5/§7: "exit(n) is caught only at the driver
// boundary").
func asExitCode(err error) (*langerrors.ExitCode, bool) {
	var ec *langerrors.ExitCode
	for err != nil {
		if e, ok := err.(*langerrors.ExitCode); ok {
			return e, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return ec, false
}

func run(ctx context.Context, cmd *cli.Command) error {
	if md := cmd.String("verify-markdown"); md != "" {
		return runVerifyMarkdown(md)
	}

	args := cmd.Args().Slice()
	dump := dumpMode{
		ast: cmd.Bool("dump-ast"),
		hir: cmd.Bool("dump-hir"),
		vvm: cmd.Bool("dump-vvm"),
	}
	testMode := cmd.Bool("test-mode")

	if len(args) == 0 {
		startREPL()
		return nil
	}

	scriptPath := args[0]
	src, err := os.ReadFile(scriptPath)
	if err != nil {
		return fmt.Errorf("vvm: %w", err)
	}

	if dump.ast || dump.hir || dump.vvm {
		return runDump(string(src), dump)
	}

	argv := append([]string{scriptPath}, args[1:]...)
	session := vvm.NewSession()
	session.Argv = argv
	out, err := session.Evaluate(string(src), vvm.ModeScript)
	if err != nil {
		if testMode {
			return err
		}
		fmt.Fprintln(os.Stderr, renderErr(string(src), err))
		if _, ok := asExitCode(err); ok {
			return err
		}
		os.Exit(1)
	}
	if !testMode && out != "" {
		fmt.Println(out)
	}
	return nil
}

func renderErr(_ string, err error) string {
	return err.Error()
}

func init() {
	log.SetFlags(0)
}
