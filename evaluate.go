// Package vvm (root) exposes evaluate(source, mode) (spec §1): the single
// entry point every external driver -- cmd/vvm's REPL/script runner, or an
// embedding host -- calls. It owns nothing about syntax or bytecode itself;
// it wires internal/lexer+internal/parser's untyped syntax tree producer
// through internal/sema, internal/codegen, and internal/vvm (spec §2's
// leaves-first data flow) and returns the VM's display string or a
// single-line diagnostic.
package vvm

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"vvm/internal/bytecode"
	"vvm/internal/cache"
	"vvm/internal/codegen"
	"vvm/internal/parser"
	"vvm/internal/sema"
	"vvm/internal/sqlsource"
	"vvm/internal/stream"
	intvvm "vvm/internal/vvm"
)

// Mode selects between a one-shot script evaluation and a REPL turn (spec
// §1 "evaluate(source, mode)"; spec §4.1 "in interactive mode only,
// overwrite the existing reference").
type Mode int

const (
	// ModeScript evaluates source standalone: the Session's analyzer, but a
	// fresh program and VM every call, with compiled programs memoised by
	// internal/cache.
	ModeScript Mode = iota
	// ModeInteractive evaluates source as the next turn of a REPL session:
	// declarations, function definitions, and global state persist from
	// every prior turn on the same Session.
	ModeInteractive
)

func (m Mode) String() string {
	if m == ModeInteractive {
		return "interactive"
	}
	return "script"
}

// Session is the stateful home of one evaluation stream: argv.v, a single
// script file's one-shot run, or a REPL's whole lifetime (spec §3
// Lifecycles). Callers that only ever need ModeScript can use the package-
// level Evaluate, which opens a throwaway Session per call.
type Session struct {
	analyzer *sema.Analyzer
	specs    *bytecode.SpecTable
	gen      *codegen.Generator // persistent only across ModeInteractive turns
	vm       *intvvm.VM         // persistent only across ModeInteractive turns
	cache    *cache.Cache

	sql    sqlsource.Source
	stream stream.Source

	// Argv is exposed to scripts as the builtin `argv` vector (spec §6
	// "argv exposed to scripts is [script_name, user_args…]; in REPL it is
	// the empty string vector").
	Argv []string
}

// NewSession creates a Session with its own type registry, opcode
// specialisation table, and CTFE wiring (spec §4.1 "the analyzer may ...
// execute via the VM's comptime instance").
func NewSession() *Session {
	s := &Session{
		analyzer: sema.New(),
		specs:    bytecode.NewSpecTable(),
		cache:    cache.New(),
	}
	s.analyzer.SetCTFE(intvvm.NewCTFE(s.specs))
	return s
}

// Evaluate runs source in mode and returns the resulting display string
// (spec §1). Every call is tagged with a request UUID (spec §2 DOMAIN STACK
// "github.com/google/uuid") so concurrent callers on a shared Session can be
// told apart in a wrapped error's context; the dispatch loop itself never
// runs two evaluations concurrently (spec §5 "single-threaded, blocking").
func (s *Session) Evaluate(source string, mode Mode) (string, error) {
	reqID := uuid.New()
	s.analyzer.SetInteractive(mode == ModeInteractive)

	if mode == ModeInteractive {
		out, err := s.evalInteractive(source)
		if err != nil {
			return "", errors.Wrapf(err, "evaluate[%s] %s turn", reqID, mode)
		}
		return out, nil
	}

	key := cache.KeyOf(source, mode.String())
	prog, err := s.cache.Compile(key, func() (*bytecode.Program, error) {
		return s.compile(source)
	})
	if err != nil {
		return "", errors.Wrapf(err, "evaluate[%s] %s", reqID, mode)
	}
	vm := s.newScriptVM(prog)
	out, err := vm.Run()
	if err != nil {
		return "", errors.Wrapf(err, "evaluate[%s] %s", reqID, mode)
	}
	return out, nil
}

// compile lowers source through the analyzer shared by this Session (spec
// §2 data flow: untyped syntax tree -> typed IR -> VVM program). ModeScript
// callers get a fresh Generator per call since the resulting Program isn't
// retained past one Evaluate.
func (s *Session) compile(source string) (*bytecode.Program, error) {
	mod, err := parser.Parse(source)
	if err != nil {
		return nil, err
	}
	hirMod, err := s.analyzer.Analyze(mod)
	if err != nil {
		return nil, err
	}
	g := codegen.New(s.analyzer.Types(), s.specs)
	return g.Gen(hirMod)
}

// evalInteractive appends one REPL turn's code to this Session's persistent
// Generator/Program/VM instead of building a throwaway one, so bindings
// from earlier turns stay visible (spec §3 Lifecycles).
func (s *Session) evalInteractive(source string) (string, error) {
	mod, err := parser.Parse(source)
	if err != nil {
		return "", err
	}
	hirMod, err := s.analyzer.Analyze(mod)
	if err != nil {
		return "", err
	}
	if s.gen == nil {
		s.gen = codegen.New(s.analyzer.Types(), s.specs)
	}
	prog, err := s.gen.Gen(hirMod)
	if err != nil {
		return "", err
	}
	if s.vm == nil {
		s.vm = s.newScriptVM(prog)
	} else {
		s.vm.SyncConsts()
	}
	return s.vm.Run()
}

func (s *Session) newScriptVM(prog *bytecode.Program) *intvvm.VM {
	vm := intvvm.New(prog)
	vm.SQL = s.sql
	vm.Stream = s.stream
	return vm
}

// Evaluate runs source in mode using a fresh, throwaway Session (spec §1).
// An embedding host that needs REPL persistence across calls should keep
// its own *Session instead.
func Evaluate(source string, mode Mode) (string, error) {
	return NewSession().Evaluate(source, mode)
}
