// Package runner wires the front-end and core stages together — lexer →
// parser → semantic analyzer → optimizer → bytecode generator → VM — into
// the single entry point cmd/langvm drives, mirroring the way go-dws's
// cmd/dwscript/cmd/run.go threads its own pipeline stages and translates
// each stage's failure into formatted stderr output.
package runner

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cwbudde/langvm/internal/bytecode"
	"github.com/cwbudde/langvm/internal/jit"
	"github.com/cwbudde/langvm/internal/lang/ast"
	"github.com/cwbudde/langvm/internal/lang/lexer"
	"github.com/cwbudde/langvm/internal/lang/optimize"
	"github.com/cwbudde/langvm/internal/lang/parser"
	"github.com/cwbudde/langvm/internal/lang/sema"
	"github.com/cwbudde/langvm/internal/lang/token"
	"github.com/cwbudde/langvm/internal/vm"
	"github.com/cwbudde/langvm/internal/vmerrors"
)

// Options configures one Run. JITEnabled/JITThreshold/JITWorkers correspond
// to cmd/langvm's --jit-threshold/--jit-workers tuning flags.
type Options struct {
	Out          func(string, ...any) // Fprintf-shaped sink (os.Stdout by the CLI, a buffer in tests)
	JITEnabled   bool
	JITThreshold int64
	JITWorkers   int
	Logger       *zap.Logger
}

// writerFunc adapts Options.Out to an io.Writer, since the VM's
// PRINT/PRINT_ARRAY opcodes need one.
type writerFunc func(string, ...any)

func (w writerFunc) Write(p []byte) (int, error) {
	w("%s", string(p))
	return len(p), nil
}

// stageError wraps source-position-bearing errors from each front-end stage
// into the matching vmerrors.Stage.
func stageError(stage vmerrors.Stage, err error, source, file string) *vmerrors.Error {
	switch e := err.(type) {
	case *lexer.Error:
		return &vmerrors.Error{Stage: stage, Pos: e.Pos, Msg: e.Msg, Source: source, File: file}
	case *parser.Error:
		return &vmerrors.Error{Stage: stage, Pos: e.Pos, Msg: e.Msg, Source: source, File: file}
	case *sema.Error:
		return &vmerrors.Error{Stage: stage, Pos: e.Pos, Msg: e.Msg, Source: source, File: file}
	default:
		return &vmerrors.Error{Stage: stage, Pos: token.Position{Line: 1, Column: 1}, Msg: err.Error(), Source: source, File: file}
	}
}

// frontend runs lexing through semantic analysis and returns the checked
// program plus its symbol table, or the first staged error.
func frontend(source, file string) (*ast.Program, *sema.SymbolTable, *vmerrors.Error) {
	p, err := parser.New(source)
	if err != nil {
		return nil, nil, stageError(vmerrors.LexStage, err, source, file)
	}

	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		return nil, nil, stageError(vmerrors.ParseStage, errs[0], source, file)
	}

	syms, err := sema.NewAnalyzer().Analyze(program)
	if err != nil {
		return nil, nil, stageError(vmerrors.SemanticStage, err, source, file)
	}

	return program, syms, nil
}

// DumpTokens renders source's token stream, for the CLI's --lex mode.
func DumpTokens(source, file string) (string, *vmerrors.Error) {
	toks, err := lexer.Tokenize(source)
	if err != nil {
		return "", stageError(vmerrors.LexStage, err, source, file)
	}
	s := ""
	for _, t := range toks {
		s += fmt.Sprintf("%-14s %-20q %s\n", t.Type, t.Literal, t.Pos)
	}
	return s, nil
}

// DumpAST renders source's parsed (but not yet checked) AST, for --parse.
func DumpAST(source, file string) (string, *vmerrors.Error) {
	p, err := parser.New(source)
	if err != nil {
		return "", stageError(vmerrors.LexStage, err, source, file)
	}
	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		return "", stageError(vmerrors.ParseStage, errs[0], source, file)
	}
	return program.String(), nil
}

// DumpSemantic type-checks source and renders its AST, for --semantic; the
// AST text is unchanged from DumpAST, but reaching it at all proves the
// program passed every semantic check.
func DumpSemantic(source, file string) (string, *vmerrors.Error) {
	program, _, serr := frontend(source, file)
	if serr != nil {
		return "", serr
	}
	return program.String(), nil
}

// Run lexes, parses, checks, optimizes, compiles, and executes source,
// threading the full pipeline end to end. Output goes to opts.Out; a
// non-nil *vmerrors.Error reports the first failing stage.
func Run(source, file string, opts Options) *vmerrors.Error {
	program, syms, serr := frontend(source, file)
	if serr != nil {
		return serr
	}

	program = optimize.FoldConstants(program)
	program = optimize.EliminateDeadCode(program)

	module, err := bytecode.Generate(program, syms)
	if err != nil {
		return stageError(vmerrors.SemanticStage, err, source, file)
	}

	vmInst := vm.New(module, writerFunc(opts.Out))
	if opts.JITEnabled {
		logger := opts.Logger
		if logger == nil {
			logger = zap.NewNop()
		}
		rt := jit.NewRuntime(vmInst, module, opts.JITThreshold, opts.JITWorkers, logger)
		vmInst.Interceptor = rt
		defer rt.Shutdown()
	}

	if res := vmInst.Run(); res != vm.SUCCESS {
		return vmerrors.VM(res)
	}
	return nil
}
