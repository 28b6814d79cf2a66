// Package cmd implements langvm's command-line interface: a single
// positional-argument invocation (the source file) with mutually exclusive
// mode flags, built on spf13/cobra exactly as go-dws's cmd/dwscript/cmd
// is, but with --lex/--parse/--semantic/--run as flags on the root command
// rather than subcommands.
package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cwbudde/langvm/internal/runner"
	"github.com/cwbudde/langvm/internal/vmerrors"
)

var (
	// Version information (set by build flags)
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	verbose bool

	lexMode      bool
	parseMode    bool
	semanticMode bool
	runMode      bool

	jitEnabled   bool
	jitThreshold int64
	jitWorkers   int
)

var rootCmd = &cobra.Command{
	Use:   "langvm [file]",
	Short: "Compiler and bytecode VM for the langvm language",
	Long: `langvm lexes, parses, type-checks, optimizes, compiles, and runs
programs written in a small statically typed imperative language.

Exactly one mode flag applies to a given invocation: --lex, --parse, and
--semantic each dump one pipeline stage's output instead of running the
program; --run (the default) executes it.

Examples:
  # Run a program
  langvm program.lang

  # Dump the token stream
  langvm --lex program.lang

  # Type-check, then dump the AST
  langvm --semantic program.lang`,
	Args:    cobra.ExactArgs(1),
	Version: Version,
	RunE:    runLangvm,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(`{{with .Name}}{{printf "%%s " .}}{{end}}{{printf "version %%s" .Version}}
Commit: %s
Built:  %s
`, GitCommit, BuildDate))

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (also enables JIT compile logging)")

	rootCmd.Flags().BoolVar(&lexMode, "lex", false, "dump the token stream and exit")
	rootCmd.Flags().BoolVar(&parseMode, "parse", false, "dump the parsed AST and exit")
	rootCmd.Flags().BoolVar(&semanticMode, "semantic", false, "type-check and dump the AST, and exit")
	rootCmd.Flags().BoolVar(&runMode, "run", false, "compile and execute the program (default)")

	rootCmd.Flags().BoolVar(&jitEnabled, "jit", true, "enable the profile-guided JIT")
	rootCmd.Flags().Int64Var(&jitThreshold, "jit-threshold", 1000, "call count after which a function becomes eligible for JIT compilation")
	rootCmd.Flags().IntVar(&jitWorkers, "jit-workers", defaultJITWorkers(), "background JIT compile worker pool size")
}

func defaultJITWorkers() int {
	if n := runtime.NumCPU(); n < 4 {
		return n
	}
	return 4
}

func exitWithError(msg string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+msg+"\n", args...)
	os.Exit(1)
}

// mode resolves the mutually exclusive mode flags to exactly one selection,
// defaulting to run. It rejects invocations that set more than one.
func mode() (string, error) {
	set := []string{}
	if lexMode {
		set = append(set, "--lex")
	}
	if parseMode {
		set = append(set, "--parse")
	}
	if semanticMode {
		set = append(set, "--semantic")
	}
	if runMode {
		set = append(set, "--run")
	}
	if len(set) > 1 {
		return "", fmt.Errorf("mutually exclusive mode flags given together: %v", set)
	}
	if len(set) == 0 {
		return "run", nil
	}
	return set[0][2:], nil
}

func runLangvm(_ *cobra.Command, args []string) error {
	m, err := mode()
	if err != nil {
		return err
	}

	filename := args[0]
	content, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	source := string(content)

	var (
		out    string
		rerr   *vmerrors.Error
		logger *zap.Logger
	)

	switch m {
	case "lex":
		out, rerr = runner.DumpTokens(source, filename)
	case "parse":
		out, rerr = runner.DumpAST(source, filename)
	case "semantic":
		out, rerr = runner.DumpSemantic(source, filename)
	case "run":
		if verbose {
			logger, _ = zap.NewDevelopment()
		} else {
			logger = zap.NewNop()
		}
		rerr = runner.Run(source, filename, runner.Options{
			Out:          fmt.Printf,
			JITEnabled:   jitEnabled,
			JITThreshold: jitThreshold,
			JITWorkers:   jitWorkers,
			Logger:       logger,
		})
	}

	if rerr != nil {
		fmt.Fprint(os.Stderr, rerr.Format(true))
		return fmt.Errorf("%s failed", m)
	}
	if out != "" {
		fmt.Print(out)
	}
	return nil
}
