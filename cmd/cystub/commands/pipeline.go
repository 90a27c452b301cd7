package commands

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/teranos/cystub/am"
	"github.com/teranos/cystub/errors"
	"github.com/teranos/cystub/logger"
	"github.com/teranos/cystub/stubgen"
)

// errOutOfDate is returned by check when a stub differs from a fresh one
var errOutOfDate = errors.New("stubs are out of date")

// ExitCode maps an error to the process exit status
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errOutOfDate):
		return 1
	case errors.IsCompileError(err), errors.Is(err, errors.ErrToolUnavailable):
		return 3
	case errors.IsParseError(err):
		return 2
	default:
		return 2
	}
}

// sourceFlags are shared by the commands that discover sources
type sourceFlags struct {
	include      []string
	exclude      []string
	output       string
	keepBuildDir bool
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.include, "include", nil, "Only process sources matching these globs (relative to the root)")
	cmd.Flags().StringSliceVar(&f.exclude, "exclude", nil, "Skip sources matching these globs")
	cmd.Flags().BoolVar(&f.keepBuildDir, "keep-build-dir", false, "Keep the temporary build directory for inspection")
}

// rootArg returns the source root argument, defaulting to the working directory
func rootArg(args []string) (string, error) {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", errors.Wrapf(err, "failed to resolve %s", root)
	}
	return abs, nil
}

// loadConfig loads the configuration as seen from root and validates it
func loadConfig(root string) (*am.Config, error) {
	cfg, err := am.LoadFrom(root)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

// newPipeline wires the Python toolchain collaborators from cfg
func newPipeline(cmd *cobra.Command, cfg *am.Config) (*stubgen.Pipeline, error) {
	tc, err := newToolchain(cmd, cfg)
	if err != nil {
		return nil, err
	}
	compiler := stubgen.NewPythonCompiler(tc, cfg.Build.Directives)
	generator := stubgen.NewStubgenGenerator(tc, cfg.Stubgen.IncludeDocstrings)
	return stubgen.NewPipeline(compiler, generator), nil
}

// newToolchain builds the interpreter runner; -vvv echoes raw tool output
func newToolchain(cmd *cobra.Command, cfg *am.Config) (*stubgen.Toolchain, error) {
	tc, err := stubgen.NewToolchain(cfg.Tools.Python, cfg.ToolTimeout())
	if err != nil {
		return nil, err
	}
	verbosity, _ := cmd.Flags().GetCount("verbose")
	tc.EchoOutput = logger.ShouldLogTrace(verbosity)
	return tc, nil
}

// options builds pipeline options from cfg, with flags taking precedence
func (f *sourceFlags) options(root string, cfg *am.Config) (stubgen.Options, error) {
	include := cfg.Discovery.Include
	if len(f.include) > 0 {
		include = f.include
	}
	exclude := cfg.Discovery.Exclude
	if len(f.exclude) > 0 {
		exclude = f.exclude
	}

	opts := stubgen.Options{
		Root:         root,
		Extensions:   cfg.Discovery.Extensions,
		KeepBuildDir: f.keepBuildDir || cfg.Build.KeepBuildDir,
	}
	if f.output != "" {
		out, err := filepath.Abs(f.output)
		if err != nil {
			return opts, errors.Wrapf(err, "failed to resolve %s", f.output)
		}
		opts.OutputRoot = out
	}

	if len(include) > 0 || len(exclude) > 0 {
		filter, err := stubgen.GlobFilter(root, include, exclude)
		if err != nil {
			return opts, err
		}
		opts.Filter = filter
	}
	return opts, nil
}
