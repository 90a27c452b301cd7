package stubgen

import (
	"context"

	"go.uber.org/zap"

	"github.com/teranos/cystub/logger"
)

// Generator writes the raw stub for one compiled module into outDir.
// workDir is the build directory holding the compiled module; it is the
// working directory of the generator process only.
type Generator interface {
	Generate(ctx context.Context, workDir, outDir, module string) error
}

// StubgenGenerator runs mypy's stubgen through the toolchain interpreter.
type StubgenGenerator struct {
	toolchain         *Toolchain
	includeDocstrings bool
	logger            *zap.SugaredLogger
}

// NewStubgenGenerator creates a stubgen-backed Generator.
func NewStubgenGenerator(tc *Toolchain, includeDocstrings bool) *StubgenGenerator {
	return &StubgenGenerator{
		toolchain:         tc,
		includeDocstrings: includeDocstrings,
		logger:            logger.ComponentLogger("stubgen.invoke"),
	}
}

// Args returns the interpreter arguments for generating module's stub.
func (g *StubgenGenerator) Args(outDir, module string) []string {
	args := []string{"-m", "mypy.stubgen", "-m", module}
	if g.includeDocstrings {
		args = append(args, "--include-docstrings")
	}
	return append(args, "-o", outDir)
}

// Generate runs stubgen for a single module from workDir.
func (g *StubgenGenerator) Generate(ctx context.Context, workDir, outDir, module string) error {
	logger.LoggerFromContext(ctx, g.logger).Debugw("Generating stub",
		logger.FieldModule, module,
		logger.FieldDir, outDir,
	)
	_, err := g.toolchain.Run(ctx, workDir, g.Args(outDir, module)...)
	return err
}
