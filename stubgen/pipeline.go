package stubgen

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/cystub/errors"
	"github.com/teranos/cystub/logger"
	"github.com/teranos/cystub/pyi"
)

// Options select the sources of one run.
type Options struct {
	// Root is searched recursively for extension sources.
	Root string
	// Filter narrows the discovered files; nil keeps all of them.
	Filter Filter
	// Extensions overrides DefaultExtension.
	Extensions []string
	// OutputRoot receives the stubs instead of the common source root.
	OutputRoot string
	// KeepBuildDir leaves the temporary build directory in place.
	KeepBuildDir bool
}

// Result summarizes a run.
type Result struct {
	RunID       string   `json:"run_id" yaml:"run_id" toml:"run_id"`
	Root        string   `json:"root" yaml:"root" toml:"root"`
	OutputRoot  string   `json:"output_root" yaml:"output_root" toml:"output_root"`
	Modules     []Module `json:"modules" yaml:"modules" toml:"modules"`
	Transformed []string `json:"transformed" yaml:"transformed" toml:"transformed"`
	// Skipped lists modules for which the generator left no stub.
	Skipped  []string `json:"skipped" yaml:"skipped" toml:"skipped"`
	Repaired int      `json:"repaired" yaml:"repaired" toml:"repaired"`
}

// Pipeline runs discovery, compilation, generation and transformation in
// strict sequence.
type Pipeline struct {
	compiler  Compiler
	generator Generator
	logger    *zap.SugaredLogger
}

// NewPipeline wires the two external collaborators.
func NewPipeline(compiler Compiler, generator Generator) *Pipeline {
	return &Pipeline{
		compiler:  compiler,
		generator: generator,
		logger:    logger.ComponentLogger("stubgen"),
	}
}

// Run discovers the sources under opts.Root and generates their stubs.
// When nothing is found no tool is invoked and an empty Result is returned.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	files, err := Discover(opts.Root, opts.Filter, opts.Extensions...)
	if err != nil {
		return nil, err
	}
	return p.RunFiles(ctx, files, opts)
}

// RunFiles generates stubs for an explicit list of source files. opts.Root,
// opts.Filter and opts.Extensions are ignored.
//
// The build directory is removed before any error is returned. A compiler
// failure aborts the run; a module the generator cannot handle is logged and
// listed in Result.Skipped; a generated stub that does not parse aborts the
// run.
func (p *Pipeline) RunFiles(ctx context.Context, files []string, opts Options) (*Result, error) {
	runID := uuid.New().String()
	ctx = logger.WithRunID(ctx, runID)
	log := logger.LoggerFromContext(ctx, p.logger)

	if len(files) == 0 {
		log.Infow("No extension sources found", logger.FieldRoot, opts.Root)
		return &Result{RunID: runID, Root: opts.Root}, nil
	}

	plan, err := PlanModules(files)
	if err != nil {
		return nil, err
	}

	outRoot := opts.OutputRoot
	if outRoot == "" {
		outRoot = plan.Root
	}

	result := &Result{
		RunID:      runID,
		Root:       plan.Root,
		OutputRoot: outRoot,
		Modules:    plan.Modules,
	}

	buildDir, err := os.MkdirTemp("", "cystub-build-"+runID[:8]+"-")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create build directory")
	}
	defer func() {
		if opts.KeepBuildDir {
			log.Infow("Keeping build directory", logger.FieldDir, buildDir)
			return
		}
		if err := os.RemoveAll(buildDir); err != nil {
			log.Warnw("Failed to remove build directory", logger.FieldDir, buildDir, logger.FieldError, err)
		}
	}()

	log.Infow("Compiling extensions",
		logger.FieldRoot, plan.Root,
		logger.FieldModules, len(plan.Modules),
	)
	if err := p.compiler.Compile(ctx, buildDir, plan.Modules); err != nil {
		if !errors.Is(err, errors.ErrCompileFailed) {
			err = errors.Mark(err, errors.ErrCompileFailed)
		}
		return nil, err
	}

	failed := make(map[string]error)
	for _, m := range plan.Modules {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "stub generation interrupted")
		}
		start := time.Now()
		if err := p.generator.Generate(ctx, buildDir, outRoot, m.Name); err != nil {
			failed[m.Name] = err
			continue
		}
		log.Debugw("Generated stub",
			logger.FieldModule, m.Name,
			logger.FieldDurationMS, time.Since(start).Milliseconds(),
		)
	}

	for _, m := range plan.Modules {
		stub := m.Stub(outRoot)
		if _, err := os.Stat(stub); err != nil {
			if !os.IsNotExist(err) {
				return nil, errors.Wrapf(err, "failed to stat stub %s", stub)
			}
			result.Skipped = append(result.Skipped, m.Name)
			if genErr, ok := failed[m.Name]; ok {
				log.Warnw("Stub generator failed, module skipped",
					logger.FieldModule, m.Name,
					logger.FieldError, genErr.Error(),
					logger.FieldStderr, errors.FlattenDetails(genErr),
				)
			} else {
				log.Warnw("No stub produced, module skipped",
					logger.FieldModule, m.Name,
					logger.FieldFile, stub,
				)
			}
			continue
		}

		if genErr, ok := failed[m.Name]; ok {
			log.Warnw("Stub generator failed, transforming the stub already present",
				logger.FieldModule, m.Name,
				logger.FieldError, genErr.Error(),
			)
		}

		report, err := pyi.TransformFile(ctx, stub)
		if err != nil {
			return nil, err
		}
		result.Transformed = append(result.Transformed, stub)
		result.Repaired += len(report.Repaired)
	}

	log.Infow("Stub generation finished",
		logger.FieldCount, len(result.Transformed),
		logger.FieldSkipped, len(result.Skipped),
		logger.FieldRepaired, result.Repaired,
	)
	return result, nil
}
