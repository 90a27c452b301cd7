package stubgen

import (
	"context"
	_ "embed"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/cystub/errors"
	"github.com/teranos/cystub/logger"
)

//go:embed scripts/build_ext.py
var buildScript []byte

const (
	buildScriptName = "build_ext.py"
	manifestName    = "manifest.json"
)

// Compiler builds every module into an importable extension inside buildDir.
// The whole batch succeeds or fails together.
type Compiler interface {
	Compile(ctx context.Context, buildDir string, modules []Module) error
}

// Manifest is the build request handed to the driver script.
type Manifest struct {
	BuildDir   string           `json:"build_dir"`
	Directives map[string]any   `json:"directives"`
	Modules    []ManifestModule `json:"modules"`
}

// ManifestModule names one extension and its source.
type ManifestModule struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

// PythonCompiler compiles modules with cythonize and setuptools through an
// embedded driver script, always forcing a rebuild.
type PythonCompiler struct {
	toolchain *Toolchain
	overrides map[string]any
	logger    *zap.SugaredLogger
}

// NewPythonCompiler creates a compiler; overrides are merged over the
// default compiler directives.
func NewPythonCompiler(tc *Toolchain, overrides map[string]any) *PythonCompiler {
	return &PythonCompiler{
		toolchain: tc,
		overrides: overrides,
		logger:    logger.ComponentLogger("stubgen.build"),
	}
}

// Compile writes the manifest and driver script into buildDir and runs the
// driver there.
func (c *PythonCompiler) Compile(ctx context.Context, buildDir string, modules []Module) error {
	log := logger.LoggerFromContext(ctx, c.logger)

	version, err := c.toolchain.CythonVersion(ctx)
	if err != nil {
		if errors.Is(err, errors.ErrToolUnavailable) {
			return errors.Mark(err, errors.ErrCompileFailed)
		}
		log.Warnw("Could not determine Cython version, signatures use the default format",
			logger.FieldError, err)
	}

	directives := Directives(version, c.overrides)
	if _, ok := directives["embedsignature.format"]; !ok && version != nil {
		log.Warnw("Cython predates embedsignature.format, signatures use the legacy format",
			"cython", version.String())
	}

	manifest := Manifest{
		BuildDir:   buildDir,
		Directives: directives,
		Modules:    make([]ManifestModule, 0, len(modules)),
	}
	for _, m := range modules {
		manifest.Modules = append(manifest.Modules, ManifestModule{Name: m.Name, Source: m.Source})
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode build manifest")
	}
	if err := os.WriteFile(filepath.Join(buildDir, manifestName), data, 0644); err != nil {
		return errors.Wrap(err, "failed to write build manifest")
	}
	if err := os.WriteFile(filepath.Join(buildDir, buildScriptName), buildScript, 0644); err != nil {
		return errors.Wrap(err, "failed to write build script")
	}

	start := time.Now()
	if _, err := c.toolchain.Run(ctx, buildDir, buildScriptName, manifestName); err != nil {
		err = errors.Wrapf(err, "failed to compile %d modules", len(modules))
		return errors.WithHint(errors.Mark(err, errors.ErrCompileFailed),
			"run with -vv to see the compiler output")
	}

	log.Infow("Compiled extensions",
		logger.FieldModules, len(modules),
		logger.FieldDir, buildDir,
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
	)
	return nil
}
