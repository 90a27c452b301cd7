package stubgen

import (
	"bytes"
	"context"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/kballard/go-shellquote"
	"go.uber.org/zap"

	"github.com/teranos/cystub/errors"
	"github.com/teranos/cystub/logger"
)

// Toolchain runs the Python interpreter that has Cython, setuptools and
// mypy installed.
type Toolchain struct {
	// Python is the interpreter command, e.g. ["uv", "run", "python"].
	Python []string
	// Timeout bounds each tool invocation; zero means no limit.
	Timeout time.Duration
	// EchoOutput logs every stderr line as it arrives.
	EchoOutput bool

	logger *zap.SugaredLogger
}

// NewToolchain splits the configured interpreter command with shell quoting
// rules.
func NewToolchain(python string, timeout time.Duration) (*Toolchain, error) {
	args, err := shellquote.Split(python)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid python command %q", python)
	}
	if len(args) == 0 {
		return nil, errors.WithHint(errors.New("python command is empty"),
			"set tools.python in cystub.toml or CYSTUB_TOOLS_PYTHON")
	}
	return &Toolchain{
		Python:  args,
		Timeout: timeout,
		logger:  logger.ComponentLogger("stubgen.tool"),
	}, nil
}

// Run executes the interpreter with args in dir and returns its stdout.
// With EchoOutput set, stderr lines are logged at debug level; on failure
// the tail of stderr is attached to the error as a detail.
func (t *Toolchain) Run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	argv := append(append([]string{}, t.Python[1:]...), args...)
	cmd := exec.CommandContext(ctx, t.Python[0], argv...)
	cmd.Dir = dir

	log := logger.LoggerFromContext(ctx, t.logger)
	var stdout bytes.Buffer
	stderr := &toolOutput{logger: log, command: t.Python[0], echo: t.EchoOutput}
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	command := shellquote.Join(append([]string{t.Python[0]}, argv...)...)
	log.Debugw("Running tool", logger.FieldCommand, command, logger.FieldDir, dir)

	start := time.Now()
	err := cmd.Run()
	log.Debugw("Tool finished",
		logger.FieldCommand, command,
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
	)
	if err == nil {
		return stdout.Bytes(), nil
	}

	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return nil, errors.WithHint(
			errors.Mark(errors.Wrapf(err, "failed to start %s", t.Python[0]), errors.ErrToolUnavailable),
			"set tools.python to an interpreter with Cython and mypy installed",
		)
	}
	if ctx.Err() != nil {
		return nil, errors.Wrapf(ctx.Err(), "%s interrupted", command)
	}
	return nil, errors.WithToolOutput(errors.Wrapf(err, "%s failed", command), stderr.all.Bytes())
}

// CythonVersion asks the interpreter for the installed Cython version.
func (t *Toolchain) CythonVersion(ctx context.Context) (*semver.Version, error) {
	out, err := t.Run(ctx, "", "-c", "import Cython; print(Cython.__version__)")
	if err != nil {
		return nil, errors.Wrap(err, "failed to query Cython version")
	}
	return ParseCythonVersion(string(out))
}

// ParseCythonVersion parses a Python package version such as "3.0.11" or
// "3.1.0a1" as semver.
func ParseCythonVersion(raw string) (*semver.Version, error) {
	raw = strings.TrimSpace(raw)
	v, err := semver.NewVersion(pep440Prerelease.ReplaceAllString(raw, "$1-$2"))
	if err != nil {
		return nil, errors.Wrapf(err, "unrecognized Cython version %q", raw)
	}
	return v, nil
}

// pep440Prerelease matches Python release tags such as "3.1.0a1" or
// "3.1.0.dev0" so they can be rewritten as semver prereleases.
var pep440Prerelease = regexp.MustCompile(`^(\d+(?:\.\d+){0,2})\.?((?:a|b|rc|dev)\d*)$`)

// signatureFormatConstraint selects Cython releases that understand the
// embedsignature.format directive.
const signatureFormatConstraint = ">= 3.0.0-0"

// Directives returns the compiler directives for a Cython version, with
// overrides applied on top. A nil version yields the directives every
// release accepts.
func Directives(v *semver.Version, overrides map[string]any) map[string]any {
	directives := map[string]any{
		"embedsignature": true,
		"language_level": "3",
	}
	if v != nil {
		constraint, err := semver.NewConstraint(signatureFormatConstraint)
		if err == nil && constraint.Check(v) {
			directives["embedsignature.format"] = "python"
		}
	}
	for k, val := range overrides {
		directives[k] = val
	}
	return directives
}

// toolOutput keeps everything a tool writes and, with echo set, logs it
// line by line.
type toolOutput struct {
	logger  *zap.SugaredLogger
	command string
	echo    bool
	all     bytes.Buffer
	partial strings.Builder
}

func (o *toolOutput) Write(p []byte) (int, error) {
	o.all.Write(p)
	if !o.echo {
		return len(p), nil
	}
	o.partial.Write(p)
	for {
		line, rest, found := strings.Cut(o.partial.String(), "\n")
		if !found {
			break
		}
		o.partial.Reset()
		o.partial.WriteString(rest)

		if line = strings.TrimSpace(line); line != "" {
			o.logger.Debugw("Tool output", logger.FieldCommand, o.command, "message", line)
		}
	}
	return len(p), nil
}
