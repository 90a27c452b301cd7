package pyi

import (
	"context"
	"os"

	"github.com/teranos/cystub/errors"
	"github.com/teranos/cystub/logger"
)

// Preamble defines PlaceholderName. It is prepended to a stub whenever an
// annotation was repaired.
const Preamble = "import typing\n" +
	PlaceholderName + " = typing.NewType('" + PlaceholderName + "', typing.Any)\n\n"

// TransformSource parses a stub, applies Rewrite and prints the result,
// prefixed with Preamble when a repair fired.
func TransformSource(ctx context.Context, src []byte) ([]byte, Report, error) {
	m, err := Parse(ctx, src)
	if err != nil {
		return nil, Report{}, err
	}

	report := Rewrite(m)
	out := Print(m)
	if report.NeedsPlaceholder() {
		out = Preamble + out
	}
	return []byte(out), report, nil
}

// TransformFile rewrites the stub at path in place, keeping its permissions.
// A missing file yields an error satisfying errors.Is(err, os.ErrNotExist);
// callers that treat absence as normal check for the file first.
func TransformFile(ctx context.Context, path string) (Report, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Report{}, errors.Wrapf(err, "failed to stat stub %s", path)
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return Report{}, errors.Wrapf(err, "failed to read stub %s", path)
	}

	out, report, err := TransformSource(ctx, src)
	if err != nil {
		return Report{}, errors.Wrapf(err, "failed to transform %s", path)
	}

	if err := os.WriteFile(path, out, info.Mode().Perm()); err != nil {
		return Report{}, errors.Wrapf(err, "failed to write stub %s", path)
	}

	logger.ComponentLogger("pyi").Debugw("Transformed stub",
		logger.FieldFile, path,
		logger.FieldRemoved, len(report.RemovedHooks)+len(report.RemovedAttributes),
		logger.FieldRepaired, len(report.Repaired),
	)
	return report, nil
}
