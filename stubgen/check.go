package stubgen

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/teranos/cystub/errors"
	"github.com/teranos/cystub/logger"
)

// CheckResult holds the result of comparing fresh stubs with the ones
// next to the sources.
type CheckResult struct {
	UpToDate bool `json:"up_to_date" yaml:"up_to_date" toml:"up_to_date"`
	// Differences lists committed stubs whose content differs, relative to the root.
	Differences []string `json:"differences,omitempty" yaml:"differences,omitempty" toml:"differences,omitempty"`
	// Missing lists stubs that were generated but are not committed.
	Missing []string `json:"missing,omitempty" yaml:"missing,omitempty" toml:"missing,omitempty"`
	// Unverified lists committed stubs that could not be regenerated.
	Unverified []string `json:"unverified,omitempty" yaml:"unverified,omitempty" toml:"unverified,omitempty"`
	Result  *Result  `json:"result" yaml:"result" toml:"result"`
}

// Check generates stubs into a temporary directory and compares them with
// the stubs stored next to the sources. Nothing in the source tree is written.
func (p *Pipeline) Check(ctx context.Context, opts Options) (*CheckResult, error) {
	tempDir, err := os.MkdirTemp("", "cystub-check-")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create temporary output directory")
	}
	defer os.RemoveAll(tempDir)

	opts.OutputRoot = tempDir
	result, err := p.Run(logger.WithComponent(ctx, "check"), opts)
	if err != nil {
		return nil, err
	}

	check, err := CompareStubs(result.Modules, tempDir, result.Root)
	if err != nil {
		return nil, err
	}
	check.Result = result
	return check, nil
}

// CompareStubs compares every stub generated under generatedRoot with the
// corresponding stub under committedRoot. A committed stub whose module
// produced no generated stub cannot be verified and counts as out of date.
func CompareStubs(modules []Module, generatedRoot, committedRoot string) (*CheckResult, error) {
	check := &CheckResult{}
	for _, m := range modules {
		generated := m.Stub(generatedRoot)
		committed := m.Stub(committedRoot)
		rel := filepath.ToSlash(m.Rel + StubExtension)

		generatedExists := fileExists(generated)
		committedExists := fileExists(committed)
		switch {
		case !generatedExists && committedExists:
			check.Unverified = append(check.Unverified, rel)
			continue
		case !generatedExists:
			continue
		case !committedExists:
			check.Missing = append(check.Missing, rel)
			continue
		}

		different, err := filesAreDifferent(generated, committed)
		if err != nil {
			return nil, err
		}
		if different {
			check.Differences = append(check.Differences, rel)
		}
	}

	check.UpToDate = len(check.Differences) == 0 && len(check.Missing) == 0 && len(check.Unverified) == 0
	return check, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// filesAreDifferent compares two files byte for byte.
func filesAreDifferent(file1, file2 string) (bool, error) {
	content1, err := os.ReadFile(file1)
	if err != nil {
		return false, errors.Wrapf(err, "failed to read %s", file1)
	}

	content2, err := os.ReadFile(file2)
	if err != nil {
		return false, errors.Wrapf(err, "failed to read %s", file2)
	}

	return !bytes.Equal(content1, content2), nil
}
