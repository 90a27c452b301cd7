// Package stubgen drives stub generation for Cython extension modules.
//
// A run discovers extension sources under a root, derives dotted module
// names relative to their common root, compiles every module in one batched
// Cython build inside a temporary directory, runs mypy stubgen once per
// module from that directory, and finally cleans each generated stub with
// the pyi package.
//
//	p := stubgen.NewPipeline(stubgen.NewPythonCompiler(tc, nil), stubgen.NewStubgenGenerator(tc, true))
//	res, err := p.Run(ctx, stubgen.Options{Root: "src"})
package stubgen

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/teranos/cystub/errors"
)

// DefaultExtension is the suffix of extension source files.
const DefaultExtension = ".pyx"

// Filter decides whether a discovered source file takes part in a run.
// A nil Filter accepts every file.
type Filter func(path string) bool

// Discover returns the absolute paths of all regular files (or symlinks to
// them) under root ending in one of extensions (DefaultExtension when none
// are given) that pass filter, sorted lexically.
func Discover(root string, filter Filter, extensions ...string) ([]string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve root %s", root)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read root %s", root)
	}
	if !info.IsDir() {
		return nil, errors.Newf("root %s is not a directory", root)
	}

	if len(extensions) == 0 {
		extensions = []string{DefaultExtension}
	}

	seen := make(map[string]bool)
	var files []string
	fsys := os.DirFS(abs)
	for _, ext := range extensions {
		pattern := "**/*" + escapeGlob(ext)
		err := doublestar.GlobWalk(fsys, pattern, func(rel string, d fs.DirEntry) error {
			path := filepath.Join(abs, filepath.FromSlash(rel))
			if !d.Type().IsRegular() {
				// Symlinks count when they resolve to a regular file
				info, err := os.Stat(path)
				if err != nil || !info.Mode().IsRegular() {
					return nil
				}
			}
			if seen[path] {
				return nil
			}
			seen[path] = true
			if filter == nil || filter(path) {
				files = append(files, path)
			}
			return nil
		}, doublestar.WithFilesOnly())
		if err != nil {
			return nil, errors.Wrapf(err, "failed to scan %s for %s files", abs, ext)
		}
	}

	sort.Strings(files)
	return files, nil
}

// GlobFilter matches paths relative to root against doublestar patterns.
// A path passes when it matches any include pattern (or include is empty)
// and no exclude pattern.
func GlobFilter(root string, include, exclude []string) (Filter, error) {
	for _, pattern := range append(append([]string{}, include...), exclude...) {
		if !doublestar.ValidatePattern(pattern) {
			return nil, errors.WithHint(
				errors.Newf("invalid glob pattern %q", pattern),
				"patterns use doublestar syntax, e.g. \"pkg/**/*.pyx\"",
			)
		}
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve root %s", root)
	}

	return func(path string) bool {
		rel, err := filepath.Rel(abs, path)
		if err != nil {
			return false
		}
		rel = filepath.ToSlash(rel)

		if len(include) > 0 && !matchAny(include, rel) {
			return false
		}
		return !matchAny(exclude, rel)
	}, nil
}

func matchAny(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func escapeGlob(s string) string {
	replacer := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`, `{`, `\{`)
	return replacer.Replace(s)
}
