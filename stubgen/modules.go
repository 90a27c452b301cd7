package stubgen

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/teranos/cystub/errors"
)

// StubExtension is the suffix of generated stub files.
const StubExtension = ".pyi"

// Module is one extension source and the dotted name it is compiled under.
type Module struct {
	Name   string `json:"name" yaml:"name" toml:"name"`
	Source string `json:"source" yaml:"source" toml:"source"`
	// Rel is the source path relative to the common root, extension removed.
	Rel string `json:"-" yaml:"-" toml:"-"`
}

// Stub returns where the stub for m lives under outRoot.
func (m Module) Stub(outRoot string) string {
	return filepath.Join(outRoot, m.Rel+StubExtension)
}

// Plan is the set of modules for one run.
type Plan struct {
	Root    string
	Modules []Module
}

// CommonRoot returns the deepest directory containing every file: the
// parent directory for a single file.
func CommonRoot(files []string) (string, error) {
	if len(files) == 0 {
		return "", errors.New("no source files")
	}

	sep := string(filepath.Separator)
	var common []string
	for i, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return "", errors.Wrapf(err, "failed to resolve %s", f)
		}
		parts := strings.Split(filepath.Dir(abs), sep)
		if i == 0 {
			common = parts
			continue
		}
		n := 0
		for n < len(common) && n < len(parts) && common[n] == parts[n] {
			n++
		}
		common = common[:n]
	}

	root := strings.Join(common, sep)
	if root == "" || strings.HasSuffix(root, ":") {
		root += sep
	}
	return root, nil
}

// ModuleName derives the dotted module name of file relative to root:
// the final extension is dropped and path separators become dots.
func ModuleName(root, file string) (string, error) {
	rel, err := relativeModulePath(root, file)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(filepath.ToSlash(rel), "/", "."), nil
}

func relativeModulePath(root, file string) (string, error) {
	rel, err := filepath.Rel(root, file)
	if err != nil {
		return "", errors.Wrapf(err, "%s is not under %s", file, root)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Newf("%s is not under %s", file, root)
	}
	return strings.TrimSuffix(rel, filepath.Ext(rel)), nil
}

// PlanModules resolves files against their common root and names each one.
// Modules are sorted by name; two files mapping to the same name are
// rejected with ErrDuplicateModule.
func PlanModules(files []string) (*Plan, error) {
	seen := make(map[string]bool)
	var unique []string
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to resolve %s", f)
		}
		if !seen[abs] {
			seen[abs] = true
			unique = append(unique, abs)
		}
	}

	root, err := CommonRoot(unique)
	if err != nil {
		return nil, err
	}

	owners := make(map[string]string, len(unique))
	modules := make([]Module, 0, len(unique))
	for _, f := range unique {
		rel, err := relativeModulePath(root, f)
		if err != nil {
			return nil, err
		}
		name := strings.ReplaceAll(filepath.ToSlash(rel), "/", ".")

		if other, ok := owners[name]; ok {
			err := errors.Newf("module %s is provided by both %s and %s", name, other, f)
			return nil, errors.WithHint(errors.Mark(err, errors.ErrDuplicateModule),
				"exclude one of the files with --exclude")
		}
		owners[name] = f
		modules = append(modules, Module{Name: name, Source: f, Rel: rel})
	}

	sort.Slice(modules, func(i, j int) bool { return modules[i].Name < modules[j].Name })
	return &Plan{Root: root, Modules: modules}, nil
}
