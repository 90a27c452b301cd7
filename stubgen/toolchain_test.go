package stubgen

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/teranos/cystub/errors"
)

// fakePython writes a shell script standing in for the interpreter and
// returns a toolchain that runs it.
func fakePython(t *testing.T, script string) *Toolchain {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake interpreter requires sh")
	}
	path := filepath.Join(t.TempDir(), "python.sh")
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))

	tc, err := NewToolchain("sh "+path, 0)
	require.NoError(t, err)
	return tc
}

func TestNewToolchain(t *testing.T) {
	tc, err := NewToolchain(`uv run --python "3.12" python`, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"uv", "run", "--python", "3.12", "python"}, tc.Python)

	_, err = NewToolchain("   ", 0)
	assert.Error(t, err)

	_, err = NewToolchain(`python "unterminated`, 0)
	assert.Error(t, err)
}

func TestToolchainRun(t *testing.T) {
	t.Run("returns stdout", func(t *testing.T) {
		tc := fakePython(t, "echo \"args: $*\"\n")
		out, err := tc.Run(context.Background(), "", "-c", "pass")
		require.NoError(t, err)
		assert.Equal(t, "args: -c pass\n", string(out))
	})

	t.Run("runs in the given directory", func(t *testing.T) {
		dir := t.TempDir()
		tc := fakePython(t, "pwd > cwd.txt\n")
		_, err := tc.Run(context.Background(), dir)
		require.NoError(t, err)
		assert.FileExists(t, filepath.Join(dir, "cwd.txt"))
	})

	t.Run("failure carries stderr", func(t *testing.T) {
		tc := fakePython(t, "echo 'ModuleNotFoundError: No module named Cython' >&2\nexit 3\n")
		_, err := tc.Run(context.Background(), "")
		require.Error(t, err)
		assert.Contains(t, strings.Join(errors.GetAllDetails(err), "\n"), "No module named Cython")
	})

	t.Run("missing interpreter", func(t *testing.T) {
		tc, err := NewToolchain("cystub-test-no-such-python", 0)
		require.NoError(t, err)
		_, err = tc.Run(context.Background(), "")
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrToolUnavailable))
	})
}

func TestToolOutput(t *testing.T) {
	t.Run("echo logs complete lines", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		out := &toolOutput{logger: zap.New(core).Sugar(), command: "python", echo: true}

		_, err := out.Write([]byte("warning: one\nwarn"))
		require.NoError(t, err)
		_, err = out.Write([]byte("ing: two\n\n"))
		require.NoError(t, err)

		entries := logs.FilterMessage("Tool output").All()
		require.Len(t, entries, 2)
		assert.Equal(t, "warning: one", entries[0].ContextMap()["message"])
		assert.Equal(t, "warning: two", entries[1].ContextMap()["message"])
		assert.Equal(t, "warning: one\nwarning: two\n\n", out.all.String())
	})

	t.Run("quiet output is still kept", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		out := &toolOutput{logger: zap.New(core).Sugar(), command: "python"}

		_, err := out.Write([]byte("warning: one\n"))
		require.NoError(t, err)
		assert.Zero(t, logs.Len())
		assert.Equal(t, "warning: one\n", out.all.String())
	})
}

func TestParseCythonVersion(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"3.0.11\n", "3.0.11"},
		{"0.29.37", "0.29.37"},
		{"3.1.0a1", "3.1.0-a1"},
		{"3.1.0rc2", "3.1.0-rc2"},
		{"3.2.0.dev0", "3.2.0-dev0"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			v, err := ParseCythonVersion(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v.String())
		})
	}

	_, err := ParseCythonVersion("not a version")
	assert.Error(t, err)
}

func TestDirectives(t *testing.T) {
	modern, err := ParseCythonVersion("3.0.11")
	require.NoError(t, err)
	prerelease, err := ParseCythonVersion("3.0.0b2")
	require.NoError(t, err)
	legacy, err := ParseCythonVersion("0.29.37")
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"embedsignature":        true,
		"embedsignature.format": "python",
		"language_level":        "3",
	}, Directives(modern, nil))

	assert.Equal(t, "python", Directives(prerelease, nil)["embedsignature.format"])
	assert.NotContains(t, Directives(legacy, nil), "embedsignature.format")
	assert.NotContains(t, Directives(nil, nil), "embedsignature.format")

	overridden := Directives(modern, map[string]any{"binding": true, "language_level": "3str"})
	assert.Equal(t, true, overridden["binding"])
	assert.Equal(t, "3str", overridden["language_level"])
	assert.Equal(t, true, overridden["embedsignature"])
}

const fakeCythonScript = `if [ "$1" = "-c" ]; then
  echo "3.0.11"
  exit 0
fi
test -f "$1" && test -f "$2"
`

func TestPythonCompiler(t *testing.T) {
	modules := []Module{
		{Name: "a.fast", Source: "/src/a/fast.pyx", Rel: "a/fast"},
		{Name: "b.slow", Source: "/src/b/slow.pyx", Rel: "b/slow"},
	}

	t.Run("writes manifest and driver into the build directory", func(t *testing.T) {
		buildDir := t.TempDir()
		compiler := NewPythonCompiler(fakePython(t, fakeCythonScript), map[string]any{"binding": true})

		require.NoError(t, compiler.Compile(context.Background(), buildDir, modules))

		assert.FileExists(t, filepath.Join(buildDir, buildScriptName))
		data, err := os.ReadFile(filepath.Join(buildDir, manifestName))
		require.NoError(t, err)

		var manifest Manifest
		require.NoError(t, json.Unmarshal(data, &manifest))
		assert.Equal(t, buildDir, manifest.BuildDir)
		assert.Equal(t, []ManifestModule{
			{Name: "a.fast", Source: "/src/a/fast.pyx"},
			{Name: "b.slow", Source: "/src/b/slow.pyx"},
		}, manifest.Modules)
		assert.Equal(t, true, manifest.Directives["embedsignature"])
		assert.Equal(t, "python", manifest.Directives["embedsignature.format"])
		assert.Equal(t, true, manifest.Directives["binding"])
	})

	t.Run("compiler failure is fatal and keeps stderr", func(t *testing.T) {
		script := `if [ "$1" = "-c" ]; then echo "3.0.11"; exit 0; fi
echo "fast.pyx:3:4: undeclared name not builtin: foo" >&2
exit 1
`
		compiler := NewPythonCompiler(fakePython(t, script), nil)
		err := compiler.Compile(context.Background(), t.TempDir(), modules)
		require.Error(t, err)
		assert.True(t, errors.IsCompileError(err))
		assert.Contains(t, strings.Join(errors.GetAllDetails(err), "\n"), "undeclared name")
	})

	t.Run("unknown version still compiles", func(t *testing.T) {
		script := `if [ "$1" = "-c" ]; then echo "garbage"; exit 0; fi
exit 0
`
		buildDir := t.TempDir()
		compiler := NewPythonCompiler(fakePython(t, script), nil)
		require.NoError(t, compiler.Compile(context.Background(), buildDir, modules))

		data, err := os.ReadFile(filepath.Join(buildDir, manifestName))
		require.NoError(t, err)
		assert.NotContains(t, string(data), "embedsignature.format")
	})
}

func TestStubgenGenerator(t *testing.T) {
	tc := fakePython(t, "echo \"$*\" > args.txt\n")

	t.Run("arguments", func(t *testing.T) {
		g := NewStubgenGenerator(tc, true)
		assert.Equal(t,
			[]string{"-m", "mypy.stubgen", "-m", "pkg.fast", "--include-docstrings", "-o", "/out"},
			g.Args("/out", "pkg.fast"))

		g = NewStubgenGenerator(tc, false)
		assert.NotContains(t, g.Args("/out", "pkg.fast"), "--include-docstrings")
	})

	t.Run("runs from the work directory", func(t *testing.T) {
		workDir := t.TempDir()
		g := NewStubgenGenerator(tc, true)
		require.NoError(t, g.Generate(context.Background(), workDir, "/out", "pkg.fast"))

		args, err := os.ReadFile(filepath.Join(workDir, "args.txt"))
		require.NoError(t, err)
		assert.Equal(t, "-m mypy.stubgen -m pkg.fast --include-docstrings -o /out\n", string(args))
	})
}
