package pyi

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/cystub/errors"
)

func transform(t *testing.T, src string) (string, Report) {
	t.Helper()
	out, report, err := TransformSource(context.Background(), []byte(src))
	require.NoError(t, err)
	return string(out), report
}

func TestTransformSource(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "reduce hook removed and class self-reference repaired",
			input:    "class Foo:\n    bar: Foo\n    def __reduce_cython__(self): ...\n",
			expected: Preamble + "class Foo:\n    bar: Incomplete_\n",
		},
		{
			name:     "attribute annotated with its own name",
			input:    "class A:\n    value: value\n    other: int\n",
			expected: Preamble + "class A:\n    value: Incomplete_\n    other: int\n",
		},
		{
			name:     "nothing to repair leaves no preamble",
			input:    "class A:\n    x: int\n    def f(self) -> int: ...\n",
			expected: "class A:\n    x: int\n    def f(self) -> int: ...\n",
		},
		{
			name:     "dunder attributes removed",
			input:    "class A:\n    __pyx_vtable__: ClassVar[PyCapsule]\n    __slots__: tuple\n    x: int\n",
			expected: "class A:\n    x: int\n",
		},
		{
			name:     "body emptied by elision prints ellipsis",
			input:    "class A:\n    def __reduce__(self): ...\n    def __setstate_cython__(self, state): ...\n",
			expected: "class A: ...\n",
		},
		{
			name:     "decorated hook removed with its decorator",
			input:    "class A:\n    @staticmethod\n    def __reduce__(): ...\n    @property\n    def size(self) -> int: ...\n",
			expected: "class A:\n    @property\n    def size(self) -> int: ...\n",
		},
		{
			name:     "async hook removed",
			input:    "class A:\n    async def __reduce__(self): ...\n    async def fetch(self) -> bytes: ...\n",
			expected: "class A:\n    async def fetch(self) -> bytes: ...\n",
		},
		{
			name:     "rules apply inside conditional blocks",
			input:    "import sys\nif sys.version_info >= (3, 8):\n    x: x\nelse:\n    y: int\n",
			expected: Preamble + "import sys\nif sys.version_info >= (3, 8):\n    x: Incomplete_\nelse:\n    y: int\n",
		},
		{
			name:     "whitespace around the annotation does not matter",
			input:    "class Foo:\n    bar   :   Foo\n",
			expected: Preamble + "class Foo:\n    bar: Incomplete_\n",
		},
		{
			name:     "dotted annotation is not a bare name",
			input:    "class Foo:\n    bar: mod.Foo\n",
			expected: "class Foo:\n    bar: mod.Foo\n",
		},
		{
			name:     "string annotation is not a bare name",
			input:    "class Foo:\n    bar: 'Foo'\n",
			expected: "class Foo:\n    bar: 'Foo'\n",
		},
		{
			name:     "dunder test uses the attribute name not the annotation",
			input:    "x: __Weird__\n",
			expected: "x: __Weird__\n",
		},
		{
			name:     "hook names are only removed from functions",
			input:    "class A:\n    __reduce__: int\n    __reduce_cython__x: int\n",
			expected: "class A:\n    __reduce_cython__x: int\n",
		},
		{
			name:     "assignment value is kept",
			input:    "x: x = 3\n",
			expected: Preamble + "x: Incomplete_ = 3\n",
		},
		{
			name:     "top-level definitions separated by blank lines",
			input:    "import typing\nx: int\ndef f() -> None: ...\nclass C: ...\n",
			expected: "import typing\nx: int\n\ndef f() -> None: ...\n\nclass C: ...\n",
		},
		{
			name:     "comments dropped",
			input:    "# generated\nx: int\n",
			expected: "x: int\n",
		},
		{
			name:     "empty stub",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _ := transform(t, tt.input)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestTransformSourceKeepsDocstrings(t *testing.T) {
	input := `class Foo:
    """Doc line.

    More.
    """
    def f(self) -> None:
        """Sig."""
`
	out, report := transform(t, input)
	assert.Equal(t, input, out)
	assert.False(t, report.Changed())
}

func TestTransformSourceReport(t *testing.T) {
	input := `class Outer:
    __dict__: dict
    def __reduce_cython__(self): ...
    class Inner:
        Inner: Inner
        def __setstate_cython__(self, state): ...
def __reduce__(): ...
`
	_, report := transform(t, input)

	assert.Equal(t, []string{"Outer.__reduce_cython__", "Outer.Inner.__setstate_cython__", "__reduce__"}, report.RemovedHooks)
	assert.Equal(t, []string{"Outer.__dict__"}, report.RemovedAttributes)
	assert.Equal(t, []string{"Outer.Inner.Inner"}, report.Repaired)
	assert.True(t, report.NeedsPlaceholder())
}

func TestRewriteIsIdempotent(t *testing.T) {
	input := "class Foo:\n    bar: Foo\n    baz: baz\n    __x__: int\n    def __reduce__(self): ...\n"
	first, _ := transform(t, input)

	m, err := Parse(context.Background(), []byte(first))
	require.NoError(t, err)

	report := Rewrite(m)
	assert.False(t, report.Changed())
	assert.Equal(t, first, Print(m))
}

func TestTransformSourceIsStableOnItsOwnOutput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "imports after the preamble",
			input: "from typing import Any\nimport sys\nclass Foo:\n    bar: Foo\n    extra: Any\n",
		},
		{
			name:  "class named after the placeholder",
			input: "class Incomplete_:\n    x: Incomplete_\n    y: y\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, report := transform(t, tt.input)
			require.True(t, report.NeedsPlaceholder())
			assert.Contains(t, first, PlaceholderName+" = typing.NewType('"+PlaceholderName+"', typing.Any)\n\n")

			second, report := transform(t, first)
			assert.False(t, report.Changed())
			assert.Equal(t, first, second)
			assert.Equal(t, 1, strings.Count(second, "import typing"))
		})
	}
}

func TestPlaceholderAnnotationIsNotRepaired(t *testing.T) {
	out, report := transform(t, "class Incomplete_:\n    x: Incomplete_\n")
	assert.Empty(t, report.Repaired)
	assert.Equal(t, "class Incomplete_:\n    x: Incomplete_\n", out)
}

func TestRewriteLeavesEllipsisInEmptiedBodies(t *testing.T) {
	m, err := Parse(context.Background(), []byte("class Foo:\n    __slots__: tuple\n    def __reduce__(self): ...\n"))
	require.NoError(t, err)

	Rewrite(m)
	require.Len(t, m.Body, 1)
	class, ok := m.Body[0].(*ClassDef)
	require.True(t, ok)
	assert.Equal(t, []Stmt{Ellipsis()}, class.Body)
	assert.Equal(t, "class Foo: ...\n", Print(m))
}

func TestPreambleWhenRepaired(t *testing.T) {
	out, _ := transform(t, "class Foo:\n    bar: Foo\n")
	assert.True(t, strings.HasPrefix(out, "import typing\nIncomplete_ = typing.NewType('Incomplete_', typing.Any)\n\n"))
	assert.Equal(t, 1, strings.Count(out, "import typing"))
}

func TestParseError(t *testing.T) {
	_, _, err := TransformSource(context.Background(), []byte("class Foo(\n    x: int\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrParseStub))
	assert.Contains(t, err.Error(), "line ")
}

func TestPredicates(t *testing.T) {
	for _, name := range []string{"__reduce__", "__reduce_cython__", "__setstate_cython__"} {
		assert.True(t, IsSupportHook(name), name)
	}
	for _, name := range []string{"__reduce_ex__", "__setstate__", "reduce", "__init__"} {
		assert.False(t, IsSupportHook(name), name)
	}

	assert.True(t, IsDunder("__slots__"))
	assert.True(t, IsDunder("__pyx_vtable__"))
	assert.False(t, IsDunder("_private"))
	assert.False(t, IsDunder("__mangled"))
	assert.False(t, IsDunder("trailing__"))
}

func TestTransformFile(t *testing.T) {
	t.Run("rewrites in place keeping permissions", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "fast.pyi")
		require.NoError(t, os.WriteFile(path, []byte("class Foo:\n    bar: Foo\n    def __reduce_cython__(self): ...\n"), 0640))

		report, err := TransformFile(context.Background(), path)
		require.NoError(t, err)
		assert.Len(t, report.RemovedHooks, 1)

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, Preamble+"class Foo:\n    bar: Incomplete_\n", string(content))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0640), info.Mode().Perm())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := TransformFile(context.Background(), filepath.Join(t.TempDir(), "absent.pyi"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("parse failure leaves file untouched", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.pyi")
		broken := "def f(:\n"
		require.NoError(t, os.WriteFile(path, []byte(broken), 0644))

		_, err := TransformFile(context.Background(), path)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrParseStub))
		assert.Contains(t, err.Error(), path)

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, broken, string(content))
	})
}
