package preprocess

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestIncludeExpandedExactlyOnce: a file that #includes the same shared
// header twice must not duplicate its declarations in the assembled
// source.
func TestIncludeExpandedExactlyOnce(t *testing.T) {
	dir := t.TempDir()
	common := filepath.Join(dir, "common.rtmc")
	require.NoError(t, os.WriteFile(common, []byte("int shared_counter;\n"), 0o644))

	a := filepath.Join(dir, "a.rtmc")
	require.NoError(t, os.WriteFile(a, []byte(`#include "common.rtmc"
#include "common.rtmc"
void main() {}
`), 0o644))

	out, err := Run(a)
	require.NoError(t, err)
	require.Equal(t, 1, countOccurrences(out, "shared_counter"))
}

func TestIncludeResolvesRelativeToIncludingFile(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "util.rtmc"), []byte("int helper;\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.rtmc"), []byte(`#include "sub/util.rtmc"
void main() {}
`), 0o644))

	out, err := Run(filepath.Join(dir, "main.rtmc"))
	require.NoError(t, err)
	require.Contains(t, out, "int helper;")
}

func TestIncludeMissingFileIsFatalError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.rtmc"), []byte(`#include "missing.rtmc"
`), 0o644))

	_, err := Run(filepath.Join(dir, "main.rtmc"))
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)
}

func TestDefineExpandsWholeWordOnly(t *testing.T) {
	src := `#define MAX 100
int cap = MAX;
int maximum = MAX;
`
	out, err := RunSource(src, ".")
	require.NoError(t, err)
	require.Contains(t, out, "int cap = 100;")
	require.Contains(t, out, "int maximum = 100;")
	require.NotContains(t, out, "#define")
}

func TestDefineLongestNameWinsFirst(t *testing.T) {
	src := `#define FOO 1
#define FOO_BAR 2
int a = FOO;
int b = FOO_BAR;
`
	out, err := RunSource(src, ".")
	require.NoError(t, err)
	require.Contains(t, out, "int a = 1;")
	require.Contains(t, out, "int b = 2;")
}

func countOccurrences(s, substr string) int {
	count := 0
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			count++
			i += len(substr) - 1
		}
	}
	return count
}
