package filecache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNeedsReindexIsTrueForUnknownFile(t *testing.T) {
	cacheDir := t.TempDir()
	repoDir := t.TempDir()
	full := writeFile(t, repoDir, "main.go", "package main\n")

	c, err := Open(cacheDir, repoDir)
	require.NoError(t, err)

	needs, err := c.NeedsReindex("main.go", full)
	require.NoError(t, err)
	assert.True(t, needs)
}

func TestRecordThenNeedsReindexIsFalseUntilContentChanges(t *testing.T) {
	cacheDir := t.TempDir()
	repoDir := t.TempDir()
	full := writeFile(t, repoDir, "main.go", "package main\n")

	c, err := Open(cacheDir, repoDir)
	require.NoError(t, err)
	require.NoError(t, c.Record("main.go", full, 3))

	needs, err := c.NeedsReindex("main.go", full)
	require.NoError(t, err)
	assert.False(t, needs)

	writeFile(t, repoDir, "main.go", "package main\n\nfunc main() {}\n")
	needs, err = c.NeedsReindex("main.go", full)
	require.NoError(t, err)
	assert.True(t, needs)
}

func TestSaveAndReopenPersistsHashes(t *testing.T) {
	cacheDir := t.TempDir()
	repoDir := t.TempDir()
	full := writeFile(t, repoDir, "main.go", "package main\n")

	c, err := Open(cacheDir, repoDir)
	require.NoError(t, err)
	require.NoError(t, c.Record("main.go", full, 1))
	require.NoError(t, c.Save())

	reopened, err := Open(cacheDir, repoDir)
	require.NoError(t, err)
	needs, err := reopened.NeedsReindex("main.go", full)
	require.NoError(t, err)
	assert.False(t, needs)
}

func TestForgetRemovesEntry(t *testing.T) {
	cacheDir := t.TempDir()
	repoDir := t.TempDir()
	full := writeFile(t, repoDir, "main.go", "package main\n")

	c, err := Open(cacheDir, repoDir)
	require.NoError(t, err)
	require.NoError(t, c.Record("main.go", full, 1))

	c.Forget("main.go")
	needs, err := c.NeedsReindex("main.go", full)
	require.NoError(t, err)
	assert.True(t, needs)
}
