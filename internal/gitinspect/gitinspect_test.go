package gitinspect

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initRepo creates a throwaway Git repository under t.TempDir and returns
// its path. Uses the git binary directly since go-git has no convenient
// "commit with a message and an identity" porcelain of its own.
func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=Test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=Test", "GIT_COMMITTER_EMAIL=test@example.com",
		)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}
	run("init", "-q")
	run("config", "user.name", "Test")
	run("config", "user.email", "test@example.com")
	return dir
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func commit(t *testing.T, dir, message string) {
	t.Helper()
	for _, args := range [][]string{{"add", "-A"}, {"commit", "-q", "-m", message}} {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=Test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=Test", "GIT_COMMITTER_EMAIL=test@example.com",
		)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}
}

func TestValidateRepositoryRejectsNonRepo(t *testing.T) {
	assert.False(t, ValidateRepository(t.TempDir()))
}

func TestValidateRepositoryAcceptsInitializedRepo(t *testing.T) {
	dir := initRepo(t)
	writeFile(t, dir, "a.txt", "hello\n")
	commit(t, dir, "initial")
	assert.True(t, ValidateRepository(dir))
}

func TestListFilesReturnsSortedPaths(t *testing.T) {
	dir := initRepo(t)
	writeFile(t, dir, "b.txt", "b\n")
	writeFile(t, dir, "a.txt", "a\n")
	commit(t, dir, "initial")

	inspector, err := Open(dir)
	require.NoError(t, err)

	files, err := inspector.ListFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, files)
}

func TestCommitHistoryInitialCommitYieldsAddAgainstEmptyContent(t *testing.T) {
	dir := initRepo(t)
	writeFile(t, dir, "a.txt", "line one\nline two\n")
	commit(t, dir, "initial")

	inspector, err := Open(dir)
	require.NoError(t, err)

	history, err := inspector.CommitHistory(HistoryOptions{}, 3)
	require.NoError(t, err)
	require.Len(t, history, 1)

	require.Len(t, history[0].ChangedFiles, 1)
	cf := history[0].ChangedFiles[0]
	assert.Equal(t, ChangeAdd, cf.ChangeType)
	assert.Equal(t, "a.txt", cf.Path)
	assert.Empty(t, cf.OldOID)
	assert.NotEmpty(t, cf.NewOID)
	assert.Contains(t, cf.Diff, "+line one")
}

func TestCommitHistoryModifyProducesDiff(t *testing.T) {
	dir := initRepo(t)
	writeFile(t, dir, "a.txt", "line one\nline two\n")
	commit(t, dir, "initial")
	writeFile(t, dir, "a.txt", "line one\nline two changed\n")
	commit(t, dir, "modify a")

	inspector, err := Open(dir)
	require.NoError(t, err)

	history, err := inspector.CommitHistory(HistoryOptions{}, 3)
	require.NoError(t, err)
	require.Len(t, history, 2)

	latest := history[0]
	require.Len(t, latest.ChangedFiles, 1)
	cf := latest.ChangedFiles[0]
	assert.Equal(t, ChangeModify, cf.ChangeType)
	assert.Contains(t, cf.Diff, "-line two")
	assert.Contains(t, cf.Diff, "+line two changed")
}

func TestCommitHistoryRespectsCount(t *testing.T) {
	dir := initRepo(t)
	writeFile(t, dir, "a.txt", "v1\n")
	commit(t, dir, "c1")
	writeFile(t, dir, "a.txt", "v2\n")
	commit(t, dir, "c2")
	writeFile(t, dir, "a.txt", "v3\n")
	commit(t, dir, "c3")

	inspector, err := Open(dir)
	require.NoError(t, err)

	history, err := inspector.CommitHistory(HistoryOptions{Count: 2}, 3)
	require.NoError(t, err)
	assert.Len(t, history, 2)
	assert.Equal(t, "c3", history[0].Message)
	assert.Equal(t, "c2", history[1].Message)
}

func TestRepositoryDiffNoRepository(t *testing.T) {
	assert.Equal(t, "No Git repository found", RepositoryDiff(t.TempDir(), 0))
}

func TestRepositoryDiffSingleCommit(t *testing.T) {
	dir := initRepo(t)
	writeFile(t, dir, "a.txt", "hello\n")
	commit(t, dir, "initial")
	assert.Equal(t, "No previous commits to compare", RepositoryDiff(dir, 0))
}

func TestRepositoryDiffProducesTruncatedText(t *testing.T) {
	dir := initRepo(t)
	writeFile(t, dir, "a.txt", "line one\n")
	commit(t, dir, "initial")
	writeFile(t, dir, "a.txt", "line one changed\n")
	commit(t, dir, "modify")

	diff := RepositoryDiff(dir, 0)
	assert.Contains(t, diff, "+line one changed")

	truncated := RepositoryDiff(dir, 5)
	assert.Contains(t, truncated, "(truncated)")
	assert.True(t, len(truncated) < len(diff)+20)
}
