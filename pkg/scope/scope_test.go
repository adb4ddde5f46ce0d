package scope

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveWithoutVCS(t *testing.T) {
	wd := t.TempDir()
	home := t.TempDir()

	info, err := Resolve(wd, home)
	require.NoError(t, err)

	assert.Equal(t, wd, info.Root)
	assert.Empty(t, info.Branch)
	assert.Empty(t, info.Remote)
	assert.Equal(t, filepath.Join(home, ".llm-memory", "global"), info.GlobalDir)
	assert.Equal(t, filepath.Join(home, ".llm-memory", "projects", info.RepoID), info.LocalDir)
	assert.Equal(t, filepath.Join(wd, ".llm-memory"), info.CommittedDir)
	assert.False(t, info.HasCommittedMemory)
}

func TestResolveDetectsGitRootAndBranch(t *testing.T) {
	root := t.TempDir()
	gitDir := filepath.Join(root, ".git")
	require.NoError(t, os.MkdirAll(gitDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(gitDir, "HEAD"), []byte("ref: refs/heads/main\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(gitDir, "config"), []byte(
		"[core]\n\trepositoryformatversion = 0\n[remote \"origin\"]\n\turl = git@github.com:acme/widgets.git\n\tfetch = +refs/heads/*:refs/remotes/origin/*\n"),
		0o644))

	sub := filepath.Join(root, "pkg", "sub")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	home := t.TempDir()

	info, err := Resolve(sub, home)
	require.NoError(t, err)

	assert.Equal(t, root, info.Root)
	assert.Equal(t, "main", info.Branch)
	assert.Equal(t, "https://github.com/acme/widgets", info.Remote)
}

func TestRepoIDStableAcrossEquivalentRemotes(t *testing.T) {
	home := t.TempDir()

	mk := func(remote string) string {
		root := t.TempDir()
		gitDir := filepath.Join(root, ".git")
		require.NoError(t, os.MkdirAll(gitDir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(gitDir, "HEAD"), []byte("ref: refs/heads/main\n"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(gitDir, "config"), []byte(
			"[remote \"origin\"]\n\turl = "+remote+"\n"), 0o644))
		return root
	}

	rootSSH := mk("git@github.com:Acme/Widgets.git")
	rootHTTPS := mk("https://github.com/Acme/Widgets")

	infoSSH, err := Resolve(rootSSH, home)
	require.NoError(t, err)
	infoHTTPS, err := Resolve(rootHTTPS, home)
	require.NoError(t, err)

	assert.Equal(t, infoSSH.RepoID, infoHTTPS.RepoID)
}

func TestResolveDetectsExistingCommittedMemory(t *testing.T) {
	root := t.TempDir()
	committed := filepath.Join(root, ".llm-memory")
	require.NoError(t, os.MkdirAll(committed, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(committed, "catalog.json"), []byte(`{}`), 0o644))

	info, err := Resolve(root, t.TempDir())
	require.NoError(t, err)
	assert.True(t, info.HasCommittedMemory)
}

func TestInitCommittedMemoryWritesIgnoreFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, InitCommittedMemory(root))

	ignorePath := filepath.Join(root, ".llm-memory", ".gitignore")
	require.FileExists(t, ignorePath)

	data, err := os.ReadFile(ignorePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "tmp/")
	assert.Contains(t, string(data), "locks/")
}

func TestInitCommittedMemoryIsIdempotent(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, InitCommittedMemory(root))
	ignorePath := filepath.Join(root, ".llm-memory", ".gitignore")
	require.NoError(t, os.WriteFile(ignorePath, []byte("custom\n"), 0o644))

	require.NoError(t, InitCommittedMemory(root))

	data, err := os.ReadFile(ignorePath)
	require.NoError(t, err)
	assert.Equal(t, "custom\n", string(data))
}
