package lock

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llm-memory/engine/pkg/memerr"
)

func TestAcquireReleaseRoundTrip(t *testing.T) {
	dir := t.TempDir()
	h, err := Acquire(dir, "catalog")
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dir, "catalog.lock"))
	require.NoError(t, h.Release())
	assert.NoFileExists(t, filepath.Join(dir, "catalog.lock"))
}

func TestStaleLockIsReclaimed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.lock")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`{"pid":999999,"token":"someone-else","ts":"2000-01-01T00:00:00Z"}`), 0o644))

	h, err := Acquire(dir, "catalog")
	require.NoError(t, err)
	require.NoError(t, h.Release())
}

func TestFreshForeignLockIsLocked(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.lock")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	body := `{"pid":999999,"token":"someone-else","ts":"` + time.Now().UTC().Format(time.RFC3339) + `"}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	_, err := Acquire(dir, "catalog")
	require.Error(t, err)
	assert.True(t, memerr.Is(err, memerr.Locked))
}

func TestWithRunsAndReleases(t *testing.T) {
	dir := t.TempDir()
	ran := false
	err := With(dir, "catalog", func() error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.NoFileExists(t, filepath.Join(dir, "catalog.lock"))
}
