package manager

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestManager opens a manager over two fresh temp directories so each
// test gets isolated global/local/committed scopes with no .git present.
func newTestManager(t *testing.T) *MemoryManager {
	t.Helper()
	wd := t.TempDir()
	home := t.TempDir()
	m, err := New(wd, home)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown() })
	return m
}
