package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWritesDefaultsWhenAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	s, err := Load(path)
	require.NoError(t, err)

	require.FileExists(t, path)
	assert.Equal(t, Default(), s.Current())
}

func TestLoadParsesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"sharing":{"sensitivity":"public"}}`), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "public", s.Current().Sharing.Sensitivity)
	assert.Equal(t, Default().Ranking.BM25, s.Current().Ranking.BM25)
}

func TestSavePreservesUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"experimentalFlag":true}`), 0o644))

	s, err := Load(path)
	require.NoError(t, err)

	cfg := s.Current()
	cfg.Sharing.Sensitivity = "private"
	require.NoError(t, s.Set(cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "experimentalFlag")
	assert.Contains(t, raw, "sharing")
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	s, err := Load(path)
	require.NoError(t, err)

	changed := make(chan Config, 1)
	require.NoError(t, s.Watch(func(c Config) { changed <- c }))
	defer s.Close()

	cfg := s.Current()
	cfg.Sharing.Sensitivity = "public"
	require.NoError(t, s.Set(cfg))

	select {
	case got := <-changed:
		assert.Equal(t, "public", got.Sharing.Sensitivity)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}

func TestWatchKeepsPreviousConfigOnInvalidReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	s, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, s.Watch(func(Config) {}))
	defer s.Close()

	require.NoError(t, os.WriteFile(path, []byte(`{not valid json`), 0o644))
	time.Sleep(200 * time.Millisecond)

	assert.Equal(t, Default(), s.Current())
}
