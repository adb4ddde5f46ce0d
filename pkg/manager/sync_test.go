package manager

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llm-memory/engine/pkg/types"
)

func TestInfoReportsResolvedRoot(t *testing.T) {
	m := newTestManager(t)
	info := m.Info()
	assert.NotEmpty(t, info.Root)
}

func TestSyncStatusBucketsByPresenceAndRecency(t *testing.T) {
	m := newTestManager(t)
	onlyLocal, err := m.Upsert(UpsertInput{Type: types.ItemTypeNote, Scope: types.ScopeLocal, Title: "only-local", Text: "x"})
	require.NoError(t, err)

	shared, err := m.Upsert(UpsertInput{Type: types.ItemTypeNote, Scope: types.ScopeLocal, Title: "shared", Text: "x"})
	require.NoError(t, err)
	_, err = m.Upsert(UpsertInput{ID: shared.ID, Type: types.ItemTypeNote, Scope: types.ScopeCommitted, Title: "shared", Text: "x"})
	require.NoError(t, err)

	// Bump the local copy so it is newer than committed.
	_, err = m.Upsert(UpsertInput{ID: shared.ID, Type: types.ItemTypeNote, Scope: types.ScopeLocal, Title: "shared v2", Text: "x"})
	require.NoError(t, err)

	status, err := m.SyncStatus()
	require.NoError(t, err)
	assert.Contains(t, status.OnlyLocal, onlyLocal.ID)
	assert.Contains(t, status.LocalNewer, shared.ID)
}

func TestSyncMergeCopiesLocalItemsIntoCommitted(t *testing.T) {
	m := newTestManager(t)
	item, err := m.Upsert(UpsertInput{Type: types.ItemTypeNote, Scope: types.ScopeLocal, Title: "a", Text: "x", Facets: types.Facets{Tags: []string{"go"}}})
	require.NoError(t, err)

	merged, skipped, err := m.SyncMerge([]string{item.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{item.ID}, merged)
	assert.Empty(t, skipped)

	committed, err := m.Get(item.ID, types.ScopeCommitted)
	require.NoError(t, err)
	require.NotNil(t, committed)
	assert.Equal(t, types.ScopeCommitted, committed.Scope)
	assert.Equal(t, []string{"go"}, committed.Facets.Tags)

	local, err := m.Get(item.ID, types.ScopeLocal)
	require.NoError(t, err)
	require.NotNil(t, local)
	assert.Equal(t, types.ScopeLocal, local.Scope)
}

func TestSyncMergeSkipsExcessiveSensitivityWithoutAbortingBatch(t *testing.T) {
	m := newTestManager(t)
	secret, err := m.Upsert(UpsertInput{
		Type: types.ItemTypeNote, Scope: types.ScopeLocal, Title: "secret", Text: "x",
		Sensitivity: types.SensitivityPrivate,
	})
	require.NoError(t, err)
	fine, err := m.Upsert(UpsertInput{Type: types.ItemTypeNote, Scope: types.ScopeLocal, Title: "fine", Text: "x"})
	require.NoError(t, err)

	merged, skipped, err := m.SyncMerge([]string{secret.ID, fine.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{fine.ID}, merged)
	require.Len(t, skipped, 1)
	assert.Equal(t, secret.ID, skipped[0].ID)
	assert.NotEmpty(t, skipped[0].Reason)

	committedFine, err := m.Get(fine.ID, types.ScopeCommitted)
	require.NoError(t, err)
	assert.NotNil(t, committedFine)

	committedSecret, err := m.Get(secret.ID, types.ScopeCommitted)
	require.NoError(t, err)
	assert.Nil(t, committedSecret)
}

func TestSyncMergeWithNoIDsUsesSyncStatus(t *testing.T) {
	m := newTestManager(t)
	item, err := m.Upsert(UpsertInput{Type: types.ItemTypeNote, Scope: types.ScopeLocal, Title: "a", Text: "x"})
	require.NoError(t, err)

	merged, skipped, err := m.SyncMerge(nil)
	require.NoError(t, err)
	assert.Contains(t, merged, item.ID)
	assert.Empty(t, skipped)
}

func TestConfigGetSetRoundTrips(t *testing.T) {
	m := newTestManager(t)
	cfg, err := m.ConfigGet(types.ScopeLocal)
	require.NoError(t, err)

	cfg.Sharing.Sensitivity = "private"
	require.NoError(t, m.ConfigSet(types.ScopeLocal, cfg))

	got, err := m.ConfigGet(types.ScopeLocal)
	require.NoError(t, err)
	assert.Equal(t, "private", got.Sharing.Sensitivity)
}
