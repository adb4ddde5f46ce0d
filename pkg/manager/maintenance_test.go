package manager

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llm-memory/engine/pkg/types"
)

func TestCompactRebuildsIndexFromItems(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Upsert(UpsertInput{Type: types.ItemTypeNote, Scope: types.ScopeLocal, Title: "a", Text: "findable term"})
	require.NoError(t, err)

	require.NoError(t, m.Compact(types.ScopeLocal))

	result, err := m.Query(MemoryQuery{Q: "findable", Scope: types.ListScopeLocal})
	require.NoError(t, err)
	assert.Len(t, result.Items, 1)
}

func TestRebuildAllScopes(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Upsert(UpsertInput{Type: types.ItemTypeNote, Scope: types.ScopeLocal, Title: "a", Text: "x"})
	require.NoError(t, err)

	require.NoError(t, m.Rebuild(types.ListScopeAll))

	items, err := m.List(types.ListScopeAll, 0)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestSnapshotThenVerifyIsHealthy(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Upsert(UpsertInput{Type: types.ItemTypeNote, Scope: types.ScopeLocal, Title: "a", Text: "x"})
	require.NoError(t, err)

	require.NoError(t, m.Snapshot(types.ScopeLocal))

	report, err := m.Verify(types.ScopeLocal)
	require.NoError(t, err)
	assert.True(t, report.Healthy)
	assert.Equal(t, 1, report.ItemCount)
}

func TestVerifyDetectsDriftAfterSnapshotThenMutate(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Upsert(UpsertInput{Type: types.ItemTypeNote, Scope: types.ScopeLocal, Title: "a", Text: "x"})
	require.NoError(t, err)
	require.NoError(t, m.Snapshot(types.ScopeLocal))

	_, err = m.Upsert(UpsertInput{Type: types.ItemTypeNote, Scope: types.ScopeLocal, Title: "b", Text: "y"})
	require.NoError(t, err)

	report, err := m.Verify(types.ScopeLocal)
	require.NoError(t, err)
	assert.False(t, report.Healthy)
}

func TestReplayRebuildsCatalogAndIndex(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Upsert(UpsertInput{Type: types.ItemTypeNote, Scope: types.ScopeLocal, Title: "a", Text: "replayable term"})
	require.NoError(t, err)

	require.NoError(t, m.Replay(types.ScopeLocal, false))

	result, err := m.Query(MemoryQuery{Q: "replayable", Scope: types.ListScopeLocal})
	require.NoError(t, err)
	assert.Len(t, result.Items, 1)
}
