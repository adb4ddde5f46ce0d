package manager

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llm-memory/engine/pkg/types"
)

// flushIndexes forces every scope's pending BM25 upserts to persist, since
// Query reads through the same in-memory index Flush writes to.
func flushIndexes(t *testing.T, m *MemoryManager) {
	t.Helper()
	for _, st := range m.scopes {
		require.NoError(t, st.index.Flush())
	}
}

func TestQueryFindsByBM25Term(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Upsert(UpsertInput{Type: types.ItemTypeSnippet, Scope: types.ScopeLocal, Title: "retry helper", Text: "implements exponential backoff for http retries"})
	require.NoError(t, err)
	_, err = m.Upsert(UpsertInput{Type: types.ItemTypeSnippet, Scope: types.ScopeLocal, Title: "logging setup", Text: "configures zerolog at startup"})
	require.NoError(t, err)
	flushIndexes(t, m)

	result, err := m.Query(MemoryQuery{Q: "backoff", Scope: types.ListScopeLocal})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "retry helper", result.Items[0].Item.Title)
}

func TestQueryFiltersByTag(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Upsert(UpsertInput{Type: types.ItemTypeNote, Scope: types.ScopeLocal, Title: "a", Text: "x", Facets: types.Facets{Tags: []string{"go"}}})
	require.NoError(t, err)
	_, err = m.Upsert(UpsertInput{Type: types.ItemTypeNote, Scope: types.ScopeLocal, Title: "b", Text: "x", Facets: types.Facets{Tags: []string{"python"}}})
	require.NoError(t, err)
	flushIndexes(t, m)

	result, err := m.Query(MemoryQuery{Scope: types.ListScopeLocal, Filters: QueryFilters{Tags: []string{"go"}}})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "a", result.Items[0].Item.Title)
}

func TestQueryFiltersByPinned(t *testing.T) {
	m := newTestManager(t)
	pinned := true
	_, err := m.Upsert(UpsertInput{Type: types.ItemTypeNote, Scope: types.ScopeLocal, Title: "pinned", Text: "x", Pinned: &pinned})
	require.NoError(t, err)
	_, err = m.Upsert(UpsertInput{Type: types.ItemTypeNote, Scope: types.ScopeLocal, Title: "unpinned", Text: "x"})
	require.NoError(t, err)
	flushIndexes(t, m)

	want := true
	result, err := m.Query(MemoryQuery{Scope: types.ListScopeLocal, Filters: QueryFilters{Pinned: &want}})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "pinned", result.Items[0].Item.Title)
}

func TestQueryExcludesExpiredItems(t *testing.T) {
	m := newTestManager(t)
	ttl := -1.0
	_, err := m.Upsert(UpsertInput{Type: types.ItemTypeNote, Scope: types.ScopeLocal, Title: "stale", Text: "findable term", TTLDays: &ttl})
	require.NoError(t, err)
	_, err = m.Upsert(UpsertInput{Type: types.ItemTypeNote, Scope: types.ScopeLocal, Title: "fresh", Text: "findable term"})
	require.NoError(t, err)
	flushIndexes(t, m)

	result, err := m.Query(MemoryQuery{Q: "findable", Scope: types.ListScopeLocal})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "fresh", result.Items[0].Item.Title)
}

func TestQueryRespectsK(t *testing.T) {
	m := newTestManager(t)
	for i := 0; i < 5; i++ {
		_, err := m.Upsert(UpsertInput{Type: types.ItemTypeNote, Scope: types.ScopeLocal, Title: "item", Text: "x"})
		require.NoError(t, err)
	}
	flushIndexes(t, m)

	result, err := m.Query(MemoryQuery{Scope: types.ListScopeLocal, K: 2})
	require.NoError(t, err)
	assert.Len(t, result.Items, 2)
	assert.Equal(t, 5, result.Total)
}

func TestQueryCachesResult(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Upsert(UpsertInput{Type: types.ItemTypeNote, Scope: types.ScopeLocal, Title: "a", Text: "x"})
	require.NoError(t, err)
	flushIndexes(t, m)

	q := MemoryQuery{Scope: types.ListScopeLocal}
	first, err := m.Query(q)
	require.NoError(t, err)

	second, err := m.Query(q)
	require.NoError(t, err)
	// A cache hit returns a deep copy, not the same pointer, so mutating
	// one result through its item slice can never corrupt the cache.
	assert.NotSame(t, first, second)
	assert.Equal(t, first, second)

	second.Items[0].Item.Title = "mutated"
	third, err := m.Query(q)
	require.NoError(t, err)
	assert.Equal(t, "a", third.Items[0].Item.Title)
}

func TestQueryCacheInvalidatedByUpsert(t *testing.T) {
	m := newTestManager(t)
	flushIndexes(t, m)
	q := MemoryQuery{Scope: types.ListScopeLocal}
	first, err := m.Query(q)
	require.NoError(t, err)
	assert.Empty(t, first.Items)

	_, err = m.Upsert(UpsertInput{Type: types.ItemTypeNote, Scope: types.ScopeLocal, Title: "new", Text: "x"})
	require.NoError(t, err)
	flushIndexes(t, m)

	second, err := m.Query(q)
	require.NoError(t, err)
	assert.Len(t, second.Items, 1)
}
