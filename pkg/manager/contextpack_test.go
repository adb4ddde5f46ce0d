package manager

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llm-memory/engine/pkg/types"
)

func TestContextPackAssemblesFromQueryResult(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Upsert(UpsertInput{
		Type: types.ItemTypeFact, Scope: types.ScopeLocal,
		Title: "retry policy", Text: "http client retries 3 times with exponential backoff",
	})
	require.NoError(t, err)
	flushIndexes(t, m)

	pack, err := m.ContextPack(MemoryQuery{Q: "retry", Scope: types.ListScopeLocal})
	require.NoError(t, err)
	require.Len(t, pack.Facts, 1)
	assert.Contains(t, pack.Facts[0], "retry policy")
}

func TestContextPackHonorsQueryScopedBudget(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Upsert(UpsertInput{
		Type: types.ItemTypeFact, Scope: types.ScopeLocal,
		Title: "long", Text: "this fact text is deliberately long so a tiny budget truncates it down to size",
	})
	require.NoError(t, err)
	flushIndexes(t, m)

	pack, err := m.ContextPack(MemoryQuery{Scope: types.ListScopeLocal, MaxChars: 40})
	require.NoError(t, err)
	require.Len(t, pack.Facts, 1)
	assert.LessOrEqual(t, len(pack.Facts[0]), 40)
}
