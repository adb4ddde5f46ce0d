package manager

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llm-memory/engine/pkg/types"
)

func TestVectorSetAndRemoveInvalidateCache(t *testing.T) {
	m := newTestManager(t)
	flushIndexes(t, m)

	q := MemoryQuery{Scope: types.ListScopeLocal}
	first, err := m.Query(q)
	require.NoError(t, err)

	require.NoError(t, m.VectorSet(types.ScopeLocal, "v1", []float64{1, 0, 0}))

	second, err := m.Query(q)
	require.NoError(t, err)
	assert.NotSame(t, first, second)

	require.NoError(t, m.VectorRemove(types.ScopeLocal, "v1"))
}

func TestVectorImportBulkStoresAllVectors(t *testing.T) {
	m := newTestManager(t)
	err := m.VectorImportBulk(types.ScopeLocal, []BulkVector{
		{ID: "a", Vector: []float64{1, 0}},
		{ID: "b", Vector: []float64{0, 1}},
	}, 2)
	require.NoError(t, err)
}
