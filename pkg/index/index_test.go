package index

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llm-memory/engine/pkg/types"
)

func item(id, title, text string, tags ...string) *types.MemoryItem {
	return &types.MemoryItem{
		ID:     id,
		Title:  title,
		Text:   text,
		Facets: types.Facets{Tags: tags},
	}
}

func TestUpdateItemThenSearchFindsTitleMatch(t *testing.T) {
	idx, err := Open(t.TempDir(), DefaultFieldWeights)
	require.NoError(t, err)

	idx.QueueUpsert(item("01A", "retry backoff pattern", "use exponential backoff on retries"))
	idx.QueueUpsert(item("01B", "unrelated note", "nothing about networking"))
	require.NoError(t, idx.Flush())

	results := idx.Search("backoff", SearchOptions{})
	require.NotEmpty(t, results)
	assert.Equal(t, "01A", results[0].ID)
}

func TestTitleWeightOutranksTextWeight(t *testing.T) {
	idx, err := Open(t.TempDir(), DefaultFieldWeights)
	require.NoError(t, err)

	idx.QueueUpsert(item("title-hit", "caching strategy", "lorem ipsum dolor sit amet"))
	idx.QueueUpsert(item("text-hit", "lorem ipsum dolor", "our caching strategy for reads"))
	require.NoError(t, idx.Flush())

	results := idx.Search("caching", SearchOptions{})
	require.Len(t, results, 2)
	assert.Equal(t, "title-hit", results[0].ID)
}

func TestRemoveItemDropsFromPostings(t *testing.T) {
	idx, err := Open(t.TempDir(), DefaultFieldWeights)
	require.NoError(t, err)

	idx.QueueUpsert(item("01A", "retry backoff pattern", "backoff"))
	require.NoError(t, idx.Flush())

	idx.QueueDelete("01A")
	require.NoError(t, idx.Flush())

	results := idx.Search("backoff", SearchOptions{})
	assert.Empty(t, results)
}

func TestUpsertSupersedesPendingDelete(t *testing.T) {
	idx, err := Open(t.TempDir(), DefaultFieldWeights)
	require.NoError(t, err)

	idx.QueueUpsert(item("01A", "retry backoff pattern", "backoff"))
	require.NoError(t, idx.Flush())

	idx.QueueDelete("01A")
	idx.QueueUpsert(item("01A", "retry backoff pattern", "backoff"))
	require.NoError(t, idx.Flush())

	results := idx.Search("backoff", SearchOptions{})
	assert.Len(t, results, 1)
}

func TestBoostAddsToScore(t *testing.T) {
	idx, err := Open(t.TempDir(), DefaultFieldWeights)
	require.NoError(t, err)

	idx.QueueUpsert(item("01A", "retry backoff pattern", "backoff"))
	idx.QueueUpsert(item("01B", "retry backoff variant", "backoff"))
	require.NoError(t, idx.Flush())

	results := idx.Search("backoff", SearchOptions{
		Boost: func(id string) float64 {
			if id == "01B" {
				return 1000
			}
			return 0
		},
	})
	require.Len(t, results, 2)
	assert.Equal(t, "01B", results[0].ID)
}

func TestRebuildFromItemsReplacesState(t *testing.T) {
	idx, err := Open(t.TempDir(), DefaultFieldWeights)
	require.NoError(t, err)

	idx.QueueUpsert(item("01A", "stale entry", "stale"))
	require.NoError(t, idx.Flush())

	require.NoError(t, idx.RebuildFromItems([]*types.MemoryItem{
		item("01B", "fresh entry", "fresh"),
	}))

	assert.Empty(t, idx.Search("stale", SearchOptions{}))
	assert.NotEmpty(t, idx.Search("fresh", SearchOptions{}))
}

func TestPersistedFilesExistAfterFlush(t *testing.T) {
	dir := t.TempDir()
	idx, err := Open(dir, DefaultFieldWeights)
	require.NoError(t, err)

	idx.QueueUpsert(item("01A", "note", "text"))
	require.NoError(t, idx.Flush())

	assert.FileExists(t, filepath.Join(dir, "inverted.json"))
	assert.FileExists(t, filepath.Join(dir, "lengths.json"))
	assert.FileExists(t, filepath.Join(dir, "meta.json"))
}

func TestSearchWithNoTokensReturnsEmpty(t *testing.T) {
	idx, err := Open(t.TempDir(), DefaultFieldWeights)
	require.NoError(t, err)
	idx.QueueUpsert(item("01A", "note", "text"))
	require.NoError(t, idx.Flush())

	assert.Empty(t, idx.Search("   ", SearchOptions{}))
}
