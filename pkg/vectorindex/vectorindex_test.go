package vectorindex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llm-memory/engine/pkg/memerr"
)

func TestSetAndSearchReturnsClosestByCosine(t *testing.T) {
	idx, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, idx.Set("same", []float64{1, 0, 0}))
	require.NoError(t, idx.Set("orthogonal", []float64{0, 1, 0}))
	require.NoError(t, idx.Set("opposite", []float64{-1, 0, 0}))

	results := idx.Search([]float64{1, 0, 0}, 3)
	require.Len(t, results, 3)
	assert.Equal(t, "same", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.Equal(t, "opposite", results[2].ID)
}

func TestSetRejectsDimensionMismatch(t *testing.T) {
	idx, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, idx.Set("a", []float64{1, 2, 3}))
	err = idx.Set("b", []float64{1, 2})
	require.Error(t, err)
	assert.True(t, memerr.Is(err, memerr.DimensionMismatch))
}

func TestZeroNormQueryReturnsEmpty(t *testing.T) {
	idx, err := Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, idx.Set("a", []float64{1, 2, 3}))

	assert.Empty(t, idx.Search([]float64{0, 0, 0}, 5))
}

func TestRemoveDropsVectorAndResetsDimOnEmpty(t *testing.T) {
	idx, err := Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, idx.Set("a", []float64{1, 2}))
	require.NoError(t, idx.Remove("a"))

	require.NoError(t, idx.Set("b", []float64{1, 2, 3}))
	assert.Len(t, idx.Search([]float64{1, 2, 3}, 1), 1)
}

func TestImportJsonlSkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.jsonl")
	content := `{"id":"a","vector":[1,0]}
not json
{"id":"b","vector":[0,1]}
{"vector":[1,1]}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	idx, err := Open(t.TempDir())
	require.NoError(t, err)

	imported, skipped, err := idx.ImportJsonl(path, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, imported)
	assert.Equal(t, 2, skipped)
}

func TestPersistedAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	idx, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, idx.Set("a", []float64{1, 2, 3}))

	reopened, err := Open(dir)
	require.NoError(t, err)
	results := reopened.Search([]float64{1, 2, 3}, 1)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
}
