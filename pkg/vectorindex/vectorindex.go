// Package vectorindex implements the per-scope dense-vector index
// described in SPEC_FULL.md §4.3: an id -> float64 vector map persisted as
// one JSON file, searched by cosine similarity. Enforcing one dimension
// per scope and atomic tmp+rename persistence follows the same discipline
// as pkg/store and pkg/index.
package vectorindex

import (
	"bufio"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/llm-memory/engine/pkg/memerr"
)

// Index is one scope's vector index.
type Index struct {
	dir  string
	path string

	mu      sync.RWMutex
	vectors map[string][]float64
	dim     int
}

// Open loads (or initializes) the vector index persisted at
// <dir>/vectors.json.
func Open(dir string) (*Index, error) {
	idx := &Index{
		dir:     dir,
		path:    filepath.Join(dir, "vectors.json"),
		vectors: map[string][]float64{},
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, memerr.Wrap(memerr.IO, err, "create vector index dir %s", dir)
	}
	data, err := os.ReadFile(idx.path)
	if err == nil {
		if uerr := json.Unmarshal(data, &idx.vectors); uerr != nil {
			return nil, memerr.Wrap(memerr.Corrupt, uerr, "parse %s", idx.path)
		}
	} else if !os.IsNotExist(err) {
		return nil, memerr.Wrap(memerr.IO, err, "read %s", idx.path)
	}
	for _, v := range idx.vectors {
		idx.dim = len(v)
		break
	}
	return idx, nil
}

func (idx *Index) persist() error {
	data, err := json.Marshal(idx.vectors)
	if err != nil {
		return memerr.Wrap(memerr.IO, err, "marshal vectors")
	}
	tmpDir := filepath.Join(idx.dir, "..", "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return memerr.Wrap(memerr.IO, err, "create tmp dir %s", tmpDir)
	}
	tmp := filepath.Join(tmpDir, "vectors.json.tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return memerr.Wrap(memerr.IO, err, "write temp file %s", tmp)
	}
	return os.Rename(tmp, idx.path)
}

func dimensionMismatch(expected, got int) error {
	return memerr.New(memerr.DimensionMismatch, "vector dimension mismatch", map[string]any{
		"expected": expected,
		"got":      got,
	})
}

// Set stores vec under id, enforcing the scope's established dimension
// (the dimension of the first vector ever set). Returns DimensionMismatch
// if vec's length disagrees.
func (idx *Index) Set(id string, vec []float64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.dim != 0 && len(vec) != idx.dim {
		return dimensionMismatch(idx.dim, len(vec))
	}
	if idx.dim == 0 {
		idx.dim = len(vec)
	}
	idx.vectors[id] = append([]float64(nil), vec...)
	return idx.persist()
}

// Remove deletes id's vector, if present.
func (idx *Index) Remove(id string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.vectors, id)
	if len(idx.vectors) == 0 {
		idx.dim = 0
	}
	return idx.persist()
}

// BulkItem is one id/vector pair for SetBulk.
type BulkItem struct {
	ID     string
	Vector []float64
}

// SetBulk stores many vectors in one persisted write. If dimOverride is
// nonzero, it is enforced instead of the scope's established dimension
// (used to seed an empty index with an explicit expected width).
func (idx *Index) SetBulk(items []BulkItem, dimOverride int) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	expected := idx.dim
	if dimOverride != 0 {
		expected = dimOverride
	}
	for _, it := range items {
		if expected != 0 && len(it.Vector) != expected {
			return dimensionMismatch(expected, len(it.Vector))
		}
		if expected == 0 {
			expected = len(it.Vector)
		}
	}
	for _, it := range items {
		idx.vectors[it.ID] = append([]float64(nil), it.Vector...)
	}
	idx.dim = expected
	return idx.persist()
}

// Scored is a single search result.
type Scored struct {
	ID    string
	Score float64
}

// Search returns the top-k ids by cosine similarity to query, descending.
// A zero-norm query returns no results.
func (idx *Index) Search(query []float64, k int) []Scored {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	qNorm := norm(query)
	if qNorm == 0 {
		return nil
	}

	results := make([]Scored, 0, len(idx.vectors))
	for id, v := range idx.vectors {
		if len(v) != len(query) {
			continue
		}
		vNorm := norm(v)
		if vNorm == 0 {
			continue
		}
		results = append(results, Scored{ID: id, Score: dot(query, v) / (qNorm * vNorm)})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// ImportJsonl reads one {"id":..., "vector":[...]} object per line from
// path, skipping and counting malformed lines rather than failing the
// whole import.
func (idx *Index) ImportJsonl(path string, dim int) (imported, skipped int, err error) {
	f, ferr := os.Open(path)
	if ferr != nil {
		return 0, 0, memerr.Wrap(memerr.IO, ferr, "open jsonl %s", path)
	}
	defer f.Close()

	type line struct {
		ID     string    `json:"id"`
		Vector []float64 `json:"vector"`
	}

	var items []BulkItem
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var l line
		if jerr := json.Unmarshal(raw, &l); jerr != nil || l.ID == "" || len(l.Vector) == 0 {
			skipped++
			continue
		}
		items = append(items, BulkItem{ID: l.ID, Vector: l.Vector})
	}
	if serr := scanner.Err(); serr != nil {
		return 0, skipped, memerr.Wrap(memerr.IO, serr, "scan jsonl %s", path)
	}

	if len(items) == 0 {
		return 0, skipped, nil
	}
	if err := idx.SetBulk(items, dim); err != nil {
		return 0, skipped, err
	}
	return len(items), skipped, nil
}
