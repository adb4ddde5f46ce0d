// Package index implements the per-scope BM25 inverted index described in
// SPEC_FULL.md §4.2, persisted as three JSON files under a scope's index/
// directory (inverted.json, lengths.json, meta.json). Updates are batched
// in-memory and flushed on a debounce timer or operation-count threshold,
// following the teacher's pkg/reconciler ticker/pending-queue shape
// adapted from reconciling cluster state to reconciling index postings.
package index

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/llm-memory/engine/pkg/memerr"
	"github.com/llm-memory/engine/pkg/tokenize"
	"github.com/llm-memory/engine/pkg/types"
)

// FieldWeights are the per-field term-frequency multipliers applied when a
// document is tokenized.
type FieldWeights struct {
	Title float64 `json:"title"`
	Text  float64 `json:"text"`
	Code  float64 `json:"code"`
	Tag   float64 `json:"tag"`
}

// DefaultFieldWeights matches SPEC_FULL.md §4.2.
var DefaultFieldWeights = FieldWeights{Title: 5, Text: 2, Code: 1.5, Tag: 3}

// BM25Params are the standard Okapi BM25 tuning constants.
type BM25Params struct {
	K1 float64
	B  float64
}

// DefaultBM25Params matches SPEC_FULL.md §4.2.
var DefaultBM25Params = BM25Params{K1: 1.5, B: 0.75}

const (
	DefaultFlushMaxMs = 500
	DefaultFlushMaxOps = 200
)

type meta struct {
	DocCount  int       `json:"docCount"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Index is one scope's BM25 inverted index, with pending upserts/deletes
// batched until Flush runs.
type Index struct {
	dir     string
	weights FieldWeights

	mu       sync.Mutex
	postings map[string]map[string]float64 // token -> id -> weight
	lengths  map[string]float64            // id -> weighted doc length
	docCount int

	pendingUpserts map[string]*types.MemoryItem
	pendingDeletes map[string]bool

	flushMaxOps int
	opsSincePending int
}

// Open loads (or initializes) the index persisted under dir (a scope's
// index/ subdirectory).
func Open(dir string, weights FieldWeights) (*Index, error) {
	idx := &Index{
		dir:             dir,
		weights:         weights,
		postings:        map[string]map[string]float64{},
		lengths:         map[string]float64{},
		pendingUpserts:  map[string]*types.MemoryItem{},
		pendingDeletes:  map[string]bool{},
		flushMaxOps:     DefaultFlushMaxOps,
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, memerr.Wrap(memerr.IO, err, "create index dir %s", dir)
	}
	if err := idx.load(); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *Index) path(name string) string {
	return filepath.Join(idx.dir, name+".json")
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return memerr.Wrap(memerr.IO, err, "read %s", path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return memerr.Wrap(memerr.Corrupt, err, "parse %s", path)
	}
	return nil
}

func (idx *Index) load() error {
	if err := readJSON(idx.path("inverted"), &idx.postings); err != nil {
		return err
	}
	if idx.postings == nil {
		idx.postings = map[string]map[string]float64{}
	}
	if err := readJSON(idx.path("lengths"), &idx.lengths); err != nil {
		return err
	}
	if idx.lengths == nil {
		idx.lengths = map[string]float64{}
	}
	var m meta
	if err := readJSON(idx.path("meta"), &m); err != nil {
		return err
	}
	idx.docCount = m.DocCount
	return nil
}

func writeAtomic(dir, path string, data []byte) error {
	tmpDir := filepath.Join(dir, "..", "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return memerr.Wrap(memerr.IO, err, "create tmp dir %s", tmpDir)
	}
	tmp := filepath.Join(tmpDir, filepath.Base(path)+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return memerr.Wrap(memerr.IO, err, "write temp file %s", tmp)
	}
	return os.Rename(tmp, path)
}

func (idx *Index) persist() error {
	postingsData, err := json.Marshal(idx.postings)
	if err != nil {
		return memerr.Wrap(memerr.IO, err, "marshal postings")
	}
	if err := writeAtomic(idx.dir, idx.path("inverted"), postingsData); err != nil {
		return err
	}
	lengthsData, err := json.Marshal(idx.lengths)
	if err != nil {
		return memerr.Wrap(memerr.IO, err, "marshal lengths")
	}
	if err := writeAtomic(idx.dir, idx.path("lengths"), lengthsData); err != nil {
		return err
	}
	metaData, err := json.Marshal(meta{DocCount: len(idx.lengths), UpdatedAt: time.Now().UTC()})
	if err != nil {
		return memerr.Wrap(memerr.IO, err, "marshal meta")
	}
	return writeAtomic(idx.dir, idx.path("meta"), metaData)
}

// SetWeights updates the per-field weights used by future updateItemLocked
// calls (i.e. items flushed after this call); it does not retroactively
// reweight already-indexed postings. Used by the config hot-reload path.
func (idx *Index) SetWeights(weights FieldWeights) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.weights = weights
}

// QueueUpsert stages an item for the next flush. An upsert queued after a
// pending delete for the same id supersedes it.
func (idx *Index) QueueUpsert(item *types.MemoryItem) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.pendingUpserts[item.ID] = item
	delete(idx.pendingDeletes, item.ID)
	idx.opsSincePending++
}

// QueueDelete stages an id for removal on the next flush.
func (idx *Index) QueueDelete(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.pendingDeletes[id] = true
	delete(idx.pendingUpserts, id)
	idx.opsSincePending++
}

// PendingOps reports how many queue operations have accumulated since the
// last flush, for the caller's debounce timer/threshold decision.
func (idx *Index) PendingOps() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.opsSincePending
}

// Flush applies all pending upserts then deletes, and persists the index.
// Upserts are applied first so that an upsert queued after a delete for
// the same id (already guaranteed by QueueUpsert/QueueDelete) wins.
func (idx *Index) Flush() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, item := range idx.pendingUpserts {
		idx.updateItemLocked(item)
	}
	for id := range idx.pendingDeletes {
		idx.removeItemLocked(id)
	}
	idx.pendingUpserts = map[string]*types.MemoryItem{}
	idx.pendingDeletes = map[string]bool{}
	idx.opsSincePending = 0

	return idx.persist()
}

func (idx *Index) updateItemLocked(item *types.MemoryItem) {
	idx.removeItemLocked(item.ID)

	termWeights := map[string]float64{}
	addField := func(text string, weight float64) {
		for _, tok := range tokenize.Tokens(text) {
			termWeights[tok] += weight
		}
	}
	addField(item.Title, idx.weights.Title)
	addField(item.Text, idx.weights.Text)
	addField(item.Code, idx.weights.Code)
	for _, tag := range item.Facets.Tags {
		addField(tag, idx.weights.Tag)
	}

	var length float64
	for tok, w := range termWeights {
		if idx.postings[tok] == nil {
			idx.postings[tok] = map[string]float64{}
		}
		idx.postings[tok][item.ID] = w
		length += w
	}
	idx.lengths[item.ID] = length + 1 // +1 avoids a zero-length document
	idx.docCount = len(idx.lengths)
}

func (idx *Index) removeItemLocked(id string) {
	for tok, byID := range idx.postings {
		if _, ok := byID[id]; ok {
			delete(byID, id)
			if len(byID) == 0 {
				delete(idx.postings, tok)
			}
		}
	}
	delete(idx.lengths, id)
	idx.docCount = len(idx.lengths)
}

// RebuildFromItems clears the index and reinserts every given item, then
// persists. Used by the manager's rebuild operation.
func (idx *Index) RebuildFromItems(items []*types.MemoryItem) error {
	idx.mu.Lock()
	idx.postings = map[string]map[string]float64{}
	idx.lengths = map[string]float64{}
	idx.pendingUpserts = map[string]*types.MemoryItem{}
	idx.pendingDeletes = map[string]bool{}
	idx.opsSincePending = 0
	for _, item := range items {
		idx.updateItemLocked(item)
	}
	idx.mu.Unlock()
	return idx.persist()
}

// Scored is a single search result.
type Scored struct {
	ID    string
	Score float64
}

// SearchOptions parameterizes Search.
type SearchOptions struct {
	BM25  BM25Params
	Boost func(id string) float64 // optional, added to the BM25 score
}

// Search tokenizes term and scores every candidate document by BM25, plus
// an optional per-id boost, returning results sorted by descending score.
func (idx *Index) Search(term string, opts SearchOptions) []Scored {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if opts.BM25.K1 == 0 && opts.BM25.B == 0 {
		opts.BM25 = DefaultBM25Params
	}

	tokens := tokenize.Tokens(term)
	if len(tokens) == 0 {
		return nil
	}

	n := float64(idx.docCount)
	var avgdl float64
	if idx.docCount > 0 {
		var sum float64
		for _, l := range idx.lengths {
			sum += l
		}
		avgdl = sum / n
	}

	scores := map[string]float64{}
	for _, tok := range tokens {
		byID, ok := idx.postings[tok]
		if !ok {
			continue
		}
		df := float64(len(byID))
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		for id, tf := range byID {
			dl := idx.lengths[id]
			tfComponent := tf * (opts.BM25.K1 + 1) / (tf + opts.BM25.K1*(1-opts.BM25.B+opts.BM25.B*(dl/avgdl)))
			scores[id] += idf * tfComponent
		}
	}

	results := make([]Scored, 0, len(scores))
	for id, score := range scores {
		if opts.Boost != nil {
			score += opts.Boost(id)
		}
		results = append(results, Scored{ID: id, Score: score})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	return results
}
