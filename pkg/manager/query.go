package manager

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/jinzhu/copier"

	"github.com/llm-memory/engine/pkg/config"
	"github.com/llm-memory/engine/pkg/index"
	"github.com/llm-memory/engine/pkg/memerr"
	"github.com/llm-memory/engine/pkg/metrics"
	"github.com/llm-memory/engine/pkg/querycache"
	"github.com/llm-memory/engine/pkg/types"
)

// ConfidenceRange bounds quality.confidence, inclusive.
type ConfidenceRange struct {
	Min *float64
	Max *float64
}

// TimeRange bounds updatedAt, inclusive.
type TimeRange struct {
	Start *time.Time
	End   *time.Time
}

// QueryFilters are the AND-combined constraints applied to candidates
// after scoring, per SPEC_FULL.md §4.5.
type QueryFilters struct {
	Type       []string
	Tags       []string
	Files      []string
	Symbols    []string
	Language   []string
	Pinned     *bool
	Confidence *ConfidenceRange
	TimeRange  *TimeRange
}

// MemoryQuery is the input to Query. The snippet/budget fields are not
// used by Query itself; the CLI and ContextPack carry them through a
// query result into contextpack.Assemble.
type MemoryQuery struct {
	Q                   string
	Scope               types.ListScope
	K                   int
	Filters             QueryFilters
	Vector              []float64
	MaxChars            int
	TokenBudget         int
	SnippetWindowBefore int
	SnippetWindowAfter  int
	SnippetLanguages    []string
	SnippetFilePatterns []string
}

// QueryResultItem pairs a scored item with its id for convenience.
type QueryResultItem struct {
	Item  *types.MemoryItem `json:"item"`
	Score float64           `json:"score"`
}

// QueryResult is the output of Query.
type QueryResult struct {
	Items []QueryResultItem `json:"items"`
	Total int               `json:"total"`
	Scope types.ListScope   `json:"scope"`
	Query string            `json:"query"`
}

func defaultScopeBonus(sc types.Scope, cfg map[string]float64) float64 {
	if v, ok := cfg[string(sc)]; ok {
		return v
	}
	return 0
}

// Query is the central read operation: it gathers BM25 and/or vector
// candidates per scope, applies filters, applies phrase/title bonuses,
// sorts, truncates to k, and caches the result.
func (m *MemoryManager) Query(q MemoryQuery) (*QueryResult, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.QueryDuration)

	listScope := q.Scope
	if listScope == "" {
		listScope = types.ListScopeProject
	}
	k := q.K
	if k <= 0 {
		k = 50
	}

	cacheKey := querycache.Key{
		Q:        q.Q,
		Scope:    string(listScope),
		Type:     append([]string(nil), q.Filters.Type...),
		Tags:     append([]string(nil), q.Filters.Tags...),
		Files:    append([]string(nil), q.Filters.Files...),
		Symbols:  append([]string(nil), q.Filters.Symbols...),
		Language: append([]string(nil), q.Filters.Language...),
		K:        k,
	}
	if cached, ok := m.cache.Get(cacheKey); ok {
		metrics.QueriesTotal.WithLabelValues(string(listScope), "hit").Inc()
		result, err := cloneQueryResult(cached.(*QueryResult))
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	metrics.QueriesTotal.WithLabelValues(string(listScope), "miss").Inc()

	scopes, err := m.scopesForListScope(listScope)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	type candidate struct {
		item  *types.MemoryItem
		score float64
	}
	var candidates []candidate

	for _, sc := range scopes {
		st, err := m.scopeState(sc)
		if err != nil {
			return nil, err
		}
		cfg := st.cfg.Current()
		catalog, err := st.store.ReadCatalog()
		if err != nil {
			return nil, err
		}

		var ids map[string]float64
		switch {
		case q.Q != "":
			scopeBonus := defaultScopeBonus(sc, cfg.Ranking.ScopeBonus)
			boost := func(id string) float64 {
				summary, ok := catalog[id]
				bonus := scopeBonus
				if ok {
					if summary.Pinned {
						bonus += cfg.Ranking.PinBonus
					}
					ageDays := now.Sub(summary.UpdatedAt).Hours() / 24
					halfLife := cfg.Ranking.HalfLifeDays
					if halfLife <= 0 {
						halfLife = 1
					}
					bonus += cfg.Ranking.RecencyScale * math.Exp(-ageDays/halfLife)
				}
				return bonus
			}
			scored := st.index.Search(q.Q, index.SearchOptions{
				BM25:  index.BM25Params{K1: cfg.Ranking.BM25.K1, B: cfg.Ranking.BM25.B},
				Boost: boost,
			})
			ids = map[string]float64{}
			for _, s := range scored {
				ids[s.ID] = s.Score
			}
			if q.Vector != nil && cfg.Ranking.Hybrid.Enabled {
				blendVectorScores(ids, st, q.Vector, cfg.Ranking.Hybrid)
			}
		case q.Vector != nil:
			ids = map[string]float64{}
			hits := st.vectors.Search(q.Vector, k*4)
			for _, h := range hits {
				ids[h.ID] = h.Score
			}
		default:
			ids = map[string]float64{}
			for id := range catalog {
				ids[id] = 0
			}
		}

		for id, score := range ids {
			item, err := st.store.ReadItem(id)
			if err != nil || item == nil {
				continue
			}
			if item.Expired(now) {
				continue
			}
			if !matchesFilters(item, q.Filters, q.Q) {
				continue
			}
			if q.Q != "" {
				score += phraseBonus(item, q.Q, cfg.Ranking.Phrase)
			}
			candidates = append(candidates, candidate{item: item, score: score})
		}
	}

	if q.Q != "" {
		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].score != candidates[j].score {
				return candidates[i].score > candidates[j].score
			}
			return candidates[i].item.UpdatedAt.After(candidates[j].item.UpdatedAt)
		})
	} else {
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].item.UpdatedAt.After(candidates[j].item.UpdatedAt)
		})
	}

	total := len(candidates)
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	items := make([]QueryResultItem, 0, len(candidates))
	for _, c := range candidates {
		items = append(items, QueryResultItem{Item: c.item, Score: c.score})
	}
	result := &QueryResult{Items: items, Total: total, Scope: listScope, Query: q.Q}
	m.cache.Put(cacheKey, result)
	return result, nil
}

// cloneQueryResult deep-copies a cached result before handing it back, so
// a caller mutating a returned item (or its slices) never corrupts what
// other callers will read from the same cache entry.
func cloneQueryResult(cached *QueryResult) (*QueryResult, error) {
	var out QueryResult
	if err := copier.CopyWithOption(&out, cached, copier.Option{DeepCopy: true}); err != nil {
		return nil, memerr.Wrap(memerr.IO, err, "clone cached query result")
	}
	return &out, nil
}

func blendVectorScores(ids map[string]float64, st *scopeState, vector []float64, hybrid config.Hybrid) {
	wBM25, wVec := hybrid.WBM25, hybrid.WVec
	if wBM25 == 0 && wVec == 0 {
		wBM25, wVec = 0.7, 0.3
	}
	hits := st.vectors.Search(vector, len(ids)+32)
	cos := map[string]float64{}
	for _, h := range hits {
		cos[h.ID] = h.Score
	}
	for id, bm25 := range ids {
		ids[id] = wBM25*bm25 + wVec*cos[id]
	}
	for id, c := range cos {
		if _, ok := ids[id]; !ok {
			ids[id] = wVec * c
		}
	}
}

func phraseBonus(item *types.MemoryItem, q string, phrase config.Phrase) float64 {
	exactTitleBonus := phrase.ExactTitleBonus
	bonus := phrase.Bonus
	if exactTitleBonus == 0 && bonus == 0 {
		exactTitleBonus, bonus = 6, 2.5
	}
	term := strings.ToLower(q)
	title := strings.ToLower(item.Title)
	var total float64
	if title == term {
		total += exactTitleBonus
	}
	if strings.Contains(title, term) {
		total += bonus * 1.5
	}
	if strings.Contains(strings.ToLower(item.Text), term) {
		total += bonus
	}
	if strings.Contains(strings.ToLower(item.Code), term) {
		total += bonus * 0.75
	}
	return total
}

func matchesFilters(item *types.MemoryItem, f QueryFilters, q string) bool {
	if len(f.Type) > 0 && !containsStr(f.Type, string(item.Type)) {
		return false
	}
	if len(f.Tags) > 0 && !anyMatch(f.Tags, item.Facets.Tags) {
		return false
	}
	if len(f.Files) > 0 {
		files := append([]string(nil), item.Facets.Files...)
		if item.Context != nil && item.Context.File != "" {
			files = append(files, item.Context.File)
		}
		if !anyMatch(f.Files, files) {
			return false
		}
	}
	if len(f.Symbols) > 0 && !anyMatch(f.Symbols, item.Facets.Symbols) {
		return false
	}
	if len(f.Language) > 0 && !containsStr(f.Language, item.Language) {
		return false
	}
	if f.Pinned != nil && item.Quality.Pinned != *f.Pinned {
		return false
	}
	if f.Confidence != nil {
		if f.Confidence.Min != nil && item.Quality.Confidence < *f.Confidence.Min {
			return false
		}
		if f.Confidence.Max != nil && item.Quality.Confidence > *f.Confidence.Max {
			return false
		}
	}
	if f.TimeRange != nil {
		if f.TimeRange.Start != nil && item.UpdatedAt.Before(*f.TimeRange.Start) {
			return false
		}
		if f.TimeRange.End != nil && item.UpdatedAt.After(*f.TimeRange.End) {
			return false
		}
	}
	if q != "" {
		haystack := strings.ToLower(item.Title + " " + item.Text + " " + item.Code + " " + strings.Join(item.Facets.Tags, " "))
		if !strings.Contains(haystack, strings.ToLower(q)) {
			return false
		}
	}
	return true
}

func containsStr(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func anyMatch(want, have []string) bool {
	haveSet := map[string]bool{}
	for _, h := range have {
		haveSet[h] = true
	}
	for _, w := range want {
		if haveSet[w] {
			return true
		}
	}
	return false
}
