package manager

import (
	"sort"
	"time"

	"github.com/llm-memory/engine/pkg/log"
	"github.com/llm-memory/engine/pkg/memerr"
	"github.com/llm-memory/engine/pkg/metrics"
	"github.com/llm-memory/engine/pkg/redact"
	"github.com/llm-memory/engine/pkg/types"
	"github.com/llm-memory/engine/pkg/ulid"
)

// UpsertInput is the operation input for Upsert. ID is optional: empty
// creates a new item (assigned a fresh ulid), non-empty updates in place
// if found in Scope.
type UpsertInput struct {
	ID          string
	Type        types.ItemType
	Scope       types.Scope
	Title       string
	Text        string
	Code        string
	Language    string
	Facets      types.Facets
	Context     *types.Context
	Sensitivity types.Sensitivity
	Confidence  *float64
	Pinned      *bool
	TTLDays     *float64
	Links       []types.Link
	Vector      []float64
}

// Upsert creates or updates an item, following the path in
// SPEC_FULL.md §4.5: preserve createdAt/reuseCount across updates, redact
// secrets, enforce the committed-scope sensitivity ceiling, write through
// the scope's store, then invalidate the cache and queue index/vector
// updates.
func (m *MemoryManager) Upsert(in UpsertInput) (*types.MemoryItem, error) {
	st, err := m.scopeState(in.Scope)
	if err != nil {
		return nil, err
	}

	id := in.ID
	var existing *types.MemoryItem
	if id != "" {
		existing, err = st.store.ReadItem(id)
		if err != nil {
			return nil, err
		}
	}
	if id == "" {
		id = ulid.New()
	}

	now := time.Now().UTC()
	createdAt := now
	version := 1
	reuseCount := 0
	var secretHashRefs []string
	if existing != nil {
		createdAt = existing.CreatedAt
		version = existing.Version + 1
		reuseCount = existing.Quality.ReuseCount
		secretHashRefs = append([]string(nil), existing.Security.SecretHashRefs...)
	}

	text, textRefs := redact.Redact(in.Text)
	code, codeRefs := redact.Redact(in.Code)
	secretHashRefs = mergeRefs(secretHashRefs, textRefs, codeRefs)

	confidence := types.DefaultConfidence
	if in.Confidence != nil {
		confidence = *in.Confidence
	} else if existing != nil {
		confidence = existing.Quality.Confidence
	}
	pinned := false
	if in.Pinned != nil {
		pinned = *in.Pinned
	} else if existing != nil {
		pinned = existing.Quality.Pinned
	}

	sensitivity := in.Sensitivity
	if sensitivity == "" {
		sensitivity = types.SensitivityPrivate
	}

	item := &types.MemoryItem{
		ID:       id,
		Type:     in.Type,
		Scope:    in.Scope,
		Title:    in.Title,
		Text:     text,
		Code:     code,
		Language: in.Language,
		Facets:   in.Facets,
		Context:  in.Context,
		Quality: types.Quality{
			Confidence: confidence,
			ReuseCount: reuseCount,
			Pinned:     pinned,
			TTLDays:    in.TTLDays,
		},
		Security: types.Security{
			Sensitivity:    sensitivity,
			SecretHashRefs: secretHashRefs,
		},
		Links:     in.Links,
		CreatedAt: createdAt,
		UpdatedAt: now,
		Version:   version,
	}
	if item.Quality.TTLDays != nil && item.Quality.ExpiresAt == nil {
		expires := now.Add(time.Duration(*item.Quality.TTLDays * float64(24*time.Hour)))
		item.Quality.ExpiresAt = &expires
	} else if existing != nil {
		item.Quality.ExpiresAt = existing.Quality.ExpiresAt
	}

	if in.Scope == types.ScopeCommitted {
		if err := m.checkSensitivity(st, sensitivity); err != nil {
			return nil, err
		}
	}

	if err := st.store.WriteItem(item); err != nil {
		return nil, err
	}

	st.index.QueueUpsert(item)
	if in.Vector != nil {
		if err := st.vectors.Set(item.ID, in.Vector); err != nil {
			return nil, err
		}
	}
	m.cache.Invalidate()
	metrics.UpsertsTotal.WithLabelValues(string(in.Scope)).Inc()
	log.WithOp(string(in.Scope), "upsert").Debug().Str("id", item.ID).Int("version", item.Version).Msg("item written")

	return item, nil
}

func mergeRefs(base []string, groups ...[]string) []string {
	seen := map[string]bool{}
	for _, r := range base {
		seen[r] = true
	}
	out := append([]string(nil), base...)
	for _, g := range groups {
		for _, r := range g {
			if !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
	}
	return out
}

// probeOrder is the scope search order used by Get/Delete when no scope
// is specified.
var probeOrder = []types.Scope{types.ScopeCommitted, types.ScopeLocal, types.ScopeGlobal}

// Get returns the item with id. If scopeHint is empty, probes
// committed -> local -> global and returns the first hit.
func (m *MemoryManager) Get(id string, scopeHint types.Scope) (*types.MemoryItem, error) {
	scopes := probeOrder
	if scopeHint != "" {
		scopes = []types.Scope{scopeHint}
	}
	for _, sc := range scopes {
		st, err := m.scopeState(sc)
		if err != nil {
			return nil, err
		}
		item, err := st.store.ReadItem(id)
		if err != nil {
			return nil, err
		}
		if item != nil {
			return item, nil
		}
	}
	return nil, nil
}

// Delete removes id from scopeHint, or from the first scope (in probe
// order) that has it if scopeHint is empty. Returns whether anything was
// deleted.
func (m *MemoryManager) Delete(id string, scopeHint types.Scope) (bool, error) {
	scopes := probeOrder
	if scopeHint != "" {
		scopes = []types.Scope{scopeHint}
	}
	for _, sc := range scopes {
		st, err := m.scopeState(sc)
		if err != nil {
			return false, err
		}
		existed, err := st.store.DeleteItem(id)
		if err != nil {
			return false, err
		}
		if existed {
			st.index.QueueDelete(id)
			if err := st.vectors.Remove(id); err != nil {
				return true, err
			}
			m.cache.Invalidate()
			metrics.DeletesTotal.WithLabelValues(string(sc)).Inc()
			log.WithOp(string(sc), "delete").Debug().Str("id", id).Msg("item removed")
			return true, nil
		}
	}
	return false, nil
}

// List returns summaries for the given list scope, sorted by updatedAt
// descending, optionally limited.
func (m *MemoryManager) List(listScope types.ListScope, limit int) ([]types.MemoryItemSummary, error) {
	var scopes []types.Scope
	switch listScope {
	case types.ListScopeGlobal:
		scopes = []types.Scope{types.ScopeGlobal}
	case types.ListScopeLocal:
		scopes = []types.Scope{types.ScopeLocal}
	case types.ListScopeCommitted:
		scopes = []types.Scope{types.ScopeCommitted}
	case types.ListScopeProject:
		scopes = []types.Scope{types.ScopeCommitted, types.ScopeLocal}
	case types.ListScopeAll:
		scopes = []types.Scope{types.ScopeCommitted, types.ScopeLocal, types.ScopeGlobal}
	default:
		return nil, memerr.New(memerr.NotFound, "unknown list scope", map[string]any{"scope": listScope})
	}

	now := time.Now().UTC()
	var all []types.MemoryItemSummary
	for _, sc := range scopes {
		st, err := m.scopeState(sc)
		if err != nil {
			return nil, err
		}
		catalog, err := st.store.ReadCatalog()
		if err != nil {
			return nil, err
		}
		for _, summary := range catalog {
			if summary.Expired(now) {
				continue
			}
			all = append(all, summary)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.After(all[j].UpdatedAt) })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// mutate loads item id from scopeHint (probing if empty), applies fn, and
// writes it back through the normal upsert path so version/updatedAt and
// index/cache invalidation stay consistent.
func (m *MemoryManager) mutate(id string, scopeHint types.Scope, fn func(*types.MemoryItem)) (*types.MemoryItem, error) {
	item, err := m.Get(id, scopeHint)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, memerr.New(memerr.NotFound, "item not found", map[string]any{"id": id})
	}
	fn(item)
	return m.Upsert(UpsertInput{
		ID:          item.ID,
		Type:        item.Type,
		Scope:       item.Scope,
		Title:       item.Title,
		Text:        item.Text,
		Code:        item.Code,
		Language:    item.Language,
		Facets:      item.Facets,
		Context:     item.Context,
		Sensitivity: item.Security.Sensitivity,
		Confidence:  &item.Quality.Confidence,
		Pinned:      &item.Quality.Pinned,
		TTLDays:     item.Quality.TTLDays,
		Links:       item.Links,
	})
}

// Link appends a link from id to the named target, deduplicating an
// identical (rel, to) pair.
func (m *MemoryManager) Link(id string, rel types.LinkRel, to string, scopeHint types.Scope) (*types.MemoryItem, error) {
	return m.mutate(id, scopeHint, func(item *types.MemoryItem) {
		for _, l := range item.Links {
			if l.Rel == rel && l.To == to {
				return
			}
		}
		item.Links = append(item.Links, types.Link{Rel: rel, To: to})
	})
}

// SetPinned sets quality.pinned.
func (m *MemoryManager) SetPinned(id string, pinned bool, scopeHint types.Scope) (*types.MemoryItem, error) {
	return m.mutate(id, scopeHint, func(item *types.MemoryItem) {
		item.Quality.Pinned = pinned
	})
}

// Tag adds and/or removes tags from facets.tags.
func (m *MemoryManager) Tag(id string, add, remove []string, scopeHint types.Scope) (*types.MemoryItem, error) {
	return m.mutate(id, scopeHint, func(item *types.MemoryItem) {
		removeSet := map[string]bool{}
		for _, t := range remove {
			removeSet[t] = true
		}
		kept := item.Facets.Tags[:0:0]
		for _, t := range item.Facets.Tags {
			if !removeSet[t] {
				kept = append(kept, t)
			}
		}
		existing := map[string]bool{}
		for _, t := range kept {
			existing[t] = true
		}
		for _, t := range add {
			if !existing[t] {
				kept = append(kept, t)
				existing[t] = true
			}
		}
		item.Facets.Tags = kept
	})
}
