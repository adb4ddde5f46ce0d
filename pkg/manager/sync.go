package manager

import (
	"github.com/jinzhu/copier"

	"github.com/llm-memory/engine/pkg/config"
	"github.com/llm-memory/engine/pkg/scope"
	"github.com/llm-memory/engine/pkg/types"
)

// ProjectInfo summarizes the resolved scope directories for the current
// working directory.
type ProjectInfo struct {
	RepoID             string `json:"repoId"`
	Root               string `json:"root"`
	Branch             string `json:"branch,omitempty"`
	Remote             string `json:"remote,omitempty"`
	HasCommittedMemory bool   `json:"hasCommittedMemory"`
}

// Info reports the resolved project scope metadata.
func (m *MemoryManager) Info() ProjectInfo {
	return ProjectInfo{
		RepoID:             m.ScopeInfo.RepoID,
		Root:               m.ScopeInfo.Root,
		Branch:             m.ScopeInfo.Branch,
		Remote:             m.ScopeInfo.Remote,
		HasCommittedMemory: m.ScopeInfo.HasCommittedMemory,
	}
}

// InitCommitted creates the .llm-memory/ directory at the project root and
// marks it as tracked, so subsequent writes to the committed scope land
// under version control.
func (m *MemoryManager) InitCommitted() error {
	if err := scope.InitCommittedMemory(m.ScopeInfo.Root); err != nil {
		return err
	}
	m.ScopeInfo.HasCommittedMemory = true
	return nil
}

// ConfigGet returns the current typed config for sc.
func (m *MemoryManager) ConfigGet(sc types.Scope) (config.Config, error) {
	st, err := m.scopeState(sc)
	if err != nil {
		return config.Config{}, err
	}
	return st.cfg.Current(), nil
}

// ConfigSet replaces sc's config wholesale and persists it; the fsnotify
// watcher picks up the write and fires the same reload callbacks as an
// external edit.
func (m *MemoryManager) ConfigSet(sc types.Scope, cfg config.Config) error {
	st, err := m.scopeState(sc)
	if err != nil {
		return err
	}
	return st.cfg.Set(cfg)
}

// SyncStatus compares the local and committed catalogs for the current
// project, classifying each id into one of four buckets.
type SyncStatus struct {
	OnlyLocal      []string `json:"onlyLocal"`
	OnlyCommitted  []string `json:"onlyCommitted"`
	LocalNewer     []string `json:"localNewer"`
	CommittedNewer []string `json:"committedNewer"`
}

// SyncStatus compares the local and committed scopes' catalogs.
func (m *MemoryManager) SyncStatus() (SyncStatus, error) {
	localSt, err := m.scopeState(types.ScopeLocal)
	if err != nil {
		return SyncStatus{}, err
	}
	committedSt, err := m.scopeState(types.ScopeCommitted)
	if err != nil {
		return SyncStatus{}, err
	}
	localCatalog, err := localSt.store.ReadCatalog()
	if err != nil {
		return SyncStatus{}, err
	}
	committedCatalog, err := committedSt.store.ReadCatalog()
	if err != nil {
		return SyncStatus{}, err
	}

	var status SyncStatus
	for id, local := range localCatalog {
		committed, ok := committedCatalog[id]
		if !ok {
			status.OnlyLocal = append(status.OnlyLocal, id)
			continue
		}
		if local.UpdatedAt.After(committed.UpdatedAt) {
			status.LocalNewer = append(status.LocalNewer, id)
		} else if committed.UpdatedAt.After(local.UpdatedAt) {
			status.CommittedNewer = append(status.CommittedNewer, id)
		}
	}
	for id := range committedCatalog {
		if _, ok := localCatalog[id]; !ok {
			status.OnlyCommitted = append(status.OnlyCommitted, id)
		}
	}
	return status, nil
}

// SkippedMerge names an id SyncMerge declined to copy into committed
// memory, and why.
type SkippedMerge struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// SyncMerge copies the given ids (or, if ids is empty, every id reported
// by SyncStatus as onlyLocal or localNewer) from local into committed
// memory, deep-copying each item with jinzhu/copier so mutating the
// committed copy never touches the local original. Each id is judged on
// its own: one that exceeds the committed-scope sensitivity ceiling (or
// otherwise fails to write) is recorded in skipped and the rest of the
// batch still proceeds.
func (m *MemoryManager) SyncMerge(ids []string) (merged []string, skipped []SkippedMerge, err error) {
	localSt, err := m.scopeState(types.ScopeLocal)
	if err != nil {
		return nil, nil, err
	}
	committedSt, err := m.scopeState(types.ScopeCommitted)
	if err != nil {
		return nil, nil, err
	}

	if len(ids) == 0 {
		status, err := m.SyncStatus()
		if err != nil {
			return nil, nil, err
		}
		ids = append(append([]string(nil), status.OnlyLocal...), status.LocalNewer...)
	}

	for _, id := range ids {
		item, err := localSt.store.ReadItem(id)
		if err != nil {
			skipped = append(skipped, SkippedMerge{ID: id, Reason: err.Error()})
			continue
		}
		if item == nil {
			skipped = append(skipped, SkippedMerge{ID: id, Reason: "not found in local scope"})
			continue
		}
		var copied types.MemoryItem
		if err := copier.CopyWithOption(&copied, item, copier.Option{DeepCopy: true}); err != nil {
			skipped = append(skipped, SkippedMerge{ID: id, Reason: err.Error()})
			continue
		}
		copied.Scope = types.ScopeCommitted

		if err := m.checkSensitivity(committedSt, copied.Security.Sensitivity); err != nil {
			skipped = append(skipped, SkippedMerge{ID: id, Reason: err.Error()})
			continue
		}

		if _, err := m.Upsert(UpsertInput{
			ID:          copied.ID,
			Type:        copied.Type,
			Scope:       types.ScopeCommitted,
			Title:       copied.Title,
			Text:        copied.Text,
			Code:        copied.Code,
			Language:    copied.Language,
			Facets:      copied.Facets,
			Context:     copied.Context,
			Sensitivity: copied.Security.Sensitivity,
			Confidence:  &copied.Quality.Confidence,
			Pinned:      &copied.Quality.Pinned,
			TTLDays:     copied.Quality.TTLDays,
			Links:       copied.Links,
		}); err != nil {
			skipped = append(skipped, SkippedMerge{ID: id, Reason: err.Error()})
			continue
		}
		merged = append(merged, id)
	}
	return merged, skipped, nil
}
