package manager

import (
	"fmt"
	"time"

	"github.com/llm-memory/engine/pkg/log"
	"github.com/llm-memory/engine/pkg/memerr"
	"github.com/llm-memory/engine/pkg/metrics"
	"github.com/llm-memory/engine/pkg/types"
)

// checkSensitivity enforces the committed-scope sensitivity ceiling: items
// written to committed memory may not exceed the scope's configured
// maximum sensitivity rank (team by default, per SPEC_FULL.md §4.5).
func (m *MemoryManager) checkSensitivity(st *scopeState, sensitivity types.Sensitivity) error {
	ceiling := types.Sensitivity(st.cfg.Current().Sharing.Sensitivity)
	if ceiling == "" {
		ceiling = types.SensitivityTeam
	}
	if sensitivity.Rank() > ceiling.Rank() {
		metrics.SensitivityRejectionsTotal.WithLabelValues(string(st.scope)).Inc()
		return memerr.New(memerr.SensitivityPolicy, "item sensitivity exceeds committed-scope ceiling", map[string]any{
			"sensitivity": sensitivity,
			"ceiling":     ceiling,
		})
	}
	return nil
}

// compactScopeState runs a journal compaction for st, then rebuilds the
// BM25 index from the post-compaction items so postings never drift from
// the durable catalog. Invoked both from the store's size/time-triggered
// OnCompactionDue hook and from the periodic "compact" task.
func (m *MemoryManager) compactScopeState(st *scopeState) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.CompactionDuration)

	if err := st.store.Compact(); err != nil {
		return err
	}
	items, err := st.store.ListItems()
	if err != nil {
		return err
	}
	if err := st.index.RebuildFromItems(items); err != nil {
		return err
	}
	metrics.CompactionsTotal.WithLabelValues(string(st.scope)).Inc()
	log.WithScope(string(st.scope)).Info().Int("items", len(items)).Msg("compaction complete")
	return nil
}

// Compact runs an on-demand compaction for the named scope.
func (m *MemoryManager) Compact(sc types.Scope) error {
	st, err := m.scopeState(sc)
	if err != nil {
		return err
	}
	return m.compactScopeState(st)
}

// Rebuild reconstructs the catalog, BM25 index, and a best-effort vector
// index from each item's durable file, for every scope matched by
// listScope (global/local/committed/project/all).
func (m *MemoryManager) Rebuild(listScope types.ListScope) error {
	scopes, err := m.scopesForListScope(listScope)
	if err != nil {
		return err
	}
	for _, sc := range scopes {
		st, err := m.scopeState(sc)
		if err != nil {
			return err
		}
		if err := st.store.RebuildCatalog(); err != nil {
			return err
		}
		items, err := st.store.ListItems()
		if err != nil {
			return err
		}
		if err := st.index.RebuildFromItems(items); err != nil {
			return err
		}
		log.WithScope(string(sc)).Info().Int("items", len(items)).Msg("rebuild complete")
	}
	m.cache.Invalidate()
	return nil
}

func (m *MemoryManager) scopesForListScope(listScope types.ListScope) ([]types.Scope, error) {
	switch listScope {
	case types.ListScopeGlobal:
		return []types.Scope{types.ScopeGlobal}, nil
	case types.ListScopeLocal:
		return []types.Scope{types.ScopeLocal}, nil
	case types.ListScopeCommitted:
		return []types.Scope{types.ScopeCommitted}, nil
	case types.ListScopeProject:
		return []types.Scope{types.ScopeCommitted, types.ScopeLocal}, nil
	case types.ListScopeAll:
		return []types.Scope{types.ScopeCommitted, types.ScopeLocal, types.ScopeGlobal}, nil
	default:
		return nil, memerr.New(memerr.NotFound, "unknown list scope", map[string]any{"scope": listScope})
	}
}

// Replay re-applies the journal since the last snapshot (or, if compact is
// true, the full journal after a compaction) to rebuild the catalog and
// BM25 index, exercising the same recovery path as crash startup.
func (m *MemoryManager) Replay(sc types.Scope, compact bool) error {
	st, err := m.scopeState(sc)
	if err != nil {
		return err
	}
	if compact {
		if err := st.store.Compact(); err != nil {
			return err
		}
	}
	if err := st.store.Recover(); err != nil {
		return err
	}
	items, err := st.store.ListItems()
	if err != nil {
		return err
	}
	if err := st.index.RebuildFromItems(items); err != nil {
		return err
	}
	m.cache.Invalidate()
	return nil
}

// Snapshot forces a snapshot-meta write for the named scope, recording the
// current journal high-water mark and catalog checksum.
func (m *MemoryManager) Snapshot(sc types.Scope) error {
	st, err := m.scopeState(sc)
	if err != nil {
		return err
	}
	checksum, err := st.store.ComputeChecksum()
	if err != nil {
		return err
	}
	return st.store.WriteSnapshotMeta(types.SnapshotMeta{LastTS: time.Now().UTC(), Checksum: checksum})
}

// VerifyReport is the result of Verify for a single scope.
type VerifyReport struct {
	Scope      types.Scope `json:"scope"`
	Healthy    bool        `json:"healthy"`
	ItemCount  int         `json:"itemCount"`
	Checksum   string      `json:"checksum"`
	SnapshotOk bool        `json:"snapshotOk"`
	Message    string      `json:"message,omitempty"`
}

// Verify recomputes the scope's catalog checksum and compares it against
// the last recorded state-ok checksum, reporting drift without mutating
// anything.
func (m *MemoryManager) Verify(sc types.Scope) (VerifyReport, error) {
	st, err := m.scopeState(sc)
	if err != nil {
		return VerifyReport{}, err
	}
	catalog, err := st.store.ReadCatalog()
	if err != nil {
		return VerifyReport{}, err
	}
	checksum, err := st.store.ComputeChecksum()
	if err != nil {
		return VerifyReport{}, err
	}
	stateOk, ok, err := st.store.ReadStateOk()
	if err != nil {
		return VerifyReport{}, err
	}
	report := VerifyReport{Scope: sc, ItemCount: len(catalog), Checksum: checksum}
	if !ok {
		report.Healthy = true
		report.Message = "no prior state-ok marker; treating as fresh"
		return report, nil
	}
	report.SnapshotOk = stateOk.Checksum == checksum
	report.Healthy = report.SnapshotOk
	if !report.SnapshotOk {
		report.Message = fmt.Sprintf("checksum drift: state-ok=%s current=%s", stateOk.Checksum, checksum)
	}
	metrics.UpdateComponent("store:"+string(sc), report.Healthy, report.Message)
	return report, nil
}

// CompactSnapshot runs a compaction and then writes a fresh snapshot
// marker in one step, used by maintenance windows that want both at once.
func (m *MemoryManager) CompactSnapshot(sc types.Scope) error {
	if err := m.Compact(sc); err != nil {
		return err
	}
	return m.Snapshot(sc)
}
