// Package manager implements the MemoryManager orchestrator described in
// SPEC_FULL.md §4.5: it owns one scopeState (store, BM25 index, vector
// index, config, background tasks) per scope, a manager-wide query cache,
// and exposes the full upsert/get/delete/list/query/link/tag/pin,
// maintenance, sync, and vector operation surface. Its shape (a struct
// owning per-subsystem components, built by a constructor that wires
// everything together and torn down by Shutdown) follows the teacher's
// pkg/manager.Manager.
package manager

import (
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/llm-memory/engine/pkg/config"
	"github.com/llm-memory/engine/pkg/index"
	"github.com/llm-memory/engine/pkg/log"
	"github.com/llm-memory/engine/pkg/memerr"
	"github.com/llm-memory/engine/pkg/metrics"
	"github.com/llm-memory/engine/pkg/querycache"
	"github.com/llm-memory/engine/pkg/scope"
	"github.com/llm-memory/engine/pkg/store"
	"github.com/llm-memory/engine/pkg/tasks"
	"github.com/llm-memory/engine/pkg/types"
	"github.com/llm-memory/engine/pkg/vectorindex"
)

// scopeState bundles every per-scope subsystem.
type scopeState struct {
	scope   types.Scope
	dir     string
	store   *store.Store
	index   *index.Index
	vectors *vectorindex.Index
	cfg     *config.Store
	tasks   *tasks.Scheduler
}

func toIndexWeights(w config.FieldWeights) index.FieldWeights {
	return index.FieldWeights{Title: w.Title, Text: w.Text, Code: w.Code, Tag: w.Tag}
}

// MemoryManager is the single entry point for every memory engine
// operation. One instance owns the three scope directories resolved for
// a given working directory.
type MemoryManager struct {
	ScopeInfo scope.Info
	scopes map[types.Scope]*scopeState
	cache  *querycache.Cache
}

// New resolves scope directories for wd (using homeDir for global/local
// roots), opens every scope's subsystems, recovers them concurrently, and
// starts background maintenance tasks.
func New(wd, homeDir string) (*MemoryManager, error) {
	info, err := scope.Resolve(wd, homeDir)
	if err != nil {
		return nil, err
	}

	m := &MemoryManager{ScopeInfo: info, scopes: map[types.Scope]*scopeState{}}

	for _, sc := range []types.Scope{types.ScopeGlobal, types.ScopeLocal, types.ScopeCommitted} {
		st, err := m.openScope(sc, info.Dir(sc))
		if err != nil {
			return nil, err
		}
		m.scopes[sc] = st
	}

	if err := m.recoverAll(); err != nil {
		return nil, err
	}

	cacheSize := m.scopes[types.ScopeLocal].cfg.Current().Cache.Size
	cache, err := querycache.New(cacheSize)
	if err != nil {
		return nil, memerr.Wrap(memerr.IO, err, "create query cache")
	}
	m.cache = cache

	for _, st := range m.scopes {
		m.startBackgroundTasks(st)
		m.registerHealth(st)
	}

	return m, nil
}

func (m *MemoryManager) openScope(sc types.Scope, dir string) (*scopeState, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, memerr.Wrap(memerr.IO, err, "create scope dir %s", dir)
	}
	s, err := store.Open(dir, sc)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(filepath.Join(dir, "config.json"))
	if err != nil {
		return nil, err
	}
	idx, err := index.Open(s.IndexDir(), toIndexWeights(cfg.Current().Ranking.Weights))
	if err != nil {
		return nil, err
	}
	vecs, err := vectorindex.Open(s.IndexDir())
	if err != nil {
		return nil, err
	}

	st := &scopeState{scope: sc, dir: dir, store: s, index: idx, vectors: vecs, cfg: cfg, tasks: tasks.New()}

	s.OnCompactionDue = func(sstore *store.Store) {
		st.tasks.Debounce(0, func() error {
			return m.compactScopeState(st)
		})
	}

	if err := cfg.Watch(func(newCfg config.Config) {
		idx.SetWeights(toIndexWeights(newCfg.Ranking.Weights))
		if m.cache != nil {
			m.cache.Invalidate()
		}
	}); err != nil {
		return nil, err
	}

	return st, nil
}

func (m *MemoryManager) recoverAll() error {
	var g errgroup.Group
	for _, st := range m.scopes {
		st := st
		g.Go(func() error {
			return st.store.Recover()
		})
	}
	return g.Wait()
}

func (m *MemoryManager) startBackgroundTasks(st *scopeState) {
	cfg := st.cfg.Current()
	flushInterval := time.Duration(cfg.Maintenance.IndexFlush.MaxMs) * time.Millisecond
	if flushInterval <= 0 {
		flushInterval = 500 * time.Millisecond
	}
	st.tasks.Every("index-flush", flushInterval, func() error {
		if st.index.PendingOps() == 0 {
			return nil
		}
		timer := metrics.NewTimer()
		defer timer.ObserveDuration(metrics.IndexFlushDuration)
		return st.index.Flush()
	})

	compactInterval := time.Duration(cfg.Maintenance.CompactIntervalMs) * time.Millisecond
	if compactInterval <= 0 {
		compactInterval = 24 * time.Hour
	}
	st.tasks.Every("compact", compactInterval, func() error {
		return m.compactScopeState(st)
	})

	st.tasks.Start()
}

func (m *MemoryManager) registerHealth(st *scopeState) {
	metrics.RegisterComponent("store:"+string(st.scope), true, "recovered")
}

// ItemCounts satisfies metrics.Source.
func (m *MemoryManager) ItemCounts() map[string]int {
	counts := map[string]int{}
	for sc, st := range m.scopes {
		catalog, err := st.store.ReadCatalog()
		if err != nil {
			continue
		}
		counts[string(sc)] = len(catalog)
	}
	return counts
}

// QueryCacheLen satisfies metrics.Source.
func (m *MemoryManager) QueryCacheLen() int {
	return m.cache.Len()
}

func (m *MemoryManager) scopeState(sc types.Scope) (*scopeState, error) {
	st, ok := m.scopes[sc]
	if !ok {
		return nil, memerr.New(memerr.NotFound, "unknown scope", map[string]any{"scope": sc})
	}
	return st, nil
}

// Shutdown stops every scope's background tasks and flushes any pending
// index updates, following the teacher's Manager.Shutdown ordering of
// "stop background work, then flush/close storage".
func (m *MemoryManager) Shutdown() error {
	for _, st := range m.scopes {
		st.tasks.Stop()
		if st.index.PendingOps() > 0 {
			if err := st.index.Flush(); err != nil {
				log.WithScope(string(st.scope)).Error().Err(err).Msg("failed to flush index on shutdown")
			}
		}
		if err := st.cfg.Close(); err != nil {
			log.WithScope(string(st.scope)).Warn().Err(err).Msg("failed to close config watcher")
		}
	}
	return nil
}
