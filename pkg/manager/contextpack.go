package manager

import (
	"github.com/llm-memory/engine/pkg/contextpack"
	"github.com/llm-memory/engine/pkg/types"
)

// ContextPack runs q through Query, then assembles the result into a
// budgeted context pack using the querying scope's contextPack config
// (caps, order, and default snippet window).
func (m *MemoryManager) ContextPack(q MemoryQuery) (contextpack.Pack, error) {
	result, err := m.Query(q)
	if err != nil {
		return contextpack.Pack{}, err
	}

	listScope := q.Scope
	if listScope == "" {
		listScope = types.ListScopeProject
	}
	primaryScope := types.ScopeLocal
	if listScope == types.ListScopeGlobal {
		primaryScope = types.ScopeGlobal
	} else if listScope == types.ListScopeCommitted {
		primaryScope = types.ScopeCommitted
	}
	st, err := m.scopeState(primaryScope)
	if err != nil {
		return contextpack.Pack{}, err
	}
	cfg := st.cfg.Current()

	items := make([]*types.MemoryItem, 0, len(result.Items))
	for _, ri := range result.Items {
		items = append(items, ri.Item)
	}

	var window *contextpack.Window
	if q.SnippetWindowBefore != 0 || q.SnippetWindowAfter != 0 {
		window = &contextpack.Window{Before: q.SnippetWindowBefore, After: q.SnippetWindowAfter}
	} else if cfg.ContextPack.Window.Before != 0 || cfg.ContextPack.Window.After != 0 {
		window = &contextpack.Window{Before: cfg.ContextPack.Window.Before, After: cfg.ContextPack.Window.After}
	}

	return contextpack.Assemble(contextpack.Input{
		Items:               items,
		Scope:               listScope,
		MaxChars:            q.MaxChars,
		TokenBudget:         q.TokenBudget,
		SnippetWindow:       window,
		SnippetLanguages:    q.SnippetLanguages,
		SnippetFilePatterns: q.SnippetFilePatterns,
		Caps:                cfg.ContextPack.Caps,
		Order:               cfg.ContextPack.Order,
	}), nil
}
