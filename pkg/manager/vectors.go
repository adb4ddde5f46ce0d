package manager

import (
	"github.com/llm-memory/engine/pkg/types"
	"github.com/llm-memory/engine/pkg/vectorindex"
)

// VectorSet stores vec under id in the given scope's vector index.
func (m *MemoryManager) VectorSet(sc types.Scope, id string, vec []float64) error {
	st, err := m.scopeState(sc)
	if err != nil {
		return err
	}
	if err := st.vectors.Set(id, vec); err != nil {
		return err
	}
	m.cache.Invalidate()
	return nil
}

// VectorRemove deletes id's vector from the given scope's vector index.
func (m *MemoryManager) VectorRemove(sc types.Scope, id string) error {
	st, err := m.scopeState(sc)
	if err != nil {
		return err
	}
	if err := st.vectors.Remove(id); err != nil {
		return err
	}
	m.cache.Invalidate()
	return nil
}

// BulkVector is one id/vector pair for VectorImportBulk.
type BulkVector struct {
	ID     string
	Vector []float64
}

// VectorImportBulk writes many vectors to sc's vector index in one
// persisted batch.
func (m *MemoryManager) VectorImportBulk(sc types.Scope, items []BulkVector, dim int) error {
	st, err := m.scopeState(sc)
	if err != nil {
		return err
	}
	bulk := make([]vectorindex.BulkItem, len(items))
	for i, it := range items {
		bulk[i] = vectorindex.BulkItem{ID: it.ID, Vector: it.Vector}
	}
	if err := st.vectors.SetBulk(bulk, dim); err != nil {
		return err
	}
	m.cache.Invalidate()
	return nil
}

// VectorImportJsonl bulk-loads {"id": ..., "vector": [...]} lines from a
// JSONL file into sc's vector index, skipping lines whose dimension
// disagrees with dim (0 infers it from the first valid line).
func (m *MemoryManager) VectorImportJsonl(sc types.Scope, path string, dim int) (imported, skipped int, err error) {
	st, err := m.scopeState(sc)
	if err != nil {
		return 0, 0, err
	}
	imported, skipped, err = st.vectors.ImportJsonl(path, dim)
	if err == nil {
		m.cache.Invalidate()
	}
	return imported, skipped, err
}
