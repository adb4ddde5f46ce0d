/*
Package types defines the core data structures of the memory engine.

This package contains the durable data model used throughout the memory
engine: memory items, their catalog projection, journal entries, and the
query/result shapes exchanged between the manager and its callers. These
types are used by pkg/store, pkg/index, pkg/vectorindex, pkg/manager, and
pkg/contextpack for persistence, ranking, and assembly.

# Architecture

The types package is the foundation of the memory engine's data model. It
defines:

  - MemoryItem: the durable unit stored per scope
  - MemoryItemSummary: the small catalog projection used for listing and ranking
  - JournalEntry: the append-only log record backing crash recovery
  - Scope: the three independent storage domains (global, local, committed)
  - Query/result shapes consumed by the manager's query planner

# Design Patterns

Enumeration Pattern:

	All enums use typed string constants for safety and clarity:
	  type ItemType string
	  const (
	      ItemTypeSnippet ItemType = "snippet"
	      ItemTypePattern ItemType = "pattern"
	  )

Optional Fields:

	Optional configurations use pointers so a missing value and a zero
	value are distinguishable:
	  - *Range: nil = no line range
	  - *float64 (ttlDays): nil = no expiry

# Thread Safety

All types in this package are designed to be:
  - Read-safe: can be read concurrently from multiple goroutines
  - Write-unsafe: mutations must be synchronized by callers

The storage layer (pkg/store) handles all synchronization for persisted
state; in-memory copies handed to callers should be treated as snapshots.

# See Also

  - pkg/store for persistence layer
  - pkg/manager for orchestration logic
  - SPEC_FULL.md §3 for the full data model rationale
*/
package types
