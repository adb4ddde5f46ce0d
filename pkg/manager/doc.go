// Package manager implements the MemoryManager orchestrator: the single
// entry point for every memory engine operation (upsert/get/delete/list,
// query, context-pack assembly, sync, vectors, and maintenance), owning
// one store/index/vector-index/config/task-scheduler bundle per scope and
// a manager-wide query cache. See pkg/store, pkg/index, pkg/vectorindex,
// pkg/config and pkg/contextpack for the subsystems it wires together.
package manager
