/*
Package metrics provides Prometheus instrumentation for the memory engine:
item counts per scope, upsert/delete/query counters, query and compaction
latency histograms, and a Collector that polls the manager on an interval
and republishes its counts as gauges.

A generic component health registry (HealthChecker, RegisterComponent,
GetHealth) is also carried here from the teacher's pkg/metrics; the
manager registers each scope's store as a component after startup
recovery, so `verify` can surface per-scope health without a separate
package.
*/
package metrics
