package main

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/llm-memory/engine/pkg/log"
	"github.com/llm-memory/engine/pkg/manager"
	"github.com/llm-memory/engine/pkg/metrics"
)

// serveCmd starts the manager and serves /metrics, /health, /ready for as
// long as the process runs, the same handler wiring as the teacher's
// manager/worker metrics server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the memory engine and serve Prometheus metrics and health endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("metrics-addr")
		return withManager(func(m *manager.MemoryManager) error {
			collector := metrics.NewCollector(m)
			collector.Start()
			defer collector.Stop()

			http.Handle("/metrics", metrics.Handler())
			http.Handle("/health", metrics.HealthHandler())
			http.Handle("/ready", metrics.ReadyHandler())

			log.Logger.Info().Str("addr", addr).Msg("serving metrics and health endpoints")
			return http.ListenAndServe(addr, nil)
		})
	},
}

func init() {
	serveCmd.Flags().String("metrics-addr", ":9090", "Address to serve /metrics, /health, /ready on")
}
