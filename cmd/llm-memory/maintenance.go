package main

import (
	"github.com/spf13/cobra"

	"github.com/llm-memory/engine/pkg/manager"
	"github.com/llm-memory/engine/pkg/types"
)

var maintenanceCmd = &cobra.Command{
	Use:   "maintenance",
	Short: "Storage maintenance: rebuild, replay, compact, snapshot, verify",
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Reconstruct the catalog and BM25 index from durable item files",
	RunE: func(cmd *cobra.Command, args []string) error {
		listScope := types.ListScope(mustFlagString(cmd, "scope"))
		return withManager(func(m *manager.MemoryManager) error {
			return m.Rebuild(listScope)
		})
	},
}

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a scope's journal to rebuild the catalog and index",
	RunE: func(cmd *cobra.Command, args []string) error {
		sc := types.Scope(mustFlagString(cmd, "scope"))
		compact, _ := cmd.Flags().GetBool("compact")
		return withManager(func(m *manager.MemoryManager) error {
			return m.Replay(sc, compact)
		})
	},
}

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Compact a scope's journal into its snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		sc := types.Scope(mustFlagString(cmd, "scope"))
		return withManager(func(m *manager.MemoryManager) error {
			return m.Compact(sc)
		})
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Write a fresh snapshot marker for a scope",
	RunE: func(cmd *cobra.Command, args []string) error {
		sc := types.Scope(mustFlagString(cmd, "scope"))
		return withManager(func(m *manager.MemoryManager) error {
			return m.Snapshot(sc)
		})
	},
}

var compactSnapshotCmd = &cobra.Command{
	Use:   "compact-snapshot",
	Short: "Compact then snapshot a scope in one step",
	RunE: func(cmd *cobra.Command, args []string) error {
		sc := types.Scope(mustFlagString(cmd, "scope"))
		return withManager(func(m *manager.MemoryManager) error {
			return m.CompactSnapshot(sc)
		})
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check a scope's catalog checksum against its last snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		sc := types.Scope(mustFlagString(cmd, "scope"))
		return withManager(func(m *manager.MemoryManager) error {
			report, err := m.Verify(sc)
			if err != nil {
				return err
			}
			return printJSON(report)
		})
	},
}

func init() {
	rebuildCmd.Flags().String("scope", string(types.ListScopeAll), "List scope to rebuild (global|local|committed|project|all)")
	for _, c := range []*cobra.Command{replayCmd, compactCmd, snapshotCmd, compactSnapshotCmd, verifyCmd} {
		c.Flags().String("scope", string(types.ScopeLocal), "Scope (global|local|committed)")
	}
	replayCmd.Flags().Bool("compact", false, "Compact the journal before replaying")
	maintenanceCmd.AddCommand(rebuildCmd, replayCmd, compactCmd, snapshotCmd, compactSnapshotCmd, verifyCmd)
}
