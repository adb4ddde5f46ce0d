package main

import (
	"github.com/spf13/cobra"

	"github.com/llm-memory/engine/pkg/config"
	"github.com/llm-memory/engine/pkg/manager"
	"github.com/llm-memory/engine/pkg/types"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Project-level operations: info, init, config, sync",
}

var projectInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the resolved scope directories for the current project",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(m *manager.MemoryManager) error {
			return printJSON(m.Info())
		})
	},
}

var projectInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize committed memory (.llm-memory/) at the project root",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(m *manager.MemoryManager) error {
			if err := m.InitCommitted(); err != nil {
				return err
			}
			return printJSON(m.Info())
		})
	},
}

var projectConfigGetCmd = &cobra.Command{
	Use:   "config-get",
	Short: "Print the current config for a scope",
	RunE: func(cmd *cobra.Command, args []string) error {
		sc := types.Scope(mustFlagString(cmd, "scope"))
		return withManager(func(m *manager.MemoryManager) error {
			cfg, err := m.ConfigGet(sc)
			if err != nil {
				return err
			}
			return printJSON(cfg)
		})
	},
}

var projectConfigSetCmd = &cobra.Command{
	Use:   "config-set",
	Short: "Replace a scope's config from a JSON Config on stdin",
	RunE: func(cmd *cobra.Command, args []string) error {
		sc := types.Scope(mustFlagString(cmd, "scope"))
		var cfg config.Config
		if err := readJSONStdin(&cfg); err != nil {
			return err
		}
		return withManager(func(m *manager.MemoryManager) error {
			return m.ConfigSet(sc, cfg)
		})
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "sync-status",
	Short: "Compare local and committed catalogs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(m *manager.MemoryManager) error {
			status, err := m.SyncStatus()
			if err != nil {
				return err
			}
			return printJSON(status)
		})
	},
}

var syncMergeCmd = &cobra.Command{
	Use:   "sync-merge [ids...]",
	Short: "Copy local items into committed memory (all pending items if no ids given)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(m *manager.MemoryManager) error {
			merged, skipped, err := m.SyncMerge(args)
			if err != nil {
				return err
			}
			return printJSON(map[string]any{"merged": merged, "skipped": skipped})
		})
	},
}

func mustFlagString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

func init() {
	for _, c := range []*cobra.Command{projectConfigGetCmd, projectConfigSetCmd} {
		c.Flags().String("scope", string(types.ScopeLocal), "Scope (global|local|committed)")
	}
	projectCmd.AddCommand(projectInfoCmd, projectInitCmd, projectConfigGetCmd, projectConfigSetCmd, syncStatusCmd, syncMergeCmd)
}
