package main

import (
	"github.com/spf13/cobra"

	"github.com/llm-memory/engine/pkg/manager"
	"github.com/llm-memory/engine/pkg/types"
)

func scopeFlag(cmd *cobra.Command) types.Scope {
	s, _ := cmd.Flags().GetString("scope")
	return types.Scope(s)
}

var upsertCmd = &cobra.Command{
	Use:   "upsert",
	Short: "Create or update a memory item from a JSON request on stdin",
	RunE: func(cmd *cobra.Command, args []string) error {
		var in manager.UpsertInput
		if err := readJSONStdin(&in); err != nil {
			return err
		}
		return withManager(func(m *manager.MemoryManager) error {
			item, err := m.Upsert(in)
			if err != nil {
				return err
			}
			return printJSON(item)
		})
	},
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Fetch a memory item by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sc := scopeFlag(cmd)
		return withManager(func(m *manager.MemoryManager) error {
			item, err := m.Get(args[0], sc)
			if err != nil {
				return err
			}
			return printJSON(item)
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a memory item by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sc := scopeFlag(cmd)
		return withManager(func(m *manager.MemoryManager) error {
			deleted, err := m.Delete(args[0], sc)
			if err != nil {
				return err
			}
			return printJSON(map[string]bool{"deleted": deleted})
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List memory item summaries for a scope or cross-scope view",
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, _ := cmd.Flags().GetString("scope")
		limit, _ := cmd.Flags().GetInt("limit")
		if scope == "" {
			scope = string(types.ListScopeProject)
		}
		return withManager(func(m *manager.MemoryManager) error {
			items, err := m.List(types.ListScope(scope), limit)
			if err != nil {
				return err
			}
			return printJSON(items)
		})
	},
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run a ranked search over memory items from a JSON MemoryQuery on stdin",
	RunE: func(cmd *cobra.Command, args []string) error {
		var q manager.MemoryQuery
		if err := readJSONStdin(&q); err != nil {
			return err
		}
		return withManager(func(m *manager.MemoryManager) error {
			result, err := m.Query(q)
			if err != nil {
				return err
			}
			return printJSON(result)
		})
	},
}

var contextPackCmd = &cobra.Command{
	Use:   "context-pack",
	Short: "Run a query and assemble a budgeted context pack from a JSON MemoryQuery on stdin",
	RunE: func(cmd *cobra.Command, args []string) error {
		var q manager.MemoryQuery
		if err := readJSONStdin(&q); err != nil {
			return err
		}
		return withManager(func(m *manager.MemoryManager) error {
			pack, err := m.ContextPack(q)
			if err != nil {
				return err
			}
			return printJSON(pack)
		})
	},
}

var linkCmd = &cobra.Command{
	Use:   "link <id> <rel> <to>",
	Short: "Add a link from one item to another",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		sc := scopeFlag(cmd)
		return withManager(func(m *manager.MemoryManager) error {
			item, err := m.Link(args[0], types.LinkRel(args[1]), args[2], sc)
			if err != nil {
				return err
			}
			return printJSON(item)
		})
	},
}

var pinCmd = &cobra.Command{
	Use:   "pin <id> <true|false>",
	Short: "Set an item's pinned state",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sc := scopeFlag(cmd)
		pinned := args[1] == "true"
		return withManager(func(m *manager.MemoryManager) error {
			item, err := m.SetPinned(args[0], pinned, sc)
			if err != nil {
				return err
			}
			return printJSON(item)
		})
	},
}

var tagCmd = &cobra.Command{
	Use:   "tag <id>",
	Short: "Add and/or remove tags on an item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sc := scopeFlag(cmd)
		add, _ := cmd.Flags().GetStringSlice("add")
		remove, _ := cmd.Flags().GetStringSlice("remove")
		return withManager(func(m *manager.MemoryManager) error {
			item, err := m.Tag(args[0], add, remove, sc)
			if err != nil {
				return err
			}
			return printJSON(item)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{getCmd, deleteCmd, linkCmd, pinCmd, tagCmd} {
		c.Flags().String("scope", "", "Scope to search (global|local|committed); probes committed->local->global if omitted")
	}
	listCmd.Flags().String("scope", "", "List scope (global|local|committed|project|all), default project")
	listCmd.Flags().Int("limit", 0, "Maximum number of results (0 = unlimited)")
	tagCmd.Flags().StringSlice("add", nil, "Tags to add")
	tagCmd.Flags().StringSlice("remove", nil, "Tags to remove")
}
