package main

import (
	"github.com/spf13/cobra"

	"github.com/llm-memory/engine/pkg/manager"
	"github.com/llm-memory/engine/pkg/types"
)

var vectorsCmd = &cobra.Command{
	Use:   "vectors",
	Short: "Vector index operations: set, remove, bulk and jsonl import",
}

type vectorSetRequest struct {
	ID     string    `json:"id"`
	Vector []float64 `json:"vector"`
}

var vectorsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set an item's vector from a JSON {id, vector} request on stdin",
	RunE: func(cmd *cobra.Command, args []string) error {
		sc := types.Scope(mustFlagString(cmd, "scope"))
		var req vectorSetRequest
		if err := readJSONStdin(&req); err != nil {
			return err
		}
		return withManager(func(m *manager.MemoryManager) error {
			return m.VectorSet(sc, req.ID, req.Vector)
		})
	},
}

var vectorsRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove an item's vector",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sc := types.Scope(mustFlagString(cmd, "scope"))
		return withManager(func(m *manager.MemoryManager) error {
			return m.VectorRemove(sc, args[0])
		})
	},
}

type bulkImportRequest struct {
	Items []manager.BulkVector `json:"items"`
	Dim   int                  `json:"dim"`
}

var vectorsImportBulkCmd = &cobra.Command{
	Use:   "import-bulk",
	Short: "Import many vectors from a JSON {items, dim} request on stdin",
	RunE: func(cmd *cobra.Command, args []string) error {
		sc := types.Scope(mustFlagString(cmd, "scope"))
		var req bulkImportRequest
		if err := readJSONStdin(&req); err != nil {
			return err
		}
		return withManager(func(m *manager.MemoryManager) error {
			return m.VectorImportBulk(sc, req.Items, req.Dim)
		})
	},
}

var vectorsImportJsonlCmd = &cobra.Command{
	Use:   "import-jsonl <path>",
	Short: "Import vectors from a JSONL file of {id, vector} lines",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sc := types.Scope(mustFlagString(cmd, "scope"))
		dim, _ := cmd.Flags().GetInt("dim")
		return withManager(func(m *manager.MemoryManager) error {
			imported, skipped, err := m.VectorImportJsonl(sc, args[0], dim)
			if err != nil {
				return err
			}
			return printJSON(map[string]int{"imported": imported, "skipped": skipped})
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{vectorsSetCmd, vectorsRemoveCmd, vectorsImportBulkCmd, vectorsImportJsonlCmd} {
		c.Flags().String("scope", string(types.ScopeLocal), "Scope (global|local|committed)")
	}
	vectorsImportJsonlCmd.Flags().Int("dim", 0, "Expected vector dimension (0 infers from the first valid line)")
	vectorsCmd.AddCommand(vectorsSetCmd, vectorsRemoveCmd, vectorsImportBulkCmd, vectorsImportJsonlCmd)
}
