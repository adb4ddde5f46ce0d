// Command llm-memory is a thin cobra CLI over *manager.MemoryManager: one
// subcommand per operation, JSON in (stdin, where an operation takes a
// structured payload) and JSON out (stdout), grounded on the teacher's
// cmd/warren command tree shape.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/llm-memory/engine/pkg/log"
	"github.com/llm-memory/engine/pkg/manager"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "llm-memory",
	Short:   "Local-first memory engine for LLM coding assistants",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("llm-memory version %s (%s)\n", Version, Commit))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(upsertCmd, getCmd, deleteCmd, listCmd, queryCmd, linkCmd, tagCmd, pinCmd, contextPackCmd)
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(vectorsCmd)
	rootCmd.AddCommand(maintenanceCmd)
	rootCmd.AddCommand(serveCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})
}

// openManager resolves scopes for the current working directory and opens
// every subsystem, recovering from any prior crash before returning.
func openManager() (*manager.MemoryManager, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return manager.New(wd, home)
}

// printJSON writes v to stdout as indented JSON, exiting non-zero on a
// marshal failure (which should never happen for our own result types).
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readJSONStdin decodes a JSON request body from stdin into v. Used by
// subcommands whose input is too structured for flags alone.
func readJSONStdin(v any) error {
	dec := json.NewDecoder(os.Stdin)
	return dec.Decode(v)
}

func withManager(fn func(m *manager.MemoryManager) error) error {
	m, err := openManager()
	if err != nil {
		return err
	}
	defer func() {
		if shutErr := m.Shutdown(); shutErr != nil {
			log.Logger.Warn().Err(shutErr).Msg("shutdown error")
		}
	}()
	return fn(m)
}
