// Command tutorgrid runs the guidance dispatcher: a supervisor that routes
// requests to worker agents, and the assignment-coach worker itself.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "tutorgrid",
	Short: "tutorgrid - supervisor/worker guidance dispatcher",
	Long: `tutorgrid routes guidance requests from a supervisor to pluggable worker agents.
Each worker answers from a semantic cache when it can, and otherwise computes a
draft with deterministic tools, optionally enriches it with a generative model,
and caches the result.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "tutorgrid", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "tutorgrid.yaml", "config file path")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
