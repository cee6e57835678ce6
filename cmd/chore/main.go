// Package main provides the chore CLI entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joss/chore/internal/logging"
)

var (
	version = "0.3.0"

	// Persistent flags shared by every command.
	flagCwd     string
	flagVerbose bool
	flagNoColor bool
	flagJSON    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "chore",
		Short: "Task runner with content-addressed caching for monorepos",
		Long: `chore runs package scripts across a monorepo in dependency order,
skipping work whose inputs haven't changed.

Tasks, their relationships, and their cache behavior are declared in
chore.yaml (or chore.json) at the workspace root. Results are stored
content-addressed under .chore/cache and replayed on repeat runs.

Use 'chore run <task>' to execute, 'chore plan <task>' to see what
would run and why.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetVerbose(flagVerbose)
			applyColorMode()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&flagCwd, "cwd", "C", "", "Run as if started in this directory")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Output as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: "run", Title: "Running tasks:"},
		&cobra.Group{ID: "inspect", Title: "Inspection:"},
	)

	run := runCmd()
	run.GroupID = "run"
	rootCmd.AddCommand(run)

	plan := planCmd()
	plan.GroupID = "run"
	rootCmd.AddCommand(plan)

	graph := graphCmd()
	graph.GroupID = "inspect"
	rootCmd.AddCommand(graph)

	cacheC := cacheCmd()
	cacheC.GroupID = "inspect"
	rootCmd.AddCommand(cacheC)

	runs := runsCmd()
	runs.GroupID = "inspect"
	rootCmd.AddCommand(runs)

	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "chore: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show chore version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("chore version %s\n", version)
		},
	}
}
