package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joss/chore/internal/render"
)

func runsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "Show recorded run history",
		Long: `List recent runs, or print the full JSON summary of one run.

Summaries live under .chore/runs/<run-id>.json.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if len(args) == 1 {
				data, err := os.ReadFile(filepath.Join(a.paths.RunsDir, args[0]+".json"))
				if err != nil {
					return fmt.Errorf("run %s: %w", args[0], err)
				}
				fmt.Print(string(data))
				return nil
			}

			idx := a.cache.Index()
			if idx == nil {
				return fmt.Errorf("cache index unavailable under %s", a.paths.CacheDir)
			}
			runs, err := idx.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if flagJSON {
				return printJSON(runs)
			}
			fmt.Print(render.New(pretty()).Runs(runs))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Runs to show")
	return cmd
}
