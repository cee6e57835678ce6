package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joss/chore/internal/cache"
	"github.com/joss/chore/internal/render"
)

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the local artifact cache",
	}

	var limit int
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show cache totals and recent entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			idx := a.cache.Index()
			if idx == nil {
				return fmt.Errorf("cache index unavailable under %s", a.paths.CacheDir)
			}

			count, total, err := idx.Stats(cmd.Context())
			if err != nil {
				return err
			}
			entries, err := idx.Entries(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if flagJSON {
				return printJSON(map[string]any{
					"entries":    count,
					"totalBytes": total,
					"recent":     entries,
				})
			}
			fmt.Print(render.New(pretty()).CacheStatus(count, total, entries))
			return nil
		},
	}
	statusCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Recent entries to show")

	cleanCmd := &cobra.Command{
		Use:   "clean",
		Short: "Delete all locally cached artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := cache.NewLocalStore(a.paths.CacheDir).Clean(); err != nil {
				return err
			}
			if idx := a.cache.Index(); idx != nil {
				if err := idx.Clean(cmd.Context()); err != nil {
					return err
				}
			}
			fmt.Println("Cache cleaned")
			return nil
		},
	}

	cmd.AddCommand(statusCmd, cleanCmd)
	return cmd
}
