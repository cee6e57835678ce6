package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joss/chore/internal/render"
	"github.com/joss/chore/internal/runner"
)

func planCmd() *cobra.Command {
	var (
		filter  []string
		envMode string
	)

	cmd := &cobra.Command{
		Use:   "plan <task>...",
		Short: "Show what a run would do without executing",
		Long: `Build and hash the task graph, check the cache for every node, and
report the result. Nothing executes and nothing is written.

Examples:
  chore plan build
  chore plan build --filter=web --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			plan, err := a.runner.Plan(cmd.Context(), runner.Options{
				Tasks:   args,
				Filter:  filter,
				EnvMode: envMode,
				DryRun:  true,
			})
			if err != nil {
				return err
			}

			if flagJSON {
				return printJSON(planReport(plan))
			}
			fmt.Print(render.New(pretty()).Plan(plan))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&filter, "filter", nil, "Limit to these packages (and their dependencies)")
	cmd.Flags().StringVar(&envMode, "env-mode", "", "Override env mode: strict or loose")

	return cmd
}

// plannedTaskJSON is the machine-readable dry-run shape.
type plannedTaskJSON struct {
	ID           string   `json:"id"`
	Package      string   `json:"package"`
	Task         string   `json:"task"`
	Hash         string   `json:"hash"`
	Command      string   `json:"command"`
	CacheStatus  string   `json:"cacheStatus"`
	EnvVars      []string `json:"envVars,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
	Dependents   []string `json:"dependents,omitempty"`
}

type planJSON struct {
	GlobalHash  string            `json:"globalHash"`
	EnvMode     string            `json:"envMode"`
	Concurrency int               `json:"concurrency"`
	Tasks       []plannedTaskJSON `json:"tasks"`
	Warnings    []string          `json:"warnings,omitempty"`
}

func planReport(p *runner.Plan) planJSON {
	out := planJSON{
		GlobalHash:  p.Global.Digest(),
		EnvMode:     p.EnvMode,
		Concurrency: p.Concurrency,
		Warnings:    p.Graph.Warnings,
	}
	for _, t := range p.Tasks {
		pt := plannedTaskJSON{
			ID:          t.Node.ID,
			Package:     t.Node.Package.Name,
			Task:        t.Node.Task,
			Hash:        t.Hash,
			Command:     t.Node.Command,
			CacheStatus: string(t.CacheStatus),
			EnvVars:     t.EnvNames,
		}
		for _, d := range t.Node.Deps {
			pt.Dependencies = append(pt.Dependencies, d.ID)
		}
		for _, d := range t.Node.Dependents {
			pt.Dependents = append(pt.Dependents, d.ID)
		}
		out.Tasks = append(out.Tasks, pt)
	}
	return out
}
