package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joss/chore/internal/engine"
	"github.com/joss/chore/internal/pipeline"
	"github.com/joss/chore/internal/render"
)

func graphCmd() *cobra.Command {
	var flagFilter []string

	cmd := &cobra.Command{
		Use:   "graph [tasks...]",
		Short: "Show the package graph, or the task graph for given tasks",
		Long: `Without arguments, list every discovered package with its internal
dependencies. With task names, expand and list the task graph those
tasks would produce, including transitively pulled-in nodes.

Cycles and references to unknown packages are reported as errors.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if len(args) > 0 {
				return showTaskGraph(a, args, flagFilter)
			}

			if flagJSON {
				type pkgJSON struct {
					Name         string   `json:"name"`
					Dir          string   `json:"dir"`
					Dependencies []string `json:"dependencies,omitempty"`
				}
				var out []pkgJSON
				for _, name := range a.packages.Names() {
					pkg, _ := a.packages.Get(name)
					out = append(out, pkgJSON{
						Name:         name,
						Dir:          pkg.Dir,
						Dependencies: a.packages.DirectDependencies(name),
					})
				}
				return printJSON(out)
			}

			fmt.Print(render.New(pretty()).PackageGraph(a.packages))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&flagFilter, "filter", nil, "restrict to these packages")
	return cmd
}

func showTaskGraph(a *app, tasks, filter []string) error {
	g, err := engine.NewBuilder(a.packages, pipeline.NewResolver(a.cfg)).Build(tasks, filter)
	if err != nil {
		return err
	}

	if flagJSON {
		type nodeJSON struct {
			ID           string   `json:"id"`
			Package      string   `json:"package"`
			Task         string   `json:"task"`
			Command      string   `json:"command"`
			Dependencies []string `json:"dependencies,omitempty"`
		}
		var out []nodeJSON
		for _, node := range g.Nodes() {
			deps := make([]string, 0, len(node.Deps))
			for _, d := range node.Deps {
				deps = append(deps, d.ID)
			}
			out = append(out, nodeJSON{
				ID:           node.ID,
				Package:      node.Package.Name,
				Task:         node.Task,
				Command:      node.Command,
				Dependencies: deps,
			})
		}
		return printJSON(out)
	}

	fmt.Print(render.New(pretty()).TaskGraph(g))
	return nil
}
