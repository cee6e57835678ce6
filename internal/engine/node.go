// Package engine expands resolved task definitions and the package
// graph into a validated execution DAG and schedules it over a bounded
// worker pool.
package engine

import (
	"sort"

	"github.com/joss/chore/internal/pipeline"
	"github.com/joss/chore/internal/workspace"
)

// Node is one concrete (package, task) vertex in the task graph.
type Node struct {
	// ID is the canonical "package#task" identifier.
	ID string

	Package *workspace.Package
	Task    string

	// Definition is the fully resolved configuration for this node.
	Definition *pipeline.TaskDefinition

	// Command is the manifest script line this node runs.
	Command string

	// Deps and Dependents are adjacency lists, sorted by node ID.
	Deps       []*Node
	Dependents []*Node
}

// Graph is the task DAG. Immutable once built; the scheduler only
// reads it.
type Graph struct {
	nodes map[string]*Node
	order []string // sorted node IDs

	// Warnings records soft resolution issues (dropped dependsOn
	// entries whose target task isn't defined for a package).
	Warnings []string
}

// Get returns the node with the given ID.
func (g *Graph) Get(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all nodes sorted by ID.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Len returns the node count.
func (g *Graph) Len() int {
	return len(g.order)
}

func (g *Graph) add(n *Node) {
	g.nodes[n.ID] = n
	g.order = append(g.order, n.ID)
	sort.Strings(g.order)
}

func addEdge(from, to *Node) {
	for _, d := range from.Deps {
		if d.ID == to.ID {
			return
		}
	}
	from.Deps = append(from.Deps, to)
	to.Dependents = append(to.Dependents, from)
	sort.Slice(from.Deps, func(i, j int) bool { return from.Deps[i].ID < from.Deps[j].ID })
	sort.Slice(to.Dependents, func(i, j int) bool { return to.Dependents[i].ID < to.Dependents[j].ID })
}
