package engine

import (
	"fmt"
	"strings"

	"github.com/joss/chore/internal/logging"
	"github.com/joss/chore/internal/pipeline"
	"github.com/joss/chore/internal/workspace"
)

// Builder expands requested tasks into a task graph.
type Builder struct {
	Packages *workspace.Graph
	Resolver *pipeline.Resolver

	log *logging.Logger
}

// NewBuilder creates a graph builder.
func NewBuilder(pkgs *workspace.Graph, resolver *pipeline.Resolver) *Builder {
	return &Builder{
		Packages: pkgs,
		Resolver: resolver,
		log:      logging.New("engine"),
	}
}

const (
	colorWhite = iota // unvisited
	colorGrey         // expansion in progress (on stack)
	colorBlack        // fully expanded
)

type expansion struct {
	graph *Graph
	color map[string]int
	stack []string
}

// Build creates the task graph for the requested task names across the
// filtered package set (all packages when filter is empty). Everything
// reachable through dependsOn entries is pulled in transitively.
func (b *Builder) Build(requested []string, filter []string) (*Graph, error) {
	if len(requested) == 0 {
		return nil, fmt.Errorf("no tasks requested")
	}

	targets, err := b.targetPackages(filter)
	if err != nil {
		return nil, err
	}

	ex := &expansion{
		graph: &Graph{nodes: make(map[string]*Node)},
		color: make(map[string]int),
	}

	for _, task := range requested {
		for _, pkgName := range targets {
			if !b.runnable(pkgName, task) {
				continue
			}
			if _, err := b.expand(ex, pkgName, task); err != nil {
				return nil, err
			}
		}
	}

	if ex.graph.Len() == 0 {
		return nil, fmt.Errorf("no package defines any of the requested tasks: %s", strings.Join(requested, ", "))
	}
	return ex.graph, nil
}

// targetPackages resolves the package filter. The root pseudo-package
// participates only when it is explicitly filtered or has an explicit
// //#task pipeline entry, so repo-wide runs don't execute root scripts
// twice.
func (b *Builder) targetPackages(filter []string) ([]string, error) {
	if len(filter) == 0 {
		return b.Packages.Names(), nil
	}
	var out []string
	for _, name := range filter {
		if _, ok := b.Packages.Get(name); !ok {
			return nil, fmt.Errorf("filtered package %q is not in the workspace", name)
		}
		out = append(out, name)
	}
	return out, nil
}

// runnable reports whether a (package, task) pair produces a node: the
// pipeline must define the task and the package manifest must carry
// the script. The root package additionally requires an explicit
// "//#task" pipeline key.
func (b *Builder) runnable(pkgName, task string) bool {
	pkg, ok := b.Packages.Get(pkgName)
	if !ok {
		return false
	}
	if _, hasScript := pkg.Scripts[task]; !hasScript {
		return false
	}
	if !b.Resolver.Defined(pkgName, task) {
		return false
	}
	if pkg.IsRoot() {
		return b.Resolver.HasExplicit(workspace.RootPackageName, task)
	}
	return true
}

// expand creates (or returns) the node for pkg#task and recursively
// expands its dependsOn entries. Cycle detection is three-colored: a
// grey node reached again closes a cycle, reported with the full
// chain.
func (b *Builder) expand(ex *expansion, pkgName, task string) (*Node, error) {
	id := pipeline.TaskID(pkgName, task)

	switch ex.color[id] {
	case colorGrey:
		chain := append(chainFrom(ex.stack, id), id)
		return nil, &CycleError{Chain: chain}
	case colorBlack:
		n, _ := ex.graph.Get(id)
		return n, nil
	}

	pkg, ok := b.Packages.Get(pkgName)
	if !ok {
		return nil, &MissingPackageError{TaskID: id, Package: pkgName}
	}

	def, err := b.Resolver.Resolve(pkgName, task)
	if err != nil {
		return nil, err
	}

	ex.color[id] = colorGrey
	ex.stack = append(ex.stack, id)
	defer func() {
		ex.stack = ex.stack[:len(ex.stack)-1]
	}()

	node := &Node{
		ID:         id,
		Package:    pkg,
		Task:       task,
		Definition: def,
		Command:    pkg.Scripts[task],
	}
	ex.graph.add(node)

	for _, entry := range def.DependsOn {
		children, err := b.expandEntry(ex, node, entry)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			addEdge(node, child)
		}
	}

	ex.color[id] = colorBlack
	return node, nil
}

// expandEntry resolves one dependsOn entry into zero or more upstream
// nodes. Targets whose package exists but doesn't define the task are
// dropped with a warning: tasks are optional per package.
func (b *Builder) expandEntry(ex *expansion, node *Node, entry string) ([]*Node, error) {
	// "^task": the task in every direct dependency package. Not
	// transitive here; transitivity falls out of recursive expansion.
	if strings.HasPrefix(entry, pipeline.TopologicalPrefix) {
		task := strings.TrimPrefix(entry, pipeline.TopologicalPrefix)
		var nodes []*Node
		for _, depPkg := range b.Packages.DirectDependencies(node.Package.Name) {
			child, err := b.expandOptional(ex, node, depPkg, task)
			if err != nil {
				return nil, err
			}
			if child != nil {
				nodes = append(nodes, child)
			}
		}
		return nodes, nil
	}

	// "pkg#task": explicit node. The package must exist; the task is
	// still optional.
	if depPkg, task, ok := pipeline.SplitTaskID(entry); ok {
		if _, exists := b.Packages.Get(depPkg); !exists {
			return nil, &MissingPackageError{TaskID: node.ID, Package: depPkg}
		}
		child, err := b.expandOptional(ex, node, depPkg, task)
		if err != nil {
			return nil, err
		}
		if child == nil {
			return nil, nil
		}
		return []*Node{child}, nil
	}

	// Bare "task": same package.
	child, err := b.expandOptional(ex, node, node.Package.Name, entry)
	if err != nil {
		return nil, err
	}
	if child == nil {
		return nil, nil
	}
	return []*Node{child}, nil
}

func (b *Builder) expandOptional(ex *expansion, from *Node, pkgName, task string) (*Node, error) {
	pkg, ok := b.Packages.Get(pkgName)
	if !ok {
		return nil, &MissingPackageError{TaskID: from.ID, Package: pkgName}
	}
	_, hasScript := pkg.Scripts[task]
	if !hasScript || !b.Resolver.Defined(pkgName, task) {
		warning := fmt.Sprintf("%s: dropping dependency on %s (task not defined there)",
			from.ID, pipeline.TaskID(pkgName, task))
		ex.graph.Warnings = append(ex.graph.Warnings, warning)
		b.log.Warn("dependency_dropped", map[string]any{
			"from": from.ID, "to": pipeline.TaskID(pkgName, task),
		}, nil)
		return nil, nil
	}
	return b.expand(ex, pkgName, task)
}

// chainFrom slices the expansion stack from the first occurrence of id.
func chainFrom(stack []string, id string) []string {
	for i, n := range stack {
		if n == id {
			return append([]string(nil), stack[i:]...)
		}
	}
	return append([]string(nil), stack...)
}
