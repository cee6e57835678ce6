package workspace

import (
	"fmt"
	"sort"
	"strings"
)

// Graph is the static package dependency graph. Built once per run and
// read-only thereafter; safe for concurrent reads.
type Graph struct {
	packages     map[string]*Package
	names        []string            // sorted
	dependencies map[string][]string // sorted adjacency
	dependents   map[string][]string // reverse adjacency, sorted
}

// DuplicatePackageError reports two packages sharing a name.
type DuplicatePackageError struct {
	Name string
	Dirs [2]string
}

func (e *DuplicatePackageError) Error() string {
	return fmt.Sprintf("duplicate package name %q (in %s and %s)", e.Name, e.Dirs[0], e.Dirs[1])
}

// UnknownDependencyError reports a declared internal dependency that
// does not exist in the workspace.
type UnknownDependencyError struct {
	Package    string
	Dependency string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("package %q depends on %q, which is not in the workspace", e.Package, e.Dependency)
}

// CyclicDependencyError reports a cycle among internal dependencies,
// with the full path.
type CyclicDependencyError struct {
	Path []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("cyclic package dependency: %s", strings.Join(e.Path, " -> "))
}

// BuildGraph validates packages and assembles the dependency graph.
func BuildGraph(pkgs []*Package) (*Graph, error) {
	g := &Graph{
		packages:     make(map[string]*Package, len(pkgs)),
		dependencies: make(map[string][]string, len(pkgs)),
		dependents:   make(map[string][]string, len(pkgs)),
	}

	for _, p := range pkgs {
		if prev, ok := g.packages[p.Name]; ok {
			return nil, &DuplicatePackageError{Name: p.Name, Dirs: [2]string{prev.Dir, p.Dir}}
		}
		g.packages[p.Name] = p
		g.names = append(g.names, p.Name)
	}
	sort.Strings(g.names)

	for _, p := range pkgs {
		for _, dep := range p.InternalDeps {
			if _, ok := g.packages[dep]; !ok {
				return nil, &UnknownDependencyError{Package: p.Name, Dependency: dep}
			}
			g.dependencies[p.Name] = append(g.dependencies[p.Name], dep)
			g.dependents[dep] = append(g.dependents[dep], p.Name)
		}
	}
	for name := range g.dependencies {
		sort.Strings(g.dependencies[name])
	}
	for name := range g.dependents {
		sort.Strings(g.dependents[name])
	}

	if cycle := g.findCycle(); cycle != nil {
		return nil, &CyclicDependencyError{Path: cycle}
	}
	return g, nil
}

// findCycle runs a three-color depth-first traversal and returns the
// cycle path if one exists.
func (g *Graph) findCycle() []string {
	const (
		white = iota // unvisited
		grey         // on the current DFS stack
		black        // done
	)
	color := make(map[string]int, len(g.names))
	var stack []string
	var cycle []string

	var visit func(name string) bool
	visit = func(name string) bool {
		color[name] = grey
		stack = append(stack, name)
		for _, dep := range g.dependencies[name] {
			switch color[dep] {
			case grey:
				// Found it: slice the stack from the first occurrence.
				for i, n := range stack {
					if n == dep {
						cycle = append(append([]string(nil), stack[i:]...), dep)
						return true
					}
				}
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[name] = black
		return false
	}

	for _, name := range g.names {
		if color[name] == white && visit(name) {
			return cycle
		}
	}
	return nil
}

// Get returns the package with the given name.
func (g *Graph) Get(name string) (*Package, bool) {
	p, ok := g.packages[name]
	return p, ok
}

// Names returns all package names, sorted.
func (g *Graph) Names() []string {
	return append([]string(nil), g.names...)
}

// Len returns the number of packages.
func (g *Graph) Len() int {
	return len(g.names)
}

// DirectDependencies returns the packages name depends on, sorted.
func (g *Graph) DirectDependencies(name string) []string {
	return append([]string(nil), g.dependencies[name]...)
}

// DirectDependents returns the packages depending on name, sorted.
func (g *Graph) DirectDependents(name string) []string {
	return append([]string(nil), g.dependents[name]...)
}

// TransitiveDependencies returns every package reachable from name
// through dependency edges, sorted, excluding name itself.
func (g *Graph) TransitiveDependencies(name string) []string {
	seen := make(map[string]bool)
	var walk func(n string)
	walk = func(n string) {
		for _, dep := range g.dependencies[n] {
			if !seen[dep] {
				seen[dep] = true
				walk(dep)
			}
		}
	}
	walk(name)

	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
