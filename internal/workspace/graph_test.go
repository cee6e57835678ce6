package workspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pkg(name, dir string, deps ...string) *Package {
	return &Package{
		Name:         name,
		Dir:          dir,
		Scripts:      map[string]string{},
		InternalDeps: deps,
	}
}

func TestBuildGraphAdjacency(t *testing.T) {
	g, err := BuildGraph([]*Package{
		pkg("web", "apps/web", "ui", "util"),
		pkg("ui", "packages/ui", "util"),
		pkg("util", "packages/util"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"ui", "util", "web"}, g.Names())
	assert.Equal(t, 3, g.Len())
	assert.Equal(t, []string{"ui", "util"}, g.DirectDependencies("web"))
	assert.Equal(t, []string{"ui", "web"}, g.DirectDependents("util"))
	assert.Empty(t, g.DirectDependencies("util"))
}

func TestBuildGraphDuplicateName(t *testing.T) {
	_, err := BuildGraph([]*Package{
		pkg("ui", "packages/ui"),
		pkg("ui", "libs/ui"),
	})
	var dup *DuplicatePackageError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "ui", dup.Name)
	assert.Contains(t, dup.Error(), "packages/ui")
	assert.Contains(t, dup.Error(), "libs/ui")
}

func TestBuildGraphUnknownDependency(t *testing.T) {
	_, err := BuildGraph([]*Package{
		pkg("web", "apps/web", "ghost"),
	})
	var unknown *UnknownDependencyError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "web", unknown.Package)
	assert.Equal(t, "ghost", unknown.Dependency)
}

func TestBuildGraphCycleReportsPath(t *testing.T) {
	_, err := BuildGraph([]*Package{
		pkg("a", "a", "b"),
		pkg("b", "b", "c"),
		pkg("c", "c", "a"),
	})
	var cyc *CyclicDependencyError
	require.ErrorAs(t, err, &cyc)

	// The path closes on its starting node.
	require.GreaterOrEqual(t, len(cyc.Path), 4)
	assert.Equal(t, cyc.Path[0], cyc.Path[len(cyc.Path)-1])
	assert.Contains(t, cyc.Error(), " -> ")
}

func TestBuildGraphSelfCycle(t *testing.T) {
	_, err := BuildGraph([]*Package{
		pkg("a", "a", "a"),
	})
	var cyc *CyclicDependencyError
	require.ErrorAs(t, err, &cyc)
	assert.Equal(t, []string{"a", "a"}, cyc.Path)
}

func TestTransitiveDependencies(t *testing.T) {
	g, err := BuildGraph([]*Package{
		pkg("app", "app", "lib"),
		pkg("lib", "lib", "core"),
		pkg("core", "core"),
		pkg("other", "other"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"core", "lib"}, g.TransitiveDependencies("app"))
	assert.Empty(t, g.TransitiveDependencies("core"))
	assert.Empty(t, g.TransitiveDependencies("other"))
}

func TestGraphGet(t *testing.T) {
	g, err := BuildGraph([]*Package{pkg("ui", "packages/ui")})
	require.NoError(t, err)

	p, ok := g.Get("ui")
	require.True(t, ok)
	assert.Equal(t, "packages/ui", p.Dir)

	_, ok = g.Get("nope")
	assert.False(t, ok)
}
