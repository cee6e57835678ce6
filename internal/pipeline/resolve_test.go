package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/chore/internal/config"
)

func boolPtr(b bool) *bool { return &b }

func resolver(pipeline map[string]config.TaskConfig) *Resolver {
	return NewResolver(&config.RootConfig{Pipeline: pipeline})
}

func TestResolveGlobalDefinition(t *testing.T) {
	r := resolver(map[string]config.TaskConfig{
		"build": {
			Outputs:   []string{"dist/**", "!dist/**/*.map"},
			DependsOn: []string{"^build"},
			Env:       []string{"NODE_ENV"},
		},
	})

	def, err := r.Resolve("web", "build")
	require.NoError(t, err)
	assert.Equal(t, []string{"dist/**"}, def.Outputs.Inclusions)
	assert.Equal(t, []string{"dist/**/*.map"}, def.Outputs.Exclusions)
	assert.Equal(t, []string{"^build"}, def.DependsOn)
	assert.True(t, def.Cache)
	assert.Equal(t, OutputFull, def.OutputMode)
}

func TestResolveNoDefinition(t *testing.T) {
	r := resolver(map[string]config.TaskConfig{"build": {}})

	_, err := r.Resolve("web", "deploy")
	require.ErrorIs(t, err, ErrNoDefinition)
}

func TestResolveOverrideReplacesListsUnionsDependsOn(t *testing.T) {
	r := resolver(map[string]config.TaskConfig{
		"build": {
			Outputs:   []string{"dist/**"},
			Inputs:    []string{"src/**"},
			DependsOn: []string{"^build"},
		},
		"web#build": {
			Outputs:   []string{".next/**"},
			DependsOn: []string{"generate"},
		},
	})

	def, err := r.Resolve("web", "build")
	require.NoError(t, err)

	// outputs replaced, inputs kept, dependsOn unioned and sorted.
	assert.Equal(t, []string{".next/**"}, def.Outputs.Inclusions)
	assert.Equal(t, []string{"src/**"}, def.Inputs.Inclusions)
	assert.Equal(t, []string{"^build", "generate"}, def.DependsOn)
}

func TestResolveOverrideExplicitEmptyClearsList(t *testing.T) {
	r := resolver(map[string]config.TaskConfig{
		"build":     {Outputs: []string{"dist/**"}},
		"web#build": {Outputs: []string{}},
	})

	def, err := r.Resolve("web", "build")
	require.NoError(t, err)
	assert.True(t, def.Outputs.Empty())
}

func TestResolveOverrideCacheAndOutputMode(t *testing.T) {
	r := resolver(map[string]config.TaskConfig{
		"test":     {OutputMode: "full"},
		"web#test": {Cache: boolPtr(false), OutputMode: "errors-only"},
	})

	def, err := r.Resolve("web", "test")
	require.NoError(t, err)
	assert.False(t, def.Cache)
	assert.Equal(t, OutputErrorsOnly, def.OutputMode)

	// Other packages keep the global behavior.
	def, err = r.Resolve("api", "test")
	require.NoError(t, err)
	assert.True(t, def.Cache)
	assert.Equal(t, OutputFull, def.OutputMode)
}

func TestResolveOverrideOnlyDefinition(t *testing.T) {
	r := resolver(map[string]config.TaskConfig{
		"//#format": {Cache: boolPtr(false)},
	})

	assert.False(t, r.Defined("web", "format"))
	assert.True(t, r.Defined("//", "format"))
	assert.True(t, r.HasExplicit("//", "format"))

	def, err := r.Resolve("//", "format")
	require.NoError(t, err)
	assert.False(t, def.Cache)
}

func TestResolvePersistentDisablesCache(t *testing.T) {
	r := resolver(map[string]config.TaskConfig{
		"dev": {Persistent: true, Cache: boolPtr(true)},
	})

	def, err := r.Resolve("web", "dev")
	require.NoError(t, err)
	assert.True(t, def.Persistent)
	assert.False(t, def.Cache, "persistent tasks are never cached")
}

func TestResolveInvalidGlob(t *testing.T) {
	r := resolver(map[string]config.TaskConfig{
		"build": {Outputs: []string{"dist/["}},
	})

	_, err := r.Resolve("web", "build")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid glob")
}

func TestResolveInvalidDependsOn(t *testing.T) {
	for _, entry := range []string{"", "^"} {
		r := resolver(map[string]config.TaskConfig{
			"build": {DependsOn: []string{entry}},
		})
		_, err := r.Resolve("web", "build")
		require.Error(t, err, "entry %q should be rejected", entry)
	}
}

func TestTaskNamesCollapsesOverrides(t *testing.T) {
	r := resolver(map[string]config.TaskConfig{
		"build":     {},
		"web#build": {},
		"test":      {},
	})
	names := r.TaskNames()
	assert.ElementsMatch(t, []string{"build", "test"}, names)
}

func TestParseOutputMode(t *testing.T) {
	mode, err := ParseOutputMode("")
	require.NoError(t, err)
	assert.Equal(t, OutputFull, mode)

	for _, s := range []string{"full", "hash-only", "new-only", "errors-only", "none"} {
		_, err := ParseOutputMode(s)
		assert.NoError(t, err)
	}

	_, err = ParseOutputMode("loud")
	assert.Error(t, err)
}

func TestSplitTaskID(t *testing.T) {
	pkg, task, ok := SplitTaskID("web#build")
	require.True(t, ok)
	assert.Equal(t, "web", pkg)
	assert.Equal(t, "build", task)

	// Scoped npm names keep their package part intact.
	pkg, task, ok = SplitTaskID("@acme/ui#test")
	require.True(t, ok)
	assert.Equal(t, "@acme/ui", pkg)
	assert.Equal(t, "test", task)

	_, _, ok = SplitTaskID("build")
	assert.False(t, ok)
}
