package fingerprint

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/chore/internal/config"
)

func globalFor(t *testing.T, src *memSource, cfg *config.RootConfig, snap config.Snapshot) Global {
	t.Helper()
	g, err := HashGlobal(context.Background(), src, cfg, snap)
	require.NoError(t, err)
	return g
}

func TestHashGlobalStable(t *testing.T) {
	src := &memSource{files: map[string]string{"package-lock.json": "lock"}}
	cfg := &config.RootConfig{Content: []byte("pipeline: {}")}
	snap := snapshot()

	g1 := globalFor(t, src, cfg, snap)
	g2 := globalFor(t, src, cfg, snap)
	assert.Equal(t, g1.Digest(), g2.Digest())
	assert.Len(t, g1.Digest(), HashLen)
}

func TestHashGlobalConfigContent(t *testing.T) {
	src := &memSource{files: map[string]string{}}
	snap := snapshot()

	g1 := globalFor(t, src, &config.RootConfig{Content: []byte("a")}, snap)
	g2 := globalFor(t, src, &config.RootConfig{Content: []byte("b")}, snap)
	assert.NotEqual(t, g1.Digest(), g2.Digest())
}

func TestHashGlobalLockfile(t *testing.T) {
	cfg := &config.RootConfig{Content: []byte("c")}
	snap := snapshot()

	g1 := globalFor(t, &memSource{files: map[string]string{"yarn.lock": "v1"}}, cfg, snap)
	g2 := globalFor(t, &memSource{files: map[string]string{"yarn.lock": "v2"}}, cfg, snap)
	g3 := globalFor(t, &memSource{files: map[string]string{}}, cfg, snap)

	assert.NotEqual(t, g1.Digest(), g2.Digest())
	assert.NotEqual(t, g1.Digest(), g3.Digest())
}

func TestHashGlobalDependencies(t *testing.T) {
	cfg := &config.RootConfig{
		Content:            []byte("c"),
		GlobalDependencies: []string{"tsconfig.json"},
	}
	snap := snapshot()

	g1 := globalFor(t, &memSource{files: map[string]string{
		"tsconfig.json": "{}",
		"unrelated.txt": "x",
	}}, cfg, snap)
	g2 := globalFor(t, &memSource{files: map[string]string{
		"tsconfig.json": `{"strict": true}`,
		"unrelated.txt": "x",
	}}, cfg, snap)
	g3 := globalFor(t, &memSource{files: map[string]string{
		"tsconfig.json": "{}",
		"unrelated.txt": "changed",
	}}, cfg, snap)

	assert.NotEqual(t, g1.Digest(), g2.Digest(), "matched file content must invalidate")
	assert.Equal(t, g1.Digest(), g3.Digest(), "unmatched files must not participate")
}

func TestHashGlobalInvalidDependencyGlob(t *testing.T) {
	cfg := &config.RootConfig{
		Content:            []byte("c"),
		GlobalDependencies: []string{"["},
	}
	_, err := HashGlobal(context.Background(), &memSource{files: map[string]string{}}, cfg, snapshot())
	require.Error(t, err)
}

func TestHashGlobalEnvAndMode(t *testing.T) {
	src := &memSource{files: map[string]string{}}

	g1 := globalFor(t, src, &config.RootConfig{Content: []byte("c"), GlobalEnv: []string{"CI"}}, snapshot("CI=true"))
	g2 := globalFor(t, src, &config.RootConfig{Content: []byte("c"), GlobalEnv: []string{"CI"}}, snapshot("CI=false"))
	assert.NotEqual(t, g1.Digest(), g2.Digest())
	assert.Equal(t, []string{"CI"}, g1.Env.Names)

	g3 := globalFor(t, src, &config.RootConfig{Content: []byte("c"), EnvMode: config.EnvModeLoose}, snapshot())
	g4 := globalFor(t, src, &config.RootConfig{Content: []byte("c"), EnvMode: config.EnvModeStrict}, snapshot())
	assert.NotEqual(t, g3.Digest(), g4.Digest(), "env mode participates in the global hash")
	assert.Equal(t, config.EnvModeLoose, g3.EnvMode)
}
