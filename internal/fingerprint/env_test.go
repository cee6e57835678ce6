package fingerprint

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/chore/internal/config"
)

func snapshot(pairs ...string) config.Snapshot {
	return config.NewSnapshot(pairs)
}

func TestMatchEnvNames(t *testing.T) {
	snap := snapshot("VITE_API=x", "VITE_DEBUG=1", "NODE_ENV=production", "PATH=/bin")

	assert.Nil(t, MatchEnvNames(snap, nil))
	assert.Equal(t, []string{"NODE_ENV"}, MatchEnvNames(snap, []string{"NODE_ENV", "MISSING"}))
	assert.Equal(t, []string{"VITE_API", "VITE_DEBUG"}, MatchEnvNames(snap, []string{"VITE_*"}))
	assert.Equal(t,
		[]string{"NODE_ENV", "VITE_API", "VITE_DEBUG"},
		MatchEnvNames(snap, []string{"VITE_*", "NODE_ENV"}))
}

func TestHashEnvOrderIndependent(t *testing.T) {
	snap := snapshot("A=1", "B=2")

	h1 := HashEnv(snap, []string{"A", "B"})
	h2 := HashEnv(snap, []string{"B", "A"})
	assert.Equal(t, h1.Digest(), h2.Digest())
	assert.Equal(t, []string{"A", "B"}, h1.Names)
}

func TestHashEnvValueSensitive(t *testing.T) {
	h1 := HashEnv(snapshot("CI=true"), []string{"CI"})
	h2 := HashEnv(snapshot("CI=false"), []string{"CI"})
	assert.NotEqual(t, h1.Digest(), h2.Digest())

	// An unset variable hashes differently from a set-but-empty one.
	h3 := HashEnv(snapshot(), []string{"CI"})
	h4 := HashEnv(snapshot("CI="), []string{"CI"})
	assert.NotEqual(t, h3.Digest(), h4.Digest())
}

func envMap(env []string) map[string]string {
	m := make(map[string]string, len(env))
	for _, kv := range env {
		if i := strings.IndexByte(kv, '='); i > 0 {
			m[kv[:i]] = kv[i+1:]
		}
	}
	return m
}

func TestExecutionEnvStrict(t *testing.T) {
	snap := snapshot(
		"PATH=/bin",
		"HOME=/home/u",
		"NODE_ENV=production",
		"NPM_TOKEN=secret",
		"AWS_SECRET_ACCESS_KEY=leaky",
	)

	env := envMap(ExecutionEnv(snap, config.EnvModeStrict,
		[]string{"NODE_ENV"}, []string{"NPM_TOKEN"}, nil, nil,
		map[string]string{"CHORE_HASH": "abc123"}))

	assert.Equal(t, "/bin", env["PATH"], "platform vars always pass")
	assert.Equal(t, "production", env["NODE_ENV"], "hashed vars pass")
	assert.Equal(t, "secret", env["NPM_TOKEN"], "pass-through vars pass unhashed")
	assert.Equal(t, "abc123", env["CHORE_HASH"])
	_, leaked := env["AWS_SECRET_ACCESS_KEY"]
	assert.False(t, leaked, "unconfigured vars must not be visible in strict mode")
}

func TestExecutionEnvLoose(t *testing.T) {
	snap := snapshot("PATH=/bin", "RANDOM_VAR=yes")

	env := envMap(ExecutionEnv(snap, config.EnvModeLoose,
		nil, nil, nil, nil, map[string]string{"CHORE_HASH": "abc123"}))

	assert.Equal(t, "yes", env["RANDOM_VAR"], "loose mode exposes the full snapshot")
	assert.Equal(t, "abc123", env["CHORE_HASH"])
}

func TestExecutionEnvGlobalSubsets(t *testing.T) {
	snap := snapshot("PATH=/bin", "CI=true", "DEPLOY_KEY=k")

	env := envMap(ExecutionEnv(snap, config.EnvModeStrict,
		nil, nil, []string{"CI"}, []string{"DEPLOY_KEY"}, nil))

	assert.Equal(t, "true", env["CI"])
	assert.Equal(t, "k", env["DEPLOY_KEY"])
}

func TestExecutionEnvSorted(t *testing.T) {
	snap := snapshot("PATH=/bin", "B=2", "A=1")
	env := ExecutionEnv(snap, config.EnvModeLoose, nil, nil, nil, nil, nil)

	require.NotEmpty(t, env)
	for i := 1; i < len(env); i++ {
		assert.Less(t, env[i-1], env[i], "pairs must be sorted by name")
	}
}
