package fingerprint

import (
	"context"
	"os"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/chore/internal/pipeline"
)

// memSource is an in-memory FileSource keyed by root-relative path.
type memSource struct {
	files map[string]string
}

func (m *memSource) ListTrackedFiles(_ context.Context, dir string) ([]string, error) {
	prefix := ""
	if dir != "" && dir != "." {
		prefix = strings.TrimSuffix(dir, "/") + "/"
	}
	var out []string
	for p := range m.files {
		if strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *memSource) HashFile(path string) (string, error) {
	content, ok := m.files[path]
	if !ok {
		return "", os.ErrNotExist
	}
	return Digest(content), nil
}

func (m *memSource) ReadFile(path string) ([]byte, error) {
	content, ok := m.files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return []byte(content), nil
}

func globs(t *testing.T, patterns ...string) pipeline.Globs {
	t.Helper()
	g, err := pipeline.SplitGlobs(patterns)
	require.NoError(t, err)
	return g
}

func TestHashFilesEmptyInputsSelectsEverything(t *testing.T) {
	src := &memSource{files: map[string]string{
		"apps/web/package.json": `{"name":"web"}`,
		"apps/web/src/main.ts":  "code",
		"apps/web/README.md":    "docs",
		"packages/ui/index.ts":  "elsewhere",
	}}

	fh, err := HashFiles(context.Background(), src, "apps/web", pipeline.Globs{})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"apps/web/README.md",
		"apps/web/package.json",
		"apps/web/src/main.ts",
	}, fh.Paths())
	assert.Equal(t, 3, fh.Len())
}

func TestHashFilesInclusionNarrows(t *testing.T) {
	src := &memSource{files: map[string]string{
		"apps/web/package.json": "{}",
		"apps/web/src/main.ts":  "code",
		"apps/web/notes.txt":    "scratch",
	}}

	fh, err := HashFiles(context.Background(), src, "apps/web", globs(t, "src/**"))
	require.NoError(t, err)

	// The manifest rides along even under narrow inputs.
	assert.Equal(t, []string{
		"apps/web/package.json",
		"apps/web/src/main.ts",
	}, fh.Paths())
}

func TestHashFilesExclusionWins(t *testing.T) {
	src := &memSource{files: map[string]string{
		"apps/web/package.json":        "{}",
		"apps/web/src/main.ts":         "code",
		"apps/web/src/main.test.ts":    "test",
		"apps/web/src/util/helpers.ts": "more",
	}}

	fh, err := HashFiles(context.Background(), src, "apps/web",
		globs(t, "src/**", "!src/**/*.test.ts"))
	require.NoError(t, err)
	assert.NotContains(t, fh.Paths(), "apps/web/src/main.test.ts")
	assert.Contains(t, fh.Paths(), "apps/web/src/main.ts")
	assert.Contains(t, fh.Paths(), "apps/web/src/util/helpers.ts")
}

func TestHashFilesDigestTracksContent(t *testing.T) {
	files := map[string]string{"apps/web/package.json": "{}", "apps/web/a.ts": "one"}
	src := &memSource{files: files}

	fh1, err := HashFiles(context.Background(), src, "apps/web", pipeline.Globs{})
	require.NoError(t, err)
	fh2, err := HashFiles(context.Background(), src, "apps/web", pipeline.Globs{})
	require.NoError(t, err)
	assert.Equal(t, fh1.Digest(), fh2.Digest(), "same inputs must hash identically")

	files["apps/web/a.ts"] = "two"
	fh3, err := HashFiles(context.Background(), src, "apps/web", pipeline.Globs{})
	require.NoError(t, err)
	assert.NotEqual(t, fh1.Digest(), fh3.Digest(), "content change must change the digest")

	assert.Len(t, fh1.Digest(), HashLen)
}

func TestMatchOutputsExplicitOnly(t *testing.T) {
	files := []string{
		"apps/web/dist/index.js",
		"apps/web/dist/index.js.map",
		"apps/web/src/main.ts",
	}

	// No output globs means nothing is captured.
	assert.Nil(t, MatchOutputs(files, "apps/web", pipeline.Globs{}))

	out := MatchOutputs(files, "apps/web", globs(t, "dist/**", "!dist/**/*.map"))
	assert.Equal(t, []string{"apps/web/dist/index.js"}, out)
}

func TestMatchOutputsRootPackage(t *testing.T) {
	files := []string{"coverage/report.html", "apps/web/dist/x.js"}
	out := MatchOutputs(files, ".", globs(t, "coverage/**"))
	assert.Equal(t, []string{"coverage/report.html"}, out)
}
