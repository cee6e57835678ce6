package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/chore/internal/config"
	"github.com/joss/chore/internal/workspace"
)

// orderRecorder is a visitor that appends node IDs as they start.
type orderRecorder struct {
	mu    sync.Mutex
	order []string
	fail  map[string]bool
}

func (o *orderRecorder) visit(_ context.Context, n *Node) error {
	o.mu.Lock()
	o.order = append(o.order, n.ID)
	o.mu.Unlock()
	if o.fail[n.ID] {
		return errors.New("boom")
	}
	return nil
}

func (o *orderRecorder) index(id string) int {
	for i, v := range o.order {
		if v == id {
			return i
		}
	}
	return -1
}

func chainGraph(t *testing.T) *Graph {
	t.Helper()
	b := testBuilder(t, []*workspace.Package{
		testPkg("web", map[string]string{"build": "x"}, "ui"),
		testPkg("ui", map[string]string{"build": "x"}, "util"),
		testPkg("util", map[string]string{"build": "x"}),
	}, map[string]config.TaskConfig{
		"build": {DependsOn: []string{"^build"}},
	})
	g, err := b.Build([]string{"build"}, nil)
	require.NoError(t, err)
	return g
}

func TestExecuteRespectsDependencies(t *testing.T) {
	g := chainGraph(t)
	rec := &orderRecorder{}

	res := Execute(context.Background(), g, ExecOptions{Concurrency: 4}, rec.visit)

	assert.True(t, res.Ok())
	assert.Less(t, rec.index("util#build"), rec.index("ui#build"))
	assert.Less(t, rec.index("ui#build"), rec.index("web#build"))
}

func TestExecuteLexicographicTieBreak(t *testing.T) {
	b := testBuilder(t, []*workspace.Package{
		testPkg("cherry", map[string]string{"build": "x"}),
		testPkg("apple", map[string]string{"build": "x"}),
		testPkg("banana", map[string]string{"build": "x"}),
	}, map[string]config.TaskConfig{"build": {}})
	g, err := b.Build([]string{"build"}, nil)
	require.NoError(t, err)

	// With one worker, independent nodes run strictly in ID order.
	rec := &orderRecorder{}
	res := Execute(context.Background(), g, ExecOptions{Concurrency: 1}, rec.visit)

	assert.True(t, res.Ok())
	assert.Equal(t, []string{"apple#build", "banana#build", "cherry#build"}, rec.order)
}

func TestExecuteFailureSkipsDownstream(t *testing.T) {
	g := chainGraph(t)
	rec := &orderRecorder{fail: map[string]bool{"ui#build": true}}

	res := Execute(context.Background(), g, ExecOptions{Concurrency: 4}, rec.visit)

	assert.False(t, res.Ok())
	assert.Equal(t, []string{"ui#build"}, res.Failed())

	util, _ := res.Get("util#build")
	assert.Equal(t, StatusSuccess, util.Status)

	ui, _ := res.Get("ui#build")
	assert.Equal(t, StatusFailed, ui.Status)
	assert.Error(t, ui.Err)

	web, _ := res.Get("web#build")
	assert.Equal(t, StatusSkipped, web.Status)
	assert.Equal(t, -1, rec.index("web#build"), "skipped nodes never run")
}

func TestExecuteAbortCancelsUnrelatedWork(t *testing.T) {
	b := testBuilder(t, []*workspace.Package{
		testPkg("aaa", map[string]string{"build": "x"}),
		testPkg("zzz", map[string]string{"build": "x"}),
	}, map[string]config.TaskConfig{"build": {}})
	g, err := b.Build([]string{"build"}, nil)
	require.NoError(t, err)

	// One worker: aaa runs first and fails, zzz is never scheduled.
	rec := &orderRecorder{fail: map[string]bool{"aaa#build": true}}
	res := Execute(context.Background(), g, ExecOptions{Concurrency: 1}, rec.visit)

	zzz, _ := res.Get("zzz#build")
	assert.Equal(t, StatusCanceled, zzz.Status)
	assert.Equal(t, -1, rec.index("zzz#build"))
}

func TestExecuteContinueOnError(t *testing.T) {
	b := testBuilder(t, []*workspace.Package{
		testPkg("aaa", map[string]string{"build": "x"}),
		testPkg("zzz", map[string]string{"build": "x"}),
	}, map[string]config.TaskConfig{"build": {}})
	g, err := b.Build([]string{"build"}, nil)
	require.NoError(t, err)

	rec := &orderRecorder{fail: map[string]bool{"aaa#build": true}}
	res := Execute(context.Background(), g, ExecOptions{Concurrency: 1, ContinueOnError: true}, rec.visit)

	zzz, _ := res.Get("zzz#build")
	assert.Equal(t, StatusSuccess, zzz.Status)
	assert.Equal(t, []string{"aaa#build"}, res.Failed())
}

func TestExecuteCanceledContext(t *testing.T) {
	g := chainGraph(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &orderRecorder{}
	res := Execute(ctx, g, ExecOptions{Concurrency: 4}, rec.visit)

	assert.Empty(t, rec.order)
	for _, r := range res.Results() {
		assert.Equal(t, StatusCanceled, r.Status)
	}
	assert.False(t, res.Ok())
}

func TestExecutePersistentVisitorReturnsAtStart(t *testing.T) {
	b := testBuilder(t, []*workspace.Package{
		testPkg("web", map[string]string{"dev": "vite dev", "lint": "eslint"}),
	}, map[string]config.TaskConfig{
		"dev":  {Persistent: true},
		"lint": {},
	})
	g, err := b.Build([]string{"dev", "lint"}, nil)
	require.NoError(t, err)
	require.NoError(t, Validate(g, 2))

	rec := &orderRecorder{}
	res := Execute(context.Background(), g, ExecOptions{Concurrency: 2}, rec.visit)

	// The persistent node completes for scheduling purposes as soon as
	// its visitor returns; the remaining slot still serves lint.
	assert.True(t, res.Ok())
	dev, _ := res.Get("web#dev")
	assert.Equal(t, StatusSuccess, dev.Status)
	lint, _ := res.Get("web#lint")
	assert.Equal(t, StatusSuccess, lint.Status)
}

func TestExecResultAccessors(t *testing.T) {
	g := chainGraph(t)
	rec := &orderRecorder{}
	res := Execute(context.Background(), g, ExecOptions{Concurrency: 2}, rec.visit)

	all := res.Results()
	require.Len(t, all, 3)
	assert.Equal(t, "ui#build", all[0].Node.ID)
	assert.Empty(t, res.Failed())

	_, ok := res.Get("nope#build")
	assert.False(t, ok)
}
