// Package runner ties the engine, fingerprinting, cache, and executor
// together into complete runs: it plans (hashes) the task graph, then
// either reports the plan (dry run) or executes it.
package runner

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/joss/chore/internal/cache"
	"github.com/joss/chore/internal/config"
	"github.com/joss/chore/internal/engine"
	"github.com/joss/chore/internal/exec"
	"github.com/joss/chore/internal/fingerprint"
	"github.com/joss/chore/internal/logging"
	"github.com/joss/chore/internal/pipeline"
	"github.com/joss/chore/internal/scm"
	"github.com/joss/chore/internal/summary"
	"github.com/joss/chore/internal/workspace"
)

// Options configure one run.
type Options struct {
	// Tasks are the requested task names.
	Tasks []string

	// Filter restricts the run to these packages (empty = all).
	Filter []string

	// Concurrency overrides the configured worker pool size when > 0.
	Concurrency int

	// ContinueOnError keeps scheduling unaffected subgraphs after a
	// failure.
	ContinueOnError bool

	// Force ignores existing cache entries (still writes new ones).
	Force bool

	// NoCache disables cache writes as well as reads.
	NoCache bool

	// DryRun hashes and reports without executing anything.
	DryRun bool

	// EnvMode overrides the configured strict/loose env policy.
	EnvMode string

	// Timeout, when > 0, bounds each task's execution individually.
	Timeout time.Duration

	// Output receives interleaved, node-prefixed task output.
	Output io.Writer

	// Events, when non-nil, receives task lifecycle notifications.
	Events EventSink
}

// Runner executes task graphs for one workspace.
type Runner struct {
	root     string
	cfg      *config.RootConfig
	paths    config.Paths
	packages *workspace.Graph
	resolver *pipeline.Resolver
	src      scm.FileSource
	exec     exec.Runner
	cache    *cache.Manager
	snapshot config.Snapshot

	log *logging.Logger
}

// New assembles a runner from its collaborators.
func New(root string, cfg *config.RootConfig, packages *workspace.Graph, src scm.FileSource, execRunner exec.Runner, cacheMgr *cache.Manager, snapshot config.Snapshot) *Runner {
	return &Runner{
		root:     root,
		cfg:      cfg,
		paths:    config.NewPaths(root),
		packages: packages,
		resolver: pipeline.NewResolver(cfg),
		src:      src,
		exec:     execRunner,
		cache:    cacheMgr,
		snapshot: snapshot,
		log:      logging.New("runner"),
	}
}

// PlannedTask is one node with its computed fingerprint and the cache
// state observed at plan time.
type PlannedTask struct {
	Node        *engine.Node
	Hash        string
	CacheStatus summary.CacheStatus

	// EnvNames are the matched, hashed env var names for the node.
	EnvNames []string
}

// Plan is a fully hashed task graph, ready to execute or report.
type Plan struct {
	Graph  *engine.Graph
	Global fingerprint.Global

	// Hashes maps node ID to fingerprint.
	Hashes map[string]string

	// Tasks are the planned nodes sorted by ID.
	Tasks []PlannedTask

	EnvMode     string
	Concurrency int
}

// Plan builds, validates, and hashes the task graph. No task executes;
// hashing failures are configuration or fingerprinting errors.
func (r *Runner) Plan(ctx context.Context, opts Options) (*Plan, error) {
	graph, err := engine.NewBuilder(r.packages, r.resolver).Build(opts.Tasks, opts.Filter)
	if err != nil {
		return nil, err
	}

	concurrency := r.cfg.EffectiveConcurrency(opts.Concurrency)
	if err := engine.Validate(graph, concurrency); err != nil {
		return nil, err
	}

	envMode := r.cfg.EffectiveEnvMode()
	if opts.EnvMode != "" {
		envMode = opts.EnvMode
	}

	global, err := fingerprint.HashGlobal(ctx, r.src, r.cfg, r.snapshot)
	if err != nil {
		return nil, fmt.Errorf("global hash: %w", err)
	}

	plan := &Plan{
		Graph:       graph,
		Global:      global,
		Hashes:      make(map[string]string, graph.Len()),
		EnvMode:     envMode,
		Concurrency: concurrency,
	}

	// Hash in dependency order: a node's fingerprint folds in its
	// upstream hashes, so upstream nodes must be hashed first. The
	// graph is already validated acyclic.
	for _, node := range topoOrder(graph) {
		hash, envNames, err := r.hashNode(ctx, node, plan)
		if err != nil {
			return nil, fmt.Errorf("hash %s: %w", node.ID, err)
		}
		plan.Hashes[node.ID] = hash

		status := summary.CacheDisabled
		if node.Definition.Cache {
			status = toCacheStatus(r.cache.Exists(ctx, hash))
		}
		plan.Tasks = append(plan.Tasks, PlannedTask{
			Node:        node,
			Hash:        hash,
			CacheStatus: status,
			EnvNames:    envNames,
		})
	}
	return plan, nil
}

// hashNode computes one node's fingerprint from its inputs and its
// already-hashed upstream nodes.
func (r *Runner) hashNode(ctx context.Context, node *engine.Node, plan *Plan) (string, []string, error) {
	def := node.Definition

	files, err := fingerprint.HashFiles(ctx, r.src, node.Package.Dir, def.Inputs)
	if err != nil {
		return "", nil, err
	}

	env := fingerprint.HashEnv(r.snapshot, def.Env)

	dotEnv, err := fingerprint.HashDotEnv(r.src, node.Package.Dir, def.DotEnv)
	if err != nil {
		return "", nil, err
	}

	upstream := make(map[string]string, len(node.Deps))
	for _, dep := range node.Deps {
		upstream[dep.ID] = plan.Hashes[dep.ID]
	}

	hash := fingerprint.HashTask(fingerprint.TaskHashable{
		GlobalHash:     plan.Global.Digest(),
		TaskID:         node.ID,
		PackageDir:     node.Package.Dir,
		Command:        node.Command,
		Definition:     def,
		FileDigest:     files.Digest(),
		EnvDigest:      env.Digest(),
		DotEnvDigest:   dotEnv,
		UpstreamHashes: upstream,
	})
	return hash, env.Names, nil
}

// topoOrder returns nodes so that dependencies precede dependents,
// with ties broken by node ID (Kahn's algorithm over sorted IDs).
func topoOrder(g *engine.Graph) []*engine.Node {
	indeg := make(map[string]int, g.Len())
	for _, n := range g.Nodes() {
		indeg[n.ID] = len(n.Deps)
	}

	var order []*engine.Node
	ready := make([]*engine.Node, 0, g.Len())
	for _, n := range g.Nodes() { // Nodes() is ID-sorted
		if indeg[n.ID] == 0 {
			ready = append(ready, n)
		}
	}
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		for _, dep := range n.Dependents {
			indeg[dep.ID]--
			if indeg[dep.ID] == 0 {
				ready = insertSorted(ready, dep)
			}
		}
	}
	return order
}

func insertSorted(nodes []*engine.Node, n *engine.Node) []*engine.Node {
	i := 0
	for i < len(nodes) && nodes[i].ID < n.ID {
		i++
	}
	nodes = append(nodes, nil)
	copy(nodes[i+1:], nodes[i:])
	nodes[i] = n
	return nodes
}

func toCacheStatus(s cache.Status) summary.CacheStatus {
	switch s {
	case cache.StatusLocal:
		return summary.CacheLocal
	case cache.StatusRemote:
		return summary.CacheRemote
	default:
		return summary.CacheMiss
	}
}
