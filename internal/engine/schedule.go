package engine

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Status is a node's scheduling outcome.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusSuccess  Status = "success"
	StatusFailed   Status = "failed"
	StatusSkipped  Status = "skipped"  // an upstream dependency failed
	StatusCanceled Status = "canceled" // run aborted before scheduling
)

// Visitor executes one node. It blocks until the node is complete for
// dependency purposes. For persistent tasks that means "started
// successfully", not "exited". A non-nil error marks the node failed.
type Visitor func(ctx context.Context, node *Node) error

// ExecOptions configure a scheduled execution.
type ExecOptions struct {
	// Concurrency bounds simultaneously running nodes. Must already
	// have passed Validate.
	Concurrency int

	// ContinueOnError keeps scheduling nodes whose ancestors all
	// succeeded after a failure elsewhere in the graph.
	ContinueOnError bool
}

// NodeResult records one node's outcome.
type NodeResult struct {
	Node     *Node
	Status   Status
	Err      error
	Duration time.Duration
}

// ExecResult aggregates a full execution.
type ExecResult struct {
	results map[string]*NodeResult
	order   []string
}

// Get returns the result for a node ID.
func (r *ExecResult) Get(id string) (*NodeResult, bool) {
	res, ok := r.results[id]
	return res, ok
}

// Results returns all results sorted by node ID.
func (r *ExecResult) Results() []*NodeResult {
	out := make([]*NodeResult, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.results[id])
	}
	return out
}

// Failed returns the failed node IDs, sorted.
func (r *ExecResult) Failed() []string {
	var out []string
	for _, id := range r.order {
		if r.results[id].Status == StatusFailed {
			out = append(out, id)
		}
	}
	return out
}

// Ok reports whether every node succeeded (skipped/canceled nodes
// count as not ok: they were required but never ran).
func (r *ExecResult) Ok() bool {
	for _, res := range r.results {
		if res.Status != StatusSuccess {
			return false
		}
	}
	return true
}

type completion struct {
	id  string
	err error
	dur time.Duration
}

// Execute runs the graph over a bounded worker pool. Nodes become
// eligible when every upstream dependency has completed; among
// eligible nodes the lexicographically smallest ID is scheduled first,
// which keeps runs reproducible without any code changes. The graph
// itself is read-only here; only the scheduler's own bookkeeping is
// mutated, from a single dispatch loop.
func Execute(ctx context.Context, g *Graph, opts ExecOptions, visit Visitor) *ExecResult {
	nodes := g.Nodes()

	res := &ExecResult{results: make(map[string]*NodeResult, len(nodes))}
	state := make(map[string]Status, len(nodes))
	for _, n := range nodes {
		res.order = append(res.order, n.ID)
		res.results[n.ID] = &NodeResult{Node: n, Status: StatusPending}
		state[n.ID] = StatusPending
	}

	done := make(chan completion)
	var wg sync.WaitGroup

	slotsFree := opts.Concurrency
	if slotsFree < 1 {
		slotsFree = 1
	}
	aborted := false

	depsSatisfied := func(n *Node) bool {
		for _, dep := range n.Deps {
			if state[dep.ID] != StatusSuccess {
				return false
			}
		}
		return true
	}

	depFailed := func(n *Node) bool {
		for _, dep := range n.Deps {
			switch state[dep.ID] {
			case StatusFailed, StatusSkipped, StatusCanceled:
				return true
			}
		}
		return false
	}

	running := 0
	for {
		// Propagate skips before looking for work: a node below a
		// failed or skipped dependency will never become eligible.
		for changed := true; changed; {
			changed = false
			for _, n := range nodes {
				if state[n.ID] == StatusPending && depFailed(n) {
					state[n.ID] = StatusSkipped
					res.results[n.ID].Status = StatusSkipped
					changed = true
				}
			}
		}

		if !aborted && ctx.Err() == nil {
			var eligible []string
			for _, n := range nodes {
				if state[n.ID] == StatusPending && depsSatisfied(n) {
					eligible = append(eligible, n.ID)
				}
			}
			sort.Strings(eligible)

			for _, id := range eligible {
				if slotsFree == 0 {
					break
				}
				node := res.results[id].Node
				state[id] = StatusRunning
				res.results[id].Status = StatusRunning
				slotsFree--
				running++

				wg.Add(1)
				go func(n *Node) {
					defer wg.Done()
					start := time.Now()
					err := visit(ctx, n)
					done <- completion{id: n.ID, err: err, dur: time.Since(start)}
				}(node)
			}
		}

		if running == 0 {
			break
		}

		c := <-done
		running--
		finished := res.results[c.id]
		finished.Duration = c.dur
		if c.err != nil {
			finished.Err = c.err
			finished.Status = StatusFailed
			state[c.id] = StatusFailed
			if !opts.ContinueOnError {
				aborted = true
			}
		} else {
			finished.Status = StatusSuccess
			state[c.id] = StatusSuccess
		}
		// A persistent node's visitor returns at process start; the
		// process keeps its worker slot for the rest of the run.
		if !finished.Node.Definition.Persistent {
			slotsFree++
		}
	}

	wg.Wait()

	// Anything still pending was never scheduled: skipped if below a
	// failure, canceled if the run stopped first.
	for _, n := range nodes {
		if state[n.ID] == StatusPending {
			status := StatusCanceled
			if depFailed(n) {
				status = StatusSkipped
			}
			res.results[n.ID].Status = status
		}
	}
	return res
}
