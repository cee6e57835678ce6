package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/joss/chore/internal/cache"
	"github.com/joss/chore/internal/config"
	"github.com/joss/chore/internal/engine"
	"github.com/joss/chore/internal/exec"
	"github.com/joss/chore/internal/fingerprint"
	"github.com/joss/chore/internal/logging"
	"github.com/joss/chore/internal/metrics"
	"github.com/joss/chore/internal/pipeline"
	"github.com/joss/chore/internal/scm"
	"github.com/joss/chore/internal/summary"
)

// TaskFailedError marks a task that ran and exited nonzero.
type TaskFailedError struct {
	TaskID   string
	ExitCode int
}

func (e *TaskFailedError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.TaskID, e.ExitCode)
}

// Run plans and executes the requested tasks, returning the run
// summary. Task failures are reported through the summary, not the
// error return; the error covers configuration, graph, and hashing
// problems that prevent the run from starting.
func (r *Runner) Run(ctx context.Context, opts Options) (*summary.RunSummary, error) {
	plan, err := r.Plan(ctx, opts)
	if err != nil {
		return nil, err
	}
	return r.Execute(ctx, plan, opts)
}

// Execute runs an already-hashed plan. Split from Run so callers that
// need the plan up front (dry-run reports, progress displays) don't
// hash the graph twice.
func (r *Runner) Execute(ctx context.Context, plan *Plan, opts Options) (*summary.RunSummary, error) {
	start := time.Now()

	sum := summary.NewRunSummary()
	sum.DryRun = opts.DryRun
	ctx = logging.WithRunID(ctx, sum.RunID)
	log := r.log.WithRun(sum.RunID)

	if opts.DryRun {
		for _, t := range plan.Tasks {
			sum.Add(plannedSummary(t))
		}
		sum.Finish(time.Since(start))
		return sum, nil
	}

	if err := r.paths.Ensure(); err != nil {
		return nil, fmt.Errorf("prepare workspace dirs: %w", err)
	}

	log.Info("run_started", map[string]any{
		"tasks":       opts.Tasks,
		"nodes":       plan.Graph.Len(),
		"concurrency": plan.Concurrency,
		"env_mode":    plan.EnvMode,
	})
	for _, w := range plan.Graph.Warnings {
		log.Warn("graph_warning", map[string]any{"detail": w}, nil)
	}

	// Persistent processes outlive the scheduling loop; they get a
	// child context so a failed run (or the caller's cancellation)
	// tears them down.
	execCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ex := &execution{
		r:       r,
		opts:    opts,
		plan:    plan,
		sink:    newOutputSink(opts.Output),
		log:     log,
		records: make(map[string]*taskRecord, plan.Graph.Len()),
	}

	res := engine.Execute(execCtx, plan.Graph, engine.ExecOptions{
		Concurrency:     plan.Concurrency,
		ContinueOnError: opts.ContinueOnError,
	}, ex.visit)

	// With dev servers still up and nothing failed, the run stays
	// attached until the caller cancels (Ctrl-C).
	if len(ex.waits) > 0 {
		if res.Ok() {
			log.Info("persistent_waiting", map[string]any{"count": len(ex.waits)})
			<-ctx.Done()
		}
		cancel()
		for _, wait := range ex.waits {
			wait()
		}
	}

	r.cache.Wait()

	for _, nr := range res.Results() {
		sum.Add(ex.taskSummary(nr))
	}
	sum.Finish(time.Since(start))
	sum.Metrics = metrics.Global().Snapshot()

	if path, err := sum.Write(r.paths.RunsDir); err != nil {
		log.Warn("summary_write_failed", nil, err)
	} else {
		log.Debug("summary_written", map[string]any{"path": path})
	}

	r.cache.RecordRun(ctx, cache.RunInfo{
		RunID:     sum.RunID,
		StartedAt: sum.StartedAt,
		Wall:      sum.Duration,
		Total:     len(sum.Tasks),
		Succeeded: sum.Succeeded,
		Failed:    sum.Failed,
		Cached:    sum.Cached,
		ExitOK:    sum.Ok(),
	})

	log.TimedEvent("run_finished", start, map[string]any{
		"succeeded": sum.Succeeded,
		"failed":    sum.Failed,
		"cached":    sum.Cached,
		"skipped":   sum.Skipped,
	})
	return sum, nil
}

func plannedSummary(t PlannedTask) summary.TaskSummary {
	return summary.TaskSummary{
		AttemptID:    summary.NewAttemptID(),
		ID:           t.Node.ID,
		Package:      t.Node.Package.Name,
		Task:         t.Node.Task,
		Hash:         t.Hash,
		Command:      t.Node.Command,
		Status:       "planned",
		CacheStatus:  t.CacheStatus,
		Dependencies: nodeIDs(t.Node.Deps),
		Dependents:   nodeIDs(t.Node.Dependents),
	}
}

func nodeIDs(nodes []*engine.Node) []string {
	if len(nodes) == 0 {
		return nil
	}
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}

// taskRecord is the visitor-side outcome for one node, merged with the
// scheduler's result into the final task summary.
type taskRecord struct {
	attemptID   string
	cacheStatus summary.CacheStatus
	exitCode    int
	timeSaved   time.Duration
	logFile     string
	errMsg      string
}

// execution carries the per-run state shared by concurrent visitors.
type execution struct {
	r    *Runner
	opts Options
	plan *Plan
	sink *outputSink
	log  *logging.Logger

	mu      sync.Mutex
	records map[string]*taskRecord
	waits   []func() exec.Result
}

func (e *execution) record(id string) *taskRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec := &taskRecord{
		attemptID:   summary.NewAttemptID(),
		cacheStatus: summary.CacheDisabled,
	}
	e.records[id] = rec
	return rec
}

func (e *execution) addWait(wait func() exec.Result) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.waits = append(e.waits, wait)
}

// visit executes one node: cache restore when possible, process
// execution otherwise, then output capture and cache write.
func (e *execution) visit(ctx context.Context, node *engine.Node) error {
	def := node.Definition
	hash := e.plan.Hashes[node.ID]
	rec := e.record(node.ID)
	tlog := e.log.WithTask(node.ID)

	emit(e.opts.Events, Event{Kind: EventStarted, TaskID: node.ID})

	cacheable := def.Cache && !e.opts.NoCache
	if cacheable && !e.opts.Force {
		entry, status, err := e.r.cache.Fetch(ctx, hash)
		if err != nil {
			rec.errMsg = err.Error()
			emit(e.opts.Events, Event{Kind: EventFailed, TaskID: node.ID, Err: err})
			return err
		}
		if entry != nil {
			rec.cacheStatus = toCacheStatus(status)
			rec.timeSaved = entry.Duration
			rec.exitCode = entry.ExitCode
			rec.logFile = e.writeLogFile(node, entry.Log, tlog)
			if def.OutputMode == pipeline.OutputFull {
				e.sink.writeLines(node.ID, entry.Log)
			}
			tlog.Info("cache_hit", map[string]any{
				"hash":     hash,
				"source":   string(status),
				"saved_ms": entry.Duration.Milliseconds(),
			})
			e.r.m().TasksRun.Add(1)
			emit(e.opts.Events, Event{
				Kind:        EventCached,
				TaskID:      node.ID,
				CacheStatus: rec.cacheStatus,
				Duration:    entry.Duration,
			})
			return nil
		}
	}
	if cacheable {
		rec.cacheStatus = summary.CacheMiss
	}

	stream := e.sink.streamFor(node.ID, def.OutputMode)
	spec := exec.Spec{
		Command: node.Command,
		Dir:     filepath.Join(e.r.root, filepath.FromSlash(node.Package.Dir)),
		Env:     e.taskEnv(node, hash),
	}
	if stream != nil {
		spec.Stdout = stream
		spec.Stderr = stream
	}

	if def.Persistent {
		return e.startPersistent(ctx, node, spec, rec, tlog)
	}

	runCtx := ctx
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	tlog.Info("task_started", map[string]any{"hash": hash, "command": node.Command})
	res, err := e.r.exec.Run(runCtx, spec)
	if stream != nil {
		stream.flush()
	}
	e.r.m().TasksRun.Add(1)
	rec.exitCode = res.ExitCode
	rec.logFile = e.writeLogFile(node, res.Log, tlog)

	if err != nil {
		rec.errMsg = err.Error()
		e.r.m().TasksFailed.Add(1)
		tlog.Error("task_spawn_failed", nil, err)
		emit(e.opts.Events, Event{Kind: EventFailed, TaskID: node.ID, Err: err})
		return fmt.Errorf("%s: %w", node.ID, err)
	}
	if res.ExitCode != 0 {
		failErr := &TaskFailedError{TaskID: node.ID, ExitCode: res.ExitCode}
		rec.errMsg = failErr.Error()
		e.r.m().TasksFailed.Add(1)
		if def.OutputMode == pipeline.OutputErrorsOnly {
			e.sink.writeLines(node.ID, res.Log)
		}
		tlog.TimedEvent("task_failed", start, map[string]any{"exit_code": res.ExitCode})
		emit(e.opts.Events, Event{Kind: EventFailed, TaskID: node.ID, Duration: res.Duration, Err: failErr})
		return failErr
	}

	if cacheable {
		e.store(ctx, node, hash, res, tlog)
	}

	tlog.TimedEvent("task_finished", start, map[string]any{"hash": hash})
	emit(e.opts.Events, Event{Kind: EventSuccess, TaskID: node.ID, Duration: res.Duration})
	return nil
}

// startPersistent launches a never-terminating task. The node counts
// as complete once the process is up; the wait handle is reaped at the
// end of the run.
func (e *execution) startPersistent(ctx context.Context, node *engine.Node, spec exec.Spec, rec *taskRecord, tlog *logging.Logger) error {
	wait, err := e.r.exec.Start(ctx, spec)
	if err != nil {
		rec.errMsg = err.Error()
		e.r.m().TasksFailed.Add(1)
		tlog.Error("persistent_spawn_failed", nil, err)
		emit(e.opts.Events, Event{Kind: EventFailed, TaskID: node.ID, Err: err})
		return fmt.Errorf("%s: %w", node.ID, err)
	}
	e.addWait(wait)
	e.r.m().TasksRun.Add(1)
	tlog.Info("persistent_started", map[string]any{"command": node.Command})
	emit(e.opts.Events, Event{Kind: EventSuccess, TaskID: node.ID})
	return nil
}

// store captures the task's declared outputs and writes the cache
// entry. Capture problems downgrade to "ran but not cached".
func (e *execution) store(ctx context.Context, node *engine.Node, hash string, res exec.Result, tlog *logging.Logger) {
	files, err := e.captureOutputs(ctx, node)
	if err != nil {
		tlog.Warn("output_capture_failed", map[string]any{"hash": hash}, err)
		return
	}
	e.r.cache.Put(ctx, node.ID, &cache.Entry{
		Hash:     hash,
		ExitCode: 0,
		Duration: res.Duration,
		Log:      res.Log,
		Files:    files,
	})
	tlog.Debug("cache_stored", map[string]any{"hash": hash, "files": len(files)})
}

// captureOutputs matches the node's output globs against a fresh
// post-execution filesystem walk. Build outputs are typically
// gitignored, so the tracked-file source can't see them.
func (e *execution) captureOutputs(ctx context.Context, node *engine.Node) ([]string, error) {
	if node.Definition.Outputs.Empty() {
		return nil, nil
	}
	listing, err := scm.NewWalkSource(e.r.root).ListTrackedFiles(ctx, node.Package.Dir)
	if err != nil {
		return nil, err
	}
	return fingerprint.MatchOutputs(listing, node.Package.Dir, node.Definition.Outputs), nil
}

// taskEnv builds the process environment per the strict/loose policy.
// The task's own fingerprint rides along for tools that key artifacts
// off it.
func (e *execution) taskEnv(node *engine.Node, hash string) []string {
	var hashed []string
	for _, t := range e.plan.Tasks {
		if t.Node.ID == node.ID {
			hashed = t.EnvNames
			break
		}
	}
	return fingerprint.ExecutionEnv(
		e.r.snapshot,
		e.plan.EnvMode,
		hashed,
		node.Definition.PassThroughEnv,
		e.plan.Global.Env.Names,
		e.r.cfg.GlobalPassThroughEnv,
		map[string]string{"CHORE_HASH": hash},
	)
}

// writeLogFile persists the captured log at the task's deterministic
// path. Written on every run, cached or not. Failures are advisory.
func (e *execution) writeLogFile(node *engine.Node, log []byte, tlog *logging.Logger) string {
	path := config.LogFile(e.r.root, node.Package.Dir, node.Task)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		tlog.Warn("log_write_failed", map[string]any{"path": path}, err)
		return ""
	}
	if err := os.WriteFile(path, log, 0o644); err != nil {
		tlog.Warn("log_write_failed", map[string]any{"path": path}, err)
		return ""
	}
	return path
}

// taskSummary merges the scheduler result with the visitor record.
func (e *execution) taskSummary(nr *engine.NodeResult) summary.TaskSummary {
	e.mu.Lock()
	rec := e.records[nr.Node.ID]
	e.mu.Unlock()

	ts := summary.TaskSummary{
		ID:           nr.Node.ID,
		Package:      nr.Node.Package.Name,
		Task:         nr.Node.Task,
		Hash:         e.plan.Hashes[nr.Node.ID],
		Command:      nr.Node.Command,
		Status:       string(nr.Status),
		CacheStatus:  summary.CacheDisabled,
		DurationMS:   nr.Duration.Milliseconds(),
		Dependencies: nodeIDs(nr.Node.Deps),
		Dependents:   nodeIDs(nr.Node.Dependents),
	}
	if rec != nil {
		ts.AttemptID = rec.attemptID
		ts.CacheStatus = rec.cacheStatus
		ts.TimeSavedMS = rec.timeSaved.Milliseconds()
		ts.ExitCode = rec.exitCode
		ts.LogFile = rec.logFile
		ts.Error = rec.errMsg
	} else {
		// Never scheduled: no attempt happened.
		ts.AttemptID = summary.NewAttemptID()
	}
	return ts
}

// m is shorthand for the global metrics registry.
func (r *Runner) m() *metrics.Metrics {
	return metrics.Global()
}
