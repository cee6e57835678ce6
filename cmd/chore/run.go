package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joss/chore/internal/logging"
	"github.com/joss/chore/internal/render"
	"github.com/joss/chore/internal/runner"
	"github.com/joss/chore/internal/runtime"
	"github.com/joss/chore/internal/summary"
	"github.com/joss/chore/internal/tui"
)

func runCmd() *cobra.Command {
	var (
		filter          []string
		concurrency     int
		continueOnError bool
		force           bool
		noCache         bool
		envMode         string
		timeout         time.Duration
		noUI            bool
	)

	cmd := &cobra.Command{
		Use:   "run <task>...",
		Short: "Run tasks across the workspace",
		Long: `Run one or more tasks in every package that defines them, in
dependency order, restoring cached results where inputs are unchanged.

Examples:
  chore run build                 # build everything, cache-aware
  chore run lint test             # multiple tasks in one graph
  chore run build --filter=web    # only web (and its dependencies)
  chore run build --force         # ignore existing cache entries
  chore run dev                   # persistent tasks run until Ctrl-C`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			sd := runtime.NewShutdownManager(runtime.DefaultShutdownTimeout)
			sd.ListenForSignals()
			sd.RegisterSimple("cache-uploads", a.cache.Wait)
			ctx := sd.Context()

			opts := runner.Options{
				Tasks:           args,
				Filter:          filter,
				Concurrency:     concurrency,
				ContinueOnError: continueOnError,
				Force:           force,
				NoCache:         noCache,
				EnvMode:         envMode,
				Timeout:         timeout,
				Output:          os.Stdout,
			}

			plan, err := a.runner.Plan(ctx, opts)
			if err != nil {
				return err
			}

			useUI := pretty() && !noUI
			var prog *tui.Progress
			if useUI {
				// The live view owns the terminal; task output goes to
				// the per-task log files, structured logs are muted.
				prog = tui.NewProgress(len(plan.Tasks), func() { go sd.Shutdown() })
				opts.Output = io.Discard
				opts.Events = prog
				logging.SetOutput(io.Discard)
			}

			var sum *summaryResult
			if useUI {
				done := make(chan struct{})
				go func() {
					defer close(done)
					s, runErr := a.runner.Execute(ctx, plan, opts)
					sum = &summaryResult{s: s, err: runErr}
					prog.Finish()
				}()
				if err := prog.Run(); err != nil {
					fmt.Fprintf(os.Stderr, "chore: progress display: %v\n", err)
				}
				<-done
				logging.SetOutput(os.Stderr)
			} else {
				s, runErr := a.runner.Execute(ctx, plan, opts)
				sum = &summaryResult{s: s, err: runErr}
			}

			if sum.err != nil {
				return sum.err
			}

			if flagJSON {
				if err := printJSON(sum.s); err != nil {
					return err
				}
			} else {
				fmt.Print(render.New(pretty()).Summary(sum.s))
			}

			if !sum.s.Ok() {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&filter, "filter", nil, "Limit to these packages (and their dependencies)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Max concurrent tasks (default from config)")
	cmd.Flags().BoolVar(&continueOnError, "continue", false, "Keep running unaffected tasks after a failure")
	cmd.Flags().BoolVar(&force, "force", false, "Ignore existing cache entries (still writes new ones)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Disable cache reads and writes")
	cmd.Flags().StringVar(&envMode, "env-mode", "", "Override env mode: strict or loose")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Per-task execution timeout (0 = none)")
	cmd.Flags().BoolVar(&noUI, "no-ui", false, "Disable the live progress display")

	return cmd
}

// summaryResult carries the execute goroutine's outcome back to the
// command.
type summaryResult struct {
	s   *summary.RunSummary
	err error
}
