package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/joss/chore/internal/cache"
	"github.com/joss/chore/internal/engine"
	"github.com/joss/chore/internal/runner"
	"github.com/joss/chore/internal/summary"
	"github.com/joss/chore/internal/text"
	"github.com/joss/chore/internal/workspace"
)

// Renderer formats planner and run output.
type Renderer struct {
	pretty bool
}

// New creates a renderer. pretty enables color and rulers.
func New(pretty bool) *Renderer {
	return &Renderer{pretty: pretty}
}

func (r *Renderer) rule(sb *strings.Builder, n int) {
	if r.pretty {
		sb.WriteString(strings.Repeat("─", n) + "\n")
	}
}

// Plan formats a dry-run report: every planned node with its hash,
// cache state, command, and graph edges.
func (r *Renderer) Plan(p *runner.Plan) string {
	var sb strings.Builder

	if r.pretty {
		sb.WriteString(color.CyanString("Plan: %d tasks\n", len(p.Tasks)))
	} else {
		fmt.Fprintf(&sb, "plan tasks=%d env_mode=%s concurrency=%d\n", len(p.Tasks), p.EnvMode, p.Concurrency)
	}
	r.rule(&sb, 60)

	for _, t := range p.Tasks {
		r.formatPlanned(&sb, t)
	}

	if len(p.Graph.Warnings) > 0 {
		sb.WriteString("\n")
		for _, w := range p.Graph.Warnings {
			if r.pretty {
				fmt.Fprintf(&sb, "%s %s\n", color.YellowString("!"), w)
			} else {
				fmt.Fprintf(&sb, "warning: %s\n", w)
			}
		}
	}
	return sb.String()
}

func (r *Renderer) formatPlanned(sb *strings.Builder, t runner.PlannedTask) {
	cacheNote := string(t.CacheStatus)
	if r.pretty {
		c := color.New(color.FgHiBlack)
		switch t.CacheStatus {
		case summary.CacheLocal, summary.CacheRemote:
			c = color.New(color.FgGreen)
		case summary.CacheMiss:
			c = color.New(color.FgYellow)
		}
		fmt.Fprintf(sb, "%s %s\n", color.New(color.Bold).Sprint(t.Node.ID), c.Sprintf("[%s]", cacheNote))
		fmt.Fprintf(sb, "  hash:    %s\n", t.Hash)
		fmt.Fprintf(sb, "  command: %s\n", t.Node.Command)
	} else {
		fmt.Fprintf(sb, "%s hash=%s cache=%s command=%q\n", t.Node.ID, t.Hash, cacheNote, t.Node.Command)
	}
	if len(t.Node.Deps) > 0 {
		ids := make([]string, len(t.Node.Deps))
		for i, d := range t.Node.Deps {
			ids[i] = d.ID
		}
		fmt.Fprintf(sb, "  needs:   %s\n", strings.Join(ids, ", "))
	}
}

// Summary formats the end-of-run report.
func (r *Renderer) Summary(s *summary.RunSummary) string {
	var sb strings.Builder

	sb.WriteString("\n")
	r.rule(&sb, 60)

	for _, t := range s.Tasks {
		icon := StatusIcon(t.Status)
		if r.pretty {
			switch t.Status {
			case "success":
				icon = color.GreenString(icon)
			case "failed":
				icon = color.RedString(icon)
			}
		}
		note := ""
		switch t.CacheStatus {
		case summary.CacheLocal, summary.CacheRemote:
			note = fmt.Sprintf("  cache hit (%s", t.CacheStatus)
			if t.TimeSavedMS > 0 {
				note += fmt.Sprintf(", %s saved", text.FormatDuration(time.Duration(t.TimeSavedMS)*time.Millisecond))
			}
			note += ")"
			if r.pretty {
				note = color.HiBlackString(note)
			}
		case summary.CacheMiss:
			if t.Status == "success" {
				note = "  cache miss, executed"
				if r.pretty {
					note = color.HiBlackString(note)
				}
			}
		}
		fmt.Fprintf(&sb, "%s %s  %s%s\n", icon, t.ID,
			text.FormatDuration(time.Duration(t.DurationMS)*time.Millisecond), note)
		if t.Error != "" {
			fmt.Fprintf(&sb, "    %s\n", t.Error)
		}
	}

	sb.WriteString("\n")
	line := fmt.Sprintf("%d successful, %d cached, %d failed, %d skipped  (%s)",
		s.Succeeded, s.Cached, s.Failed, s.Skipped,
		text.FormatDuration(time.Duration(s.WallMS)*time.Millisecond))
	if s.TotalTimeSavedMS > 0 {
		line += fmt.Sprintf("  saved %s", text.FormatDuration(time.Duration(s.TotalTimeSavedMS)*time.Millisecond))
	}
	if r.pretty {
		if s.Failed > 0 {
			line = color.RedString(line)
		} else {
			line = color.GreenString(line)
		}
	}
	sb.WriteString(line + "\n")
	return sb.String()
}

// PackageGraph formats the workspace dependency graph as an adjacency
// listing.
func (r *Renderer) PackageGraph(g *workspace.Graph) string {
	var sb strings.Builder
	if r.pretty {
		sb.WriteString(color.CyanString("Packages: %d\n", g.Len()))
		r.rule(&sb, 60)
	}
	for _, name := range g.Names() {
		pkg, _ := g.Get(name)
		fmt.Fprintf(&sb, "%s (%s)\n", name, pkg.Dir)
		for _, dep := range g.DirectDependencies(name) {
			fmt.Fprintf(&sb, "  → %s\n", dep)
		}
	}
	return sb.String()
}

// TaskGraph formats an expanded task graph as an adjacency listing.
func (r *Renderer) TaskGraph(g *engine.Graph) string {
	var sb strings.Builder
	if r.pretty {
		sb.WriteString(color.CyanString("Tasks: %d\n", g.Len()))
		r.rule(&sb, 60)
	}
	for _, node := range g.Nodes() {
		fmt.Fprintf(&sb, "%s\n", node.ID)
		for _, dep := range node.Deps {
			fmt.Fprintf(&sb, "  → %s\n", dep.ID)
		}
	}
	for _, w := range g.Warnings {
		if r.pretty {
			fmt.Fprintf(&sb, "%s %s\n", color.YellowString("!"), w)
		} else {
			fmt.Fprintf(&sb, "warning: %s\n", w)
		}
	}
	return sb.String()
}

// CacheStatus formats cache store totals and recent entries.
func (r *Renderer) CacheStatus(count int, totalBytes int64, entries []cache.EntryInfo) string {
	var sb strings.Builder
	if r.pretty {
		sb.WriteString(color.CyanString("Cache\n"))
		r.rule(&sb, 60)
	}
	fmt.Fprintf(&sb, "  Entries: %d\n", count)
	fmt.Fprintf(&sb, "  Size:    %s\n", text.FormatBytes(totalBytes))
	if len(entries) > 0 {
		sb.WriteString("\n")
		for _, e := range entries {
			fmt.Fprintf(&sb, "  %s  %-30s %8s  hits=%d\n",
				e.Hash, text.Truncate(e.TaskID, 30), text.FormatBytes(e.SizeBytes), e.Hits)
		}
	}
	return sb.String()
}

// Runs formats recorded run history, newest first.
func (r *Renderer) Runs(runs []cache.RunInfo) string {
	if len(runs) == 0 {
		return "No runs recorded\n"
	}
	var sb strings.Builder
	if r.pretty {
		sb.WriteString(color.CyanString("Runs\n"))
		r.rule(&sb, 60)
	}
	for _, run := range runs {
		icon := "✓"
		if !run.ExitOK {
			icon = "✗"
		}
		if r.pretty {
			if run.ExitOK {
				icon = color.GreenString(icon)
			} else {
				icon = color.RedString(icon)
			}
		}
		fmt.Fprintf(&sb, "%s %s  %s  %d tasks (%d cached, %d failed)  %s\n",
			icon, run.RunID, run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Total, run.Cached, run.Failed, text.FormatDuration(run.Wall))
	}
	return sb.String()
}
