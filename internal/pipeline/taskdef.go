// Package pipeline resolves raw task configuration into fully resolved
// per-(package, task) definitions.
package pipeline

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// OutputMode controls how a task's captured output is shown.
type OutputMode string

const (
	OutputFull       OutputMode = "full"
	OutputHashOnly   OutputMode = "hash-only"
	OutputNewOnly    OutputMode = "new-only"
	OutputErrorsOnly OutputMode = "errors-only"
	OutputNone       OutputMode = "none"
)

// ParseOutputMode validates a raw output mode string, defaulting to full.
func ParseOutputMode(s string) (OutputMode, error) {
	switch OutputMode(s) {
	case "":
		return OutputFull, nil
	case OutputFull, OutputHashOnly, OutputNewOnly, OutputErrorsOnly, OutputNone:
		return OutputMode(s), nil
	}
	return "", fmt.Errorf("unknown outputMode %q", s)
}

// Globs is an inclusion/exclusion glob pair. Entries prefixed with "!"
// in raw config land in Exclusions; exclusion always wins over
// inclusion during matching.
type Globs struct {
	Inclusions []string
	Exclusions []string
}

// SplitGlobs separates raw entries into inclusions and "!"-prefixed
// exclusions, validating each pattern.
func SplitGlobs(raw []string) (Globs, error) {
	var g Globs
	for _, entry := range raw {
		pattern := strings.TrimPrefix(entry, "!")
		if pattern == "" || !doublestar.ValidatePattern(pattern) {
			return Globs{}, fmt.Errorf("invalid glob %q", entry)
		}
		if strings.HasPrefix(entry, "!") {
			g.Exclusions = append(g.Exclusions, pattern)
		} else {
			g.Inclusions = append(g.Inclusions, pattern)
		}
	}
	return g, nil
}

// Empty reports whether no patterns are present at all.
func (g Globs) Empty() bool {
	return len(g.Inclusions) == 0 && len(g.Exclusions) == 0
}

// TaskDefinition is the resolved configuration for one (package, task)
// pair. All fields are in their final, validated form.
type TaskDefinition struct {
	// Outputs are globs for files the task produces (cache capture set).
	Outputs Globs

	// Inputs are globs for extra hash inputs; empty means "all tracked
	// files in the package directory".
	Inputs Globs

	// Env lists variable names (or doublestar patterns) hashed into the
	// task fingerprint.
	Env []string

	// PassThroughEnv lists variables visible to the task in strict mode
	// without affecting the hash.
	PassThroughEnv []string

	// DotEnv lists package-relative env files whose contents
	// participate in the hash.
	DotEnv []string

	// DependsOn entries: "task" (same package), "^task" (the task in
	// every direct dependency package), or "pkg#task" (explicit node).
	DependsOn []string

	// Cache controls whether results are stored and restored.
	Cache bool

	// Persistent marks never-terminating tasks (dev servers). No node
	// may depend on a persistent task.
	Persistent bool

	// OutputMode controls log display/replay for this task.
	OutputMode OutputMode
}

// TopologicalPrefix marks a dependsOn entry as "this task in all
// direct dependency packages".
const TopologicalPrefix = "^"

// TaskIDSeparator joins package and task into a node ID.
const TaskIDSeparator = "#"

// TaskID builds the canonical node identifier for a (package, task).
func TaskID(pkg, task string) string {
	return pkg + TaskIDSeparator + task
}

// SplitTaskID splits "pkg#task" into its parts.
func SplitTaskID(id string) (pkg, task string, ok bool) {
	i := strings.LastIndex(id, TaskIDSeparator)
	if i <= 0 || i == len(id)-1 {
		return "", "", false
	}
	return id[:i], id[i+1:], true
}
