package engine

import (
	"fmt"
	"strings"
)

// CycleError reports a task dependency cycle with the full chain.
type CycleError struct {
	Chain []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cyclic task dependency: %s", strings.Join(e.Chain, " -> "))
}

// MissingPackageError reports a dependsOn entry naming a package that
// is not in the workspace.
type MissingPackageError struct {
	TaskID  string
	Package string
}

func (e *MissingPackageError) Error() string {
	return fmt.Sprintf("%s depends on package %q, which is not in the workspace", e.TaskID, e.Package)
}

// InvalidPersistentTaskDependencyError reports a dependency edge into
// a persistent task. Persistent tasks never terminate, so nothing can
// wait on their completion.
type InvalidPersistentTaskDependencyError struct {
	Persistent string
	Dependent  string
}

func (e *InvalidPersistentTaskDependencyError) Error() string {
	return fmt.Sprintf("%s depends on %s, but %s is persistent and never completes",
		e.Dependent, e.Persistent, e.Persistent)
}

// InvalidPersistentTaskConfigurationError reports that the concurrency
// limit cannot accommodate the graph's persistent tasks, each of which
// occupies a worker slot for the whole run.
type InvalidPersistentTaskConfigurationError struct {
	PersistentCount int
	Concurrency     int
}

func (e *InvalidPersistentTaskConfigurationError) Error() string {
	return fmt.Sprintf("%d persistent tasks require concurrency of at least %d, got %d",
		e.PersistentCount, e.RequiredConcurrency(), e.Concurrency)
}

// RequiredConcurrency returns the minimum concurrency for the graph.
func (e *InvalidPersistentTaskConfigurationError) RequiredConcurrency() int {
	return e.PersistentCount + 1
}
