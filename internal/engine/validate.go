package engine

// Validate runs the post-construction checks that must pass before any
// scheduling: persistent tasks may not be depended on, and the
// concurrency limit must exceed the number of persistent tasks (each
// occupies a worker slot for the whole run).
func Validate(g *Graph, concurrency int) error {
	persistentCount := 0
	for _, node := range g.Nodes() {
		if !node.Definition.Persistent {
			continue
		}
		persistentCount++
		for _, dependent := range node.Dependents {
			return &InvalidPersistentTaskDependencyError{
				Persistent: node.ID,
				Dependent:  dependent.ID,
			}
		}
	}

	if persistentCount > 0 && persistentCount >= concurrency {
		return &InvalidPersistentTaskConfigurationError{
			PersistentCount: persistentCount,
			Concurrency:     concurrency,
		}
	}
	return nil
}
