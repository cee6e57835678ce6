package pipeline

import (
	"errors"
	"fmt"

	"github.com/joss/chore/internal/config"
)

// ErrNoDefinition is returned when neither a global nor a
// package-specific definition exists for a task name.
var ErrNoDefinition = errors.New("no pipeline definition")

// Resolver merges global and per-package pipeline configuration into
// resolved TaskDefinitions.
type Resolver struct {
	cfg *config.RootConfig
}

// NewResolver creates a resolver over the root configuration.
func NewResolver(cfg *config.RootConfig) *Resolver {
	return &Resolver{cfg: cfg}
}

// Defined reports whether taskName has any pipeline entry applicable
// to pkgName.
func (r *Resolver) Defined(pkgName, taskName string) bool {
	if _, ok := r.cfg.Pipeline[taskName]; ok {
		return true
	}
	_, ok := r.cfg.Pipeline[TaskID(pkgName, taskName)]
	return ok
}

// HasExplicit reports whether the pipeline has a pkg#task override key
// for this exact pair.
func (r *Resolver) HasExplicit(pkgName, taskName string) bool {
	_, ok := r.cfg.Pipeline[TaskID(pkgName, taskName)]
	return ok
}

// TaskNames returns the distinct task names appearing in the pipeline,
// with pkg#task override keys reduced to their task part.
func (r *Resolver) TaskNames() []string {
	seen := make(map[string]bool)
	var names []string
	for key := range r.cfg.Pipeline {
		name := key
		if _, task, ok := SplitTaskID(key); ok {
			name = task
		}
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// Resolve merges the global definition for taskName with the
// pkgName-specific override, applying per-field merge strategies:
// inputs/outputs/env/passThroughEnv/dotEnv replace, dependsOn unions.
func (r *Resolver) Resolve(pkgName, taskName string) (*TaskDefinition, error) {
	base, hasBase := r.cfg.Pipeline[taskName]
	override, hasOverride := r.cfg.Pipeline[TaskID(pkgName, taskName)]
	if !hasBase && !hasOverride {
		return nil, fmt.Errorf("%w for task %q", ErrNoDefinition, taskName)
	}

	merged := config.TaskConfig{
		Outputs:        mergeLists(base.Outputs, override.Outputs, strategyReplace),
		Inputs:         mergeLists(base.Inputs, override.Inputs, strategyReplace),
		Env:            mergeLists(base.Env, override.Env, strategyReplace),
		PassThroughEnv: mergeLists(base.PassThroughEnv, override.PassThroughEnv, strategyReplace),
		DotEnv:         mergeLists(base.DotEnv, override.DotEnv, strategyReplace),
		DependsOn:      mergeLists(base.DependsOn, override.DependsOn, strategyUnion),
		Cache:          base.Cache,
		Persistent:     base.Persistent || override.Persistent,
		OutputMode:     base.OutputMode,
	}
	if hasOverride {
		if override.Cache != nil {
			merged.Cache = override.Cache
		}
		if override.OutputMode != "" {
			merged.OutputMode = override.OutputMode
		}
	}

	return buildDefinition(pkgName, taskName, merged)
}

func buildDefinition(pkgName, taskName string, raw config.TaskConfig) (*TaskDefinition, error) {
	id := TaskID(pkgName, taskName)

	outputs, err := SplitGlobs(raw.Outputs)
	if err != nil {
		return nil, fmt.Errorf("%s: outputs: %w", id, err)
	}
	inputs, err := SplitGlobs(raw.Inputs)
	if err != nil {
		return nil, fmt.Errorf("%s: inputs: %w", id, err)
	}
	mode, err := ParseOutputMode(raw.OutputMode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", id, err)
	}
	for _, dep := range raw.DependsOn {
		if err := validateDependsOn(dep); err != nil {
			return nil, fmt.Errorf("%s: %w", id, err)
		}
	}

	def := &TaskDefinition{
		Outputs:        outputs,
		Inputs:         inputs,
		Env:            raw.Env,
		PassThroughEnv: raw.PassThroughEnv,
		DotEnv:         raw.DotEnv,
		DependsOn:      raw.DependsOn,
		Cache:          true,
		Persistent:     raw.Persistent,
		OutputMode:     mode,
	}
	if raw.Cache != nil {
		def.Cache = *raw.Cache
	}
	// Persistent tasks never terminate, so caching their (nonexistent)
	// results is meaningless.
	if def.Persistent {
		def.Cache = false
	}
	return def, nil
}

func validateDependsOn(entry string) error {
	if entry == "" || entry == TopologicalPrefix {
		return fmt.Errorf("invalid dependsOn entry %q", entry)
	}
	name := entry
	if len(entry) > 1 && entry[:1] == TopologicalPrefix {
		name = entry[1:]
	}
	if pkg, task, ok := SplitTaskID(name); ok {
		if pkg == "" || task == "" {
			return fmt.Errorf("invalid dependsOn entry %q", entry)
		}
	}
	return nil
}
