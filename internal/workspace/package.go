// Package workspace models the monorepo's packages and their static
// dependency graph.
package workspace

import (
	"encoding/json"
	"fmt"
)

// RootPackageName identifies the synthetic package representing
// repo-root-level scripts, so they can participate in the task graph.
const RootPackageName = "//"

// Package is one workspace package, immutable for the run's lifetime.
type Package struct {
	// Name is the manifest-declared package name.
	Name string

	// Dir is the root-relative directory, forward-slash normalized.
	Dir string

	// Scripts maps task names to their command lines.
	Scripts map[string]string

	// InternalDeps names other workspace packages this one depends on.
	InternalDeps []string

	// ExternalDeps maps external dependency names to version ranges.
	ExternalDeps map[string]string
}

// IsRoot reports whether this is the synthetic root package.
func (p *Package) IsRoot() bool {
	return p.Name == RootPackageName
}

// manifest is the subset of package.json chore reads.
type manifest struct {
	Name            string            `json:"name"`
	Scripts         map[string]string `json:"scripts"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// parseManifest decodes a package manifest into a Package. Internal
// vs. external dependency classification happens later, once the full
// package set is known.
func parseManifest(data []byte, dir string) (*Package, map[string]string, error) {
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, nil, fmt.Errorf("parse manifest in %s: %w", dir, err)
	}
	if m.Name == "" {
		return nil, nil, fmt.Errorf("manifest in %s has no name", dir)
	}

	deps := make(map[string]string, len(m.Dependencies)+len(m.DevDependencies))
	for k, v := range m.Dependencies {
		deps[k] = v
	}
	for k, v := range m.DevDependencies {
		deps[k] = v
	}

	scripts := m.Scripts
	if scripts == nil {
		scripts = map[string]string{}
	}
	return &Package{Name: m.Name, Dir: dir, Scripts: scripts}, deps, nil
}
