package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Snapshot is an immutable capture of the process environment, taken
// once at run start. Fingerprinting never consults the ambient
// environment; it only reads from a Snapshot threaded in as a value.
type Snapshot struct {
	vars map[string]string
}

// CaptureEnv snapshots the current process environment.
func CaptureEnv() Snapshot {
	return NewSnapshot(os.Environ())
}

// NewSnapshot builds a snapshot from "NAME=value" pairs.
func NewSnapshot(environ []string) Snapshot {
	vars := make(map[string]string, len(environ))
	for _, kv := range environ {
		if i := strings.IndexByte(kv, '='); i > 0 {
			vars[kv[:i]] = kv[i+1:]
		}
	}
	return Snapshot{vars: vars}
}

// Get returns the value of name and whether it was set.
func (s Snapshot) Get(name string) (string, bool) {
	v, ok := s.vars[name]
	return v, ok
}

// Names returns all variable names, sorted.
func (s Snapshot) Names() []string {
	names := make([]string, 0, len(s.vars))
	for n := range s.vars {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Pairs returns all "NAME=value" pairs sorted by name.
func (s Snapshot) Pairs() []string {
	names := s.Names()
	pairs := make([]string, 0, len(names))
	for _, n := range names {
		pairs = append(pairs, n+"="+s.vars[n])
	}
	return pairs
}

// Paths holds the standard .chore directory layout under a workspace.
type Paths struct {
	// Root is the workspace root.
	Root string

	// Dir is the .chore directory.
	Dir string

	// CacheDir holds content-addressed cache artifacts and the index.
	CacheDir string

	// RunsDir holds per-run summary files.
	RunsDir string
}

// NewPaths computes the directory layout for a workspace root.
func NewPaths(root string) Paths {
	dir := filepath.Join(root, ".chore")
	return Paths{
		Root:     root,
		Dir:      dir,
		CacheDir: filepath.Join(dir, "cache"),
		RunsDir:  filepath.Join(dir, "runs"),
	}
}

// Ensure creates the layout directories.
func (p Paths) Ensure() error {
	for _, d := range []string{p.Dir, p.CacheDir, p.RunsDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// LogFile returns the deterministic per-task log path: the task's log
// lives next to its package at <pkgDir>/.chore/<task>.log and is
// written on every run, cached or not.
func LogFile(root, pkgDir, task string) string {
	return filepath.Join(root, filepath.FromSlash(pkgDir), ".chore", task+".log")
}
