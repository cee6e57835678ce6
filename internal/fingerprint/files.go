package fingerprint

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/joss/chore/internal/pipeline"
	"github.com/joss/chore/internal/scm"
	"github.com/joss/chore/internal/workspace"
)

// FileHashes is an ordered mapping of repo-relative path to content
// hash for one task's input set.
type FileHashes struct {
	hashes map[string]string
}

// Paths returns the hashed paths, sorted.
func (f FileHashes) Paths() []string {
	paths := make([]string, 0, len(f.hashes))
	for p := range f.hashes {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Len returns the number of hashed files.
func (f FileHashes) Len() int {
	return len(f.hashes)
}

// Digest combines the ordered path→hash mapping into one fingerprint.
func (f FileHashes) Digest() string {
	w := newHasher()
	for _, p := range f.Paths() {
		w.field(p, f.hashes[p])
	}
	return w.sum()
}

// HashFiles enumerates and hashes the files a task's inputs select.
// Patterns are package-relative; an empty pattern set means every
// tracked file in the package directory. A file matching both an
// inclusion and an exclusion is excluded: exclusion wins. The package
// manifest is always part of the set.
func HashFiles(ctx context.Context, src scm.FileSource, pkgDir string, inputs pipeline.Globs) (FileHashes, error) {
	universe, err := src.ListTrackedFiles(ctx, pkgDir)
	if err != nil {
		return FileHashes{}, fmt.Errorf("list files in %s: %w", pkgDir, err)
	}

	prefix := ""
	if pkgDir != "" && pkgDir != "." {
		prefix = strings.TrimSuffix(pkgDir, "/") + "/"
	}

	selected := make(map[string]string)
	for _, path := range universe {
		rel := strings.TrimPrefix(path, prefix)
		if !matches(rel, inputs) {
			continue
		}
		h, err := src.HashFile(path)
		if err != nil {
			return FileHashes{}, fmt.Errorf("hash %s: %w", path, err)
		}
		selected[path] = h
	}
	return FileHashes{hashes: selected}, nil
}

// matches applies include/exclude semantics to a package-relative path.
func matches(rel string, globs pipeline.Globs) bool {
	for _, pattern := range globs.Exclusions {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return false
		}
	}
	if len(globs.Inclusions) == 0 {
		return true
	}
	// The manifest is an implicit input: the task command itself lives
	// there, so edits must invalidate the hash even under narrow globs.
	if rel == workspace.ManifestName {
		return true
	}
	for _, pattern := range globs.Inclusions {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// MatchOutputs selects the files under pkgDir captured by a task's
// output globs, from a post-execution file listing.
func MatchOutputs(files []string, pkgDir string, outputs pipeline.Globs) []string {
	if outputs.Empty() {
		return nil
	}
	prefix := ""
	if pkgDir != "" && pkgDir != "." {
		prefix = strings.TrimSuffix(pkgDir, "/") + "/"
	}
	var out []string
	for _, path := range files {
		rel := strings.TrimPrefix(path, prefix)
		if matchesExplicit(rel, outputs) {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out
}

// matchesExplicit is like matches but with no implicit "all files"
// behavior: an empty inclusion list selects nothing.
func matchesExplicit(rel string, globs pipeline.Globs) bool {
	for _, pattern := range globs.Exclusions {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return false
		}
	}
	for _, pattern := range globs.Inclusions {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}
