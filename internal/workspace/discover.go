package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/joss/chore/internal/text"
)

// ManifestName is the per-package manifest file.
const ManifestName = "package.json"

// Discover enumerates workspace packages: the root manifest becomes
// the synthetic "//" package, and each workspace glob is expanded to
// package directories containing a manifest. Directories matched by a
// glob but missing a manifest are skipped silently (globs like
// "packages/*" commonly match stray dirs).
func Discover(root string, workspaceGlobs []string) ([]*Package, error) {
	var pkgs []*Package
	rawDeps := make(map[string]map[string]string)

	rootPkg, rootDeps, err := loadPackage(root, ".")
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if rootPkg != nil {
		rootPkg.Name = RootPackageName
		pkgs = append(pkgs, rootPkg)
		rawDeps[rootPkg.Name] = rootDeps
	}

	seen := make(map[string]bool)
	for _, glob := range workspaceGlobs {
		if !doublestar.ValidatePattern(glob) {
			return nil, fmt.Errorf("invalid workspace glob %q", glob)
		}
		matches, err := doublestar.Glob(os.DirFS(root), glob)
		if err != nil {
			return nil, fmt.Errorf("expand workspace glob %q: %w", glob, err)
		}
		for _, dir := range matches {
			if seen[dir] {
				continue
			}
			seen[dir] = true

			pkg, deps, err := loadPackage(root, dir)
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			if err != nil {
				return nil, err
			}
			pkgs = append(pkgs, pkg)
			rawDeps[pkg.Name] = deps
		}
	}

	classifyDeps(pkgs, rawDeps)
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].Name < pkgs[j].Name })
	return pkgs, nil
}

func loadPackage(root, dir string) (*Package, map[string]string, error) {
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(dir), ManifestName))
	if err != nil {
		return nil, nil, err
	}
	return parseManifest(data, text.Slash(dir))
}

// classifyDeps splits each package's declared dependencies into
// internal (another workspace package) and external.
func classifyDeps(pkgs []*Package, rawDeps map[string]map[string]string) {
	names := make(map[string]bool, len(pkgs))
	for _, p := range pkgs {
		names[p.Name] = true
	}
	for _, p := range pkgs {
		deps := rawDeps[p.Name]
		p.ExternalDeps = make(map[string]string)
		for name, ver := range deps {
			if names[name] && name != p.Name {
				p.InternalDeps = append(p.InternalDeps, name)
			} else {
				p.ExternalDeps[name] = ver
			}
		}
		sort.Strings(p.InternalDeps)
	}
}
