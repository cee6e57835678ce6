// Package scm abstracts file enumeration and content hashing over the
// workspace. Git-tracked workspaces use git ls-files as the universe
// for "all files" fingerprinting; everything else falls back to a
// filesystem walk.
package scm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joss/chore/internal/exec"
	"github.com/joss/chore/internal/text"
)

// FileSource enumerates and hashes workspace files. All returned paths
// are root-relative and forward-slash normalized.
type FileSource interface {
	// ListTrackedFiles returns every tracked file under dir (a
	// root-relative directory; "" or "." means the whole workspace).
	ListTrackedFiles(ctx context.Context, dir string) ([]string, error)

	// HashFile returns the content digest of a root-relative path.
	HashFile(path string) (string, error)

	// ReadFile reads a root-relative path.
	ReadFile(path string) ([]byte, error)
}

// Detect picks a FileSource for root: git when a .git directory is
// present, plain walk otherwise.
func Detect(root string, runner exec.Runner) FileSource {
	if _, err := os.Stat(filepath.Join(root, ".git")); err == nil {
		return &GitSource{root: root, runner: runner}
	}
	return &WalkSource{root: root}
}

func hashContents(absPath string) (string, error) {
	f, err := os.Open(absPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// GitSource lists files with git ls-files. Untracked-but-not-ignored
// files are included so an edited workspace hashes the same before and
// after `git add`.
type GitSource struct {
	root   string
	runner exec.Runner
}

// NewGitSource creates a git-backed source rooted at root.
func NewGitSource(root string, runner exec.Runner) *GitSource {
	return &GitSource{root: root, runner: runner}
}

func (g *GitSource) ListTrackedFiles(ctx context.Context, dir string) ([]string, error) {
	cmd := "git ls-files -z --cached --others --exclude-standard --deduplicate"
	if dir != "" && dir != "." {
		cmd += " -- " + dir
	}
	res, err := g.runner.Run(ctx, exec.Spec{Command: cmd, Dir: g.root})
	if err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("git ls-files exited %d", res.ExitCode)
	}

	var files []string
	for _, p := range strings.Split(string(res.Log), "\x00") {
		if p == "" {
			continue
		}
		// ls-files reports deleted-but-tracked paths too; skip gone files.
		if _, err := os.Stat(filepath.Join(g.root, filepath.FromSlash(p))); err != nil {
			continue
		}
		files = append(files, text.Slash(p))
	}
	sort.Strings(files)
	return files, nil
}

func (g *GitSource) HashFile(path string) (string, error) {
	return hashContents(filepath.Join(g.root, filepath.FromSlash(path)))
}

func (g *GitSource) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(filepath.Join(g.root, filepath.FromSlash(path)))
}

// WalkSource enumerates files with a filesystem walk, skipping
// directories that are never task inputs.
type WalkSource struct {
	root string
}

// NewWalkSource creates a walk-backed source rooted at root.
func NewWalkSource(root string) *WalkSource {
	return &WalkSource{root: root}
}

var skipDirs = map[string]bool{
	".git":         true,
	".chore":       true,
	"node_modules": true,
}

func (w *WalkSource) ListTrackedFiles(ctx context.Context, dir string) ([]string, error) {
	base := w.root
	prefix := ""
	if dir != "" && dir != "." {
		base = filepath.Join(w.root, filepath.FromSlash(dir))
		prefix = strings.TrimSuffix(text.Slash(dir), "/") + "/"
	}

	var files []string
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		files = append(files, prefix+text.Slash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func (w *WalkSource) HashFile(path string) (string, error) {
	return hashContents(filepath.Join(w.root, filepath.FromSlash(path)))
}

func (w *WalkSource) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(filepath.Join(w.root, filepath.FromSlash(path)))
}
