package fingerprint

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joss/chore/internal/config"
	"github.com/joss/chore/internal/pipeline"
	"github.com/joss/chore/internal/scm"
)

// lockfileNames are the package-manager lockfiles probed at the root.
// Whichever exist participate in the global hash.
var lockfileNames = []string{
	"package-lock.json",
	"yarn.lock",
	"pnpm-lock.yaml",
	"bun.lockb",
}

// Global is the fingerprint of run-wide inputs shared by every task:
// the root config content, the lockfile(s), the globalDependencies
// file set, the global env subset, and the env mode itself.
type Global struct {
	ConfigHash   string
	LockfileHash string
	FilesDigest  string
	Env          EnvFingerprint
	EnvMode      string

	digest string
}

// Digest returns the combined global fingerprint.
func (g Global) Digest() string {
	return g.digest
}

// HashGlobal computes the run-global fingerprint.
func HashGlobal(ctx context.Context, src scm.FileSource, cfg *config.RootConfig, snap config.Snapshot) (Global, error) {
	g := Global{
		ConfigHash: Digest(string(cfg.Content)),
		EnvMode:    cfg.EffectiveEnvMode(),
		Env:        HashEnv(snap, cfg.GlobalEnv),
	}

	lockW := newHasher()
	for _, name := range lockfileNames {
		data, err := src.ReadFile(name)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return Global{}, fmt.Errorf("read lockfile %s: %w", name, err)
		}
		lockW.field(name, string(data))
	}
	g.LockfileHash = lockW.sum()

	if len(cfg.GlobalDependencies) > 0 {
		globs, err := pipeline.SplitGlobs(cfg.GlobalDependencies)
		if err != nil {
			return Global{}, fmt.Errorf("globalDependencies: %w", err)
		}
		files, err := hashGlobalFiles(ctx, src, globs)
		if err != nil {
			return Global{}, err
		}
		g.FilesDigest = files.Digest()
	} else {
		g.FilesDigest = Digest()
	}

	w := newHasher()
	w.field("config", g.ConfigHash)
	w.field("lockfile", g.LockfileHash)
	w.field("files", g.FilesDigest)
	w.field("env", g.Env.Digest())
	w.field("envMode", g.EnvMode)
	g.digest = w.sum()
	return g, nil
}

// hashGlobalFiles matches globalDependencies globs against the whole
// workspace. Unlike task inputs there is no implicit "all files": only
// explicitly matched files count.
func hashGlobalFiles(ctx context.Context, src scm.FileSource, globs pipeline.Globs) (FileHashes, error) {
	universe, err := src.ListTrackedFiles(ctx, "")
	if err != nil {
		return FileHashes{}, fmt.Errorf("list workspace files: %w", err)
	}
	selected := make(map[string]string)
	for _, path := range universe {
		if !matchesExplicit(path, globs) {
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
