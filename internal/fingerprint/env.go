package fingerprint

import (
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/joss/chore/internal/config"
)

// EnvFingerprint is the hashed environment subset for one task.
type EnvFingerprint struct {
	// Names are the matched variable names, sorted.
	Names []string

	digest string
}

// Digest returns the fingerprint over sorted name=value pairs.
func (e EnvFingerprint) Digest() string {
	return e.digest
}

// HashEnv fingerprints the variables whose names match the configured
// patterns. A pattern is either an exact name or a doublestar pattern
// (e.g. "VITE_*"). Only explicitly configured variables are ever
// hashed, in both strict and loose mode; sorting by name is what makes
// the digest deterministic.
func HashEnv(snap config.Snapshot, patterns []string) EnvFingerprint {
	names := MatchEnvNames(snap, patterns)
	w := newHasher()
	for _, n := range names {
		v, _ := snap.Get(n)
		w.field(n, v)
	}
	return EnvFingerprint{Names: names, digest: w.sum()}
}

// MatchEnvNames returns the snapshot variable names matching any
// pattern, sorted.
func MatchEnvNames(snap config.Snapshot, patterns []string) []string {
	if len(patterns) == 0 {
		return nil
	}
	var exact []string
	var wild []string
	for _, p := range patterns {
		if strings.ContainsAny(p, "*?[{") {
			wild = append(wild, p)
		} else {
			exact = append(exact, p)
		}
	}

	matched := make(map[string]bool)
	for _, name := range exact {
		if _, ok := snap.Get(name); ok {
			matched[name] = true
		}
	}
	if len(wild) > 0 {
		for _, name := range snap.Names() {
			for _, p := range wild {
				if ok, _ := doublestar.Match(p, name); ok {
					matched[name] = true
					break
				}
			}
		}
	}

	names := make([]string, 0, len(matched))
	for n := range matched {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// defaultVisible are always passed to task processes in strict mode;
// without PATH nothing would spawn.
var defaultVisible = []string{
	"PATH", "HOME", "SHELL", "USER", "LOGNAME",
	"TMPDIR", "TMP", "TEMP", "TERM",
	"SystemRoot", "ComSpec", // windows process startup
}

// ExecutionEnv builds the environment for a task process.
//
// Strict mode: only the hashed variables, pass-through variables,
// global equivalents, and a minimal platform set are visible.
//
// Loose mode: the entire snapshot is visible. The hash still only
// covers the configured subset; that asymmetry is the documented
// loose-mode contract, not an accident.
func ExecutionEnv(snap config.Snapshot, mode string, hashed, passThrough, globalHashed, globalPassThrough []string, extra map[string]string) []string {
	pairs := make(map[string]string)

	if mode == config.EnvModeLoose {
		for _, n := range snap.Names() {
			v, _ := snap.Get(n)
			pairs[n] = v
		}
	} else {
		include := func(names []string) {
			for _, n := range names {
				if v, ok := snap.Get(n); ok {
					pairs[n] = v
				}
			}
		}
		include(defaultVisible)
		include(hashed)
		include(globalHashed)
		include(MatchEnvNames(snap, passThrough))
		include(MatchEnvNames(snap, globalPassThrough))
	}

	for k, v := range extra {
		pairs[k] = v
	}

	names := make([]string, 0, len(pairs))
	for n := range pairs {
		names = append(names, n)
	}
	sort.Strings(names)

	env := make([]string, 0, len(names))
	for _, n := range names {
		env = append(env, n+"="+pairs[n])
	}
	return env
}
