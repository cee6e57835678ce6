package pipeline

import "sort"

// mergeStrategy is the explicit per-field rule for combining a global
// task definition with a package-level override.
type mergeStrategy int

const (
	// strategyReplace: the override list, when present, replaces the
	// base list entirely. Used for inputs, outputs, env, dotEnv.
	strategyReplace mergeStrategy = iota

	// strategyUnion: base and override are unioned (sorted, deduped).
	// Used for dependsOn.
	strategyUnion
)

// mergeLists applies a strategy to a base and an override list. For
// replace, a nil override means "not present" and keeps the base; an
// empty non-nil override explicitly clears it.
func mergeLists(base, override []string, strategy mergeStrategy) []string {
	switch strategy {
	case strategyUnion:
		if len(override) == 0 {
			return base
		}
		seen := make(map[string]bool, len(base)+len(override))
		var out []string
		for _, lists := range [][]string{base, override} {
			for _, v := range lists {
				if !seen[v] {
					seen[v] = true
					out = append(out, v)
				}
			}
		}
		sort.Strings(out)
		return out
	default: // strategyReplace
		if override != nil {
			return override
		}
		return base
	}
}
