package fingerprint

import (
	"errors"
	"fmt"
	"os"
	"path"
	"sort"

	"github.com/joss/chore/internal/pipeline"
	"github.com/joss/chore/internal/scm"
)

// TaskHashable gathers every input to one task node's fingerprint.
// Serialization order is fixed; callers fill all fields explicitly.
type TaskHashable struct {
	GlobalHash string
	TaskID     string
	PackageDir string
	Command    string

	Definition *pipeline.TaskDefinition

	// FileDigest is FileHashes.Digest() for the task's input set.
	FileDigest string

	// EnvDigest is the task-level env fingerprint.
	EnvDigest string

	// DotEnvDigest covers the task's dotEnv file contents.
	DotEnvDigest string

	// UpstreamHashes maps upstream task ID to its fingerprint. Hashing
	// sorts by ID, never by hash value, so insertion order can't leak
	// into the result.
	UpstreamHashes map[string]string
}

// HashTask produces the task fingerprint. Any change to a matched
// input file, a hashed env var, the resolved definition, the command,
// or an upstream hash yields a different result, and propagates to
// every downstream task through UpstreamHashes.
func HashTask(t TaskHashable) string {
	w := newHasher()
	w.field("global", t.GlobalHash)
	w.field("task", t.TaskID)
	w.field("dir", t.PackageDir)
	w.field("command", t.Command)

	d := t.Definition
	w.field("outputs", d.Outputs.Inclusions...)
	w.field("outputsExcluded", d.Outputs.Exclusions...)
	w.field("inputs", d.Inputs.Inclusions...)
	w.field("inputsExcluded", d.Inputs.Exclusions...)
	w.field("env", sorted(d.Env)...)
	w.field("passThroughEnv", sorted(d.PassThroughEnv)...)
	w.field("dotEnv", d.DotEnv...)
	w.field("outputMode", string(d.OutputMode))
	w.field("persistent", fmt.Sprintf("%t", d.Persistent))

	w.field("files", t.FileDigest)
	w.field("envVars", t.EnvDigest)
	w.field("dotEnvFiles", t.DotEnvDigest)

	ids := make([]string, 0, len(t.UpstreamHashes))
	for id := range t.UpstreamHashes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		w.field("dep:"+id, t.UpstreamHashes[id])
	}
	return w.sum()
}

// HashDotEnv fingerprints the contents of a task's dotEnv files, in
// declared order. Missing files hash as absent rather than erroring,
// so a deleted .env invalidates the task without failing the run.
func HashDotEnv(src scm.FileSource, pkgDir string, files []string) (string, error) {
	w := newHasher()
	for _, f := range files {
		p := path.Join(pkgDir, f)
		data, err := src.ReadFile(p)
		if errors.Is(err, os.ErrNotExist) {
			w.field(f, "absent")
			continue
		}
		if err != nil {
			return "", fmt.Errorf("read dotEnv %s: %w", p, err)
		}
		w.field(f, string(data))
	}
	return w.sum(), nil
}

func sorted(s []string) []string {
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}
