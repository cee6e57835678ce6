// Package cache stores and restores task results keyed by fingerprint.
// Artifacts are content-addressed tar.gz files in a shared local
// directory, optionally mirrored to a remote store; a sqlite index
// carries the metadata that powers cache inspection commands.
package cache

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// metaName is the metadata file embedded in every artifact.
const metaName = "chore-meta.json"

// Entry is one captured task result.
type Entry struct {
	// Hash is the task fingerprint this entry is keyed by.
	Hash string `json:"hash"`

	// ExitCode recorded at capture time (always 0: failures are never
	// cached, but the field keeps replay honest if that ever changes).
	ExitCode int `json:"exitCode"`

	// Duration of the original execution; reported as time saved on
	// restore.
	Duration time.Duration `json:"duration"`

	// Log is the combined captured output, replayed verbatim on hit.
	Log []byte `json:"-"`

	// Files are the root-relative output paths captured.
	Files []string `json:"files"`
}

// logName is the captured log inside the artifact.
const logName = "chore-log.txt"

// pack writes the entry as a tar.gz stream. File contents come from
// root; paths inside the archive stay root-relative with forward
// slashes.
func pack(w io.Writer, root string, entry *Entry) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	meta, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := writeTarFile(tw, metaName, meta, 0o644); err != nil {
		return err
	}
	if err := writeTarFile(tw, logName, entry.Log, 0o644); err != nil {
		return err
	}

	for _, rel := range entry.Files {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		info, err := os.Stat(abs)
		if err != nil {
			return fmt.Errorf("stat output %s: %w", rel, err)
		}
		f, err := os.Open(abs)
		if err != nil {
			return fmt.Errorf("open output %s: %w", rel, err)
		}
		hdr := &tar.Header{
			Name: rel,
			Mode: int64(info.Mode().Perm()),
			Size: info.Size(),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			f.Close()
			return err
		}
		if _, err := io.Copy(tw, f); err != nil {
			f.Close()
			return err
		}
		f.Close()
	}

	if err := tw.Close(); err != nil {
		return err
	}
	return gz.Close()
}

func writeTarFile(tw *tar.Writer, name string, data []byte, mode int64) error {
	hdr := &tar.Header{Name: name, Mode: mode, Size: int64(len(data))}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := tw.Write(data)
	return err
}

// unpack restores an artifact stream: output files go back to their
// original root-relative paths, and the entry metadata + log are
// returned.
func unpack(r io.Reader, root string) (*Entry, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("corrupt artifact: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	var entry Entry
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("corrupt artifact: %w", err)
		}

		switch hdr.Name {
		case metaName:
			data, err := io.ReadAll(tr)
			if err != nil {
				return nil, fmt.Errorf("corrupt artifact: %w", err)
			}
			if err := json.Unmarshal(data, &entry); err != nil {
				return nil, fmt.Errorf("corrupt artifact metadata: %w", err)
			}
		case logName:
			data, err := io.ReadAll(tr)
			if err != nil {
				return nil, fmt.Errorf("corrupt artifact: %w", err)
			}
			entry.Log = data
		default:
			abs := filepath.Join(root, filepath.FromSlash(hdr.Name))
			if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
				return nil, err
			}
			f, err := os.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(hdr.Mode).Perm())
			if err != nil {
				return nil, err
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return nil, err
			}
			f.Close()
		}
	}
	if entry.Hash == "" {
		return nil, fmt.Errorf("corrupt artifact: missing metadata")
	}
	return &entry, nil
}
