package cache

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/oklog/ulid/v2"
)

// ErrMiss marks "entry absent", a normal outcome rather than a failure.
var ErrMiss = errors.New("cache miss")

// LocalStore is a shared, append-only, content-addressed artifact
// directory. Concurrent writers of the same fingerprint are safe:
// identical keys imply identical content, and writes go through a
// unique temp file followed by rename.
type LocalStore struct {
	dir string
}

// NewLocalStore creates a store rooted at dir.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

// path shards artifacts by the first two hash characters to keep
// directory listings manageable.
func (s *LocalStore) path(hash string) string {
	return filepath.Join(s.dir, hash[:2], hash+".tar.gz")
}

// Exists reports whether an artifact exists for hash.
func (s *LocalStore) Exists(hash string) bool {
	_, err := os.Stat(s.path(hash))
	return err == nil
}

// Read opens the artifact for hash, or ErrMiss.
func (s *LocalStore) Read(hash string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(hash))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrMiss
	}
	return f, err
}

// Write stores an artifact atomically.
func (s *LocalStore) Write(hash string, data []byte) error {
	dst := s.path(hash)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp := dst + ".tmp." + ulid.Make().String()
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Size returns the stored artifact size in bytes, 0 when absent.
func (s *LocalStore) Size(hash string) int64 {
	info, err := os.Stat(s.path(hash))
	if err != nil {
		return 0
	}
	return info.Size()
}

// Clean removes every stored artifact. Only the two-character shard
// directories are touched; the index database shares this directory
// and stays.
func (s *LocalStore) Clean() error {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() || len(e.Name()) != 2 {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// readAll materializes an artifact stream for upload.
func readAll(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return buf.Bytes(), nil
}
