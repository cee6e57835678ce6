package cache

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHash = "abcdef01abcdef01abcdef01abcdef01"

// writeOutput creates a fake task output file under root.
func writeOutput(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func testEntry(t *testing.T, root string) *Entry {
	t.Helper()
	writeOutput(t, root, "apps/web/dist/index.js", "console.log('hi')")
	writeOutput(t, root, "apps/web/dist/style.css", "body{}")
	return &Entry{
		Hash:     testHash,
		Duration: 1500 * time.Millisecond,
		Log:      []byte("vite built in 1.5s\n"),
		Files:    []string{"apps/web/dist/index.js", "apps/web/dist/style.css"},
	}
}

func newTestManager(t *testing.T, root string, remote RemoteClient) *Manager {
	t.Helper()
	return NewManager(Options{
		Root:   root,
		Dir:    filepath.Join(root, ".chore", "cache"),
		Remote: remote,
	})
}

func TestPutFetchRoundTrip(t *testing.T) {
	root := t.TempDir()
	c := newTestManager(t, root, nil)
	ctx := context.Background()

	entry := testEntry(t, root)
	c.Put(ctx, "web#build", entry)
	require.Equal(t, StatusLocal, c.Exists(ctx, testHash))

	// Wipe the outputs, then restore from cache.
	require.NoError(t, os.RemoveAll(filepath.Join(root, "apps")))

	got, status, err := c.Fetch(ctx, testHash)
	require.NoError(t, err)
	assert.Equal(t, StatusLocal, status)
	require.NotNil(t, got)
	assert.Equal(t, testHash, got.Hash)
	assert.Equal(t, entry.Duration, got.Duration)
	assert.Equal(t, entry.Log, got.Log)
	assert.Equal(t, entry.Files, got.Files)

	data, err := os.ReadFile(filepath.Join(root, "apps", "web", "dist", "index.js"))
	require.NoError(t, err)
	assert.Equal(t, "console.log('hi')", string(data))
}

func TestFetchMiss(t *testing.T) {
	c := newTestManager(t, t.TempDir(), nil)

	entry, status, err := c.Fetch(context.Background(), testHash)
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.Equal(t, StatusMiss, status)
}

func TestFetchCorruptArtifact(t *testing.T) {
	root := t.TempDir()
	c := newTestManager(t, root, nil)

	// Not a gzip stream at all.
	require.NoError(t, c.local.Write(testHash, []byte("not an artifact")))

	entry, status, err := c.Fetch(context.Background(), testHash)
	require.Error(t, err, "corruption must surface instead of degrading to miss")
	assert.Nil(t, entry)
	assert.Equal(t, StatusMiss, status)
}

func TestFetchFingerprintMismatch(t *testing.T) {
	root := t.TempDir()
	c := newTestManager(t, root, nil)

	// A valid artifact stored under the wrong key.
	entry := testEntry(t, root)
	var buf bytes.Buffer
	require.NoError(t, pack(&buf, root, entry))
	other := "ffffffffffffffffffffffffffffffff"
	require.NoError(t, c.local.Write(other, buf.Bytes()))

	_, _, err := c.Fetch(context.Background(), other)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fingerprint mismatch")
}

func TestFetchRemoteHitMirroredLocally(t *testing.T) {
	root := t.TempDir()
	mem := NewMemoryClient()
	c := newTestManager(t, root, mem)
	ctx := context.Background()

	entry := testEntry(t, root)
	var buf bytes.Buffer
	require.NoError(t, pack(&buf, root, entry))
	require.NoError(t, mem.Put(ctx, testHash, bytes.NewReader(buf.Bytes())))
	require.NoError(t, os.RemoveAll(filepath.Join(root, "apps")))

	got, status, err := c.Fetch(ctx, testHash)
	require.NoError(t, err)
	assert.Equal(t, StatusRemote, status)
	assert.Equal(t, testHash, got.Hash)

	// The artifact is now local; the next fetch skips the network.
	assert.True(t, c.local.Exists(testHash))
	_, status, err = c.Fetch(ctx, testHash)
	require.NoError(t, err)
	assert.Equal(t, StatusLocal, status)
}

func TestPutUploadsToRemote(t *testing.T) {
	root := t.TempDir()
	mem := NewMemoryClient()
	c := newTestManager(t, root, mem)

	c.Put(context.Background(), "web#build", testEntry(t, root))
	c.Wait()
	assert.Equal(t, 1, mem.Len())
}

func TestPutSurvivesRemoteFailure(t *testing.T) {
	root := t.TempDir()
	mem := NewMemoryClient()
	mem.FailPuts = true
	c := newTestManager(t, root, mem)
	ctx := context.Background()

	c.Put(ctx, "web#build", testEntry(t, root))
	c.Wait()

	// The local write still happened; the task result is usable.
	assert.Equal(t, StatusLocal, c.Exists(ctx, testHash))
	assert.Equal(t, 0, mem.Len())
}

func TestExistsChecksLocalThenRemote(t *testing.T) {
	root := t.TempDir()
	mem := NewMemoryClient()
	c := newTestManager(t, root, mem)
	ctx := context.Background()

	assert.Equal(t, StatusMiss, c.Exists(ctx, testHash))

	require.NoError(t, mem.Put(ctx, testHash, bytes.NewReader([]byte("x"))))
	assert.Equal(t, StatusRemote, c.Exists(ctx, testHash))

	require.NoError(t, c.local.Write(testHash, []byte("x")))
	assert.Equal(t, StatusLocal, c.Exists(ctx, testHash))
}

func TestLocalStoreCleanSparesIndex(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStore(dir)

	require.NoError(t, s.Write(testHash, []byte("artifact")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.db"), []byte("db"), 0o644))

	require.NoError(t, s.Clean())
	assert.False(t, s.Exists(testHash))
	_, err := os.Stat(filepath.Join(dir, "index.db"))
	assert.NoError(t, err, "the index database shares the cache dir and must survive")
}

func TestLocalStoreReadMiss(t *testing.T) {
	s := NewLocalStore(t.TempDir())
	_, err := s.Read(testHash)
	assert.ErrorIs(t, err, ErrMiss)
	assert.Zero(t, s.Size(testHash))
}

func TestLocalStoreConcurrentSameKey(t *testing.T) {
	s := NewLocalStore(t.TempDir())
	require.NoError(t, s.Write(testHash, []byte("same")))
	require.NoError(t, s.Write(testHash, []byte("same")))
	assert.True(t, s.Exists(testHash))
	assert.Equal(t, int64(4), s.Size(testHash))
}

func TestTimeSavedSuffix(t *testing.T) {
	assert.Empty(t, TimeSavedSuffix(0))
	assert.Empty(t, TimeSavedSuffix(-time.Second))
	assert.Equal(t, "(1.5s saved)", TimeSavedSuffix(1500*time.Millisecond))
}
