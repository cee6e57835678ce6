package cache

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joss/chore/internal/logging"
	"github.com/joss/chore/internal/metrics"
)

// Status is where a fingerprint was found.
type Status string

const (
	StatusMiss   Status = "miss"
	StatusLocal  Status = "local"
	StatusRemote Status = "remote"
)

// Manager coordinates the local store, the optional remote store, and
// the metadata index. Read failures degrade to miss (fail open to
// re-execution) unless the artifact is present but corrupt; write
// failures degrade to "ran but not cached" and are logged, never
// propagated.
type Manager struct {
	root   string
	local  *LocalStore
	remote RemoteClient // nil when remote caching is disabled
	index  *Index       // nil when the index could not be opened

	log *logging.Logger
	m   *metrics.Metrics

	uploads *errgroup.Group
	upCtx   context.Context
}

// Options configure a Manager.
type Options struct {
	// Root is the workspace root output files are captured from and
	// restored to.
	Root string

	// Dir is the local artifact directory.
	Dir string

	// Remote, when non-nil, enables remote reads and best-effort
	// uploads.
	Remote RemoteClient

	// Index, when non-nil, records metadata for inspection commands.
	Index *Index
}

// NewManager creates a cache manager.
func NewManager(opts Options) *Manager {
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(4)
	return &Manager{
		root:    opts.Root,
		local:   NewLocalStore(opts.Dir),
		remote:  opts.Remote,
		index:   opts.Index,
		log:     logging.New("cache"),
		m:       metrics.Global(),
		uploads: g,
		upCtx:   ctx,
	}
}

// Exists checks local first, then remote (only when local misses and a
// remote is configured). Remote errors degrade to miss.
func (c *Manager) Exists(ctx context.Context, hash string) Status {
	if c.local.Exists(hash) {
		return StatusLocal
	}
	if c.remote != nil {
		ok, err := c.remote.Exists(ctx, hash)
		if err != nil {
			c.m.CacheReadErrors.Add(1)
			c.log.Warn("remote_exists_failed", map[string]any{"hash": hash}, err)
			return StatusMiss
		}
		if ok {
			return StatusRemote
		}
	}
	return StatusMiss
}

// Fetch restores the entry for hash: output files are written back to
// their original relative paths under root and the captured log and
// recorded duration are returned. A remote hit is mirrored into the
// local store. I/O errors degrade to miss except for corruption, which
// is surfaced so a poisoned artifact doesn't silently re-execute
// forever.
func (c *Manager) Fetch(ctx context.Context, hash string) (*Entry, Status, error) {
	if r, err := c.local.Read(hash); err == nil {
		data, err := readAll(r)
		r.Close()
		if err != nil {
			c.m.CacheReadErrors.Add(1)
			return nil, StatusMiss, nil
		}
		entry, err := c.restore(data, hash)
		if err != nil {
			return nil, StatusMiss, err
		}
		c.m.CacheHitsLocal.Add(1)
		c.recordHit(ctx, hash)
		return entry, StatusLocal, nil
	} else if !errors.Is(err, ErrMiss) {
		c.m.CacheReadErrors.Add(1)
		c.log.Warn("local_read_failed", map[string]any{"hash": hash}, err)
	}

	if c.remote == nil {
		c.m.CacheMisses.Add(1)
		return nil, StatusMiss, nil
	}

	r, err := c.remote.Get(ctx, hash)
	if errors.Is(err, ErrMiss) {
		c.m.CacheMisses.Add(1)
		return nil, StatusMiss, nil
	}
	if err != nil {
		c.m.CacheReadErrors.Add(1)
		c.log.Warn("remote_fetch_failed", map[string]any{"hash": hash}, err)
		c.m.CacheMisses.Add(1)
		return nil, StatusMiss, nil
	}
	data, err := readAll(r)
	r.Close()
	if err != nil {
		c.m.CacheReadErrors.Add(1)
		c.m.CacheMisses.Add(1)
		return nil, StatusMiss, nil
	}

	entry, err := c.restore(data, hash)
	if err != nil {
		return nil, StatusMiss, err
	}
	c.m.CacheHitsRemote.Add(1)

	// Mirror into the local store so the next run doesn't pay the
	// network round trip. Best effort.
	if err := c.local.Write(hash, data); err != nil {
		c.m.CacheWriteErrors.Add(1)
		c.log.Warn("local_mirror_failed", map[string]any{"hash": hash}, err)
	}
	c.recordHit(ctx, hash)
	return entry, StatusRemote, nil
}

// restore unpacks an artifact and verifies its recorded fingerprint
// matches the requested one.
func (c *Manager) restore(data []byte, hash string) (*Entry, error) {
	entry, err := unpack(bytes.NewReader(data), c.root)
	if err != nil {
		return nil, err
	}
	if entry.Hash != hash {
		return nil, errors.New("corrupt artifact: fingerprint mismatch " + entry.Hash + " != " + hash)
	}
	c.m.BytesRestored.Add(int64(len(data)))
	return entry, nil
}

// Put captures a task result: writes the local artifact always, queues
// a best-effort remote upload when enabled, and records index
// metadata. All failures are logged and swallowed; a cache write
// failure never fails the task.
func (c *Manager) Put(ctx context.Context, taskID string, entry *Entry) {
	var buf bytes.Buffer
	if err := pack(&buf, c.root, entry); err != nil {
		c.m.CacheWriteErrors.Add(1)
		c.log.Warn("pack_failed", map[string]any{"task": taskID, "hash": entry.Hash}, err)
		return
	}
	data := buf.Bytes()

	if err := c.local.Write(entry.Hash, data); err != nil {
		c.m.CacheWriteErrors.Add(1)
		c.log.Warn("local_write_failed", map[string]any{"task": taskID, "hash": entry.Hash}, err)
		return
	}

	if c.index != nil {
		if err := c.index.RecordEntry(ctx, entry.Hash, taskID, int64(len(data)), entry.Duration); err != nil {
			c.log.Warn("index_write_failed", map[string]any{"hash": entry.Hash}, err)
		}
	}

	if c.remote != nil {
		hash := entry.Hash
		c.uploads.Go(func() error {
			if err := c.remote.Put(c.upCtx, hash, bytes.NewReader(data)); err != nil {
				c.m.RemoteUploadErrs.Add(1)
				c.log.Warn("remote_upload_failed", map[string]any{"task": taskID, "hash": hash}, err)
			}
			return nil // uploads never fail the group
		})
	}
}

// Wait blocks until queued remote uploads finish. Called once at the
// end of a run.
func (c *Manager) Wait() {
	c.uploads.Wait()
}

// RecordRun appends run history to the index when one is open. Index
// failures are advisory.
func (c *Manager) RecordRun(ctx context.Context, info RunInfo) {
	if c.index == nil {
		return
	}
	if err := c.index.RecordRun(ctx, info); err != nil {
		c.log.Warn("index_run_failed", map[string]any{"run": info.RunID}, err)
	}
}

// Index exposes the metadata index for inspection commands. May be nil.
func (c *Manager) Index() *Index {
	return c.index
}

// TimeSavedSuffix formats a restored duration for log replay headers.
func TimeSavedSuffix(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	return strings.TrimSpace("(" + d.Round(time.Millisecond).String() + " saved)")
}

func (c *Manager) recordHit(ctx context.Context, hash string) {
	if c.index == nil {
		return
	}
	if err := c.index.RecordHit(ctx, hash); err != nil {
		c.log.Warn("index_hit_failed", map[string]any{"hash": hash}, err)
	}
}
