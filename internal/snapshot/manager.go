// Package snapshot backs the SQLite lesson database up to object storage and
// restores it on a fresh host. Uploads are guarded by a distributed lock so
// two replicas never overwrite each other's snapshot mid-upload.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/garyellow/lessonbot-go/internal/r2client"
)

var (
	// ErrNotFound indicates no snapshot exists in the bucket.
	ErrNotFound = errors.New("snapshot: not found")

	// ErrLockHeld indicates another instance is uploading a snapshot.
	ErrLockHeld = errors.New("snapshot: lock held by another instance")
)

// Store is the object storage used for snapshots. r2client.Client satisfies it.
type Store interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Download(ctx context.Context, key string) (io.ReadCloser, string, error)
}

// Locker serializes backups across instances. r2client.DistributedLock satisfies it.
type Locker interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Source produces a consistent copy of the live database. storage.DB satisfies it.
type Source interface {
	CreateSnapshot(ctx context.Context, dstPath string) error
}

// Config holds snapshot manager configuration.
type Config struct {
	SnapshotKey string // Object key, e.g. "snapshots/lessons.db.zst"
	TempDir     string // Directory for temporary files
}

// Manager uploads and restores compressed database snapshots.
type Manager struct {
	store    Store
	lock     Locker
	config   Config
	mu       sync.RWMutex
	lastETag string
}

// New creates a snapshot manager. lock may be nil for single-instance deployments.
func New(store Store, lock Locker, cfg Config) *Manager {
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	return &Manager{
		store:  store,
		lock:   lock,
		config: cfg,
	}
}

// Backup snapshots src, compresses it with zstd and uploads it.
// Returns the ETag of the uploaded object, or ErrLockHeld when another
// instance owns the backup lock.
func (m *Manager) Backup(ctx context.Context, src Source) (string, error) {
	if m.lock != nil {
		acquired, err := m.lock.Acquire(ctx)
		if err != nil {
			return "", fmt.Errorf("acquire snapshot lock: %w", err)
		}
		if !acquired {
			return "", ErrLockHeld
		}
		defer func() {
			// Release even when ctx is done; the lease would otherwise linger until TTL.
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			if err := m.lock.Release(releaseCtx); err != nil {
				slog.WarnContext(ctx, "Failed to release snapshot lock", "error", err)
			}
		}()
	}

	snapshotPath := filepath.Join(m.config.TempDir, fmt.Sprintf("snapshot_%d.db", time.Now().UnixNano()))
	if err := src.CreateSnapshot(ctx, snapshotPath); err != nil {
		return "", fmt.Errorf("create snapshot: %w", err)
	}
	defer os.Remove(snapshotPath)

	compressedPath := snapshotPath + ".zst"
	if err := r2client.CompressFile(snapshotPath, compressedPath); err != nil {
		return "", fmt.Errorf("compress database: %w", err)
	}
	defer os.Remove(compressedPath)

	compressedFile, err := os.Open(compressedPath)
	if err != nil {
		return "", fmt.Errorf("open compressed file: %w", err)
	}
	defer compressedFile.Close()

	etag, err := m.store.Upload(ctx, m.config.SnapshotKey, compressedFile, "application/zstd")
	if err != nil {
		return "", fmt.Errorf("upload snapshot: %w", err)
	}

	m.mu.Lock()
	m.lastETag = etag
	m.mu.Unlock()

	return etag, nil
}

// Restore downloads the latest snapshot into dbPath when no database file
// exists there yet. It reports whether a snapshot was restored and returns
// ErrNotFound when the bucket holds none.
func (m *Manager) Restore(ctx context.Context, dbPath string) (bool, error) {
	if _, err := os.Stat(dbPath); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat database: %w", err)
	}

	body, etag, err := m.store.Download(ctx, m.config.SnapshotKey)
	if err != nil {
		if errors.Is(err, r2client.ErrNotFound) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("download snapshot: %w", err)
	}
	defer body.Close()

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return false, fmt.Errorf("create database directory: %w", err)
	}

	// Decompress next to the target and rename, so a failed restore never
	// leaves a truncated database behind.
	partial := dbPath + ".restore"
	if err := r2client.DecompressStream(body, partial); err != nil {
		return false, fmt.Errorf("decompress snapshot: %w", err)
	}
	if err := os.Rename(partial, dbPath); err != nil {
		os.Remove(partial)
		return false, fmt.Errorf("move restored database: %w", err)
	}

	m.mu.Lock()
	m.lastETag = etag
	m.mu.Unlock()

	return true, nil
}

// LastETag returns the ETag of the last uploaded or restored snapshot.
func (m *Manager) LastETag() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastETag
}
