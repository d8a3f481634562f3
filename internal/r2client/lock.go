package r2client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

var _ ConditionalStore = (*Client)(nil)

// ConditionalStore is the subset of Client used by DistributedLock.
type ConditionalStore interface {
	Download(ctx context.Context, key string) (io.ReadCloser, string, error)
	PutObjectIfNotExists(ctx context.Context, key string, body io.Reader, contentType string) (bool, string, error)
	PutObjectIfMatch(ctx context.Context, key string, body io.Reader, etag string, contentType string) (bool, string, error)
	DeleteObject(ctx context.Context, key string) error
}

// LockInfo is the JSON body of a lock object.
type LockInfo struct {
	Owner     string    `json:"owner"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DistributedLock is a lease stored as an object and claimed with
// conditional writes. Expired leases may be taken over.
type DistributedLock struct {
	store   ConditionalStore
	key     string
	ttl     time.Duration
	ownerID string
	now     func() time.Time
}

// NewDistributedLock creates a lock on key with the given lease duration.
func NewDistributedLock(store ConditionalStore, key string, ttl time.Duration) *DistributedLock {
	return &DistributedLock{
		store:   store,
		key:     key,
		ttl:     ttl,
		ownerID: uuid.New().String(),
		now:     time.Now,
	}
}

// Acquire attempts to take the lease.
// Returns (false, nil) when another owner holds an unexpired lease.
func (l *DistributedLock) Acquire(ctx context.Context) (bool, error) {
	data, err := l.lease()
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}

	created, _, err := l.store.PutObjectIfNotExists(ctx, l.key, bytes.NewReader(data), "application/json")
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	if created {
		return true, nil
	}

	expired, etag, err := l.checkExpired(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire lock: check expired: %w", err)
	}
	if !expired {
		return false, nil
	}

	// Deleted between our create and read: retry the create once.
	if etag == "" {
		created, _, err = l.store.PutObjectIfNotExists(ctx, l.key, bytes.NewReader(data), "application/json")
		if err != nil {
			return false, fmt.Errorf("acquire lock: %w", err)
		}
		return created, nil
	}

	stolen, _, err := l.store.PutObjectIfMatch(ctx, l.key, bytes.NewReader(data), etag, "application/json")
	if err != nil {
		return false, fmt.Errorf("acquire lock: steal: %w", err)
	}
	return stolen, nil
}

// Release deletes the lease if this instance still owns it.
func (l *DistributedLock) Release(ctx context.Context) error {
	info, _, err := l.read(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return fmt.Errorf("release lock: %w", err)
	}
	if info != nil && info.Owner != l.ownerID {
		return nil
	}
	return l.store.DeleteObject(ctx, l.key)
}

// OwnerID returns the unique identifier of this lock instance.
func (l *DistributedLock) OwnerID() string {
	return l.ownerID
}

func (l *DistributedLock) lease() ([]byte, error) {
	return json.Marshal(LockInfo{Owner: l.ownerID, ExpiresAt: l.now().Add(l.ttl)})
}

// checkExpired reports whether the current lease may be taken over and the
// ETag to take it over with ("" when the object is gone).
func (l *DistributedLock) checkExpired(ctx context.Context) (bool, string, error) {
	info, etag, err := l.read(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return true, "", nil
		}
		return false, "", err
	}
	if info == nil {
		return true, etag, nil // Unreadable lease
	}
	return l.now().After(info.ExpiresAt), etag, nil
}

// read returns the lease (nil when the body is not valid JSON) and its ETag.
func (l *DistributedLock) read(ctx context.Context) (*LockInfo, string, error) {
	body, etag, err := l.store.Download(ctx, l.key)
	if err != nil {
		return nil, "", err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, "", fmt.Errorf("read lock: %w", err)
	}

	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, etag, nil
	}
	return &info, etag, nil
}
