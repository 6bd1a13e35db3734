package base

import (
	"context"
	"time"

	"github.com/Freeeeeet/roomslots/internal/lock"
	"github.com/Freeeeeet/roomslots/internal/storage"
)

// DefaultTimeout bounds a single store round trip when none is configured.
const DefaultTimeout = 5 * time.Second

// lockedRoundTrips is the number of store calls a locked section makes: one
// read and one write.
const lockedRoundTrips = 2

// HoldLimit is the longest a locked section may run with the given store
// timeout. A lease-based lock must outlive it.
func HoldLimit(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return lockedRoundTrips * timeout
}

// Repository is the shared base for document-backed repositories
type Repository struct {
	store   storage.Store
	locker  lock.Locker
	timeout time.Duration
}

// NewRepository creates a new base repository
func NewRepository(store storage.Store, locker lock.Locker, timeout time.Duration) *Repository {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	return &Repository{store: store, locker: locker, timeout: timeout}
}

// Read loads a document with a bounded timeout
func (r *Repository) Read(ctx context.Context, name string, dst any) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.store.Read(ctx, name, dst)
}

// Write stores a document with a bounded timeout
func (r *Repository) Write(ctx context.Context, name string, src any) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.store.Write(ctx, name, src)
}

// WithLock runs fn while holding the lock for key. Waiting for the lock
// counts against the same timeout as a store call, and fn gets at most
// HoldLimit before its context expires.
func (r *Repository) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	lockCtx, cancel := context.WithTimeout(ctx, r.timeout)
	release, err := r.locker.Lock(lockCtx, key)
	cancel()
	if err != nil {
		return err
	}
	defer release()

	holdCtx, cancel := context.WithTimeout(ctx, HoldLimit(r.timeout))
	defer cancel()
	return fn(holdCtx)
}
