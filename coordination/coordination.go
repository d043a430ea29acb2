// Package coordination abstracts the external coordination store that
// package group uses for leader election, group membership, and
// assignment publication. Kafka's own wire protocol never appears
// here; a Store is free to be backed by ZooKeeper (package zkstore),
// etcd (package etcdstore), or anything else that can hand out
// expiring sessions, locks scoped to a session, and a watchable key
// space.
package coordination

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get for a path with no value.
var ErrNotFound = errors.New("coordination: path not found")

// Session is an ephemeral token. Every Lock and every Put acquired or
// written under a Session is released/invalidated when the session
// expires, whether because RenewSession stopped being called in time
// or because the underlying store connection was lost.
type Session interface {
	ID() string
	// Done is closed once the session is known to be gone.
	Done() <-chan struct{}
}

// Lock is held by exactly one Session at a time; a second AcquireLock
// for the same path blocks (subject to ctx) until the holder releases
// it or its session expires.
type Lock interface {
	Path() string
}

// Notification is one change observed by Watch.
type Notification struct {
	Path    string
	Value   []byte
	Index   int64
	Deleted bool
}

// Store is the coordination-store contract package group depends on.
// Implementations must be safe for concurrent use.
type Store interface {
	CreateSession(ctx context.Context, ttl time.Duration) (Session, error)
	RenewSession(ctx context.Context, sess Session) error
	// CloseSession releases sess and everything tied to its lifetime
	// (background keepalive goroutines, leases, ephemeral bookkeeping)
	// promptly, rather than waiting for it to expire on its own. Callers
	// that created a Session for one bounded unit of work (one group
	// cycle) must call this when that unit ends.
	CloseSession(ctx context.Context, sess Session) error

	AcquireLock(ctx context.Context, sess Session, path string) (Lock, error)
	ReleaseLock(ctx context.Context, lock Lock) error

	Put(ctx context.Context, path string, value []byte, sess Session) error
	Get(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error

	// Watch long-polls path for changes after fromIndex (0 for "from
	// now"), delivering Notifications until ctx is done.
	Watch(ctx context.Context, path string, fromIndex int64) (<-chan Notification, error)
}
