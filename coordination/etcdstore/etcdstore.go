// Package etcdstore implements coordination.Store over etcd, using
// go.etcd.io/etcd/client/v3 and its concurrency helpers for sessions
// and locks — the same building blocks buddhike-pebble's consumer
// leader election uses.
package etcdstore

import (
	"context"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"

	"github.com/cafegrp/cafegrp/coordination"
)

// Store is a coordination.Store backed by one etcd client.
type Store struct {
	client *clientv3.Client
}

func New(client *clientv3.Client) *Store {
	return &Store{client: client}
}

type session struct {
	s *concurrency.Session
}

func (s *session) ID() string            { return fmt.Sprintf("%x", s.s.Lease()) }
func (s *session) Done() <-chan struct{} { return s.s.Done() }

// CreateSession opens a concurrency.Session backed by an etcd lease
// with the given TTL; the session package keeps the lease alive with a
// background keepalive loop for as long as the session is open.
func (st *Store) CreateSession(ctx context.Context, ttl time.Duration) (coordination.Session, error) {
	s, err := concurrency.NewSession(st.client, concurrency.WithTTL(int(ttl.Seconds())), concurrency.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("etcdstore: error creating session: %w", err)
	}
	return &session{s: s}, nil
}

// RenewSession is a liveness check: concurrency.Session renews its
// lease automatically in the background, there is nothing to trigger
// here beyond reporting whether the session has already died.
func (st *Store) RenewSession(ctx context.Context, sess coordination.Session) error {
	s, ok := sess.(*session)
	if !ok {
		return fmt.Errorf("etcdstore: renew called with a session from another Store")
	}
	select {
	case <-s.Done():
		return fmt.Errorf("etcdstore: session %s has expired", s.ID())
	default:
		return nil
	}
}

// CloseSession revokes sess's etcd lease and stops its background
// keepalive goroutine. Without this, a session created with
// concurrency.WithContext(ctx) keeps renewing its lease for as long as
// ctx is open, even after the caller is done with it.
func (st *Store) CloseSession(ctx context.Context, sess coordination.Session) error {
	s, ok := sess.(*session)
	if !ok {
		return fmt.Errorf("etcdstore: close called with a session from another Store")
	}
	if err := s.s.Close(); err != nil {
		return fmt.Errorf("etcdstore: error closing session %s: %w", s.ID(), err)
	}
	return nil
}

type lock struct {
	path string
	mu   *concurrency.Mutex
}

func (l *lock) Path() string { return l.path }

func (st *Store) AcquireLock(ctx context.Context, sess coordination.Session, path string) (coordination.Lock, error) {
	s, ok := sess.(*session)
	if !ok {
		return nil, fmt.Errorf("etcdstore: acquire called with a session from another Store")
	}
	mu := concurrency.NewMutex(s.s, path)
	if err := mu.Lock(ctx); err != nil {
		return nil, fmt.Errorf("etcdstore: error acquiring lock %s: %w", path, err)
	}
	return &lock{path: path, mu: mu}, nil
}

func (st *Store) ReleaseLock(ctx context.Context, l coordination.Lock) error {
	lk, ok := l.(*lock)
	if !ok {
		return fmt.Errorf("etcdstore: release called with a lock from another Store")
	}
	if err := lk.mu.Unlock(ctx); err != nil {
		return fmt.Errorf("etcdstore: error releasing lock %s: %w", lk.path, err)
	}
	return nil
}

// Put writes value to path, leased to sess's underlying etcd lease when
// sess is non-nil so the key disappears with the session.
func (st *Store) Put(ctx context.Context, path string, value []byte, sess coordination.Session) error {
	var opts []clientv3.OpOption
	if sess != nil {
		s, ok := sess.(*session)
		if !ok {
			return fmt.Errorf("etcdstore: put called with a session from another Store")
		}
		opts = append(opts, clientv3.WithLease(s.s.Lease()))
	}
	if _, err := st.client.Put(ctx, path, string(value), opts...); err != nil {
		return fmt.Errorf("etcdstore: error putting %s: %w", path, err)
	}
	return nil
}

func (st *Store) Get(ctx context.Context, path string) ([]byte, error) {
	resp, err := st.client.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("etcdstore: error getting %s: %w", path, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, coordination.ErrNotFound
	}
	return resp.Kvs[0].Value, nil
}

func (st *Store) Delete(ctx context.Context, path string) error {
	if _, err := st.client.Delete(ctx, path); err != nil {
		return fmt.Errorf("etcdstore: error deleting %s: %w", path, err)
	}
	return nil
}

// Watch streams changes to path from fromIndex+1 (etcd's mod revision
// numbering), or from the current revision if fromIndex is 0.
func (st *Store) Watch(ctx context.Context, path string, fromIndex int64) (<-chan coordination.Notification, error) {
	var opts []clientv3.OpOption
	if fromIndex > 0 {
		opts = append(opts, clientv3.WithRev(fromIndex+1))
	}
	wch := st.client.Watch(ctx, path, opts...)
	out := make(chan coordination.Notification)
	go func() {
		defer close(out)
		for resp := range wch {
			if resp.Err() != nil {
				return
			}
			for _, ev := range resp.Events {
				out <- coordination.Notification{
					Path:    string(ev.Kv.Key),
					Value:   ev.Kv.Value,
					Index:   ev.Kv.ModRevision,
					Deleted: ev.Type == clientv3.EventTypeDelete,
				}
			}
		}
	}()
	return out, nil
}
