// Package memstore implements coordination.Store entirely in memory.
// It exists for tests that exercise package group's FSM without a live
// ZooKeeper ensemble or etcd cluster, and as a reference implementation
// of the Store contract simple enough to read end to end.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cafegrp/cafegrp/coordination"
)

type session struct {
	id   string
	done chan struct{}
}

func (s *session) ID() string            { return s.id }
func (s *session) Done() <-chan struct{} { return s.done }

type lock struct {
	path string
}

func (l *lock) Path() string { return l.path }

type entry struct {
	value []byte
	index int64
}

// Store is a single process's view of the coordination namespace. Safe
// for concurrent use; Watch delivers every subsequent Put/Delete on a
// path to every active watcher of that exact path.
type Store struct {
	mu       sync.Mutex
	data     map[string]entry
	locks    map[string]*session
	watchers map[string][]chan coordination.Notification
	nextIdx  int64

	live map[*session]bool // sessions created but not yet closed; test hook
}

func New() *Store {
	return &Store{
		data:     make(map[string]entry),
		locks:    make(map[string]*session),
		watchers: make(map[string][]chan coordination.Notification),
		live:     make(map[*session]bool),
	}
}

func (st *Store) CreateSession(ctx context.Context, ttl time.Duration) (coordination.Session, error) {
	s := &session{id: uuid.NewString(), done: make(chan struct{})}
	st.mu.Lock()
	st.live[s] = true
	st.mu.Unlock()
	return s, nil
}

// CloseSession marks sess released. LiveSessionCount reflects the
// result, so tests can assert a caller didn't leak one.
func (st *Store) CloseSession(ctx context.Context, sess coordination.Session) error {
	s, ok := sess.(*session)
	if !ok {
		return fmt.Errorf("memstore: close called with a session from another Store")
	}
	st.mu.Lock()
	delete(st.live, s)
	st.mu.Unlock()
	return nil
}

// LiveSessionCount returns how many sessions have been created but not
// closed or expired.
func (st *Store) LiveSessionCount() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.live)
}

func (st *Store) RenewSession(ctx context.Context, sess coordination.Session) error {
	s := sess.(*session)
	select {
	case <-s.Done():
		return coordination.ErrNotFound
	default:
		return nil
	}
}

// ExpireSession is a test hook: it simulates the session dying, closing
// its Done channel and releasing every lock it held.
func (st *Store) ExpireSession(sess coordination.Session) {
	s := sess.(*session)
	st.mu.Lock()
	for path, holder := range st.locks {
		if holder == s {
			delete(st.locks, path)
		}
	}
	delete(st.live, s)
	st.mu.Unlock()
	close(s.done)
}

func (st *Store) AcquireLock(ctx context.Context, sess coordination.Session, path string) (coordination.Lock, error) {
	s := sess.(*session)
	for {
		st.mu.Lock()
		holder, held := st.locks[path]
		if !held {
			st.locks[path] = s
			st.mu.Unlock()
			return &lock{path: path}, nil
		}
		st.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-holder.Done():
			// holder's session died, loop around and take the lock
		case <-time.After(10 * time.Millisecond):
			// poll; a real Store would block on a condition instead
		}
	}
}

func (st *Store) ReleaseLock(ctx context.Context, l coordination.Lock) error {
	lk := l.(*lock)
	st.mu.Lock()
	delete(st.locks, lk.path)
	st.mu.Unlock()
	return nil
}

// Put ignores sess: a value written here outlives the session it was
// written under.
func (st *Store) Put(ctx context.Context, path string, value []byte, sess coordination.Session) error {
	st.mu.Lock()
	st.nextIdx++
	st.data[path] = entry{value: value, index: st.nextIdx}
	watchers := append([]chan coordination.Notification{}, st.watchers[path]...)
	idx := st.nextIdx
	st.mu.Unlock()
	for _, w := range watchers {
		w <- coordination.Notification{Path: path, Value: value, Index: idx}
	}
	return nil
}

func (st *Store) Get(ctx context.Context, path string) ([]byte, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	e, ok := st.data[path]
	if !ok {
		return nil, coordination.ErrNotFound
	}
	return e.value, nil
}

func (st *Store) Delete(ctx context.Context, path string) error {
	st.mu.Lock()
	delete(st.data, path)
	st.nextIdx++
	idx := st.nextIdx
	watchers := append([]chan coordination.Notification{}, st.watchers[path]...)
	st.mu.Unlock()
	for _, w := range watchers {
		w <- coordination.Notification{Path: path, Deleted: true, Index: idx}
	}
	return nil
}

func (st *Store) Watch(ctx context.Context, path string, fromIndex int64) (<-chan coordination.Notification, error) {
	ch := make(chan coordination.Notification, 16)
	st.mu.Lock()
	st.watchers[path] = append(st.watchers[path], ch)
	st.mu.Unlock()
	go func() {
		<-ctx.Done()
		st.mu.Lock()
		ws := st.watchers[path]
		for i, w := range ws {
			if w == ch {
				st.watchers[path] = append(ws[:i], ws[i+1:]...)
				break
			}
		}
		st.mu.Unlock()
	}()
	return ch, nil
}
