// Package zkstore implements coordination.Store over ZooKeeper, the way
// a Kafka 0.8.x cluster's own consumer groups were coordinated before
// Kafka grew its own group protocol.
//
// ZooKeeper's notion of "session" is a property of the whole TCP
// connection, not of an individual caller: every Session this package
// hands out shares the one underlying *zk.Conn and is marked Done
// together when that connection's session expires or disconnects.
// Similarly, ZooKeeper has no single monotonic log index to resume a
// Watch from — fromIndex is accepted for interface compatibility but
// ignored; Watch always starts observing from "now".
package zkstore

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samuel/go-zookeeper/zk"

	"github.com/cafegrp/cafegrp/coordination"
)

// Store is a coordination.Store backed by one ZooKeeper ensemble
// connection, in the style of funkygao-gafka's ZkZone: one *zk.Conn
// shared by every caller, reconnect handled by the zk client itself.
type Store struct {
	conn *zk.Conn

	mu       sync.Mutex
	sessions map[string]*session
}

// New connects to the ZooKeeper ensemble at addrs and returns a Store.
// sessionTimeout is the ensemble-wide session timeout negotiated at
// connect time; ZooKeeper has no per-caller TTL, so CreateSession's ttl
// argument is accepted but not separately enforced.
func New(addrs []string, sessionTimeout time.Duration) (*Store, error) {
	conn, events, err := zk.Connect(addrs, sessionTimeout)
	if err != nil {
		return nil, fmt.Errorf("zkstore: error connecting to %v: %w", addrs, err)
	}
	st := &Store{conn: conn, sessions: make(map[string]*session)}
	go st.watchConnState(events)
	return st, nil
}

func (st *Store) watchConnState(events <-chan zk.Event) {
	for ev := range events {
		if ev.State != zk.StateExpired && ev.State != zk.StateDisconnected {
			continue
		}
		st.mu.Lock()
		for id, s := range st.sessions {
			s.close()
			delete(st.sessions, id)
		}
		st.mu.Unlock()
	}
}

// Close closes the underlying ZooKeeper connection.
func (st *Store) Close() { st.conn.Close() }

type session struct {
	id        string
	done      chan struct{}
	closeOnce sync.Once
}

func (s *session) ID() string           { return s.id }
func (s *session) Done() <-chan struct{} { return s.done }
func (s *session) close()               { s.closeOnce.Do(func() { close(s.done) }) }

func (st *Store) CreateSession(ctx context.Context, ttl time.Duration) (coordination.Session, error) {
	s := &session{id: uuid.NewString(), done: make(chan struct{})}
	st.mu.Lock()
	st.sessions[s.id] = s
	st.mu.Unlock()
	return s, nil
}

// RenewSession reports whether sess's underlying connection session is
// still alive; there is nothing to actively renew, ZooKeeper's client
// pings the ensemble on its own.
func (st *Store) RenewSession(ctx context.Context, sess coordination.Session) error {
	s, ok := sess.(*session)
	if !ok {
		return fmt.Errorf("zkstore: renew called with a session from another Store")
	}
	select {
	case <-s.Done():
		return fmt.Errorf("zkstore: session %s has expired", s.id)
	default:
		return nil
	}
}

// CloseSession drops st's bookkeeping entry for sess and marks it done.
// Since every Session here shares the one underlying *zk.Conn, this
// does not touch the connection itself — only the watchConnState loop
// does that, on a real disconnect/expiry.
func (st *Store) CloseSession(ctx context.Context, sess coordination.Session) error {
	s, ok := sess.(*session)
	if !ok {
		return fmt.Errorf("zkstore: close called with a session from another Store")
	}
	st.mu.Lock()
	delete(st.sessions, s.id)
	st.mu.Unlock()
	s.close()
	return nil
}

type lock struct {
	path string
	zl   *zk.Lock
}

func (l *lock) Path() string { return l.path }

// AcquireLock wraps zk.Lock, the distributed lock recipe ships with
// samuel/go-zookeeper, blocking until acquired, ctx is done, or the
// session backing sess dies.
func (st *Store) AcquireLock(ctx context.Context, sess coordination.Session, p string) (coordination.Lock, error) {
	zl := zk.NewLock(st.conn, p, zk.WorldACL(zk.PermAll))
	done := make(chan error, 1)
	go func() { done <- zl.Lock() }()
	select {
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("zkstore: error acquiring lock %s: %w", p, err)
		}
		return &lock{path: p, zl: zl}, nil
	case <-ctx.Done():
		go zl.Unlock()
		return nil, ctx.Err()
	case <-sess.Done():
		go zl.Unlock()
		return nil, fmt.Errorf("zkstore: session expired while acquiring lock %s", p)
	}
}

func (st *Store) ReleaseLock(ctx context.Context, l coordination.Lock) error {
	zl, ok := l.(*lock)
	if !ok {
		return fmt.Errorf("zkstore: release called with a lock from another Store")
	}
	return zl.zl.Unlock()
}

// Put creates or updates p. A znode written with a non-nil Session is
// ephemeral: it is removed by ZooKeeper itself when the connection's
// session expires, approximating the generic Store contract's
// session-scoped writes.
func (st *Store) Put(ctx context.Context, p string, value []byte, sess coordination.Session) error {
	if err := st.ensurePath(path.Dir(p)); err != nil {
		return err
	}
	exists, stat, err := st.conn.Exists(p)
	if err != nil {
		return fmt.Errorf("zkstore: error checking %s: %w", p, err)
	}
	if !exists {
		flags := int32(0)
		if sess != nil {
			flags = zk.FlagEphemeral
		}
		_, err := st.conn.Create(p, value, flags, zk.WorldACL(zk.PermAll))
		if err != nil {
			return fmt.Errorf("zkstore: error creating %s: %w", p, err)
		}
		return nil
	}
	if _, err := st.conn.Set(p, value, stat.Version); err != nil {
		return fmt.Errorf("zkstore: error setting %s: %w", p, err)
	}
	return nil
}

func (st *Store) Get(ctx context.Context, p string) ([]byte, error) {
	data, _, err := st.conn.Get(p)
	if err == zk.ErrNoNode {
		return nil, coordination.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("zkstore: error getting %s: %w", p, err)
	}
	return data, nil
}

func (st *Store) Delete(ctx context.Context, p string) error {
	err := st.conn.Delete(p, -1)
	if err == zk.ErrNoNode {
		return nil
	}
	if err != nil {
		return fmt.Errorf("zkstore: error deleting %s: %w", p, err)
	}
	return nil
}

// Watch re-arms a GetW watch on p every time it fires, translating each
// fired event into a Notification carrying the data read just before
// the event arrived.
func (st *Store) Watch(ctx context.Context, p string, fromIndex int64) (<-chan coordination.Notification, error) {
	out := make(chan coordination.Notification)
	go func() {
		defer close(out)
		for {
			data, stat, events, err := st.conn.GetW(p)
			if err != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok || ev.Err != nil {
					return
				}
				deleted := ev.Type == zk.EventNodeDeleted
				out <- coordination.Notification{
					Path:    p,
					Value:   data,
					Index:   int64(stat.Version),
					Deleted: deleted,
				}
				if deleted {
					return
				}
			}
		}
	}()
	return out, nil
}

// ensurePath creates every persistent ancestor of p that doesn't yet
// exist, the zk equivalent of mkdir -p.
func (st *Store) ensurePath(p string) error {
	if p == "" || p == "/" {
		return nil
	}
	segments := strings.Split(strings.Trim(p, "/"), "/")
	cur := ""
	for _, seg := range segments {
		cur += "/" + seg
		exists, _, err := st.conn.Exists(cur)
		if err != nil {
			return fmt.Errorf("zkstore: error checking %s: %w", cur, err)
		}
		if exists {
			continue
		}
		_, err = st.conn.Create(cur, nil, 0, zk.WorldACL(zk.PermAll))
		if err != nil && err != zk.ErrNodeExists {
			return fmt.Errorf("zkstore: error creating %s: %w", cur, err)
		}
	}
	return nil
}
