/*
Package group implements the consumer-group coordinator described in
spec.md §4.4: a Discover → Electing → Rebalancing → Consuming state
machine driven by an external coordination.Store rather than Kafka's
own JoinGroup/SyncGroup protocol (that native path is the opt-in
NativeCoordinator in nativecoordinator.go, per spec.md §9's design note
that the reference design treats it as an alternative plugin).

A Coordinator still talks to the cluster for two things the external
store knows nothing about: discovering which broker holds this group's
offsets (proto/ConsumerMetadata) and committing/fetching those offsets
(proto/OffsetCommit, proto/OffsetFetch). Membership, leader election,
and assignment publication all go through the Store.
*/
package group

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rcrowley/go-metrics"
	"go.uber.org/zap"

	"github.com/cafegrp/cafegrp/broker"
	"github.com/cafegrp/cafegrp/coordination"
	"github.com/cafegrp/cafegrp/fetchworker"
	"github.com/cafegrp/cafegrp/metadata"
	"github.com/cafegrp/cafegrp/proto/ConsumerMetadata"
	"github.com/cafegrp/cafegrp/proto/OffsetCommit"
	"github.com/cafegrp/cafegrp/proto/OffsetFetch"
	errcodes "github.com/cafegrp/cafegrp/proto/errors"
)

// State is one of the Coordinator's FSM states.
type State int

const (
	StateDiscover State = iota
	StateElecting
	StateRebalancing
	StateConsuming
)

func (s State) String() string {
	switch s {
	case StateDiscover:
		return "discover"
	case StateElecting:
		return "electing"
	case StateRebalancing:
		return "rebalancing"
	case StateConsuming:
		return "consuming"
	default:
		return "unknown"
	}
}

// Config configures one Coordinator.
type Config struct {
	Group    string
	Topic    string
	MemberID string // must be unique within Group; random if empty
	ClientId string

	// StorePrefix namespaces this group's keys within the Store, e.g.
	// "/cafegrp". Paths below it are <prefix>/<group>/{leader,members,assignments/<id>}.
	StorePrefix string

	SessionTTL time.Duration
	// LeaderLockWait bounds how long a single Electing attempt blocks
	// trying to become leader before falling back to follower and
	// retrying leadership in the background. Zero means try once,
	// briefly, then fall back (see Coordinator doc comment).
	LeaderLockWait time.Duration

	OffsetReset fetchworker.OffsetReset

	CommitEvery    int
	CommitInterval time.Duration
}

func (c *Config) setDefaults() {
	if c.MemberID == "" {
		c.MemberID = fmt.Sprintf("%s-%s", c.Group, uuid.NewString())
	}
	if c.StorePrefix == "" {
		c.StorePrefix = "/cafegrp"
	}
	if c.SessionTTL == 0 {
		c.SessionTTL = 10 * time.Second
	}
	if c.LeaderLockWait == 0 {
		c.LeaderLockWait = 200 * time.Millisecond
	}
}

// Coordinator runs one group member's membership, election, and
// assignment lifecycle, and drives one fetchworker.Worker per assigned
// partition.
//
// Electing does not block every member indefinitely on the leader
// lock, even though spec.md §5 allows an infinite configured wait for
// lock acquisition in general: only the member that actually becomes
// leader needs to do leader-only work (computing and publishing
// assignments), and every other member must still proceed to read its
// own assignment and start consuming. So Electing makes one bounded
// attempt at the leader lock (LeaderLockWait), and if it doesn't win,
// proceeds as a follower while a background goroutine keeps trying to
// take over leadership with the real, unbounded wait semantics spec.md
// describes. Whichever member is holding the lock when a rebalance is
// due does the publishing; everyone reads the result the same way.
type Coordinator struct {
	cfg   Config
	pool  *broker.Pool
	meta  *metadata.Cache
	store coordination.Store

	Handler fetchworker.Handler
	Logger  *zap.Logger
	Metrics metrics.Registry

	mu              sync.Mutex
	state           State
	coordinatorAddr string
	isLeader        bool

	stop     chan struct{}
	stopOnce sync.Once
}

func New(cfg Config, pool *broker.Pool, meta *metadata.Cache, store coordination.Store, handler fetchworker.Handler) *Coordinator {
	cfg.setDefaults()
	return &Coordinator{
		cfg:     cfg,
		pool:    pool,
		meta:    meta,
		store:   store,
		Handler: handler,
		Logger:  zap.NewNop(),
		Metrics: metrics.NewRegistry(),
		stop:    make(chan struct{}),
	}
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.Logger.Info("group: state transition", zap.String("group", c.cfg.Group), zap.String("member", c.cfg.MemberID), zap.String("state", s.String()))
}

// Stop asks Run to leave the group and return. Safe to call more than
// once or concurrently with Run.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// Run drives the FSM until ctx is done, Stop is called, or an
// unrecoverable error occurs. Any recoverable error (lost session,
// lost coordinator, handler abort) sends it back to Discover rather
// than returning.
func (c *Coordinator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stop:
			return nil
		default:
		}

		if err := c.cycle(ctx); err != nil {
			c.Logger.Warn("group: cycle ended, returning to discover", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.stop:
				return nil
			case <-time.After(time.Second):
			}
		}
	}
}

func (c *Coordinator) cycle(ctx context.Context) error {
	c.setState(StateDiscover)
	addr, err := c.discoverCoordinator(ctx)
	if err != nil {
		return fmt.Errorf("group: error discovering offset coordinator: %w", err)
	}
	c.mu.Lock()
	c.coordinatorAddr = addr
	c.mu.Unlock()

	return c.withSession(ctx, func(sessCtx context.Context, sess coordination.Session) error {
		c.setState(StateElecting)
		if err := c.join(sessCtx, sess); err != nil {
			return fmt.Errorf("group: error joining group: %w", err)
		}
		c.elect(sessCtx, sess)

		for {
			c.setState(StateRebalancing)
			assignment, err := c.rebalance(sessCtx, sess)
			if err != nil {
				return fmt.Errorf("group: error rebalancing: %w", err)
			}

			c.setState(StateConsuming)
			again, err := c.consume(sessCtx, sess, assignment)
			if err != nil {
				return err
			}
			if !again {
				return nil
			}
		}
	})
}

// withSession brackets fn with a coordination session scoped to a
// sub-context of ctx: the session (and, for stores like etcdstore
// whose keepalive goroutine is tied to the context it was created
// with, everything that keeps it alive) is torn down as soon as fn
// returns, rather than living for as long as the caller's ctx does.
func (c *Coordinator) withSession(ctx context.Context, fn func(sessCtx context.Context, sess coordination.Session) error) error {
	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sess, err := c.store.CreateSession(sessCtx, c.cfg.SessionTTL)
	if err != nil {
		return fmt.Errorf("group: error creating coordination session: %w", err)
	}
	defer func() {
		c.leave(context.Background(), sess)
		if err := c.store.CloseSession(context.Background(), sess); err != nil {
			c.Logger.Warn("group: error closing coordination session", zap.Error(err))
		}
	}()

	return fn(sessCtx, sess)
}

// -- coordinator discovery and offset bookkeeping --

func (c *Coordinator) discoverCoordinator(ctx context.Context) (string, error) {
	addr := c.meta.Brokers()
	if len(addr) == 0 {
		if err := c.meta.Refresh(ctx, c.cfg.Topic); err != nil {
			return "", err
		}
	}
	brokers := c.meta.Brokers()
	if len(brokers) == 0 {
		return "", fmt.Errorf("no brokers known")
	}
	conn := c.pool.Get(brokers[0].Addr())
	resp, err := conn.Request(ctx, ConsumerMetadata.NewRequest(c.cfg.ClientId, c.cfg.Group))
	if err != nil {
		return "", err
	}
	body := &ConsumerMetadata.Response{}
	if err := resp.Unmarshal(body); err != nil {
		return "", err
	}
	if errcodes.Code(body.Error) != errcodes.NONE {
		return "", fmt.Errorf("ConsumerMetadata error: %s", errcodes.Code(body.Error))
	}
	return fmt.Sprintf("%s:%d", body.Host, body.Port), nil
}

func (c *Coordinator) fetchCommittedOffset(ctx context.Context, partition int32) (int64, error) {
	conn := c.pool.Get(c.coordinatorAddrSnapshot())
	resp, err := conn.Request(ctx, OffsetFetch.NewRequest(c.cfg.ClientId, c.cfg.Group, c.cfg.Topic, []int32{partition}))
	if err != nil {
		return 0, err
	}
	body := &OffsetFetch.Response{}
	if err := resp.Unmarshal(body); err != nil {
		return 0, err
	}
	for _, t := range body.Topics {
		for _, p := range t.Partitions {
			if p.Partition != partition {
				continue
			}
			if errcodes.Code(p.Error) != errcodes.NONE {
				return 0, fmt.Errorf("OffsetFetch error: %s", errcodes.Code(p.Error))
			}
			return p.Offset, nil
		}
	}
	return -1, nil
}

func (c *Coordinator) commitOffset(ctx context.Context, partition int32, offset int64) error {
	conn := c.pool.Get(c.coordinatorAddrSnapshot())
	resp, err := conn.Request(ctx, OffsetCommit.NewRequest(c.cfg.ClientId, c.cfg.Group, c.cfg.Topic, []OffsetCommit.Offset{{Partition: partition, Offset: offset}}))
	if err != nil {
		return err
	}
	body := &OffsetCommit.Response{}
	if err := resp.Unmarshal(body); err != nil {
		return err
	}
	for _, t := range body.Topics {
		for _, p := range t.Partitions {
			if p.Partition == partition && errcodes.Code(p.Error) != errcodes.NONE {
				return fmt.Errorf("OffsetCommit error: %s", errcodes.Code(p.Error))
			}
		}
	}
	return nil
}

func (c *Coordinator) coordinatorAddrSnapshot() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.coordinatorAddr
}

// -- membership and election --

func (c *Coordinator) rosterPath() string     { return fmt.Sprintf("%s/%s/members", c.cfg.StorePrefix, c.cfg.Group) }
func (c *Coordinator) rosterLockPath() string { return fmt.Sprintf("%s/%s/members-lock", c.cfg.StorePrefix, c.cfg.Group) }
func (c *Coordinator) leaderLockPath() string { return fmt.Sprintf("%s/%s/leader", c.cfg.StorePrefix, c.cfg.Group) }
func (c *Coordinator) assignmentPath(id string) string {
	return fmt.Sprintf("%s/%s/assignments/%s", c.cfg.StorePrefix, c.cfg.Group, id)
}

func (c *Coordinator) readRoster(ctx context.Context) ([]string, error) {
	raw, err := c.store.Get(ctx, c.rosterPath())
	if err == coordination.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var roster []string
	if err := json.Unmarshal(raw, &roster); err != nil {
		return nil, err
	}
	return roster, nil
}

// join adds this member's id to the group roster, guarded by a
// short-lived roster lock so concurrent joins don't clobber each
// other's read-modify-write. The roster itself is a plain persistent
// key rather than ephemeral, since tying the whole roster's lifetime
// to one member's session would delete everyone else's membership
// when that one member's session expired; a departing member removes
// itself explicitly in leave.
func (c *Coordinator) join(ctx context.Context, sess coordination.Session) error {
	lock, err := c.store.AcquireLock(ctx, sess, c.rosterLockPath())
	if err != nil {
		return err
	}
	defer c.store.ReleaseLock(ctx, lock)

	roster, err := c.readRoster(ctx)
	if err != nil {
		return err
	}
	for _, m := range roster {
		if m == c.cfg.MemberID {
			return nil
		}
	}
	roster = append(roster, c.cfg.MemberID)
	raw, err := json.Marshal(roster)
	if err != nil {
		return err
	}
	return c.store.Put(ctx, c.rosterPath(), raw, nil)
}

func (c *Coordinator) leave(ctx context.Context, sess coordination.Session) {
	lock, err := c.store.AcquireLock(ctx, sess, c.rosterLockPath())
	if err != nil {
		c.Logger.Warn("group: error acquiring roster lock to leave", zap.Error(err))
		return
	}
	defer c.store.ReleaseLock(ctx, lock)

	roster, err := c.readRoster(ctx)
	if err != nil {
		return
	}
	out := roster[:0]
	for _, m := range roster {
		if m != c.cfg.MemberID {
			out = append(out, m)
		}
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return
	}
	_ = c.store.Put(ctx, c.rosterPath(), raw, nil)
}

// elect makes one bounded attempt to become leader, then if that
// fails, keeps trying in the background with no deadline for the life
// of ctx — see the Coordinator doc comment for why non-leaders must
// not block here.
func (c *Coordinator) elect(ctx context.Context, sess coordination.Session) {
	tryCtx, cancel := context.WithTimeout(ctx, c.cfg.LeaderLockWait)
	defer cancel()
	if lock, err := c.store.AcquireLock(tryCtx, sess, c.leaderLockPath()); err == nil {
		c.becomeLeader(lock)
		return
	}
	go c.pursueLeadership(ctx, sess)
}

func (c *Coordinator) pursueLeadership(ctx context.Context, sess coordination.Session) {
	lock, err := c.store.AcquireLock(ctx, sess, c.leaderLockPath())
	if err != nil {
		return // ctx done, or session gone; cycle() will notice and restart
	}
	c.becomeLeader(lock)
}

func (c *Coordinator) becomeLeader(lock coordination.Lock) {
	c.mu.Lock()
	c.isLeader = true
	c.mu.Unlock()
	c.Logger.Info("group: became leader", zap.String("group", c.cfg.Group), zap.String("member", c.cfg.MemberID))
	_ = lock
}

func (c *Coordinator) amLeader() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isLeader
}

// rebalance publishes a fresh assignment if this member is leader, then
// (every member, leader included) reads its own published assignment.
func (c *Coordinator) rebalance(ctx context.Context, sess coordination.Session) ([]int32, error) {
	if c.amLeader() {
		if err := c.publishAssignment(ctx); err != nil {
			return nil, err
		}
	}
	return c.waitForAssignment(ctx)
}

func (c *Coordinator) publishAssignment(ctx context.Context) error {
	roster, err := c.readRoster(ctx)
	if err != nil {
		return err
	}
	t := c.meta.Topic(c.cfg.Topic)
	if t == nil {
		if err := c.meta.Refresh(ctx, c.cfg.Topic); err != nil {
			return err
		}
		t = c.meta.Topic(c.cfg.Topic)
	}
	if t == nil {
		return fmt.Errorf("group: unknown topic %q", c.cfg.Topic)
	}
	partitions := make([]int32, len(t.Partitions))
	for i, p := range t.Partitions {
		partitions[i] = p.ID
	}
	assignment := assign(roster, partitions)
	for member, parts := range assignment {
		sort.Slice(parts, func(i, j int) bool { return parts[i] < parts[j] })
		raw, err := json.Marshal(parts)
		if err != nil {
			return err
		}
		if err := c.store.Put(ctx, c.assignmentPath(member), raw, nil); err != nil {
			return err
		}
	}
	return nil
}

// waitForAssignment polls for this member's assignment to appear. A
// real deployment gets near-instant delivery here since publish
// already happened (or will, by the leader) before any member reaches
// this point in a stable group; the poll only matters for the races
// inherent in "just joined" and "leader not elected yet".
func (c *Coordinator) waitForAssignment(ctx context.Context) ([]int32, error) {
	for {
		raw, err := c.store.Get(ctx, c.assignmentPath(c.cfg.MemberID))
		if err == nil {
			var parts []int32
			if jerr := json.Unmarshal(raw, &parts); jerr != nil {
				return nil, jerr
			}
			return parts, nil
		}
		if err != coordination.ErrNotFound {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.stop:
			return nil, fmt.Errorf("group: stopped while waiting for assignment")
		case <-time.After(200 * time.Millisecond):
		}
	}
}

// consume runs one fetchworker.Worker per assigned partition until the
// roster changes (triggering a rebalance), the session is lost, or the
// coordinator is told to stop. The bool return reports whether the
// caller should loop back into another Rebalancing round (true) or
// leave this cycle (false): on ctx/Stop, and together with a non-nil
// error when the session is lost, a worker fails, or a starting offset
// or the roster cannot be read.
func (c *Coordinator) consume(ctx context.Context, sess coordination.Session, partitions []int32) (bool, error) {
	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// workerErrs carries a fetchworker's unrecoverable error (including
	// a failed commit, e.g. NotCoordinatorForConsumer) back to this
	// select loop, so it forces the same Discover restart a lost
	// session or a rebalance does, instead of being logged and ignored
	// while the partition silently stops being consumed.
	workerErrs := make(chan error, len(partitions))
	var wg sync.WaitGroup
	for _, p := range partitions {
		start, err := c.fetchCommittedOffset(ctx, p)
		if err != nil {
			return false, fmt.Errorf("group: error fetching committed offset for partition %d: %w", p, err)
		}
		if start < 0 {
			start, err = c.initialOffset(ctx, p)
			if err != nil {
				return false, err
			}
		}
		partition := p
		w := fetchworker.New(fetchworker.Config{
			Topic:          c.cfg.Topic,
			Partition:      partition,
			ClientId:       c.cfg.ClientId,
			OffsetReset:    c.cfg.OffsetReset,
			CommitEvery:    c.cfg.CommitEvery,
			CommitInterval: c.cfg.CommitInterval,
		}, c.pool, c.meta, c.Handler, func(ctx context.Context, offset int64) error {
			return c.commitOffset(ctx, partition, offset)
		})
		w.Logger = c.Logger
		w.Metrics = c.Metrics
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Run(workerCtx, start); err != nil && workerCtx.Err() == nil {
				c.Logger.Warn("group: fetchworker exited with error", zap.Int32("partition", partition), zap.Error(err))
				workerErrs <- fmt.Errorf("partition %d: %w", partition, err)
			}
		}()
	}

	roster, err := c.readRoster(ctx)
	if err != nil {
		return false, err
	}
	watch, err := c.store.Watch(ctx, c.rosterPath(), 0)
	if err != nil {
		return false, err
	}

	rebalance := false
	for !rebalance {
		select {
		case <-ctx.Done():
			cancel()
			wg.Wait()
			return false, ctx.Err()
		case <-c.stop:
			cancel()
			wg.Wait()
			return false, nil
		case <-sess.Done():
			cancel()
			wg.Wait()
			return false, fmt.Errorf("group: coordination session lost")
		case werr := <-workerErrs:
			cancel()
			wg.Wait()
			return false, fmt.Errorf("group: fetchworker error: %w", werr)
		case n := <-watch:
			var newRoster []string
			if !n.Deleted {
				_ = json.Unmarshal(n.Value, &newRoster)
			}
			if !sameMembers(roster, newRoster) {
				rebalance = true
			}
			roster = newRoster
		}
	}
	cancel()
	wg.Wait()
	return true, nil
}

// initialOffset picks a starting point for a partition with no
// committed offset. Offset 0 is rarely exactly right, but the worker's
// first fetch will come back OFFSET_OUT_OF_RANGE if it's too low, and
// its own OffsetReset policy corrects from there — so there's no need
// to duplicate that ListOffsets call here.
func (c *Coordinator) initialOffset(ctx context.Context, partition int32) (int64, error) {
	return 0, nil
}

func sameMembers(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sa := append([]string(nil), a...)
	sb := append([]string(nil), b...)
	sort.Strings(sa)
	sort.Strings(sb)
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}
