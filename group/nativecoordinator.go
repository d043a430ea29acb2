package group

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cafegrp/cafegrp/broker"
	"github.com/cafegrp/cafegrp/fetchworker"
	"github.com/cafegrp/cafegrp/metadata"
	errcodes "github.com/cafegrp/cafegrp/proto/errors"
	"github.com/cafegrp/cafegrp/proto/Heartbeat"
	"github.com/cafegrp/cafegrp/proto/JoinGroup"
	"github.com/cafegrp/cafegrp/proto/SyncGroup"
)

// encodeAssignment/decodeAssignment serialize a member's partition list
// into SyncGroup's opaque MemberAssignment bytes. Real Kafka clients use
// a small binary schema here (version + topic list + partitions); JSON
// is used instead since both ends of this wire are this module, and
// there's no cross-client compatibility requirement to satisfy.
func encodeAssignment(partitions []int32) []byte {
	raw, _ := json.Marshal(partitions)
	return raw
}

func decodeAssignment(raw []byte) []int32 {
	var partitions []int32
	_ = json.Unmarshal(raw, &partitions)
	return partitions
}

// NativeCoordinator is the alternative to Coordinator that rebalances
// through Kafka's own JoinGroup/SyncGroup/Heartbeat APIs instead of an
// external coordination.Store, grounded on the teacher's
// client.GroupClient. spec.md §9 treats the external-store design as
// the reference and this as an optional plugin: it exists for
// deployments that would rather not stand up a ZooKeeper ensemble or
// etcd cluster just to run one consumer group.
//
// Unlike Coordinator, every member's session and generation live on
// the Kafka group coordinator broker itself, so there's no analogue to
// coordination.Session to create, and the leader doesn't need a
// separate bounded-lock dance — JoinGroup's response already tells
// every member who the leader is.
type NativeCoordinator struct {
	cfg  Config
	pool *broker.Pool
	meta *metadata.Cache

	Handler fetchworker.Handler
	Logger  *zap.Logger

	SessionTimeoutMs  int32
	HeartbeatInterval time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

func NewNativeCoordinator(cfg Config, pool *broker.Pool, meta *metadata.Cache, handler fetchworker.Handler) *NativeCoordinator {
	cfg.setDefaults()
	return &NativeCoordinator{
		cfg:               cfg,
		pool:              pool,
		meta:              meta,
		Handler:           handler,
		Logger:            zap.NewNop(),
		SessionTimeoutMs:  30000,
		HeartbeatInterval: 3 * time.Second,
		stop:              make(chan struct{}),
	}
}

func (c *NativeCoordinator) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *NativeCoordinator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stop:
			return nil
		default:
		}
		if err := c.cycle(ctx); err != nil {
			c.Logger.Warn("group: native cycle ended, rejoining", zap.Error(err))
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

func (c *NativeCoordinator) coordinatorAddr(ctx context.Context) (string, error) {
	return (&Coordinator{cfg: c.cfg, pool: c.pool, meta: c.meta}).discoverCoordinator(ctx)
}

func (c *NativeCoordinator) cycle(ctx context.Context) error {
	addr, err := c.coordinatorAddr(ctx)
	if err != nil {
		return fmt.Errorf("group: error finding group coordinator: %w", err)
	}
	conn := c.pool.Get(addr)

	joinResp, err := c.join(ctx, conn)
	if err != nil {
		return fmt.Errorf("group: error joining group: %w", err)
	}

	var assignments []SyncGroup.Assignment
	if joinResp.LeaderId == joinResp.MemberId {
		assignments, err = c.computeAssignments(ctx, joinResp)
		if err != nil {
			return fmt.Errorf("group: error computing assignments: %w", err)
		}
	}

	myPartitions, err := c.sync(ctx, conn, joinResp, assignments)
	if err != nil {
		return fmt.Errorf("group: error syncing group: %w", err)
	}

	return c.consume(ctx, conn, joinResp, myPartitions)
}

func (c *NativeCoordinator) join(ctx context.Context, conn *broker.Conn) (*JoinGroup.Response, error) {
	req := JoinGroup.NewRequest(c.cfg.ClientId, c.cfg.Group, c.SessionTimeoutMs, c.cfg.MemberID, []JoinGroup.Protocol{
		{Name: "roundrobin"},
	})
	resp, err := conn.Request(ctx, req)
	if err != nil {
		return nil, err
	}
	body := &JoinGroup.Response{}
	if err := resp.Unmarshal(body); err != nil {
		return nil, err
	}
	if errcodes.Code(body.Error) != errcodes.NONE {
		return nil, fmt.Errorf("JoinGroup error: %s", errcodes.Code(body.Error))
	}
	c.cfg.MemberID = body.MemberId
	return body, nil
}

// computeAssignments runs only on the member JoinGroup named leader,
// exactly as the protocol intends: the leader alone decides who gets
// what and hands the result to SyncGroup, everyone else's SyncGroup
// request carries no assignments at all.
func (c *NativeCoordinator) computeAssignments(ctx context.Context, joinResp *JoinGroup.Response) ([]SyncGroup.Assignment, error) {
	members := make([]string, len(joinResp.Members))
	for i, m := range joinResp.Members {
		members[i] = m.MemberId
	}
	t := c.meta.Topic(c.cfg.Topic)
	if t == nil {
		if err := c.meta.Refresh(ctx, c.cfg.Topic); err != nil {
			return nil, err
		}
		t = c.meta.Topic(c.cfg.Topic)
	}
	if t == nil {
		return nil, fmt.Errorf("group: unknown topic %q", c.cfg.Topic)
	}
	partitions := make([]int32, len(t.Partitions))
	for i, p := range t.Partitions {
		partitions[i] = p.ID
	}
	byMember := assign(members, partitions)
	out := make([]SyncGroup.Assignment, 0, len(byMember))
	for member, parts := range byMember {
		out = append(out, SyncGroup.Assignment{MemberId: member, Assignment: encodeAssignment(parts)})
	}
	return out, nil
}

func (c *NativeCoordinator) sync(ctx context.Context, conn *broker.Conn, joinResp *JoinGroup.Response, assignments []SyncGroup.Assignment) ([]int32, error) {
	req := SyncGroup.NewRequest(c.cfg.ClientId, c.cfg.Group, joinResp.GenerationId, c.cfg.MemberID, assignments)
	resp, err := conn.Request(ctx, req)
	if err != nil {
		return nil, err
	}
	body := &SyncGroup.Response{}
	if err := resp.Unmarshal(body); err != nil {
		return nil, err
	}
	if errcodes.Code(body.Error) != errcodes.NONE {
		return nil, fmt.Errorf("SyncGroup error: %s", errcodes.Code(body.Error))
	}
	return decodeAssignment(body.MemberAssignment), nil
}

func (c *NativeCoordinator) consume(ctx context.Context, conn *broker.Conn, joinResp *JoinGroup.Response, partitions []int32) error {
	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// workerErrs mirrors group.Coordinator.consume: a fetchworker's
	// unrecoverable error (a failed commit included) forces this cycle
	// to end and rejoin, rather than being dropped on the floor.
	workerErrs := make(chan error, len(partitions))
	var wg sync.WaitGroup
	for _, p := range partitions {
		partition := p
		start, err := c.fetchCommittedOffset(ctx, conn, partition)
		if err != nil {
			cancel()
			wg.Wait()
			return fmt.Errorf("error fetching committed offset for partition %d: %w", partition, err)
		}
		if start < 0 {
			start = 0
		}
		w := fetchworker.New(fetchworker.Config{
			Topic:          c.cfg.Topic,
			Partition:      partition,
			ClientId:       c.cfg.ClientId,
			OffsetReset:    c.cfg.OffsetReset,
			CommitEvery:    c.cfg.CommitEvery,
			CommitInterval: c.cfg.CommitInterval,
		}, c.pool, c.meta, c.Handler, func(ctx context.Context, offset int64) error {
			return c.commitOffset(ctx, conn, partition, offset)
		})
		w.Logger = c.Logger
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Run(workerCtx, start); err != nil && workerCtx.Err() == nil {
				c.Logger.Warn("group: fetchworker exited with error", zap.Int32("partition", partition), zap.Error(err))
				workerErrs <- fmt.Errorf("partition %d: %w", partition, err)
			}
		}()
	}

	ticker := time.NewTicker(c.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			cancel()
			wg.Wait()
			return ctx.Err()
		case <-c.stop:
			cancel()
			wg.Wait()
			return nil
		case werr := <-workerErrs:
			cancel()
			wg.Wait()
			return fmt.Errorf("group: fetchworker error: %w", werr)
		case <-ticker.C:
			if err := c.heartbeat(ctx, conn, joinResp.GenerationId); err != nil {
				cancel()
				wg.Wait()
				return err
			}
		}
	}
}

func (c *NativeCoordinator) heartbeat(ctx context.Context, conn *broker.Conn, generationId int32) error {
	resp, err := conn.Request(ctx, Heartbeat.NewRequest(c.cfg.ClientId, c.cfg.Group, generationId, c.cfg.MemberID))
	if err != nil {
		return err
	}
	body := &Heartbeat.Response{}
	if err := resp.Unmarshal(body); err != nil {
		return err
	}
	if errcodes.Code(body.Error) != errcodes.NONE {
		return fmt.Errorf("Heartbeat error: %s", errcodes.Code(body.Error))
	}
	return nil
}

func (c *NativeCoordinator) commitOffset(ctx context.Context, conn *broker.Conn, partition int32, offset int64) error {
	return (&Coordinator{cfg: c.cfg, pool: c.pool, coordinatorAddr: conn.Addr}).commitOffset(ctx, partition, offset)
}

func (c *NativeCoordinator) fetchCommittedOffset(ctx context.Context, conn *broker.Conn, partition int32) (int64, error) {
	return (&Coordinator{cfg: c.cfg, pool: c.pool, coordinatorAddr: conn.Addr}).fetchCommittedOffset(ctx, partition)
}
