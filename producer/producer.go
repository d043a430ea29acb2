/*
Package producer implements a topic-scoped Kafka producer: it
partitions outgoing messages, batches them per leader broker, and
retries on leader-change errors by refreshing the shared metadata.Cache.

Producing

Call Produce for a synchronous send (blocks until the broker
acknowledges, or, if RequiredAcks is 0, until the message's batch has
been handed to the broker connection) or AsyncProduce to
enqueue without waiting. Messages for the same leader broker are
coalesced into one Produce request once any of the linger thresholds
(LingerBytes, LingerMs, LingerCount) is reached.
*/
package producer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rcrowley/go-metrics"
	"go.uber.org/zap"

	"github.com/cafegrp/cafegrp/broker"
	"github.com/cafegrp/cafegrp/metadata"
	"github.com/cafegrp/cafegrp/partition"
	"github.com/cafegrp/cafegrp/proto/Produce"
	"github.com/cafegrp/cafegrp/proto/errors"
)

// state is the per-topic producer state machine of spec.md §4.3:
// Initializing -> Ready <-> Refreshing -> Ready.
type state int32

const (
	stateInitializing state = iota
	stateReady
	stateRefreshing
)

// Result is delivered for one produced message, synchronously by
// Produce or over AsyncProduce's returned channel.
type Result struct {
	Partition int32
	Offset    int64
	Err       error
}

// Options customizes one Produce/AsyncProduce call. Key and Partition
// are mutually exclusive ways of choosing a destination; if both are
// zero-valued the message is round-robined across partitions.
type Options struct {
	Key          []byte
	Partition    int32
	HasPartition bool
}

// Producer is topic-scoped: one instance produces to exactly one topic,
// across all of that topic's partitions and their current leaders.
// Safe for concurrent use.
type Producer struct {
	Topic        string
	ClientId     string
	RequiredAcks int16
	TimeoutMs    int32
	LingerBytes  int
	LingerMs     int
	LingerCount  int
	MaxRetries   int
	Partitioner  partition.Partitioner
	Logger       *zap.Logger
	Metrics      metrics.Registry

	pool *broker.Pool
	meta *metadata.Cache

	mu    sync.Mutex
	state state
	rr    partition.RoundRobin

	batchMu  sync.Mutex
	batches  map[string]*leaderBatch
	stopOnce sync.Once
	stop     chan struct{}
}

// New constructs a Producer. Call Start before producing; Start makes
// one metadata refresh attempt and returns its error if it fails.
func New(topic, clientId string, pool *broker.Pool, meta *metadata.Cache) *Producer {
	return &Producer{
		Topic:        topic,
		ClientId:     clientId,
		RequiredAcks: 1,
		TimeoutMs:    10000,
		LingerBytes:  16 << 10,
		LingerMs:     50,
		LingerCount:  500,
		MaxRetries:   3,
		Partitioner:  partition.Murmur2{},
		Logger:       zap.NewNop(),
		Metrics:      metrics.NewRegistry(),
		pool:         pool,
		meta:         meta,
		batches:      make(map[string]*leaderBatch),
		stop:         make(chan struct{}),
	}
}

// Start performs the initial metadata refresh (moving the producer out
// of Initializing) and launches the background linger-flush loop.
func (p *Producer) Start(ctx context.Context) error {
	if err := p.refresh(ctx); err != nil {
		return fmt.Errorf("producer: error initializing %q: %w", p.Topic, err)
	}
	go p.flushLoop()
	go p.refreshLoop()
	return nil
}

// Close flushes any pending batches and stops the background loops.
func (p *Producer) Close(ctx context.Context) error {
	p.stopOnce.Do(func() { close(p.stop) })
	return p.flushAll(ctx)
}

func (p *Producer) refresh(ctx context.Context) error {
	p.mu.Lock()
	p.state = stateRefreshing
	p.mu.Unlock()
	err := p.meta.Refresh(ctx, p.Topic)
	p.mu.Lock()
	p.state = stateReady
	p.mu.Unlock()
	return err
}

func (p *Producer) refreshLoop() {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := p.refresh(ctx); err != nil {
				p.Logger.Warn("producer: periodic metadata refresh failed", zap.String("topic", p.Topic), zap.Error(err))
			}
			cancel()
		}
	}
}

func (p *Producer) flushLoop() {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.flushExpired()
		}
	}
}

// Produce sends one message and blocks for its outcome. If RequiredAcks
// is 0 it returns as soon as the batch holding the message has been
// handed to the broker connection, with Offset left at its zero value (the
// broker sends no acknowledgement to compute a real one from).
func (p *Producer) Produce(ctx context.Context, value []byte, opts Options) (int32, int64, error) {
	resultCh, err := p.enqueue(ctx, value, opts)
	if err != nil {
		return 0, 0, err
	}
	select {
	case r := <-resultCh:
		return r.Partition, r.Offset, r.Err
	case <-ctx.Done():
		return 0, 0, ctx.Err()
	}
}

// AsyncProduce enqueues value and returns immediately with a channel
// that receives the eventual Result once the batch it lands in has been
// flushed.
func (p *Producer) AsyncProduce(ctx context.Context, value []byte, opts Options) (<-chan Result, error) {
	return p.enqueue(ctx, value, opts)
}

func (p *Producer) enqueue(ctx context.Context, value []byte, opts Options) (chan Result, error) {
	part, err := p.choosePartition(opts)
	if err != nil {
		return nil, err
	}
	addr, err := p.leaderFor(ctx, part)
	if err != nil {
		return nil, err
	}

	resultCh := make(chan Result, 1)
	p.batchMu.Lock()
	b, ok := p.batches[addr]
	if !ok {
		b = newLeaderBatch(addr)
		p.batches[addr] = b
	}
	b.add(part, opts.Key, value, resultCh)
	shouldFlush := b.sizeBytes >= p.LingerBytes || b.numMessages >= p.LingerCount
	p.batchMu.Unlock()

	if shouldFlush {
		p.flushAddr(ctx, addr)
	}
	return resultCh, nil
}

func (p *Producer) choosePartition(opts Options) (int32, error) {
	n := p.meta.NumPartitions(p.Topic)
	if n == 0 {
		return 0, fmt.Errorf("producer: topic %q has no known partitions", p.Topic)
	}
	if opts.HasPartition {
		return opts.Partition, nil
	}
	if opts.Key != nil && p.Partitioner != nil {
		return p.Partitioner.Partition(opts.Key, n), nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return partition.Choose(opts.Key, &p.rr, n), nil
}

func (p *Producer) leaderFor(ctx context.Context, part int32) (string, error) {
	addr, err := p.meta.Leader(p.Topic, part)
	if err == nil {
		return addr, nil
	}
	if err := p.refresh(ctx); err != nil {
		return "", fmt.Errorf("producer: error refreshing metadata for %q: %w", p.Topic, err)
	}
	return p.meta.Leader(p.Topic, part)
}

// flushExpired flushes every leader batch whose age exceeds LingerMs.
func (p *Producer) flushExpired() {
	now := time.Now()
	p.batchMu.Lock()
	var due []string
	for addr, b := range p.batches {
		if now.Sub(b.firstQueued) >= time.Duration(p.LingerMs)*time.Millisecond {
			due = append(due, addr)
		}
	}
	p.batchMu.Unlock()
	for _, addr := range due {
		p.flushAddr(context.Background(), addr)
	}
}

func (p *Producer) flushAll(ctx context.Context) error {
	p.batchMu.Lock()
	addrs := make([]string, 0, len(p.batches))
	for addr := range p.batches {
		addrs = append(addrs, addr)
	}
	p.batchMu.Unlock()
	var firstErr error
	for _, addr := range addrs {
		if err := p.flushAddr(ctx, addr); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// flushAddr detaches the current batch for addr (if any) and sends it,
// dispatching results (or retries) to every waiter in the batch.
func (p *Producer) flushAddr(ctx context.Context, addr string) error {
	p.batchMu.Lock()
	b, ok := p.batches[addr]
	if ok {
		delete(p.batches, addr)
	}
	p.batchMu.Unlock()
	if !ok || b.numMessages == 0 {
		return nil
	}
	return p.send(ctx, addr, b, 0)
}

func (p *Producer) send(ctx context.Context, addr string, b *leaderBatch, attempt int) error {
	batches := make([]Produce.PartitionBatch, 0, len(b.partitions))
	for part, pb := range b.partitions {
		set, err := pb.builder.Build()
		if err != nil {
			p.failPartition(pb, err)
			continue
		}
		batches = append(batches, Produce.PartitionBatch{Partition: part, MessageSet: set})
	}
	if len(batches) == 0 {
		return nil
	}
	req := Produce.NewRequest(p.ClientId, p.RequiredAcks, p.TimeoutMs, p.Topic, batches)
	conn := p.pool.Get(addr)
	resp, err := conn.Request(ctx, req)
	metrics.GetOrRegisterMeter("produce-requests", p.Metrics).Mark(1)
	if err != nil {
		return p.retryOrFail(ctx, b, attempt, err, false)
	}
	if !req.HasResponse {
		for _, pb := range b.partitions {
			for _, w := range pb.waiters {
				w <- Result{Partition: pb.partition}
			}
		}
		return nil
	}
	body := &Produce.Response{}
	if err := resp.Unmarshal(body); err != nil {
		return p.retryOrFail(ctx, b, attempt, err, false)
	}
	var leaderErrorPartitions, timeoutPartitions *leaderBatch
	for _, rt := range body.Topics {
		for _, rp := range rt.Partitions {
			pb, ok := b.partitions[rp.Partition]
			if !ok {
				continue
			}
			code := errors.Code(rp.Error)
			switch {
			case code.OK():
				p.succeedPartition(pb, rp.Offset)
			case code == errors.NOT_LEADER_FOR_PARTITION || code == errors.LEADER_NOT_AVAILABLE || code == errors.UNKNOWN_TOPIC_OR_PARTITION:
				if leaderErrorPartitions == nil {
					leaderErrorPartitions = newLeaderBatch(addr)
				}
				leaderErrorPartitions.partitions[rp.Partition] = pb
			case code == errors.REQUEST_TIMED_OUT:
				if timeoutPartitions == nil {
					timeoutPartitions = newLeaderBatch(addr)
				}
				timeoutPartitions.partitions[rp.Partition] = pb
			default:
				p.failPartition(pb, fmt.Errorf("producer: broker error for %s partition %d: %s", p.Topic, rp.Partition, code))
			}
		}
	}
	var retryErr error
	if leaderErrorPartitions != nil {
		// NotLeaderForPartition/LeaderNotAvailable/UnknownTopicOrPartition:
		// the cached leader is stale, refresh before picking a new one.
		retryErr = p.retryOrFail(ctx, leaderErrorPartitions, attempt, nil, true)
	}
	if timeoutPartitions != nil {
		// RequestTimedOut: the leader was right, just slow. Retry against
		// the same leader without refreshing metadata first.
		if err := p.retryOrFail(ctx, timeoutPartitions, attempt, nil, false); err != nil && retryErr == nil {
			retryErr = err
		}
	}
	return retryErr
}

func (p *Producer) retryOrFail(ctx context.Context, b *leaderBatch, attempt int, transportErr error, refreshFirst bool) error {
	if attempt >= p.MaxRetries {
		err := transportErr
		if err == nil {
			err = fmt.Errorf("producer: exceeded max retries for %s", p.Topic)
		}
		for _, pb := range b.partitions {
			p.failPartition(pb, err)
		}
		return err
	}
	if refreshFirst || transportErr != nil {
		if err := p.refresh(ctx); err != nil {
			for _, pb := range b.partitions {
				p.failPartition(pb, err)
			}
			return err
		}
	}
	newAddrs := make(map[string]*leaderBatch)
	for part, pb := range b.partitions {
		newAddr, err := p.meta.Leader(p.Topic, part)
		if err != nil {
			p.failPartition(pb, err)
			continue
		}
		nb, ok := newAddrs[newAddr]
		if !ok {
			nb = newLeaderBatch(newAddr)
			newAddrs[newAddr] = nb
		}
		nb.partitions[part] = pb
	}
	var firstErr error
	for newAddr, nb := range newAddrs {
		if err := p.send(ctx, newAddr, nb, attempt+1); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (p *Producer) succeedPartition(pb *partitionBatch, baseOffset int64) {
	for i, w := range pb.waiters {
		w <- Result{Partition: pb.partition, Offset: baseOffset + int64(i)}
	}
}

func (p *Producer) failPartition(pb *partitionBatch, err error) {
	for _, w := range pb.waiters {
		w <- Result{Partition: pb.partition, Err: err}
	}
}
