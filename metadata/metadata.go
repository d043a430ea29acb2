// Package metadata maintains a refreshable view of a cluster's brokers,
// topics, and partition leaders, shared by package producer and package
// fetchworker so they agree on where to send requests.
package metadata

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/cafegrp/cafegrp/broker"
	"github.com/cafegrp/cafegrp/kafka"
	"github.com/cafegrp/cafegrp/proto/Metadata"
)

// Cache holds the last-known cluster view. The zero value is not
// usable; construct with New. Safe for concurrent use.
type Cache struct {
	pool     *broker.Pool
	clientId string

	mu          sync.RWMutex
	brokers     map[int32]kafka.Broker
	topics      map[string]*kafka.Topic
	bootstrap   []string
	missedCount map[int32]int
}

func New(pool *broker.Pool, clientId string, bootstrap []string) *Cache {
	return &Cache{
		pool:        pool,
		clientId:    clientId,
		bootstrap:   bootstrap,
		brokers:     make(map[int32]kafka.Broker),
		topics:      make(map[string]*kafka.Topic),
		missedCount: make(map[int32]int),
	}
}

// Refresh issues a Metadata request for the given topics (or every topic
// the broker knows about, if topics is empty) against a bootstrap
// broker, and replaces the cached view with the response. A broker
// absent from two consecutive Refresh calls is garbage collected from
// the cache.
func (c *Cache) Refresh(ctx context.Context, topics ...string) error {
	addr := c.bootstrap[rand.Intn(len(c.bootstrap))]
	conn := c.pool.Get(addr)
	req := Metadata.NewRequest(c.clientId, topics)
	resp, err := conn.Request(ctx, req)
	if err != nil {
		return fmt.Errorf("metadata: error calling bootstrap broker %s: %w", addr, err)
	}
	body := &Metadata.Response{}
	if err := resp.Unmarshal(body); err != nil {
		return fmt.Errorf("metadata: error unmarshaling response: %w", err)
	}
	c.apply(body)
	return nil
}

func (c *Cache) apply(resp *Metadata.Response) {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[int32]bool, len(resp.Brokers))
	for _, b := range resp.Brokers {
		seen[b.NodeId] = true
		c.brokers[b.NodeId] = kafka.Broker{NodeID: b.NodeId, Host: b.Host, Port: b.Port}
		delete(c.missedCount, b.NodeId)
	}
	for id := range c.brokers {
		if seen[id] {
			continue
		}
		c.missedCount[id]++
		if c.missedCount[id] >= 2 {
			delete(c.brokers, id)
			delete(c.missedCount, id)
		}
	}

	for _, tm := range resp.TopicMetadatas {
		t := &kafka.Topic{Name: tm.Topic}
		for _, pm := range tm.Partitions {
			t.Partitions = append(t.Partitions, kafka.Partition{
				ID:          pm.Id,
				LeaderID:    pm.Leader,
				LeaderKnown: pm.Leader >= 0,
				Replicas:    pm.Replicas,
				Isr:         pm.Isr,
			})
		}
		c.topics[tm.Topic] = t
	}
}

// Topic returns the cached view of topic, or nil if Refresh has never
// been called for it.
func (c *Cache) Topic(topic string) *kafka.Topic {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.topics[topic]
}

// Leader returns the broker address for the given topic partition's
// leader, or an error if the partition or its leader is unknown.
func (c *Cache) Leader(topic string, partition int32) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.topics[topic]
	if !ok {
		return "", fmt.Errorf("metadata: unknown topic %q", topic)
	}
	p := t.Partition(partition)
	if p == nil {
		return "", fmt.Errorf("metadata: unknown partition %d for topic %q", partition, topic)
	}
	if !p.LeaderKnown {
		return "", fmt.Errorf("metadata: no leader for topic %q partition %d", topic, partition)
	}
	b, ok := c.brokers[p.LeaderID]
	if !ok {
		return "", fmt.Errorf("metadata: leader broker %d for topic %q partition %d not in cache", p.LeaderID, topic, partition)
	}
	return b.Addr(), nil
}

// Brokers returns a snapshot of every broker currently cached.
func (c *Cache) Brokers() []kafka.Broker {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]kafka.Broker, 0, len(c.brokers))
	for _, b := range c.brokers {
		out = append(out, b)
	}
	return out
}

// NumPartitions returns how many partitions topic has, or 0 if unknown.
func (c *Cache) NumPartitions(topic string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.topics[topic]
	if !ok {
		return 0
	}
	return len(t.Partitions)
}
