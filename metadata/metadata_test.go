package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cafegrp/cafegrp/proto/Metadata"
)

func newTestCache() *Cache {
	return New(nil, "test", []string{"localhost:9092"})
}

func TestApplyPopulatesTopicsAndLeader(t *testing.T) {
	c := newTestCache()
	c.apply(&Metadata.Response{
		Brokers: []Metadata.Broker{{NodeId: 1, Host: "b1", Port: 9092}},
		TopicMetadatas: []Metadata.TopicMetadata{{
			Topic: "orders",
			Partitions: []Metadata.PartitionMetadata{
				{Id: 0, Leader: 1, Replicas: []int32{1}, Isr: []int32{1}},
			},
		}},
	})
	addr, err := c.Leader("orders", 0)
	require.NoError(t, err)
	assert.Equal(t, "b1:9092", addr)
	assert.Equal(t, 1, c.NumPartitions("orders"))
}

func TestLeaderUnknownPartitionErrors(t *testing.T) {
	c := newTestCache()
	c.apply(&Metadata.Response{TopicMetadatas: []Metadata.TopicMetadata{{Topic: "orders"}}})
	_, err := c.Leader("orders", 5)
	assert.Error(t, err)
}

func TestBrokerGarbageCollectedAfterTwoMisses(t *testing.T) {
	c := newTestCache()
	withBroker := &Metadata.Response{Brokers: []Metadata.Broker{{NodeId: 1, Host: "b1", Port: 9092}}}
	c.apply(withBroker)
	require.Len(t, c.Brokers(), 1)

	empty := &Metadata.Response{}
	c.apply(empty) // miss 1
	require.Len(t, c.Brokers(), 1)
	c.apply(empty) // miss 2: evicted
	assert.Len(t, c.Brokers(), 0)
}

func TestBrokerSurvivesIfSeenAgainBeforeSecondMiss(t *testing.T) {
	c := newTestCache()
	withBroker := &Metadata.Response{Brokers: []Metadata.Broker{{NodeId: 1, Host: "b1", Port: 9092}}}
	c.apply(withBroker)
	c.apply(&Metadata.Response{}) // miss 1
	c.apply(withBroker)           // seen again, miss count resets
	c.apply(&Metadata.Response{}) // miss 1 again, not miss 2
	assert.Len(t, c.Brokers(), 1)
}

// TestLeaderResolvesBrokerAddressFromNodeId pins the broker-for-topic
// lookup scenario: partition bar/0's leader node_id 9092 must resolve
// against the broker list entry for node_id 9092, not its port.
func TestLeaderResolvesBrokerAddressFromNodeId(t *testing.T) {
	c := newTestCache()
	c.apply(&Metadata.Response{
		Brokers: []Metadata.Broker{{NodeId: 9092, Host: "192.168.0.1", Port: 9092}},
		TopicMetadatas: []Metadata.TopicMetadata{{
			Topic:      "bar",
			Partitions: []Metadata.PartitionMetadata{{Id: 0, Leader: 9092}},
		}},
	})
	addr, err := c.Leader("bar", 0)
	require.NoError(t, err)
	assert.Equal(t, "192.168.0.1:9092", addr)
}

func TestLeaderErrorsWhenLeaderNodeIdNotInBrokerList(t *testing.T) {
	c := newTestCache()
	c.apply(&Metadata.Response{
		TopicMetadatas: []Metadata.TopicMetadata{{
			Topic:      "bar",
			Partitions: []Metadata.PartitionMetadata{{Id: 0, Leader: 9092}},
		}},
	})
	_, err := c.Leader("bar", 0)
	assert.Error(t, err)
}

func TestLeaderErrorsForUnknownTopicOrPartition(t *testing.T) {
	c := newTestCache()
	_, err := c.Leader("missing", 0)
	assert.Error(t, err)
}
