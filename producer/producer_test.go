package producer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaderBatchAddAccumulatesSizeAndCount(t *testing.T) {
	b := newLeaderBatch("broker1:9092")
	b.add(0, []byte("k1"), []byte("v1"), make(chan Result, 1))
	b.add(0, []byte("k2"), []byte("v22"), make(chan Result, 1))
	b.add(1, nil, []byte("v3"), make(chan Result, 1))

	assert.Equal(t, 3, b.numMessages)
	assert.Equal(t, len("k1")+len("v1")+len("k2")+len("v22")+len("v3"), b.sizeBytes)
	require.Len(t, b.partitions, 2)
	assert.Equal(t, 2, b.partitions[0].builder.NumMessages())
	assert.Equal(t, 1, b.partitions[1].builder.NumMessages())
}

func TestLeaderBatchFirstQueuedSetOnlyOnce(t *testing.T) {
	b := newLeaderBatch("broker1:9092")
	b.add(0, nil, []byte("v1"), make(chan Result, 1))
	first := b.firstQueued
	b.add(0, nil, []byte("v2"), make(chan Result, 1))
	assert.Equal(t, first, b.firstQueued)
}

func TestSucceedPartitionAssignsSequentialOffsets(t *testing.T) {
	p := &Producer{}
	pb := &partitionBatch{partition: 3}
	waiters := make([]chan Result, 3)
	for i := range waiters {
		waiters[i] = make(chan Result, 1)
		pb.waiters = append(pb.waiters, waiters[i])
	}
	p.succeedPartition(pb, 100)

	for i, w := range waiters {
		r := <-w
		assert.NoError(t, r.Err)
		assert.Equal(t, int32(3), r.Partition)
		assert.Equal(t, int64(100+i), r.Offset)
	}
}

func TestFailPartitionDeliversErrorToAllWaiters(t *testing.T) {
	p := &Producer{}
	pb := &partitionBatch{partition: 7}
	w1, w2 := make(chan Result, 1), make(chan Result, 1)
	pb.waiters = []chan Result{w1, w2}

	boom := assert.AnError
	p.failPartition(pb, boom)

	r1 := <-w1
	r2 := <-w2
	assert.Equal(t, boom, r1.Err)
	assert.Equal(t, boom, r2.Err)
	assert.Equal(t, int32(7), r1.Partition)
}
