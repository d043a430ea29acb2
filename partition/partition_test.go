package partition

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMurmur2IsDeterministic(t *testing.T) {
	a := murmur2([]byte("partition-key"))
	b := murmur2([]byte("partition-key"))
	assert.Equal(t, a, b)
}

func TestMurmur2PartitionWithinRange(t *testing.T) {
	m := Murmur2{}
	for _, key := range [][]byte{[]byte("a"), []byte("b"), []byte("long-key-value"), {}} {
		p := m.Partition(key, 8)
		if p < 0 || p >= 8 {
			t.Fatalf("partition %d out of range for key %q", p, key)
		}
	}
}

func TestMurmur2SameKeyAlwaysSamePartition(t *testing.T) {
	m := Murmur2{}
	key := []byte("order-42")
	first := m.Partition(key, 12)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, m.Partition(key, 12))
	}
}

func TestRoundRobinCyclesThroughPartitions(t *testing.T) {
	rr := &RoundRobin{}
	seen := map[int32]bool{}
	for i := 0; i < 4; i++ {
		seen[rr.Partition(nil, 4)] = true
	}
	assert.Len(t, seen, 4)
}

func TestManualAlwaysReturnsConfiguredPartition(t *testing.T) {
	m := Manual{Partition_: 3}
	assert.Equal(t, int32(3), m.Partition([]byte("anything"), 10))
}
