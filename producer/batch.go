package producer

import (
	"time"

	"github.com/cafegrp/cafegrp/recordset"
)

// partitionBatch accumulates messages destined for one partition within
// a leaderBatch, along with the channel each waiting caller reads its
// Result from, in the order the messages were added (so a successful
// response's base offset can be handed out as base+i).
type partitionBatch struct {
	partition int32
	builder   *recordset.Builder
	waiters   []chan Result
}

// leaderBatch accumulates partitionBatches for every partition whose
// current leader is addr, until a linger threshold triggers a flush.
type leaderBatch struct {
	addr        string
	partitions  map[int32]*partitionBatch
	firstQueued time.Time
	numMessages int
	sizeBytes   int
}

func newLeaderBatch(addr string) *leaderBatch {
	return &leaderBatch{
		addr:       addr,
		partitions: make(map[int32]*partitionBatch),
	}
}

func (b *leaderBatch) add(partition int32, key, value []byte, resultCh chan Result) {
	if b.numMessages == 0 {
		b.firstQueued = time.Now()
	}
	pb, ok := b.partitions[partition]
	if !ok {
		pb = &partitionBatch{partition: partition, builder: recordset.NewBuilder()}
		b.partitions[partition] = pb
	}
	pb.builder.Add(key, value)
	pb.waiters = append(pb.waiters, resultCh)
	b.numMessages++
	b.sizeBytes += len(key) + len(value)
}
