// Package Produce implements the Produce API (key 0). A request with
// RequiredAcks==0 carries no response: the broker does not even bother
// replying, so callers building such a request must set
// proto.Request.HasResponse to false (NewRequest does this for them).
package Produce

import (
	"github.com/cafegrp/cafegrp/proto"
)

// PartitionBatch is one (partition, already-marshaled MessageSet) pair to
// produce. Building MessageSet bytes is package recordset's job; this
// package only knows how to frame them. The wire's message_set_size field
// is just the generic i32 length prefix the codec already writes for any
// []byte field, so it is not a separate struct field here.
type PartitionBatch struct {
	Partition  int32
	MessageSet []byte
}

func NewRequest(clientId string, requiredAcks int16, timeoutMs int32, topic string, batches []PartitionBatch) *proto.Request {
	partitions := make([]RequestPartition, len(batches))
	for i, b := range batches {
		partitions[i] = RequestPartition{
			Partition:  b.Partition,
			MessageSet: b.MessageSet,
		}
	}
	return &proto.Request{
		Header: proto.Header{
			ApiKey:        proto.Produce,
			ApiVersion:    0,
			ClientId:      clientId,
		},
		Body: Request{
			RequiredAcks: requiredAcks,
			TimeoutMs:    timeoutMs,
			Topics: []RequestTopic{{
				Topic:      topic,
				Partitions: partitions,
			}},
		},
		HasResponse: requiredAcks != 0,
	}
}

type Request struct {
	RequiredAcks int16
	TimeoutMs    int32
	Topics       []RequestTopic
}

type RequestTopic struct {
	Topic      string
	Partitions []RequestPartition
}

type RequestPartition struct {
	Partition  int32
	MessageSet []byte
}

type Response struct {
	Topics []ResponseTopic
}

type ResponseTopic struct {
	Topic      string
	Partitions []ResponsePartition
}

type ResponsePartition struct {
	Partition int32
	Error     int16
	Offset    int64
}
