// Package Fetch implements the Fetch API (key 1): a long-poll read of one
// or more partitions' logs starting at a given offset.
package Fetch

import (
	"github.com/cafegrp/cafegrp/proto"
)

type PartitionRequest struct {
	Partition   int32
	FetchOffset int64
	MaxBytes    int32
}

func NewRequest(clientId string, maxWaitMs, minBytes int32, topic string, partitions []PartitionRequest) *proto.Request {
	rps := make([]RequestPartition, len(partitions))
	for i, p := range partitions {
		rps[i] = RequestPartition{
			Partition:   p.Partition,
			FetchOffset: p.FetchOffset,
			MaxBytes:    p.MaxBytes,
		}
	}
	return &proto.Request{
		Header: proto.Header{
			ApiKey:        proto.Fetch,
			ApiVersion:    0,
			ClientId:      clientId,
		},
		Body: Request{
			ReplicaId: -1,
			MaxWaitMs: maxWaitMs,
			MinBytes:  minBytes,
			Topics: []RequestTopic{{
				Topic:      topic,
				Partitions: rps,
			}},
		},
		HasResponse: true,
	}
}

type Request struct {
	ReplicaId int32
	MaxWaitMs int32
	MinBytes  int32
	Topics    []RequestTopic
}

type RequestTopic struct {
	Topic      string
	Partitions []RequestPartition
}

type RequestPartition struct {
	Partition   int32
	FetchOffset int64
	MaxBytes    int32
}

type Response struct {
	Topics []ResponseTopic
}

type ResponseTopic struct {
	Topic      string
	Partitions []ResponsePartition
}

type ResponsePartition struct {
	Partition     int32
	Error         int16
	HighWaterMark int64
	// MessageSet is truncated by the broker when the last message in the
	// set would not fit in MaxBytes; a partial trailing message is
	// recordset.Unmarshal's job to discard, not this package's.
	MessageSet []byte
}
