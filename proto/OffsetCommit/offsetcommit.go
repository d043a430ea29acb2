// Package OffsetCommit implements the OffsetCommit API (key 8) in its v0
// form: offsets are committed to the broker-hosted offsets topic, keyed
// only by group/topic/partition (no generation id or member id, since
// this module's group coordination lives outside Kafka's own group
// protocol; see package coordination).
package OffsetCommit

import (
	"github.com/cafegrp/cafegrp/proto"
)

// Offset is one partition's offset to commit, with optional free-form
// metadata (commonly unused, left empty).
type Offset struct {
	Partition int32
	Offset    int64
	Metadata  string
}

func NewRequest(clientId string, group, topic string, offsets []Offset) *proto.Request {
	partitions := make([]RequestPartition, len(offsets))
	for i, o := range offsets {
		partitions[i] = RequestPartition{
			Partition: o.Partition,
			Offset:    o.Offset,
			Metadata:  o.Metadata,
		}
	}
	return &proto.Request{
		Header: proto.Header{
			ApiKey:        proto.OffsetCommit,
			ApiVersion:    0,
			ClientId:      clientId,
		},
		Body: Request{
			Group: group,
			Topics: []RequestTopic{{
				Topic:      topic,
				Partitions: partitions,
			}},
		},
		HasResponse: true,
	}
}

type Request struct {
	Group  string
	Topics []RequestTopic
}

type RequestTopic struct {
	Topic      string
	Partitions []RequestPartition
}

type RequestPartition struct {
	Partition int32
	Offset    int64
	Metadata  string
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
}
