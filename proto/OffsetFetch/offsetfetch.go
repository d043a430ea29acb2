// Package OffsetFetch implements the OffsetFetch API (key 9) in its v0
// form: fetches previously committed offsets for a group's partitions
// from the broker-hosted offsets topic.
package OffsetFetch

import (
	"github.com/cafegrp/cafegrp/proto"
)

func NewRequest(clientId string, group, topic string, partitions []int32) *proto.Request {
	rps := make([]RequestPartition, len(partitions))
	for i, p := range partitions {
		rps[i] = RequestPartition{Partition: p}
	}
	return &proto.Request{
		Header: proto.Header{
			ApiKey:        proto.OffsetFetch,
			ApiVersion:    0,
			ClientId:      clientId,
		},
		Body: Request{
			Group: group,
			Topics: []RequestTopic{{
				Topic:      topic,
				Partitions: rps,
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
}

type Response struct {
	Topics []ResponseTopic
}

type ResponseTopic struct {
	Topic      string
	Partitions []ResponsePartition
}

// ResponsePartition.Offset is -1 when no offset has ever been committed
// for this partition under this group.
type ResponsePartition struct {
	Partition int32
	Offset    int64
	Metadata  string
	Error     int16
}
