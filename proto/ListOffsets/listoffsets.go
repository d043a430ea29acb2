// Package ListOffsets implements the Offset API (key 2): given a
// (topic, partition) and a timestamp, returns the log offsets available
// at or before that time. Two sentinel timestamps matter in practice:
// -1 returns the latest (next-write) offset, -2 the earliest retained
// offset.
package ListOffsets

import (
	"github.com/cafegrp/cafegrp/proto"
)

const (
	LatestTime   int64 = -1
	EarliestTime int64 = -2
)

func NewRequest(clientId string, topic string, partition int32, timestamp int64, maxNumOffsets int32) *proto.Request {
	return &proto.Request{
		Header: proto.Header{
			ApiKey:        proto.ListOffsets,
			ApiVersion:    0,
			ClientId:      clientId,
		},
		Body: Request{
			ReplicaId: -1,
			Topics: []RequestTopic{{
				Topic: topic,
				Partitions: []RequestPartition{{
					Partition:     partition,
					Time:          timestamp,
					MaxNumOffsets: maxNumOffsets,
				}},
			}},
		},
		HasResponse: true,
	}
}

type Request struct {
	ReplicaId int32
	Topics    []RequestTopic
}

type RequestTopic struct {
	Topic      string
	Partitions []RequestPartition
}

type RequestPartition struct {
	Partition     int32
	Time          int64
	MaxNumOffsets int32
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
	Offsets   []int64
}
