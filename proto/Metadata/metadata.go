// Package Metadata implements the Metadata API (key 3): the only call that
// discovers brokers, topics, partitions, and partition leaders.
package Metadata

import (
	"github.com/cafegrp/cafegrp/proto"
)

// NewRequest builds a Metadata request. An empty (non-nil) topics slice
// asks the broker for every topic it knows about.
func NewRequest(clientId string, topics []string) *proto.Request {
	if topics == nil {
		topics = []string{}
	}
	return &proto.Request{
		Header: proto.Header{
			ApiKey:        proto.Metadata,
			ApiVersion:    0,
			ClientId:      clientId,
		},
		Body:        Request{Topics: topics},
		HasResponse: true,
	}
}

type Request struct {
	Topics []string
}

type Response struct {
	Brokers        []Broker
	TopicMetadatas []TopicMetadata
}

type Broker struct {
	NodeId int32
	Host   string
	Port   int32
}

type TopicMetadata struct {
	Error      int16
	Topic      string
	Partitions []PartitionMetadata
}

type PartitionMetadata struct {
	Error    int16
	Id       int32
	Leader   int32
	Replicas []int32
	Isr      []int32
}
