// Package CreateTopics implements the CreateTopics API (key 19), used by
// package admin. There is no corresponding v0.8.x broker-side
// implementation of this API on the wire this module otherwise speaks;
// admin sends it without first checking the broker's ApiVersions
// response.
package CreateTopics

import (
	"github.com/cafegrp/cafegrp/proto"
)

type TopicConfig struct {
	Topic             string
	NumPartitions     int32
	ReplicationFactor int16
	ReplicaAssignment map[int32][]int32
	Configs           map[string]string
}

func NewRequest(clientId string, topics []TopicConfig, timeoutMs int32) *proto.Request {
	rts := make([]RequestTopic, len(topics))
	for i, t := range topics {
		assignments := make([]ReplicaAssignment, 0, len(t.ReplicaAssignment))
		for pid, replicas := range t.ReplicaAssignment {
			assignments = append(assignments, ReplicaAssignment{Partition: pid, Replicas: replicas})
		}
		configs := make([]ConfigEntry, 0, len(t.Configs))
		for k, v := range t.Configs {
			configs = append(configs, ConfigEntry{ConfigName: k, ConfigValue: v})
		}
		rts[i] = RequestTopic{
			Topic:             t.Topic,
			NumPartitions:     t.NumPartitions,
			ReplicationFactor: t.ReplicationFactor,
			ReplicaAssignment: assignments,
			Configs:           configs,
		}
	}
	return &proto.Request{
		Header: proto.Header{
			ApiKey:        proto.CreateTopics,
			ApiVersion:    0,
			ClientId:      clientId,
		},
		Body: Request{
			Topics:    rts,
			TimeoutMs: timeoutMs,
		},
		HasResponse: true,
	}
}

type Request struct {
	Topics    []RequestTopic
	TimeoutMs int32
}

type RequestTopic struct {
	Topic             string
	NumPartitions     int32
	ReplicationFactor int16
	ReplicaAssignment []ReplicaAssignment
	Configs           []ConfigEntry
}

type ReplicaAssignment struct {
	Partition int32
	Replicas  []int32
}

type ConfigEntry struct {
	ConfigName  string
	ConfigValue string
}

type Response struct {
	TopicErrors []TopicError
}

type TopicError struct {
	Topic string
	Error int16
}
