// Package DeleteTopics implements the DeleteTopics API (key 20), used
// by package admin.
package DeleteTopics

import (
	"github.com/cafegrp/cafegrp/proto"
)

func NewRequest(clientId string, topics []string, timeoutMs int32) *proto.Request {
	return &proto.Request{
		Header: proto.Header{
			ApiKey:        proto.DeleteTopics,
			ApiVersion:    0,
			ClientId:      clientId,
		},
		Body: Request{
			Topics:    topics,
			TimeoutMs: timeoutMs,
		},
		HasResponse: true,
	}
}

type Request struct {
	Topics    []string
	TimeoutMs int32
}

type Response struct {
	TopicErrors []TopicError
}

type TopicError struct {
	Topic string
	Error int16
}
