// Package ConsumerMetadata implements the Kafka 0.8.x ConsumerMetadata API
// (key 10, called FindCoordinator in later protocol versions): given a
// group name, returns the broker hosting that group's offsets and
// membership state.
package ConsumerMetadata

import (
	"github.com/cafegrp/cafegrp/proto"
)

func NewRequest(clientId string, group string) *proto.Request {
	return &proto.Request{
		Header: proto.Header{
			ApiKey:        proto.FindCoordinator,
			ApiVersion:    0,
			ClientId:      clientId,
		},
		Body:        Request{Group: group},
		HasResponse: true,
	}
}

type Request struct {
	Group string
}

type Response struct {
	Error         int16
	CoordinatorId int32
	Host          string
	Port          int32
}
