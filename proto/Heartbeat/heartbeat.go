// Package Heartbeat implements the Heartbeat API (key 12), the native
// group protocol's session keep-alive; used only by
// group.NativeCoordinator.
package Heartbeat

import (
	"github.com/cafegrp/cafegrp/proto"
)

func NewRequest(clientId string, group string, generationId int32, memberId string) *proto.Request {
	return &proto.Request{
		Header: proto.Header{
			ApiKey:        proto.Heartbeat,
			ApiVersion:    0,
			ClientId:      clientId,
		},
		Body: Request{
			GroupId:      group,
			GenerationId: generationId,
			MemberId:     memberId,
		},
		HasResponse: true,
	}
}

type Request struct {
	GroupId      string
	GenerationId int32
	MemberId     string
}

type Response struct {
	Error int16
}
