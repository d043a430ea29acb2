// Package SyncGroup implements the SyncGroup API (key 14): after
// JoinGroup, the elected leader computes every member's assignment and
// publishes it here; every other member's request carries no assignment
// and only collects the leader's answer. Used only by
// group.NativeCoordinator.
package SyncGroup

import (
	"github.com/cafegrp/cafegrp/proto"
)

type Assignment struct {
	MemberId   string
	Assignment []byte
}

func NewRequest(clientId string, group string, generationId int32, memberId string, assignments []Assignment) *proto.Request {
	ras := make([]RequestAssignment, len(assignments))
	for i, a := range assignments {
		ras[i] = RequestAssignment{MemberId: a.MemberId, MemberAssignment: a.Assignment}
	}
	return &proto.Request{
		Header: proto.Header{
			ApiKey:        proto.SyncGroup,
			ApiVersion:    0,
			ClientId:      clientId,
		},
		Body: Request{
			GroupId:            group,
			GenerationId:       generationId,
			MemberId:           memberId,
			GroupAssignments:   ras,
		},
		HasResponse: true,
	}
}

type Request struct {
	GroupId          string
	GenerationId     int32
	MemberId         string
	GroupAssignments []RequestAssignment
}

type RequestAssignment struct {
	MemberId         string
	MemberAssignment []byte
}

type Response struct {
	Error            int16
	MemberAssignment []byte
}
