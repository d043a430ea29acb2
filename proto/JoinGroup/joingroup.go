// Package JoinGroup implements the JoinGroup API (key 11): used only by
// the optional native-protocol group coordinator
// (group.NativeCoordinator), never by the default coordination-store-based
// coordinator, which rebalances via package coordination instead.
package JoinGroup

import (
	"github.com/cafegrp/cafegrp/proto"
)

const ProtocolType = "consumer"

// Protocol pairs a name with opaque per-protocol metadata, mirroring how
// Kafka lets a group negotiate its assignment strategy; this module only
// ever offers one protocol, "roundrobin".
type Protocol struct {
	Name     string
	Metadata []byte
}

func NewRequest(clientId string, group string, sessionTimeoutMs int32, memberId string, protocols []Protocol) *proto.Request {
	rps := make([]RequestProtocol, len(protocols))
	for i, p := range protocols {
		rps[i] = RequestProtocol{Name: p.Name, Metadata: p.Metadata}
	}
	return &proto.Request{
		Header: proto.Header{
			ApiKey:        proto.JoinGroup,
			ApiVersion:    0,
			ClientId:      clientId,
		},
		Body: Request{
			GroupId:          group,
			SessionTimeoutMs: sessionTimeoutMs,
			MemberId:         memberId,
			ProtocolType:     ProtocolType,
			GroupProtocols:   rps,
		},
		HasResponse: true,
	}
}

type Request struct {
	GroupId          string
	SessionTimeoutMs int32
	MemberId         string
	ProtocolType     string
	GroupProtocols   []RequestProtocol
}

type RequestProtocol struct {
	Name     string
	Metadata []byte
}

type Response struct {
	Error         int16
	GenerationId  int32
	GroupProtocol string
	LeaderId      string
	MemberId      string
	Members       []ResponseMember
}

type ResponseMember struct {
	MemberId string
	Metadata []byte
}
