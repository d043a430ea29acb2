// Package ApiVersions implements the ApiVersions API (key 18): used by
// package admin to probe which protocol versions a broker supports
// before issuing version-sensitive calls like CreateTopics.
package ApiVersions

import (
	"github.com/cafegrp/cafegrp/proto"
)

func NewRequest(clientId string) *proto.Request {
	return &proto.Request{
		Header: proto.Header{
			ApiKey:        proto.ApiVersions,
			ApiVersion:    0,
			ClientId:      clientId,
		},
		Body:        Request{},
		HasResponse: true,
	}
}

type Request struct{}

type Response struct {
	Error      int16
	ApiVersions []ApiVersion
}

type ApiVersion struct {
	ApiKey     int16
	MinVersion int16
	MaxVersion int16
}
