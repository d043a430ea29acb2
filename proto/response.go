package proto

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"reflect"

	"github.com/cafegrp/cafegrp/wire"
)

// Response is a raw, not-yet-decoded response frame: the correlation id
// plus whatever bytes followed it. The caller that owns the correlation id
// knows the concrete response type to Unmarshal into.
type Response struct {
	body []byte
}

// ReadResponse reads one already-length-prefix-stripped frame (see
// wire.ReadFrame) and splits off the correlation id.
func ReadResponse(frame []byte) (*Response, error) {
	if len(frame) < 4 {
		return nil, fmt.Errorf("response frame too short: %d bytes", len(frame))
	}
	return &Response{body: frame}, nil
}

// CorrelationId is the first 4 bytes of every response body.
func (r *Response) CorrelationId() int32 {
	return int32(binary.BigEndian.Uint32(r.body[:4]))
}

// Unmarshal decodes the bytes following the correlation id into v, which
// must be a pointer to one of the per-API Response structs.
func (r *Response) Unmarshal(v interface{}) error {
	return wire.Read(bytes.NewReader(r.body[4:]), reflect.ValueOf(v))
}
