package proto

import (
	"bytes"
	"reflect"

	"github.com/cafegrp/cafegrp/wire"
)

// Request is a tagged union over every protocol message this module sends.
// Body is one of the per-API Request structs in the proto/<API> packages.
// HasResponse is false only for a Produce request with RequiredAcks==0: see
// package Produce's doc comment.
type Request struct {
	Header
	Body        interface{}
	HasResponse bool
}

// Bytes marshals the header and body and prepends the 4-byte frame length.
// The header and the body are written by separate wire.Write calls, header
// first; HasResponse is not part of the encoding.
func (r *Request) Bytes() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := wire.Write(buf, reflect.ValueOf(r.Header)); err != nil {
		return nil, err
	}
	if err := wire.Write(buf, reflect.ValueOf(r.Body)); err != nil {
		return nil, err
	}
	return wire.FrameBytes(buf.Bytes())
}
