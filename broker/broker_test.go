package broker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cafegrp/cafegrp/proto"
)

func TestRequestBadAddrReturnsError(t *testing.T) {
	c := New("127.0.0.1:1", "test", nil, nil)
	defer c.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req := &proto.Request{
		Header:      proto.Header{ApiKey: proto.Metadata, ClientId: "test"},
		Body:        struct{ Topics []string }{Topics: []string{}},
		HasResponse: true,
	}
	_, err := c.Request(ctx, req)
	assert.Error(t, err)
}

func TestCloseFailsInFlightRequests(t *testing.T) {
	c := New("127.0.0.1:1", "test", nil, nil)
	ctx := context.Background()
	req := &proto.Request{
		Header:      proto.Header{ApiKey: proto.Metadata, ClientId: "test"},
		Body:        struct{ Topics []string }{Topics: []string{}},
		HasResponse: true,
	}
	replyCh, err := c.AsyncRequest(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error queuing request: %v", err)
	}
	c.Close()
	select {
	case r := <-replyCh:
		if r.Err == nil {
			t.Fatal("expected error after close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reply after close")
	}
}

func TestNewConnFirstCorrelationIdIsZero(t *testing.T) {
	c := New("127.0.0.1:1", "test", nil, nil)
	defer c.Close()
	assert.Equal(t, int32(0), atomic.AddInt32(&c.nextCorrelationId, 1))
	assert.Equal(t, int32(1), atomic.AddInt32(&c.nextCorrelationId, 1))
}

func TestPoolReusesConnPerAddr(t *testing.T) {
	p := NewPool("test", nil, nil)
	defer p.Close()
	a := p.Get("127.0.0.1:1")
	b := p.Get("127.0.0.1:1")
	assert.Same(t, a, b)
}
