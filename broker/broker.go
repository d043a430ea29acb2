// Package broker implements the per-broker connection actor: one
// goroutine owns a single net.Conn, accepts requests through a mailbox
// channel, and dispatches responses back to callers keyed by
// correlation id. Request pipelines multiple in-flight calls over the
// same socket; AsyncRequest lets a caller fire a request without
// blocking for the reply.
package broker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rcrowley/go-metrics"
	"go.uber.org/zap"

	"github.com/cafegrp/cafegrp/proto"
	"github.com/cafegrp/cafegrp/wire"
)

// ErrDead is returned for any request made against (or in flight on) a
// Conn that has been closed, either by the caller or by a failed
// socket operation.
var ErrDead = errors.New("broker: connection is dead")

// DialTimeout bounds how long Conn waits to establish the underlying
// TCP connection.
var DialTimeout = 10 * time.Second

type pendingRequest struct {
	ctx     context.Context
	req     *proto.Request
	replyCh chan Result
}

// Result is what a caller receives for one request: either a decoded
// response, or the error that kept one from arriving.
type Result struct {
	Response *proto.Response
	Err      error
}

// Conn is one actor managing one TCP connection to one broker. The zero
// value is not usable; construct with New. Conn reconnects lazily: a
// failed socket operation kills the current connection and every
// in-flight call on it, but the next Request call dials again.
type Conn struct {
	Addr     string
	ClientId string
	Logger   *zap.Logger
	Metrics  metrics.Registry

	requests          chan *pendingRequest
	pending           map[int32]chan Result
	pendingMu         sync.Mutex
	nextCorrelationId int32
	closeOnce         sync.Once
	closed            chan struct{}
}

// New starts the actor goroutine for addr and returns immediately; the
// TCP dial happens lazily on the first request, mirroring the teacher's
// PartitionClient.connect.
func New(addr, clientId string, logger *zap.Logger, reg metrics.Registry) *Conn {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = metrics.NewRegistry()
	}
	c := &Conn{
		Addr:     addr,
		ClientId: clientId,
		Logger:   logger,
		Metrics:  reg,
		requests: make(chan *pendingRequest, 64),
		pending:  make(map[int32]chan Result),
		closed:   make(chan struct{}),
		// AddInt32 returns the post-increment value, so starting at -1
		// makes the first issued correlation id 0.
		nextCorrelationId: -1,
	}
	go c.run()
	return c
}

// Request sends req and blocks for its response. If req.HasResponse is
// false (an unacked produce, for example) Request returns as soon as
// req is queued on the mailbox, with a nil response.
func (c *Conn) Request(ctx context.Context, req *proto.Request) (*proto.Response, error) {
	replyCh, err := c.AsyncRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	if replyCh == nil {
		return nil, nil
	}
	select {
	case r := <-replyCh:
		return r.Response, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AsyncRequest queues req on the mailbox and returns a channel that
// receives exactly one Result, or nil if req carries no response.
func (c *Conn) AsyncRequest(ctx context.Context, req *proto.Request) (<-chan Result, error) {
	pr := &pendingRequest{ctx: ctx, req: req}
	if req.HasResponse {
		pr.replyCh = make(chan Result, 1)
	}
	select {
	case c.requests <- pr:
	case <-c.closed:
		return nil, ErrDead
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return pr.replyCh, nil
}

// Close tears down the actor and its socket. In-flight calls receive
// ErrDead.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
	return nil
}

func (c *Conn) run() {
	var (
		sock net.Conn
		w    *bufio.Writer
		dead = make(chan net.Conn, 1)
	)
	closeSock := func() {
		if sock != nil {
			sock.Close()
			sock = nil
			w = nil
		}
		c.failAllPending(ErrDead)
	}
	defer closeSock()
	for {
		select {
		case <-c.closed:
			return
		case s := <-dead:
			// A readLoop for sock died on its own (peer closed the
			// socket, reset, etc). Only act if s is still the current
			// sock: a write-error path may have already redialed.
			if s == sock {
				closeSock()
			}
		case pr := <-c.requests:
			if sock == nil {
				var err error
				sock, err = net.DialTimeout("tcp", c.Addr, DialTimeout)
				if err != nil {
					c.Logger.Warn("broker: dial failed", zap.String("addr", c.Addr), zap.Error(err))
					if pr.replyCh != nil {
						pr.replyCh <- Result{Err: fmt.Errorf("broker: error dialing %s: %w", c.Addr, err)}
					}
					continue
				}
				w = bufio.NewWriter(sock)
				go c.readLoop(sock, dead)
				metrics.GetOrRegisterCounter("connections-opened", c.Metrics).Inc(1)
			}
			correlationId := atomic.AddInt32(&c.nextCorrelationId, 1)
			pr.req.CorrelationId = correlationId
			if pr.replyCh != nil {
				c.pendingMu.Lock()
				c.pending[correlationId] = pr.replyCh
				c.pendingMu.Unlock()
			}
			b, err := pr.req.Bytes()
			if err != nil {
				c.removePending(correlationId)
				if pr.replyCh != nil {
					pr.replyCh <- Result{Err: fmt.Errorf("broker: error marshaling request: %w", err)}
				}
				continue
			}
			if _, err := w.Write(b); err != nil || w.Flush() != nil {
				c.removePending(correlationId)
				if pr.replyCh != nil {
					pr.replyCh <- Result{Err: fmt.Errorf("broker: error writing request: %w", err)}
				}
				closeSock()
				continue
			}
			metrics.GetOrRegisterMeter("requests-sent", c.Metrics).Mark(1)
		}
	}
}

// readLoop owns reading frames off sock until it errors or the Conn is
// closed; each frame is dispatched to its correlation id's waiting
// reply channel. A ReadFrame error means the peer closed the
// connection or it reset, so readLoop reports sock as dead: run()
// fails every pending request on it and redials on the next request,
// the same as the write-error path already does.
func (c *Conn) readLoop(sock net.Conn, dead chan<- net.Conn) {
	r := bufio.NewReader(sock)
	for {
		frame, err := wire.ReadFrame(r)
		if err != nil {
			select {
			case dead <- sock:
			case <-c.closed:
			}
			return
		}
		resp, err := proto.ReadResponse(frame)
		if err != nil {
			continue
		}
		ch := c.removePending(resp.CorrelationId())
		if ch != nil {
			ch <- Result{Response: resp}
		}
	}
}

func (c *Conn) removePending(correlationId int32) chan Result {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	ch := c.pending[correlationId]
	delete(c.pending, correlationId)
	return ch
}

func (c *Conn) failAllPending(err error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, ch := range c.pending {
		ch <- Result{Err: err}
		delete(c.pending, id)
	}
}
