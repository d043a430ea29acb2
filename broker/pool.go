package broker

import (
	"sync"

	"github.com/rcrowley/go-metrics"
	"go.uber.org/zap"
)

// Pool is a process-wide single-flight registry of Conns, one per
// broker address. Every Producer, Coordinator, and fetchworker in a
// process that talk to the same cluster share the same Conns through a
// Pool rather than each opening their own socket to the same broker.
type Pool struct {
	clientId string
	logger   *zap.Logger
	metrics  metrics.Registry

	mu    sync.Mutex
	conns map[string]*Conn
}

func NewPool(clientId string, logger *zap.Logger, reg metrics.Registry) *Pool {
	return &Pool{
		clientId: clientId,
		logger:   logger,
		metrics:  reg,
		conns:    make(map[string]*Conn),
	}
}

// Get returns the Conn for addr, creating it on first use.
func (p *Pool) Get(addr string) *Conn {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.conns[addr]; ok {
		return c
	}
	c := New(addr, p.clientId, p.logger, p.metrics)
	p.conns[addr] = c
	return c
}

// Close closes every Conn in the pool.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for addr, c := range p.conns {
		c.Close()
		delete(p.conns, addr)
	}
}
