// Package workerpool runs a fixed set of goroutines dequeueing connections
// from an internal/queue.Queue and handing each to a Handler. Grounded on
// original_source/proxy_server.c's worker_thread loop; start/drain
// coordination uses golang.org/x/sync/errgroup (declared but unused at
// runtime in capacitor/go.mod — wired here for real) instead of a bare
// sync.WaitGroup, so a worker panic-recovery failure surfaces as a single
// reportable error instead of being silently swallowed.
package workerpool

import (
	"fmt"
	"net"

	"golang.org/x/sync/errgroup"

	"github.com/watt-toolkit/proxycache/internal/logger"
	"github.com/watt-toolkit/proxycache/internal/queue"
)

// Handler services one accepted connection. The worker pool closes the
// connection after Handler returns; Handler should not close it itself.
type Handler func(conn net.Conn)

// Pool runs N workers pulling from q and dispatching to handle.
type Pool struct {
	n      int
	q      *queue.Queue
	handle Handler
	log    *logger.Logger
	g      *errgroup.Group
}

// New creates a pool of n workers. Call Start to launch them.
func New(n int, q *queue.Queue, handle Handler, log *logger.Logger) *Pool {
	return &Pool{n: n, q: q, handle: handle, log: log}
}

// Start launches the n worker goroutines. It returns immediately; call
// Wait to block until all workers have exited (after the queue shuts
// down and drains).
func (p *Pool) Start() {
	p.g = &errgroup.Group{}
	for i := 0; i < p.n; i++ {
		id := i
		p.g.Go(func() error {
			return p.run(id)
		})
	}
}

// Wait blocks until every worker has exited and returns the first
// non-nil error any worker returned, if any.
func (p *Pool) Wait() error {
	if p.g == nil {
		return nil
	}
	return p.g.Wait()
}

func (p *Pool) run(id int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("workerpool: worker %d panicked: %v", id, r)
			if p.log != nil {
				p.log.Error("worker %d recovered from panic: %v", id, r)
			}
		}
	}()

	for {
		conn, ok := p.q.Dequeue()
		if !ok {
			return nil
		}
		p.serviceOne(conn)
	}
}

func (p *Pool) serviceOne(conn net.Conn) {
	defer conn.Close()
	defer func() {
		if r := recover(); r != nil && p.log != nil {
			p.log.Error("recovered from panic servicing connection: %v", r)
		}
	}()
	p.handle(conn)
}
