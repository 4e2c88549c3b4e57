// Package proxyserver owns the listening socket and the accept loop,
// wiring accepted connections into an internal/queue.Queue for the
// workerpool to service. Grounded on
// shockwave/pkg/shockwave/server.BaseServer's shutdown/connection-tracking
// shape, narrowed to what spec.md §4.1/§4.7 actually needs: there is no
// per-request HTTP parsing or keep-alive loop at this layer, since that
// lives in internal/proxyhandler.
package proxyserver

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	"github.com/watt-toolkit/proxycache/internal/logger"
	"github.com/watt-toolkit/proxycache/internal/perror"
	"github.com/watt-toolkit/proxycache/internal/queue"
	"github.com/watt-toolkit/proxycache/internal/sockopt"
	"github.com/watt-toolkit/proxycache/internal/workerpool"
)

// Server binds a listening socket, accepts connections, and feeds them
// to a bounded queue serviced by a worker pool.
type Server struct {
	addr string
	log  *logger.Logger
	q    *queue.Queue
	pool *workerpool.Pool
	done chan struct{}

	mu       sync.Mutex
	listener net.Listener
	shutdown atomic.Bool

	conns   map[net.Conn]struct{}
	connsMu sync.Mutex
}

// New builds a Server that will listen on addr and push accepted
// connections onto q. Call SetPool before ListenAndServe; it is separate
// from New because the pool's handler is typically built from Done(),
// which must exist before the pool does.
func New(addr string, q *queue.Queue, log *logger.Logger) *Server {
	return &Server{
		addr:  addr,
		log:   log,
		q:     q,
		conns: make(map[net.Conn]struct{}),
		done:  make(chan struct{}),
	}
}

// Done returns a channel that closes once Shutdown begins. Long-lived
// handlers (the CONNECT tunnel relay) select on it instead of polling.
func (s *Server) Done() <-chan struct{} { return s.done }

// SetPool attaches the worker pool that services accepted connections.
// Must be called before ListenAndServe.
func (s *Server) SetPool(pool *workerpool.Pool) { s.pool = pool }

// ListenAndServe binds the listening socket, applies SO_REUSEADDR,
// starts the worker pool, and accepts connections until Shutdown is
// called. It blocks until the accept loop exits.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp4", s.addr)
	if err != nil {
		return perror.Wrap(perror.IO, "listen", err)
	}
	if err := sockopt.ReuseAddr(ln); err != nil {
		s.log.Warn("failed to set SO_REUSEADDR: %v", err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.pool.Start()
	s.log.Info("proxy listening on %s", s.addr)

	return s.acceptLoop(ln)
}

func (s *Server) acceptLoop(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.shutdown.Load() {
				return nil
			}
			s.log.Error("%s", perror.Wrap(perror.IO, "accept", err))
			continue
		}

		if tc, ok := conn.(*net.TCPConn); ok {
			sockopt.NoDelay(tc)
		}

		s.trackConn(conn)
		s.q.Enqueue(&trackedConn{Conn: conn, s: s})
	}
}

// trackedConn wraps an accepted net.Conn so closing it also untracks it,
// letting Shutdown force-close whatever is still open past its deadline.
type trackedConn struct {
	net.Conn
	s *Server
}

func (c *trackedConn) Close() error {
	c.s.untrackConn(c.Conn)
	return c.Conn.Close()
}

func (s *Server) trackConn(conn net.Conn) {
	s.connsMu.Lock()
	s.conns[conn] = struct{}{}
	s.connsMu.Unlock()
}

func (s *Server) untrackConn(conn net.Conn) {
	s.connsMu.Lock()
	delete(s.conns, conn)
	s.connsMu.Unlock()
}

func (s *Server) closeAllConns() {
	s.connsMu.Lock()
	conns := make([]net.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.connsMu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

// Shutdown stops accepting new connections, drains the queue and worker
// pool, and force-closes any connection still open once ctx expires.
// Matches spec.md §5's graceful-shutdown sequencing: stop listener ->
// drain in-flight work -> hard stop.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.shutdown.CompareAndSwap(false, true) {
		return nil
	}
	close(s.done)

	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln != nil {
		ln.Close()
	}

	s.q.Shutdown()

	drained := make(chan struct{})
	go func() {
		s.pool.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		s.log.Info("proxy shut down cleanly")
		return nil
	case <-ctx.Done():
		s.log.Warn("shutdown deadline exceeded, force-closing connections")
		s.closeAllConns()
		<-drained
		return ctx.Err()
	}
}
