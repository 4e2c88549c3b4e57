// Package tunnel implements the proxy's opaque CONNECT relay: resolve and
// dial the origin, reply 200, then splice bytes in both directions until
// either side closes. Grounded on original_source/proxy_server.c's
// handle_connect_request, translated from its single-goroutine
// select()-based multiplexer into the two-goroutine variant spec.md §9
// calls out as an acceptable, simpler equivalent in Go: one goroutine per
// direction, each blocking on read-then-write, with a read deadline
// supplying the 60-second liveness probe instead of a select() timeout.
package tunnel

import (
	"net"
	"time"

	"github.com/valyala/bytebufferpool"

	"github.com/watt-toolkit/proxycache/internal/logger"
	"github.com/watt-toolkit/proxycache/internal/perror"
)

// ReadinessTimeout is the liveness-probe interval from spec.md §4.6 step
// 3: not a hard idle cap. Each direction wakes from its read deadline at
// this interval and simply reads again; shutdown is observed by relay,
// which closes both connections.
const ReadinessTimeout = 60 * time.Second

const relayBufSize = 32 * 1024

// Established is the success response the proxy sends once the origin
// connection is open, per spec.md §6.
const Established = "HTTP/1.1 200 Connection established\r\n\r\n"

// Dialer opens a TCP connection to addr. Exists so tests can substitute a
// fake dialer.
type Dialer func(network, addr string) (net.Conn, error)

// Handle services a CONNECT request: dial host:port (default 443),
// reply 200 to client, then relay until either side closes or the
// shutdown signal fires.
func Handle(client net.Conn, host, port string, dial Dialer, log *logger.Logger, shutdown <-chan struct{}) {
	if port == "" {
		port = "443"
	}
	addr := net.JoinHostPort(host, port)

	origin, err := dial("tcp", addr)
	if err != nil {
		log.Error("%s", perror.Wrap(perror.Connect, "tunnel-dial", err).WithHost(host))
		return
	}
	defer origin.Close()

	if _, err := client.Write([]byte(Established)); err != nil {
		log.Error("%s", perror.Wrap(perror.IO, "tunnel-establish", err).WithHost(host))
		return
	}

	log.Info("tunnel established for %s", addr)
	relay(client, origin, shutdown)
	log.Info("tunnel closed for %s", addr)
}

// relay splices client<->origin until either direction hits EOF/error or
// shutdown fires. Each direction runs in its own goroutine; the first to
// finish closes both connections, unblocking the other.
func relay(client, origin net.Conn, shutdown <-chan struct{}) {
	done := make(chan struct{}, 2)

	go copyDirection(origin, client, done)
	go copyDirection(client, origin, done)

	select {
	case <-done:
	case <-shutdown:
	}

	client.Close()
	origin.Close()

	// Drain the second completion so the other goroutine's copyDirection
	// doesn't leak past this call.
	<-done
}

// copyDirection repeatedly reads from src and writes to dst, refreshing
// src's read deadline each iteration. A deadline expiry is not treated as
// an error: the read is retried, so an idle tunnel stays open until either
// side closes or relay closes both connections, matching the
// select()-with-timeout loop of the reference implementation.
func copyDirection(dst, src net.Conn, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if cap(buf.B) < relayBufSize {
		buf.B = make([]byte, relayBufSize)
	}
	b := buf.B[:relayBufSize]

	for {
		src.SetReadDeadline(time.Now().Add(ReadinessTimeout))
		n, err := src.Read(b)
		if n > 0 {
			if _, werr := dst.Write(b[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue // liveness probe only, not a hard idle cap
			}
			return
		}
	}
}
