// Package sockopt applies the handful of socket options the proxy's
// acceptor and relay paths care about. Grounded on
// shockwave/pkg/shockwave/socket/tuning.go's Apply/ApplyListener, but
// built on golang.org/x/sys/unix instead of the raw syscall package — the
// ecosystem-portable equivalent used across the corpus (e.g. caddy's
// go.mod pulls golang.org/x/sys directly) for the one option spec.md
// §4.7 actually requires: SO_REUSEADDR on the listening socket.
package sockopt

import (
	"net"

	"golang.org/x/sys/unix"
)

// ReuseAddr sets SO_REUSEADDR on the given TCP listener's underlying
// file descriptor, matching spec.md §4.7's "address reuse enabled".
// Non-TCP listeners are left untouched.
func ReuseAddr(l net.Listener) error {
	tl, ok := l.(*net.TCPListener)
	if !ok {
		return nil
	}

	rc, err := tl.SyscallConn()
	if err != nil {
		return err
	}

	var sockErr error
	err = rc.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// NoDelay disables Nagle's algorithm on conn, reducing latency for the
// small proxy-form request lines and tunnel chunks this server relays.
// Non-TCP connections are left untouched.
func NoDelay(conn net.Conn) error {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	return tc.SetNoDelay(true)
}
