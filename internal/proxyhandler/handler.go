// Package proxyhandler implements the per-connection control flow: parse
// the request line, reject blacklisted hosts, and dispatch to the CONNECT
// tunnel or the cached GET fetch path. Grounded on
// original_source/proxy_server.c's handle_request/handle_http_request.
package proxyhandler

import (
	"bufio"
	"net"
	"time"

	"github.com/valyala/bytebufferpool"

	"github.com/watt-toolkit/proxycache/internal/blacklist"
	"github.com/watt-toolkit/proxycache/internal/cache"
	"github.com/watt-toolkit/proxycache/internal/logger"
	"github.com/watt-toolkit/proxycache/internal/parse"
	"github.com/watt-toolkit/proxycache/internal/perror"
	"github.com/watt-toolkit/proxycache/internal/tunnel"
)

// Forbidden is the response sent for a blacklisted host, per spec.md §6.
const Forbidden = "HTTP/1.1 403 Forbidden\r\nContent-Length: 0\r\n\r\n"

const maxRequestLineBytes = 8192

// Handler dispatches accepted connections.
type Handler struct {
	Cache     *cache.Cache
	Blacklist *blacklist.List
	Log       *logger.Logger
	Dial      tunnel.Dialer
	Shutdown  <-chan struct{}

	// ElementSizeMax bounds how many origin response bytes are accumulated
	// for caching per GET request; the whole response is still forwarded
	// to the client.
	ElementSizeMax int64
}

// Handle services one accepted client connection end to end. The caller
// owns closing conn.
func (h *Handler) Handle(conn net.Conn) {
	line, err := readRequestLine(conn)
	if err != nil {
		h.Log.Error("%s", perror.Wrap(perror.IO, "read-request", err))
		return
	}
	if len(line) == 0 {
		return
	}

	req, err := parse.Parse(line)
	if err != nil {
		h.Log.Error("%s", err)
		return
	}

	if h.Blacklist.IsBlacklisted(req.Host) {
		h.Log.Warn("blocked blacklisted host: %s", req.Host)
		conn.Write([]byte(Forbidden))
		return
	}

	if req.Method == "CONNECT" {
		tunnel.Handle(conn, req.Host, req.Port, h.Dial, h.Log, h.Shutdown)
		return
	}

	h.handleGet(conn, req)
}

// handleGet implements spec.md §4.5: cache lookup, then on miss resolve,
// connect, synthesize the origin request, stream the response to the
// client while accumulating it, and cache on EOF if anything was read.
func (h *Handler) handleGet(conn net.Conn, req parse.Request) {
	if req.Host == "" || req.Path == "" {
		h.Log.Error("%s", perror.New(perror.Malformed, "fetch", "missing host or path for cache key"))
		return
	}
	key := req.CacheKey()

	if data, ok := h.Cache.Get(key); ok {
		conn.Write(data)
		return
	}

	port := req.Port
	if port == "" {
		port = "80"
	}
	addr := net.JoinHostPort(req.Host, port)

	origin, err := h.Dial("tcp", addr)
	if err != nil {
		h.Log.Error("%s", perror.Wrap(perror.Connect, "fetch-dial", err).WithHost(req.Host))
		return
	}
	defer origin.Close()

	outbound := "GET " + req.Path + " " + req.Version + "\r\nHost: " + req.Host + "\r\nConnection: close\r\n\r\n"
	if _, err := origin.Write([]byte(outbound)); err != nil {
		h.Log.Error("%s", perror.Wrap(perror.IO, "fetch-write-origin", err).WithHost(req.Host))
		return
	}
	h.Log.Info("forwarding GET %s to %s", req.Path, req.Host)

	h.streamAndCache(conn, origin, key)
}

// streamAndCache reads the origin response, forwarding each chunk to the
// client as it arrives while accumulating up to ElementSizeMax bytes.
// Per spec.md §9, once the cap is hit the response keeps streaming to the
// client (never truncated for the caller) but stops accumulating, so an
// oversize response is never inserted into the cache.
func (h *Handler) streamAndCache(client, origin net.Conn, key string) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if cap(buf.B) < 32*1024 {
		buf.B = make([]byte, 32*1024)
	}
	chunk := buf.B[:32*1024]

	accum := make([]byte, 0, min64(h.ElementSizeMax, 64*1024))
	truncated := false

	for {
		n, err := origin.Read(chunk)
		if n > 0 {
			if _, werr := client.Write(chunk[:n]); werr != nil {
				return
			}
			if !truncated {
				if int64(len(accum)+n) > h.ElementSizeMax {
					truncated = true
				} else {
					accum = append(accum, chunk[:n]...)
				}
			}
		}
		if err != nil {
			break
		}
	}

	if len(accum) > 0 && !truncated {
		h.Cache.Put(key, accum)
	}
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// readRequestLine reads up to the first CRLF (or maxRequestLineBytes,
// whichever comes first) from conn.
func readRequestLine(conn net.Conn) ([]byte, error) {
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	defer conn.SetReadDeadline(time.Time{})

	r := bufio.NewReaderSize(conn, maxRequestLineBytes)
	line, err := r.ReadSlice('\n')
	if err != nil && len(line) == 0 {
		return nil, err
	}
	return line, nil
}
