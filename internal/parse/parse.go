// Package parse turns the first line of a client's proxy-form HTTP request
// into a structured Request. Only GET (absolute-URI form) and CONNECT
// (authority form) are recognized; anything else is Unsupported.
package parse

import (
	"strings"

	"github.com/watt-toolkit/proxycache/internal/perror"
)

// Request is the parsed first line of a proxy-form HTTP request.
//
// For GET, Host is non-empty and Path begins with "/".
// For CONNECT, Host is non-empty and Port is non-empty; Path is empty.
type Request struct {
	Method  string
	Host    string
	Port    string // optional for GET; empty means "use the method's default port"
	Path    string // absolute path, "/"-prefixed; empty for CONNECT
	Version string
}

// Parse parses buf, examining only the first CRLF- or LF-terminated
// line. Trailing headers and body, if present, are ignored.
func Parse(buf []byte) (Request, error) {
	line := firstLine(buf)
	if line == "" {
		return Request{}, perror.New(perror.Malformed, "parse", "empty request")
	}

	fields := strings.Fields(line)
	if len(fields) < 3 {
		return Request{}, perror.New(perror.Malformed, "parse", "request line has fewer than 3 tokens")
	}
	method, uri, version := fields[0], fields[1], fields[2]

	switch method {
	case "CONNECT":
		return parseConnect(uri, version)
	case "GET":
		return parseGet(uri, version)
	default:
		return Request{}, perror.New(perror.Unsupported, "parse", "unsupported method "+method)
	}
}

// firstLine returns the text of buf up to (not including) the first CRLF
// or bare LF, trimming nothing else.
func firstLine(buf []byte) string {
	s := string(buf)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimRight(s, "\r")
}

// parseConnect splits an authority-form URI ("host:port") on the last
// colon, per spec: both halves must be non-empty.
func parseConnect(uri, version string) (Request, error) {
	i := strings.LastIndexByte(uri, ':')
	if i < 0 {
		return Request{}, perror.New(perror.Malformed, "parse", "CONNECT target missing port")
	}
	host, port := uri[:i], uri[i+1:]
	if host == "" || port == "" {
		return Request{}, perror.New(perror.Malformed, "parse", "CONNECT target has empty host or port")
	}
	return Request{Method: "CONNECT", Host: host, Port: port, Version: version}, nil
}

// parseGet splits a proxy-form absolute URI into host, optional port and
// path, per spec.md §4.1 step 3.
func parseGet(uri, version string) (Request, error) {
	rest := uri
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}

	authority := rest
	path := "/"
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		authority = rest[:i]
		path = rest[i:]
	}

	host := authority
	port := ""
	if i := strings.IndexByte(authority, ':'); i >= 0 {
		host = authority[:i]
		port = authority[i+1:]
	}

	if host == "" {
		return Request{}, perror.New(perror.Malformed, "parse", "GET target missing host")
	}

	return Request{Method: "GET", Host: host, Port: port, Path: path, Version: version}, nil
}

// CacheKey returns the absolute string key used to address the response
// cache: host concatenated with path.
func (r Request) CacheKey() string {
	return r.Host + r.Path
}
