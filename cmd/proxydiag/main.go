// Command proxydiag is a one-shot diagnostic client: it connects to a
// running proxy, issues a single GET through it, and copies the response
// to stdout. Reimplements original_source/test_client.c's contract.
package main

import (
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"
)

const dialTimeout = 10 * time.Second

func main() {
	if len(os.Args) != 4 {
		fmt.Fprintf(os.Stderr, "usage: %s <proxy_host> <proxy_port> <url_to_fetch>\n", os.Args[0])
		os.Exit(1)
	}

	proxyHost, proxyPort, url := os.Args[1], os.Args[2], os.Args[3]
	if err := fetch(proxyHost, proxyPort, url, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "proxydiag: %v\n", err)
		os.Exit(1)
	}
}

func fetch(proxyHost, proxyPort, url string, out io.Writer) error {
	addr := net.JoinHostPort(proxyHost, proxyPort)
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()
	fmt.Fprintf(out, "--- Connected to proxy at %s ---\n", addr)

	host := hostnameFromURL(url)
	request := "GET " + url + " HTTP/1.0\r\n" +
		"Host: " + host + "\r\n" +
		"Connection: close\r\n\r\n"

	fmt.Fprintf(out, "--- Sending Request ---\n%s", request)
	if _, err := conn.Write([]byte(request)); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	fmt.Fprintln(out, "--- Receiving Response ---")
	if _, err := io.Copy(out, conn); err != nil {
		return fmt.Errorf("recv: %w", err)
	}

	fmt.Fprintln(out, "\n--- Connection closed ---")
	return nil
}

// hostnameFromURL extracts the host from a possibly-schemeless URL,
// matching test_client.c's get_hostname_from_url.
func hostnameFromURL(url string) string {
	rest := url
	if i := strings.Index(url, "://"); i >= 0 {
		rest = url[i+3:]
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}
