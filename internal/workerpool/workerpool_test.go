package workerpool

import (
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/watt-toolkit/proxycache/internal/queue"
)

type stubConn struct {
	net.Conn
	id     int
	closed atomic.Bool
}

func (c *stubConn) Close() error {
	c.closed.Store(true)
	return nil
}

func TestPoolServicesEveryQueuedConnection(t *testing.T) {
	q := queue.New(8)
	var mu sync.Mutex
	var seen []int

	handle := func(conn net.Conn) {
		mu.Lock()
		seen = append(seen, conn.(*stubConn).id)
		mu.Unlock()
	}

	p := New(4, q, handle, nil)
	p.Start()

	conns := make([]*stubConn, 10)
	for i := range conns {
		conns[i] = &stubConn{id: i}
		q.Enqueue(conns[i])
	}

	q.Shutdown()
	if err := p.Wait(); err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != len(conns) {
		t.Fatalf("handled %d connections, want %d", len(seen), len(conns))
	}
}

func TestPoolClosesEachConnectionAfterHandling(t *testing.T) {
	q := queue.New(1)
	p := New(1, q, func(net.Conn) {}, nil)
	p.Start()

	c := &stubConn{}
	q.Enqueue(c)
	q.Shutdown()
	p.Wait()

	deadline := time.Now().Add(time.Second)
	for !c.closed.Load() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !c.closed.Load() {
		t.Error("connection was not closed after servicing")
	}
}

func TestPoolRecoversFromHandlerPanic(t *testing.T) {
	q := queue.New(1)
	p := New(1, q, func(net.Conn) { panic("boom") }, nil)
	p.Start()

	q.Enqueue(&stubConn{})
	q.Shutdown()

	if err := p.Wait(); err != nil {
		t.Errorf("Wait returned %v, want nil (panic should be recovered per-connection)", err)
	}
}
