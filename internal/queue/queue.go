// Package queue implements the bounded FIFO of accepted client connections
// that decouples the acceptor from the worker pool. Grounded directly on
// original_source/proxy_server.c's TaskQueue (circular buffer, one mutex,
// two condition variables), restated with sync.Cond the way
// WhileEndless-go-rawhttp/pkg/transport's hostPool wraps a sync.Cond
// around a slice for its own blocking-wait semantics.
package queue

import (
	"net"
	"sync"
)

// Queue is a fixed-capacity circular buffer of client connections.
type Queue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	buf   []net.Conn
	head  int
	tail  int
	size  int

	running bool
}

// New creates a Queue with the given capacity. The queue starts in the
// running state; call Shutdown to transition it.
func New(capacity int) *Queue {
	q := &Queue{
		buf:     make([]net.Conn, capacity),
		running: true,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Enqueue blocks while the queue is full, then appends conn to the tail.
func (q *Queue) Enqueue(conn net.Conn) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.size == len(q.buf) {
		q.notFull.Wait()
	}

	q.buf[q.tail] = conn
	q.tail = (q.tail + 1) % len(q.buf)
	q.size++
	q.notEmpty.Signal()
}

// Dequeue blocks while the queue is empty and the server is running. It
// returns (conn, true) on a normal dequeue, or (nil, false) once the
// queue has drained after Shutdown.
func (q *Queue) Dequeue() (net.Conn, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.size == 0 && q.running {
		q.notEmpty.Wait()
	}

	if q.size == 0 && !q.running {
		return nil, false
	}

	conn := q.buf[q.head]
	q.buf[q.head] = nil
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	q.notFull.Signal()
	return conn, true
}

// Shutdown flips the queue to stopping and broadcasts notEmpty so every
// idle worker observes the transition and can exit.
func (q *Queue) Shutdown() {
	q.mu.Lock()
	q.running = false
	q.mu.Unlock()
	q.notEmpty.Broadcast()
}

// Len returns the current number of queued connections.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}
