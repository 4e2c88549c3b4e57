package queue

import (
	"net"
	"testing"
	"time"
)

type fakeConn struct {
	net.Conn
	id int
}

func TestEnqueueDequeueFIFO(t *testing.T) {
	q := New(4)
	c1, c2 := &fakeConn{id: 1}, &fakeConn{id: 2}

	q.Enqueue(c1)
	q.Enqueue(c2)

	got1, ok := q.Dequeue()
	if !ok || got1.(*fakeConn).id != 1 {
		t.Fatalf("first Dequeue = %v, ok=%v, want id=1", got1, ok)
	}
	got2, ok := q.Dequeue()
	if !ok || got2.(*fakeConn).id != 2 {
		t.Fatalf("second Dequeue = %v, ok=%v, want id=2", got2, ok)
	}
}

func TestEnqueueBlocksWhenFull(t *testing.T) {
	q := New(1)
	q.Enqueue(&fakeConn{id: 1})

	done := make(chan struct{})
	go func() {
		q.Enqueue(&fakeConn{id: 2})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Enqueue returned before the queue had room")
	case <-time.After(50 * time.Millisecond):
	}

	q.Dequeue()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue did not unblock after Dequeue freed a slot")
	}
}

func TestDequeueBlocksWhenEmpty(t *testing.T) {
	q := New(1)
	done := make(chan struct{})

	go func() {
		q.Dequeue()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Dequeue returned before any item was enqueued")
	case <-time.After(50 * time.Millisecond):
	}

	q.Enqueue(&fakeConn{id: 1})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not unblock after Enqueue")
	}
}

func TestShutdownDrainsThenReturnsFalse(t *testing.T) {
	q := New(4)
	q.Enqueue(&fakeConn{id: 1})
	q.Shutdown()

	if _, ok := q.Dequeue(); !ok {
		t.Fatal("expected the queued item to still be dequeued after Shutdown")
	}
	if _, ok := q.Dequeue(); ok {
		t.Fatal("expected Dequeue to return ok=false once drained after Shutdown")
	}
}

func TestShutdownWakesBlockedDequeue(t *testing.T) {
	q := New(1)
	done := make(chan bool)

	go func() {
		_, ok := q.Dequeue()
		done <- ok
	}()

	select {
	case <-done:
		t.Fatal("Dequeue returned before Shutdown on an empty, running queue")
	case <-time.After(50 * time.Millisecond):
	}

	q.Shutdown()

	select {
	case ok := <-done:
		if ok {
			t.Error("Dequeue returned ok=true on an empty, shut-down queue")
		}
	case <-time.After(time.Second):
		t.Fatal("Shutdown did not wake the blocked Dequeue")
	}
}
