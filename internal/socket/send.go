package socket

import (
	"fmt"
	"sync"

	"github.com/eapache/queue"

	ncerr "nsock/internal/errors"
)

// Send queues a copy of data for writing and returns immediately; the
// caller may reuse data at once.  Each completed write is reported by a
// Sent event carrying exactly the bytes written, in the order Send was
// called.  A failed write disconnects the socket and raises an
// Exception.
func (s *Socket) Send(data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	h := s.h
	queued := h != nil && h.sendq != nil && h.sendq.push(buf)
	s.mu.Unlock()

	if !queued {
		return s.raise(fmt.Errorf("send: %w", ncerr.ErrNotConnected))
	}
	return nil
}

// writeLoop drains h's send queue until h is released.
func (s *Socket) writeLoop(h *handle) {
	addr := h.conn.RemoteAddr().String()
	for {
		buf, ok := h.sendq.pop()
		if !ok {
			return
		}
		_, err := h.conn.Write(buf)
		if !s.current(h) {
			return
		}
		if err != nil {
			s.disconnect(h)
			s.raiseAsync(ncerr.Wrap(ncerr.OpSend, addr, err))
			return
		}
		s.logger.Debug("sent %d bytes", len(buf))
		s.emit(Event{Kind: Sent, Source: s, Socket: s, Data: buf})
	}
}

// sendQueue is an unbounded FIFO of pending writes with a single
// consumer.  Producers never block.
type sendQueue struct {
	mu     sync.Mutex
	items  *queue.Queue
	wake   chan struct{}
	closed bool
}

func newSendQueue() *sendQueue {
	return &sendQueue{
		items: queue.New(),
		wake:  make(chan struct{}, 1),
	}
}

// push appends buf; it reports false once the queue is closed.
func (q *sendQueue) push(buf []byte) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items.Add(buf)
	q.mu.Unlock()
	q.signal()
	return true
}

// pop blocks until an item is available or the queue is closed.
func (q *sendQueue) pop() ([]byte, bool) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, false
		}
		if q.items.Length() > 0 {
			buf := q.items.Remove().([]byte)
			q.mu.Unlock()
			return buf, true
		}
		q.mu.Unlock()
		<-q.wake
	}
}

// close drops pending items and wakes the consumer.
func (q *sendQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.items = queue.New()
	q.mu.Unlock()
	q.signal()
}

func (q *sendQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
