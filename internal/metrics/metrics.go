// Package metrics provides lightweight, lock-free counters for tracking
// runtime statistics of an nsock session.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"nsock/internal/socket"
)

// Collector tracks runtime metrics for an nsock session.
// A nil Collector is safe to use; all methods become no-ops.
type Collector struct {
	connectionsActive atomic.Int64
	connectionsTotal  atomic.Int64
	accepts           atomic.Int64
	bytesIn           atomic.Int64
	bytesOut          atomic.Int64
	chunksIn          atomic.Int64
	chunksOut         atomic.Int64
	errorsTotal       atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Connection metrics ───────────────────────────────────────────────

// ConnectionOpened increments both the active and total counters.
func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(1)
	c.connectionsTotal.Add(1)
}

// ConnectionClosed decrements the active connection counter.
func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.connectionsActive.Add(-1)
}

// ConnectionAccepted records one inbound connection taken by a listener.
func (c *Collector) ConnectionAccepted() {
	if c == nil {
		return
	}
	c.accepts.Add(1)
}

// ActiveConnections returns the current number of open connections.
func (c *Collector) ActiveConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsActive.Load()
}

// TotalConnections returns the lifetime connection count.
func (c *Collector) TotalConnections() int64 {
	if c == nil {
		return 0
	}
	return c.connectionsTotal.Load()
}

// Accepts returns the number of inbound connections accepted.
func (c *Collector) Accepts() int64 {
	if c == nil {
		return 0
	}
	return c.accepts.Load()
}

// ── I/O metrics ──────────────────────────────────────────────────────

// BytesReceived records one received chunk of n bytes.
func (c *Collector) BytesReceived(n int64) {
	if c == nil {
		return
	}
	c.bytesIn.Add(n)
	c.chunksIn.Add(1)
}

// BytesSent records one completed send of n bytes.
func (c *Collector) BytesSent(n int64) {
	if c == nil {
		return
	}
	c.bytesOut.Add(n)
	c.chunksOut.Add(1)
}

// TotalBytesIn returns total bytes received.
func (c *Collector) TotalBytesIn() int64 {
	if c == nil {
		return 0
	}
	return c.bytesIn.Load()
}

// TotalBytesOut returns total bytes sent.
func (c *Collector) TotalBytesOut() int64 {
	if c == nil {
		return 0
	}
	return c.bytesOut.Load()
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Socket wiring ────────────────────────────────────────────────────

// Watch subscribes c to s.  Connections are counted from Connected (or
// Accepted, for peers of a listening s) until Disconnected, and every
// Received and Sent chunk is tallied.  Watch registers no exception
// handler, so it does not change how s reports errors.
func (c *Collector) Watch(s *socket.Socket) {
	if c == nil || s == nil {
		return
	}
	c.watchConn(s, false)
	s.OnAccepted(func(peer *socket.Socket) {
		c.ConnectionAccepted()
		c.watchConn(peer, true)
	})
}

func (c *Collector) watchConn(s *socket.Socket, open bool) {
	var live atomic.Bool
	if open {
		live.Store(true)
		c.ConnectionOpened()
	}

	s.OnConnected(func(*socket.Socket) {
		if !live.Swap(true) {
			c.ConnectionOpened()
		}
	})
	s.OnDisconnected(func(*socket.Socket) {
		// A failed connect or a listener going away also disconnects.
		if live.Swap(false) {
			c.ConnectionClosed()
		}
	})
	s.OnReceived(func(_ *socket.Socket, data []byte) {
		c.BytesReceived(int64(len(data)))
	})
	s.OnSent(func(_ *socket.Socket, data []byte) {
		c.BytesSent(int64(len(data)))
	})
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime            string `json:"uptime"`
	ConnectionsActive int64  `json:"connections_active"`
	ConnectionsTotal  int64  `json:"connections_total"`
	Accepts           int64  `json:"accepts"`
	BytesIn           int64  `json:"bytes_in"`
	BytesOut          int64  `json:"bytes_out"`
	ChunksIn          int64  `json:"chunks_in"`
	ChunksOut         int64  `json:"chunks_out"`
	ErrorsTotal       int64  `json:"errors_total"`
	LastError         string `json:"last_error,omitempty"`
	LastErrorMessage  string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:            time.Since(c.startTime).Truncate(time.Second).String(),
		ConnectionsActive: c.connectionsActive.Load(),
		ConnectionsTotal:  c.connectionsTotal.Load(),
		Accepts:           c.accepts.Load(),
		BytesIn:           c.bytesIn.Load(),
		BytesOut:          c.bytesOut.Load(),
		ChunksIn:          c.chunksIn.Load(),
		ChunksOut:         c.chunksOut.Load(),
		ErrorsTotal:       c.errorsTotal.Load(),
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
