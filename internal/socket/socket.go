// Package socket implements an event-driven TCP socket that either
// listens for inbound connections or connects out, and reports its
// lifecycle and I/O as notifications instead of blocking calls.
//
// A Socket moves through Idle → Listening | Connecting → Connected →
// Disconnected.  While it is open it owns exactly one handle: a
// listener, a pending dial, or a connection.  Every read or write of the
// handle happens under the socket's mutex, which is only held for the
// synchronous part of an operation and never while handlers run.
//
// Each connected socket runs two goroutines: a receive loop doing
// blocking reads and a writer draining the send queue.  A listening
// socket runs one accept loop; a connecting socket one dial.  Completions
// from these goroutines check that the handle they started with is still
// the socket's current handle before acting, so a Close racing with them
// is always observed.
package socket

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	ncerr "nsock/internal/errors"
	"nsock/internal/transport"
	"nsock/util"
)

// DefaultBufferSize is the receive buffer capacity when none is set.
const DefaultBufferSize = 1024

// State is a socket's position in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateListening
	StateConnecting
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// Options configures a new Socket.  The zero value is usable.
type Options struct {
	// BufferSize is the receive capacity per read (DefaultBufferSize if 0).
	BufferSize int

	// Logger receives lifecycle messages under the socket's name.
	Logger *util.Logger

	// Dialer opens outbound connections.  Nil means a plain TCP dialer
	// bound to the socket's local endpoint, if one is set.
	Dialer transport.Dialer

	// Unhandled receives errors from background goroutines when no
	// exception handler is registered.  Nil means PanicOnUnhandled.
	Unhandled func(err error)
}

// PanicOnUnhandled is the default Options.Unhandled: an error nobody
// subscribed to crashes the process.
func PanicOnUnhandled(err error) { panic(err) }

var lastID atomic.Uint64

// handle is the live resource behind an open socket.  Exactly one of
// ln, conn or cancel (a dial in flight) is meaningful at a time.
type handle struct {
	ln     net.Listener
	conn   net.Conn
	cancel context.CancelFunc
	sendq  *sendQueue

	closed   atomic.Bool // read without the lock by the receive loop
	started  bool        // I/O goroutines launched
	notified bool        // Disconnected emitted
}

func (h *handle) release() {
	h.closed.Store(true)
	if h.cancel != nil {
		h.cancel()
	}
	if h.sendq != nil {
		h.sendq.close()
	}
	if h.ln != nil {
		h.ln.Close() //nolint:errcheck
	}
	if h.conn != nil {
		h.conn.Close() //nolint:errcheck
	}
}

// Socket is a TCP endpoint driven by notifications.  Create one with
// New; accepted peers are created by the listening socket.
type Socket struct {
	id        uint64
	name      string
	logger    *util.Logger
	dialer    transport.Dialer
	unhandled func(error)
	accepted  bool
	bufSize   atomic.Int64

	mu    sync.Mutex
	h     *handle
	state State
	local *Endpoint // configured local endpoint

	subs subscribers
}

// New returns an idle socket.  opts may be nil.
func New(opts *Options) *Socket {
	if opts == nil {
		opts = &Options{}
	}
	s := &Socket{
		id:        lastID.Add(1),
		dialer:    opts.Dialer,
		unhandled: opts.Unhandled,
	}
	s.name = fmt.Sprintf("sock#%d", s.id)

	logger := opts.Logger
	if logger == nil {
		logger = util.NewLogger(0)
	}
	s.logger = logger.Named(s.name)
	if s.unhandled == nil {
		s.unhandled = PanicOnUnhandled
	}

	size := opts.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	s.bufSize.Store(int64(size))
	return s
}

// adopt wraps a connection produced by the accept loop in a new,
// already connected socket that inherits the listener's settings.
func (s *Socket) adopt(conn net.Conn) *Socket {
	peer := New(&Options{
		BufferSize: s.BufferSize(),
		Logger:     s.logger,
		Unhandled:  s.unhandled,
	})
	peer.accepted = true
	peer.h = &handle{conn: conn, sendq: newSendQueue()}
	peer.state = StateConnected
	return peer
}

// ── Read-only state ──────────────────────────────────────────────────

// Name returns the socket's log name, e.g. "sock#3".
func (s *Socket) Name() string { return s.name }

func (s *Socket) String() string { return s.name }

// IsOpen reports whether the socket currently holds a handle.
func (s *Socket) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.h != nil
}

// State returns the current lifecycle state.
func (s *Socket) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Accepted reports whether the socket was produced by a listener.
func (s *Socket) Accepted() bool { return s.accepted }

// LocalEndpoint returns the bound local address, or nil if the socket
// holds no bound handle.
func (s *Socket) LocalEndpoint() *Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.h == nil:
		return nil
	case s.h.ln != nil:
		return endpointOf(s.h.ln.Addr())
	case s.h.conn != nil:
		return endpointOf(s.h.conn.LocalAddr())
	}
	return nil
}

// RemoteEndpoint returns the peer address of a connected socket, or nil.
func (s *Socket) RemoteEndpoint() *Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.h == nil || s.h.conn == nil {
		return nil
	}
	return endpointOf(s.h.conn.RemoteAddr())
}

// BufferSize returns the receive capacity per read.
func (s *Socket) BufferSize() int { return int(s.bufSize.Load()) }

// ── Configuration ────────────────────────────────────────────────────

// SetBufferSize changes the receive capacity.  A running receive loop
// picks the new size up before its next read.
func (s *Socket) SetBufferSize(n int) {
	if n <= 0 {
		n = DefaultBufferSize
	}
	s.bufSize.Store(int64(n))
}

// SetLocalEndpoint sets the address Listen binds and Connect dials
// from.  The address must be assigned to this host (or unspecified).
func (s *Socket) SetLocalEndpoint(address string, port int) error {
	ep, err := NewEndpoint(address, port)
	if err != nil {
		return s.raise(err)
	}
	return s.SetLocalEndpointIP(ep.IP, ep.Port)
}

// SetLocalEndpointIP is SetLocalEndpoint for an already parsed address.
func (s *Socket) SetLocalEndpointIP(ip net.IP, port int) error {
	ep, err := NewEndpoint(ip.String(), port)
	if err == nil {
		err = ep.ensureLocal()
	}
	if err != nil {
		return s.raise(err)
	}
	s.mu.Lock()
	s.local = &ep
	s.mu.Unlock()
	return nil
}

// ── Teardown ─────────────────────────────────────────────────────────

// Close releases the handle if there is one.  It is safe to call any
// number of times from any goroutine.  Close emits nothing itself; a
// connected socket's receive loop reports Disconnected once it notices.
func (s *Socket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.h != nil {
		s.logger.Verbose("closing (%s)", s.state)
		s.releaseLocked()
	}
	return nil
}

// disconnect is the failure path: release h if it is still current,
// then emit Disconnected once per handle.  Racing callers for the same
// handle release it exactly once.  A handle that was already replaced
// by a newer connection ends silently.
func (s *Socket) disconnect(h *handle) {
	s.mu.Lock()
	if s.h == h {
		s.releaseLocked()
	}
	stale := s.h != nil
	fire := !h.notified && !stale
	h.notified = true
	s.mu.Unlock()

	if fire {
		s.logger.Verbose("disconnected")
		s.emit(Event{Kind: Disconnected, Source: s, Socket: s})
	}
}

func (s *Socket) releaseLocked() {
	s.h.release()
	s.h = nil
	s.state = StateDisconnected
}

// current reports whether h is still the socket's handle.
func (s *Socket) current(h *handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.h == h
}

// openLocked checks that a new handle may be installed.
func (s *Socket) openLocked() error {
	if s.h != nil {
		return fmt.Errorf("%s: %w", s.state, ncerr.ErrAlreadyOpen)
	}
	if s.accepted {
		return ncerr.ErrAcceptedSocket
	}
	return nil
}

// startIO launches the receive loop and writer of a connected socket
// unless it was closed in the meantime, e.g. by a handler.
func (s *Socket) startIO() {
	s.mu.Lock()
	h := s.h
	if h == nil || h.conn == nil || h.started {
		s.mu.Unlock()
		return
	}
	h.started = true
	s.mu.Unlock()

	go s.writeLoop(h)
	go s.receiveLoop(h)
}
