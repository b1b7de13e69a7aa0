// Package console is the presentation layer over sockets.  It writes
// received bytes to an output stream, reports lifecycle changes through
// the logger, and forwards bytes read from an input stream to whichever
// peer is currently connected.
//
// Console replaces direct io.Copy relaying: it never touches a
// connection itself and only reacts to socket notifications.
package console

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"

	ncerr "nsock/internal/errors"
	"nsock/internal/metrics"
	"nsock/internal/socket"
	"nsock/util"
)

// Console binds local I/O to sockets.  Set the exported fields before
// attaching any socket.
type Console struct {
	In      io.Reader
	Out     io.Writer
	Hex     bool // hex-dump received chunks instead of writing them raw
	Logger  *util.Logger
	Metrics *metrics.Collector

	outMu sync.Mutex

	mu      sync.Mutex
	peer    *socket.Socket
	arrived chan struct{} // closed when a peer attaches
	pending int           // bytes handed to peer.Send and not yet Sent
	sending int           // size of the Send in progress, if any
	drained chan struct{} // closed when pending reaches zero
	err     error
}

// New returns a console reading in and writing out.
func New(in io.Reader, out io.Writer, logger *util.Logger) *Console {
	return &Console{In: in, Out: out, Logger: logger}
}

// Attach subscribes c to an outbound socket.  The socket becomes the
// current peer each time it connects.
func (c *Console) Attach(s *socket.Socket) {
	c.bind(s)
	s.OnConnected(func(s *socket.Socket) {
		c.Logger.Info("connected to %s", s.RemoteEndpoint())
		c.setPeer(s)
	})
}

// AttachListener subscribes c to a listening socket.  Every accepted
// peer replaces the current one.
func (c *Console) AttachListener(ln *socket.Socket) {
	ln.OnException(c.exception)
	ln.OnDisconnected(func(s *socket.Socket) {
		c.Logger.Verbose("%s stopped listening", s)
	})
	ln.OnAccepted(func(peer *socket.Socket) {
		c.Logger.Info("connection from %s", peer.RemoteEndpoint())
		c.bind(peer)
		c.setPeer(peer)
	})
}

// bind registers the data and teardown handlers every peer needs.
func (c *Console) bind(s *socket.Socket) {
	s.OnReceived(func(_ *socket.Socket, data []byte) { c.write(data) })
	s.OnSent(func(s *socket.Socket, data []byte) { c.sent(s, len(data)) })
	s.OnDisconnected(func(s *socket.Socket) {
		c.Logger.Verbose("%s disconnected", s)
		c.clearPeer(s)
	})
	s.OnException(c.exception)
}

// Peer returns the current peer, or nil.
func (c *Console) Peer() *socket.Socket {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peer
}

// Err returns the first error reported by an attached socket other than
// an orderly stream end or a local close.
func (c *Console) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Pump forwards In to the current peer until In reaches EOF or ctx is
// cancelled.  Input that arrives while no peer is connected waits for
// the next one.
func (c *Console) Pump(ctx context.Context) error {
	if f, ok := c.In.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		c.Logger.Verbose("reading from terminal; Ctrl-D to finish")
	}
	return util.ReadChunks(ctx, c.In, func(b []byte) error {
		peer, err := c.waitPeer(ctx)
		if err != nil {
			return err
		}
		c.reserve(peer, len(b))
		// Errors reach c.exception; Send only returns them when no
		// handler is registered, which bind rules out.
		err = peer.Send(b)
		c.mu.Lock()
		c.sending = 0
		c.mu.Unlock()
		return err
	})
}

// reserve counts n bytes about to be sent to peer as pending, unless
// peer was replaced or cleared meanwhile.
func (c *Console) reserve(peer *socket.Socket, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.peer != peer {
		return
	}
	c.pending += n
	c.sending = n
}

// Flush blocks until every byte Pump handed to the current peer has
// been reported Sent, the peer disconnects, or ctx is done.
func (c *Console) Flush(ctx context.Context) error {
	c.mu.Lock()
	if c.peer == nil || c.pending == 0 {
		c.mu.Unlock()
		return nil
	}
	if c.drained == nil {
		c.drained = make(chan struct{})
	}
	drained := c.drained
	c.mu.Unlock()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ── notification handlers ────────────────────────────────────────────

func (c *Console) write(data []byte) {
	c.outMu.Lock()
	defer c.outMu.Unlock()

	var err error
	if c.Hex {
		_, err = io.WriteString(c.Out, hex.Dump(data))
	} else {
		_, err = c.Out.Write(data)
	}
	if err != nil {
		c.Logger.Warn("writing output: %v", err)
	}
}

func (c *Console) sent(s *socket.Socket, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s != c.peer {
		return
	}
	c.pending -= n
	if c.pending <= 0 {
		c.pending = 0
		c.wakeLocked()
	}
}

// dropped releases the bytes of a Send that s refused.  Send raises
// synchronously, so the refused bytes are the ones Pump is sending.
func (c *Console) dropped(s *socket.Socket) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s != c.peer || c.sending == 0 {
		return
	}
	c.pending -= c.sending
	c.sending = 0
	if c.pending <= 0 {
		c.pending = 0
		c.wakeLocked()
	}
}

func (c *Console) exception(s *socket.Socket, err error) {
	if ncerr.Is(err, ncerr.ErrStreamEnd) || ncerr.IsClosed(err) || util.IsHarmless(err) {
		c.Logger.Verbose("%s: %v", s, err)
		return
	}
	if ncerr.Is(err, ncerr.ErrNotConnected) {
		c.Logger.Warn("%s: input dropped: %v", s, err)
		c.dropped(s)
		return
	}
	c.Logger.Error("%s: %v", s, err)
	c.Metrics.RecordError(fmt.Sprintf("%s: %v", s, err))

	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
}

// ── peer tracking ────────────────────────────────────────────────────

func (c *Console) setPeer(s *socket.Socket) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.peer != nil && c.peer != s {
		c.Logger.Verbose("%s replaces %s as peer", s, c.peer)
	}
	c.peer = s
	c.pending = 0
	c.sending = 0
	c.wakeLocked()
	if c.arrived != nil {
		close(c.arrived)
		c.arrived = nil
	}
}

func (c *Console) clearPeer(s *socket.Socket) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.peer != s {
		return
	}
	c.peer = nil
	c.pending = 0
	c.sending = 0
	c.wakeLocked()
}

func (c *Console) waitPeer(ctx context.Context) (*socket.Socket, error) {
	for {
		c.mu.Lock()
		if c.peer != nil {
			peer := c.peer
			c.mu.Unlock()
			return peer, nil
		}
		if c.arrived == nil {
			c.arrived = make(chan struct{})
		}
		arrived := c.arrived
		c.mu.Unlock()

		select {
		case <-arrived:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// wakeLocked releases Flush callers.
func (c *Console) wakeLocked() {
	if c.drained != nil {
		close(c.drained)
		c.drained = nil
	}
}
