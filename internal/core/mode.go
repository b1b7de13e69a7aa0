// Package core is the orchestration layer.  It composes sockets, the
// console and metrics into complete operational modes and provides a
// builder that selects the right mode from a Config.
//
// Architecture layers (bottom → top):
//
//	transport  →  socket  →  console / metrics  →  core  →  cmd (CLI)
package core

import (
	"context"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"nsock/config"
	"nsock/internal/console"
	"nsock/internal/metrics"
	"nsock/internal/socket"
	"nsock/util"
)

// Mode represents a complete operational mode of nsock (connect or
// listen).  Each mode owns its full lifecycle from opening the socket
// to teardown.
type Mode interface {
	Run(ctx context.Context) error
}

// IO is the local side of a mode, shared by every mode.
type IO struct {
	// Stdin/Stdout default to os.Stdin/os.Stdout when nil.
	// Override in tests for deterministic I/O.
	Stdin  io.Reader
	Stdout io.Writer

	Hex        bool
	CloseOnEOF bool          // close the peer once stdin ends and sends drain
	Grace      time.Duration // how long CloseOnEOF waits for sends to drain
	BufferSize int
	Metrics    *metrics.Collector
	Logger     *util.Logger
}

func (o *IO) console() *console.Console {
	in, out := o.Stdin, o.Stdout
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	c := console.New(in, out, o.Logger)
	c.Hex = o.Hex
	c.Metrics = o.Metrics
	return c
}

func (o *IO) socketOptions() *socket.Options {
	return &socket.Options{BufferSize: o.BufferSize, Logger: o.Logger}
}

// session tracks when a mode is finished.  A socket that goes away on
// its own reports Disconnected and then an Exception with the cause, so
// the session ends on that Exception, after the console has recorded
// it.  A socket the mode closes itself reports only Disconnected.
type session struct {
	closing atomic.Bool
	once    sync.Once
	done    chan struct{}
}

func newSession() *session {
	return &session{done: make(chan struct{})}
}

func (s *session) finish() {
	s.once.Do(func() { close(s.done) })
}

// track makes the end of sock end the session.  Register it after the
// console so its exception handler runs first.
func (s *session) track(sock *socket.Socket) {
	sock.OnDisconnected(func(*socket.Socket) {
		if s.closing.Load() {
			s.finish()
		}
	})
	sock.OnException(func(sock *socket.Socket, _ error) {
		if !sock.IsOpen() {
			s.finish()
		}
	})
}

// close shuts sock down as a deliberate local action.
func (s *session) close(sock *socket.Socket) {
	if sock == nil {
		return
	}
	s.closing.Store(true)
	sock.Close() //nolint:errcheck
}

// serve pumps stdin into con until the session finishes or ctx is
// cancelled, then runs teardown.  The first socket error recorded by
// the console is returned.
func (o *IO) serve(ctx context.Context, con *console.Console, sess *session, teardown func()) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := con.Pump(gctx)
		if gctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}
		o.Logger.Verbose("stdin closed")
		if o.CloseOnEOF {
			grace := o.Grace
			if grace <= 0 {
				grace = config.DefaultGracePeriod
			}
			fctx, fcancel := context.WithTimeout(gctx, grace)
			defer fcancel()
			if err := con.Flush(fctx); err != nil {
				o.Logger.Warn("closing with unsent data: %v", err)
			}
			sess.close(con.Peer())
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-sess.done:
		case <-gctx.Done():
		}
		cancel()
		teardown()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return con.Err()
}
