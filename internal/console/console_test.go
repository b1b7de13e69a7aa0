package console

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	ncerr "nsock/internal/errors"
	"nsock/internal/metrics"
	"nsock/internal/socket"
	"nsock/util"
)

// lockedBuffer is a bytes.Buffer safe to write from socket goroutines
// while the test reads it.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func quietLogger() *util.Logger { return util.NewLogger(0) }

func ignoreErrors() *socket.Options {
	return &socket.Options{Logger: quietLogger(), Unhandled: func(error) {}}
}

// listen starts a listener on an ephemeral loopback port.
func listen(t *testing.T, attach func(ln *socket.Socket)) *socket.Socket {
	t.Helper()
	ln := socket.New(ignoreErrors())
	attach(ln)
	if err := ln.Listen("127.0.0.1", 0); err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	return ln
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for: %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// TestConsole_WritesReceived checks bytes sent by a peer show up on Out.
func TestConsole_WritesReceived(t *testing.T) {
	out := &lockedBuffer{}
	c := New(strings.NewReader(""), out, quietLogger())
	ln := listen(t, c.AttachListener)

	conn := socket.New(ignoreErrors())
	conn.OnConnected(func(s *socket.Socket) {
		s.Send([]byte("hello\n")) //nolint:errcheck
	})
	if err := conn.Connect("127.0.0.1", ln.LocalEndpoint().Port); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	waitFor(t, "output", func() bool { return out.String() == "hello\n" })
	waitFor(t, "peer attached", func() bool { return c.Peer() != nil })
}

// TestConsole_Hex checks -x style output.
func TestConsole_Hex(t *testing.T) {
	out := &lockedBuffer{}
	c := New(strings.NewReader(""), out, quietLogger())
	c.Hex = true
	ln := listen(t, c.AttachListener)

	conn := socket.New(ignoreErrors())
	conn.OnConnected(func(s *socket.Socket) {
		s.Send([]byte("AB")) //nolint:errcheck
	})
	if err := conn.Connect("127.0.0.1", ln.LocalEndpoint().Port); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	want := hex.Dump([]byte("AB"))
	waitFor(t, "hex output", func() bool { return out.String() == want })
}

// TestConsole_PumpAndFlush forwards input through an outbound socket
// and waits for every byte to be reported sent.
func TestConsole_PumpAndFlush(t *testing.T) {
	received := &lockedBuffer{}
	ln := listen(t, func(ln *socket.Socket) {
		ln.OnAccepted(func(peer *socket.Socket) {
			peer.OnReceived(func(_ *socket.Socket, data []byte) { received.Write(data) })
		})
	})

	input := strings.Repeat("ping\n", 1000)
	c := New(strings.NewReader(input), &lockedBuffer{}, quietLogger())
	conn := socket.New(ignoreErrors())
	c.Attach(conn)
	if err := conn.Connect("127.0.0.1", ln.LocalEndpoint().Port); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Pump(ctx); err != nil {
		t.Fatalf("Pump: %v", err)
	}
	if err := c.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	waitFor(t, "all input at server", func() bool { return received.String() == input })
	if err := c.Err(); err != nil {
		t.Errorf("Err() = %v", err)
	}
}

// TestConsole_PumpWaitsForPeer checks input is held until a peer
// attaches and Pump honours cancellation meanwhile.
func TestConsole_PumpWaitsForPeer(t *testing.T) {
	c := New(strings.NewReader("early"), &lockedBuffer{}, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Pump(ctx) }()

	select {
	case err := <-done:
		t.Fatalf("Pump returned before a peer attached: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		if err == nil {
			t.Error("expected cancellation error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Pump did not honour cancel")
	}
}

// TestConsole_FlushAfterRefusedSend checks bytes a peer refuses to
// queue are not left pending, so Flush does not wait for them.
func TestConsole_FlushAfterRefusedSend(t *testing.T) {
	c := New(strings.NewReader("data"), &lockedBuffer{}, quietLogger())
	// Never connected: every Send is refused with ErrNotConnected.
	peer := socket.New(ignoreErrors())
	c.bind(peer)
	c.setPeer(peer)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Pump(ctx); err != nil {
		t.Fatalf("Pump: %v", err)
	}

	c.mu.Lock()
	pending := c.pending
	c.mu.Unlock()
	if pending != 0 {
		t.Errorf("pending = %d, want 0", pending)
	}

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer flushCancel()
	if err := c.Flush(flushCtx); err != nil {
		t.Errorf("Flush: %v", err)
	}
}

func TestConsole_PeerCleared(t *testing.T) {
	c := New(strings.NewReader(""), &lockedBuffer{}, quietLogger())
	ln := listen(t, c.AttachListener)

	conn := socket.New(ignoreErrors())
	if err := conn.Connect("127.0.0.1", ln.LocalEndpoint().Port); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitFor(t, "peer attached", func() bool { return c.Peer() != nil })

	conn.Close()
	waitFor(t, "peer cleared", func() bool { return c.Peer() == nil })

	// A stream end from the far side is not an error.
	if err := c.Err(); err != nil {
		t.Errorf("Err() = %v", err)
	}
	if err := c.Flush(context.Background()); err != nil {
		t.Errorf("Flush with no peer: %v", err)
	}
}

func TestConsole_Exception(t *testing.T) {
	m := metrics.New()
	c := New(strings.NewReader(""), &lockedBuffer{}, quietLogger())
	c.Metrics = m
	s := socket.New(ignoreErrors())

	harmless := []error{
		ncerr.Wrap(ncerr.OpReceive, "127.0.0.1:1", ncerr.ErrStreamEnd),
		fmt.Errorf("send: %w", ncerr.ErrNotConnected),
	}
	for _, err := range harmless {
		c.exception(s, err)
	}
	if c.Err() != nil || m.ErrorCount() != 0 {
		t.Fatalf("harmless errors recorded: err=%v count=%d", c.Err(), m.ErrorCount())
	}

	first := ncerr.Wrap(ncerr.OpConnect, "127.0.0.1:1", fmt.Errorf("connection refused"))
	c.exception(s, first)
	c.exception(s, ncerr.Wrap(ncerr.OpSend, "127.0.0.1:1", fmt.Errorf("broken pipe")))

	if c.Err() != first {
		t.Errorf("Err() = %v, want the first error", c.Err())
	}
	if m.ErrorCount() != 2 {
		t.Errorf("error count = %d, want 2", m.ErrorCount())
	}
}
