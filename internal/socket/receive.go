package socket

import (
	"errors"
	"io"

	ncerr "nsock/internal/errors"
)

// receiveLoop reads from h until the stream ends, a read fails or h is
// released, then disconnects.  Failures other than a local Close are
// raised after the Disconnected event.
func (s *Socket) receiveLoop(h *handle) {
	addr := h.conn.RemoteAddr().String()
	err := s.readAll(h)

	// Released before or during the read: a Close or another failure
	// path got here first and nothing new went wrong.
	local := h.closed.Load()
	s.disconnect(h)
	if err != nil && !local {
		s.raiseAsync(ncerr.Wrap(ncerr.OpReceive, addr, err))
	}
}

// readAll emits one Received event per successful read.  The liveness
// check before each read is deliberately unlocked: a missed Close costs
// at most one read, which then fails on the released connection.
func (s *Socket) readAll(h *handle) error {
	buf := make([]byte, s.BufferSize())
	for !h.closed.Load() {
		if size := s.BufferSize(); size != len(buf) {
			buf = make([]byte, size)
		}

		n, err := h.conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			s.emit(Event{Kind: Received, Source: s, Socket: s, Data: data})
		}
		switch {
		case errors.Is(err, io.EOF):
			return ncerr.ErrStreamEnd
		case err != nil:
			return err
		case n == 0:
			return ncerr.ErrStreamEnd
		}
	}
	return nil
}
