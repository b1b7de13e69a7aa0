package socket

import (
	"context"
	"fmt"

	ncerr "nsock/internal/errors"
	"nsock/internal/transport"
)

// Connect dials address:port in the background.  Success is reported
// by a Connected event, after which the receive loop runs; failure by
// Disconnected followed by Exception.
//
// A socket created by New may Connect again after it disconnected.
func (s *Socket) Connect(address string, port int) error {
	ep, err := NewEndpoint(address, port)
	if err == nil && port == 0 {
		err = &ncerr.PortError{Input: "0", Err: fmt.Errorf("cannot connect to port 0")}
	}
	if err != nil {
		return s.raise(err)
	}
	return s.ConnectEndpoint(ep)
}

// ConnectEndpoint is Connect for an already parsed endpoint.
func (s *Socket) ConnectEndpoint(remote Endpoint) error {
	ctx, h, d, err := s.openDial()
	if err != nil {
		return s.raise(err)
	}
	s.logger.Verbose("connecting to %s", remote)
	go s.dial(ctx, h, d, remote)
	return nil
}

// openDial installs a pending-dial handle.  Close cancels the dial
// through the handle's cancel func.
func (s *Socket) openDial() (context.Context, *handle, transport.Dialer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.openLocked(); err != nil {
		return nil, nil, nil, err
	}

	d := s.dialer
	if d == nil {
		tcp := &transport.TCPDialer{}
		if s.local != nil {
			tcp.LocalAddr = s.local.TCPAddr()
		}
		d = tcp
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &handle{cancel: cancel}
	s.h = h
	s.state = StateConnecting
	return ctx, h, d, nil
}

func (s *Socket) dial(ctx context.Context, h *handle, d transport.Dialer, remote Endpoint) {
	conn, err := d.Dial(ctx, "tcp", remote.String())

	s.mu.Lock()
	if s.h != h {
		s.mu.Unlock()
		if conn != nil {
			conn.Close() //nolint:errcheck
		}
		s.logger.Debug("connect to %s completed after close; dropped", remote)
		return
	}
	if err == nil {
		h.conn = conn
		h.sendq = newSendQueue()
		s.state = StateConnected
	}
	s.mu.Unlock()

	if err != nil {
		s.disconnect(h)
		s.raiseAsync(ncerr.Wrap(ncerr.OpConnect, remote.String(), err))
		return
	}

	s.logger.Verbose("connected %s -> %s", conn.LocalAddr(), conn.RemoteAddr())
	s.emit(Event{Kind: Connected, Source: s, Socket: s})
	s.startIO()
}
