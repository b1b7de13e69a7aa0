package socket

import (
	ncerr "nsock/internal/errors"
)

// listenBacklog is the number of pending connections the kernel queues;
// inbound connections are taken one at a time.
const listenBacklog = 1

// Listen binds address:port and starts accepting inbound connections.
// Port 0 binds an ephemeral port; read it back with LocalEndpoint.
//
// Each accepted connection is announced through an Accepted event as a
// new, connected Socket.  Accepting continues until the listening
// socket is closed or an accept fails.
func (s *Socket) Listen(address string, port int) error {
	ep, err := NewEndpoint(address, port)
	if err != nil {
		return s.raise(err)
	}
	return s.ListenEndpoint(ep)
}

// ListenEndpoint is Listen for an already parsed endpoint.
func (s *Socket) ListenEndpoint(ep Endpoint) error {
	h, err := s.openListener(ep)
	if err != nil {
		if h != nil {
			s.disconnect(h)
		}
		return s.raise(err)
	}
	s.logger.Verbose("listening on %s", h.ln.Addr())
	go s.acceptLoop(h)
	return nil
}

// openListener installs a listening handle.  A returned handle with a
// non-nil error was installed and must be torn down by the caller.
func (s *Socket) openListener(ep Endpoint) (*handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.openLocked(); err != nil {
		return nil, err
	}
	h := &handle{}
	s.h = h
	s.state = StateListening

	if err := ep.ensureLocal(); err != nil {
		return h, err
	}
	s.local = &ep

	ln, err := listenTCP(ep, listenBacklog)
	if err != nil {
		return h, err
	}
	h.ln = ln
	return h, nil
}

// acceptLoop takes inbound connections until h is released.  An accept
// that completes after the listener was closed is dropped.
func (s *Socket) acceptLoop(h *handle) {
	addr := h.ln.Addr().String()
	for {
		conn, err := h.ln.Accept()
		if !s.current(h) {
			if conn != nil {
				conn.Close() //nolint:errcheck
			}
			s.logger.Debug("accept loop on %s stopped", addr)
			return
		}
		if err != nil {
			s.disconnect(h)
			s.raiseAsync(ncerr.Wrap(ncerr.OpAccept, addr, err))
			return
		}

		peer := s.adopt(conn)
		s.logger.Verbose("accepted %s as %s", conn.RemoteAddr(), peer.name)
		s.emit(Event{Kind: Accepted, Source: s, Socket: peer})
		peer.startIO()
	}
}
