package core

import (
	"context"
	"fmt"
	"net"

	"nsock/internal/socket"
	"nsock/internal/transport"
)

// ConnectMode dials a remote endpoint and relays stdin/stdout over the
// resulting connection; the default client mode.
type ConnectMode struct {
	IO

	Host string // numeric remote address
	Port int

	// SourceAddr/SourcePort bind the local end (SourceAddr may be empty
	// with a non-zero SourcePort).
	SourceAddr string
	SourcePort int

	// Dialer overrides the socket's default TCP dialer, e.g. with an SSH
	// gateway.  It is closed when Run returns.
	Dialer transport.Dialer
}

// Run connects and relays until the connection ends, stdin ends with
// CloseOnEOF set, or ctx is cancelled.
func (m *ConnectMode) Run(ctx context.Context) error {
	if m.Dialer != nil {
		defer m.Dialer.Close()
	}

	opts := m.socketOptions()
	opts.Dialer = m.Dialer
	s := socket.New(opts)

	// Before any handler is attached so the error is returned here.
	if m.SourceAddr != "" || m.SourcePort != 0 {
		if err := s.SetLocalEndpoint(m.sourceAddr(), m.SourcePort); err != nil {
			return fmt.Errorf("source address: %w", err)
		}
	}

	con := m.console()
	con.Attach(s)
	m.Metrics.Watch(s)
	sess := newSession()
	sess.track(s)

	if err := s.Connect(m.Host, m.Port); err != nil {
		return err
	}
	if err := con.Err(); err != nil {
		return err
	}
	return m.serve(ctx, con, sess, func() { sess.close(s) })
}

// sourceAddr returns the bind address, defaulting to the unspecified
// address of the remote's family.
func (m *ConnectMode) sourceAddr() string {
	if m.SourceAddr != "" {
		return m.SourceAddr
	}
	if ip := net.ParseIP(m.Host); ip != nil && ip.To4() == nil {
		return "::"
	}
	return "0.0.0.0"
}
