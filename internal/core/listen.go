package core

import (
	"context"

	"nsock/internal/socket"
)

// ListenMode accepts inbound connections and relays stdin/stdout with
// the most recent peer.  Without KeepOpen it stops listening after the
// first connection and returns when that peer goes away.
type ListenMode struct {
	IO

	Address  string // numeric bind address
	Port     int    // 0 binds an ephemeral port
	KeepOpen bool

	// Ready, if set, is called with the bound endpoint once listening.
	Ready func(ep *socket.Endpoint)
}

// Run listens until the session ends or ctx is cancelled.
func (m *ListenMode) Run(ctx context.Context) error {
	ln := socket.New(m.socketOptions())
	con := m.console()
	sess := newSession()

	con.AttachListener(ln)
	m.Metrics.Watch(ln)
	sess.track(ln)
	ln.OnAccepted(func(peer *socket.Socket) {
		if m.KeepOpen {
			return
		}
		sess.track(peer)
		// One peer only: a clean close, not a failure of the listener.
		ln.Close() //nolint:errcheck
	})

	if err := ln.Listen(m.Address, m.Port); err != nil {
		return err
	}
	if err := con.Err(); err != nil {
		return err
	}

	ep := ln.LocalEndpoint()
	m.Logger.Info("listening on %s", ep)
	if m.Ready != nil {
		m.Ready(ep)
	}

	return m.serve(ctx, con, sess, func() {
		sess.close(ln)
		sess.close(con.Peer())
	})
}
