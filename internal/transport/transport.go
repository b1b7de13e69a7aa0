// Package transport provides the ways a socket can open an outbound
// TCP connection: directly, or through an SSH gateway.  Transports only
// establish the stream; everything after that is the socket's job.
package transport

import (
	"context"
	"net"
)

// Dialer opens outbound network connections.
type Dialer interface {
	// Dial establishes a connection to the given network address.
	// Cancelling ctx aborts a dial that is still in progress.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases any long-lived resources held by the dialer
	// (e.g. an SSH session).  Stateless dialers return nil.
	Close() error
}
