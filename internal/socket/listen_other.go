//go:build !unix

package socket

import (
	"context"
	"net"

	ncerr "nsock/internal/errors"
)

// listenTCP falls back to the system backlog where raw socket calls
// are unavailable.
func listenTCP(ep Endpoint, _ int) (net.Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", ep.String())
	if err != nil {
		return nil, ncerr.Wrap(ncerr.OpBind, ep.String(), err)
	}
	return ln, nil
}
