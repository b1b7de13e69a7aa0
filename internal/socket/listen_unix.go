//go:build unix

package socket

import (
	"net"
	"os"

	"golang.org/x/sys/unix"

	ncerr "nsock/internal/errors"
)

// listenTCP creates a listening socket with an explicit backlog, which
// net.Listen does not expose, and hands it to the runtime poller.
func listenTCP(ep Endpoint, backlog int) (net.Listener, error) {
	addr := ep.String()

	domain, sa := sockaddr(ep)
	fd, err := unix.Socket(domain, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, ncerr.Wrap(ncerr.OpBind, addr, os.NewSyscallError("socket", err))
	}
	unix.CloseOnExec(fd)

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd) //nolint:errcheck
		return nil, ncerr.Wrap(ncerr.OpBind, addr, os.NewSyscallError("setsockopt", err))
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd) //nolint:errcheck
		return nil, ncerr.Wrap(ncerr.OpBind, addr, os.NewSyscallError("bind", err))
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd) //nolint:errcheck
		return nil, ncerr.Wrap(ncerr.OpListen, addr, os.NewSyscallError("listen", err))
	}

	// FileListener dups the descriptor; the original is closed with f.
	f := os.NewFile(uintptr(fd), "tcp:"+addr)
	defer f.Close()

	ln, err := net.FileListener(f)
	if err != nil {
		return nil, ncerr.Wrap(ncerr.OpListen, addr, err)
	}
	return ln, nil
}

func sockaddr(ep Endpoint) (int, unix.Sockaddr) {
	if ip4 := ep.IP.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: ep.Port}
		copy(sa.Addr[:], ip4)
		return unix.AF_INET, sa
	}
	sa := &unix.SockaddrInet6{Port: ep.Port}
	copy(sa.Addr[:], ep.IP.To16())
	return unix.AF_INET6, sa
}
