package socket

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	ncerr "nsock/internal/errors"
	"nsock/util"
)

// Endpoint is an IP address and port identifying one side of a TCP
// connection.  Port 0 asks for an ephemeral port when binding.
type Endpoint struct {
	IP   net.IP
	Port int
}

// NewEndpoint parses address as a numeric IP and checks port is in
// 0–65535.  Host names are not resolved.
func NewEndpoint(address string, port int) (Endpoint, error) {
	ip := net.ParseIP(strings.TrimSpace(address))
	if ip == nil {
		return Endpoint{}, &ncerr.AddressError{Input: address, Err: fmt.Errorf("not an IP address")}
	}
	if port < 0 || port > 65535 {
		return Endpoint{}, &ncerr.PortError{Input: strconv.Itoa(port), Err: fmt.Errorf("out of range 0-65535")}
	}
	return Endpoint{IP: ip, Port: port}, nil
}

// ParseEndpoint is NewEndpoint for a textual port.  An empty port means 0.
func ParseEndpoint(address, port string) (Endpoint, error) {
	p := 0
	if s := strings.TrimSpace(port); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return Endpoint{}, &ncerr.PortError{Input: port, Err: fmt.Errorf("not a number")}
		}
		p = n
	}
	return NewEndpoint(address, p)
}

// String returns "ip:port" ("[ip]:port" for IPv6).
func (e Endpoint) String() string {
	return util.FormatAddr(e.IP.String(), e.Port)
}

// TCPAddr converts e for use with the net package.
func (e Endpoint) TCPAddr() *net.TCPAddr {
	return &net.TCPAddr{IP: e.IP, Port: e.Port}
}

// ensureLocal fails unless e can be bound on this host.
func (e Endpoint) ensureLocal() error {
	ok, err := util.IsLocalIP(e.IP)
	if err != nil {
		return ncerr.Wrap(ncerr.OpBind, e.String(), err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", e.IP, ncerr.ErrNotLocalAddress)
	}
	return nil
}

// endpointOf converts a net.Addr reported by a connection or listener.
// Transports that tunnel connections may report non-TCP address types,
// which are parsed from their string form.
func endpointOf(a net.Addr) *Endpoint {
	switch v := a.(type) {
	case nil:
		return nil
	case *net.TCPAddr:
		if v == nil {
			return nil
		}
		return &Endpoint{IP: v.IP, Port: v.Port}
	}
	host, port, err := net.SplitHostPort(a.String())
	if err != nil {
		return nil
	}
	ep, err := ParseEndpoint(host, port)
	if err != nil {
		return nil
	}
	return &ep
}
