package util

import (
	"fmt"
	"net"
	"strconv"

	"github.com/wlynxg/anet"
)

// LookupHost resolves a hostname.  With noDNS it only accepts numeric IPs.
func LookupHost(host string, noDNS bool) ([]string, error) {
	if noDNS {
		if net.ParseIP(host) == nil {
			return nil, fmt.Errorf("cannot parse %q as an IP address (DNS disabled with -n)", host)
		}
		return []string{host}, nil
	}
	addrs, err := net.LookupHost(host)
	if err != nil {
		return nil, fmt.Errorf("DNS lookup for %q: %w", host, err)
	}
	return addrs, nil
}

// FormatAddr returns "host:port".
func FormatAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// FindFreePort returns an available TCP port on 127.0.0.1.
func FindFreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("finding free port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// LocalIPs returns every IP address assigned to an interface of this
// host.  anet is used instead of net.InterfaceAddrs because the latter
// fails on Android, where netlink route dumps are restricted.
func LocalIPs() ([]net.IP, error) {
	addrs, err := anet.InterfaceAddrs()
	if err != nil {
		return nil, fmt.Errorf("listing interface addresses: %w", err)
	}
	out := make([]net.IP, 0, len(addrs))
	for _, a := range addrs {
		switch v := a.(type) {
		case *net.IPNet:
			out = append(out, v.IP)
		case *net.IPAddr:
			out = append(out, v.IP)
		}
	}
	return out, nil
}

// IsLocalIP reports whether ip can be bound on this host: either the
// unspecified address or one assigned to a local interface.
func IsLocalIP(ip net.IP) (bool, error) {
	if ip.IsUnspecified() {
		return true, nil
	}
	ips, err := LocalIPs()
	if err != nil {
		return false, err
	}
	for _, local := range ips {
		if local.Equal(ip) {
			return true, nil
		}
	}
	return false, nil
}
