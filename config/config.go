// Package config defines the runtime configuration for nsock and provides
// helpers for parsing ports and tunnel specifications.
package config

import (
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	ncerr "nsock/internal/errors"
)

// Config holds every tuneable for a single nsock session.
type Config struct {
	// ── Connection ───────────────────────────────────────────────────
	Host       string // connect: remote host
	Port       int    // connect: remote port
	Listen     bool
	ListenAddr string // listen: bind address (positional or -s)
	LocalPort  int    // -p: listen port, or source port when connecting
	SourceAddr string // -s: local address to bind
	NoDNS      bool
	KeepOpen   bool
	CloseOnEOF bool
	BufferSize int // receive capacity per read

	// ── SSH tunnel ───────────────────────────────────────────────────
	TunnelSpec     string // raw user@host[:port] from -T
	TunnelEnabled  bool
	TunnelUser     string
	TunnelHost     string
	TunnelPort     int
	SSHKeyPath     string
	SSHPassword    bool // true → prompt interactively
	UseSSHAgent    bool
	StrictHostKey  bool
	KnownHostsPath string
	Timeout        time.Duration // gateway connect + handshake

	// ── Output ───────────────────────────────────────────────────────
	Verbose int
	Hex     bool
	Stats   bool
	DryRun  bool
}

// Default returns a Config populated from defaults.go.
func Default() *Config {
	return &Config{
		BufferSize: DefaultBufferSize,
		Timeout:    DefaultConnTimeout,
	}
}

// BindAddr returns the local address a socket should bind: the listen
// address or -s, falling back to DefaultListenAddress when listening.
func (c *Config) BindAddr() string {
	if c.Listen {
		switch {
		case c.ListenAddr != "":
			return c.ListenAddr
		case c.SourceAddr != "":
			return c.SourceAddr
		}
		return DefaultListenAddress
	}
	return c.SourceAddr
}

// ── Port helpers ─────────────────────────────────────────────────────

// ParsePort accepts a decimal port in 1-65535.
func ParsePort(spec string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(spec))
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", spec)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range 1-65535", port)
	}
	return port, nil
}

// ── Tunnel-spec parser ───────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q – expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	if host == "" {
		return "", "", 0, fmt.Errorf("tunnel host is required")
	}
	return user, host, port, nil
}

// ApplyTunnelSpec parses TunnelSpec, if set, into the Tunnel* fields.
// A missing user defaults to $USER.
func (c *Config) ApplyTunnelSpec() error {
	if c.TunnelSpec == "" {
		return nil
	}
	user, host, port, err := ParseTunnelSpec(c.TunnelSpec)
	if err != nil {
		return &ncerr.ConfigError{
			Field:   "tunnel",
			Value:   c.TunnelSpec,
			Message: err.Error(),
			Hint:    "use -T user@gateway or -T gateway:2222",
		}
	}
	if user == "" {
		user = os.Getenv("USER")
	}
	c.TunnelEnabled = true
	c.TunnelUser = user
	c.TunnelHost = host
	c.TunnelPort = port
	return nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
// Errors are *errors.ConfigError with a hint where one helps.
func (c *Config) Validate() error {
	if c.Listen {
		if err := c.validateListen(); err != nil {
			return err
		}
	} else if err := c.validateConnect(); err != nil {
		return err
	}

	if c.LocalPort < 0 || c.LocalPort > 65535 {
		return &ncerr.ConfigError{
			Field:   "port",
			Value:   c.LocalPort,
			Message: "out of range 0-65535",
		}
	}
	if c.BufferSize <= 0 {
		return &ncerr.ConfigError{
			Field:   "buffer-size",
			Value:   c.BufferSize,
			Message: "must be positive",
			Hint:    fmt.Sprintf("the default is %d bytes", DefaultBufferSize),
		}
	}
	if c.SourceAddr != "" && net.ParseIP(c.SourceAddr) == nil {
		return &ncerr.ConfigError{
			Field:   "source",
			Value:   c.SourceAddr,
			Message: "not an IP address",
			Hint:    "the source must be a numeric address assigned to this host",
		}
	}
	if c.TunnelEnabled && c.TunnelHost == "" {
		return &ncerr.ConfigError{Field: "tunnel", Message: "tunnel host is required"}
	}
	if c.Timeout < 0 {
		return &ncerr.ConfigError{Field: "timeout", Value: c.Timeout, Message: "must not be negative"}
	}
	return nil
}

func (c *Config) validateListen() error {
	if c.TunnelEnabled {
		return &ncerr.ConfigError{
			Field:   "tunnel",
			Value:   c.TunnelSpec,
			Message: "listen mode through an SSH tunnel is not supported",
			Hint:    "drop -T, or listen on the gateway itself",
		}
	}
	if c.ListenAddr != "" && net.ParseIP(c.ListenAddr) == nil {
		return &ncerr.ConfigError{
			Field:   "listen",
			Value:   c.ListenAddr,
			Message: "listen address must be numeric",
			Hint:    "use 0.0.0.0 or :: to listen on every local address",
		}
	}
	return nil
}

func (c *Config) validateConnect() error {
	if c.Host == "" {
		return &ncerr.ConfigError{
			Field:   "host",
			Message: "hostname is required",
			Hint:    "usage: nsock [options] <host> <port> (use --help for more)",
		}
	}
	if c.Port < 1 || c.Port > 65535 {
		return &ncerr.ConfigError{
			Field:   "port",
			Value:   c.Port,
			Message: "destination port is required (1-65535)",
			Hint:    "pass it after the host, e.g. nsock example.com 80",
		}
	}
	if c.KeepOpen {
		return &ncerr.ConfigError{
			Field:   "keep-open",
			Message: "only meaningful with -l",
		}
	}
	if c.NoDNS && net.ParseIP(c.Host) == nil {
		return &ncerr.ConfigError{
			Field:   "no-dns",
			Value:   c.Host,
			Message: "host is not a numeric address",
			Hint:    "drop -n to resolve host names",
		}
	}
	return nil
}
