package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags and environment variable loading.

const (
	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultListenAddress is bound when listening without an address.
	DefaultListenAddress = "0.0.0.0"

	// DefaultBufferSize is the receive capacity per read, in bytes.
	DefaultBufferSize = 1024

	// DefaultConnTimeout bounds the SSH gateway connect and handshake.
	DefaultConnTimeout = 30 * time.Second

	// DefaultGracePeriod is how long shutdown waits for queued sends.
	DefaultGracePeriod = 5 * time.Second
)
