// Package errors provides domain-specific error types for nsock.
//
// Every failure a socket can report falls into one of the kinds below:
// malformed input (AddressError, PortError), state violations
// (ErrAlreadyOpen, ErrNotConnected, ErrAcceptedSocket), local endpoint
// problems (ErrNotLocalAddress) and I/O-stage failures (NetworkError,
// tagged with the operation that failed).
package errors

import (
	"errors"
	"fmt"
	"net"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrAlreadyOpen     = errors.New("socket is already open")
	ErrNotConnected    = errors.New("socket is not connected")
	ErrAcceptedSocket  = errors.New("accepted sockets cannot be reopened")
	ErrNotLocalAddress = errors.New("address is not assigned to this host")
	ErrStreamEnd       = errors.New("stream closed by peer")
)

// Network operations reported in NetworkError.Op.
const (
	OpBind    = "bind"
	OpListen  = "listen"
	OpAccept  = "accept"
	OpConnect = "connect"
	OpSend    = "send"
	OpReceive = "receive"
)

// ── Structured error types ───────────────────────────────────────────

// NetworkError represents a failure in a network operation.
type NetworkError struct {
	Op        string // one of the Op* constants
	Addr      string // network address involved
	Err       error  // underlying error
	Retryable bool   // whether the caller may reasonably try again
}

func (e *NetworkError) Error() string {
	s := fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
	if e.Retryable {
		s += " (retryable)"
	}
	return s
}

func (e *NetworkError) Unwrap() error { return e.Err }

// AddressError reports text that does not parse as an IP address.
type AddressError struct {
	Input string
	Err   error
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("invalid address %q: %v", e.Input, e.Err)
}

func (e *AddressError) Unwrap() error { return e.Err }

// PortError reports a port that is not a number or is out of range.
type PortError struct {
	Input string
	Err   error
}

func (e *PortError) Error() string {
	return fmt.Sprintf("invalid port %q: %v", e.Input, e.Err)
}

func (e *PortError) Unwrap() error { return e.Err }

// SSHError represents an SSH gateway failure with host context.
type SSHError struct {
	Op   string // "handshake", "auth", "hostkey", "dial"
	Host string
	Port int
	Err  error
}

func (e *SSHError) Error() string {
	return fmt.Sprintf("ssh %s %s:%d: %v", e.Op, e.Host, e.Port, e.Err)
}

func (e *SSHError) Unwrap() error { return e.Err }

// UnhandledError carries an asynchronous socket failure that had no
// exception subscriber to the socket's Unhandled fallback.
type UnhandledError struct {
	Socket string // socket name, e.g. "sock#3"
	Err    error
}

func (e *UnhandledError) Error() string {
	return fmt.Sprintf("%s: unhandled socket error: %v", e.Socket, e.Err)
}

func (e *UnhandledError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // flag name without dashes
	Value   interface{} // the invalid value (nil if missing)
	Message string
	Hint    string // optional suggestion
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// Wrap creates a NetworkError, detecting retryability from err.
func Wrap(op, addr string, err error) *NetworkError {
	return &NetworkError{
		Op:        op,
		Addr:      addr,
		Err:       err,
		Retryable: classifyRetryable(err),
	}
}

// WrapSSH creates an SSHError.
func WrapSSH(op, host string, port int, err error) *SSHError {
	return &SSHError{Op: op, Host: host, Port: port, Err: err}
}

// ── Classification helpers ───────────────────────────────────────────

// IsRetryable reports whether err is worth a reconnect-on-demand.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Retryable
	}
	return classifyRetryable(err)
}

// OpOf returns the network operation err failed in, or "".
func OpOf(err error) string {
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Op
	}
	return ""
}

// IsClosed reports whether err only says the handle was released
// locally, which is how a Close racing an in-flight operation shows up.
func IsClosed(err error) bool {
	return errors.Is(err, net.ErrClosed)
}

func classifyRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrStreamEnd) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Temporary() //nolint:staticcheck // still the best hint available
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary() //nolint:staticcheck
	}
	return false
}

// ── Re-exports ───────────────────────────────────────────────────────

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
