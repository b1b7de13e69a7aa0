package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	ncerr "nsock/internal/errors"
	"nsock/util"
)

// SSHConfig describes the SSH gateway outbound connects are routed
// through.
type SSHConfig struct {
	User          string
	Host          string
	Port          int // default 22
	KeyPath       string
	PromptPass    bool
	UseAgent      bool
	StrictHostKey bool
	KnownHosts    string
	Timeout       time.Duration // gateway dial + handshake, default 30s

	// LocalAddr binds the TCP leg to the gateway.
	LocalAddr *net.TCPAddr
}

// SSHDialer opens connections as direct-tcpip channels of one SSH
// client session.  The session is established lazily on the first
// Dial, re-established if it has dropped, and torn down on Close.
type SSHDialer struct {
	config *SSHConfig
	logger *util.Logger

	mu      sync.Mutex
	client  *ssh.Client
	pending *handshakeCall // gateway handshake in flight
}

// handshakeCall is one gateway connect shared by every Dial waiting
// for it.  done is closed once client or err is set.
type handshakeCall struct {
	cancel context.CancelFunc
	done   chan struct{}
	client *ssh.Client
	err    error
}

// NewSSHDialer returns a dialer for the given gateway.  Nothing is
// dialled until the first Dial.
func NewSSHDialer(cfg *SSHConfig, logger *util.Logger) *SSHDialer {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SSHDialer{config: cfg, logger: logger.Named("ssh")}
}

// Dial opens a channel to address through the gateway.  Only TCP is
// supported by the direct-tcpip channel type.
func (d *SSHDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	client, err := d.session(ctx)
	if err != nil {
		return nil, err
	}

	type result struct {
		conn net.Conn
		err  error
	}
	// ssh.Client.Dial is not context aware; abandon it on cancel and
	// close whatever it eventually returns.
	done := make(chan result, 1)
	go func() {
		conn, err := client.Dial(network, address)
		done <- result{conn, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, ncerr.WrapSSH("dial", d.config.Host, d.config.Port, r.err)
		}
		d.logger.Debug("channel open to %s", address)
		return r.conn, nil
	case <-ctx.Done():
		go func() {
			if r := <-done; r.conn != nil {
				r.conn.Close() //nolint:errcheck
			}
		}()
		return nil, ctx.Err()
	}
}

// Close shuts down the SSH session, which also closes every channel
// opened through it, and aborts a handshake still in progress.
func (d *SSHDialer) Close() error {
	d.mu.Lock()
	call, client := d.pending, d.client
	d.pending, d.client = nil, nil
	d.mu.Unlock()

	if call != nil {
		call.cancel()
	}
	if client == nil {
		return nil
	}
	return client.Close()
}

// session returns a live client, connecting if needed.  The lock is
// only held to look up or start a handshake; waiting for it honours
// ctx.
func (d *SSHDialer) session(ctx context.Context) (*ssh.Client, error) {
	d.mu.Lock()
	if d.client != nil {
		client := d.client
		d.mu.Unlock()
		return client, nil
	}
	call := d.pending
	if call == nil {
		hctx, cancel := context.WithCancel(context.Background())
		call = &handshakeCall{cancel: cancel, done: make(chan struct{})}
		d.pending = call
		go d.connect(hctx, call)
	}
	d.mu.Unlock()

	select {
	case <-call.done:
		return call.client, call.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// connect runs call's handshake and publishes the result.  A session
// that completes after Close is discarded.
func (d *SSHDialer) connect(ctx context.Context, call *handshakeCall) {
	defer call.cancel()
	client, err := d.handshake(ctx)

	d.mu.Lock()
	switch {
	case d.pending != call:
		if client != nil {
			client.Close() //nolint:errcheck
		}
		client, err = nil, ncerr.WrapSSH("handshake", d.config.Host, d.config.Port, net.ErrClosed)
	case err == nil:
		d.pending = nil
		d.client = client
		go d.watch(client)
	default:
		d.pending = nil
	}
	d.mu.Unlock()

	call.client, call.err = client, err
	close(call.done)
}

// handshake dials the gateway and runs the SSH handshake, bounded by
// the configured timeout and aborted when ctx is cancelled.
func (d *SSHDialer) handshake(ctx context.Context) (*ssh.Client, error) {
	cfg := d.config
	auth, err := AuthMethods(cfg)
	if err != nil {
		return nil, ncerr.WrapSSH("auth", cfg.Host, cfg.Port, err)
	}
	hostKeys, err := HostKeyCallback(cfg)
	if err != nil {
		return nil, ncerr.WrapSSH("hostkey", cfg.Host, cfg.Port, err)
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	d.logger.Verbose("connecting to gateway %s as %q", addr, cfg.User)

	gateway := &TCPDialer{Timeout: cfg.Timeout, LocalAddr: cfg.LocalAddr}
	tcpConn, err := gateway.Dial(ctx, "tcp", addr)
	if err != nil {
		return nil, ncerr.Wrap(ncerr.OpConnect, addr, err)
	}

	// NewClientConn honours neither ctx nor ClientConfig.Timeout.
	stop := context.AfterFunc(ctx, func() { tcpConn.Close() }) //nolint:errcheck
	tcpConn.SetDeadline(time.Now().Add(cfg.Timeout))           //nolint:errcheck

	conn, chans, reqs, err := ssh.NewClientConn(tcpConn, addr, &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKeys,
		Timeout:         cfg.Timeout,
	})
	if err != nil {
		stop()
		tcpConn.Close() //nolint:errcheck
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, ncerr.WrapSSH("handshake", cfg.Host, cfg.Port, err)
	}
	if !stop() {
		conn.Close() //nolint:errcheck
		return nil, ncerr.WrapSSH("handshake", cfg.Host, cfg.Port, ctx.Err())
	}
	tcpConn.SetDeadline(time.Time{}) //nolint:errcheck

	d.logger.Verbose("gateway %s ready (%s)", addr, conn.ServerVersion())
	return ssh.NewClient(conn, chans, reqs), nil
}

// watch forgets client once its connection ends so the next Dial
// reconnects.
func (d *SSHDialer) watch(client *ssh.Client) {
	err := client.Wait()

	d.mu.Lock()
	if d.client == client {
		d.client = nil
	}
	d.mu.Unlock()

	if err != nil {
		d.logger.Debug("gateway session ended: %v", err)
	} else {
		d.logger.Debug("gateway session ended")
	}
}

// String identifies the gateway for log messages.
func (d *SSHDialer) String() string {
	return fmt.Sprintf("ssh://%s@%s:%d", d.config.User, d.config.Host, d.config.Port)
}
