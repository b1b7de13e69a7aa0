package core

import (
	"fmt"
	"net"

	"nsock/config"
	"nsock/internal/metrics"
	"nsock/internal/transport"
	"nsock/util"
)

// Build constructs the appropriate Mode from the given configuration.
// m collects the session's metrics and may be nil.
func Build(cfg *config.Config, logger *util.Logger, m *metrics.Collector) (Mode, error) {
	local := IO{
		Hex:        cfg.Hex,
		CloseOnEOF: cfg.CloseOnEOF,
		Grace:      config.DefaultGracePeriod,
		BufferSize: cfg.BufferSize,
		Metrics:    m,
		Logger:     logger,
	}
	if cfg.Listen {
		return buildListen(cfg, local)
	}
	return buildConnect(cfg, local)
}

// ── mode builders ────────────────────────────────────────────────────

func buildConnect(cfg *config.Config, local IO) (Mode, error) {
	host, err := resolve(cfg.Host, cfg.NoDNS)
	if err != nil {
		return nil, err
	}

	mode := &ConnectMode{
		IO:         local,
		Host:       host,
		Port:       cfg.Port,
		SourceAddr: cfg.SourceAddr,
		SourcePort: cfg.LocalPort,
	}
	if cfg.TunnelEnabled {
		mode.Dialer = buildSSHDialer(cfg, local.Logger)
	}
	return mode, nil
}

func buildListen(cfg *config.Config, local IO) (Mode, error) {
	return &ListenMode{
		IO:       local,
		Address:  cfg.BindAddr(),
		Port:     cfg.LocalPort,
		KeepOpen: cfg.KeepOpen,
	}, nil
}

// ── shared helpers ───────────────────────────────────────────────────

// resolve turns host into the numeric address a socket connects to.
func resolve(host string, noDNS bool) (string, error) {
	addrs, err := util.LookupHost(host, noDNS)
	if err != nil {
		return "", err
	}
	if len(addrs) == 0 {
		return "", fmt.Errorf("resolve %s: no addresses", host)
	}
	// Prefer IPv4, as most services listen on it.
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && ip.To4() != nil {
			return a, nil
		}
	}
	return addrs[0], nil
}

func buildSSHDialer(cfg *config.Config, logger *util.Logger) *transport.SSHDialer {
	sshCfg := &transport.SSHConfig{
		User:          cfg.TunnelUser,
		Host:          cfg.TunnelHost,
		Port:          cfg.TunnelPort,
		KeyPath:       cfg.SSHKeyPath,
		PromptPass:    cfg.SSHPassword,
		UseAgent:      cfg.UseSSHAgent,
		StrictHostKey: cfg.StrictHostKey,
		KnownHosts:    cfg.KnownHostsPath,
		Timeout:       cfg.Timeout,
	}
	if cfg.SourceAddr != "" || cfg.LocalPort != 0 {
		ip := net.ParseIP(cfg.SourceAddr)
		if ip == nil {
			ip = net.IPv4zero
		}
		sshCfg.LocalAddr = &net.TCPAddr{IP: ip, Port: cfg.LocalPort}
	}
	return transport.NewSSHDialer(sshCfg, logger)
}
