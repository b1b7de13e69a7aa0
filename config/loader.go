package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the NSOCK_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("NSOCK_HOST"); v != "" {
		cfg.Host = v
	}
	if v := envInt("NSOCK_PORT"); v > 0 {
		cfg.LocalPort = v
	}
	if v := os.Getenv("NSOCK_SOURCE"); v != "" {
		cfg.SourceAddr = v
	}
	if envBool("NSOCK_LISTEN") {
		cfg.Listen = true
	}
	if envBool("NSOCK_NO_DNS") {
		cfg.NoDNS = true
	}
	if envBool("NSOCK_KEEP_OPEN") {
		cfg.KeepOpen = true
	}
	if envBool("NSOCK_CLOSE_ON_EOF") {
		cfg.CloseOnEOF = true
	}
	if v := envInt("NSOCK_BUFFER_SIZE"); v > 0 {
		cfg.BufferSize = v
	}

	// SSH tunnel
	if v := os.Getenv("NSOCK_TUNNEL"); v != "" {
		cfg.TunnelSpec = v
	}
	if v := os.Getenv("NSOCK_SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if envBool("NSOCK_SSH_PASSWORD") {
		cfg.SSHPassword = true
	}
	if envBool("NSOCK_SSH_AGENT") {
		cfg.UseSSHAgent = true
	}
	if envBool("NSOCK_STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := os.Getenv("NSOCK_KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}
	if v := envInt("NSOCK_TIMEOUT"); v > 0 {
		cfg.Timeout = secondsDuration(v)
	}

	// Output
	if v := envInt("NSOCK_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
	if envBool("NSOCK_HEX") {
		cfg.Hex = true
	}
	if envBool("NSOCK_STATS") {
		cfg.Stats = true
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
