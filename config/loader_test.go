package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadFromEnv_Host(t *testing.T) {
	t.Setenv("NSOCK_HOST", "test.example.com")
	cfg := &Config{}
	LoadFromEnv(cfg)
	if cfg.Host != "test.example.com" {
		t.Errorf("Host = %q, want %q", cfg.Host, "test.example.com")
	}
}

func TestLoadFromEnv_Port(t *testing.T) {
	t.Setenv("NSOCK_PORT", "8080")
	cfg := &Config{}
	LoadFromEnv(cfg)
	if cfg.LocalPort != 8080 {
		t.Errorf("LocalPort = %d, want 8080", cfg.LocalPort)
	}
}

func TestLoadFromEnv_Booleans(t *testing.T) {
	tests := []struct {
		key    string
		values []string
		get    func(*Config) bool
	}{
		{"NSOCK_LISTEN", []string{"1", "true", "yes", "TRUE", "Yes"}, func(c *Config) bool { return c.Listen }},
		{"NSOCK_NO_DNS", []string{"true"}, func(c *Config) bool { return c.NoDNS }},
		{"NSOCK_KEEP_OPEN", []string{"1"}, func(c *Config) bool { return c.KeepOpen }},
		{"NSOCK_CLOSE_ON_EOF", []string{"yes"}, func(c *Config) bool { return c.CloseOnEOF }},
		{"NSOCK_HEX", []string{"1"}, func(c *Config) bool { return c.Hex }},
		{"NSOCK_STATS", []string{"true"}, func(c *Config) bool { return c.Stats }},
	}

	for _, tt := range tests {
		for _, v := range tt.values {
			t.Run(tt.key+"="+v, func(t *testing.T) {
				t.Setenv(tt.key, v)
				cfg := &Config{}
				LoadFromEnv(cfg)
				if !tt.get(cfg) {
					t.Errorf("%s=%s should set the field", tt.key, v)
				}
			})
		}
	}
}

func TestLoadFromEnv_BufferAndSource(t *testing.T) {
	t.Setenv("NSOCK_BUFFER_SIZE", "4096")
	t.Setenv("NSOCK_SOURCE", "127.0.0.1")
	cfg := Default()
	LoadFromEnv(cfg)
	if cfg.BufferSize != 4096 {
		t.Errorf("BufferSize = %d, want 4096", cfg.BufferSize)
	}
	if cfg.SourceAddr != "127.0.0.1" {
		t.Errorf("SourceAddr = %q", cfg.SourceAddr)
	}
}

func TestLoadFromEnv_Timeout(t *testing.T) {
	t.Setenv("NSOCK_TIMEOUT", "10")
	cfg := &Config{}
	LoadFromEnv(cfg)
	if cfg.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.Timeout)
	}
}

func TestLoadFromEnv_SSHFields(t *testing.T) {
	t.Setenv("NSOCK_TUNNEL", "admin@bastion:2222")
	t.Setenv("NSOCK_SSH_KEY", "/home/user/.ssh/id_rsa")
	t.Setenv("NSOCK_SSH_PASSWORD", "true")
	t.Setenv("NSOCK_SSH_AGENT", "1")
	t.Setenv("NSOCK_STRICT_HOSTKEY", "yes")
	t.Setenv("NSOCK_KNOWN_HOSTS", "/custom/known_hosts")

	cfg := &Config{}
	LoadFromEnv(cfg)

	if cfg.TunnelSpec != "admin@bastion:2222" {
		t.Errorf("TunnelSpec = %q", cfg.TunnelSpec)
	}
	if cfg.SSHKeyPath != "/home/user/.ssh/id_rsa" {
		t.Errorf("SSHKeyPath = %q", cfg.SSHKeyPath)
	}
	if !cfg.SSHPassword {
		t.Error("SSHPassword should be true")
	}
	if !cfg.UseSSHAgent {
		t.Error("UseSSHAgent should be true")
	}
	if !cfg.StrictHostKey {
		t.Error("StrictHostKey should be true")
	}
	if cfg.KnownHostsPath != "/custom/known_hosts" {
		t.Errorf("KnownHostsPath = %q", cfg.KnownHostsPath)
	}
}

func TestLoadFromEnv_NoOverrideWhenEmpty(t *testing.T) {
	// Ensure no NSOCK_ vars are set.
	os.Clearenv()

	cfg := &Config{Host: "original", LocalPort: 1234, BufferSize: 512}
	LoadFromEnv(cfg)

	if cfg.Host != "original" {
		t.Errorf("Host was overridden: %q", cfg.Host)
	}
	if cfg.LocalPort != 1234 {
		t.Errorf("LocalPort was overridden: %d", cfg.LocalPort)
	}
	if cfg.BufferSize != 512 {
		t.Errorf("BufferSize was overridden: %d", cfg.BufferSize)
	}
}

func TestLoadFromEnv_InvalidIntIgnored(t *testing.T) {
	t.Setenv("NSOCK_PORT", "not-a-number")
	cfg := &Config{}
	LoadFromEnv(cfg)
	if cfg.LocalPort != 0 {
		t.Errorf("LocalPort should be 0 for invalid input, got %d", cfg.LocalPort)
	}
}

func TestLoadFromEnv_Verbose(t *testing.T) {
	t.Setenv("NSOCK_VERBOSE", "3")
	cfg := &Config{}
	LoadFromEnv(cfg)
	if cfg.Verbose != 3 {
		t.Errorf("Verbose = %d, want 3", cfg.Verbose)
	}
}
