package config

import (
	"testing"
)

// ── ParseTunnelSpec ──────────────────────────────────────────────────

func TestParseTunnelSpec(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantUser string
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{"full", "admin@bastion.example.com:2222", "admin", "bastion.example.com", 2222, false},
		{"no port", "root@gateway", "root", "gateway", 22, false},
		{"no user", "jump-host:2200", "", "jump-host", 2200, false},
		{"host only", "gateway.local", "", "gateway.local", 22, false},
		{"bad port", "user@host:999999", "", "", 0, true},
		{"empty", "", "", "", 0, true},
		{"colon only", ":", "", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, host, port, err := ParseTunnelSpec(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr = %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if user != tt.wantUser || host != tt.wantHost || port != tt.wantPort {
				t.Errorf("got (%q, %q, %d), want (%q, %q, %d)",
					user, host, port, tt.wantUser, tt.wantHost, tt.wantPort)
			}
		})
	}
}

func TestApplyTunnelSpec(t *testing.T) {
	t.Setenv("USER", "alice")

	cfg := &Config{TunnelSpec: "bastion:2200"}
	if err := cfg.ApplyTunnelSpec(); err != nil {
		t.Fatalf("ApplyTunnelSpec: %v", err)
	}
	if !cfg.TunnelEnabled || cfg.TunnelHost != "bastion" || cfg.TunnelPort != 2200 {
		t.Errorf("got enabled=%v host=%q port=%d", cfg.TunnelEnabled, cfg.TunnelHost, cfg.TunnelPort)
	}
	if cfg.TunnelUser != "alice" {
		t.Errorf("TunnelUser = %q, want $USER", cfg.TunnelUser)
	}

	none := &Config{}
	if err := none.ApplyTunnelSpec(); err != nil || none.TunnelEnabled {
		t.Errorf("empty spec: err=%v enabled=%v", err, none.TunnelEnabled)
	}

	bad := &Config{TunnelSpec: "host:0"}
	if err := bad.ApplyTunnelSpec(); err == nil {
		t.Error("expected error for port 0")
	}
}

// ── ParsePort ────────────────────────────────────────────────────────

func TestParsePort(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"80", 80, false},
		{"443", 443, false},
		{" 8080 ", 8080, false},
		{"65535", 65535, false},
		{"0", 0, true},
		{"70000", 0, true},
		{"abc", 0, true},
		{"80-90", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParsePort(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePort(%q) error = %v, wantErr = %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParsePort(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

// ── BindAddr ─────────────────────────────────────────────────────────

func TestBindAddr(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"listen default", Config{Listen: true}, DefaultListenAddress},
		{"listen positional", Config{Listen: true, ListenAddr: "127.0.0.1"}, "127.0.0.1"},
		{"listen source", Config{Listen: true, SourceAddr: "::1"}, "::1"},
		{"connect no source", Config{}, ""},
		{"connect source", Config{SourceAddr: "10.0.0.5"}, "10.0.0.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.BindAddr(); got != tt.want {
				t.Errorf("BindAddr() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ── Config.Validate ──────────────────────────────────────────────────

func TestValidate(t *testing.T) {
	valid := func(c Config) Config {
		if c.BufferSize == 0 {
			c.BufferSize = DefaultBufferSize
		}
		return c
	}

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "valid connect",
			cfg:     valid(Config{Host: "example.com", Port: 80}),
			wantErr: false,
		},
		{
			name:    "valid listen",
			cfg:     valid(Config{Listen: true, LocalPort: 8080}),
			wantErr: false,
		},
		{
			name:    "listen ephemeral port",
			cfg:     valid(Config{Listen: true}),
			wantErr: false,
		},
		{
			name:    "listen keep-open",
			cfg:     valid(Config{Listen: true, KeepOpen: true}),
			wantErr: false,
		},
		{
			name:    "connect no host",
			cfg:     valid(Config{Port: 80}),
			wantErr: true,
		},
		{
			name:    "connect no port",
			cfg:     valid(Config{Host: "example.com"}),
			wantErr: true,
		},
		{
			name:    "keep-open without listen",
			cfg:     valid(Config{Host: "x", Port: 80, KeepOpen: true}),
			wantErr: true,
		},
		{
			name:    "no-dns with name",
			cfg:     valid(Config{Host: "example.com", Port: 80, NoDNS: true}),
			wantErr: true,
		},
		{
			name:    "no-dns with address",
			cfg:     valid(Config{Host: "10.0.0.1", Port: 80, NoDNS: true}),
			wantErr: false,
		},
		{
			name:    "zero buffer",
			cfg:     Config{Host: "x", Port: 80},
			wantErr: true,
		},
		{
			name:    "bad source",
			cfg:     valid(Config{Host: "x", Port: 80, SourceAddr: "localhost"}),
			wantErr: true,
		},
		{
			name:    "local port out of range",
			cfg:     valid(Config{Listen: true, LocalPort: 70000}),
			wantErr: true,
		},
		{
			name:    "listen tunnel",
			cfg:     valid(Config{Listen: true, TunnelEnabled: true, TunnelHost: "gw"}),
			wantErr: true,
		},
		{
			name:    "listen on a name",
			cfg:     valid(Config{Listen: true, ListenAddr: "localhost"}),
			wantErr: true,
		},
		{
			name:    "tunnel without host",
			cfg:     valid(Config{Host: "x", Port: 80, TunnelEnabled: true}),
			wantErr: true,
		},
		{
			name:    "valid tunnel",
			cfg:     valid(Config{Host: "db", Port: 5432, TunnelEnabled: true, TunnelHost: "gw", TunnelUser: "u"}),
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.BufferSize != DefaultBufferSize {
		t.Errorf("BufferSize = %d, want %d", cfg.BufferSize, DefaultBufferSize)
	}
	if cfg.Timeout != DefaultConnTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout, DefaultConnTimeout)
	}
}
