// Package cmd wires up the CLI flags and dispatches to the nsock core.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"nsock/config"
	"nsock/internal/core"
	"nsock/internal/metrics"
	"nsock/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X nsock/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Execute parses args and runs the selected nsock mode.
func Execute(ctx context.Context, args []string) error {
	return execute(ctx, args, os.Stdout, os.Stderr)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg := config.Default()
	config.LoadFromEnv(cfg)

	fs := flag.NewFlagSet("nsock", flag.ContinueOnError)
	fs.SetOutput(stderr)

	// ── connection ───────────────────────────────────────────────
	fs.BoolVarP(&cfg.Listen, "listen", "l", cfg.Listen, "Listen for inbound connections")
	fs.IntVarP(&cfg.LocalPort, "port", "p", cfg.LocalPort, "Local port (listen port, or source port when connecting)")
	fs.StringVarP(&cfg.SourceAddr, "source", "s", cfg.SourceAddr, "Local address to bind")
	fs.BoolVarP(&cfg.NoDNS, "no-dns", "n", cfg.NoDNS, "Numeric-only, no DNS resolution")
	fs.BoolVarP(&cfg.KeepOpen, "keep-open", "k", cfg.KeepOpen, "Keep accepting connections (with -l)")
	fs.BoolVarP(&cfg.CloseOnEOF, "close-on-eof", "N", cfg.CloseOnEOF, "Close the connection once stdin ends")
	fs.IntVarP(&cfg.BufferSize, "buffer-size", "b", cfg.BufferSize, "Receive buffer size in bytes")

	timeoutSec := int(cfg.Timeout / time.Second)
	fs.IntVarP(&timeoutSec, "timeout", "w", timeoutSec, "SSH gateway connect timeout in seconds")

	// ── SSH tunnel ───────────────────────────────────────────────
	fs.StringVarP(&cfg.TunnelSpec, "tunnel", "T", cfg.TunnelSpec, "Connect through an SSH gateway [user@]host[:port]")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")

	// ── output ───────────────────────────────────────────────────
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVarP(&cfg.Hex, "hex", "x", cfg.Hex, "Hex-dump received data")
	fs.BoolVar(&cfg.Stats, "stats", cfg.Stats, "Print session metrics as JSON on exit")
	fs.BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "Validate the configuration and exit")

	var showVersion, showHelp bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs, stderr) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp || len(args) == 0 {
		printUsage(fs, stderr)
		return nil
	}
	if showVersion {
		fmt.Fprintf(stdout, "nsock %s\n", version)
		return nil
	}

	cfg.Timeout = time.Duration(timeoutSec) * time.Second

	if err := parsePositional(cfg, fs.Args()); err != nil {
		return err
	}
	if err := cfg.ApplyTunnelSpec(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.DryRun {
		printConfig(stdout, cfg)
		return nil
	}

	// ── build and run ────────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)
	m := metrics.New()

	mode, err := core.Build(cfg, logger, m)
	if err != nil {
		return err
	}
	err = mode.Run(ctx)

	if cfg.Stats {
		fmt.Fprintln(stderr, m.JSON())
	}
	return err
}

// ── helpers ──────────────────────────────────────────────────────────

// parsePositional fills the address and port from the arguments left
// after flags.  Listen mode takes [address] [port], where a lone
// decimal argument is the port.  Connect mode takes host port.
func parsePositional(cfg *config.Config, remaining []string) error {
	if cfg.Listen {
		switch len(remaining) {
		case 0: // nsock -l [-p PORT]
		case 1:
			if isDecimal(remaining[0]) {
				return setListenPort(cfg, remaining[0])
			}
			cfg.ListenAddr = remaining[0]
		case 2:
			cfg.ListenAddr = remaining[0]
			return setListenPort(cfg, remaining[1])
		default:
			return fmt.Errorf("too many arguments for listen mode")
		}
		return nil
	}

	switch len(remaining) {
	case 0:
		// Host may come from NSOCK_HOST; Validate reports it missing.
		return nil
	case 1:
		if cfg.Host != "" && isDecimal(remaining[0]) {
			// nsock PORT with NSOCK_HOST set
			return setPort(cfg, remaining[0])
		}
		cfg.Host = remaining[0]
		return nil
	case 2:
		cfg.Host = remaining[0]
		return setPort(cfg, remaining[1])
	}
	return fmt.Errorf("too many arguments: expected <host> <port>")
}

func setPort(cfg *config.Config, spec string) error {
	port, err := config.ParsePort(spec)
	if err != nil {
		return fmt.Errorf("port: %w", err)
	}
	cfg.Port = port
	return nil
}

func setListenPort(cfg *config.Config, spec string) error {
	if cfg.LocalPort != 0 {
		return fmt.Errorf("listen port given twice (positional and -p)")
	}
	port, err := config.ParsePort(spec)
	if err != nil {
		return fmt.Errorf("port: %w", err)
	}
	cfg.LocalPort = port
	return nil
}

func isDecimal(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

func printConfig(w io.Writer, cfg *config.Config) {
	var b strings.Builder
	if cfg.Listen {
		port := "ephemeral"
		if cfg.LocalPort != 0 {
			port = strconv.Itoa(cfg.LocalPort)
		}
		fmt.Fprintf(&b, "mode:        listen\n")
		fmt.Fprintf(&b, "address:     %s\n", cfg.BindAddr())
		fmt.Fprintf(&b, "port:        %s\n", port)
		fmt.Fprintf(&b, "keep-open:   %v\n", cfg.KeepOpen)
	} else {
		fmt.Fprintf(&b, "mode:        connect\n")
		fmt.Fprintf(&b, "remote:      %s\n", util.FormatAddr(cfg.Host, cfg.Port))
		if cfg.SourceAddr != "" || cfg.LocalPort != 0 {
			fmt.Fprintf(&b, "source:      %s\n", util.FormatAddr(cfg.SourceAddr, cfg.LocalPort))
		}
		if cfg.TunnelEnabled {
			fmt.Fprintf(&b, "tunnel:      %s@%s\n", cfg.TunnelUser, util.FormatAddr(cfg.TunnelHost, cfg.TunnelPort))
		}
	}
	fmt.Fprintf(&b, "buffer-size: %d\n", cfg.BufferSize)
	fmt.Fprintf(&b, "close-on-eof: %v\n", cfg.CloseOnEOF)
	fmt.Fprint(w, b.String())
}

func printUsage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintf(w, `nsock – event-driven TCP socket tool v%s

Usage:
  nsock [options] <host> <port>               Connect
  nsock -l [options] [address] [port]         Listen
  nsock -T user@gateway <host> <port>         Connect through SSH

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(w, `
Examples:
  nsock example.com 80                        TCP connect
  nsock -l 8080                               Listen on 8080
  nsock -lk 127.0.0.1 9000                    Serve connections one after another
  nsock -T admin@bastion 10.0.0.5 5432        Connect via SSH gateway
  echo "hello" | nsock -N host.example.com 9000
`)
}
