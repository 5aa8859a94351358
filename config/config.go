// Package config defines the runtime configuration for npsrv and
// provides helpers for parsing listen addresses.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"npsrv/util"
)

// Auth modes accepted by --auth.
const (
	AuthNone     = "none"
	AuthPeerCred = "peercred"
	AuthPassword = "password"
)

// Config holds every tuneable for the daemon.
type Config struct {
	// ── Listening ────────────────────────────────────────────────────
	Listen  []string      `yaml:"listen"`  // raw listen specs, see ParseListenAddr
	NoDNS   bool          `yaml:"no_dns"`  // skip reverse lookup of peer addresses
	Timeout time.Duration `yaml:"timeout"` // per-connection deadline, 0 = none

	// ExitLastUse stops the daemon once the last connection is closed.
	ExitLastUse bool `yaml:"exit_on_last_use"`

	// ── Authentication ───────────────────────────────────────────────
	Auth            string `yaml:"auth"`
	CredentialsFile string `yaml:"credentials"`

	// ── Engine ───────────────────────────────────────────────────────
	Execute string `yaml:"exec"`    // -e: program path
	Command string `yaml:"command"` // -c: shell command

	// ── Output ───────────────────────────────────────────────────────
	Verbose int `yaml:"verbose"`
}

// ExitOnLastUse reports whether the daemon should stop when no
// connections remain.  It lets *Config serve as a transport exit
// policy.
func (c *Config) ExitOnLastUse() bool { return c.ExitLastUse }

// ListenAddrs parses every listen spec.
func (c *Config) ListenAddrs() ([]ListenAddr, error) {
	out := make([]ListenAddr, 0, len(c.Listen))
	for _, spec := range c.Listen {
		la, err := ParseListenAddr(spec)
		if err != nil {
			return nil, err
		}
		out = append(out, la)
	}
	return out, nil
}

// ── Listen addresses ─────────────────────────────────────────────────

// ListenAddr is a network/address pair suitable for net.Listen.
type ListenAddr struct {
	Network string // "tcp" or "unix"
	Address string
}

func (la ListenAddr) String() string {
	return la.Network + "://" + la.Address
}

// ParseListenAddr accepts "host:port", ":port", "host", "tcp://host:port",
// "unix:///path/to.sock" or a bare absolute path (unix socket).  A
// missing port defaults to DefaultPort.
func ParseListenAddr(spec string) (ListenAddr, error) {
	spec = strings.TrimSpace(spec)
	switch {
	case spec == "":
		return ListenAddr{}, fmt.Errorf("empty listen address")
	case strings.HasPrefix(spec, "unix://"):
		path := strings.TrimPrefix(spec, "unix://")
		if path == "" {
			return ListenAddr{}, fmt.Errorf("unix listen address %q has no path", spec)
		}
		return ListenAddr{Network: "unix", Address: path}, nil
	case strings.HasPrefix(spec, "/"):
		return ListenAddr{Network: "unix", Address: spec}, nil
	}

	hostport := strings.TrimPrefix(spec, "tcp://")
	_, port, err := net.SplitHostPort(hostport)
	if err != nil {
		host := hostport
		switch {
		case strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]"):
			host = host[1 : len(host)-1]
		case strings.Contains(host, ":"):
			return ListenAddr{}, fmt.Errorf("listen address %q: IPv6 literals must be bracketed, e.g. [::1]:%d", spec, DefaultPort)
		}
		return ListenAddr{Network: "tcp", Address: util.FormatAddr(host, DefaultPort)}, nil
	}

	if _, err := ParsePort(port); err != nil {
		return ListenAddr{}, fmt.Errorf("listen address %q: %w", spec, err)
	}
	return ListenAddr{Network: "tcp", Address: hostport}, nil
}

// ParsePort accepts a decimal port in 0-65535 (0 asks the kernel for an
// ephemeral port).
func ParsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	if port < 0 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range 0-65535", port)
	}
	return port, nil
}
