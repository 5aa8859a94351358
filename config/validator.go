package config

import (
	"fmt"

	"npsrv/internal/errors"
)

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if len(c.Listen) == 0 {
		return &errors.ConfigError{
			Field:   "listen",
			Message: "at least one listen address is required",
			Hint:    "use -l 0.0.0.0:564 or -l unix:///run/npsrv.sock",
		}
	}

	addrs, err := c.ListenAddrs()
	if err != nil {
		return &errors.ConfigError{Field: "listen", Message: err.Error()}
	}

	if c.Execute != "" && c.Command != "" {
		return fmt.Errorf("-e and -c are mutually exclusive")
	}

	if c.Timeout < 0 {
		return &errors.ConfigError{Field: "timeout", Value: c.Timeout, Message: "must not be negative"}
	}

	switch c.Auth {
	case "", AuthNone:
	case AuthPassword:
		if c.CredentialsFile == "" {
			return &errors.ConfigError{
				Field:   "credentials",
				Message: "required with --auth=password",
				Hint:    "create entries with npsrv --hash-password",
			}
		}
	case AuthPeerCred:
		if !hasUnix(addrs) {
			return &errors.ConfigError{
				Field:   "auth",
				Value:   c.Auth,
				Message: "peer credentials need a unix-domain listener",
				Hint:    "add -l unix:///path/to/npsrv.sock",
			}
		}
	default:
		return &errors.ConfigError{
			Field:   "auth",
			Value:   c.Auth,
			Message: "unknown auth mode",
			Hint:    "use none, peercred or password",
		}
	}

	return nil
}

func hasUnix(addrs []ListenAddr) bool {
	for _, a := range addrs {
		if a.Network == "unix" {
			return true
		}
	}
	return false
}
