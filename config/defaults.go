package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, config file parsing, and environment variable
// loading.

const (
	// DefaultPort is the IANA port for 9P file service.
	DefaultPort = 564

	// DefaultListenAddr is used when no listen address is configured.
	DefaultListenAddr = "0.0.0.0:564"

	// DefaultAuth accepts every peer without authentication.
	DefaultAuth = AuthNone

	// DefaultAuthTimeout bounds the password handshake so an idle peer
	// cannot hold a connection slot before authenticating.
	DefaultAuthTimeout = 10 * time.Second

	// DefaultAcceptBackoff is the first pause after a temporary accept
	// error (EMFILE and friends).
	DefaultAcceptBackoff = 5 * time.Millisecond

	// DefaultMaxAcceptBackoff caps the pause between accept retries.
	DefaultMaxAcceptBackoff = time.Second

	// DefaultVerbose is the normal log level: warnings and lifecycle
	// messages such as the last-use shutdown are printed.
	DefaultVerbose = 1

	// DefaultGracePeriod is how long shutdown waits for connections to
	// finish after the listeners close.
	DefaultGracePeriod = 5 * time.Second
)

// Default returns a Config populated with defaults.
func Default() *Config {
	return &Config{
		Listen:  []string{DefaultListenAddr},
		Auth:    DefaultAuth,
		Verbose: DefaultVerbose,
	}
}
