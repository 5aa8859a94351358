// Package transport binds an accepted byte stream and the identity of
// the peer behind it to the read/write/destroy contract that protocol
// engines drive.  Engines never see the stream itself; they see a
// Transport, which behaves the same whether the bytes arrive over a
// TCP socket, a unix-domain socket or a pipe.
//
// Every live transport is counted in a registry.Registry.  When the
// last one is destroyed and the exit policy is enabled, the transport
// hands the event to a supervisor through a callback rather than
// acting on it itself.
package transport

import "io"

// Stream is the raw byte stream a transport takes ownership of.
// net.Conn and *os.File both satisfy it.
type Stream interface {
	io.Reader
	io.Writer
	io.Closer
}

// Transport is the contract consumed by a protocol engine.
type Transport interface {
	// Read forwards to the stream's Read.  Short reads are returned as
	// is; the engine loops if it needs an exact length.
	Read(p []byte) (int, error)

	// Write forwards to the stream's Write with the same policy.
	Write(p []byte) (int, error)

	// Destroy releases the stream and deregisters the transport.  It
	// must be called once, after the engine has stopped reading and
	// writing.
	Destroy() error
}

// ExitPolicy reports whether the process should stop once no
// connections remain.
type ExitPolicy interface {
	ExitOnLastUse() bool
}

// PolicyFunc adapts a plain function to ExitPolicy.
type PolicyFunc func() bool

// ExitOnLastUse calls f.
func (f PolicyFunc) ExitOnLastUse() bool { return f() }

// Never is an ExitPolicy that is always disabled.
var Never ExitPolicy = PolicyFunc(func() bool { return false }) //nolint:gochecknoglobals
