// Package session represents a single connection lifecycle, binding
// the accepted network connection to its transport and the logger
// shared by the collaborators that handle it.
//
// Authenticators and engines operate on sessions rather than raw
// connections.  The raw Conn is kept for collaborators that need
// socket-level facts (peer credentials, deadlines); all protocol bytes
// flow through Trans.
package session

import (
	"net"

	"npsrv/internal/transport"
	"npsrv/util"
)

// Session encapsulates the runtime context for a single connection.
type Session struct {
	Conn   net.Conn
	Trans  *transport.Conn
	Logger *util.Logger
}

// New creates a Session bound to the given connection and transport.
func New(conn net.Conn, trans *transport.Conn, logger *util.Logger) *Session {
	return &Session{
		Conn:   conn,
		Trans:  trans,
		Logger: logger,
	}
}

// Logf logs at verbose level, prefixed with the peer identity.
func (s *Session) Logf(format string, args ...interface{}) {
	s.Logger.Verbose("[%s] "+format, append([]interface{}{s.Trans.Host()}, args...)...)
}
