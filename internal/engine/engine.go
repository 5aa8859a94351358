// Package engine defines what runs over an authenticated connection.
// Engines operate on a Session and move protocol bytes only through
// its transport, never through the raw connection.
package engine

import (
	"context"

	"npsrv/internal/session"
)

// Engine serves a single connection.
type Engine interface {
	// Serve blocks until the peer disconnects, an I/O error occurs,
	// or ctx is cancelled.  A clean disconnect returns nil.
	Serve(ctx context.Context, sess *session.Session) error
}
