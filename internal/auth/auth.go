// Package auth holds the collaborators that establish who is on the
// other end of a connection and record it on the transport with
// SetAuthUser.
package auth

import (
	"context"

	"npsrv/internal/session"
)

// Authenticator verifies the peer of a session.  On success it may
// record a user on sess.Trans; on failure it returns an error and the
// caller destroys the transport.
type Authenticator interface {
	Authenticate(ctx context.Context, sess *session.Session) error
}

// None accepts every peer and records no user.
type None struct{}

// Authenticate always succeeds.
func (None) Authenticate(context.Context, *session.Session) error { return nil }
