package auth

import (
	"context"
	"fmt"
	"net"

	"npsrv/internal/errors"
	"npsrv/internal/session"
)

// PeerCred authenticates unix-domain peers by the uid the kernel
// reports for the connecting process.
type PeerCred struct{}

// Authenticate records the peer's uid.  Connections that are not
// unix-domain sockets are rejected.
func (PeerCred) Authenticate(_ context.Context, sess *session.Session) error {
	uc, ok := sess.Conn.(*net.UnixConn)
	if !ok {
		return fmt.Errorf("peercred: %T is not a unix socket: %w", sess.Conn, errors.ErrUnsupported)
	}
	uid, err := peerUID(uc)
	if err != nil {
		return fmt.Errorf("peercred: %w", err)
	}
	sess.Logf("peer uid %d", uid)
	return sess.Trans.SetAuthUser(uid)
}
