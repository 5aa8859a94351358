package engine

import (
	"context"
	"fmt"
	"io"

	"npsrv/internal/session"
	"npsrv/util"
)

// Echo writes every byte it reads back to the peer.  It is the
// default engine and the one used to exercise the transport.
type Echo struct{}

// Serve echoes until EOF.
func (Echo) Serve(ctx context.Context, sess *session.Session) error {
	bp := util.GetBuf()
	defer util.PutBuf(bp)
	buf := *bp

	for {
		if ctx.Err() != nil {
			return nil
		}
		n, rerr := sess.Trans.Read(buf)
		if n > 0 {
			if err := writeFull(sess.Trans, buf[:n]); err != nil {
				return fmt.Errorf("echo: write: %w", err)
			}
		}
		if rerr != nil {
			if rerr == io.EOF || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("echo: read: %w", rerr)
		}
	}
}

// writeFull loops over short writes.
func writeFull(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}
