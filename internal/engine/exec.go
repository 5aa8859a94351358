package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"time"

	"npsrv/internal/session"
)

// waitDelay bounds how long Serve waits for output from descendants
// that still hold the child's stdout after it has exited.
const waitDelay = time.Second

// Exec hands each connection to a child process whose stdio is bound
// to the transport.  Either Program (-e) or Command (-c) must be set.
type Exec struct {
	Program string // -e: execute a program directly
	Command string // -c: execute via the system shell
}

// Serve starts the child and waits for it to exit.  The peer identity
// is exported to the child as NPSRV_PEER_HOST, NPSRV_PEER_IP and
// NPSRV_PEER_SERVICE, and the authenticated uid as NPSRV_AUTH_UID.
//
// Serve returns once the child has exited, even if the peer is idle.
// The connection's read deadline is expired on the way out.
func (e *Exec) Serve(ctx context.Context, sess *session.Session) error {
	var cmd *exec.Cmd

	switch {
	case e.Command != "":
		if runtime.GOOS == "windows" {
			cmd = exec.CommandContext(ctx, "cmd.exe", "/C", e.Command)
		} else {
			cmd = exec.CommandContext(ctx, "/bin/sh", "-c", e.Command)
		}
	case e.Program != "":
		cmd = exec.CommandContext(ctx, e.Program)
	default:
		return fmt.Errorf("no command specified for exec engine")
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("exec stdin: %w", err)
	}
	cmd.Stdout = sess.Trans
	cmd.Stderr = sess.Trans
	cmd.Env = append(os.Environ(), childEnv(sess)...)
	cmd.WaitDelay = waitDelay

	sess.Logger.Debug("exec: %s", cmd.String())

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("exec %q: %w", cmd.Path, err)
	}

	// The copy blocks in Trans.Read; os/exec only closes its own end.
	copied := make(chan struct{})
	go func() {
		defer close(copied)
		io.Copy(stdin, sess.Trans) //nolint:errcheck
		stdin.Close()
	}()

	err = cmd.Wait()
	if sess.Conn != nil {
		sess.Conn.SetReadDeadline(time.Now()) //nolint:errcheck
	}
	<-copied

	if errors.Is(err, exec.ErrWaitDelay) {
		err = nil
	}
	if err != nil {
		return fmt.Errorf("exec %q: %w", cmd.Path, err)
	}
	return nil
}

func childEnv(sess *session.Session) []string {
	env := []string{
		"NPSRV_PEER_HOST=" + sess.Trans.Host(),
		"NPSRV_PEER_IP=" + sess.Trans.IP(),
		"NPSRV_PEER_SERVICE=" + sess.Trans.Service(),
	}
	if uid, ok := sess.Trans.AuthUser(); ok {
		env = append(env, "NPSRV_AUTH_UID="+strconv.FormatUint(uint64(uid), 10))
	}
	return env
}
