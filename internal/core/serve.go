package core

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"npsrv/config"
	"npsrv/internal/auth"
	"npsrv/internal/engine"
	"npsrv/internal/errors"
	"npsrv/internal/metrics"
	"npsrv/internal/registry"
	"npsrv/internal/retry"
	"npsrv/internal/session"
	"npsrv/internal/transport"
	"npsrv/util"
)

// ServeMode accepts connections on every listener and runs the
// authenticator and then the engine on each one, in its own goroutine.
//
// Run returns nil when ctx is cancelled or, with an exit policy in
// force, when the last connection closes.
type ServeMode struct {
	Listeners     []config.ListenAddr
	Timeout       time.Duration // per-connection deadline, 0 = none
	NoDNS         bool
	Authenticator auth.Authenticator // nil = auth.None
	Engine        engine.Engine      // nil = engine.Echo
	Registry      *registry.Registry // nil = registry.Default
	Policy        transport.ExitPolicy
	Metrics       *metrics.Collector
	Logger        *util.Logger

	// Ready, if set, is called with the bound addresses once every
	// listener is open.
	Ready func(addrs []net.Addr)

	// GracePeriod bounds the wait for in-flight connections after the
	// listeners close (default config.DefaultGracePeriod).
	GracePeriod time.Duration
}

// Run opens the listeners and serves until shutdown.
func (m *ServeMode) Run(ctx context.Context) error {
	if len(m.Listeners) == 0 {
		return fmt.Errorf("no listen addresses")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	sup := NewSupervisor(cancel, m.Logger)

	lns := make([]net.Listener, 0, len(m.Listeners))
	addrs := make([]net.Addr, 0, len(m.Listeners))
	for _, la := range m.Listeners {
		ln, err := listen(la)
		if err != nil {
			for _, l := range lns {
				l.Close()
			}
			return errors.Wrap("listen", la.String(), err)
		}
		m.Logger.Verbose("listening on %s", la)
		lns = append(lns, ln)
		addrs = append(addrs, ln.Addr())
	}
	if m.Ready != nil {
		m.Ready(addrs)
	}

	// Shut the listeners down when the context expires.
	go func() {
		<-ctx.Done()
		for _, ln := range lns {
			ln.Close()
		}
	}()

	var (
		loops sync.WaitGroup
		conns sync.WaitGroup
		errMu sync.Mutex
		first error
	)
	for i, ln := range lns {
		loops.Add(1)
		go func(ln net.Listener, log *util.Logger) {
			defer loops.Done()
			if err := m.acceptLoop(ctx, ln, log, sup, &conns); err != nil {
				errMu.Lock()
				if first == nil {
					first = err
				}
				errMu.Unlock()
				cancel()
			}
		}(ln, m.Logger.Named(m.Listeners[i].String()))
	}
	loops.Wait()

	m.drain(&conns)
	return first
}

// ── Accept ───────────────────────────────────────────────────────────

// acceptLoop serves ln until ctx ends.  log is tagged with the
// listener's address and shared by its connections.
func (m *ServeMode) acceptLoop(ctx context.Context, ln net.Listener, log *util.Logger, sup *Supervisor, conns *sync.WaitGroup) error {
	b := retry.AcceptBackoff(config.DefaultAcceptBackoff, config.DefaultMaxAcceptBackoff)
	b.OnRetry = func(_ int, err error, wait time.Duration) {
		log.Warn("%v; retrying in %v", err, wait)
		m.Metrics.RecordError(err.Error())
	}

	for {
		var conn net.Conn
		err := b.Do(ctx, func(int) error {
			c, err := ln.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return retry.Permanent(ctx.Err())
				}
				nerr := errors.Wrap("accept", ln.Addr().String(), err)
				if !nerr.Retryable {
					return retry.Permanent(nerr)
				}
				return nerr
			}
			conn = c
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		conns.Add(1)
		go func() {
			defer conns.Done()
			m.serveConn(ctx, conn, log, sup)
		}()
	}
}

// drain waits for in-flight connections, up to the grace period.
func (m *ServeMode) drain(conns *sync.WaitGroup) {
	grace := m.GracePeriod
	if grace <= 0 {
		grace = config.DefaultGracePeriod
	}

	done := make(chan struct{})
	go func() {
		conns.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		m.Logger.Warn("connections still open after %v, giving up", grace)
	}
}

// ── Per connection ───────────────────────────────────────────────────

func (m *ServeMode) serveConn(ctx context.Context, conn net.Conn, log *util.Logger, sup *Supervisor) {
	// Closing the conn unblocks the engine when the daemon shuts down.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	var deadline time.Time
	if m.Timeout > 0 {
		deadline = time.Now().Add(m.Timeout)
		conn.SetDeadline(deadline) //nolint:errcheck
	}

	host, ip, service, err := util.PeerIdentity(ctx, conn, m.NoDNS)
	if err != nil {
		log.Warn("connection from %v: %v", conn.RemoteAddr(), err)
		m.Metrics.RecordError(err.Error())
		conn.Close()
		return
	}

	trans, err := transport.New(conn, host, ip, service,
		transport.WithRegistry(m.Registry),
		transport.WithExitPolicy(m.Policy),
		transport.WithLastClose(sup.LastClosed),
		transport.WithMetrics(m.Metrics),
	)
	if err != nil {
		log.Warn("connection from %v: %v", conn.RemoteAddr(), err)
		m.Metrics.RecordError(err.Error())
		return
	}

	sess := session.New(conn, trans, log)
	defer func() {
		if err := trans.Destroy(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Debug("[%s] close: %v", host, err)
		}
	}()
	sess.Logf("connected from %s port %s (%s)", ip, service, trans.ID())

	if err := m.authenticate(ctx, sess, deadline); err != nil {
		m.Metrics.AuthFailed()
		log.Warn("[%s] %v", host, err)
		return
	}

	eng := m.Engine
	if eng == nil {
		eng = engine.Echo{}
	}
	if err := eng.Serve(ctx, sess); err != nil && ctx.Err() == nil {
		log.Warn("[%s] %v", host, err)
		m.Metrics.RecordError(err.Error())
	}
	sess.Logf("disconnected")
}

// authenticate runs the authenticator under DefaultAuthTimeout, then
// restores the connection deadline.
func (m *ServeMode) authenticate(ctx context.Context, sess *session.Session, deadline time.Time) error {
	a := m.Authenticator
	if a == nil {
		return nil
	}

	authDeadline := time.Now().Add(config.DefaultAuthTimeout)
	if !deadline.IsZero() && deadline.Before(authDeadline) {
		authDeadline = deadline
	}
	sess.Conn.SetReadDeadline(authDeadline) //nolint:errcheck
	defer sess.Conn.SetReadDeadline(deadline) //nolint:errcheck

	return a.Authenticate(ctx, sess)
}

// listen opens la.  A stale unix socket file left by an earlier run is
// removed first.
func listen(la config.ListenAddr) (net.Listener, error) {
	if la.Network == "unix" {
		if fi, err := os.Lstat(la.Address); err == nil && fi.Mode()&os.ModeSocket != 0 {
			os.Remove(la.Address) //nolint:errcheck
		}
	}
	return net.Listen(la.Network, la.Address)
}
