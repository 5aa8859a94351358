package core

import (
	"context"
	"sync"
	"sync/atomic"

	"npsrv/util"
)

// Supervisor turns the transport's last-close event into an orderly
// shutdown of the serve context.  Transports call LastClosed; the
// daemon exits with status 0 once the context unwinds.
type Supervisor struct {
	cancel context.CancelFunc
	logger *util.Logger

	once  sync.Once
	fired atomic.Bool
	done  chan struct{}
}

// NewSupervisor returns a Supervisor that calls cancel on the first
// LastClosed.
func NewSupervisor(cancel context.CancelFunc, logger *util.Logger) *Supervisor {
	return &Supervisor{
		cancel: cancel,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// LastClosed requests shutdown.  Only the first call has an effect.
func (s *Supervisor) LastClosed() {
	s.once.Do(func() {
		s.fired.Store(true)
		if s.logger != nil {
			s.logger.Info("exiting on last unmount")
		}
		close(s.done)
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// Fired reports whether LastClosed has been called.
func (s *Supervisor) Fired() bool { return s.fired.Load() }

// Done is closed by the first LastClosed.
func (s *Supervisor) Done() <-chan struct{} { return s.done }
