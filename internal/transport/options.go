package transport

import (
	"npsrv/internal/metrics"
	"npsrv/internal/registry"
)

// Option configures a Conn at construction.
type Option func(*Conn)

// WithRegistry counts the transport in r instead of registry.Default.
func WithRegistry(r *registry.Registry) Option {
	return func(c *Conn) {
		if r != nil {
			c.registry = r
		}
	}
}

// WithExitPolicy sets the policy consulted by Destroy.
func WithExitPolicy(p ExitPolicy) Option {
	return func(c *Conn) {
		if p != nil {
			c.policy = p
		}
	}
}

// WithLastClose sets the function Destroy calls when it drops the
// registry to zero while the exit policy is enabled.
func WithLastClose(fn func()) Option {
	return func(c *Conn) { c.onLastClose = fn }
}

// WithMetrics records connection and byte counts in m.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Conn) { c.metrics = m }
}
