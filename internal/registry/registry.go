// Package registry keeps the process-wide count of live connection
// transports.
//
// The registry is a passive counter: it never performs I/O and never
// decides what happens when the count reaches zero.  That decision
// belongs to whoever calls Decrement (the transport's destroy path).
package registry

import "sync/atomic"

// Registry counts live transports.  All methods are safe for
// concurrent use.
type Registry struct {
	count atomic.Int64
}

// Default is the process-wide registry used when a transport is built
// without an explicit one.
var Default = New() //nolint:gochecknoglobals

// New returns an empty Registry.
func New() *Registry {
	return &Registry{}
}

// Increment records a newly constructed transport.
func (r *Registry) Increment() {
	r.count.Add(1)
}

// Decrement records a destroyed transport and returns the resulting
// count.
func (r *Registry) Decrement() int64 {
	return r.count.Add(-1)
}

// Count returns the number of live transports.
func (r *Registry) Count() int64 {
	return r.count.Load()
}
