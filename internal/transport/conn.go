package transport

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"npsrv/internal/errors"
	"npsrv/internal/metrics"
	"npsrv/internal/registry"
)

// Conn is the per-connection transport.  It owns its stream from the
// moment New returns successfully until Destroy.
//
// Conn is driven by a single goroutine.  Only the destroyed flag and
// the byte counters are safe to touch from elsewhere.
type Conn struct {
	id          string
	stream      Stream
	identity    Identity
	connectedAt time.Time

	registry    *registry.Registry
	policy      ExitPolicy
	onLastClose func()
	metrics     *metrics.Collector

	destroyed atomic.Bool
	bytesIn   atomic.Int64
	bytesOut  atomic.Int64

	authUID       uint32
	authenticated bool
}

var _ Transport = (*Conn)(nil)

// New takes ownership of stream and registers a transport for the peer
// described by host, ip and service.
//
// A nil stream is rejected before ownership is taken.  If the identity
// is invalid the stream is closed and nothing is registered.
func New(stream Stream, host, ip, service string, opts ...Option) (*Conn, error) {
	if stream == nil {
		return nil, errors.ErrNilStream
	}

	ident, err := NewIdentity(host, ip, service)
	if err != nil {
		stream.Close() //nolint:errcheck
		return nil, err
	}

	c := &Conn{
		id:          uuid.NewString(),
		stream:      stream,
		identity:    ident,
		connectedAt: time.Now(),
		registry:    registry.Default,
		policy:      Never,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.registry.Increment()
	c.metrics.ConnectionOpened()
	return c, nil
}

// Read forwards to the stream.  n and err are returned unmodified.
func (c *Conn) Read(p []byte) (int, error) {
	if c.destroyed.Load() {
		return 0, errors.ErrDestroyed
	}
	n, err := c.stream.Read(p)
	if n > 0 {
		c.bytesIn.Add(int64(n))
		c.metrics.BytesReceived(int64(n))
	}
	return n, err
}

// Write forwards to the stream.  n and err are returned unmodified.
func (c *Conn) Write(p []byte) (int, error) {
	if c.destroyed.Load() {
		return 0, errors.ErrDestroyed
	}
	n, err := c.stream.Write(p)
	if n > 0 {
		c.bytesOut.Add(int64(n))
		c.metrics.BytesSent(int64(n))
	}
	return n, err
}

// Destroy closes the stream and deregisters the transport.  If that
// leaves no live transports and the exit policy is enabled, the
// last-close function runs before Destroy returns.
//
// The stream's Close error is returned.  Calling Destroy again returns
// ErrDestroyed and has no other effect.
func (c *Conn) Destroy() error {
	if !c.destroyed.CompareAndSwap(false, true) {
		return errors.ErrDestroyed
	}

	err := c.stream.Close()
	c.metrics.ConnectionClosed()

	exit := c.policy.ExitOnLastUse()
	if c.registry.Decrement() == 0 {
		c.metrics.LastConnectionClosed()
		if exit && c.onLastClose != nil {
			c.onLastClose()
		}
	}
	return err
}

// Destroyed reports whether Destroy has been called.
func (c *Conn) Destroyed() bool { return c.destroyed.Load() }

// ID returns the connection's unique id.
func (c *Conn) ID() string { return c.id }

// Identity returns the peer identity record.
func (c *Conn) Identity() Identity { return c.identity }

// Host returns the peer host name.
func (c *Conn) Host() string { return c.identity.Host }

// IP returns the peer IP address.
func (c *Conn) IP() string { return c.identity.IP }

// Service returns the peer service (port or socket path).
func (c *Conn) Service() string { return c.identity.Service }

// SetAuthUser records the authenticated user.  It succeeds once; later
// calls return ErrAlreadyAuthenticated and keep the first uid.
func (c *Conn) SetAuthUser(uid uint32) error {
	if c.destroyed.Load() {
		return errors.ErrDestroyed
	}
	if c.authenticated {
		return errors.ErrAlreadyAuthenticated
	}
	c.authUID = uid
	c.authenticated = true
	return nil
}

// AuthUser returns the authenticated user, if any.
func (c *Conn) AuthUser() (uint32, bool) {
	return c.authUID, c.authenticated
}

// Info is a point-in-time view of a connection.
type Info struct {
	ID            string    `json:"id"`
	Host          string    `json:"host"`
	IP            string    `json:"ip"`
	Service       string    `json:"service"`
	ConnectedAt   time.Time `json:"connectedAt"`
	BytesIn       int64     `json:"bytesIn"`
	BytesOut      int64     `json:"bytesOut"`
	Authenticated bool      `json:"authenticated"`
	AuthUID       uint32    `json:"authUid,omitempty"`
}

// Info returns a snapshot of the connection.
func (c *Conn) Info() Info {
	return Info{
		ID:            c.id,
		Host:          c.identity.Host,
		IP:            c.identity.IP,
		Service:       c.identity.Service,
		ConnectedAt:   c.connectedAt,
		BytesIn:       c.bytesIn.Load(),
		BytesOut:      c.bytesOut.Load(),
		Authenticated: c.authenticated,
		AuthUID:       c.authUID,
	}
}
