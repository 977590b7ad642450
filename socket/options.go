package socket

import (
	"go.uber.org/zap"

	"github.com/wippyai/corosock/reactor"
	"github.com/wippyai/corosock/sockaddr"
)

// Option configures a Socket at construction.
type Option func(*config)

type config struct {
	reactor    reactor.Reactor
	logger     *zap.Logger
	interfaces sockaddr.InterfaceResolver
	metrics    *Metrics
	coalesce   bool
}

// WithReactor sets the reactor the socket suspends on.
// Defaults to reactor.Default().
func WithReactor(r reactor.Reactor) Option {
	return func(c *config) { c.reactor = r }
}

// WithLogger sets a per-socket logger in place of the package logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithInterfaces sets the resolver used for IPv6 scope ids.
func WithInterfaces(r sockaddr.InterfaceResolver) Option {
	return func(c *config) { c.interfaces = r }
}

// WithMetrics records socket activity into m.
func WithMetrics(m *Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// WithWriteCoalescing passes the "more data follows" hint on stream sends
// where the platform supports it. The kernel may hold a partial segment
// until the next write.
func WithWriteCoalescing() Option {
	return func(c *config) { c.coalesce = true }
}

func newConfig(opts []Option) (config, error) {
	var c config
	for _, opt := range opts {
		opt(&c)
	}
	if c.reactor == nil {
		p, err := reactor.Default()
		if err != nil {
			return c, err
		}
		c.reactor = p
	}
	if c.logger == nil {
		c.logger = Logger()
	}
	if c.interfaces == nil {
		c.interfaces = sockaddr.SystemInterfaces{}
	}
	return c, nil
}

// BindOptions are the flags of a bind request.
type BindOptions struct {
	// ReuseAddress sets the address-reuse option before binding.
	ReuseAddress bool
	// IPv6Only restricts an IPv6 socket to IPv6 traffic. Without it, a
	// wildcard or IPv4 bind on a dual-stack socket accepts both families.
	IPv6Only bool
}
