package client

import (
	"time"

	"github.com/toolbridge/mcpwire/logx"
	"github.com/toolbridge/mcpwire/transport"
)

// Option configures a Client.
type Option func(*Client)

// WithTransport sets the transport the client speaks over.
func WithTransport(t transport.Transport) Option {
	return func(c *Client) { c.transport = t }
}

// WithLogger sets the logger.
func WithLogger(l logx.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithRequestTimeout bounds each exchange when the caller's context has no
// deadline. Zero disables the default.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) { c.requestTimeout = d }
}

// WithProtocolVersion overrides the protocol revision sent in initialize.
func WithProtocolVersion(v string) Option {
	return func(c *Client) { c.protocolVersion = v }
}
