package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/toolbridge/mcpwire/logx"
	"github.com/toolbridge/mcpwire/protocol"
	"github.com/toolbridge/mcpwire/transport"
	"github.com/toolbridge/mcpwire/transport/stdio"
	"github.com/toolbridge/mcpwire/transport/streamhttp"
)

// DefaultRequestTimeout bounds a single request/response exchange when the
// caller's context carries no deadline.
const DefaultRequestTimeout = 30 * time.Second

// Client is one MCP session against one server. Exchanges are strictly
// sequential: one outstanding request at a time, correlated by monotonic
// integer ids.
type Client struct {
	name            string
	version         string
	protocolVersion string
	instanceID      string

	transport      transport.Transport
	logger         logx.Logger
	requestTimeout time.Duration

	// exchangeScoped is true when each response arrives on the same HTTP
	// exchange that carried the request. Ids may then echo back as
	// strings, and a failed exchange does not poison the next one.
	exchangeScoped bool

	session *session
	ids     *correlator

	exchangeMu sync.Mutex

	infoMu     sync.RWMutex
	serverInfo *protocol.ServerInfo
}

// New creates a client. A transport must be supplied via WithTransport or
// one of the NewStdio / NewStreamableHTTP constructors.
func New(name, version string, opts ...Option) (*Client, error) {
	if name == "" {
		return nil, fmt.Errorf("client name is required")
	}
	c := &Client{
		name:            name,
		version:         version,
		protocolVersion: protocol.ProtocolVersion,
		instanceID:      uuid.NewString(),
		logger:          logx.Default(),
		requestTimeout:  DefaultRequestTimeout,
		session:         &session{},
		ids:             newCorrelator(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.transport == nil {
		return nil, fmt.Errorf("a transport is required: use WithTransport, NewStdio, or NewStreamableHTTP")
	}
	if _, ok := c.transport.(*streamhttp.Transport); ok {
		c.exchangeScoped = true
	}
	return c, nil
}

// NewStdio creates a client that launches cmd and speaks MCP over its
// stdin/stdout. The process is not started until Initialize.
func NewStdio(name, version string, cmd *exec.Cmd, opts ...Option) (*Client, error) {
	opts = append(opts, WithTransport(stdio.NewCommand(cmd)))
	return New(name, version, opts...)
}

// NewStreamableHTTP creates a client for an MCP endpoint over streamable
// HTTP.
func NewStreamableHTTP(name, version, endpoint string, opts ...Option) (*Client, error) {
	opts = append(opts, WithTransport(streamhttp.New(endpoint)))
	return New(name, version, opts...)
}

// Initialize performs the MCP handshake: connect, send initialize, then
// deliver notifications/initialized. The notification is flushed before
// Initialize returns, so the server knows the client is ready.
func (c *Client) Initialize(ctx context.Context) (*protocol.InitializeResult, error) {
	if err := c.session.require(StateUninitialized, "initialize"); err != nil {
		return nil, err
	}
	if err := c.session.advance(StateInitializing); err != nil {
		return nil, err
	}

	if err := c.transport.Connect(ctx); err != nil {
		c.shutdown()
		return nil, &TransportError{Op: "connect", Cause: err}
	}

	raw, err := c.exchange(ctx, protocol.MethodInitialize, protocol.InitializeParams{
		ProtocolVersion: c.protocolVersion,
		Capabilities:    protocol.Capabilities{},
		ClientInfo:      protocol.ClientInfo{Name: c.name, Version: c.version},
	})
	if err != nil {
		// A failed handshake leaves nothing to salvage.
		c.shutdown()
		return nil, err
	}

	var result protocol.InitializeResult
	if err := protocol.DecodeResult(raw, &result); err != nil {
		c.shutdown()
		return nil, &DecodeError{Op: "initialize", Cause: err}
	}
	if result.ProtocolVersion == "" {
		c.shutdown()
		return nil, &HandshakeError{Reason: "initialize result is missing a protocol version"}
	}

	if err := c.sendNotification(ctx, protocol.MethodNotificationInitialized, nil); err != nil {
		c.shutdown()
		return nil, err
	}

	c.infoMu.Lock()
	c.serverInfo = &result.ServerInfo
	c.infoMu.Unlock()

	if err := c.session.advance(StateInitialized); err != nil {
		return nil, err
	}
	c.logger.Info("session initialized",
		"client", c.instanceID,
		"server", result.ServerInfo.Name,
		"serverVersion", result.ServerInfo.Version,
		"protocolVersion", result.ProtocolVersion)
	return &result, nil
}

// Request performs one correlated request/response exchange. A JSON-RPC
// error from the server comes back as an ApplicationError and leaves the
// session usable; a transport failure closes the session.
func (c *Client) Request(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	if err := c.session.require(StateInitialized, method); err != nil {
		return nil, err
	}
	raw, err := c.exchange(ctx, method, params)
	if err != nil {
		c.afterFailure(err)
		return nil, err
	}
	return raw, nil
}

// Notify sends a fire-and-forget notification. It returns only after the
// message has been handed off and flushed to the transport.
func (c *Client) Notify(ctx context.Context, method string, params interface{}) error {
	if err := c.session.require(StateInitialized, method); err != nil {
		return err
	}
	if err := c.sendNotification(ctx, method, params); err != nil {
		c.afterFailure(err)
		return err
	}
	return nil
}

// Close tears the session down. It is idempotent and safe to call in any
// state.
func (c *Client) Close() error {
	if c.session.current() == StateClosed {
		return nil
	}
	c.logger.Debug("closing session", "client", c.instanceID)
	c.shutdown()
	return nil
}

// State returns the current session state.
func (c *Client) State() SessionState {
	return c.session.current()
}

// ServerInfo returns the server identity captured during Initialize, or
// nil before the handshake completed.
func (c *Client) ServerInfo() *protocol.ServerInfo {
	c.infoMu.RLock()
	defer c.infoMu.RUnlock()
	return c.serverInfo
}

// exchange sends one request and waits for its correlated response.
func (c *Client) exchange(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	if !c.exchangeMu.TryLock() {
		return nil, &ProtocolViolationError{Reason: ErrRequestInFlight.Error(), Cause: ErrRequestInFlight}
	}
	defer c.exchangeMu.Unlock()

	id, err := c.ids.begin()
	if err != nil {
		return nil, &ProtocolViolationError{Reason: err.Error()}
	}
	defer c.ids.finish(id)

	data, err := json.Marshal(protocol.NewRequest(id, method, params))
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s request: %w", method, err)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	c.logger.Debug("sending request", "client", c.instanceID, "method", method, "id", id)
	if err := c.transport.Send(ctx, data); err != nil {
		return nil, c.mapError(method, err)
	}

	for {
		raw, err := c.transport.Receive(ctx)
		if err != nil {
			return nil, c.mapError(method, err)
		}

		var resp protocol.Response
		if err := json.Unmarshal(raw, &resp); err != nil {
			return nil, &DecodeError{Op: method, Cause: err}
		}
		if len(resp.ID) == 0 || string(resp.ID) == "null" {
			// Server-initiated notification; not ours to answer.
			c.logger.Debug("ignoring unsolicited message", "client", c.instanceID)
			continue
		}
		if !resp.IDEquals(id, c.exchangeScoped) {
			return nil, &ProtocolViolationError{
				Reason: fmt.Sprintf("response id %s does not match request id %d", resp.ID, id),
			}
		}
		if resp.Error != nil {
			return nil, &ApplicationError{
				Code:    resp.Error.Code,
				Message: resp.Error.Message,
				Data:    resp.Error.Data,
			}
		}
		return resp.Result, nil
	}
}

func (c *Client) sendNotification(ctx context.Context, method string, params interface{}) error {
	data, err := json.Marshal(protocol.NewNotification(method, params))
	if err != nil {
		return fmt.Errorf("failed to encode %s notification: %w", method, err)
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	c.logger.Debug("sending notification", "client", c.instanceID, "method", method)
	if err := c.transport.Send(ctx, data); err != nil {
		return c.mapError(method, err)
	}
	return nil
}

// afterFailure decides whether a failed exchange poisons the session.
// Transport failures always do. On stdio a timeout or a desynced response
// leaves the byte stream untrustworthy, so those close the session too;
// per-exchange HTTP failures are isolated and the session survives. A
// rejected concurrent call never touched the wire, so the in-flight
// exchange keeps its session.
func (c *Client) afterFailure(err error) {
	if errors.Is(err, ErrRequestInFlight) {
		return
	}
	switch {
	case IsTransportError(err):
		c.shutdown()
	case !c.exchangeScoped && (IsTimeout(err) || IsDecodeError(err) || IsProtocolViolation(err)):
		c.shutdown()
	}
}

func (c *Client) shutdown() {
	_ = c.session.advance(StateClosed)
	if err := c.transport.Close(); err != nil {
		c.logger.Warn("transport close failed", "client", c.instanceID, "err", err)
	}
}

// mapError classifies a transport-level failure into the typed taxonomy.
func (c *Client) mapError(op string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, transport.ErrIdleTimeout):
		return &TimeoutError{Op: op, Timeout: c.requestTimeout, Cause: err}
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, transport.ErrMalformedFrame), errors.Is(err, transport.ErrFrameTooLarge):
		return &DecodeError{Op: op, Cause: err}
	default:
		return &TransportError{Op: op, Cause: err}
	}
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); !ok && c.requestTimeout > 0 {
		return context.WithTimeout(ctx, c.requestTimeout)
	}
	return ctx, func() {}
}
