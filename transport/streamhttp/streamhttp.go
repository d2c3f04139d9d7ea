// Package streamhttp implements the streamable HTTP transport: every
// JSON-RPC message is POSTed to the endpoint and the response body carries
// the reply, framed either as SSE events or as bare JSON. A session token
// issued by the server on the first response is replayed on every
// subsequent request.
package streamhttp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/toolbridge/mcpwire/logx"
	"github.com/toolbridge/mcpwire/transport"
)

// SessionHeader is the HTTP header carrying the session token. Matching on
// responses is case-insensitive (net/http canonicalizes header names).
const SessionHeader = "Mcp-Session-Id"

// SessionToken is the opaque session identifier issued by the server. The
// token is an explicit value on the transport, not ambient client state.
type SessionToken string

// Transport implements transport.Transport over streamable HTTP.
type Transport struct {
	endpoint string
	client   *http.Client
	logger   logx.Logger

	idleTimeout time.Duration
	maxBodySize int

	tokenMu sync.RWMutex
	token   SessionToken

	incoming chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

// Option configures a Transport.
type Option func(*Transport)

// WithHTTPClient replaces the default HTTP client. Keep-alives should stay
// enabled so exchanges reuse the connection.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) { t.client = c }
}

// WithLogger sets the logger.
func WithLogger(l logx.Logger) Option {
	return func(t *Transport) { t.logger = l }
}

// WithIdleTimeout bounds how long a response stream may stall between
// chunks before the exchange fails.
func WithIdleTimeout(d time.Duration) Option {
	return func(t *Transport) { t.idleTimeout = d }
}

// WithMaxBodySize caps how much of a response body is buffered.
func WithMaxBodySize(n int) Option {
	return func(t *Transport) { t.maxBodySize = n }
}

// New creates a transport for the given endpoint URL.
func New(endpoint string, opts ...Option) *Transport {
	t := &Transport{
		endpoint:    endpoint,
		client:      &http.Client{},
		logger:      logx.Default(),
		idleTimeout: transport.DefaultIdleTimeout,
		maxBodySize: transport.DefaultMaxFrameSize,
		incoming:    make(chan []byte, 8),
		closed:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Connect validates the endpoint. No bytes are exchanged until the first
// Send; servers allocate the session on initialize.
func (t *Transport) Connect(ctx context.Context) error {
	u, err := url.Parse(t.endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint URL %q: %w", t.endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("endpoint URL %q must be http or https", t.endpoint)
	}
	return nil
}

// Send POSTs one message and queues whatever payloads the response body
// carries. A connection-level failure is retried once on a fresh
// connection with the same session token before surfacing.
func (t *Transport) Send(ctx context.Context, message []byte) error {
	select {
	case <-t.closed:
		return transport.ErrClosed
	default:
	}

	resp, err := t.post(ctx, message)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		t.logger.Debug("POST failed, retrying on a fresh connection", "err", err)
		t.client.CloseIdleConnections()
		resp, err = t.post(ctx, message)
		if err != nil {
			return fmt.Errorf("failed to POST message: %w", err)
		}
	}
	defer resp.Body.Close()

	if token := resp.Header.Get(SessionHeader); token != "" {
		t.setToken(SessionToken(token))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("server returned HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	// Accepted-with-no-body is how servers acknowledge notifications.
	if resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	body, err := transport.ReadAllIdle(ctx, resp.Body, t.idleTimeout, t.maxBodySize)
	if err != nil {
		return fmt.Errorf("failed to read response stream: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	payloads, err := transport.DecodeBody(body)
	if err != nil {
		return err
	}
	for _, p := range payloads {
		select {
		case t.incoming <- p:
		case <-t.closed:
			return transport.ErrClosed
		}
	}
	return nil
}

// Receive returns the next payload queued by a previous Send.
func (t *Transport) Receive(ctx context.Context) ([]byte, error) {
	select {
	case p := <-t.incoming:
		return p, nil
	default:
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case p := <-t.incoming:
		return p, nil
	case <-t.closed:
		return nil, transport.ErrClosed
	}
}

// Close terminates the session (best effort DELETE with the token) and
// shuts the transport down. It is idempotent.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		if token := t.Token(); token != "" {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			req, err := http.NewRequestWithContext(ctx, http.MethodDelete, t.endpoint, nil)
			if err == nil {
				req.Header.Set(SessionHeader, string(token))
				if resp, err := t.client.Do(req); err == nil {
					resp.Body.Close()
				}
			}
		}
		close(t.closed)
		t.client.CloseIdleConnections()
	})
	return nil
}

// Token returns the session token captured so far, if any.
func (t *Transport) Token() SessionToken {
	t.tokenMu.RLock()
	defer t.tokenMu.RUnlock()
	return t.token
}

func (t *Transport) setToken(token SessionToken) {
	t.tokenMu.Lock()
	defer t.tokenMu.Unlock()
	if t.token != token {
		t.logger.Debug("captured session token")
	}
	t.token = token
}

func (t *Transport) post(ctx context.Context, message []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(message))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	if token := t.Token(); token != "" {
		req.Header.Set(SessionHeader, string(token))
	}
	return t.client.Do(req)
}

var _ transport.Transport = (*Transport)(nil)
