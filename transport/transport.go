// Package transport provides the transport layer for the MCP client: frame
// encoding/decoding plus the stdio and streamable HTTP implementations.
package transport

import (
	"context"
	"errors"
)

var (
	// ErrClosed is returned by operations on a transport that has been
	// shut down.
	ErrClosed = errors.New("transport closed")

	// ErrProcessExited is returned when the server child process has
	// terminated. It is distinct from a timeout: the peer is gone and the
	// session cannot continue.
	ErrProcessExited = errors.New("server process exited")

	// ErrIdleTimeout is returned when a stream produced no data within the
	// configured idle window.
	ErrIdleTimeout = errors.New("stream idle timeout")

	// ErrFrameTooLarge is returned when an incoming frame exceeds the
	// configured buffer ceiling.
	ErrFrameTooLarge = errors.New("frame exceeds buffer limit")
)

// Transport moves single JSON-RPC payloads between the client and one
// server. Implementations are safe for use by one sender and one receiver;
// the client layer serializes request/response exchanges on top.
type Transport interface {
	// Connect establishes the connection (spawns the child process or
	// verifies the endpoint). It must be called once before Send/Receive.
	Connect(ctx context.Context) error

	// Send delivers one encoded JSON-RPC message.
	Send(ctx context.Context, message []byte) error

	// Receive blocks until the next JSON-RPC payload arrives, the context
	// is done, or the transport fails.
	Receive(ctx context.Context) ([]byte, error)

	// Close tears the connection down. It is idempotent.
	Close() error
}
