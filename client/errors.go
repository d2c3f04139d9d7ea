// Package client provides the client-side MCP protocol engine: session
// lifecycle, request correlation, and the typed error taxonomy.
package client

import (
	"errors"
	"fmt"
	"time"

	"github.com/toolbridge/mcpwire/protocol"
)

// TransportError reports a connection-level failure: the peer is gone or
// the stream broke. The session is closed when one occurs.
type TransportError struct {
	Op    string
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure during %s: %v", e.Op, e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// TimeoutError reports that an operation exceeded its deadline or that a
// response stream stalled. It is distinct from TransportError: the peer
// did not necessarily go away.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
	Cause   error
}

func (e *TimeoutError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("%s timed out after %s", e.Op, e.Timeout)
	}
	return fmt.Sprintf("%s timed out", e.Op)
}

func (e *TimeoutError) Unwrap() error { return e.Cause }

// DecodeError reports bytes that arrived but could not be decoded as a
// JSON-RPC message under any framing strategy.
type DecodeError struct {
	Op    string
	Cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode response during %s: %v", e.Op, e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// ProtocolViolationError reports a breach of protocol sequencing: a request
// before the handshake completed, a response id that does not match the
// outstanding request, or a backward session transition.
type ProtocolViolationError struct {
	Reason string
	Cause  error
}

func (e *ProtocolViolationError) Error() string {
	return fmt.Sprintf("protocol violation: %s", e.Reason)
}

func (e *ProtocolViolationError) Unwrap() error { return e.Cause }

// ErrSessionClosed marks operations attempted on a session that has already
// been closed. Check for it with errors.Is.
var ErrSessionClosed = errors.New("session closed")

// ErrRequestInFlight marks a request attempted while another one is still
// outstanding on the same session. Check for it with errors.Is.
var ErrRequestInFlight = errors.New("another request is already in flight on this session")

// HandshakeError reports an initialize exchange that completed at the wire
// level but returned a result the client cannot accept, such as a missing
// protocol version. The session is closed when one occurs.
type HandshakeError struct {
	Reason string
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("handshake failed: %s", e.Reason)
}

// ApplicationError is a JSON-RPC error returned by the server. It is a
// well-formed protocol exchange, so the session stays usable.
type ApplicationError struct {
	Code    protocol.ErrorCode
	Message string
	Data    interface{}
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Code, e.Message)
}

// IsTransportError reports whether err is (or wraps) a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsTimeout reports whether err is (or wraps) a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsDecodeError reports whether err is (or wraps) a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// IsProtocolViolation reports whether err is (or wraps) a
// ProtocolViolationError.
func IsProtocolViolation(err error) bool {
	var pe *ProtocolViolationError
	return errors.As(err, &pe)
}

// IsHandshakeError reports whether err is (or wraps) a HandshakeError.
func IsHandshakeError(err error) bool {
	var he *HandshakeError
	return errors.As(err, &he)
}

// AsApplicationError extracts the ApplicationError from err, if any.
func AsApplicationError(err error) (*ApplicationError, bool) {
	var ae *ApplicationError
	ok := errors.As(err, &ae)
	return ae, ok
}
