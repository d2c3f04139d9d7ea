// Package protocol defines the JSON-RPC 2.0 message structures and the
// Model Context Protocol (MCP) constants shared by the client and the
// transport layer.
package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// JSONRPCVersion is the version string carried on every message.
const JSONRPCVersion = "2.0"

// ErrorCode identifies a JSON-RPC error category.
type ErrorCode int

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     ErrorCode = -32700
	CodeInvalidRequest ErrorCode = -32600
	CodeMethodNotFound ErrorCode = -32601
	CodeInvalidParams  ErrorCode = -32602
	CodeInternalError  ErrorCode = -32603
)

// ErrorPayload is the 'error' member of a JSON-RPC response.
type ErrorPayload struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Request represents a JSON-RPC request object. Request ids are integers
// assigned sequentially by the client, never reused within a session.
type Request struct {
	JSONRPC string      `json:"jsonrpc"` // MUST be "2.0"
	ID      int64       `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// Notification represents a JSON-RPC notification object.
// Notifications carry no id and receive no response.
type Notification struct {
	JSONRPC string      `json:"jsonrpc"` // MUST be "2.0"
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// Response represents a JSON-RPC response object. Result is kept raw so
// callers decide how to decode it; ID is kept raw because servers echo it
// back as either a number or a string.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorPayload   `json:"error,omitempty"`
}

// NewRequest creates a new JSON-RPC request object.
func NewRequest(id int64, method string, params interface{}) *Request {
	return &Request{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Method:  method,
		Params:  params,
	}
}

// NewNotification creates a new JSON-RPC notification object.
func NewNotification(method string, params interface{}) *Notification {
	return &Notification{
		JSONRPC: JSONRPCVersion,
		Method:  method,
		Params:  params,
	}
}

// IDEquals reports whether the response id matches the request id 'want'.
// The id is expected back as the same integer; when lenient is true a
// quoted numeric string equal to the id is also accepted, since some HTTP
// servers echo ids as strings.
func (r *Response) IDEquals(want int64, lenient bool) bool {
	if len(r.ID) == 0 {
		return false
	}
	var n int64
	if err := json.Unmarshal(r.ID, &n); err == nil {
		return n == want
	}
	if !lenient {
		return false
	}
	var s string
	if err := json.Unmarshal(r.ID, &s); err != nil {
		return false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	return err == nil && n == want
}

// Error implements the error interface so an ErrorPayload can travel as a
// Go error when a handler needs one.
func (e *ErrorPayload) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}
