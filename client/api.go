package client

import (
	"context"
	"encoding/json"

	"github.com/toolbridge/mcpwire/protocol"
)

// ListTools fetches the tools the server advertises.
func (c *Client) ListTools(ctx context.Context) ([]protocol.Tool, error) {
	raw, err := c.Request(ctx, protocol.MethodListTools, nil)
	if err != nil {
		return nil, err
	}
	var result protocol.ListToolsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &DecodeError{Op: protocol.MethodListTools, Cause: err}
	}
	return result.Tools, nil
}

// CallTool invokes a tool by name. A JSON-RPC error (for example, an
// unknown tool) surfaces as an ApplicationError; the session stays usable.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (*protocol.CallToolResult, error) {
	raw, err := c.Request(ctx, protocol.MethodCallTool, protocol.CallToolParams{
		Name:      name,
		Arguments: arguments,
	})
	if err != nil {
		return nil, err
	}
	var result protocol.CallToolResult
	if err := protocol.DecodeResult(raw, &result); err != nil {
		return nil, &DecodeError{Op: protocol.MethodCallTool, Cause: err}
	}
	return &result, nil
}

// Ping checks that the server still answers.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Request(ctx, protocol.MethodPing, nil)
	return err
}
