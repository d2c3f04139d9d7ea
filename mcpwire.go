// Package mcpwire is a client-side protocol engine for the Model Context
// Protocol (MCP), JSON-RPC 2.0 over two transports: a child process
// speaking newline-delimited JSON on stdio, and a streamable HTTP endpoint
// answering POSTs with SSE-framed or bare JSON bodies.
//
// # Organization
//
//   - github.com/toolbridge/mcpwire/client: session lifecycle, request
//     correlation, typed errors, and the high-level operations
//   - github.com/toolbridge/mcpwire/protocol: JSON-RPC message types and
//     MCP payload types
//   - github.com/toolbridge/mcpwire/transport: framing plus the stdio and
//     streamhttp transports
//   - github.com/toolbridge/mcpwire/logx: the logging interface and its
//     slog-backed default
//
// # Usage
//
//	c, err := client.NewStdio("my-client", "1.0.0", exec.Command("mcp-files"))
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	if _, err := c.Initialize(ctx); err != nil {
//		return err
//	}
//	tools, err := c.ListTools(ctx)
//
// Servers reached over HTTP work the same way through
// client.NewStreamableHTTP; the session token the server issues on
// initialize is captured and replayed automatically.
package mcpwire
