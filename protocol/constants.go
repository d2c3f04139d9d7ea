package protocol

const (
	// ProtocolVersion is the MCP revision this client speaks. It is sent in
	// the initialize request and the server is expected to answer with a
	// compatible revision.
	ProtocolVersion = "2024-11-05"

	// --- Method name constants ---

	// Initialization handshake.
	MethodInitialize              = "initialize"
	MethodNotificationInitialized = "notifications/initialized"

	// Tools.
	MethodListTools = "tools/list"
	MethodCallTool  = "tools/call"

	// Liveness.
	MethodPing = "ping"
)
