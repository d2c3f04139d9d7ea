package client

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolbridge/mcpwire/logx"
)

func TestServerConfigParsing(t *testing.T) {
	raw := `{
		"mcpServers": {
			"files": {"command": "mcp-files", "args": ["--root", "/tmp"], "env": {"DEBUG": "1"}},
			"remote": {"url": "https://example.com/mcp"}
		}
	}`
	var config ServerConfig
	require.NoError(t, json.Unmarshal([]byte(raw), &config))

	files := config.MCPServers["files"]
	assert.Equal(t, "mcp-files", files.Command)
	assert.Equal(t, []string{"--root", "/tmp"}, files.Args)
	assert.Equal(t, "1", files.Env["DEBUG"])

	remote := config.MCPServers["remote"]
	assert.Equal(t, "https://example.com/mcp", remote.URL)
	assert.Empty(t, remote.Command)
}

func TestStartServerRejectsAmbiguousDefinition(t *testing.T) {
	r := NewServerRegistry(logx.Discard())
	t.Cleanup(func() { r.Close() })

	err := r.StartServer(context.Background(), "both", ServerDefinition{
		Command: "mcp-files",
		URL:     "https://example.com/mcp",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "both")

	err = r.StartServer(context.Background(), "neither", ServerDefinition{})
	require.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	r := NewServerRegistry(logx.Discard())
	err := r.LoadConfig(context.Background(), filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}

func TestLoadConfigBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	r := NewServerRegistry(logx.Discard())
	err := r.LoadConfig(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestRegistryLifecycle(t *testing.T) {
	script := `
while read line; do
  id=$(printf '%s' "$line" | sed -n 's/.*"id":\([0-9]*\).*/\1/p')
  method=$(printf '%s' "$line" | sed -n 's/.*"method":"\([^"]*\)".*/\1/p')
  [ -z "$id" ] && continue
  case "$method" in
    initialize)
      printf '{"jsonrpc":"2.0","id":%s,"result":{"protocolVersion":"2024-11-05","capabilities":{},"serverInfo":{"name":"sh-server","version":"0"}}}\n' "$id" ;;
    *)
      printf '{"jsonrpc":"2.0","id":%s,"error":{"code":-32601,"message":"Method not found"}}\n' "$id" ;;
  esac
done
`
	path := filepath.Join(t.TempDir(), "config.json")
	config := ServerConfig{MCPServers: map[string]ServerDefinition{
		"shell": {Command: "sh", Args: []string{"-c", script}},
	}}
	data, err := json.Marshal(config)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	r := NewServerRegistry(logx.Discard())
	require.NoError(t, r.LoadConfig(context.Background(), path))
	t.Cleanup(func() { r.Close() })

	assert.Equal(t, []string{"shell"}, r.ServerNames())

	c, err := r.GetClient("shell")
	require.NoError(t, err)
	assert.Equal(t, StateInitialized, c.State())
	assert.Equal(t, "sh-server", c.ServerInfo().Name)

	_, err = r.GetClient("absent")
	require.Error(t, err)

	require.NoError(t, r.Close())
	assert.Empty(t, r.ServerNames())
	assert.Equal(t, StateClosed, c.State())
}
