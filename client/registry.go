package client

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"sync"

	"github.com/toolbridge/mcpwire/logx"
)

// ServerConfig represents a complete MCP server configuration file, the
// conventional `mcpServers` JSON layout.
type ServerConfig struct {
	MCPServers map[string]ServerDefinition `json:"mcpServers"`
}

// ServerDefinition defines how to launch or reach one MCP server. Command
// and URL are mutually exclusive: a command is launched over stdio, a URL
// is dialed over streamable HTTP.
type ServerDefinition struct {
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	URL     string            `json:"url,omitempty"`
}

// ServerRegistry owns one initialized Client per configured server.
type ServerRegistry struct {
	mu      sync.RWMutex
	logger  logx.Logger
	clients map[string]*Client
}

// NewServerRegistry creates an empty registry. A nil logger falls back to
// the default.
func NewServerRegistry(logger logx.Logger) *ServerRegistry {
	if logger == nil {
		logger = logx.Default()
	}
	return &ServerRegistry{
		logger:  logger,
		clients: make(map[string]*Client),
	}
}

// LoadConfig reads an mcpServers config file and starts every server in
// it.
func (r *ServerRegistry) LoadConfig(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	var config ServerConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return r.ApplyConfig(ctx, config)
}

// ApplyConfig starts every server in the config and initializes a client
// for each.
func (r *ServerRegistry) ApplyConfig(ctx context.Context, config ServerConfig) error {
	for name, def := range config.MCPServers {
		if err := r.StartServer(ctx, name, def); err != nil {
			return fmt.Errorf("failed to start server %s: %w", name, err)
		}
	}
	return nil
}

// StartServer builds, connects, and initializes a client for one server
// definition.
func (r *ServerRegistry) StartServer(ctx context.Context, name string, def ServerDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.clients[name]; exists {
		return fmt.Errorf("server %s is already registered", name)
	}

	c, err := r.buildClient(name, def)
	if err != nil {
		return err
	}
	if _, err := c.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize %s: %w", name, err)
	}

	r.clients[name] = c
	r.logger.Info("server registered", "name", name, "server", c.ServerInfo().Name)
	return nil
}

func (r *ServerRegistry) buildClient(name string, def ServerDefinition) (*Client, error) {
	switch {
	case def.URL != "" && def.Command != "":
		return nil, fmt.Errorf("server %s sets both command and url", name)
	case def.URL != "":
		return NewStreamableHTTP(name, "", def.URL, WithLogger(r.logger))
	case def.Command != "":
		cmd := exec.Command(def.Command, def.Args...)
		cmd.Env = os.Environ()
		for k, v := range def.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
		return NewStdio(name, "", cmd, WithLogger(r.logger))
	default:
		return nil, fmt.Errorf("server %s sets neither command nor url", name)
	}
}

// GetClient returns the initialized client for a named server.
func (r *ServerRegistry) GetClient(name string) (*Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[name]
	if !ok {
		return nil, fmt.Errorf("server not found: %s", name)
	}
	return c, nil
}

// ServerNames lists registered servers in stable order.
func (r *ServerRegistry) ServerNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close shuts every client down. The first error wins but every client is
// still closed.
func (r *ServerRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for name, c := range r.clients {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close %s: %w", name, err)
		}
		delete(r.clients, name)
	}
	return firstErr
}
