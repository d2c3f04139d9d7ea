// Command mcpcli is a small debugging client for MCP servers: it connects
// over stdio or streamable HTTP, lists and calls tools, and offers an
// interactive REPL.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/toolbridge/mcpwire/client"
	"github.com/toolbridge/mcpwire/logx"
	"github.com/toolbridge/mcpwire/protocol"
)

var version = "dev"

var (
	endpoint   string
	command    string
	cmdArgs    []string
	configPath string
	serverName string
	timeout    time.Duration
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "mcpcli",
	Short: "Debugging client for MCP servers",
	Long: `mcpcli connects to an MCP (Model Context Protocol) server over stdio or
streamable HTTP and lets you inspect and call its tools.

Pick a server one of three ways:
  --endpoint URL          connect over streamable HTTP
  --command BIN [--arg X] launch a stdio server
  --config FILE --server NAME use an entry from an mcpServers config file`,
	SilenceUsage: true,
	Version:      version,
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools the server advertises",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *client.Client) error {
			tools, err := c.ListTools(ctx)
			if err != nil {
				return err
			}
			if len(tools) == 0 {
				fmt.Println("no tools advertised")
				return nil
			}
			for _, tool := range tools {
				if tool.Description != "" {
					fmt.Printf("%s\t%s\n", tool.Name, tool.Description)
				} else {
					fmt.Println(tool.Name)
				}
			}
			return nil
		})
	},
}

var callCmd = &cobra.Command{
	Use:   "call NAME [ARGUMENTS-JSON]",
	Short: "Call a tool, with arguments as a JSON object",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		arguments := map[string]interface{}{}
		if len(args) == 2 {
			if err := json.Unmarshal([]byte(args[1]), &arguments); err != nil {
				return fmt.Errorf("arguments must be a JSON object: %w", err)
			}
		}
		return withClient(func(ctx context.Context, c *client.Client) error {
			result, err := c.CallTool(ctx, args[0], arguments)
			if err != nil {
				return err
			}
			printToolResult(result.Content, result.IsError)
			return nil
		})
	},
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the server answers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *client.Client) error {
			if err := c.Ping(ctx); err != nil {
				return err
			}
			fmt.Println("ok")
			return nil
		})
	},
}

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive session against the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(runREPL)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "MCP endpoint URL (streamable HTTP)")
	rootCmd.PersistentFlags().StringVar(&command, "command", "", "server command to launch (stdio)")
	rootCmd.PersistentFlags().StringArrayVar(&cmdArgs, "arg", nil, "argument for --command (repeatable)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "mcpServers config file")
	rootCmd.PersistentFlags().StringVar(&serverName, "server", "", "server name inside --config")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log protocol traffic to stderr")

	rootCmd.AddCommand(toolsCmd, callCmd, pingCmd, replCmd)
}

// withClient builds a client from the flags, runs the handshake, hands the
// initialized client to fn, and tears everything down afterwards.
func withClient(fn func(ctx context.Context, c *client.Client) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logx.Discard()
	if verbose {
		logger = logx.Default()
	}
	opts := []client.Option{
		client.WithLogger(logger),
		client.WithRequestTimeout(timeout),
	}

	var (
		c   *client.Client
		err error
	)
	switch {
	case configPath != "":
		if serverName == "" {
			return fmt.Errorf("--config requires --server")
		}
		registry := client.NewServerRegistry(logger)
		defer registry.Close()
		if err := registry.LoadConfig(ctx, configPath); err != nil {
			return err
		}
		c, err = registry.GetClient(serverName)
		if err != nil {
			return err
		}
		return fn(ctx, c)
	case endpoint != "":
		c, err = client.NewStreamableHTTP("mcpcli", version, endpoint, opts...)
	case command != "":
		c, err = client.NewStdio("mcpcli", version, exec.Command(command, cmdArgs...), opts...)
	default:
		return fmt.Errorf("pick a server: --endpoint, --command, or --config/--server")
	}
	if err != nil {
		return err
	}
	defer c.Close()

	if _, err := c.Initialize(ctx); err != nil {
		return err
	}
	return fn(ctx, c)
}

func printToolResult(content []protocol.ToolContent, isError bool) {
	out := os.Stdout
	if isError {
		out = os.Stderr
		fmt.Fprintln(out, "tool reported an error:")
	}
	for _, block := range content {
		if block.Type == "text" {
			fmt.Fprintln(out, block.Text)
		} else {
			fmt.Fprintf(out, "[%s content]\n", block.Type)
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
