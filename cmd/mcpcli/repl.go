package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/toolbridge/mcpwire/client"
)

var errExit = errors.New("exit")

// runREPL drives an interactive session against an initialized client.
func runREPL(ctx context.Context, c *client.Client) error {
	completer := readline.NewPrefixCompleter(
		readline.PcItem("tools"),
		readline.PcItem("call", buildToolCompletions(ctx, c)...),
		readline.PcItem("ping"),
		readline.PcItem("info"),
		readline.PcItem("help"),
		readline.PcItem("exit"),
	)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "mcp> ",
		HistoryFile:       filepath.Join(os.TempDir(), ".mcpcli_history"),
		AutoComplete:      completer,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline instance: %w", err)
	}
	defer rl.Close()

	if info := c.ServerInfo(); info != nil {
		fmt.Printf("connected to %s %s, type 'help' for commands\n", info.Name, info.Version)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				continue
			}
		} else if err == io.EOF {
			return nil
		} else if err != nil {
			return fmt.Errorf("readline error: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if err := executeREPLCommand(ctx, c, input); err != nil {
			if errors.Is(err, errExit) {
				return nil
			}
			fmt.Fprintln(os.Stderr, "error:", err)
			if client.IsTransportError(err) {
				return err // the session is gone, nothing left to do here
			}
		}
	}
}

func executeREPLCommand(ctx context.Context, c *client.Client, input string) error {
	fields := strings.Fields(input)
	switch fields[0] {
	case "exit", "quit":
		return errExit

	case "help":
		fmt.Println(`commands:
  tools                 list tools
  call NAME [JSON]      call a tool with JSON object arguments
  ping                  liveness check
  info                  server identity and session state
  exit                  leave`)
		return nil

	case "tools":
		tools, err := c.ListTools(ctx)
		if err != nil {
			return err
		}
		for _, tool := range tools {
			fmt.Printf("  %s\t%s\n", tool.Name, tool.Description)
		}
		return nil

	case "call":
		if len(fields) < 2 {
			return fmt.Errorf("usage: call NAME [JSON]")
		}
		arguments := map[string]interface{}{}
		if rest := strings.TrimSpace(strings.TrimPrefix(input, "call "+fields[1])); rest != "" {
			if err := json.Unmarshal([]byte(rest), &arguments); err != nil {
				return fmt.Errorf("arguments must be a JSON object: %w", err)
			}
		}
		result, err := c.CallTool(ctx, fields[1], arguments)
		if err != nil {
			return err
		}
		printToolResult(result.Content, result.IsError)
		return nil

	case "ping":
		if err := c.Ping(ctx); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil

	case "info":
		if info := c.ServerInfo(); info != nil {
			fmt.Printf("server: %s %s\n", info.Name, info.Version)
		}
		fmt.Printf("session: %s\n", c.State())
		return nil

	default:
		return fmt.Errorf("unknown command %q, try 'help'", fields[0])
	}
}

// buildToolCompletions pre-fetches tool names so 'call' tab-completes.
func buildToolCompletions(ctx context.Context, c *client.Client) []readline.PrefixCompleterInterface {
	tools, err := c.ListTools(ctx)
	if err != nil {
		return nil
	}
	items := make([]readline.PrefixCompleterInterface, 0, len(tools))
	for _, tool := range tools {
		items = append(items, readline.PcItem(tool.Name))
	}
	return items
}
