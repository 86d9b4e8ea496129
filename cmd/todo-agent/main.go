// Command todo-agent is an interactive client that lets a chat model manage
// todos through the tools of an MCP server spawned as a subprocess.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Protocol-Lattice/todo-agent/pkg/agent"
	"github.com/Protocol-Lattice/todo-agent/pkg/mcp"
	"github.com/Protocol-Lattice/todo-agent/pkg/models"
)

func main() {
	var (
		provider  = flag.String("provider", "anthropic", "Model backend: anthropic, openai or ollama")
		modelName = flag.String("model", "", "Model identifier (defaults per provider)")
		maxTokens = flag.Int("max-tokens", models.DefaultMaxTokens, "Maximum output tokens per model turn")
		maxTurns  = flag.Int("max-turns", 0, "Maximum model turns per query (0 uses the default)")
	)
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: todo-agent [flags] <path_to_server_script>")
		fmt.Fprintln(os.Stderr, "\nExample:")
		fmt.Fprintln(os.Stderr, "  todo-agent mcp_server/server.py")
		fmt.Fprintln(os.Stderr, "\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Optional .env with API keys, matching the server's configuration style.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := serverCommand(flag.Arg(0))
	if err != nil {
		log.Fatalf("failed to resolve server command: %v", err)
	}

	client, err := mcp.NewStdioClient(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to connect to MCP server: %v", err)
	}
	defer client.Close()

	tools, err := client.ListTools(ctx)
	if err != nil {
		log.Fatalf("failed to list MCP tools: %v", err)
	}
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	fmt.Printf("\nConnected to server with tools: %s\n", strings.Join(names, ", "))

	model, err := buildModel(*provider, *modelName, *maxTokens)
	if err != nil {
		log.Fatalf("failed to create model: %v", err)
	}
	if model == nil {
		// Missing credentials: the connection worked, so report that and
		// leave quietly rather than failing.
		return
	}

	a, err := agent.New(agent.Options{
		Model:    model,
		Session:  client,
		MaxTurns: *maxTurns,
		OnToolCall: func(name string, arguments map[string]any) {
			fmt.Printf("[Calling tool %s with args %v]\n", name, arguments)
		},
	})
	if err != nil {
		log.Fatalf("failed to create agent: %v", err)
	}

	chatLoop(ctx, a)
}

// serverCommand derives how to launch the tool provider from the script
// path's extension. This stays outside the protocol: it is purely a launch
// convention.
func serverCommand(scriptPath string) (mcp.StdioConfig, error) {
	switch filepath.Ext(scriptPath) {
	case ".py":
		abs, err := filepath.Abs(scriptPath)
		if err != nil {
			return mcp.StdioConfig{}, err
		}
		// Run through uv from the project root so the server's declared
		// dependencies resolve.
		root := filepath.Dir(filepath.Dir(abs))
		return mcp.StdioConfig{
			Command: "uv",
			Args:    []string{"--directory", root, "run", "python", abs},
		}, nil
	case ".js":
		return mcp.StdioConfig{
			Command: "node",
			Args:    []string{scriptPath},
		}, nil
	case "":
		// No extension: treat the argument as a binary, e.g. todo-server.
		return mcp.StdioConfig{Command: scriptPath}, nil
	default:
		return mcp.StdioConfig{}, fmt.Errorf("server script must be a .py or .js file, got %q", scriptPath)
	}
}

func buildModel(provider, name string, maxTokens int) (models.Model, error) {
	switch provider {
	case "anthropic":
		if os.Getenv("ANTHROPIC_API_KEY") == "" {
			fmt.Println("\nWARNING: No ANTHROPIC_API_KEY found!")
			fmt.Println("\nTo query these tools with Claude, set your API key:")
			fmt.Println("  export ANTHROPIC_API_KEY=your-api-key-here")
			fmt.Println("\nOr create a .env file with:")
			fmt.Println("  ANTHROPIC_API_KEY=your-api-key-here")
			return nil, nil
		}
		if name == "" {
			name = "claude-sonnet-4-5"
		}
		m := models.NewAnthropicLLM(name)
		m.MaxTokens = maxTokens
		return m, nil
	case "openai":
		if name == "" {
			name = "gpt-4o"
		}
		m := models.NewOpenAILLM(name)
		m.MaxTokens = maxTokens
		return m, nil
	case "ollama":
		if name == "" {
			name = "llama3.1"
		}
		return models.NewOllamaLLM(name)
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
}

func chatLoop(ctx context.Context, a *agent.Agent) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("MCP Todo Client Started!")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("\nYou can manage your todos using natural language.")
	fmt.Println("Examples:")
	fmt.Println("  - 'Create a todo to buy groceries with high priority'")
	fmt.Println("  - 'List all my active todos'")
	fmt.Println("  - 'Mark todo 1 as completed'")
	fmt.Println("\nType 'quit' to exit.")
	fmt.Println(strings.Repeat("=", 60))

	scanner := bufio.NewScanner(os.Stdin)
	for {
		if ctx.Err() != nil {
			fmt.Println("\nExiting...")
			return
		}

		fmt.Print("\nQuery: ")
		if !scanner.Scan() {
			return
		}

		query := strings.TrimSpace(scanner.Text())
		if strings.EqualFold(query, "quit") {
			return
		}
		if query == "" {
			continue
		}

		answer, err := a.Answer(ctx, query)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				fmt.Println("\nExiting...")
				return
			}
			fmt.Printf("\nError: %v\n", err)
			continue
		}
		fmt.Println("\n" + answer)
	}
}
