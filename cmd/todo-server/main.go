// Command todo-server exposes todo management tools over MCP on stdio,
// backed by an external todo HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Protocol-Lattice/todo-agent/pkg/mcp"
	"github.com/Protocol-Lattice/todo-agent/pkg/todoserver"
)

func main() {
	apiBase := flag.String("api-base", "", "Todo API base URL (default: TODO_API_BASE or http://localhost:8000/api)")
	flag.Parse()

	_ = godotenv.Load()

	// Diagnostics go to stderr: stdout carries the protocol.
	log.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := todoserver.New(todoserver.Config{APIBase: *apiBase})
	if err := mcp.ServeStdio(ctx, srv); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("serve: %v", err)
	}
}
