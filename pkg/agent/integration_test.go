package agent

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Protocol-Lattice/todo-agent/pkg/mcp"
	"github.com/Protocol-Lattice/todo-agent/pkg/models"
	"github.com/Protocol-Lattice/todo-agent/pkg/todoserver"
)

// End to end: dummy model -> agent -> MCP client -> MCP server -> todo API.
func TestAnswerAgainstRealToolProvider(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/todos" {
			http.NotFound(w, r)
			return
		}
		created := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
		json.NewEncoder(w).Encode(map[string]any{
			"todos": []map[string]any{{
				"id":         1,
				"title":      "Buy groceries",
				"priority":   "high",
				"completed":  false,
				"created_at": created,
				"updated_at": created,
			}},
			"total": 1,
		})
	}))
	defer backend.Close()

	provider := todoserver.New(todoserver.Config{
		APIBase:    backend.URL + "/api",
		HTTPClient: backend.Client(),
	})

	clientRead, serverWrite := io.Pipe()
	serverRead, clientWrite := io.Pipe()
	clientTransport := mcp.NewStreamTransport(clientRead, clientWrite, clientRead, clientWrite)
	serverTransport := mcp.NewStreamTransport(serverRead, serverWrite, serverRead, serverWrite)
	go provider.Serve(ctx, serverTransport)

	session, err := mcp.NewClient(ctx, clientTransport, mcp.Options{})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	defer session.Close()

	model := &models.DummyLLM{
		Script: [][]models.Block{
			{models.ToolUseBlock{ID: "t1", Name: "list_todos", Input: map[string]any{"limit": 10}}},
			{models.TextBlock{Text: "You have one todo: buy groceries."}},
		},
	}

	a, err := New(Options{Model: model, Session: session, Warn: func(string, ...any) {}})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	answer, err := a.Answer(ctx, "list all todos")
	if err != nil {
		t.Fatalf("Answer error: %v", err)
	}
	if answer != "You have one todo: buy groceries." {
		t.Fatalf("unexpected answer: %q", answer)
	}

	// The model's second call must have seen the seven todo tools and the
	// formatted tool output.
	if len(model.Tools[0]) != 7 {
		t.Fatalf("expected 7 tools, got %d", len(model.Tools[0]))
	}
	result := model.Conversations[1][2].Content[0].(models.ToolResultBlock)
	if result.IsError || !strings.Contains(result.Content, "Buy groceries") {
		t.Fatalf("tool output did not reach the model: %#v", result)
	}
}
