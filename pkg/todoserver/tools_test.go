package todoserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newBackend(t *testing.T, handler http.HandlerFunc) *apiClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return newAPIClient(srv.URL+"/api", srv.Client())
}

func sampleTodo() Todo {
	created := time.Date(2026, 8, 29, 9, 30, 0, 0, time.UTC)
	return Todo{
		ID:        3,
		Title:     "Buy groceries",
		Priority:  "high",
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestListTodosCapsLimit(t *testing.T) {
	var gotLimit string
	api := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		gotLimit = r.URL.Query().Get("limit")
		json.NewEncoder(w).Encode(todoList{Todos: []Todo{sampleTodo()}, Total: 1})
	})

	out, err := listTodos(context.Background(), api, map[string]any{"limit": float64(5000)})
	if err != nil {
		t.Fatalf("listTodos error: %v", err)
	}
	if gotLimit != "1000" {
		t.Fatalf("limit not capped before dispatch: got %q", gotLimit)
	}
	if !strings.Contains(out, "Found 1 todo(s)") || !strings.Contains(out, "Buy groceries") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestListTodosDefaultsAndFilters(t *testing.T) {
	var query string
	api := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		json.NewEncoder(w).Encode(todoList{})
	})

	out, err := listTodos(context.Background(), api, map[string]any{
		"priority":  "urgent",
		"completed": false,
	})
	if err != nil {
		t.Fatalf("listTodos error: %v", err)
	}
	if !strings.Contains(query, "limit=50") || !strings.Contains(query, "priority=urgent") || !strings.Contains(query, "completed=false") {
		t.Fatalf("unexpected query: %q", query)
	}
	if out != "No todos found matching the criteria." {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestListTodosRejectsInvalidPriority(t *testing.T) {
	api := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("invalid priority must not reach the API")
	})

	_, err := listTodos(context.Background(), api, map[string]any{"priority": "asap"})
	if err == nil || !strings.Contains(err.Error(), "invalid priority") {
		t.Fatalf("got %v, want invalid priority error", err)
	}
}

func TestCreateTodo(t *testing.T) {
	api := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/todos" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["priority"] != "medium" {
			t.Fatalf("default priority not applied: %v", body)
		}
		todo := sampleTodo()
		todo.Title, _ = body["title"].(string)
		todo.Priority = "medium"
		json.NewEncoder(w).Encode(todo)
	})

	out, err := createTodo(context.Background(), api, map[string]any{"title": "Water plants"})
	if err != nil {
		t.Fatalf("createTodo error: %v", err)
	}
	if !strings.HasPrefix(out, "✓ Todo created successfully!") || !strings.Contains(out, "Water plants") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestCreateTodoRequiresTitle(t *testing.T) {
	api := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request should not be dispatched")
	})

	if _, err := createTodo(context.Background(), api, nil); err == nil {
		t.Fatal("expected error for missing title")
	}
}

func TestUpdateTodoRequiresFields(t *testing.T) {
	api := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request should not be dispatched")
	})

	_, err := updateTodo(context.Background(), api, map[string]any{"todo_id": float64(1)})
	if err == nil || !strings.Contains(err.Error(), "no fields") {
		t.Fatalf("got %v, want no-fields error", err)
	}
}

func TestCompleteAndDeleteTodo(t *testing.T) {
	api := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPatch && r.URL.Path == "/api/todos/3/complete":
			todo := sampleTodo()
			todo.Completed = true
			now := time.Now().UTC()
			todo.CompletedAt = &now
			json.NewEncoder(w).Encode(todo)
		case r.Method == http.MethodDelete && r.URL.Path == "/api/todos/3":
			json.NewEncoder(w).Encode(map[string]string{"message": "deleted"})
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	})

	out, err := completeTodo(context.Background(), api, map[string]any{"todo_id": float64(3)})
	if err != nil {
		t.Fatalf("completeTodo error: %v", err)
	}
	if !strings.Contains(out, "✓ Todo marked as completed!") || !strings.Contains(out, "✓ Completed") {
		t.Fatalf("unexpected output: %q", out)
	}

	out, err = deleteTodo(context.Background(), api, map[string]any{"todo_id": float64(3)})
	if err != nil {
		t.Fatalf("deleteTodo error: %v", err)
	}
	if out != "✓ Todo 3 deleted successfully!" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestGetTodoNotFound(t *testing.T) {
	api := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Todo not found"})
	})

	_, err := getTodo(context.Background(), api, map[string]any{"todo_id": float64(99)})
	if err == nil || !strings.Contains(err.Error(), "Todo not found") {
		t.Fatalf("got %v, want not-found detail", err)
	}
}

func TestGetPriorities(t *testing.T) {
	api := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/priorities" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(priorityList{Priorities: []string{"low", "medium", "high", "urgent"}})
	})

	out, err := getPriorities(context.Background(), api)
	if err != nil {
		t.Fatalf("getPriorities error: %v", err)
	}
	if out != "Available priority levels: low, medium, high, urgent" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestFormatTodo(t *testing.T) {
	todo := sampleTodo()
	todo.Description = "Milk, eggs, bread"

	out := formatTodo(todo)
	for _, want := range []string{
		"ID: 3",
		"Title: Buy groceries",
		"Status: ○ Active",
		"Priority: HIGH",
		"Created: 2026-08-29 09:30",
		"Description: Milk, eggs, bread",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestServerExposesAllTools(t *testing.T) {
	srv := New(Config{APIBase: "http://localhost:0/api"})

	want := []string{
		"create_todo", "list_todos", "get_todo", "update_todo",
		"complete_todo", "delete_todo", "get_priorities",
	}
	defs := srv.Tools()
	if len(defs) != len(want) {
		t.Fatalf("expected %d tools, got %d", len(want), len(defs))
	}
	for i, name := range want {
		if defs[i].Name != name {
			t.Fatalf("tool %d: got %q, want %q", i, defs[i].Name, name)
		}
		if len(defs[i].InputSchema) == 0 {
			t.Fatalf("tool %q has no input schema", name)
		}
		var schema map[string]any
		if err := json.Unmarshal(defs[i].InputSchema, &schema); err != nil {
			t.Fatalf("tool %q schema is not valid JSON: %v", name, err)
		}
		if schema["type"] != "object" {
			t.Fatalf("tool %q schema type: %v", name, schema["type"])
		}
	}
}

func TestBackendFailureBecomesToolError(t *testing.T) {
	// Unreachable backend: the handler must surface a readable error, which
	// the MCP server then delivers as an is_error result.
	api := newAPIClient(fmt.Sprintf("http://127.0.0.1:%d/api", 1), &http.Client{Timeout: time.Second})

	_, err := listTodos(context.Background(), api, nil)
	if err == nil || !strings.Contains(err.Error(), "failed to list todos") {
		t.Fatalf("got %v, want wrapped API failure", err)
	}
}
