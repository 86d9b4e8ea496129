package todoserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Protocol-Lattice/todo-agent/pkg/mcp"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

var validPriorities = []string{"low", "medium", "high", "urgent"}

// Config controls how the todo tools reach their backing API.
type Config struct {
	// APIBase overrides the todo API root. Falls back to TODO_API_BASE and
	// then to http://localhost:8000/api.
	APIBase string

	// HTTPClient overrides the default client (30s timeout).
	HTTPClient *http.Client
}

// New builds an MCP server exposing the todo management tools.
func New(cfg Config) *mcp.Server {
	api := newAPIClient(cfg.APIBase, cfg.HTTPClient)
	srv := mcp.NewServer("todo-manager", "1.0.0")

	register := func(name, description string, schema string, handler mcp.ToolHandler) {
		// Registration only fails on programmer error; the definitions
		// below are static.
		_ = srv.Register(mcp.ServerTool{
			Definition: mcp.ToolDefinition{
				Name:        name,
				Description: description,
				InputSchema: json.RawMessage(schema),
			},
			Handler: handler,
		})
	}

	register("create_todo",
		"Create a new todo item. Priority must be one of: low, medium, high, urgent (default: medium).",
		`{"type":"object","properties":{"title":{"type":"string","description":"The title of the todo"},"description":{"type":"string","description":"Optional detailed description"},"priority":{"type":"string","enum":["low","medium","high","urgent"],"description":"Priority level (default: medium)"}},"required":["title"]}`,
		func(ctx context.Context, args map[string]any) (string, error) {
			return createTodo(ctx, api, args)
		})

	register("list_todos",
		"List todos with optional filters for priority and completion status.",
		`{"type":"object","properties":{"priority":{"type":"string","enum":["low","medium","high","urgent"],"description":"Filter by priority"},"completed":{"type":"boolean","description":"Filter by completion status"},"limit":{"type":"integer","description":"Maximum number of todos to return (default: 50, max: 1000)"}}}`,
		func(ctx context.Context, args map[string]any) (string, error) {
			return listTodos(ctx, api, args)
		})

	register("get_todo",
		"Get details of a specific todo by ID.",
		`{"type":"object","properties":{"todo_id":{"type":"integer","description":"The ID of the todo to retrieve"}},"required":["todo_id"]}`,
		func(ctx context.Context, args map[string]any) (string, error) {
			return getTodo(ctx, api, args)
		})

	register("update_todo",
		"Update an existing todo's title, description or priority.",
		`{"type":"object","properties":{"todo_id":{"type":"integer","description":"The ID of the todo to update"},"title":{"type":"string"},"description":{"type":"string"},"priority":{"type":"string","enum":["low","medium","high","urgent"]}},"required":["todo_id"]}`,
		func(ctx context.Context, args map[string]any) (string, error) {
			return updateTodo(ctx, api, args)
		})

	register("complete_todo",
		"Mark a todo as completed.",
		`{"type":"object","properties":{"todo_id":{"type":"integer","description":"The ID of the todo to mark as completed"}},"required":["todo_id"]}`,
		func(ctx context.Context, args map[string]any) (string, error) {
			return completeTodo(ctx, api, args)
		})

	register("delete_todo",
		"Delete a todo item permanently.",
		`{"type":"object","properties":{"todo_id":{"type":"integer","description":"The ID of the todo to delete"}},"required":["todo_id"]}`,
		func(ctx context.Context, args map[string]any) (string, error) {
			return deleteTodo(ctx, api, args)
		})

	register("get_priorities",
		"Get the list of available priority levels for todos.",
		`{"type":"object","properties":{}}`,
		func(ctx context.Context, args map[string]any) (string, error) {
			return getPriorities(ctx, api)
		})

	return srv
}

func createTodo(ctx context.Context, api *apiClient, args map[string]any) (string, error) {
	title := argString(args, "title")
	if strings.TrimSpace(title) == "" {
		return "", fmt.Errorf("title is required")
	}

	priority := argString(args, "priority")
	if priority == "" {
		priority = "medium"
	}
	if !isValidPriority(priority) {
		return "", invalidPriorityError(priority)
	}

	body := map[string]any{
		"title":    title,
		"priority": priority,
	}
	if desc := argString(args, "description"); desc != "" {
		body["description"] = desc
	}

	var todo Todo
	if err := api.request(ctx, http.MethodPost, "/todos", nil, body, &todo); err != nil {
		return "", fmt.Errorf("failed to create todo: %w", err)
	}
	return "✓ Todo created successfully!\n" + formatTodo(todo), nil
}

func listTodos(ctx context.Context, api *apiClient, args map[string]any) (string, error) {
	limit, ok := argInt(args, "limit")
	if !ok || limit <= 0 {
		limit = defaultListLimit
	}
	// Cap to the backend's ceiling before dispatch.
	if limit > maxListLimit {
		limit = maxListLimit
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))

	if priority := argString(args, "priority"); priority != "" {
		if !isValidPriority(priority) {
			return "", invalidPriorityError(priority)
		}
		query.Set("priority", priority)
	}
	if completed, ok := argBool(args, "completed"); ok {
		query.Set("completed", strconv.FormatBool(completed))
	}

	var list todoList
	if err := api.request(ctx, http.MethodGet, "/todos", query, nil, &list); err != nil {
		return "", fmt.Errorf("failed to list todos: %w", err)
	}

	if len(list.Todos) == 0 {
		return "No todos found matching the criteria.", nil
	}

	formatted := make([]string, 0, len(list.Todos))
	for _, todo := range list.Todos {
		formatted = append(formatted, formatTodo(todo))
	}
	header := fmt.Sprintf("Found %d todo(s):\n%s\n", list.Total, strings.Repeat("=", 50))
	return header + strings.Join(formatted, "\n---\n"), nil
}

func getTodo(ctx context.Context, api *apiClient, args map[string]any) (string, error) {
	id, ok := argInt(args, "todo_id")
	if !ok {
		return "", fmt.Errorf("todo_id is required")
	}

	var todo Todo
	if err := api.request(ctx, http.MethodGet, fmt.Sprintf("/todos/%d", id), nil, nil, &todo); err != nil {
		return "", fmt.Errorf("failed to get todo: %w", err)
	}
	return formatTodo(todo), nil
}

func updateTodo(ctx context.Context, api *apiClient, args map[string]any) (string, error) {
	id, ok := argInt(args, "todo_id")
	if !ok {
		return "", fmt.Errorf("todo_id is required")
	}

	body := map[string]any{}
	if title, ok := args["title"].(string); ok {
		body["title"] = title
	}
	if desc, ok := args["description"].(string); ok {
		body["description"] = desc
	}
	if priority, ok := args["priority"].(string); ok {
		if !isValidPriority(priority) {
			return "", invalidPriorityError(priority)
		}
		body["priority"] = priority
	}
	if len(body) == 0 {
		return "", fmt.Errorf("no fields provided to update, specify at least one field")
	}

	var todo Todo
	if err := api.request(ctx, http.MethodPut, fmt.Sprintf("/todos/%d", id), nil, body, &todo); err != nil {
		return "", fmt.Errorf("failed to update todo: %w", err)
	}
	return "✓ Todo updated successfully!\n" + formatTodo(todo), nil
}

func completeTodo(ctx context.Context, api *apiClient, args map[string]any) (string, error) {
	id, ok := argInt(args, "todo_id")
	if !ok {
		return "", fmt.Errorf("todo_id is required")
	}

	var todo Todo
	if err := api.request(ctx, http.MethodPatch, fmt.Sprintf("/todos/%d/complete", id), nil, nil, &todo); err != nil {
		return "", fmt.Errorf("failed to complete todo: %w", err)
	}
	return "✓ Todo marked as completed!\n" + formatTodo(todo), nil
}

func deleteTodo(ctx context.Context, api *apiClient, args map[string]any) (string, error) {
	id, ok := argInt(args, "todo_id")
	if !ok {
		return "", fmt.Errorf("todo_id is required")
	}

	if err := api.request(ctx, http.MethodDelete, fmt.Sprintf("/todos/%d", id), nil, nil, nil); err != nil {
		return "", fmt.Errorf("failed to delete todo: %w", err)
	}
	return fmt.Sprintf("✓ Todo %d deleted successfully!", id), nil
}

func getPriorities(ctx context.Context, api *apiClient) (string, error) {
	var list priorityList
	if err := api.request(ctx, http.MethodGet, "/priorities", nil, nil, &list); err != nil {
		return "", fmt.Errorf("failed to get priorities: %w", err)
	}
	return "Available priority levels: " + strings.Join(list.Priorities, ", "), nil
}

func isValidPriority(priority string) bool {
	for _, p := range validPriorities {
		if p == priority {
			return true
		}
	}
	return false
}

func invalidPriorityError(priority string) error {
	return fmt.Errorf("invalid priority %q, must be one of: %s", priority, strings.Join(validPriorities, ", "))
}

// JSON object arguments arrive as map[string]any with float64 numbers.

func argString(args map[string]any, key string) string {
	value, _ := args[key].(string)
	return value
}

func argInt(args map[string]any, key string) (int, bool) {
	switch value := args[key].(type) {
	case float64:
		return int(value), true
	case int:
		return value, true
	case json.Number:
		n, err := value.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

func argBool(args map[string]any, key string) (bool, bool) {
	value, ok := args[key].(bool)
	return value, ok
}
