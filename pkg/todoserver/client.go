// Package todoserver exposes todo management tools over the MCP server. The
// tools are thin wrappers around an external todo HTTP API; this package owns
// no persistence.
package todoserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	defaultAPIBase = "http://localhost:8000/api"
	defaultTimeout = 30 * time.Second
)

// Todo mirrors the todo API's response schema.
type Todo struct {
	ID          int        `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type todoList struct {
	Todos []Todo `json:"todos"`
	Total int    `json:"total"`
}

type priorityList struct {
	Priorities []string `json:"priorities"`
}

// apiClient talks to the todo HTTP API.
type apiClient struct {
	base   string
	client *http.Client
}

func newAPIClient(base string, client *http.Client) *apiClient {
	if strings.TrimSpace(base) == "" {
		base = os.Getenv("TODO_API_BASE")
	}
	if strings.TrimSpace(base) == "" {
		base = defaultAPIBase
	}
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &apiClient{base: strings.TrimRight(base, "/"), client: client}
}

// request performs one API round trip and decodes the JSON response into out.
// Network faults and non-2xx statuses come back as errors for the tool layer
// to report.
func (c *apiClient) request(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	endpoint := c.base + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var payload io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, payload)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := apiErrorDetail(data)
		if detail == "" {
			detail = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("API request failed: %s", detail)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func apiErrorDetail(data []byte) string {
	var body struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	if body.Detail != "" {
		return body.Detail
	}
	return body.Error
}

// formatTodo renders one todo as the readable text sent back to the model.
func formatTodo(todo Todo) string {
	status := "○ Active"
	if todo.Completed {
		status = "✓ Completed"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "ID: %d\n", todo.ID)
	fmt.Fprintf(&b, "Title: %s\n", todo.Title)
	fmt.Fprintf(&b, "Status: %s\n", status)
	fmt.Fprintf(&b, "Priority: %s\n", strings.ToUpper(todo.Priority))
	fmt.Fprintf(&b, "Created: %s", todo.CreatedAt.Format("2006-01-02 15:04"))

	if todo.Description != "" {
		fmt.Fprintf(&b, "\nDescription: %s", todo.Description)
	}
	if todo.CompletedAt != nil {
		fmt.Fprintf(&b, "\nCompleted: %s", todo.CompletedAt.Format("2006-01-02 15:04"))
	}
	return b.String()
}
