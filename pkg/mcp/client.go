// Package mcp implements a lightweight Model Context Protocol client and
// server speaking JSON-RPC 2.0 over a Content-Length framed stream. It covers
// the tooling surface area (listing and invoking tools) required by the
// agent loop, plus the server side needed to expose tools from a subprocess.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

const (
	// protocolVersion loosely follows the Model Context Protocol releases.
	// Servers may accept a range of versions; a sensible default keeps the
	// client working out of the box while tests can override it.
	protocolVersion = "2024-05-01"
)

// ErrClosed is returned by every call issued on a closed client.
var ErrClosed = errors.New("mcp: client has been closed")

// ClientInfo describes the calling application when establishing a session.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Options control how the client initialises the remote server.
type Options struct {
	ClientInfo      ClientInfo
	Capabilities    map[string]any
	ProtocolVersion string
}

// ToolDefinition mirrors the subset of the MCP tool schema that the agent
// requires. InputSchema is carried as raw JSON and never reinterpreted.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// Content represents a single content part returned from a tool invocation.
type Content struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
	MimeType string          `json:"mimeType,omitempty"`
}

// CallResult captures the structured output of a tool invocation. IsError
// marks a tool-level failure; it is data, not a protocol error, and flows
// back to the caller unchanged.
type CallResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// ServerInfo is the metadata returned by the server during the initialise
// handshake.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Client implements the subset of the Model Context Protocol needed to list
// and invoke tools. One request is in flight at a time; concurrent callers
// serialize on an internal mutex.
type Client struct {
	transport    Transport
	info         ClientInfo
	capabilities map[string]any
	protoVersion string

	idCounter atomic.Uint64
	mu        sync.Mutex
	closed    atomic.Bool

	serverInfo ServerInfo
}

// NewClient creates a client over the provided transport and immediately
// performs the initialise handshake. The transport is closed if the
// handshake fails.
func NewClient(ctx context.Context, transport Transport, opts Options) (*Client, error) {
	if transport == nil {
		return nil, errors.New("mcp: transport is nil")
	}

	info := opts.ClientInfo
	if strings.TrimSpace(info.Name) == "" {
		info.Name = "todo-agent"
	}
	if strings.TrimSpace(info.Version) == "" {
		info.Version = "dev"
	}

	caps := opts.Capabilities
	if caps == nil {
		caps = map[string]any{
			"tools": map[string]bool{
				"list": true,
				"call": true,
			},
		}
	}

	proto := opts.ProtocolVersion
	if strings.TrimSpace(proto) == "" {
		proto = protocolVersion
	}

	client := &Client{
		transport:    transport,
		info:         info,
		capabilities: caps,
		protoVersion: proto,
	}

	if err := client.initialize(ctx); err != nil {
		transport.Close()
		return nil, err
	}

	return client, nil
}

// Close releases the underlying transport. Close is idempotent; calls issued
// after Close fail with ErrClosed.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	if c.closed.Swap(true) {
		return nil
	}
	return c.transport.Close()
}

// Server returns the metadata captured during the initialise handshake.
func (c *Client) Server() ServerInfo {
	if c == nil {
		return ServerInfo{}
	}
	return c.serverInfo
}

// ListTools retrieves the complete list of tools exposed by the server,
// transparently following pagination cursors. The call is idempotent.
func (c *Client) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	if err := c.ensureOpen(); err != nil {
		return nil, err
	}

	var (
		cursor string
		tools  []ToolDefinition
	)

	for {
		params := map[string]any{}
		if cursor != "" {
			params["cursor"] = cursor
		}

		var resp struct {
			Tools      []ToolDefinition `json:"tools"`
			NextCursor string           `json:"nextCursor,omitempty"`
		}

		if err := c.call(ctx, "tools/list", params, &resp); err != nil {
			return nil, err
		}

		tools = append(tools, resp.Tools...)
		if strings.TrimSpace(resp.NextCursor) == "" {
			break
		}
		cursor = resp.NextCursor
	}

	return tools, nil
}

// CallTool invokes a named tool on the server. A CallResult with IsError set
// is a successful round trip from the transport's point of view; only
// protocol-level failures produce a non-nil error.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) (CallResult, error) {
	if err := c.ensureOpen(); err != nil {
		return CallResult{}, err
	}
	if strings.TrimSpace(name) == "" {
		return CallResult{}, errors.New("mcp: tool name is required")
	}

	params := map[string]any{
		"name": name,
	}
	if len(arguments) > 0 {
		params["arguments"] = arguments
	}

	var result CallResult
	if err := c.call(ctx, "tools/call", params, &result); err != nil {
		return CallResult{}, err
	}
	return result, nil
}

// ensureOpen validates that the client has not been closed.
func (c *Client) ensureOpen() error {
	if c == nil {
		return errors.New("mcp: client is nil")
	}
	if c.closed.Load() {
		return ErrClosed
	}
	return nil
}

func (c *Client) initialize(ctx context.Context) error {
	params := map[string]any{
		"protocolVersion": c.protoVersion,
		"clientInfo":      c.info,
		"capabilities":    c.capabilities,
	}

	var resp struct {
		ProtocolVersion string     `json:"protocolVersion"`
		ServerInfo      ServerInfo `json:"serverInfo"`
	}

	if err := c.call(ctx, "initialize", params, &resp); err != nil {
		return fmt.Errorf("mcp: initialize handshake: %w", err)
	}

	c.serverInfo = resp.ServerInfo
	return nil
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type responseEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *string         `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// RPCError is the JSON-RPC error object exchanged on the wire.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return e.Message
}

func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}

	id := strconv.FormatUint(c.idCounter.Add(1), 10)
	payload, err := json.Marshal(request{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("mcp: marshal request: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if c.closed.Load() {
		return ErrClosed
	}

	if err := c.transport.Send(ctx, payload); err != nil {
		return err
	}

	for {
		msg, err := c.transport.Receive(ctx)
		if err != nil {
			return err
		}

		var env responseEnvelope
		if err := json.Unmarshal(msg, &env); err != nil {
			return fmt.Errorf("mcp: decode response: %w", err)
		}

		if env.Method != "" {
			// Notification from the server. Keep looping until the
			// response matching our request id arrives.
			continue
		}

		if env.ID == nil || *env.ID != id {
			continue
		}

		if env.Error != nil {
			return env.Error
		}

		if out != nil && len(env.Result) > 0 {
			if err := json.Unmarshal(env.Result, out); err != nil {
				return fmt.Errorf("mcp: decode result: %w", err)
			}
		}
		return nil
	}
}
