package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ToolHandler executes one tool invocation. A returned error marks the
// invocation as failed; its text is delivered to the peer as an error
// result rather than a protocol failure.
type ToolHandler func(ctx context.Context, args map[string]any) (string, error)

// ServerTool pairs a tool definition with its handler.
type ServerTool struct {
	Definition ToolDefinition
	Handler    ToolHandler
}

// Server is the provider side of the protocol: it answers initialize,
// tools/list and tools/call requests over a Transport. Requests are handled
// strictly one at a time in arrival order.
type Server struct {
	info ServerInfo

	mu    sync.RWMutex
	tools []ServerTool
}

// NewServer creates a server advertising the given name and version during
// the initialise handshake.
func NewServer(name, version string) *Server {
	return &Server{info: ServerInfo{Name: name, Version: version}}
}

// Register adds a tool. Registering a name twice replaces the earlier entry;
// listing order follows first registration.
func (s *Server) Register(tool ServerTool) error {
	if tool.Definition.Name == "" {
		return errors.New("mcp: tool name is required")
	}
	if tool.Handler == nil {
		return fmt.Errorf("mcp: tool %s has no handler", tool.Definition.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.tools {
		if s.tools[i].Definition.Name == tool.Definition.Name {
			s.tools[i] = tool
			return nil
		}
	}
	s.tools = append(s.tools, tool)
	return nil
}

// Tools returns the registered tool definitions in listing order.
func (s *Server) Tools() []ToolDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	defs := make([]ToolDefinition, 0, len(s.tools))
	for _, tool := range s.tools {
		defs = append(defs, tool.Definition)
	}
	return defs
}

// Serve processes requests from the transport until the peer disconnects or
// the context is cancelled. A clean disconnect returns nil.
func (s *Server) Serve(ctx context.Context, transport Transport) error {
	for {
		payload, err := transport.Receive(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		var req request
		if err := json.Unmarshal(payload, &req); err != nil {
			if err := s.reply(ctx, transport, req.ID, nil, &RPCError{Code: -32700, Message: err.Error()}); err != nil {
				return err
			}
			continue
		}

		result, rpcErr := s.dispatch(ctx, req)
		if err := s.reply(ctx, transport, req.ID, result, rpcErr); err != nil {
			return err
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req request) (any, *RPCError) {
	switch req.Method {
	case "initialize":
		return map[string]any{
			"protocolVersion": protocolVersion,
			"serverInfo":      s.info,
			"capabilities": map[string]any{
				"tools": map[string]bool{"list": true, "call": true},
			},
		}, nil
	case "tools/list":
		return map[string]any{"tools": s.Tools()}, nil
	case "tools/call":
		return s.callTool(ctx, req.Params), nil
	default:
		return nil, &RPCError{Code: -32601, Message: fmt.Sprintf("method not found: %s", req.Method)}
	}
}

// callTool resolves and runs the requested tool. Unknown tools and handler
// failures are reported as error results, never as protocol errors.
func (s *Server) callTool(ctx context.Context, params any) CallResult {
	var payload struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}

	raw, err := json.Marshal(params)
	if err == nil {
		err = json.Unmarshal(raw, &payload)
	}
	if err != nil {
		return errorResult(fmt.Sprintf("invalid tools/call parameters: %v", err))
	}

	var handler ToolHandler
	s.mu.RLock()
	for _, tool := range s.tools {
		if tool.Definition.Name == payload.Name {
			handler = tool.Handler
			break
		}
	}
	s.mu.RUnlock()

	if handler == nil {
		return errorResult(fmt.Sprintf("unknown tool: %s", payload.Name))
	}

	text, err := handler(ctx, payload.Arguments)
	if err != nil {
		return errorResult(err.Error())
	}
	return textResult(text)
}

func (s *Server) reply(ctx context.Context, transport Transport, id string, result any, rpcErr *RPCError) error {
	env := responseEnvelope{JSONRPC: "2.0", ID: &id, Error: rpcErr}
	if rpcErr == nil {
		encoded, err := json.Marshal(result)
		if err != nil {
			env.Error = &RPCError{Code: -32603, Message: err.Error()}
		} else {
			env.Result = encoded
		}
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("mcp: marshal response: %w", err)
	}
	return transport.Send(ctx, payload)
}

func textResult(text string) CallResult {
	return CallResult{Content: []Content{{Type: "text", Text: text}}}
}

func errorResult(text string) CallResult {
	return CallResult{IsError: true, Content: []Content{{Type: "text", Text: text}}}
}
