// Package agent implements the loop that alternates model inference with
// tool execution until the model produces a final textual answer.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/Protocol-Lattice/todo-agent/pkg/mcp"
	"github.com/Protocol-Lattice/todo-agent/pkg/models"
)

// defaultMaxTurns bounds the number of model round trips per query so a
// misbehaving model cannot loop forever.
const defaultMaxTurns = 25

// Session is the subset of the MCP client the agent depends on.
type Session interface {
	ListTools(ctx context.Context) ([]mcp.ToolDefinition, error)
	CallTool(ctx context.Context, name string, arguments map[string]any) (mcp.CallResult, error)
}

// Options configure a new Agent.
type Options struct {
	Model   models.Model
	Session Session

	// MaxTurns caps model round trips per query. Zero means the default.
	MaxTurns int

	// OnToolCall, when set, observes every tool invocation before it runs.
	OnToolCall func(name string, arguments map[string]any)

	// Warn receives recoverable anomalies (for example duplicate tool-use
	// ids in one response). Defaults to log.Printf.
	Warn func(format string, args ...any)
}

// Agent answers one query at a time over a shared session. It owns the
// conversation for the duration of a query; a failed query leaves the agent
// and session usable for the next one.
type Agent struct {
	model      models.Model
	session    Session
	maxTurns   int
	onToolCall func(name string, arguments map[string]any)
	warn       func(format string, args ...any)
}

// New creates an Agent with the provided options.
func New(opts Options) (*Agent, error) {
	if opts.Model == nil {
		return nil, errors.New("agent requires a model")
	}
	if opts.Session == nil {
		return nil, errors.New("agent requires a session")
	}

	maxTurns := opts.MaxTurns
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}

	warn := opts.Warn
	if warn == nil {
		warn = log.Printf
	}

	return &Agent{
		model:      opts.Model,
		session:    opts.Session,
		maxTurns:   maxTurns,
		onToolCall: opts.OnToolCall,
		warn:       warn,
	}, nil
}

// Answer runs the loop for one query: call the model, execute any requested
// tools strictly in response order, feed the results back, repeat. The final
// answer is the newline-joined text of the first response containing no tool
// use. Tool failures flow back to the model as error results; only a model
// failure or an exhausted turn budget aborts the query.
func (a *Agent) Answer(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", errors.New("agent: query is empty")
	}

	defs, err := a.session.ListTools(ctx)
	if err != nil {
		return "", fmt.Errorf("agent: list tools: %w", err)
	}
	tools := toolSchemas(defs)

	conversation := []models.Message{models.UserText(query)}

	for turn := 0; turn < a.maxTurns; turn++ {
		response, err := a.model.Chat(ctx, conversation, tools)
		if err != nil {
			return "", fmt.Errorf("agent: model call: %w", err)
		}

		kept, toolUses := a.screenResponse(response)

		if len(toolUses) == 0 {
			var texts []string
			for _, block := range kept {
				if text, ok := block.(models.TextBlock); ok {
					texts = append(texts, text.Text)
				}
			}
			return strings.Join(texts, "\n"), nil
		}

		// The assistant message keeps the response's full block sequence,
		// interleaved text included, so the model sees its own words back.
		conversation = append(conversation, models.Message{
			Role:    models.RoleAssistant,
			Content: kept,
		})

		results := make([]models.Block, 0, len(toolUses))
		for _, use := range toolUses {
			block, err := a.executeTool(ctx, use)
			if err != nil {
				return "", fmt.Errorf("agent: call tool %s: %w", use.Name, err)
			}
			results = append(results, block)
		}

		conversation = append(conversation, models.Message{
			Role:    models.RoleUser,
			Content: results,
		})
	}

	return "", fmt.Errorf("agent: no final answer after %d model turns", a.maxTurns)
}

// screenResponse validates one model response, dropping blocks that would
// violate the correlation protocol: a tool use with a duplicate id cannot be
// answered unambiguously, so later duplicates are discarded with a warning.
func (a *Agent) screenResponse(response []models.Block) (kept []models.Block, toolUses []models.ToolUseBlock) {
	seen := make(map[string]bool)
	for _, block := range response {
		switch b := block.(type) {
		case models.TextBlock:
			kept = append(kept, b)
		case models.ToolUseBlock:
			if seen[b.ID] {
				a.warn("agent: dropping tool use with duplicate id %q (tool %s)", b.ID, b.Name)
				continue
			}
			seen[b.ID] = true
			kept = append(kept, b)
			toolUses = append(toolUses, b)
		case models.ToolResultBlock:
			a.warn("agent: dropping tool result block in model response (id %q)", b.ToolUseID)
		}
	}
	return kept, toolUses
}

// executeTool runs one tool invocation. Provider-reported failures and
// provider-side faults (JSON-RPC errors) become error text the model can
// react to; only a transport failure aborts the query.
func (a *Agent) executeTool(ctx context.Context, use models.ToolUseBlock) (models.Block, error) {
	if a.onToolCall != nil {
		a.onToolCall(use.Name, use.Input)
	}

	result, err := a.session.CallTool(ctx, use.Name, use.Input)
	if err != nil {
		var rpcErr *mcp.RPCError
		if errors.As(err, &rpcErr) {
			return models.ToolResultBlock{
				ToolUseID: use.ID,
				Content:   fmt.Sprintf("tool %s failed: %v", use.Name, rpcErr),
				IsError:   true,
			}, nil
		}
		return nil, err
	}

	content := normalizeResult(result)
	if result.IsError {
		if content == "" {
			content = fmt.Sprintf("tool %s reported an error", use.Name)
		}
		return models.ToolResultBlock{ToolUseID: use.ID, Content: content, IsError: true}, nil
	}

	return models.ToolResultBlock{ToolUseID: use.ID, Content: content}, nil
}
