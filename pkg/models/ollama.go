package models

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	ollama "github.com/ollama/ollama/api"
)

// OllamaLLM implements Model against a local Ollama server. Ollama's chat API
// carries no correlation ids on tool calls, so ids are synthesized per
// response in call order.
type OllamaLLM struct {
	Client *ollama.Client
	Model  string
}

func NewOllamaLLM(model string) (*OllamaLLM, error) {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = "http://localhost:11434"
	}

	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid OLLAMA_HOST %q: %w", host, err)
	}

	httpClient := &http.Client{
		Timeout: 120 * time.Second,
	}

	c := ollama.NewClient(u, httpClient)
	return &OllamaLLM{Client: c, Model: model}, nil
}

func (o *OllamaLLM) Chat(ctx context.Context, messages []Message, tools []ToolSchema) ([]Block, error) {
	chatMessages, err := ollamaMessages(messages)
	if err != nil {
		return nil, err
	}

	var apiTools []ollama.Tool
	for _, tool := range tools {
		t := ollama.Tool{Type: "function"}
		t.Function.Name = tool.Name
		t.Function.Description = tool.Description
		if len(tool.InputSchema) > 0 {
			if err := json.Unmarshal(tool.InputSchema, &t.Function.Parameters); err != nil {
				return nil, fmt.Errorf("ollama: tool %s input schema: %w", tool.Name, err)
			}
		}
		apiTools = append(apiTools, t)
	}

	stream := false
	req := &ollama.ChatRequest{
		Model:    o.Model,
		Messages: chatMessages,
		Tools:    apiTools,
		Stream:   &stream,
	}

	var last ollama.ChatResponse
	if err := o.Client.Chat(ctx, req, func(resp ollama.ChatResponse) error {
		last = resp
		return nil
	}); err != nil {
		return nil, fmt.Errorf("ollama: chat: %w", err)
	}

	var blocks []Block
	if last.Message.Content != "" {
		blocks = append(blocks, TextBlock{Text: last.Message.Content})
	}
	for i, call := range last.Message.ToolCalls {
		blocks = append(blocks, ToolUseBlock{
			ID:    fmt.Sprintf("call_%d", i+1),
			Name:  call.Function.Name,
			Input: map[string]any(call.Function.Arguments),
		})
	}
	return blocks, nil
}

func ollamaMessages(messages []Message) ([]ollama.Message, error) {
	var out []ollama.Message
	for _, msg := range messages {
		switch msg.Role {
		case RoleUser:
			for _, block := range msg.Content {
				switch b := block.(type) {
				case TextBlock:
					out = append(out, ollama.Message{Role: "user", Content: b.Text})
				case ToolResultBlock:
					out = append(out, ollama.Message{Role: "tool", Content: b.Content})
				case ToolUseBlock:
					return nil, fmt.Errorf("ollama: tool use block in user message")
				default:
					return nil, fmt.Errorf("ollama: unsupported block type %T", block)
				}
			}
		case RoleAssistant:
			assistant := ollama.Message{Role: "assistant"}
			for _, block := range msg.Content {
				switch b := block.(type) {
				case TextBlock:
					if assistant.Content != "" {
						assistant.Content += "\n"
					}
					assistant.Content += b.Text
				case ToolUseBlock:
					call := ollama.ToolCall{}
					call.Function.Name = b.Name
					call.Function.Arguments = ollama.ToolCallFunctionArguments(b.Input)
					assistant.ToolCalls = append(assistant.ToolCalls, call)
				case ToolResultBlock:
					return nil, fmt.Errorf("ollama: tool result block in assistant message")
				default:
					return nil, fmt.Errorf("ollama: unsupported block type %T", block)
				}
			}
			out = append(out, assistant)
		default:
			return nil, fmt.Errorf("ollama: unsupported role %q", msg.Role)
		}
	}
	return out, nil
}

var _ Model = (*OllamaLLM)(nil)
