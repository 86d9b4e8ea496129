package models

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultMaxTokens bounds the output of a single model round trip.
const DefaultMaxTokens = 4000

// AnthropicLLM implements Model using Anthropic's Messages API.
type AnthropicLLM struct {
	Client    *anthropic.Client
	Model     string
	MaxTokens int
}

// NewAnthropicLLM constructs a client. It reads ANTHROPIC_API_KEY from the env.
func NewAnthropicLLM(model string) *AnthropicLLM {
	key := os.Getenv("ANTHROPIC_API_KEY")
	cl := anthropic.NewClient(
		anthropicopt.WithAPIKey(key),
	)
	return &AnthropicLLM{
		Client:    &cl,
		Model:     model, // e.g. "claude-sonnet-4-5"
		MaxTokens: DefaultMaxTokens,
	}
}

// Chat performs one blocking Messages API round trip with the full
// conversation and tool schemas attached.
func (a *AnthropicLLM) Chat(ctx context.Context, messages []Message, tools []ToolSchema) ([]Block, error) {
	sdkMessages, err := anthropicMessages(messages)
	if err != nil {
		return nil, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.Model),
		MaxTokens: int64(a.MaxTokens),
		Messages:  sdkMessages,
	}
	if sdkTools, err := anthropicTools(tools); err != nil {
		return nil, err
	} else if len(sdkTools) > 0 {
		params.Tools = sdkTools
	}

	msg, err := a.Client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic: create message: %w", err)
	}

	blocks := make([]Block, 0, len(msg.Content))
	for _, cb := range msg.Content {
		switch b := cb.AsAny().(type) {
		case anthropic.TextBlock:
			blocks = append(blocks, TextBlock{Text: b.Text})
		case anthropic.ToolUseBlock:
			raw, err := json.Marshal(b.Input)
			if err != nil {
				return nil, fmt.Errorf("anthropic: marshal tool input: %w", err)
			}
			var input map[string]any
			if len(raw) > 0 && string(raw) != "null" {
				if err := json.Unmarshal(raw, &input); err != nil {
					return nil, fmt.Errorf("anthropic: decode tool input: %w", err)
				}
			}
			blocks = append(blocks, ToolUseBlock{ID: b.ID, Name: b.Name, Input: input})
		}
	}
	return blocks, nil
}

func anthropicMessages(messages []Message) ([]anthropic.MessageParam, error) {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		var contents []anthropic.ContentBlockParamUnion
		for _, block := range msg.Content {
			switch b := block.(type) {
			case TextBlock:
				contents = append(contents, anthropic.NewTextBlock(b.Text))
			case ToolUseBlock:
				input, err := json.Marshal(b.Input)
				if err != nil {
					return nil, fmt.Errorf("anthropic: marshal tool use input: %w", err)
				}
				contents = append(contents, anthropic.NewToolUseBlock(b.ID, json.RawMessage(input), b.Name))
			case ToolResultBlock:
				contents = append(contents, anthropic.NewToolResultBlock(b.ToolUseID, b.Content, b.IsError))
			default:
				return nil, fmt.Errorf("anthropic: unsupported block type %T", block)
			}
		}

		switch msg.Role {
		case RoleUser:
			out = append(out, anthropic.NewUserMessage(contents...))
		case RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(contents...))
		default:
			return nil, fmt.Errorf("anthropic: unsupported role %q", msg.Role)
		}
	}
	return out, nil
}

func anthropicTools(tools []ToolSchema) ([]anthropic.ToolUnionParam, error) {
	if len(tools) == 0 {
		return nil, nil
	}

	sdkTools := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		var schema struct {
			Type       string         `json:"type"`
			Properties map[string]any `json:"properties"`
			Required   []string       `json:"required"`
		}
		if len(tool.InputSchema) > 0 {
			if err := json.Unmarshal(tool.InputSchema, &schema); err != nil {
				return nil, fmt.Errorf("anthropic: tool %s input schema: %w", tool.Name, err)
			}
		}
		if schema.Type == "" {
			schema.Type = "object"
		}

		inputSchema := anthropic.ToolInputSchemaParam{
			Type:       "object",
			Properties: schema.Properties,
		}
		if len(schema.Required) > 0 {
			inputSchema.Required = schema.Required
		}

		sdkTools = append(sdkTools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        tool.Name,
				Description: anthropic.String(tool.Description),
				InputSchema: inputSchema,
			},
		})
	}
	return sdkTools, nil
}

var _ Model = (*AnthropicLLM)(nil)
