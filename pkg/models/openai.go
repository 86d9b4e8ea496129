package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/sashabaranov/go-openai"
)

// OpenAILLM implements Model using the chat completions API with function
// calling. Tool uses map onto tool_calls; tool results map onto role "tool"
// messages keyed by tool_call_id.
type OpenAILLM struct {
	Client    *openai.Client
	Model     string
	MaxTokens int
}

func NewOpenAILLM(model string) *OpenAILLM {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_KEY") // fallback
	}
	client := openai.NewClient(apiKey)
	return &OpenAILLM{Client: client, Model: model, MaxTokens: DefaultMaxTokens}
}

func (o *OpenAILLM) Chat(ctx context.Context, messages []Message, tools []ToolSchema) ([]Block, error) {
	chatMessages, err := openaiMessages(messages)
	if err != nil {
		return nil, err
	}

	req := openai.ChatCompletionRequest{
		Model:     o.Model,
		Messages:  chatMessages,
		MaxTokens: o.MaxTokens,
	}
	for _, tool := range tools {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.InputSchema,
			},
		})
	}

	resp, err := o.Client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai: create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: no choices in response")
	}

	choice := resp.Choices[0].Message
	var blocks []Block
	if choice.Content != "" {
		blocks = append(blocks, TextBlock{Text: choice.Content})
	}
	for _, call := range choice.ToolCalls {
		var input map[string]any
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &input); err != nil {
				return nil, fmt.Errorf("openai: decode tool arguments: %w", err)
			}
		}
		blocks = append(blocks, ToolUseBlock{ID: call.ID, Name: call.Function.Name, Input: input})
	}
	return blocks, nil
}

// openaiMessages flattens the block model into the chat completions shape:
// tool results become separate role "tool" messages, assistant tool uses
// become tool_calls on one assistant message.
func openaiMessages(messages []Message) ([]openai.ChatCompletionMessage, error) {
	var out []openai.ChatCompletionMessage
	for _, msg := range messages {
		switch msg.Role {
		case RoleUser:
			var text string
			var toolMessages []openai.ChatCompletionMessage
			for _, block := range msg.Content {
				switch b := block.(type) {
				case TextBlock:
					if text != "" {
						text += "\n"
					}
					text += b.Text
				case ToolResultBlock:
					toolMessages = append(toolMessages, openai.ChatCompletionMessage{
						Role:       openai.ChatMessageRoleTool,
						Content:    b.Content,
						ToolCallID: b.ToolUseID,
					})
				case ToolUseBlock:
					return nil, errors.New("openai: tool use block in user message")
				default:
					return nil, fmt.Errorf("openai: unsupported block type %T", block)
				}
			}
			if text != "" {
				out = append(out, openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleUser,
					Content: text,
				})
			}
			out = append(out, toolMessages...)
		case RoleAssistant:
			assistant := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant}
			for _, block := range msg.Content {
				switch b := block.(type) {
				case TextBlock:
					if assistant.Content != "" {
						assistant.Content += "\n"
					}
					assistant.Content += b.Text
				case ToolUseBlock:
					args, err := json.Marshal(b.Input)
					if err != nil {
						return nil, fmt.Errorf("openai: marshal tool arguments: %w", err)
					}
					assistant.ToolCalls = append(assistant.ToolCalls, openai.ToolCall{
						ID:   b.ID,
						Type: openai.ToolTypeFunction,
						Function: openai.FunctionCall{
							Name:      b.Name,
							Arguments: string(args),
						},
					})
				case ToolResultBlock:
					return nil, errors.New("openai: tool result block in assistant message")
				default:
					return nil, fmt.Errorf("openai: unsupported block type %T", block)
				}
			}
			out = append(out, assistant)
		default:
			return nil, fmt.Errorf("openai: unsupported role %q", msg.Role)
		}
	}
	return out, nil
}

var _ Model = (*OpenAILLM)(nil)
