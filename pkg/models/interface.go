// Package models defines the conversation data model exchanged with chat
// models and provides backends for Anthropic, OpenAI and Ollama.
package models

import (
	"context"
	"encoding/json"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation: an ordered sequence of blocks.
type Message struct {
	Role    Role
	Content []Block
}

// Block is a closed tagged variant. Exactly three kinds exist: TextBlock,
// ToolUseBlock and ToolResultBlock. Consumers switch exhaustively; an
// unrecognized kind is a programming error, not data.
type Block interface {
	isBlock()
}

// TextBlock carries plain model or user text.
type TextBlock struct {
	Text string
}

// ToolUseBlock is a model request to invoke one named tool. ID correlates
// the request with its eventual ToolResultBlock.
type ToolUseBlock struct {
	ID    string
	Name  string
	Input map[string]any
}

// ToolResultBlock answers the ToolUseBlock with the matching ID. Only user
// messages carry results; only assistant messages carry tool uses.
type ToolResultBlock struct {
	ToolUseID string
	Content   string
	IsError   bool
}

func (TextBlock) isBlock()       {}
func (ToolUseBlock) isBlock()    {}
func (ToolResultBlock) isBlock() {}

// UserText builds the canonical opening message of a query.
func UserText(text string) Message {
	return Message{Role: RoleUser, Content: []Block{TextBlock{Text: text}}}
}

// ToolSchema describes one callable tool in the form chat models consume.
// InputSchema is a JSON schema document carried through verbatim.
type ToolSchema struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// Model is a stateless chat backend: conversation plus tool schemas in, the
// assistant's ordered response blocks out. One blocking round trip per call,
// no retries, no streaming.
type Model interface {
	Chat(ctx context.Context, messages []Message, tools []ToolSchema) ([]Block, error)
}
