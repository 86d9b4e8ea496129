package models

import (
	"context"
)

// DummyLLM is a scripted model implementation useful for local testing
// without API calls. Each Chat call consumes the next entry of Script and
// records what it was asked.
type DummyLLM struct {
	// Script holds one response per expected Chat call, in order.
	Script [][]Block

	// Err, when set, is returned by every Chat call instead of a response.
	Err error

	// Recorded inputs, appended per call.
	Conversations [][]Message
	Tools         [][]ToolSchema

	next int
}

func (d *DummyLLM) Chat(_ context.Context, messages []Message, tools []ToolSchema) ([]Block, error) {
	// Snapshot the conversation: callers keep appending to their slice.
	conv := make([]Message, len(messages))
	copy(conv, messages)
	d.Conversations = append(d.Conversations, conv)
	d.Tools = append(d.Tools, tools)

	if d.Err != nil {
		return nil, d.Err
	}
	if d.next >= len(d.Script) {
		return []Block{TextBlock{Text: "<script exhausted>"}}, nil
	}
	resp := d.Script[d.next]
	d.next++
	return resp, nil
}

var _ Model = (*DummyLLM)(nil)
