package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Protocol-Lattice/todo-agent/pkg/mcp"
)

// normalizeResult flattens a tool invocation result into plain text for
// reinsertion into the conversation. A single text part is returned
// verbatim; mixed content concatenates textual payloads in order, rendering
// non-text parts as their JSON encoding. Never fails.
func normalizeResult(result mcp.CallResult) string {
	if len(result.Content) == 1 && result.Content[0].Type == "text" {
		return result.Content[0].Text
	}

	var b strings.Builder
	for _, part := range result.Content {
		if part.Type == "text" {
			b.WriteString(part.Text)
			continue
		}
		encoded, err := json.Marshal(part)
		if err != nil {
			b.WriteString(fmt.Sprintf("[%s content]", part.Type))
			continue
		}
		b.Write(encoded)
	}
	return b.String()
}
