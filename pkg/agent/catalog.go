package agent

import (
	"github.com/Protocol-Lattice/todo-agent/pkg/mcp"
	"github.com/Protocol-Lattice/todo-agent/pkg/models"
)

// toolSchemas maps discovered tool definitions onto the schema form chat
// models consume. Pure and deterministic: the same input yields identical
// output, and each InputSchema document passes through byte for byte.
func toolSchemas(defs []mcp.ToolDefinition) []models.ToolSchema {
	if len(defs) == 0 {
		return nil
	}

	schemas := make([]models.ToolSchema, 0, len(defs))
	for _, def := range defs {
		schemas = append(schemas, models.ToolSchema{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		})
	}
	return schemas
}
