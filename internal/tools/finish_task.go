package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/opentask/taskin/internal/lifecycle"
)

// FinishTaskTool handles the finish_task MCP tool.
// Finishing an already finished task succeeds and leaves it done.
type FinishTaskTool struct {
	manager *lifecycle.Manager
}

// NewFinishTaskTool creates a FinishTaskTool over the given manager.
func NewFinishTaskTool(manager *lifecycle.Manager) *FinishTaskTool {
	return &FinishTaskTool{manager: manager}
}

// Definition returns the MCP tool definition for registration.
func (t *FinishTaskTool) Definition() mcp.Tool {
	return mcp.NewTool("finish_task",
		mcp.WithDescription("Mark a task as completed by changing its status to done"),
		mcp.WithString("taskId",
			mcp.Required(),
			mcp.Description("The task identifier, e.g. 001 or task-001"),
		),
	)
}

// Handle processes the finish_task tool call.
func (t *FinishTaskTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return runTransition(ctx, req, "finished", t.manager.Finish)
}
