package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/opentask/taskin/internal/lifecycle"
)

// StartTaskTool handles the start_task MCP tool.
type StartTaskTool struct {
	manager *lifecycle.Manager
}

// NewStartTaskTool creates a StartTaskTool over the given manager.
func NewStartTaskTool(manager *lifecycle.Manager) *StartTaskTool {
	return &StartTaskTool{manager: manager}
}

// Definition returns the MCP tool definition for registration.
func (t *StartTaskTool) Definition() mcp.Tool {
	return mcp.NewTool("start_task",
		mcp.WithDescription("Start working on a task by changing its status to in-progress"),
		mcp.WithString("taskId",
			mcp.Required(),
			mcp.Description("The task identifier, e.g. 001 or task-001"),
		),
	)
}

// Handle processes the start_task tool call.
func (t *StartTaskTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return runTransition(ctx, req, "started", t.manager.Start)
}
