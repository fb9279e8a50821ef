// Package tools implements the MCP tool handlers that let an assistant
// drive task transitions.
//
// Each tool is a struct holding its dependencies, with a Definition for
// registration and a Handle compatible with mcp-go's CallToolRequest
// signature. Tools only see the lifecycle manager, never the storage
// behind it.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/opentask/taskin/internal/task"
)

// transitionFunc is the shape shared by the manager's transition methods.
type transitionFunc func(ctx context.Context, id string) (*task.Task, error)

// transitionResult is the JSON body returned by every transition tool.
type transitionResult struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Task    task.Summary `json:"task"`
}

// runTransition reads the taskId argument, applies fn and renders the
// result. Unknown tasks and rejected transitions are tool errors the
// assistant can read; anything else is an infrastructure error.
func runTransition(ctx context.Context, req mcp.CallToolRequest, verb string, fn transitionFunc) (*mcp.CallToolResult, error) {
	id := req.GetString("taskId", "")
	if id == "" {
		return mcp.NewToolResultError("taskId is required"), nil
	}

	t, err := fn(ctx, id)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) || errors.Is(err, task.ErrInvalidTransition) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return nil, fmt.Errorf("%s task %s: %w", verb, id, err)
	}

	data, err := json.MarshalIndent(transitionResult{
		Success: true,
		Message: fmt.Sprintf("Task %s %s successfully", id, verb),
		Task:    t.Summary(),
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
