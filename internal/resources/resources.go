// Package resources implements MCP resource handlers for task data.
//
// Resources are read-only and addressed by URI (taskin://...).
package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/opentask/taskin/internal/task"
)

// TasksURI addresses the full task list.
const TasksURI = "taskin://tasks"

// Handler manages task resource endpoints.
type Handler struct {
	store task.Storage
}

// NewHandler creates a resource Handler over store.
func NewHandler(store task.Storage) *Handler {
	return &Handler{store: store}
}

// TasksResource returns the MCP resource definition for the task list.
func (h *Handler) TasksResource() mcp.Resource {
	return mcp.NewResource(
		TasksURI,
		"All Tasks",
		mcp.WithResourceDescription("Access to all tasks in the system"),
		mcp.WithMIMEType("application/json"),
	)
}

// listedTask omits the document body.
type listedTask struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Status     task.Status `json:"status"`
	Type       task.Type   `json:"type"`
	Assignee   string      `json:"assignee,omitempty"`
	ModifiedAt time.Time   `json:"modifiedAt"`
	FilePath   string      `json:"filePath,omitempty"`
}

// HandleTasks returns every task as a JSON document.
func (h *Handler) HandleTasks(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	tasks, err := h.store.GetAllTasks(ctx)
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}

	list := make([]listedTask, 0, len(tasks))
	for _, t := range tasks {
		list = append(list, listedTask{
			ID:         t.ID,
			Title:      t.Title,
			Status:     t.Status,
			Type:       t.Type,
			Assignee:   t.Assignee,
			ModifiedAt: t.ModifiedAt,
			FilePath:   t.FilePath,
		})
	}

	data, err := json.MarshalIndent(struct {
		Count int          `json:"count"`
		Tasks []listedTask `json:"tasks"`
	}{len(list), list}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling tasks: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
