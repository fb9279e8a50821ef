package prompts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/opentask/taskin/internal/task"
)

// SummaryPrompt handles the task-summary prompt. When the task can be
// loaded its current metadata is embedded in the request so the
// assistant does not need a round trip to answer.
type SummaryPrompt struct {
	store task.Storage
}

// NewSummaryPrompt creates a SummaryPrompt. store may be nil.
func NewSummaryPrompt(store task.Storage) *SummaryPrompt {
	return &SummaryPrompt{store: store}
}

// Definition returns the MCP prompt definition for registration.
func (p *SummaryPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("task-summary",
		mcp.WithPromptDescription("Generate a summary of a task for documentation or reports"),
		mcp.WithArgument("taskId",
			mcp.ArgumentDescription("The task ID to summarize"),
			mcp.RequiredArgument(),
		),
	)
}

// Handle processes the task-summary prompt request.
func (p *SummaryPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	id, err := taskIDArgument(req)
	if err != nil {
		return nil, err
	}

	var user strings.Builder
	fmt.Fprintf(&user, "Can you provide a summary of task %s?", id)

	if p.store != nil {
		t, err := p.store.FindTask(ctx, id)
		switch {
		case err == nil:
			fmt.Fprintf(&user, "\n\n- **Title**: %s\n- **Status**: %s\n- **Type**: %s", t.Title, t.Status, t.Type)
			if t.Assignee != "" {
				fmt.Fprintf(&user, "\n- **Assignee**: %s", t.Assignee)
			}
			if body := strings.TrimSpace(t.Content); body != "" {
				fmt.Fprintf(&user, "\n\n---\n\n%s", body)
			}
		case errors.Is(err, task.ErrNotFound):
			fmt.Fprintf(&user, "\n\n(Task %s was not found in the task directory.)", id)
		default:
			return nil, fmt.Errorf("loading task %s: %w", id, err)
		}
	}

	return &mcp.GetPromptResult{
		Description: "Generate task summary",
		Messages: exchange(
			user.String(),
			fmt.Sprintf("I'll generate a comprehensive summary of task %s including its current status, "+
				"description, and any relevant metadata.", id),
		),
	}, nil
}
