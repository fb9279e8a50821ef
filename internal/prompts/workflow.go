// Package prompts implements the MCP prompt handlers for task workflows.
//
// Prompts are user-triggered (like slash commands): each one seeds the
// conversation with the steps the assistant should follow, pointing at
// the start_task and finish_task tools.
package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// taskIDArgument reads the taskId prompt argument.
func taskIDArgument(req mcp.GetPromptRequest) (string, error) {
	if args := req.Params.Arguments; args != nil {
		if id, ok := args["taskId"]; ok && id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("missing required argument: taskId")
}

func exchange(user, assistant string) []mcp.PromptMessage {
	return []mcp.PromptMessage{
		{Role: mcp.RoleUser, Content: mcp.NewTextContent(user)},
		{Role: mcp.RoleAssistant, Content: mcp.NewTextContent(assistant)},
	}
}

// StartWorkflowPrompt handles the start-task-workflow prompt.
type StartWorkflowPrompt struct{}

// NewStartWorkflowPrompt creates a StartWorkflowPrompt.
func NewStartWorkflowPrompt() *StartWorkflowPrompt {
	return &StartWorkflowPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StartWorkflowPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("start-task-workflow",
		mcp.WithPromptDescription("Guide the user through starting work on a task with git branch creation"),
		mcp.WithArgument("taskId",
			mcp.ArgumentDescription("The task ID to start"),
			mcp.RequiredArgument(),
		),
	)
}

// Handle processes the start-task-workflow prompt request.
func (p *StartWorkflowPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	id, err := taskIDArgument(req)
	if err != nil {
		return nil, err
	}
	return &mcp.GetPromptResult{
		Description: "Workflow for starting a task",
		Messages: exchange(
			fmt.Sprintf("I want to start working on task %s. Can you help me set everything up?", id),
			fmt.Sprintf("I'll help you start working on task %s. Here's what I'll do:\n\n"+
				"1. Mark the task as \"in-progress\"\n"+
				"2. Create a git branch based on the task type and ID\n"+
				"3. Ensure your working directory is clean\n"+
				"4. Switch to the new branch\n\n"+
				"Let me start by marking the task as in-progress using the start_task tool.", id),
		),
	}, nil
}

// FinishWorkflowPrompt handles the finish-task-workflow prompt.
type FinishWorkflowPrompt struct{}

// NewFinishWorkflowPrompt creates a FinishWorkflowPrompt.
func NewFinishWorkflowPrompt() *FinishWorkflowPrompt {
	return &FinishWorkflowPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *FinishWorkflowPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("finish-task-workflow",
		mcp.WithPromptDescription("Guide the user through completing a task with commit and PR creation"),
		mcp.WithArgument("taskId",
			mcp.ArgumentDescription("The task ID to finish"),
			mcp.RequiredArgument(),
		),
	)
}

// Handle processes the finish-task-workflow prompt request.
func (p *FinishWorkflowPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	id, err := taskIDArgument(req)
	if err != nil {
		return nil, err
	}
	return &mcp.GetPromptResult{
		Description: "Workflow for finishing a task",
		Messages: exchange(
			fmt.Sprintf("I've completed task %s. What should I do next?", id),
			fmt.Sprintf("Great! Let me help you finish task %s. Here's the workflow:\n\n"+
				"1. Mark the task as \"done\"\n"+
				"2. Ensure all changes are committed\n"+
				"3. Push your branch to remote\n"+
				"4. Create a pull request\n\n"+
				"Let me start by marking the task as done using the finish_task tool.", id),
		),
	}, nil
}
