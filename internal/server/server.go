// Package server wires the MCP tools, prompts and resources into one
// server instance.
//
// This is a composition root: it receives the task storage and the
// lifecycle manager already built and hands them to the handlers that
// need them. No business logic lives here.
package server

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/opentask/taskin/internal/lifecycle"
	"github.com/opentask/taskin/internal/prompts"
	"github.com/opentask/taskin/internal/resources"
	"github.com/opentask/taskin/internal/task"
	"github.com/opentask/taskin/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Name is the server name reported during the MCP handshake.
const Name = "taskin-mcp-server"

// New creates the MCP server over store, with transitions applied by
// manager. The manager must be built over the same store.
func New(store task.Storage, manager *lifecycle.Manager) *server.MCPServer {
	s := server.NewMCPServer(
		Name,
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Tools ---

	startTool := tools.NewStartTaskTool(manager)
	s.AddTool(startTool.Definition(), startTool.Handle)

	finishTool := tools.NewFinishTaskTool(manager)
	s.AddTool(finishTool.Definition(), finishTool.Handle)

	// --- Prompts ---

	startPrompt := prompts.NewStartWorkflowPrompt()
	s.AddPrompt(startPrompt.Definition(), startPrompt.Handle)

	finishPrompt := prompts.NewFinishWorkflowPrompt()
	s.AddPrompt(finishPrompt.Definition(), finishPrompt.Handle)

	summaryPrompt := prompts.NewSummaryPrompt(store)
	s.AddPrompt(summaryPrompt.Definition(), summaryPrompt.Handle)

	// --- Resources ---

	resourceHandler := resources.NewHandler(store)
	s.AddResource(resourceHandler.TasksResource(), resourceHandler.HandleTasks)

	return s
}

// serverInstructions tells the assistant how the task tools fit together.
func serverInstructions() string {
	return `You have access to taskin, a task manager backed by markdown documents
in the project's task directory (task-NNN-title.md).

## Tools

- start_task(taskId): mark a task in-progress. Fails if the task is already
  in progress or already done.
- finish_task(taskId): mark a task done. Finishing a done task is accepted.

Task ids may be given as "001", "1" or "task-001".

## Workflow

1. Read taskin://tasks to see every task with its status and type.
2. Before writing code for a task, call start_task and create a branch named
   after the task type and id (e.g. feat/task-001).
3. When the work is committed, call finish_task and open a pull request.

Use the start-task-workflow, finish-task-workflow and task-summary prompts
when the user asks for those flows.`
}
