package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ampdesk/amp/internal/session"
	"github.com/ampdesk/amp/internal/suggest"
	"github.com/ampdesk/amp/internal/tasks"
	"github.com/ampdesk/amp/internal/types"
)

// Tool definitions

var tasksListToolDef = mcp.NewTool("tasks_list",
	mcp.WithDescription("List the user's tasks, newest first. Completed tasks are excluded unless include_completed is set."),
	mcp.WithBoolean("include_completed", mcp.Description("Include completed tasks")),
)

var taskAddToolDef = mcp.NewTool("task_add",
	mcp.WithDescription("Add a task to the user's list."),
	mcp.WithString("title", mcp.Required(), mcp.Description("Task title")),
	mcp.WithString("description", mcp.Description("Longer task description")),
	mcp.WithString("priority", mcp.Description("low, medium or high")),
)

var taskCompleteToolDef = mcp.NewTool("task_complete",
	mcp.WithDescription("Mark a task as completed."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Task ID")),
)

var suggestionsGetToolDef = mcp.NewTool("suggestions_get",
	mcp.WithDescription("Get ranked smart suggestions from the user's calendar, email and chat activity."),
	mcp.WithBoolean("force_refresh", mcp.Description("Recompute instead of serving the cached list")),
)

var suggestionDismissToolDef = mcp.NewTool("suggestion_dismiss",
	mcp.WithDescription("Hide a suggestion from future suggestion lists."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Suggestion ID")),
)

var providersStatusToolDef = mcp.NewTool("providers_status",
	mcp.WithDescription("Report connection status for each provider."),
)

// Handlers holds the core services MCP tools operate on.
type Handlers struct {
	tasks       *tasks.Store
	cache       *suggest.Cache
	coordinator *session.Coordinator
}

// NewHandlers creates a Handlers instance.
func NewHandlers(taskStore *tasks.Store, cache *suggest.Cache, coordinator *session.Coordinator) *Handlers {
	return &Handlers{tasks: taskStore, cache: cache, coordinator: coordinator}
}

// Request types

// TasksListRequest represents the arguments for tasks_list.
type TasksListRequest struct {
	IncludeCompleted bool `json:"include_completed,omitempty"`
}

// TaskAddRequest represents the arguments for task_add.
type TaskAddRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
}

// TaskCompleteRequest represents the arguments for task_complete.
type TaskCompleteRequest struct {
	ID string `json:"id"`
}

// SuggestionsGetRequest represents the arguments for suggestions_get.
type SuggestionsGetRequest struct {
	ForceRefresh bool `json:"force_refresh,omitempty"`
}

// SuggestionDismissRequest represents the arguments for suggestion_dismiss.
type SuggestionDismissRequest struct {
	ID string `json:"id"`
}

// Handler implementations

// HandleTasksList handles the tasks_list tool call.
func (h *Handlers) HandleTasksList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TasksListRequest](req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	list, err := h.tasks.List()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if !input.IncludeCompleted {
		open := list[:0]
		for _, task := range list {
			if !task.Completed {
				open = append(open, task)
			}
		}
		list = open
	}

	return mcp.NewToolResultJSON(map[string]any{"tasks": list})
}

// HandleTaskAdd handles the task_add tool call.
func (h *Handlers) HandleTaskAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TaskAddRequest](req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if input.Title == "" {
		return mcp.NewToolResultError("title is required"), nil
	}

	task := &tasks.Task{
		Title:       input.Title,
		Description: input.Description,
		Priority:    input.Priority,
	}
	if err := h.tasks.Add(task); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultJSON(task)
}

// HandleTaskComplete handles the task_complete tool call.
func (h *Handlers) HandleTaskComplete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[TaskCompleteRequest](req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if input.ID == "" {
		return mcp.NewToolResultError("id is required"), nil
	}

	task, err := h.tasks.Complete(input.ID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultJSON(task)
}

// HandleSuggestionsGet handles the suggestions_get tool call.
func (h *Handlers) HandleSuggestionsGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SuggestionsGetRequest](req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	suggestions, err := h.cache.Get(ctx, input.ForceRefresh)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultJSON(map[string]any{"suggestions": suggestions})
}

// HandleSuggestionDismiss handles the suggestion_dismiss tool call.
func (h *Handlers) HandleSuggestionDismiss(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SuggestionDismissRequest](req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if input.ID == "" {
		return mcp.NewToolResultError("id is required"), nil
	}

	if err := h.cache.Dismiss(input.ID); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultJSON(map[string]any{"dismissed": input.ID})
}

// HandleProvidersStatus handles the providers_status tool call.
func (h *Handlers) HandleProvidersStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := make(map[string]any)
	for _, provider := range []string{types.ProviderGoogle, types.ProviderSlack, types.ProviderZoom} {
		status[provider] = map[string]bool{
			"connected":    h.coordinator.Connected(provider),
			"needs_reauth": h.coordinator.NeedsReauth(provider),
		}
	}
	return mcp.NewToolResultJSON(status)
}
