package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/ampdesk/amp/internal/session"
	"github.com/ampdesk/amp/internal/store"
	"github.com/ampdesk/amp/internal/suggest"
	"github.com/ampdesk/amp/internal/tasks"
	"github.com/ampdesk/amp/internal/types"
)

func testHandlers(t *testing.T) *Handlers {
	t.Helper()

	kv, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { kv.Close() })

	taskStore := tasks.NewStore(kv)
	cache := suggest.NewCache(kv, func(ctx context.Context) ([]types.Suggestion, error) {
		return []types.Suggestion{{ID: "email-1", Title: "Review this", Score: 80}}, nil
	}, 24*time.Hour, zerolog.Nop())
	coordinator := session.New(kv, session.ClientSet{}, zerolog.Nop())

	return NewHandlers(taskStore, cache, coordinator)
}

func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) != 1 {
		t.Fatalf("Expected one content block, got %d", len(result.Content))
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("Expected text content, got %T", result.Content[0])
	}
	return text.Text
}

func TestToolRegistry(t *testing.T) {
	want := []string{
		"tasks_list", "task_add", "task_complete",
		"suggestions_get", "suggestion_dismiss", "providers_status",
	}
	names := make(map[string]bool)
	for _, name := range AllToolNames() {
		names[name] = true
	}
	for _, name := range want {
		if !names[name] {
			t.Errorf("Missing tool %q", name)
		}
	}
	if len(names) != len(want) {
		t.Errorf("Unexpected tool count %d", len(names))
	}
}

func TestHandleTaskAddAndList(t *testing.T) {
	h := testHandlers(t)
	ctx := context.Background()

	result, err := h.HandleTaskAdd(ctx, makeRequest(map[string]any{
		"title":    "Prep for the design review",
		"priority": "high",
	}))
	if err != nil {
		t.Fatalf("HandleTaskAdd failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("HandleTaskAdd returned tool error: %s", resultText(t, result))
	}

	var created tasks.Task
	if err := json.Unmarshal([]byte(resultText(t, result)), &created); err != nil {
		t.Fatalf("parse created task: %v", err)
	}
	if created.ID == "" || created.Priority != "high" {
		t.Errorf("Unexpected created task %+v", created)
	}

	listResult, err := h.HandleTasksList(ctx, makeRequest(nil))
	if err != nil {
		t.Fatalf("HandleTasksList failed: %v", err)
	}
	var listed struct {
		Tasks []tasks.Task `json:"tasks"`
	}
	if err := json.Unmarshal([]byte(resultText(t, listResult)), &listed); err != nil {
		t.Fatalf("parse task list: %v", err)
	}
	if len(listed.Tasks) != 1 || listed.Tasks[0].ID != created.ID {
		t.Errorf("Unexpected task list %+v", listed.Tasks)
	}
}

func TestHandleTaskComplete_HidesFromDefaultList(t *testing.T) {
	h := testHandlers(t)
	ctx := context.Background()

	result, _ := h.HandleTaskAdd(ctx, makeRequest(map[string]any{"title": "done soon"}))
	var created tasks.Task
	if err := json.Unmarshal([]byte(resultText(t, result)), &created); err != nil {
		t.Fatalf("parse created task: %v", err)
	}

	completeResult, err := h.HandleTaskComplete(ctx, makeRequest(map[string]any{"id": created.ID}))
	if err != nil {
		t.Fatalf("HandleTaskComplete failed: %v", err)
	}
	if completeResult.IsError {
		t.Fatalf("HandleTaskComplete returned tool error: %s", resultText(t, completeResult))
	}

	listResult, _ := h.HandleTasksList(ctx, makeRequest(nil))
	var listed struct {
		Tasks []tasks.Task `json:"tasks"`
	}
	json.Unmarshal([]byte(resultText(t, listResult)), &listed)
	if len(listed.Tasks) != 0 {
		t.Errorf("Completed task should be hidden by default, got %+v", listed.Tasks)
	}

	allResult, _ := h.HandleTasksList(ctx, makeRequest(map[string]any{"include_completed": true}))
	json.Unmarshal([]byte(resultText(t, allResult)), &listed)
	if len(listed.Tasks) != 1 || !listed.Tasks[0].Completed {
		t.Errorf("Expected completed task with include_completed, got %+v", listed.Tasks)
	}
}

func TestHandleTaskAdd_MissingTitle(t *testing.T) {
	h := testHandlers(t)

	result, err := h.HandleTaskAdd(context.Background(), makeRequest(nil))
	if err != nil {
		t.Fatalf("HandleTaskAdd failed: %v", err)
	}
	if !result.IsError {
		t.Error("Expected tool error for missing title")
	}
}

func TestHandleSuggestions_GetAndDismiss(t *testing.T) {
	h := testHandlers(t)
	ctx := context.Background()

	result, err := h.HandleSuggestionsGet(ctx, makeRequest(nil))
	if err != nil {
		t.Fatalf("HandleSuggestionsGet failed: %v", err)
	}
	var got struct {
		Suggestions []types.Suggestion `json:"suggestions"`
	}
	if err := json.Unmarshal([]byte(resultText(t, result)), &got); err != nil {
		t.Fatalf("parse suggestions: %v", err)
	}
	if len(got.Suggestions) != 1 || got.Suggestions[0].ID != "email-1" {
		t.Errorf("Unexpected suggestions %+v", got.Suggestions)
	}

	if _, err := h.HandleSuggestionDismiss(ctx, makeRequest(map[string]any{"id": "email-1"})); err != nil {
		t.Fatalf("HandleSuggestionDismiss failed: %v", err)
	}

	result, _ = h.HandleSuggestionsGet(ctx, makeRequest(nil))
	if err := json.Unmarshal([]byte(resultText(t, result)), &got); err != nil {
		t.Fatalf("parse suggestions: %v", err)
	}
	if len(got.Suggestions) != 0 {
		t.Errorf("Dismissed suggestion still listed: %+v", got.Suggestions)
	}
}

func TestHandleProvidersStatus(t *testing.T) {
	h := testHandlers(t)

	result, err := h.HandleProvidersStatus(context.Background(), makeRequest(nil))
	if err != nil {
		t.Fatalf("HandleProvidersStatus failed: %v", err)
	}

	var status map[string]struct {
		Connected   bool `json:"connected"`
		NeedsReauth bool `json:"needs_reauth"`
	}
	if err := json.Unmarshal([]byte(resultText(t, result)), &status); err != nil {
		t.Fatalf("parse status: %v", err)
	}
	for _, provider := range []string{types.ProviderGoogle, types.ProviderSlack, types.ProviderZoom} {
		entry, ok := status[provider]
		if !ok {
			t.Errorf("Missing provider %q in status", provider)
			continue
		}
		if entry.Connected {
			t.Errorf("Provider %q should not be connected", provider)
		}
	}
}
