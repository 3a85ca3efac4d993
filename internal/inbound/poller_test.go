package inbound

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ampdesk/amp/internal/providers/confluence"
	"github.com/ampdesk/amp/internal/providers/jira"
	"github.com/ampdesk/amp/internal/tasks"
	"github.com/ampdesk/amp/internal/types"
)

type fakeRelay struct {
	mu        sync.Mutex
	queue     []types.PendingItem
	ackErr    error
	acked     []string
	replies   []string
	reactions []string
}

func (f *fakeRelay) FetchPending(ctx context.Context) ([]types.PendingItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]types.PendingItem, len(f.queue))
	copy(items, f.queue)
	return items, nil
}

func (f *fakeRelay) Acknowledge(ctx context.Context, itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ackErr != nil {
		return f.ackErr
	}
	f.acked = append(f.acked, itemID)
	for i, item := range f.queue {
		if item.ID == itemID {
			f.queue = append(f.queue[:i], f.queue[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeRelay) Reply(ctx context.Context, channel, threadTS, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, text)
	return nil
}

func (f *fakeRelay) AddReaction(ctx context.Context, channel, timestamp, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions = append(f.reactions, "add:"+name)
	return nil
}

func (f *fakeRelay) RemoveReaction(ctx context.Context, channel, timestamp, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions = append(f.reactions, "remove:"+name)
	return nil
}

type taskSink struct {
	mu    sync.Mutex
	tasks []tasks.Task
	err   error
}

func (s *taskSink) create(task *tasks.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.tasks = append(s.tasks, *task)
	return nil
}

func pendingItem() types.PendingItem {
	return types.PendingItem{
		ID:          "item-1",
		Title:       "Investigate login failures",
		Description: "Users report intermittent 500s on login.",
		Channel:     "C012345",
		MessageTS:   "1712345678.000200",
		User:        "U0AAA",
	}
}

func newTestPoller(relay RelayAPI, handlers Handlers) *Poller {
	return NewPoller(relay, handlers, time.Second, zerolog.Nop())
}

func TestPoller_CreatesTask(t *testing.T) {
	relay := &fakeRelay{queue: []types.PendingItem{pendingItem()}}
	sink := &taskSink{}
	p := newTestPoller(relay, Handlers{CreateTask: sink.create})

	p.Poll(context.Background())

	if len(sink.tasks) != 1 {
		t.Fatalf("Expected 1 task, got %d", len(sink.tasks))
	}
	task := sink.tasks[0]
	if task.Title != "Investigate login failures" {
		t.Errorf("Unexpected title %q", task.Title)
	}
	if task.Source != tasks.SourceSlack || task.SourceID != "item-1" {
		t.Errorf("Unexpected provenance: source=%q sourceID=%q", task.Source, task.SourceID)
	}
	if len(task.LinkedItems) != 1 || task.LinkedItems[0].Type != "slack" {
		t.Fatalf("Expected one slack linked item, got %+v", task.LinkedItems)
	}
	if task.LinkedItems[0].URL != "https://slack.com/archives/C012345/p1712345678000200" {
		t.Errorf("Unexpected deep link %q", task.LinkedItems[0].URL)
	}
	if len(relay.acked) != 1 || relay.acked[0] != "item-1" {
		t.Errorf("Expected item acknowledged, got %v", relay.acked)
	}

	want := []string{
		"add:" + reactionInProgress,
		"remove:" + reactionInProgress,
		"add:" + reactionDone,
	}
	if len(relay.reactions) != len(want) {
		t.Fatalf("Unexpected reactions %v", relay.reactions)
	}
	for i, r := range want {
		if relay.reactions[i] != r {
			t.Errorf("Reaction %d: got %q, want %q", i, relay.reactions[i], r)
		}
	}
}

func TestPoller_JiraSuccess_RewritesTitle(t *testing.T) {
	item := pendingItem()
	item.ShouldCreateJira = true
	item.AssigneeEmail = "dev@example.com"
	relay := &fakeRelay{queue: []types.PendingItem{item}}
	sink := &taskSink{}

	var gotReq jira.IssueRequest
	p := newTestPoller(relay, Handlers{
		CreateTask: sink.create,
		CreateTicket: func(ctx context.Context, req jira.IssueRequest) (*types.IssueRef, error) {
			gotReq = req
			return &types.IssueRef{Key: "AMP-42", URL: "https://example.atlassian.net/browse/AMP-42"}, nil
		},
	})

	p.Poll(context.Background())

	if gotReq.Summary != item.Title || gotReq.AssigneeEmail != "dev@example.com" {
		t.Errorf("Unexpected issue request %+v", gotReq)
	}
	if len(sink.tasks) != 1 {
		t.Fatalf("Expected 1 task, got %d", len(sink.tasks))
	}
	task := sink.tasks[0]
	if task.Title != "Validate Jira ticket: AMP-42" {
		t.Errorf("Expected rewritten title, got %q", task.Title)
	}
	if len(task.LinkedItems) != 2 {
		t.Fatalf("Expected slack and jira linked items, got %+v", task.LinkedItems)
	}
	if task.LinkedItems[1].Type != "jira" || task.LinkedItems[1].URL != "https://example.atlassian.net/browse/AMP-42" {
		t.Errorf("Unexpected jira link %+v", task.LinkedItems[1])
	}
	if len(relay.replies) != 1 || !strings.Contains(relay.replies[0], "AMP-42") {
		t.Errorf("Expected reply mentioning the ticket, got %v", relay.replies)
	}
}

func TestPoller_JiraFailure_AnnotatesTask(t *testing.T) {
	item := pendingItem()
	item.ShouldCreateJira = true
	relay := &fakeRelay{queue: []types.PendingItem{item}}
	sink := &taskSink{}
	p := newTestPoller(relay, Handlers{
		CreateTask: sink.create,
		CreateTicket: func(ctx context.Context, req jira.IssueRequest) (*types.IssueRef, error) {
			return nil, errors.New("project not found")
		},
	})

	p.Poll(context.Background())

	if len(sink.tasks) != 1 {
		t.Fatalf("Expected task despite ticket failure, got %d", len(sink.tasks))
	}
	task := sink.tasks[0]
	if task.Title != item.Title {
		t.Errorf("Title must not be rewritten on failure, got %q", task.Title)
	}
	if !strings.HasPrefix(task.Description, "Jira ticket creation failed: project not found") {
		t.Errorf("Expected failure annotation, got %q", task.Description)
	}
	if len(relay.acked) != 1 {
		t.Errorf("Expected item acknowledged, got %v", relay.acked)
	}
}

func TestPoller_ConfluenceSuccess_NoTask(t *testing.T) {
	item := pendingItem()
	item.ShouldCreateConfluence = true
	relay := &fakeRelay{queue: []types.PendingItem{item}}
	sink := &taskSink{}

	pages := 0
	p := newTestPoller(relay, Handlers{
		CreateTask: sink.create,
		CreatePage: func(ctx context.Context, req confluence.PageRequest) (*types.PageRef, error) {
			pages++
			return &types.PageRef{ID: "99", URL: "https://example.atlassian.net/wiki/spaces/OPS/pages/99"}, nil
		},
	})

	p.Poll(context.Background())

	if pages != 1 {
		t.Fatalf("Expected 1 page created, got %d", pages)
	}
	if len(sink.tasks) != 0 {
		t.Errorf("Page success must not create a task, got %d", len(sink.tasks))
	}
	if len(relay.replies) != 1 || !strings.Contains(relay.replies[0], "https://example.atlassian.net/wiki/spaces/OPS/pages/99") {
		t.Errorf("Expected reply with the page URL, got %v", relay.replies)
	}
	if len(relay.acked) != 1 {
		t.Errorf("Expected item acknowledged, got %v", relay.acked)
	}
}

func TestPoller_ConfluenceFailure_FallsBackToTask(t *testing.T) {
	item := pendingItem()
	item.ShouldCreateConfluence = true
	item.ShouldCreateJira = true // must be skipped on the fallback path
	relay := &fakeRelay{queue: []types.PendingItem{item}}
	sink := &taskSink{}

	tickets := 0
	p := newTestPoller(relay, Handlers{
		CreateTask: sink.create,
		CreateTicket: func(ctx context.Context, req jira.IssueRequest) (*types.IssueRef, error) {
			tickets++
			return &types.IssueRef{Key: "AMP-1"}, nil
		},
		CreatePage: func(ctx context.Context, req confluence.PageRequest) (*types.PageRef, error) {
			return nil, errors.New("space not found")
		},
	})

	p.Poll(context.Background())

	if len(sink.tasks) != 1 {
		t.Fatalf("Expected fallback task, got %d", len(sink.tasks))
	}
	if tickets != 0 {
		t.Error("Jira must be skipped when the page path was chosen")
	}
	if !strings.HasPrefix(sink.tasks[0].Description, "Confluence page creation failed: space not found") {
		t.Errorf("Expected failure annotation, got %q", sink.tasks[0].Description)
	}
}

func TestPoller_TaskFailure_NoAcknowledge(t *testing.T) {
	relay := &fakeRelay{queue: []types.PendingItem{pendingItem()}}
	sink := &taskSink{err: errors.New("disk full")}
	p := newTestPoller(relay, Handlers{CreateTask: sink.create})

	p.Poll(context.Background())

	if len(relay.acked) != 0 {
		t.Errorf("Failed task creation must not acknowledge, got %v", relay.acked)
	}
}

func TestPoller_AckFailure_Reprocesses(t *testing.T) {
	relay := &fakeRelay{queue: []types.PendingItem{pendingItem()}, ackErr: errors.New("relay down")}
	sink := &taskSink{}
	p := newTestPoller(relay, Handlers{CreateTask: sink.create})

	p.Poll(context.Background())

	relay.mu.Lock()
	relay.ackErr = nil
	relay.mu.Unlock()
	p.Poll(context.Background())

	// At-least-once: the unacknowledged item is processed again, so the
	// task is duplicated rather than lost.
	if len(sink.tasks) != 2 {
		t.Fatalf("Expected item reprocessed after failed ack, got %d tasks", len(sink.tasks))
	}
	if len(relay.acked) != 1 {
		t.Errorf("Expected one successful acknowledge, got %v", relay.acked)
	}
}

type blockingRelay struct {
	fakeRelay
	started chan struct{}
	release chan struct{}
}

func (b *blockingRelay) FetchPending(ctx context.Context) ([]types.PendingItem, error) {
	b.started <- struct{}{}
	<-b.release
	return nil, nil
}

func TestPoller_SingleFlight(t *testing.T) {
	relay := &blockingRelay{
		started: make(chan struct{}, 2),
		release: make(chan struct{}),
	}
	p := newTestPoller(relay, Handlers{CreateTask: func(*tasks.Task) error { return nil }})

	go p.Poll(context.Background())
	<-relay.started

	// Second poll while the first is in flight must be a no-op
	p.Poll(context.Background())
	select {
	case <-relay.started:
		t.Fatal("Overlapping poll started a second fetch")
	default:
	}

	close(relay.release)
}
