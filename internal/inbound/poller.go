package inbound

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ampdesk/amp/internal/logging"
	"github.com/ampdesk/amp/internal/providers/confluence"
	"github.com/ampdesk/amp/internal/providers/jira"
	"github.com/ampdesk/amp/internal/tasks"
	"github.com/ampdesk/amp/internal/types"
)

// Reactions marking an item's progress on the original chat message.
const (
	reactionInProgress = "hourglass_flowing_sand"
	reactionDone       = "white_check_mark"
)

// RelayAPI is the surface of the relay the poller needs.
type RelayAPI interface {
	FetchPending(ctx context.Context) ([]types.PendingItem, error)
	Acknowledge(ctx context.Context, itemID string) error
	Reply(ctx context.Context, channel, threadTS, text string) error
	AddReaction(ctx context.Context, channel, timestamp, name string) error
	RemoveReaction(ctx context.Context, channel, timestamp, name string) error
}

// Handlers are the local effects the poller can apply to a pending item.
// CreateTicket and CreatePage are nil when the integration is not configured.
type Handlers struct {
	CreateTask   func(task *tasks.Task) error
	CreateTicket func(ctx context.Context, req jira.IssueRequest) (*types.IssueRef, error)
	CreatePage   func(ctx context.Context, req confluence.PageRequest) (*types.PageRef, error)
}

// Poller drains the relay's pending-mention queue on a fixed interval.
// Items are only acknowledged after local processing succeeds, so a crash or
// a failed acknowledge reprocesses the item on a later cycle.
type Poller struct {
	relay    RelayAPI
	handlers Handlers
	interval time.Duration
	log      zerolog.Logger

	polling atomic.Bool
	stop    chan struct{}
	done    chan struct{}
}

// NewPoller creates a poller. Call Start to begin polling.
func NewPoller(relay RelayAPI, handlers Handlers, interval time.Duration, log zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Poller{
		relay:    relay,
		handlers: handlers,
		interval: interval,
		log:      log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the poll loop. The first poll runs immediately.
func (p *Poller) Start(ctx context.Context) {
	go func() {
		defer close(p.done)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		p.Poll(ctx)
		for {
			select {
			case <-p.stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.Poll(ctx)
			}
		}
	}()
}

// Stop ends the poll loop. An in-flight poll is allowed to finish.
func (p *Poller) Stop() {
	close(p.stop)
	<-p.done
}

// Poll fetches and processes the pending queue once. Overlapping calls are
// coalesced: if a poll is already running this one is skipped.
func (p *Poller) Poll(ctx context.Context) {
	if !p.polling.CompareAndSwap(false, true) {
		return
	}
	defer p.polling.Store(false)

	items, err := p.relay.FetchPending(ctx)
	if err != nil {
		p.log.Warn().Err(err).Msg("fetch pending items failed")
		return
	}
	if len(items) == 0 {
		return
	}

	p.log.Info().Int("count", len(items)).Msg("processing pending items")
	for _, item := range items {
		p.processItem(ctx, item)
	}
}

// processItem applies the local effects for one pending mention. Chat side
// effects (reactions, replies) are best-effort; only task creation gates the
// acknowledge.
func (p *Poller) processItem(ctx context.Context, item types.PendingItem) {
	p.log.Debug().Str("item", item.ID).Str("title", logging.Truncate(item.Title, 60)).Msg("processing item")

	if err := p.relay.AddReaction(ctx, item.Channel, item.MessageTS, reactionInProgress); err != nil {
		p.log.Debug().Err(err).Str("item", item.ID).Msg("add reaction failed")
	}

	var pageErr error
	if item.ShouldCreateConfluence {
		if done := p.createPage(ctx, item, &pageErr); done {
			return
		}
	}

	task := p.buildTask(ctx, item, pageErr)
	if err := p.handlers.CreateTask(task); err != nil {
		// No acknowledge: the item stays queued and is retried next cycle.
		p.log.Error().Err(err).Str("item", item.ID).Msg("create task failed")
		return
	}

	p.reply(ctx, item, replyText(task))
	p.finish(ctx, item)
}

// createPage handles the Confluence path. On success the item is fully
// resolved remotely and no local task is created. On failure it reports
// false so the caller falls back to a task carrying the error.
func (p *Poller) createPage(ctx context.Context, item types.PendingItem, pageErr *error) bool {
	if p.handlers.CreatePage == nil {
		*pageErr = fmt.Errorf("confluence is not configured")
		return false
	}

	page, err := p.handlers.CreatePage(ctx, confluence.PageRequest{
		Title:   item.Title,
		Content: item.Description,
	})
	if err != nil {
		p.log.Warn().Err(err).Str("item", item.ID).Msg("create page failed")
		*pageErr = err
		return false
	}

	p.log.Info().Str("item", item.ID).Str("page", page.ID).Msg("created page")
	p.reply(ctx, item, "Created a Confluence page for this: "+page.URL)
	p.finish(ctx, item)
	return true
}

// buildTask assembles the local task for an item, creating the tracker
// ticket first when requested so the task can point at it.
func (p *Poller) buildTask(ctx context.Context, item types.PendingItem, pageErr error) *tasks.Task {
	task := &tasks.Task{
		Title:       item.Title,
		Source:      tasks.SourceSlack,
		SourceID:    item.ID,
		Description: item.Description,
		LinkedItems: []tasks.LinkedItem{{
			ID:    item.MessageTS,
			Type:  "slack",
			Title: "Original message",
			URL:   slackArchiveLink(item),
		}},
	}

	if pageErr != nil {
		// The user asked for a page; surface the failure instead of
		// silently downgrading to a plain task.
		task.Description = "Confluence page creation failed: " + pageErr.Error() + "\n\n" + task.Description
		return task
	}

	if !item.ShouldCreateJira {
		return task
	}
	if p.handlers.CreateTicket == nil {
		task.Description = "Jira is not configured; ticket not created.\n\n" + task.Description
		return task
	}

	issue, err := p.handlers.CreateTicket(ctx, jira.IssueRequest{
		Summary:       item.Title,
		Description:   item.Description,
		AssigneeEmail: item.AssigneeEmail,
	})
	if err != nil {
		p.log.Warn().Err(err).Str("item", item.ID).Msg("create ticket failed")
		task.Description = "Jira ticket creation failed: " + err.Error() + "\n\n" + task.Description
		return task
	}

	p.log.Info().Str("item", item.ID).Str("issue", issue.Key).Msg("created ticket")
	task.Title = "Validate Jira ticket: " + issue.Key
	task.LinkedItems = append(task.LinkedItems, tasks.LinkedItem{
		ID:    issue.Key,
		Type:  "jira",
		Title: issue.Key,
		URL:   issue.URL,
	})
	return task
}

// finish swaps the progress reaction for the done one and acknowledges the
// item. An acknowledge failure leaves the item queued for the next cycle;
// processing it again is the accepted cost of never losing one.
func (p *Poller) finish(ctx context.Context, item types.PendingItem) {
	if err := p.relay.RemoveReaction(ctx, item.Channel, item.MessageTS, reactionInProgress); err != nil {
		p.log.Debug().Err(err).Str("item", item.ID).Msg("remove reaction failed")
	}
	if err := p.relay.AddReaction(ctx, item.Channel, item.MessageTS, reactionDone); err != nil {
		p.log.Debug().Err(err).Str("item", item.ID).Msg("add reaction failed")
	}
	if err := p.relay.Acknowledge(ctx, item.ID); err != nil {
		p.log.Warn().Err(err).Str("item", item.ID).Msg("acknowledge failed, item will be reprocessed")
	}
}

func (p *Poller) reply(ctx context.Context, item types.PendingItem, text string) {
	threadTS := item.ThreadTS
	if threadTS == "" {
		threadTS = item.MessageTS
	}
	if err := p.relay.Reply(ctx, item.Channel, threadTS, text); err != nil {
		p.log.Debug().Err(err).Str("item", item.ID).Msg("reply failed")
	}
}

func replyText(task *tasks.Task) string {
	for _, linked := range task.LinkedItems {
		if linked.Type == "jira" {
			return fmt.Sprintf("Created %s and added a task to validate it: %s", linked.Title, linked.URL)
		}
	}
	return "Added to your task list: " + task.Title
}

// slackArchiveLink builds the archive deep link for the originating message.
func slackArchiveLink(item types.PendingItem) string {
	ts := strings.Replace(item.MessageTS, ".", "", 1)
	return fmt.Sprintf("https://slack.com/archives/%s/p%s", item.Channel, ts)
}
