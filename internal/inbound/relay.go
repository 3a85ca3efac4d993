// Package inbound pulls pending chat mentions from the relay service and
// turns them into local tasks, tracker tickets and wiki pages. The relay
// queues mentions while this machine is offline; the poller drains the queue
// and acknowledges each processed item.
package inbound

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ampdesk/amp/internal/types"
)

// RelayClient talks to the relay's HTTP API.
type RelayClient struct {
	http     *resty.Client
	botToken string
}

// NewRelayClient creates a relay client for the given base URL. The bot
// token authorizes chat side effects (replies and reactions) sent through
// the relay.
func NewRelayClient(baseURL, botToken string) *RelayClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &RelayClient{http: client, botToken: botToken}
}

// FetchPending returns the queued mentions awaiting processing. Items stay
// queued until Acknowledge succeeds.
func (c *RelayClient) FetchPending(ctx context.Context) ([]types.PendingItem, error) {
	var result struct {
		Success bool                `json:"success"`
		Error   string              `json:"error"`
		Tasks   []types.PendingItem `json:"tasks"`
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/pending-tasks")
	if err != nil {
		return nil, fmt.Errorf("fetch pending items: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch pending items: relay returned %s", resp.Status())
	}
	if !result.Success {
		return nil, fmt.Errorf("fetch pending items: %s", result.Error)
	}

	return result.Tasks, nil
}

// Acknowledge removes a processed item from the remote queue.
func (c *RelayClient) Acknowledge(ctx context.Context, itemID string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"taskId": itemID}).
		Post("/pending-tasks")
	if err != nil {
		return fmt.Errorf("acknowledge %s: %w", itemID, err)
	}
	if resp.IsError() {
		return fmt.Errorf("acknowledge %s: relay returned %s", itemID, resp.Status())
	}
	return nil
}

// Reply posts a threaded reply to the originating chat message.
func (c *RelayClient) Reply(ctx context.Context, channel, threadTS, text string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"channel":  channel,
			"threadTs": threadTS,
			"text":     text,
			"botToken": c.botToken,
		}).
		Post("/reply")
	if err != nil {
		return fmt.Errorf("reply in %s: %w", channel, err)
	}
	if resp.IsError() {
		return fmt.Errorf("reply in %s: relay returned %s", channel, resp.Status())
	}
	return nil
}

// AddReaction adds an emoji reaction to a chat message.
func (c *RelayClient) AddReaction(ctx context.Context, channel, timestamp, name string) error {
	return c.reaction(ctx, "/reactions/add", channel, timestamp, name)
}

// RemoveReaction removes an emoji reaction from a chat message.
func (c *RelayClient) RemoveReaction(ctx context.Context, channel, timestamp, name string) error {
	return c.reaction(ctx, "/reactions/remove", channel, timestamp, name)
}

func (c *RelayClient) reaction(ctx context.Context, path, channel, timestamp, name string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"channel":   channel,
			"timestamp": timestamp,
			"name":      name,
			"botToken":  c.botToken,
		}).
		Post(path)
	if err != nil {
		return fmt.Errorf("reaction %s on %s: %w", name, timestamp, err)
	}
	if resp.IsError() {
		return fmt.Errorf("reaction %s on %s: relay returned %s", name, timestamp, resp.Status())
	}
	return nil
}
