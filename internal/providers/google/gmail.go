package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/ampdesk/amp/internal/providers"
	"github.com/ampdesk/amp/internal/types"
)

const gmailBaseURL = "https://gmail.googleapis.com/gmail/v1"

// GmailClient reads the user's Gmail inbox.
type GmailClient struct {
	baseURL    string
	httpClient *http.Client

	mu     sync.RWMutex
	tokens providers.Tokens
}

// NewGmailClient creates an unauthenticated Gmail client. Call SetTokens
// before making requests.
func NewGmailClient() *GmailClient {
	return &GmailClient{
		baseURL: gmailBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetTokens replaces the credential set used for requests.
func (c *GmailClient) SetTokens(tokens providers.Tokens) {
	c.mu.Lock()
	c.tokens = tokens
	c.mu.Unlock()
}

func (c *GmailClient) accessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tokens.AccessToken
}

func (c *GmailClient) request(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		msg := string(body)
		if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
			msg = errResp.Error.Message
		}
		return nil, &providers.APIError{Provider: "gmail", Status: resp.StatusCode, Message: msg}
	}

	return body, nil
}

// ListRecentMessages retrieves up to max recent inbox messages with their
// subject, sender and unread/starred flags.
func (c *GmailClient) ListRecentMessages(ctx context.Context, max int) ([]types.EmailMessage, error) {
	if max <= 0 {
		max = 20
	}

	params := url.Values{}
	params.Set("maxResults", strconv.Itoa(max))
	params.Set("q", "in:inbox newer_than:2d")

	data, err := c.request(ctx, "/users/me/messages?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var list struct {
		Messages []struct {
			ID       string `json:"id"`
			ThreadID string `json:"threadId"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse message list: %w", err)
	}

	messages := make([]types.EmailMessage, 0, len(list.Messages))
	for _, ref := range list.Messages {
		msg, err := c.getMessage(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

func (c *GmailClient) getMessage(ctx context.Context, id string) (types.EmailMessage, error) {
	params := url.Values{}
	params.Set("format", "metadata")
	params.Add("metadataHeaders", "Subject")
	params.Add("metadataHeaders", "From")

	data, err := c.request(ctx, "/users/me/messages/"+url.PathEscape(id)+"?"+params.Encode())
	if err != nil {
		return types.EmailMessage{}, err
	}

	var raw struct {
		ID       string   `json:"id"`
		ThreadID string   `json:"threadId"`
		Snippet  string   `json:"snippet"`
		LabelIDs []string `json:"labelIds"`
		Payload  struct {
			Headers []struct {
				Name  string `json:"name"`
				Value string `json:"value"`
			} `json:"headers"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return types.EmailMessage{}, fmt.Errorf("parse message: %w", err)
	}

	msg := types.EmailMessage{
		ID:       raw.ID,
		ThreadID: raw.ThreadID,
		Snippet:  raw.Snippet,
	}
	for _, h := range raw.Payload.Headers {
		switch h.Name {
		case "Subject":
			msg.Subject = h.Value
		case "From":
			msg.From = h.Value
		}
	}
	for _, label := range raw.LabelIDs {
		switch label {
		case "UNREAD":
			msg.Unread = true
		case "STARRED":
			msg.Starred = true
		}
	}

	return msg, nil
}
