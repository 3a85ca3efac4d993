// Package slack provides the Slack OAuth flow and activity-feed client. The
// feed combines mentions, direct messages and saved items into normalized
// chat messages for the suggestion pipeline.
package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ampdesk/amp/internal/providers"
	"github.com/ampdesk/amp/internal/types"
)

const apiBaseURL = "https://slack.com/api"

// Client is a Slack Web API client using a user token with rotation.
type Client struct {
	clientID     string
	clientSecret string
	redirectURI  string
	baseURL      string
	httpClient   *http.Client

	mu     sync.RWMutex
	tokens providers.Tokens
	userID string // resolved lazily via auth.test, cleared on SetTokens
}

// NewClient creates an unauthenticated Slack client with explicit app
// credentials. Call SetTokens (or ExchangeCode) before reading activity.
func NewClient(clientID, clientSecret, redirectURI string) *Client {
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		baseURL:      apiBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetTokens replaces the credential set used for requests.
func (c *Client) SetTokens(tokens providers.Tokens) {
	c.mu.Lock()
	c.tokens = tokens
	c.userID = ""
	c.mu.Unlock()
}

func (c *Client) accessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tokens.AccessToken
}

type oauthResponse struct {
	OK         bool   `json:"ok"`
	Error      string `json:"error"`
	AuthedUser struct {
		ID           string `json:"id"`
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	} `json:"authed_user"`
}

// ExchangeCode trades an authorization code for a user token set.
func (c *Client) ExchangeCode(ctx context.Context, code string) (providers.Tokens, error) {
	data := url.Values{}
	data.Set("client_id", c.clientID)
	data.Set("client_secret", c.clientSecret)
	data.Set("code", code)
	data.Set("redirect_uri", c.redirectURI)

	return c.oauthRequest(ctx, data)
}

// RefreshToken rotates the user token. Slack rotation returns a new refresh
// token with every refresh.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (providers.Tokens, error) {
	if refreshToken == "" {
		return providers.Tokens{}, fmt.Errorf("slack: no refresh token available")
	}

	data := url.Values{}
	data.Set("client_id", c.clientID)
	data.Set("client_secret", c.clientSecret)
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)

	return c.oauthRequest(ctx, data)
}

func (c *Client) oauthRequest(ctx context.Context, data url.Values) (providers.Tokens, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/oauth.v2.access", strings.NewReader(data.Encode()))
	if err != nil {
		return providers.Tokens{}, fmt.Errorf("create oauth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return providers.Tokens{}, fmt.Errorf("oauth request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return providers.Tokens{}, fmt.Errorf("read oauth response: %w", err)
	}

	var or oauthResponse
	if err := json.Unmarshal(body, &or); err != nil {
		return providers.Tokens{}, fmt.Errorf("parse oauth response: %w", err)
	}
	if !or.OK {
		return providers.Tokens{}, &providers.APIError{Provider: "slack", Status: oauthStatus(or.Error), Message: or.Error}
	}

	tokens := providers.Tokens{
		AccessToken:  or.AuthedUser.AccessToken,
		RefreshToken: or.AuthedUser.RefreshToken,
	}
	if or.AuthedUser.ExpiresIn > 0 {
		tokens.ExpiresAt = time.Now().Add(time.Duration(or.AuthedUser.ExpiresIn) * time.Second)
	}
	return tokens, nil
}

// oauthStatus maps Slack oauth error strings to an HTTP-ish status so the
// session layer's unauthorized detection keeps working.
func oauthStatus(slackErr string) int {
	switch slackErr {
	case "invalid_auth", "token_expired", "token_revoked", "invalid_refresh_token":
		return http.StatusUnauthorized
	default:
		return http.StatusBadRequest
	}
}

// call makes an authenticated Web API call and decodes into out. Slack
// reports failures as {ok:false, error:"..."} with HTTP 200, so the error
// string is inspected to detect rejected credentials.
func (c *Client) call(ctx context.Context, method string, params url.Values, out any) error {
	endpoint := c.baseURL + "/" + method
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var envelope struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	if !envelope.OK {
		status := resp.StatusCode
		switch envelope.Error {
		case "invalid_auth", "token_expired", "token_revoked", "account_inactive":
			status = http.StatusUnauthorized
		}
		return &providers.APIError{Provider: "slack", Status: status, Message: envelope.Error}
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("parse %s response: %w", method, err)
		}
	}
	return nil
}

// currentUserID resolves and caches the authed user's ID.
func (c *Client) currentUserID(ctx context.Context) (string, error) {
	c.mu.RLock()
	cached := c.userID
	c.mu.RUnlock()
	if cached != "" {
		return cached, nil
	}

	var resp struct {
		UserID string `json:"user_id"`
	}
	if err := c.call(ctx, "auth.test", nil, &resp); err != nil {
		return "", err
	}

	c.mu.Lock()
	c.userID = resp.UserID
	c.mu.Unlock()
	return resp.UserID, nil
}

type slackMessage struct {
	TS        string `json:"ts"`
	ThreadTS  string `json:"thread_ts"`
	Text      string `json:"text"`
	User      string `json:"user"`
	Username  string `json:"username"`
	Channel   struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"channel"`
	Permalink string `json:"permalink"`
}

// ListActivity returns the user's recent mentions, direct messages and
// saved items as normalized chat messages.
func (c *Client) ListActivity(ctx context.Context) ([]types.ChatMessage, error) {
	userID, err := c.currentUserID(ctx)
	if err != nil {
		return nil, err
	}

	var activity []types.ChatMessage

	mentions, err := c.listMentions(ctx, userID)
	if err != nil {
		return nil, err
	}
	activity = append(activity, mentions...)

	dms, err := c.listDirectMessages(ctx, userID)
	if err != nil {
		return nil, err
	}
	activity = append(activity, dms...)

	saved, err := c.listSavedItems(ctx)
	if err != nil {
		return nil, err
	}
	activity = append(activity, saved...)

	return activity, nil
}

func (c *Client) listMentions(ctx context.Context, userID string) ([]types.ChatMessage, error) {
	params := url.Values{}
	params.Set("query", fmt.Sprintf("<@%s>", userID))
	params.Set("count", "20")
	params.Set("sort", "timestamp")

	var resp struct {
		Messages struct {
			Matches []slackMessage `json:"matches"`
		} `json:"messages"`
	}
	if err := c.call(ctx, "search.messages", params, &resp); err != nil {
		return nil, err
	}

	messages := make([]types.ChatMessage, 0, len(resp.Messages.Matches))
	for _, m := range resp.Messages.Matches {
		msg := convertMessage(m, types.ChatMention)
		// Replies addressed to the user surface as thread activity
		if m.ThreadTS != "" && m.ThreadTS != m.TS {
			msg.Type = types.ChatThread
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (c *Client) listDirectMessages(ctx context.Context, userID string) ([]types.ChatMessage, error) {
	params := url.Values{}
	params.Set("types", "im")
	params.Set("limit", "10")
	params.Set("exclude_archived", "true")

	var channels struct {
		Channels []struct {
			ID   string `json:"id"`
			User string `json:"user"`
		} `json:"channels"`
	}
	if err := c.call(ctx, "conversations.list", params, &channels); err != nil {
		return nil, err
	}

	var messages []types.ChatMessage
	for _, ch := range channels.Channels {
		history := url.Values{}
		history.Set("channel", ch.ID)
		history.Set("limit", "5")

		var resp struct {
			Messages []slackMessage `json:"messages"`
		}
		if err := c.call(ctx, "conversations.history", history, &resp); err != nil {
			return nil, err
		}

		for _, m := range resp.Messages {
			if m.User == userID {
				continue // Skip the user's own side of the conversation
			}
			msg := convertMessage(m, types.ChatDM)
			msg.Channel = ch.ID
			messages = append(messages, msg)
		}
	}
	return messages, nil
}

func (c *Client) listSavedItems(ctx context.Context) ([]types.ChatMessage, error) {
	params := url.Values{}
	params.Set("limit", "20")

	var resp struct {
		Items []struct {
			Type    string       `json:"type"`
			Channel string       `json:"channel"`
			Message slackMessage `json:"message"`
		} `json:"items"`
	}
	if err := c.call(ctx, "stars.list", params, &resp); err != nil {
		return nil, err
	}

	var messages []types.ChatMessage
	for _, item := range resp.Items {
		if item.Type != "message" {
			continue
		}
		msg := convertMessage(item.Message, types.ChatSaved)
		msg.Channel = item.Channel
		messages = append(messages, msg)
	}
	return messages, nil
}

func convertMessage(m slackMessage, msgType string) types.ChatMessage {
	return types.ChatMessage{
		ID:          m.TS,
		Type:        msgType,
		Text:        m.Text,
		Channel:     m.Channel.ID,
		ChannelName: m.Channel.Name,
		User:        m.User,
		UserName:    m.Username,
		Timestamp:   m.TS,
		Permalink:   m.Permalink,
	}
}
