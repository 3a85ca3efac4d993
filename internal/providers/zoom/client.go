// Package zoom provides the Zoom OAuth flow and meeting-creation client.
package zoom

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ampdesk/amp/internal/providers"
	"github.com/ampdesk/amp/internal/types"
)

const (
	tokenURL   = "https://zoom.us/oauth/token"
	apiBaseURL = "https://api.zoom.us/v2"
)

// Client is a Zoom REST client using per-user OAuth tokens.
type Client struct {
	clientID     string
	clientSecret string
	redirectURI  string
	tokenURL     string
	baseURL      string
	httpClient   *http.Client

	mu     sync.RWMutex
	tokens providers.Tokens
}

// NewClient creates an unauthenticated Zoom client with explicit app
// credentials.
func NewClient(clientID, clientSecret, redirectURI string) *Client {
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		tokenURL:     tokenURL,
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
	c.mu.Unlock()
}

func (c *Client) accessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tokens.AccessToken
}

// ExchangeCode trades an authorization code for a token set.
func (c *Client) ExchangeCode(ctx context.Context, code string) (providers.Tokens, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("redirect_uri", c.redirectURI)

	return c.tokenRequest(ctx, data)
}

// RefreshToken obtains a fresh token set. Zoom rotates the refresh token on
// every refresh.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (providers.Tokens, error) {
	if refreshToken == "" {
		return providers.Tokens{}, fmt.Errorf("zoom: no refresh token available")
	}

	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)

	return c.tokenRequest(ctx, data)
}

func (c *Client) tokenRequest(ctx context.Context, data url.Values) (providers.Tokens, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return providers.Tokens{}, fmt.Errorf("create token request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return providers.Tokens{}, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return providers.Tokens{}, fmt.Errorf("read token response: %w", err)
	}

	var tr struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
		Reason       string `json:"reason"`
	}
	if err := json.Unmarshal(body, &tr); err != nil {
		return providers.Tokens{}, fmt.Errorf("parse token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := tr.Reason
		if msg == "" {
			msg = string(body)
		}
		return providers.Tokens{}, &providers.APIError{Provider: "zoom", Status: resp.StatusCode, Message: msg}
	}

	return providers.Tokens{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}

// CreateMeeting schedules a meeting for the authed user.
func (c *Client) CreateMeeting(ctx context.Context, topic string, startsAt time.Time, duration time.Duration) (*types.Meeting, error) {
	body := map[string]any{
		"topic":      topic,
		"type":       2, // scheduled meeting
		"start_time": startsAt.UTC().Format("2006-01-02T15:04:05Z"),
		"duration":   int(duration.Minutes()),
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/users/me/meetings", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken())
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Message string `json:"message"`
		}
		msg := string(respBody)
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Message != "" {
			msg = errResp.Message
		}
		return nil, &providers.APIError{Provider: "zoom", Status: resp.StatusCode, Message: msg}
	}

	var created struct {
		ID      int64  `json:"id"`
		Topic   string `json:"topic"`
		JoinURL string `json:"join_url"`
	}
	if err := json.Unmarshal(respBody, &created); err != nil {
		return nil, fmt.Errorf("parse created meeting: %w", err)
	}

	return &types.Meeting{
		ID:       strconv.FormatInt(created.ID, 10),
		Topic:    created.Topic,
		JoinURL:  created.JoinURL,
		StartsAt: startsAt,
	}, nil
}
