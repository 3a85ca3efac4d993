// Package jira provides a Jira Cloud client for creating issues. It
// authenticates with a site-level API token rather than per-user OAuth.
package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ampdesk/amp/internal/providers"
	"github.com/ampdesk/amp/internal/types"
)

// Config holds Jira site credentials.
type Config struct {
	Domain     string // e.g. "acme.atlassian.net"
	Email      string
	APIToken   string
	ProjectKey string // issues are created in this project
}

// Client is a Jira Cloud REST client.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Jira client with explicit configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Domain == "" || cfg.Email == "" || cfg.APIToken == "" {
		return nil, fmt.Errorf("jira: domain, email and api token are required")
	}
	if cfg.ProjectKey == "" {
		return nil, fmt.Errorf("jira: project key is required")
	}

	return &Client{
		cfg:     cfg,
		baseURL: "https://" + cfg.Domain,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// request makes an authenticated request to the Jira REST API
func (c *Client) request(ctx context.Context, method, path string, body any) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.cfg.Email, c.cfg.APIToken)
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
			ErrorMessages []string          `json:"errorMessages"`
			Errors        map[string]string `json:"errors"`
		}
		msg := string(respBody)
		if json.Unmarshal(respBody, &errResp) == nil && len(errResp.ErrorMessages) > 0 {
			msg = strings.Join(errResp.ErrorMessages, "; ")
		}
		return nil, &providers.APIError{Provider: "jira", Status: resp.StatusCode, Message: msg}
	}

	return respBody, nil
}

// IssueRequest describes a ticket to create.
type IssueRequest struct {
	Summary       string
	Description   string
	AssigneeEmail string // optional; resolved to an account ID
}

// adfDoc wraps plain text in the Atlassian Document Format Jira Cloud
// requires for description fields.
func adfDoc(text string) map[string]any {
	return map[string]any{
		"type":    "doc",
		"version": 1,
		"content": []map[string]any{
			{
				"type": "paragraph",
				"content": []map[string]any{
					{"type": "text", "text": text},
				},
			},
		},
	}
}

// CreateIssue creates a Task-type issue in the configured project.
func (c *Client) CreateIssue(ctx context.Context, req IssueRequest) (*types.IssueRef, error) {
	fields := map[string]any{
		"project":   map[string]string{"key": c.cfg.ProjectKey},
		"summary":   req.Summary,
		"issuetype": map[string]string{"name": "Task"},
	}
	if req.Description != "" {
		fields["description"] = adfDoc(req.Description)
	}

	if req.AssigneeEmail != "" {
		accountID, err := c.findAccountID(ctx, req.AssigneeEmail)
		if err == nil && accountID != "" {
			fields["assignee"] = map[string]string{"accountId": accountID}
		}
		// Assignee resolution failures are not fatal; the issue is still created
	}

	data, err := c.request(ctx, "POST", "/rest/api/3/issue", map[string]any{"fields": fields})
	if err != nil {
		return nil, err
	}

	var created struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		return nil, fmt.Errorf("parse created issue: %w", err)
	}
	if created.Key == "" {
		return nil, fmt.Errorf("jira: issue created without a key")
	}

	return &types.IssueRef{
		Key: created.Key,
		URL: c.baseURL + "/browse/" + created.Key,
	}, nil
}

// findAccountID resolves a user's account ID by email.
func (c *Client) findAccountID(ctx context.Context, email string) (string, error) {
	data, err := c.request(ctx, "GET", "/rest/api/3/user/search?query="+url.QueryEscape(email), nil)
	if err != nil {
		return "", err
	}

	var users []struct {
		AccountID string `json:"accountId"`
	}
	if err := json.Unmarshal(data, &users); err != nil {
		return "", fmt.Errorf("parse user search: %w", err)
	}
	if len(users) == 0 {
		return "", fmt.Errorf("jira: no user found for %s", email)
	}
	return users[0].AccountID, nil
}
