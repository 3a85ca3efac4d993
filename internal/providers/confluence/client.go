// Package confluence provides a Confluence Cloud client for creating pages.
package confluence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ampdesk/amp/internal/providers"
	"github.com/ampdesk/amp/internal/types"
)

// Config holds Confluence site credentials.
type Config struct {
	Domain   string // e.g. "acme.atlassian.net"
	Email    string
	APIToken string
	SpaceKey string // pages are created in this space
}

// Client is a Confluence Cloud REST client.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Confluence client with explicit configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Domain == "" || cfg.Email == "" || cfg.APIToken == "" {
		return nil, fmt.Errorf("confluence: domain, email and api token are required")
	}
	if cfg.SpaceKey == "" {
		return nil, fmt.Errorf("confluence: space key is required")
	}

	return &Client{
		cfg:     cfg,
		baseURL: "https://" + cfg.Domain + "/wiki",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

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
			Message string `json:"message"`
		}
		msg := string(respBody)
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Message != "" {
			msg = errResp.Message
		}
		return nil, &providers.APIError{Provider: "confluence", Status: resp.StatusCode, Message: msg}
	}

	return respBody, nil
}

// PageRequest describes a page to create.
type PageRequest struct {
	Title   string
	Content string // plain text; stored as a single storage-format paragraph
}

// CreatePage creates a page in the configured space.
func (c *Client) CreatePage(ctx context.Context, req PageRequest) (*types.PageRef, error) {
	body := map[string]any{
		"type":  "page",
		"title": req.Title,
		"space": map[string]string{"key": c.cfg.SpaceKey},
		"body": map[string]any{
			"storage": map[string]string{
				"value":          "<p>" + htmlEscape(req.Content) + "</p>",
				"representation": "storage",
			},
		},
	}

	data, err := c.request(ctx, "POST", "/rest/api/content", body)
	if err != nil {
		return nil, err
	}

	var created struct {
		ID    string `json:"id"`
		Links struct {
			WebUI string `json:"webui"`
		} `json:"_links"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		return nil, fmt.Errorf("parse created page: %w", err)
	}
	if created.ID == "" {
		return nil, fmt.Errorf("confluence: page created without an id")
	}

	pageURL := c.baseURL + created.Links.WebUI
	if created.Links.WebUI == "" {
		pageURL = fmt.Sprintf("%s/pages/%s", c.baseURL, created.ID)
	}

	return &types.PageRef{ID: created.ID, URL: pageURL}, nil
}

// htmlEscape escapes the characters that break storage-format markup.
func htmlEscape(s string) string {
	var buf bytes.Buffer
	for _, r := range s {
		switch r {
		case '&':
			buf.WriteString("&amp;")
		case '<':
			buf.WriteString("&lt;")
		case '>':
			buf.WriteString("&gt;")
		default:
			buf.WriteRune(r)
		}
	}
	return buf.String()
}
