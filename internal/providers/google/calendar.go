package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/ampdesk/amp/internal/providers"
	"github.com/ampdesk/amp/internal/types"
)

const calendarBaseURL = "https://www.googleapis.com/calendar/v3"

// CalendarClient reads the user's primary Google Calendar.
type CalendarClient struct {
	baseURL    string
	httpClient *http.Client

	mu     sync.RWMutex
	tokens providers.Tokens
}

// NewCalendarClient creates an unauthenticated calendar client. Call
// SetTokens before making requests.
func NewCalendarClient() *CalendarClient {
	return &CalendarClient{
		baseURL: calendarBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetTokens replaces the credential set used for requests.
func (c *CalendarClient) SetTokens(tokens providers.Tokens) {
	c.mu.Lock()
	c.tokens = tokens
	c.mu.Unlock()
}

func (c *CalendarClient) accessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tokens.AccessToken
}

// request makes an authenticated request to the Calendar API
func (c *CalendarClient) request(ctx context.Context, method, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
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
				Code    int    `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		msg := string(body)
		if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
			msg = errResp.Error.Message
		}
		return nil, &providers.APIError{Provider: "calendar", Status: resp.StatusCode, Message: msg}
	}

	return body, nil
}

// googleEvent is the Google Calendar API event format
type googleEvent struct {
	ID          string `json:"id"`
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	Status      string `json:"status"`
	HtmlLink    string `json:"htmlLink,omitempty"`
	Start       *googleDateTime `json:"start,omitempty"`
	End         *googleDateTime `json:"end,omitempty"`
	ConferenceData *struct {
		EntryPoints []struct {
			EntryPointType string `json:"entryPointType"`
			URI            string `json:"uri"`
		} `json:"entryPoints,omitempty"`
	} `json:"conferenceData,omitempty"`
}

type googleDateTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
}

// ListUpcomingEvents retrieves non-cancelled events starting within the
// given window from now.
func (c *CalendarClient) ListUpcomingEvents(ctx context.Context, window time.Duration) ([]types.CalendarEvent, error) {
	now := time.Now()

	params := url.Values{}
	params.Set("timeMin", now.Format(time.RFC3339))
	params.Set("timeMax", now.Add(window).Format(time.RFC3339))
	params.Set("singleEvents", "true")
	params.Set("orderBy", "startTime")
	params.Set("maxResults", "50")

	data, err := c.request(ctx, "GET", "/calendars/primary/events?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var resp struct {
		Items []googleEvent `json:"items"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse events response: %w", err)
	}

	events := make([]types.CalendarEvent, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Status == "cancelled" {
			continue
		}
		event, err := convertEvent(&item)
		if err != nil {
			continue // Skip malformed events
		}
		events = append(events, event)
	}

	return events, nil
}

// convertEvent converts a Google Calendar event to our event type
func convertEvent(item *googleEvent) (types.CalendarEvent, error) {
	event := types.CalendarEvent{
		ID:          item.ID,
		Title:       item.Summary,
		Description: item.Description,
		Location:    item.Location,
		HTMLLink:    item.HtmlLink,
	}

	if item.Start != nil {
		if item.Start.DateTime != "" {
			t, err := time.Parse(time.RFC3339, item.Start.DateTime)
			if err != nil {
				return types.CalendarEvent{}, fmt.Errorf("parse start time: %w", err)
			}
			event.Start = t
		} else if item.Start.Date != "" {
			t, err := time.Parse("2006-01-02", item.Start.Date)
			if err != nil {
				return types.CalendarEvent{}, fmt.Errorf("parse start date: %w", err)
			}
			event.Start = t
			event.AllDay = true
		}
	}

	if item.End != nil {
		if item.End.DateTime != "" {
			t, err := time.Parse(time.RFC3339, item.End.DateTime)
			if err != nil {
				return types.CalendarEvent{}, fmt.Errorf("parse end time: %w", err)
			}
			event.End = t
		} else if item.End.Date != "" {
			t, err := time.Parse("2006-01-02", item.End.Date)
			if err != nil {
				return types.CalendarEvent{}, fmt.Errorf("parse end date: %w", err)
			}
			event.End = t
		}
	}

	if item.ConferenceData != nil {
		for _, entry := range item.ConferenceData.EntryPoints {
			if entry.EntryPointType == "video" {
				event.MeetLink = entry.URI
				break
			}
		}
	}

	return event, nil
}
