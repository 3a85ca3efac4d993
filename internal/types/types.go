package types

import "time"

// Provider identifiers for the external SaaS integrations.
const (
	ProviderGoogle     = "google"
	ProviderSlack      = "slack"
	ProviderZoom       = "zoom"
	ProviderJira       = "jira"
	ProviderConfluence = "confluence"
)

// Priority buckets for suggestions and tasks.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// CalendarEvent is a normalized calendar event from the Google Calendar API
type CalendarEvent struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"all_day,omitempty"`
	MeetLink    string    `json:"meet_link,omitempty"`
	HTMLLink    string    `json:"html_link,omitempty"`
}

// EmailMessage is a normalized inbox message from the Gmail API
type EmailMessage struct {
	ID       string `json:"id"`
	ThreadID string `json:"thread_id,omitempty"`
	Subject  string `json:"subject"`
	From     string `json:"from"` // "Display Name <addr>" or bare address
	Snippet  string `json:"snippet,omitempty"`
	Unread   bool   `json:"unread"`
	Starred  bool   `json:"starred"`
}

// Chat message types that participate in the activity feed.
const (
	ChatMention = "mention"
	ChatDM      = "dm"
	ChatSaved   = "saved"
	ChatThread  = "thread"
	ChatChannel = "channel"
)

// ChatMessage is a normalized Slack message
type ChatMessage struct {
	ID          string `json:"id"`
	Type        string `json:"type"` // mention, dm, saved, thread, channel
	Text        string `json:"text"`
	Channel     string `json:"channel"`
	ChannelName string `json:"channel_name,omitempty"`
	User        string `json:"user,omitempty"`
	UserName    string `json:"user_name,omitempty"`
	Timestamp   string `json:"timestamp"` // Unix epoch seconds as a decimal string
	Permalink   string `json:"permalink,omitempty"`
}

// Suggestion is a ranked, ephemeral recommendation to act on an external item.
// IDs are provider-prefixed and stable across regenerations for the same
// underlying item so dismissal-by-id keeps working.
type Suggestion struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Source   string `json:"source"` // calendar, email, slack
	SourceID string `json:"sourceId"`
	Priority string `json:"priority"` // low, medium, high
	Context  string `json:"context,omitempty"`
	DueDate  string `json:"dueDate,omitempty"` // ISO 8601
	Score    int    `json:"score"`
}

// PendingItem is a remotely queued chat mention awaiting local processing.
// It is owned by the relay; the poller fetches, processes, and acknowledges.
type PendingItem struct {
	ID                     string `json:"id"`
	Title                  string `json:"title"`
	Description            string `json:"description,omitempty"`
	Channel                string `json:"channel"`
	MessageTS              string `json:"messageTs"`
	ThreadTS               string `json:"threadTs,omitempty"`
	User                   string `json:"user"`
	TeamID                 string `json:"teamId,omitempty"`
	ShouldCreateJira       bool   `json:"shouldCreateJira"`
	ShouldCreateConfluence bool   `json:"shouldCreateConfluence"`
	AssigneeName           string `json:"assigneeName,omitempty"`
	AssigneeEmail          string `json:"assigneeEmail,omitempty"`
}

// Meeting is a created Zoom meeting
type Meeting struct {
	ID       string    `json:"id"`
	Topic    string    `json:"topic"`
	JoinURL  string    `json:"join_url"`
	StartsAt time.Time `json:"starts_at"`
}

// IssueRef points at a created Jira issue
type IssueRef struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// PageRef points at a created Confluence page
type PageRef struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}
