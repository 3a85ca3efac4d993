package tasks

import "time"

// Task sources.
const (
	SourceManual   = "manual"
	SourceCalendar = "calendar"
	SourceEmail    = "email"
	SourceSlack    = "slack"
)

// Tag is a colored label on a task
type Tag struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

// LinkedItem is a reference from a task to an external artifact (the
// originating Slack message, a Jira ticket, a Confluence page, ...)
type LinkedItem struct {
	ID    string `json:"id"`
	Type  string `json:"type"` // slack, jira, confluence, calendar, email
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
}

// Task is one entry in the local task list
type Task struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Completed   bool         `json:"completed"`
	Source      string       `json:"source"` // manual, calendar, email, slack
	SourceID    string       `json:"source_id,omitempty"`
	DueDate     *time.Time   `json:"due_date,omitempty"`
	Deadline    *time.Time   `json:"deadline,omitempty"`
	Priority    string       `json:"priority,omitempty"` // low, medium, high
	Context     string       `json:"context,omitempty"`
	Description string       `json:"description,omitempty"`
	Tags        []Tag        `json:"tags,omitempty"`
	LinkedItems []LinkedItem `json:"linked_items,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Update is a partial task mutation. Nil fields are left unchanged; the
// merge always refreshes UpdatedAt.
type Update struct {
	Title       *string       `json:"title,omitempty"`
	Completed   *bool         `json:"completed,omitempty"`
	DueDate     *time.Time    `json:"due_date,omitempty"`
	Deadline    *time.Time    `json:"deadline,omitempty"`
	Priority    *string       `json:"priority,omitempty"`
	Context     *string       `json:"context,omitempty"`
	Description *string       `json:"description,omitempty"`
	Tags        *[]Tag        `json:"tags,omitempty"`
	LinkedItems *[]LinkedItem `json:"linked_items,omitempty"`
}
