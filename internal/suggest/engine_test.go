package suggest

import (
	"fmt"
	"reflect"
	"strconv"
	"testing"
	"time"

	"github.com/ampdesk/amp/internal/types"
)

// A fixed Tuesday morning so day-boundary buckets are deterministic.
var now = time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)

func slackTS(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10) + ".000100"
}

func TestBuild_CalendarBuckets(t *testing.T) {
	events := []types.CalendarEvent{
		{ID: "past", Title: "Already started", Start: now.Add(-10 * time.Minute)},
		{ID: "imminent", Title: "Standup", Start: now.Add(15 * time.Minute)},
		{ID: "soon", Title: "Design review", Start: now.Add(90 * time.Minute)},
		{ID: "today", Title: "1:1", Start: now.Add(5 * time.Hour)},
		{ID: "tomorrow", Title: "Planning", Start: now.Add(26 * time.Hour)},
		{ID: "later", Title: "Offsite", Start: now.Add(80 * time.Hour)},
	}

	got := Build(now, events, nil, nil)

	want := map[string]struct {
		score    int
		priority string
	}{
		"calendar-imminent": {100, types.PriorityHigh},
		"calendar-soon":     {80, types.PriorityHigh},
		"calendar-today":    {60, types.PriorityMedium},
		"calendar-tomorrow": {40, types.PriorityLow},
		"calendar-later":    {20, types.PriorityLow},
	}

	if len(got) != len(want) {
		t.Fatalf("Expected %d suggestions (past event dropped), got %d", len(want), len(got))
	}
	for _, s := range got {
		if s.ID == "calendar-past" {
			t.Error("Event that already started must not be suggested")
		}
		expected, ok := want[s.ID]
		if !ok {
			t.Errorf("Unexpected suggestion %q", s.ID)
			continue
		}
		if s.Score != expected.score || s.Priority != expected.priority {
			t.Errorf("%s: got score=%d priority=%s, want score=%d priority=%s",
				s.ID, s.Score, s.Priority, expected.score, expected.priority)
		}
		if s.Source != "calendar" {
			t.Errorf("%s: wrong source %q", s.ID, s.Source)
		}
	}
}

func TestBuild_CalendarContext(t *testing.T) {
	events := []types.CalendarEvent{
		{ID: "e1", Title: "Standup", Start: now.Add(15 * time.Minute), Location: "Room 4"},
	}

	got := Build(now, events, nil, nil)
	if len(got) != 1 {
		t.Fatalf("Expected 1 suggestion, got %d", len(got))
	}
	if got[0].Context != "in 15 min • Room 4" {
		t.Errorf("Unexpected context %q", got[0].Context)
	}
	if got[0].DueDate != events[0].Start.Format(time.RFC3339) {
		t.Errorf("Unexpected due date %q", got[0].DueDate)
	}
}

func TestBuild_EmailScoring(t *testing.T) {
	emails := []types.EmailMessage{
		{ID: "plain", Subject: "Lunch on Friday?", From: "Dana Perez <dana@example.com>"},
		{ID: "unread", Subject: "Notes", From: "sam@example.com", Unread: true},
		{ID: "action", Subject: "URGENT: prod rollback", From: "ops@example.com"},
		{ID: "starred", Subject: "Contract draft", From: "legal@example.com", Starred: true},
		{ID: "maxed", Subject: "Please review the deadline", From: "pm@example.com", Starred: true, Unread: true},
	}

	got := Build(now, nil, emails, nil)

	byID := make(map[string]types.Suggestion)
	for _, s := range got {
		byID[s.ID] = s
	}

	cases := []struct {
		id       string
		score    int
		priority string
	}{
		{"email-plain", 50, types.PriorityMedium},
		{"email-unread", 70, types.PriorityMedium},
		{"email-action", 80, types.PriorityHigh},
		{"email-starred", 90, types.PriorityHigh},
		{"email-maxed", 140, types.PriorityHigh}, // 90 starred + 30 action + 20 unread
	}
	for _, tc := range cases {
		s, ok := byID[tc.id]
		if !ok {
			t.Errorf("Missing suggestion %q", tc.id)
			continue
		}
		if s.Score != tc.score || s.Priority != tc.priority {
			t.Errorf("%s: got score=%d priority=%s, want score=%d priority=%s",
				tc.id, s.Score, s.Priority, tc.score, tc.priority)
		}
	}

	if byID["email-plain"].Context != "From Dana Perez" {
		t.Errorf("Expected display name in context, got %q", byID["email-plain"].Context)
	}
	if byID["email-unread"].Context != "From sam" {
		t.Errorf("Expected mailbox fallback in context, got %q", byID["email-unread"].Context)
	}
}

func TestBuild_ChatScoring(t *testing.T) {
	old := slackTS(now.Add(-10 * time.Hour))
	fresh := slackTS(now.Add(-1 * time.Hour))

	messages := []types.ChatMessage{
		{ID: "m1", Type: types.ChatMention, Text: "can you take a look?", Timestamp: old},
		{ID: "m2", Type: types.ChatDM, Text: "quick question", Timestamp: old},
		{ID: "m3", Type: types.ChatSaved, Text: "keep this handy", Timestamp: old},
		{ID: "m4", Type: types.ChatThread, Text: "following up here", Timestamp: old},
		{ID: "m5", Type: types.ChatChannel, Text: "general chatter", Timestamp: fresh},
		{ID: "m6", Type: types.ChatMention, Text: "ping", Timestamp: fresh},
	}

	got := Build(now, nil, nil, messages)

	byID := make(map[string]types.Suggestion)
	for _, s := range got {
		byID[s.ID] = s
	}

	if _, ok := byID["slack-m5"]; ok {
		t.Error("Channel messages must not become suggestions")
	}

	cases := []struct {
		id       string
		score    int
		priority string
	}{
		{"slack-m1", 85, types.PriorityHigh},
		{"slack-m2", 80, types.PriorityHigh},
		{"slack-m3", 70, types.PriorityMedium},
		{"slack-m4", 60, types.PriorityMedium},
		{"slack-m6", 105, types.PriorityHigh}, // 85 + 20 recency
	}
	for _, tc := range cases {
		s, ok := byID[tc.id]
		if !ok {
			t.Errorf("Missing suggestion %q", tc.id)
			continue
		}
		if s.Score != tc.score || s.Priority != tc.priority {
			t.Errorf("%s: got score=%d priority=%s, want score=%d priority=%s",
				tc.id, s.Score, s.Priority, tc.score, tc.priority)
		}
	}
}

func TestBuild_ChatTitleTruncation(t *testing.T) {
	long := "This message is quite a bit longer than sixty characters and should be cut"
	messages := []types.ChatMessage{
		{ID: "m1", Type: types.ChatDM, Text: long, Timestamp: slackTS(now)},
	}

	got := Build(now, nil, nil, messages)
	if len(got) != 1 {
		t.Fatalf("Expected 1 suggestion, got %d", len(got))
	}
	title := []rune(got[0].Title)
	if len(title) != 61 || string(title[60]) != "…" {
		t.Errorf("Expected 60 runes plus ellipsis, got %q (%d runes)", got[0].Title, len(title))
	}
}

func TestBuild_CapAndOrdering(t *testing.T) {
	var emails []types.EmailMessage
	for i := 0; i < 8; i++ {
		emails = append(emails, types.EmailMessage{
			ID:      fmt.Sprintf("e%d", i),
			Subject: fmt.Sprintf("Message %d", i),
			From:    "a@example.com",
			Unread:  i%2 == 0,
		})
	}
	var messages []types.ChatMessage
	for i := 0; i < 6; i++ {
		messages = append(messages, types.ChatMessage{
			ID:        fmt.Sprintf("m%d", i),
			Type:      types.ChatMention,
			Text:      "hey",
			Timestamp: slackTS(now.Add(-24 * time.Hour)),
		})
	}

	got := Build(now, nil, emails, messages)

	if len(got) != 10 {
		t.Fatalf("Expected exactly 10 suggestions, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Fatalf("Scores not non-increasing at %d: %d > %d", i, got[i].Score, got[i-1].Score)
		}
	}
}

func TestBuild_Deterministic(t *testing.T) {
	events := []types.CalendarEvent{
		{ID: "e1", Title: "Standup", Start: now.Add(20 * time.Minute)},
	}
	emails := []types.EmailMessage{
		{ID: "a", Subject: "Review this", From: "x@example.com", Unread: true},
	}
	messages := []types.ChatMessage{
		{ID: "m", Type: types.ChatDM, Text: "hi", Timestamp: slackTS(now.Add(-time.Hour))},
	}

	first := Build(now, events, emails, messages)
	second := Build(now, events, emails, messages)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Same clock and inputs produced different output:\n%+v\n%+v", first, second)
	}
}

func TestBuild_Empty(t *testing.T) {
	got := Build(now, nil, nil, nil)
	if len(got) != 0 {
		t.Errorf("Expected no suggestions, got %d", len(got))
	}
}
