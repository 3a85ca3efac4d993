// Package suggest ranks the user's calendar, email and chat signals into a
// short list of things worth acting on next. Ranking is a pure function of
// the clock and the inputs; the cache layer decides when to recompute.
package suggest

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ampdesk/amp/internal/types"
)

// maxSuggestions caps the merged, ranked list.
const maxSuggestions = 10

// Subject words that signal the sender expects action.
var actionWords = []string{"urgent", "asap", "deadline", "follow up", "review", "approve"}

// Build merges and ranks the three signal sources. The result is ordered by
// descending score (ties keep source order: calendar, email, chat) and
// capped at 10 entries.
func Build(now time.Time, events []types.CalendarEvent, emails []types.EmailMessage, messages []types.ChatMessage) []types.Suggestion {
	suggestions := make([]types.Suggestion, 0, len(events)+len(emails)+len(messages))

	suggestions = append(suggestions, scoreEvents(now, events)...)
	suggestions = append(suggestions, scoreEmails(emails)...)
	suggestions = append(suggestions, scoreMessages(now, messages)...)

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Score > suggestions[j].Score
	})

	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}
	return suggestions
}

// scoreEvents ranks upcoming events by imminence. Events that already
// started are dropped.
func scoreEvents(now time.Time, events []types.CalendarEvent) []types.Suggestion {
	suggestions := make([]types.Suggestion, 0, len(events))
	for _, event := range events {
		if !event.Start.After(now) {
			continue
		}

		until := event.Start.Sub(now)
		var score int
		var priority string
		switch {
		case until <= 30*time.Minute:
			score, priority = 100, types.PriorityHigh
		case until <= 2*time.Hour:
			score, priority = 80, types.PriorityHigh
		case sameDay(now, event.Start):
			score, priority = 60, types.PriorityMedium
		case sameDay(now.AddDate(0, 0, 1), event.Start):
			score, priority = 40, types.PriorityLow
		default:
			score, priority = 20, types.PriorityLow
		}

		context := relativeStart(now, event.Start)
		if event.Location != "" {
			context += " • " + event.Location
		}

		suggestions = append(suggestions, types.Suggestion{
			ID:       "calendar-" + event.ID,
			Title:    event.Title,
			Source:   "calendar",
			SourceID: event.ID,
			Priority: priority,
			Context:  context,
			DueDate:  event.Start.Format(time.RFC3339),
			Score:    score,
		})
	}
	return suggestions
}

// scoreEmails ranks inbox messages. Starred mail jumps to the top of the
// email band; action words and unread status add on top of that.
func scoreEmails(emails []types.EmailMessage) []types.Suggestion {
	suggestions := make([]types.Suggestion, 0, len(emails))
	for _, email := range emails {
		score := 50
		priority := types.PriorityMedium

		if email.Starred {
			score = 90
			priority = types.PriorityHigh
		}
		if hasActionWord(email.Subject) {
			score += 30
			priority = types.PriorityHigh
		}
		if email.Unread {
			score += 20
		}

		title := email.Subject
		if title == "" {
			title = "(no subject)"
		}

		suggestions = append(suggestions, types.Suggestion{
			ID:       "email-" + email.ID,
			Title:    title,
			Source:   "email",
			SourceID: email.ID,
			Priority: priority,
			Context:  "From " + senderName(email.From),
			Score:    score,
		})
	}
	return suggestions
}

// scoreMessages ranks chat activity by how directly it addresses the user,
// with a recency boost for messages from the last six hours. Plain channel
// chatter never becomes a suggestion.
func scoreMessages(now time.Time, messages []types.ChatMessage) []types.Suggestion {
	suggestions := make([]types.Suggestion, 0, len(messages))
	for _, msg := range messages {
		var score int
		var priority string
		switch msg.Type {
		case types.ChatMention:
			score, priority = 85, types.PriorityHigh
		case types.ChatDM:
			score, priority = 80, types.PriorityHigh
		case types.ChatSaved:
			score, priority = 70, types.PriorityMedium
		case types.ChatThread:
			score, priority = 60, types.PriorityMedium
		default:
			continue
		}

		if ts, ok := parseSlackTS(msg.Timestamp); ok && now.Sub(ts) < 6*time.Hour {
			score += 20
		}

		suggestions = append(suggestions, types.Suggestion{
			ID:       "slack-" + msg.ID,
			Title:    truncate(msg.Text, 60),
			Source:   "slack",
			SourceID: msg.ID,
			Priority: priority,
			Context:  chatContext(msg),
			Score:    score,
		})
	}
	return suggestions
}

func hasActionWord(subject string) bool {
	lower := strings.ToLower(subject)
	for _, word := range actionWords {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

// senderName extracts a display name from an RFC 5322 style From header,
// falling back to the mailbox part of a bare address.
func senderName(from string) string {
	if idx := strings.Index(from, "<"); idx > 0 {
		name := strings.TrimSpace(strings.Trim(from[:idx], `" `))
		if name != "" {
			return name
		}
	}
	addr := strings.Trim(from, "<> ")
	if at := strings.Index(addr, "@"); at > 0 {
		return addr[:at]
	}
	return addr
}

// parseSlackTS parses a Slack timestamp ("1712345678.000200") into a time.
func parseSlackTS(ts string) (time.Time, bool) {
	seconds, err := strconv.ParseFloat(ts, 64)
	if err != nil || seconds <= 0 {
		return time.Time{}, false
	}
	return time.Unix(int64(seconds), 0), true
}

func chatContext(msg types.ChatMessage) string {
	who := msg.UserName
	if who == "" {
		who = msg.User
	}

	var context string
	switch msg.Type {
	case types.ChatMention:
		context = "Mentioned by " + who
	case types.ChatDM:
		context = "Direct message from " + who
	case types.ChatSaved:
		context = "Saved for later"
	case types.ChatThread:
		context = "Thread reply from " + who
	}
	if msg.ChannelName != "" && msg.Type != types.ChatDM {
		context += " in #" + msg.ChannelName
	}
	return context
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}

// relativeStart renders a short human label for how far away start is.
func relativeStart(now, start time.Time) string {
	until := start.Sub(now)
	switch {
	case until < time.Hour:
		return fmt.Sprintf("in %d min", int(until.Minutes()))
	case sameDay(now, start):
		return "today at " + start.Format("3:04 PM")
	case sameDay(now.AddDate(0, 0, 1), start):
		return "tomorrow at " + start.Format("3:04 PM")
	default:
		return start.Format("Mon, Jan 2")
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
