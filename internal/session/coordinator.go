// Package session coordinates provider credentials and access. It owns token
// persistence, transparent refresh on rejected credentials, and the fan-out
// that collects the signals behind smart suggestions.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ampdesk/amp/internal/providers"
	"github.com/ampdesk/amp/internal/providers/confluence"
	"github.com/ampdesk/amp/internal/providers/jira"
	"github.com/ampdesk/amp/internal/store"
	"github.com/ampdesk/amp/internal/suggest"
	"github.com/ampdesk/amp/internal/types"
)

// NotConnectedError is returned when an operation needs a provider the user
// has not connected.
type NotConnectedError struct {
	Provider string
}

func (e *NotConnectedError) Error() string {
	return fmt.Sprintf("%s is not connected: connect first", e.Provider)
}

// TokenSource exchanges and refreshes OAuth credentials for one provider.
type TokenSource interface {
	ExchangeCode(ctx context.Context, code string) (providers.Tokens, error)
	RefreshToken(ctx context.Context, refreshToken string) (providers.Tokens, error)
}

// CalendarAPI reads upcoming calendar events.
type CalendarAPI interface {
	SetTokens(providers.Tokens)
	ListUpcomingEvents(ctx context.Context, window time.Duration) ([]types.CalendarEvent, error)
}

// MailAPI reads recent inbox messages.
type MailAPI interface {
	SetTokens(providers.Tokens)
	ListRecentMessages(ctx context.Context, max int) ([]types.EmailMessage, error)
}

// ChatAPI reads the user's chat activity feed.
type ChatAPI interface {
	TokenSource
	SetTokens(providers.Tokens)
	ListActivity(ctx context.Context) ([]types.ChatMessage, error)
}

// MeetingAPI schedules meetings.
type MeetingAPI interface {
	TokenSource
	SetTokens(providers.Tokens)
	CreateMeeting(ctx context.Context, topic string, startsAt time.Time, duration time.Duration) (*types.Meeting, error)
}

// IssueAPI creates tracker tickets. Backed by an API token, not OAuth.
type IssueAPI interface {
	CreateIssue(ctx context.Context, req jira.IssueRequest) (*types.IssueRef, error)
}

// PageAPI creates wiki pages. Backed by an API token, not OAuth.
type PageAPI interface {
	CreatePage(ctx context.Context, req confluence.PageRequest) (*types.PageRef, error)
}

// ClientSet is the full set of provider clients the coordinator manages.
// Nil entries mean the provider is not configured.
type ClientSet struct {
	GoogleAuth TokenSource
	Calendar   CalendarAPI
	Gmail      MailAPI
	Slack      ChatAPI
	Zoom       MeetingAPI
	Jira       IssueAPI
	Confluence PageAPI
}

// Coordinator owns provider sessions: it persists tokens, pushes them into
// the clients, and refreshes them once when a call comes back unauthorized.
type Coordinator struct {
	kv      *store.Store
	clients ClientSet
	log     zerolog.Logger

	mu          sync.Mutex
	tokens      map[string]providers.Tokens
	needsReauth map[string]bool
	refreshMu   map[string]*sync.Mutex
}

// New creates a coordinator. Call Initialize to load persisted tokens.
func New(kv *store.Store, clients ClientSet, log zerolog.Logger) *Coordinator {
	refreshMu := make(map[string]*sync.Mutex)
	for _, p := range []string{types.ProviderGoogle, types.ProviderSlack, types.ProviderZoom} {
		refreshMu[p] = &sync.Mutex{}
	}
	return &Coordinator{
		kv:          kv,
		clients:     clients,
		log:         log,
		tokens:      make(map[string]providers.Tokens),
		needsReauth: make(map[string]bool),
		refreshMu:   refreshMu,
	}
}

// Initialize loads persisted tokens and configures the provider clients.
func (c *Coordinator) Initialize() error {
	for _, provider := range []string{types.ProviderGoogle, types.ProviderSlack, types.ProviderZoom} {
		tokens, err := c.loadTokens(provider)
		if err != nil {
			return fmt.Errorf("load %s tokens: %w", provider, err)
		}
		if !tokens.Valid() {
			continue
		}
		c.applyTokens(provider, tokens)
		c.log.Info().Str("provider", provider).Msg("session restored")
	}
	return nil
}

func (c *Coordinator) loadTokens(provider string) (providers.Tokens, error) {
	accessKey, refreshKey, expiresKey := store.TokenKeys(provider)

	var tokens providers.Tokens
	var err error
	if tokens.AccessToken, err = c.kv.GetString(accessKey, ""); err != nil {
		return providers.Tokens{}, err
	}
	if tokens.RefreshToken, err = c.kv.GetString(refreshKey, ""); err != nil {
		return providers.Tokens{}, err
	}
	expires, err := c.kv.GetString(expiresKey, "")
	if err != nil {
		return providers.Tokens{}, err
	}
	if expires != "" {
		if t, err := time.Parse(time.RFC3339, expires); err == nil {
			tokens.ExpiresAt = t
		}
	}
	return tokens, nil
}

func (c *Coordinator) saveTokens(provider string, tokens providers.Tokens) error {
	accessKey, refreshKey, expiresKey := store.TokenKeys(provider)

	if err := c.kv.Set(accessKey, tokens.AccessToken); err != nil {
		return err
	}
	if err := c.kv.Set(refreshKey, tokens.RefreshToken); err != nil {
		return err
	}
	expires := ""
	if !tokens.ExpiresAt.IsZero() {
		expires = tokens.ExpiresAt.Format(time.RFC3339)
	}
	return c.kv.Set(expiresKey, expires)
}

// applyTokens records the token set and pushes it into every client that
// shares the credential. The google credential backs both calendar and mail.
func (c *Coordinator) applyTokens(provider string, tokens providers.Tokens) {
	c.mu.Lock()
	c.tokens[provider] = tokens
	c.needsReauth[provider] = false
	c.mu.Unlock()

	switch provider {
	case types.ProviderGoogle:
		if c.clients.Calendar != nil {
			c.clients.Calendar.SetTokens(tokens)
		}
		if c.clients.Gmail != nil {
			c.clients.Gmail.SetTokens(tokens)
		}
	case types.ProviderSlack:
		if c.clients.Slack != nil {
			c.clients.Slack.SetTokens(tokens)
		}
	case types.ProviderZoom:
		if c.clients.Zoom != nil {
			c.clients.Zoom.SetTokens(tokens)
		}
	}
}

func (c *Coordinator) currentTokens(provider string) (providers.Tokens, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tokens, ok := c.tokens[provider]
	return tokens, ok && tokens.Valid()
}

func (c *Coordinator) tokenSource(provider string) TokenSource {
	switch provider {
	case types.ProviderGoogle:
		return c.clients.GoogleAuth
	case types.ProviderSlack:
		return c.clients.Slack
	case types.ProviderZoom:
		return c.clients.Zoom
	default:
		return nil
	}
}

// Connect completes the OAuth flow for a provider: it exchanges the
// authorization code, persists the tokens and configures the clients.
func (c *Coordinator) Connect(ctx context.Context, provider, code string) error {
	source := c.tokenSource(provider)
	if source == nil {
		return fmt.Errorf("unknown provider: %s", provider)
	}

	tokens, err := source.ExchangeCode(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange code for %s: %w", provider, err)
	}

	if err := c.saveTokens(provider, tokens); err != nil {
		return fmt.Errorf("persist %s tokens: %w", provider, err)
	}
	c.applyTokens(provider, tokens)
	c.log.Info().Str("provider", provider).Msg("connected")
	return nil
}

// Disconnect drops a provider's credentials from memory and disk.
func (c *Coordinator) Disconnect(provider string) error {
	accessKey, refreshKey, expiresKey := store.TokenKeys(provider)
	for _, key := range []string{accessKey, refreshKey, expiresKey} {
		if err := c.kv.Delete(key); err != nil {
			return err
		}
	}

	c.mu.Lock()
	delete(c.tokens, provider)
	delete(c.needsReauth, provider)
	c.mu.Unlock()

	c.applyEmptyTokens(provider)
	c.log.Info().Str("provider", provider).Msg("disconnected")
	return nil
}

func (c *Coordinator) applyEmptyTokens(provider string) {
	switch provider {
	case types.ProviderGoogle:
		if c.clients.Calendar != nil {
			c.clients.Calendar.SetTokens(providers.Tokens{})
		}
		if c.clients.Gmail != nil {
			c.clients.Gmail.SetTokens(providers.Tokens{})
		}
	case types.ProviderSlack:
		if c.clients.Slack != nil {
			c.clients.Slack.SetTokens(providers.Tokens{})
		}
	case types.ProviderZoom:
		if c.clients.Zoom != nil {
			c.clients.Zoom.SetTokens(providers.Tokens{})
		}
	}
}

// Connected reports whether a provider has a usable credential.
func (c *Coordinator) Connected(provider string) bool {
	_, ok := c.currentTokens(provider)
	return ok
}

// NeedsReauth reports whether a provider's refresh has failed, meaning the
// user must run the connect flow again.
func (c *Coordinator) NeedsReauth(provider string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.needsReauth[provider]
}

// refresh obtains a fresh token set for the provider. Concurrent callers
// serialize on a per-provider mutex so one rejected batch of calls produces
// one refresh, not a stampede of rotations.
func (c *Coordinator) refresh(ctx context.Context, provider string) error {
	mu := c.refreshMu[provider]
	if mu == nil {
		return fmt.Errorf("unknown provider: %s", provider)
	}
	mu.Lock()
	defer mu.Unlock()

	tokens, ok := c.currentTokens(provider)
	if !ok {
		return &NotConnectedError{Provider: provider}
	}

	source := c.tokenSource(provider)
	if source == nil {
		return fmt.Errorf("unknown provider: %s", provider)
	}

	fresh, err := source.RefreshToken(ctx, tokens.RefreshToken)
	if err != nil {
		c.mu.Lock()
		c.needsReauth[provider] = true
		c.mu.Unlock()
		c.log.Warn().Str("provider", provider).Err(err).Msg("token refresh failed, reauth required")
		return fmt.Errorf("refresh %s token: %w", provider, err)
	}

	if err := c.saveTokens(provider, fresh); err != nil {
		return fmt.Errorf("persist refreshed %s tokens: %w", provider, err)
	}
	c.applyTokens(provider, fresh)
	c.log.Info().Str("provider", provider).Msg("token refreshed")
	return nil
}

// withRetry runs fn; if it fails with a rejected credential it refreshes the
// provider's token once and retries. A second rejection is returned as-is.
func (c *Coordinator) withRetry(ctx context.Context, provider string, fn func(ctx context.Context) error) error {
	if !c.Connected(provider) {
		return &NotConnectedError{Provider: provider}
	}

	err := fn(ctx)
	if err == nil || !providers.IsUnauthorized(err) {
		return err
	}

	c.log.Debug().Str("provider", provider).Err(err).Msg("credential rejected, refreshing")
	if refreshErr := c.refresh(ctx, provider); refreshErr != nil {
		return refreshErr
	}

	return fn(ctx)
}

// SyncCalendar returns the user's upcoming events within the window.
func (c *Coordinator) SyncCalendar(ctx context.Context, window time.Duration) ([]types.CalendarEvent, error) {
	if c.clients.Calendar == nil {
		return nil, &NotConnectedError{Provider: types.ProviderGoogle}
	}

	var events []types.CalendarEvent
	err := c.withRetry(ctx, types.ProviderGoogle, func(ctx context.Context) error {
		var err error
		events, err = c.clients.Calendar.ListUpcomingEvents(ctx, window)
		return err
	})
	return events, err
}

// SyncGmail returns up to max recent inbox messages.
func (c *Coordinator) SyncGmail(ctx context.Context, max int) ([]types.EmailMessage, error) {
	if c.clients.Gmail == nil {
		return nil, &NotConnectedError{Provider: types.ProviderGoogle}
	}

	var messages []types.EmailMessage
	err := c.withRetry(ctx, types.ProviderGoogle, func(ctx context.Context) error {
		var err error
		messages, err = c.clients.Gmail.ListRecentMessages(ctx, max)
		return err
	})
	return messages, err
}

// SyncSlack returns the user's recent chat activity.
func (c *Coordinator) SyncSlack(ctx context.Context) ([]types.ChatMessage, error) {
	if c.clients.Slack == nil {
		return nil, &NotConnectedError{Provider: types.ProviderSlack}
	}

	var activity []types.ChatMessage
	err := c.withRetry(ctx, types.ProviderSlack, func(ctx context.Context) error {
		var err error
		activity, err = c.clients.Slack.ListActivity(ctx)
		return err
	})
	return activity, err
}

// GetSmartSuggestions collects signals from every connected source in
// parallel and ranks them. A source that fails, or is not connected,
// contributes nothing rather than failing the whole batch.
func (c *Coordinator) GetSmartSuggestions(ctx context.Context) ([]types.Suggestion, error) {
	var (
		wg       sync.WaitGroup
		events   []types.CalendarEvent
		emails   []types.EmailMessage
		messages []types.ChatMessage
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		result, err := c.SyncCalendar(ctx, 48*time.Hour)
		if err != nil {
			c.log.Warn().Err(err).Msg("calendar signals unavailable")
			return
		}
		events = result
	}()
	go func() {
		defer wg.Done()
		result, err := c.SyncGmail(ctx, 20)
		if err != nil {
			c.log.Warn().Err(err).Msg("email signals unavailable")
			return
		}
		emails = result
	}()
	go func() {
		defer wg.Done()
		result, err := c.SyncSlack(ctx)
		if err != nil {
			c.log.Warn().Err(err).Msg("chat signals unavailable")
			return
		}
		messages = result
	}()
	wg.Wait()

	return suggest.Build(time.Now(), events, emails, messages), nil
}

// CreateJiraIssue creates a tracker ticket.
func (c *Coordinator) CreateJiraIssue(ctx context.Context, req jira.IssueRequest) (*types.IssueRef, error) {
	if c.clients.Jira == nil {
		return nil, &NotConnectedError{Provider: types.ProviderJira}
	}
	return c.clients.Jira.CreateIssue(ctx, req)
}

// CreateConfluencePage creates a wiki page.
func (c *Coordinator) CreateConfluencePage(ctx context.Context, req confluence.PageRequest) (*types.PageRef, error) {
	if c.clients.Confluence == nil {
		return nil, &NotConnectedError{Provider: types.ProviderConfluence}
	}
	return c.clients.Confluence.CreatePage(ctx, req)
}

// CreateZoomMeeting schedules a meeting for the user.
func (c *Coordinator) CreateZoomMeeting(ctx context.Context, topic string, startsAt time.Time, duration time.Duration) (*types.Meeting, error) {
	if c.clients.Zoom == nil {
		return nil, &NotConnectedError{Provider: types.ProviderZoom}
	}

	var meeting *types.Meeting
	err := c.withRetry(ctx, types.ProviderZoom, func(ctx context.Context) error {
		var err error
		meeting, err = c.clients.Zoom.CreateMeeting(ctx, topic, startsAt, duration)
		return err
	})
	return meeting, err
}
