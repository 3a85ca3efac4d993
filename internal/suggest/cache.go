package suggest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ampdesk/amp/internal/store"
	"github.com/ampdesk/amp/internal/types"
)

// FetchFunc produces a fresh ranked suggestion list.
type FetchFunc func(ctx context.Context) ([]types.Suggestion, error)

// Cache persists the ranked suggestion list and only recomputes it when the
// entry is older than the TTL or the caller forces a refresh. Dismissed
// suggestion IDs are filtered out of every read.
type Cache struct {
	kv    *store.Store
	fetch FetchFunc
	ttl   time.Duration
	log   zerolog.Logger
	now   func() time.Time

	mu sync.Mutex
}

// NewCache creates a suggestion cache over the settings store.
func NewCache(kv *store.Store, fetch FetchFunc, ttl time.Duration, log zerolog.Logger) *Cache {
	return &Cache{
		kv:    kv,
		fetch: fetch,
		ttl:   ttl,
		log:   log,
		now:   time.Now,
	}
}

// Get returns the cached suggestions, refreshing first when the entry is
// stale, absent, or force is set.
func (c *Cache) Get(ctx context.Context, force bool) ([]types.Suggestion, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !force && c.freshLocked() {
		cached, ok, err := c.readLocked()
		if err != nil {
			return nil, err
		}
		if ok {
			return c.filterDismissed(cached)
		}
	}

	return c.refreshLocked(ctx)
}

// ForceRefresh recomputes the suggestion list regardless of cache age.
func (c *Cache) ForceRefresh(ctx context.Context) ([]types.Suggestion, error) {
	return c.Get(ctx, true)
}

// Dismiss hides a suggestion from all future reads. The underlying item may
// be suggested again under the same ID, so the dismissal set persists.
func (c *Cache) Dismiss(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var dismissed []string
	if _, err := c.kv.GetJSON(store.KeyDismissedSuggestions, &dismissed); err != nil {
		return err
	}
	for _, existing := range dismissed {
		if existing == id {
			return nil
		}
	}
	dismissed = append(dismissed, id)
	return c.kv.SetJSON(store.KeyDismissedSuggestions, dismissed)
}

// freshLocked reports whether the cached entry is younger than the TTL.
func (c *Cache) freshLocked() bool {
	lastFetch, err := c.kv.GetString(store.KeySmartSuggestionsLastFetch, "")
	if err != nil || lastFetch == "" {
		return false
	}
	fetchedAt, err := time.Parse(time.RFC3339, lastFetch)
	if err != nil {
		return false
	}
	return c.now().Sub(fetchedAt) < c.ttl
}

func (c *Cache) readLocked() ([]types.Suggestion, bool, error) {
	var cached []types.Suggestion
	ok, err := c.kv.GetJSON(store.KeySmartSuggestionsCache, &cached)
	if err != nil {
		return nil, false, fmt.Errorf("read suggestion cache: %w", err)
	}
	return cached, ok, nil
}

func (c *Cache) refreshLocked(ctx context.Context) ([]types.Suggestion, error) {
	suggestions, err := c.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("build suggestions: %w", err)
	}

	if err := c.kv.SetJSON(store.KeySmartSuggestionsCache, suggestions); err != nil {
		return nil, err
	}
	if err := c.kv.Set(store.KeySmartSuggestionsLastFetch, c.now().Format(time.RFC3339)); err != nil {
		return nil, err
	}
	c.log.Debug().Int("count", len(suggestions)).Msg("suggestion cache refreshed")

	return c.filterDismissed(suggestions)
}

func (c *Cache) filterDismissed(suggestions []types.Suggestion) ([]types.Suggestion, error) {
	var dismissed []string
	if _, err := c.kv.GetJSON(store.KeyDismissedSuggestions, &dismissed); err != nil {
		return nil, err
	}
	if len(dismissed) == 0 {
		return suggestions, nil
	}

	hidden := make(map[string]bool, len(dismissed))
	for _, id := range dismissed {
		hidden[id] = true
	}

	visible := make([]types.Suggestion, 0, len(suggestions))
	for _, s := range suggestions {
		if !hidden[s.ID] {
			visible = append(visible, s)
		}
	}
	return visible, nil
}
