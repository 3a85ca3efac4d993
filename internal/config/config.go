// Package config loads runtime configuration from the environment and the
// static provider credentials file.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the core. Environment variables are
// parsed from the AMP_ prefix, e.g. AMP_STATE_PATH, AMP_RELAY_URL.
type Config struct {
	// StatePath is the directory for the settings database
	StatePath string `envconfig:"STATE_PATH" default:"state"`

	// RelayURL is the base URL of the inbound-event relay (pending mentions queue)
	RelayURL string `envconfig:"RELAY_URL" default:""`

	// RelayBotToken authorizes chat side effects (replies, reactions) sent
	// through the relay
	RelayBotToken string `envconfig:"RELAY_BOT_TOKEN" default:""`

	// PollInterval is how often the inbound poller checks the relay
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"10s"`

	// ProvidersFile is the path to the static provider credentials file
	ProvidersFile string `envconfig:"PROVIDERS_FILE" default:"providers.yaml"`

	// SuggestionTTL is how long cached smart suggestions stay fresh
	SuggestionTTL time.Duration `envconfig:"SUGGESTION_TTL" default:"24h"`
}

// New creates a Config by parsing AMP_-prefixed environment variables.
func New() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("AMP", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %v", cfg.PollInterval)
	}
	if cfg.SuggestionTTL <= 0 {
		return nil, fmt.Errorf("suggestion TTL must be positive, got %v", cfg.SuggestionTTL)
	}

	return &cfg, nil
}
