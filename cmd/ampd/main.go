// ampd is the desktop shell's background core: it restores provider
// sessions, keeps the smart suggestion cache warm, and drains the inbound
// mention queue into the local task list.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/ampdesk/amp/internal/config"
	"github.com/ampdesk/amp/internal/inbound"
	"github.com/ampdesk/amp/internal/logging"
	"github.com/ampdesk/amp/internal/providers/confluence"
	"github.com/ampdesk/amp/internal/providers/google"
	"github.com/ampdesk/amp/internal/providers/jira"
	"github.com/ampdesk/amp/internal/providers/slack"
	"github.com/ampdesk/amp/internal/providers/zoom"
	"github.com/ampdesk/amp/internal/session"
	"github.com/ampdesk/amp/internal/store"
	"github.com/ampdesk/amp/internal/suggest"
	"github.com/ampdesk/amp/internal/tasks"
	"github.com/ampdesk/amp/internal/types"
)

func main() {
	log := logging.New("ampd")

	// .env is optional; environment variables win either way
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("loaded .env file")
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	kv, err := store.Open(cfg.StatePath)
	if err != nil {
		log.Fatal().Err(err).Msg("open settings store")
	}
	defer kv.Close()

	apps, err := config.LoadProviders(cfg.ProvidersFile)
	if err != nil {
		log.Fatal().Err(err).Msg("load provider credentials")
	}

	clients := buildClients(apps, log)
	coordinator := session.New(kv, clients, log)
	if err := coordinator.Initialize(); err != nil {
		log.Fatal().Err(err).Msg("restore sessions")
	}

	taskStore := tasks.NewStore(kv)
	cache := suggest.NewCache(kv, coordinator.GetSmartSuggestions, cfg.SuggestionTTL, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var poller *inbound.Poller
	if cfg.RelayURL != "" {
		relay := inbound.NewRelayClient(cfg.RelayURL, cfg.RelayBotToken)
		poller = inbound.NewPoller(relay, inbound.Handlers{
			CreateTask: taskStore.Append,
			CreateTicket: func(ctx context.Context, req jira.IssueRequest) (*types.IssueRef, error) {
				return coordinator.CreateJiraIssue(ctx, req)
			},
			CreatePage: func(ctx context.Context, req confluence.PageRequest) (*types.PageRef, error) {
				return coordinator.CreateConfluencePage(ctx, req)
			},
		}, cfg.PollInterval, log)
		poller.Start(ctx)
		log.Info().Str("relay", cfg.RelayURL).Dur("interval", cfg.PollInterval).Msg("inbound poller started")
	} else {
		log.Info().Msg("no relay configured, inbound poller disabled")
	}

	// Warm the suggestion cache on startup; failures here are not fatal
	if _, err := cache.Get(ctx, false); err != nil {
		log.Warn().Err(err).Msg("initial suggestion refresh failed")
	}

	for _, provider := range []string{types.ProviderGoogle, types.ProviderSlack, types.ProviderZoom} {
		log.Info().
			Str("provider", provider).
			Bool("connected", coordinator.Connected(provider)).
			Msg("session status")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down")
	cancel()
	if poller != nil {
		poller.Stop()
	}
}

// buildClients wires provider clients from the static credentials file. Nil
// entries mean the provider is not configured and stay nil in the set.
func buildClients(apps *config.Providers, log zerolog.Logger) session.ClientSet {
	var clients session.ClientSet

	if apps.Google != nil {
		clients.GoogleAuth = google.NewOAuth(apps.Google.ClientID, apps.Google.ClientSecret, apps.Google.RedirectURI)
		clients.Calendar = google.NewCalendarClient()
		clients.Gmail = google.NewGmailClient()
	}
	if apps.Slack != nil {
		clients.Slack = slack.NewClient(apps.Slack.ClientID, apps.Slack.ClientSecret, apps.Slack.RedirectURI)
	}
	if apps.Zoom != nil {
		clients.Zoom = zoom.NewClient(apps.Zoom.ClientID, apps.Zoom.ClientSecret, apps.Zoom.RedirectURI)
	}
	if apps.Jira != nil {
		client, err := jira.NewClient(jira.Config{
			Domain:     apps.Jira.Domain,
			Email:      apps.Jira.Email,
			APIToken:   apps.Jira.APIToken,
			ProjectKey: apps.Jira.ProjectKey,
		})
		if err != nil {
			log.Warn().Err(err).Msg("jira disabled")
		} else {
			clients.Jira = client
		}
	}
	if apps.Confluence != nil {
		client, err := confluence.NewClient(confluence.Config{
			Domain:   apps.Confluence.Domain,
			Email:    apps.Confluence.Email,
			APIToken: apps.Confluence.APIToken,
			SpaceKey: apps.Confluence.SpaceKey,
		})
		if err != nil {
			log.Warn().Err(err).Msg("confluence disabled")
		} else {
			clients.Confluence = client
		}
	}

	return clients
}
