// amp-mcp serves the core's tasks, suggestions and provider status over the
// Model Context Protocol on stdio.
package main

import (
	"github.com/joho/godotenv"

	"github.com/ampdesk/amp/internal/config"
	"github.com/ampdesk/amp/internal/logging"
	"github.com/ampdesk/amp/internal/mcp"
	"github.com/ampdesk/amp/internal/session"
	"github.com/ampdesk/amp/internal/store"
	"github.com/ampdesk/amp/internal/suggest"
	"github.com/ampdesk/amp/internal/tasks"
)

// Version is set via -ldflags at build time.
var Version = "dev"

func main() {
	// Logs go to stderr so stdout stays clean for JSON-RPC
	log := logging.New("amp-mcp")

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

	coordinator := session.New(kv, session.ClientSet{}, log)
	if err := coordinator.Initialize(); err != nil {
		log.Fatal().Err(err).Msg("restore sessions")
	}

	taskStore := tasks.NewStore(kv)
	// The MCP surface reads the cache the daemon keeps warm; it never fans
	// out to providers itself, so a cold cache just reads empty.
	cache := suggest.NewCache(kv, coordinator.GetSmartSuggestions, cfg.SuggestionTTL, log)

	handlers := mcp.NewHandlers(taskStore, cache, coordinator)

	log.Info().Str("version", Version).Msg("serving MCP on stdio")
	if err := mcp.Run(handlers, Version); err != nil {
		log.Fatal().Err(err).Msg("mcp server exited")
	}
}
