// Package mcp exposes the core over the Model Context Protocol so agent
// frontends can read and mutate tasks, suggestions and provider sessions.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"tasks_list": {
		def:     tasksListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTasksList },
	},
	"task_add": {
		def:     taskAddToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTaskAdd },
	},
	"task_complete": {
		def:     taskCompleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTaskComplete },
	},
	"suggestions_get": {
		def:     suggestionsGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSuggestionsGet },
	},
	"suggestion_dismiss": {
		def:     suggestionDismissToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSuggestionDismiss },
	},
	"providers_status": {
		def:     providersStatusToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProvidersStatus },
	},
}

// AllToolNames returns every registered tool name.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// NewServer creates an MCP server with all core tools registered.
func NewServer(h *Handlers, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"amp",
		version,
		server.WithToolCapabilities(true),
	)

	for _, entry := range toolRegistry {
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server on stdio transport.
func Run(h *Handlers, version string) error {
	return server.ServeStdio(NewServer(h, version))
}
