// Package logging provides the configured zerolog logger shared by all
// subsystems.
package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New returns a logger configured for the given service name. Level comes
// from AMP_LOG_LEVEL (debug, info, warn, error); default is info.
func New(serviceName string) zerolog.Logger {
	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(strings.ToLower(os.Getenv("AMP_LOG_LEVEL"))); err == nil && parsed != zerolog.NoLevel {
		level = parsed
	}

	return zerolog.New(os.Stderr).With().
		Str("service", serviceName).
		Timestamp().
		Logger().
		Level(level)
}

// Truncate shortens a string to maxLen for one-line logs, adding an ellipsis
func Truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.TrimSpace(s)
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
