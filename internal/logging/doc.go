// Package logging constructs slog loggers for the engine and provides shared
// attribute helpers and field names so log lines stay greppable across
// components.
package logging
