// Package logs provides file tailing and offset helpers for the CLI.
//
// It streams the engine log file with bounded memory usage, supports negative
// offsets for "tail last N lines" operations, and powers follow-mode updates
// for `phototriage logs --follow`. Callers supply context deadlines so
// background polling shuts down cleanly when the CLI exits.
package logs
