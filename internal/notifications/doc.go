// Package notifications delivers triage events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Scan and deletion milestones get dedicated methods so engine code
// can emit consistent, user-friendly messages without duplicating HTTP glue.
//
// Extend this package if you need alternative transports; all engine code
// depends only on the simple Service interface.
package notifications
