// Package ledger persists the derived asset sets in SQLite: kept markers,
// sensitive (flagged) verdicts, and scan state scalars.
//
// All inserts are idempotent and individually durable; a crash mid-scan loses
// at most the in-flight verdict, never previously confirmed flags. The
// deletion queue is deliberately NOT stored here: a crash with queued
// deletions must restore those assets to their categories on relaunch.
//
// Treat this package as the single source of truth for set semantics; when
// adding tables, update schema.sql and bump schemaVersion.
package ledger
