// Package triage is the engine facade: it owns the instance lock and wires
// the ledger, pager, scanner, deletion queue, and notifier into the
// serialized operations the CLI drives.
package triage
