// Package deletion batches destructive asset removals so one external
// confirmation covers many discards. The auto-flush policy is caller-driven;
// the queue itself never time-triggers a flush.
package deletion
