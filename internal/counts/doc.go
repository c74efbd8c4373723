// Package counts aggregates per-category asset totals, reconciling the
// external source's view with kept and pending-deletion state.
package counts
