// Package pager turns the external source's raw category enumerations into
// the de-duplicated, exclusion-filtered pages the triage flow actually shows.
package pager
