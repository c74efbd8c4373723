// Package config loads, validates, and normalizes phototriage configuration.
//
// Configuration is TOML with a sample file embedded for 'phototriage config
// init'. Load applies defaults, expands ~ paths, and validates ranges; the
// classifier threshold range is enforced here rather than in the gate so
// runtime threshold updates stay cheap.
package config
