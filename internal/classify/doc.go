// Package classify gates assets on an opaque sensitivity model. The model
// handle is acquired lazily and cached for process lifetime; a missing model
// degrades every verdict to "not sensitive" with a single warning.
package classify
