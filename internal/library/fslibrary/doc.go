// Package fslibrary implements the asset source over a local directory tree:
// the photos directory is enumerated by extension, albums are subdirectories,
// and deletion moves files into a trash directory.
package fslibrary
