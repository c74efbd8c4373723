// Package imagecache bounds the memory held by decoded bitmaps. It is the
// one component safely mutated from multiple concurrent fetch callers.
package imagecache
