package library

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sort"
	"time"
)

// MediaKind distinguishes still images from videos.
type MediaKind string

const (
	KindImage MediaKind = "image"
	KindVideo MediaKind = "video"
)

// Category identifies one of the disjoint triage views. Flagged is composed
// from the sensitive ledger by callers; the library itself cannot resolve it.
type Category string

const (
	CategoryPhotos      Category = "photos"
	CategoryScreenshots Category = "screenshots"
	CategoryVideos      Category = "videos"
	CategoryFlagged     Category = "flagged"
)

// AllCategories lists categories in presentation order.
var AllCategories = []Category{CategoryFlagged, CategoryPhotos, CategoryScreenshots, CategoryVideos}

// ParseCategory maps user input to a Category.
func ParseCategory(value string) (Category, error) {
	switch Category(value) {
	case CategoryPhotos, CategoryScreenshots, CategoryVideos, CategoryFlagged:
		return Category(value), nil
	}
	return "", fmt.Errorf("unknown category %q (expected photos, screenshots, videos, or flagged)", value)
}

// AuthStatus reports the access level granted to the photo source.
type AuthStatus string

const (
	AuthAuthorized AuthStatus = "authorized"
	AuthLimited    AuthStatus = "limited"
	AuthDenied     AuthStatus = "denied"
	AuthRestricted AuthStatus = "restricted"
)

// Readable reports whether read operations may return data. Denied and
// restricted sources are a steady state, not an error: callers yield empty
// results.
func (s AuthStatus) Readable() bool {
	return s == AuthAuthorized || s == AuthLimited
}

// AssetRef identifies one photo or video owned by the external source. The
// engine only ever reads it and references it by ID.
type AssetRef struct {
	ID         string
	Kind       MediaKind
	Screenshot bool
	CreatedAt  time.Time
}

// Album is a lightweight reference to an asset collection.
type Album struct {
	ID    string
	Title string
}

// DeleteResult reports the outcome of a batch delete. Failures are reported
// per identifier and do not roll back successful siblings.
type DeleteResult struct {
	Removed []string
	Failed  []string
}

// SortByCreatedDesc orders refs newest first, breaking creation-time ties by
// identifier so the order is deterministic.
func SortByCreatedDesc(refs []AssetRef) {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].CreatedAt.Equal(refs[j].CreatedAt) {
			return refs[i].ID < refs[j].ID
		}
		return refs[i].CreatedAt.After(refs[j].CreatedAt)
	})
}

// ErrUnsupportedCategory is returned for fetches the source cannot resolve by
// predicate (the flagged view is derived, not stored).
var ErrUnsupportedCategory = errors.New("category not resolvable by the asset source")

// ErrAlbumNotFound is returned when an album identifier does not resolve.
var ErrAlbumNotFound = errors.New("album not found")

// ErrAssetNotFound is returned when an asset identifier does not resolve.
var ErrAssetNotFound = errors.New("asset not found")

// Library is the external photo/video source capability the engine depends
// on but does not own. The source is large, slow to enumerate, and may change
// between calls; no ordering is guaranteed across calls, only within one
// returned slice (descending creation time).
type Library interface {
	// Authorization reports current access. All other methods return empty
	// results without error when the status is not Readable.
	Authorization() AuthStatus

	// Count returns the number of assets matching the category predicate
	// without enumerating them. Flagged returns ErrUnsupportedCategory.
	Count(ctx context.Context, category Category) (int, error)

	// Assets enumerates the category ordered by descending creation time.
	// Flagged returns ErrUnsupportedCategory.
	Assets(ctx context.Context, category Category) ([]AssetRef, error)

	// AssetsByID resolves identifiers to refs ordered by descending creation
	// time. Unknown identifiers are skipped, not errors.
	AssetsByID(ctx context.Context, ids []string) ([]AssetRef, error)

	// Decode materializes a bitmap scaled to fit within edge pixels on the
	// longest side. Per-asset failures are errors; callers skip and continue.
	Decode(ctx context.Context, ref AssetRef, edge int) (image.Image, error)

	// Delete irreversibly removes the identified assets from the source.
	Delete(ctx context.Context, ids []string) (DeleteResult, error)

	Albums(ctx context.Context) ([]Album, error)
	CreateAlbum(ctx context.Context, title string) (Album, error)
	AddToAlbum(ctx context.Context, assetID, albumID string) error
}
