package testsupport

import (
	"context"
	"fmt"
	"image"
	"sort"
	"sync"
	"time"

	"phototriage/internal/library"
)

// FakeLibrary is a deterministic in-memory asset source for tests. Zero value
// is not usable; construct with NewFakeLibrary.
type FakeLibrary struct {
	mu sync.Mutex

	Auth library.AuthStatus

	assets map[string]library.AssetRef

	// DecodeFailures marks identifiers whose Decode always fails.
	DecodeFailures map[string]bool
	// DeleteFailures marks identifiers whose Delete is reported failed.
	DeleteFailures map[string]bool

	decodeCalls map[string]int
	deleted     []string

	albums      map[string]library.Album
	albumAssets map[string][]string
	albumSeq    int
}

// NewFakeLibrary returns an authorized, empty fake source.
func NewFakeLibrary() *FakeLibrary {
	return &FakeLibrary{
		Auth:           library.AuthAuthorized,
		assets:         make(map[string]library.AssetRef),
		DecodeFailures: make(map[string]bool),
		DeleteFailures: make(map[string]bool),
		decodeCalls:    make(map[string]int),
		albums:         make(map[string]library.Album),
		albumAssets:    make(map[string][]string),
	}
}

// AddAsset registers an asset. Later calls with the same id overwrite.
func (l *FakeLibrary) AddAsset(ref library.AssetRef) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.assets[ref.ID] = ref
}

// AddPhotos registers count image assets named <prefix>-1..count with
// descending ages (the first added is the newest).
func (l *FakeLibrary) AddPhotos(prefix string, count int) []string {
	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	ids := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		id := fmt.Sprintf("%s-%d", prefix, i)
		l.AddAsset(library.AssetRef{
			ID:        id,
			Kind:      library.KindImage,
			CreatedAt: base.Add(-time.Duration(i) * time.Minute),
		})
		ids = append(ids, id)
	}
	return ids
}

// RemoveAsset drops an asset, simulating external mutation between calls.
func (l *FakeLibrary) RemoveAsset(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.assets, id)
}

// DecodeCalls reports how many times Decode ran for an identifier.
func (l *FakeLibrary) DecodeCalls(id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.decodeCalls[id]
}

// Deleted returns identifiers removed via Delete, in order.
func (l *FakeLibrary) Deleted() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string{}, l.deleted...)
}

func (l *FakeLibrary) Authorization() library.AuthStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Auth
}

func (l *FakeLibrary) Count(_ context.Context, category library.Category) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.Auth.Readable() {
		return 0, nil
	}
	if category == library.CategoryFlagged {
		return 0, library.ErrUnsupportedCategory
	}
	count := 0
	for _, ref := range l.assets {
		if matchesCategory(ref, category) {
			count++
		}
	}
	return count, nil
}

func (l *FakeLibrary) Assets(_ context.Context, category library.Category) ([]library.AssetRef, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.Auth.Readable() {
		return nil, nil
	}
	if category == library.CategoryFlagged {
		return nil, library.ErrUnsupportedCategory
	}
	var refs []library.AssetRef
	for _, ref := range l.assets {
		if matchesCategory(ref, category) {
			refs = append(refs, ref)
		}
	}
	library.SortByCreatedDesc(refs)
	return refs, nil
}

func (l *FakeLibrary) AssetsByID(_ context.Context, ids []string) ([]library.AssetRef, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.Auth.Readable() {
		return nil, nil
	}
	var refs []library.AssetRef
	for _, id := range ids {
		if ref, ok := l.assets[id]; ok {
			refs = append(refs, ref)
		}
	}
	library.SortByCreatedDesc(refs)
	return refs, nil
}

func (l *FakeLibrary) Decode(_ context.Context, ref library.AssetRef, edge int) (image.Image, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.decodeCalls[ref.ID]++
	if l.DecodeFailures[ref.ID] {
		return nil, fmt.Errorf("decode %s: corrupt data", ref.ID)
	}
	if edge <= 0 {
		edge = 8
	}
	return image.NewRGBA(image.Rect(0, 0, edge, edge)), nil
}

func (l *FakeLibrary) Delete(_ context.Context, ids []string) (library.DeleteResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	result := library.DeleteResult{}
	for _, id := range ids {
		if l.DeleteFailures[id] {
			result.Failed = append(result.Failed, id)
			continue
		}
		delete(l.assets, id)
		l.deleted = append(l.deleted, id)
		result.Removed = append(result.Removed, id)
	}
	return result, nil
}

func (l *FakeLibrary) Albums(_ context.Context) ([]library.Album, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var albums []library.Album
	for _, album := range l.albums {
		albums = append(albums, album)
	}
	sort.Slice(albums, func(i, j int) bool { return albums[i].Title < albums[j].Title })
	return albums, nil
}

func (l *FakeLibrary) CreateAlbum(_ context.Context, title string) (library.Album, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.albumSeq++
	album := library.Album{ID: fmt.Sprintf("album-%d", l.albumSeq), Title: title}
	l.albums[album.ID] = album
	return album, nil
}

func (l *FakeLibrary) AddToAlbum(_ context.Context, assetID, albumID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.albums[albumID]; !ok {
		return library.ErrAlbumNotFound
	}
	if _, ok := l.assets[assetID]; !ok {
		return library.ErrAssetNotFound
	}
	l.albumAssets[albumID] = append(l.albumAssets[albumID], assetID)
	return nil
}

// AlbumContents returns asset ids added to an album, in insertion order.
func (l *FakeLibrary) AlbumContents(albumID string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string{}, l.albumAssets[albumID]...)
}

func matchesCategory(ref library.AssetRef, category library.Category) bool {
	switch category {
	case library.CategoryPhotos:
		return ref.Kind == library.KindImage && !ref.Screenshot
	case library.CategoryScreenshots:
		return ref.Kind == library.KindImage && ref.Screenshot
	case library.CategoryVideos:
		return ref.Kind == library.KindVideo
	default:
		return false
	}
}

