package fslibrary

import (
	"context"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"phototriage/internal/config"
	"phototriage/internal/fileutil"
	"phototriage/internal/library"
	"phototriage/internal/logging"
)

var imageExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {},
	".bmp": {}, ".tif": {}, ".tiff": {}, ".webp": {},
}

var videoExtensions = map[string]struct{}{
	".mp4": {}, ".mov": {}, ".m4v": {}, ".avi": {}, ".mkv": {},
}

// Source is a directory-backed asset source. Asset identifiers are paths
// relative to the photos directory, so they stay stable across restarts as
// long as files do not move. Deleting moves files into the trash directory
// instead of unlinking them.
type Source struct {
	photosDir string
	albumsDir string
	trashDir  string
	logger    *slog.Logger
}

// New constructs a Source over the configured directories.
func New(cfg *config.Config, logger *slog.Logger) *Source {
	return &Source{
		photosDir: cfg.Paths.PhotosDir,
		albumsDir: cfg.Paths.AlbumsDir,
		trashDir:  cfg.Paths.TrashDir,
		logger:    logging.NewComponentLogger(logger, "fslibrary"),
	}
}

// Authorization maps filesystem access to the source access levels: a
// readable photos directory is authorized, a permission failure is denied,
// and a missing directory is restricted.
func (s *Source) Authorization() library.AuthStatus {
	info, err := os.Stat(s.photosDir)
	switch {
	case err == nil && info.IsDir():
		return library.AuthAuthorized
	case os.IsPermission(err):
		return library.AuthDenied
	case os.IsNotExist(err):
		return library.AuthRestricted
	default:
		return library.AuthDenied
	}
}

func (s *Source) Count(ctx context.Context, category library.Category) (int, error) {
	refs, err := s.Assets(ctx, category)
	if err != nil {
		return 0, err
	}
	return len(refs), nil
}

func (s *Source) Assets(ctx context.Context, category library.Category) ([]library.AssetRef, error) {
	if category == library.CategoryFlagged {
		return nil, library.ErrUnsupportedCategory
	}
	if !s.Authorization().Readable() {
		return nil, nil
	}

	all, err := s.enumerate(ctx)
	if err != nil {
		return nil, err
	}
	var refs []library.AssetRef
	for _, ref := range all {
		if matchesCategory(ref, category) {
			refs = append(refs, ref)
		}
	}
	library.SortByCreatedDesc(refs)
	return refs, nil
}

func (s *Source) AssetsByID(_ context.Context, ids []string) ([]library.AssetRef, error) {
	if !s.Authorization().Readable() {
		return nil, nil
	}
	var refs []library.AssetRef
	for _, id := range ids {
		ref, ok := s.resolve(id)
		if !ok {
			continue
		}
		refs = append(refs, ref)
	}
	library.SortByCreatedDesc(refs)
	return refs, nil
}

func (s *Source) Decode(ctx context.Context, ref library.AssetRef, edge int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(s.assetPath(ref.ID))
	if err != nil {
		return nil, fmt.Errorf("open asset %s: %w", ref.ID, err)
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode asset %s: %w", ref.ID, err)
	}
	s.logger.Debug("decoded asset",
		logging.String(logging.FieldAssetID, ref.ID),
		logging.String("format", format),
	)
	return scaleToFit(img, edge), nil
}

func (s *Source) Delete(_ context.Context, ids []string) (library.DeleteResult, error) {
	result := library.DeleteResult{}
	for _, id := range ids {
		src := s.assetPath(id)
		if _, err := os.Stat(src); os.IsNotExist(err) {
			// Already gone externally; the deletion intent is satisfied.
			result.Removed = append(result.Removed, id)
			continue
		}
		dst := fileutil.UniquePath(filepath.Join(s.trashDir, trashName(id)))
		if err := fileutil.MoveFile(src, dst); err != nil {
			s.logger.Warn("failed to move asset to trash",
				logging.String(logging.FieldAssetID, id),
				logging.Error(err),
			)
			result.Failed = append(result.Failed, id)
			continue
		}
		result.Removed = append(result.Removed, id)
	}
	return result, nil
}

func (s *Source) Albums(_ context.Context) ([]library.Album, error) {
	entries, err := os.ReadDir(s.albumsDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read albums dir: %w", err)
	}
	var albums []library.Album
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		albums = append(albums, library.Album{ID: entry.Name(), Title: entry.Name()})
	}
	return albums, nil
}

func (s *Source) CreateAlbum(_ context.Context, title string) (library.Album, error) {
	name := albumDirName(title)
	if name == "" {
		return library.Album{}, fmt.Errorf("album title %q is empty after sanitizing", title)
	}
	dir := filepath.Join(s.albumsDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return library.Album{}, fmt.Errorf("create album dir: %w", err)
	}
	return library.Album{ID: name, Title: name}, nil
}

// AddToAlbum copies the asset into the album directory with integrity
// verification. The original stays in the photos directory; an album
// membership is a second reference, not a move.
func (s *Source) AddToAlbum(_ context.Context, assetID, albumID string) error {
	albumDir := filepath.Join(s.albumsDir, albumID)
	if info, err := os.Stat(albumDir); err != nil || !info.IsDir() {
		return library.ErrAlbumNotFound
	}
	src := s.assetPath(assetID)
	if _, err := os.Stat(src); err != nil {
		return library.ErrAssetNotFound
	}
	dst := fileutil.UniquePath(filepath.Join(albumDir, filepath.Base(assetID)))
	if err := fileutil.CopyFileVerified(src, dst); err != nil {
		return fmt.Errorf("copy into album: %w", err)
	}
	return nil
}

func (s *Source) enumerate(ctx context.Context) ([]library.AssetRef, error) {
	var refs []library.AssetRef
	err := filepath.WalkDir(s.photosDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		name := d.Name()
		if d.IsDir() {
			if strings.HasPrefix(name, ".") && path != s.photosDir {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		kind, ok := kindForExt(filepath.Ext(name))
		if !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(s.photosDir, path)
		if err != nil {
			return nil
		}
		refs = append(refs, library.AssetRef{
			ID:         filepath.ToSlash(rel),
			Kind:       kind,
			Screenshot: isScreenshotName(name),
			CreatedAt:  info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk photos dir: %w", err)
	}
	return refs, nil
}

func (s *Source) resolve(id string) (library.AssetRef, bool) {
	path := s.assetPath(id)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return library.AssetRef{}, false
	}
	name := filepath.Base(path)
	kind, ok := kindForExt(filepath.Ext(name))
	if !ok {
		return library.AssetRef{}, false
	}
	return library.AssetRef{
		ID:         id,
		Kind:       kind,
		Screenshot: isScreenshotName(name),
		CreatedAt:  info.ModTime(),
	}, true
}

func (s *Source) assetPath(id string) string {
	return filepath.Join(s.photosDir, filepath.FromSlash(id))
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

func kindForExt(ext string) (library.MediaKind, bool) {
	ext = strings.ToLower(ext)
	if _, ok := imageExtensions[ext]; ok {
		return library.KindImage, true
	}
	if _, ok := videoExtensions[ext]; ok {
		return library.KindVideo, true
	}
	return "", false
}

// isScreenshotName matches the common capture-tool naming conventions.
func isScreenshotName(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasPrefix(lower, "screenshot") ||
		strings.HasPrefix(lower, "screen shot") ||
		strings.HasPrefix(lower, "screen_shot")
}

// albumDirName sanitizes a title into a directory name. Path separators and
// leading dots are stripped so a title can never escape the albums directory.
func albumDirName(title string) string {
	name := strings.TrimSpace(title)
	name = strings.ReplaceAll(name, "/", "-")
	name = strings.ReplaceAll(name, string(filepath.Separator), "-")
	name = strings.TrimLeft(name, ".")
	return strings.TrimSpace(name)
}

// trashName flattens a relative asset path into a single trash file name.
func trashName(id string) string {
	return strings.ReplaceAll(filepath.FromSlash(id), string(filepath.Separator), "_")
}

// scaleToFit downscales src so its longest side fits within edge pixels,
// preserving aspect ratio. Images already within bounds pass through.
func scaleToFit(src image.Image, edge int) image.Image {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if edge <= 0 || (width <= edge && height <= edge) {
		return src
	}
	longest := width
	if height > longest {
		longest = height
	}
	scale := float64(edge) / float64(longest)
	scaledWidth := int(float64(width) * scale)
	scaledHeight := int(float64(height) * scale)
	if scaledWidth < 1 {
		scaledWidth = 1
	}
	if scaledHeight < 1 {
		scaledHeight = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, scaledWidth, scaledHeight))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}
