package counts

import (
	"context"
	"fmt"
	"log/slog"

	"phototriage/internal/deletion"
	"phototriage/internal/ledger"
	"phototriage/internal/library"
	"phototriage/internal/logging"
)

// Snapshot holds the per-category totals shown on the category picker.
// Every figure already excludes kept and queued-for-deletion assets, so the
// numbers line up with what paging through the category would deliver.
type Snapshot struct {
	Photos      int
	Screenshots int
	Videos      int
	Flagged     int
}

// Total sums the three source-backed categories. Flagged overlaps them and
// is excluded from the total.
func (s Snapshot) Total() int {
	return s.Photos + s.Screenshots + s.Videos
}

// Counter computes category totals from the external source and the ledger.
type Counter struct {
	lib    library.Library
	store  *ledger.Store
	queue  *deletion.Queue
	logger *slog.Logger
}

// NewCounter constructs a Counter over the given collaborators.
func NewCounter(lib library.Library, store *ledger.Store, queue *deletion.Queue, logger *slog.Logger) *Counter {
	return &Counter{
		lib:    lib,
		store:  store,
		queue:  queue,
		logger: logging.NewComponentLogger(logger, "counts"),
	}
}

// Compute returns a fresh snapshot. An unreadable source yields all zeros
// rather than an error so callers can render an empty picker.
//
// When nothing is kept or queued the totals come straight from the source's
// own counting, which avoids enumerating asset metadata. As soon as either
// exclusion set is non-empty the source categories are enumerated and
// filtered, since the source cannot subtract ledger state itself.
func (c *Counter) Compute(ctx context.Context) (Snapshot, error) {
	if !c.lib.Authorization().Readable() {
		return Snapshot{}, nil
	}

	kept, err := c.store.KeptIDs(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load kept ids: %w", err)
	}
	queued := c.queue.IDSet()

	var snap Snapshot
	fast := len(kept) == 0 && len(queued) == 0
	for _, category := range []library.Category{
		library.CategoryPhotos,
		library.CategoryScreenshots,
		library.CategoryVideos,
	} {
		var count int
		if fast {
			count, err = c.lib.Count(ctx, category)
			if err != nil {
				return Snapshot{}, fmt.Errorf("count %s: %w", category, err)
			}
		} else {
			count, err = c.filteredCount(ctx, category, kept, queued)
			if err != nil {
				return Snapshot{}, err
			}
		}
		switch category {
		case library.CategoryPhotos:
			snap.Photos = count
		case library.CategoryScreenshots:
			snap.Screenshots = count
		case library.CategoryVideos:
			snap.Videos = count
		}
	}

	snap.Flagged, err = c.flaggedCount(ctx, kept, queued)
	if err != nil {
		return Snapshot{}, err
	}

	c.logger.Debug("computed category counts",
		logging.Int("photos", snap.Photos),
		logging.Int("screenshots", snap.Screenshots),
		logging.Int("videos", snap.Videos),
		logging.Int("flagged", snap.Flagged),
		logging.Bool("fast_path", fast),
	)
	return snap, nil
}

func (c *Counter) filteredCount(ctx context.Context, category library.Category, kept, queued map[string]struct{}) (int, error) {
	refs, err := c.lib.Assets(ctx, category)
	if err != nil {
		return 0, fmt.Errorf("enumerate %s: %w", category, err)
	}
	count := 0
	for _, ref := range refs {
		if _, ok := kept[ref.ID]; ok {
			continue
		}
		if _, ok := queued[ref.ID]; ok {
			continue
		}
		count++
	}
	return count, nil
}

// flaggedCount derives the flagged total from the persisted sensitive set
// minus kept and queued identifiers. Ledger entries for assets that no longer
// exist in the source still count here; they are purged lazily when the
// flagged category is actually paged.
func (c *Counter) flaggedCount(ctx context.Context, kept, queued map[string]struct{}) (int, error) {
	sensitive, err := c.store.SensitiveIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("load sensitive ids: %w", err)
	}
	count := 0
	for id := range sensitive {
		if _, ok := kept[id]; ok {
			continue
		}
		if _, ok := queued[id]; ok {
			continue
		}
		count++
	}
	return count, nil
}
