package pager

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"phototriage/internal/config"
	"phototriage/internal/deletion"
	"phototriage/internal/imagecache"
	"phototriage/internal/ledger"
	"phototriage/internal/library"
	"phototriage/internal/logging"
)

// PhotoItem is one displayable asset. The ID is a per-delivery identity, not
// the asset identifier: the same asset re-delivered after a session reset gets
// a fresh ID so stale view state never aliases a new item.
type PhotoItem struct {
	ID    uuid.UUID
	Ref   library.AssetRef
	Image image.Image
}

// Page is the result of one fetch. Exhausted reports that the category has no
// further undelivered assets past this page.
type Page struct {
	Category  library.Category
	Index     int
	Items     []PhotoItem
	Exhausted bool
}

// Pager assembles de-duplicated category pages. A delivery session starts at
// page zero and spans the ascending page fetches that follow; within it an
// asset is delivered at most once, and kept or queued-for-deletion assets are
// never delivered at all. Reloading page zero starts a new session, so the
// first page is stable across repeated loads.
//
// A page may come back shorter than the page size even when more assets exist:
// window continuation is bounded by the configured fetch attempt limit, so a
// stretch of heavily-excluded windows yields a short page instead of an
// unbounded enumeration. Callers request the next page index to continue.
type Pager struct {
	lib    library.Library
	store  *ledger.Store
	queue  *deletion.Queue
	cache  *imagecache.Cache
	logger *slog.Logger

	pageSize    int
	maxAttempts int
	decodeEdge  int

	mu        sync.Mutex
	delivered map[string]struct{}
}

// NewPager constructs a Pager over the given collaborators.
func NewPager(lib library.Library, store *ledger.Store, queue *deletion.Queue, cache *imagecache.Cache, cfg *config.Config, logger *slog.Logger) *Pager {
	return &Pager{
		lib:         lib,
		store:       store,
		queue:       queue,
		cache:       cache,
		logger:      logging.NewComponentLogger(logger, "pager"),
		pageSize:    cfg.Paging.PageSize,
		maxAttempts: cfg.Paging.MaxFetchAttempts,
		decodeEdge:  cfg.Classifier.DecodeEdge,
		delivered:   make(map[string]struct{}),
	}
}

// ResetSession forgets which assets were already delivered. Call on category
// switch or when restarting triage from the top.
func (p *Pager) ResetSession() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delivered = make(map[string]struct{})
}

// LoadPage fetches one de-duplicated page of decoded assets. An unreadable
// source yields an empty exhausted page without error.
func (p *Pager) LoadPage(ctx context.Context, category library.Category, pageIndex int) (Page, error) {
	page := Page{Category: category, Index: pageIndex}
	if pageIndex < 0 {
		return page, fmt.Errorf("page index %d is negative", pageIndex)
	}
	// Page zero starts a fresh delivery session: reloading the first page
	// returns the same assets instead of an empty page.
	if pageIndex == 0 {
		p.ResetSession()
	}
	if !p.lib.Authorization().Readable() {
		page.Exhausted = true
		return page, nil
	}

	refs, err := p.categoryRefs(ctx, category)
	if err != nil {
		return page, err
	}
	kept, err := p.store.KeptIDs(ctx)
	if err != nil {
		return page, fmt.Errorf("load kept ids: %w", err)
	}
	queued := p.queue.IDSet()

	start := pageIndex * p.pageSize
	attempts := 0
	for len(page.Items) < p.pageSize && attempts < p.maxAttempts {
		if start >= len(refs) {
			page.Exhausted = true
			break
		}
		end := start + p.pageSize
		if end > len(refs) {
			end = len(refs)
		}
		window := refs[start:end]
		start = end
		attempts++

		for _, ref := range window {
			if len(page.Items) >= p.pageSize {
				break
			}
			if _, ok := kept[ref.ID]; ok {
				continue
			}
			if _, ok := queued[ref.ID]; ok {
				continue
			}
			if p.alreadyDelivered(ref.ID) {
				continue
			}
			img, err := p.decode(ctx, ref)
			if err != nil {
				// Not marked delivered: a transient decode failure stays
				// retryable when the asset is re-enumerated.
				p.logger.Warn("skipping undecodable asset",
					logging.String(logging.FieldAssetID, ref.ID),
					logging.Error(err),
				)
				continue
			}
			p.markDelivered(ref.ID)
			page.Items = append(page.Items, PhotoItem{ID: uuid.New(), Ref: ref, Image: img})
		}
	}
	if start >= len(refs) {
		page.Exhausted = true
	}

	p.logger.Debug("loaded page",
		logging.String(logging.FieldCategory, string(category)),
		logging.Int(logging.FieldPage, pageIndex),
		logging.Int("items", len(page.Items)),
		logging.Bool("exhausted", page.Exhausted),
	)
	return page, nil
}

// categoryRefs resolves the ordered candidate list for a category. Flagged is
// composed from the sensitive ledger; verdicts whose assets no longer exist in
// the source are purged here, so paging the flagged view doubles as its
// reconciliation point.
func (p *Pager) categoryRefs(ctx context.Context, category library.Category) ([]library.AssetRef, error) {
	if category != library.CategoryFlagged {
		refs, err := p.lib.Assets(ctx, category)
		if err != nil {
			return nil, fmt.Errorf("enumerate %s: %w", category, err)
		}
		return refs, nil
	}

	sensitive, err := p.store.SensitiveIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sensitive ids: %w", err)
	}
	if len(sensitive) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(sensitive))
	for id := range sensitive {
		ids = append(ids, id)
	}
	refs, err := p.lib.AssetsByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve flagged assets: %w", err)
	}

	resolved := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		resolved[ref.ID] = struct{}{}
	}
	var stale []string
	for id := range sensitive {
		if _, ok := resolved[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		if purged, err := p.store.RemoveSensitive(ctx, stale...); err != nil {
			p.logger.Warn("failed to purge stale verdicts", logging.Error(err))
		} else if purged > 0 {
			p.logger.Info("purged verdicts for missing assets", logging.Int64("purged", purged))
		}
	}
	return refs, nil
}

func (p *Pager) decode(ctx context.Context, ref library.AssetRef) (image.Image, error) {
	if img, ok := p.cache.Get(ref.ID); ok {
		return img, nil
	}
	img, err := p.lib.Decode(ctx, ref, p.decodeEdge)
	if err != nil {
		return nil, err
	}
	p.cache.Add(ref.ID, img)
	return img, nil
}

func (p *Pager) alreadyDelivered(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.delivered[id]
	return ok
}

func (p *Pager) markDelivered(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delivered[id] = struct{}{}
}
