package triage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"phototriage/internal/classify"
	"phototriage/internal/config"
	"phototriage/internal/counts"
	"phototriage/internal/deletion"
	"phototriage/internal/imagecache"
	"phototriage/internal/ledger"
	"phototriage/internal/library"
	"phototriage/internal/logging"
	"phototriage/internal/notifications"
	"phototriage/internal/pager"
	"phototriage/internal/scanner"
)

// ErrStaleRequest is returned when a page load carries a token superseded by
// a later category selection. The result would be for a view the user already
// navigated away from; callers drop it silently.
var ErrStaleRequest = errors.New("request superseded by a later selection")

// ErrAlreadyRunning is returned when another process holds the instance lock.
var ErrAlreadyRunning = errors.New("another instance is already running")

// Signal announces that category counts may have changed. Subscribers
// re-compute counts when the version moves past what they last rendered.
type Signal struct {
	CountsVersion uint64
}

// Engine wires the triage components behind one serialized facade. All
// mutating operations take the engine mutex, so keep, discard, and flush
// never interleave; the scan runs on its own goroutine and synchronizes
// through the ledger.
type Engine struct {
	cfg      *config.Config
	lib      library.Library
	store    *ledger.Store
	queue    *deletion.Queue
	cache    *imagecache.Cache
	detector *classify.Detector
	pager    *pager.Pager
	scanner  *scanner.Scanner
	counter  *counts.Counter
	notifier notifications.Service
	logger   *slog.Logger
	lock     *flock.Flock

	mu       sync.Mutex
	category library.Category

	token         atomic.Uint64
	countsVersion atomic.Uint64

	subMu sync.Mutex
	subs  []chan Signal
}

// NewEngine constructs the engine and takes the single-instance lock. The
// model loader is an injection point; production callers pass
// classify.FileLoader for the configured model path.
func NewEngine(cfg *config.Config, lib library.Library, loader classify.ModelLoader, logger *slog.Logger) (*Engine, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w (lock file %s)", ErrAlreadyRunning, cfg.LockPath())
	}

	store, err := ledger.Open(cfg)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	engineLogger := logging.NewComponentLogger(logger, "engine")
	queue := deletion.NewQueue(logger)
	cache := imagecache.New(cfg.Cache.MaxBytes, cfg.Cache.MaxEntries)
	detector := classify.NewDetector(loader, cfg.Classifier.Threshold, logger)
	notifier := notifications.NewService(cfg)

	scan, err := scanner.NewScanner(lib, store, detector, notifier, cfg, logger)
	if err != nil {
		_ = store.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("init scanner: %w", err)
	}

	e := &Engine{
		cfg:      cfg,
		lib:      lib,
		store:    store,
		queue:    queue,
		cache:    cache,
		detector: detector,
		pager:    pager.NewPager(lib, store, queue, cache, cfg, logger),
		scanner:  scan,
		counter:  counts.NewCounter(lib, store, queue, logger),
		notifier: notifier,
		logger:   engineLogger,
		lock:     lock,
		category: library.CategoryPhotos,
	}
	scan.OnDone(func(p scanner.Progress) {
		if p.State == scanner.StateCompleted {
			e.bumpCounts()
		}
	})
	return e, nil
}

// Subscribe returns a channel that receives a Signal after operations that can
// change counts. The channel is buffered and sends never block; a slow
// subscriber coalesces intermediate signals and reads the latest version.
func (e *Engine) Subscribe() <-chan Signal {
	ch := make(chan Signal, 1)
	e.subMu.Lock()
	e.subs = append(e.subs, ch)
	e.subMu.Unlock()
	return ch
}

func (e *Engine) bumpCounts() {
	version := e.countsVersion.Add(1)
	sig := Signal{CountsVersion: version}
	e.subMu.Lock()
	for _, ch := range e.subs {
		select {
		case ch <- sig:
		default:
		}
	}
	e.subMu.Unlock()
}

// Close stops any in-flight scan, releases the ledger, and drops the instance
// lock. Queued deletions are deliberately not flushed: the queue is a staging
// area and shutdown must never delete anything on its own.
func (e *Engine) Close() error {
	e.scanner.Stop()
	var firstErr error
	if err := e.store.Close(); err != nil {
		firstErr = err
	}
	if err := e.lock.Unlock(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// SelectCategory switches the active view, resets the delivery session, and
// returns a fresh request token. Page loads started before the switch become
// stale and are rejected rather than raced.
func (e *Engine) SelectCategory(category library.Category) uint64 {
	e.mu.Lock()
	e.category = category
	e.mu.Unlock()
	e.pager.ResetSession()
	return e.token.Add(1)
}

// CurrentToken returns the token of the latest selection.
func (e *Engine) CurrentToken() uint64 {
	return e.token.Load()
}

// LoadPage fetches one page for the active category. A token from a
// superseded selection yields ErrStaleRequest.
func (e *Engine) LoadPage(ctx context.Context, token uint64, pageIndex int) (pager.Page, error) {
	if token != e.token.Load() {
		return pager.Page{}, ErrStaleRequest
	}
	e.mu.Lock()
	category := e.category
	e.mu.Unlock()

	page, err := e.pager.LoadPage(ctx, category, pageIndex)
	if err != nil {
		return pager.Page{}, err
	}
	// The selection may have moved on while the page was being decoded.
	if token != e.token.Load() {
		return pager.Page{}, ErrStaleRequest
	}
	return page, nil
}

// Keep marks an asset as retained. It disappears from every category view,
// including flagged, and is never delivered again.
func (e *Engine) Keep(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.store.InsertKept(ctx, id); err != nil {
		return fmt.Errorf("keep asset: %w", err)
	}
	e.bumpCounts()
	e.logger.Info("asset kept", logging.String(logging.FieldAssetID, id))
	return nil
}

// EnqueueDeletion stages an asset for deletion, hiding it immediately. When
// automatic batching is enabled and the queue reaches the configured batch
// size, the batch is flushed in the same call; the returned result is non-nil
// only in that case.
func (e *Engine) EnqueueDeletion(ctx context.Context, id string) (*deletion.FlushResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.queue.Enqueue(id)
	e.bumpCounts()
	if !e.cfg.Deletion.AutoBatch || e.queue.Len() < e.cfg.Deletion.BatchSize {
		return nil, nil
	}
	result, err := e.flushLocked(ctx)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// FlushDeletions deletes every queued asset now, regardless of batch size.
func (e *Engine) FlushDeletions(ctx context.Context) (deletion.FlushResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flushLocked(ctx)
}

func (e *Engine) flushLocked(ctx context.Context) (deletion.FlushResult, error) {
	result, err := e.queue.Flush(ctx, e.lib)
	if err != nil {
		if notifyErr := e.notifier.NotifyError(ctx, err, "deletion flush"); notifyErr != nil {
			e.logger.Debug("error notification failed", logging.Error(notifyErr))
		}
		return deletion.FlushResult{}, err
	}
	if len(result.Removed) == 0 && len(result.Failed) == 0 {
		return result, nil
	}

	for _, id := range result.Removed {
		e.cache.Remove(id)
	}
	// Deleted assets can no longer appear in the flagged view; drop their
	// verdicts so counts stay consistent.
	if _, err := e.store.RemoveSensitive(ctx, result.Removed...); err != nil {
		e.logger.Warn("failed to purge verdicts for deleted assets", logging.Error(err))
	}
	e.bumpCounts()

	e.logger.Info("deletion batch flushed",
		logging.Int("removed", len(result.Removed)),
		logging.Int("failed", len(result.Failed)),
	)
	if err := e.notifier.NotifyDeletionsFlushed(ctx, len(result.Removed), len(result.Failed)); err != nil {
		e.logger.Debug("flush notification failed", logging.Error(err))
	}
	return result, nil
}

// ClearDeletions empties the queue without deleting anything and reports how
// many assets were restored to their categories.
func (e *Engine) ClearDeletions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	cleared := e.queue.Clear()
	if cleared > 0 {
		e.bumpCounts()
		e.logger.Info("deletion queue cleared", logging.Int("restored", cleared))
	}
	return cleared
}

// PendingDeletions returns the queued identifiers in enqueue order.
func (e *Engine) PendingDeletions() []string {
	return e.queue.IDs()
}

// MoveToAlbum adds an asset to an album and marks it kept in the same
// operation: filing an asset somewhere is a decision to retain it.
func (e *Engine) MoveToAlbum(ctx context.Context, assetID, albumID string) error {
	if err := e.lib.AddToAlbum(ctx, assetID, albumID); err != nil {
		return fmt.Errorf("add to album: %w", err)
	}
	return e.Keep(ctx, assetID)
}

// CreateAlbum creates a new album with the given title.
func (e *Engine) CreateAlbum(ctx context.Context, title string) (library.Album, error) {
	album, err := e.lib.CreateAlbum(ctx, title)
	if err != nil {
		return library.Album{}, fmt.Errorf("create album: %w", err)
	}
	e.logger.Info("album created",
		logging.String(logging.FieldAlbumID, album.ID),
		logging.String("title", album.Title),
	)
	return album, nil
}

// Albums lists albums sorted by title using locale-aware, case-insensitive
// collation so "iceland" and "Iceland" sort together.
func (e *Engine) Albums(ctx context.Context) ([]library.Album, error) {
	albums, err := e.lib.Albums(ctx)
	if err != nil {
		return nil, fmt.Errorf("list albums: %w", err)
	}
	collator := collate.New(language.Und, collate.IgnoreCase)
	sort.SliceStable(albums, func(i, j int) bool {
		return collator.CompareString(albums[i].Title, albums[j].Title) < 0
	})
	return albums, nil
}

// Counts computes a fresh category count snapshot.
func (e *Engine) Counts(ctx context.Context) (counts.Snapshot, error) {
	return e.counter.Compute(ctx)
}

// CountsVersion increments whenever an operation changes what counts would
// report. Pollers re-compute only when the version moves.
func (e *Engine) CountsVersion() uint64 {
	return e.countsVersion.Load()
}

// StartScan launches the background sensitivity pass.
func (e *Engine) StartScan(ctx context.Context) error {
	return e.scanner.Start(ctx)
}

// RestartScan discards scan lifecycle state and starts over. With resetFlags
// it also clears recorded verdicts first.
func (e *Engine) RestartScan(ctx context.Context, resetFlags bool) error {
	return e.scanner.Restart(ctx, resetFlags)
}

// StopScan interrupts an in-flight pass and waits for it to stop.
func (e *Engine) StopScan() {
	e.scanner.Stop()
}

// WaitScan blocks until the current pass, if any, finishes.
func (e *Engine) WaitScan() {
	e.scanner.Wait()
}

// ScanProgress returns the current scan snapshot.
func (e *Engine) ScanProgress() scanner.Progress {
	return e.scanner.Progress()
}

// Scanning reports whether a pass is in flight.
func (e *Engine) Scanning() bool {
	return e.scanner.Scanning()
}

// SetThreshold adjusts the classifier threshold for subsequent scanning.
// Recorded verdicts are not re-evaluated; use RestartScan with resetFlags for
// that.
func (e *Engine) SetThreshold(value float64) error {
	if value <= 0 || value > 1 {
		return fmt.Errorf("threshold %v out of range (0, 1]", value)
	}
	e.detector.SetThreshold(value)
	return nil
}

// TestNotification sends a test push through the configured notifier.
func (e *Engine) TestNotification(ctx context.Context) error {
	return e.notifier.TestNotification(ctx)
}

// Authorization reports the photo source's current access level.
func (e *Engine) Authorization() library.AuthStatus {
	return e.lib.Authorization()
}
