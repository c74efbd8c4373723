package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"phototriage/internal/classify"
	"phototriage/internal/config"
	"phototriage/internal/ledger"
	"phototriage/internal/library"
	"phototriage/internal/logging"
	"phototriage/internal/notifications"
)

// State is the scan lifecycle phase.
type State string

const (
	// StateIdle means no scan has run against the current verdict set.
	StateIdle State = "idle"
	// StateScanning means the background pass is in flight.
	StateScanning State = "scanning"
	// StateCompleted means the pass covered every eligible asset.
	StateCompleted State = "completed"
	// StateInterrupted means a pass started but did not finish. Verdicts
	// recorded so far are kept; the next start resumes past them.
	StateInterrupted State = "interrupted"
)

// Progress is a point-in-time snapshot of the scan.
type Progress struct {
	State     State
	Processed int
	Total     int
	Flagged   int
	Version   int
}

// Fraction returns completion in [0,1].
func (p Progress) Fraction() float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Processed) / float64(p.Total)
}

// ErrScanRunning is returned by Start while a pass is already in flight.
var ErrScanRunning = errors.New("scan already running")

// Scanner runs the resumable background sensitivity pass. One pass at a time
// per process; verdicts are written through to the ledger per asset so an
// interruption at any point loses at most the asset in flight.
type Scanner struct {
	lib      library.Library
	store    *ledger.Store
	detector *classify.Detector
	notifier notifications.Service
	logger   *slog.Logger

	decodeEdge int

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	progress Progress
	onDone   func(Progress)
}

// NewScanner constructs a Scanner. The reported state reflects the persisted
// flags, so an interrupted prior run is visible before any pass starts.
func NewScanner(lib library.Library, store *ledger.Store, detector *classify.Detector, notifier notifications.Service, cfg *config.Config, logger *slog.Logger) (*Scanner, error) {
	s := &Scanner{
		lib:        lib,
		store:      store,
		detector:   detector,
		notifier:   notifier,
		logger:     logging.NewComponentLogger(logger, "scanner"),
		decodeEdge: cfg.Classifier.DecodeEdge,
	}

	state, err := store.ScanState(context.Background())
	if err != nil {
		return nil, fmt.Errorf("read scan state: %w", err)
	}
	s.progress = Progress{State: stateFromFlags(state), Version: state.Version}
	if s.progress.State == StateInterrupted {
		s.logger.Info("previous scan was interrupted; it will resume on the next start")
	}
	return s, nil
}

func stateFromFlags(state ledger.ScanState) State {
	switch {
	case state.Completed:
		return StateCompleted
	case state.Started:
		return StateInterrupted
	default:
		return StateIdle
	}
}

// OnDone registers a callback invoked from the scan goroutine when a pass
// ends, completed or interrupted. At most one callback; later calls replace
// earlier ones.
func (s *Scanner) OnDone(fn func(Progress)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDone = fn
}

// Progress returns the current snapshot.
func (s *Scanner) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// Scanning reports whether a pass is in flight.
func (s *Scanner) Scanning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start launches a background pass over every eligible asset, resuming past
// identifiers that already carry a verdict. Eligible means still image, not
// screenshot: screenshots and videos never reach the classifier.
func (s *Scanner) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrScanRunning
	}

	if !s.lib.Authorization().Readable() {
		s.mu.Unlock()
		return errors.New("photo source is not readable")
	}

	refs, err := s.lib.Assets(ctx, library.CategoryPhotos)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("enumerate eligible assets: %w", err)
	}
	flagged, err := s.store.SensitiveIDs(ctx)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("load existing verdicts: %w", err)
	}
	if err := s.store.SetScanStarted(ctx, true); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("persist scan start: %w", err)
	}

	scanCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true
	s.progress = Progress{State: StateScanning, Total: len(refs), Version: s.progress.Version}
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("sensitivity scan started",
		logging.Int("total", len(refs)),
		logging.Int("already_flagged", len(flagged)),
	)
	if err := s.notifier.NotifyScanStarted(ctx, len(refs)); err != nil {
		s.logger.Debug("scan start notification failed", logging.Error(err))
	}

	go s.run(scanCtx, refs, flagged)
	return nil
}

// Stop cancels an in-flight pass and waits for it to wind down. Safe to call
// when no pass is running.
func (s *Scanner) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// Wait blocks until the current pass, if any, finishes.
func (s *Scanner) Wait() {
	s.wg.Wait()
}

// Restart stops any in-flight pass, clears the persisted lifecycle flags, and
// starts over. With resetFlags it also discards every recorded verdict,
// forcing a true re-evaluation (the only path that applies a changed
// threshold to previously scanned assets).
func (s *Scanner) Restart(ctx context.Context, resetFlags bool) error {
	s.Stop()
	if err := s.store.ResetScan(ctx); err != nil {
		return fmt.Errorf("reset scan state: %w", err)
	}
	if resetFlags {
		cleared, err := s.store.ClearSensitive(ctx)
		if err != nil {
			return fmt.Errorf("clear verdicts: %w", err)
		}
		s.logger.Info("cleared recorded verdicts for re-evaluation", logging.Int64("cleared", cleared))
	}
	s.mu.Lock()
	s.progress = Progress{State: StateIdle, Version: s.progress.Version}
	s.mu.Unlock()
	return s.Start(ctx)
}

func (s *Scanner) run(ctx context.Context, refs []library.AssetRef, flagged map[string]struct{}) {
	defer s.wg.Done()
	start := time.Now()

	processed := 0
	flaggedCount := 0
	interrupted := false

scan:
	for _, ref := range refs {
		select {
		case <-ctx.Done():
			interrupted = true
			break scan
		default:
		}

		if _, ok := flagged[ref.ID]; ok {
			// Verdict already recorded; resume without re-decoding.
			processed++
			flaggedCount++
			s.updateProgress(processed, flaggedCount)
			continue
		}

		img, err := s.lib.Decode(ctx, ref, s.decodeEdge)
		if err != nil {
			s.logger.Warn("skipping undecodable asset",
				logging.String(logging.FieldAssetID, ref.ID),
				logging.Error(err),
			)
			processed++
			s.updateProgress(processed, flaggedCount)
			continue
		}

		probability := s.detector.Classify(ctx, img)
		if probability >= s.detector.Threshold() {
			if err := s.store.InsertSensitive(ctx, ref.ID, probability); err != nil {
				s.logger.Error("failed to persist verdict",
					logging.String(logging.FieldAssetID, ref.ID),
					logging.Error(err),
				)
			} else {
				flaggedCount++
			}
		}
		processed++
		s.updateProgress(processed, flaggedCount)
	}

	if interrupted {
		s.finish(StateInterrupted, processed, flaggedCount)
		s.logger.Info("sensitivity scan interrupted",
			logging.Int("processed", processed),
			logging.Int("total", len(refs)),
		)
		if err := s.notifier.NotifyScanInterrupted(context.Background(), processed); err != nil {
			s.logger.Debug("scan interrupt notification failed", logging.Error(err))
		}
		return
	}

	if err := s.store.SetScanCompleted(context.Background()); err != nil {
		s.logger.Error("failed to persist scan completion", logging.Error(err))
		s.finish(StateInterrupted, processed, flaggedCount)
		return
	}
	state, err := s.store.ScanState(context.Background())
	if err != nil {
		s.logger.Warn("failed to re-read scan state", logging.Error(err))
	}
	s.mu.Lock()
	s.progress.Version = state.Version
	s.mu.Unlock()

	s.finish(StateCompleted, processed, flaggedCount)
	s.logger.Info("sensitivity scan completed",
		logging.Int("processed", processed),
		logging.Int("flagged", flaggedCount),
		logging.Duration("elapsed", time.Since(start)),
	)
	if err := s.notifier.NotifyScanCompleted(context.Background(), processed, flaggedCount, time.Since(start)); err != nil {
		s.logger.Debug("scan completion notification failed", logging.Error(err))
	}
}

func (s *Scanner) updateProgress(processed, flagged int) {
	s.mu.Lock()
	s.progress.Processed = processed
	s.progress.Flagged = flagged
	s.mu.Unlock()
}

func (s *Scanner) finish(state State, processed, flagged int) {
	s.mu.Lock()
	s.running = false
	s.cancel = nil
	s.progress.State = state
	s.progress.Processed = processed
	s.progress.Flagged = flagged
	done := s.onDone
	snapshot := s.progress
	s.mu.Unlock()
	if done != nil {
		done(snapshot)
	}
}
