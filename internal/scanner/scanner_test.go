package scanner_test

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"phototriage/internal/classify"
	"phototriage/internal/config"
	"phototriage/internal/ledger"
	"phototriage/internal/library"
	"phototriage/internal/logging"
	"phototriage/internal/notifications"
	"phototriage/internal/scanner"
	"phototriage/internal/testsupport"
)

func constantModel(probability float64) classify.ModelLoader {
	return func() (classify.Model, error) {
		return classify.ModelFunc(func(context.Context, image.Image) (float64, error) {
			return probability, nil
		}), nil
	}
}

type fixture struct {
	scanner *scanner.Scanner
	lib     *testsupport.FakeLibrary
	store   *ledger.Store
	cfg     *config.Config
}

func newFixture(t *testing.T, loader classify.ModelLoader) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	lib := testsupport.NewFakeLibrary()
	detector := classify.NewDetector(loader, cfg.Classifier.Threshold, logging.NewNop())
	s, err := scanner.NewScanner(lib, store, detector, notifications.NewService(cfg), cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("NewScanner failed: %v", err)
	}
	return &fixture{scanner: s, lib: lib, store: store, cfg: cfg}
}

func TestScanFlagsOverThreshold(t *testing.T) {
	fx := newFixture(t, constantModel(0.95))
	fx.lib.AddPhotos("p", 3)

	ctx := context.Background()
	if err := fx.scanner.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	fx.scanner.Wait()

	progress := fx.scanner.Progress()
	if progress.State != scanner.StateCompleted {
		t.Fatalf("expected completed state, got %s", progress.State)
	}
	if progress.Processed != 3 || progress.Flagged != 3 {
		t.Fatalf("unexpected progress: %+v", progress)
	}
	for _, id := range []string{"p-1", "p-2", "p-3"} {
		has, err := fx.store.HasSensitive(ctx, id)
		if err != nil {
			t.Fatalf("HasSensitive failed: %v", err)
		}
		if !has {
			t.Fatalf("asset %s should carry a verdict", id)
		}
	}

	state, err := fx.store.ScanState(ctx)
	if err != nil {
		t.Fatalf("ScanState failed: %v", err)
	}
	if !state.Completed || state.Version != 1 {
		t.Fatalf("unexpected persisted state: %+v", state)
	}
}

func TestScanBelowThresholdFlagsNothing(t *testing.T) {
	fx := newFixture(t, constantModel(0.2))
	fx.lib.AddPhotos("p", 3)

	ctx := context.Background()
	if err := fx.scanner.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	fx.scanner.Wait()

	ids, err := fx.store.SensitiveIDs(ctx)
	if err != nil {
		t.Fatalf("SensitiveIDs failed: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected no verdicts, got %v", ids)
	}
}

func TestResumeSkipsRecordedVerdicts(t *testing.T) {
	fx := newFixture(t, constantModel(0))
	fx.lib.AddPhotos("p", 4)

	ctx := context.Background()
	for _, id := range []string{"p-1", "p-2"} {
		if err := fx.store.InsertSensitive(ctx, id, 0.9); err != nil {
			t.Fatalf("InsertSensitive failed: %v", err)
		}
	}

	if err := fx.scanner.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	fx.scanner.Wait()

	for _, id := range []string{"p-1", "p-2"} {
		if calls := fx.lib.DecodeCalls(id); calls != 0 {
			t.Fatalf("asset %s with a verdict was re-decoded %d times", id, calls)
		}
	}
	for _, id := range []string{"p-3", "p-4"} {
		if calls := fx.lib.DecodeCalls(id); calls != 1 {
			t.Fatalf("asset %s should be decoded once, got %d", id, calls)
		}
	}

	progress := fx.scanner.Progress()
	if progress.Processed != 4 || progress.Flagged != 2 {
		t.Fatalf("unexpected progress: %+v", progress)
	}
}

func TestScanSkipsScreenshotsAndVideos(t *testing.T) {
	fx := newFixture(t, constantModel(0.95))
	fx.lib.AddPhotos("p", 1)
	fx.lib.AddAsset(library.AssetRef{ID: "shot-1", Kind: library.KindImage, Screenshot: true, CreatedAt: time.Now()})
	fx.lib.AddAsset(library.AssetRef{ID: "vid-1", Kind: library.KindVideo, CreatedAt: time.Now()})

	ctx := context.Background()
	if err := fx.scanner.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	fx.scanner.Wait()

	for _, id := range []string{"shot-1", "vid-1"} {
		if calls := fx.lib.DecodeCalls(id); calls != 0 {
			t.Fatalf("ineligible asset %s was decoded", id)
		}
		has, err := fx.store.HasSensitive(ctx, id)
		if err != nil {
			t.Fatalf("HasSensitive failed: %v", err)
		}
		if has {
			t.Fatalf("ineligible asset %s was flagged", id)
		}
	}
}

func TestStopInterruptsAndPersistsPartialProgress(t *testing.T) {
	firstPredict := make(chan struct{})
	blockingLoader := func() (classify.Model, error) {
		signaled := false
		return classify.ModelFunc(func(ctx context.Context, _ image.Image) (float64, error) {
			if !signaled {
				signaled = true
				close(firstPredict)
			}
			<-ctx.Done()
			return 0, ctx.Err()
		}), nil
	}

	fx := newFixture(t, blockingLoader)
	fx.lib.AddPhotos("p", 5)

	ctx := context.Background()
	if err := fx.scanner.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	<-firstPredict
	fx.scanner.Stop()

	progress := fx.scanner.Progress()
	if progress.State != scanner.StateInterrupted {
		t.Fatalf("expected interrupted state, got %s", progress.State)
	}

	state, err := fx.store.ScanState(ctx)
	if err != nil {
		t.Fatalf("ScanState failed: %v", err)
	}
	if !state.Started || state.Completed {
		t.Fatalf("interrupted scan should persist started without completed: %+v", state)
	}
}

func TestInterruptedStateVisibleAtConstruction(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	if err := store.SetScanStarted(context.Background(), true); err != nil {
		t.Fatalf("SetScanStarted failed: %v", err)
	}

	detector := classify.NewDetector(constantModel(0), cfg.Classifier.Threshold, logging.NewNop())
	s, err := scanner.NewScanner(testsupport.NewFakeLibrary(), store, detector, notifications.NewService(cfg), cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("NewScanner failed: %v", err)
	}
	if got := s.Progress().State; got != scanner.StateInterrupted {
		t.Fatalf("expected interrupted state at construction, got %s", got)
	}
}

func TestStartWhileRunningFails(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{})
	loader := func() (classify.Model, error) {
		signaled := false
		return classify.ModelFunc(func(ctx context.Context, _ image.Image) (float64, error) {
			if !signaled {
				signaled = true
				close(started)
			}
			select {
			case <-gate:
			case <-ctx.Done():
			}
			return 0, nil
		}), nil
	}

	fx := newFixture(t, loader)
	fx.lib.AddPhotos("p", 2)

	ctx := context.Background()
	if err := fx.scanner.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	<-started
	if err := fx.scanner.Start(ctx); !errors.Is(err, scanner.ErrScanRunning) {
		t.Fatalf("expected ErrScanRunning, got %v", err)
	}
	close(gate)
	fx.scanner.Wait()
}

func TestRestartWithResetFlagsReevaluates(t *testing.T) {
	fx := newFixture(t, constantModel(0))
	fx.lib.AddPhotos("p", 2)

	ctx := context.Background()
	if err := fx.store.InsertSensitive(ctx, "p-1", 0.9); err != nil {
		t.Fatalf("InsertSensitive failed: %v", err)
	}
	if err := fx.scanner.Restart(ctx, true); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	fx.scanner.Wait()

	ids, err := fx.store.SensitiveIDs(ctx)
	if err != nil {
		t.Fatalf("SensitiveIDs failed: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("reset re-evaluation should discard stale verdicts, got %v", ids)
	}
	if calls := fx.lib.DecodeCalls("p-1"); calls != 1 {
		t.Fatalf("asset p-1 should be re-decoded after reset, got %d", calls)
	}
}

func TestOnDoneFiresWithFinalProgress(t *testing.T) {
	fx := newFixture(t, constantModel(0))
	fx.lib.AddPhotos("p", 2)

	done := make(chan scanner.Progress, 1)
	fx.scanner.OnDone(func(p scanner.Progress) { done <- p })

	if err := fx.scanner.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	fx.scanner.Wait()

	select {
	case p := <-done:
		if p.State != scanner.StateCompleted || p.Processed != 2 {
			t.Fatalf("unexpected final progress: %+v", p)
		}
	default:
		t.Fatal("completion callback did not fire")
	}
}
