package pager_test

import (
	"context"
	"testing"

	"phototriage/internal/deletion"
	"phototriage/internal/imagecache"
	"phototriage/internal/ledger"
	"phototriage/internal/library"
	"phototriage/internal/logging"
	"phototriage/internal/pager"
	"phototriage/internal/testsupport"
)

type fixture struct {
	pager *pager.Pager
	lib   *testsupport.FakeLibrary
	store *ledger.Store
	queue *deletion.Queue
	cache *imagecache.Cache
}

func newFixture(t *testing.T, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenLedger(t, cfg)
	lib := testsupport.NewFakeLibrary()
	queue := deletion.NewQueue(logging.NewNop())
	cache := imagecache.New(cfg.Cache.MaxBytes, cfg.Cache.MaxEntries)
	return &fixture{
		pager: pager.NewPager(lib, store, queue, cache, cfg, logging.NewNop()),
		lib:   lib,
		store: store,
		queue: queue,
		cache: cache,
	}
}

func itemIDs(page pager.Page) []string {
	ids := make([]string, 0, len(page.Items))
	for _, item := range page.Items {
		ids = append(ids, item.Ref.ID)
	}
	return ids
}

func TestLoadPageNewestFirst(t *testing.T) {
	fx := newFixture(t, testsupport.WithPageSize(3))
	fx.lib.AddPhotos("p", 5)

	page, err := fx.pager.LoadPage(context.Background(), library.CategoryPhotos, 0)
	if err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}
	got := itemIDs(page)
	want := []string{"p-1", "p-2", "p-3"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if page.Exhausted {
		t.Fatal("two more assets remain; page must not be exhausted")
	}
}

func TestLoadPageExcludesKeptAndQueued(t *testing.T) {
	fx := newFixture(t, testsupport.WithPageSize(10))
	fx.lib.AddPhotos("p", 4)

	ctx := context.Background()
	if err := fx.store.InsertKept(ctx, "p-1"); err != nil {
		t.Fatalf("InsertKept failed: %v", err)
	}
	fx.queue.Enqueue("p-3")

	page, err := fx.pager.LoadPage(ctx, library.CategoryPhotos, 0)
	if err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}
	got := itemIDs(page)
	if len(got) != 2 || got[0] != "p-2" || got[1] != "p-4" {
		t.Fatalf("unexpected page contents: %v", got)
	}
}

func TestSessionDeliversEachAssetOnce(t *testing.T) {
	fx := newFixture(t, testsupport.WithPageSize(2))
	fx.lib.AddPhotos("p", 4)

	ctx := context.Background()
	first, err := fx.pager.LoadPage(ctx, library.CategoryPhotos, 0)
	if err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}
	second, err := fx.pager.LoadPage(ctx, library.CategoryPhotos, 1)
	if err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}

	seen := make(map[string]struct{})
	for _, id := range append(itemIDs(first), itemIDs(second)...) {
		if _, ok := seen[id]; ok {
			t.Fatalf("asset %s delivered twice within one session", id)
		}
		seen[id] = struct{}{}
	}
	if len(seen) != 4 {
		t.Fatalf("expected 4 distinct assets across two pages, got %d", len(seen))
	}
}

func TestPageZeroReloadIsIdempotent(t *testing.T) {
	fx := newFixture(t, testsupport.WithPageSize(10))
	fx.lib.AddPhotos("p", 5)

	ctx := context.Background()
	first, err := fx.pager.LoadPage(ctx, library.CategoryPhotos, 0)
	if err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}
	again, err := fx.pager.LoadPage(ctx, library.CategoryPhotos, 0)
	if err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}

	got := itemIDs(again)
	want := itemIDs(first)
	if len(got) != len(want) {
		t.Fatalf("reloading page zero changed the result: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("reloading page zero changed the result: got %v, want %v", got, want)
		}
	}
}

func TestFreshDeliveryIdentity(t *testing.T) {
	fx := newFixture(t, testsupport.WithPageSize(10))
	fx.lib.AddPhotos("p", 1)

	ctx := context.Background()
	first, err := fx.pager.LoadPage(ctx, library.CategoryPhotos, 0)
	if err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}
	fx.pager.ResetSession()
	second, err := fx.pager.LoadPage(ctx, library.CategoryPhotos, 0)
	if err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}
	if first.Items[0].ID == second.Items[0].ID {
		t.Fatal("redelivered asset must carry a new item identity")
	}
}

func TestFlaggedComposition(t *testing.T) {
	fx := newFixture(t, testsupport.WithPageSize(10))
	fx.lib.AddPhotos("s", 3)

	ctx := context.Background()
	for _, id := range []string{"s-1", "s-2", "s-3"} {
		if err := fx.store.InsertSensitive(ctx, id, 0.95); err != nil {
			t.Fatalf("InsertSensitive failed: %v", err)
		}
	}
	if err := fx.store.InsertKept(ctx, "s-1"); err != nil {
		t.Fatalf("InsertKept failed: %v", err)
	}

	page, err := fx.pager.LoadPage(ctx, library.CategoryFlagged, 0)
	if err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}
	got := itemIDs(page)
	if len(got) != 2 || got[0] != "s-2" || got[1] != "s-3" {
		t.Fatalf("flagged view should be sensitive minus kept, got %v", got)
	}
}

func TestFlaggedPurgesVerdictsForMissingAssets(t *testing.T) {
	fx := newFixture(t, testsupport.WithPageSize(10))
	fx.lib.AddPhotos("s", 2)

	ctx := context.Background()
	for _, id := range []string{"s-1", "s-2", "gone-1"} {
		if err := fx.store.InsertSensitive(ctx, id, 0.9); err != nil {
			t.Fatalf("InsertSensitive failed: %v", err)
		}
	}

	page, err := fx.pager.LoadPage(ctx, library.CategoryFlagged, 0)
	if err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected 2 resolvable flagged assets, got %d", len(page.Items))
	}
	has, err := fx.store.HasSensitive(ctx, "gone-1")
	if err != nil {
		t.Fatalf("HasSensitive failed: %v", err)
	}
	if has {
		t.Fatal("verdict for a missing asset should be purged after paging flagged")
	}
}

func TestDecodeFailureSkipsAsset(t *testing.T) {
	fx := newFixture(t, testsupport.WithPageSize(10))
	fx.lib.AddPhotos("p", 3)
	fx.lib.DecodeFailures["p-2"] = true

	ctx := context.Background()
	page, err := fx.pager.LoadPage(ctx, library.CategoryPhotos, 0)
	if err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}
	got := itemIDs(page)
	if len(got) != 2 || got[0] != "p-1" || got[1] != "p-3" {
		t.Fatalf("undecodable asset should be skipped, got %v", got)
	}

	// A transient failure is retried when the asset is re-enumerated.
	delete(fx.lib.DecodeFailures, "p-2")
	retry, err := fx.pager.LoadPage(ctx, library.CategoryPhotos, 0)
	if err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}
	got = itemIDs(retry)
	if len(got) != 3 || got[1] != "p-2" {
		t.Fatalf("recovered asset should be delivered on reload, got %v", got)
	}
}

func TestContinuationIsBounded(t *testing.T) {
	fx := newFixture(t, testsupport.WithPageSize(2), testsupport.WithMaxFetchAttempts(2))
	fx.lib.AddPhotos("p", 8)

	ctx := context.Background()
	// Exclude enough leading assets that filling a page would require more
	// window fetches than the attempt limit allows.
	for _, id := range []string{"p-1", "p-2", "p-3", "p-4"} {
		if err := fx.store.InsertKept(ctx, id); err != nil {
			t.Fatalf("InsertKept failed: %v", err)
		}
	}

	page, err := fx.pager.LoadPage(ctx, library.CategoryPhotos, 0)
	if err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}
	if len(page.Items) != 0 {
		t.Fatalf("expected an empty short page under the attempt limit, got %v", itemIDs(page))
	}
	if page.Exhausted {
		t.Fatal("assets remain past the scanned windows; page must not be exhausted")
	}

	// The next page index picks up where the windows left off.
	next, err := fx.pager.LoadPage(ctx, library.CategoryPhotos, 2)
	if err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}
	got := itemIDs(next)
	if len(got) != 2 || got[0] != "p-5" || got[1] != "p-6" {
		t.Fatalf("unexpected continuation page: %v", got)
	}
}

func TestUnreadableSourceYieldsEmptyPage(t *testing.T) {
	fx := newFixture(t)
	fx.lib.AddPhotos("p", 3)
	fx.lib.Auth = library.AuthDenied

	page, err := fx.pager.LoadPage(context.Background(), library.CategoryPhotos, 0)
	if err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}
	if len(page.Items) != 0 || !page.Exhausted {
		t.Fatalf("expected empty exhausted page, got %+v", page)
	}
}

func TestDecodeUsesCache(t *testing.T) {
	fx := newFixture(t, testsupport.WithPageSize(10))
	fx.lib.AddPhotos("p", 1)

	ctx := context.Background()
	if _, err := fx.pager.LoadPage(ctx, library.CategoryPhotos, 0); err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}
	fx.pager.ResetSession()
	if _, err := fx.pager.LoadPage(ctx, library.CategoryPhotos, 0); err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}
	if calls := fx.lib.DecodeCalls("p-1"); calls != 1 {
		t.Fatalf("expected a single decode with a warm cache, got %d", calls)
	}
}
