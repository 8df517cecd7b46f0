package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/producttracker/internal/product"
	perrors "sjsage522/producttracker/pkg/errors"
)

func newTestStore(t *testing.T) (*ProductStore, *mockKV, *fakeClock) {
	t.Helper()
	kv := newMockKV()
	clock := newFakeClock()
	s := NewProductStore(kv, NewSettingsStore(kv), WithClock(clock.Now))
	return s, kv, clock
}

func draft(title, image, url string) product.Draft {
	return product.Draft{Title: title, Image: image, URL: url, Price: "$10", Currency: "USD", Site: "example"}
}

func TestSaveAssignsIdentity(t *testing.T) {
	s, _, clock := newTestStore(t)
	ctx := context.Background()

	res, err := s.Save(ctx, draft("Kettle", "", "https://example.com/kettle"))
	require.NoError(t, err)
	require.True(t, res.Success)
	require.NotNil(t, res.Product)
	assert.NotEmpty(t, res.Product.ID)
	assert.Equal(t, clock.Now().UnixMilli(), res.Product.SavedAt)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, *res.Product, list[0])
}

func TestSaveRequiresTitle(t *testing.T) {
	s, kv, _ := newTestStore(t)
	ctx := context.Background()

	for _, title := range []string{"", "   "} {
		_, err := s.Save(ctx, draft(title, "https://img.example.com/k.jpg", "https://example.com/1"))
		require.Error(t, err)
		assert.True(t, perrors.HasType(err, perrors.ErrorTypeValidation))
	}
	_, err := kv.Get(ctx, ProductsKey)
	assert.Error(t, err, "nothing is written for an untitled draft")
}

func TestSaveDuplicateTitle(t *testing.T) {
	s, _, clock := newTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, draft("Kettle", "", "https://a.example.com/1"))
	require.NoError(t, err)
	clock.Advance(59 * time.Minute)

	res, err := s.Save(ctx, draft("Kettle", "", "https://b.example.com/2"))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, product.ReasonDuplicate, res.Reason)
}

func TestSaveDuplicateImage(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, draft("Kettle", "https://img.example.com/k.jpg", "https://example.com/1"))
	require.NoError(t, err)

	res, err := s.Save(ctx, draft("Different", "https://img.example.com/k.jpg", "https://example.com/2"))
	require.NoError(t, err)
	assert.Equal(t, product.ReasonDuplicate, res.Reason)
}

func TestSaveEmptyImageIsNotDuplicate(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, draft("Kettle", "", "https://example.com/1"))
	require.NoError(t, err)

	res, err := s.Save(ctx, draft("Toaster", "", "https://example.com/2"))
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestSaveAfterDuplicateWindow(t *testing.T) {
	s, _, clock := newTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, draft("Kettle", "https://img.example.com/k.jpg", "https://example.com/1"))
	require.NoError(t, err)
	clock.Advance(time.Hour + time.Millisecond)

	res, err := s.Save(ctx, draft("Kettle", "https://img.example.com/k.jpg", "https://example.com/1"))
	require.NoError(t, err)
	assert.True(t, res.Success)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, res.Product.ID, list[0].ID, "newest record comes first")
	assert.NotEqual(t, list[0].ID, list[1].ID)
}

func TestConcurrentSaves(t *testing.T) {
	s, kv, _ := newTestStore(t)
	kv.delay = time.Millisecond
	ctx := context.Background()

	const n = 40
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := s.Save(ctx, draft(fmt.Sprintf("Product %d", i), "", "https://example.com/same"))
			if err != nil {
				errs <- err
				return
			}
			if !res.Success {
				errs <- fmt.Errorf("save %d rejected: %s", i, res.Reason)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, n)
	ids := make(map[string]struct{})
	for _, r := range list {
		ids[r.ID] = struct{}{}
	}
	assert.Len(t, ids, n)
}

func TestConcurrentDuplicateSavesStoreOnce(t *testing.T) {
	s, kv, _ := newTestStore(t)
	kv.delay = time.Millisecond
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.Save(ctx, draft("Same", "", "https://example.com/x"))
			if err == nil && res.Success {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSavePersistenceFailure(t *testing.T) {
	s, kv, _ := newTestStore(t)
	kv.failSet = errBackendDown

	_, err := s.Save(context.Background(), draft("Kettle", "", "https://example.com/1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errBackendDown)
	assert.True(t, perrors.HasType(err, perrors.ErrorTypePersistence))
}

func TestSaveQuota(t *testing.T) {
	kv := newMockKV()
	s := NewProductStore(kv, NewSettingsStore(kv), WithQuota(64))

	_, err := s.Save(context.Background(), draft("A rather long product title that will not fit", "", "https://example.com/1"))
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestCleanupRetention(t *testing.T) {
	s, kv, clock := newTestStore(t)
	ctx := context.Background()
	_, err := s.Settings().Update(ctx, SettingsPatch{RetentionDays: intPtr(30)})
	require.NoError(t, err)

	now := clock.Now()
	old := product.Record{ID: "old", Title: "Old", SavedAt: now.Add(-31 * day).UnixMilli()}
	recent := product.Record{ID: "recent", Title: "Recent", SavedAt: now.Add(-29 * day).UnixMilli()}
	_, err = s.Import(ctx, []product.Record{recent, old})
	require.NoError(t, err)

	res, err := s.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Removed)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "recent", list[0].ID)

	// Nothing left to remove: no write happens.
	before := kv.setCalls
	res, err = s.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Removed)
	assert.Equal(t, before, kv.setCalls)
}

func TestCleanupKeepForever(t *testing.T) {
	s, _, clock := newTestStore(t)
	ctx := context.Background()
	_, err := s.Settings().Update(ctx, SettingsPatch{RetentionDays: intPtr(0)})
	require.NoError(t, err)

	ancient := product.Record{ID: "ancient", Title: "Ancient", SavedAt: clock.Now().Add(-5000 * day).UnixMilli()}
	_, err = s.Import(ctx, []product.Record{ancient})
	require.NoError(t, err)

	res, err := s.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Removed)
	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func seed(t *testing.T, s *ProductStore, clock *fakeClock, drafts ...product.Draft) {
	t.Helper()
	for _, d := range drafts {
		res, err := s.Save(context.Background(), d)
		require.NoError(t, err)
		require.True(t, res.Success, d.Title)
		clock.Advance(time.Minute)
	}
}

func TestQueries(t *testing.T) {
	s, _, clock := newTestStore(t)
	ctx := context.Background()
	seed(t, s, clock,
		product.Draft{Title: "Steel Kettle", Description: "boils water", Price: "$30", Site: "amazon", URL: "https://amazon.com/1"},
		product.Draft{Title: "Toaster", Description: "Two-slice KETTLE companion", Price: "$1,200.50", Site: "ebay", URL: "https://ebay.com/2"},
		product.Draft{Title: "blender", Price: "£5", Site: "amazon", URL: "https://amazon.com/3"},
		product.Draft{Title: "Lamp", Price: "", Site: "", URL: "https://example.com/4"},
	)

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "Lamp", all[0].Title)

	recent, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Lamp", "blender"}, titles(recent))

	recent, err = s.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, recent, 4)

	found, err := s.Search(ctx, "kettle")
	require.NoError(t, err)
	assert.Equal(t, []string{"Toaster", "Steel Kettle"}, titles(found))

	bySite, err := s.BySite(ctx, "amazon")
	require.NoError(t, err)
	assert.Equal(t, []string{"blender", "Steel Kettle"}, titles(bySite))

	sites, err := s.UniqueSites(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"amazon", "ebay"}, sites)

	sorted, err := s.Query(ctx, product.Filter{SortBy: product.SortPriceDesc})
	require.NoError(t, err)
	assert.Equal(t, []string{"Toaster", "Steel Kettle", "blender", "Lamp"}, titles(sorted))

	sorted, err = s.Query(ctx, product.Filter{SortBy: product.SortNameAsc})
	require.NoError(t, err)
	assert.Equal(t, []string{"blender", "Lamp", "Steel Kettle", "Toaster"}, titles(sorted))

	sorted, err = s.Query(ctx, product.Filter{Site: "amazon", SortBy: product.SortDateAsc})
	require.NoError(t, err)
	assert.Equal(t, []string{"Steel Kettle", "blender"}, titles(sorted))
}

func TestDeleteAndClear(t *testing.T) {
	s, _, clock := newTestStore(t)
	ctx := context.Background()
	seed(t, s, clock, draft("A", "", "https://e.com/a"), draft("B", "", "https://e.com/b"), draft("C", "", "https://e.com/c"))

	all, err := s.List(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, all[0].ID))
	require.NoError(t, s.Delete(ctx, "missing"))

	deleted, err := s.DeleteMany(ctx, []string{all[1].ID, "also-missing"})
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	left, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, titles(left))

	require.NoError(t, s.ClearAll(ctx))
	left, err = s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestUsage(t *testing.T) {
	s, kv, clock := newTestStore(t)
	ctx := context.Background()

	usage, err := s.Usage(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), usage.BytesUsed)
	assert.Equal(t, "0 B", usage.FormattedSize)
	assert.Equal(t, int64(DefaultQuotaBytes), usage.Quota)

	seed(t, s, clock, draft("A", "", "https://e.com/a"))
	usage, err = s.Usage(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(kv.data[ProductsKey])), usage.BytesUsed)
	assert.Equal(t, 1, usage.ProductCount)
}

func TestImportMerge(t *testing.T) {
	s, _, clock := newTestStore(t)
	ctx := context.Background()
	seed(t, s, clock, draft("Existing", "", "https://e.com/a"))
	existing, err := s.List(ctx)
	require.NoError(t, err)

	newer := product.Record{ID: "newer", Title: "Newer", SavedAt: clock.Now().Add(time.Hour).UnixMilli()}
	older := product.Record{ID: "older", Title: "Older", SavedAt: 1}
	res, err := s.Import(ctx, []product.Record{older, existing[0], newer})
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Imported: 2, Skipped: 1}, res)

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Newer", "Existing", "Older"}, titles(all))
}

func TestCorruptCollectionIsNotOverwritten(t *testing.T) {
	s, kv, _ := newTestStore(t)
	kv.data[ProductsKey] = []byte("{broken")

	_, err := s.Save(context.Background(), draft("Kettle", "", "https://e.com/k"))
	require.Error(t, err)
	assert.True(t, perrors.HasType(err, perrors.ErrorTypeParsing))
	assert.Equal(t, "{broken", string(kv.data[ProductsKey]))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "0 B", FormatBytes(0))
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1 KB", FormatBytes(1024))
	assert.Equal(t, "1.5 KB", FormatBytes(1536))
	assert.Equal(t, "10 MB", FormatBytes(10485760))
	assert.Equal(t, "1.23 MB", FormatBytes(1289748))
}

func titles(records []product.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Title)
	}
	return out
}

func intPtr(v int) *int { return &v }
func boolPtr(v bool) *bool { return &v }
