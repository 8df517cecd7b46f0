package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/producttracker/internal/extractor"
	"sjsage522/producttracker/internal/page"
	"sjsage522/producttracker/internal/product"
	perrors "sjsage522/producttracker/pkg/errors"
)

const productHTML = `<html><head>
<meta property="og:image" content="//cdn.example.com/kettle.jpg">
<script type="application/ld+json">
{"@context":"https://schema.org","@type":"Product","name":"Steel Kettle","offers":{"price":"49.99","priceCurrency":"USD"}}
</script>
</head><body><h1>Steel Kettle</h1></body></html>`

const emptyHTML = `<html><head><title>Home</title></head><body><p>Nothing to buy</p></body></html>`

type fakeTab struct {
	mu         sync.Mutex
	url        string
	pages      map[string]string
	snapshots  int
	urlErr     error
	onSnapshot func(n int)
}

func newFakeTab(url string, pages map[string]string) *fakeTab {
	return &fakeTab{url: url, pages: pages}
}

func (t *fakeTab) URL(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.url, t.urlErr
}

func (t *fakeTab) WaitReady(ctx context.Context) error { return nil }

func (t *fakeTab) Snapshot(ctx context.Context) (page.Page, error) {
	t.mu.Lock()
	t.snapshots++
	n, hook := t.snapshots, t.onSnapshot
	url, body := t.url, t.pages[t.url]
	t.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return page.FromHTML(url, body)
}

func (t *fakeTab) navigate(url string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.url = url
}

func (t *fakeTab) snapshotCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshots
}

type fakeSink struct {
	mu     sync.Mutex
	drafts []product.Draft
	err    error
}

func (s *fakeSink) SaveProduct(ctx context.Context, d product.Draft) (product.SaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return product.SaveResult{}, s.err
	}
	s.drafts = append(s.drafts, d)
	return product.Accepted(product.NewRecord(d, "id", 1)), nil
}

func (s *fakeSink) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *fakeSink) saved() []product.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]product.Draft, len(s.drafts))
	copy(out, s.drafts)
	return out
}

func fastOptions() Options {
	return Options{SettleDelay: 20 * time.Millisecond, PollInterval: 10 * time.Millisecond}
}

func runWatcher(t *testing.T, w *Watcher) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	return func() {
		stop()
		<-done
	}
}

func TestWatcherExtractsAfterSettle(t *testing.T) {
	url := "https://shop.example.com/kettle"
	tab := newFakeTab(url, map[string]string{url: productHTML})
	sink := &fakeSink{}
	w := New(tab, extractor.NewDefaultChain(), sink, fastOptions())

	cancel := runWatcher(t, w)
	defer cancel()

	require.Eventually(t, func() bool { return len(sink.saved()) == 1 }, time.Second, 5*time.Millisecond)

	d := sink.saved()[0]
	assert.Equal(t, "Steel Kettle", d.Title)
	assert.Equal(t, "https://cdn.example.com/kettle.jpg", d.Image)
	assert.Equal(t, url, d.URL)
	assert.Equal(t, Extracted, w.State())
	assert.Equal(t, url, w.LastExtractedURL())
}

func TestWatcherSkipsAlreadyExtractedURL(t *testing.T) {
	url := "https://shop.example.com/kettle"
	tab := newFakeTab(url, map[string]string{url: productHTML})
	sink := &fakeSink{}
	w := New(tab, extractor.NewDefaultChain(), sink, fastOptions())

	cancel := runWatcher(t, w)
	defer cancel()

	require.Eventually(t, func() bool { return len(sink.saved()) == 1 }, time.Second, 5*time.Millisecond)
	snapshots := tab.snapshotCount()

	w.Schedule()
	time.Sleep(80 * time.Millisecond)

	assert.Len(t, sink.saved(), 1)
	assert.Equal(t, snapshots, tab.snapshotCount())
	assert.Equal(t, Extracted, w.State())
}

func TestWatcherReextractsOnURLChange(t *testing.T) {
	first := "https://shop.example.com/kettle"
	second := "https://shop.example.com/kettle?variant=red"
	tab := newFakeTab(first, map[string]string{first: productHTML, second: productHTML})
	sink := &fakeSink{}
	w := New(tab, extractor.NewDefaultChain(), sink, fastOptions())

	cancel := runWatcher(t, w)
	defer cancel()

	require.Eventually(t, func() bool { return len(sink.saved()) == 1 }, time.Second, 5*time.Millisecond)

	tab.navigate(second)
	require.Eventually(t, func() bool { return len(sink.saved()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, second, w.LastExtractedURL())
}

func TestWatcherMissStaysIdle(t *testing.T) {
	url := "https://shop.example.com/"
	tab := newFakeTab(url, map[string]string{url: emptyHTML})
	sink := &fakeSink{}
	w := New(tab, extractor.NewDefaultChain(), sink, fastOptions())

	cancel := runWatcher(t, w)
	defer cancel()

	require.Eventually(t, func() bool { return tab.snapshotCount() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return w.State() == Idle }, time.Second, 5*time.Millisecond)

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 1, tab.snapshotCount())
	assert.Empty(t, sink.saved())
	assert.Empty(t, w.LastExtractedURL())
}

func TestWatcherTriggerReevaluatesSameURL(t *testing.T) {
	url := "https://shop.example.com/kettle"
	tab := newFakeTab(url, map[string]string{url: productHTML})
	sink := &fakeSink{}
	w := New(tab, extractor.NewDefaultChain(), sink, fastOptions())

	cancel := runWatcher(t, w)
	defer cancel()

	require.Eventually(t, func() bool { return len(sink.saved()) == 1 }, time.Second, 5*time.Millisecond)

	w.Trigger()
	require.Eventually(t, func() bool { return len(sink.saved()) == 2 }, time.Second, 5*time.Millisecond)
}

func TestScheduleDebounces(t *testing.T) {
	url := "https://shop.example.com/kettle"
	tab := newFakeTab(url, map[string]string{url: productHTML})
	sink := &fakeSink{}
	w := New(tab, extractor.NewDefaultChain(), sink, Options{SettleDelay: 60 * time.Millisecond, PollInterval: time.Hour})

	cancel := runWatcher(t, w)
	defer cancel()

	for i := 0; i < 5; i++ {
		w.Navigated()
		assert.Equal(t, Pending, w.State())
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return len(sink.saved()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, tab.snapshotCount())
}

func TestWatcherURLErrorReturnsToIdle(t *testing.T) {
	url := "https://shop.example.com/kettle"
	tab := newFakeTab(url, map[string]string{url: productHTML})
	tab.urlErr = errors.New("target closed")
	sink := &fakeSink{}
	w := New(tab, extractor.NewDefaultChain(), sink, fastOptions())

	cancel := runWatcher(t, w)
	defer cancel()

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, Idle, w.State())
	assert.Empty(t, sink.saved())
	assert.Zero(t, tab.snapshotCount())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "extracted", Extracted.String())
}

func TestNewAppliesDefaults(t *testing.T) {
	w := New(newFakeTab("", nil), extractor.NewDefaultChain(), &fakeSink{}, Options{})
	assert.Equal(t, DefaultSettleDelay, w.settle)
	assert.Equal(t, DefaultPollInterval, w.poll)
	assert.Equal(t, Idle, w.State())
}

func TestRetryableSaveFailureForgetsURL(t *testing.T) {
	url := "https://shop.example.com/kettle"
	tab := newFakeTab(url, map[string]string{url: productHTML})
	sink := &fakeSink{err: perrors.NewPersistence("store", "failed to write products", errors.New("disk full"))}

	w := New(tab, extractor.NewDefaultChain(), sink, fastOptions())
	stop := runWatcher(t, w)
	defer stop()

	require.Eventually(t, func() bool {
		return tab.snapshotCount() == 1 && w.State() == Idle
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, w.LastExtractedURL())
	assert.Empty(t, sink.saved())

	sink.setErr(nil)
	w.Schedule()

	require.Eventually(t, func() bool { return len(sink.saved()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, url, w.LastExtractedURL())
	assert.Equal(t, Extracted, w.State())
}

func TestTriggerDuringAttemptIsNotLost(t *testing.T) {
	url := "https://shop.example.com/kettle"
	tab := newFakeTab(url, map[string]string{url: productHTML})
	sink := &fakeSink{}

	w := New(tab, extractor.NewDefaultChain(), sink, fastOptions())
	tab.onSnapshot = func(n int) {
		if n == 1 {
			w.Trigger()
		}
	}
	stop := runWatcher(t, w)
	defer stop()

	require.Eventually(t, func() bool {
		return tab.snapshotCount() == 2 && len(sink.saved()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, url, w.LastExtractedURL())
	assert.Equal(t, Extracted, w.State())
}
