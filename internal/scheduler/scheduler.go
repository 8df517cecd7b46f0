// Package scheduler decides when a browsing context is extracted. Each
// Watcher owns the state of exactly one context.
package scheduler

import (
	"context"
	"sync"
	"time"

	"sjsage522/producttracker/internal/normalize"
	"sjsage522/producttracker/internal/page"
	"sjsage522/producttracker/internal/product"
	"sjsage522/producttracker/logger"
	"sjsage522/producttracker/pkg/errors"
)

const (
	// DefaultSettleDelay is the wait after readiness or navigation before extracting
	DefaultSettleDelay = 1500 * time.Millisecond

	// DefaultPollInterval is how often the context URL is checked for changes
	DefaultPollInterval = 1000 * time.Millisecond
)

// State is the scheduler state of one browsing context
type State int

const (
	Idle State = iota
	Pending
	Extracted
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Extracted:
		return "extracted"
	default:
		return "idle"
	}
}

// Tab is a browsing context the watcher observes
type Tab interface {
	URL(ctx context.Context) (string, error)
	WaitReady(ctx context.Context) error
	Snapshot(ctx context.Context) (page.Page, error)
}

// Resolver turns a page into a draft, nil when nothing was found
type Resolver interface {
	Resolve(p page.Page) *product.Draft
}

// Sink receives extracted drafts
type Sink interface {
	SaveProduct(ctx context.Context, d product.Draft) (product.SaveResult, error)
}

// Options tunes the watcher timings
type Options struct {
	SettleDelay  time.Duration
	PollInterval time.Duration
}

// Watcher runs the Idle -> Pending -> Extracted cycle for one tab
type Watcher struct {
	tab      Tab
	resolver Resolver
	sink     Sink
	settle   time.Duration
	poll     time.Duration
	log      *logger.Logger

	mu            sync.Mutex
	state         State
	timer         *time.Timer
	generation    uint64
	seenURL       string
	lastExtracted string

	fires chan uint64
	done  chan struct{}
}

// New creates a watcher. Zero option values fall back to the defaults.
func New(tab Tab, resolver Resolver, sink Sink, opts Options) *Watcher {
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Watcher{
		tab:      tab,
		resolver: resolver,
		sink:     sink,
		settle:   opts.SettleDelay,
		poll:     opts.PollInterval,
		log:      logger.ForScheduler(),
		fires:    make(chan uint64, 1),
		done:     make(chan struct{}),
	}
}

// State returns the current state
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// LastExtractedURL returns the URL of the last successful extraction
func (w *Watcher) LastExtractedURL() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastExtracted
}

// Run waits for the tab to become ready, schedules the first attempt and then
// polls for URL changes until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.done)
	defer w.stopTimer()

	if err := w.tab.WaitReady(ctx); err != nil {
		return err
	}
	if current, err := w.tab.URL(ctx); err == nil {
		w.mu.Lock()
		w.seenURL = current
		w.mu.Unlock()
	}
	w.Schedule()

	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.checkURL(ctx)
		case gen := <-w.fires:
			if w.current(gen) {
				w.attempt(ctx, gen)
			}
		}
	}
}

// Schedule arms the settle timer, replacing any pending one
func (w *Watcher) Schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.generation++
	gen := w.generation
	w.state = Pending
	w.timer = time.AfterFunc(w.settle, func() {
		select {
		case w.fires <- gen:
		case <-w.done:
		}
	})
}

// Navigated is the hook for programmatic history changes. It forgets the
// extracted URL and reschedules.
func (w *Watcher) Navigated() {
	w.mu.Lock()
	w.lastExtracted = ""
	w.mu.Unlock()
	w.Schedule()
}

// Trigger forces a re-evaluation of the current URL
func (w *Watcher) Trigger() {
	w.Navigated()
}

func (w *Watcher) checkURL(ctx context.Context) {
	current, err := w.tab.URL(ctx)
	if err != nil {
		w.log.Debug().Err(err).Msg("Failed to read tab URL")
		return
	}

	w.mu.Lock()
	changed := current != w.seenURL
	if changed {
		w.seenURL = current
	}
	w.mu.Unlock()

	if changed {
		w.log.Debug().Str("url", current).Msg("URL changed")
		w.Navigated()
	}
}

// current reports whether gen is the latest scheduled attempt
func (w *Watcher) current(gen uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return gen == w.generation
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

// attempt extracts the tab for scheduled generation gen. A Schedule that
// lands while the attempt runs supersedes it: the outcome is dropped and the
// newer fire re-evaluates the tab.
func (w *Watcher) attempt(ctx context.Context, gen uint64) {
	current, err := w.tab.URL(ctx)
	if err != nil {
		w.log.Warn().Err(err).Msg("Failed to read tab URL")
		w.finish(gen, Idle)
		return
	}

	w.mu.Lock()
	if current == w.lastExtracted {
		if gen == w.generation {
			w.state = Extracted
		}
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	p, err := w.tab.Snapshot(ctx)
	if err != nil {
		w.log.Warn().Err(err).Str("url", current).Msg("Failed to snapshot page")
		w.finish(gen, Idle)
		return
	}

	draft := w.resolver.Resolve(p)
	if !draft.Valid() {
		w.log.Debug().Str("url", current).Msg("No product found")
		w.finish(gen, Idle)
		return
	}

	draft.Image = normalize.Image(draft.Image, p)
	if draft.URL == "" {
		draft.URL = current
	}

	w.mu.Lock()
	if gen != w.generation {
		w.mu.Unlock()
		w.log.Debug().Str("url", current).Msg("Attempt superseded")
		return
	}
	w.lastExtracted = current
	w.state = Extracted
	w.mu.Unlock()

	result, err := w.sink.SaveProduct(ctx, *draft)
	if err != nil {
		w.log.Error().Err(err).Str("url", current).Msg("Failed to save product")
		if errors.IsRetryable(err) {
			w.mu.Lock()
			if w.lastExtracted == current {
				w.lastExtracted = ""
			}
			if gen == w.generation {
				w.state = Idle
			}
			w.mu.Unlock()
		}
		return
	}
	if !result.Success {
		w.log.Info().Str("url", current).Str("reason", string(result.Reason)).Msg("Product not saved")
		return
	}
	w.log.Info().Str("url", current).Str("title", draft.Title).Msg("Product saved")
}

// finish records the outcome of attempt gen unless a newer attempt is scheduled
func (w *Watcher) finish(gen uint64, s State) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if gen == w.generation {
		w.state = s
	}
}
