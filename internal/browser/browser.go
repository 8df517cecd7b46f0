// Package browser attaches to a running Chrome over the DevTools protocol and
// exposes its open tabs as browsing contexts for the scheduler.
package browser

import (
	"context"
	"strings"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"sjsage522/producttracker/internal/page"
	"sjsage522/producttracker/logger"
	"sjsage522/producttracker/pkg/errors"
)

const (
	// readyPollInterval is how often document.readyState is checked
	readyPollInterval = 100 * time.Millisecond

	// opTimeout bounds a single DevTools round trip
	opTimeout = 30 * time.Second
)

// annotateImages records rendered image sizes as attributes so the static
// snapshot keeps them for the largest-image fallback.
const annotateImages = `(() => {
	for (const img of document.querySelectorAll('img')) {
		if (img.naturalWidth) {
			img.setAttribute('data-natural-width', String(img.naturalWidth));
			img.setAttribute('data-natural-height', String(img.naturalHeight));
		}
	}
	return true;
})()`

// Browser is a connection to a Chrome instance started with
// --remote-debugging-port.
type Browser struct {
	ctx context.Context
	log *logger.Logger
}

// Attach connects to the browser behind debugURL. Both http:// and
// ws://.../devtools/browser/... addresses are accepted.
func Attach(ctx context.Context, debugURL string) (*Browser, error) {
	allocCtx, _ := chromedp.NewRemoteAllocator(context.WithoutCancel(ctx), debugURL)
	browserCtx, _ := chromedp.NewContext(allocCtx)

	b := &Browser{ctx: browserCtx, log: logger.ForComponent("browser")}
	// The first call allocates the connection and must not run on a
	// context that gets cancelled afterwards.
	if _, err := chromedp.Targets(browserCtx); err != nil {
		return nil, errors.NewBrowser("browser", "failed to connect to "+debugURL, err)
	}
	b.log.Info().Str("url", debugURL).Msg("Attached to browser")
	return b, nil
}

// Tabs returns the open page targets, optionally restricted to URLs
// containing match.
func (b *Browser) Tabs(ctx context.Context, match string) ([]*Tab, error) {
	infos, err := b.targets(ctx)
	if err != nil {
		return nil, errors.NewBrowser("browser", "failed to list targets", err)
	}

	var tabs []*Tab
	for _, info := range infos {
		if info.Type != "page" {
			continue
		}
		if match != "" && !strings.Contains(info.URL, match) {
			continue
		}
		tabCtx, _ := chromedp.NewContext(b.ctx, chromedp.WithTargetID(info.TargetID))
		if err := chromedp.Run(tabCtx); err != nil {
			b.log.Warn().Err(err).Str("target", string(info.TargetID)).Msg("Failed to attach to tab")
			continue
		}
		tabs = append(tabs, &Tab{ctx: tabCtx, id: info.TargetID, title: info.Title})
	}
	return tabs, nil
}

// Close drops the connection. Attached tabs are left open, so the tab
// contexts are never cancelled; they die with the process.
func (b *Browser) Close() error {
	return nil
}

func (b *Browser) targets(ctx context.Context) ([]*target.Info, error) {
	runCtx, cancel := bound(ctx, b.ctx)
	defer cancel()
	return chromedp.Targets(runCtx)
}

// Tab is one attached page target
type Tab struct {
	ctx   context.Context
	id    target.ID
	title string
}

// ID returns the DevTools target id
func (t *Tab) ID() string { return string(t.id) }

// Title returns the tab title at attach time
func (t *Tab) Title() string { return t.title }

// URL returns the current location of the tab
func (t *Tab) URL(ctx context.Context) (string, error) {
	runCtx, cancel := bound(ctx, t.ctx)
	defer cancel()

	var location string
	if err := chromedp.Run(runCtx, chromedp.Location(&location)); err != nil {
		return "", errors.NewBrowser("tab", "failed to read location", err)
	}
	return location, nil
}

// WaitReady blocks until document.readyState is complete
func (t *Tab) WaitReady(ctx context.Context) error {
	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()

	for {
		state, err := t.readyState(ctx)
		if err != nil {
			return err
		}
		if state == "complete" {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (t *Tab) readyState(ctx context.Context) (string, error) {
	runCtx, cancel := bound(ctx, t.ctx)
	defer cancel()

	var state string
	if err := chromedp.Run(runCtx, chromedp.Evaluate(`document.readyState`, &state)); err != nil {
		return "", errors.NewBrowser("tab", "failed to read readyState", err)
	}
	return state, nil
}

// Snapshot serializes the rendered DOM into a static page
func (t *Tab) Snapshot(ctx context.Context) (page.Page, error) {
	runCtx, cancel := bound(ctx, t.ctx)
	defer cancel()

	var (
		annotated bool
		location  string
		html      string
	)
	err := chromedp.Run(runCtx,
		chromedp.Evaluate(annotateImages, &annotated),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, errors.NewBrowser("tab", "failed to snapshot page", err)
	}

	doc, err := page.FromHTML(location, html)
	if err != nil {
		return nil, errors.NewParsing("tab", "failed to parse snapshot", err)
	}
	return doc, nil
}

// bound derives a context from the chromedp context that is also cancelled
// with the caller's context and after opTimeout.
func bound(caller, cdp context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithTimeout(cdp, opTimeout)
	stop := context.AfterFunc(caller, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}
