package browser

import (
	"context"
	"sync"

	"github.com/playwright-community/playwright-go"
)

// Link is a hyperlink discovered on a rendered page, href resolved absolute.
type Link struct {
	Text string
	Href string
}

// Render is an immutable snapshot of one page visit. Snapshots are recomputed
// fresh on every visit; they are never reused across loop iterations.
type Render struct {
	// URL is the final URL after any redirects.
	URL string

	// Text is the rendered body text.
	Text string

	// HTML is the full page HTML after rendering.
	HTML string

	// Links are the page's anchors in DOM order, deduplicated by href.
	Links []Link

	// AudioSources are the src URLs of audio elements, in DOM order.
	AudioSources []string
}

// Renderer is the rendering capability the session driver depends on. Tests
// inject fakes; *Tab is the Playwright-backed implementation.
type Renderer interface {
	Render(ctx context.Context, url string) (*Render, error)
}

// Tab is a single reusable browser page.
type Tab struct {
	browser      playwright.Browser
	context      playwright.BrowserContext
	page         playwright.Page
	navTimeoutMs float64
	closeOnce    sync.Once
}

// Render navigates to url and captures a snapshot. Navigation failures are
// tolerated: the snapshot carries whatever partial content the page holds,
// and the error is returned alongside it so callers can log it.
func (t *Tab) Render(ctx context.Context, url string) (*Render, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	_, navErr := t.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   &t.navTimeoutMs,
	})

	render := &Render{URL: t.page.URL()}
	if render.URL == "" {
		render.URL = url
	}

	if html, err := t.page.Content(); err == nil {
		render.HTML = html
	}

	if body, err := t.page.QuerySelector("body"); err == nil && body != nil {
		if text, err := body.TextContent(); err == nil {
			render.Text = text
		}
	}

	if render.HTML != "" {
		render.Links, render.AudioSources = ExtractLinks(render.HTML, render.URL)
	}

	return render, navErr
}

// Close releases the page, context, and browser. Safe to call multiple
// times; exactly one release happens.
func (t *Tab) Close() {
	t.closeOnce.Do(func() {
		// Ignore errors, continue cleanup.
		_ = t.page.Close()
		_ = t.context.Close()
		_ = t.browser.Close()
	})
}
