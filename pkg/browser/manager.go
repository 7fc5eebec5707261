// Package browser wraps Playwright into the single rendering primitive the
// solver needs: open one tab, render a URL, hand back text, HTML, and the
// discovered links. One tab is opened per solve session and reused
// sequentially across every task and retry; there is no parallel navigation.
package browser

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Manager owns the Playwright runtime. Initialize once per process.
type Manager struct {
	mu          sync.Mutex
	playwright  *playwright.Playwright
	initialized bool
}

// NewManager creates an uninitialized manager.
func NewManager() *Manager {
	return &Manager{}
}

// Initialize installs and starts Playwright. Must be called before NewTab.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}

	// Discard driver output so it cannot interleave with our logs.
	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	m.playwright = pw
	m.initialized = true
	return nil
}

// TabOptions configures a new tab.
type TabOptions struct {
	Headless bool

	// NavigationTimeout bounds a single page load.
	NavigationTimeout time.Duration
}

// NewTab launches a browser with a single page. The caller owns the tab for
// the session lifetime and must call Close on every exit path.
func (m *Manager) NewTab(opts TabOptions) (*Tab, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return nil, fmt.Errorf("browser manager not initialized")
	}

	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 25 * time.Second
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
	}
	br, err := m.playwright.Chromium.Launch(launchOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	context, err := br.NewContext()
	if err != nil {
		br.Close()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := context.NewPage()
	if err != nil {
		context.Close()
		br.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	timeoutMs := float64(opts.NavigationTimeout.Milliseconds())
	page.SetDefaultTimeout(timeoutMs)

	return &Tab{
		browser:      br,
		context:      context,
		page:         page,
		navTimeoutMs: timeoutMs,
	}, nil
}

// Shutdown stops the Playwright runtime.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized || m.playwright == nil {
		return nil
	}
	if err := m.playwright.Stop(); err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	m.initialized = false
	return nil
}
