// CLAUDE:SUMMARY Chrome-backed page renderer: launch/connect via Rod, navigate with stealth, screenshot regions by XPath.
// Package render implements the page-renderer collaborator with a
// headless Chrome driven through Rod. One Browser serves many
// CaptureRegion calls; each call opens its own tab and closes it.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Config configures the renderer.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string `yaml:"remote_url"`

	// NavigationTimeout bounds page load. Default: 30s.
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`

	// CaptureTimeout bounds locating and screenshotting a region after
	// the page loaded. Default: 15s.
	CaptureTimeout time.Duration `yaml:"capture_timeout"`

	// Viewport dimensions. Default: 1440×900.
	ViewportWidth  int `yaml:"viewport_width"`
	ViewportHeight int `yaml:"viewport_height"`

	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = 30 * time.Second
	}
	if c.CaptureTimeout <= 0 {
		c.CaptureTimeout = 15 * time.Second
	}
	if c.ViewportWidth <= 0 {
		c.ViewportWidth = 1440
	}
	if c.ViewportHeight <= 0 {
		c.ViewportHeight = 900
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Browser manages the Chrome connection.
type Browser struct {
	cfg     Config
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// New creates a Browser. Call Start before capturing.
func New(cfg Config) *Browser {
	cfg.defaults()
	return &Browser{cfg: cfg}
}

// Start launches Chrome (or connects to a remote instance).
func (b *Browser) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("render: browser is closed")
	}
	if b.browser != nil {
		return nil
	}

	wsURL := b.cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().
			Headless(true).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("render: launch: %w", err)
		}
		wsURL = u
		b.lnch = l
		b.cfg.Logger.Info("render: launched local chrome", "url", wsURL)
	} else {
		b.cfg.Logger.Info("render: connecting to remote chrome", "url", wsURL)
	}

	br := rod.New().ControlURL(wsURL)
	if err := br.Connect(); err != nil {
		return fmt.Errorf("render: connect: %w", err)
	}
	b.browser = br
	return nil
}

// Close shuts down the Chrome connection.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true

	var err error
	if b.browser != nil {
		err = b.browser.Close()
		b.browser = nil
	}
	if b.lnch != nil {
		b.lnch.Cleanup()
		b.lnch = nil
	}
	return err
}

// CaptureRegion navigates to pageURL in a fresh stealth tab and returns a
// PNG screenshot of the element selected by the XPath locator.
func (b *Browser) CaptureRegion(ctx context.Context, pageURL, locator string) ([]byte, error) {
	b.mu.Lock()
	br := b.browser
	b.mu.Unlock()
	if br == nil {
		return nil, fmt.Errorf("render: browser not started")
	}

	tab, err := stealth.Page(br)
	if err != nil {
		return nil, fmt.Errorf("render: create tab: %w", err)
	}
	defer tab.Close()

	if err := tab.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  b.cfg.ViewportWidth,
		Height: b.cfg.ViewportHeight,
	}); err != nil {
		b.cfg.Logger.Warn("render: set viewport failed", "error", err)
	}

	navCtx, cancelNav := context.WithTimeout(ctx, b.cfg.NavigationTimeout)
	defer cancelNav()

	if err := tab.Context(navCtx).Navigate(pageURL); err != nil {
		return nil, fmt.Errorf("render: navigate %s: %w", pageURL, err)
	}
	if err := tab.Context(navCtx).WaitLoad(); err != nil {
		// A slow asset can stall the load event; the DOM is usually
		// usable anyway, so continue and let the element lookup decide.
		b.cfg.Logger.Warn("render: wait load timeout", "url", pageURL, "error", err)
	}

	capCtx, cancelCap := context.WithTimeout(ctx, b.cfg.CaptureTimeout)
	defer cancelCap()

	el, err := tab.Context(capCtx).ElementX(locator)
	if err != nil {
		return nil, fmt.Errorf("render: region %q not found on %s: %w", locator, pageURL, err)
	}
	if err := el.ScrollIntoView(); err != nil {
		b.cfg.Logger.Warn("render: scroll into view failed", "locator", locator, "error", err)
	}

	img, err := el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
	if err != nil {
		return nil, fmt.Errorf("render: screenshot %q on %s: %w", locator, pageURL, err)
	}
	return img, nil
}
