// Package browserfix manages the Playwright browser lifecycle for
// end-to-end suites.
//
// A Fixture owns one browser process shared by a whole suite; individual
// flows get isolated browser contexts and pages from it. PageDeleter plugs
// page-driven delete flows into the cleanup tracker for resources that can
// only be removed through the application's interface.
package browserfix

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/playwright-community/playwright-go"
)

// Supported browser names for WithBrowserName.
const (
	BrowserChromium = "chromium"
	BrowserFirefox  = "firefox"
	BrowserWebKit   = "webkit"
)

// Fixture holds a running Playwright driver and one launched browser.
// Create it with Launch and release it with Close.
type Fixture struct {
	PW      *playwright.Playwright
	Browser playwright.Browser

	logger *slog.Logger
}

// fixtureConfig collects option values before the browser exists.
type fixtureConfig struct {
	browserName string
	headless    bool
	logger      *slog.Logger
}

// Option customizes Launch.
type Option func(*fixtureConfig)

// WithBrowserName selects the browser engine. Defaults to chromium.
// Panics if name is not one of chromium, firefox, or webkit.
func WithBrowserName(name string) Option {
	switch name {
	case BrowserChromium, BrowserFirefox, BrowserWebKit:
	default:
		panic(fmt.Sprintf("browserfix: unsupported browser %q (supported: chromium, firefox, webkit)", name))
	}
	return func(cfg *fixtureConfig) {
		cfg.browserName = name
	}
}

// WithHeadless overrides the headless default. Without this option the
// browser runs headless unless the HEADLESS environment variable is set to
// "false", which is the usual way to watch a misbehaving flow locally.
func WithHeadless(headless bool) Option {
	return func(cfg *fixtureConfig) {
		cfg.headless = headless
	}
}

// WithLogger sets the logger for lifecycle messages. Defaults to
// slog.Default(). Panics if l is nil.
func WithLogger(l *slog.Logger) Option {
	if l == nil {
		panic("browserfix: logger must not be nil")
	}
	return func(cfg *fixtureConfig) {
		cfg.logger = l
	}
}

// Launch starts the Playwright driver and launches a browser. The returned
// Fixture is intended to be shared by the whole suite; per-flow isolation
// comes from NewContext and NewPage, not from extra browsers.
func Launch(opts ...Option) (*Fixture, error) {
	cfg := fixtureConfig{
		browserName: BrowserChromium,
		headless:    os.Getenv("HEADLESS") != "false",
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright driver: %w", err)
	}

	browser, err := browserType(pw, cfg.browserName).Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.headless),
	})
	if err != nil {
		// Don't leak the driver process behind a failed launch.
		_ = pw.Stop()
		return nil, fmt.Errorf("launch %s: %w", cfg.browserName, err)
	}

	f := &Fixture{PW: pw, Browser: browser, logger: cfg.logger}
	f.log().Debug("browser launched", "browser", cfg.browserName, "headless", cfg.headless)
	return f, nil
}

// browserType maps a validated name to the driver's browser type.
func browserType(pw *playwright.Playwright, name string) playwright.BrowserType {
	switch name {
	case BrowserFirefox:
		return pw.Firefox
	case BrowserWebKit:
		return pw.WebKit
	default:
		return pw.Chromium
	}
}

// log returns the configured logger, falling back to slog.Default().
func (f *Fixture) log() *slog.Logger {
	if f.logger != nil {
		return f.logger
	}
	return slog.Default()
}

// NewContext creates a browser context with isolated cookies and storage.
// Contexts are cheap; give every independent session its own.
func (f *Fixture) NewContext() (playwright.BrowserContext, error) {
	browserCtx, err := f.Browser.NewContext()
	if err != nil {
		return nil, fmt.Errorf("new browser context: %w", err)
	}
	return browserCtx, nil
}

// NewPage creates a page in a fresh browser context. Closing the page also
// closes its context.
func (f *Fixture) NewPage() (playwright.Page, error) {
	page, err := f.Browser.NewPage()
	if err != nil {
		return nil, fmt.Errorf("new page: %w", err)
	}
	return page, nil
}

// Close releases the browser and stops the driver. Errors from both steps
// are joined, so a failed browser close does not hide a failed driver stop.
func (f *Fixture) Close() error {
	var errs []error
	if f.Browser != nil {
		if err := f.Browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
	}
	if f.PW != nil {
		if err := f.PW.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop playwright driver: %w", err))
		}
	}
	return errors.Join(errs...)
}
