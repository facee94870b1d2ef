package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"govdoc-scraper/config"
	"govdoc-scraper/logger"
	"govdoc-scraper/retry"
)

// Tier is one way of locating a browser binary. An empty path lets the
// launcher pick its default.
type Tier struct {
	Name    string
	Resolve func() (string, error)
}

// Launcher starts a browser from a binary path and opens the working page.
// The returned func tears everything down.
type Launcher func(ctx context.Context, bin string) (Page, func() error, error)

// Session lazily acquires one browser page and serializes its use within a
// run. It is released exactly once.
type Session struct {
	timing config.Timing
	log    logger.Interface
	tiers  []Tier
	launch Launcher

	mu         sync.Mutex
	page       Page
	closeFn    func() error
	acquireErr error
	released   bool
	release    sync.Once
	releaseErr error
}

// Option customizes a Session.
type Option func(*Session)

// WithTiers replaces the acquisition tiers.
func WithTiers(tiers ...Tier) Option {
	return func(s *Session) { s.tiers = tiers }
}

// WithLauncher replaces the rod launcher.
func WithLauncher(l Launcher) Option {
	return func(s *Session) { s.launch = l }
}

// NewSession creates a Session. Nothing is launched until the first Acquire.
func NewSession(cfg config.BrowserConfig, timing config.Timing, log logger.Interface, opts ...Option) *Session {
	s := &Session{
		timing: timing,
		log:    log,
		tiers:  DefaultTiers(cfg),
		launch: RodLauncher(cfg, timing),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultTiers returns the acquisition order: the cached rod browser, an
// auto-downloaded one, then whatever the system has installed.
func DefaultTiers(cfg config.BrowserConfig) []Tier {
	if cfg.Bin != "" {
		return []Tier{{Name: "configured", Resolve: func() (string, error) { return cfg.Bin, nil }}}
	}
	return []Tier{
		{Name: "cached", Resolve: cachedBrowser},
		{Name: "download", Resolve: func() (string, error) { return launcher.NewBrowser().Get() }},
		{Name: "system", Resolve: systemBrowser},
	}
}

func cachedBrowser() (string, error) {
	b := launcher.NewBrowser()
	if err := b.Validate(); err != nil {
		return "", fmt.Errorf("no cached browser: %w", err)
	}
	return b.BinPath(), nil
}

var systemPaths = []string{
	"/usr/bin/google-chrome",
	"/usr/bin/google-chrome-stable",
	"/usr/bin/chromium",
	"/usr/bin/chromium-browser",
	"/snap/bin/chromium",
	`C:\Program Files\Google\Chrome\Application\chrome.exe`,
	`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
}

func systemBrowser() (string, error) {
	if p, ok := launcher.LookPath(); ok {
		return p, nil
	}
	for _, p := range systemPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", errors.New("no system browser found")
}

// RodLauncher launches Chromium through rod with the flags the target sites
// tolerate in headless mode.
func RodLauncher(cfg config.BrowserConfig, timing config.Timing) Launcher {
	return func(ctx context.Context, bin string) (Page, func() error, error) {
		l := launcher.New().
			Headless(cfg.Headless).
			NoSandbox(true).
			Leakless(false).
			Set("disable-blink-features", "AutomationControlled").
			Set("disable-dev-shm-usage").
			Set("disable-gpu").
			Set("no-first-run").
			Set("no-default-browser-check").
			Set("disable-extensions").
			Set("disable-popup-blocking").
			Set("ignore-certificate-errors").
			Set("window-size", "1920,1080")
		if bin != "" {
			l = l.Bin(bin)
		}
		if cfg.UserDataDir != "" {
			if err := os.MkdirAll(cfg.UserDataDir, 0o755); err == nil {
				l = l.UserDataDir(cfg.UserDataDir)
			}
		}

		u, err := l.Launch()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to launch browser: %w", err)
		}

		b := rod.New().ControlURL(u)
		if err := b.Connect(); err != nil {
			l.Kill()
			return nil, nil, fmt.Errorf("failed to connect to browser: %w", err)
		}

		p, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
		if err != nil {
			_ = b.Close()
			l.Kill()
			return nil, nil, fmt.Errorf("failed to open page: %w", err)
		}

		closeFn := func() error {
			err := b.Close()
			l.Kill()
			if cfg.UserDataDir == "" {
				l.Cleanup()
			}
			return err
		}
		return newRodPage(p, timing.ElementLookup), closeFn, nil
	}
}

// Acquire returns the session's page, launching the browser on first use.
// A failed acquisition is remembered so later calls fail fast.
func (s *Session) Acquire(ctx context.Context) (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return nil, fmt.Errorf("%w: session released", ErrBrowserUnavailable)
	}
	if s.page != nil {
		return s.page, nil
	}
	if s.acquireErr != nil {
		return nil, s.acquireErr
	}

	var errs []error
	for _, tier := range s.tiers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bin, err := tier.Resolve()
		if err != nil {
			s.log.Debug("browser tier unavailable", "tier", tier.Name, logger.KeyError, err)
			errs = append(errs, fmt.Errorf("%s: %w", tier.Name, err))
			continue
		}
		page, closeFn, err := s.launch(ctx, bin)
		if err != nil {
			s.log.Warn("browser tier failed to launch", "tier", tier.Name, "bin", bin, logger.KeyError, err)
			errs = append(errs, fmt.Errorf("%s: %w", tier.Name, err))
			continue
		}
		s.log.Info("browser started", "tier", tier.Name, "bin", bin)
		s.page, s.closeFn = page, closeFn
		return page, nil
	}

	s.acquireErr = fmt.Errorf("%w: %w", ErrBrowserUnavailable, errors.Join(errs...))
	return nil, s.acquireErr
}

// Navigate loads url within the page-load budget, retrying with linearly
// growing backoff, then waits for the page to settle.
func (s *Session) Navigate(ctx context.Context, url string) error {
	page, err := s.Acquire(ctx)
	if err != nil {
		return err
	}

	policy := retry.Linear{
		Attempts: s.timing.NavigationAttempts,
		Step:     s.timing.NavigationBackoff,
		OnRetry: func(attempt int, err error) {
			s.log.Warn("navigation failed, retrying", logger.KeyURL, url, "attempt", attempt, logger.KeyError, err)
		},
	}
	err = policy.Do(ctx, func(ctx context.Context) error {
		nctx, cancel := context.WithTimeout(ctx, s.timing.NavigationTimeout)
		defer cancel()
		return page.Navigate(nctx, url)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &NavigationTimeoutError{URL: url, Attempts: policy.Attempts, Err: err}
	}
	return retry.Sleep(ctx, s.timing.SettleAfterNavigate)
}

// Release closes the browser. Calls after the first are no-ops.
func (s *Session) Release() error {
	s.release.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.released = true
		if s.closeFn != nil {
			s.releaseErr = s.closeFn()
			s.log.Info("browser released")
		}
		s.page, s.closeFn = nil, nil
	})
	return s.releaseErr
}
