// Package scraper runs one crawl of one site: search every keyword, merge
// and filter the hits, then read each surviving article.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"govdoc-scraper/adapter"
	"govdoc-scraper/browser"
	"govdoc-scraper/config"
	"govdoc-scraper/extractor"
	"govdoc-scraper/fetcher"
	"govdoc-scraper/logger"
	"govdoc-scraper/models"
	"govdoc-scraper/pager"
)

// Request describes one crawl.
type Request struct {
	Region     string
	Department string
	Keywords   []string
	StartDate  *time.Time
	EndDate    *time.Time
	// DateFilter is a site date code such as "30d". Empty means none.
	DateFilter string
	// Section is a site section code. Empty or "all" means none.
	Section      string
	FetchContent bool
	// QuotedTitlesOnly keeps only titles containing 《》.
	QuotedTitlesOnly bool
}

// NewRequest returns a Request with the defaults: every section and
// article content fetched.
func NewRequest(region, department string, keywords []string, start *time.Time) Request {
	return Request{
		Region:       region,
		Department:   department,
		Keywords:     keywords,
		StartDate:    start,
		Section:      pager.AllOption,
		FetchContent: true,
	}
}

// ErrInvalidRequest is returned for requests that cannot be run.
var ErrInvalidRequest = errors.New("invalid request")

func (r Request) validate() error {
	var kws int
	for _, k := range r.Keywords {
		if strings.TrimSpace(k) != "" {
			kws++
		}
	}
	if kws == 0 {
		return fmt.Errorf("%w: at least one keyword is required", ErrInvalidRequest)
	}
	if r.StartDate != nil && r.EndDate != nil && r.EndDate.Before(*r.StartDate) {
		return fmt.Errorf("%w: end date %s is before start date %s", ErrInvalidRequest,
			r.EndDate.Format(time.DateOnly), r.StartDate.Format(time.DateOnly))
	}
	return nil
}

// Session is a browser owned by one run.
type Session interface {
	browser.Navigator
	Release() error
}

// SessionFactory creates the browser session for a run.
type SessionFactory func(log logger.Interface) Session

// Scraper runs crawls. Runs share no mutable state and may execute
// concurrently.
type Scraper struct {
	registry   *adapter.Registry
	cfg        *config.Config
	static     extractor.Fetcher
	newSession SessionFactory
	log        logger.Interface
}

// Option customizes a Scraper.
type Option func(*Scraper)

// WithSessionFactory replaces how browser sessions are created.
func WithSessionFactory(f SessionFactory) Option {
	return func(s *Scraper) { s.newSession = f }
}

// WithStaticFetcher replaces the HTTP fetcher used for article fallback.
func WithStaticFetcher(f extractor.Fetcher) Option {
	return func(s *Scraper) { s.static = f }
}

// New creates a Scraper over catalog.
func New(cfg *config.Config, catalog *config.Catalog, log logger.Interface, opts ...Option) *Scraper {
	static := fetcher.NewStatic(cfg.HTTP, cfg.Timing.HTTPTimeout, log)
	s := &Scraper{
		cfg:    cfg,
		static: static,
		log:    log,
		newSession: func(l logger.Interface) Session {
			return browser.NewSession(cfg.Browser, cfg.Timing, l)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registry = adapter.NewRegistry(catalog, adapter.Deps{Timing: cfg.Timing, Log: log, Static: static})
	return s
}

// Registry exposes the site adapters.
func (s *Scraper) Registry() *adapter.Registry { return s.registry }

// Scrape runs req. An empty result is not an error. A section filter that
// cannot be applied fails with *adapter.FilterUnavailableError.
func (s *Scraper) Scrape(ctx context.Context, req Request) ([]models.Document, error) {
	docs, _, err := s.ScrapeWithStats(ctx, req)
	return docs, err
}

// ScrapeWithStats is Scrape that also reports run counters.
func (s *Scraper) ScrapeWithStats(ctx context.Context, req Request) ([]models.Document, Stats, error) {
	if err := req.validate(); err != nil {
		return nil, Stats{}, err
	}
	a, err := s.registry.For(req.Region, req.Department)
	if err != nil {
		return nil, Stats{}, err
	}

	r := s.newRun(a)
	defer r.close()

	docs, err := r.execute(ctx, req)
	return docs, r.stats, err
}
