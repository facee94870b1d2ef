// Package pager walks a site's search results for one keyword: issue the
// query, apply filters, then read pages until the results run out.
package pager

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"govdoc-scraper/aggregate"
	"govdoc-scraper/browser"
	"govdoc-scraper/config"
	"govdoc-scraper/logger"
	"govdoc-scraper/models"
	"govdoc-scraper/retry"
)

// State is a step of the search state machine.
type State int

const (
	Idle State = iota
	Searching
	FilterApplied
	PagingResults
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Searching:
		return "searching"
	case FilterApplied:
		return "filter_applied"
	case PagingResults:
		return "paging_results"
	case Done:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ErrSequenceConsumed is yielded when a search sequence is ranged twice.
var ErrSequenceConsumed = errors.New("search sequence already consumed")

// AllOption is the filter code meaning "no filter".
const AllOption = "all"

// Query is one keyword search with optional filters.
type Query struct {
	Keyword    string
	DateFilter string
	Section    string
}

// DateRequested reports whether a date filter should be applied.
func (q Query) DateRequested() bool { return q.DateFilter != "" && q.DateFilter != AllOption }

// SectionRequested reports whether a section filter should be applied.
func (q Query) SectionRequested() bool { return q.Section != "" && q.Section != AllOption }

// RawItem is a result entry as read from the page, before URL resolution.
type RawItem struct {
	Title    string
	Href     string
	DateText string
	Summary  string
}

// Driver supplies the site-specific steps of a search.
type Driver interface {
	SearchURL(keyword string) string
	// ApplyDateFilter failures are logged; the run continues unfiltered.
	ApplyDateFilter(ctx context.Context, page browser.Page, code string) error
	// ApplySectionFilter failures end the search.
	ApplySectionFilter(ctx context.Context, page browser.Page, code string) error
	// PrepareResults runs before each page read, e.g. to trigger lazy rendering.
	PrepareResults(ctx context.Context, page browser.Page) error
	ParseItems(doc *goquery.Document) ([]RawItem, error)
	// ResolveURL makes a result href absolute. pageURL is where the
	// results were read from.
	ResolveURL(pageURL, href string) (string, error)
	// IsSearchPage reports links pointing back into the search UI.
	IsSearchPage(u string) bool
	// NextPage activates the next-page control. It returns false when there
	// is no control or it is disabled.
	NextPage(ctx context.Context, page browser.Page, current int) (bool, error)
}

// ParseFailure is a result page whose markup could not be read.
type ParseFailure struct {
	Page int
	Err  error
}

func (e *ParseFailure) Error() string {
	return fmt.Sprintf("failed to parse result page %d: %v", e.Page, e.Err)
}

func (e *ParseFailure) Unwrap() error { return e.Err }

// Stats describe one finished or in-flight search.
type Stats struct {
	PagesParsed     int
	NextActivations int
	Candidates      int
	ParseFailures   int
}

// Search is a single keyword's walk through the result pages. It is lazy:
// nothing happens until All is ranged over.
type Search struct {
	nav    browser.Navigator
	driver Driver
	query  Query
	timing config.Timing
	log    logger.Interface

	state    State
	stats    Stats
	consumed bool
}

// New prepares a search.
func New(nav browser.Navigator, driver Driver, q Query, timing config.Timing, log logger.Interface) *Search {
	return &Search{
		nav:    nav,
		driver: driver,
		query:  q,
		timing: timing,
		log:    log.With(logger.KeyKeyword, q.Keyword),
		state:  Idle,
	}
}

// State returns the current state.
func (s *Search) State() State { return s.state }

// Stats returns counters for the search so far.
func (s *Search) Stats() Stats { return s.stats }

// All yields candidates in page order, then item order within a page.
// Duplicates are passed through. A second range yields ErrSequenceConsumed.
func (s *Search) All(ctx context.Context) iter.Seq2[models.SearchCandidate, error] {
	return func(yield func(models.SearchCandidate, error) bool) {
		if s.consumed {
			yield(models.SearchCandidate{}, ErrSequenceConsumed)
			return
		}
		s.consumed = true
		defer func() { s.state = Done }()

		if err := s.run(ctx, yield); err != nil {
			yield(models.SearchCandidate{}, err)
		}
	}
}

// run drives the state machine. A returned error is yielded to the caller;
// a false yield stops without error.
func (s *Search) run(ctx context.Context, yield func(models.SearchCandidate, error) bool) error {
	s.state = Searching
	page, err := s.nav.Acquire(ctx)
	if err != nil {
		return err
	}

	searchURL := s.driver.SearchURL(s.query.Keyword)
	s.log.Info("opening search page", logger.KeyURL, searchURL)
	if err := s.nav.Navigate(ctx, searchURL); err != nil {
		return fmt.Errorf("failed to open search page: %w", err)
	}
	if err := retry.Sleep(ctx, s.timing.SettleAfterSearch); err != nil {
		return err
	}

	if s.query.DateRequested() || s.query.SectionRequested() {
		if err := s.applyFilters(ctx, page); err != nil {
			return err
		}
		s.state = FilterApplied
	}

	s.state = PagingResults
	for current := 1; ; current++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		candidates, err := s.readPage(ctx, page, current)
		s.stats.PagesParsed++
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			s.stats.ParseFailures++
			s.log.Warn("skipping result page", logger.KeyPage, current, logger.KeyError, err)
		}
		s.log.Debug("result page read", logger.KeyPage, current, "candidates", len(candidates))
		for _, c := range candidates {
			s.stats.Candidates++
			if !yield(c, nil) {
				return nil
			}
		}

		if current >= s.timing.MaxPages {
			s.log.Info("page cap reached", logger.KeyPage, current)
			return nil
		}

		advanced, err := s.driver.NextPage(ctx, page, current)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			s.log.Warn("next page failed", logger.KeyPage, current, logger.KeyError, err)
			return nil
		}
		if !advanced {
			s.log.Info("no further result pages", logger.KeyPage, current)
			return nil
		}
		s.stats.NextActivations++
		if err := retry.Sleep(ctx, s.timing.SettleAfterNext); err != nil {
			return err
		}
	}
}

func (s *Search) applyFilters(ctx context.Context, page browser.Page) error {
	if s.query.DateRequested() {
		if err := s.driver.ApplyDateFilter(ctx, page, s.query.DateFilter); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			s.log.Warn("date filter not applied, continuing unfiltered",
				"date_filter", s.query.DateFilter, logger.KeyError, err)
		}
	}
	if s.query.SectionRequested() {
		if err := s.driver.ApplySectionFilter(ctx, page, s.query.Section); err != nil {
			return err
		}
	}
	return retry.Sleep(ctx, s.timing.SettleAfterFilter)
}

func (s *Search) readPage(ctx context.Context, page browser.Page, current int) ([]models.SearchCandidate, error) {
	if err := s.driver.PrepareResults(ctx, page); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.log.Debug("prepare results failed", logger.KeyError, err)
	}

	html, err := page.HTML()
	if err != nil {
		return nil, &ParseFailure{Page: current, Err: err}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &ParseFailure{Page: current, Err: err}
	}
	items, err := s.driver.ParseItems(doc)
	if err != nil {
		return nil, &ParseFailure{Page: current, Err: err}
	}

	pageURL := page.URL()
	out := make([]models.SearchCandidate, 0, len(items))
	for _, it := range items {
		abs, ok := s.resolve(pageURL, it.Href)
		if !ok || it.Title == "" {
			continue
		}
		out = append(out, models.SearchCandidate{
			Title:       it.Title,
			URL:         abs,
			RawDateText: it.DateText,
			ParsedDate:  aggregate.ParseDate(it.DateText),
			Keyword:     s.query.Keyword,
			Summary:     it.Summary,
			PageNumber:  current,
		})
	}
	return out, nil
}

// resolve turns href into an absolute URL, rejecting control links.
func (s *Search) resolve(pageURL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if IsPseudoLink(href) {
		return "", false
	}
	abs, err := s.driver.ResolveURL(pageURL, href)
	if err != nil {
		return "", false
	}
	if s.driver.IsSearchPage(abs) {
		return "", false
	}
	return abs, true
}

// IsPseudoLink reports hrefs that are not navigable documents.
func IsPseudoLink(href string) bool {
	lower := strings.ToLower(strings.TrimSpace(href))
	return lower == "" || strings.HasPrefix(lower, "#") || strings.HasPrefix(lower, "javascript:")
}

// Resolve makes href absolute against base.
func Resolve(base, href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", err
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		return "", fmt.Errorf("cannot resolve %q against %q", href, base)
	}
	return b.ResolveReference(ref).String(), nil
}

// Collect drains a sequence. It returns the candidates gathered before the
// first error along with that error.
func Collect(seq iter.Seq2[models.SearchCandidate, error]) ([]models.SearchCandidate, error) {
	var out []models.SearchCandidate
	for c, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Settle picks the post-search delay: a site override applies only when
// settling is enabled at all.
func Settle(global, site time.Duration) time.Duration {
	if global > 0 && site > 0 {
		return site
	}
	return global
}
