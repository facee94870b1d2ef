// Package adapter binds each site in the catalog to the search engine
// family it is built on.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"govdoc-scraper/browser"
	"govdoc-scraper/config"
	"govdoc-scraper/fetcher"
	"govdoc-scraper/logger"
	"govdoc-scraper/models"
	"govdoc-scraper/pager"
)

// SiteAdapter searches one site.
type SiteAdapter interface {
	Site() config.Site
	// DateFilterOptions maps date filter codes to display labels.
	DateFilterOptions() map[string]string
	// SectionOptions maps section codes to display labels.
	SectionOptions() map[string]string
	// NeedsBrowser reports whether Search drives the browser.
	NeedsBrowser() bool
	// Search yields candidates for one keyword. A section filter that
	// cannot be applied is yielded as *FilterUnavailableError.
	Search(ctx context.Context, nav browser.Navigator, q pager.Query) iter.Seq2[models.SearchCandidate, error]
}

// ErrFilterUnavailable matches every *FilterUnavailableError.
var ErrFilterUnavailable = errors.New("filter unavailable")

// FilterUnavailableError reports a section filter that could not be
// applied. Section is the human label.
type FilterUnavailableError struct {
	Section string
	Err     error
}

func (e *FilterUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("section filter %q unavailable: %v", e.Section, e.Err)
	}
	return fmt.Sprintf("section filter %q unavailable", e.Section)
}

func (e *FilterUnavailableError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFilterUnavailable}
	}
	return []error{ErrFilterUnavailable, e.Err}
}

// Deps are the shared services adapters are built with.
type Deps struct {
	Timing config.Timing
	Log    logger.Interface
	// Static is required by listing sites only.
	Static *fetcher.Static
}

// New builds the adapter for site.
func New(site config.Site, deps Deps) (SiteAdapter, error) {
	if deps.Log == nil {
		deps.Log = logger.NewNop()
	}
	deps.Log = deps.Log.With(logger.KeySite, site.Name)

	switch site.Engine {
	case config.EngineMaya:
		return newBrowserAdapter(site, deps, &mayaDriver{site: site, timing: deps.Timing}), nil
	case config.EngineMIIT:
		return newBrowserAdapter(site, deps, &miitDriver{site: site, timing: deps.Timing}), nil
	case config.EngineNDRC:
		return newBrowserAdapter(site, deps, &ndrcDriver{site: site, timing: deps.Timing}), nil
	case config.EngineListing:
		if deps.Static == nil {
			return nil, errors.New("listing sites need a static fetcher")
		}
		return &listingAdapter{site: site, deps: deps}, nil
	}
	return nil, fmt.Errorf("unsupported engine %q", site.Engine)
}

// Registry builds adapters by region and department.
type Registry struct {
	catalog *config.Catalog
	deps    Deps
}

// NewRegistry creates a Registry over catalog.
func NewRegistry(catalog *config.Catalog, deps Deps) *Registry {
	return &Registry{catalog: catalog, deps: deps}
}

// Catalog returns the underlying site list.
func (r *Registry) Catalog() *config.Catalog { return r.catalog }

// For returns the adapter for region and department.
func (r *Registry) For(region, department string) (SiteAdapter, error) {
	site, err := r.catalog.Lookup(region, department)
	if err != nil {
		return nil, err
	}
	return New(site, r.deps)
}

// browserAdapter runs a pager.Search with a site driver.
type browserAdapter struct {
	site   config.Site
	deps   Deps
	driver pager.Driver
}

func newBrowserAdapter(site config.Site, deps Deps, d pager.Driver) *browserAdapter {
	return &browserAdapter{site: site, deps: deps, driver: d}
}

func (a *browserAdapter) Site() config.Site                    { return a.site }
func (a *browserAdapter) DateFilterOptions() map[string]string { return a.site.DateFilterOptions() }
func (a *browserAdapter) SectionOptions() map[string]string    { return a.site.SectionOptions() }
func (a *browserAdapter) NeedsBrowser() bool                   { return true }

func (a *browserAdapter) Search(ctx context.Context, nav browser.Navigator, q pager.Query) iter.Seq2[models.SearchCandidate, error] {
	if q.SectionRequested() {
		if _, ok := a.SectionOptions()[q.Section]; !ok {
			return failed(&FilterUnavailableError{Section: q.Section, Err: errors.New("unknown section code")})
		}
	}
	if q.DateRequested() {
		if _, ok := a.site.DateFilterValue(q.DateFilter); !ok {
			a.deps.Log.Warn("unknown date filter code, searching unfiltered", "date_filter", q.DateFilter)
			q.DateFilter = ""
		}
	}

	timing := a.deps.Timing
	timing.SettleAfterSearch = pager.Settle(timing.SettleAfterSearch, a.site.SearchSettle)
	return pager.New(nav, a.driver, q, timing, a.deps.Log).All(ctx)
}

func failed(err error) iter.Seq2[models.SearchCandidate, error] {
	return func(yield func(models.SearchCandidate, error) bool) {
		yield(models.SearchCandidate{}, err)
	}
}

// sectionLabel returns the display label for code, or code itself.
func sectionLabel(site config.Site, code string) string {
	if l, ok := site.SectionOptions()[code]; ok && l != "" {
		return l
	}
	return code
}

// dateLabel returns the display label for a date code, or code itself.
func dateLabel(site config.Site, code string) string {
	if l, ok := site.DateFilterOptions()[code]; ok && l != "" {
		return l
	}
	return code
}
