package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"govdoc-scraper/adapter"
	"govdoc-scraper/aggregate"
	"govdoc-scraper/browser"
	"govdoc-scraper/extractor"
	"govdoc-scraper/logger"
	"govdoc-scraper/models"
	"govdoc-scraper/pager"
	"govdoc-scraper/retry"
)

// Stats are the counters of one run.
type Stats struct {
	RunID            string
	KeywordsSearched int
	KeywordsFailed   int
	Candidates       int
	Unique           int
	Kept             int
	Extracted        int
	ExtractFailures  int
	Duration         time.Duration
}

// run is the state of one Scrape call.
type run struct {
	id      string
	scraper *Scraper
	adapter adapter.SiteAdapter
	session Session
	log     logger.Interface
	stats   Stats
	started time.Time
}

func (s *Scraper) newRun(a adapter.SiteAdapter) *run {
	id := uuid.NewString()
	log := s.log.With(logger.KeyRunID, id, logger.KeySite, a.Site().Name)
	r := &run{
		id:      id,
		scraper: s,
		adapter: a,
		log:     log,
		stats:   Stats{RunID: id},
		started: time.Now(),
	}
	if a.NeedsBrowser() || !a.Site().Static {
		r.session = s.newSession(log)
	}
	return r
}

func (r *run) close() {
	r.stats.Duration = time.Since(r.started)
	if r.session != nil {
		if err := r.session.Release(); err != nil {
			r.log.Warn("failed to release browser", logger.KeyError, err)
		}
	}
	r.log.Info("run finished",
		"candidates", r.stats.Candidates,
		"unique", r.stats.Unique,
		"kept", r.stats.Kept,
		"extracted", r.stats.Extracted,
		"duration", r.stats.Duration.String())
}

func (r *run) navigator() browser.Navigator {
	if r.session == nil {
		return nil
	}
	return r.session
}

func (r *run) execute(ctx context.Context, req Request) ([]models.Document, error) {
	r.log.Info("run started", "keywords", req.Keywords, "date_filter", req.DateFilter, "section", req.Section)

	candidates, err := r.search(ctx, req)
	if err != nil {
		return nil, err
	}
	r.stats.Candidates = len(candidates)

	unique := aggregate.Dedupe(candidates)
	r.stats.Unique = len(unique)
	keywords := aggregate.KeywordsByURL(candidates)

	filter := aggregate.Filter{Start: req.StartDate, End: req.EndDate, QuotedTitlesOnly: req.QuotedTitlesOnly}
	kept := filter.Apply(unique)
	r.stats.Kept = len(kept)

	var ext *extractor.Extractor
	if req.FetchContent {
		// Static sites never need the browser for their articles.
		var nav browser.Navigator
		if !r.adapter.Site().Static {
			nav = r.navigator()
		}
		ext = extractor.New(nav, r.scraper.static, r.scraper.cfg.Extract, r.log)
	}

	docs := make([]models.Document, 0, len(kept))
	for i, c := range kept {
		doc := r.document(c, keywords[c.URL])
		if ext != nil {
			if i > 0 {
				if err := retry.Sleep(ctx, r.scraper.cfg.Timing.BetweenArticles); err != nil {
					return docs, err
				}
			}
			if err := r.enrich(ctx, ext, &doc, c); err != nil {
				return docs, err
			}
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// search runs every keyword in order and concatenates their candidates.
func (r *run) search(ctx context.Context, req Request) ([]models.SearchCandidate, error) {
	var all []models.SearchCandidate
	first := true
	for _, kw := range req.Keywords {
		if kw = strings.TrimSpace(kw); kw == "" {
			continue
		}
		if !first {
			if err := retry.Sleep(ctx, r.scraper.cfg.Timing.BetweenKeywords); err != nil {
				return nil, err
			}
		}
		first = false

		q := pager.Query{Keyword: kw, DateFilter: req.DateFilter, Section: req.Section}
		got, err := pager.Collect(r.adapter.Search(ctx, r.navigator(), q))
		r.stats.KeywordsSearched++
		all = append(all, got...)
		if err == nil {
			r.log.Info("keyword searched", logger.KeyKeyword, kw, "candidates", len(got))
			continue
		}
		if fatal(ctx, err, r.adapter.NeedsBrowser()) {
			return nil, err
		}
		r.stats.KeywordsFailed++
		r.log.Warn("keyword search failed, continuing", logger.KeyKeyword, kw, logger.KeyError, err)
	}
	return all, nil
}

// fatal reports errors that end the run rather than one keyword.
func fatal(ctx context.Context, err error, browserSite bool) bool {
	if ctx.Err() != nil {
		return true
	}
	if errors.Is(err, adapter.ErrFilterUnavailable) {
		return true
	}
	return browserSite && errors.Is(err, browser.ErrBrowserUnavailable)
}

func (r *run) document(c models.SearchCandidate, keywords []string) models.Document {
	if len(keywords) == 0 && c.Keyword != "" {
		keywords = []string{c.Keyword}
	}
	return models.Document{
		Title:            c.Title,
		URL:              c.URL,
		PublishDateFull:  c.ParsedDate,
		PublishDateMonth: aggregate.MonthLabel(c.ParsedDate),
		Publisher:        r.adapter.Site().Name,
		DocNumber:        aggregate.DocNumber(c.Title),
		Category:         models.DefaultCategory,
		MatchedKeywords:  keywords,
		KeywordContexts:  fallbackContexts(c.Summary, keywords),
	}
}

// enrich fills content, attachments and contexts. Extraction failures are
// logged and leave the document as built from the search hit.
func (r *run) enrich(ctx context.Context, ext *extractor.Extractor, doc *models.Document, c models.SearchCandidate) error {
	res, err := ext.Extract(ctx, c.URL, r.adapter.Site().ContentSelectors)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		r.stats.ExtractFailures++
		r.log.Warn("article extraction failed", logger.KeyURL, c.URL, logger.KeyError, err)
		return nil
	}
	r.stats.Extracted++

	doc.FullContent = res.Content
	doc.Attachments = res.Attachments
	if doc.DocNumber == "" {
		doc.DocNumber = aggregate.DocNumber(head(res.Content, 2000))
	}
	if contexts := aggregate.ContextsFor(res.Content, doc.MatchedKeywords); len(contexts) > 0 {
		doc.KeywordContexts = contexts
	}
	return nil
}

// fallbackContexts are used when there is no full text to search: the
// result snippet, else a note naming the keyword.
func fallbackContexts(summary string, keywords []string) []models.KeywordContext {
	out := make([]models.KeywordContext, 0, len(keywords))
	for _, kw := range keywords {
		text := head(summary, aggregate.DefaultWindowChars)
		if text == "" {
			text = fmt.Sprintf("通过搜索【%s】找到此结果", kw)
		}
		out = append(out, models.KeywordContext{Keyword: kw, Context: text})
	}
	return out
}

func head(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}
