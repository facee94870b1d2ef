package adapter

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"govdoc-scraper/aggregate"
	"govdoc-scraper/browser"
	"govdoc-scraper/config"
	"govdoc-scraper/logger"
	"govdoc-scraper/models"
	"govdoc-scraper/pager"
)

// listingAdapter reads static notice listings and keeps the entries whose
// title mentions the keyword. Listings offer no filters.
type listingAdapter struct {
	site config.Site
	deps Deps
}

func (a *listingAdapter) Site() config.Site                    { return a.site }
func (a *listingAdapter) DateFilterOptions() map[string]string { return a.site.DateFilterOptions() }
func (a *listingAdapter) SectionOptions() map[string]string    { return a.site.SectionOptions() }
func (a *listingAdapter) NeedsBrowser() bool                   { return false }

func (a *listingAdapter) Search(ctx context.Context, _ browser.Navigator, q pager.Query) iter.Seq2[models.SearchCandidate, error] {
	return func(yield func(models.SearchCandidate, error) bool) {
		if q.SectionRequested() {
			yield(models.SearchCandidate{}, &FilterUnavailableError{Section: sectionLabel(a.site, q.Section)})
			return
		}
		log := a.deps.Log.With(logger.KeyKeyword, q.Keyword)
		kw := strings.ToLower(q.Keyword)

		for i, listURL := range a.site.ListURLs {
			if err := ctx.Err(); err != nil {
				yield(models.SearchCandidate{}, err)
				return
			}
			page, err := a.deps.Static.Fetch(ctx, listURL)
			if err != nil {
				if ctx.Err() != nil {
					yield(models.SearchCandidate{}, ctx.Err())
					return
				}
				log.Warn("skipping listing page", logger.KeyURL, listURL, logger.KeyError, err)
				continue
			}
			items, err := a.parse(page.URL, page.Body)
			if err != nil {
				log.Warn("failed to parse listing page", logger.KeyURL, listURL, logger.KeyError, err)
				continue
			}
			for _, it := range items {
				if !strings.Contains(strings.ToLower(it.Title), kw) {
					continue
				}
				it.Keyword = q.Keyword
				it.PageNumber = i + 1
				if !yield(it, nil) {
					return
				}
			}
		}
	}
}

func (a *listingAdapter) parse(pageURL, body string) ([]models.SearchCandidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	pat := a.site.ListPatterns
	itemSel, titleSel, dateSel := orDefault(pat.Item, "li"), orDefault(pat.Title, "a"), orDefault(pat.Date, "span")

	var out []models.SearchCandidate
	doc.Find(itemSel).Each(func(_ int, s *goquery.Selection) {
		link := s.Find(titleSel).First()
		href := strings.TrimSpace(link.AttrOr("href", ""))
		if pager.IsPseudoLink(href) {
			return
		}
		title := cleanText(link.AttrOr("title", ""))
		if title == "" {
			title = cleanText(link.Text())
		}
		if title == "" {
			return
		}
		abs, err := pager.Resolve(pageURL, href)
		if err != nil {
			return
		}
		dateText := cleanText(s.Find(dateSel).First().Text())
		out = append(out, models.SearchCandidate{
			Title:       title,
			URL:         abs,
			RawDateText: dateText,
			ParsedDate:  aggregate.ParseDate(dateText),
		})
	})
	return out, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
