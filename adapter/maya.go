package adapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"govdoc-scraper/browser"
	"govdoc-scraper/config"
	"govdoc-scraper/pager"
)

const untitled = "无标题"

// mayaDriver drives the hash-routed "websearch" UI used by the Shanghai
// commissions.
type mayaDriver struct {
	site   config.Site
	timing config.Timing
}

var mayaItemSelectors = []string{
	"div.maya-result-item",
	"div.result-item",
	"div.search-result-item",
	`div[class*="result"]`,
}

const mayaNextSelector = `span[title="下一页"]`

func (d *mayaDriver) SearchURL(keyword string) string { return d.site.SearchURLFor(keyword) }

func (d *mayaDriver) ApplyDateFilter(ctx context.Context, p browser.Page, code string) error {
	sel := fmt.Sprintf(`a[search-date-range=%s]`, jsString(code))
	el, err := firstVisible(p,
		byCSS(sel),
		byXPath(fmt.Sprintf(`//a[@search-date-range=%s]`, xpathLiteral(code))),
	)
	if err == nil {
		return el.ScriptClick()
	}
	if evalTrue(p, scriptClickJS(sel)) {
		return nil
	}
	return fmt.Errorf("date filter %q: %w", dateLabel(d.site, code), err)
}

func (d *mayaDriver) ApplySectionFilter(ctx context.Context, p browser.Page, code string) error {
	label := sectionLabel(d.site, code)
	sel := fmt.Sprintf(`li[view-code=%s]`, jsString(code))
	active := hasClassJS(sel, "active")

	if evalTrue(p, active) {
		return nil
	}

	el, err := firstVisible(p,
		byCSS(sel),
		byXPath(fmt.Sprintf(`//li[@view-code=%s]`, xpathLiteral(code))),
	)
	switch {
	case err == nil:
		if err := el.ScrollIntoView(); err != nil {
			return &FilterUnavailableError{Section: label, Err: err}
		}
		if err := el.Click(); err != nil {
			return &FilterUnavailableError{Section: label, Err: err}
		}
	case !evalTrue(p, scriptClickJS(sel)):
		return &FilterUnavailableError{Section: label, Err: err}
	}

	ok, err := waitFor(ctx, p, d.timing, active)
	if err != nil {
		return err
	}
	if !ok {
		return &FilterUnavailableError{Section: label, Err: fmt.Errorf("section %s never became active", code)}
	}
	return nil
}

func (d *mayaDriver) PrepareResults(ctx context.Context, p browser.Page) error {
	return scrollPage(ctx, p, d.timing)
}

func (d *mayaDriver) ParseItems(doc *goquery.Document) ([]pager.RawItem, error) {
	var items []pager.RawItem
	firstMatch(doc, mayaItemSelectors).Each(func(_ int, s *goquery.Selection) {
		link := s.Find("a[href]").First()
		if link.Length() == 0 {
			return
		}
		title := cleanText(link.Text())
		if title == "" {
			title = untitled
		}
		items = append(items, pager.RawItem{
			Title:    title,
			Href:     link.AttrOr("href", ""),
			DateText: cleanText(s.Find("span.doc-date").First().Text()),
		})
	})
	return items, nil
}

func (d *mayaDriver) ResolveURL(pageURL, href string) (string, error) {
	return pager.Resolve(d.site.BaseURL, href)
}

func (d *mayaDriver) IsSearchPage(u string) bool { return strings.Contains(u, "websearch") }

func (d *mayaDriver) NextPage(ctx context.Context, p browser.Page, current int) (bool, error) {
	el, err := firstVisible(p,
		byCSS(mayaNextSelector),
		byXPath(`//span[@title="下一页"]`),
	)
	if err == nil {
		if hasDisabledClass(el) {
			return false, nil
		}
		return true, el.ScriptClick()
	}
	if evalTrue(p, hasClassJS(mayaNextSelector, "disabled")) {
		return false, nil
	}
	return evalTrue(p, scriptClickJS(mayaNextSelector)), nil
}

// firstMatch returns the matches of the first selector that finds anything.
func firstMatch(doc *goquery.Document, selectors []string) *goquery.Selection {
	for _, sel := range selectors {
		if found := doc.Find(sel); found.Length() > 0 {
			return found
		}
	}
	return doc.Find(selectors[len(selectors)-1])
}

// cleanText collapses inner whitespace.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
