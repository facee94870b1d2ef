package adapter

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"govdoc-scraper/browser"
	"govdoc-scraper/config"
	"govdoc-scraper/pager"
)

// miitDriver drives the jsearch UI of the Ministry of Industry and
// Information Technology.
type miitDriver struct {
	site   config.Site
	timing config.Timing
}

var miitItemSelectors = []string{
	"div.news-type > div.jcse-result-box.news-result",
	"div.jcse-result-box.news-result",
	"div.news-result",
	`div[class*="result"]`,
}

var miitDateMarkers = []string{"发布时间：", "发布时间:"}

func (d *miitDriver) SearchURL(keyword string) string { return d.site.SearchURLFor(keyword) }

func (d *miitDriver) ApplyDateFilter(ctx context.Context, p browser.Page, code string) error {
	value, _ := d.site.DateFilterValue(code)
	sel := fmt.Sprintf(`div.jsearch-condition-box-item[data-value=%s]`, jsString(value))
	if el, err := firstVisible(p, byCSS(sel)); err == nil {
		return el.ScriptClick()
	}
	if evalTrue(p, scriptClickJS(sel)) {
		return nil
	}
	return fmt.Errorf("date filter %q (data-value %s): %w", dateLabel(d.site, code), value, browser.ErrElementNotFound)
}

// ApplySectionFilter always fails: the ministry search has no sections.
func (d *miitDriver) ApplySectionFilter(ctx context.Context, p browser.Page, code string) error {
	return &FilterUnavailableError{Section: sectionLabel(d.site, code)}
}

func (d *miitDriver) PrepareResults(ctx context.Context, p browser.Page) error {
	return scrollPage(ctx, p, d.timing)
}

func (d *miitDriver) ParseItems(doc *goquery.Document) ([]pager.RawItem, error) {
	var items []pager.RawItem
	firstMatch(doc, miitItemSelectors).Each(func(_ int, s *goquery.Selection) {
		link := s.Find("a[href]").First()
		if link.Length() == 0 {
			return
		}
		title := cleanText(s.Find("div.itemdiy").First().Text())
		if title == "" {
			title = cleanText(link.Text())
		}
		items = append(items, pager.RawItem{
			Title:    title,
			Href:     link.AttrOr("href", ""),
			DateText: miitDate(s.Text()),
			Summary:  cleanText(s.Find("p").First().Text()),
		})
	})
	return items, nil
}

// miitDate takes the first token after the publish-time marker.
func miitDate(text string) string {
	for _, marker := range miitDateMarkers {
		if _, after, ok := strings.Cut(text, marker); ok {
			if fields := strings.Fields(after); len(fields) > 0 {
				return fields[0]
			}
		}
	}
	return ""
}

// ResolveURL resolves parent-relative links against the search directory,
// the way the result page itself would.
func (d *miitDriver) ResolveURL(pageURL, href string) (string, error) {
	if strings.HasPrefix(href, "..") && d.site.SearchBase != "" {
		return pager.Resolve(d.site.SearchBase, href)
	}
	return pager.Resolve(d.site.BaseURL, href)
}

func (d *miitDriver) IsSearchPage(u string) bool { return strings.Contains(u, "/search/index.html") }

func (d *miitDriver) NextPage(ctx context.Context, p browser.Page, current int) (bool, error) {
	if el, err := p.Element(`[paged="下一页"]`); err == nil {
		if hasDisabledClass(el) {
			return false, nil
		}
		if el.Visible() {
			return true, el.ScriptClick()
		}
	}

	numbered := fmt.Sprintf(`#pagination a[paged=%s]`, jsString(strconv.Itoa(current+1)))
	if el, err := firstVisible(p, byCSS(numbered)); err == nil {
		return true, el.ScriptClick()
	}

	if evalTrue(p, hasClassJS(`[paged="下一页"]`, "disabled")) {
		return false, nil
	}
	if evalTrue(p, scriptClickJS(`a[paged="下一页"]`)) {
		return true, nil
	}
	return evalTrue(p, scriptClickJS(numbered)), nil
}
