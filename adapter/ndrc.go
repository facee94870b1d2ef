package adapter

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"govdoc-scraper/browser"
	"govdoc-scraper/config"
	"govdoc-scraper/pager"
)

// ndrcDriver drives so.ndrc.gov.cn, whose controls are plain text links.
type ndrcDriver struct {
	site   config.Site
	timing config.Timing
}

var ndrcItemSelectors = []string{
	"div.result-item",
	"div.search-result",
	"li.result-item",
	`div[class*="result"]`,
}

var ndrcInlineDate = regexp.MustCompile(`\d{4}[-/]\d{1,2}[-/]\d{1,2}`)

func (d *ndrcDriver) SearchURL(keyword string) string { return d.site.SearchURLFor(keyword) }

func (d *ndrcDriver) ApplyDateFilter(ctx context.Context, p browser.Page, code string) error {
	label := dateLabel(d.site, code)
	el, err := firstVisible(p,
		byText("a", regexp.QuoteMeta(label)),
		byXPath(fmt.Sprintf(`//a[contains(text(), %s)]`, xpathLiteral(label))),
	)
	if err != nil {
		return fmt.Errorf("date filter %q: %w", label, err)
	}
	return el.ScriptClick()
}

// ApplySectionFilter always fails: the commission search has no sections.
func (d *ndrcDriver) ApplySectionFilter(ctx context.Context, p browser.Page, code string) error {
	return &FilterUnavailableError{Section: sectionLabel(d.site, code)}
}

func (d *ndrcDriver) PrepareResults(ctx context.Context, p browser.Page) error {
	return scrollPage(ctx, p, d.timing)
}

func (d *ndrcDriver) ParseItems(doc *goquery.Document) ([]pager.RawItem, error) {
	var items []pager.RawItem
	firstMatch(doc, ndrcItemSelectors).Each(func(_ int, s *goquery.Selection) {
		link := s.Find("a[href]").First()
		if link.Length() == 0 {
			return
		}
		title := cleanText(link.Text())
		if title == "" {
			title = cleanText(s.Find("h3, h4, div").FilterFunction(classContains("title")).First().Text())
		}
		items = append(items, pager.RawItem{
			Title:    title,
			Href:     link.AttrOr("href", ""),
			DateText: ndrcDate(s),
			Summary:  cleanText(s.Find("p, div").FilterFunction(classContains("content", "abstract")).First().Text()),
		})
	})
	return items, nil
}

func ndrcDate(s *goquery.Selection) string {
	if el := s.Find("span, div").FilterFunction(classContains("date", "time")).First(); el.Length() > 0 {
		return cleanText(el.Text())
	}
	if m := ndrcInlineDate.FindString(s.Text()); m != "" {
		return strings.ReplaceAll(m, "/", "-")
	}
	return ""
}

// classContains matches nodes whose class attribute contains any of parts.
func classContains(parts ...string) func(int, *goquery.Selection) bool {
	return func(_ int, s *goquery.Selection) bool {
		class := strings.ToLower(s.AttrOr("class", ""))
		for _, p := range parts {
			if strings.Contains(class, p) {
				return true
			}
		}
		return false
	}
}

func (d *ndrcDriver) ResolveURL(pageURL, href string) (string, error) {
	return pager.Resolve(d.site.BaseURL, href)
}

func (d *ndrcDriver) IsSearchPage(u string) bool {
	return strings.Contains(u, "/s?") || strings.Contains(strings.ToLower(u), "search")
}

func (d *ndrcDriver) NextPage(ctx context.Context, p browser.Page, current int) (bool, error) {
	if el, err := firstVisible(p,
		byText("a", "下一页|下页"),
		byXPath(`//a[contains(text(), '下一页') or contains(text(), '下页')]`),
	); err == nil {
		if hasDisabledClass(el) {
			return false, nil
		}
		return true, el.ScriptClick()
	}

	n := strconv.Itoa(current + 1)
	el, err := firstVisible(p,
		byText("a", "^"+n+"$"),
		byXPath(fmt.Sprintf(`//a[text()='%s']`, n)),
	)
	if err != nil {
		return false, nil
	}
	return true, el.ScriptClick()
}
