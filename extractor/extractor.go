// Package extractor turns an article page into Markdown text and a list of
// linked attachments.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"

	"govdoc-scraper/browser"
	"govdoc-scraper/config"
	"govdoc-scraper/fetcher"
	"govdoc-scraper/logger"
	"govdoc-scraper/models"
)

// CommonSelectors are tried after a site's own content selectors.
var CommonSelectors = []string{
	"#ivs_content",
	".xxgk_content_nr",
	`div[class*="content"]`,
	`div[class*="article"]`,
	`div[class*="main"]`,
	"article",
	".content",
	"#content",
}

// Source says how a page was obtained.
type Source string

const (
	SourceBrowser Source = "browser"
	SourceStatic  Source = "static"
)

// Method says which step of the cascade produced the body.
type Method string

const (
	MethodSelector    Method = "selector"
	MethodReadability Method = "readability"
	MethodNone        Method = "none"
)

// Result is the extracted article.
type Result struct {
	Content     string
	Attachments []models.Attachment
	Source      Source
	Method      Method
	// Selector is the winning selector when Method is MethodSelector.
	Selector string
}

// ParseFailure means no copy of the page could be obtained or parsed.
type ParseFailure struct {
	URL string
	Err error
}

func (e *ParseFailure) Error() string {
	return fmt.Sprintf("failed to extract %s: %v", e.URL, e.Err)
}

func (e *ParseFailure) Unwrap() error { return e.Err }

// Fetcher is the plain HTTP fallback.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetcher.Page, error)
}

// Extractor reads article pages. With a nil Navigator every page is fetched
// statically.
type Extractor struct {
	nav    browser.Navigator
	static Fetcher
	cfg    config.ExtractConfig
	log    logger.Interface

	conv   *md.Converter
	policy *bluemonday.Policy
}

// New creates an Extractor.
func New(nav browser.Navigator, static Fetcher, cfg config.ExtractConfig, log logger.Interface) *Extractor {
	conv := md.NewConverter("", true, &md.Options{
		HeadingStyle:     "atx",
		BulletListMarker: "-",
	})
	conv.Use(plugin.Table())

	policy := bluemonday.UGCPolicy()
	policy.AllowElements("p", "br", "h1", "h2", "h3", "h4", "h5", "h6", "strong", "em", "b", "i",
		"blockquote", "ul", "ol", "li", "table", "thead", "tbody", "tr", "th", "td", "pre", "code", "span", "div")

	return &Extractor{nav: nav, static: static, cfg: cfg, log: log, conv: conv, policy: policy}
}

// Extract loads pageURL and extracts its body using selectors first.
func (e *Extractor) Extract(ctx context.Context, pageURL string, selectors []string) (*Result, error) {
	html, finalURL, source, err := e.load(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	// Relative links resolve against where the page ended up.
	res, err := e.Parse(finalURL, html, selectors)
	if err != nil {
		return nil, &ParseFailure{URL: pageURL, Err: err}
	}
	res.Source = source
	e.log.Debug("article extracted", logger.KeyURL, pageURL,
		"source", string(source), "method", string(res.Method), "chars", len([]rune(res.Content)),
		"attachments", len(res.Attachments))
	return res, nil
}

// load returns the page HTML and its final URL after redirects.
func (e *Extractor) load(ctx context.Context, pageURL string) (string, string, Source, error) {
	var browserErr error
	if e.nav != nil {
		html, finalURL, err := e.loadBrowser(ctx, pageURL)
		if err == nil {
			return html, finalURL, SourceBrowser, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", "", "", ctxErr
		}
		browserErr = err
		e.log.Warn("browser load failed, fetching statically", logger.KeyURL, pageURL, logger.KeyError, err)
	}

	if e.static == nil {
		return "", "", "", &ParseFailure{URL: pageURL, Err: errors.Join(browserErr, errors.New("no static fetcher"))}
	}
	page, err := e.static.Fetch(ctx, pageURL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", "", "", ctxErr
		}
		return "", "", "", &ParseFailure{URL: pageURL, Err: errors.Join(browserErr, err)}
	}
	return page.Body, orURL(page.URL, pageURL), SourceStatic, nil
}

func (e *Extractor) loadBrowser(ctx context.Context, pageURL string) (string, string, error) {
	page, err := e.nav.Acquire(ctx)
	if err != nil {
		return "", "", err
	}
	if err := e.nav.Navigate(ctx, pageURL); err != nil {
		return "", "", err
	}
	html, err := page.HTML()
	if err != nil {
		return "", "", err
	}
	return html, orURL(page.URL(), pageURL), nil
}

// orURL returns final unless it is empty or not an http(s) location, as
// about:blank is after some failed loads.
func orURL(final, requested string) string {
	if strings.HasPrefix(final, "http://") || strings.HasPrefix(final, "https://") {
		return final
	}
	return requested
}

// Parse runs the extraction cascade over already loaded HTML.
func (e *Extractor) Parse(pageURL, html string, selectors []string) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Find("script, style, noscript").Remove()

	res := &Result{Method: MethodNone}
	res.Attachments = ScanAttachments(doc, pageURL)

	var body string
	if sel, node := pickContent(doc, selectors); node != nil {
		res.Method, res.Selector = MethodSelector, sel
		body, err = goquery.OuterHtml(node)
		if err != nil {
			return nil, fmt.Errorf("failed to render content node: %w", err)
		}
	} else if e.cfg.Readability {
		if article := e.readable(html, pageURL); article != "" {
			res.Method, body = MethodReadability, article
		}
	}
	if body == "" {
		return res, nil
	}

	if e.cfg.Sanitize {
		body = e.policy.Sanitize(body)
	}
	text, err := e.conv.ConvertString(body)
	if err != nil {
		return nil, fmt.Errorf("failed to convert to markdown: %w", err)
	}
	res.Content = tidy(text)
	return res, nil
}

// pickContent returns the first selector that matches a node with text.
func pickContent(doc *goquery.Document, selectors []string) (string, *goquery.Selection) {
	for _, group := range [][]string{selectors, CommonSelectors} {
		for _, sel := range group {
			node := doc.Find(sel).First()
			if node.Length() > 0 && strings.TrimSpace(node.Text()) != "" {
				return sel, node
			}
		}
	}
	return "", nil
}

func (e *Extractor) readable(html, pageURL string) string {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(strings.NewReader(html), parsedURL)
	if err != nil {
		e.log.Debug("readability failed", logger.KeyURL, pageURL, logger.KeyError, err)
		return ""
	}
	if strings.TrimSpace(article.TextContent) == "" {
		return ""
	}
	return strings.TrimSpace(article.Content)
}

var blankRuns = regexp.MustCompile(`\n{3,}`)

// tidy trims trailing spaces and collapses runs of blank lines.
func tidy(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\u00a0")
	}
	return strings.TrimSpace(blankRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}
