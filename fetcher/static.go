package fetcher

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"govdoc-scraper/config"
	"govdoc-scraper/logger"
)

// Page is a statically fetched document, decoded to UTF-8.
type Page struct {
	URL        string // final URL after redirects
	StatusCode int
	Body       string
	Header     http.Header
}

// Static fetches pages over plain HTTP with colly. It cannot see anything
// rendered by script.
type Static struct {
	collector *colly.Collector
	log       logger.Interface
}

// NewStatic creates a Static fetcher.
func NewStatic(cfg config.HTTPConfig, timeout time.Duration, log logger.Interface) *Static {
	ua := cfg.UserAgent
	if ua == "" {
		ua = config.DefaultUserAgent
	}
	c := colly.NewCollector(
		colly.UserAgent(ua),
		colly.AllowURLRevisit(),
		colly.DetectCharset(),
	)
	c.SetRequestTimeout(timeout)
	c.WithTransport(&http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.InsecureTLS}, //nolint:gosec // many government hosts serve broken chains
	})

	parallelism := cfg.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}
	if err := c.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: parallelism}); err != nil {
		log.Warn("failed to set fetch limit", logger.KeyError, err)
	}

	return &Static{collector: c, log: log}
}

// Fetch retrieves url. Non-2xx responses are errors.
func (s *Static) Fetch(ctx context.Context, url string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Clones share the transport and limits but not callbacks.
	c := s.collector.Clone()
	c.Context = ctx

	var (
		page     *Page
		fetchErr error
	)
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	})
	c.OnResponse(func(r *colly.Response) {
		page = &Page{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       string(r.Body),
		}
		if r.Headers != nil {
			page.Header = *r.Headers
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("failed to fetch %s (status %d): %w", url, r.StatusCode, err)
	})

	visitErr := c.Visit(url)
	c.Wait()

	if fetchErr != nil {
		return nil, fetchErr
	}
	if visitErr != nil {
		return nil, fmt.Errorf("failed to visit URL: %w", visitErr)
	}
	if page == nil {
		return nil, errors.New("no response received")
	}
	s.log.Debug("fetched page", logger.KeyURL, page.URL, "bytes", len(page.Body))
	return page, nil
}
