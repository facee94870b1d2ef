package scraper

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govdoc-scraper/adapter"
	"govdoc-scraper/browser"
	"govdoc-scraper/browser/browsertest"
	"govdoc-scraper/config"
	"govdoc-scraper/fetcher"
	"govdoc-scraper/logger"
)

const (
	region = "上海市"
	dept   = "经济和信息化委员会"
	base   = "https://mhapi.sheitc.sh.gov.cn"
)

type fakeSession struct {
	*browsertest.Navigator
	released int
}

func (f *fakeSession) Release() error {
	f.released++
	return nil
}

type stubFetcher struct {
	pages map[string]string
}

func (s stubFetcher) Fetch(ctx context.Context, url string) (*fetcher.Page, error) {
	body, ok := s.pages[url]
	if !ok {
		return nil, fmt.Errorf("unexpected status 404 for %s", url)
	}
	return &fetcher.Page{URL: url, StatusCode: 200, Body: body}, nil
}

func results(items ...string) string {
	html := "<html><body>"
	for _, it := range items {
		html += it
	}
	return html + "</body></html>"
}

func item(href, title, date string) string {
	return fmt.Sprintf(`<div class="maya-result-item"><a href="%s">%s</a><span class="doc-date">%s</span></div>`, href, title, date)
}

type fixture struct {
	scraper *Scraper
	session *fakeSession
	page    *browsertest.Page
}

func newFixture(t *testing.T, static stubFetcher) *fixture {
	t.Helper()
	cfg := config.GetDefaultConfig()
	cfg.Timing = cfg.Timing.Instant()
	cfg.Extract = config.ExtractConfig{}
	cat, err := config.DefaultCatalog()
	require.NoError(t, err)

	page := browsertest.NewPage()
	f := &fixture{page: page, session: &fakeSession{Navigator: &browsertest.Navigator{Page: page}}}
	f.scraper = New(cfg, cat, logger.NewNop(),
		WithSessionFactory(func(logger.Interface) Session { return f.session }),
		WithStaticFetcher(static))
	return f
}

func (f *fixture) searchFor(t *testing.T, kw, html string) {
	t.Helper()
	site, err := f.scraper.Registry().Catalog().Lookup(region, dept)
	require.NoError(t, err)
	f.page.Sites[site.SearchURLFor(kw)] = html
}

func day(s string) *time.Time {
	t, err := time.ParseInLocation(time.DateOnly, s, time.Local)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestScrapeMergesKeywords(t *testing.T) {
	f := newFixture(t, stubFetcher{pages: map[string]string{}})
	f.searchFor(t, "数据", results(
		item("/cmsres/a.html", "关于印发《数据安全管理办法》的通知", "2024-06-01"),
		item("/cmsres/old.html", "旧通知", "2023-01-01"),
	))
	f.searchFor(t, "安全", results(
		item("/cmsres/a.html", "关于印发《数据安全管理办法》的通知", "2024-06-01"),
		item("/cmsres/c.html", "安全生产检查", "2024-05-20"),
	))
	f.page.Sites[base+"/cmsres/a.html"] = `<html><body><div id="ivs_content">
<p>沪经信规〔2024〕3号</p><p>为加强数据安全管理，现将办法印发给你们。</p>
</div></body></html>`

	req := NewRequest(region, dept, []string{"数据", "安全"}, day("2024-01-01"))
	docs, stats, err := f.scraper.ScrapeWithStats(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	a := docs[0]
	assert.Equal(t, base+"/cmsres/a.html", a.URL)
	assert.Equal(t, []string{"数据", "安全"}, a.MatchedKeywords)
	assert.Equal(t, "2024年06月", a.PublishDateMonth)
	assert.Equal(t, "上海市经济和信息化委员会", a.Publisher)
	assert.Equal(t, "沪经信规〔2024〕3号", a.DocNumber)
	assert.Contains(t, a.FullContent, "数据安全管理")
	require.Len(t, a.KeywordContexts, 2)
	assert.Contains(t, a.KeywordContexts[0].Context, "数据")

	// c.html has no fixture anywhere, so extraction fails and the hit is kept.
	c := docs[1]
	assert.Equal(t, base+"/cmsres/c.html", c.URL)
	assert.Empty(t, c.FullContent)
	require.Len(t, c.KeywordContexts, 1)
	assert.Equal(t, "通过搜索【安全】找到此结果", c.KeywordContexts[0].Context)

	assert.Equal(t, 4, stats.Candidates)
	assert.Equal(t, 3, stats.Unique)
	assert.Equal(t, 2, stats.Kept)
	assert.Equal(t, 1, stats.Extracted)
	assert.Equal(t, 1, stats.ExtractFailures)
	assert.NotEmpty(t, stats.RunID)
	assert.Equal(t, 1, f.session.released)
}

func TestScrapeWithoutContent(t *testing.T) {
	f := newFixture(t, stubFetcher{})
	f.searchFor(t, "数据", results(item("/cmsres/a.html", "数据通知", "2024-06-01")))

	req := NewRequest(region, dept, []string{"数据"}, nil)
	req.FetchContent = false
	docs, err := f.scraper.Scrape(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Empty(t, docs[0].FullContent)
	for _, n := range f.page.Navigations {
		assert.NotContains(t, n, "/cmsres/", "no article visits")
	}
}

func TestScrapeTrimsKeywords(t *testing.T) {
	f := newFixture(t, stubFetcher{})
	f.searchFor(t, "数据", results(item("/cmsres/a.html", "数据通知", "2024-06-01")))

	req := NewRequest(region, dept, []string{" 数据 ", "  ", "\t"}, nil)
	req.FetchContent = false
	docs, stats, err := f.scraper.ScrapeWithStats(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, []string{"数据"}, docs[0].MatchedKeywords)
	assert.Equal(t, 1, stats.KeywordsSearched)
	assert.Zero(t, stats.KeywordsFailed)
}

func TestScrapeEmptyIsNotAnError(t *testing.T) {
	f := newFixture(t, stubFetcher{})
	f.searchFor(t, "无结果", results())

	docs, err := f.scraper.Scrape(context.Background(), NewRequest(region, dept, []string{"无结果"}, nil))
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Equal(t, 1, f.session.released)
}

func TestScrapeSectionUnavailable(t *testing.T) {
	f := newFixture(t, stubFetcher{})
	f.searchFor(t, "数据", results(item("/cmsres/a.html", "数据通知", "2024-06-01")))
	f.page.SetElement(browsertest.Key(`li[view-code="hdpt"]`), &browsertest.Element{Label: "互动平台"})

	req := NewRequest(region, dept, []string{"数据", "安全"}, nil)
	req.Section = "hdpt"
	docs, err := f.scraper.Scrape(context.Background(), req)
	assert.Nil(t, docs)

	var fu *adapter.FilterUnavailableError
	require.ErrorAs(t, err, &fu)
	assert.Equal(t, "互动平台", fu.Section)
	assert.Equal(t, 1, f.session.released)
}

func TestScrapeKeywordFailureContinues(t *testing.T) {
	f := newFixture(t, stubFetcher{})
	// No fixture for the first keyword: its search page fails to load.
	f.searchFor(t, "安全", results(item("/cmsres/c.html", "安全通知", "2024-06-01")))

	req := NewRequest(region, dept, []string{"数据", "安全"}, nil)
	req.FetchContent = false
	docs, stats, err := f.scraper.ScrapeWithStats(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, 1, stats.KeywordsFailed)
	assert.Equal(t, 2, stats.KeywordsSearched)
}

func TestScrapeBrowserUnavailable(t *testing.T) {
	f := newFixture(t, stubFetcher{})
	f.session.AcquireErr = fmt.Errorf("%w: no binary", browser.ErrBrowserUnavailable)

	_, err := f.scraper.Scrape(context.Background(), NewRequest(region, dept, []string{"数据"}, nil))
	assert.ErrorIs(t, err, browser.ErrBrowserUnavailable)
}

func TestScrapeValidation(t *testing.T) {
	f := newFixture(t, stubFetcher{})
	ctx := context.Background()

	_, err := f.scraper.Scrape(ctx, NewRequest(region, dept, []string{" "}, nil))
	assert.ErrorIs(t, err, ErrInvalidRequest)

	req := NewRequest(region, dept, []string{"数据"}, day("2024-06-01"))
	req.EndDate = day("2024-01-01")
	_, err = f.scraper.Scrape(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = f.scraper.Scrape(ctx, NewRequest("火星", dept, []string{"数据"}, nil))
	assert.ErrorIs(t, err, config.ErrUnknownSite)
	assert.Zero(t, f.session.released, "no session for rejected requests")
}

func TestScrapeCancelled(t *testing.T) {
	f := newFixture(t, stubFetcher{})
	f.searchFor(t, "数据", results(item("/cmsres/a.html", "数据通知", "2024-06-01")))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.scraper.Scrape(ctx, NewRequest(region, dept, []string{"数据"}, nil))
	assert.ErrorIs(t, err, context.Canceled)
}
