package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govdoc-scraper/config"
	"govdoc-scraper/pager"
)

func TestScrapeOptionsRequest(t *testing.T) {
	o := scrapeOptions{
		region: "上海市", department: "经济和信息化委员会",
		keywords: []string{" 数据 ", "", "人工智能"},
		start:    "2024-01-01", end: "2024-06-30",
		dateFilter: "30d", section: pager.AllOption, noContent: true,
	}
	req, err := o.request()
	require.NoError(t, err)
	assert.Equal(t, []string{"数据", "人工智能"}, req.Keywords)
	require.NotNil(t, req.StartDate)
	assert.Equal(t, "2024-01-01", req.StartDate.Format("2006-01-02"))
	require.NotNil(t, req.EndDate)
	assert.False(t, req.FetchContent)
	assert.Equal(t, "30d", req.DateFilter)

	o.start = "2024/01/01"
	_, err = o.request()
	assert.ErrorContains(t, err, "YYYY-MM-DD")
}

func TestCodes(t *testing.T) {
	assert.Equal(t, "-", codes(nil))
	assert.Equal(t, "30d=最近1个月\n7d=最近7天", codes(map[string]string{"7d": "最近7天", "30d": "最近1个月"}))
}

func TestRenderSites(t *testing.T) {
	cat, err := config.DefaultCatalog()
	require.NoError(t, err)
	var buf bytes.Buffer
	renderSites(&buf, cat)
	out := buf.String()
	assert.Contains(t, out, "经济和信息化委员会")
	assert.Contains(t, out, "hdpt=互动平台")
}
