package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
timing:
  max_pages: 10
  settle_after_next: 500ms
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Timing.MaxPages)
	assert.Equal(t, 500*time.Millisecond, cfg.Timing.SettleAfterNext)
	assert.Equal(t, 3, cfg.Timing.NavigationAttempts, "unset keys keep defaults")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, DefaultUserAgent, cfg.HTTP.UserAgent)
}

func TestLoadConfigRejectsInvalidTiming(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timing:\n  max_pages: 0\n"), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_pages")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestBotDataDirOverride(t *testing.T) {
	t.Setenv("BROWSER_DATA_DIR", "/var/lib/govdoc")
	cfg := GetDefaultConfig()
	assert.Equal(t, "/var/lib/govdoc", cfg.Browser.UserDataDir)
}

func TestDatabaseDSN(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PASSWORD", "s3cret")
	cfg := GetDefaultConfig()
	assert.Equal(t,
		"host=db.internal port=5432 user=govdoc password=s3cret dbname=govdoc sslmode=disable search_path=govdoc_scraper",
		cfg.Database.DSN())

	t.Setenv("DATABASE_URL", "postgres://u:p@h/db")
	assert.Equal(t, "postgres://u:p@h/db", GetDefaultConfig().Database.DSN())
}

func TestInstantTiming(t *testing.T) {
	tm := DefaultTiming().Instant()
	assert.Zero(t, tm.SettleAfterSearch)
	assert.Zero(t, tm.NavigationBackoff)
	assert.Equal(t, 50, tm.MaxPages)
	assert.Equal(t, 3, tm.FilterPollAttempts)
}

func TestDefaultCatalog(t *testing.T) {
	cat, err := DefaultCatalog()
	require.NoError(t, err)

	site, err := cat.Lookup("上海市", "经济和信息化委员会")
	require.NoError(t, err)
	assert.Equal(t, EngineMaya, site.Engine)
	assert.Equal(t, "上海市经济和信息化委员会", site.Name)
	assert.Equal(t, "互动平台", site.SectionOptions()["hdpt"])
	assert.Equal(t, "最近1个月", site.DateFilterOptions()["30d"])
	assert.Equal(t, 5*time.Second, site.SearchSettle)

	miit, err := cat.Lookup("中国", "工业和信息化部")
	require.NoError(t, err)
	v, ok := miit.DateFilterValue("7d")
	require.True(t, ok)
	assert.Equal(t, "2", v)

	ndrc, err := cat.Lookup("中国", "发展和改革委员会")
	require.NoError(t, err)
	v, ok = ndrc.DateFilterValue("30d")
	require.True(t, ok)
	assert.Equal(t, "30d", v, "falls back to the code")

	_, err = cat.Lookup("火星", "科学技术厅")
	assert.ErrorIs(t, err, ErrUnknownSite)

	assert.Contains(t, cat.Regions(), "湖南省")
}

func TestSearchURLFor(t *testing.T) {
	site := Site{SearchURL: "https://example.gov.cn/websearch.html#search/query={query}"}
	assert.Equal(t,
		"https://example.gov.cn/websearch.html#search/query=%E6%95%B0%E6%8D%AE%20%E5%AE%89%E5%85%A8",
		site.SearchURLFor("数据 安全"))
}

func TestParseSitesValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown engine", "sites:\n  - {region: a, department: b, base_url: 'https://a', engine: rss}\n"},
		{"missing placeholder", "sites:\n  - {region: a, department: b, base_url: 'https://a', engine: maya, search_url: 'https://a/s'}\n"},
		{"listing without urls", "sites:\n  - {region: a, department: b, base_url: 'https://a', engine: listing}\n"},
		{"missing region", "sites:\n  - {department: b, base_url: 'https://a', engine: listing, list_urls: ['https://a']}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSites([]byte(tt.body))
			assert.Error(t, err)
		})
	}
}
