package aggregate

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"govdoc-scraper/models"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.Local)
	return &t
}

func TestDedupeAcrossKeywords(t *testing.T) {
	in := []models.SearchCandidate{
		{Title: "A", URL: "https://x.gov.cn/a.html", Keyword: "数据"},
		{Title: "B", URL: "https://x.gov.cn/b.html", Keyword: "数据"},
		{Title: "A again", URL: "https://x.gov.cn/a.html", Keyword: "安全"},
		{Title: "C", URL: "https://x.gov.cn/c.html", Keyword: "安全"},
	}

	got := Dedupe(in)
	if len(got) != 3 {
		t.Fatalf("Dedupe() returned %d candidates, want 3", len(got))
	}
	if got[0].Title != "A" {
		t.Errorf("first occurrence should win, got %q", got[0].Title)
	}
	seen := map[string]bool{}
	for _, c := range got {
		if seen[c.URL] {
			t.Errorf("duplicate url %s in output", c.URL)
		}
		seen[c.URL] = true
	}

	kws := KeywordsByURL(in)
	if want := []string{"数据", "安全"}; !reflect.DeepEqual(kws["https://x.gov.cn/a.html"], want) {
		t.Errorf("KeywordsByURL(a) = %v, want %v", kws["https://x.gov.cn/a.html"], want)
	}
}

func TestFilterByDate(t *testing.T) {
	in := []models.SearchCandidate{
		{URL: "jan", ParsedDate: date(2024, 1, 1)},
		{URL: "jun", ParsedDate: date(2024, 6, 1)},
		{URL: "undated"},
	}
	got := FilterByDate(in, date(2024, 3, 1), date(2024, 12, 31))

	var urls []string
	for _, c := range got {
		urls = append(urls, c.URL)
	}
	if want := []string{"jun", "undated"}; !reflect.DeepEqual(urls, want) {
		t.Errorf("FilterByDate() = %v, want %v", urls, want)
	}
}

func TestFilterByDateInclusiveBounds(t *testing.T) {
	start := time.Date(2024, 3, 1, 15, 30, 0, 0, time.Local)
	in := []models.SearchCandidate{
		{URL: "start", ParsedDate: date(2024, 3, 1)},
		{URL: "end", ParsedDate: date(2024, 12, 31)},
		{URL: "after", ParsedDate: date(2025, 1, 1)},
	}
	got := FilterByDate(in, &start, date(2024, 12, 31))
	if len(got) != 2 {
		t.Fatalf("got %d candidates, want both bound days kept", len(got))
	}

	if open := FilterByDate(in, nil, nil); len(open) != 3 {
		t.Errorf("open range dropped candidates: %d", len(open))
	}
}

func TestQuotedTitlesOnly(t *testing.T) {
	f := Filter{QuotedTitlesOnly: true}
	in := []models.SearchCandidate{
		{URL: "1", Title: "关于印发《数据安全管理办法》的通知"},
		{URL: "2", Title: "数据安全工作动态"},
		{URL: "3", Title: "》倒置《"},
	}
	got := f.Apply(in)
	if len(got) != 1 || got[0].URL != "1" {
		t.Errorf("Apply() = %+v, want only the quoted title", got)
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want *time.Time
	}{
		{"dashes", "2024-06-01", date(2024, 6, 1)},
		{"single digits", "发布时间：2024-6-1 10:00", date(2024, 6, 1)},
		{"dots", "2023.12.05", date(2023, 12, 5)},
		{"slashes", "2022/1/9", date(2022, 1, 9)},
		{"chinese", "2024年3月15日", date(2024, 3, 15)},
		{"impossible falls through", "2024-02-30 / 2024年2月28日", date(2024, 2, 28)},
		{"empty", "  ", nil},
		{"no date", "最近更新", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDate(tt.in)
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("ParseDate(%q) = %v, want nil", tt.in, got)
			case tt.want != nil && (got == nil || !got.Equal(*tt.want)):
				t.Errorf("ParseDate(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestMonthLabel(t *testing.T) {
	if got := MonthLabel(date(2024, 6, 1)); got != "2024年06月" {
		t.Errorf("MonthLabel() = %q", got)
	}
	if got := MonthLabel(nil); got != models.UnknownMonth {
		t.Errorf("MonthLabel(nil) = %q", got)
	}
}

func TestBuildKeywordContexts(t *testing.T) {
	text := strings.Repeat("甲", 150) + "Data安全" + strings.Repeat("乙", 20) + "data" + strings.Repeat("丙", 150)

	got := BuildKeywordContexts(text, "data", 3, 200)
	if len(got) != 2 {
		t.Fatalf("got %d contexts, want 2", len(got))
	}
	first := got[0].Context
	if !strings.HasPrefix(first, "...") || !strings.HasSuffix(first, "...") {
		t.Errorf("truncated window should carry ellipses: %q", first)
	}
	if !strings.Contains(first, "【Data】") {
		t.Errorf("match should keep original case inside markers: %q", first)
	}
	if !strings.Contains(first, "【data】") {
		t.Errorf("every hit in the window is marked: %q", first)
	}
	if got[0].Keyword != "data" {
		t.Errorf("keyword = %q", got[0].Keyword)
	}

	// Window is 100 runes either side of the hit plus markers and ellipses.
	body := strings.TrimSuffix(strings.TrimPrefix(first, "..."), "...")
	body = strings.NewReplacer("【", "", "】", "").Replace(body)
	if n := len([]rune(body)); n != 204 {
		t.Errorf("window length = %d runes, want 204", n)
	}
}

func TestBuildKeywordContextsLimits(t *testing.T) {
	text := strings.Repeat("政策 ", 10)
	if got := BuildKeywordContexts(text, "政策", 3, 200); len(got) != 3 {
		t.Errorf("maxOccurrences not honoured: %d", len(got))
	}
	short := BuildKeywordContexts("政策", "政策", 3, 200)
	if len(short) != 1 || short[0].Context != "【政策】" {
		t.Errorf("short text = %+v", short)
	}
	if got := BuildKeywordContexts("", "政策", 3, 200); got != nil {
		t.Errorf("empty text should give nil, got %+v", got)
	}
	if got := BuildKeywordContexts("aaaa", "aa", 5, 2); len(got) != 2 {
		t.Errorf("hits must not overlap: %d", len(got))
	}
}

func TestDocNumber(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"关于印发《数据安全管理办法》的通知（工信部联规〔2023〕12号）", "工信部联规〔2023〕12号"},
		{"各区经委：\n沪经信规[2024] 3号\n现将办法印发给你们", "沪经信规[2024]3号"},
		{"发改高技（2022）第108号", "发改高技（2022）第108号"},
		{"没有文号的新闻", ""},
	}
	for _, tt := range tests {
		if got := DocNumber(tt.in); got != tt.want {
			t.Errorf("DocNumber(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
