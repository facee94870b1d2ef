package aggregate

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"govdoc-scraper/models"
)

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d{4})-(\d{1,2})-(\d{1,2})`),
	regexp.MustCompile(`(\d{4})\.(\d{1,2})\.(\d{1,2})`),
	regexp.MustCompile(`(\d{4})/(\d{1,2})/(\d{1,2})`),
	regexp.MustCompile(`(\d{4})年(\d{1,2})月(\d{1,2})日`),
}

// ParseDate finds the first well-formed date in raw. Patterns are tried in
// order; an impossible date (2024-02-30) falls through to the next pattern.
func ParseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, re := range datePatterns {
		for _, m := range re.FindAllStringSubmatch(raw, -1) {
			if t, ok := buildDate(m[1], m[2], m[3]); ok {
				return &t
			}
		}
	}
	return nil
}

func buildDate(ys, ms, ds string) (time.Time, bool) {
	y, _ := strconv.Atoi(ys)
	m, _ := strconv.Atoi(ms)
	d, _ := strconv.Atoi(ds)
	if m < 1 || m > 12 || d < 1 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.Local)
	if t.Day() != d || int(t.Month()) != m {
		return time.Time{}, false
	}
	return t, true
}

// MonthLabel formats the month a document was published, e.g. 2024年06月.
func MonthLabel(t *time.Time) string {
	if t == nil {
		return models.UnknownMonth
	}
	return t.Format("2006年01月")
}
