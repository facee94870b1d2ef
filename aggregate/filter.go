// Package aggregate merges the candidates of a multi-keyword run: dedupe by
// URL, date-range filtering and keyword context snippets.
package aggregate

import (
	"strings"
	"time"

	"govdoc-scraper/models"
)

// Dedupe keeps the first candidate seen for each URL, preserving order.
func Dedupe(candidates []models.SearchCandidate) []models.SearchCandidate {
	seen := make(map[string]bool, len(candidates))
	out := make([]models.SearchCandidate, 0, len(candidates))
	for _, c := range candidates {
		if seen[c.URL] {
			continue
		}
		seen[c.URL] = true
		out = append(out, c)
	}
	return out
}

// KeywordsByURL collects, per URL, every keyword that found it, in the
// order the keywords were searched.
func KeywordsByURL(candidates []models.SearchCandidate) map[string][]string {
	out := make(map[string][]string)
	for _, c := range candidates {
		if c.Keyword == "" {
			continue
		}
		kws := out[c.URL]
		dup := false
		for _, k := range kws {
			if k == c.Keyword {
				dup = true
				break
			}
		}
		if !dup {
			out[c.URL] = append(kws, c.Keyword)
		}
	}
	return out
}

// Filter applies the date range and title policy to candidates.
type Filter struct {
	Start *time.Time
	End   *time.Time
	// QuotedTitlesOnly keeps only titles naming a document in 《》.
	QuotedTitlesOnly bool
}

// Apply filters candidates by the configured criteria
func (f *Filter) Apply(candidates []models.SearchCandidate) []models.SearchCandidate {
	var filtered []models.SearchCandidate
	for _, c := range candidates {
		if f.matches(c) {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

func (f *Filter) matches(c models.SearchCandidate) bool {
	// Undated candidates are kept: absence of a date is not a reason to
	// exclude, only a parsed date outside the range is.
	if c.ParsedDate != nil && !InRange(*c.ParsedDate, f.Start, f.End) {
		return false
	}
	if f.QuotedTitlesOnly && !TitleHasBookQuotes(c.Title) {
		return false
	}
	return true
}

// FilterByDate keeps candidates whose parsed date lies in [start, end] by
// calendar day. A nil bound is open. Undated candidates pass through.
func FilterByDate(candidates []models.SearchCandidate, start, end *time.Time) []models.SearchCandidate {
	f := Filter{Start: start, End: end}
	return f.Apply(candidates)
}

// InRange reports whether t falls within [start, end] by calendar day.
func InRange(t time.Time, start, end *time.Time) bool {
	d := day(t)
	if start != nil && d.Before(day(*start)) {
		return false
	}
	if end != nil && d.After(day(*end)) {
		return false
	}
	return true
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TitleHasBookQuotes reports whether title contains a 《…》 pair, which on
// these sites marks titles that name a formal document.
func TitleHasBookQuotes(title string) bool {
	open := strings.Index(title, "《")
	return open >= 0 && strings.Contains(title[open:], "》")
}
