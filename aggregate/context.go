package aggregate

import (
	"unicode"

	"govdoc-scraper/models"
)

const (
	DefaultMaxOccurrences = 3
	DefaultWindowChars    = 200

	highlightOpen  = "【"
	highlightClose = "】"
	ellipsis       = "..."
)

// BuildKeywordContexts returns up to maxOccurrences snippets of text around
// case-insensitive hits of keyword. Each snippet spans windowChars runes
// centered on the hit, marks cut edges with "..." and wraps every hit it
// contains in 【】. Hits do not overlap: scanning resumes after each match.
func BuildKeywordContexts(text, keyword string, maxOccurrences, windowChars int) []models.KeywordContext {
	if text == "" || keyword == "" || maxOccurrences <= 0 {
		return nil
	}

	runes := []rune(text)
	lower := foldRunes(runes)
	kw := foldRunes([]rune(keyword))
	half := windowChars / 2

	var out []models.KeywordContext
	cursor := 0
	for len(out) < maxOccurrences {
		pos := indexRunes(lower, kw, cursor)
		if pos < 0 {
			break
		}
		start := max(0, pos-half)
		end := min(len(runes), pos+len(kw)+half)

		snippet := highlight(runes[start:end], lower[start:end], kw)
		if start > 0 {
			snippet = ellipsis + snippet
		}
		if end < len(runes) {
			snippet += ellipsis
		}
		out = append(out, models.KeywordContext{Keyword: keyword, Context: snippet})
		cursor = pos + len(kw)
	}
	return out
}

// ContextsFor runs BuildKeywordContexts for each keyword with the defaults.
func ContextsFor(text string, keywords []string) []models.KeywordContext {
	var out []models.KeywordContext
	for _, kw := range keywords {
		out = append(out, BuildKeywordContexts(text, kw, DefaultMaxOccurrences, DefaultWindowChars)...)
	}
	return out
}

// foldRunes lower-cases rune by rune so indexes line up with the original.
func foldRunes(rs []rune) []rune {
	out := make([]rune, len(rs))
	for i, r := range rs {
		out[i] = unicode.ToLower(r)
	}
	return out
}

func indexRunes(haystack, needle []rune, from int) int {
	if len(needle) == 0 {
		return -1
	}
	for i := from; i+len(needle) <= len(haystack); i++ {
		if runesEqual(haystack[i:i+len(needle)], needle) {
			return i
		}
	}
	return -1
}

func runesEqual(a, b []rune) bool {
	for i := range b {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func highlight(orig, lower, kw []rune) string {
	var b []rune
	for i := 0; i < len(orig); {
		if i+len(kw) <= len(orig) && runesEqual(lower[i:i+len(kw)], kw) {
			b = append(b, []rune(highlightOpen)...)
			b = append(b, orig[i:i+len(kw)]...)
			b = append(b, []rune(highlightClose)...)
			i += len(kw)
			continue
		}
		b = append(b, orig[i])
		i++
	}
	return string(b)
}
