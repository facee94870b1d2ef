package models

import "time"

// SearchCandidate is one hit read off a search result page, before its
// article is fetched. URL is the natural key.
type SearchCandidate struct {
	Title       string
	URL         string // absolute
	RawDateText string
	ParsedDate  *time.Time // nil when the date marker could not be parsed
	Keyword     string     // keyword whose search produced the hit
	Summary     string     // result snippet, when the engine renders one
	PageNumber  int        // result page the hit was found on
}

// Document is a candidate that survived dedupe and date filtering, enriched
// with extracted content.
type Document struct {
	Title            string
	URL              string
	PublishDateFull  *time.Time
	PublishDateMonth string // e.g. "2024年06月", or UnknownMonth
	Publisher        string
	DocNumber        string
	Category         string
	MatchedKeywords  []string
	KeywordContexts  []KeywordContext
	FullContent      string // empty when not fetched or nothing was extracted
	Attachments      []Attachment
}

// UnknownMonth labels documents without a parsed date.
const UnknownMonth = "未知"

// DefaultCategory is assigned to documents discovered through site search.
const DefaultCategory = "搜索结果"

// KeywordContext is a bounded snippet of text around one keyword hit.
type KeywordContext struct {
	Keyword string
	Context string
}

// Attachment is a document-like link found on an article page.
// URL is absolute and unique within one Document.
type Attachment struct {
	Name       string
	URL        string
	FileType   string // lower-case extension without dot, e.g. "pdf"
	SizeBytes  *int64
	NameSource NameSource
}

// NameSource records where an attachment's display name came from.
type NameSource string

const (
	NameFromAnchor   NameSource = "anchor"
	NameFromURL      NameSource = "url"
	NameFromFallback NameSource = "fallback"
)
