// Package report renders crawl results as Markdown, CSV, XLSX and terminal
// tables.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jedib0t/go-pretty/v6/table"

	"govdoc-scraper/download"
	"govdoc-scraper/models"
)

// Header is the column order shared by every tabular writer.
var Header = []string{"发布日期", "发布年月", "发布机构", "文件名称", "文件编号", "分类", "关键词匹配", "原文链接", "附件"}

const (
	// Columns of Header referenced by the writers.
	colTitle = 3
	colURL   = 7

	summaryContexts = 3
	summaryRunes    = 100
)

// Row renders doc in Header order.
func Row(doc models.Document) []string {
	date := doc.PublishDateMonth
	if doc.PublishDateFull != nil {
		date = doc.PublishDateFull.Format(time.DateOnly)
	}
	if date == "" {
		date = models.UnknownMonth
	}
	month := doc.PublishDateMonth
	if month == "" {
		month = models.UnknownMonth
	}
	names := make([]string, 0, len(doc.Attachments))
	for _, att := range doc.Attachments {
		names = append(names, att.Name)
	}
	return []string{
		date,
		month,
		doc.Publisher,
		doc.Title,
		doc.DocNumber,
		doc.Category,
		ContextSummary(doc.KeywordContexts),
		doc.URL,
		strings.Join(names, "; "),
	}
}

// ContextSummary joins the first few contexts, each cut short, on one line.
func ContextSummary(contexts []models.KeywordContext) string {
	parts := make([]string, 0, summaryContexts)
	for i, c := range contexts {
		if i == summaryContexts {
			break
		}
		parts = append(parts, truncate(c.Context, summaryRunes))
	}
	return strings.ReplaceAll(strings.Join(parts, "; "), "\n", " ")
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// Meta describes the crawl a report came from.
type Meta struct {
	Region     string
	Department string
	Keywords   []string
	At         time.Time
}

// BaseName is the stem used for files and folders of one crawl:
// timestamp, region, department and the first keywords.
func (m Meta) BaseName() string {
	kws := m.Keywords
	if len(kws) > 3 {
		kws = kws[:3]
	}
	return download.Sanitize(fmt.Sprintf("%s_%s_%s_%s",
		m.At.Format("20060102_150405"), m.Region, m.Department, strings.Join(kws, "_")))
}

// PrintTable writes a compact overview of docs to w.
func PrintTable(w io.Writer, docs []models.Document) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "发布日期", "文件名称", "文件编号", "关键词", "附件"})
	for i, doc := range docs {
		r := Row(doc)
		t.AppendRow(table.Row{i + 1, r[0], truncate(doc.Title, 40), doc.DocNumber,
			strings.Join(doc.MatchedKeywords, ","), len(doc.Attachments)})
	}
	t.AppendFooter(table.Row{"", "", fmt.Sprintf("共 %d 条", len(docs))})
	t.Render()
}
