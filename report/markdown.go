package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"govdoc-scraper/download"
	"govdoc-scraper/logger"
	"govdoc-scraper/models"
)

const maxTitleRunes = 100

// Saver downloads one attachment into dir. *download.Downloader satisfies it.
type Saver interface {
	Download(ctx context.Context, att models.Attachment, dir, filename string) (string, error)
}

// MarkdownWriter writes one Markdown file per document with content.
type MarkdownWriter struct {
	// Saver downloads attachments next to their document. Nil keeps
	// attachment links remote.
	Saver Saver
	Log   logger.Interface
}

// Write creates root/<meta.BaseName()>/ holding NNN_<title>.md files, plus a
// NNN_<title>/ folder for each document that has attachments. Documents
// without content are skipped. It returns the created folder, or "" when
// nothing had content.
func (w *MarkdownWriter) Write(ctx context.Context, root string, meta Meta, docs []models.Document) (string, error) {
	var withContent int
	for _, d := range docs {
		if strings.TrimSpace(d.FullContent) != "" {
			withContent++
		}
	}
	if withContent == 0 {
		return "", nil
	}

	folder := filepath.Join(root, meta.BaseName())
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report folder: %w", err)
	}

	for i, doc := range docs {
		if strings.TrimSpace(doc.FullContent) == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return folder, err
		}
		stem := fmt.Sprintf("%03d_%s", i+1, download.Sanitize(truncate(doc.Title, maxTitleRunes)))
		links := w.attachmentLinks(ctx, folder, stem, doc.Attachments)
		body := Markdown(doc, meta, links)
		if err := os.WriteFile(filepath.Join(folder, stem+".md"), []byte(body), 0o644); err != nil {
			return folder, fmt.Errorf("failed to write %s.md: %w", stem, err)
		}
	}
	return folder, nil
}

// attachmentLinks downloads attachments into folder/stem and returns the
// link target per attachment, local when the download worked.
func (w *MarkdownWriter) attachmentLinks(ctx context.Context, folder, stem string, atts []models.Attachment) []string {
	links := make([]string, len(atts))
	for i, att := range atts {
		links[i] = att.URL
		if w.Saver == nil || att.URL == "" {
			continue
		}
		path, err := w.Saver.Download(ctx, att, filepath.Join(folder, stem), "")
		if err != nil {
			if w.Log != nil {
				w.Log.Warn("attachment kept as remote link", logger.KeyURL, att.URL, logger.KeyError, err)
			}
			continue
		}
		if rel, err := filepath.Rel(folder, path); err == nil {
			links[i] = "./" + filepath.ToSlash(rel)
		}
	}
	return links
}

// Markdown renders one document. links are the targets for doc.Attachments
// in order; nil uses the attachment URLs.
func Markdown(doc models.Document, meta Meta, links []string) string {
	date := doc.PublishDateMonth
	if doc.PublishDateFull != nil {
		date = doc.PublishDateFull.Format(time.DateOnly)
	}
	at := meta.At
	if at.IsZero() {
		at = time.Now()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", doc.Title)
	fmt.Fprintf(&b, "**发布日期**: %s\n", date)
	fmt.Fprintf(&b, "**发布机构**: %s\n", doc.Publisher)
	if doc.DocNumber != "" {
		fmt.Fprintf(&b, "**文件编号**: %s\n", doc.DocNumber)
	}
	fmt.Fprintf(&b, "**原文链接**: [%s](%s)\n", doc.URL, doc.URL)
	fmt.Fprintf(&b, "**检索时间**: %s\n", at.Format(time.DateTime))
	fmt.Fprintf(&b, "**检索关键词**: %s\n", strings.Join(meta.Keywords, ", "))

	if len(doc.Attachments) > 0 {
		b.WriteString("\n**附件:**\n")
		for i, att := range doc.Attachments {
			target := att.URL
			if i < len(links) && links[i] != "" {
				target = links[i]
			}
			if target == "" {
				fmt.Fprintf(&b, "- %s\n", att.Name)
				continue
			}
			fmt.Fprintf(&b, "- [%s](%s)\n", att.Name, target)
		}
	}

	b.WriteString("\n---\n\n")
	b.WriteString(doc.FullContent)
	b.WriteString("\n")
	return b.String()
}
