package extractor

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"govdoc-scraper/models"
)

// DocumentExtensions are the file types treated as attachments.
var DocumentExtensions = []string{
	".doc", ".docx", ".pdf", ".xls", ".xlsx", ".ppt", ".pptx",
	".zip", ".rar", ".txt", ".csv", ".xml",
}

var (
	// Anchors whose text contains any of these are navigation, not files.
	excludedLinkText = []string{">", "搜索", "网站地图", "首页", "返回", "上一页", "下一页"}
	excludedHref     = []string{"search", "query", "index.html", "wzdt", "jiucuo"}
	genericNames     = map[string]bool{"附件": true, "下载": true, "点击下载": true, "查看": true, "打开": true}
)

// ScanAttachments lists document links in doc, resolved against pageURL and
// unique by URL. Order follows the page.
func ScanAttachments(doc *goquery.Document, pageURL string) []models.Attachment {
	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}

	var out []models.Attachment
	seen := map[string]bool{}
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		text := strings.TrimSpace(a.Text())
		if skipLink(href, text) {
			return
		}
		ext := documentExtension(href)
		if ext == "" {
			return
		}

		abs := resolve(base, href)
		if abs == "" || seen[abs] {
			return
		}
		seen[abs] = true

		name, source := attachmentName(text, href, ext, len(out)+1)
		out = append(out, models.Attachment{
			Name:       name,
			URL:        abs,
			FileType:   strings.TrimPrefix(ext, "."),
			NameSource: source,
		})
	})
	return out
}

func skipLink(href, text string) bool {
	lower := strings.ToLower(href)
	if lower == "" || strings.HasPrefix(lower, "#") || strings.HasPrefix(lower, "javascript:") {
		return true
	}
	for _, kw := range excludedLinkText {
		if strings.Contains(text, kw) {
			return true
		}
	}
	for _, p := range excludedHref {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// documentExtension returns the allow-listed extension of href's path,
// ignoring any query string.
func documentExtension(href string) string {
	clean, _, _ := strings.Cut(strings.ToLower(href), "?")
	clean, _, _ = strings.Cut(clean, "#")
	for _, ext := range DocumentExtensions {
		if strings.HasSuffix(clean, ext) {
			return ext
		}
	}
	return ""
}

func resolve(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return ref.String()
	}
	if base == nil || !base.IsAbs() {
		return ""
	}
	return base.ResolveReference(ref).String()
}

func attachmentName(text, href, ext string, n int) (string, models.NameSource) {
	if text != "" && !genericNames[text] {
		return withExtension(text, ext), models.NameFromAnchor
	}

	raw, _, _ := strings.Cut(href, "?")
	basename := path.Base(raw)
	if decoded, err := url.PathUnescape(basename); err == nil {
		basename = decoded
	}
	if basename != "" && basename != "." && basename != "/" && strings.Contains(basename, ".") {
		return basename, models.NameFromURL
	}
	return withExtension(fmt.Sprintf("附件_%d", n), ext), models.NameFromFallback
}

func withExtension(name, ext string) string {
	if strings.HasSuffix(strings.ToLower(name), ext) {
		return name
	}
	return name + ext
}
