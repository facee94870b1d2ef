// Package download saves attachment files to disk.
package download

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"govdoc-scraper/config"
	"govdoc-scraper/logger"
	"govdoc-scraper/models"
)

// ErrTooLarge is returned when a body exceeds the configured size limit.
var ErrTooLarge = errors.New("attachment exceeds size limit")

// DownloadFailure reports an attachment that could not be saved.
type DownloadFailure struct {
	URL string
	Err error
}

func (e *DownloadFailure) Error() string {
	return fmt.Sprintf("failed to download %s: %v", e.URL, e.Err)
}

func (e *DownloadFailure) Unwrap() error { return e.Err }

// Downloader streams attachments over HTTP.
type Downloader struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	log       logger.Interface
}

// New creates a Downloader. timeout bounds each whole transfer.
func New(httpCfg config.HTTPConfig, cfg config.DownloadConfig, timeout time.Duration, log logger.Interface) *Downloader {
	ua := httpCfg.UserAgent
	if ua == "" {
		ua = config.DefaultUserAgent
	}
	transport := &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{InsecureSkipVerify: httpCfg.InsecureTLS}, //nolint:gosec // many government hosts serve broken chains
	}
	return &Downloader{
		client:    &http.Client{Timeout: timeout, Transport: transport},
		userAgent: ua,
		maxBytes:  cfg.MaxBytes,
		log:       log,
	}
}

// Download saves att under targetDir and returns the written path. An empty
// filename lets the server's Content-Disposition name the file unless the
// name already came from the link text.
func (d *Downloader) Download(ctx context.Context, att models.Attachment, targetDir, filename string) (string, error) {
	path, err := d.download(ctx, att, targetDir, filename)
	if err != nil {
		return "", &DownloadFailure{URL: att.URL, Err: err}
	}
	return path, nil
}

func (d *Downloader) download(ctx context.Context, att models.Attachment, targetDir, filename string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, att.URL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if d.maxBytes > 0 && resp.ContentLength > d.maxBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrTooLarge, resp.ContentLength)
	}

	body := bufio.NewReaderSize(resp.Body, 3072)
	head, _ := body.Peek(3072)

	name := chooseName(att, filename, resp.Header.Get("Content-Disposition"))
	if filepath.Ext(name) == "" {
		name += mimetype.Detect(head).Extension()
	}
	name = Sanitize(name)

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	final := filepath.Join(targetDir, name)
	tmp := final + ".tmp"

	n, err := d.write(tmp, body)
	if err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to move file into place: %w", err)
	}

	d.log.Info("attachment saved", logger.KeyURL, att.URL, "path", final, "bytes", n)
	return final, nil
}

func (d *Downloader) write(path string, r io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	src := r
	if d.maxBytes > 0 {
		src = io.LimitReader(r, d.maxBytes+1)
	}
	n, err := io.Copy(f, src)
	if err != nil {
		return n, fmt.Errorf("failed to write file: %w", err)
	}
	if d.maxBytes > 0 && n > d.maxBytes {
		return n, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, d.maxBytes)
	}
	if err := f.Sync(); err != nil {
		return n, fmt.Errorf("failed to sync file: %w", err)
	}
	return n, nil
}

// chooseName picks the file name: explicit name, link text, server hint,
// URL basename, then a generic default.
func chooseName(att models.Attachment, filename, disposition string) string {
	if filename != "" {
		return filename
	}
	if att.NameSource == models.NameFromAnchor && att.Name != "" {
		return att.Name
	}
	if hint := FilenameFromDisposition(disposition); hint != "" {
		return hint
	}
	if base := urlBasename(att.URL); base != "" {
		return base
	}
	if att.Name != "" {
		return att.Name
	}
	return defaultName
}

// Result is the outcome of one attachment in a batch.
type Result struct {
	Attachment models.Attachment
	Path       string
	Err        error
}

// All downloads every attachment of docs into per-document folders under
// targetDir. Failures are reported per attachment and never stop the batch.
func (d *Downloader) All(ctx context.Context, docs []models.Document, targetDir string) []Result {
	var out []Result
	for _, doc := range docs {
		dir := filepath.Join(targetDir, Sanitize(truncateRunes(doc.Title, 80)))
		for _, att := range doc.Attachments {
			if ctx.Err() != nil {
				out = append(out, Result{Attachment: att, Err: &DownloadFailure{URL: att.URL, Err: ctx.Err()}})
				continue
			}
			path, err := d.Download(ctx, att, dir, "")
			if err != nil {
				d.log.Warn("attachment download failed", logger.KeyURL, att.URL, logger.KeyError, err)
			}
			out = append(out, Result{Attachment: att, Path: path, Err: err})
		}
	}
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}
