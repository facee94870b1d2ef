package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"govdoc-scraper/logger"
	"govdoc-scraper/models"
)

func sampleDocs() []models.Document {
	published := time.Date(2024, 6, 1, 0, 0, 0, 0, time.Local)
	return []models.Document{
		{
			Title: "关于印发《数据安全管理办法》的通知", URL: "https://a.gov.cn/1.html",
			PublishDateFull: &published, PublishDateMonth: "2024年06月",
			Publisher: "上海市经济和信息化委员会", DocNumber: "沪经信规〔2024〕3号", Category: models.DefaultCategory,
			MatchedKeywords: []string{"数据", "安全"},
			KeywordContexts: []models.KeywordContext{
				{Keyword: "数据", Context: "加强\n数据安全"},
				{Keyword: "安全", Context: strings.Repeat("安", 150)},
			},
			FullContent: "为加强数据安全管理，现印发办法。",
			Attachments: []models.Attachment{
				{Name: "办法.pdf", URL: "https://a.gov.cn/f1.pdf"},
				{Name: "附件2.docx", URL: "https://a.gov.cn/f2.docx"},
			},
		},
		{
			Title: "无正文公告", URL: "https://a.gov.cn/2.html", PublishDateMonth: models.UnknownMonth,
			Publisher: "上海市经济和信息化委员会", Category: models.DefaultCategory, MatchedKeywords: []string{"数据"},
		},
	}
}

var meta = Meta{
	Region: "上海市", Department: "经济和信息化委员会", Keywords: []string{"数据", "安全"},
	At: time.Date(2024, 6, 2, 9, 30, 0, 0, time.Local),
}

func TestRow(t *testing.T) {
	docs := sampleDocs()
	r := Row(docs[0])
	require.Len(t, r, len(Header))
	assert.Equal(t, "2024-06-01", r[0])
	assert.Equal(t, "2024年06月", r[1])
	assert.Equal(t, "沪经信规〔2024〕3号", r[4])
	assert.Equal(t, "加强 数据安全; "+strings.Repeat("安", 100), r[6])
	assert.Equal(t, "办法.pdf; 附件2.docx", r[8])

	r = Row(docs[1])
	assert.Equal(t, models.UnknownMonth, r[0])
	assert.Empty(t, r[8])
}

func TestBaseName(t *testing.T) {
	m := meta
	m.Keywords = []string{"a", "b", "c", "d"}
	assert.Equal(t, "20240602_093000_上海市_经济和信息化委员会_a_b_c", m.BaseName())
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleDocs()))
	assert.True(t, strings.HasPrefix(buf.String(), utf8BOM))

	records, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(buf.String(), utf8BOM))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, Header, records[0])
	assert.Equal(t, "https://a.gov.cn/1.html", records[1][colURL])
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, WriteXLSX(path, sampleDocs()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, "关于印发《数据安全管理办法》的通知", rows[1][colTitle])

	ok, link, err := f.GetCellHyperLink(SheetName, "H2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "https://a.gov.cn/1.html", link)
}

type fakeSaver struct {
	calls []string
}

func (f *fakeSaver) Download(ctx context.Context, att models.Attachment, dir, filename string) (string, error) {
	f.calls = append(f.calls, att.URL)
	if strings.HasSuffix(att.URL, ".docx") {
		return "", errors.New("404")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, att.Name)
	return path, os.WriteFile(path, []byte("pdf"), 0o644)
}

func TestMarkdownWriter(t *testing.T) {
	root := t.TempDir()
	saver := &fakeSaver{}
	w := &MarkdownWriter{Saver: saver, Log: logger.NewNop()}

	folder, err := w.Write(context.Background(), root, meta, sampleDocs())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, meta.BaseName()), folder)
	assert.Len(t, saver.calls, 2)

	entries, err := os.ReadDir(folder)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	stem := "001_关于印发《数据安全管理办法》的通知"
	assert.ElementsMatch(t, []string{stem + ".md", stem}, names, "documents without content are skipped")

	data, err := os.ReadFile(filepath.Join(folder, stem+".md"))
	require.NoError(t, err)
	md := string(data)
	assert.True(t, strings.HasPrefix(md, "# 关于印发《数据安全管理办法》的通知\n"))
	assert.Contains(t, md, "**发布日期**: 2024-06-01")
	assert.Contains(t, md, "**文件编号**: 沪经信规〔2024〕3号")
	assert.Contains(t, md, "**检索关键词**: 数据, 安全")
	assert.Contains(t, md, "- [办法.pdf](./"+stem+"/办法.pdf)")
	assert.Contains(t, md, "- [附件2.docx](https://a.gov.cn/f2.docx)", "failed download stays remote")
	assert.True(t, strings.HasSuffix(md, "为加强数据安全管理，现印发办法。\n"))
}

func TestMarkdownWriterNothingToWrite(t *testing.T) {
	root := t.TempDir()
	folder, err := (&MarkdownWriter{}).Write(context.Background(), root, meta, sampleDocs()[1:])
	require.NoError(t, err)
	assert.Empty(t, folder)
	entries, _ := os.ReadDir(root)
	assert.Empty(t, entries)
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	PrintTable(&buf, sampleDocs())
	out := buf.String()
	assert.Contains(t, out, "沪经信规〔2024〕3号")
	assert.Contains(t, out, "数据,安全")
	assert.Contains(t, out, "共 2 条")
}
