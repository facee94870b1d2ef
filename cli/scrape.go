package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"govdoc-scraper/config"
	"govdoc-scraper/db"
	"govdoc-scraper/download"
	"govdoc-scraper/logger"
	"govdoc-scraper/models"
	"govdoc-scraper/pager"
	"govdoc-scraper/report"
	"govdoc-scraper/scraper"
	"govdoc-scraper/sheets"
)

type scrapeOptions struct {
	region, department string
	keywords           []string
	start, end         string
	dateFilter         string
	section            string
	noContent          bool
	quotedTitles       bool

	outDir      string
	markdown    bool
	attachments bool
	csvPath     string
	xlsxPath    string
	sheet       string
	store       bool
}

func scrapeCommand() *cobra.Command {
	var o scrapeOptions
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Search one site for keywords and collect matching documents",
		Example: `  govdoc scrape --region 上海市 --department 经济和信息化委员会 -k 数据 -k 人工智能 --start 2024-01-01
  govdoc scrape --region 中国 --department 工业和信息化部 -k 数据 --date-filter 30d --xlsx out.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(cmd.Context(), cmd, o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.region, "region", "", "region, e.g. 上海市 (required)")
	f.StringVar(&o.department, "department", "", "department, e.g. 经济和信息化委员会 (required)")
	f.StringSliceVarP(&o.keywords, "keyword", "k", nil, "search keyword, repeatable (required)")
	f.StringVar(&o.start, "start", "", "earliest publish date, YYYY-MM-DD")
	f.StringVar(&o.end, "end", "", "latest publish date, YYYY-MM-DD")
	f.StringVar(&o.dateFilter, "date-filter", "", "site date filter code, listed by 'govdoc sites'")
	f.StringVar(&o.section, "section", pager.AllOption, "site section code, listed by 'govdoc sites'")
	f.BoolVar(&o.noContent, "no-content", false, "skip reading article pages")
	f.BoolVar(&o.quotedTitles, "quoted-titles", false, "keep only titles naming a document in 《》")
	f.StringVar(&o.outDir, "out", "", "output directory (default download.dir)")
	f.BoolVar(&o.markdown, "markdown", false, "write one Markdown file per document")
	f.BoolVar(&o.attachments, "attachments", false, "download attachments")
	f.StringVar(&o.csvPath, "csv", "", "write results to this CSV file")
	f.StringVar(&o.xlsxPath, "xlsx", "", "write results to this XLSX file")
	f.StringVar(&o.sheet, "sheet", "", "write results to a new Google Sheets tab with this name")
	f.BoolVar(&o.store, "store", false, "save the run to Postgres")
	_ = cmd.MarkFlagRequired("region")
	_ = cmd.MarkFlagRequired("department")
	_ = cmd.MarkFlagRequired("keyword")
	return cmd
}

func parseDay(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return &t, nil
}

func (o scrapeOptions) request() (scraper.Request, error) {
	start, err := parseDay(o.start)
	if err != nil {
		return scraper.Request{}, err
	}
	end, err := parseDay(o.end)
	if err != nil {
		return scraper.Request{}, err
	}
	var kws []string
	for _, k := range o.keywords {
		if k = strings.TrimSpace(k); k != "" {
			kws = append(kws, k)
		}
	}
	req := scraper.NewRequest(o.region, o.department, kws, start)
	req.EndDate = end
	req.DateFilter = o.dateFilter
	req.Section = o.section
	req.FetchContent = !o.noContent
	req.QuotedTitlesOnly = o.quotedTitles
	return req, nil
}

func runScrape(ctx context.Context, cmd *cobra.Command, o scrapeOptions) error {
	cfg, cat, log, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	req, err := o.request()
	if err != nil {
		return err
	}

	s := scraper.New(cfg, cat, log)
	docs, stats, scrapeErr := s.ScrapeWithStats(ctx, req)

	if o.store && stats.RunID != "" {
		if err := storeRun(ctx, cfg, log, req, stats, docs, scrapeErr); err != nil {
			log.Error("failed to store run", logger.KeyError, err)
		}
	}
	if scrapeErr != nil {
		return scrapeErr
	}

	report.PrintTable(cmd.OutOrStdout(), docs)
	if len(docs) == 0 {
		return nil
	}
	return writeOutputs(ctx, cmd, cfg, log, o, req, docs)
}

func writeOutputs(ctx context.Context, cmd *cobra.Command, cfg *config.Config, log logger.Interface,
	o scrapeOptions, req scraper.Request, docs []models.Document) error {
	out := o.outDir
	if out == "" {
		out = cfg.Download.Dir
	}
	meta := report.Meta{Region: req.Region, Department: req.Department, Keywords: req.Keywords, At: time.Now()}
	downloader := download.New(cfg.HTTP, cfg.Download, cfg.Timing.DownloadTimeout, log)

	var errs []error
	switch {
	case o.markdown:
		w := &report.MarkdownWriter{Log: log}
		if o.attachments {
			w.Saver = downloader
		}
		folder, err := w.Write(ctx, out, meta, docs)
		if err != nil {
			errs = append(errs, err)
		} else if folder != "" {
			fmt.Fprintln(cmd.OutOrStdout(), "Markdown:", folder)
		}
	case o.attachments:
		var failed int
		for _, r := range downloader.All(ctx, docs, filepath.Join(out, meta.BaseName())) {
			if r.Err != nil {
				failed++
			}
		}
		if failed > 0 {
			log.Warn("some attachments could not be downloaded", "failed", failed)
		}
	}

	if o.csvPath != "" {
		if err := report.SaveCSV(o.csvPath, docs); err != nil {
			errs = append(errs, err)
		}
	}
	if o.xlsxPath != "" {
		if err := report.WriteXLSX(o.xlsxPath, docs); err != nil {
			errs = append(errs, err)
		}
	}
	if o.sheet != "" {
		w, err := sheets.NewWriter(ctx, cfg.Sheets, log)
		if err == nil {
			_, _, err = w.CreateSheetAndWriteDocuments(ctx, o.sheet, docs, meta)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func storeRun(ctx context.Context, cfg *config.Config, log logger.Interface, req scraper.Request,
	stats scraper.Stats, docs []models.Document, scrapeErr error) error {
	// A cancelled crawl is still recorded.
	ctx = context.WithoutCancel(ctx)
	store, err := db.Open(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer store.Close()

	run := &db.Run{
		ID:         stats.RunID,
		Region:     req.Region,
		Department: req.Department,
		Keywords:   req.Keywords,
	}
	run.DateFilter.String, run.DateFilter.Valid = req.DateFilter, req.DateFilter != ""
	run.Section.String, run.Section.Valid = req.Section, req.Section != ""
	if err := store.CreateRun(ctx, run); err != nil {
		return err
	}
	if len(docs) > 0 {
		if err := store.SaveDocuments(ctx, run.ID, docs); err != nil {
			_ = store.FinishRun(ctx, run.ID, 0, err)
			return err
		}
	}
	return store.FinishRun(ctx, run.ID, len(docs), scrapeErr)
}
