package cli

import (
	"io"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"govdoc-scraper/config"
)

func sitesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sites",
		Short: "List supported sites and their filter codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cat, err := loadCatalog(cfg)
			if err != nil {
				return err
			}
			renderSites(cmd.OutOrStdout(), cat)
			return nil
		},
	}
}

func renderSites(w io.Writer, cat *config.Catalog) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Region", "Department", "Engine", "Date filters", "Sections"})
	for _, s := range cat.Sites {
		t.AppendRow(table.Row{s.Region, s.Department, s.Engine, codes(s.DateFilterOptions()), codes(s.SectionOptions())})
	}
	t.Render()
}

// codes renders an option map as sorted code=label pairs.
func codes(opts map[string]string) string {
	if len(opts) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + opts[k]
	}
	return strings.Join(parts, "\n")
}
