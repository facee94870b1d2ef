package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"govdoc-scraper/download"
	"govdoc-scraper/models"
)

func downloadCommand() *cobra.Command {
	var dir, name string
	cmd := &cobra.Command{
		Use:   "download URL",
		Short: "Download a single attachment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, log, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()

			if dir == "" {
				dir = cfg.Download.Dir
			}
			d := download.New(cfg.HTTP, cfg.Download, cfg.Timing.DownloadTimeout, log)
			att := models.Attachment{URL: args[0], NameSource: models.NameFromURL}
			path, err := d.Download(cmd.Context(), att, dir, name)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "target directory (default download.dir)")
	cmd.Flags().StringVar(&name, "name", "", "file name (default from the server or URL)")
	return cmd
}
