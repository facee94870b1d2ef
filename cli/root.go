// Package cli implements the govdoc command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"govdoc-scraper/adapter"
	"govdoc-scraper/config"
	"govdoc-scraper/logger"
)

// ExitFilterUnavailable is the exit status when a section filter could not
// be applied.
const ExitFilterUnavailable = 2

var (
	cfgFile   string
	sitesFile string
	debug     bool

	rootCmd = &cobra.Command{
		Use:           "govdoc",
		Short:         "Search Chinese government sites for policy documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&sitesFile, "sites", "", "site catalog YAML replacing the built-in one")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(scrapeCommand())
	rootCmd.AddCommand(sitesCommand())
	rootCmd.AddCommand(downloadCommand())
}

// Execute runs the command line and returns the process exit status.
func Execute() int {
	// .env is optional
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if errors.Is(err, adapter.ErrFilterUnavailable) {
			return ExitFilterUnavailable
		}
		return 1
	}
	return 0
}

// loadConfig loads configuration from file or returns defaults
func loadConfig() (*config.Config, error) {
	if _, err := os.Stat(cfgFile); err != nil {
		if cmdFlagChanged("config") {
			return nil, fmt.Errorf("config file not found: %s", cfgFile)
		}
		return config.GetDefaultConfig(), nil
	}
	return config.LoadConfig(cfgFile)
}

func cmdFlagChanged(name string) bool {
	f := rootCmd.PersistentFlags().Lookup(name)
	return f != nil && f.Changed
}

func loadCatalog(cfg *config.Config) (*config.Catalog, error) {
	path := sitesFile
	if path == "" {
		path = cfg.SitesFile
	}
	if path == "" {
		return config.DefaultCatalog()
	}
	return config.LoadSites(path)
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	lc := logger.Config{Level: cfg.Log.Level, Development: cfg.Log.Development}
	if debug {
		lc.Level = "debug"
		lc.Development = true
	}
	return logger.New(lc)
}

// setup loads everything a command needs. The returned cleanup flushes the
// logger.
func setup() (*config.Config, *config.Catalog, logger.Interface, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	cat, err := loadCatalog(cfg)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return cfg, cat, log, func() { _ = log.Sync() }, nil
}
