package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the run configuration read from config.yaml.
type Config struct {
	Timing   Timing         `yaml:"timing"`
	Browser  BrowserConfig  `yaml:"browser"`
	HTTP     HTTPConfig     `yaml:"http"`
	Extract  ExtractConfig  `yaml:"extract"`
	Download DownloadConfig `yaml:"download"`
	Log      LogConfig      `yaml:"log"`
	Sheets   SheetsConfig   `yaml:"sheets"`
	Database DatabaseConfig `yaml:"database"`
	// SitesFile replaces the embedded site catalog when set.
	SitesFile string `yaml:"sites_file"`
}

// BrowserConfig controls how the headless browser is launched.
type BrowserConfig struct {
	Headless    bool   `yaml:"headless"`
	UserDataDir string `yaml:"user_data_dir"`
	// Bin forces a browser binary and skips the acquisition tiers.
	Bin string `yaml:"bin"`
}

// HTTPConfig controls the static fetcher used when no browser is available.
type HTTPConfig struct {
	UserAgent   string `yaml:"user_agent"`
	InsecureTLS bool   `yaml:"insecure_tls"`
	Parallelism int    `yaml:"parallelism"`
}

// ExtractConfig toggles the optional extraction stages.
type ExtractConfig struct {
	Readability bool `yaml:"readability"`
	Sanitize    bool `yaml:"sanitize"`
}

// DownloadConfig bounds attachment transfers.
type DownloadConfig struct {
	Dir      string `yaml:"dir"`
	MaxBytes int64  `yaml:"max_bytes"`
}

// LogConfig selects the zap encoder and level.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// SheetsConfig points the Sheets exporter at a spreadsheet.
type SheetsConfig struct {
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	CredentialsPath string `yaml:"credentials_path"`
}

// DatabaseConfig locates the Postgres store. URL wins over the parts.
type DatabaseConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
	Schema   string `yaml:"schema"`
}

// DSN returns the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s search_path=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode, d.Schema)
}

// DefaultUserAgent is sent by the static fetcher and the downloader.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// LoadConfig loads configuration from a YAML file. Keys missing from the
// file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := GetDefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GetDefaultConfig returns a default configuration
func GetDefaultConfig() *Config {
	cfg := &Config{
		Timing: DefaultTiming(),
		Browser: BrowserConfig{
			Headless: true,
		},
		HTTP: HTTPConfig{
			UserAgent:   DefaultUserAgent,
			InsecureTLS: true,
			Parallelism: 1,
		},
		Extract: ExtractConfig{
			Readability: true,
			Sanitize:    true,
		},
		Download: DownloadConfig{
			Dir:      "downloads",
			MaxBytes: 200 << 20,
		},
		Log: LogConfig{
			Level: "info",
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    "5432",
			User:    "govdoc",
			Name:    "govdoc",
			SSLMode: "disable",
			Schema:  "govdoc_scraper",
		},
	}
	cfg.applyEnv()
	return cfg
}

// applyEnv lets the environment override file values.
func (c *Config) applyEnv() {
	if dir := os.Getenv("BROWSER_DATA_DIR"); dir != "" {
		c.Browser.UserDataDir = dir
	}
	if id := os.Getenv("GOOGLE_SHEETS_SPREADSHEET_ID"); id != "" {
		c.Sheets.SpreadsheetID = id
	}

	db := &c.Database
	for env, field := range map[string]*string{
		"DATABASE_URL": &db.URL,
		"DB_HOST":      &db.Host,
		"DB_PORT":      &db.Port,
		"DB_USER":      &db.User,
		"DB_PASSWORD":  &db.Password,
		"DB_NAME":      &db.Name,
		"DB_SSLMODE":   &db.SSLMode,
	} {
		if v := os.Getenv(env); v != "" {
			*field = v
		}
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if err := c.Timing.Validate(); err != nil {
		return fmt.Errorf("invalid timing config: %w", err)
	}
	if c.HTTP.Parallelism < 1 {
		return fmt.Errorf("http.parallelism must be at least 1, got %d", c.HTTP.Parallelism)
	}
	if c.Download.MaxBytes < 0 {
		return fmt.Errorf("download.max_bytes must not be negative")
	}
	return nil
}
