package config

import (
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed sites.yaml
var defaultSites []byte

// Engine names a family of sites that share one search UI.
type Engine string

const (
	EngineMaya    Engine = "maya"
	EngineMIIT    Engine = "miit"
	EngineNDRC    Engine = "ndrc"
	EngineListing Engine = "listing"
)

// QueryPlaceholder is replaced by the escaped keyword in SearchURL.
const QueryPlaceholder = "{query}"

// Option is one selectable filter value on a site.
type Option struct {
	Code  string `yaml:"code"`
	Label string `yaml:"label"`
	// Value is the engine-side value when it differs from Code.
	Value string `yaml:"value,omitempty"`
}

// ListPatterns describe the markup of a static listing page.
type ListPatterns struct {
	Item  string `yaml:"item"`
	Title string `yaml:"title"`
	Date  string `yaml:"date"`
}

// Site is the immutable description of one supported site.
type Site struct {
	Region           string        `yaml:"region"`
	Department       string        `yaml:"department"`
	Name             string        `yaml:"name"`
	Engine           Engine        `yaml:"engine"`
	BaseURL          string        `yaml:"base_url"`
	SearchURL        string        `yaml:"search_url"`
	SearchBase       string        `yaml:"search_base"`
	ContentSelectors []string      `yaml:"content_selectors"`
	DateFilters      []Option      `yaml:"date_filters"`
	Sections         []Option      `yaml:"sections"`
	ListURLs         []string      `yaml:"list_urls"`
	ListPatterns     ListPatterns  `yaml:"list_patterns"`
	SearchSettle     time.Duration `yaml:"search_settle"`
	Static           bool          `yaml:"static"`
}

// SearchURLFor fills the query placeholder with kw, escaped the way the
// sites' own search boxes do (spaces as %20).
func (s Site) SearchURLFor(kw string) string {
	escaped := strings.ReplaceAll(url.QueryEscape(kw), "+", "%20")
	return strings.ReplaceAll(s.SearchURL, QueryPlaceholder, escaped)
}

// DateFilterOptions returns code→label for the site's date filters.
func (s Site) DateFilterOptions() map[string]string {
	return optionMap(s.DateFilters)
}

// SectionOptions returns code→label for the site's section filters.
func (s Site) SectionOptions() map[string]string {
	return optionMap(s.Sections)
}

// DateFilterValue returns the engine value for a date code.
func (s Site) DateFilterValue(code string) (string, bool) {
	for _, o := range s.DateFilters {
		if o.Code == code {
			if o.Value != "" {
				return o.Value, true
			}
			return o.Code, true
		}
	}
	return "", false
}

func optionMap(opts []Option) map[string]string {
	m := make(map[string]string, len(opts))
	for _, o := range opts {
		m[o.Code] = o.Label
	}
	return m
}

// Catalog is the ordered list of supported sites.
type Catalog struct {
	Sites []Site `yaml:"sites"`
}

// ErrUnknownSite is returned when no site matches a region/department pair.
var ErrUnknownSite = errors.New("unknown site")

// Lookup finds the site registered for region and department.
func (c *Catalog) Lookup(region, department string) (Site, error) {
	for _, s := range c.Sites {
		if s.Region == region && s.Department == department {
			return s, nil
		}
	}
	return Site{}, fmt.Errorf("%w: %s/%s", ErrUnknownSite, region, department)
}

// Regions lists regions in catalog order.
func (c *Catalog) Regions() []string {
	var out []string
	seen := map[string]bool{}
	for _, s := range c.Sites {
		if !seen[s.Region] {
			seen[s.Region] = true
			out = append(out, s.Region)
		}
	}
	return out
}

// DefaultCatalog parses the embedded site catalog.
func DefaultCatalog() (*Catalog, error) {
	return ParseSites(defaultSites)
}

// LoadSites reads a site catalog from path.
func LoadSites(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sites file: %w", err)
	}
	return ParseSites(data)
}

// ParseSites decodes and validates a site catalog.
func ParseSites(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse sites file: %w", err)
	}
	for i, s := range c.Sites {
		if err := s.validate(); err != nil {
			return nil, fmt.Errorf("site %d (%s/%s): %w", i, s.Region, s.Department, err)
		}
	}
	return &c, nil
}

func (s Site) validate() error {
	if s.Region == "" || s.Department == "" {
		return errors.New("region and department are required")
	}
	if _, err := url.Parse(s.BaseURL); err != nil || s.BaseURL == "" {
		return fmt.Errorf("invalid base_url %q", s.BaseURL)
	}
	switch s.Engine {
	case EngineMaya, EngineMIIT, EngineNDRC:
		if !strings.Contains(s.SearchURL, QueryPlaceholder) {
			return fmt.Errorf("search_url must contain %s", QueryPlaceholder)
		}
	case EngineListing:
		if len(s.ListURLs) == 0 {
			return errors.New("listing engine needs list_urls")
		}
	default:
		return fmt.Errorf("unsupported engine %q", s.Engine)
	}
	return nil
}
