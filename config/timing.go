package config

import (
	"errors"
	"time"
)

// Timing holds every wait the crawler performs. The target pages render
// client-side and expose no ready event, so these delays stand in for one.
type Timing struct {
	NavigationTimeout   time.Duration `yaml:"navigation_timeout"`
	NavigationAttempts  int           `yaml:"navigation_attempts"`
	NavigationBackoff   time.Duration `yaml:"navigation_backoff"`
	SettleAfterNavigate time.Duration `yaml:"settle_after_navigate"`
	SettleAfterSearch   time.Duration `yaml:"settle_after_search"`
	SettleAfterFilter   time.Duration `yaml:"settle_after_filter"`
	SettleAfterNext     time.Duration `yaml:"settle_after_next"`
	SettleAfterScroll   time.Duration `yaml:"settle_after_scroll"`
	FilterPollAttempts  int           `yaml:"filter_poll_attempts"`
	FilterPollInterval  time.Duration `yaml:"filter_poll_interval"`
	ElementLookup       time.Duration `yaml:"element_lookup"`
	BetweenKeywords     time.Duration `yaml:"between_keywords"`
	BetweenArticles     time.Duration `yaml:"between_articles"`
	HTTPTimeout         time.Duration `yaml:"http_timeout"`
	DownloadTimeout     time.Duration `yaml:"download_timeout"`
	MaxPages            int           `yaml:"max_pages"`
}

// DefaultTiming returns the delays tuned against the live sites.
func DefaultTiming() Timing {
	return Timing{
		NavigationTimeout:   60 * time.Second,
		NavigationAttempts:  3,
		NavigationBackoff:   5 * time.Second,
		SettleAfterNavigate: 3 * time.Second,
		SettleAfterSearch:   5 * time.Second,
		SettleAfterFilter:   3 * time.Second,
		SettleAfterNext:     3 * time.Second,
		SettleAfterScroll:   2 * time.Second,
		FilterPollAttempts:  3,
		FilterPollInterval:  time.Second,
		ElementLookup:       3 * time.Second,
		BetweenKeywords:     time.Second,
		BetweenArticles:     time.Second,
		HTTPTimeout:         30 * time.Second,
		DownloadTimeout:     60 * time.Second,
		MaxPages:            50,
	}
}

// Instant keeps the retry and page budgets of t but drops every sleep.
// Tests use it to drive fakes without waiting.
func (t Timing) Instant() Timing {
	t.NavigationBackoff = 0
	t.SettleAfterNavigate = 0
	t.SettleAfterSearch = 0
	t.SettleAfterFilter = 0
	t.SettleAfterNext = 0
	t.SettleAfterScroll = 0
	t.FilterPollInterval = 0
	t.ElementLookup = 0
	t.BetweenKeywords = 0
	t.BetweenArticles = 0
	return t
}

func (t Timing) Validate() error {
	if t.NavigationAttempts < 1 {
		return errors.New("navigation_attempts must be at least 1")
	}
	if t.FilterPollAttempts < 1 {
		return errors.New("filter_poll_attempts must be at least 1")
	}
	if t.MaxPages < 1 {
		return errors.New("max_pages must be at least 1")
	}
	if t.NavigationTimeout <= 0 {
		return errors.New("navigation_timeout must be positive")
	}
	return nil
}
