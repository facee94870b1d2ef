// Package browser owns the headless browser used to drive search UIs and
// render article pages.
package browser

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrBrowserUnavailable means every acquisition tier failed.
	ErrBrowserUnavailable = errors.New("browser unavailable")
	// ErrNavigationTimeout means a page did not load within the retry budget.
	ErrNavigationTimeout = errors.New("navigation timeout")
	// ErrElementNotFound is returned by element lookups that match nothing.
	ErrElementNotFound = errors.New("element not found")
)

// NavigationTimeoutError reports the URL that could not be loaded.
type NavigationTimeoutError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *NavigationTimeoutError) Error() string {
	return fmt.Sprintf("navigation to %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *NavigationTimeoutError) Unwrap() []error {
	return []error{ErrNavigationTimeout, e.Err}
}

// Page is the slice of browser automation the crawler relies on.
type Page interface {
	// Navigate loads url and waits for the load event. It does not retry.
	Navigate(ctx context.Context, url string) error
	// HTML returns the rendered DOM.
	HTML() (string, error)
	// URL returns the current location.
	URL() string
	Element(selector string) (Element, error)
	ElementByXPath(xpath string) (Element, error)
	// ElementByText finds the first selector match whose text matches the
	// regular expression pattern.
	ElementByText(selector, pattern string) (Element, error)
	// Eval runs js, a function expression such as "() => true", and returns
	// its result as a boolean.
	Eval(js string) (bool, error)
}

// Element is a located DOM node.
type Element interface {
	// Click dispatches a real mouse click.
	Click() error
	// ScriptClick calls the node's click() from page script.
	ScriptClick() error
	ScrollIntoView() error
	Visible() bool
	Attribute(name string) string
	Text() string
}

// Navigator is what search and extraction need from a session: a page to
// interact with and retried navigation on it.
type Navigator interface {
	Acquire(ctx context.Context) (Page, error)
	Navigate(ctx context.Context, url string) error
}
