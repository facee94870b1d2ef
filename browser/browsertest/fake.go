// Package browsertest provides in-memory fakes of the browser contracts.
package browsertest

import (
	"context"
	"fmt"
	"sync"

	"govdoc-scraper/browser"
)

// Page is a scripted browser.Page. Navigate swaps DOM to Sites[url]; clicks
// run element callbacks that may swap it again.
type Page struct {
	mu sync.Mutex

	Sites       map[string]string
	NavigateErr func(url string) error
	DOM         string
	Location    string
	// Redirects maps a navigated URL to the location the page lands on.
	Redirects   map[string]string

	// Elements are keyed by Key, XPathKey or TextKey.
	Elements map[string]*Element
	EvalFunc func(js string) (bool, error)

	Navigations []string
	Evals       []string
	HTMLReads   int
}

// Key addresses an element found by CSS selector.
func Key(selector string) string { return "css:" + selector }

// XPathKey addresses an element found by XPath.
func XPathKey(xpath string) string { return "xpath:" + xpath }

// TextKey addresses an element found by selector and text pattern.
func TextKey(selector, pattern string) string { return "text:" + selector + "|" + pattern }

// NewPage returns an empty fake page.
func NewPage() *Page {
	return &Page{Sites: map[string]string{}, Elements: map[string]*Element{}}
}

// SetDOM replaces the rendered document.
func (p *Page) SetDOM(html string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.DOM = html
}

// SetElement registers el under key and returns it.
func (p *Page) SetElement(key string, el *Element) *Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Elements[key] = el
	return el
}

// RemoveElement makes key unresolvable.
func (p *Page) RemoveElement(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.Elements, key)
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.Navigations = append(p.Navigations, url)
	errFn := p.NavigateErr
	p.mu.Unlock()

	if errFn != nil {
		if err := errFn(url); err != nil {
			return err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	html, ok := p.Sites[url]
	if !ok {
		return fmt.Errorf("no fixture for %s", url)
	}
	p.DOM = html
	p.Location = url
	if to, ok := p.Redirects[url]; ok {
		p.Location = to
	}
	return nil
}

func (p *Page) HTML() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.HTMLReads++
	return p.DOM, nil
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Location
}

func (p *Page) lookup(key string) (browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, ok := p.Elements[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", browser.ErrElementNotFound, key)
	}
	return el, nil
}

func (p *Page) Element(selector string) (browser.Element, error) {
	return p.lookup(Key(selector))
}

func (p *Page) ElementByXPath(xpath string) (browser.Element, error) {
	return p.lookup(XPathKey(xpath))
}

func (p *Page) ElementByText(selector, pattern string) (browser.Element, error) {
	return p.lookup(TextKey(selector, pattern))
}

func (p *Page) Eval(js string) (bool, error) {
	p.mu.Lock()
	p.Evals = append(p.Evals, js)
	fn := p.EvalFunc
	p.mu.Unlock()
	if fn == nil {
		return false, nil
	}
	return fn(js)
}

// Element is a scripted browser.Element.
type Element struct {
	mu sync.Mutex

	Attrs   map[string]string
	Label   string
	Hidden  bool
	OnClick func() error

	Clicks       int
	ScriptClicks int
	Scrolls      int
}

func (e *Element) Click() error {
	e.mu.Lock()
	e.Clicks++
	fn := e.OnClick
	e.mu.Unlock()
	if fn != nil {
		return fn()
	}
	return nil
}

func (e *Element) ScriptClick() error {
	e.mu.Lock()
	e.ScriptClicks++
	fn := e.OnClick
	e.mu.Unlock()
	if fn != nil {
		return fn()
	}
	return nil
}

func (e *Element) ScrollIntoView() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Scrolls++
	return nil
}

func (e *Element) Visible() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.Hidden
}

func (e *Element) Attribute(name string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Attrs[name]
}

func (e *Element) Text() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Label
}

// SetAttr sets one attribute.
func (e *Element) SetAttr(name, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Attrs == nil {
		e.Attrs = map[string]string{}
	}
	e.Attrs[name] = value
}

// Navigator wraps a fake Page as a browser.Navigator.
type Navigator struct {
	Page       *Page
	AcquireErr error
	Acquires   int
}

func (n *Navigator) Acquire(ctx context.Context) (browser.Page, error) {
	n.Acquires++
	if n.AcquireErr != nil {
		return nil, n.AcquireErr
	}
	return n.Page, nil
}

func (n *Navigator) Navigate(ctx context.Context, url string) error {
	if _, err := n.Acquire(ctx); err != nil {
		return err
	}
	if err := n.Page.Navigate(ctx, url); err != nil {
		return &browser.NavigationTimeoutError{URL: url, Attempts: 1, Err: err}
	}
	return nil
}
