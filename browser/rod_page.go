package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

const defaultLookup = 3 * time.Second

// rodPage adapts a rod page to Page.
type rodPage struct {
	page   *rod.Page
	lookup time.Duration
}

func newRodPage(p *rod.Page, lookup time.Duration) *rodPage {
	if lookup <= 0 {
		lookup = defaultLookup
	}
	return &rodPage{page: p, lookup: lookup}
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	pg := p.page.Context(ctx)
	if err := pg.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate: %w", err)
	}
	if err := pg.WaitLoad(); err != nil {
		return fmt.Errorf("failed to wait for load: %w", err)
	}
	return nil
}

func (p *rodPage) HTML() (string, error) {
	html, err := p.page.HTML()
	if err != nil {
		return "", fmt.Errorf("failed to get HTML: %w", err)
	}
	return html, nil
}

func (p *rodPage) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (p *rodPage) Element(selector string) (Element, error) {
	el, err := p.page.Timeout(p.lookup).Element(selector)
	return wrapElement(el, err, selector)
}

func (p *rodPage) ElementByXPath(xpath string) (Element, error) {
	el, err := p.page.Timeout(p.lookup).ElementX(xpath)
	return wrapElement(el, err, xpath)
}

func (p *rodPage) ElementByText(selector, pattern string) (Element, error) {
	el, err := p.page.Timeout(p.lookup).ElementR(selector, pattern)
	return wrapElement(el, err, selector+" /"+pattern+"/")
}

func (p *rodPage) Eval(js string) (bool, error) {
	res, err := p.page.Eval(js)
	if err != nil {
		return false, fmt.Errorf("failed to eval script: %w", err)
	}
	return res.Value.Bool(), nil
}

func wrapElement(el *rod.Element, err error, query string) (Element, error) {
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrElementNotFound, query, err)
	}
	return &rodElement{el: el.CancelTimeout()}, nil
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Click() error {
	return e.el.Click(proto.InputMouseButtonLeft, 1)
}

func (e *rodElement) ScriptClick() error {
	_, err := e.el.Eval(`() => this.click()`)
	return err
}

func (e *rodElement) ScrollIntoView() error {
	return e.el.ScrollIntoView()
}

func (e *rodElement) Visible() bool {
	v, err := e.el.Visible()
	return err == nil && v
}

func (e *rodElement) Attribute(name string) string {
	v, err := e.el.Attribute(name)
	if err != nil || v == nil {
		return ""
	}
	return *v
}

func (e *rodElement) Text() string {
	t, err := e.el.Text()
	if err != nil {
		return ""
	}
	return t
}
