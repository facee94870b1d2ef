package adapter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"govdoc-scraper/browser"
	"govdoc-scraper/config"
	"govdoc-scraper/retry"
)

// locator finds one control on a page.
type locator struct {
	desc string
	find func(p browser.Page) (browser.Element, error)
}

func byCSS(sel string) locator {
	return locator{desc: "css " + sel, find: func(p browser.Page) (browser.Element, error) { return p.Element(sel) }}
}

func byXPath(xpath string) locator {
	return locator{desc: "xpath " + xpath, find: func(p browser.Page) (browser.Element, error) { return p.ElementByXPath(xpath) }}
}

func byText(sel, pattern string) locator {
	return locator{desc: "text " + sel + " " + pattern, find: func(p browser.Page) (browser.Element, error) {
		return p.ElementByText(sel, pattern)
	}}
}

// firstVisible returns the first located element that is displayed.
func firstVisible(p browser.Page, locs ...locator) (browser.Element, error) {
	var errs []error
	for _, l := range locs {
		el, err := l.find(p)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", l.desc, err))
			continue
		}
		if !el.Visible() {
			errs = append(errs, fmt.Errorf("%s: not visible", l.desc))
			continue
		}
		return el, nil
	}
	return nil, fmt.Errorf("%w: %w", browser.ErrElementNotFound, errors.Join(errs...))
}

// scriptClickJS clicks the first node matching a CSS selector from page
// script and reports whether one was found.
func scriptClickJS(selector string) string {
	return fmt.Sprintf(`() => { const el = document.querySelector(%s); if (!el) return false; el.click(); return true; }`, jsString(selector))
}

// hasClassJS reports whether the node matching selector carries class.
func hasClassJS(selector, class string) string {
	return fmt.Sprintf(`() => { const el = document.querySelector(%s); return !!el && el.classList.contains(%s); }`,
		jsString(selector), jsString(class))
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	return strconv.Quote(s)
}

// evalTrue runs js and treats script errors as false.
func evalTrue(p browser.Page, js string) bool {
	ok, err := p.Eval(js)
	return err == nil && ok
}

// waitFor polls js until it reports true or the filter poll budget runs out.
func waitFor(ctx context.Context, p browser.Page, t config.Timing, js string) (bool, error) {
	return retry.Poll(ctx, t.FilterPollAttempts, t.FilterPollInterval, func() bool {
		return evalTrue(p, js)
	})
}

// scrollPage scrolls to the bottom and back, which makes lazily rendered
// result lists fill in.
func scrollPage(ctx context.Context, p browser.Page, t config.Timing) error {
	if _, err := p.Eval(`() => { window.scrollTo(0, document.body.scrollHeight); return true; }`); err != nil {
		return fmt.Errorf("failed to scroll down: %w", err)
	}
	if err := retry.Sleep(ctx, t.SettleAfterScroll); err != nil {
		return err
	}
	if _, err := p.Eval(`() => { window.scrollTo(0, 0); return true; }`); err != nil {
		return fmt.Errorf("failed to scroll up: %w", err)
	}
	return retry.Sleep(ctx, t.SettleAfterScroll)
}

func hasDisabledClass(el browser.Element) bool {
	return strings.Contains(strings.ToLower(el.Attribute("class")), "disabled")
}

// xpathLiteral quotes s for use inside an XPath expression.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	for i, p := range parts {
		parts[i] = "'" + p + "'"
	}
	return "concat(" + strings.Join(parts, `, "'", `) + ")"
}
