package driver

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// FakeDriver is an in-memory Driver backed by goquery, used by tests and by
// any caller that wants to exercise resolution/strategy/tab-context logic
// without a real browser automation backend. It is a real collaborator, not a
// mock: structural expressions are genuinely evaluated as CSS selectors
// against a genuinely parsed document.
type FakeDriver struct {
	mu      sync.RWMutex
	doc     *goquery.Document
	url     string
	title   string
	scripts map[string]func(ctx context.Context) (any, error)
}

// NewFakeDriver parses htmlSrc and returns a Driver rooted at url.
func NewFakeDriver(htmlSrc, url string) (*FakeDriver, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlSrc))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	return &FakeDriver{doc: doc, url: url, title: title, scripts: make(map[string]func(ctx context.Context) (any, error))}, nil
}

// ReplaceHTML swaps the underlying document, simulating a page reload or site
// change (used by drift scenarios).
func (d *FakeDriver) ReplaceHTML(htmlSrc string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlSrc))
	if err != nil {
		return fmt.Errorf("parse document: %w", err)
	}
	d.mu.Lock()
	d.doc = doc
	d.title = strings.TrimSpace(doc.Find("title").First().Text())
	d.mu.Unlock()
	return nil
}

// RegisterScript installs a callback that Evaluate will invoke for the given
// script name. Tab context discovery scripts are registered this way.
func (d *FakeDriver) RegisterScript(name string, fn func(ctx context.Context) (any, error)) {
	d.mu.Lock()
	d.scripts[name] = fn
	d.mu.Unlock()
}

func (d *FakeDriver) QueryOne(ctx context.Context, expr string) (Element, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	sel, err := d.safeFind(expr)
	if err != nil {
		return nil, false, NewError("query_one", err)
	}
	if sel.Length() == 0 {
		return nil, false, nil
	}
	return newFakeElement(sel.First()), true, nil
}

func (d *FakeDriver) QueryAll(ctx context.Context, expr string) ([]Element, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	sel, err := d.safeFind(expr)
	if err != nil {
		return nil, NewError("query_all", err)
	}
	out := make([]Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) { out = append(out, newFakeElement(s)) })
	return out, nil
}

func (d *FakeDriver) Evaluate(ctx context.Context, script string) (any, error) {
	d.mu.RLock()
	fn, ok := d.scripts[script]
	d.mu.RUnlock()
	if !ok {
		return nil, NewError("evaluate", fmt.Errorf("unknown script %q", script))
	}
	return fn(ctx)
}

func (d *FakeDriver) CurrentURL(ctx context.Context) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.url, nil
}

func (d *FakeDriver) CurrentTitle(ctx context.Context) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.title, nil
}

// safeFind evaluates expr as a CSS selector. goquery panics on malformed
// selectors via Find; we guard with a recover so a bad structural expression
// degrades to a query error instead of crashing the Resolution Engine.
func (d *FakeDriver) safeFind(expr string) (sel *goquery.Selection, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid structural expression %q: %v", expr, r)
		}
	}()
	sel = d.doc.Find(expr)
	return sel, nil
}
