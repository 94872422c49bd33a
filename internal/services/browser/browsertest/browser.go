// Package browsertest provides an in-memory interfaces.Browser for tests.
package browsertest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/tenderintel/internal/interfaces"
	"github.com/ternarybob/tenderintel/internal/models"
)

// Handler renders the HTML served for url
type Handler func(url string) (string, error)

// Browser serves pages from Handler and answers the scripts the services run.
// Body text/markup reads are computed from the current HTML; login fill and
// submit scripts are answered by FillResult and OnSubmit.
type Browser struct {
	Handler    Handler
	OnEvaluate func(script string) (interface{}, bool)
	OnSubmit   func(b *Browser) bool
	FillResult string

	mu          sync.Mutex
	html        string
	navigations []string
	evaluations []string
	cookies     []models.Cookie
	cleared     int
	closed      bool
}

// New creates a fake browser serving handler
func New(handler Handler) *Browser {
	return &Browser{
		Handler:    handler,
		FillResult: "ok",
	}
}

// SetHTML replaces the current document
func (b *Browser) SetHTML(html string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.html = html
}

// Navigations returns every URL passed to Navigate, in order
func (b *Browser) Navigations() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.navigations...)
}

// Evaluations returns every evaluated script, in order
func (b *Browser) Evaluations() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.evaluations...)
}

// Cleared reports how many times ClearCookies was called
func (b *Browser) Cleared() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cleared
}

func (b *Browser) Navigate(ctx context.Context, url string, opts interfaces.NavigateOptions) error {
	b.mu.Lock()
	b.navigations = append(b.navigations, url)
	handler := b.Handler
	b.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("%w: no handler for %s", interfaces.ErrNavigation, url)
	}

	html, err := handler(url)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", interfaces.ErrNavigation, url, err)
	}
	b.SetHTML(html)
	return nil
}

func (b *Browser) Evaluate(ctx context.Context, script string, out interface{}) error {
	b.mu.Lock()
	b.evaluations = append(b.evaluations, script)
	b.mu.Unlock()

	value, err := b.answer(script)
	if err != nil || out == nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (b *Browser) answer(script string) (interface{}, error) {
	if b.OnEvaluate != nil {
		if value, ok := b.OnEvaluate(script); ok {
			return value, nil
		}
	}

	switch {
	case strings.Contains(script, "innerText"):
		return b.body(func(s *goquery.Selection) (string, error) { return s.Text(), nil })
	case strings.Contains(script, "innerHTML"):
		return b.body(func(s *goquery.Selection) (string, error) { return s.Html() })
	case strings.Contains(script, "dispatchEvent"):
		return b.FillResult, nil
	case strings.Contains(script, "form.submit()"):
		if b.OnSubmit == nil {
			return true, nil
		}
		return b.OnSubmit(b), nil
	}
	return nil, nil
}

func (b *Browser) body(read func(*goquery.Selection) (string, error)) (string, error) {
	b.mu.Lock()
	html := b.html
	b.mu.Unlock()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	return read(doc.Find("body"))
}

func (b *Browser) Find(ctx context.Context, selector string) (bool, error) {
	b.mu.Lock()
	html := b.html
	b.mu.Unlock()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false, err
	}
	return doc.Find(selector).Length() > 0, nil
}

func (b *Browser) HTML(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.html, nil
}

func (b *Browser) Cookies(ctx context.Context) ([]models.Cookie, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Cookie(nil), b.cookies...), nil
}

func (b *Browser) SetCookies(ctx context.Context, cookies []models.Cookie) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cookies = append(b.cookies, cookies...)
	return nil
}

func (b *Browser) ClearCookies(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cookies = nil
	b.cleared++
	return nil
}

func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
