// Package browser implements interfaces.Browser on a single chromedp tab.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tenderintel/internal/common"
	"github.com/ternarybob/tenderintel/internal/interfaces"
	"github.com/ternarybob/tenderintel/internal/models"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// ChromeBrowser drives one tab of one Chrome process
type ChromeBrowser struct {
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	allocatorCancel context.CancelFunc
	logger          arbor.ILogger
	mu              sync.Mutex
	closed          bool
}

// NewChromeBrowser starts Chrome with config and verifies it responds
func NewChromeBrowser(config *common.BrowserConfig, logger arbor.ILogger) (*ChromeBrowser, error) {
	startTime := time.Now()

	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", config.Headless),
		chromedp.Flag("disable-gpu", config.DisableGPU),
		chromedp.Flag("no-sandbox", config.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(userAgent),
		chromedp.WindowSize(1366, 900),
	)

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), allocatorOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	testCtx, testCancel := context.WithTimeout(browserCtx, common.ParseDuration(config.StartupTimeout, 30*time.Second))
	defer testCancel()

	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank"), network.Enable()); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("browser failed startup test: %w", err)
	}

	logger.Debug().
		Bool("headless", config.Headless).
		Str("user_agent", userAgent).
		Dur("startup_time", time.Since(startTime)).
		Msg("Browser started")

	return &ChromeBrowser{
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		allocatorCancel: allocatorCancel,
		logger:          logger,
	}, nil
}

// run executes actions on the tab, bounded by timeout and cancelled with ctx
func (b *ChromeBrowser) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("browser is closed")
	}

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(b.browserCtx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(b.browserCtx)
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

// Navigate loads url and waits for the requested readiness
func (b *ChromeBrowser) Navigate(ctx context.Context, url string, opts interfaces.NavigateOptions) error {
	actions := []chromedp.Action{chromedp.Navigate(url)}
	switch opts.WaitCondition {
	case interfaces.WaitDOMReady:
		actions = append(actions, chromedp.WaitReady("body", chromedp.ByQuery))
	case interfaces.WaitNetworkIdle:
		actions = append(actions, chromedp.WaitReady("body", chromedp.ByQuery), waitDocumentComplete())
	}

	if err := b.run(ctx, opts.Timeout, actions...); err != nil {
		return fmt.Errorf("%w: %s: %v", interfaces.ErrNavigation, url, err)
	}
	return nil
}

// waitDocumentComplete polls readyState and leaves a short settle window for XHR
func waitDocumentComplete() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for {
			var state string
			if err := chromedp.Evaluate(`document.readyState`, &state).Do(ctx); err != nil {
				return err
			}
			if state == "complete" {
				break
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(100 * time.Millisecond):
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
			return nil
		}
	})
}

// Evaluate runs script; with a nil out the result is discarded
func (b *ChromeBrowser) Evaluate(ctx context.Context, script string, out interface{}) error {
	if out == nil {
		var discard interface{}
		err := b.run(ctx, 0, chromedp.Evaluate(script, &discard))
		if errors.Is(err, chromedp.ErrJSUndefined) || errors.Is(err, chromedp.ErrJSNull) {
			return nil
		}
		return err
	}
	return b.run(ctx, 0, chromedp.Evaluate(script, out))
}

// Find reports whether selector matches an element in the current document
func (b *ChromeBrowser) Find(ctx context.Context, selector string) (bool, error) {
	quoted, err := json.Marshal(selector)
	if err != nil {
		return false, err
	}
	var found bool
	if err := b.run(ctx, 0, chromedp.Evaluate(fmt.Sprintf(`document.querySelector(%s) !== null`, quoted), &found)); err != nil {
		return false, err
	}
	return found, nil
}

// HTML returns the current document's outer HTML
func (b *ChromeBrowser) HTML(ctx context.Context) (string, error) {
	var html string
	if err := b.run(ctx, 0, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read page html: %w", err)
	}
	return html, nil
}

// Cookies returns the cookies for the current page
func (b *ChromeBrowser) Cookies(ctx context.Context) ([]models.Cookie, error) {
	var cookies []*network.Cookie
	err := b.run(ctx, 0, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}
	return fromNetworkCookies(cookies), nil
}

// SetCookies installs cookies; one rejected cookie does not stop the rest
func (b *ChromeBrowser) SetCookies(ctx context.Context, cookies []models.Cookie) error {
	params := toCookieParams(cookies, time.Now())
	failed := 0

	err := b.run(ctx, 0, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, cookie := range params {
			if err := network.SetCookie(cookie.Name, cookie.Value).
				WithDomain(cookie.Domain).
				WithPath(cookie.Path).
				WithSecure(cookie.Secure).
				WithHTTPOnly(cookie.HTTPOnly).
				WithSameSite(cookie.SameSite).
				WithExpires(cookie.Expires).
				Do(ctx); err != nil {
				failed++
				b.logger.Warn().Err(err).Str("cookie_name", cookie.Name).Str("domain", cookie.Domain).Msg("Failed to set cookie")
			}
		}
		return nil
	}))
	if err != nil {
		return fmt.Errorf("failed to set cookies: %w", err)
	}

	b.logger.Debug().Int("cookies", len(params)-failed).Int("failed", failed).Msg("Cookies restored")
	return nil
}

// ClearCookies removes every browser cookie
func (b *ChromeBrowser) ClearCookies(ctx context.Context) error {
	return b.run(ctx, 0, chromedp.ActionFunc(func(ctx context.Context) error {
		return network.ClearBrowserCookies().Do(ctx)
	}))
}

// Close shuts the tab and the Chrome process
func (b *ChromeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	b.browserCancel()
	b.allocatorCancel()
	b.logger.Debug().Msg("Browser closed")
	return nil
}
