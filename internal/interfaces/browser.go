package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/tenderintel/internal/models"
)

// WaitCondition is the readiness event a navigation waits for
type WaitCondition string

const (
	WaitLoad        WaitCondition = "load"
	WaitDOMReady    WaitCondition = "domcontentloaded"
	WaitNetworkIdle WaitCondition = "networkidle"
)

// NavigateOptions bound a single page load
type NavigateOptions struct {
	WaitCondition WaitCondition
	Timeout       time.Duration
}

// Browser is a single rendered page driven by scripts.
// Implementations are not safe for concurrent navigation.
type Browser interface {
	// Navigate loads url and waits for opts.WaitCondition within opts.Timeout
	Navigate(ctx context.Context, url string, opts NavigateOptions) error

	// Evaluate runs script in the page and decodes its result into out (may be nil)
	Evaluate(ctx context.Context, script string, out interface{}) error

	// Find reports whether any element matches selector
	Find(ctx context.Context, selector string) (bool, error)

	// HTML returns the outer HTML of the current document
	HTML(ctx context.Context) (string, error)

	// Cookies returns the cookies visible to the current page
	Cookies(ctx context.Context) ([]models.Cookie, error)

	// SetCookies installs cookies into the browser
	SetCookies(ctx context.Context, cookies []models.Cookie) error

	// ClearCookies removes all browser cookies
	ClearCookies(ctx context.Context) error

	// Close releases the page and the browser process
	Close() error
}

// SessionKeeper authenticates a Browser against the portal
type SessionKeeper interface {
	// EnsureLoggedIn succeeds or returns an error wrapping ErrAuthentication
	EnsureLoggedIn(ctx context.Context, browser Browser) error

	// IsLoggedIn inspects the current page without navigating
	IsLoggedIn(ctx context.Context, browser Browser) (bool, error)

	// ForceRelogin discards the session and authenticates again
	ForceRelogin(ctx context.Context, browser Browser) error
}
