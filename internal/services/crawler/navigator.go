package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tenderintel/internal/common"
	"github.com/ternarybob/tenderintel/internal/interfaces"
)

const scrollScript = `window.scrollTo(0, document.body ? document.body.scrollHeight : 0)`

// Navigator issues session-guarded page loads against one browser page.
// It is not safe for concurrent use; the portal binds state to the session.
type Navigator struct {
	browser interfaces.Browser
	keeper  interfaces.SessionKeeper
	logger  arbor.ILogger
	timeout time.Duration
	jitter  *Jitter
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewNavigator creates a navigator with the given per-navigation timeout
func NewNavigator(browser interfaces.Browser, keeper interfaces.SessionKeeper, timeout time.Duration, logger arbor.ILogger) *Navigator {
	return &Navigator{
		browser: browser,
		keeper:  keeper,
		logger:  logger,
		timeout: timeout,
		jitter:  NewJitter(),
		sleep:   common.Sleep,
	}
}

// Open loads url and waits for network idle within the navigation timeout
func (n *Navigator) Open(ctx context.Context, url string) error {
	n.logger.Debug().Str("url", url).Msg("Navigating")
	err := n.browser.Navigate(ctx, url, interfaces.NavigateOptions{
		WaitCondition: interfaces.WaitNetworkIdle,
		Timeout:       n.timeout,
	})
	if err != nil {
		if errors.Is(err, interfaces.ErrNavigation) {
			return err
		}
		return fmt.Errorf("%w: %s: %w", interfaces.ErrNavigation, url, err)
	}
	return nil
}

// OpenGuarded loads url and verifies the session after landing. A lost
// session is re-established once and the page reloaded; losing it again
// returns an error wrapping ErrAuthentication.
func (n *Navigator) OpenGuarded(ctx context.Context, url string) error {
	if err := n.Open(ctx, url); err != nil {
		return err
	}
	if n.loggedIn(ctx) {
		return nil
	}

	n.logger.Warn().Str("url", url).Msg("Session lost after navigation, forcing relogin")
	if err := n.keeper.ForceRelogin(ctx, n.browser); err != nil {
		if errors.Is(err, interfaces.ErrAuthentication) {
			return err
		}
		return fmt.Errorf("%w: relogin: %w", interfaces.ErrAuthentication, err)
	}

	if err := n.Open(ctx, url); err != nil {
		return err
	}
	if !n.loggedIn(ctx) {
		return fmt.Errorf("%w: session lost again after relogin at %s", interfaces.ErrAuthentication, url)
	}
	return nil
}

func (n *Navigator) loggedIn(ctx context.Context) bool {
	ok, err := n.keeper.IsLoggedIn(ctx, n.browser)
	if err != nil {
		n.logger.Debug().Err(err).Msg("Login check failed")
		return false
	}
	return ok
}

// EnsureLoggedIn restores or establishes the session. A failed attempt is
// followed by one forced relogin; only when that also fails is the error
// returned.
func (n *Navigator) EnsureLoggedIn(ctx context.Context) error {
	err := n.keeper.EnsureLoggedIn(ctx, n.browser)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	n.logger.Warn().Err(err).Msg("Login failed, forcing a fresh login")
	if rerr := n.keeper.ForceRelogin(ctx, n.browser); rerr != nil {
		return fmt.Errorf("relogin after failed login: %w", rerr)
	}
	return nil
}

// ScrollToBottom triggers lazy-loaded results
func (n *Navigator) ScrollToBottom(ctx context.Context) error {
	return n.browser.Evaluate(ctx, scrollScript, nil)
}

// HTML returns the current document
func (n *Navigator) HTML(ctx context.Context) (string, error) {
	return n.browser.HTML(ctx)
}

// Pause sleeps a random duration in [min, max]
func (n *Navigator) Pause(ctx context.Context, min, max time.Duration) error {
	return n.sleep(ctx, n.jitter.Between(min, max))
}

// Wait sleeps exactly d
func (n *Navigator) Wait(ctx context.Context, d time.Duration) error {
	return n.sleep(ctx, d)
}
