// Package session keeps the portal browser session authenticated.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tenderintel/internal/common"
	"github.com/ternarybob/tenderintel/internal/interfaces"
	"github.com/ternarybob/tenderintel/internal/models"
)

// SessionKey is the session store key for the portal cookies
const SessionKey = "portal"

// restoreSettle is the wait after loading the test page with restored cookies
const restoreSettle = 2 * time.Second

// Keeper implements interfaces.SessionKeeper for the tender portal
type Keeper struct {
	config   *common.PortalConfig
	sessions interfaces.SessionStorage
	logger   arbor.ILogger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewKeeper creates a session keeper; sessions may be nil to disable cookie reuse
func NewKeeper(config *common.PortalConfig, sessions interfaces.SessionStorage, logger arbor.ILogger) *Keeper {
	return &Keeper{
		config:   config,
		sessions: sessions,
		logger:   logger,
		sleep:    common.Sleep,
	}
}

// LoggedInFromPage decides login state from the page's text and markup.
// Masked values or the members-only notice mean the session is anonymous.
func LoggedInFromPage(text, html string) bool {
	if strings.Contains(text, "***") || strings.Contains(text, "Bu bölüm sadece aktif üye") {
		return false
	}
	lower := strings.ToLower(html)
	return strings.Contains(lower, "çıkış") || strings.Contains(lower, "logout") || strings.Contains(lower, "signout")
}

// IsLoggedIn inspects the current page without navigating
func (k *Keeper) IsLoggedIn(ctx context.Context, browser interfaces.Browser) (bool, error) {
	var text, html string
	if err := browser.Evaluate(ctx, bodyTextScript, &text); err != nil {
		return false, fmt.Errorf("failed to read page text: %w", err)
	}
	if err := browser.Evaluate(ctx, bodyHTMLScript, &html); err != nil {
		return false, fmt.Errorf("failed to read page html: %w", err)
	}
	return LoggedInFromPage(text, html), nil
}

// EnsureLoggedIn keeps a live session, restores stored cookies, or logs in fresh
func (k *Keeper) EnsureLoggedIn(ctx context.Context, browser interfaces.Browser) error {
	if ok, err := k.IsLoggedIn(ctx, browser); err == nil && ok {
		return nil
	}

	restored, err := k.restore(ctx, browser)
	if err != nil {
		k.logger.Warn().Err(err).Msg("Session restore failed")
	}
	if restored {
		k.logger.Info().Msg("Portal session restored from stored cookies")
		return nil
	}

	return k.freshLogin(ctx, browser)
}

// ForceRelogin drops stored and browser cookies, then logs in fresh
func (k *Keeper) ForceRelogin(ctx context.Context, browser interfaces.Browser) error {
	if k.sessions != nil {
		if err := k.sessions.DeleteSession(ctx, SessionKey); err != nil {
			k.logger.Warn().Err(err).Msg("Failed to delete stored session")
		}
	}
	if err := browser.ClearCookies(ctx); err != nil {
		k.logger.Warn().Err(err).Msg("Failed to clear browser cookies")
	}
	return k.freshLogin(ctx, browser)
}

func (k *Keeper) restore(ctx context.Context, browser interfaces.Browser) (bool, error) {
	if k.sessions == nil {
		return false, nil
	}

	record, err := k.sessions.LoadSession(ctx, SessionKey)
	if errors.Is(err, interfaces.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(record.Cookies) == 0 {
		return false, nil
	}

	if err := browser.SetCookies(ctx, record.Cookies); err != nil {
		return false, err
	}
	if err := browser.Navigate(ctx, k.testURL(), k.navigateOptions()); err != nil {
		return false, err
	}
	if err := k.sleep(ctx, restoreSettle); err != nil {
		return false, err
	}
	return k.IsLoggedIn(ctx, browser)
}

func (k *Keeper) freshLogin(ctx context.Context, browser interfaces.Browser) error {
	if !k.config.HasCredentials() {
		return fmt.Errorf("%w: portal credentials are not configured", interfaces.ErrAuthentication)
	}

	k.logger.Info().Str("username", k.config.Username).Msg("Logging in to portal")

	if err := browser.Navigate(ctx, k.homeURL(), k.navigateOptions()); err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrAuthentication, err)
	}
	if err := k.sleep(ctx, common.ParseDuration(k.config.SettleDelay, 2*time.Second)); err != nil {
		return err
	}

	if ok, err := k.IsLoggedIn(ctx, browser); err == nil && ok {
		return k.persist(ctx, browser)
	}

	var filled string
	if err := browser.Evaluate(ctx, fillScript(k.config.Username, k.config.Password), &filled); err != nil {
		return fmt.Errorf("%w: failed to fill login form: %v", interfaces.ErrAuthentication, err)
	}
	if filled != "ok" {
		return fmt.Errorf("%w: login form has no %s input", interfaces.ErrAuthentication, filled)
	}

	if err := k.sleep(ctx, 500*time.Millisecond); err != nil {
		return err
	}

	var submitted bool
	if err := browser.Evaluate(ctx, submitScript, &submitted); err != nil {
		return fmt.Errorf("%w: failed to submit login form: %v", interfaces.ErrAuthentication, err)
	}
	if !submitted {
		return fmt.Errorf("%w: login button not found", interfaces.ErrAuthentication)
	}

	if err := k.sleep(ctx, common.ParseDuration(k.config.LoginWait, 4*time.Second)); err != nil {
		return err
	}

	ok, err := k.IsLoggedIn(ctx, browser)
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrAuthentication, err)
	}
	if !ok {
		return fmt.Errorf("%w: portal rejected the credentials", interfaces.ErrAuthentication)
	}

	k.logger.Info().Msg("Portal login succeeded")
	return k.persist(ctx, browser)
}

// persist stores the current browser cookies; failure only costs a future login
func (k *Keeper) persist(ctx context.Context, browser interfaces.Browser) error {
	if k.sessions == nil {
		return nil
	}
	cookies, err := browser.Cookies(ctx)
	if err != nil {
		k.logger.Warn().Err(err).Msg("Failed to read cookies after login")
		return nil
	}
	if err := k.sessions.SaveSession(ctx, &models.SessionRecord{
		Key:       SessionKey,
		Cookies:   cookies,
		UpdatedAt: time.Now(),
	}); err != nil {
		k.logger.Warn().Err(err).Msg("Failed to store session cookies")
	}
	return nil
}

func (k *Keeper) baseURL() string {
	return strings.TrimRight(k.config.BaseURL, "/")
}

func (k *Keeper) homeURL() string {
	return k.baseURL() + "/"
}

func (k *Keeper) testURL() string {
	return fmt.Sprintf("%s/tenders/search?workcategory_in=%d", k.baseURL(), k.config.WorkCategory)
}

func (k *Keeper) navigateOptions() interfaces.NavigateOptions {
	return interfaces.NavigateOptions{
		WaitCondition: interfaces.WaitDOMReady,
		Timeout:       common.ParseDuration(k.config.NavigationTimeout, 45*time.Second),
	}
}
