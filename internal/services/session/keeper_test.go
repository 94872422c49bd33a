package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tenderintel/internal/common"
	"github.com/ternarybob/tenderintel/internal/interfaces"
	"github.com/ternarybob/tenderintel/internal/models"
	"github.com/ternarybob/tenderintel/internal/services/browser/browsertest"
)

const (
	anonymousPage = `<html><body><a href="/login">Giriş</a><div>Yüklenici: ***</div></body></html>`
	memberPage    = `<html><body><a href="/logout">Çıkış</a><div>Yüklenici: ABC</div></body></html>`
)

type memorySessions struct {
	records map[string]*models.SessionRecord
	deleted int
}

func newMemorySessions() *memorySessions {
	return &memorySessions{records: map[string]*models.SessionRecord{}}
}

func (m *memorySessions) LoadSession(ctx context.Context, key string) (*models.SessionRecord, error) {
	r, ok := m.records[key]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return r, nil
}

func (m *memorySessions) SaveSession(ctx context.Context, r *models.SessionRecord) error {
	m.records[r.Key] = r
	return nil
}

func (m *memorySessions) DeleteSession(ctx context.Context, key string) error {
	delete(m.records, key)
	m.deleted++
	return nil
}

func (m *memorySessions) Close() error { return nil }

func newTestKeeper(sessions interfaces.SessionStorage, username, password string) *Keeper {
	config := common.NewDefaultConfig().Portal
	config.Username = username
	config.Password = password
	k := NewKeeper(&config, sessions, arbor.NewLogger())
	k.sleep = func(context.Context, time.Duration) error { return nil }
	return k
}

func TestLoggedInFromPage(t *testing.T) {
	tests := []struct {
		name string
		text string
		html string
		want bool
	}{
		{"logout link", "Hoş geldiniz", `<a>Çıkış</a>`, true},
		{"english logout", "", `<a href="/Logout">x</a>`, true},
		{"masked values", "Yüklenici ***", `<a>Çıkış</a>`, false},
		{"members only notice", "Bu bölüm sadece aktif üyelere açıktır", `<a>Çıkış</a>`, false},
		{"anonymous", "Giriş", `<a>Giriş</a>`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LoggedInFromPage(tt.text, tt.html))
		})
	}
}

func TestEnsureLoggedIn_AlreadyLoggedIn(t *testing.T) {
	b := browsertest.New(nil)
	b.SetHTML(memberPage)

	k := newTestKeeper(nil, "user", "pass")
	require.NoError(t, k.EnsureLoggedIn(context.Background(), b))
	assert.Empty(t, b.Navigations())
}

func TestEnsureLoggedIn_RestoresCookies(t *testing.T) {
	sessions := newMemorySessions()
	sessions.records[SessionKey] = &models.SessionRecord{
		Key:     SessionKey,
		Cookies: []models.Cookie{{Name: "sid", Value: "abc"}},
	}

	b := browsertest.New(nil)
	b.Handler = func(url string) (string, error) {
		cookies, _ := b.Cookies(context.Background())
		if len(cookies) > 0 {
			return memberPage, nil
		}
		return anonymousPage, nil
	}
	b.SetHTML(anonymousPage)

	k := newTestKeeper(sessions, "user", "pass")
	require.NoError(t, k.EnsureLoggedIn(context.Background(), b))

	navs := b.Navigations()
	require.Len(t, navs, 1)
	assert.Equal(t, "https://www.ihalebul.com/tenders/search?workcategory_in=15", navs[0])
}

func TestEnsureLoggedIn_FreshLoginPersistsCookies(t *testing.T) {
	sessions := newMemorySessions()

	b := browsertest.New(func(url string) (string, error) { return anonymousPage, nil })
	b.OnSubmit = func(b *browsertest.Browser) bool {
		_ = b.SetCookies(context.Background(), []models.Cookie{{Name: "sid", Value: "fresh"}})
		b.SetHTML(memberPage)
		return true
	}
	b.SetHTML(anonymousPage)

	k := newTestKeeper(sessions, "user", "pa\"ss")
	require.NoError(t, k.EnsureLoggedIn(context.Background(), b))

	assert.Equal(t, []string{"https://www.ihalebul.com/"}, b.Navigations())

	stored, ok := sessions.records[SessionKey]
	require.True(t, ok)
	require.Len(t, stored.Cookies, 1)
	assert.Equal(t, "fresh", stored.Cookies[0].Value)

	var filled bool
	for _, script := range b.Evaluations() {
		if strings.Contains(script, `"pa\"ss"`) {
			filled = true
		}
	}
	assert.True(t, filled, "password should be passed JSON-quoted to the fill script")
}

func TestEnsureLoggedIn_MissingCredentials(t *testing.T) {
	b := browsertest.New(func(url string) (string, error) { return anonymousPage, nil })
	b.SetHTML(anonymousPage)

	k := newTestKeeper(nil, "", "")
	err := k.EnsureLoggedIn(context.Background(), b)
	assert.ErrorIs(t, err, interfaces.ErrAuthentication)
	assert.Empty(t, b.Navigations())
}

func TestEnsureLoggedIn_RejectedCredentials(t *testing.T) {
	b := browsertest.New(func(url string) (string, error) { return anonymousPage, nil })
	b.SetHTML(anonymousPage)

	k := newTestKeeper(nil, "user", "wrong")
	err := k.EnsureLoggedIn(context.Background(), b)
	assert.ErrorIs(t, err, interfaces.ErrAuthentication)
}

func TestEnsureLoggedIn_LoginFormMissing(t *testing.T) {
	b := browsertest.New(func(url string) (string, error) { return anonymousPage, nil })
	b.FillResult = "password"
	b.SetHTML(anonymousPage)

	k := newTestKeeper(nil, "user", "pass")
	err := k.EnsureLoggedIn(context.Background(), b)
	assert.ErrorIs(t, err, interfaces.ErrAuthentication)
	assert.Contains(t, err.Error(), "password")
}

func TestForceRelogin_DropsStoredSession(t *testing.T) {
	sessions := newMemorySessions()
	sessions.records[SessionKey] = &models.SessionRecord{Key: SessionKey, Cookies: []models.Cookie{{Name: "old"}}}

	b := browsertest.New(func(url string) (string, error) { return anonymousPage, nil })
	b.OnSubmit = func(b *browsertest.Browser) bool {
		_ = b.SetCookies(context.Background(), []models.Cookie{{Name: "new"}})
		b.SetHTML(memberPage)
		return true
	}
	// Logged in, but the session must still be replaced
	b.SetHTML(memberPage)

	k := newTestKeeper(sessions, "user", "pass")
	require.NoError(t, k.ForceRelogin(context.Background(), b))

	assert.Equal(t, 1, sessions.deleted)
	assert.Equal(t, 1, b.Cleared())
	require.Contains(t, sessions.records, SessionKey)
	assert.Equal(t, "new", sessions.records[SessionKey].Cookies[0].Name)
}
