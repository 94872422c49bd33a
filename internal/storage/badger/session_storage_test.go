package badger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tenderintel/internal/common"
	"github.com/ternarybob/tenderintel/internal/interfaces"
	"github.com/ternarybob/tenderintel/internal/models"
)

func setupSessionStorage(t *testing.T) (interfaces.SessionStorage, func()) {
	config := &common.BadgerConfig{Path: filepath.Join(t.TempDir(), "sessions")}
	storage, err := NewSessionStorage(arbor.NewLogger(), config)
	require.NoError(t, err)
	return storage, func() { storage.Close() }
}

func TestSessionStorage_SaveAndLoad(t *testing.T) {
	storage, cleanup := setupSessionStorage(t)
	defer cleanup()
	ctx := context.Background()

	expires := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	err := storage.SaveSession(ctx, &models.SessionRecord{
		Key: " Portal ",
		Cookies: []models.Cookie{
			{Name: "sid", Value: "abc", Domain: ".ihalebul.com", Path: "/", Expires: expires, HTTPOnly: true},
		},
	})
	require.NoError(t, err)

	record, err := storage.LoadSession(ctx, "portal")
	require.NoError(t, err)
	assert.Equal(t, "portal", record.Key)
	require.Len(t, record.Cookies, 1)
	assert.Equal(t, "abc", record.Cookies[0].Value)
	assert.True(t, record.Cookies[0].Expires.Equal(expires))
	assert.False(t, record.UpdatedAt.IsZero())
}

func TestSessionStorage_SaveReplaces(t *testing.T) {
	storage, cleanup := setupSessionStorage(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, storage.SaveSession(ctx, &models.SessionRecord{Key: "portal", Cookies: []models.Cookie{{Name: "a"}, {Name: "b"}}}))
	require.NoError(t, storage.SaveSession(ctx, &models.SessionRecord{Key: "portal", Cookies: []models.Cookie{{Name: "c"}}}))

	record, err := storage.LoadSession(ctx, "portal")
	require.NoError(t, err)
	require.Len(t, record.Cookies, 1)
	assert.Equal(t, "c", record.Cookies[0].Name)
}

func TestSessionStorage_MissingAndDelete(t *testing.T) {
	storage, cleanup := setupSessionStorage(t)
	defer cleanup()
	ctx := context.Background()

	_, err := storage.LoadSession(ctx, "portal")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	require.NoError(t, storage.SaveSession(ctx, &models.SessionRecord{Key: "portal"}))
	require.NoError(t, storage.DeleteSession(ctx, "portal"))
	require.NoError(t, storage.DeleteSession(ctx, "portal"))

	_, err = storage.LoadSession(ctx, "portal")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	assert.Error(t, storage.SaveSession(ctx, &models.SessionRecord{Key: "  "}))
}
