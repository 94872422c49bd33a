package badger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/tenderintel/internal/common"
	"github.com/ternarybob/tenderintel/internal/interfaces"
	"github.com/ternarybob/tenderintel/internal/models"
)

// SessionStorage implements interfaces.SessionStorage on badgerhold
type SessionStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSessionStorage opens the store and returns the cookie session storage
func NewSessionStorage(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.SessionStorage, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}
	return &SessionStorage{
		db:     db,
		logger: logger,
	}, nil
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// LoadSession returns the stored session for key or interfaces.ErrNotFound
func (s *SessionStorage) LoadSession(ctx context.Context, key string) (*models.SessionRecord, error) {
	var record models.SessionRecord
	err := s.db.Store().Get(normalizeKey(key), &record)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, fmt.Errorf("session %q: %w", key, interfaces.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return &record, nil
}

// SaveSession replaces the stored cookies for record.Key
func (s *SessionStorage) SaveSession(ctx context.Context, record *models.SessionRecord) error {
	key := normalizeKey(record.Key)
	if key == "" {
		return fmt.Errorf("session key is required")
	}

	saved := *record
	saved.Key = key
	if saved.UpdatedAt.IsZero() {
		saved.UpdatedAt = time.Now()
	}

	if err := s.db.Store().Upsert(key, &saved); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	s.logger.Debug().Str("key", key).Int("cookies", len(saved.Cookies)).Msg("Session saved")
	return nil
}

// DeleteSession removes the session; deleting a missing key is not an error
func (s *SessionStorage) DeleteSession(ctx context.Context, key string) error {
	err := s.db.Store().Delete(normalizeKey(key), models.SessionRecord{})
	if err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Close closes the underlying store
func (s *SessionStorage) Close() error {
	return s.db.Close()
}
