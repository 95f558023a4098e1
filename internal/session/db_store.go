package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fuomag9/kabomba-auth/internal/models"
)

// DBStore keeps sessions in the sessions table. Expired rows are ignored on
// load and removed by DeleteExpired.
type DBStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDBStore creates a database-backed session store.
func NewDBStore(db *gorm.DB) *DBStore {
	return &DBStore{db: db, now: time.Now}
}

func (s *DBStore) Load(ctx context.Context, sessionID string) (Values, error) {
	var row models.Session
	err := s.db.WithContext(ctx).
		Where("id = ? AND expires_at > ?", sessionID, s.now().UTC()).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	values := Values{}
	if err := json.Unmarshal([]byte(row.Data), &values); err != nil {
		return nil, fmt.Errorf("session: failed to unmarshal: %w", err)
	}
	return values, nil
}

func (s *DBStore) Save(ctx context.Context, sessionID string, values Values, ttl time.Duration) error {
	if sessionID == "" {
		return fmt.Errorf("session: missing session_id")
	}
	if ttl <= 0 {
		return fmt.Errorf("session: ttl must be positive")
	}

	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("session: failed to marshal: %w", err)
	}

	now := s.now().UTC()
	row := models.Session{
		ID:        sessionID,
		Data:      string(data),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "expires_at", "updated_at"}),
	}).Create(&row).Error
}

func (s *DBStore) Delete(ctx context.Context, sessionID string) error {
	return s.db.WithContext(ctx).Where("id = ?", sessionID).Delete(&models.Session{}).Error
}

// DeleteExpired removes every session whose expiry has passed.
func (s *DBStore) DeleteExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).Where("expires_at < ?", s.now().UTC()).Delete(&models.Session{})
	return result.RowsAffected, result.Error
}
