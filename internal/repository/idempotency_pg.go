package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/immutable/seaport/internal/middleware"
)

type IdempotencyKeyRecord struct {
	Key          string `gorm:"primaryKey"`
	StatusCode   int
	ResponseBody []byte
	Processing   bool
	CreatedAt    time.Time
}

type PostgresIdempotencyStore struct {
	db *gorm.DB
}

func NewPostgresIdempotencyStore(db *gorm.DB) *PostgresIdempotencyStore {
	store := &PostgresIdempotencyStore{db: db}
	_ = db.AutoMigrate(&IdempotencyKeyRecord{})
	return store
}

func (s *PostgresIdempotencyStore) GetOrLock(key string) (*middleware.IdempotencyRecord, bool) {
	ctx := context.Background()
	rec := IdempotencyKeyRecord{
		Key:        key,
		Processing: true,
		CreatedAt:  time.Now().UTC(),
	}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
	if result.Error == nil && result.RowsAffected > 0 {
		return nil, false
	}

	var existing IdempotencyKeyRecord
	if err := s.db.WithContext(ctx).First(&existing, "key = ?", key).Error; err != nil {
		return nil, false
	}
	return &middleware.IdempotencyRecord{
		Status:     existing.StatusCode,
		Body:       existing.ResponseBody,
		CreatedAt:  existing.CreatedAt,
		Processing: existing.Processing,
	}, true
}

func (s *PostgresIdempotencyStore) Save(key string, status int, body []byte) {
	ctx := context.Background()
	_ = s.db.WithContext(ctx).Model(&IdempotencyKeyRecord{}).
		Where("key = ?", key).
		Updates(map[string]interface{}{
			"status_code":   status,
			"response_body": body,
			"processing":    false,
		}).Error
}

func (s *PostgresIdempotencyStore) Unlock(key string) {
	ctx := context.Background()
	_ = s.db.WithContext(ctx).Delete(&IdempotencyKeyRecord{}, "key = ?", key).Error
}

func (s *PostgresIdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if olderThan <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-olderThan)
	return s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&IdempotencyKeyRecord{}).Error
}
