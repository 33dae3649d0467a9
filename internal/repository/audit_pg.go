package repository

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/immutable/seaport/internal/model"
)

type AuditLogRecord struct {
	ID           string `gorm:"primaryKey"`
	Method       string
	Path         string
	IP           string
	UserAgent    string
	RequestBody  string
	StatusCode   int
	ResponseBody string
	LatencyMs    int64
	Context      []byte    `gorm:"type:jsonb"`
	CreatedAt    time.Time `gorm:"index"`
}

type PostgresAuditRepo struct {
	db *gorm.DB
}

func NewPostgresAuditRepo(db *gorm.DB) *PostgresAuditRepo {
	repo := &PostgresAuditRepo{db: db}
	_ = db.AutoMigrate(&AuditLogRecord{})
	return repo
}

func (r *PostgresAuditRepo) Insert(ctx context.Context, entry *model.AuditLog) error {
	if entry == nil {
		return nil
	}
	contextJSON, _ := json.Marshal(entry.Context)
	rec := AuditLogRecord{
		ID:           entry.ID,
		Method:       entry.Method,
		Path:         entry.Path,
		IP:           entry.IP,
		UserAgent:    entry.UserAgent,
		RequestBody:  entry.RequestBody,
		StatusCode:   entry.StatusCode,
		ResponseBody: entry.ResponseBody,
		LatencyMs:    entry.LatencyMs,
		Context:      contextJSON,
		CreatedAt:    entry.CreatedAt,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec).Error
}

func (r *PostgresAuditRepo) List(ctx context.Context, limit int, from, to *time.Time) ([]*model.AuditLog, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := r.db.WithContext(ctx).Model(&AuditLogRecord{})
	if from != nil {
		query = query.Where("created_at >= ?", *from)
	}
	if to != nil {
		query = query.Where("created_at <= ?", *to)
	}

	var records []AuditLogRecord
	if err := query.Order("created_at DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}

	results := make([]*model.AuditLog, 0, len(records))
	for _, rec := range records {
		entry := &model.AuditLog{
			ID:           rec.ID,
			Method:       rec.Method,
			Path:         rec.Path,
			IP:           rec.IP,
			UserAgent:    rec.UserAgent,
			RequestBody:  rec.RequestBody,
			StatusCode:   rec.StatusCode,
			ResponseBody: rec.ResponseBody,
			LatencyMs:    rec.LatencyMs,
			CreatedAt:    rec.CreatedAt,
		}
		if len(rec.Context) > 0 {
			_ = json.Unmarshal(rec.Context, &entry.Context)
		} else {
			entry.Context = map[string]interface{}{}
		}
		results = append(results, entry)
	}
	return results, nil
}

func (r *PostgresAuditRepo) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if olderThan <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-olderThan)
	return r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&AuditLogRecord{}).Error
}
