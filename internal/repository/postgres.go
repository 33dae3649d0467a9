package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/immutable/seaport/internal/model"
)

// OrderStatusRecord is the persisted form of an order status. The fill
// fraction travels as decimal strings so arbitrary-precision values survive
// the round trip.
type OrderStatusRecord struct {
	OrderHash   string `gorm:"primaryKey;size:66"`
	IsValidated bool
	IsCancelled bool
	TotalFilled string `gorm:"size:96"`
	TotalSize   string `gorm:"size:96"`
	UpdatedAt   time.Time
}

type CounterRecord struct {
	Offerer   string `gorm:"primaryKey;size:42"`
	Counter   uint64
	UpdatedAt time.Time
}

type PostgresOrderStore struct {
	db *gorm.DB
}

func NewPostgresOrderStore(db *gorm.DB) *PostgresOrderStore {
	store := &PostgresOrderStore{db: db}
	_ = db.AutoMigrate(&OrderStatusRecord{}, &CounterRecord{})
	return store
}

func (s *PostgresOrderStore) GetStatus(ctx context.Context, orderHash common.Hash) (model.OrderStatus, error) {
	var rec OrderStatusRecord
	err := s.db.WithContext(ctx).First(&rec, "order_hash = ?", orderHash.Hex()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.NewOrderStatus(), nil
	}
	if err != nil {
		return model.OrderStatus{}, err
	}
	return statusFromRecord(&rec)
}

func (s *PostgresOrderStore) ApplyUpdates(ctx context.Context, updates []model.StatusUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range updates {
			rec := OrderStatusRecord{
				OrderHash:   u.OrderHash.Hex(),
				IsValidated: u.Status.IsValidated,
				IsCancelled: u.Status.IsCancelled,
				TotalFilled: bigField(u.Status.TotalFilled),
				TotalSize:   bigField(u.Status.TotalSize),
				UpdatedAt:   time.Now().UTC(),
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "order_hash"}},
				UpdateAll: true,
			}).Create(&rec).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PostgresOrderStore) GetCounter(ctx context.Context, offerer common.Address) (uint64, error) {
	var rec CounterRecord
	err := s.db.WithContext(ctx).First(&rec, "offerer = ?", offerer.Hex()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return rec.Counter, nil
}

func (s *PostgresOrderStore) IncrementCounter(ctx context.Context, offerer common.Address) (uint64, error) {
	var next uint64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec CounterRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&rec, "offerer = ?", offerer.Hex()).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			rec = CounterRecord{Offerer: offerer.Hex()}
		} else if err != nil {
			return err
		}
		rec.Counter++
		rec.UpdatedAt = time.Now().UTC()
		next = rec.Counter
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "offerer"}},
			UpdateAll: true,
		}).Create(&rec).Error
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

func statusFromRecord(rec *OrderStatusRecord) (model.OrderStatus, error) {
	status := model.NewOrderStatus()
	status.IsValidated = rec.IsValidated
	status.IsCancelled = rec.IsCancelled
	if rec.TotalFilled != "" {
		if _, ok := status.TotalFilled.SetString(rec.TotalFilled, 10); !ok {
			return model.OrderStatus{}, fmt.Errorf("corrupt filled value %q for %s", rec.TotalFilled, rec.OrderHash)
		}
	}
	if rec.TotalSize != "" {
		if _, ok := status.TotalSize.SetString(rec.TotalSize, 10); !ok {
			return model.OrderStatus{}, fmt.Errorf("corrupt size value %q for %s", rec.TotalSize, rec.OrderHash)
		}
	}
	return status, nil
}
