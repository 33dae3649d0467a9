package repository

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/immutable/seaport/internal/model"
)

// MemoryStore keeps order statuses and counters in process memory. It is the
// default backend and the reference semantics for the persistent ones: an
// unknown hash reads as the zero status, a batch of updates lands atomically
// under one lock, and statuses are never evicted.
type MemoryStore struct {
	mu       sync.RWMutex
	statuses map[common.Hash]model.OrderStatus
	counters map[common.Address]uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		statuses: make(map[common.Hash]model.OrderStatus),
		counters: make(map[common.Address]uint64),
	}
}

func (s *MemoryStore) GetStatus(ctx context.Context, orderHash common.Hash) (model.OrderStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.statuses[orderHash]
	if !ok {
		return model.NewOrderStatus(), nil
	}
	return status.Clone(), nil
}

func (s *MemoryStore) ApplyUpdates(ctx context.Context, updates []model.StatusUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range updates {
		s.statuses[u.OrderHash] = u.Status.Clone()
	}
	return nil
}

func (s *MemoryStore) GetCounter(ctx context.Context, offerer common.Address) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counters[offerer], nil
}

func (s *MemoryStore) IncrementCounter(ctx context.Context, offerer common.Address) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[offerer]++
	return s.counters[offerer], nil
}
