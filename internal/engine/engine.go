package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/immutable/seaport/internal/conduit"
	"github.com/immutable/seaport/internal/criteria"
	"github.com/immutable/seaport/internal/fulfill"
	"github.com/immutable/seaport/internal/model"
	"github.com/immutable/seaport/internal/signer"
	"github.com/immutable/seaport/internal/zone"
)

var (
	ErrInvalidTime                = errors.New("order time invalid")
	ErrOrderIsCancelled           = errors.New("order is cancelled")
	ErrOrderAlreadyFilled         = errors.New("order already filled")
	ErrNoSpecifiedOrdersAvailable = errors.New("no specified orders available")
	ErrInvalidRestrictedOrder     = errors.New("invalid restricted order")
	ErrInvalidCanceller           = errors.New("caller may not cancel order")
)

// OrderStore persists order statuses and offerer counters. A missing order
// hash yields the zero status, not an error; ApplyUpdates applies the whole
// batch atomically.
type OrderStore interface {
	GetStatus(ctx context.Context, orderHash common.Hash) (model.OrderStatus, error)
	ApplyUpdates(ctx context.Context, updates []model.StatusUpdate) error
	GetCounter(ctx context.Context, offerer common.Address) (uint64, error)
	IncrementCounter(ctx context.Context, offerer common.Address) (uint64, error)
}

// Engine is the settlement executor. One mutex serializes every
// state-mutating call: each settlement observes and persists order status as
// one atomic step, so a concurrent call can never double-spend a fill.
type Engine struct {
	mu       sync.Mutex
	hasher   *signer.Hasher
	verifier *signer.Verifier
	store    OrderStore
	zones    *zone.Registry
	conduits *conduit.Router
	now      func() time.Time
}

func New(hasher *signer.Hasher, store OrderStore, zones *zone.Registry, conduits *conduit.Router) *Engine {
	return &Engine{
		hasher:   hasher,
		verifier: signer.NewVerifier(hasher),
		store:    store,
		zones:    zones,
		conduits: conduits,
		now:      time.Now,
	}
}

// FulfillOrder settles a single full-fill order. Offer items go to the
// fulfiller, who funds every consideration item.
func (e *Engine) FulfillOrder(ctx context.Context, order model.Order, fulfiller common.Address, fulfillerConduitKey common.Hash) (*model.FillResult, error) {
	return e.FulfillAdvancedOrder(ctx, order.Advanced(), nil, fulfiller, fulfillerConduitKey, fulfiller)
}

// FulfillAdvancedOrder settles a single order with partial-fill and criteria
// support. A zero recipient directs offer items to the fulfiller.
func (e *Engine) FulfillAdvancedOrder(ctx context.Context, order *model.AdvancedOrder, resolvers []model.CriteriaResolver, fulfiller common.Address, fulfillerConduitKey common.Hash, recipient common.Address) (*model.FillResult, error) {
	if recipient == (common.Address{}) {
		recipient = fulfiller
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	now := uint64(e.now().Unix())

	state, err := e.prepareOrder(ctx, order, now)
	if err != nil {
		return nil, err
	}
	if err := criteria.ApplyResolvers([]*model.AdvancedOrder{state.adv}, resolvers); err != nil {
		return nil, err
	}
	state.materialize(now)

	executions := fulfill.SingleOrder(state.working, fulfiller, recipient, fulfillerConduitKey)

	hashes := []common.Hash{state.hash}
	if err := e.checkRestricted(ctx, []*orderState{state}, hashes, fulfiller); err != nil {
		return nil, err
	}
	if err := e.settle(ctx, []*orderState{state}, executions); err != nil {
		return nil, err
	}

	return &model.FillResult{
		OrderHashes: hashes,
		Executions:  executions,
		Available:   []bool{true},
	}, nil
}

// FulfillAvailableOrders is the full-fill form of
// FulfillAvailableAdvancedOrders.
func (e *Engine) FulfillAvailableOrders(ctx context.Context, orders []model.Order, components model.FulfillAvailableComponents, fulfiller common.Address, fulfillerConduitKey common.Hash, recipient common.Address, maximumFulfilled int) (*model.FillResult, error) {
	advanced := make([]*model.AdvancedOrder, len(orders))
	for i, o := range orders {
		advanced[i] = o.Advanced()
	}
	return e.FulfillAvailableAdvancedOrders(ctx, advanced, nil, components, fulfiller, fulfillerConduitKey, recipient, maximumFulfilled)
}

// FulfillAvailableAdvancedOrders settles the fillable subset of a batch.
// Orders that are expired, cancelled, already filled, or carry a bad
// signature are skipped rather than failing the call; the result reports
// per-order availability. maximumFulfilled caps how many orders settle
// (zero or negative means no cap). With no fillable orders the call fails
// with ErrNoSpecifiedOrdersAvailable.
func (e *Engine) FulfillAvailableAdvancedOrders(ctx context.Context, orders []*model.AdvancedOrder, resolvers []model.CriteriaResolver, components model.FulfillAvailableComponents, fulfiller common.Address, fulfillerConduitKey common.Hash, recipient common.Address, maximumFulfilled int) (*model.FillResult, error) {
	if recipient == (common.Address{}) {
		recipient = fulfiller
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	now := uint64(e.now().Unix())

	states := make([]*orderState, len(orders))
	hashes := make([]common.Hash, len(orders))
	available := make([]bool, len(orders))
	remaining := maximumFulfilled

	for i, order := range orders {
		if maximumFulfilled > 0 && remaining == 0 {
			states[i] = unavailableState(order)
			continue
		}
		state, err := e.prepareOrder(ctx, order, now)
		if err != nil {
			if !isSkippable(err) {
				return nil, fmt.Errorf("order %d: %w", i, err)
			}
			states[i] = unavailableState(order)
			continue
		}
		states[i] = state
		hashes[i] = state.hash
		available[i] = true
		remaining--
	}

	advCopies := make([]*model.AdvancedOrder, len(states))
	for i, s := range states {
		advCopies[i] = s.adv
	}
	if err := criteria.ApplyResolvers(advCopies, resolvers); err != nil {
		return nil, err
	}

	workings := make([]*fulfill.WorkingOrder, len(states))
	anyAvailable := false
	for i, s := range states {
		if !available[i] {
			workings[i] = &fulfill.WorkingOrder{Available: false}
			continue
		}
		s.materialize(now)
		workings[i] = s.working
		anyAvailable = true
	}
	if !anyAvailable {
		return nil, ErrNoSpecifiedOrdersAvailable
	}

	executions, err := fulfill.AggregateAvailable(workings, components, fulfiller, recipient, fulfillerConduitKey)
	if err != nil {
		return nil, err
	}

	settled := availableStates(states, available)
	settledHashes := availableHashes(hashes, available)
	if err := e.checkRestricted(ctx, settled, settledHashes, fulfiller); err != nil {
		return nil, err
	}
	if err := e.settle(ctx, settled, executions); err != nil {
		return nil, err
	}

	return &model.FillResult{
		OrderHashes: hashes,
		Executions:  executions,
		Available:   available,
	}, nil
}

// MatchOrders settles a set of full-fill orders against each other using
// explicit fulfillments. The caller supplies no balance of their own; every
// consideration must be covered by some offer. Unspent offer remainders go
// to the caller.
func (e *Engine) MatchOrders(ctx context.Context, orders []model.Order, fulfillments []model.Fulfillment, caller common.Address) (*model.FillResult, error) {
	advanced := make([]*model.AdvancedOrder, len(orders))
	for i, o := range orders {
		advanced[i] = o.Advanced()
	}
	return e.MatchAdvancedOrders(ctx, advanced, nil, fulfillments, caller, caller)
}

// MatchAdvancedOrders is the partial-fill, criteria-aware match flow. Every
// order must be fully valid; there is no skipping.
func (e *Engine) MatchAdvancedOrders(ctx context.Context, orders []*model.AdvancedOrder, resolvers []model.CriteriaResolver, fulfillments []model.Fulfillment, caller, recipient common.Address) (*model.FillResult, error) {
	if recipient == (common.Address{}) {
		recipient = caller
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	now := uint64(e.now().Unix())

	states := make([]*orderState, len(orders))
	hashes := make([]common.Hash, len(orders))
	for i, order := range orders {
		state, err := e.prepareOrder(ctx, order, now)
		if err != nil {
			return nil, fmt.Errorf("order %d: %w", i, err)
		}
		states[i] = state
		hashes[i] = state.hash
	}

	advCopies := make([]*model.AdvancedOrder, len(states))
	for i, s := range states {
		advCopies[i] = s.adv
	}
	if err := criteria.ApplyResolvers(advCopies, resolvers); err != nil {
		return nil, err
	}

	workings := make([]*fulfill.WorkingOrder, len(states))
	for i, s := range states {
		s.materialize(now)
		workings[i] = s.working
	}

	executions, err := fulfill.ApplyFulfillments(workings, fulfillments, recipient)
	if err != nil {
		return nil, err
	}

	if err := e.checkRestricted(ctx, states, hashes, caller); err != nil {
		return nil, err
	}
	if err := e.settle(ctx, states, executions); err != nil {
		return nil, err
	}

	available := make([]bool, len(orders))
	for i := range available {
		available[i] = true
	}
	return &model.FillResult{
		OrderHashes: hashes,
		Executions:  executions,
		Available:   available,
	}, nil
}

// Cancel marks orders as permanently cancelled. Only the offerer or the
// order's zone may cancel. Orders already cancelled or fully filled are
// left as they are: cancellation is idempotent and never fails for being
// late.
func (e *Engine) Cancel(ctx context.Context, orders []model.OrderComponents, caller common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	updates := make([]model.StatusUpdate, 0, len(orders))
	for i, components := range orders {
		if caller != components.Offerer && caller != components.Zone {
			return fmt.Errorf("order %d: %w", i, ErrInvalidCanceller)
		}

		hash := e.hasher.HashComponents(components)
		status, err := e.store.GetStatus(ctx, hash)
		if err != nil {
			return fmt.Errorf("order %d: load status: %w", i, err)
		}
		if status.IsCancelled || status.IsFullyFilled() {
			continue
		}

		status.IsCancelled = true
		status.IsValidated = false
		updates = append(updates, model.StatusUpdate{OrderHash: hash, Status: status})
	}

	if len(updates) == 0 {
		return nil
	}
	return e.store.ApplyUpdates(ctx, updates)
}

// Validate checks signatures ahead of time and records the orders as
// validated, letting later fills skip signature verification. Time bounds
// are not checked here; a not-yet-started order can be pre-validated.
func (e *Engine) Validate(ctx context.Context, orders []model.Order) ([]common.Hash, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	hashes := make([]common.Hash, len(orders))
	updates := make([]model.StatusUpdate, 0, len(orders))
	for i, order := range orders {
		if err := order.Parameters.Validate(); err != nil {
			return nil, fmt.Errorf("order %d: %w", i, err)
		}

		counter, err := e.store.GetCounter(ctx, order.Parameters.Offerer)
		if err != nil {
			return nil, fmt.Errorf("order %d: load counter: %w", i, err)
		}
		hash := e.hasher.HashOrder(order.Parameters, counter)
		hashes[i] = hash

		status, err := e.store.GetStatus(ctx, hash)
		if err != nil {
			return nil, fmt.Errorf("order %d: load status: %w", i, err)
		}
		if status.IsCancelled {
			return nil, fmt.Errorf("order %d: %w", i, ErrOrderIsCancelled)
		}
		if status.IsValidated {
			continue
		}
		if err := e.verifier.Verify(hash, order.Parameters.Offerer, order.Signature); err != nil {
			return nil, fmt.Errorf("order %d: %w", i, err)
		}

		status.IsValidated = true
		updates = append(updates, model.StatusUpdate{OrderHash: hash, Status: status})
	}

	if len(updates) > 0 {
		if err := e.store.ApplyUpdates(ctx, updates); err != nil {
			return nil, err
		}
	}
	return hashes, nil
}

// IncrementCounter bumps the offerer's counter, invalidating every
// outstanding order signed under the old one, and returns the new value.
func (e *Engine) IncrementCounter(ctx context.Context, offerer common.Address) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.IncrementCounter(ctx, offerer)
}

// GetOrderStatus returns the persisted fill state for an order hash.
func (e *Engine) GetOrderStatus(ctx context.Context, orderHash common.Hash) (model.OrderStatus, error) {
	return e.store.GetStatus(ctx, orderHash)
}

// GetCounter returns the offerer's current counter.
func (e *Engine) GetCounter(ctx context.Context, offerer common.Address) (uint64, error) {
	return e.store.GetCounter(ctx, offerer)
}

// GetOrderHash derives the hash of fully specified components.
func (e *Engine) GetOrderHash(components model.OrderComponents) common.Hash {
	return e.hasher.HashComponents(components)
}

// GetCurrentOrderHash derives the hash the parameters would settle under
// right now, with the offerer's live counter mixed in.
func (e *Engine) GetCurrentOrderHash(ctx context.Context, params model.OrderParameters) (common.Hash, uint64, error) {
	counter, err := e.store.GetCounter(ctx, params.Offerer)
	if err != nil {
		return common.Hash{}, 0, err
	}
	return e.hasher.HashOrder(params, counter), counter, nil
}

// ContractSigners exposes the registry that lets smart-contract offerers
// validate signatures through a policy callback instead of key recovery.
func (e *Engine) ContractSigners() *signer.ContractRegistry {
	return e.verifier.Contracts()
}

func availableStates(states []*orderState, available []bool) []*orderState {
	out := make([]*orderState, 0, len(states))
	for i, s := range states {
		if available[i] {
			out = append(out, s)
		}
	}
	return out
}

func availableHashes(hashes []common.Hash, available []bool) []common.Hash {
	out := make([]common.Hash, 0, len(hashes))
	for i, h := range hashes {
		if available[i] {
			out = append(out, h)
		}
	}
	return out
}
