package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/immutable/seaport/internal/conduit"
	"github.com/immutable/seaport/internal/model"
	"github.com/immutable/seaport/internal/zone"
)

// checkRestricted consults the zone of every restricted order, except when
// the fulfiller is the offerer or the zone itself. The zone sees the
// resolved spent and received items plus every order hash settling in the
// batch. Any zone failure aborts the whole call before transfers start.
func (e *Engine) checkRestricted(ctx context.Context, states []*orderState, hashes []common.Hash, fulfiller common.Address) error {
	for _, s := range states {
		params := s.adv.Parameters
		if !params.OrderType.IsRestricted() {
			continue
		}
		if fulfiller == params.Offerer || fulfiller == params.Zone {
			continue
		}

		z, ok := e.zones.Resolve(params.Zone)
		if !ok {
			return fmt.Errorf("%w: order %s: no zone registered at %s", ErrInvalidRestrictedOrder, s.hash.Hex(), params.Zone.Hex())
		}
		magic, err := z.ValidateOrder(ctx, &zone.Parameters{
			OrderHash:     s.hash,
			Fulfiller:     fulfiller,
			Offerer:       params.Offerer,
			Offer:         s.spent,
			Consideration: s.received,
			ExtraData:     s.adv.ExtraData,
			OrderHashes:   hashes,
			StartTime:     params.StartTime,
			EndTime:       params.EndTime,
			ZoneHash:      params.ZoneHash,
		})
		if err != nil {
			return fmt.Errorf("%w: order %s: %w", ErrInvalidRestrictedOrder, s.hash.Hex(), err)
		}
		if magic != zone.MagicValue {
			return fmt.Errorf("%w: order %s: zone returned wrong magic value", ErrInvalidRestrictedOrder, s.hash.Hex())
		}
	}
	return nil
}

// settle performs the executions over the conduit router and persists the
// new order statuses once every transfer lands. A failure after partial
// progress compensates the already-executed batches, so no half-settled
// state survives the call.
func (e *Engine) settle(ctx context.Context, states []*orderState, executions []model.Execution) error {
	batches := batchExecutions(executions)

	var done []transferBatch
	for _, b := range batches {
		if err := e.conduits.Execute(ctx, b.key, b.transfers); err != nil {
			return errors.Join(err, e.compensate(ctx, done))
		}
		done = append(done, b)
	}

	updates := make([]model.StatusUpdate, 0, len(states))
	for _, s := range states {
		updates = append(updates, model.StatusUpdate{OrderHash: s.hash, Status: s.newStatus})
	}
	if err := e.store.ApplyUpdates(ctx, updates); err != nil {
		return errors.Join(fmt.Errorf("persist statuses: %w", err), e.compensate(ctx, done))
	}
	return nil
}

type transferBatch struct {
	key       common.Hash
	transfers []conduit.Transfer
}

// batchExecutions groups consecutive executions that travel the same conduit
// into one atomic Execute call, preserving the global execution order.
// Native items cannot ride a conduit and are forced onto the direct route.
func batchExecutions(executions []model.Execution) []transferBatch {
	var batches []transferBatch
	for _, ex := range executions {
		key := ex.ConduitKey
		if ex.Item.ItemType == model.ItemTypeNative {
			key = common.Hash{}
		}
		t := conduit.Transfer{
			ItemType:   ex.Item.ItemType,
			Token:      ex.Item.Token,
			From:       ex.Offerer,
			To:         ex.Item.Recipient,
			Identifier: ex.Item.Identifier,
			Amount:     ex.Item.Amount,
		}
		if n := len(batches); n > 0 && batches[n-1].key == key {
			batches[n-1].transfers = append(batches[n-1].transfers, t)
			continue
		}
		batches = append(batches, transferBatch{key: key, transfers: []conduit.Transfer{t}})
	}
	return batches
}

// compensate applies the inverse of every executed batch in reverse order.
// It runs detached from the caller's cancellation so a timed-out settlement
// still unwinds.
func (e *Engine) compensate(ctx context.Context, done []transferBatch) error {
	ctx = context.WithoutCancel(ctx)

	var errs []error
	for i := len(done) - 1; i >= 0; i-- {
		b := done[i]
		inverse := make([]conduit.Transfer, 0, len(b.transfers))
		for j := len(b.transfers) - 1; j >= 0; j-- {
			t := b.transfers[j]
			inverse = append(inverse, conduit.Transfer{
				ItemType:   t.ItemType,
				Token:      t.Token,
				From:       t.To,
				To:         t.From,
				Identifier: t.Identifier,
				Amount:     t.Amount,
			})
		}
		if err := e.conduits.Execute(ctx, b.key, inverse); err != nil {
			errs = append(errs, fmt.Errorf("compensate conduit %s: %w", b.key.Hex(), err))
		}
	}
	return errors.Join(errs...)
}
