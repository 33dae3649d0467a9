package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/immutable/seaport/internal/fulfill"
	"github.com/immutable/seaport/internal/model"
	"github.com/immutable/seaport/internal/signer"
)

// orderState threads one order through a settlement call: the engine's
// private copy, its hash, the effective fill fraction, the status to persist
// once transfers land, and (after materialize) the working amounts plus the
// resolved item snapshots handed to zones.
type orderState struct {
	adv       *model.AdvancedOrder
	hash      common.Hash
	effNum    *big.Int
	effDen    *big.Int
	newStatus model.OrderStatus
	working   *fulfill.WorkingOrder
	spent     []model.SpentItem
	received  []model.ReceivedItem
}

// cloneAdvanced copies the order deeply enough that criteria resolution and
// amount bookkeeping never touch the caller's value.
func cloneAdvanced(order *model.AdvancedOrder) *model.AdvancedOrder {
	out := *order
	out.Parameters.Offer = append([]model.OfferItem(nil), order.Parameters.Offer...)
	out.Parameters.Consideration = append([]model.ConsiderationItem(nil), order.Parameters.Consideration...)
	return &out
}

// unavailableState is the placeholder for a skipped order. Numerator zero
// marks it so criteria resolution and aggregation pass over it.
func unavailableState(order *model.AdvancedOrder) *orderState {
	adv := cloneAdvanced(order)
	adv.Numerator = 0
	return &orderState{adv: adv}
}

// prepareOrder runs every per-order check that precedes execution:
// structure, fraction legality, time window, persisted status, signature. On
// success the returned state carries the effective fill fraction and the
// status to persist after transfers.
func (e *Engine) prepareOrder(ctx context.Context, order *model.AdvancedOrder, now uint64) (*orderState, error) {
	adv := cloneAdvanced(order)
	if err := adv.Parameters.Validate(); err != nil {
		return nil, err
	}
	if err := adv.ValidateFraction(); err != nil {
		return nil, err
	}
	if now < adv.Parameters.StartTime || now >= adv.Parameters.EndTime {
		return nil, fmt.Errorf("%w: window [%d, %d), now %d", ErrInvalidTime, adv.Parameters.StartTime, adv.Parameters.EndTime, now)
	}

	counter, err := e.store.GetCounter(ctx, adv.Parameters.Offerer)
	if err != nil {
		return nil, fmt.Errorf("load counter: %w", err)
	}
	hash := e.hasher.HashOrder(adv.Parameters, counter)

	status, err := e.store.GetStatus(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("load status: %w", err)
	}
	if status.IsCancelled {
		return nil, ErrOrderIsCancelled
	}
	if status.IsFullyFilled() {
		return nil, ErrOrderAlreadyFilled
	}
	if !status.IsValidated {
		if err := e.verifier.Verify(hash, adv.Parameters.Offerer, adv.Signature); err != nil {
			return nil, err
		}
	}

	effNum, effDen, newStatus := applyFraction(adv.Numerator, adv.Denominator, status)
	return &orderState{
		adv:       adv,
		hash:      hash,
		effNum:    effNum,
		effDen:    effDen,
		newStatus: newStatus,
	}, nil
}

// applyFraction merges the requested fill fraction into what the status has
// already recorded. Both fractions move to a common denominator, the request
// is capped at the unfilled remainder, and the persisted status is reduced
// to lowest terms. A denominator of 1 against a partially filled order means
// fill whatever remains.
func applyFraction(requestNum, requestDen uint64, status model.OrderStatus) (effNum, effDen *big.Int, next model.OrderStatus) {
	num := new(big.Int).SetUint64(requestNum)
	den := new(big.Int).SetUint64(requestDen)
	filled := bigOrZero(status.TotalFilled)
	size := bigOrZero(status.TotalSize)

	if size.Sign() != 0 {
		switch {
		case den.Cmp(bigOne) == 0:
			num = new(big.Int).Sub(size, filled)
			den = new(big.Int).Set(size)
		case den.Cmp(size) != 0:
			filled = new(big.Int).Mul(filled, den)
			num = new(big.Int).Mul(num, size)
			den = new(big.Int).Mul(den, size)
		}
		if sum := new(big.Int).Add(filled, num); sum.Cmp(den) > 0 {
			num = new(big.Int).Sub(den, filled)
		}
	}

	newFilled := new(big.Int).Add(filled, num)
	newSize := new(big.Int).Set(den)
	if g := new(big.Int).GCD(nil, nil, newFilled, newSize); g.Cmp(bigOne) > 0 {
		newFilled.Div(newFilled, g)
		newSize.Div(newSize, g)
	}

	next = model.OrderStatus{
		IsValidated: true,
		TotalFilled: newFilled,
		TotalSize:   newSize,
	}
	return num, den, next
}

// materialize computes the working amounts for this fill, interpolating over
// the time window and then scaling by the effective fraction, rounding offer
// amounts down and consideration amounts up. It also snapshots the resolved
// spent/received views before aggregation starts consuming amounts.
func (s *orderState) materialize(now uint64) {
	params := s.adv.Parameters

	offerAmounts := make([]*big.Int, len(params.Offer))
	s.spent = make([]model.SpentItem, len(params.Offer))
	for i, item := range params.Offer {
		base := currentAmount(item.StartAmount, item.EndAmount, params.StartTime, params.EndTime, now, false)
		amount := scaleFraction(base, s.effNum, s.effDen, false)
		offerAmounts[i] = amount
		s.spent[i] = item.Spent(new(big.Int).Set(item.IdentifierOrCriteria), new(big.Int).Set(amount))
	}

	considerationAmounts := make([]*big.Int, len(params.Consideration))
	s.received = make([]model.ReceivedItem, len(params.Consideration))
	for i, item := range params.Consideration {
		base := currentAmount(item.StartAmount, item.EndAmount, params.StartTime, params.EndTime, now, true)
		amount := scaleFraction(base, s.effNum, s.effDen, true)
		considerationAmounts[i] = amount
		s.received[i] = item.Received(new(big.Int).Set(item.IdentifierOrCriteria), new(big.Int).Set(amount))
	}

	s.working = fulfill.NewWorkingOrder(params, offerAmounts, considerationAmounts)
}

// isSkippable classifies the per-order failures the fulfill-available flow
// tolerates: expired windows, cancelled or exhausted orders, and signatures
// that fail to verify. Structural and fraction errors stay fatal.
func isSkippable(err error) bool {
	if errors.Is(err, ErrInvalidTime) || errors.Is(err, ErrOrderIsCancelled) || errors.Is(err, ErrOrderAlreadyFilled) {
		return true
	}
	if errors.Is(err, signer.ErrInvalidSignature) || errors.Is(err, signer.ErrInvalidSigner) {
		return true
	}
	var badV *signer.BadSignatureVError
	return errors.As(err, &badV)
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
