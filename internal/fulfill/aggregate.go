package fulfill

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/immutable/seaport/internal/model"
)

var (
	// ErrMissingFulfillmentComponent flags an empty component group or a
	// reference outside the batch.
	ErrMissingFulfillmentComponent = errors.New("missing fulfillment component")
	// ErrMismatchedFulfillmentComponents flags aggregation across items
	// that do not describe the same asset (or the same source/destination).
	ErrMismatchedFulfillmentComponents = errors.New("mismatched fulfillment components")
	// ErrConsiderationNotMet is the settlement shortfall: an obligation
	// survived every fulfillment.
	ErrConsiderationNotMet = errors.New("consideration not met")
)

// aggregated is one side of a fulfillment after summing its components.
type aggregated struct {
	kind       WorkingItem
	total      *big.Int
	offerer    common.Address
	conduitKey common.Hash
	first      *WorkingItem
}

// aggregateComponents sums one component group, consuming the referenced item
// amounts. Offer components must agree on (offerer, conduit, item); while
// consideration components must agree on (item, recipient). When
// skipUnavailable is set, components pointing at unavailable orders are
// dropped; if that drops the whole group the result is nil with no error. An
// empty group is always an error.
func aggregateComponents(orders []*WorkingOrder, components []model.FulfillmentComponent, side model.Side, skipUnavailable bool) (*aggregated, error) {
	if len(components) == 0 {
		return nil, fmt.Errorf("%w: empty %s component group", ErrMissingFulfillmentComponent, side)
	}

	var agg *aggregated
	for _, c := range components {
		if c.OrderIndex < 0 || c.OrderIndex >= len(orders) {
			return nil, fmt.Errorf("%w: order index %d out of range", ErrMissingFulfillmentComponent, c.OrderIndex)
		}
		order := orders[c.OrderIndex]
		if !order.Available {
			if skipUnavailable {
				continue
			}
			return nil, fmt.Errorf("%w: order %d is unavailable", ErrMissingFulfillmentComponent, c.OrderIndex)
		}

		items := order.Offer
		if side == model.SideConsideration {
			items = order.Consideration
		}
		if c.ItemIndex < 0 || c.ItemIndex >= len(items) {
			return nil, fmt.Errorf("%w: order %d %s item %d out of range", ErrMissingFulfillmentComponent, c.OrderIndex, side, c.ItemIndex)
		}
		item := &items[c.ItemIndex]

		if agg == nil {
			agg = &aggregated{
				kind:       *item,
				total:      new(big.Int).Set(item.Amount),
				offerer:    order.Offerer,
				conduitKey: order.ConduitKey,
				first:      item,
			}
			item.Amount.SetInt64(0)
			continue
		}

		if !agg.kind.sameKind(*item) {
			return nil, fmt.Errorf("%w: order %d %s item %d is a different asset", ErrMismatchedFulfillmentComponents, c.OrderIndex, side, c.ItemIndex)
		}
		if side == model.SideOffer && (order.Offerer != agg.offerer || order.ConduitKey != agg.conduitKey) {
			return nil, fmt.Errorf("%w: order %d offer item %d has a different offerer or conduit", ErrMismatchedFulfillmentComponents, c.OrderIndex, c.ItemIndex)
		}
		if side == model.SideConsideration && item.Recipient != agg.kind.Recipient {
			return nil, fmt.Errorf("%w: order %d consideration item %d has a different recipient", ErrMismatchedFulfillmentComponents, c.OrderIndex, c.ItemIndex)
		}

		agg.total.Add(agg.total, item.Amount)
		item.Amount.SetInt64(0)
	}
	return agg, nil
}

// ApplyFulfillments executes the match flow: each fulfillment nets one group
// of offer components against one group of consideration components, moving
// min(offerSum, considerationSum) and writing the surplus back to the first
// item on the longer side. After all fulfillments every consideration must be
// fully met, and unspent offer remainders are swept to recipient. Executions
// keep the order fulfillments were supplied in; zero-amount executions are
// dropped.
func ApplyFulfillments(orders []*WorkingOrder, fulfillments []model.Fulfillment, recipient common.Address) ([]model.Execution, error) {
	executions := make([]model.Execution, 0, len(fulfillments))

	for fi, f := range fulfillments {
		offer, err := aggregateComponents(orders, f.OfferComponents, model.SideOffer, false)
		if err != nil {
			return nil, fmt.Errorf("fulfillment %d: %w", fi, err)
		}
		consideration, err := aggregateComponents(orders, f.ConsiderationComponents, model.SideConsideration, false)
		if err != nil {
			return nil, fmt.Errorf("fulfillment %d: %w", fi, err)
		}
		if !offer.kind.sameKind(consideration.kind) {
			return nil, fmt.Errorf("fulfillment %d: %w: offer and consideration reference different assets", fi, ErrMismatchedFulfillmentComponents)
		}

		amount := new(big.Int)
		switch offer.total.Cmp(consideration.total) {
		case 1:
			amount.Set(consideration.total)
			offer.first.Amount.Sub(offer.total, consideration.total)
		case -1:
			amount.Set(offer.total)
			consideration.first.Amount.Sub(consideration.total, offer.total)
		default:
			amount.Set(offer.total)
		}
		if amount.Sign() == 0 {
			continue
		}

		executions = append(executions, model.Execution{
			Item:       offer.kind.received(amount, consideration.kind.Recipient),
			Offerer:    offer.offerer,
			ConduitKey: offer.conduitKey,
		})
	}

	if err := requireConsiderationMet(orders); err != nil {
		return nil, err
	}

	// Offer amounts no fulfillment consumed belong to the caller-designated
	// recipient, not the offerer: the offerer signed them away.
	for _, order := range orders {
		if !order.Available {
			continue
		}
		for i := range order.Offer {
			item := &order.Offer[i]
			if item.Amount.Sign() == 0 {
				continue
			}
			executions = append(executions, model.Execution{
				Item:       item.received(new(big.Int).Set(item.Amount), recipient),
				Offerer:    order.Offerer,
				ConduitKey: order.ConduitKey,
			})
			item.Amount.SetInt64(0)
		}
	}

	return executions, nil
}

// AggregateAvailable executes the fulfill-available flow: the caller supplies
// component groups that merge same-kind items across orders. Offer groups
// produce transfers to recipient; consideration groups produce transfers the
// fulfiller funds. Groups whose components all point at unavailable orders
// are dropped. Offer amounts left unreferenced stay with their offerers, but
// every consideration of an available order must be met.
func AggregateAvailable(orders []*WorkingOrder, components model.FulfillAvailableComponents, fulfiller, recipient common.Address, fulfillerConduitKey common.Hash) ([]model.Execution, error) {
	executions := make([]model.Execution, 0, len(components.Offer)+len(components.Consideration))

	for gi, group := range components.Offer {
		agg, err := aggregateComponents(orders, group, model.SideOffer, true)
		if err != nil {
			return nil, fmt.Errorf("offer group %d: %w", gi, err)
		}
		if agg == nil || agg.total.Sign() == 0 {
			continue
		}
		executions = append(executions, model.Execution{
			Item:       agg.kind.received(agg.total, recipient),
			Offerer:    agg.offerer,
			ConduitKey: agg.conduitKey,
		})
	}

	for gi, group := range components.Consideration {
		agg, err := aggregateComponents(orders, group, model.SideConsideration, true)
		if err != nil {
			return nil, fmt.Errorf("consideration group %d: %w", gi, err)
		}
		if agg == nil || agg.total.Sign() == 0 {
			continue
		}
		executions = append(executions, model.Execution{
			Item:       agg.kind.received(agg.total, agg.kind.Recipient),
			Offerer:    fulfiller,
			ConduitKey: fulfillerConduitKey,
		})
	}

	if err := requireConsiderationMet(orders); err != nil {
		return nil, err
	}
	return executions, nil
}

// SingleOrder settles one order directly: offer amounts first net against
// same-asset considerations (the offerer pays those recipients directly),
// surplus goes to recipient, and whatever consideration remains is the
// fulfiller's obligation.
func SingleOrder(order *WorkingOrder, fulfiller, recipient common.Address, fulfillerConduitKey common.Hash) []model.Execution {
	executions := make([]model.Execution, 0, len(order.Offer)+len(order.Consideration))

	for i := range order.Offer {
		item := &order.Offer[i]
		remaining := new(big.Int).Set(item.Amount)
		item.Amount.SetInt64(0)

		for j := range order.Consideration {
			c := &order.Consideration[j]
			if remaining.Sign() == 0 {
				break
			}
			if c.Amount.Sign() == 0 || !item.sameKind(*c) {
				continue
			}
			net := minBig(remaining, c.Amount)
			executions = append(executions, model.Execution{
				Item:       item.received(net, c.Recipient),
				Offerer:    order.Offerer,
				ConduitKey: order.ConduitKey,
			})
			remaining.Sub(remaining, net)
			c.Amount.Sub(c.Amount, net)
		}

		if remaining.Sign() > 0 {
			executions = append(executions, model.Execution{
				Item:       item.received(remaining, recipient),
				Offerer:    order.Offerer,
				ConduitKey: order.ConduitKey,
			})
		}
	}

	for j := range order.Consideration {
		c := &order.Consideration[j]
		if c.Amount.Sign() == 0 {
			continue
		}
		executions = append(executions, model.Execution{
			Item:       c.received(new(big.Int).Set(c.Amount), c.Recipient),
			Offerer:    fulfiller,
			ConduitKey: fulfillerConduitKey,
		})
		c.Amount.SetInt64(0)
	}

	return executions
}

func requireConsiderationMet(orders []*WorkingOrder) error {
	for oi, order := range orders {
		if !order.Available {
			continue
		}
		for ii := range order.Consideration {
			if left := order.Consideration[ii].Amount; left.Sign() != 0 {
				return fmt.Errorf("%w: order %d item %d short by %s", ErrConsiderationNotMet, oi, ii, left)
			}
		}
	}
	return nil
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
