package fulfill

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/immutable/seaport/internal/model"
)

// WorkingItem is one resolved item during settlement. Amount is the remaining
// amount for the current call: aggregation consumes it, writes surpluses back,
// and whatever is left drives the final shortfall and sweep checks.
type WorkingItem struct {
	ItemType   model.ItemType
	Token      common.Address
	Identifier *big.Int
	Amount     *big.Int
	Recipient  common.Address
}

func (i WorkingItem) sameKind(o WorkingItem) bool {
	return i.ItemType == o.ItemType && i.Token == o.Token && i.Identifier.Cmp(o.Identifier) == 0
}

// received converts the item to a transfer payload with an explicit amount
// and destination.
func (i WorkingItem) received(amount *big.Int, recipient common.Address) model.ReceivedItem {
	return model.ReceivedItem{
		ItemType:   i.ItemType,
		Token:      i.Token,
		Identifier: new(big.Int).Set(i.Identifier),
		Amount:     amount,
		Recipient:  recipient,
	}
}

// WorkingOrder is one order of a batch after validation, criteria resolution,
// time interpolation, and fraction scaling. Unavailable orders stay in the
// slice to keep component indices stable but take no part in aggregation.
type WorkingOrder struct {
	Offerer       common.Address
	ConduitKey    common.Hash
	Offer         []WorkingItem
	Consideration []WorkingItem
	Available     bool
}

// NewWorkingOrder shapes resolved parameters and per-item amounts into the
// aggregator's mutable form. The amounts slices run parallel to the offer and
// consideration items.
func NewWorkingOrder(params model.OrderParameters, offerAmounts, considerationAmounts []*big.Int) *WorkingOrder {
	w := &WorkingOrder{
		Offerer:       params.Offerer,
		ConduitKey:    params.ConduitKey,
		Offer:         make([]WorkingItem, len(params.Offer)),
		Consideration: make([]WorkingItem, len(params.Consideration)),
		Available:     true,
	}
	for i, item := range params.Offer {
		w.Offer[i] = WorkingItem{
			ItemType:   item.ItemType,
			Token:      item.Token,
			Identifier: bigOrZero(item.IdentifierOrCriteria),
			Amount:     bigOrZero(offerAmounts[i]),
		}
	}
	for i, item := range params.Consideration {
		w.Consideration[i] = WorkingItem{
			ItemType:   item.ItemType,
			Token:      item.Token,
			Identifier: bigOrZero(item.IdentifierOrCriteria),
			Amount:     bigOrZero(considerationAmounts[i]),
			Recipient:  item.Recipient,
		}
	}
	return w
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
