package fulfill

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/immutable/seaport/internal/model"
)

var (
	offererA  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	offererB  = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	offererC  = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	taker     = common.HexToAddress("0x00000000000000000000000000000000000000d4")
	feeWallet = common.HexToAddress("0x00000000000000000000000000000000000000fe")
	tokenX    = common.HexToAddress("0x0000000000000000000000000000000000001111")
	tokenY    = common.HexToAddress("0x0000000000000000000000000000000000002222")
	nftToken  = common.HexToAddress("0x0000000000000000000000000000000000003333")
)

func erc20(token common.Address, amount int64) WorkingItem {
	return WorkingItem{
		ItemType:   model.ItemTypeERC20,
		Token:      token,
		Identifier: new(big.Int),
		Amount:     big.NewInt(amount),
	}
}

func nft(id int64) WorkingItem {
	return WorkingItem{
		ItemType:   model.ItemTypeERC721,
		Token:      nftToken,
		Identifier: big.NewInt(id),
		Amount:     big.NewInt(1),
	}
}

func native(amount int64) WorkingItem {
	return WorkingItem{
		ItemType:   model.ItemTypeNative,
		Identifier: new(big.Int),
		Amount:     big.NewInt(amount),
	}
}

func owed(item WorkingItem, recipient common.Address) WorkingItem {
	item.Recipient = recipient
	return item
}

func order(offerer common.Address, offer, consideration []WorkingItem) *WorkingOrder {
	return &WorkingOrder{
		Offerer:       offerer,
		Offer:         offer,
		Consideration: consideration,
		Available:     true,
	}
}

func component(orderIndex, itemIndex int) model.FulfillmentComponent {
	return model.FulfillmentComponent{OrderIndex: orderIndex, ItemIndex: itemIndex}
}

func TestApplyFulfillmentsTwoWaySwap(t *testing.T) {
	// A gives 100 X for 50 Y; B gives 50 Y for 100 X.
	orders := []*WorkingOrder{
		order(offererA, []WorkingItem{erc20(tokenX, 100)}, []WorkingItem{owed(erc20(tokenY, 50), offererA)}),
		order(offererB, []WorkingItem{erc20(tokenY, 50)}, []WorkingItem{owed(erc20(tokenX, 100), offererB)}),
	}
	fulfillments := []model.Fulfillment{
		{OfferComponents: []model.FulfillmentComponent{component(0, 0)}, ConsiderationComponents: []model.FulfillmentComponent{component(1, 0)}},
		{OfferComponents: []model.FulfillmentComponent{component(1, 0)}, ConsiderationComponents: []model.FulfillmentComponent{component(0, 0)}},
	}

	executions, err := ApplyFulfillments(orders, fulfillments, taker)
	assert.NoError(t, err)
	assert.Len(t, executions, 2)

	assert.Equal(t, offererA, executions[0].Offerer)
	assert.Equal(t, offererB, executions[0].Item.Recipient)
	assert.Equal(t, int64(100), executions[0].Item.Amount.Int64())
	assert.Equal(t, tokenX, executions[0].Item.Token)

	assert.Equal(t, offererB, executions[1].Offerer)
	assert.Equal(t, offererA, executions[1].Item.Recipient)
	assert.Equal(t, int64(50), executions[1].Item.Amount.Int64())
}

func TestApplyFulfillmentsSurplusSweptToRecipient(t *testing.T) {
	// A offers 100 X but B only demands 60: the execution nets 60 and the
	// 40 surplus is swept to the caller's recipient.
	orders := []*WorkingOrder{
		order(offererA, []WorkingItem{erc20(tokenX, 100)}, nil),
		order(offererB, nil, []WorkingItem{owed(erc20(tokenX, 60), offererB)}),
	}
	fulfillments := []model.Fulfillment{{
		OfferComponents:         []model.FulfillmentComponent{component(0, 0)},
		ConsiderationComponents: []model.FulfillmentComponent{component(1, 0)},
	}}

	executions, err := ApplyFulfillments(orders, fulfillments, taker)
	assert.NoError(t, err)

	// B's order has no offer and A's has no consideration, so only the
	// netted execution and the sweep remain.
	assert.Len(t, executions, 2)
	assert.Equal(t, int64(60), executions[0].Item.Amount.Int64())
	assert.Equal(t, offererB, executions[0].Item.Recipient)
	assert.Equal(t, int64(40), executions[1].Item.Amount.Int64())
	assert.Equal(t, taker, executions[1].Item.Recipient)
}

func TestApplyFulfillmentsShortfall(t *testing.T) {
	orders := []*WorkingOrder{
		order(offererA, []WorkingItem{erc20(tokenX, 60)}, nil),
		order(offererB, nil, []WorkingItem{owed(erc20(tokenX, 100), offererB)}),
	}
	fulfillments := []model.Fulfillment{{
		OfferComponents:         []model.FulfillmentComponent{component(0, 0)},
		ConsiderationComponents: []model.FulfillmentComponent{component(1, 0)},
	}}

	_, err := ApplyFulfillments(orders, fulfillments, taker)
	assert.ErrorIs(t, err, ErrConsiderationNotMet)
}

func TestApplyFulfillmentsMismatchedAssets(t *testing.T) {
	orders := []*WorkingOrder{
		order(offererA, []WorkingItem{erc20(tokenX, 100)}, nil),
		order(offererB, nil, []WorkingItem{owed(erc20(tokenY, 100), offererB)}),
	}
	fulfillments := []model.Fulfillment{{
		OfferComponents:         []model.FulfillmentComponent{component(0, 0)},
		ConsiderationComponents: []model.FulfillmentComponent{component(1, 0)},
	}}

	_, err := ApplyFulfillments(orders, fulfillments, taker)
	assert.ErrorIs(t, err, ErrMismatchedFulfillmentComponents)
}

func TestApplyFulfillmentsEmptyGroup(t *testing.T) {
	orders := []*WorkingOrder{
		order(offererA, []WorkingItem{erc20(tokenX, 100)}, nil),
	}
	fulfillments := []model.Fulfillment{{
		OfferComponents: []model.FulfillmentComponent{component(0, 0)},
	}}

	_, err := ApplyFulfillments(orders, fulfillments, taker)
	assert.ErrorIs(t, err, ErrMissingFulfillmentComponent)

	_, err = ApplyFulfillments(orders, []model.Fulfillment{{
		OfferComponents:         []model.FulfillmentComponent{component(5, 0)},
		ConsiderationComponents: []model.FulfillmentComponent{component(0, 0)},
	}}, taker)
	assert.ErrorIs(t, err, ErrMissingFulfillmentComponent)
}

func TestApplyFulfillmentsCyclicNFTTrade(t *testing.T) {
	// Three offerers rotate three NFTs: A→B→C→A, one execution per edge and
	// nothing left over.
	orders := []*WorkingOrder{
		order(offererA, []WorkingItem{nft(1)}, []WorkingItem{owed(nft(3), offererA)}),
		order(offererB, []WorkingItem{nft(2)}, []WorkingItem{owed(nft(1), offererB)}),
		order(offererC, []WorkingItem{nft(3)}, []WorkingItem{owed(nft(2), offererC)}),
	}
	fulfillments := []model.Fulfillment{
		{OfferComponents: []model.FulfillmentComponent{component(0, 0)}, ConsiderationComponents: []model.FulfillmentComponent{component(1, 0)}},
		{OfferComponents: []model.FulfillmentComponent{component(1, 0)}, ConsiderationComponents: []model.FulfillmentComponent{component(2, 0)}},
		{OfferComponents: []model.FulfillmentComponent{component(2, 0)}, ConsiderationComponents: []model.FulfillmentComponent{component(0, 0)}},
	}

	executions, err := ApplyFulfillments(orders, fulfillments, taker)
	assert.NoError(t, err)
	assert.Len(t, executions, 3)

	assert.Equal(t, int64(1), executions[0].Item.Identifier.Int64())
	assert.Equal(t, offererB, executions[0].Item.Recipient)
	assert.Equal(t, int64(2), executions[1].Item.Identifier.Int64())
	assert.Equal(t, offererC, executions[1].Item.Recipient)
	assert.Equal(t, int64(3), executions[2].Item.Identifier.Int64())
	assert.Equal(t, offererA, executions[2].Item.Recipient)

	for _, e := range executions {
		assert.Equal(t, model.ItemTypeERC721, e.Item.ItemType)
	}
}

func TestApplyFulfillmentsZeroAmountDropped(t *testing.T) {
	// The second fulfillment references items already fully consumed by the
	// first; its net amount is zero and no execution is emitted.
	orders := []*WorkingOrder{
		order(offererA, []WorkingItem{erc20(tokenX, 50)}, nil),
		order(offererB, nil, []WorkingItem{owed(erc20(tokenX, 50), offererB)}),
	}
	fulfillments := []model.Fulfillment{
		{OfferComponents: []model.FulfillmentComponent{component(0, 0)}, ConsiderationComponents: []model.FulfillmentComponent{component(1, 0)}},
		{OfferComponents: []model.FulfillmentComponent{component(0, 0)}, ConsiderationComponents: []model.FulfillmentComponent{component(1, 0)}},
	}

	executions, err := ApplyFulfillments(orders, fulfillments, taker)
	assert.NoError(t, err)
	assert.Len(t, executions, 1)
}

func TestAggregateAvailableMergesSameKind(t *testing.T) {
	// Two orders from the same offerer selling X for native; one offer group
	// merges both offer items, one consideration group per order.
	orders := []*WorkingOrder{
		order(offererA, []WorkingItem{erc20(tokenX, 100)}, []WorkingItem{owed(native(10), offererA)}),
		order(offererA, []WorkingItem{erc20(tokenX, 40)}, []WorkingItem{owed(native(4), offererA)}),
	}
	components := model.FulfillAvailableComponents{
		Offer:         [][]model.FulfillmentComponent{{component(0, 0), component(1, 0)}},
		Consideration: [][]model.FulfillmentComponent{{component(0, 0), component(1, 0)}},
	}

	executions, err := AggregateAvailable(orders, components, taker, taker, common.Hash{})
	assert.NoError(t, err)
	assert.Len(t, executions, 2)

	// Merged offer: 140 X from the offerer to the taker.
	assert.Equal(t, int64(140), executions[0].Item.Amount.Int64())
	assert.Equal(t, taker, executions[0].Item.Recipient)
	assert.Equal(t, offererA, executions[0].Offerer)

	// Merged consideration: 14 native funded by the taker.
	assert.Equal(t, int64(14), executions[1].Item.Amount.Int64())
	assert.Equal(t, offererA, executions[1].Item.Recipient)
	assert.Equal(t, taker, executions[1].Offerer)
}

func TestAggregateAvailableSkipsUnavailable(t *testing.T) {
	skipped := order(offererB, []WorkingItem{erc20(tokenX, 999)}, []WorkingItem{owed(native(99), offererB)})
	skipped.Available = false

	orders := []*WorkingOrder{
		order(offererA, []WorkingItem{erc20(tokenX, 100)}, []WorkingItem{owed(native(10), offererA)}),
		skipped,
	}
	components := model.FulfillAvailableComponents{
		Offer:         [][]model.FulfillmentComponent{{component(0, 0), component(1, 0)}},
		Consideration: [][]model.FulfillmentComponent{{component(0, 0)}, {component(1, 0)}},
	}

	executions, err := AggregateAvailable(orders, components, taker, taker, common.Hash{})
	assert.NoError(t, err)

	// The skipped order contributes nothing: 100 X out, 10 native back; the
	// group referencing only the skipped order is dropped entirely.
	assert.Len(t, executions, 2)
	assert.Equal(t, int64(100), executions[0].Item.Amount.Int64())
	assert.Equal(t, int64(10), executions[1].Item.Amount.Int64())
}

func TestAggregateAvailableOffererMismatch(t *testing.T) {
	orders := []*WorkingOrder{
		order(offererA, []WorkingItem{erc20(tokenX, 100)}, nil),
		order(offererB, []WorkingItem{erc20(tokenX, 40)}, nil),
	}
	components := model.FulfillAvailableComponents{
		Offer: [][]model.FulfillmentComponent{{component(0, 0), component(1, 0)}},
	}

	_, err := AggregateAvailable(orders, components, taker, taker, common.Hash{})
	assert.ErrorIs(t, err, ErrMismatchedFulfillmentComponents)
}

func TestAggregateAvailableUncoveredConsideration(t *testing.T) {
	orders := []*WorkingOrder{
		order(offererA, []WorkingItem{erc20(tokenX, 100)}, []WorkingItem{owed(native(10), offererA)}),
	}
	components := model.FulfillAvailableComponents{
		Offer: [][]model.FulfillmentComponent{{component(0, 0)}},
	}

	_, err := AggregateAvailable(orders, components, taker, taker, common.Hash{})
	assert.ErrorIs(t, err, ErrConsiderationNotMet)
}

func TestSingleOrderNetsSameAsset(t *testing.T) {
	// The order offers 100 X and demands 40 X back to a fee wallet: the
	// offerer pays the fee directly and the taker nets 60.
	w := order(offererA,
		[]WorkingItem{erc20(tokenX, 100)},
		[]WorkingItem{owed(erc20(tokenX, 40), feeWallet)},
	)

	executions := SingleOrder(w, taker, taker, common.Hash{})
	assert.Len(t, executions, 2)

	assert.Equal(t, int64(40), executions[0].Item.Amount.Int64())
	assert.Equal(t, feeWallet, executions[0].Item.Recipient)
	assert.Equal(t, offererA, executions[0].Offerer)

	assert.Equal(t, int64(60), executions[1].Item.Amount.Int64())
	assert.Equal(t, taker, executions[1].Item.Recipient)
	assert.Equal(t, offererA, executions[1].Offerer)
}

func TestSingleOrderFulfillerCoversConsideration(t *testing.T) {
	// NFT listed for 10 native to the seller plus a 1 native fee.
	w := order(offererA,
		[]WorkingItem{nft(7)},
		[]WorkingItem{owed(native(10), offererA), owed(native(1), feeWallet)},
	)

	executions := SingleOrder(w, taker, taker, common.Hash{})
	assert.Len(t, executions, 3)

	// Offer moves first.
	assert.Equal(t, model.ItemTypeERC721, executions[0].Item.ItemType)
	assert.Equal(t, taker, executions[0].Item.Recipient)
	assert.Equal(t, offererA, executions[0].Offerer)

	// Then the fulfiller funds both obligations.
	assert.Equal(t, int64(10), executions[1].Item.Amount.Int64())
	assert.Equal(t, offererA, executions[1].Item.Recipient)
	assert.Equal(t, taker, executions[1].Offerer)

	assert.Equal(t, int64(1), executions[2].Item.Amount.Int64())
	assert.Equal(t, feeWallet, executions[2].Item.Recipient)
	assert.Equal(t, taker, executions[2].Offerer)
}
