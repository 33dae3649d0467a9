package engine

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"

	"github.com/immutable/seaport/internal/conduit"
	"github.com/immutable/seaport/internal/criteria"
	"github.com/immutable/seaport/internal/ledger"
	"github.com/immutable/seaport/internal/model"
	"github.com/immutable/seaport/internal/repository"
	"github.com/immutable/seaport/internal/signer"
	"github.com/immutable/seaport/internal/zone"
)

var (
	testContract = common.HexToAddress("0x00000000000000ADc04C56Bf30aC9d3c0aAF14dC")
	feeWallet    = common.HexToAddress("0x000000000000000000000000000000000000fee1")
	nftToken     = common.HexToAddress("0x1111111111111111111111111111111111111111")
	tokenX       = common.HexToAddress("0x2222222222222222222222222222222222222222")
	tokenY       = common.HexToAddress("0x3333333333333333333333333333333333333333")
	multiToken   = common.HexToAddress("0x4444444444444444444444444444444444444444")
)

const (
	testStart = uint64(1600000000)
	testNow   = uint64(1700000000)
	testEnd   = uint64(1800000000)
)

type testEnv struct {
	t      *testing.T
	engine *Engine
	ledger *ledger.Ledger
	store  *repository.MemoryStore
	zones  *zone.Registry
	router *conduit.Router
	hasher *signer.Hasher
}

func newTestEnv(t *testing.T) *testEnv {
	hasher := signer.NewHasher(31337, testContract)
	store := repository.NewMemoryStore()
	led := ledger.New()
	router := conduit.NewRouter(led)
	zones := zone.NewRegistry()

	eng := New(hasher, store, zones, router)
	eng.now = func() time.Time { return time.Unix(int64(testNow), 0) }

	return &testEnv{t: t, engine: eng, ledger: led, store: store, zones: zones, router: router, hasher: hasher}
}

type account struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func newAccount(t *testing.T) account {
	key, err := crypto.GenerateKey()
	assert.NoError(t, err)
	return account{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

func (env *testEnv) sign(acct account, params model.OrderParameters) model.Order {
	counter, err := env.store.GetCounter(context.Background(), params.Offerer)
	assert.NoError(env.t, err)
	sig, err := signer.NewSignerFromKey(acct.key, env.hasher).SignOrder(params, counter)
	assert.NoError(env.t, err)
	return model.Order{Parameters: params, Signature: sig}
}

func baseParams(offerer common.Address, offer []model.OfferItem, consideration []model.ConsiderationItem) model.OrderParameters {
	return model.OrderParameters{
		Offerer:       offerer,
		Offer:         offer,
		Consideration: consideration,
		OrderType:     model.OrderTypeFullOpen,
		StartTime:     testStart,
		EndTime:       testEnd,
		Salt:          big.NewInt(777),
	}
}

func offerERC721(token common.Address, id int64) model.OfferItem {
	return model.OfferItem{
		ItemType:             model.ItemTypeERC721,
		Token:                token,
		IdentifierOrCriteria: big.NewInt(id),
		StartAmount:          big.NewInt(1),
		EndAmount:            big.NewInt(1),
	}
}

func offerERC20(token common.Address, amount int64) model.OfferItem {
	return model.OfferItem{
		ItemType:             model.ItemTypeERC20,
		Token:                token,
		IdentifierOrCriteria: new(big.Int),
		StartAmount:          big.NewInt(amount),
		EndAmount:            big.NewInt(amount),
	}
}

func offerERC1155(token common.Address, id, amount int64) model.OfferItem {
	return model.OfferItem{
		ItemType:             model.ItemTypeERC1155,
		Token:                token,
		IdentifierOrCriteria: big.NewInt(id),
		StartAmount:          big.NewInt(amount),
		EndAmount:            big.NewInt(amount),
	}
}

func wantNative(amount int64, recipient common.Address) model.ConsiderationItem {
	return model.ConsiderationItem{
		ItemType:             model.ItemTypeNative,
		IdentifierOrCriteria: new(big.Int),
		StartAmount:          big.NewInt(amount),
		EndAmount:            big.NewInt(amount),
		Recipient:            recipient,
	}
}

func wantERC20(token common.Address, amount int64, recipient common.Address) model.ConsiderationItem {
	return model.ConsiderationItem{
		ItemType:             model.ItemTypeERC20,
		Token:                token,
		IdentifierOrCriteria: new(big.Int),
		StartAmount:          big.NewInt(amount),
		EndAmount:            big.NewInt(amount),
		Recipient:            recipient,
	}
}

func wantERC721(token common.Address, id int64, recipient common.Address) model.ConsiderationItem {
	return model.ConsiderationItem{
		ItemType:             model.ItemTypeERC721,
		Token:                token,
		IdentifierOrCriteria: big.NewInt(id),
		StartAmount:          big.NewInt(1),
		EndAmount:            big.NewInt(1),
		Recipient:            recipient,
	}
}

func TestFulfillOrderTransfersExactAmounts(t *testing.T) {
	env := newTestEnv(t)
	alice := newAccount(t)
	bob := newAccount(t)
	ctx := context.Background()

	assert.NoError(t, env.ledger.MintERC721(nftToken, big.NewInt(42), alice.address))
	env.ledger.MintNative(bob.address, big.NewInt(1000))

	params := baseParams(alice.address,
		[]model.OfferItem{offerERC721(nftToken, 42)},
		[]model.ConsiderationItem{
			wantNative(10, alice.address),
			wantNative(1, feeWallet),
		},
	)
	order := env.sign(alice, params)

	result, err := env.engine.FulfillOrder(ctx, order, bob.address, common.Hash{})
	assert.NoError(t, err)
	assert.Len(t, result.OrderHashes, 1)
	assert.Len(t, result.Executions, 3)

	owner, ok := env.ledger.OwnerOf(nftToken, big.NewInt(42))
	assert.True(t, ok)
	assert.Equal(t, bob.address, owner)
	assert.Equal(t, int64(10), env.ledger.NativeBalance(alice.address).Int64())
	assert.Equal(t, int64(1), env.ledger.NativeBalance(feeWallet).Int64())
	assert.Equal(t, int64(989), env.ledger.NativeBalance(bob.address).Int64())
}

func TestFulfillOrderPersistsTerminalStatus(t *testing.T) {
	env := newTestEnv(t)
	alice := newAccount(t)
	bob := newAccount(t)
	ctx := context.Background()

	assert.NoError(t, env.ledger.MintERC721(nftToken, big.NewInt(7), alice.address))
	env.ledger.MintNative(bob.address, big.NewInt(100))

	params := baseParams(alice.address,
		[]model.OfferItem{offerERC721(nftToken, 7)},
		[]model.ConsiderationItem{wantNative(5, alice.address)},
	)
	order := env.sign(alice, params)

	result, err := env.engine.FulfillOrder(ctx, order, bob.address, common.Hash{})
	assert.NoError(t, err)

	status, err := env.engine.GetOrderStatus(ctx, result.OrderHashes[0])
	assert.NoError(t, err)
	assert.True(t, status.IsValidated)
	assert.True(t, status.IsFullyFilled())
	assert.Equal(t, int64(1), status.TotalFilled.Int64())
	assert.Equal(t, int64(1), status.TotalSize.Int64())

	// A second fill of the same order must be rejected, not double-spent.
	_, err = env.engine.FulfillOrder(ctx, order, bob.address, common.Hash{})
	assert.ErrorIs(t, err, ErrOrderAlreadyFilled)
}

func TestFulfillAdvancedOrderPartialFillsAccumulate(t *testing.T) {
	env := newTestEnv(t)
	alice := newAccount(t)
	bob := newAccount(t)
	ctx := context.Background()

	env.ledger.MintERC1155(multiToken, big.NewInt(9), alice.address, big.NewInt(10))
	env.ledger.MintERC20(tokenX, bob.address, big.NewInt(1000))

	params := baseParams(alice.address,
		[]model.OfferItem{offerERC1155(multiToken, 9, 10)},
		[]model.ConsiderationItem{wantERC20(tokenX, 100, alice.address)},
	)
	params.OrderType = model.OrderTypePartialOpen
	order := env.sign(alice, params)

	half := &model.AdvancedOrder{Parameters: params, Numerator: 1, Denominator: 2, Signature: order.Signature}
	_, err := env.engine.FulfillAdvancedOrder(ctx, half, nil, bob.address, common.Hash{}, common.Address{})
	assert.NoError(t, err)

	assert.Equal(t, int64(5), env.ledger.ERC1155Balance(multiToken, big.NewInt(9), bob.address).Int64())
	assert.Equal(t, int64(50), env.ledger.ERC20Balance(tokenX, alice.address).Int64())

	_, err = env.engine.FulfillAdvancedOrder(ctx, half, nil, bob.address, common.Hash{}, common.Address{})
	assert.NoError(t, err)

	// Two half fills leave exactly the balances of one full fill.
	assert.Equal(t, int64(10), env.ledger.ERC1155Balance(multiToken, big.NewInt(9), bob.address).Int64())
	assert.Equal(t, int64(0), env.ledger.ERC1155Balance(multiToken, big.NewInt(9), alice.address).Int64())
	assert.Equal(t, int64(100), env.ledger.ERC20Balance(tokenX, alice.address).Int64())
	assert.Equal(t, int64(900), env.ledger.ERC20Balance(tokenX, bob.address).Int64())

	_, err = env.engine.FulfillAdvancedOrder(ctx, half, nil, bob.address, common.Hash{}, common.Address{})
	assert.ErrorIs(t, err, ErrOrderAlreadyFilled)
}

func TestFulfillAdvancedOrderCapsOverfillAtRemainder(t *testing.T) {
	env := newTestEnv(t)
	alice := newAccount(t)
	bob := newAccount(t)
	ctx := context.Background()

	env.ledger.MintERC1155(multiToken, big.NewInt(3), alice.address, big.NewInt(10))
	env.ledger.MintERC20(tokenX, bob.address, big.NewInt(1000))

	params := baseParams(alice.address,
		[]model.OfferItem{offerERC1155(multiToken, 3, 10)},
		[]model.ConsiderationItem{wantERC20(tokenX, 100, alice.address)},
	)
	params.OrderType = model.OrderTypePartialOpen
	order := env.sign(alice, params)

	half := &model.AdvancedOrder{Parameters: params, Numerator: 1, Denominator: 2, Signature: order.Signature}
	_, err := env.engine.FulfillAdvancedOrder(ctx, half, nil, bob.address, common.Hash{}, common.Address{})
	assert.NoError(t, err)

	// Asking for 3/4 when only 1/2 remains settles the remainder.
	threeQuarters := &model.AdvancedOrder{Parameters: params, Numerator: 3, Denominator: 4, Signature: order.Signature}
	result, err := env.engine.FulfillAdvancedOrder(ctx, threeQuarters, nil, bob.address, common.Hash{}, common.Address{})
	assert.NoError(t, err)

	assert.Equal(t, int64(10), env.ledger.ERC1155Balance(multiToken, big.NewInt(3), bob.address).Int64())
	assert.Equal(t, int64(100), env.ledger.ERC20Balance(tokenX, alice.address).Int64())

	status, err := env.engine.GetOrderStatus(ctx, result.OrderHashes[0])
	assert.NoError(t, err)
	assert.True(t, status.IsFullyFilled())
}

func TestFulfillAdvancedOrderAsymmetricRounding(t *testing.T) {
	env := newTestEnv(t)
	alice := newAccount(t)
	bob := newAccount(t)
	ctx := context.Background()

	env.ledger.MintERC20(tokenX, alice.address, big.NewInt(3))
	env.ledger.MintERC20(tokenY, bob.address, big.NewInt(10))

	params := baseParams(alice.address,
		[]model.OfferItem{offerERC20(tokenX, 3)},
		[]model.ConsiderationItem{wantERC20(tokenY, 3, alice.address)},
	)
	params.OrderType = model.OrderTypePartialOpen
	order := env.sign(alice, params)

	half := &model.AdvancedOrder{Parameters: params, Numerator: 1, Denominator: 2, Signature: order.Signature}
	_, err := env.engine.FulfillAdvancedOrder(ctx, half, nil, bob.address, common.Hash{}, common.Address{})
	assert.NoError(t, err)

	// Offer rounds down (1.5 -> 1), consideration rounds up (1.5 -> 2): the
	// fulfiller never comes out ahead of the exact fraction.
	assert.Equal(t, int64(1), env.ledger.ERC20Balance(tokenX, bob.address).Int64())
	assert.Equal(t, int64(2), env.ledger.ERC20Balance(tokenY, alice.address).Int64())
}

func TestFulfillRejectsReplayAfterCounterIncrement(t *testing.T) {
	env := newTestEnv(t)
	alice := newAccount(t)
	bob := newAccount(t)
	ctx := context.Background()

	assert.NoError(t, env.ledger.MintERC721(nftToken, big.NewInt(1), alice.address))
	env.ledger.MintNative(bob.address, big.NewInt(100))

	params := baseParams(alice.address,
		[]model.OfferItem{offerERC721(nftToken, 1)},
		[]model.ConsiderationItem{wantNative(5, alice.address)},
	)
	order := env.sign(alice, params)

	next, err := env.engine.IncrementCounter(ctx, alice.address)
	assert.NoError(t, err)
	assert.Equal(t, uint64(1), next)

	// The signature was produced under counter 0 and no longer matches.
	_, err = env.engine.FulfillOrder(ctx, order, bob.address, common.Hash{})
	assert.ErrorIs(t, err, signer.ErrInvalidSignature)

	owner, _ := env.ledger.OwnerOf(nftToken, big.NewInt(1))
	assert.Equal(t, alice.address, owner)

	// Re-signing under the new counter restores fillability.
	fresh := env.sign(alice, params)
	_, err = env.engine.FulfillOrder(ctx, fresh, bob.address, common.Hash{})
	assert.NoError(t, err)
}

func TestValidateAllowsSignatureSkipOnFill(t *testing.T) {
	env := newTestEnv(t)
	alice := newAccount(t)
	bob := newAccount(t)
	ctx := context.Background()

	assert.NoError(t, env.ledger.MintERC721(nftToken, big.NewInt(2), alice.address))
	env.ledger.MintNative(bob.address, big.NewInt(100))

	params := baseParams(alice.address,
		[]model.OfferItem{offerERC721(nftToken, 2)},
		[]model.ConsiderationItem{wantNative(5, alice.address)},
	)
	order := env.sign(alice, params)

	hashes, err := env.engine.Validate(ctx, []model.Order{order})
	assert.NoError(t, err)
	assert.Len(t, hashes, 1)

	status, err := env.engine.GetOrderStatus(ctx, hashes[0])
	assert.NoError(t, err)
	assert.True(t, status.IsValidated)
	assert.False(t, status.IsFullyFilled())

	// A validated order fills without carrying its signature.
	stripped := model.Order{Parameters: params}
	_, err = env.engine.FulfillOrder(ctx, stripped, bob.address, common.Hash{})
	assert.NoError(t, err)
}

func TestValidateRejectsBadSignature(t *testing.T) {
	env := newTestEnv(t)
	alice := newAccount(t)
	mallory := newAccount(t)

	params := baseParams(alice.address,
		[]model.OfferItem{offerERC20(tokenX, 10)},
		[]model.ConsiderationItem{wantNative(5, alice.address)},
	)
	forged := env.sign(mallory, params)

	_, err := env.engine.Validate(context.Background(), []model.Order{forged})
	assert.ErrorIs(t, err, signer.ErrInvalidSignature)
}

func TestCancelBlocksFillsAndIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	alice := newAccount(t)
	bob := newAccount(t)
	ctx := context.Background()

	assert.NoError(t, env.ledger.MintERC721(nftToken, big.NewInt(3), alice.address))
	env.ledger.MintNative(bob.address, big.NewInt(100))

	params := baseParams(alice.address,
		[]model.OfferItem{offerERC721(nftToken, 3)},
		[]model.ConsiderationItem{wantNative(5, alice.address)},
	)
	order := env.sign(alice, params)
	components := params.Components(0)

	err := env.engine.Cancel(ctx, []model.OrderComponents{components}, alice.address)
	assert.NoError(t, err)

	_, err = env.engine.FulfillOrder(ctx, order, bob.address, common.Hash{})
	assert.ErrorIs(t, err, ErrOrderIsCancelled)

	_, err = env.engine.Validate(ctx, []model.Order{order})
	assert.ErrorIs(t, err, ErrOrderIsCancelled)

	// Cancelling again is a no-op, not an error.
	assert.NoError(t, env.engine.Cancel(ctx, []model.OrderComponents{components}, alice.address))

	hash := env.engine.GetOrderHash(components)
	status, err := env.engine.GetOrderStatus(ctx, hash)
	assert.NoError(t, err)
	assert.True(t, status.IsCancelled)
	assert.False(t, status.IsValidated)
}

func TestCancelRequiresOffererOrZone(t *testing.T) {
	env := newTestEnv(t)
	alice := newAccount(t)
	mallory := newAccount(t)
	zoneAddr := common.HexToAddress("0x0000000000000000000000000000000000005a00")
	ctx := context.Background()

	params := baseParams(alice.address,
		[]model.OfferItem{offerERC20(tokenX, 10)},
		[]model.ConsiderationItem{wantNative(5, alice.address)},
	)
	params.OrderType = model.OrderTypeFullRestricted
	params.Zone = zoneAddr
	components := params.Components(0)

	err := env.engine.Cancel(ctx, []model.OrderComponents{components}, mallory.address)
	assert.ErrorIs(t, err, ErrInvalidCanceller)

	// The zone itself may cancel restricted orders.
	assert.NoError(t, env.engine.Cancel(ctx, []model.OrderComponents{components}, zoneAddr))

	status, err := env.engine.GetOrderStatus(ctx, env.engine.GetOrderHash(components))
	assert.NoError(t, err)
	assert.True(t, status.IsCancelled)
}

func TestFulfillExpiredOrderRejected(t *testing.T) {
	env := newTestEnv(t)
	alice := newAccount(t)
	bob := newAccount(t)

	params := baseParams(alice.address,
		[]model.OfferItem{offerERC20(tokenX, 10)},
		[]model.ConsiderationItem{wantNative(5, alice.address)},
	)
	params.EndTime = testNow // window is half-open, so now == end is expired
	order := env.sign(alice, params)

	_, err := env.engine.FulfillOrder(context.Background(), order, bob.address, common.Hash{})
	assert.ErrorIs(t, err, ErrInvalidTime)

	params.StartTime = testNow + 1
	params.EndTime = testEnd
	notYet := env.sign(alice, params)
	_, err = env.engine.FulfillOrder(context.Background(), notYet, bob.address, common.Hash{})
	assert.ErrorIs(t, err, ErrInvalidTime)
}

func TestFulfillAvailableSkipsUnavailableOrders(t *testing.T) {
	env := newTestEnv(t)
	alice := newAccount(t)
	bob := newAccount(t)
	carol := newAccount(t)
	taker := newAccount(t)
	ctx := context.Background()

	env.ledger.MintERC20(tokenX, alice.address, big.NewInt(100))
	env.ledger.MintERC20(tokenX, bob.address, big.NewInt(100))
	env.ledger.MintERC20(tokenX, carol.address, big.NewInt(100))
	env.ledger.MintNative(taker.address, big.NewInt(1000))

	aliceParams := baseParams(alice.address,
		[]model.OfferItem{offerERC20(tokenX, 100)},
		[]model.ConsiderationItem{wantNative(10, alice.address)},
	)
	bobParams := baseParams(bob.address,
		[]model.OfferItem{offerERC20(tokenX, 100)},
		[]model.ConsiderationItem{wantNative(10, bob.address)},
	)
	carolParams := baseParams(carol.address,
		[]model.OfferItem{offerERC20(tokenX, 100)},
		[]model.ConsiderationItem{wantNative(10, carol.address)},
	)
	carolParams.EndTime = testNow - 1 // already expired

	aliceOrder := env.sign(alice, aliceParams)
	bobOrder := env.sign(bob, bobParams)
	carolOrder := env.sign(carol, carolParams)

	// Bob cancels before the batch lands.
	assert.NoError(t, env.engine.Cancel(ctx, []model.OrderComponents{bobParams.Components(0)}, bob.address))

	components := model.FulfillAvailableComponents{
		Offer: [][]model.FulfillmentComponent{
			{{OrderIndex: 0, ItemIndex: 0}},
			{{OrderIndex: 1, ItemIndex: 0}},
			{{OrderIndex: 2, ItemIndex: 0}},
		},
		Consideration: [][]model.FulfillmentComponent{
			{{OrderIndex: 0, ItemIndex: 0}},
			{{OrderIndex: 1, ItemIndex: 0}},
			{{OrderIndex: 2, ItemIndex: 0}},
		},
	}

	result, err := env.engine.FulfillAvailableOrders(ctx,
		[]model.Order{aliceOrder, bobOrder, carolOrder},
		components, taker.address, common.Hash{}, common.Address{}, 0)
	assert.NoError(t, err)
	assert.Equal(t, []bool{true, false, false}, result.Available)

	assert.Equal(t, int64(100), env.ledger.ERC20Balance(tokenX, taker.address).Int64())
	assert.Equal(t, int64(10), env.ledger.NativeBalance(alice.address).Int64())
	assert.Equal(t, int64(100), env.ledger.ERC20Balance(tokenX, bob.address).Int64())
	assert.Equal(t, int64(0), env.ledger.NativeBalance(bob.address).Int64())
	assert.Equal(t, int64(990), env.ledger.NativeBalance(taker.address).Int64())
}

func TestFulfillAvailableNoneAvailable(t *testing.T) {
	env := newTestEnv(t)
	alice := newAccount(t)
	taker := newAccount(t)
	ctx := context.Background()

	params := baseParams(alice.address,
		[]model.OfferItem{offerERC20(tokenX, 10)},
		[]model.ConsiderationItem{wantNative(5, alice.address)},
	)
	order := env.sign(alice, params)
	assert.NoError(t, env.engine.Cancel(ctx, []model.OrderComponents{params.Components(0)}, alice.address))

	components := model.FulfillAvailableComponents{
		Offer:         [][]model.FulfillmentComponent{{{OrderIndex: 0, ItemIndex: 0}}},
		Consideration: [][]model.FulfillmentComponent{{{OrderIndex: 0, ItemIndex: 0}}},
	}

	_, err := env.engine.FulfillAvailableOrders(ctx, []model.Order{order},
		components, taker.address, common.Hash{}, common.Address{}, 0)
	assert.ErrorIs(t, err, ErrNoSpecifiedOrdersAvailable)
}

func TestFulfillAvailableHonorsMaximumFulfilled(t *testing.T) {
	env := newTestEnv(t)
	alice := newAccount(t)
	bob := newAccount(t)
	taker := newAccount(t)
	ctx := context.Background()

	env.ledger.MintERC20(tokenX, alice.address, big.NewInt(100))
	env.ledger.MintERC20(tokenX, bob.address, big.NewInt(100))
	env.ledger.MintNative(taker.address, big.NewInt(100))

	aliceParams := baseParams(alice.address,
		[]model.OfferItem{offerERC20(tokenX, 100)},
		[]model.ConsiderationItem{wantNative(10, alice.address)},
	)
	bobParams := baseParams(bob.address,
		[]model.OfferItem{offerERC20(tokenX, 100)},
		[]model.ConsiderationItem{wantNative(10, bob.address)},
	)

	components := model.FulfillAvailableComponents{
		Offer: [][]model.FulfillmentComponent{
			{{OrderIndex: 0, ItemIndex: 0}},
			{{OrderIndex: 1, ItemIndex: 0}},
		},
		Consideration: [][]model.FulfillmentComponent{
			{{OrderIndex: 0, ItemIndex: 0}},
			{{OrderIndex: 1, ItemIndex: 0}},
		},
	}

	result, err := env.engine.FulfillAvailableOrders(ctx,
		[]model.Order{env.sign(alice, aliceParams), env.sign(bob, bobParams)},
		components, taker.address, common.Hash{}, common.Address{}, 1)
	assert.NoError(t, err)
	assert.Equal(t, []bool{true, false}, result.Available)

	assert.Equal(t, int64(100), env.ledger.ERC20Balance(tokenX, taker.address).Int64())
	assert.Equal(t, int64(100), env.ledger.ERC20Balance(tokenX, bob.address).Int64())
	assert.Equal(t, int64(90), env.ledger.NativeBalance(taker.address).Int64())
}

func TestMatchOrdersCyclicNFTTrade(t *testing.T) {
	env := newTestEnv(t)
	alice := newAccount(t)
	bob := newAccount(t)
	carol := newAccount(t)
	caller := newAccount(t)
	ctx := context.Background()

	assert.NoError(t, env.ledger.MintERC721(nftToken, big.NewInt(1), alice.address))
	assert.NoError(t, env.ledger.MintERC721(nftToken, big.NewInt(2), bob.address))
	assert.NoError(t, env.ledger.MintERC721(nftToken, big.NewInt(3), carol.address))

	aliceParams := baseParams(alice.address,
		[]model.OfferItem{offerERC721(nftToken, 1)},
		[]model.ConsiderationItem{wantERC721(nftToken, 2, alice.address)},
	)
	bobParams := baseParams(bob.address,
		[]model.OfferItem{offerERC721(nftToken, 2)},
		[]model.ConsiderationItem{wantERC721(nftToken, 3, bob.address)},
	)
	carolParams := baseParams(carol.address,
		[]model.OfferItem{offerERC721(nftToken, 3)},
		[]model.ConsiderationItem{wantERC721(nftToken, 1, carol.address)},
	)

	fulfillments := []model.Fulfillment{
		{
			OfferComponents:         []model.FulfillmentComponent{{OrderIndex: 0, ItemIndex: 0}},
			ConsiderationComponents: []model.FulfillmentComponent{{OrderIndex: 2, ItemIndex: 0}},
		},
		{
			OfferComponents:         []model.FulfillmentComponent{{OrderIndex: 1, ItemIndex: 0}},
			ConsiderationComponents: []model.FulfillmentComponent{{OrderIndex: 0, ItemIndex: 0}},
		},
		{
			OfferComponents:         []model.FulfillmentComponent{{OrderIndex: 2, ItemIndex: 0}},
			ConsiderationComponents: []model.FulfillmentComponent{{OrderIndex: 1, ItemIndex: 0}},
		},
	}

	result, err := env.engine.MatchOrders(ctx,
		[]model.Order{env.sign(alice, aliceParams), env.sign(bob, bobParams), env.sign(carol, carolParams)},
		fulfillments, caller.address)
	assert.NoError(t, err)
	assert.Len(t, result.Executions, 3)

	owner1, _ := env.ledger.OwnerOf(nftToken, big.NewInt(1))
	owner2, _ := env.ledger.OwnerOf(nftToken, big.NewInt(2))
	owner3, _ := env.ledger.OwnerOf(nftToken, big.NewInt(3))
	assert.Equal(t, carol.address, owner1)
	assert.Equal(t, alice.address, owner2)
	assert.Equal(t, bob.address, owner3)

	// The caller supplied nothing and received nothing.
	assert.Equal(t, int64(0), env.ledger.NativeBalance(caller.address).Int64())
}

func TestMatchOrdersSweepsUnspentOfferToCaller(t *testing.T) {
	env := newTestEnv(t)
	alice := newAccount(t)
	bob := newAccount(t)
	caller := newAccount(t)
	ctx := context.Background()

	env.ledger.MintERC20(tokenX, alice.address, big.NewInt(100))
	env.ledger.MintERC20(tokenY, bob.address, big.NewInt(50))

	aliceParams := baseParams(alice.address,
		[]model.OfferItem{offerERC20(tokenX, 100)},
		[]model.ConsiderationItem{wantERC20(tokenY, 50, alice.address)},
	)
	bobParams := baseParams(bob.address,
		[]model.OfferItem{offerERC20(tokenY, 50)},
		[]model.ConsiderationItem{wantERC20(tokenX, 50, bob.address)},
	)

	fulfillments := []model.Fulfillment{
		{
			OfferComponents:         []model.FulfillmentComponent{{OrderIndex: 0, ItemIndex: 0}},
			ConsiderationComponents: []model.FulfillmentComponent{{OrderIndex: 1, ItemIndex: 0}},
		},
		{
			OfferComponents:         []model.FulfillmentComponent{{OrderIndex: 1, ItemIndex: 0}},
			ConsiderationComponents: []model.FulfillmentComponent{{OrderIndex: 0, ItemIndex: 0}},
		},
	}

	_, err := env.engine.MatchOrders(ctx,
		[]model.Order{env.sign(alice, aliceParams), env.sign(bob, bobParams)},
		fulfillments, caller.address)
	assert.NoError(t, err)

	assert.Equal(t, int64(50), env.ledger.ERC20Balance(tokenX, bob.address).Int64())
	assert.Equal(t, int64(50), env.ledger.ERC20Balance(tokenY, alice.address).Int64())
	// Alice offered 100 X but only 50 were matched; the rest goes to the
	// caller, not back to Alice.
	assert.Equal(t, int64(50), env.ledger.ERC20Balance(tokenX, caller.address).Int64())
	assert.Equal(t, int64(0), env.ledger.ERC20Balance(tokenX, alice.address).Int64())
}

type rejectingZone struct {
	err error
}

func (z rejectingZone) ValidateOrder(ctx context.Context, p *zone.Parameters) ([4]byte, error) {
	return [4]byte{}, z.err
}

type wrongMagicZone struct{}

func (wrongMagicZone) ValidateOrder(ctx context.Context, p *zone.Parameters) ([4]byte, error) {
	return [4]byte{0xde, 0xad, 0xbe, 0xef}, nil
}

func TestRestrictedOrderConsultsZone(t *testing.T) {
	env := newTestEnv(t)
	alice := newAccount(t)
	bob := newAccount(t)
	zoneAddr := common.HexToAddress("0x0000000000000000000000000000000000005a01")
	ctx := context.Background()

	env.zones.Register(zoneAddr, zone.OpenZone{})
	assert.NoError(t, env.ledger.MintERC721(nftToken, big.NewInt(5), alice.address))
	env.ledger.MintNative(bob.address, big.NewInt(100))

	params := baseParams(alice.address,
		[]model.OfferItem{offerERC721(nftToken, 5)},
		[]model.ConsiderationItem{wantNative(5, alice.address)},
	)
	params.OrderType = model.OrderTypeFullRestricted
	params.Zone = zoneAddr

	_, err := env.engine.FulfillOrder(ctx, env.sign(alice, params), bob.address, common.Hash{})
	assert.NoError(t, err)

	owner, _ := env.ledger.OwnerOf(nftToken, big.NewInt(5))
	assert.Equal(t, bob.address, owner)
}

func TestRestrictedOrderZoneRejectionAbortsAtomically(t *testing.T) {
	env := newTestEnv(t)
	alice := newAccount(t)
	bob := newAccount(t)
	zoneAddr := common.HexToAddress("0x0000000000000000000000000000000000005a02")
	ctx := context.Background()

	policyErr := errors.New("order flagged by policy")
	env.zones.Register(zoneAddr, rejectingZone{err: policyErr})
	assert.NoError(t, env.ledger.MintERC721(nftToken, big.NewInt(6), alice.address))
	env.ledger.MintNative(bob.address, big.NewInt(100))

	params := baseParams(alice.address,
		[]model.OfferItem{offerERC721(nftToken, 6)},
		[]model.ConsiderationItem{wantNative(5, alice.address)},
	)
	params.OrderType = model.OrderTypeFullRestricted
	params.Zone = zoneAddr
	order := env.sign(alice, params)

	_, err := env.engine.FulfillOrder(ctx, order, bob.address, common.Hash{})
	assert.ErrorIs(t, err, ErrInvalidRestrictedOrder)
	assert.ErrorIs(t, err, policyErr)

	// Nothing moved and nothing was persisted.
	owner, _ := env.ledger.OwnerOf(nftToken, big.NewInt(6))
	assert.Equal(t, alice.address, owner)
	assert.Equal(t, int64(100), env.ledger.NativeBalance(bob.address).Int64())

	hash, _, err := env.engine.GetCurrentOrderHash(ctx, params)
	assert.NoError(t, err)
	status, err := env.engine.GetOrderStatus(ctx, hash)
	assert.NoError(t, err)
	assert.False(t, status.IsValidated)
	assert.Equal(t, 0, status.TotalFilled.Sign())
}

func TestRestrictedOrderWrongMagicRejected(t *testing.T) {
	env := newTestEnv(t)
	alice := newAccount(t)
	bob := newAccount(t)
	zoneAddr := common.HexToAddress("0x0000000000000000000000000000000000005a03")
	ctx := context.Background()

	env.zones.Register(zoneAddr, wrongMagicZone{})
	env.ledger.MintERC20(tokenX, alice.address, big.NewInt(10))
	env.ledger.MintNative(bob.address, big.NewInt(100))

	params := baseParams(alice.address,
		[]model.OfferItem{offerERC20(tokenX, 10)},
		[]model.ConsiderationItem{wantNative(5, alice.address)},
	)
	params.OrderType = model.OrderTypeFullRestricted
	params.Zone = zoneAddr

	_, err := env.engine.FulfillOrder(ctx, env.sign(alice, params), bob.address, common.Hash{})
	assert.ErrorIs(t, err, ErrInvalidRestrictedOrder)
}

func TestRestrictedOrderUnregisteredZoneRejected(t *testing.T) {
	env := newTestEnv(t)
	alice := newAccount(t)
	bob := newAccount(t)

	params := baseParams(alice.address,
		[]model.OfferItem{offerERC20(tokenX, 10)},
		[]model.ConsiderationItem{wantNative(5, alice.address)},
	)
	params.OrderType = model.OrderTypeFullRestricted
	params.Zone = common.HexToAddress("0x0000000000000000000000000000000000005a04")

	_, err := env.engine.FulfillOrder(context.Background(), env.sign(alice, params), bob.address, common.Hash{})
	assert.ErrorIs(t, err, ErrInvalidRestrictedOrder)
}

func TestRestrictedOrderSkipsZoneForOffererFulfiller(t *testing.T) {
	env := newTestEnv(t)
	alice := newAccount(t)
	zoneAddr := common.HexToAddress("0x0000000000000000000000000000000000005a05")
	ctx := context.Background()

	// The zone would reject, but the offerer filling their own order does
	// not consult it.
	env.zones.Register(zoneAddr, rejectingZone{err: errors.New("never called")})
	env.ledger.MintERC20(tokenX, alice.address, big.NewInt(10))
	env.ledger.MintNative(alice.address, big.NewInt(100))

	params := baseParams(alice.address,
		[]model.OfferItem{offerERC20(tokenX, 10)},
		[]model.ConsiderationItem{wantNative(5, alice.address)},
	)
	params.OrderType = model.OrderTypeFullRestricted
	params.Zone = zoneAddr

	_, err := env.engine.FulfillOrder(ctx, env.sign(alice, params), alice.address, common.Hash{})
	assert.NoError(t, err)
}

func TestFulfillInsufficientBalanceRollsBack(t *testing.T) {
	env := newTestEnv(t)
	alice := newAccount(t)
	bob := newAccount(t)
	ctx := context.Background()

	assert.NoError(t, env.ledger.MintERC721(nftToken, big.NewInt(8), alice.address))
	env.ledger.MintNative(bob.address, big.NewInt(3)) // needs 5

	params := baseParams(alice.address,
		[]model.OfferItem{offerERC721(nftToken, 8)},
		[]model.ConsiderationItem{wantNative(5, alice.address)},
	)
	order := env.sign(alice, params)

	_, err := env.engine.FulfillOrder(ctx, order, bob.address, common.Hash{})
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	owner, _ := env.ledger.OwnerOf(nftToken, big.NewInt(8))
	assert.Equal(t, alice.address, owner)
	assert.Equal(t, int64(3), env.ledger.NativeBalance(bob.address).Int64())
	assert.Equal(t, int64(0), env.ledger.NativeBalance(alice.address).Int64())

	hash, _, err := env.engine.GetCurrentOrderHash(ctx, params)
	assert.NoError(t, err)
	status, err := env.engine.GetOrderStatus(ctx, hash)
	assert.NoError(t, err)
	assert.Equal(t, 0, status.TotalFilled.Sign())
}

func TestFulfillCompensatesAcrossConduits(t *testing.T) {
	env := newTestEnv(t)
	alice := newAccount(t)
	bob := newAccount(t)
	conduitKey := common.HexToHash("0x01")
	ctx := context.Background()

	// The offer rides a registered conduit while the native payment takes
	// the direct route, so the failure happens after the first batch landed.
	assert.NoError(t, env.router.Register(conduitKey, env.ledger))
	assert.NoError(t, env.ledger.MintERC721(nftToken, big.NewInt(9), alice.address))

	params := baseParams(alice.address,
		[]model.OfferItem{offerERC721(nftToken, 9)},
		[]model.ConsiderationItem{wantNative(5, alice.address)},
	)
	params.ConduitKey = conduitKey
	order := env.sign(alice, params)

	_, err := env.engine.FulfillOrder(ctx, order, bob.address, common.Hash{})
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	// The NFT transfer from the first batch was compensated.
	owner, _ := env.ledger.OwnerOf(nftToken, big.NewInt(9))
	assert.Equal(t, alice.address, owner)
}

func TestFulfillAdvancedOrderWithCriteria(t *testing.T) {
	env := newTestEnv(t)
	alice := newAccount(t)
	bob := newAccount(t)
	ctx := context.Background()

	assert.NoError(t, env.ledger.MintERC721(nftToken, big.NewInt(11), alice.address))
	assert.NoError(t, env.ledger.MintERC721(nftToken, big.NewInt(12), alice.address))
	assert.NoError(t, env.ledger.MintERC721(nftToken, big.NewInt(13), alice.address))
	env.ledger.MintNative(bob.address, big.NewInt(100))

	tree, err := criteria.NewTree([]*big.Int{big.NewInt(11), big.NewInt(12), big.NewInt(13)})
	assert.NoError(t, err)

	params := baseParams(alice.address,
		[]model.OfferItem{{
			ItemType:             model.ItemTypeERC721WithCriteria,
			Token:                nftToken,
			IdentifierOrCriteria: tree.RootInt(),
			StartAmount:          big.NewInt(1),
			EndAmount:            big.NewInt(1),
		}},
		[]model.ConsiderationItem{wantNative(5, alice.address)},
	)
	order := env.sign(alice, params)

	proof, err := tree.Proof(big.NewInt(12))
	assert.NoError(t, err)
	resolvers := []model.CriteriaResolver{{
		OrderIndex:    0,
		Side:          model.SideOffer,
		Index:         0,
		Identifier:    big.NewInt(12),
		CriteriaProof: proof,
	}}

	_, err = env.engine.FulfillAdvancedOrder(ctx, order.Advanced(), resolvers, bob.address, common.Hash{}, common.Address{})
	assert.NoError(t, err)

	owner, _ := env.ledger.OwnerOf(nftToken, big.NewInt(12))
	assert.Equal(t, bob.address, owner)

	// Only the proven identifier moved.
	owner11, _ := env.ledger.OwnerOf(nftToken, big.NewInt(11))
	assert.Equal(t, alice.address, owner11)
}

func TestFulfillAdvancedOrderWildcardCriteria(t *testing.T) {
	env := newTestEnv(t)
	alice := newAccount(t)
	bob := newAccount(t)
	ctx := context.Background()

	assert.NoError(t, env.ledger.MintERC721(nftToken, big.NewInt(21), alice.address))
	env.ledger.MintNative(bob.address, big.NewInt(100))

	params := baseParams(alice.address,
		[]model.OfferItem{{
			ItemType:             model.ItemTypeERC721WithCriteria,
			Token:                nftToken,
			IdentifierOrCriteria: new(big.Int), // wildcard: any identifier
			StartAmount:          big.NewInt(1),
			EndAmount:            big.NewInt(1),
		}},
		[]model.ConsiderationItem{wantNative(5, alice.address)},
	)
	order := env.sign(alice, params)

	resolvers := []model.CriteriaResolver{{
		OrderIndex: 0,
		Side:       model.SideOffer,
		Index:      0,
		Identifier: big.NewInt(21),
	}}

	_, err := env.engine.FulfillAdvancedOrder(ctx, order.Advanced(), resolvers, bob.address, common.Hash{}, common.Address{})
	assert.NoError(t, err)

	owner, _ := env.ledger.OwnerOf(nftToken, big.NewInt(21))
	assert.Equal(t, bob.address, owner)
}

func TestFulfillUnresolvedCriteriaFails(t *testing.T) {
	env := newTestEnv(t)
	alice := newAccount(t)
	bob := newAccount(t)

	tree, err := criteria.NewTree([]*big.Int{big.NewInt(1), big.NewInt(2)})
	assert.NoError(t, err)

	params := baseParams(alice.address,
		[]model.OfferItem{{
			ItemType:             model.ItemTypeERC721WithCriteria,
			Token:                nftToken,
			IdentifierOrCriteria: tree.RootInt(),
			StartAmount:          big.NewInt(1),
			EndAmount:            big.NewInt(1),
		}},
		[]model.ConsiderationItem{wantNative(5, alice.address)},
	)
	order := env.sign(alice, params)

	_, err = env.engine.FulfillAdvancedOrder(context.Background(), order.Advanced(), nil, bob.address, common.Hash{}, common.Address{})
	assert.ErrorIs(t, err, criteria.ErrUnresolvedOfferCriteria)
}

func TestIncrementCounterAndGetters(t *testing.T) {
	env := newTestEnv(t)
	alice := newAccount(t)
	ctx := context.Background()

	counter, err := env.engine.GetCounter(ctx, alice.address)
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), counter)

	params := baseParams(alice.address,
		[]model.OfferItem{offerERC20(tokenX, 10)},
		[]model.ConsiderationItem{wantNative(5, alice.address)},
	)

	hashBefore, counterBefore, err := env.engine.GetCurrentOrderHash(ctx, params)
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), counterBefore)
	assert.Equal(t, env.engine.GetOrderHash(params.Components(0)), hashBefore)

	next, err := env.engine.IncrementCounter(ctx, alice.address)
	assert.NoError(t, err)
	assert.Equal(t, uint64(1), next)

	hashAfter, counterAfter, err := env.engine.GetCurrentOrderHash(ctx, params)
	assert.NoError(t, err)
	assert.Equal(t, uint64(1), counterAfter)
	assert.NotEqual(t, hashBefore, hashAfter)
}

func TestMatchOrdersRejectsInvalidOrderInBatch(t *testing.T) {
	env := newTestEnv(t)
	alice := newAccount(t)
	bob := newAccount(t)
	caller := newAccount(t)
	ctx := context.Background()

	env.ledger.MintERC20(tokenX, alice.address, big.NewInt(10))
	env.ledger.MintERC20(tokenY, bob.address, big.NewInt(10))

	aliceParams := baseParams(alice.address,
		[]model.OfferItem{offerERC20(tokenX, 10)},
		[]model.ConsiderationItem{wantERC20(tokenY, 10, alice.address)},
	)
	bobParams := baseParams(bob.address,
		[]model.OfferItem{offerERC20(tokenY, 10)},
		[]model.ConsiderationItem{wantERC20(tokenX, 10, bob.address)},
	)
	aliceOrder := env.sign(alice, aliceParams)
	bobOrder := env.sign(bob, bobParams)

	// Cancelling one order makes the whole match fail; match has no skip
	// semantics.
	assert.NoError(t, env.engine.Cancel(ctx, []model.OrderComponents{bobParams.Components(0)}, bob.address))

	fulfillments := []model.Fulfillment{
		{
			OfferComponents:         []model.FulfillmentComponent{{OrderIndex: 0, ItemIndex: 0}},
			ConsiderationComponents: []model.FulfillmentComponent{{OrderIndex: 1, ItemIndex: 0}},
		},
		{
			OfferComponents:         []model.FulfillmentComponent{{OrderIndex: 1, ItemIndex: 0}},
			ConsiderationComponents: []model.FulfillmentComponent{{OrderIndex: 0, ItemIndex: 0}},
		},
	}

	_, err := env.engine.MatchOrders(ctx, []model.Order{aliceOrder, bobOrder}, fulfillments, caller.address)
	assert.ErrorIs(t, err, ErrOrderIsCancelled)

	assert.Equal(t, int64(10), env.ledger.ERC20Balance(tokenX, alice.address).Int64())
	assert.Equal(t, int64(10), env.ledger.ERC20Balance(tokenY, bob.address).Int64())
}
