package ledger

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/immutable/seaport/internal/conduit"
	"github.com/immutable/seaport/internal/model"
)

var (
	alice  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob    = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	carol  = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	tokenX = common.HexToAddress("0x0000000000000000000000000000000000001111")
	tokenY = common.HexToAddress("0x0000000000000000000000000000000000002222")
)

func TestNativeTransfer(t *testing.T) {
	l := New()
	l.MintNative(alice, big.NewInt(100))

	err := l.Execute(context.Background(), []conduit.Transfer{{
		ItemType: model.ItemTypeNative,
		From:     alice,
		To:       bob,
		Amount:   big.NewInt(40),
	}})
	assert.NoError(t, err)
	assert.Equal(t, int64(60), l.NativeBalance(alice).Int64())
	assert.Equal(t, int64(40), l.NativeBalance(bob).Int64())
}

func TestInsufficientBalance(t *testing.T) {
	l := New()
	l.MintNative(alice, big.NewInt(10))

	err := l.Execute(context.Background(), []conduit.Transfer{{
		ItemType: model.ItemTypeNative,
		From:     alice,
		To:       bob,
		Amount:   big.NewInt(11),
	}})
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, int64(10), l.NativeBalance(alice).Int64())
	assert.Equal(t, int64(0), l.NativeBalance(bob).Int64())
}

func TestERC721Transfer(t *testing.T) {
	l := New()
	assert.NoError(t, l.MintERC721(tokenX, big.NewInt(7), alice))

	// Double mint is rejected.
	assert.Error(t, l.MintERC721(tokenX, big.NewInt(7), bob))

	err := l.Execute(context.Background(), []conduit.Transfer{{
		ItemType:   model.ItemTypeERC721,
		Token:      tokenX,
		From:       alice,
		To:         bob,
		Identifier: big.NewInt(7),
		Amount:     big.NewInt(1),
	}})
	assert.NoError(t, err)

	owner, ok := l.OwnerOf(tokenX, big.NewInt(7))
	assert.True(t, ok)
	assert.Equal(t, bob, owner)

	// Alice no longer owns it, so she cannot move it again.
	err = l.Execute(context.Background(), []conduit.Transfer{{
		ItemType:   model.ItemTypeERC721,
		Token:      tokenX,
		From:       alice,
		To:         carol,
		Identifier: big.NewInt(7),
		Amount:     big.NewInt(1),
	}})
	assert.ErrorIs(t, err, ErrNotTokenOwner)
}

func TestERC1155Transfer(t *testing.T) {
	l := New()
	l.MintERC1155(tokenY, big.NewInt(3), alice, big.NewInt(50))

	err := l.Execute(context.Background(), []conduit.Transfer{{
		ItemType:   model.ItemTypeERC1155,
		Token:      tokenY,
		From:       alice,
		To:         bob,
		Identifier: big.NewInt(3),
		Amount:     big.NewInt(20),
	}})
	assert.NoError(t, err)
	assert.Equal(t, int64(30), l.ERC1155Balance(tokenY, big.NewInt(3), alice).Int64())
	assert.Equal(t, int64(20), l.ERC1155Balance(tokenY, big.NewInt(3), bob).Int64())
}

func TestBatchRollsBackOnFailure(t *testing.T) {
	l := New()
	l.MintERC20(tokenX, alice, big.NewInt(100))
	assert.NoError(t, l.MintERC721(tokenY, big.NewInt(1), bob))

	// Second transfer fails (carol owns nothing), so the first must unwind.
	err := l.Execute(context.Background(), []conduit.Transfer{
		{
			ItemType: model.ItemTypeERC20,
			Token:    tokenX,
			From:     alice,
			To:       bob,
			Amount:   big.NewInt(100),
		},
		{
			ItemType:   model.ItemTypeERC721,
			Token:      tokenY,
			From:       carol,
			To:         alice,
			Identifier: big.NewInt(1),
			Amount:     big.NewInt(1),
		},
	})
	assert.ErrorIs(t, err, ErrNotTokenOwner)
	assert.Equal(t, int64(100), l.ERC20Balance(tokenX, alice).Int64())
	assert.Equal(t, int64(0), l.ERC20Balance(tokenX, bob).Int64())

	owner, ok := l.OwnerOf(tokenY, big.NewInt(1))
	assert.True(t, ok)
	assert.Equal(t, bob, owner)
}

func TestLaterTransfersSpendEarlierProceeds(t *testing.T) {
	// Sequential semantics: bob funds his obligation with what alice just
	// paid him inside the same batch.
	l := New()
	l.MintNative(alice, big.NewInt(10))

	err := l.Execute(context.Background(), []conduit.Transfer{
		{ItemType: model.ItemTypeNative, From: alice, To: bob, Amount: big.NewInt(10)},
		{ItemType: model.ItemTypeNative, From: bob, To: carol, Amount: big.NewInt(10)},
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(0), l.NativeBalance(alice).Int64())
	assert.Equal(t, int64(0), l.NativeBalance(bob).Int64())
	assert.Equal(t, int64(10), l.NativeBalance(carol).Int64())
}

func TestZeroAmountIsNoOp(t *testing.T) {
	l := New()
	err := l.Execute(context.Background(), []conduit.Transfer{{
		ItemType: model.ItemTypeNative,
		From:     alice,
		To:       bob,
		Amount:   big.NewInt(0),
	}})
	assert.NoError(t, err)
	assert.Equal(t, int64(0), l.NativeBalance(bob).Int64())

	err = l.Execute(context.Background(), []conduit.Transfer{{
		ItemType: model.ItemTypeNative,
		From:     alice,
		To:       bob,
	}})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCancelledContext(t *testing.T) {
	l := New()
	l.MintNative(alice, big.NewInt(10))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.Execute(ctx, []conduit.Transfer{{
		ItemType: model.ItemTypeNative,
		From:     alice,
		To:       bob,
		Amount:   big.NewInt(1),
	}})
	assert.Error(t, err)
	assert.Equal(t, int64(10), l.NativeBalance(alice).Int64())
}
