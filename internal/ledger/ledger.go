package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/immutable/seaport/internal/conduit"
	"github.com/immutable/seaport/internal/model"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNotTokenOwner       = errors.New("not token owner")
	ErrUnsupportedItemType = errors.New("unsupported item type for transfer")
	ErrInvalidAmount       = errors.New("invalid transfer amount")
)

// Ledger is an in-memory asset book for native currency, ERC20, ERC721, and
// ERC1155 holdings. It implements conduit.Executor: a batch of transfers is
// applied sequentially under one lock, and any failure rolls back the whole
// batch, so later transfers may spend earlier proceeds but a failed batch
// leaves no trace.
type Ledger struct {
	mu      sync.RWMutex
	native  map[common.Address]*big.Int
	erc20   map[common.Address]map[common.Address]*big.Int
	erc721  map[common.Address]map[string]common.Address
	erc1155 map[common.Address]map[string]map[common.Address]*big.Int
}

func New() *Ledger {
	return &Ledger{
		native:  make(map[common.Address]*big.Int),
		erc20:   make(map[common.Address]map[common.Address]*big.Int),
		erc721:  make(map[common.Address]map[string]common.Address),
		erc1155: make(map[common.Address]map[string]map[common.Address]*big.Int),
	}
}

// Execute applies the batch atomically. On failure every transfer applied so
// far is reversed, in reverse order, before the error is returned.
func (l *Ledger) Execute(ctx context.Context, transfers []conduit.Transfer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for i, t := range transfers {
		if err := l.applyLocked(t); err != nil {
			for j := i - 1; j >= 0; j-- {
				l.reverseLocked(transfers[j])
			}
			return fmt.Errorf("transfer %d: %w", i, err)
		}
	}
	return nil
}

func (l *Ledger) applyLocked(t conduit.Transfer) error {
	if t.Amount == nil || t.Amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if t.Amount.Sign() == 0 && t.ItemType != model.ItemTypeERC721 {
		return nil
	}

	switch t.ItemType {
	case model.ItemTypeNative:
		return l.moveBalance(l.native, t.From, t.To, t.Amount)
	case model.ItemTypeERC20:
		return l.moveBalance(l.tokenBook(t.Token), t.From, t.To, t.Amount)
	case model.ItemTypeERC721:
		owners := l.ownerBook(t.Token)
		id := keyFor(t.Identifier)
		if owners[id] != t.From {
			return fmt.Errorf("%w: token %s id %s held by %s, not %s",
				ErrNotTokenOwner, t.Token.Hex(), keyFor(t.Identifier), owners[id].Hex(), t.From.Hex())
		}
		owners[id] = t.To
		return nil
	case model.ItemTypeERC1155:
		return l.moveBalance(l.multiBook(t.Token, t.Identifier), t.From, t.To, t.Amount)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedItemType, t.ItemType)
	}
}

// reverseLocked undoes a previously applied transfer. It cannot fail: the
// forward transfer guaranteed the destination holds at least the amount.
func (l *Ledger) reverseLocked(t conduit.Transfer) {
	if t.Amount == nil || (t.Amount.Sign() == 0 && t.ItemType != model.ItemTypeERC721) {
		return
	}
	switch t.ItemType {
	case model.ItemTypeNative:
		_ = l.moveBalance(l.native, t.To, t.From, t.Amount)
	case model.ItemTypeERC20:
		_ = l.moveBalance(l.tokenBook(t.Token), t.To, t.From, t.Amount)
	case model.ItemTypeERC721:
		l.ownerBook(t.Token)[keyFor(t.Identifier)] = t.From
	case model.ItemTypeERC1155:
		_ = l.moveBalance(l.multiBook(t.Token, t.Identifier), t.To, t.From, t.Amount)
	}
}

func (l *Ledger) moveBalance(book map[common.Address]*big.Int, from, to common.Address, amount *big.Int) error {
	have := book[from]
	if have == nil || have.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, from.Hex(), bigOrZero(have), amount)
	}
	book[from] = new(big.Int).Sub(have, amount)
	if cur := book[to]; cur != nil {
		book[to] = new(big.Int).Add(cur, amount)
	} else {
		book[to] = new(big.Int).Set(amount)
	}
	return nil
}

// MintNative credits native currency to an account.
func (l *Ledger) MintNative(addr common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(l.native, addr, amount)
}

// MintERC20 credits fungible token balance.
func (l *Ledger) MintERC20(token, addr common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(l.tokenBook(token), addr, amount)
}

// MintERC721 assigns ownership of one non-fungible token. Minting over an
// existing owner is an error.
func (l *Ledger) MintERC721(token common.Address, identifier *big.Int, owner common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	owners := l.ownerBook(token)
	id := keyFor(identifier)
	if cur, ok := owners[id]; ok && cur != (common.Address{}) {
		return fmt.Errorf("token %s id %s already owned by %s", token.Hex(), id, cur.Hex())
	}
	owners[id] = owner
	return nil
}

// MintERC1155 credits semi-fungible balance for one identifier.
func (l *Ledger) MintERC1155(token common.Address, identifier *big.Int, addr common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(l.multiBook(token, identifier), addr, amount)
}

func (l *Ledger) credit(book map[common.Address]*big.Int, addr common.Address, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	if cur := book[addr]; cur != nil {
		book[addr] = new(big.Int).Add(cur, amount)
	} else {
		book[addr] = new(big.Int).Set(amount)
	}
}

// NativeBalance returns the account's native holdings.
func (l *Ledger) NativeBalance(addr common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return bigOrZero(l.native[addr])
}

// ERC20Balance returns the account's balance of one fungible token.
func (l *Ledger) ERC20Balance(token, addr common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return bigOrZero(l.erc20[token][addr])
}

// OwnerOf returns the holder of a non-fungible token, if any.
func (l *Ledger) OwnerOf(token common.Address, identifier *big.Int) (common.Address, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	owner, ok := l.erc721[token][keyFor(identifier)]
	if !ok || owner == (common.Address{}) {
		return common.Address{}, false
	}
	return owner, true
}

// ERC1155Balance returns the account's balance of one identifier.
func (l *Ledger) ERC1155Balance(token common.Address, identifier *big.Int, addr common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return bigOrZero(l.erc1155[token][keyFor(identifier)][addr])
}

func (l *Ledger) tokenBook(token common.Address) map[common.Address]*big.Int {
	book, ok := l.erc20[token]
	if !ok {
		book = make(map[common.Address]*big.Int)
		l.erc20[token] = book
	}
	return book
}

func (l *Ledger) ownerBook(token common.Address) map[string]common.Address {
	book, ok := l.erc721[token]
	if !ok {
		book = make(map[string]common.Address)
		l.erc721[token] = book
	}
	return book
}

func (l *Ledger) multiBook(token common.Address, identifier *big.Int) map[common.Address]*big.Int {
	ids, ok := l.erc1155[token]
	if !ok {
		ids = make(map[string]map[common.Address]*big.Int)
		l.erc1155[token] = ids
	}
	id := keyFor(identifier)
	book, ok := ids[id]
	if !ok {
		book = make(map[common.Address]*big.Int)
		ids[id] = book
	}
	return book
}

func keyFor(identifier *big.Int) string {
	if identifier == nil {
		return "0"
	}
	return identifier.String()
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
