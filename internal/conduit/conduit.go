package conduit

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/immutable/seaport/internal/model"
)

var (
	// ErrInvalidConduit is returned when an order names a conduit key with
	// no registered channel.
	ErrInvalidConduit = errors.New("invalid conduit")
	// ErrReservedKey guards the zero key, which always means direct
	// execution.
	ErrReservedKey = errors.New("conduit key zero is reserved for direct transfers")
)

// Transfer is one asset movement instruction. Executors receive whole
// batches and must apply them atomically or not at all.
type Transfer struct {
	ItemType   model.ItemType
	Token      common.Address
	From       common.Address
	To         common.Address
	Identifier *big.Int
	Amount     *big.Int
}

// Executor applies a batch of transfers atomically.
type Executor interface {
	Execute(ctx context.Context, transfers []Transfer) error
}

// Router selects the transfer channel for each execution by conduit key.
// The zero key routes to the direct executor; any other key must have been
// registered up front.
type Router struct {
	mu       sync.RWMutex
	direct   Executor
	channels map[common.Hash]Executor
}

func NewRouter(direct Executor) *Router {
	return &Router{
		direct:   direct,
		channels: make(map[common.Hash]Executor),
	}
}

// Register installs a channel under a nonzero key. Re-registering a key
// replaces the previous channel.
func (r *Router) Register(key common.Hash, exec Executor) error {
	if key == (common.Hash{}) {
		return ErrReservedKey
	}
	if exec == nil {
		return fmt.Errorf("conduit %s: nil executor", key.Hex())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[key] = exec
	return nil
}

// Resolve returns the executor for a conduit key.
func (r *Router) Resolve(key common.Hash) (Executor, error) {
	if key == (common.Hash{}) {
		return r.direct, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	exec, ok := r.channels[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConduit, key.Hex())
	}
	return exec, nil
}

// Execute routes one batch through the channel named by key.
func (r *Router) Execute(ctx context.Context, key common.Hash, transfers []Transfer) error {
	exec, err := r.Resolve(key)
	if err != nil {
		return err
	}
	return exec.Execute(ctx, transfers)
}
