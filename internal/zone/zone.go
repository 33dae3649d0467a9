package zone

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/immutable/seaport/internal/model"
)

// Parameters is the full resolved order context handed to a zone when a
// restricted order is about to settle. OrderHashes lists every order in the
// same batch so policies can reason about siblings.
type Parameters struct {
	OrderHash     common.Hash
	Fulfiller     common.Address
	Offerer       common.Address
	Offer         []model.SpentItem
	Consideration []model.ReceivedItem
	ExtraData     []byte
	OrderHashes   []common.Hash
	StartTime     uint64
	EndTime       uint64
	ZoneHash      common.Hash
}

// Zone is the policy gateway consulted for restricted orders. A zone approves
// a fill by returning MagicValue with a nil error; anything else aborts the
// batch.
type Zone interface {
	ValidateOrder(ctx context.Context, params *Parameters) ([4]byte, error)
}

// MagicValue is the selector-style constant a zone returns to approve an
// order, derived from the canonical validateOrder signature.
var MagicValue = computeMagicValue()

func computeMagicValue() [4]byte {
	sig := "validateOrder((bytes32,address,address,(uint8,address,uint256,uint256)[],(uint8,address,uint256,uint256,address)[],bytes,bytes32[],uint256,uint256,bytes32))"
	var mv [4]byte
	copy(mv[:], crypto.Keccak256([]byte(sig))[:4])
	return mv
}

// Registry maps zone addresses to in-process policy implementations. A
// restricted order naming an unregistered zone cannot be approved.
type Registry struct {
	mu    sync.RWMutex
	zones map[common.Address]Zone
}

func NewRegistry() *Registry {
	return &Registry{zones: make(map[common.Address]Zone)}
}

func (r *Registry) Register(addr common.Address, z Zone) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.zones[addr] = z
}

func (r *Registry) Resolve(addr common.Address) (Zone, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	z, ok := r.zones[addr]
	return z, ok
}

// OpenZone approves every order. It serves as the default policy for
// restricted orders whose zone imposes no extra conditions.
type OpenZone struct{}

func (OpenZone) ValidateOrder(ctx context.Context, params *Parameters) ([4]byte, error) {
	return MagicValue, nil
}
