package signer

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// MagicValue1271 is the 4-byte selector of isValidSignature(bytes32,bytes).
// A contract signer approves a digest by returning exactly this value.
var MagicValue1271 = [4]byte{0x16, 0x26, 0xba, 0x7e}

// ContractValidator answers an isValidSignature query for one smart-contract
// offerer. Implementations typically check a session key or a co-signing
// policy and return MagicValue1271 on approval.
type ContractValidator func(digest common.Hash, signature []byte) ([4]byte, error)

type contractCacheEntry struct {
	valid   bool
	expires time.Time
}

// ContractRegistry routes signature checks for smart-contract offerers.
// Registered addresses bypass ECDSA recovery entirely; their validator is
// the only authority on what counts as a signature. Verdicts are cached per
// (contract, digest, signature) for a TTL since policies rarely flip within
// a settlement burst.
type ContractRegistry struct {
	mu         sync.Mutex
	validators map[common.Address]ContractValidator
	cache      map[string]contractCacheEntry
	cacheTTL   time.Duration
	now        func() time.Time
}

func NewContractRegistry(ttl time.Duration) *ContractRegistry {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &ContractRegistry{
		validators: make(map[common.Address]ContractValidator),
		cache:      make(map[string]contractCacheEntry),
		cacheTTL:   ttl,
		now:        time.Now,
	}
}

func (r *ContractRegistry) Register(contract common.Address, validator ContractValidator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validators[contract] = validator
}

func (r *ContractRegistry) Deregister(contract common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.validators, contract)
}

// Has reports whether the address verifies through a contract validator
// instead of key recovery.
func (r *ContractRegistry) Has(contract common.Address) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.validators[contract]
	return ok
}

// Validate asks the contract's validator to approve the digest. Definitive
// verdicts are cached; validator errors are treated as transient and are
// not.
func (r *ContractRegistry) Validate(contract common.Address, digest common.Hash, signature []byte) error {
	validator, ok := r.lookup(contract)
	if !ok {
		return fmt.Errorf("%w: no validator registered for contract signer %s", ErrInvalidSigner, contract.Hex())
	}

	key := contractCacheKey(contract, digest, signature)
	if valid, hit := r.cacheGet(key); hit {
		if valid {
			return nil
		}
		return fmt.Errorf("%w: contract signer %s rejected digest", ErrInvalidSignature, contract.Hex())
	}

	magic, err := validator(digest, signature)
	if err != nil {
		return fmt.Errorf("%w: contract signer %s: %v", ErrInvalidSignature, contract.Hex(), err)
	}

	valid := magic == MagicValue1271
	r.cacheSet(key, valid)
	if !valid {
		return fmt.Errorf("%w: contract signer %s returned wrong magic value", ErrInvalidSignature, contract.Hex())
	}
	return nil
}

func (r *ContractRegistry) lookup(contract common.Address) (ContractValidator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.validators[contract]
	return v, ok
}

func (r *ContractRegistry) cacheGet(key string) (bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.cache[key]
	if !ok {
		return false, false
	}
	if r.now().After(entry.expires) {
		delete(r.cache, key)
		return false, false
	}
	return entry.valid, true
}

func (r *ContractRegistry) cacheSet(key string, valid bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[key] = contractCacheEntry{
		valid:   valid,
		expires: r.now().Add(r.cacheTTL),
	}
}

// Signatures can run long in the bulk form, so the cache key hashes them.
func contractCacheKey(contract common.Address, digest common.Hash, signature []byte) string {
	return contract.Hex() + ":" + digest.Hex() + ":" + crypto.Keccak256Hash(signature).Hex()
}
