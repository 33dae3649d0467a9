package signer

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/immutable/seaport/internal/model"
)

// Hasher derives order hashes and signing digests. The domain separator is
// pre-calculated once; order hashes themselves are domain-free struct hashes
// (the domain only enters the signing digest).
type Hasher struct {
	chainID           *big.Int
	verifyingContract common.Address
	domainSeparator   common.Hash
}

// NewHasher pre-computes the EIP-712 domain separator for the given chain
// and verifying contract address.
func NewHasher(chainID int64, verifyingContract common.Address) *Hasher {
	// keccak256(abi.encode(domainTypeHash, keccak256(name), keccak256(version), chainId, verifyingContract))
	nameHash := crypto.Keccak256Hash([]byte(EIP712DomainName))
	versionHash := crypto.Keccak256Hash([]byte(EIP712DomainVersion))

	data := make([]byte, 32*5)
	copy(data[0:32], EIP712DomainTypeHash.Bytes())
	copy(data[32:64], nameHash.Bytes())
	copy(data[64:96], versionHash.Bytes())
	copy(data[96:128], math.U256Bytes(big.NewInt(chainID)))
	copy(data[128+12:160], verifyingContract.Bytes())

	return &Hasher{
		chainID:           big.NewInt(chainID),
		verifyingContract: verifyingContract,
		domainSeparator:   crypto.Keccak256Hash(data),
	}
}

func (h *Hasher) ChainID() *big.Int { return new(big.Int).Set(h.chainID) }

func (h *Hasher) DomainSeparator() common.Hash { return h.domainSeparator }

func (h *Hasher) VerifyingContract() common.Address { return h.verifyingContract }

// HashOrder computes the EIP-712 struct hash of the order parameters under
// the offerer's current counter. Bumping the counter changes every hash, so
// all outstanding signatures become unverifiable at once.
func (h *Hasher) HashOrder(params model.OrderParameters, counter uint64) common.Hash {
	offerHashes := make([]byte, 0, 32*len(params.Offer))
	for _, item := range params.Offer {
		offerHashes = append(offerHashes, hashOfferItem(item)...)
	}
	considerationHashes := make([]byte, 0, 32*len(params.Consideration))
	for _, item := range params.Consideration {
		considerationHashes = append(considerationHashes, hashConsiderationItem(item)...)
	}

	// OrderComponents has 11 fields + typeHash = 12 slots.
	data := make([]byte, 32*12)
	copy(data[0:32], OrderTypeHash.Bytes())
	copy(data[32+12:64], params.Offerer.Bytes())
	copy(data[64+12:96], params.Zone.Bytes())
	copy(data[96:128], crypto.Keccak256(offerHashes))
	copy(data[128:160], crypto.Keccak256(considerationHashes))
	copy(data[160:192], math.U256Bytes(big.NewInt(int64(params.OrderType))))
	copy(data[192:224], math.U256Bytes(new(big.Int).SetUint64(params.StartTime)))
	copy(data[224:256], math.U256Bytes(new(big.Int).SetUint64(params.EndTime)))
	copy(data[256:288], params.ZoneHash.Bytes())
	copy(data[288:320], u256OrZero(params.Salt))
	copy(data[320:352], params.ConduitKey.Bytes())
	copy(data[352:384], math.U256Bytes(new(big.Int).SetUint64(counter)))

	return crypto.Keccak256Hash(data)
}

// HashComponents hashes pre-assembled order components.
func (h *Hasher) HashComponents(components model.OrderComponents) common.Hash {
	return h.HashOrder(components.OrderParameters, components.Counter)
}

// Digest computes the signable digest for a struct hash:
// keccak256("\x19\x01" || domainSeparator || structHash).
func (h *Hasher) Digest(structHash common.Hash) []byte {
	return crypto.Keccak256([]byte{0x19, 0x01}, h.domainSeparator.Bytes(), structHash.Bytes())
}

// BulkDigest computes the signable digest for a bulk order tree root of the
// given height.
func (h *Hasher) BulkDigest(root common.Hash, height int) ([]byte, bool) {
	typeHash, ok := BulkOrderTypeHash(height)
	if !ok {
		return nil, false
	}
	data := make([]byte, 32*2)
	copy(data[0:32], typeHash.Bytes())
	copy(data[32:64], root.Bytes())
	return h.Digest(crypto.Keccak256Hash(data)), true
}

// hashOfferItem hashes one offer item: typeHash + 5 fields = 6 slots.
func hashOfferItem(item model.OfferItem) []byte {
	data := make([]byte, 32*6)
	copy(data[0:32], OfferItemTypeHash.Bytes())
	copy(data[32:64], math.U256Bytes(big.NewInt(int64(item.ItemType))))
	copy(data[64+12:96], item.Token.Bytes())
	copy(data[96:128], u256OrZero(item.IdentifierOrCriteria))
	copy(data[128:160], u256OrZero(item.StartAmount))
	copy(data[160:192], u256OrZero(item.EndAmount))
	return crypto.Keccak256(data)
}

// hashConsiderationItem hashes one consideration item: typeHash + 6 fields.
func hashConsiderationItem(item model.ConsiderationItem) []byte {
	data := make([]byte, 32*7)
	copy(data[0:32], ConsiderationItemTypeHash.Bytes())
	copy(data[32:64], math.U256Bytes(big.NewInt(int64(item.ItemType))))
	copy(data[64+12:96], item.Token.Bytes())
	copy(data[96:128], u256OrZero(item.IdentifierOrCriteria))
	copy(data[128:160], u256OrZero(item.StartAmount))
	copy(data[160:192], u256OrZero(item.EndAmount))
	copy(data[192+12:224], item.Recipient.Bytes())
	return crypto.Keccak256(data)
}

func u256OrZero(v *big.Int) []byte {
	if v == nil {
		return make([]byte, 32)
	}
	return math.U256Bytes(v)
}
