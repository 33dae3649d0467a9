package signer

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// EIP-712 domain constants. Every order hash is domain-bound so signatures
// cannot be replayed against another deployment or chain.
const (
	EIP712DomainName    = "Seaport"
	EIP712DomainVersion = "1.6"
)

// Type strings follow EIP-712 encodeType: the primary type first, then every
// referenced struct type in alphabetical order.
const (
	offerItemTypeString = "OfferItem(" +
		"uint8 itemType," +
		"address token," +
		"uint256 identifierOrCriteria," +
		"uint256 startAmount," +
		"uint256 endAmount)"

	considerationItemTypeString = "ConsiderationItem(" +
		"uint8 itemType," +
		"address token," +
		"uint256 identifierOrCriteria," +
		"uint256 startAmount," +
		"uint256 endAmount," +
		"address recipient)"

	orderComponentsTypeString = "OrderComponents(" +
		"address offerer," +
		"address zone," +
		"OfferItem[] offer," +
		"ConsiderationItem[] consideration," +
		"uint8 orderType," +
		"uint256 startTime," +
		"uint256 endTime," +
		"bytes32 zoneHash," +
		"uint256 salt," +
		"bytes32 conduitKey," +
		"uint256 counter)"
)

var (
	// EIP712DomainTypeHash is the keccak256 hash of the EIP712Domain type definition
	// "EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"
	EIP712DomainTypeHash = crypto.Keccak256Hash([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))

	// OfferItemTypeHash / ConsiderationItemTypeHash hash the item type strings alone.
	OfferItemTypeHash         = crypto.Keccak256Hash([]byte(offerItemTypeString))
	ConsiderationItemTypeHash = crypto.Keccak256Hash([]byte(considerationItemTypeString))

	// OrderTypeHash hashes the OrderComponents type string followed by its
	// referenced types in alphabetical order.
	OrderTypeHash = crypto.Keccak256Hash([]byte(
		orderComponentsTypeString + considerationItemTypeString + offerItemTypeString,
	))

	// bulkOrderTypeHashes[h-1] is the type hash for a bulk order tree of
	// height h. A bulk order is a binary tree of OrderComponents signed once
	// at the root; the tree type nests [2] once per level.
	bulkOrderTypeHashes = buildBulkOrderTypeHashes()
)

// MaxBulkTreeHeight bounds the supported aggregated-signature tree height,
// i.e. one signature can cover at most 2^24 orders.
const MaxBulkTreeHeight = 24

func buildBulkOrderTypeHashes() [MaxBulkTreeHeight]common.Hash {
	var hashes [MaxBulkTreeHeight]common.Hash
	for h := 1; h <= MaxBulkTreeHeight; h++ {
		typeString := "BulkOrder(OrderComponents" + strings.Repeat("[2]", h) + " tree)" +
			considerationItemTypeString + offerItemTypeString + orderComponentsTypeString
		hashes[h-1] = crypto.Keccak256Hash([]byte(typeString))
	}
	return hashes
}

// BulkOrderTypeHash returns the type hash for a bulk order tree of the given
// height (1..MaxBulkTreeHeight).
func BulkOrderTypeHash(height int) (common.Hash, bool) {
	if height < 1 || height > MaxBulkTreeHeight {
		return common.Hash{}, false
	}
	return bulkOrderTypeHashes[height-1], true
}
