package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// CriteriaResolver proves that a concrete identifier is a member of the
// Merkle tree rooted at one criteria-gated item's IdentifierOrCriteria. An
// empty proof is only valid against a zero root, which accepts any
// identifier.
type CriteriaResolver struct {
	OrderIndex    int
	Side          Side
	Index         int
	Identifier    *big.Int
	CriteriaProof []common.Hash
}

// FulfillmentComponent points at one item of one order within a batch.
type FulfillmentComponent struct {
	OrderIndex int
	ItemIndex  int
}

// Fulfillment declares that the referenced offer items collectively satisfy
// the referenced consideration items.
type Fulfillment struct {
	OfferComponents         []FulfillmentComponent
	ConsiderationComponents []FulfillmentComponent
}

// Execution is one concrete transfer produced by aggregation: the item moves
// from Offerer to the item's recipient through the channel selected by
// ConduitKey.
type Execution struct {
	Item       ReceivedItem
	Offerer    common.Address
	ConduitKey common.Hash
}

// FulfillAvailableComponents carries the two component groupings used by the
// fulfill-available flow: each inner slice aggregates same-kind items across
// orders into a single execution.
type FulfillAvailableComponents struct {
	Offer         [][]FulfillmentComponent
	Consideration [][]FulfillmentComponent
}

// FillResult reports the outcome of one settlement call: the order hashes
// settled, the executions performed, and (for fulfill-available) which of
// the submitted orders were actually fillable.
type FillResult struct {
	OrderHashes []common.Hash
	Executions  []Execution
	Available   []bool
}
