package criteria

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

// Tree is a Merkle tree over token identifiers used to gate criteria items.
// Leaves are the keccak hashes of the 32-byte identifiers, sorted ascending;
// parents hash their children in sorted order, so proofs carry no position
// bits. An odd node at any level is promoted unchanged.
type Tree struct {
	layers [][]common.Hash
	index  map[common.Hash]int
}

// NewTree builds the criteria tree for a set of identifiers.
func NewTree(identifiers []*big.Int) (*Tree, error) {
	if len(identifiers) == 0 {
		return nil, fmt.Errorf("criteria tree requires at least one identifier")
	}

	leaves := make([]common.Hash, len(identifiers))
	for i, id := range identifiers {
		if id == nil || id.Sign() < 0 {
			return nil, fmt.Errorf("invalid identifier at position %d", i)
		}
		leaves[i] = leafHash(id)
	}
	sort.Slice(leaves, func(i, j int) bool {
		return bytes.Compare(leaves[i].Bytes(), leaves[j].Bytes()) < 0
	})

	index := make(map[common.Hash]int, len(leaves))
	for i, leaf := range leaves {
		if _, ok := index[leaf]; !ok {
			index[leaf] = i
		}
	}

	layers := [][]common.Hash{leaves}
	for level := leaves; len(level) > 1; {
		next := make([]common.Hash, 0, (len(level)+1)/2)
		for i := 0; i+1 < len(level); i += 2 {
			next = append(next, hashPair(level[i], level[i+1]))
		}
		if len(level)%2 == 1 {
			next = append(next, level[len(level)-1])
		}
		layers = append(layers, next)
		level = next
	}

	return &Tree{layers: layers, index: index}, nil
}

// Root returns the criteria root to embed in the order's
// IdentifierOrCriteria field.
func (t *Tree) Root() common.Hash {
	top := t.layers[len(t.layers)-1]
	return top[0]
}

// RootInt returns the root as the big integer form items carry.
func (t *Tree) RootInt() *big.Int {
	return new(big.Int).SetBytes(t.Root().Bytes())
}

// Proof returns the sibling hashes proving the identifier's membership,
// ordered from the leaf level upward.
func (t *Tree) Proof(identifier *big.Int) ([]common.Hash, error) {
	pos, ok := t.index[leafHash(identifier)]
	if !ok {
		return nil, fmt.Errorf("identifier %s is not in the tree", identifier)
	}

	proof := make([]common.Hash, 0, len(t.layers)-1)
	for _, layer := range t.layers[:len(t.layers)-1] {
		if sibling := pos ^ 1; sibling < len(layer) {
			proof = append(proof, layer[sibling])
		}
		pos >>= 1
	}
	return proof, nil
}

// VerifyProof checks that identifier is a member of the tree with the given
// root. A zero root accepts any identifier, but only with an empty proof; a
// nonzero root always requires the full hash walk, so a small tree is never
// mistaken for a wildcard.
func VerifyProof(root common.Hash, identifier *big.Int, proof []common.Hash) bool {
	if root == (common.Hash{}) {
		return len(proof) == 0
	}
	node := leafHash(identifier)
	for _, sibling := range proof {
		node = hashPair(node, sibling)
	}
	return node == root
}

func leafHash(identifier *big.Int) common.Hash {
	return crypto.Keccak256Hash(math.U256Bytes(new(big.Int).Set(identifier)))
}

func hashPair(a, b common.Hash) common.Hash {
	if bytes.Compare(a.Bytes(), b.Bytes()) > 0 {
		a, b = b, a
	}
	return crypto.Keccak256Hash(a.Bytes(), b.Bytes())
}
