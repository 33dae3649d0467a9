package signer

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/immutable/seaport/internal/model"
)

// Signer produces order signatures accepted by the Verifier. It is used by
// embedding clients and throughout the test suite; the engine itself only
// ever verifies.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
	hasher  *Hasher
}

// NewSigner parses a hex private key and binds it to a hashing domain.
func NewSigner(privateKeyHex string, hasher *Hasher) (*Signer, error) {
	if privateKeyHex == "" {
		return nil, fmt.Errorf("private key is required")
	}
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %v", err)
	}
	return NewSignerFromKey(key, hasher), nil
}

// NewSignerFromKey wraps an in-memory key.
func NewSignerFromKey(key *ecdsa.PrivateKey, hasher *Hasher) *Signer {
	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		hasher:  hasher,
	}
}

func (s *Signer) Address() common.Address { return s.address }

// SignOrder signs the order parameters under the given counter, returning a
// standard 65-byte r||s||v signature with v in {27, 28}.
func (s *Signer) SignOrder(params model.OrderParameters, counter uint64) ([]byte, error) {
	return s.signDigest(s.hasher.Digest(s.hasher.HashOrder(params, counter)))
}

// SignOrderCompact signs the order and folds the signature into the 64-byte
// EIP-2098 compact form (v packed into the top bit of s).
func (s *Signer) SignOrderCompact(params model.OrderParameters, counter uint64) ([]byte, error) {
	sig, err := s.SignOrder(params, counter)
	if err != nil {
		return nil, err
	}
	return compactForm(sig), nil
}

// SignBulkTree signs the root of a bulk order tree once and returns the
// composite signature blob for the leaf at index: base signature ++ 3-byte
// leaf index ++ sibling hashes bottom-up.
func (s *Signer) SignBulkTree(tree *BulkTree, index int) ([]byte, error) {
	digest, ok := s.hasher.BulkDigest(tree.Root(), tree.Height())
	if !ok {
		return nil, fmt.Errorf("unsupported bulk tree height %d", tree.Height())
	}
	base, err := s.signDigest(digest)
	if err != nil {
		return nil, err
	}
	proof, err := tree.Proof(index)
	if err != nil {
		return nil, err
	}
	return EncodeBulkSignature(base, uint32(index), proof), nil
}

func (s *Signer) signDigest(digest []byte) ([]byte, error) {
	sig, err := crypto.Sign(digest, s.key)
	if err != nil {
		return nil, err
	}
	// crypto.Sign yields v in {0,1}; the canonical wire form uses 27/28.
	if sig[64] < 27 {
		sig[64] += 27
	}
	return sig, nil
}

// compactForm converts a 65-byte signature to EIP-2098.
func compactForm(sig []byte) []byte {
	out := make([]byte, 64)
	copy(out[0:32], sig[0:32])
	copy(out[32:64], sig[32:64])
	if sig[64] == 28 || sig[64] == 1 {
		out[32] |= 0x80
	}
	return out
}

// EncodeBulkSignature assembles the composite bulk signature blob.
func EncodeBulkSignature(base []byte, key uint32, proof []common.Hash) []byte {
	out := make([]byte, 0, len(base)+3+32*len(proof))
	out = append(out, base...)
	out = append(out, byte(key>>16), byte(key>>8), byte(key))
	for _, h := range proof {
		out = append(out, h.Bytes()...)
	}
	return out
}

// BulkTree is a binary Merkle tree over order hashes whose root is signed
// once to authorize every order in the tree. Leaves are padded to the next
// power of two with zero hashes.
type BulkTree struct {
	layers [][]common.Hash
	height int
}

// NewBulkTree builds the tree. At least one order hash is required and the
// padded tree may not exceed MaxBulkTreeHeight levels.
func NewBulkTree(orderHashes []common.Hash) (*BulkTree, error) {
	if len(orderHashes) == 0 {
		return nil, fmt.Errorf("bulk tree requires at least one order hash")
	}

	height := 1
	for 1<<uint(height) < len(orderHashes) {
		height++
	}
	if height > MaxBulkTreeHeight {
		return nil, fmt.Errorf("bulk tree height %d exceeds maximum %d", height, MaxBulkTreeHeight)
	}

	leaves := make([]common.Hash, 1<<uint(height))
	copy(leaves, orderHashes)

	layers := [][]common.Hash{leaves}
	for level := leaves; len(level) > 1; {
		next := make([]common.Hash, len(level)/2)
		for i := range next {
			next[i] = crypto.Keccak256Hash(level[2*i].Bytes(), level[2*i+1].Bytes())
		}
		layers = append(layers, next)
		level = next
	}

	return &BulkTree{layers: layers, height: height}, nil
}

func (t *BulkTree) Height() int { return t.height }

func (t *BulkTree) Root() common.Hash {
	top := t.layers[len(t.layers)-1]
	return top[0]
}

// Proof returns the sibling hashes for the leaf at index, ordered from the
// leaf level upward.
func (t *BulkTree) Proof(index int) ([]common.Hash, error) {
	if index < 0 || index >= len(t.layers[0]) {
		return nil, fmt.Errorf("leaf index %d out of range", index)
	}
	proof := make([]common.Hash, t.height)
	pos := index
	for level := 0; level < t.height; level++ {
		proof[level] = t.layers[level][pos^1]
		pos >>= 1
	}
	return proof, nil
}
