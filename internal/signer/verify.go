package signer

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrInvalidSignature covers malformed encodings, failed recovery, and
	// recovered-signer mismatches.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrInvalidSigner is returned when recovery yields the zero address.
	ErrInvalidSigner = errors.New("invalid signer")
)

// BadSignatureVError reports a recovery id outside {0, 1, 27, 28}.
type BadSignatureVError struct {
	V byte
}

func (e *BadSignatureVError) Error() string {
	return fmt.Sprintf("bad signature v byte: %d", e.V)
}

// Verifier checks order signatures against offerer addresses. It accepts
// standard 65-byte signatures, 64-byte EIP-2098 compact signatures, and bulk
// signatures that prove inclusion of the order hash in a signed order tree.
// Offerers registered as contract signers are routed to their validator
// instead of key recovery.
type Verifier struct {
	hasher    *Hasher
	contracts *ContractRegistry
}

func NewVerifier(hasher *Hasher) *Verifier {
	return &Verifier{hasher: hasher, contracts: NewContractRegistry(0)}
}

// Contracts exposes the contract signer registry for registration.
func (v *Verifier) Contracts() *ContractRegistry {
	return v.contracts
}

// Verify recovers the signer of orderHash and requires it to equal offerer.
func (v *Verifier) Verify(orderHash common.Hash, offerer common.Address, signature []byte) error {
	if v.contracts.Has(offerer) {
		return v.contracts.Validate(offerer, common.BytesToHash(v.hasher.Digest(orderHash)), signature)
	}

	switch len(signature) {
	case 64, 65:
		return v.recoverAndCheck(v.hasher.Digest(orderHash), signature, offerer)
	}

	base, key, proof, height, err := splitBulkSignature(signature)
	if err != nil {
		return err
	}
	root := computeBulkRoot(orderHash, key, proof)
	digest, ok := v.hasher.BulkDigest(root, height)
	if !ok {
		return fmt.Errorf("%w: unsupported bulk tree height %d", ErrInvalidSignature, height)
	}
	return v.recoverAndCheck(digest, base, offerer)
}

func (v *Verifier) recoverAndCheck(digest []byte, signature []byte, offerer common.Address) error {
	recovered, err := RecoverSigner(digest, signature)
	if err != nil {
		return err
	}
	if recovered != offerer {
		return fmt.Errorf("%w: recovered %s, want %s", ErrInvalidSignature, recovered.Hex(), offerer.Hex())
	}
	return nil
}

// RecoverSigner recovers the signing address of a 32-byte digest from a
// standard or compact signature, rejecting malleable s values.
func RecoverSigner(digest []byte, signature []byte) (common.Address, error) {
	r, s, recID, err := decodeSignature(signature)
	if err != nil {
		return common.Address{}, err
	}
	if !crypto.ValidateSignatureValues(recID, r, s, true) {
		return common.Address{}, fmt.Errorf("%w: signature values out of range", ErrInvalidSignature)
	}

	raw := make([]byte, 65)
	copy(raw[0:32], r.FillBytes(make([]byte, 32)))
	copy(raw[32:64], s.FillBytes(make([]byte, 32)))
	raw[64] = recID

	pub, err := crypto.SigToPub(digest, raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: recovery failed", ErrInvalidSignature)
	}
	recovered := crypto.PubkeyToAddress(*pub)
	if recovered == (common.Address{}) {
		return common.Address{}, ErrInvalidSigner
	}
	return recovered, nil
}

// decodeSignature accepts r||s||v (65 bytes, v in {0,1,27,28}) or the
// EIP-2098 compact form r||vs (64 bytes, v folded into the top bit of s).
func decodeSignature(signature []byte) (r, s *big.Int, recID byte, err error) {
	switch len(signature) {
	case 65:
		r = new(big.Int).SetBytes(signature[0:32])
		s = new(big.Int).SetBytes(signature[32:64])
		recID = signature[64]
		if recID >= 27 {
			recID -= 27
		}
		if recID > 1 {
			return nil, nil, 0, &BadSignatureVError{V: signature[64]}
		}
		return r, s, recID, nil
	case 64:
		r = new(big.Int).SetBytes(signature[0:32])
		vs := new(big.Int).SetBytes(signature[32:64])
		recID = byte(vs.Bit(255))
		s = vs.SetBit(vs, 255, 0)
		return r, s, recID, nil
	default:
		return nil, nil, 0, fmt.Errorf("%w: unexpected length %d", ErrInvalidSignature, len(signature))
	}
}

// splitBulkSignature validates the bulk layout: base signature (64 or 65
// bytes) ++ 3-byte big-endian leaf index ++ height*32 bytes of sibling
// hashes, height in [1, MaxBulkTreeHeight].
func splitBulkSignature(signature []byte) (base []byte, key uint32, proof []common.Hash, height int, err error) {
	n := len(signature)
	var baseLen int
	switch {
	case n >= 67+32 && (n-67)%32 == 0:
		baseLen = 64
	case n >= 68+32 && (n-68)%32 == 0:
		baseLen = 65
	default:
		return nil, 0, nil, 0, fmt.Errorf("%w: unexpected length %d", ErrInvalidSignature, n)
	}

	height = (n - baseLen - 3) / 32
	if height < 1 || height > MaxBulkTreeHeight {
		return nil, 0, nil, 0, fmt.Errorf("%w: bulk tree height %d out of range", ErrInvalidSignature, height)
	}

	base = signature[:baseLen]
	key = uint32(signature[baseLen])<<16 | uint32(signature[baseLen+1])<<8 | uint32(signature[baseLen+2])
	if key >= 1<<uint(height) {
		return nil, 0, nil, 0, fmt.Errorf("%w: bulk key %d exceeds tree of height %d", ErrInvalidSignature, key, height)
	}

	proofBytes := signature[baseLen+3:]
	proof = make([]common.Hash, height)
	for i := 0; i < height; i++ {
		proof[i] = common.BytesToHash(proofBytes[i*32 : (i+1)*32])
	}
	return base, key, proof, height, nil
}

// computeBulkRoot walks the Merkle path from the order hash leaf toward the
// root; bit i of key states whether the running node is the right child at
// level i.
func computeBulkRoot(leaf common.Hash, key uint32, proof []common.Hash) common.Hash {
	node := leaf
	for i, sibling := range proof {
		if key>>uint(i)&1 == 1 {
			node = crypto.Keccak256Hash(sibling.Bytes(), node.Bytes())
		} else {
			node = crypto.Keccak256Hash(node.Bytes(), sibling.Bytes())
		}
	}
	return node
}
