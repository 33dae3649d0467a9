package zone

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/immutable/seaport/internal/model"
	"github.com/immutable/seaport/internal/signer"
)

var (
	ErrInvalidExtraData     = errors.New("invalid extra data")
	ErrInvalidSIP6Version   = errors.New("invalid sip6 version")
	ErrInvalidFulfiller     = errors.New("invalid fulfiller")
	ErrSignatureExpired     = errors.New("signature expired")
	ErrSignerNotApproved    = errors.New("signer not approved")
	ErrInvalidConsideration = errors.New("invalid consideration")
)

const (
	signedZoneName    = "SignedZone"
	signedZoneVersion = "1.0"

	// extraData layout: version tag | fulfiller | expiration | compact sig.
	sipVersionTag    = 0x00
	fulfillerOffset  = 1
	expirationOffset = fulfillerOffset + 20
	signatureOffset  = expirationOffset + 8
	contextOffset    = signatureOffset + 64

	// Context substandards: an opaque blob or a pinned consideration hash.
	substandardOpaque        = 0x00
	substandardConsideration = 0x01
)

var signedOrderTypeHash = crypto.Keccak256Hash(
	[]byte("SignedOrder(address fulfiller,uint64 expiration,bytes32 orderHash,bytes32 context)"),
)

// SignedZone approves restricted orders that carry a fresh authorization
// signed off-path by one of its registered signers. The authorization rides
// in the order's extraData: a SIP version tag, the expected fulfiller (zero
// for anyone), an expiration timestamp, a compact signature over
// {fulfiller, expiration, orderHash, contextHash}, and application context.
type SignedZone struct {
	mu              sync.RWMutex
	signers         map[common.Address]bool
	domainSeparator common.Hash
	now             func() time.Time
}

// NewSignedZone builds the policy for one zone address on one chain; the
// address anchors the signing domain so authorizations cannot be replayed
// across zones.
func NewSignedZone(chainID int64, zoneAddress common.Address, signers ...common.Address) *SignedZone {
	z := &SignedZone{
		signers:         make(map[common.Address]bool, len(signers)),
		domainSeparator: signedZoneDomain(chainID, zoneAddress),
		now:             time.Now,
	}
	for _, s := range signers {
		z.signers[s] = true
	}
	return z
}

func signedZoneDomain(chainID int64, zoneAddress common.Address) common.Hash {
	enc := make([]byte, 32*5)
	copy(enc[0:32], signer.EIP712DomainTypeHash.Bytes())
	copy(enc[32:64], crypto.Keccak256([]byte(signedZoneName)))
	copy(enc[64:96], crypto.Keccak256([]byte(signedZoneVersion)))
	big.NewInt(chainID).FillBytes(enc[96:128])
	copy(enc[128+12:160], zoneAddress.Bytes())
	return crypto.Keccak256Hash(enc)
}

func (z *SignedZone) AddSigner(addr common.Address) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.signers[addr] = true
}

func (z *SignedZone) RemoveSigner(addr common.Address) {
	z.mu.Lock()
	defer z.mu.Unlock()
	delete(z.signers, addr)
}

func (z *SignedZone) isApproved(addr common.Address) bool {
	z.mu.RLock()
	defer z.mu.RUnlock()
	return z.signers[addr]
}

// ValidateOrder checks the signed authorization carried in extraData.
func (z *SignedZone) ValidateOrder(ctx context.Context, params *Parameters) ([4]byte, error) {
	var empty [4]byte
	extra := params.ExtraData

	if len(extra) < contextOffset {
		return empty, fmt.Errorf("%w: %d bytes, need at least %d", ErrInvalidExtraData, len(extra), contextOffset)
	}
	if extra[0] != sipVersionTag {
		return empty, fmt.Errorf("%w: %d", ErrInvalidSIP6Version, extra[0])
	}

	expectedFulfiller := common.BytesToAddress(extra[fulfillerOffset:expirationOffset])
	if expectedFulfiller != (common.Address{}) && expectedFulfiller != params.Fulfiller {
		return empty, fmt.Errorf("%w: authorization is for %s", ErrInvalidFulfiller, expectedFulfiller.Hex())
	}

	expiration := binary.BigEndian.Uint64(extra[expirationOffset:signatureOffset])
	if now := uint64(z.now().Unix()); now > expiration {
		return empty, fmt.Errorf("%w: expired at %d, now %d", ErrSignatureExpired, expiration, now)
	}

	sig := extra[signatureOffset:contextOffset]
	context := extra[contextOffset:]

	digest := z.Digest(params.Fulfiller, expiration, params.OrderHash, context)
	recovered, err := signer.RecoverSigner(digest, sig)
	if err != nil {
		return empty, fmt.Errorf("%w: %v", ErrInvalidExtraData, err)
	}
	if !z.isApproved(recovered) {
		return empty, fmt.Errorf("%w: %s", ErrSignerNotApproved, recovered.Hex())
	}

	if err := z.checkContext(context, params); err != nil {
		return empty, err
	}
	return MagicValue, nil
}

// Digest computes the signing digest an approved signer must produce to
// authorize one fill. The fulfiller passed here is the actual caller; when
// the authorization pinned a fulfiller the two already matched.
func (z *SignedZone) Digest(fulfiller common.Address, expiration uint64, orderHash common.Hash, context []byte) []byte {
	enc := make([]byte, 32*5)
	copy(enc[0:32], signedOrderTypeHash.Bytes())
	copy(enc[32+12:64], fulfiller.Bytes())
	new(big.Int).SetUint64(expiration).FillBytes(enc[64:96])
	copy(enc[96:128], orderHash.Bytes())
	copy(enc[128:160], crypto.Keccak256(context))
	structHash := crypto.Keccak256(enc)
	return crypto.Keccak256([]byte{0x19, 0x01}, z.domainSeparator.Bytes(), structHash)
}

// checkContext enforces the context substandards. An empty or opaque context
// carries no constraints; a consideration-pinning context requires the
// resolved consideration set to hash to the signed expectation.
func (z *SignedZone) checkContext(context []byte, params *Parameters) error {
	if len(context) == 0 {
		return nil
	}
	switch context[0] {
	case substandardOpaque:
		return nil
	case substandardConsideration:
		if len(context) < 33 {
			return fmt.Errorf("%w: consideration context too short", ErrInvalidExtraData)
		}
		expected := common.BytesToHash(context[1:33])
		if actual := HashReceivedItems(params.Consideration); actual != expected {
			return fmt.Errorf("%w: consideration hash %s, authorization pinned %s",
				ErrInvalidConsideration, actual.Hex(), expected.Hex())
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown context substandard %d", ErrInvalidExtraData, context[0])
	}
}

// EncodeExtraData assembles the extraData blob for a signed authorization.
func EncodeExtraData(fulfiller common.Address, expiration uint64, signature []byte, context []byte) []byte {
	out := make([]byte, contextOffset, contextOffset+len(context))
	out[0] = sipVersionTag
	copy(out[fulfillerOffset:expirationOffset], fulfiller.Bytes())
	binary.BigEndian.PutUint64(out[expirationOffset:signatureOffset], expiration)
	copy(out[signatureOffset:contextOffset], signature)
	return append(out, context...)
}

// ConsiderationContext builds a context blob pinning the consideration set.
func ConsiderationContext(items []model.ReceivedItem) []byte {
	out := make([]byte, 33)
	out[0] = substandardConsideration
	copy(out[1:33], HashReceivedItems(items).Bytes())
	return out
}

// HashReceivedItems hashes a resolved consideration set as five words per
// item: type, token, identifier, amount, recipient.
func HashReceivedItems(items []model.ReceivedItem) common.Hash {
	enc := make([]byte, 32*5*len(items))
	for i, item := range items {
		base := 32 * 5 * i
		enc[base+31] = byte(item.ItemType)
		copy(enc[base+32+12:base+64], item.Token.Bytes())
		if item.Identifier != nil {
			item.Identifier.FillBytes(enc[base+64 : base+96])
		}
		if item.Amount != nil {
			item.Amount.FillBytes(enc[base+96 : base+128])
		}
		copy(enc[base+128+12:base+160], item.Recipient.Bytes())
	}
	return crypto.Keccak256Hash(enc)
}
