package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// OrderType controls whether an order may be partially filled and whether a
// zone must approve each fill.
type OrderType uint8

const (
	OrderTypeFullOpen OrderType = iota
	OrderTypePartialOpen
	OrderTypeFullRestricted
	OrderTypePartialRestricted
)

func (t OrderType) String() string {
	switch t {
	case OrderTypeFullOpen:
		return "FULL_OPEN"
	case OrderTypePartialOpen:
		return "PARTIAL_OPEN"
	case OrderTypeFullRestricted:
		return "FULL_RESTRICTED"
	case OrderTypePartialRestricted:
		return "PARTIAL_RESTRICTED"
	default:
		return "UNKNOWN"
	}
}

// AllowsPartialFill reports whether fills smaller than the whole order are
// permitted.
func (t OrderType) AllowsPartialFill() bool {
	return t == OrderTypePartialOpen || t == OrderTypePartialRestricted
}

// IsRestricted reports whether a zone must approve fills of this order.
func (t OrderType) IsRestricted() bool {
	return t == OrderTypeFullRestricted || t == OrderTypePartialRestricted
}

// OrderParameters are the immutable signed terms of an order. The offerer's
// counter is not part of the parameters; it is mixed in at hashing time so a
// counter bump invalidates every outstanding signature at once.
type OrderParameters struct {
	Offerer       common.Address
	Zone          common.Address
	Offer         []OfferItem
	Consideration []ConsiderationItem
	OrderType     OrderType
	StartTime     uint64
	EndTime       uint64
	ZoneHash      common.Hash
	Salt          *big.Int
	ConduitKey    common.Hash
}

// OrderComponents are the order parameters plus the counter they were signed
// under; this is the struct that gets hashed and signed.
type OrderComponents struct {
	OrderParameters
	Counter uint64
}

// Components pairs the parameters with a counter for hashing.
func (p OrderParameters) Components(counter uint64) OrderComponents {
	return OrderComponents{OrderParameters: p, Counter: counter}
}

// Validate enforces the structural invariants of the signed terms. It does
// not consult time, status, or signatures.
func (p OrderParameters) Validate() error {
	if p.Offerer == (common.Address{}) {
		return ErrMissingOfferer
	}
	if len(p.Offer) == 0 && len(p.Consideration) == 0 {
		return ErrEmptyOrder
	}
	if p.OrderType > OrderTypePartialRestricted {
		return ErrInvalidOrderType
	}
	if p.OrderType.IsRestricted() && p.Zone == (common.Address{}) {
		return ErrMissingZone
	}
	if p.Salt == nil {
		return ErrMissingSalt
	}
	for i, item := range p.Offer {
		if err := item.Validate(); err != nil {
			return &ItemError{Side: SideOffer, Index: i, Err: err}
		}
	}
	for i, item := range p.Consideration {
		if err := item.Validate(); err != nil {
			return &ItemError{Side: SideConsideration, Index: i, Err: err}
		}
	}
	return nil
}

// Order is a set of signed parameters ready for fulfillment.
type Order struct {
	Parameters OrderParameters
	Signature  []byte
}

// Advanced wraps the order as a full-fill advanced order.
func (o Order) Advanced() *AdvancedOrder {
	return &AdvancedOrder{
		Parameters:  o.Parameters,
		Numerator:   1,
		Denominator: 1,
		Signature:   o.Signature,
	}
}

// AdvancedOrder extends an order with the fraction of it to fill and opaque
// extra data handed to the zone on restricted orders.
type AdvancedOrder struct {
	Parameters  OrderParameters
	Numerator   uint64
	Denominator uint64
	Signature   []byte
	ExtraData   []byte
}

// ValidateFraction enforces the fraction invariants: a nonzero denominator,
// numerator <= denominator, and full fills only for FULL order types.
func (o *AdvancedOrder) ValidateFraction() error {
	if o.Numerator == 0 || o.Denominator == 0 {
		return ErrBadFraction
	}
	if o.Numerator > o.Denominator {
		return ErrBadFraction
	}
	if o.Numerator != o.Denominator && !o.Parameters.OrderType.AllowsPartialFill() {
		return ErrPartialFillNotEnabled
	}
	return nil
}

// OrderStatus is the persistent fill state of an order, keyed by order hash.
// TotalFilled/TotalSize track the cumulative fill ratio in lowest terms; a
// cancelled order is permanently terminal.
type OrderStatus struct {
	IsValidated bool
	IsCancelled bool
	TotalFilled *big.Int
	TotalSize   *big.Int
}

// NewOrderStatus returns the zero status of an order that has never been
// seen: unvalidated, uncancelled, nothing filled.
func NewOrderStatus() OrderStatus {
	return OrderStatus{TotalFilled: new(big.Int), TotalSize: new(big.Int)}
}

// IsFullyFilled reports whether no fillable fraction remains.
func (s OrderStatus) IsFullyFilled() bool {
	return s.TotalSize != nil && s.TotalSize.Sign() != 0 &&
		s.TotalFilled != nil && s.TotalFilled.Cmp(s.TotalSize) >= 0
}

// Clone returns a deep copy; stores hand out copies so callers cannot mutate
// persisted state.
func (s OrderStatus) Clone() OrderStatus {
	out := OrderStatus{IsValidated: s.IsValidated, IsCancelled: s.IsCancelled}
	if s.TotalFilled != nil {
		out.TotalFilled = new(big.Int).Set(s.TotalFilled)
	} else {
		out.TotalFilled = new(big.Int)
	}
	if s.TotalSize != nil {
		out.TotalSize = new(big.Int).Set(s.TotalSize)
	} else {
		out.TotalSize = new(big.Int)
	}
	return out
}

// StatusUpdate pairs an order hash with the status to persist for it.
type StatusUpdate struct {
	OrderHash common.Hash
	Status    OrderStatus
}
