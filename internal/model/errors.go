package model

import (
	"errors"
	"fmt"
)

// Structural validation errors. These reject malformed input before any
// state is touched.
var (
	ErrInvalidItemType       = errors.New("invalid item type")
	ErrMissingItemAmount     = errors.New("item start and end amounts are both zero")
	ErrNegativeItemValue     = errors.New("item amounts and identifiers must be non-negative")
	ErrUnusedItemParameters  = errors.New("item carries parameters its type does not use")
	ErrMissingItemToken      = errors.New("token address required for non-native items")
	ErrInvalidERC721Amount   = errors.New("erc721 items must have amount 1")
	ErrMissingRecipient      = errors.New("consideration recipient must be non-null")
	ErrMissingOfferer        = errors.New("offerer must be non-null")
	ErrEmptyOrder            = errors.New("order has no offer or consideration items")
	ErrInvalidOrderType      = errors.New("unknown order type")
	ErrMissingZone           = errors.New("restricted orders require a zone")
	ErrMissingSalt           = errors.New("order salt is required")
	ErrBadFraction           = errors.New("bad fill fraction")
	ErrPartialFillNotEnabled = errors.New("partial fills not enabled for order type")
)

// ItemError wraps a structural item failure with its location so callers can
// report the exact offending item.
type ItemError struct {
	Side  Side
	Index int
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s item %d: %v", e.Side, e.Index, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }
