package model

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ItemType identifies the asset standard of an offer or consideration item.
// The WithCriteria variants carry a Merkle root instead of a concrete
// identifier and must be resolved before settlement.
type ItemType uint8

const (
	ItemTypeNative ItemType = iota
	ItemTypeERC20
	ItemTypeERC721
	ItemTypeERC1155
	ItemTypeERC721WithCriteria
	ItemTypeERC1155WithCriteria
)

func (t ItemType) String() string {
	switch t {
	case ItemTypeNative:
		return "NATIVE"
	case ItemTypeERC20:
		return "ERC20"
	case ItemTypeERC721:
		return "ERC721"
	case ItemTypeERC1155:
		return "ERC1155"
	case ItemTypeERC721WithCriteria:
		return "ERC721_WITH_CRITERIA"
	case ItemTypeERC1155WithCriteria:
		return "ERC1155_WITH_CRITERIA"
	default:
		return fmt.Sprintf("ITEM_TYPE_%d", uint8(t))
	}
}

// HasCriteria reports whether the item's identifier is a Merkle root that a
// criteria resolver must replace with a concrete token identifier.
func (t ItemType) HasCriteria() bool {
	return t == ItemTypeERC721WithCriteria || t == ItemTypeERC1155WithCriteria
}

// Resolved returns the concrete item type produced by criteria resolution.
func (t ItemType) Resolved() ItemType {
	switch t {
	case ItemTypeERC721WithCriteria:
		return ItemTypeERC721
	case ItemTypeERC1155WithCriteria:
		return ItemTypeERC1155
	default:
		return t
	}
}

// Side distinguishes the offer and consideration halves of an order.
type Side uint8

const (
	SideOffer Side = iota
	SideConsideration
)

func (s Side) String() string {
	if s == SideOffer {
		return "OFFER"
	}
	return "CONSIDERATION"
}

// OfferItem is an asset the offerer is willing to give up. StartAmount and
// EndAmount may differ, in which case the spendable amount interpolates
// linearly over the order's validity window.
type OfferItem struct {
	ItemType             ItemType
	Token                common.Address
	IdentifierOrCriteria *big.Int
	StartAmount          *big.Int
	EndAmount            *big.Int
}

// ConsiderationItem is an asset the offerer demands in return, paid to a
// fixed recipient.
type ConsiderationItem struct {
	ItemType             ItemType
	Token                common.Address
	IdentifierOrCriteria *big.Int
	StartAmount          *big.Int
	EndAmount            *big.Int
	Recipient            common.Address
}

// SpentItem is a fully resolved offer item: criteria replaced by a concrete
// identifier and the amount fixed for the current fill.
type SpentItem struct {
	ItemType   ItemType
	Token      common.Address
	Identifier *big.Int
	Amount     *big.Int
}

// ReceivedItem is a fully resolved consideration item including its
// destination.
type ReceivedItem struct {
	ItemType   ItemType
	Token      common.Address
	Identifier *big.Int
	Amount     *big.Int
	Recipient  common.Address
}

func (i OfferItem) Spent(identifier, amount *big.Int) SpentItem {
	return SpentItem{
		ItemType:   i.ItemType.Resolved(),
		Token:      i.Token,
		Identifier: identifier,
		Amount:     amount,
	}
}

func (i ConsiderationItem) Received(identifier, amount *big.Int) ReceivedItem {
	return ReceivedItem{
		ItemType:   i.ItemType.Resolved(),
		Token:      i.Token,
		Identifier: identifier,
		Amount:     amount,
		Recipient:  i.Recipient,
	}
}

// validateItem enforces the structural invariants shared by both item kinds.
func validateItem(itemType ItemType, token common.Address, identifier, startAmount, endAmount *big.Int) error {
	if itemType > ItemTypeERC1155WithCriteria {
		return ErrInvalidItemType
	}
	if startAmount == nil || endAmount == nil || identifier == nil {
		return ErrMissingItemAmount
	}
	if startAmount.Sign() == 0 && endAmount.Sign() == 0 {
		return ErrMissingItemAmount
	}
	if startAmount.Sign() < 0 || endAmount.Sign() < 0 || identifier.Sign() < 0 {
		return ErrNegativeItemValue
	}
	if itemType == ItemTypeNative {
		// Native currency has no contract address or identifier.
		if token != (common.Address{}) || identifier.Sign() != 0 {
			return ErrUnusedItemParameters
		}
	}
	if itemType == ItemTypeERC20 && identifier.Sign() != 0 {
		return ErrUnusedItemParameters
	}
	if itemType != ItemTypeNative && token == (common.Address{}) {
		return ErrMissingItemToken
	}
	// Non-fungible transfers move exactly one token per fill.
	if itemType == ItemTypeERC721 && (startAmount.Cmp(bigOne) != 0 || endAmount.Cmp(bigOne) != 0) {
		return ErrInvalidERC721Amount
	}
	return nil
}

// Validate checks the offer item's structural invariants.
func (i OfferItem) Validate() error {
	return validateItem(i.ItemType, i.Token, i.IdentifierOrCriteria, i.StartAmount, i.EndAmount)
}

// Validate checks the consideration item's structural invariants, including
// the non-null recipient requirement.
func (i ConsiderationItem) Validate() error {
	if err := validateItem(i.ItemType, i.Token, i.IdentifierOrCriteria, i.StartAmount, i.EndAmount); err != nil {
		return err
	}
	if i.Recipient == (common.Address{}) {
		return ErrMissingRecipient
	}
	return nil
}

var bigOne = big.NewInt(1)
