package criteria

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/immutable/seaport/internal/model"
)

var (
	ErrOrderIndexOutOfRange            = errors.New("criteria resolver order index out of range")
	ErrItemIndexOutOfRange             = errors.New("criteria resolver item index out of range")
	ErrCriteriaNotEnabledForItem       = errors.New("criteria not enabled for item")
	ErrInvalidProof                    = errors.New("invalid criteria proof")
	ErrUnresolvedOfferCriteria         = errors.New("unresolved offer criteria")
	ErrUnresolvedConsiderationCriteria = errors.New("unresolved consideration criteria")
)

// ApplyResolvers rewrites every criteria-gated item in the batch to its
// proven concrete identifier, mutating the orders in place. Orders marked
// unavailable (numerator zero) are ignored, both for the resolvers that
// reference them and for the completeness check at the end. Any criteria item
// on an available order left without a matching resolver is a hard failure.
func ApplyResolvers(orders []*model.AdvancedOrder, resolvers []model.CriteriaResolver) error {
	for _, resolver := range resolvers {
		if resolver.OrderIndex < 0 || resolver.OrderIndex >= len(orders) {
			return fmt.Errorf("%w: order %d of %d", ErrOrderIndexOutOfRange, resolver.OrderIndex, len(orders))
		}
		order := orders[resolver.OrderIndex]
		if order.Numerator == 0 {
			continue
		}

		if resolver.Side == model.SideOffer {
			if resolver.Index < 0 || resolver.Index >= len(order.Parameters.Offer) {
				return fmt.Errorf("%w: order %d offer item %d", ErrItemIndexOutOfRange, resolver.OrderIndex, resolver.Index)
			}
			item := &order.Parameters.Offer[resolver.Index]
			if err := resolveItem(&item.ItemType, &item.IdentifierOrCriteria, resolver); err != nil {
				return err
			}
			continue
		}

		if resolver.Index < 0 || resolver.Index >= len(order.Parameters.Consideration) {
			return fmt.Errorf("%w: order %d consideration item %d", ErrItemIndexOutOfRange, resolver.OrderIndex, resolver.Index)
		}
		item := &order.Parameters.Consideration[resolver.Index]
		if err := resolveItem(&item.ItemType, &item.IdentifierOrCriteria, resolver); err != nil {
			return err
		}
	}

	// Resolution must be complete before aggregation runs.
	for oi, order := range orders {
		if order.Numerator == 0 {
			continue
		}
		for ii, item := range order.Parameters.Offer {
			if item.ItemType.HasCriteria() {
				return fmt.Errorf("%w: order %d item %d", ErrUnresolvedOfferCriteria, oi, ii)
			}
		}
		for ii, item := range order.Parameters.Consideration {
			if item.ItemType.HasCriteria() {
				return fmt.Errorf("%w: order %d item %d", ErrUnresolvedConsiderationCriteria, oi, ii)
			}
		}
	}
	return nil
}

func resolveItem(itemType *model.ItemType, identifierOrCriteria **big.Int, resolver model.CriteriaResolver) error {
	if !itemType.HasCriteria() {
		return fmt.Errorf("%w: order %d %s item %d", ErrCriteriaNotEnabledForItem,
			resolver.OrderIndex, resolver.Side, resolver.Index)
	}
	root := common.BigToHash(*identifierOrCriteria)
	if !VerifyProof(root, resolver.Identifier, resolver.CriteriaProof) {
		return fmt.Errorf("%w: order %d %s item %d", ErrInvalidProof,
			resolver.OrderIndex, resolver.Side, resolver.Index)
	}
	*itemType = itemType.Resolved()
	*identifierOrCriteria = new(big.Int).Set(resolver.Identifier)
	return nil
}
