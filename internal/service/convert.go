package service

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/immutable/seaport/internal/model"
	"github.com/immutable/seaport/internal/pkg/apperrors"
)

// Wire-to-domain conversion. Every parse failure surfaces as an
// INVALID_REQUEST AppError naming the offending field, so clients can fix
// the payload without reading server logs.

func parseAddress(field, value string) (common.Address, error) {
	if value == "" {
		return common.Address{}, apperrors.NewInvalidRequest(fmt.Sprintf("%s is required", field))
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, apperrors.NewInvalidRequest(fmt.Sprintf("%s is not a valid address: %q", field, value))
	}
	return common.HexToAddress(value), nil
}

func parseOptionalAddress(field, value string) (common.Address, error) {
	if value == "" {
		return common.Address{}, nil
	}
	return parseAddress(field, value)
}

func parseHash(field, value string) (common.Hash, error) {
	if value == "" {
		return common.Hash{}, nil
	}
	raw, err := hexutil.Decode(value)
	if err != nil || len(raw) != common.HashLength {
		return common.Hash{}, apperrors.NewInvalidRequest(fmt.Sprintf("%s is not a valid 32-byte hex value: %q", field, value))
	}
	return common.BytesToHash(raw), nil
}

// parseBig accepts decimal or 0x-prefixed hex. Amounts and identifiers are
// uint256 on the wire, so negatives are rejected here once instead of in
// every caller.
func parseBig(field, value string) (*big.Int, error) {
	if value == "" {
		return nil, apperrors.NewInvalidRequest(fmt.Sprintf("%s is required", field))
	}
	base := 10
	digits := value
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		base = 16
		digits = value[2:]
	}
	n, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return nil, apperrors.NewInvalidRequest(fmt.Sprintf("%s is not a valid integer: %q", field, value))
	}
	if n.Sign() < 0 {
		return nil, apperrors.NewInvalidRequest(fmt.Sprintf("%s must be non-negative: %q", field, value))
	}
	return n, nil
}

func parseOptionalBig(field, value string) (*big.Int, error) {
	if value == "" {
		return new(big.Int), nil
	}
	return parseBig(field, value)
}

func parseBytes(field, value string) ([]byte, error) {
	if value == "" {
		return nil, nil
	}
	raw, err := hexutil.Decode(value)
	if err != nil {
		return nil, apperrors.NewInvalidRequest(fmt.Sprintf("%s is not valid hex: %q", field, value))
	}
	return raw, nil
}

func offerItemFromDTO(field string, dto model.OfferItemDTO) (model.OfferItem, error) {
	token, err := parseOptionalAddress(field+".token", dto.Token)
	if err != nil {
		return model.OfferItem{}, err
	}
	identifier, err := parseOptionalBig(field+".identifier_or_criteria", dto.IdentifierOrCriteria)
	if err != nil {
		return model.OfferItem{}, err
	}
	start, err := parseBig(field+".start_amount", dto.StartAmount)
	if err != nil {
		return model.OfferItem{}, err
	}
	end, err := parseBig(field+".end_amount", dto.EndAmount)
	if err != nil {
		return model.OfferItem{}, err
	}
	return model.OfferItem{
		ItemType:             model.ItemType(dto.ItemType),
		Token:                token,
		IdentifierOrCriteria: identifier,
		StartAmount:          start,
		EndAmount:            end,
	}, nil
}

func considerationItemFromDTO(field string, dto model.ConsiderationItemDTO) (model.ConsiderationItem, error) {
	token, err := parseOptionalAddress(field+".token", dto.Token)
	if err != nil {
		return model.ConsiderationItem{}, err
	}
	identifier, err := parseOptionalBig(field+".identifier_or_criteria", dto.IdentifierOrCriteria)
	if err != nil {
		return model.ConsiderationItem{}, err
	}
	start, err := parseBig(field+".start_amount", dto.StartAmount)
	if err != nil {
		return model.ConsiderationItem{}, err
	}
	end, err := parseBig(field+".end_amount", dto.EndAmount)
	if err != nil {
		return model.ConsiderationItem{}, err
	}
	recipient, err := parseAddress(field+".recipient", dto.Recipient)
	if err != nil {
		return model.ConsiderationItem{}, err
	}
	return model.ConsiderationItem{
		ItemType:             model.ItemType(dto.ItemType),
		Token:                token,
		IdentifierOrCriteria: identifier,
		StartAmount:          start,
		EndAmount:            end,
		Recipient:            recipient,
	}, nil
}

func parametersFromDTO(field string, dto model.OrderParametersDTO) (model.OrderParameters, error) {
	offerer, err := parseAddress(field+".offerer", dto.Offerer)
	if err != nil {
		return model.OrderParameters{}, err
	}
	zoneAddr, err := parseOptionalAddress(field+".zone", dto.Zone)
	if err != nil {
		return model.OrderParameters{}, err
	}
	zoneHash, err := parseHash(field+".zone_hash", dto.ZoneHash)
	if err != nil {
		return model.OrderParameters{}, err
	}
	salt, err := parseBig(field+".salt", dto.Salt)
	if err != nil {
		return model.OrderParameters{}, err
	}
	conduitKey, err := parseHash(field+".conduit_key", dto.ConduitKey)
	if err != nil {
		return model.OrderParameters{}, err
	}

	offer := make([]model.OfferItem, len(dto.Offer))
	for i, item := range dto.Offer {
		offer[i], err = offerItemFromDTO(fmt.Sprintf("%s.offer[%d]", field, i), item)
		if err != nil {
			return model.OrderParameters{}, err
		}
	}
	consideration := make([]model.ConsiderationItem, len(dto.Consideration))
	for i, item := range dto.Consideration {
		consideration[i], err = considerationItemFromDTO(fmt.Sprintf("%s.consideration[%d]", field, i), item)
		if err != nil {
			return model.OrderParameters{}, err
		}
	}

	return model.OrderParameters{
		Offerer:       offerer,
		Zone:          zoneAddr,
		Offer:         offer,
		Consideration: consideration,
		OrderType:     model.OrderType(dto.OrderType),
		StartTime:     dto.StartTime,
		EndTime:       dto.EndTime,
		ZoneHash:      zoneHash,
		Salt:          salt,
		ConduitKey:    conduitKey,
	}, nil
}

func orderFromDTO(field string, dto model.OrderDTO) (model.Order, error) {
	params, err := parametersFromDTO(field+".parameters", dto.Parameters)
	if err != nil {
		return model.Order{}, err
	}
	sig, err := parseBytes(field+".signature", dto.Signature)
	if err != nil {
		return model.Order{}, err
	}
	return model.Order{Parameters: params, Signature: sig}, nil
}

func ordersFromDTO(field string, dtos []model.OrderDTO) ([]model.Order, error) {
	orders := make([]model.Order, len(dtos))
	for i, dto := range dtos {
		order, err := orderFromDTO(fmt.Sprintf("%s[%d]", field, i), dto)
		if err != nil {
			return nil, err
		}
		orders[i] = order
	}
	return orders, nil
}

func advancedOrderFromDTO(field string, dto model.AdvancedOrderDTO) (*model.AdvancedOrder, error) {
	params, err := parametersFromDTO(field+".parameters", dto.Parameters)
	if err != nil {
		return nil, err
	}
	sig, err := parseBytes(field+".signature", dto.Signature)
	if err != nil {
		return nil, err
	}
	extra, err := parseBytes(field+".extra_data", dto.ExtraData)
	if err != nil {
		return nil, err
	}
	numerator, denominator := dto.Numerator, dto.Denominator
	if numerator == 0 && denominator == 0 {
		numerator, denominator = 1, 1
	}
	return &model.AdvancedOrder{
		Parameters:  params,
		Numerator:   numerator,
		Denominator: denominator,
		Signature:   sig,
		ExtraData:   extra,
	}, nil
}

func advancedOrdersFromDTO(field string, dtos []model.AdvancedOrderDTO) ([]*model.AdvancedOrder, error) {
	orders := make([]*model.AdvancedOrder, len(dtos))
	for i, dto := range dtos {
		order, err := advancedOrderFromDTO(fmt.Sprintf("%s[%d]", field, i), dto)
		if err != nil {
			return nil, err
		}
		orders[i] = order
	}
	return orders, nil
}

func orderComponentsFromDTO(field string, dto model.OrderComponentsDTO) (model.OrderComponents, error) {
	params, err := parametersFromDTO(field+".parameters", dto.Parameters)
	if err != nil {
		return model.OrderComponents{}, err
	}
	return params.Components(dto.Counter), nil
}

func resolversFromDTO(field string, dtos []model.CriteriaResolverDTO) ([]model.CriteriaResolver, error) {
	resolvers := make([]model.CriteriaResolver, len(dtos))
	for i, dto := range dtos {
		prefix := fmt.Sprintf("%s[%d]", field, i)
		if dto.Side > uint8(model.SideConsideration) {
			return nil, apperrors.NewInvalidRequest(fmt.Sprintf("%s.side must be 0 (offer) or 1 (consideration)", prefix))
		}
		identifier, err := parseBig(prefix+".identifier", dto.Identifier)
		if err != nil {
			return nil, err
		}
		proof := make([]common.Hash, len(dto.CriteriaProof))
		for j, node := range dto.CriteriaProof {
			proof[j], err = parseHash(fmt.Sprintf("%s.criteria_proof[%d]", prefix, j), node)
			if err != nil {
				return nil, err
			}
		}
		resolvers[i] = model.CriteriaResolver{
			OrderIndex:    dto.OrderIndex,
			Side:          model.Side(dto.Side),
			Index:         dto.Index,
			Identifier:    identifier,
			CriteriaProof: proof,
		}
	}
	return resolvers, nil
}

func componentsFromDTO(dtos []model.FulfillmentComponentDTO) []model.FulfillmentComponent {
	components := make([]model.FulfillmentComponent, len(dtos))
	for i, c := range dtos {
		components[i] = model.FulfillmentComponent{OrderIndex: c.OrderIndex, ItemIndex: c.ItemIndex}
	}
	return components
}

func componentGroupsFromDTO(dtos [][]model.FulfillmentComponentDTO) [][]model.FulfillmentComponent {
	groups := make([][]model.FulfillmentComponent, len(dtos))
	for i, group := range dtos {
		groups[i] = componentsFromDTO(group)
	}
	return groups
}

func fulfillmentsFromDTO(dtos []model.FulfillmentDTO) []model.Fulfillment {
	fulfillments := make([]model.Fulfillment, len(dtos))
	for i, dto := range dtos {
		fulfillments[i] = model.Fulfillment{
			OfferComponents:         componentsFromDTO(dto.OfferComponents),
			ConsiderationComponents: componentsFromDTO(dto.ConsiderationComponents),
		}
	}
	return fulfillments
}

// --- Domain-to-wire ---

func executionToDTO(e model.Execution) model.ExecutionDTO {
	dto := model.ExecutionDTO{
		ItemType:   uint8(e.Item.ItemType),
		Identifier: e.Item.Identifier.String(),
		Amount:     e.Item.Amount.String(),
		From:       e.Offerer.Hex(),
		To:         e.Item.Recipient.Hex(),
	}
	if e.Item.Token != (common.Address{}) {
		dto.Token = e.Item.Token.Hex()
	}
	if e.ConduitKey != (common.Hash{}) {
		dto.ConduitKey = e.ConduitKey.Hex()
	}
	return dto
}

func fillResultToResponse(result *model.FillResult) *model.FillResultResponse {
	resp := &model.FillResultResponse{
		OrderHashes: make([]string, len(result.OrderHashes)),
		Executions:  make([]model.ExecutionDTO, len(result.Executions)),
		Available:   result.Available,
	}
	for i, h := range result.OrderHashes {
		resp.OrderHashes[i] = h.Hex()
	}
	for i, e := range result.Executions {
		resp.Executions[i] = executionToDTO(e)
	}
	return resp
}

func statusToResponse(hash common.Hash, status model.OrderStatus) *model.OrderStatusResponse {
	return &model.OrderStatusResponse{
		OrderHash:   hash.Hex(),
		IsValidated: status.IsValidated,
		IsCancelled: status.IsCancelled,
		TotalFilled: status.TotalFilled.String(),
		TotalSize:   status.TotalSize.String(),
		FullyFilled: status.IsFullyFilled(),
	}
}
