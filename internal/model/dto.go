package model

// Wire DTOs for the settlement API. Addresses, hashes, and byte blobs travel
// as 0x-prefixed hex strings; uint256 amounts travel as decimal strings so
// nothing is capped at float or int64 precision. Enum fields use the numeric
// values of the corresponding Go constants.

type OfferItemDTO struct {
	ItemType             uint8  `json:"item_type"`
	Token                string `json:"token,omitempty"`
	IdentifierOrCriteria string `json:"identifier_or_criteria,omitempty"`
	StartAmount          string `json:"start_amount" binding:"required"`
	EndAmount            string `json:"end_amount" binding:"required"`
}

type ConsiderationItemDTO struct {
	ItemType             uint8  `json:"item_type"`
	Token                string `json:"token,omitempty"`
	IdentifierOrCriteria string `json:"identifier_or_criteria,omitempty"`
	StartAmount          string `json:"start_amount" binding:"required"`
	EndAmount            string `json:"end_amount" binding:"required"`
	Recipient            string `json:"recipient" binding:"required"`
}

type OrderParametersDTO struct {
	Offerer       string                 `json:"offerer" binding:"required"`
	Zone          string                 `json:"zone,omitempty"`
	Offer         []OfferItemDTO         `json:"offer"`
	Consideration []ConsiderationItemDTO `json:"consideration"`
	OrderType     uint8                  `json:"order_type"`
	StartTime     uint64                 `json:"start_time"`
	EndTime       uint64                 `json:"end_time"`
	ZoneHash      string                 `json:"zone_hash,omitempty"`
	Salt          string                 `json:"salt" binding:"required"`
	ConduitKey    string                 `json:"conduit_key,omitempty"`
}

type OrderDTO struct {
	Parameters OrderParametersDTO `json:"parameters" binding:"required"`
	Signature  string             `json:"signature,omitempty"`
}

type AdvancedOrderDTO struct {
	Parameters  OrderParametersDTO `json:"parameters" binding:"required"`
	Numerator   uint64             `json:"numerator"`
	Denominator uint64             `json:"denominator"`
	Signature   string             `json:"signature,omitempty"`
	ExtraData   string             `json:"extra_data,omitempty"`
}

type OrderComponentsDTO struct {
	Parameters OrderParametersDTO `json:"parameters" binding:"required"`
	Counter    uint64             `json:"counter"`
}

type CriteriaResolverDTO struct {
	OrderIndex    int      `json:"order_index"`
	Side          uint8    `json:"side"`
	Index         int      `json:"index"`
	Identifier    string   `json:"identifier" binding:"required"`
	CriteriaProof []string `json:"criteria_proof,omitempty"`
}

type FulfillmentComponentDTO struct {
	OrderIndex int `json:"order_index"`
	ItemIndex  int `json:"item_index"`
}

type FulfillmentDTO struct {
	OfferComponents         []FulfillmentComponentDTO `json:"offer_components" binding:"required"`
	ConsiderationComponents []FulfillmentComponentDTO `json:"consideration_components" binding:"required"`
}

// --- Requests ---

type FulfillOrderRequest struct {
	Order      OrderDTO `json:"order" binding:"required"`
	Fulfiller  string   `json:"fulfiller" binding:"required"`
	ConduitKey string   `json:"conduit_key,omitempty"`
}

type FulfillAdvancedOrderRequest struct {
	Order             AdvancedOrderDTO      `json:"order" binding:"required"`
	CriteriaResolvers []CriteriaResolverDTO `json:"criteria_resolvers,omitempty"`
	Fulfiller         string                `json:"fulfiller" binding:"required"`
	ConduitKey        string                `json:"conduit_key,omitempty"`
	Recipient         string                `json:"recipient,omitempty"`
}

type FulfillAvailableOrdersRequest struct {
	Orders                  []OrderDTO                  `json:"orders" binding:"required"`
	OfferComponents         [][]FulfillmentComponentDTO `json:"offer_components" binding:"required"`
	ConsiderationComponents [][]FulfillmentComponentDTO `json:"consideration_components" binding:"required"`
	Fulfiller               string                      `json:"fulfiller" binding:"required"`
	ConduitKey              string                      `json:"conduit_key,omitempty"`
	Recipient               string                      `json:"recipient,omitempty"`
	MaximumFulfilled        int                         `json:"maximum_fulfilled,omitempty"`
}

type FulfillAvailableAdvancedOrdersRequest struct {
	Orders                  []AdvancedOrderDTO          `json:"orders" binding:"required"`
	CriteriaResolvers       []CriteriaResolverDTO       `json:"criteria_resolvers,omitempty"`
	OfferComponents         [][]FulfillmentComponentDTO `json:"offer_components" binding:"required"`
	ConsiderationComponents [][]FulfillmentComponentDTO `json:"consideration_components" binding:"required"`
	Fulfiller               string                      `json:"fulfiller" binding:"required"`
	ConduitKey              string                      `json:"conduit_key,omitempty"`
	Recipient               string                      `json:"recipient,omitempty"`
	MaximumFulfilled        int                         `json:"maximum_fulfilled,omitempty"`
}

type MatchOrdersRequest struct {
	Orders       []OrderDTO       `json:"orders" binding:"required"`
	Fulfillments []FulfillmentDTO `json:"fulfillments" binding:"required"`
	Caller       string           `json:"caller" binding:"required"`
}

type MatchAdvancedOrdersRequest struct {
	Orders            []AdvancedOrderDTO    `json:"orders" binding:"required"`
	CriteriaResolvers []CriteriaResolverDTO `json:"criteria_resolvers,omitempty"`
	Fulfillments      []FulfillmentDTO      `json:"fulfillments" binding:"required"`
	Caller            string                `json:"caller" binding:"required"`
	Recipient         string                `json:"recipient,omitempty"`
}

type CancelOrdersRequest struct {
	Orders []OrderComponentsDTO `json:"orders" binding:"required"`
	Caller string               `json:"caller" binding:"required"`
}

type ValidateOrdersRequest struct {
	Orders []OrderDTO `json:"orders" binding:"required"`
}

// HashOrderRequest derives an order hash. With Counter unset the offerer's
// live counter is used.
type HashOrderRequest struct {
	Parameters OrderParametersDTO `json:"parameters" binding:"required"`
	Counter    *uint64            `json:"counter,omitempty"`
}

type MintRequest struct {
	ItemType   uint8  `json:"item_type"`
	Token      string `json:"token,omitempty"`
	Identifier string `json:"identifier,omitempty"`
	Account    string `json:"account" binding:"required"`
	Amount     string `json:"amount,omitempty"`
}

// --- Responses ---

type ExecutionDTO struct {
	ItemType   uint8  `json:"item_type"`
	Token      string `json:"token,omitempty"`
	Identifier string `json:"identifier"`
	Amount     string `json:"amount"`
	From       string `json:"from"`
	To         string `json:"to"`
	ConduitKey string `json:"conduit_key,omitempty"`
}

type FillResultResponse struct {
	OrderHashes []string       `json:"order_hashes"`
	Executions  []ExecutionDTO `json:"executions"`
	Available   []bool         `json:"available,omitempty"`
}

type OrderStatusResponse struct {
	OrderHash   string `json:"order_hash"`
	IsValidated bool   `json:"is_validated"`
	IsCancelled bool   `json:"is_cancelled"`
	TotalFilled string `json:"total_filled"`
	TotalSize   string `json:"total_size"`
	FullyFilled bool   `json:"fully_filled"`
}

type CounterResponse struct {
	Offerer string `json:"offerer"`
	Counter uint64 `json:"counter"`
}

type HashOrderResponse struct {
	OrderHash string `json:"order_hash"`
	Counter   uint64 `json:"counter"`
}

type ValidateOrdersResponse struct {
	OrderHashes []string `json:"order_hashes"`
}

type CancelOrdersResponse struct {
	Cancelled int `json:"cancelled"`
}

type BalanceResponse struct {
	Account string `json:"account"`
	Native  string `json:"native"`
	Token   string `json:"token,omitempty"`
	Balance string `json:"balance,omitempty"`
	Owner   string `json:"owner,omitempty"`
}
