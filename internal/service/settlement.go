package service

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"

	"github.com/immutable/seaport/internal/conduit"
	"github.com/immutable/seaport/internal/criteria"
	"github.com/immutable/seaport/internal/engine"
	"github.com/immutable/seaport/internal/ledger"
	"github.com/immutable/seaport/internal/model"
	"github.com/immutable/seaport/internal/pkg/apperrors"
	"github.com/immutable/seaport/internal/pkg/logger"
	"github.com/immutable/seaport/internal/pkg/metrics"
	"github.com/immutable/seaport/internal/signer"
)

// SettlementService sits between the HTTP handlers and the engine. It owns
// wire conversion, engine error translation, metrics, and the halt switch;
// the engine itself stays transport-agnostic.
type SettlementService struct {
	engine *engine.Engine
	ledger *ledger.Ledger
	halted atomic.Bool
}

func NewSettlementService(eng *engine.Engine, led *ledger.Ledger) *SettlementService {
	return &SettlementService{engine: eng, ledger: led}
}

// Halt stops all state-changing settlement calls until Resume. Reads keep
// working so operators can inspect statuses while halted.
func (s *SettlementService) Halt()        { s.halted.Store(true) }
func (s *SettlementService) Resume()      { s.halted.Store(false) }
func (s *SettlementService) Halted() bool { return s.halted.Load() }

func (s *SettlementService) gate() error {
	if s.halted.Load() {
		return apperrors.New(apperrors.ErrHalted, "settlement is halted by an operator", nil)
	}
	return nil
}

func (s *SettlementService) FulfillOrder(ctx context.Context, req *model.FulfillOrderRequest) (*model.FillResultResponse, error) {
	if err := s.gate(); err != nil {
		return nil, err
	}
	order, err := orderFromDTO("order", req.Order)
	if err != nil {
		return nil, err
	}
	fulfiller, err := parseAddress("fulfiller", req.Fulfiller)
	if err != nil {
		return nil, err
	}
	conduitKey, err := parseHash("conduit_key", req.ConduitKey)
	if err != nil {
		return nil, err
	}

	result, err := s.engine.FulfillOrder(ctx, order, fulfiller, conduitKey)
	if err != nil {
		return nil, s.settlementError("fulfill", err)
	}
	s.observe("fulfill", result)
	return fillResultToResponse(result), nil
}

func (s *SettlementService) FulfillAdvancedOrder(ctx context.Context, req *model.FulfillAdvancedOrderRequest) (*model.FillResultResponse, error) {
	if err := s.gate(); err != nil {
		return nil, err
	}
	order, err := advancedOrderFromDTO("order", req.Order)
	if err != nil {
		return nil, err
	}
	resolvers, err := resolversFromDTO("criteria_resolvers", req.CriteriaResolvers)
	if err != nil {
		return nil, err
	}
	fulfiller, err := parseAddress("fulfiller", req.Fulfiller)
	if err != nil {
		return nil, err
	}
	conduitKey, err := parseHash("conduit_key", req.ConduitKey)
	if err != nil {
		return nil, err
	}
	recipient, err := parseOptionalAddress("recipient", req.Recipient)
	if err != nil {
		return nil, err
	}

	result, err := s.engine.FulfillAdvancedOrder(ctx, order, resolvers, fulfiller, conduitKey, recipient)
	if err != nil {
		return nil, s.settlementError("fulfill_advanced", err)
	}
	s.observe("fulfill_advanced", result)
	return fillResultToResponse(result), nil
}

func (s *SettlementService) FulfillAvailableOrders(ctx context.Context, req *model.FulfillAvailableOrdersRequest) (*model.FillResultResponse, error) {
	if err := s.gate(); err != nil {
		return nil, err
	}
	orders, err := ordersFromDTO("orders", req.Orders)
	if err != nil {
		return nil, err
	}
	fulfiller, err := parseAddress("fulfiller", req.Fulfiller)
	if err != nil {
		return nil, err
	}
	conduitKey, err := parseHash("conduit_key", req.ConduitKey)
	if err != nil {
		return nil, err
	}
	recipient, err := parseOptionalAddress("recipient", req.Recipient)
	if err != nil {
		return nil, err
	}
	components := model.FulfillAvailableComponents{
		Offer:         componentGroupsFromDTO(req.OfferComponents),
		Consideration: componentGroupsFromDTO(req.ConsiderationComponents),
	}

	result, err := s.engine.FulfillAvailableOrders(ctx, orders, components, fulfiller, conduitKey, recipient, req.MaximumFulfilled)
	if err != nil {
		return nil, s.settlementError("fulfill_available", err)
	}
	s.observe("fulfill_available", result)
	return fillResultToResponse(result), nil
}

func (s *SettlementService) FulfillAvailableAdvancedOrders(ctx context.Context, req *model.FulfillAvailableAdvancedOrdersRequest) (*model.FillResultResponse, error) {
	if err := s.gate(); err != nil {
		return nil, err
	}
	orders, err := advancedOrdersFromDTO("orders", req.Orders)
	if err != nil {
		return nil, err
	}
	resolvers, err := resolversFromDTO("criteria_resolvers", req.CriteriaResolvers)
	if err != nil {
		return nil, err
	}
	fulfiller, err := parseAddress("fulfiller", req.Fulfiller)
	if err != nil {
		return nil, err
	}
	conduitKey, err := parseHash("conduit_key", req.ConduitKey)
	if err != nil {
		return nil, err
	}
	recipient, err := parseOptionalAddress("recipient", req.Recipient)
	if err != nil {
		return nil, err
	}
	components := model.FulfillAvailableComponents{
		Offer:         componentGroupsFromDTO(req.OfferComponents),
		Consideration: componentGroupsFromDTO(req.ConsiderationComponents),
	}

	result, err := s.engine.FulfillAvailableAdvancedOrders(ctx, orders, resolvers, components, fulfiller, conduitKey, recipient, req.MaximumFulfilled)
	if err != nil {
		return nil, s.settlementError("fulfill_available_advanced", err)
	}
	s.observe("fulfill_available_advanced", result)
	return fillResultToResponse(result), nil
}

func (s *SettlementService) MatchOrders(ctx context.Context, req *model.MatchOrdersRequest) (*model.FillResultResponse, error) {
	if err := s.gate(); err != nil {
		return nil, err
	}
	orders, err := ordersFromDTO("orders", req.Orders)
	if err != nil {
		return nil, err
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		return nil, err
	}

	result, err := s.engine.MatchOrders(ctx, orders, fulfillmentsFromDTO(req.Fulfillments), caller)
	if err != nil {
		return nil, s.settlementError("match", err)
	}
	s.observe("match", result)
	return fillResultToResponse(result), nil
}

func (s *SettlementService) MatchAdvancedOrders(ctx context.Context, req *model.MatchAdvancedOrdersRequest) (*model.FillResultResponse, error) {
	if err := s.gate(); err != nil {
		return nil, err
	}
	orders, err := advancedOrdersFromDTO("orders", req.Orders)
	if err != nil {
		return nil, err
	}
	resolvers, err := resolversFromDTO("criteria_resolvers", req.CriteriaResolvers)
	if err != nil {
		return nil, err
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		return nil, err
	}
	recipient, err := parseOptionalAddress("recipient", req.Recipient)
	if err != nil {
		return nil, err
	}

	result, err := s.engine.MatchAdvancedOrders(ctx, orders, resolvers, fulfillmentsFromDTO(req.Fulfillments), caller, recipient)
	if err != nil {
		return nil, s.settlementError("match_advanced", err)
	}
	s.observe("match_advanced", result)
	return fillResultToResponse(result), nil
}

func (s *SettlementService) CancelOrders(ctx context.Context, req *model.CancelOrdersRequest) (*model.CancelOrdersResponse, error) {
	if err := s.gate(); err != nil {
		return nil, err
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		return nil, err
	}
	components := make([]model.OrderComponents, len(req.Orders))
	for i, dto := range req.Orders {
		components[i], err = orderComponentsFromDTO("orders", dto)
		if err != nil {
			return nil, err
		}
	}

	if err := s.engine.Cancel(ctx, components, caller); err != nil {
		return nil, mapEngineError(err)
	}
	logger.Info("orders cancelled", "caller", caller.Hex(), "count", len(components))
	return &model.CancelOrdersResponse{Cancelled: len(components)}, nil
}

func (s *SettlementService) ValidateOrders(ctx context.Context, req *model.ValidateOrdersRequest) (*model.ValidateOrdersResponse, error) {
	if err := s.gate(); err != nil {
		return nil, err
	}
	orders, err := ordersFromDTO("orders", req.Orders)
	if err != nil {
		return nil, err
	}

	hashes, err := s.engine.Validate(ctx, orders)
	if err != nil {
		return nil, mapEngineError(err)
	}
	resp := &model.ValidateOrdersResponse{OrderHashes: make([]string, len(hashes))}
	for i, h := range hashes {
		resp.OrderHashes[i] = h.Hex()
	}
	return resp, nil
}

func (s *SettlementService) IncrementCounter(ctx context.Context, offererHex string) (*model.CounterResponse, error) {
	if err := s.gate(); err != nil {
		return nil, err
	}
	offerer, err := parseAddress("offerer", offererHex)
	if err != nil {
		return nil, err
	}
	counter, err := s.engine.IncrementCounter(ctx, offerer)
	if err != nil {
		return nil, mapEngineError(err)
	}
	logger.Info("counter incremented", "offerer", offerer.Hex(), "counter", counter)
	return &model.CounterResponse{Offerer: offerer.Hex(), Counter: counter}, nil
}

func (s *SettlementService) GetCounter(ctx context.Context, offererHex string) (*model.CounterResponse, error) {
	offerer, err := parseAddress("offerer", offererHex)
	if err != nil {
		return nil, err
	}
	counter, err := s.engine.GetCounter(ctx, offerer)
	if err != nil {
		return nil, mapEngineError(err)
	}
	return &model.CounterResponse{Offerer: offerer.Hex(), Counter: counter}, nil
}

func (s *SettlementService) GetOrderStatus(ctx context.Context, hashHex string) (*model.OrderStatusResponse, error) {
	hash, err := parseHash("order_hash", hashHex)
	if err != nil {
		return nil, err
	}
	if hash == (common.Hash{}) {
		return nil, apperrors.NewInvalidRequest("order_hash is required")
	}
	status, err := s.engine.GetOrderStatus(ctx, hash)
	if err != nil {
		return nil, mapEngineError(err)
	}
	return statusToResponse(hash, status), nil
}

// HashOrder derives an order hash without touching state. With no counter in
// the request the offerer's live counter is mixed in.
func (s *SettlementService) HashOrder(ctx context.Context, req *model.HashOrderRequest) (*model.HashOrderResponse, error) {
	params, err := parametersFromDTO("parameters", req.Parameters)
	if err != nil {
		return nil, err
	}
	if req.Counter != nil {
		hash := s.engine.GetOrderHash(params.Components(*req.Counter))
		return &model.HashOrderResponse{OrderHash: hash.Hex(), Counter: *req.Counter}, nil
	}
	hash, counter, err := s.engine.GetCurrentOrderHash(ctx, params)
	if err != nil {
		return nil, mapEngineError(err)
	}
	return &model.HashOrderResponse{OrderHash: hash.Hex(), Counter: counter}, nil
}

func (s *SettlementService) settlementError(flow string, err error) error {
	metrics.SettlementsTotal.WithLabelValues(flow, "error").Inc()
	logger.Warn("settlement rejected", "flow", flow, "error", err.Error())
	return mapEngineError(err)
}

func (s *SettlementService) observe(flow string, result *model.FillResult) {
	metrics.SettlementsTotal.WithLabelValues(flow, "ok").Inc()
	metrics.ExecutionsTotal.Add(float64(len(result.Executions)))
	skipped := 0
	for _, ok := range result.Available {
		if !ok {
			skipped++
		}
	}
	if skipped > 0 {
		metrics.OrdersSkipped.WithLabelValues("unavailable").Add(float64(skipped))
	}
	logger.Info("settlement complete",
		"flow", flow,
		"orders", len(result.OrderHashes),
		"executions", len(result.Executions),
		"skipped", skipped,
	)
}

// mapEngineError folds engine failures into API error types: structural and
// signature problems are client errors, state conflicts (expired, cancelled,
// filled, underfunded) map to 409-family types, zone refusals to 403.
func mapEngineError(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, engine.ErrInvalidTime),
		errors.Is(err, engine.ErrOrderIsCancelled),
		errors.Is(err, engine.ErrOrderAlreadyFilled),
		errors.Is(err, engine.ErrNoSpecifiedOrdersAvailable):
		return apperrors.New(apperrors.ErrOrderUnfillable, err.Error(), err)

	case errors.Is(err, engine.ErrInvalidRestrictedOrder):
		return apperrors.New(apperrors.ErrZoneRejected, err.Error(), err)

	case errors.Is(err, engine.ErrInvalidCanceller):
		return apperrors.New(apperrors.ErrInvalidRequest, err.Error(), err)

	case errors.Is(err, signer.ErrInvalidSignature),
		errors.Is(err, signer.ErrInvalidSigner):
		return apperrors.NewOrderInvalid(err.Error(), err)

	case errors.Is(err, criteria.ErrUnresolvedOfferCriteria),
		errors.Is(err, criteria.ErrUnresolvedConsiderationCriteria),
		errors.Is(err, criteria.ErrInvalidProof),
		errors.Is(err, criteria.ErrOrderIndexOutOfRange),
		errors.Is(err, criteria.ErrItemIndexOutOfRange),
		errors.Is(err, criteria.ErrCriteriaNotEnabledForItem):
		return apperrors.NewOrderInvalid(err.Error(), err)

	case errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrNotTokenOwner),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrUnsupportedItemType),
		errors.Is(err, conduit.ErrInvalidConduit):
		return apperrors.New(apperrors.ErrSettlementFailed, err.Error(), err)

	case isStructuralOrderError(err):
		return apperrors.NewOrderInvalid(err.Error(), err)

	default:
		return apperrors.Wrap(err)
	}
}

func isStructuralOrderError(err error) bool {
	structural := []error{
		model.ErrInvalidItemType,
		model.ErrMissingItemAmount,
		model.ErrNegativeItemValue,
		model.ErrUnusedItemParameters,
		model.ErrMissingItemToken,
		model.ErrInvalidERC721Amount,
		model.ErrMissingRecipient,
		model.ErrMissingOfferer,
		model.ErrEmptyOrder,
		model.ErrInvalidOrderType,
		model.ErrMissingZone,
		model.ErrMissingSalt,
		model.ErrBadFraction,
		model.ErrPartialFillNotEnabled,
	}
	for _, target := range structural {
		if errors.Is(err, target) {
			return true
		}
	}
	var itemErr *model.ItemError
	return errors.As(err, &itemErr)
}
