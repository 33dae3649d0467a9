package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/immutable/seaport/internal/middleware"
	"github.com/immutable/seaport/internal/model"
	"github.com/immutable/seaport/internal/pkg/apperrors"
	"github.com/immutable/seaport/internal/service"
)

// SettlementHandler exposes the settlement flows over HTTP. Handlers bind,
// delegate, and push errors into the gin error chain where ErrorHandler maps
// them to status codes; no business decisions happen here.
type SettlementHandler struct {
	svc *service.SettlementService
}

func NewSettlementHandler(svc *service.SettlementService) *SettlementHandler {
	return &SettlementHandler{svc: svc}
}

func (h *SettlementHandler) FulfillOrder(c *gin.Context) {
	var req model.FulfillOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}

	resp, err := h.svc.FulfillOrder(c.Request.Context(), &req)
	if err != nil {
		middleware.AddAuditContext(c, "error", err.Error())
		c.Error(err)
		return
	}

	middleware.AddAuditContext(c, "order_hashes", resp.OrderHashes)
	middleware.AddAuditContext(c, "executions", len(resp.Executions))
	c.JSON(http.StatusOK, resp)
}

func (h *SettlementHandler) FulfillAdvancedOrder(c *gin.Context) {
	var req model.FulfillAdvancedOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}

	resp, err := h.svc.FulfillAdvancedOrder(c.Request.Context(), &req)
	if err != nil {
		middleware.AddAuditContext(c, "error", err.Error())
		c.Error(err)
		return
	}

	middleware.AddAuditContext(c, "order_hashes", resp.OrderHashes)
	middleware.AddAuditContext(c, "executions", len(resp.Executions))
	c.JSON(http.StatusOK, resp)
}

func (h *SettlementHandler) FulfillAvailableOrders(c *gin.Context) {
	var req model.FulfillAvailableOrdersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}

	resp, err := h.svc.FulfillAvailableOrders(c.Request.Context(), &req)
	if err != nil {
		middleware.AddAuditContext(c, "error", err.Error())
		c.Error(err)
		return
	}

	middleware.AddAuditContext(c, "order_hashes", resp.OrderHashes)
	middleware.AddAuditContext(c, "available", resp.Available)
	c.JSON(http.StatusOK, resp)
}

func (h *SettlementHandler) FulfillAvailableAdvancedOrders(c *gin.Context) {
	var req model.FulfillAvailableAdvancedOrdersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}

	resp, err := h.svc.FulfillAvailableAdvancedOrders(c.Request.Context(), &req)
	if err != nil {
		middleware.AddAuditContext(c, "error", err.Error())
		c.Error(err)
		return
	}

	middleware.AddAuditContext(c, "order_hashes", resp.OrderHashes)
	middleware.AddAuditContext(c, "available", resp.Available)
	c.JSON(http.StatusOK, resp)
}

func (h *SettlementHandler) MatchOrders(c *gin.Context) {
	var req model.MatchOrdersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}

	resp, err := h.svc.MatchOrders(c.Request.Context(), &req)
	if err != nil {
		middleware.AddAuditContext(c, "error", err.Error())
		c.Error(err)
		return
	}

	middleware.AddAuditContext(c, "order_hashes", resp.OrderHashes)
	middleware.AddAuditContext(c, "executions", len(resp.Executions))
	c.JSON(http.StatusOK, resp)
}

func (h *SettlementHandler) MatchAdvancedOrders(c *gin.Context) {
	var req model.MatchAdvancedOrdersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}

	resp, err := h.svc.MatchAdvancedOrders(c.Request.Context(), &req)
	if err != nil {
		middleware.AddAuditContext(c, "error", err.Error())
		c.Error(err)
		return
	}

	middleware.AddAuditContext(c, "order_hashes", resp.OrderHashes)
	middleware.AddAuditContext(c, "executions", len(resp.Executions))
	c.JSON(http.StatusOK, resp)
}

func (h *SettlementHandler) CancelOrders(c *gin.Context) {
	var req model.CancelOrdersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}

	resp, err := h.svc.CancelOrders(c.Request.Context(), &req)
	if err != nil {
		middleware.AddAuditContext(c, "error", err.Error())
		c.Error(err)
		return
	}

	middleware.AddAuditContext(c, "action", "cancel_orders")
	middleware.AddAuditContext(c, "cancelled", resp.Cancelled)
	c.JSON(http.StatusOK, resp)
}

func (h *SettlementHandler) ValidateOrders(c *gin.Context) {
	var req model.ValidateOrdersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}

	resp, err := h.svc.ValidateOrders(c.Request.Context(), &req)
	if err != nil {
		middleware.AddAuditContext(c, "error", err.Error())
		c.Error(err)
		return
	}

	middleware.AddAuditContext(c, "order_hashes", resp.OrderHashes)
	c.JSON(http.StatusOK, resp)
}

func (h *SettlementHandler) HashOrder(c *gin.Context) {
	var req model.HashOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}

	resp, err := h.svc.HashOrder(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SettlementHandler) GetOrderStatus(c *gin.Context) {
	resp, err := h.svc.GetOrderStatus(c.Request.Context(), c.Param("hash"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SettlementHandler) GetCounter(c *gin.Context) {
	resp, err := h.svc.GetCounter(c.Request.Context(), c.Param("offerer"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SettlementHandler) IncrementCounter(c *gin.Context) {
	resp, err := h.svc.IncrementCounter(c.Request.Context(), c.Param("offerer"))
	if err != nil {
		middleware.AddAuditContext(c, "error", err.Error())
		c.Error(err)
		return
	}

	middleware.AddAuditContext(c, "action", "increment_counter")
	middleware.AddAuditContext(c, "offerer", resp.Offerer)
	middleware.AddAuditContext(c, "counter", resp.Counter)
	c.JSON(http.StatusOK, resp)
}
