package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/immutable/seaport/internal/middleware"
	"github.com/immutable/seaport/internal/model"
	"github.com/immutable/seaport/internal/pkg/apperrors"
	"github.com/immutable/seaport/internal/service"
)

// AdminHandler covers the operator surface: seeding ledger balances,
// inspecting positions, and the halt switch.
type AdminHandler struct {
	svc *service.SettlementService
}

func NewAdminHandler(svc *service.SettlementService) *AdminHandler {
	return &AdminHandler{svc: svc}
}

func (h *AdminHandler) Mint(c *gin.Context) {
	var req model.MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}

	resp, err := h.svc.Mint(&req)
	if err != nil {
		middleware.AddAuditContext(c, "error", err.Error())
		c.Error(err)
		return
	}

	middleware.AddAuditContext(c, "action", "mint")
	middleware.AddAuditContext(c, "account", resp.Account)
	c.JSON(http.StatusOK, resp)
}

func (h *AdminHandler) GetBalances(c *gin.Context) {
	itemType := 0
	if raw := c.Query("item_type"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 || parsed > 255 {
			c.Error(apperrors.NewInvalidRequest("item_type must be a small unsigned integer"))
			return
		}
		itemType = parsed
	}

	resp, err := h.svc.GetBalances(c.Param("account"), c.Query("token"), c.Query("identifier"), uint8(itemType))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AdminHandler) Halt(c *gin.Context) {
	h.svc.Halt()
	middleware.AddAuditContext(c, "action", "halt")
	c.JSON(http.StatusOK, gin.H{"halted": true})
}

func (h *AdminHandler) Resume(c *gin.Context) {
	h.svc.Resume()
	middleware.AddAuditContext(c, "action", "resume")
	c.JSON(http.StatusOK, gin.H{"halted": false})
}
