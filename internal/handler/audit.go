package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/immutable/seaport/internal/pkg/apperrors"
	"github.com/immutable/seaport/internal/service"
)

type AuditHandler struct {
	svc *service.AuditService
}

func NewAuditHandler(svc *service.AuditService) *AuditHandler {
	return &AuditHandler{svc: svc}
}

func (h *AuditHandler) List(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	var fromPtr *time.Time
	var toPtr *time.Time
	if raw := c.Query("from"); raw != "" {
		if t, err := parseTime(raw); err == nil {
			fromPtr = &t
		} else {
			c.Error(apperrors.NewInvalidRequest(err.Error()))
			return
		}
	}
	if raw := c.Query("to"); raw != "" {
		if t, err := parseTime(raw); err == nil {
			toPtr = &t
		} else {
			c.Error(apperrors.NewInvalidRequest(err.Error()))
			return
		}
	}

	records, err := h.svc.List(c.Request.Context(), limit, fromPtr, toPtr)
	if err != nil {
		c.Error(apperrors.New(apperrors.ErrInternal, err.Error(), err))
		return
	}
	c.JSON(http.StatusOK, records)
}

// parseTime accepts RFC3339 or a unix epoch in seconds.
func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid time format")
}
