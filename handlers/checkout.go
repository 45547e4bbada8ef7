package handlers

import (
	"context"
	"errors"
	"net/http"

	"storefront-svc/checkout"
	"storefront-svc/gateway"
	"storefront-svc/middleware"
	"storefront-svc/models"
	"storefront-svc/pricing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CheckoutService interface {
	Quote(ctx context.Context, req models.QuoteRequest) (pricing.Totals, error)
	CreatePreference(ctx context.Context, buyer models.Buyer, req models.CreatePreferenceRequest) (*checkout.Result, error)
}

type CheckoutHandler struct {
	service CheckoutService
	logger  *zap.Logger
}

func NewCheckoutHandler(service CheckoutService, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{service: service, logger: logger}
}

func (h *CheckoutHandler) Quote(c *gin.Context) {
	var req models.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "invalid_request"})
		return
	}

	totals, err := h.service.Quote(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, totals)
}

func (h *CheckoutHandler) CreatePreference(c *gin.Context) {
	buyer, err := middleware.BuyerFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req models.CreatePreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "invalid_request"})
		return
	}

	result, err := h.service.CreatePreference(c.Request.Context(), buyer, req)
	if err != nil {
		var order *models.Order
		if result != nil {
			order = result.Order
		}
		h.writeError(c, err, order)
		return
	}

	resp := gin.H{
		"order_id": result.Order.ID,
		"status":   result.Order.Status,
		"total":    result.Order.Total,
	}
	if result.RedirectURL != "" {
		resp["redirect_url"] = result.RedirectURL
	}
	c.JSON(http.StatusCreated, resp)
}

// writeError maps checkout failures to responses. order is the order left in
// created status when the gateway failed after it was stored.
func (h *CheckoutHandler) writeError(c *gin.Context, err error, order *models.Order) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Message, "code": verr.Code()})
		return
	case errors.Is(err, models.ErrBrandNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Brand not found", "code": "brand_not_found"})
		return
	}

	traceID := middleware.GetTraceID(c.Request.Context())
	resp := gin.H{}
	if order != nil {
		resp["order_id"] = order.ID
	}

	switch {
	case gateway.IsRejected(err):
		h.logger.Error("Gateway rejected preference", zap.String("trace_id", traceID), zap.Error(err))
		resp["error"] = "Payment gateway rejected the request"
		resp["code"] = "gateway_rejected"
		c.JSON(http.StatusBadGateway, resp)
	case gateway.IsUnavailable(err):
		h.logger.Warn("Gateway unavailable", zap.String("trace_id", traceID), zap.Error(err))
		resp["error"] = "Payment gateway temporarily unavailable"
		resp["code"] = "gateway_unavailable"
		c.JSON(http.StatusServiceUnavailable, resp)
	default:
		h.logger.Error("Checkout failed", zap.String("trace_id", traceID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
