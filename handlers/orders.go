package handlers

import (
	"context"
	"errors"
	"net/http"

	"storefront-svc/middleware"
	"storefront-svc/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type OrderReader interface {
	GetOrderForBuyer(ctx context.Context, id, buyerID string) (*models.Order, error)
}

type OrderHandler struct {
	orders OrderReader
	logger *zap.Logger
}

func NewOrderHandler(orders OrderReader, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: logger}
}

// GetOrder only shows buyers their own orders; others get 404.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	buyer, err := middleware.BuyerFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	order, err := h.orders.GetOrderForBuyer(c.Request.Context(), c.Param("id"), buyer.ID)
	if errors.Is(err, models.ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	if err != nil {
		traceID := middleware.GetTraceID(c.Request.Context())
		h.logger.Error("Failed to fetch order", zap.String("trace_id", traceID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, order)
}
