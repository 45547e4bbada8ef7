package handlers

import (
	"context"
	"io"
	"net/http"

	"storefront-svc/middleware"
	"storefront-svc/models"
	"storefront-svc/reconciler"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

type NotificationHandler interface {
	Handle(ctx context.Context, brandSlug string, n models.PaymentNotification) (reconciler.Outcome, error)
}

type WebhookHandler struct {
	reconciler NotificationHandler
	logger     *zap.Logger
}

func NewWebhookHandler(r NotificationHandler, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{reconciler: r, logger: logger}
}

// Ping answers the gateway's reachability checks.
func (h *WebhookHandler) Ping(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

// Notify acknowledges every terminal outcome with 200. Only a deferred
// notification gets a 503, which makes the gateway deliver it again.
func (h *WebhookHandler) Notify(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		h.logger.Warn("Failed to read notification body",
			zap.String("trace_id", middleware.GetTraceID(c.Request.Context())),
			zap.Error(err),
		)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "retry"})
		return
	}

	n := reconciler.Normalize(c.Request.URL.Query(), body)
	outcome, err := h.reconciler.Handle(c.Request.Context(), c.Query("brand"), n)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "retry"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "outcome": outcome})
}
