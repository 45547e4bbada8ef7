package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront-svc/models"
	"storefront-svc/reconciler"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"
)

type fakeReconciler struct {
	outcome reconciler.Outcome
	err     error
	brand   string
	got     models.PaymentNotification
}

func (f *fakeReconciler) Handle(_ context.Context, brandSlug string, n models.PaymentNotification) (reconciler.Outcome, error) {
	f.brand = brandSlug
	f.got = n
	return f.outcome, f.err
}

func setupWebhookTest(t *testing.T, r *fakeReconciler) *gin.Engine {
	handler := NewWebhookHandler(r, zaptest.NewLogger(t))

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/webhooks/gateway", handler.Ping)
	router.POST("/webhooks/gateway", handler.Notify)
	return router
}

func TestWebhookHandler_Ping(t *testing.T) {
	router := setupWebhookTest(t, &fakeReconciler{})

	req := httptest.NewRequest("GET", "/webhooks/gateway", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
}

func TestWebhookHandler_Notify_Finalized(t *testing.T) {
	r := &fakeReconciler{outcome: reconciler.OutcomeFinalized}
	router := setupWebhookTest(t, r)

	body := bytes.NewBufferString(`{"type":"payment","data":{"id":123}}`)
	req := httptest.NewRequest("POST", "/webhooks/gateway?brand=acme", body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	expectedBody := `{"outcome":"finalized","status":"ok"}`
	if w.Body.String() != expectedBody {
		t.Errorf("Expected body %s, got %s", expectedBody, w.Body.String())
	}
	if r.brand != "acme" {
		t.Errorf("Expected brand acme, got %s", r.brand)
	}
	if r.got.PaymentID != "123" || r.got.Topic != "payment" {
		t.Errorf("Expected normalized payment notification, got %+v", r.got)
	}
}

func TestWebhookHandler_Notify_TerminalOutcomesAcknowledged(t *testing.T) {
	for _, outcome := range []reconciler.Outcome{
		reconciler.OutcomeUnverifiable,
		reconciler.OutcomeNotApproved,
		reconciler.OutcomeDuplicate,
	} {
		router := setupWebhookTest(t, &fakeReconciler{outcome: outcome})

		req := httptest.NewRequest("POST", "/webhooks/gateway?topic=payment&id=1", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Expected status %d for %s, got %d", http.StatusOK, outcome, w.Code)
		}
	}
}

func TestWebhookHandler_Notify_Deferred(t *testing.T) {
	router := setupWebhookTest(t, &fakeReconciler{err: errors.New("gateway unavailable")})

	req := httptest.NewRequest("POST", "/webhooks/gateway?brand=acme&type=payment&data.id=1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}
	expectedBody := `{"status":"retry"}`
	if w.Body.String() != expectedBody {
		t.Errorf("Expected body %s, got %s", expectedBody, w.Body.String())
	}
}
