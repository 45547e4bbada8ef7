package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 2*time.Second, zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel)))
}

func TestClient_CreatePreference_Success(t *testing.T) {
	var got preferenceBody
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/checkout/preferences", r.URL.Path)
		assert.Equal(t, "Bearer brand-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pref-1","init_point":"https://gateway.example/checkout?pref_id=pref-1"}`))
	})

	pref, err := client.CreatePreference(context.Background(), PreferenceRequest{
		Items: []Item{
			{ID: "p1", Title: "Remera", Quantity: 2, UnitPrice: 1000},
			{ID: SurchargeItemID, Title: "Recargo", Quantity: 1, UnitPrice: 200},
		},
		Currency:          "ARS",
		PayerEmail:        "buyer@example.com",
		ExternalReference: "b:brand-1;o:order-1;u:buyer-1",
		NotificationURL:   "https://shop.example/webhooks/gateway?brand=acme",
		BackURLs:          BackURLs{Success: "https://shop.example/acme/ok"},
	}, "brand-token")

	require.NoError(t, err)
	assert.Equal(t, "pref-1", pref.ID)
	assert.Equal(t, "https://gateway.example/checkout?pref_id=pref-1", pref.RedirectURL)

	assert.Len(t, got.Items, 2)
	assert.Equal(t, float64(1000), got.Items[0].UnitPrice)
	assert.Equal(t, "ARS", got.Items[0].CurrencyID)
	assert.Equal(t, "approved", got.AutoReturn)
	assert.Equal(t, "b:brand-1;o:order-1;u:buyer-1", got.ExternalReference)
	assert.Equal(t, "https://shop.example/webhooks/gateway?brand=acme", got.NotificationURL)
	require.NotNil(t, got.Payer)
	assert.Equal(t, "buyer@example.com", got.Payer.Email)
}

func TestClient_CreatePreference_Rejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"invalid access token"}`))
	})

	_, err := client.CreatePreference(context.Background(), PreferenceRequest{}, "bad-token")

	require.Error(t, err)
	assert.True(t, IsRejected(err))
	assert.False(t, IsUnavailable(err))

	var gwErr *Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, http.StatusUnauthorized, gwErr.StatusCode)
	assert.Equal(t, "invalid access token", gwErr.Message)
}

func TestClient_FetchPayment_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payments/123456", r.URL.Path)
		assert.Equal(t, "Bearer brand-token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{
			"id": 123456,
			"status": "approved",
			"status_detail": "accredited",
			"transaction_amount": 2200,
			"currency_id": "ARS",
			"external_reference": "b:brand-1;o:order-1;u:buyer-1",
			"transaction_details": {"total_paid_amount": 2200.0},
			"additional_info": {"items": [
				{"id": "p1", "title": "Remera", "quantity": "2", "unit_price": "1000"},
				{"id": "surcharge", "title": "Recargo", "quantity": 1, "unit_price": 200}
			]},
			"payer": {"email": "buyer@example.com"}
		}`))
	})

	p, err := client.FetchPayment(context.Background(), "123456", "brand-token")

	require.NoError(t, err)
	assert.Equal(t, "123456", p.ID)
	assert.True(t, p.Approved())
	assert.Equal(t, int64(2200), p.PaidAmount())
	assert.Equal(t, "ARS", p.Currency)
	assert.Equal(t, "b:brand-1;o:order-1;u:buyer-1", p.ExternalReference)
	assert.Equal(t, "buyer@example.com", p.PayerEmail)
	assert.Equal(t, []Item{
		{ID: "p1", Title: "Remera", Quantity: 2, UnitPrice: 1000},
		{ID: "surcharge", Title: "Recargo", Quantity: 1, UnitPrice: 200},
	}, p.Items)
}

func TestClient_FetchPayment_ServerErrorIsUnavailable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.FetchPayment(context.Background(), "1", "brand-token")

	assert.True(t, IsUnavailable(err))
}

func TestClient_FetchPayment_NotFoundIsRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Payment not found","error":"not_found"}`))
	})

	_, err := client.FetchPayment(context.Background(), "1", "brand-token")

	assert.True(t, IsRejected(err))
}

func TestClient_FetchPayment_MalformedBodyIsUnavailable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>proxy error</html>`))
	})

	_, err := client.FetchPayment(context.Background(), "1", "brand-token")

	assert.True(t, IsUnavailable(err))
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()
	client := NewClient(srv.URL, 20*time.Millisecond, zaptest.NewLogger(t))

	_, err := client.FetchPayment(context.Background(), "1", "brand-token")

	assert.True(t, IsUnavailable(err))
}

func TestClient_MissingCredential(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("Expected no request without a credential")
	})

	_, err := client.FetchPayment(context.Background(), "1", "")

	assert.True(t, IsRejected(err))
}

func TestClient_CircuitOpensPerCredential(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Header.Get("Authorization") == "Bearer down-token" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"id":1,"status":"pending"}`))
	})

	for i := 0; i < 5; i++ {
		_, _ = client.FetchPayment(context.Background(), "1", "down-token")
	}
	_, err := client.FetchPayment(context.Background(), "1", "down-token")
	assert.True(t, IsUnavailable(err))
	assert.Equal(t, 5, calls)

	p, err := client.FetchPayment(context.Background(), "1", "healthy-token")
	require.NoError(t, err)
	assert.Equal(t, "pending", p.Status)
}
