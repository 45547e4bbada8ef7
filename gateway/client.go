package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storefront-svc/circuitbreaker"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	opCreatePreference = "create_preference"
	opFetchPayment     = "fetch_payment"

	maxErrorBody = 4 << 10
)

// Client talks to the payment gateway on behalf of a brand. Every call takes
// the brand's own credential; there is no process-wide account.
type Client struct {
	httpClient *http.Client
	baseURL    string
	breakers   *circuitbreaker.Group
	logger     *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		breakers:   circuitbreaker.NewGroup(5, 30*time.Second, IsUnavailable),
		logger:     logger,
	}
}

func (c *Client) CreatePreference(ctx context.Context, req PreferenceRequest, credential string) (Preference, error) {
	ctx, span := otel.Tracer("storefront-service").Start(ctx, "gateway.CreatePreference")
	defer span.End()

	body := preferenceBody{
		Items:             make([]preferenceItem, 0, len(req.Items)),
		BackURLs:          req.BackURLs,
		NotificationURL:   req.NotificationURL,
		ExternalReference: req.ExternalReference,
	}
	if req.BackURLs.Success != "" {
		body.AutoReturn = "approved"
	}
	if req.PayerEmail != "" {
		body.Payer = &payerBody{Email: req.PayerEmail}
	}
	for _, it := range req.Items {
		body.Items = append(body.Items, preferenceItem{
			ID:         it.ID,
			Title:      it.Title,
			Quantity:   it.Quantity,
			UnitPrice:  float64(it.UnitPrice),
			CurrencyID: req.Currency,
		})
	}

	var resp preferenceResponse
	err := c.do(ctx, opCreatePreference, credential, http.MethodPost, "/checkout/preferences", body, &resp)
	recordRequest(opCreatePreference, err)
	if err != nil {
		span.RecordError(err)
		return Preference{}, err
	}
	if resp.ID == "" || resp.InitPoint == "" {
		err := &Error{Op: opCreatePreference, Kind: ErrGatewayRejected, Message: "response without id or init_point"}
		span.RecordError(err)
		return Preference{}, err
	}

	span.SetAttributes(attribute.String("preference.id", resp.ID))
	return Preference{ID: resp.ID, RedirectURL: resp.InitPoint}, nil
}

func (c *Client) FetchPayment(ctx context.Context, paymentID, credential string) (Payment, error) {
	ctx, span := otel.Tracer("storefront-service").Start(ctx, "gateway.FetchPayment")
	defer span.End()
	span.SetAttributes(attribute.String("payment.id", paymentID))

	var resp paymentResponse
	err := c.do(ctx, opFetchPayment, credential, http.MethodGet, "/v1/payments/"+url.PathEscape(paymentID), nil, &resp)
	recordRequest(opFetchPayment, err)
	if err != nil {
		span.RecordError(err)
		return Payment{}, err
	}

	p := Payment{
		ID:                string(resp.ID),
		Status:            resp.Status,
		StatusDetail:      resp.StatusDetail,
		TransactionAmount: toUnits(float64(resp.TransactionAmount)),
		TotalPaidAmount:   toUnits(float64(resp.TransactionDetails.TotalPaidAmount)),
		Currency:          resp.CurrencyID,
		ExternalReference: resp.ExternalReference,
		PayerEmail:        resp.Payer.Email,
	}
	if p.ID == "" {
		p.ID = paymentID
	}
	for _, it := range resp.AdditionalInfo.Items {
		p.Items = append(p.Items, Item{
			ID:        string(it.ID),
			Title:     it.Title,
			Quantity:  int(math.Round(float64(it.Quantity))),
			UnitPrice: toUnits(float64(it.UnitPrice)),
		})
	}

	span.SetAttributes(attribute.String("payment.status", p.Status))
	return p, nil
}

func (c *Client) do(ctx context.Context, op, credential, method, path string, in, out any) error {
	if credential == "" {
		return &Error{Op: op, Kind: ErrGatewayRejected, Message: "missing credential"}
	}

	var payload io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return &Error{Op: op, Kind: ErrGatewayRejected, Err: fmt.Errorf("failed to marshal request: %w", err)}
		}
		payload = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return &Error{Op: op, Kind: ErrGatewayRejected, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	err = c.breakers.Get(credential).Execute(func() error {
		return c.send(req, op, out)
	})
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return &Error{Op: op, Kind: ErrGatewayUnavailable, Err: err}
	}
	return err
}

func (c *Client) send(req *http.Request, op string, out any) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Gateway request failed",
			zap.String("operation", op),
			zap.Duration("latency", time.Since(start)),
			zap.Error(err),
		)
		return &Error{Op: op, Kind: ErrGatewayUnavailable, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr errorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = json.Unmarshal(raw, &apiErr)
		msg := apiErr.Message
		if msg == "" {
			msg = apiErr.Error
		}

		kind := ErrGatewayRejected
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			kind = ErrGatewayUnavailable
		}
		c.logger.Warn("Gateway returned error status",
			zap.String("operation", op),
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg),
		)
		return &Error{Op: op, StatusCode: resp.StatusCode, Kind: kind, Message: msg}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Op: op, StatusCode: resp.StatusCode, Kind: ErrGatewayUnavailable, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	c.logger.Debug("Gateway request completed",
		zap.String("operation", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)
	return nil
}

func toUnits(v float64) int64 {
	return int64(math.Round(v))
}
